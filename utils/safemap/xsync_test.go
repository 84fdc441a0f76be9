package safemap

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConcurrentSetAndSnapshot(t *testing.T) {
	m := New[string, int]()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.Set(fmt.Sprintf("k%d", i), i)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, m.Len())
	snap := m.Snapshot()
	assert.Len(t, snap, 50)
	assert.Equal(t, 7, snap["k7"])

	v, ok := m.Get("k49")
	assert.True(t, ok)
	assert.Equal(t, 49, v)

	seen := 0
	m.ForEach(func(string, int) bool {
		seen++
		return seen < 10
	})
	assert.Equal(t, 10, seen)
}
