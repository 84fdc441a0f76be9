package governor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolBoundUnderFlood(t *testing.T) {
	const capacity = 3
	pool := NewPool("browser", capacity)

	var running, maxSeen atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, outcome := Run(context.Background(), pool, Task{Label: "URL", Timeout: time.Second}, func(ctx context.Context) (int, error) {
				n := running.Add(1)
				for {
					m := maxSeen.Load()
					if n <= m || maxSeen.CompareAndSwap(m, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				running.Add(-1)
				return 1, nil
			})
			assert.Equal(t, Completed, outcome)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, maxSeen.Load(), int64(capacity))
	assert.LessOrEqual(t, pool.Peak(), int64(capacity))
	assert.Equal(t, int64(0), pool.InFlight())
}

func TestPoolsAreIndependent(t *testing.T) {
	pools := NewPools(1, 1)
	release := make(chan struct{})
	started := make(chan struct{})

	go Run(context.Background(), pools.Browser, Task{Label: "hold"}, func(ctx context.Context) (struct{}, error) {
		close(started)
		<-release
		return struct{}{}, nil
	})
	<-started

	// the browser pool is saturated; the HTTP pool still admits work
	v, outcome := Run(context.Background(), pools.HTTP, Task{Label: "http", Timeout: time.Second}, func(ctx context.Context) (string, error) {
		return "ok", nil
	})
	close(release)

	assert.Equal(t, Completed, outcome)
	assert.Equal(t, "ok", v)
}

func TestTimeoutCancelsAndWaits(t *testing.T) {
	pool := NewPool("browser", 1)
	var stopped atomic.Bool

	start := time.Now()
	v, outcome := Run(context.Background(), pool, Task{Label: "URL 1", Timeout: 50 * time.Millisecond}, func(ctx context.Context) (string, error) {
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond) // cleanup after the cancel signal
		stopped.Store(true)
		return "late", ctx.Err()
	})

	assert.Equal(t, TimedOut, outcome)
	assert.Empty(t, v)
	assert.True(t, stopped.Load(), "Run returned before the task acknowledged cancellation")
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Equal(t, int64(0), pool.InFlight())
}

func TestTimeoutDiscardsSuccessfulLateResult(t *testing.T) {
	pool := NewPool("browser", 1)
	v, outcome := Run(context.Background(), pool, Task{Label: "URL 1", Timeout: 10 * time.Millisecond}, func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "https://late/index.m3u8", nil
	})

	assert.Equal(t, TimedOut, outcome)
	assert.Empty(t, v)
}

func TestSiblingIsolation(t *testing.T) {
	pool := NewPool("browser", 3)
	type res struct {
		val     string
		outcome Outcome
	}
	results := make([]res, 3)

	fns := []func(context.Context) (string, error){
		func(ctx context.Context) (string, error) { return "", errors.New("boom") },
		func(ctx context.Context) (string, error) { panic("unexpected nil page") },
		func(ctx context.Context) (string, error) {
			time.Sleep(10 * time.Millisecond)
			return "https://ok/index.m3u8", nil
		},
	}

	var wg sync.WaitGroup
	for i, fn := range fns {
		wg.Add(1)
		go func(i int, fn func(context.Context) (string, error)) {
			defer wg.Done()
			v, o := Run(context.Background(), pool, Task{Label: "URL", Timeout: time.Second}, fn)
			results[i] = res{v, o}
		}(i, fn)
	}
	wg.Wait()

	assert.Equal(t, Failed, results[0].outcome)
	assert.Equal(t, Failed, results[1].outcome)
	assert.Equal(t, Completed, results[2].outcome)
	assert.Equal(t, "https://ok/index.m3u8", results[2].val)
}

func TestReportedErrorIsStillFailed(t *testing.T) {
	cause := errors.New("GET https://x: status 404")
	var seen error

	_, outcome := Run(context.Background(), NewPool("http", 1), Task{Label: "home", Timeout: time.Second},
		func(ctx context.Context) ([]byte, error) {
			seen = Reported(cause)
			return nil, seen
		})

	assert.Equal(t, Failed, outcome)
	assert.ErrorIs(t, seen, cause)
	assert.EqualError(t, seen, cause.Error())
	assert.NoError(t, Reported(nil))
}

func TestParentCancelledWhileWaiting(t *testing.T) {
	pool := NewPool("browser", 1)
	release := make(chan struct{})
	started := make(chan struct{})
	go Run(context.Background(), pool, Task{Label: "hold"}, func(ctx context.Context) (int, error) {
		close(started)
		<-release
		return 0, nil
	})
	<-started
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, outcome := Run(ctx, pool, Task{Label: "queued", Timeout: time.Second}, func(ctx context.Context) (int, error) {
		called = true
		return 1, nil
	})

	assert.Equal(t, Cancelled, outcome)
	assert.False(t, called)
}

func TestPanicErrorMessage(t *testing.T) {
	err := &PanicError{Value: "nil map"}
	require.EqualError(t, err, "panic: nil map")
	assert.False(t, Failed.OK())
	assert.True(t, Completed.OK())
	assert.Equal(t, "timeout", TimedOut.String())
}
