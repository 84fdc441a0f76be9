package browser

import (
	"context"
	"sync"
	"time"
)

// Observer latches the first request URL accepted by its matcher. Later
// matches are ignored.
type Observer struct {
	matcher Matcher

	once sync.Once
	done chan struct{}
	url  string

	stopOnce sync.Once
	remove   func()
}

// Observe registers on p before the caller navigates so no early request is
// missed.
func Observe(p Page, m Matcher) *Observer {
	o := &Observer{
		matcher: m,
		done:    make(chan struct{}),
	}
	o.remove = p.OnRequest(o.handle)
	return o
}

func (o *Observer) handle(url string) {
	if !o.matcher.Match(url) {
		return
	}
	o.once.Do(func() {
		o.url = url
		close(o.done)
	})
}

// Captured returns the latched URL without blocking.
func (o *Observer) Captured() (string, bool) {
	select {
	case <-o.done:
		return o.url, true
	default:
		return "", false
	}
}

// Wait blocks until a match, the timeout, or ctx ends.
func (o *Observer) Wait(ctx context.Context, timeout time.Duration) (string, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-o.done:
		return o.url, true
	case <-timer.C:
	case <-ctx.Done():
	}
	// a match racing the deadline still counts
	return o.Captured()
}

// Stop deregisters the listener. Safe to call more than once.
func (o *Observer) Stop() {
	o.stopOnce.Do(func() {
		if o.remove != nil {
			o.remove()
		}
	})
}

// ObserveUntilMatch is the one-shot form: register, wait, deregister.
func ObserveUntilMatch(ctx context.Context, p Page, m Matcher, timeout time.Duration) (string, bool) {
	o := Observe(p, m)
	defer o.Stop()
	return o.Wait(ctx, timeout)
}
