// Package governor runs tasks under bounded pools with a hard timeout.
// Failures never escape Run: they are logged and reported as an Outcome.
package governor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"m3u-live-events/logger"
	"m3u-live-events/metrics"

	"golang.org/x/sync/semaphore"
)

type Pool struct {
	name     string
	capacity int64
	sem      *semaphore.Weighted

	inFlight atomic.Int64
	peak     atomic.Int64
}

func NewPool(name string, capacity int64) *Pool {
	if capacity < 1 {
		capacity = 1
	}
	return &Pool{
		name:     name,
		capacity: capacity,
		sem:      semaphore.NewWeighted(capacity),
	}
}

func (p *Pool) Name() string    { return p.name }
func (p *Pool) Capacity() int64 { return p.capacity }
func (p *Pool) InFlight() int64 { return p.inFlight.Load() }
func (p *Pool) Peak() int64     { return p.peak.Load() }

func (p *Pool) enter() {
	n := p.inFlight.Add(1)
	for {
		peak := p.peak.Load()
		if n <= peak || p.peak.CompareAndSwap(peak, n) {
			return
		}
	}
}

func (p *Pool) leave() {
	p.inFlight.Add(-1)
}

// Pools are the two independent capacity budgets of a run.
type Pools struct {
	HTTP    *Pool
	Browser *Pool
}

func NewPools(httpCapacity, browserCapacity int64) Pools {
	return Pools{
		HTTP:    NewPool("http", httpCapacity),
		Browser: NewPool("browser", browserCapacity),
	}
}

type Outcome int

const (
	Completed Outcome = iota
	TimedOut
	Failed
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case TimedOut:
		return "timeout"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

func (o Outcome) OK() bool { return o == Completed }

type Task struct {
	// Label prefixes log lines, e.g. "URL 3".
	Label   string
	Timeout time.Duration
	Log     logger.Logger
}

// PanicError wraps a value recovered from a task.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

// Reported marks err as already logged by the task. Run still records the
// task as Failed but only repeats the error at debug level.
func Reported(err error) error {
	if err == nil {
		return nil
	}
	return &reportedError{err: err}
}

// Run waits for capacity in p, then runs fn with a context that is cancelled
// after task.Timeout. On timeout the context is cancelled and Run waits for
// fn to return before releasing the slot; whatever fn produced is dropped.
// Only a Completed outcome carries a value.
func Run[T any](ctx context.Context, p *Pool, task Task, fn func(context.Context) (T, error)) (T, Outcome) {
	var zero T
	log := task.Log
	if log == nil {
		log = logger.Default
	}

	start := time.Now()
	if err := p.sem.Acquire(ctx, 1); err != nil {
		log.Debugf("%s) Cancelled while waiting for %s capacity", task.Label, p.name)
		record(p, Cancelled, start)
		return zero, Cancelled
	}
	defer p.sem.Release(1)
	p.enter()
	defer p.leave()

	var runCtx context.Context
	var cancel context.CancelFunc
	if task.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, task.Timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		var r result
		defer func() {
			if v := recover(); v != nil {
				r.err = &PanicError{Value: v}
			}
			done <- r
		}()
		r.val, r.err = fn(runCtx)
	}()

	select {
	case r := <-done:
		if r.err == nil {
			record(p, Completed, start)
			return r.val, Completed
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			log.Warnf("%s) Timed out after %s, skipping event", task.Label, task.Timeout)
			log.Debugf("%s) Ignoring error raised during cancellation: %v", task.Label, r.err)
			record(p, TimedOut, start)
			return zero, TimedOut
		}
		if ctx.Err() != nil {
			log.Debugf("%s) Cancelled: %v", task.Label, r.err)
			record(p, Cancelled, start)
			return zero, Cancelled
		}
		var rep *reportedError
		if errors.As(r.err, &rep) {
			log.Debugf("%s) Failed: %v", task.Label, r.err)
		} else {
			log.Errorf("%s) Unexpected error: %v", task.Label, r.err)
		}
		record(p, Failed, start)
		return zero, Failed

	case <-runCtx.Done():
		cancel()
		r := <-done
		if r.err != nil {
			log.Debugf("%s) Ignoring error raised during cancellation: %v", task.Label, r.err)
		}
		if ctx.Err() != nil {
			log.Debugf("%s) Cancelled", task.Label)
			record(p, Cancelled, start)
			return zero, Cancelled
		}
		log.Warnf("%s) Timed out after %s, skipping event", task.Label, task.Timeout)
		record(p, TimedOut, start)
		return zero, TimedOut
	}
}

func record(p *Pool, o Outcome, start time.Time) {
	metrics.Tasks.WithLabelValues(p.name, o.String()).Inc()
	metrics.TaskDuration.WithLabelValues(p.name).Observe(time.Since(start).Seconds())
}
