// Package acquire turns an event page into a stream URL by watching the
// page's network traffic while it loads.
package acquire

import (
	"context"
	"fmt"
	"time"

	"m3u-live-events/browser"
	"m3u-live-events/governor"
	"m3u-live-events/logger"
)

type State int

const (
	Start State = iota
	Navigated
	Interacted
	WaitingForCapture
	Captured
	TimedOut
	Failed
)

var stateNames = [...]string{
	Start:             "start",
	Navigated:         "navigated",
	Interacted:        "interacted",
	WaitingForCapture: "waiting",
	Captured:          "captured",
	TimedOut:          "timed_out",
	Failed:            "failed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) Terminal() bool {
	return s == Captured || s == TimedOut || s == Failed
}

type Result struct {
	State State
	URL   string
	Err   error
	// Trail lists every state entered, in order.
	Trail []State
}

const (
	DefaultNavTimeout     = 15 * time.Second
	DefaultProbeTimeout   = 5 * time.Second
	DefaultCaptureTimeout = 10 * time.Second
)

type Machine struct {
	Matcher        browser.Matcher
	NavTimeout     time.Duration
	ProbeTimeout   time.Duration
	CaptureTimeout time.Duration
	// Trigger is an optional play control clicked after navigation.
	Trigger string
	Log     logger.Logger
}

func (m *Machine) withDefaults() Machine {
	c := *m
	if c.NavTimeout <= 0 {
		c.NavTimeout = DefaultNavTimeout
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = DefaultProbeTimeout
	}
	if c.CaptureTimeout <= 0 {
		c.CaptureTimeout = DefaultCaptureTimeout
	}
	if c.Log == nil {
		c.Log = logger.Default
	}
	if c.Matcher.Pattern == nil {
		c.Matcher = browser.DefaultMatcher()
	}
	return c
}

// Run drives page to url and waits for a manifest request. The listener is
// registered before navigating and removed before Run returns.
func (m *Machine) Run(ctx context.Context, page browser.Page, url, label string) Result {
	cfg := m.withDefaults()
	res := Result{State: Start, Trail: []State{Start}}
	enter := func(s State) {
		res.State = s
		res.Trail = append(res.Trail, s)
	}

	obs := browser.Observe(page, cfg.Matcher)
	defer obs.Stop()

	if err := page.Navigate(ctx, url, cfg.NavTimeout); err != nil {
		enter(Failed)
		res.Err = err
		cfg.Log.Warnf("%s) Exception while processing: %v", label, err)
		return res
	}
	enter(Navigated)

	if cfg.Trigger != "" {
		clicked, err := page.ClickFirst(ctx, cfg.Trigger, cfg.ProbeTimeout)
		if err != nil && ctx.Err() != nil {
			enter(Failed)
			res.Err = err
			cfg.Log.Warnf("%s) Exception while processing: %v", label, err)
			return res
		}
		if err != nil {
			cfg.Log.Debugf("%s) Play control not usable: %v", label, err)
		}
		if clicked {
			enter(Interacted)
		}
	}

	enter(WaitingForCapture)
	captured, ok := obs.Wait(ctx, cfg.CaptureTimeout)
	if !ok {
		if err := ctx.Err(); err != nil {
			enter(Failed)
			res.Err = err
			return res
		}
		enter(TimedOut)
		cfg.Log.Warnf("%s) Timed out waiting for M3U8.", label)
		return res
	}

	enter(Captured)
	res.URL = captured
	cfg.Log.Logf("%s) Captured M3U8", label)
	return res
}

type Request struct {
	URL     string
	Label   string
	Timeout time.Duration
	Session browser.SessionOptions
}

// Resolve runs the machine inside the browser pool in a session of its own.
// The session and page are released on every path, including a timeout
// imposed by the pool.
func Resolve(ctx context.Context, sessions browser.SessionFactory, pool *governor.Pool, m *Machine, req Request) (Result, governor.Outcome) {
	log := m.Log
	if log == nil {
		log = logger.Default
	}

	res, outcome := governor.Run(ctx, pool, governor.Task{Label: req.Label, Timeout: req.Timeout, Log: log},
		func(ctx context.Context) (Result, error) {
			var res Result
			err := browser.WithSession(ctx, sessions, req.Session, func(s browser.Session) error {
				return browser.WithPage(ctx, s, func(p browser.Page) error {
					res = m.Run(ctx, p, req.URL, req.Label)
					return nil
				})
			})
			if err != nil {
				return Result{}, err
			}
			return res, nil
		})

	switch outcome {
	case governor.Completed:
		return res, outcome
	case governor.TimedOut:
		return Result{State: TimedOut}, outcome
	default:
		return Result{State: Failed}, outcome
	}
}
