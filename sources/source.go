// Package sources holds the site adapters. Each adapter is a pure function
// of its environment: it reads its caches, scrapes, writes its caches and
// returns the entries it could acquire.
package sources

import (
	"context"
	"errors"
	"strings"
	"time"

	"m3u-live-events/acquire"
	"m3u-live-events/browser"
	"m3u-live-events/config"
	"m3u-live-events/eventtime"
	"m3u-live-events/governor"
	"m3u-live-events/journal"
	"m3u-live-events/leagues"
	"m3u-live-events/logger"
	"m3u-live-events/model"
	"m3u-live-events/network"
)

// Kind names the browser a source drives.
type Kind int

const (
	NoBrowser Kind = iota
	Headless
	External
)

func (k Kind) String() string {
	switch k {
	case Headless:
		return "headless"
	case External:
		return "external"
	default:
		return "none"
	}
}

type Source interface {
	Tag() string
	Browser() Kind
	Scrape(ctx context.Context, env *Env) (model.ResultMap, error)
}

type Timeouts struct {
	// Acquire bounds one governed task end to end.
	Acquire    time.Duration
	Navigation time.Duration
	Probe      time.Duration
	Capture    time.Duration
	// Fetch bounds one governed listing request, retries included.
	Fetch time.Duration
}

func DefaultTimeouts() Timeouts {
	return Timeouts{
		Acquire:    10 * time.Second,
		Navigation: acquire.DefaultNavTimeout,
		Probe:      acquire.DefaultProbeTimeout,
		Capture:    acquire.DefaultCaptureTimeout,
		Fetch:      30 * time.Second,
	}
}

// Env is everything a source may use. It is shared by all sources of a run.
type Env struct {
	Headless browser.SessionFactory
	External browser.SessionFactory
	HTTP     *network.Client
	Pools    governor.Pools
	Leagues  *leagues.DB
	CacheDir string
	Capture  browser.Matcher
	Timeouts Timeouts
	Journal  *journal.Journal
	// Now overrides the run's reference time in tests.
	Now func() eventtime.Stamp
}

func (e *Env) Clock() eventtime.Stamp {
	if e.Now != nil {
		return e.Now()
	}
	return eventtime.ProcessStart
}

func (e *Env) Sessions(k Kind) browser.SessionFactory {
	switch k {
	case Headless:
		return e.Headless
	case External:
		return e.External
	default:
		return nil
	}
}

func (e *Env) leagues() *leagues.DB {
	if e.Leagues == nil {
		return leagues.Empty()
	}
	return e.Leagues
}

// Machine builds an acquisition machine from the run's capture settings.
// A zero wait uses the configured capture timeout.
func (e *Env) Machine(log logger.Logger, trigger string, wait time.Duration) *acquire.Machine {
	if wait <= 0 {
		wait = e.Timeouts.Capture
	}
	return &acquire.Machine{
		Matcher:        e.Capture,
		NavTimeout:     e.Timeouts.Navigation,
		ProbeTimeout:   e.Timeouts.Probe,
		CaptureTimeout: wait,
		Trigger:        trigger,
		Log:            log,
	}
}

type Job struct {
	Tag     string
	Kind    Kind
	Machine *acquire.Machine
	Key     string
	Link    string
	Label   string
}

// Resolve acquires one event and journals the attempt. It returns "" when
// nothing was captured.
func (e *Env) Resolve(ctx context.Context, j Job) string {
	start := time.Now()
	res, _ := acquire.Resolve(ctx, e.Sessions(j.Kind), e.Pools.Browser, j.Machine, acquire.Request{
		URL:     j.Link,
		Label:   j.Label,
		Timeout: e.Timeouts.Acquire,
		Session: browser.SessionOptions{Stealth: true},
	})

	err := e.Journal.Record(context.WithoutCancel(ctx), journal.Attempt{
		Source:   j.Tag,
		Key:      j.Key,
		URL:      res.URL,
		State:    res.State.String(),
		Duration: time.Since(start),
	})
	if err != nil {
		logger.Default.Debugf("%v", err)
	}
	return res.URL
}

// Fetch GETs url through the HTTP pool. Transport errors are logged by the
// client and counted as failed tasks; the caller only sees ok=false.
func (e *Env) Fetch(ctx context.Context, url, label string, log logger.Logger) ([]byte, bool) {
	body, outcome := governor.Run(ctx, e.Pools.HTTP, governor.Task{Label: label, Timeout: e.Timeouts.Fetch, Log: log},
		func(ctx context.Context) ([]byte, error) {
			body, err := e.HTTP.Get(ctx, url, log)
			if err != nil {
				return nil, governor.Reported(err)
			}
			return body, nil
		})
	return body, outcome.OK() && body != nil
}

var errNoMirror = errors.New("no mirror answered")

// BaseURL picks the site root for this run. Without mirrors it is fallback;
// otherwise the mirrors are probed through the HTTP pool and ok is false when
// none answers.
func (e *Env) BaseURL(ctx context.Context, fallback string, mirrors []string, log logger.Logger) (string, bool) {
	if len(mirrors) == 0 {
		return fallback, true
	}
	base, outcome := governor.Run(ctx, e.Pools.HTTP, governor.Task{Label: "mirrors", Timeout: e.Timeouts.Fetch, Log: log},
		func(ctx context.Context) (string, error) {
			if base, ok := e.HTTP.GetBase(ctx, mirrors); ok {
				return base, nil
			}
			return "", errNoMirror
		})
	return base, outcome.OK()
}

// Registry lists every adapter in the order the driver merges them.
func Registry(cfg *config.Config) []Source {
	urls := cfg.Sources.URLs
	mirrors := cfg.Sources.Mirrors

	pixel := NewPixel(urls["pixel"])
	pixel.Mirrors = mirrors["pixel"]
	roxie := NewRoxie(urls["roxie"])
	roxie.Mirrors = mirrors["roxie"]
	tvapp := NewTVApp(urls["tvapp"])
	tvapp.Mirrors = mirrors["tvapp"]

	return []Source{pixel, roxie, tvapp}
}

// Enabled filters all by name (the lower-cased tag), keeping registry order.
func Enabled(all []Source, names []string) []Source {
	want := map[string]bool{}
	for _, n := range names {
		want[strings.ToLower(strings.TrimSpace(n))] = true
	}

	var out []Source
	for _, s := range all {
		if want[strings.ToLower(s.Tag())] {
			out = append(out, s)
		}
	}
	return out
}
