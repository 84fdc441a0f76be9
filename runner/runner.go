// Package runner drives one scrape: load the base playlist, run every enabled
// source against shared browsers and pools, then merge and write both
// playlists.
package runner

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"m3u-live-events/aggregate"
	"m3u-live-events/browser"
	"m3u-live-events/config"
	"m3u-live-events/eventtime"
	"m3u-live-events/governor"
	"m3u-live-events/journal"
	"m3u-live-events/leagues"
	"m3u-live-events/logger"
	"m3u-live-events/metrics"
	"m3u-live-events/model"
	"m3u-live-events/network"
	"m3u-live-events/sources"

	"golang.org/x/sync/errgroup"
)

var ErrNoBrowser = errors.New("no browser could be started")

// Browser is a launched browser that hands out sessions.
type Browser interface {
	browser.SessionFactory
	Close() error
}

type Launcher func(ctx context.Context, kind sources.Kind, cfg *config.Config) (Browser, error)

type Runner struct {
	Config  *config.Config
	Sources []sources.Source
	Launch  Launcher
	// Now fixes the run's reference time; nil uses process start.
	Now func() eventtime.Stamp
	Log logger.Logger
}

func New(cfg *config.Config) *Runner {
	return &Runner{
		Config:  cfg,
		Sources: sources.Enabled(sources.Registry(cfg), cfg.Sources.Enabled),
		Launch:  LaunchChrome,
		Log:     logger.New("runner"),
	}
}

func Run(ctx context.Context, cfg *config.Config) error {
	return New(cfg).Run(ctx)
}

// LaunchChrome starts a local browser for headless sources and attaches to
// the configured DevTools endpoint for external ones.
func LaunchChrome(ctx context.Context, kind sources.Kind, cfg *config.Config) (Browser, error) {
	opts := browser.Options{
		Name:      kind.String(),
		UserAgent: cfg.UserAgent,
	}
	switch kind {
	case sources.Headless:
		opts.Headless = cfg.Browser.Headless
		opts.ExecPath = cfg.Browser.ExecPath
	case sources.External:
		opts.RemoteURL = cfg.Browser.RemoteURL
	default:
		return nil, fmt.Errorf("no browser for kind %s", kind)
	}
	m, err := browser.Launch(ctx, opts)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *Runner) Run(ctx context.Context) error {
	cfg := r.Config
	log := r.Log
	if log == nil {
		log = logger.Default
	}

	log.Logf("%s Scraper Started %s", strings.Repeat("=", 10), strings.Repeat("=", 10))

	log.Log("Fetching base M3U8")
	base, lastChno, err := aggregate.LoadBase(cfg.BasePath())
	if err != nil {
		return err
	}

	j, err := journal.Open(cfg.JournalPath)
	if err != nil {
		log.Warnf("Attempt journal disabled: %v", err)
	}
	defer j.Close()

	matcher, err := browser.NewMatcher(cfg.Capture.Pattern, cfg.Capture.Blocklist)
	if err != nil {
		return fmt.Errorf("capture pattern: %w", err)
	}

	client := network.NewClient(network.Options{
		UserAgent:  cfg.UserAgent,
		Timeout:    cfg.HTTP.Timeout,
		MaxTries:   cfg.HTTP.MaxTries,
		RatePerSec: cfg.HTTP.RatePerSec,
		Burst:      cfg.HTTP.Burst,
	})
	defer client.Close()

	timeouts := sources.DefaultTimeouts()
	setIfPositive(&timeouts.Acquire, cfg.Capture.AcquireTimeout)
	setIfPositive(&timeouts.Navigation, cfg.Capture.NavTimeout)
	setIfPositive(&timeouts.Probe, cfg.Capture.ProbeTimeout)
	setIfPositive(&timeouts.Capture, cfg.Capture.WaitTimeout)

	env := &sources.Env{
		HTTP:     client,
		Pools:    governor.NewPools(cfg.HTTP.Concurrency, cfg.Browser.Concurrency),
		Leagues:  leagues.Load(cfg.LeaguesPath()),
		CacheDir: cfg.CacheDir(),
		Capture:  matcher,
		Timeouts: timeouts,
		Journal:  j,
		Now:      r.Now,
	}

	browsers, runnable, err := r.launch(ctx, env, log)
	if err != nil {
		return err
	}

	results := r.scrape(ctx, env, runnable, log)

	for _, b := range browsers {
		if err := b.Close(); err != nil {
			log.Debugf("Closing browser: %v", err)
		}
	}

	merged := aggregate.Merge(log, results...)
	out, err := aggregate.Render(base, lastChno, merged, cfg.UserAgent, cfg.EPGURL)
	if err != nil {
		return err
	}

	if err := aggregate.WriteFile(cfg.CombinedPath(), out.Combined); err != nil {
		return err
	}
	log.Logf("Base + Events saved to %s", absPath(cfg.CombinedPath()))

	if err := aggregate.WriteFile(cfg.EventsPath(), out.Live); err != nil {
		return err
	}
	log.Logf("Events saved to %s", absPath(cfg.EventsPath()))

	metrics.Channels.WithLabelValues("combined").Set(float64(out.Channels))
	metrics.Channels.WithLabelValues("events").Set(float64(out.Channels))
	metrics.LastRun.Set(float64(time.Now().Unix()))
	if err := metrics.WriteFile(cfg.MetricsFile); err != nil {
		log.Warnf("Writing metrics: %v", err)
	}

	if summary, err := j.Summary(context.WithoutCancel(ctx)); err != nil {
		log.Debugf("%v", err)
	} else if len(summary) > 0 {
		log.Logf("Acquisition attempts: %v", summary)
	}
	return nil
}

// launch starts one browser per kind the sources need. Sources whose browser
// failed to start are skipped; the run only fails when browser sources exist
// and none of their browsers came up.
func (r *Runner) launch(ctx context.Context, env *sources.Env, log logger.Logger) ([]Browser, []sources.Source, error) {
	needed := map[sources.Kind]bool{}
	for _, s := range r.Sources {
		if k := s.Browser(); k != sources.NoBrowser {
			needed[k] = true
		}
	}

	var browsers []Browser
	up := map[sources.Kind]bool{}
	for _, k := range []sources.Kind{sources.Headless, sources.External} {
		if !needed[k] {
			continue
		}
		b, err := r.Launch(ctx, k, r.Config)
		if err != nil {
			log.Errorf("Failed to start %s browser: %v", k, err)
			continue
		}
		browsers = append(browsers, b)
		up[k] = true
		switch k {
		case sources.Headless:
			env.Headless = b
		case sources.External:
			env.External = b
		}
	}

	if len(needed) > 0 && len(up) == 0 {
		return nil, nil, ErrNoBrowser
	}

	var runnable []sources.Source
	for _, s := range r.Sources {
		if k := s.Browser(); k != sources.NoBrowser && !up[k] {
			log.Warnf("Skipping %s: %s browser unavailable", s.Tag(), k)
			continue
		}
		runnable = append(runnable, s)
	}
	return browsers, runnable, nil
}

// scrape runs every source concurrently. A failing or panicking source
// contributes nothing and does not disturb the others. Results keep source
// order.
func (r *Runner) scrape(ctx context.Context, env *sources.Env, list []sources.Source, log logger.Logger) []model.ResultMap {
	results := make([]model.ResultMap, len(list))

	var g errgroup.Group
	for i, s := range list {
		g.Go(func() error {
			defer func() {
				if p := recover(); p != nil {
					log.Errorf("%s: recovered from panic: %v", s.Tag(), p)
				}
			}()

			m, err := s.Scrape(ctx, env)
			if err != nil {
				log.Errorf("%s: %v", s.Tag(), err)
				return nil
			}
			results[i] = m
			metrics.SourceEntries.WithLabelValues(s.Tag()).Set(float64(len(m)))
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func setIfPositive(dst *time.Duration, v time.Duration) {
	if v > 0 {
		*dst = v
	}
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
