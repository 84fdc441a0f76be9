// Package browser drives Chromium over the DevTools protocol. A Manager owns
// one browser (launched locally or reached remotely); sessions are isolated
// browser contexts inside it, and pages are tabs inside a session.
package browser

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"m3u-live-events/logger"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
)

type Options struct {
	// Name is used in logs, e.g. "headless" or "external".
	Name string
	// RemoteURL selects a running browser's DevTools endpoint instead of
	// launching one, e.g. "http://localhost:9222".
	RemoteURL string
	ExecPath  string
	Headless  bool
	UserAgent string
}

type Manager struct {
	name      string
	userAgent string
	log       logger.Logger

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	sessions  sync.WaitGroup
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func Launch(ctx context.Context, opts Options) (*Manager, error) {
	log := logger.New("browser")

	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if opts.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, opts.RemoteURL)
	} else {
		execOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
		execOpts = append(execOpts,
			chromedp.Flag("headless", opts.Headless),
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
			chromedp.WindowSize(1366, 768),
		)
		if opts.ExecPath != "" {
			execOpts = append(execOpts, chromedp.ExecPath(opts.ExecPath))
		}
		if opts.UserAgent != "" {
			execOpts = append(execOpts, chromedp.UserAgent(opts.UserAgent))
		}
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, execOpts...)
	}

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start %s browser: %w", opts.Name, err)
	}

	log.Logf("Browser %q ready", opts.Name)
	return &Manager{
		name:          opts.Name,
		userAgent:     opts.UserAgent,
		log:           log,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

func (m *Manager) Name() string { return m.name }

// OpenSession creates an isolated browser context. Geolocation is granted
// up front so permission prompts never block a capture.
func (m *Manager) OpenSession(ctx context.Context, opts SessionOptions) (Session, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sctx, cancel := chromedp.NewContext(m.browserCtx, chromedp.WithNewBrowserContext())
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(sctx); err != nil {
		cancel()
		return nil, fmt.Errorf("open session: %w", err)
	}

	if c := chromedp.FromContext(sctx); c != nil && c.Browser != nil && c.BrowserContextID != "" {
		grant := cdpbrowser.GrantPermissions([]cdpbrowser.PermissionType{cdpbrowser.PermissionTypeGeolocation}).
			WithBrowserContextID(c.BrowserContextID)
		if err := grant.Do(cdp.WithExecutor(sctx, c.Browser)); err != nil {
			m.log.Debugf("Granting geolocation: %v", err)
		}
	}

	m.sessions.Add(1)
	return &chromeSession{
		manager: m,
		ctx:     sctx,
		cancel:  cancel,
		profile: NewProfile(m.userAgent, opts),
	}, nil
}

// Close waits for open sessions to be released, then shuts the browser or
// the remote connection down. Repeated calls return the first result.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		m.closed.Store(true)
		m.sessions.Wait()
		m.closeErr = chromedp.Cancel(m.browserCtx)
		m.browserCancel()
		m.allocCancel()
		m.log.Debugf("Browser %q closed", m.name)
	})
	return m.closeErr
}

type chromeSession struct {
	manager *Manager
	ctx     context.Context
	cancel  context.CancelFunc
	profile Profile

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func (s *chromeSession) NewPage(ctx context.Context) (Page, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tctx, cancel := chromedp.NewContext(s.ctx)
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(tctx, s.profile.Actions()...); err != nil {
		cancel()
		return nil, fmt.Errorf("prepare page: %w", err)
	}
	return &Tab{ctx: tctx, cancel: cancel}, nil
}

func (s *chromeSession) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.closeErr = chromedp.Cancel(s.ctx)
		s.cancel()
		s.manager.sessions.Done()
	})
	return s.closeErr
}
