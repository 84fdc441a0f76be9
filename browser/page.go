package browser

import (
	"context"
	"errors"
	"time"

	"m3u-live-events/logger"
)

var ErrClosed = errors.New("browser: closed")

// Page is a single tab. OnRequest listeners receive every outgoing request
// URL; the returned func removes the listener and is safe to call twice.
type Page interface {
	OnRequest(fn func(url string)) (remove func())
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	// ClickFirst clicks the first element matching selector if one shows up
	// within timeout. A missing element is (false, nil).
	ClickFirst(ctx context.Context, selector string, timeout time.Duration) (bool, error)
	Text(ctx context.Context, selector string, timeout time.Duration) (string, error)
	Close() error
}

// Session is an isolated browser context owned by a single task.
type Session interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

type SessionFactory interface {
	OpenSession(ctx context.Context, opts SessionOptions) (Session, error)
}

type SessionOptions struct {
	Stealth           bool
	IgnoreHTTPSErrors bool
}

// WithSession opens a session, hands it to fn and closes it however fn
// returns, including on panic and cancellation.
func WithSession(ctx context.Context, f SessionFactory, opts SessionOptions, fn func(Session) error) error {
	if f == nil {
		return ErrClosed
	}
	sess, err := f.OpenSession(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logger.Default.Debugf("Closing session: %v", err)
		}
	}()
	return fn(sess)
}

// WithPage is WithSession for a tab.
func WithPage(ctx context.Context, s Session, fn func(Page) error) error {
	p, err := s.NewPage(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := p.Close(); err != nil {
			logger.Default.Debugf("Closing page: %v", err)
		}
	}()
	return fn(p)
}
