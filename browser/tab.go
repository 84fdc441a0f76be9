package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// Tab is the chromedp-backed Page.
type Tab struct {
	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

// bind derives a context that runs actions on the tab but ends when either
// the caller's ctx ends or timeout elapses. Ending it does not close the tab.
func (t *Tab) bind(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	var runCtx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(t.ctx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(t.ctx)
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (t *Tab) OnRequest(fn func(url string)) func() {
	lctx, cancel := context.WithCancel(t.ctx)
	chromedp.ListenTarget(lctx, func(ev any) {
		if e, ok := ev.(*network.EventRequestWillBeSent); ok && e.Request != nil {
			fn(e.Request.URL)
		}
	})
	return cancel
}

// Navigate returns once the document has been parsed (DOMContentLoaded);
// subresources may still be loading.
func (t *Tab) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	runCtx, cancel := t.bind(ctx, timeout)
	defer cancel()

	parsed := make(chan struct{})
	var once sync.Once
	lctx, stopListening := context.WithCancel(runCtx)
	defer stopListening()
	chromedp.ListenTarget(lctx, func(ev any) {
		if _, ok := ev.(*page.EventDomContentEventFired); ok {
			once.Do(func() { close(parsed) })
		}
	})

	err := chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var res page.NavigateReturns
		if err := cdp.Execute(ctx, page.CommandNavigate, page.Navigate(url), &res); err != nil {
			return err
		}
		if res.ErrorText != "" {
			return errors.New(res.ErrorText)
		}
		return nil
	}))
	if err != nil {
		return fmt.Errorf("navigate: %w", err)
	}

	select {
	case <-parsed:
		return nil
	case <-runCtx.Done():
		return fmt.Errorf("navigate: %w", runCtx.Err())
	}
}

// ClickFirst accepts a CSS selector, or an XPath expression when selector
// starts with "/".
func (t *Tab) ClickFirst(ctx context.Context, selector string, timeout time.Duration) (bool, error) {
	runCtx, cancel := t.bind(ctx, timeout)
	defer cancel()

	by := chromedp.ByQuery
	if strings.HasPrefix(selector, "/") {
		by = chromedp.BySearch
	}

	err := chromedp.Run(runCtx,
		chromedp.WaitVisible(selector, by, chromedp.AtLeast(1)),
		chromedp.Click(selector, by, chromedp.NodeVisible),
	)
	switch {
	case err == nil:
		return true, nil
	case ctx.Err() != nil:
		return false, ctx.Err()
	case errors.Is(err, context.DeadlineExceeded):
		return false, nil
	default:
		return false, fmt.Errorf("click %q: %w", selector, err)
	}
}

func (t *Tab) Text(ctx context.Context, selector string, timeout time.Duration) (string, error) {
	runCtx, cancel := t.bind(ctx, timeout)
	defer cancel()

	var text string
	if err := chromedp.Run(runCtx, chromedp.Text(selector, &text, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read %q: %w", selector, err)
	}
	return text, nil
}

func (t *Tab) Close() error {
	t.closeOnce.Do(func() {
		t.closeErr = chromedp.Cancel(t.ctx)
		t.cancel()
	})
	return t.closeErr
}
