// Package browsertest provides in-memory browser sessions for tests.
package browsertest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"m3u-live-events/browser"
)

// Script describes what a fake page does when navigated to a URL.
type Script struct {
	// Requests are emitted in order after navigation, each after Delay.
	Requests []string
	Delay    time.Duration
	// AfterClick requests are emitted only once the trigger is clicked.
	AfterClick []string
	// Trigger is the selector that exists on the page; "" means none.
	Trigger string
	// NavErr fails navigation; NavBlock makes navigation hang until ctx ends.
	NavErr   error
	NavBlock bool
	// Text is returned for any selector.
	Text string
}

type Page struct {
	script Script
	pick   func(url string) Script

	mu        sync.Mutex
	listeners map[int]func(string)
	nextID    int

	Navigated  atomic.Int32
	Clicked    atomic.Int32
	CloseCalls atomic.Int32
	wg         sync.WaitGroup
}

func NewPage(s Script) *Page {
	return &Page{script: s, listeners: map[int]func(string){}}
}

func (p *Page) OnRequest(fn func(string)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// Listeners reports how many request listeners are registered.
func (p *Page) Listeners() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.listeners)
}

// Emit delivers url to every registered listener.
func (p *Page) Emit(url string) {
	p.mu.Lock()
	fns := make([]func(string), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(url)
	}
}

func (p *Page) emitAll(ctx context.Context, urls []string) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for _, u := range urls {
			if p.script.Delay > 0 {
				select {
				case <-time.After(p.script.Delay):
				case <-ctx.Done():
					return
				}
			}
			p.Emit(u)
		}
	}()
}

func (p *Page) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	p.Navigated.Add(1)
	if p.pick != nil {
		p.script = p.pick(url)
	}
	if p.script.NavBlock {
		t := time.NewTimer(timeout)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			return context.DeadlineExceeded
		}
	}
	if p.script.NavErr != nil {
		return p.script.NavErr
	}
	p.emitAll(ctx, p.script.Requests)
	return nil
}

func (p *Page) ClickFirst(ctx context.Context, selector string, timeout time.Duration) (bool, error) {
	if p.script.Trigger == "" || p.script.Trigger != selector {
		return false, nil
	}
	p.Clicked.Add(1)
	p.emitAll(ctx, p.script.AfterClick)
	return true, nil
}

func (p *Page) Text(ctx context.Context, selector string, timeout time.Duration) (string, error) {
	return p.script.Text, nil
}

func (p *Page) Close() error {
	p.CloseCalls.Add(1)
	p.wg.Wait()
	return nil
}

type Session struct {
	factory    *Factory
	CloseCalls atomic.Int32
	pages      []*Page
	mu         sync.Mutex
}

func (s *Session) NewPage(ctx context.Context) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := NewPage(s.factory.Script)
	p.pick = s.factory.ScriptFor
	s.mu.Lock()
	s.pages = append(s.pages, p)
	s.mu.Unlock()
	return p, nil
}

func (s *Session) Pages() []*Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Page(nil), s.pages...)
}

func (s *Session) Close() error {
	s.CloseCalls.Add(1)
	return nil
}

// Factory hands out fake sessions whose pages follow Script. ScriptFor,
// when set, picks the script by URL at navigation time instead.
type Factory struct {
	Script    Script
	ScriptFor func(url string) Script

	mu       sync.Mutex
	sessions []*Session
	options  []browser.SessionOptions
}

func (f *Factory) OpenSession(ctx context.Context, opts browser.SessionOptions) (browser.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := &Session{factory: f}
	f.mu.Lock()
	f.sessions = append(f.sessions, s)
	f.options = append(f.options, opts)
	f.mu.Unlock()
	return s, nil
}

func (f *Factory) Sessions() []*Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Session(nil), f.sessions...)
}

func (f *Factory) Options() []browser.SessionOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]browser.SessionOptions(nil), f.options...)
}

// Balanced reports whether every session and page was closed exactly once.
func (f *Factory) Balanced() bool {
	for _, s := range f.Sessions() {
		if s.CloseCalls.Load() != 1 {
			return false
		}
		for _, p := range s.Pages() {
			if p.CloseCalls.Load() != 1 {
				return false
			}
		}
	}
	return true
}
