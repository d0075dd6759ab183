// Package cdp adapts Chrome, driven over the DevTools protocol by chromedp,
// to the browser capability interfaces.
package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/chromedp/chromedp"

	"github.com/roach88/rwaverify/internal/browser"
)

// Config selects how Chrome is reached.
type Config struct {
	// RemoteURL connects to an already running Chrome (ws:// or http://
	// DevTools endpoint). Empty launches a local Chrome.
	RemoteURL string

	Headless bool
	Width    int
	Height   int

	Logger *slog.Logger
}

// Browser is a running Chrome instance.
type Browser struct {
	root       context.Context
	cancelRoot context.CancelFunc
	cancelAll  context.CancelFunc
	logger     *slog.Logger
}

var _ browser.Browser = (*Browser)(nil)

// Launch starts (or connects to) Chrome and returns a Browser that creates
// one incognito browser context per actor session.
func Launch(ctx context.Context, cfg Config) (*Browser, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var alloc context.Context
	var cancelAlloc context.CancelFunc
	if cfg.RemoteURL != "" {
		alloc, cancelAlloc = chromedp.NewRemoteAllocator(ctx, cfg.RemoteURL)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", cfg.Headless),
		)
		if cfg.Width > 0 && cfg.Height > 0 {
			opts = append(opts, chromedp.WindowSize(cfg.Width, cfg.Height))
		}
		alloc, cancelAlloc = chromedp.NewExecAllocator(ctx, opts...)
	}

	root, cancelRoot := chromedp.NewContext(alloc,
		chromedp.WithErrorf(func(format string, args ...any) {
			logger.Error(fmt.Sprintf(format, args...))
		}),
		chromedp.WithLogf(func(format string, args ...any) {
			logger.Debug(fmt.Sprintf(format, args...))
		}),
	)
	// the first Run starts the browser
	if err := chromedp.Run(root); err != nil {
		cancelRoot()
		cancelAlloc()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	return &Browser{root: root, cancelRoot: cancelRoot, cancelAll: cancelAlloc, logger: logger}, nil
}

// NewContext opens an isolated browser context.
func (b *Browser) NewContext(ctx context.Context) (browser.Context, error) {
	tab, cancel := chromedp.NewContext(b.root, chromedp.WithNewBrowserContext())
	if err := run(ctx, tab); err != nil {
		cancel()
		return nil, fmt.Errorf("open browser context: %w", err)
	}
	return &Context{first: tab, cancel: cancel}, nil
}

// Close shuts Chrome down.
func (b *Browser) Close() error {
	b.cancelRoot()
	b.cancelAll()
	return nil
}

// Context is one incognito browser context.
type Context struct {
	mu      sync.Mutex
	first   context.Context
	used    bool
	cancel  context.CancelFunc
	cancels []context.CancelFunc
}

var _ browser.Context = (*Context)(nil)

// NewPage returns the context's initial tab, then new tabs in the same
// context on subsequent calls.
func (c *Context) NewPage(ctx context.Context) (browser.Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.used {
		c.used = true
		return &Page{tab: c.first}, nil
	}
	tab, cancel := chromedp.NewContext(c.first)
	if err := run(ctx, tab); err != nil {
		cancel()
		return nil, fmt.Errorf("open tab: %w", err)
	}
	c.cancels = append(c.cancels, cancel)
	return &Page{tab: tab}, nil
}

// Close closes every tab and the browser context.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cancel := range c.cancels {
		cancel()
	}
	c.cancel()
	return nil
}

// Page is one Chrome tab.
type Page struct {
	tab context.Context
}

var _ browser.Page = (*Page)(nil)

// run executes actions on tab, bounded by the caller's ctx.
func run(ctx context.Context, tab context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(tab)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

// js quotes a selector for embedding in a script.
func js(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	return run(ctx, p.tab, chromedp.Navigate(url))
}

func (p *Page) Reload(ctx context.Context) error {
	return run(ctx, p.tab, chromedp.Reload())
}

func (p *Page) URL(ctx context.Context) (string, error) {
	var url string
	err := run(ctx, p.tab, chromedp.Location(&url))
	return url, err
}

func (p *Page) Title(ctx context.Context) (string, error) {
	var title string
	err := run(ctx, p.tab, chromedp.Title(&title))
	return title, err
}

func (p *Page) Count(ctx context.Context, sel string) (int, error) {
	var n int
	err := run(ctx, p.tab, chromedp.Evaluate(
		fmt.Sprintf(`document.querySelectorAll(%s).length`, js(sel)), &n))
	return n, err
}

func (p *Page) Texts(ctx context.Context, sel string) ([]string, error) {
	var texts []string
	err := run(ctx, p.tab, chromedp.Evaluate(
		fmt.Sprintf(`Array.from(document.querySelectorAll(%s)).map(e => e.innerText)`, js(sel)), &texts))
	return texts, err
}

func (p *Page) Attribute(ctx context.Context, sel, name string) (string, bool, error) {
	var res struct {
		Found bool    `json:"found"`
		Value *string `json:"value"`
	}
	err := run(ctx, p.tab, chromedp.Evaluate(fmt.Sprintf(
		`(() => { const e = document.querySelector(%s); return e ? {found: true, value: e.getAttribute(%s)} : {found: false, value: null}; })()`,
		js(sel), js(name)), &res))
	if err != nil {
		return "", false, err
	}
	if !res.Found {
		return "", false, browser.ErrNotFound
	}
	if res.Value == nil {
		return "", false, nil
	}
	return *res.Value, true, nil
}

func (p *Page) Value(ctx context.Context, sel string) (string, error) {
	var res *string
	err := run(ctx, p.tab, chromedp.Evaluate(fmt.Sprintf(
		`(() => { const e = document.querySelector(%s); return e ? String(e.value ?? "") : null; })()`, js(sel)), &res))
	if err != nil {
		return "", err
	}
	if res == nil {
		return "", browser.ErrNotFound
	}
	return *res, nil
}

func (p *Page) Enabled(ctx context.Context, sel string) (bool, error) {
	var res *bool
	err := run(ctx, p.tab, chromedp.Evaluate(fmt.Sprintf(
		`(() => { const e = document.querySelector(%s); return e ? !e.disabled && e.getAttribute("aria-disabled") !== "true" : null; })()`, js(sel)), &res))
	if err != nil {
		return false, err
	}
	if res == nil {
		return false, browser.ErrNotFound
	}
	return *res, nil
}

func (p *Page) Fill(ctx context.Context, sel, value string) error {
	actions := []chromedp.Action{chromedp.Clear(sel, chromedp.ByQuery)}
	if value != "" {
		actions = append(actions, chromedp.SendKeys(sel, value, chromedp.ByQuery))
	}
	return run(ctx, p.tab, actions...)
}

func (p *Page) Blur(ctx context.Context, sel string) error {
	return run(ctx, p.tab, chromedp.Blur(sel, chromedp.ByQuery))
}

func (p *Page) Click(ctx context.Context, sel string) error {
	return run(ctx, p.tab, chromedp.Click(sel, chromedp.ByQuery, chromedp.NodeVisible))
}
