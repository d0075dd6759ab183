package browser

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/rwaverify/internal/money"
)

// Options configures a UI.
type Options struct {
	// ActionTimeout bounds every single interaction (click, fill, navigate).
	ActionTimeout time.Duration

	// Expect is used for every expectation and for waiting on elements
	// before interacting with them.
	Expect Poller

	Logger *slog.Logger
}

// DefaultOptions returns the timeouts the application suite runs with.
func DefaultOptions() Options {
	return Options{
		ActionTimeout: 30 * time.Second,
		Expect:        DefaultPoller(),
	}
}

// UI wraps a Page with waiting, expectations and typed reads. Drivers
// embed one UI per page they are bound to.
type UI struct {
	page   Page
	action time.Duration
	expect Poller
	logger *slog.Logger
}

// NewUI binds a UI to a page.
func NewUI(page Page, opts Options) *UI {
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = DefaultOptions().ActionTimeout
	}
	if opts.Expect.Timeout <= 0 {
		opts.Expect = DefaultPoller()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &UI{page: page, action: opts.ActionTimeout, expect: opts.Expect, logger: logger}
}

// Page returns the underlying page.
func (u *UI) Page() Page {
	return u.page
}

func (u *UI) act(ctx context.Context, what string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, u.action)
	defer cancel()
	if err := fn(ctx); err != nil {
		if ctx.Err() != nil {
			return &TimeoutError{Condition: what, After: u.action}
		}
		return fmt.Errorf("%s: %w", what, err)
	}
	return nil
}

// Navigate opens url.
func (u *UI) Navigate(ctx context.Context, url string) error {
	u.logger.Debug("navigate", "url", url)
	return u.act(ctx, "navigate to "+url, func(ctx context.Context) error {
		return u.page.Navigate(ctx, url)
	})
}

// Reload reloads the current page.
func (u *UI) Reload(ctx context.Context) error {
	return u.act(ctx, "reload", u.page.Reload)
}

// Until polls cond with the expectation poller.
func (u *UI) Until(ctx context.Context, what string, cond Condition) error {
	return u.expect.Until(ctx, what, cond)
}

// waitPresent waits until at least one element matches.
func (u *UI) waitPresent(ctx context.Context, sel string) error {
	return u.expect.Until(ctx, sel+" present", func(ctx context.Context) (bool, string, error) {
		n, err := u.page.Count(ctx, sel)
		return n > 0, fmt.Sprintf("%d matches", n), err
	})
}

// Click waits for the element to be present and enabled, then clicks it.
func (u *UI) Click(ctx context.Context, sel string) error {
	if err := u.ExpectEnabled(ctx, sel); err != nil {
		return err
	}
	u.logger.Debug("click", "selector", sel)
	return u.act(ctx, "click "+sel, func(ctx context.Context) error {
		return u.page.Click(ctx, sel)
	})
}

// Fill waits for the input and replaces its value.
func (u *UI) Fill(ctx context.Context, sel, value string) error {
	if err := u.waitPresent(ctx, sel); err != nil {
		return err
	}
	return u.act(ctx, "fill "+sel, func(ctx context.Context) error {
		return u.page.Fill(ctx, sel, value)
	})
}

// FillAndVerify fills an input and waits until it reports the value.
func (u *UI) FillAndVerify(ctx context.Context, sel, value string) error {
	if err := u.Fill(ctx, sel, value); err != nil {
		return err
	}
	return u.ExpectValue(ctx, sel, value)
}

// Blur removes focus from the element, triggering field validation.
func (u *UI) Blur(ctx context.Context, sel string) error {
	return u.act(ctx, "blur "+sel, func(ctx context.Context) error {
		return u.page.Blur(ctx, sel)
	})
}

func (u *UI) firstText(ctx context.Context, sel string) (string, error) {
	texts, err := u.page.Texts(ctx, sel)
	if err != nil {
		return "", err
	}
	if len(texts) == 0 {
		return "", ErrNotFound
	}
	return strings.TrimSpace(texts[0]), nil
}

// ExpectText waits until the first match's text equals want.
func (u *UI) ExpectText(ctx context.Context, sel, want string) error {
	return u.expect.Until(ctx, fmt.Sprintf("text of %s == %q", sel, want), func(ctx context.Context) (bool, string, error) {
		got, err := u.firstText(ctx, sel)
		return got == want, fmt.Sprintf("%q", got), err
	})
}

// ExpectTextContains waits until the first match's text contains want.
func (u *UI) ExpectTextContains(ctx context.Context, sel, want string) error {
	return u.expect.Until(ctx, fmt.Sprintf("text of %s contains %q", sel, want), func(ctx context.Context) (bool, string, error) {
		got, err := u.firstText(ctx, sel)
		return strings.Contains(got, want), fmt.Sprintf("%q", got), err
	})
}

// ExpectValue waits until the input's value equals want.
func (u *UI) ExpectValue(ctx context.Context, sel, want string) error {
	return u.expect.Until(ctx, fmt.Sprintf("value of %s == %q", sel, want), func(ctx context.Context) (bool, string, error) {
		got, err := u.page.Value(ctx, sel)
		return got == want, fmt.Sprintf("%q", got), err
	})
}

// ExpectCount waits until exactly n elements match.
func (u *UI) ExpectCount(ctx context.Context, sel string, n int) error {
	return u.expect.Until(ctx, fmt.Sprintf("%d matches of %s", n, sel), func(ctx context.Context) (bool, string, error) {
		got, err := u.page.Count(ctx, sel)
		return got == n, fmt.Sprintf("%d matches", got), err
	})
}

// ExpectVisible waits until at least one element matches.
func (u *UI) ExpectVisible(ctx context.Context, sel string) error {
	return u.waitPresent(ctx, sel)
}

// ExpectAttribute waits until the attribute of the first match equals want.
func (u *UI) ExpectAttribute(ctx context.Context, sel, name, want string) error {
	return u.expect.Until(ctx, fmt.Sprintf("%s[%s] == %q", sel, name, want), func(ctx context.Context) (bool, string, error) {
		got, ok, err := u.page.Attribute(ctx, sel, name)
		if !ok {
			return false, "attribute absent", err
		}
		return got == want, fmt.Sprintf("%q", got), err
	})
}

// ExpectEnabled waits until the element is present and enabled.
func (u *UI) ExpectEnabled(ctx context.Context, sel string) error {
	return u.expectEnabled(ctx, sel, true)
}

// ExpectDisabled waits until the element is present and disabled.
func (u *UI) ExpectDisabled(ctx context.Context, sel string) error {
	return u.expectEnabled(ctx, sel, false)
}

func (u *UI) expectEnabled(ctx context.Context, sel string, want bool) error {
	state := "enabled"
	if !want {
		state = "disabled"
	}
	return u.expect.Until(ctx, sel+" "+state, func(ctx context.Context) (bool, string, error) {
		got, err := u.page.Enabled(ctx, sel)
		if err != nil {
			return false, "", err
		}
		if got {
			return want, "enabled", nil
		}
		return !want, "disabled", nil
	})
}

// ExpectURLContains waits until the current URL contains fragment.
func (u *UI) ExpectURLContains(ctx context.Context, fragment string) error {
	return u.expect.Until(ctx, fmt.Sprintf("url contains %q", fragment), func(ctx context.Context) (bool, string, error) {
		got, err := u.page.URL(ctx)
		return strings.Contains(got, fragment), got, err
	})
}

// ExpectTitle waits until the document title equals want.
func (u *UI) ExpectTitle(ctx context.Context, want string) error {
	return u.expect.Until(ctx, fmt.Sprintf("title == %q", want), func(ctx context.Context) (bool, string, error) {
		got, err := u.page.Title(ctx)
		return got == want, fmt.Sprintf("%q", got), err
	})
}

// ReadText waits for the element and returns its trimmed text.
func (u *UI) ReadText(ctx context.Context, sel string) (string, error) {
	if err := u.waitPresent(ctx, sel); err != nil {
		return "", err
	}
	text, err := u.firstText(ctx, sel)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", sel, err)
	}
	return text, nil
}

// ReadTexts returns the trimmed text of every match without waiting.
func (u *UI) ReadTexts(ctx context.Context, sel string) ([]string, error) {
	texts, err := u.page.Texts(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", sel, err)
	}
	for i := range texts {
		texts[i] = strings.TrimSpace(texts[i])
	}
	return texts, nil
}

// Count returns the number of matches without waiting.
func (u *UI) Count(ctx context.Context, sel string) (int, error) {
	return u.page.Count(ctx, sel)
}

// ReadAmount reads a currency display and parses it.
func (u *UI) ReadAmount(ctx context.Context, sel string) (int64, error) {
	text, err := u.ReadText(ctx, sel)
	if err != nil {
		return 0, err
	}
	n, err := money.ParseAmount(text)
	if err != nil {
		return 0, fmt.Errorf("read amount %s: %w", sel, err)
	}
	return n, nil
}
