// Package browser defines the capability boundary between the page drivers
// and whatever actually renders the application.
//
// Drivers never talk to a browser directly. They use a Page (navigate,
// read, fill, click) wrapped in a UI, which adds bounded polling and
// timeouts. Adapters live in subpackages (cdp for Chrome) and in the
// simulator used by tests.
package browser

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Page reads when no element matches the
// selector.
var ErrNotFound = errors.New("element not found")

// Page is one browser tab. Selectors are CSS selectors. Reads that take a
// selector operate on the first match unless they return a slice.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	URL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)

	Count(ctx context.Context, selector string) (int, error)
	Texts(ctx context.Context, selector string) ([]string, error)
	Attribute(ctx context.Context, selector, name string) (value string, ok bool, err error)
	Value(ctx context.Context, selector string) (string, error)
	Enabled(ctx context.Context, selector string) (bool, error)

	Fill(ctx context.Context, selector, value string) error
	Blur(ctx context.Context, selector string) error
	Click(ctx context.Context, selector string) error
}

// Context is an isolated browser context (its own cookies and storage).
// Every actor session gets one.
type Context interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Browser creates isolated contexts.
type Browser interface {
	NewContext(ctx context.Context) (Context, error)
	Close() error
}
