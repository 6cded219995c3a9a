// Package fetcher defines how portal pages are obtained. A live browser
// Session drives the portal; a Fetcher returns page HTML either through that
// session or from a directory of previously saved pages.
package fetcher

import (
	"context"
	"errors"
	"time"
)

// Fetcher abstracts page fetching strategies.
type Fetcher interface {
	// Fetch retrieves page content from a URL.
	Fetch(ctx context.Context, url string, opts Options) (Content, error)

	// Close releases any resources (browser instances, etc.).
	Close() error

	// Type returns a string identifying the fetcher type (e.g., "session", "replay").
	Type() string
}

// Options controls fetching behavior.
type Options struct {
	// Page is the stable template name of the page, e.g. "cost". It names
	// snapshot files and selects the file a replay fetcher serves.
	Page string

	Timeout      time.Duration
	WaitDuration time.Duration // Additional settle time after load
}

// Cookie represents a browser cookie.
type Cookie struct {
	Name   string
	Value  string
	Domain string
}

// Content represents fetched page data.
type Content struct {
	URL        string
	Page       string
	HTML       string
	Title      string
	StatusCode int
	FetchedAt  time.Time
}

// Session is a single browser page driven step by step. Implementations own
// the page for their whole lifetime; Close tears it down.
type Session interface {
	// Navigate loads url and waits for network activity to settle.
	Navigate(ctx context.Context, url string) error

	// Evaluate runs a fixed script in the page and decodes its result into
	// res, which may be nil. Scripts must not embed user data.
	Evaluate(ctx context.Context, script string, res any) error

	// FillField types value into the input matched by selector.
	FillField(ctx context.Context, selector, value string) error

	// SetFieldValue assigns value to the input matched by selector without
	// keyboard events, for inputs that are not interactable.
	SetFieldValue(ctx context.Context, selector, value string) error

	// SetVisible shows or hides every element matched by selector.
	SetVisible(ctx context.Context, selector string, visible bool) error

	// WaitForNetworkIdle blocks until the page has no outstanding requests.
	WaitForNetworkIdle(ctx context.Context) error

	// Cookies returns the cookies visible to the current page.
	Cookies(ctx context.Context) ([]Cookie, error)

	// HTML returns the serialized document of the current page.
	HTML(ctx context.Context) (string, error)

	Close() error
}

// Error types for distinguishing failure reasons.
var (
	// ErrPageNotFound indicates the requested page has no saved copy or
	// the server answered 404.
	ErrPageNotFound = errors.New("page not found")
	// ErrEmptyPage indicates the page loaded but returned no document.
	ErrEmptyPage = errors.New("empty page")
)

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
