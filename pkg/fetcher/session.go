package fetcher

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/aptledger/internal/logger"
)

// SessionConfig holds configuration for the session fetcher.
type SessionConfig struct {
	// Settle is the pause after navigation for scripts that render the
	// page client-side.
	Settle time.Duration

	// SnapshotDir, when set, receives a copy of every fetched page as
	// "<page>.html" so the run can be replayed later.
	SnapshotDir string
}

// DefaultSessionConfig returns sensible defaults.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Settle: 2 * time.Second,
	}
}

// SessionFetcher loads pages through a logged-in browser Session, one at a
// time. It implements the Fetcher interface but does not own the session.
type SessionFetcher struct {
	session Session
	config  SessionConfig
}

// NewSession creates a fetcher that navigates s.
func NewSession(s Session, cfg SessionConfig) *SessionFetcher {
	return &SessionFetcher{session: s, config: cfg}
}

// Fetch navigates to url, waits for the page to settle and returns its HTML.
func (f *SessionFetcher) Fetch(ctx context.Context, url string, opts Options) (Content, error) {
	result := Content{
		URL:  url,
		Page: opts.Page,
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	logger.Debug("session fetch starting", "page", opts.Page, "url", url)
	if err := f.session.Navigate(ctx, url); err != nil {
		return result, fmt.Errorf("navigate %s: %w", url, err)
	}

	settle := f.config.Settle
	if opts.WaitDuration > 0 {
		settle = opts.WaitDuration
	}
	if err := Sleep(ctx, settle); err != nil {
		return result, err
	}

	html, err := f.session.HTML(ctx)
	if err != nil {
		return result, fmt.Errorf("read %s: %w", url, err)
	}
	if strings.TrimSpace(html) == "" {
		return result, fmt.Errorf("read %s: %w", url, ErrEmptyPage)
	}

	result.HTML = html
	result.Title = pageTitle(html)
	result.FetchedAt = time.Now()
	logger.Debug("session fetch complete",
		"page", opts.Page,
		"title", result.Title,
		"size", humanize.Bytes(uint64(len(html))))

	if f.config.SnapshotDir != "" && opts.Page != "" {
		f.snapshot(opts.Page, html)
	}
	return result, nil
}

// snapshot is best-effort: a failed write is logged and the fetch succeeds.
func (f *SessionFetcher) snapshot(page, html string) {
	if err := os.MkdirAll(f.config.SnapshotDir, 0o755); err != nil {
		logger.Warn("snapshot dir unavailable", "dir", f.config.SnapshotDir, "error", err)
		return
	}
	path := SnapshotPath(f.config.SnapshotDir, page)
	if err := os.WriteFile(path, []byte(html), 0o600); err != nil {
		logger.Warn("snapshot write failed", "path", path, "error", err)
		return
	}
	logger.Debug("snapshot saved", "path", path)
}

// Close does nothing; the session is closed by its owner.
func (f *SessionFetcher) Close() error {
	return nil
}

// Type returns the fetcher type.
func (f *SessionFetcher) Type() string {
	return "session"
}
