// Package collector assembles a billing.Record by walking the portal pages in
// a fixed order and running the matching extractor on each.
//
// Every step is guarded: an error or panic while fetching or extracting one
// page is logged and leaves that part of the record at its zero value. Only
// a failed login aborts a collection.
package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/jmylchreest/aptledger/internal/logger"
	"github.com/jmylchreest/aptledger/pkg/billing"
	"github.com/jmylchreest/aptledger/pkg/fetcher"
	"github.com/jmylchreest/aptledger/pkg/portal"
)

// Config configures a Collector.
type Config struct {
	Credentials portal.Credentials
	Login       portal.LoginOptions

	// BaseURL overrides portal.BaseURL for page loads.
	BaseURL string

	// PageSettle is the pause after each page load; the unit page uses
	// UnitSettle instead.
	PageSettle time.Duration
	UnitSettle time.Duration

	// PageTimeout bounds each page load. Zero means no extra bound.
	PageTimeout time.Duration

	// SnapshotDir, when set, keeps a copy of every page for replay.
	SnapshotDir string
}

// DefaultConfig returns the settle delays the portal needs.
func DefaultConfig() Config {
	return Config{
		Login:      portal.DefaultLoginOptions(),
		BaseURL:    portal.BaseURL,
		PageSettle: 2 * time.Second,
		UnitSettle: time.Second,
	}
}

// Collector runs one collection. It is not safe for concurrent use: the
// portal session behind it holds a single page.
type Collector struct {
	config Config
	now    func() time.Time
}

// Option configures a Collector.
type Option func(*Collector)

// WithClock overrides the clock used for CollectedAt.
func WithClock(now func() time.Time) Option {
	return func(c *Collector) { c.now = now }
}

// New creates a Collector.
func New(cfg Config, opts ...Option) *Collector {
	d := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = d.BaseURL
	}
	if cfg.PageSettle == 0 {
		cfg.PageSettle = d.PageSettle
	}
	if cfg.UnitSettle == 0 {
		cfg.UnitSettle = d.UnitSettle
	}
	if cfg.Login.BaseURL == "" {
		cfg.Login.BaseURL = cfg.BaseURL
	}

	c := &Collector{config: cfg, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect logs in through s and then collects every page over the same
// session. A login failure is returned as is (portal.ErrLoginFailed when
// no session cookie was set).
func (c *Collector) Collect(ctx context.Context, s fetcher.Session) (*Result, error) {
	if err := portal.Login(ctx, s, c.config.Credentials, c.config.Login); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	f := fetcher.NewSession(s, fetcher.SessionConfig{
		Settle:      c.config.PageSettle,
		SnapshotDir: c.config.SnapshotDir,
	})
	defer f.Close()

	return c.CollectFrom(ctx, f)
}

// CollectFrom collects every page from f without logging in. It is used
// directly for replaying saved pages. The only error it returns is ctx's.
func (c *Collector) CollectFrom(ctx context.Context, f fetcher.Fetcher) (*Result, error) {
	rec := &billing.Record{
		CollectedAt:      c.now(),
		MaintenanceItems: []billing.LineItem{},
		EnergyCategories: []billing.EnergyCategory{},
		EnergyDetails:    []billing.EnergyDetail{},
		PaymentHistory:   []billing.PaymentEntry{},
	}
	res := &Result{Record: rec}

	logger.Info("collecting billing pages", "source", f.Type())
	for _, st := range c.steps() {
		if ctx.Err() != nil {
			break
		}
		res.Steps = append(res.Steps, c.run(ctx, f, st, rec)...)
	}

	logger.Info("collection finished",
		"unit", billing.UnitLabel(rec.UnitID),
		"line_items", len(rec.MaintenanceItems),
		"energy", len(rec.EnergyCategories),
		"history", len(rec.PaymentHistory),
		"failed_steps", res.Failed())
	return res, ctx.Err()
}

// run loads one page and applies each of its extractions. A failed load
// fails every extraction of that page.
func (c *Collector) run(ctx context.Context, f fetcher.Fetcher, st step, rec *billing.Record) []StepResult {
	log := logger.With("component", "collector", "page", st.page.Name)
	start := time.Now()

	var content fetcher.Content
	loadErr := guard(func() error {
		var err error
		content, err = f.Fetch(ctx, st.page.URL(c.config.BaseURL), fetcher.Options{
			Page:         st.page.Name,
			Timeout:      c.config.PageTimeout,
			WaitDuration: st.settle,
		})
		return err
	})

	results := make([]StepResult, 0, len(st.extractions))
	for _, ex := range st.extractions {
		r := StepResult{Name: ex.name, Page: st.page.Name}
		if loadErr != nil {
			r.Err = fmt.Errorf("load %s: %w", st.page.Name, loadErr)
		} else {
			r.Err = guard(func() error { return ex.apply(content.HTML, rec) })
		}
		r.Duration = time.Since(start)

		if r.Err != nil {
			log.Warn("step failed, leaving field empty", "step", ex.name, "error", r.Err)
		} else {
			log.Debug("step complete", "step", ex.name, "duration", r.Duration)
		}
		results = append(results, r)
	}
	return results
}

// guard runs fn and converts a panic into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn()
}
