package commands

import (
	"context"
	"fmt"

	"github.com/jmylchreest/aptledger/cmd/aptledger/fetcher"
	"github.com/jmylchreest/aptledger/internal/config"
	"github.com/jmylchreest/aptledger/internal/logger"
	"github.com/jmylchreest/aptledger/pkg/collector"
	pagefetcher "github.com/jmylchreest/aptledger/pkg/fetcher"
	"github.com/jmylchreest/aptledger/pkg/portal"
)

// collectOptions select where pages come from.
type collectOptions struct {
	// ReplayDir replays saved pages instead of logging in.
	ReplayDir string
	// SnapshotDir keeps a copy of every live page.
	SnapshotDir string
}

func collectorConfig(cfg *config.Config, snapshotDir string) collector.Config {
	return collector.Config{
		Credentials: portal.Credentials{ID: cfg.Apti.UserID, Password: cfg.Apti.Password},
		Login: portal.LoginOptions{
			BaseURL:        cfg.Apti.BaseURL,
			SessionCookies: cfg.Apti.SessionCookies,
		},
		BaseURL:     cfg.Apti.BaseURL,
		PageTimeout: cfg.Browser.Timeout,
		SnapshotDir: snapshotDir,
	}
}

// collect runs one collection, live through Chrome or from a replay
// directory, and warns about any record fields that failed validation.
func collect(ctx context.Context, cfg *config.Config, opts collectOptions) (*collector.Result, error) {
	c := collector.New(collectorConfig(cfg, opts.SnapshotDir))

	var (
		res *collector.Result
		err error
	)
	if opts.ReplayDir != "" {
		f, ferr := pagefetcher.NewReplay(pagefetcher.ReplayConfig{Dir: opts.ReplayDir})
		if ferr != nil {
			return nil, ferr
		}
		defer func() { _ = f.Close() }()
		res, err = c.CollectFrom(ctx, f)
	} else {
		res, err = collectLive(ctx, c, cfg.Browser)
	}
	if err != nil {
		return nil, err
	}

	if verr := res.Record.Validate(); verr != nil {
		logger.Warn("record has invalid fields", "error", verr)
	}
	for _, st := range res.Steps {
		if !st.OK() {
			logger.Warn("step failed", "step", st.Name, "page", st.Page, "error", st.Err)
		}
	}
	return res, nil
}

func collectLive(ctx context.Context, c *collector.Collector, b config.BrowserConfig) (*collector.Result, error) {
	session, err := fetcher.NewBrowserSession(fetcher.Config{
		Timeout:    b.Timeout,
		Headless:   b.Headless,
		ChromePath: b.ChromePath,
		DebugDir:   b.DebugDir,
	})
	if err != nil {
		return nil, fmt.Errorf("start browser: %w", err)
	}
	defer func() { _ = session.Close() }()

	logger.Debug("browser started", "headless", b.Headless)
	return c.Collect(ctx, session)
}
