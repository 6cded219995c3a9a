// Package fetcher provides the chromedp-backed browser session the CLI uses
// to log in to the portal and load its pages.
package fetcher

import (
	"time"
)

// Config holds configuration for the browser session.
type Config struct {
	UserAgent   string
	Timeout     time.Duration // bound on each browser action
	IdleTimeout time.Duration // how long to wait for network idle before moving on
	Headless    bool
	ChromePath  string // empty means search the usual locations
	DebugDir    string // where failure screenshots go; empty means the temp dir
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		UserAgent:   defaultUserAgent,
		Timeout:     30 * time.Second,
		IdleTimeout: 15 * time.Second,
		Headless:    true,
	}
}

// Chrome user agent for better compatibility
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
