package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/jmylchreest/aptledger/internal/logger"
)

// ReplayConfig holds configuration for the replay fetcher.
type ReplayConfig struct {
	// Dir holds saved pages named "<page>.html".
	Dir     string
	Timeout time.Duration
}

// DefaultReplayConfig returns sensible defaults.
func DefaultReplayConfig() ReplayConfig {
	return ReplayConfig{
		Timeout: 10 * time.Second,
	}
}

// ReplayFetcher serves previously saved portal pages through Colly's file
// transport, so collection can be rerun offline against a snapshot.
// It implements the Fetcher interface.
type ReplayFetcher struct {
	config ReplayConfig
}

// NewReplay creates a replay fetcher over cfg.Dir.
func NewReplay(cfg ReplayConfig) (*ReplayFetcher, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultReplayConfig().Timeout
	}
	info, err := os.Stat(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("replay dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("replay dir %s: not a directory", cfg.Dir)
	}
	return &ReplayFetcher{config: cfg}, nil
}

// Fetch returns the saved copy of opts.Page. The url is only recorded.
func (f *ReplayFetcher) Fetch(ctx context.Context, targetURL string, opts Options) (Content, error) {
	result := Content{
		URL:       targetURL,
		Page:      opts.Page,
		FetchedAt: time.Now(),
	}
	if opts.Page == "" {
		return result, fmt.Errorf("replay fetch %s: page name required", targetURL)
	}

	fileURL := "file:///" + opts.Page + ".html"
	logger.Debug("replay fetch starting", "page", opts.Page, "dir", f.config.Dir)

	transport := &http.Transport{}
	transport.RegisterProtocol("file", http.NewFileTransport(http.Dir(f.config.Dir)))

	c := colly.NewCollector(
		colly.StdlibContext(ctx),
		colly.AllowURLRevisit(),
	)
	c.WithTransport(transport)

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = f.config.Timeout
	}
	c.SetRequestTimeout(timeout)

	var fetchErr error

	c.OnResponse(func(r *colly.Response) {
		result.StatusCode = r.StatusCode
		result.HTML = string(r.Body)
		logger.Debug("replay fetch response received",
			"page", opts.Page,
			"status", r.StatusCode,
			"body_size", len(r.Body))
	})

	c.OnError(func(r *colly.Response, err error) {
		statusCode := 0
		if r != nil {
			statusCode = r.StatusCode
			result.StatusCode = statusCode
		}
		if statusCode == http.StatusNotFound {
			fetchErr = fmt.Errorf("replay %s: %w", opts.Page, ErrPageNotFound)
			return
		}
		fetchErr = fmt.Errorf("fetch error: %w", err)
	})

	if err := c.Visit(fileURL); err != nil && fetchErr == nil {
		return result, fmt.Errorf("failed to visit %s: %w", fileURL, err)
	}
	if fetchErr != nil {
		return result, fetchErr
	}
	if strings.TrimSpace(result.HTML) == "" {
		return result, fmt.Errorf("replay %s: %w", opts.Page, ErrEmptyPage)
	}

	result.Title = pageTitle(result.HTML)
	logger.Debug("replay fetch complete", "page", opts.Page, "title", result.Title)
	return result, nil
}

// Close releases resources.
func (f *ReplayFetcher) Close() error {
	return nil
}

// Type returns the fetcher type.
func (f *ReplayFetcher) Type() string {
	return "replay"
}

// SnapshotPath returns where a page named page is stored under dir.
func SnapshotPath(dir, page string) string {
	return filepath.Join(dir, page+".html")
}

func pageTitle(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}
