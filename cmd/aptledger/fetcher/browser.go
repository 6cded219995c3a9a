package fetcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/jmylchreest/aptledger/internal/logger"
	"github.com/jmylchreest/aptledger/pkg/fetcher"
)

// BrowserSession drives a single headless Chrome tab. It implements
// fetcher.Session; every method runs on the same tab so cookies set by the
// login carry over to later page loads.
type BrowserSession struct {
	config Config

	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc

	idle *idleTracker
}

var _ fetcher.Session = (*BrowserSession)(nil)

// NewBrowserSession starts a browser and opens one tab.
func NewBrowserSession(cfg Config) (*BrowserSession, error) {
	d := DefaultConfig()
	if cfg.UserAgent == "" {
		cfg.UserAgent = d.UserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = d.Timeout
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = d.IdleTimeout
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(cfg.UserAgent),
	)

	chromePath := cfg.ChromePath
	if chromePath == "" {
		chromePath = FindChromePath()
	}
	if chromePath != "" {
		opts = append(opts, chromedp.ExecPath(chromePath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			logger.Debug("chromedp", "msg", fmt.Sprintf(format, args...))
		}),
	)

	s := &BrowserSession{
		config:      cfg,
		allocCancel: allocCancel,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		idle:        newIdleTracker(),
	}
	chromedp.ListenTarget(tabCtx, s.idle.observe)

	// The first Run launches the browser.
	if err := chromedp.Run(tabCtx, page.SetLifecycleEventsEnabled(true)); err != nil {
		s.Close()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	logger.Debug("browser session started",
		"headless", cfg.Headless,
		"chrome", chromePath,
		"timeout", cfg.Timeout)
	return s, nil
}

// run executes actions on the tab, bounded by ctx and the action timeout.
func (s *BrowserSession) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.tabCtx, s.config.Timeout)
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

// Navigate loads url and waits for the network to go idle.
func (s *BrowserSession) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, chromedp.Navigate(url)); err != nil {
		s.captureScreenshot("navigate")
		return err
	}
	return s.WaitForNetworkIdle(ctx)
}

// Evaluate runs script in the page. res may be nil.
func (s *BrowserSession) Evaluate(ctx context.Context, script string, res any) error {
	return s.run(ctx, chromedp.Evaluate(script, res))
}

// FillField types value into the first element matching sel.
func (s *BrowserSession) FillField(ctx context.Context, sel, value string) error {
	return s.run(ctx,
		chromedp.WaitReady(sel, chromedp.ByQuery),
		chromedp.SendKeys(sel, value, chromedp.ByQuery),
	)
}

// SetFieldValue assigns the value property directly, for inputs that are
// not interactable yet.
func (s *BrowserSession) SetFieldValue(ctx context.Context, sel, value string) error {
	return s.run(ctx, chromedp.SetValue(sel, value, chromedp.ByQuery))
}

// SetVisible toggles the inline display style on every element matching sel.
func (s *BrowserSession) SetVisible(ctx context.Context, sel string, visible bool) error {
	style := "display: none"
	if visible {
		style = "display: block"
	}
	return s.run(ctx, chromedp.QueryAfter(sel,
		func(ctx context.Context, _ runtime.ExecutionContextID, nodes ...*cdp.Node) error {
			for _, n := range nodes {
				if err := dom.SetAttributeValue(n.NodeID, "style", style).Do(ctx); err != nil {
					return err
				}
			}
			return nil
		},
		chromedp.ByQueryAll,
	))
}

// WaitForNetworkIdle blocks until the tab reports network idle. A page that
// never settles is logged and treated as loaded once IdleTimeout passes.
func (s *BrowserSession) WaitForNetworkIdle(ctx context.Context) error {
	select {
	case <-s.idle.wait():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.config.IdleTimeout):
		logger.Warn("network did not go idle", "waited", s.config.IdleTimeout)
		return nil
	}
}

// Cookies returns the cookies visible to the current page.
func (s *BrowserSession) Cookies(ctx context.Context) ([]fetcher.Cookie, error) {
	var raw []*network.Cookie
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		raw, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}

	cookies := make([]fetcher.Cookie, 0, len(raw))
	for _, c := range raw {
		cookies = append(cookies, fetcher.Cookie{Name: c.Name, Value: c.Value, Domain: c.Domain})
	}
	return cookies, nil
}

// HTML returns the serialized document.
func (s *BrowserSession) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

// Close shuts the tab and the browser.
func (s *BrowserSession) Close() error {
	if s.tabCancel != nil {
		s.tabCancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
	return nil
}

// captureScreenshot saves the current viewport for debugging a failed step.
func (s *BrowserSession) captureScreenshot(step string) {
	ctx, cancel := context.WithTimeout(s.tabCtx, 5*time.Second)
	defer cancel()

	var shot []byte
	if err := chromedp.Run(ctx, chromedp.CaptureScreenshot(&shot)); err != nil {
		return
	}

	dir := s.config.DebugDir
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, fmt.Sprintf("aptledger-%s-%d.png", step, time.Now().UnixNano()))
	if err := os.WriteFile(path, shot, 0o600); err == nil {
		logger.Debug("debug screenshot saved", "path", path)
	}
}

// idleTracker follows page lifecycle events. A new document ("init") opens
// a fresh wait; "networkIdle" releases it.
type idleTracker struct {
	mu   sync.Mutex
	done chan struct{}
	idle bool
}

func newIdleTracker() *idleTracker {
	return &idleTracker{done: make(chan struct{})}
}

func (t *idleTracker) observe(ev any) {
	e, ok := ev.(*page.EventLifecycleEvent)
	if !ok {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	switch e.Name {
	case "init":
		if t.idle {
			t.done = make(chan struct{})
			t.idle = false
		}
	case "networkIdle":
		if !t.idle {
			close(t.done)
			t.idle = true
		}
	}
}

func (t *idleTracker) wait() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}
