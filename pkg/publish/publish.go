// Package publish syncs a billing record to the Notion billing database.
// A run archives any page already holding the same billing period and
// creates a fresh one, then optionally replaces the dashboard page.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmylchreest/aptledger/internal/logger"
	"github.com/jmylchreest/aptledger/pkg/billing"
	"github.com/jmylchreest/aptledger/pkg/document"
	"github.com/jmylchreest/aptledger/pkg/notion"
)

// ErrNoDatabase is returned when Publish runs without a database ID.
var ErrNoDatabase = errors.New("no billing database configured")

// Client is the part of the Notion API the publisher needs.
type Client interface {
	CreatePage(ctx context.Context, parent notion.Parent, properties any, children []map[string]any) (*notion.Page, error)
	QueryDatabase(ctx context.Context, databaseID string, filter any) ([]notion.Page, error)
	ArchivePage(ctx context.Context, pageID string) error
	ListChildren(ctx context.Context, blockID string) ([]notion.Block, error)
	AppendTree(ctx context.Context, parentID string, nodes []document.Node) (notion.AppendStats, error)
}

var _ Client = (*notion.Client)(nil)

// Config selects where pages go.
type Config struct {
	DatabaseID string

	// DashboardParentID is the page the dashboard lives under. The
	// dashboard is only published when DashboardEnabled is set.
	DashboardParentID string
	DashboardEnabled  bool

	Document document.Options
}

// Result describes one sync.
type Result struct {
	// Skipped is set when the billing period was already paid and the
	// sync was not forced.
	Skipped bool

	PageID   string
	URL      string
	Archived int

	// Append reports how the page body was written. AppendErr holds the
	// failures; the page itself exists regardless.
	Append    notion.AppendStats
	AppendErr error

	DashboardID string
}

// Publisher writes records to Notion through an explicit client handle.
type Publisher struct {
	client Client
	config Config
	log    *slog.Logger
}

// New creates a publisher.
func New(client Client, cfg Config) *Publisher {
	if cfg.Document.ChunkLimit == 0 {
		cfg.Document = document.DefaultOptions()
	}
	return &Publisher{
		client: client,
		config: cfg,
		log:    logger.With("component", "publish"),
	}
}

// AlreadySettled reports whether rec's payment history shows the given
// billing month as paid.
func AlreadySettled(rec *billing.Record, year, month int) bool {
	return rec.IsSettled(year, month)
}

// Sync publishes rec unless its billing period is already settled and force
// is false, then refreshes the dashboard when enabled. Dashboard failures are
// logged and do not fail the sync.
func (p *Publisher) Sync(ctx context.Context, rec *billing.Record, force bool) (*Result, error) {
	period := rec.Period()
	if !force && AlreadySettled(rec, period.Year, period.Month) {
		p.log.Info("billing period already paid, skipping", "period", period.Key())
		return &Result{Skipped: true}, nil
	}

	res, err := p.Publish(ctx, rec)
	if err != nil {
		return nil, err
	}

	if p.config.DashboardEnabled && p.config.DashboardParentID != "" {
		id, err := p.PublishDashboard(ctx, rec)
		if err != nil {
			p.log.Warn("dashboard update failed", "error", err)
		}
		res.DashboardID = id
	}
	return res, nil
}

// Publish archives the pages holding rec's billing period and creates a new
// one. Only a failure to create the page is an error; archive and body
// append failures are logged and reported in the result.
func (p *Publisher) Publish(ctx context.Context, rec *billing.Record) (*Result, error) {
	if p.config.DatabaseID == "" {
		return nil, ErrNoDatabase
	}

	page, err := document.Build(rec, p.config.Document)
	if err != nil {
		return nil, fmt.Errorf("build page: %w", err)
	}

	res := &Result{}
	existing, err := p.findExisting(ctx, rec, page.Title)
	if err != nil {
		p.log.Warn("looking up existing pages failed", "error", err)
	}
	for _, id := range existing {
		if err := p.client.ArchivePage(ctx, id); err != nil {
			p.log.Warn("archive failed", "page", id, "error", err)
			continue
		}
		res.Archived++
	}

	created, err := p.client.CreatePage(ctx, notion.DatabaseParent(p.config.DatabaseID), page.Properties, nil)
	if err != nil {
		return nil, err
	}
	res.PageID, res.URL = created.ID, created.URL

	res.Append, res.AppendErr = p.client.AppendTree(ctx, created.ID, page.Children)
	if res.AppendErr != nil {
		p.log.Warn("page body incomplete", "page", created.ID, "failed_blocks", res.Append.Failed, "error", res.AppendErr)
	}

	p.log.Info("page published",
		"title", page.Title,
		"url", created.URL,
		"archived", res.Archived,
		"blocks", res.Append.Blocks,
	)
	return res, nil
}

// findExisting returns the IDs of pages for rec's period: by 청구월 when the
// month is known, by the 수집일시 date otherwise. Month matches from another
// year are left alone.
func (p *Publisher) findExisting(ctx context.Context, rec *billing.Record, title string) ([]string, error) {
	period := rec.Period()

	var filter map[string]any
	if period.MonthKnown {
		filter = map[string]any{
			"property": document.PropBillingMonth,
			"number":   map[string]any{"equals": period.Month},
		}
	} else {
		filter = map[string]any{
			"property": document.PropCollectedAt,
			"date":     map[string]any{"equals": rec.CollectedAt.Format("2006-01-02")},
		}
	}

	pages, err := p.client.QueryDatabase(ctx, p.config.DatabaseID, filter)
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, pg := range pages {
		if period.MonthKnown {
			if t, ok := pageTitle(pg); ok && t != title {
				continue
			}
		}
		ids = append(ids, pg.ID)
	}
	return ids, nil
}

// pageTitle reads the Name title of a queried page.
func pageTitle(pg notion.Page) (string, bool) {
	raw, ok := pg.Properties[document.PropName]
	if !ok {
		return "", false
	}
	var prop struct {
		Title []struct {
			PlainText string `json:"plain_text"`
			Text      struct {
				Content string `json:"content"`
			} `json:"text"`
		} `json:"title"`
	}
	if err := json.Unmarshal(raw, &prop); err != nil {
		return "", false
	}

	var sb strings.Builder
	for _, t := range prop.Title {
		if t.PlainText != "" {
			sb.WriteString(t.PlainText)
		} else {
			sb.WriteString(t.Text.Content)
		}
	}
	return sb.String(), true
}

// PublishDashboard replaces the dashboard page under the configured parent
// and returns the new page ID.
func (p *Publisher) PublishDashboard(ctx context.Context, rec *billing.Record) (string, error) {
	parent := p.config.DashboardParentID
	if parent == "" {
		return "", errors.New("no dashboard parent page configured")
	}

	kids, err := p.client.ListChildren(ctx, parent)
	if err != nil {
		return "", fmt.Errorf("list dashboard parent: %w", err)
	}
	for _, b := range kids {
		if b.Type != "child_page" || b.ChildPage == nil || b.ChildPage.Title != document.DashboardTitle {
			continue
		}
		if err := p.client.ArchivePage(ctx, b.ID); err != nil {
			p.log.Warn("archive dashboard failed", "page", b.ID, "error", err)
		}
	}

	page := document.BuildDashboard(rec)
	created, err := p.client.CreatePage(ctx, notion.PageParent(parent), page.Properties, nil)
	if err != nil {
		return "", fmt.Errorf("create dashboard: %w", err)
	}
	if _, err := p.client.AppendTree(ctx, created.ID, page.Children); err != nil {
		p.log.Warn("dashboard body incomplete", "page", created.ID, "error", err)
	}

	p.log.Info("dashboard published", "url", created.URL)
	return created.ID, nil
}
