// Package notion is a small client for the parts of the Notion API the
// billing sync uses: database queries, page creation and archiving, and
// appending block trees under the API's nesting limits.
package notion

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/jmylchreest/aptledger/internal/logger"
)

const (
	// DefaultBaseURL is the public Notion API endpoint.
	DefaultBaseURL = "https://api.notion.com/v1"

	// APIVersion is sent as the Notion-Version header on every request.
	APIVersion = "2022-06-28"

	pageSize = 100
)

// Config holds client settings. Only Token is required.
type Config struct {
	Token   string
	BaseURL string
	Timeout time.Duration

	// RetryCount is how many times a rate-limited (429) or failed (5xx)
	// request is retried.
	RetryCount   int
	RetryWait    time.Duration
	RetryMaxWait time.Duration

	// InsecureSkipVerify disables TLS certificate checks, for networks
	// that intercept TLS.
	InsecureSkipVerify bool
}

// DefaultConfig returns the settings used against the public API.
func DefaultConfig() Config {
	return Config{
		BaseURL:      DefaultBaseURL,
		Timeout:      30 * time.Second,
		RetryCount:   3,
		RetryWait:    500 * time.Millisecond,
		RetryMaxWait: 5 * time.Second,
	}
}

// APIError is the error object Notion returns with a non-2xx status.
type APIError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("notion: status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("notion: status %d (%s): %s", e.Status, e.Code, e.Message)
}

// Client talks to the Notion API.
type Client struct {
	http *resty.Client
	log  *slog.Logger
}

// New creates a client from cfg. Zero fields take their DefaultConfig value.
func New(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RetryWait == 0 {
		cfg.RetryWait = def.RetryWait
	}
	if cfg.RetryMaxWait == 0 {
		cfg.RetryMaxWait = def.RetryMaxWait
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetAuthToken(cfg.Token).
		SetHeader("Notion-Version", APIVersion).
		SetHeader("Content-Type", "application/json").
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(cfg.RetryMaxWait).
		AddRetryCondition(retryable)

	if cfg.InsecureSkipVerify {
		client.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true}) //nolint:gosec // opt-in
	}

	return &Client{
		http: client,
		log:  logger.With("component", "notion"),
	}
}

func retryable(resp *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if resp == nil {
		return false
	}
	code := resp.StatusCode()
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// do sends a request with an optional JSON body and decodes a successful
// response into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	return c.send(req, method, path, out)
}

func (c *Client) send(req *resty.Request, method, path string, out any) error {
	req.SetError(&APIError{})
	if out != nil {
		req.SetResult(out)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		apiErr, _ := resp.Error().(*APIError)
		if apiErr == nil || apiErr.Status == 0 {
			apiErr = &APIError{Status: resp.StatusCode(), Message: resp.String()}
		}
		return apiErr
	}
	return nil
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// Parent identifies where a page is created.
type Parent struct {
	DatabaseID string `json:"database_id,omitempty"`
	PageID     string `json:"page_id,omitempty"`
}

// DatabaseParent places a page in a database.
func DatabaseParent(id string) Parent { return Parent{DatabaseID: id} }

// PageParent places a page under another page.
func PageParent(id string) Parent { return Parent{PageID: id} }

// Page is the subset of a Notion page object the client reads.
type Page struct {
	ID         string                     `json:"id"`
	URL        string                     `json:"url"`
	Archived   bool                       `json:"archived"`
	Properties map[string]json.RawMessage `json:"properties"`
}

// Block is the subset of a Notion block object the client reads.
type Block struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	HasChildren bool       `json:"has_children"`
	ChildPage   *ChildPage `json:"child_page,omitempty"`
}

// ChildPage is the body of a child_page block.
type ChildPage struct {
	Title string `json:"title"`
}

type list[T any] struct {
	Results    []T     `json:"results"`
	HasMore    bool    `json:"has_more"`
	NextCursor *string `json:"next_cursor"`
}

// CreatePage creates a page under parent. properties values must marshal to
// Notion property objects; children are optional block objects.
func (c *Client) CreatePage(ctx context.Context, parent Parent, properties any, children []map[string]any) (*Page, error) {
	body := map[string]any{
		"parent":     parent,
		"properties": properties,
	}
	if len(children) > 0 {
		body["children"] = children
	}

	var page Page
	if err := c.do(ctx, http.MethodPost, "/pages", body, &page); err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	c.log.Debug("page created", "id", page.ID)
	return &page, nil
}

// ArchivePage moves a page to the trash.
func (c *Client) ArchivePage(ctx context.Context, pageID string) error {
	body := map[string]any{"archived": true}
	if err := c.do(ctx, http.MethodPatch, "/pages/"+pageID, body, nil); err != nil {
		return fmt.Errorf("archive page %s: %w", pageID, err)
	}
	c.log.Debug("page archived", "id", pageID)
	return nil
}

// QueryDatabase returns every page of the database matching filter, following
// pagination. A nil filter matches all pages.
func (c *Client) QueryDatabase(ctx context.Context, databaseID string, filter any) ([]Page, error) {
	var pages []Page
	var cursor *string
	for {
		body := map[string]any{"page_size": pageSize}
		if filter != nil {
			body["filter"] = filter
		}
		if cursor != nil {
			body["start_cursor"] = *cursor
		}

		var res list[Page]
		if err := c.do(ctx, http.MethodPost, "/databases/"+databaseID+"/query", body, &res); err != nil {
			return nil, fmt.Errorf("query database: %w", err)
		}
		pages = append(pages, res.Results...)
		if !res.HasMore || res.NextCursor == nil {
			return pages, nil
		}
		cursor = res.NextCursor
	}
}

// AppendChildren appends blocks under blockID and returns the created
// first-level blocks in order.
func (c *Client) AppendChildren(ctx context.Context, blockID string, children []map[string]any) ([]Block, error) {
	var res list[Block]
	body := map[string]any{"children": children}
	if err := c.do(ctx, http.MethodPatch, "/blocks/"+blockID+"/children", body, &res); err != nil {
		return nil, fmt.Errorf("append children to %s: %w", blockID, err)
	}
	return res.Results, nil
}

// ListChildren returns the direct children of a block or page, following
// pagination.
func (c *Client) ListChildren(ctx context.Context, blockID string) ([]Block, error) {
	var blocks []Block
	cursor := ""
	for {
		req := c.http.R().
			SetContext(ctx).
			SetQueryParam("page_size", strconv.Itoa(pageSize))
		if cursor != "" {
			req.SetQueryParam("start_cursor", cursor)
		}

		var res list[Block]
		if err := c.send(req, http.MethodGet, "/blocks/"+blockID+"/children", &res); err != nil {
			return nil, fmt.Errorf("list children of %s: %w", blockID, err)
		}

		blocks = append(blocks, res.Results...)
		if !res.HasMore || res.NextCursor == nil {
			return blocks, nil
		}
		cursor = *res.NextCursor
	}
}
