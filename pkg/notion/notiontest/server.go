// Package notiontest runs an in-memory stand-in for the Notion API endpoints
// the notion client uses. It enforces the append limits the real API does so
// tests catch payloads Notion would reject.
package notiontest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
)

// Token is the bearer token the server accepts.
const Token = "secret_test"

const (
	maxNesting  = 2
	maxChildren = 100
)

// Request is one request the server received.
type Request struct {
	Method string
	Path   string
	Body   json.RawMessage
}

// Block is a stored block.
type Block struct {
	ID       string
	Type     string
	Body     map[string]any
	Children []*Block
	Archived bool
}

// Page is a stored page.
type Page struct {
	ID         string
	Parent     map[string]string
	Properties map[string]json.RawMessage
	Title      string
	Archived   bool
	Children   []*Block
}

// Server is a fake Notion API.
type Server struct {
	*httptest.Server

	// FailAppend makes an append request fail with 400 when it returns true.
	FailAppend func(parentID string, children []map[string]any) bool

	// RateLimited is how many upcoming requests get a 429 response.
	RateLimited int

	mu       sync.Mutex
	nextID   int
	pages    map[string]*Page
	blocks   map[string]*Block
	requests []Request
}

// NewServer starts a server. It is closed when the test ends.
func NewServer(t interface{ Cleanup(func()) }) *Server {
	s := &Server{
		pages:  map[string]*Page{},
		blocks: map[string]*Block{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /pages", s.createPage)
	mux.HandleFunc("PATCH /pages/{id}", s.updatePage)
	mux.HandleFunc("POST /databases/{id}/query", s.queryDatabase)
	mux.HandleFunc("PATCH /blocks/{id}/children", s.appendChildren)
	mux.HandleFunc("GET /blocks/{id}/children", s.listChildren)

	s.Server = httptest.NewServer(s.middleware(mux))
	t.Cleanup(s.Close)
	return s
}

// AddPage stores an existing database page with the given raw properties.
func (s *Server) AddPage(databaseID string, properties map[string]json.RawMessage) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &Page{
		ID:         s.newID("page"),
		Parent:     map[string]string{"database_id": databaseID},
		Properties: properties,
		Title:      titleOf(properties),
	}
	s.pages[p.ID] = p
	return p.ID
}

// AddRootPage stores a workspace-level page, usable as a page parent.
func (s *Server) AddRootPage(title string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &Page{ID: s.newID("page"), Parent: map[string]string{"workspace": "true"}, Title: title}
	s.pages[p.ID] = p
	return p.ID
}

// Requests returns the requests received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// CountRequests counts received requests with the method and path prefix.
func (s *Server) CountRequests(method, pathPrefix string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == method && strings.HasPrefix(r.Path, pathPrefix) {
			n++
		}
	}
	return n
}

// Page returns a stored page.
func (s *Server) Page(id string) *Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pages[id]
}

// Pages returns the pages under a database or page parent, archived ones
// included.
func (s *Server) Pages(parentID string) []*Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Page
	for i := 1; i <= s.nextID; i++ {
		p, ok := s.pages[fmt.Sprintf("page-%d", i)]
		if ok && (p.Parent["database_id"] == parentID || p.Parent["page_id"] == parentID) {
			out = append(out, p)
		}
	}
	return out
}

// Children returns the live children of a page or block.
func (s *Server) Children(id string) []*Block {
	s.mu.Lock()
	defer s.mu.Unlock()
	return live(s.childrenOf(id))
}

func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))

		s.mu.Lock()
		s.requests = append(s.requests, Request{Method: r.Method, Path: r.URL.Path, Body: body})
		limited := s.RateLimited > 0
		if limited {
			s.RateLimited--
		}
		s.mu.Unlock()

		if limited {
			writeError(w, http.StatusTooManyRequests, "rate_limited", "slow down")
			return
		}
		if r.Header.Get("Authorization") != "Bearer "+Token {
			writeError(w, http.StatusUnauthorized, "unauthorized", "API token is invalid.")
			return
		}
		if r.Header.Get("Notion-Version") == "" {
			writeError(w, http.StatusBadRequest, "missing_version", "Notion-Version header is required.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func decode(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

type filter struct {
	Property string `json:"property"`
	Number   *struct {
		Equals *int64 `json:"equals"`
	} `json:"number"`
	Date *struct {
		Equals string `json:"equals"`
	} `json:"date"`
}

func (f *filter) valid() bool {
	if f.Property == "" {
		return false
	}
	return (f.Number != nil && f.Number.Equals != nil) || (f.Date != nil && f.Date.Equals != "")
}

// matches compares the filter against a stored property. A date-only equals
// value matches any time on that day.
func (f *filter) matches(props map[string]json.RawMessage) bool {
	raw, ok := props[f.Property]
	if !ok {
		return false
	}
	var v struct {
		Number *int64 `json:"number"`
		Date   *struct {
			Start string `json:"start"`
		} `json:"date"`
	}
	if json.Unmarshal(raw, &v) != nil {
		return false
	}
	switch {
	case f.Number != nil:
		return v.Number != nil && *v.Number == *f.Number.Equals
	default:
		return v.Date != nil && strings.HasPrefix(v.Date.Start, f.Date.Equals)
	}
}

func (s *Server) createPage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Parent     map[string]string          `json:"parent"`
		Properties map[string]json.RawMessage `json:"properties"`
		Children   []map[string]any           `json:"children"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if msg := validateChildren(req.Children); msg != "" {
		writeError(w, http.StatusBadRequest, "validation_error", msg)
		return
	}

	s.mu.Lock()
	p := &Page{
		ID:         s.newID("page"),
		Parent:     req.Parent,
		Properties: req.Properties,
		Title:      titleOf(req.Properties),
	}
	s.pages[p.ID] = p
	for _, c := range req.Children {
		p.Children = append(p.Children, s.store(c))
	}
	if parent, ok := req.Parent["page_id"]; ok {
		if pp, ok := s.pages[parent]; ok {
			pp.Children = append(pp.Children, &Block{
				ID:   p.ID,
				Type: "child_page",
				Body: map[string]any{"title": p.Title},
			})
		}
	}
	s.mu.Unlock()

	writeJSON(w, map[string]any{"object": "page", "id": p.ID, "url": "https://notion.test/" + p.ID})
}

func (s *Server) updatePage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Archived bool `json:"archived"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pages[r.PathValue("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "object_not_found", "page not found")
		return
	}
	p.Archived = req.Archived
	for _, other := range s.pages {
		for _, b := range other.Children {
			if b.ID == p.ID {
				b.Archived = req.Archived
			}
		}
	}
	writeJSON(w, map[string]any{"object": "page", "id": p.ID, "archived": p.Archived})
}

func (s *Server) queryDatabase(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Filter      *filter `json:"filter"`
		StartCursor string  `json:"start_cursor"`
		PageSize    int     `json:"page_size"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if req.Filter != nil && !req.Filter.valid() {
		writeError(w, http.StatusBadRequest, "validation_error", "unsupported filter")
		return
	}

	var results []any
	for _, p := range s.Pages(r.PathValue("id")) {
		if p.Archived || (req.Filter != nil && !req.Filter.matches(p.Properties)) {
			continue
		}
		results = append(results, map[string]any{
			"object":     "page",
			"id":         p.ID,
			"properties": p.Properties,
		})
	}
	writePage(w, results, req.StartCursor, req.PageSize)
}

func (s *Server) appendChildren(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Children []map[string]any `json:"children"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	parentID := r.PathValue("id")

	if s.FailAppend != nil && s.FailAppend(parentID, req.Children) {
		writeError(w, http.StatusBadRequest, "validation_error", "append rejected")
		return
	}
	if msg := validateChildren(req.Children); msg != "" {
		writeError(w, http.StatusBadRequest, "validation_error", msg)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var added []*Block
	for _, c := range req.Children {
		added = append(added, s.store(c))
	}
	if p, ok := s.pages[parentID]; ok {
		p.Children = append(p.Children, added...)
	} else if b, ok := s.blocks[parentID]; ok {
		b.Children = append(b.Children, added...)
	} else {
		writeError(w, http.StatusNotFound, "object_not_found", "block not found")
		return
	}

	results := make([]any, len(added))
	for i, b := range added {
		results[i] = blockJSON(b)
	}
	writeJSON(w, map[string]any{"object": "list", "results": results, "has_more": false, "next_cursor": nil})
}

func (s *Server) listChildren(w http.ResponseWriter, r *http.Request) {
	size, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

	s.mu.Lock()
	kids := live(s.childrenOf(r.PathValue("id")))
	results := make([]any, len(kids))
	for i, b := range kids {
		results[i] = blockJSON(b)
	}
	s.mu.Unlock()

	writePage(w, results, r.URL.Query().Get("start_cursor"), size)
}

func (s *Server) childrenOf(id string) []*Block {
	if p, ok := s.pages[id]; ok {
		return p.Children
	}
	if b, ok := s.blocks[id]; ok {
		return b.Children
	}
	return nil
}

// store registers a block object and its nested children. Caller holds mu.
func (s *Server) store(obj map[string]any) *Block {
	typ, _ := obj["type"].(string)
	body, _ := obj[typ].(map[string]any)
	b := &Block{ID: s.newID("block"), Type: typ, Body: body}
	if kids, ok := body["children"].([]any); ok {
		for _, k := range kids {
			if m, ok := k.(map[string]any); ok {
				b.Children = append(b.Children, s.store(m))
			}
		}
		delete(body, "children")
	}
	s.blocks[b.ID] = b
	return b
}

func (s *Server) newID(prefix string) string {
	s.nextID++
	return fmt.Sprintf("%s-%d", prefix, s.nextID)
}

// validateChildren applies the append limits: at most 100 blocks per
// request, at most two levels of nesting, and column lists, columns and
// tables must arrive with their children.
func validateChildren(children []map[string]any) string {
	total := 0
	for _, c := range children {
		n, depth, msg := inspect(c)
		if msg != "" {
			return msg
		}
		if depth > maxNesting {
			return fmt.Sprintf("block nesting depth %d exceeds %d", depth, maxNesting)
		}
		total += n
	}
	if total > maxChildren {
		return fmt.Sprintf("%d blocks exceeds the limit of %d", total, maxChildren)
	}
	return ""
}

func inspect(obj map[string]any) (count, depth int, msg string) {
	typ, _ := obj["type"].(string)
	body, _ := obj[typ].(map[string]any)
	if body == nil {
		return 0, 0, fmt.Sprintf("block of type %q has no body", typ)
	}
	kids, _ := body["children"].([]any)
	switch typ {
	case "column_list", "column", "table":
		if len(kids) == 0 {
			return 0, 0, typ + " requires children"
		}
	}

	count = 1
	for _, k := range kids {
		m, _ := k.(map[string]any)
		n, d, msg := inspect(m)
		if msg != "" {
			return 0, 0, msg
		}
		count += n
		depth = max(depth, d+1)
	}
	return count, depth, ""
}

func live(blocks []*Block) []*Block {
	var out []*Block
	for _, b := range blocks {
		if !b.Archived {
			out = append(out, b)
		}
	}
	return out
}

func blockJSON(b *Block) map[string]any {
	out := map[string]any{
		"object":       "block",
		"id":           b.ID,
		"type":         b.Type,
		"has_children": len(b.Children) > 0,
	}
	if b.Type == "child_page" {
		out["child_page"] = b.Body
	}
	return out
}

func titleOf(props map[string]json.RawMessage) string {
	for _, raw := range props {
		var v struct {
			Title []struct {
				Text struct {
					Content string `json:"content"`
				} `json:"text"`
			} `json:"title"`
		}
		if json.Unmarshal(raw, &v) != nil || len(v.Title) == 0 {
			continue
		}
		var sb strings.Builder
		for _, t := range v.Title {
			sb.WriteString(t.Text.Content)
		}
		return sb.String()
	}
	return ""
}

func writePage(w http.ResponseWriter, results []any, cursor string, size int) {
	if size <= 0 || size > maxChildren {
		size = maxChildren
	}
	start, _ := strconv.Atoi(cursor)
	start = min(start, len(results))
	end := min(start+size, len(results))

	var next any
	if end < len(results) {
		next = strconv.Itoa(end)
	}
	page := results[start:end]
	if page == nil {
		page = []any{}
	}
	writeJSON(w, map[string]any{
		"object":      "list",
		"results":     page,
		"has_more":    next != nil,
		"next_cursor": next,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"object":  "error",
		"status":  status,
		"code":    code,
		"message": message,
	})
}
