package notion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/aptledger/pkg/billing"
	"github.com/jmylchreest/aptledger/pkg/document"
	"github.com/jmylchreest/aptledger/pkg/notion/notiontest"
)

const testDatabase = "db-1"

func newTestClient(t *testing.T, srv *notiontest.Server) *Client {
	t.Helper()
	return New(Config{
		Token:        notiontest.Token,
		BaseURL:      srv.URL,
		RetryCount:   2,
		RetryWait:    time.Millisecond,
		RetryMaxWait: 5 * time.Millisecond,
	})
}

func newPage(t *testing.T, c *Client) string {
	t.Helper()
	page, err := c.CreatePage(context.Background(), DatabaseParent(testDatabase),
		map[string]document.Property{document.PropName: document.Title("test")}, nil)
	require.NoError(t, err)
	return page.ID
}

func paragraphs(n int) []document.Node {
	out := make([]document.Node, n)
	for i := range out {
		out[i] = &document.Paragraph{Text: document.Plain(fmt.Sprintf("p%d", i))}
	}
	return out
}

func callouts(names ...string) []document.Node {
	out := make([]document.Node, len(names))
	for i, name := range names {
		out[i] = &document.Callout{Icon: "💰", Text: document.Plain(name)}
	}
	return out
}

func text(b *notiontest.Block) string {
	spans, _ := b.Body["rich_text"].([]any)
	var s string
	for _, sp := range spans {
		m, _ := sp.(map[string]any)
		t, _ := m["text"].(map[string]any)
		c, _ := t["content"].(string)
		s += c
	}
	return s
}

// --- Client Tests ---

func TestClient_RejectsBadToken(t *testing.T) {
	srv := notiontest.NewServer(t)
	c := New(Config{Token: "wrong", BaseURL: srv.URL, RetryWait: time.Millisecond})

	_, err := c.QueryDatabase(context.Background(), testDatabase, nil)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusUnauthorized, apiErr.Status)
	require.Equal(t, "unauthorized", apiErr.Code)
	require.True(t, IsStatus(err, http.StatusUnauthorized))
}

func TestCreatePage_SendsPropertiesAndChildren(t *testing.T) {
	srv := notiontest.NewServer(t)
	c := newTestClient(t, srv)

	props := map[string]document.Property{
		document.PropName:         document.Title("2025년 11월 관리비"),
		document.PropBillingMonth: document.Number(11),
	}
	page, err := c.CreatePage(context.Background(), DatabaseParent(testDatabase), props,
		document.EncodeAll([]document.Node{&document.Divider{}}))
	require.NoError(t, err)
	require.NotEmpty(t, page.ID)

	stored := srv.Page(page.ID)
	require.Equal(t, "2025년 11월 관리비", stored.Title)
	require.JSONEq(t, `{"number":11}`, string(stored.Properties[document.PropBillingMonth]))
	require.Len(t, stored.Children, 1)
	require.Equal(t, "divider", stored.Children[0].Type)
}

func TestQueryDatabase_FilterAndArchive(t *testing.T) {
	srv := notiontest.NewServer(t)
	c := newTestClient(t, srv)
	ctx := context.Background()

	nov := srv.AddPage(testDatabase, map[string]json.RawMessage{document.PropBillingMonth: json.RawMessage(`{"number":11}`)})
	srv.AddPage(testDatabase, map[string]json.RawMessage{document.PropBillingMonth: json.RawMessage(`{"number":10}`)})
	srv.AddPage("other-db", map[string]json.RawMessage{document.PropBillingMonth: json.RawMessage(`{"number":11}`)})

	filter := map[string]any{"property": document.PropBillingMonth, "number": map[string]any{"equals": 11}}
	pages, err := c.QueryDatabase(ctx, testDatabase, filter)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	require.Equal(t, nov, pages[0].ID)

	require.NoError(t, c.ArchivePage(ctx, nov))
	pages, err = c.QueryDatabase(ctx, testDatabase, filter)
	require.NoError(t, err)
	require.Empty(t, pages)

	all, err := c.QueryDatabase(ctx, testDatabase, nil)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestQueryDatabase_FollowsPagination(t *testing.T) {
	srv := notiontest.NewServer(t)
	c := newTestClient(t, srv)
	for i := 0; i < 150; i++ {
		srv.AddPage(testDatabase, nil)
	}

	pages, err := c.QueryDatabase(context.Background(), testDatabase, nil)
	require.NoError(t, err)
	require.Len(t, pages, 150)
	require.Equal(t, 2, srv.CountRequests(http.MethodPost, "/databases/"))
}

func TestArchivePage_NotFound(t *testing.T) {
	srv := notiontest.NewServer(t)
	c := newTestClient(t, srv)

	err := c.ArchivePage(context.Background(), "missing")
	require.True(t, IsStatus(err, http.StatusNotFound), "got %v", err)
}

func TestListChildren_FollowsPagination(t *testing.T) {
	srv := notiontest.NewServer(t)
	c := newTestClient(t, srv)
	ctx := context.Background()
	pageID := newPage(t, c)

	_, err := c.AppendTree(ctx, pageID, paragraphs(130))
	require.NoError(t, err)

	kids, err := c.ListChildren(ctx, pageID)
	require.NoError(t, err)
	require.Len(t, kids, 130)
	require.Equal(t, "paragraph", kids[129].Type)
}

func TestClient_RetriesRateLimit(t *testing.T) {
	srv := notiontest.NewServer(t)
	c := newTestClient(t, srv)
	srv.RateLimited = 2

	_, err := c.QueryDatabase(context.Background(), testDatabase, nil)
	require.NoError(t, err)
	require.Equal(t, 3, srv.CountRequests(http.MethodPost, "/databases/"))
}

func TestClient_RetriesExhausted(t *testing.T) {
	srv := notiontest.NewServer(t)
	c := newTestClient(t, srv)
	srv.RateLimited = 10

	_, err := c.QueryDatabase(context.Background(), testDatabase, nil)
	require.True(t, IsStatus(err, http.StatusTooManyRequests), "got %v", err)
}

// --- AppendTree Tests ---

func TestAppendTree_DefersDeepToggle(t *testing.T) {
	srv := notiontest.NewServer(t)
	c := newTestClient(t, srv)
	pageID := newPage(t, c)

	toggle := &document.Toggle{
		Text: document.Plain("📑 명세서 상세 항목"),
		Items: []document.Node{&document.ColumnList{Columns: []*document.Column{
			{Items: callouts("난방비", "청소비")},
			{Items: callouts("일반관리비")},
		}}},
	}

	stats, err := c.AppendTree(context.Background(), pageID, []document.Node{toggle})
	require.NoError(t, err)
	require.Zero(t, stats.Failed)
	require.Equal(t, document.Count(toggle, -1), stats.Blocks)

	top := srv.Children(pageID)
	require.Len(t, top, 1)
	require.Equal(t, "toggle", top[0].Type)

	cols := top[0].Children[0].Children
	require.Equal(t, "column_list", top[0].Children[0].Type)
	require.Len(t, cols, 2)
	require.Equal(t, "난방비", text(cols[0].Children[0]))
	require.Equal(t, "청소비", text(cols[0].Children[1]))
	require.Equal(t, "일반관리비", text(cols[1].Children[0]))
}

func TestAppendTree_ResolvesNestedParents(t *testing.T) {
	srv := notiontest.NewServer(t)
	c := newTestClient(t, srv)
	pageID := newPage(t, c)

	bullet := func(label, cost string) document.Node {
		return &document.BulletedItem{
			Text:  document.Plain(label),
			Items: []document.Node{&document.Paragraph{Text: document.Plain(cost)}},
		}
	}
	columns := &document.ColumnList{Columns: []*document.Column{
		{Items: []document.Node{bullet("전기: 245kWh", "비용: 45,230원"), bullet("수도: 12㎥", "비용: 18,400원")}},
		{Items: callouts("평균보다 적게 사용")},
	}}

	_, err := c.AppendTree(context.Background(), pageID, []document.Node{columns})
	require.NoError(t, err)
	require.Positive(t, srv.CountRequests(http.MethodGet, "/blocks/"))

	left := srv.Children(pageID)[0].Children[0]
	require.Len(t, left.Children, 2)
	require.Equal(t, "비용: 45,230원", text(left.Children[0].Children[0]))
	require.Equal(t, "비용: 18,400원", text(left.Children[1].Children[0]))
}

func TestAppendTree_BatchesLargeLists(t *testing.T) {
	srv := notiontest.NewServer(t)
	c := newTestClient(t, srv)
	pageID := newPage(t, c)

	stats, err := c.AppendTree(context.Background(), pageID, paragraphs(250))
	require.NoError(t, err)
	require.Equal(t, 3, stats.Requests)
	require.Equal(t, 250, stats.Blocks)

	kids := srv.Children(pageID)
	require.Len(t, kids, 250)
	require.Equal(t, "p0", text(kids[0]))
	require.Equal(t, "p249", text(kids[249]))
}

func TestAppendTree_DefersOversizedToggle(t *testing.T) {
	srv := notiontest.NewServer(t)
	c := newTestClient(t, srv)
	pageID := newPage(t, c)

	raw := &document.Toggle{Text: document.Plain("📎 고지서 원본"), Items: paragraphs(150)}
	_, err := c.AppendTree(context.Background(), pageID, []document.Node{raw})
	require.NoError(t, err)
	require.Len(t, srv.Children(pageID)[0].Children, 150)
}

func TestAppendTree_FallsBackBlockByBlock(t *testing.T) {
	srv := notiontest.NewServer(t)
	c := newTestClient(t, srv)
	pageID := newPage(t, c)

	srv.FailAppend = func(_ string, children []map[string]any) bool {
		for _, ch := range children {
			if ch["type"] == "divider" {
				return true
			}
		}
		return false
	}

	nodes := append(paragraphs(2), &document.Divider{}, &document.Paragraph{Text: document.Plain("after")})
	stats, err := c.AppendTree(context.Background(), pageID, nodes)
	require.Error(t, err)
	require.Equal(t, 1, stats.Failed)
	require.Equal(t, 3, stats.Blocks)

	kids := srv.Children(pageID)
	require.Len(t, kids, 3)
	require.Equal(t, "after", text(kids[2]))
}

// requestBlocks counts the blocks, nested ones included, of every append
// request the server received.
func requestBlocks(t *testing.T, srv *notiontest.Server) []int {
	t.Helper()
	var count func(blocks []map[string]any) int
	count = func(blocks []map[string]any) int {
		n := 0
		for _, b := range blocks {
			n++
			typ, _ := b["type"].(string)
			body, _ := b[typ].(map[string]any)
			raw, _ := json.Marshal(body["children"])
			var kids []map[string]any
			_ = json.Unmarshal(raw, &kids)
			n += count(kids)
		}
		return n
	}

	var out []int
	for _, r := range srv.Requests() {
		if r.Method != http.MethodPatch {
			continue
		}
		var req struct {
			Children []map[string]any `json:"children"`
		}
		require.NoError(t, json.Unmarshal(r.Body, &req))
		out = append(out, count(req.Children))
	}
	return out
}

func names(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return out
}

func TestAppendTree_SplitsOversizedColumns(t *testing.T) {
	srv := notiontest.NewServer(t)
	c := newTestClient(t, srv)
	pageID := newPage(t, c)

	columns := &document.ColumnList{Columns: []*document.Column{
		{Items: callouts(names("L", 60)...)},
		{Items: callouts(names("R", 70)...)},
	}}
	toggle := &document.Toggle{Text: document.Plain("📑 명세서 상세 항목"), Items: []document.Node{columns}}

	stats, err := c.AppendTree(context.Background(), pageID, []document.Node{toggle})
	require.NoError(t, err)
	require.Zero(t, stats.Failed)
	require.Equal(t, document.Count(toggle, -1), stats.Blocks)
	for _, n := range requestBlocks(t, srv) {
		require.LessOrEqual(t, n, MaxBlocksPerRequest)
	}

	cols := srv.Children(pageID)[0].Children[0].Children
	require.Len(t, cols, 2)
	require.Len(t, cols[0].Children, 60)
	require.Len(t, cols[1].Children, 70)
	for i, b := range cols[1].Children {
		require.Equal(t, fmt.Sprintf("R%d", i), text(b))
	}
}

func TestAppendTree_AppendsTableRowsPastLimit(t *testing.T) {
	srv := notiontest.NewServer(t)
	c := newTestClient(t, srv)
	pageID := newPage(t, c)

	table := &document.Table{Width: 1}
	for i := range 150 {
		table.Rows = append(table.Rows, &document.TableRow{Cells: [][]document.Span{document.Plain(fmt.Sprint(i))}})
	}

	stats, err := c.AppendTree(context.Background(), pageID, []document.Node{table})
	require.NoError(t, err)
	require.Zero(t, stats.Failed)
	for _, n := range requestBlocks(t, srv) {
		require.LessOrEqual(t, n, MaxBlocksPerRequest)
	}
	require.Len(t, srv.Children(pageID)[0].Children, 150)
}

func TestAppendTree_TooManyColumns(t *testing.T) {
	srv := notiontest.NewServer(t)
	c := newTestClient(t, srv)
	pageID := newPage(t, c)

	wide := &document.ColumnList{}
	for range 60 {
		wide.Columns = append(wide.Columns, &document.Column{Items: paragraphs(1)})
	}

	stats, err := c.AppendTree(context.Background(), pageID, []document.Node{wide})
	require.ErrorIs(t, err, ErrTooManyBlocks)
	require.Equal(t, document.Count(wide, -1), stats.Failed)
	require.Empty(t, srv.Children(pageID))
}

func TestAppendTree_NestingTooDeep(t *testing.T) {
	srv := notiontest.NewServer(t)
	c := newTestClient(t, srv)
	pageID := newPage(t, c)

	inner := &document.ColumnList{Columns: []*document.Column{{Items: paragraphs(1)}, {Items: paragraphs(1)}}}
	outer := &document.ColumnList{Columns: []*document.Column{{Items: []document.Node{inner}}, {Items: paragraphs(1)}}}

	nodes := []document.Node{outer, &document.Divider{}}
	stats, err := c.AppendTree(context.Background(), pageID, nodes)
	require.ErrorIs(t, err, ErrNestingTooDeep)
	require.Equal(t, document.Count(outer, -1), stats.Failed)
	require.Len(t, srv.Children(pageID), 1)
}

func TestAppendTree_BillingPage(t *testing.T) {
	srv := notiontest.NewServer(t)
	c := newTestClient(t, srv)
	pageID := newPage(t, c)

	rec := &billing.Record{
		CollectedAt: time.Date(2025, 12, 19, 9, 0, 0, 0, time.UTC),
		UnitID:      "01010305",
		MaintenanceItems: []billing.LineItem{
			{Name: "일반관리비", Current: 52340, Delta: 1140},
			{Name: "청소비", Current: 12000},
			{Name: "난방비", Current: 80500, Delta: -14500},
		},
		MaintenancePayment: billing.Payment{Amount: 257430, BillingMonth: 11},
		EnergyCategories: []billing.EnergyCategory{
			{Label: "전기", Kind: billing.KindElectricity, Usage: "245kWh", Cost: 45230, Comparison: "평균 대비 12% 적음"},
		},
		PaymentHistory: []billing.PaymentEntry{{BillingMonth: "2025.10", Amount: 243100, Status: "납부완료"}},
	}
	page, err := document.Build(rec, document.DefaultOptions())
	require.NoError(t, err)

	stats, err := c.AppendTree(context.Background(), pageID, page.Children)
	require.NoError(t, err)
	require.Zero(t, stats.Failed)
	require.Len(t, srv.Children(pageID), len(page.Children))
}

func TestAppendTree_BillingPageManyLineItems(t *testing.T) {
	srv := notiontest.NewServer(t)
	c := newTestClient(t, srv)
	pageID := newPage(t, c)

	rec := &billing.Record{
		CollectedAt:        time.Date(2025, 12, 19, 9, 0, 0, 0, time.UTC),
		MaintenancePayment: billing.Payment{Amount: 257430, BillingMonth: 11},
	}
	for i := range 120 {
		rec.MaintenanceItems = append(rec.MaintenanceItems, billing.LineItem{Name: fmt.Sprintf("항목%03d", i), Current: int64(1000 + i)})
	}
	page, err := document.Build(rec, document.DefaultOptions())
	require.NoError(t, err)

	stats, err := c.AppendTree(context.Background(), pageID, page.Children)
	require.NoError(t, err)
	require.Zero(t, stats.Failed)
	for _, n := range requestBlocks(t, srv) {
		require.LessOrEqual(t, n, MaxBlocksPerRequest)
	}

	var stored int
	for _, top := range srv.Children(pageID) {
		if top.Type != "toggle" || len(top.Children) == 0 || top.Children[0].Type != "column_list" {
			continue
		}
		for _, col := range top.Children[0].Children {
			stored += len(col.Children)
		}
	}
	require.Equal(t, 120, stored)
}

// --- Encoding Tests ---

func TestPrepare_SplitsAtBudget(t *testing.T) {
	shallow := &document.Toggle{Items: paragraphs(3)}
	it, err := prepare(shallow)
	require.NoError(t, err)
	require.Empty(t, it.defers)
	require.Equal(t, 4, it.size)

	deep := &document.Toggle{Items: []document.Node{&document.Toggle{Items: []document.Node{&document.Toggle{Items: paragraphs(1)}}}}}
	it, err = prepare(deep)
	require.NoError(t, err)
	require.Len(t, it.defers, 1)
	require.Empty(t, it.defers[0].path)
	require.Equal(t, 1, it.size)
}

func TestPrepare_TruncatesColumns(t *testing.T) {
	columns := &document.ColumnList{Columns: []*document.Column{
		{Items: paragraphs(80)},
		{Items: paragraphs(80)},
	}}
	it, err := prepare(columns)
	require.NoError(t, err)
	require.Equal(t, MaxBlocksPerRequest, it.size)
	require.Equal(t, document.Count(columns, -1), it.total())

	require.Len(t, it.defers, 2)
	require.Equal(t, []int{0}, it.defers[0].path)
	require.Equal(t, []int{1}, it.defers[1].path)
	require.Len(t, it.defers[0].nodes, 80-49+1)
	require.Len(t, it.defers[1].nodes, 80-49)
}

func TestBatches(t *testing.T) {
	items := []item{{size: 60}, {size: 30}, {size: 20}, {size: 150}, {size: 1}}
	got := batches(items)
	require.Len(t, got, 4)
	require.Len(t, got[0], 2)
	require.Len(t, got[1], 1)
	require.Len(t, got[2], 1)
	require.Len(t, got[3], 1)
}
