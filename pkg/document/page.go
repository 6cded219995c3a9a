package document

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/jmylchreest/aptledger/internal/output"
	"github.com/jmylchreest/aptledger/pkg/billing"
	"github.com/jmylchreest/aptledger/pkg/normalize"
)

// historyRows is how many payment history entries the page shows, both in
// the trend line and in the history table.
const historyRows = 6

const noTrendData = "데이터 없음"

// Options tunes Build.
type Options struct {
	// ChunkLimit caps the characters per code block of the raw record.
	ChunkLimit int

	// IncludeComparison adds the cost page's comparison figures to the
	// right-hand column.
	IncludeComparison bool

	// IncludeStatus sets the 납부상태 select property.
	IncludeStatus bool
}

// DefaultOptions returns the options used for the billing database.
func DefaultOptions() Options {
	return Options{
		ChunkLimit:        DefaultChunkLimit,
		IncludeComparison: true,
		IncludeStatus:     true,
	}
}

// Page is a page to create: its title, database properties and body.
type Page struct {
	Title      string              `json:"title"`
	Properties map[string]Property `json:"properties"`
	Children   []Node              `json:"children"`
}

// Build maps rec onto the billing page. The same record always produces the
// same page.
func Build(rec *billing.Record, opts Options) (*Page, error) {
	if opts.ChunkLimit <= 0 {
		opts.ChunkLimit = DefaultChunkLimit
	}

	raw, err := output.MarshalJSON(rec, "  ")
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}

	children := []Node{
		headerCallout(rec),
		energyColumns(rec, opts),
		&Divider{},
		lineItemToggle(rec.MaintenanceItems),
	}
	if len(rec.EnergyDetails) > 0 {
		children = append(children, energyDetailToggle(rec.EnergyDetails))
	}
	children = append(children,
		&Divider{},
		historyToggle(rec.PaymentHistory),
		&Toggle{
			Text:  Plain("📎 고지서 원본"),
			Items: CodeBlocks(string(raw), "json", opts.ChunkLimit),
		},
	)

	return &Page{
		Title:      PageTitle(rec),
		Properties: Properties(rec, opts),
		Children:   children,
	}, nil
}

// Trend renders the most recent payments oldest first, e.g.
// "10월: 23만 | 11월: 24만". history is most recent first. Entries whose
// billing month does not parse are left out.
func Trend(history []billing.PaymentEntry) string {
	recent := history[:min(len(history), historyRows)]

	parts := make([]string, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		_, month, ok := normalize.ParseBillingMonth(recent[i].BillingMonth)
		if !ok {
			continue
		}
		parts = append(parts, fmt.Sprintf("%d월: %d만", month, normalize.ManWon(recent[i].Amount)))
	}
	if len(parts) == 0 {
		return noTrendData
	}
	return strings.Join(parts, " | ")
}

// SortLineItems returns a copy of items ordered by current amount, highest
// first. Items with equal amounts keep their page order.
func SortLineItems(items []billing.LineItem) []billing.LineItem {
	sorted := slices.Clone(items)
	slices.SortStableFunc(sorted, func(a, b billing.LineItem) int {
		return cmp.Compare(b.Current, a.Current)
	})
	return sorted
}

func won(amount int64) string {
	return normalize.FormatWon(amount) + "원"
}

func headerCallout(rec *billing.Record) *Callout {
	period := rec.Period()
	pay := rec.MaintenancePayment

	text := []Span{
		{Text: fmt.Sprintf("%s | %d월분 관리비 명세서\n", billing.UnitLabel(rec.UnitID), period.Month), Bold: true},
		{Text: "이번 달 청구액: "},
		{Text: won(pay.Amount), Bold: true, Code: true},
	}
	if rec.Status() != billing.StatusPaid {
		due := pay.DueDateText
		if due == "" {
			due = pay.DueDate
		}
		if due != "" {
			text = append(text, Span{Text: fmt.Sprintf(" (납기일: %s)", due), Color: ColorRed})
		}
	}
	text = append(text, Span{
		Text:  "\n📅 최근 6개월 추이: " + Trend(rec.PaymentHistory),
		Color: ColorGray,
	})

	return &Callout{Icon: "🏠", Color: ColorGrayBackground, Text: text}
}

func energyColumns(rec *billing.Record, opts Options) *ColumnList {
	left := &Column{Items: []Node{&Heading{Text: Plain("⚡ 에너지 및 주요 지출")}}}
	right := &Column{Items: []Node{&Heading{Text: Plain("📊 이웃 평균 비교")}}}

	for _, e := range rec.EnergyCategories {
		usage := e.Usage
		if usage == "" {
			usage = "0"
		}
		left.Items = append(left.Items, &BulletedItem{
			Text:  Plain(fmt.Sprintf("%s: %s", e.Label, usage)),
			Items: []Node{&Paragraph{Text: Plain("비용: " + won(e.Cost))}},
		})
		if e.Comparison != "" {
			right.Items = append(right.Items, &Callout{
				Icon:  "💬",
				Color: ColorBlueBackground,
				Text:  Plain(e.Comparison),
			})
		}
	}

	if opts.IncludeComparison {
		if c := comparisonCallout(rec.MaintenancePayment.Comparison); c != nil {
			right.Items = append(right.Items, c)
		}
	}

	return &ColumnList{Columns: []*Column{left, right}}
}

func comparisonCallout(c billing.Comparison) *Callout {
	if c.IsZero() {
		return nil
	}

	var lines []string
	add := func(label string, amount int64) {
		if amount > 0 {
			lines = append(lines, fmt.Sprintf("%s: %s", label, won(amount)))
		}
	}
	add("전년 동월", c.PreviousYear)
	add("동일면적 최저", c.SameAreaLowest)
	add("동일면적 평균", c.SameAreaAverage)
	add("에너지 동일면적 최저", c.EnergySameAreaLowest)
	add("에너지 동일면적 평균", c.EnergySameAreaAverage)

	return &Callout{
		Icon:  "📈",
		Color: ColorGrayBackground,
		Text: []Span{
			{Text: "관리비 비교\n", Bold: true},
			{Text: strings.Join(lines, "\n")},
		},
	}
}

// lineItemToggle lays the sorted line items out in two columns, even
// positions left and odd positions right.
func lineItemToggle(items []billing.LineItem) *Toggle {
	t := &Toggle{Text: Plain("📑 명세서 상세 항목")}

	sorted := SortLineItems(items)
	switch len(sorted) {
	case 0:
		t.Items = []Node{&Paragraph{Text: Plain("항목 없음")}}
		return t
	case 1:
		// a column list needs two non-empty columns
		t.Items = []Node{lineItemCallout(sorted[0])}
		return t
	}

	left, right := &Column{}, &Column{}
	for i, item := range sorted {
		if i%2 == 0 {
			left.Items = append(left.Items, lineItemCallout(item))
		} else {
			right.Items = append(right.Items, lineItemCallout(item))
		}
	}
	t.Items = []Node{&ColumnList{Columns: []*Column{left, right}}}
	return t
}

func lineItemCallout(item billing.LineItem) *Callout {
	trend, color := "-", ColorGray
	switch {
	case item.Delta > 0:
		trend, color = "🔺 +"+won(item.Delta), ColorRed
	case item.Delta < 0:
		trend, color = "🔽 "+won(item.Delta), ColorBlue
	}

	return &Callout{
		Icon:  "💰",
		Color: ColorGrayBackground,
		Text: []Span{
			{Text: item.Name + "\n", Bold: true},
			{Text: "당월: " + won(item.Current) + "\n"},
			{Text: "증감: "},
			{Text: trend, Color: color},
		},
	}
}

func energyDetailToggle(details []billing.EnergyDetail) *Toggle {
	t := &Toggle{Text: Plain("🔌 에너지 요금 상세")}
	for _, d := range details {
		var sub []Node
		for _, c := range d.Breakdown {
			sub = append(sub, &Paragraph{Text: Plain(fmt.Sprintf("%s: %s", c.Name, won(c.Amount)))})
		}
		if d.Comparison != "" {
			sub = append(sub, &Paragraph{Text: []Span{{Text: d.Comparison, Color: ColorGray}}})
		}
		t.Items = append(t.Items, &BulletedItem{
			Text:  []Span{{Text: fmt.Sprintf("%s: %s", d.Label, won(d.Total)), Bold: true}},
			Items: sub,
		})
	}
	return t
}

var historyHeader = []string{"납기월", "결제일", "금액", "상태"}

func historyToggle(history []billing.PaymentEntry) *Toggle {
	table := &Table{Width: len(historyHeader), ColumnHeader: true}

	header := &TableRow{}
	for _, h := range historyHeader {
		header.Cells = append(header.Cells, Plain(h))
	}
	table.Rows = append(table.Rows, header)

	for _, e := range history[:min(len(history), historyRows)] {
		status := ColorDefault
		if e.Settled() {
			status = ColorBlue
		}
		table.Rows = append(table.Rows, &TableRow{Cells: [][]Span{
			Plain(e.BillingMonth),
			Plain(e.PaidOn),
			Plain(won(e.Amount)),
			{{Text: e.Status, Color: status}},
		}})
	}

	return &Toggle{
		Text:  Plain("🕒 최근 6개월 납부 기록"),
		Items: []Node{table},
	}
}
