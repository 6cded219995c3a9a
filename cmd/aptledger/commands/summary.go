package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/jmylchreest/aptledger/pkg/billing"
	"github.com/jmylchreest/aptledger/pkg/collector"
	"github.com/jmylchreest/aptledger/pkg/publish"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	return t
}

func won(n int64) string {
	return humanize.Comma(n) + "원"
}

// renderRecord prints the headline figures of rec.
func renderRecord(w io.Writer, rec *billing.Record) {
	period := rec.Period()

	t := newTable(w)
	t.SetTitle("%d년 %d월 관리비", period.Year, period.Month)
	t.AppendRow(table.Row{"세대", billing.UnitLabel(rec.UnitID)})
	t.AppendRow(table.Row{"납부할 금액", won(rec.MaintenancePayment.Amount)})
	t.AppendRow(table.Row{"부과 금액", won(rec.MaintenancePayment.Charged)})
	if rec.MaintenancePayment.DueDate != "" {
		t.AppendRow(table.Row{"납기일", rec.MaintenancePayment.DueDate})
	}
	t.AppendRow(table.Row{"상태", string(rec.Status())})
	t.AppendSeparator()
	for _, e := range rec.EnergyCategories {
		t.AppendRow(table.Row{e.Label, fmt.Sprintf("%s / %s", e.Usage, won(e.Cost))})
	}
	t.AppendSeparator()
	t.AppendRow(table.Row{"관리비 항목", len(rec.MaintenanceItems)})
	t.AppendRow(table.Row{"납부 내역", len(rec.PaymentHistory)})
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	t.Render()
}

// renderSteps prints one row per collection step.
func renderSteps(w io.Writer, steps []collector.StepResult) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Step", "Page", "Time", "Result"})
	for _, st := range steps {
		result := "ok"
		if !st.OK() {
			result = st.Err.Error()
		}
		t.AppendRow(table.Row{st.Name, st.Page, st.Duration.Round(time.Millisecond), result})
	}
	t.Render()
}

// renderSync prints what a sync did in Notion.
func renderSync(w io.Writer, res *publish.Result) {
	t := newTable(w)
	if res.Skipped {
		t.AppendRow(table.Row{"Notion", "skipped: billing period already paid (use --force)"})
		t.Render()
		return
	}
	t.AppendRow(table.Row{"Page", res.URL})
	t.AppendRow(table.Row{"Archived", res.Archived})
	t.AppendRow(table.Row{"Blocks", fmt.Sprintf("%d in %d requests", res.Append.Blocks, res.Append.Requests)})
	if res.Append.Failed > 0 {
		t.AppendRow(table.Row{"Failed blocks", res.Append.Failed})
	}
	if res.DashboardID != "" {
		t.AppendRow(table.Row{"Dashboard", res.DashboardID})
	}
	t.Render()
}
