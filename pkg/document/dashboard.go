package document

import (
	"github.com/jmylchreest/aptledger/pkg/billing"
)

// DashboardTitle is the fixed title of the dashboard page, so a rerun can
// find and replace the previous one.
const DashboardTitle = "🏠 관리비 대시보드"

// BuildDashboard builds the summary page kept under the dashboard parent
// page. It carries only a title property.
func BuildDashboard(rec *billing.Record) *Page {
	costs := rec.EnergyCosts()
	pay := rec.MaintenancePayment

	rows := [][2]string{
		{"청구월", PageTitle(rec)},
		{"동호수", billing.UnitLabel(rec.UnitID)},
		{"총 납부액", won(pay.Amount)},
		{"부과 금액", won(pay.Charged)},
		{"⚡ 전기", won(costs[billing.KindElectricity])},
		{"💧 수도", won(costs[billing.KindWater])},
		{"🔥 난방/가스", won(costs[billing.KindHeating] + costs[billing.KindGas])},
		{"납부기한", pay.DueDateText},
		{"납부상태", string(rec.Status())},
	}

	table := &Table{Width: 2, ColumnHeader: true}
	table.Rows = append(table.Rows, &TableRow{Cells: [][]Span{Plain("항목"), Plain("값")}})
	for _, r := range rows {
		table.Rows = append(table.Rows, &TableRow{Cells: [][]Span{Plain(r[0]), Plain(r[1])}})
	}

	return &Page{
		Title:      DashboardTitle,
		Properties: map[string]Property{"title": Title(DashboardTitle)},
		Children: []Node{
			headerCallout(rec),
			table,
			&Paragraph{Text: []Span{{
				Text:  "마지막 업데이트: " + rec.CollectedAt.Format("2006-01-02 15:04"),
				Color: ColorGray,
			}}},
		},
	}
}
