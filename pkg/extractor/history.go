package extractor

import (
	"regexp"

	"github.com/PuerkitoBio/goquery"

	"github.com/jmylchreest/aptledger/pkg/billing"
	"github.com/jmylchreest/aptledger/pkg/normalize"
)

const minHistoryCells = 7

var historyDatePattern = regexp.MustCompile(`\d{4}\.\d{2}\.\d{2}`)

// PaymentHistory reads the payment history table in page order. The desktop
// table is preferred over any other table.table-w on the page. Rows need at
// least seven cells and a dotted date in the first one.
func PaymentHistory(html string) ([]billing.PaymentEntry, error) {
	doc, err := parse(html)
	if err != nil {
		return nil, err
	}

	table := doc.Find("div#hidden-xs2 table.table-w").First()
	if table.Length() == 0 {
		table = doc.Find("table.table-w").First()
	}

	out := make([]billing.PaymentEntry, 0)
	table.Find("tbody").First().Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < minHistoryCells {
			return
		}
		paid := text(cells.Eq(0))
		if !historyDatePattern.MatchString(paid) {
			return
		}
		out = append(out, billing.PaymentEntry{
			PaidOn:       dateOrText(paid),
			Amount:       normalize.ParseAmount(cells.Eq(1).Text()),
			BillingMonth: text(cells.Eq(2)),
			DueDate:      dateOrText(text(cells.Eq(3))),
			Bank:         text(cells.Eq(4)),
			Method:       text(cells.Eq(5)),
			Status:       text(cells.Eq(6)),
		})
	})
	return out, nil
}
