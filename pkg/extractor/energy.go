package extractor

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/jmylchreest/aptledger/pkg/billing"
	"github.com/jmylchreest/aptledger/pkg/normalize"
)

// EnergyCategories reads the utility boxes of the energy category page.
// Inside a box's unit list the figures before the divider item are usage and
// those after it are cost. Boxes without a heading are skipped.
func EnergyCategories(html string) ([]billing.EnergyCategory, error) {
	doc, err := parse(html)
	if err != nil {
		return nil, err
	}

	out := make([]billing.EnergyCategory, 0)
	doc.Find("div.engBox").Each(func(_ int, box *goquery.Selection) {
		label := text(box.Find("h3"))
		if label == "" {
			return
		}

		var usage, cost string
		afterLine := false
		box.Find("ul.engUnit").First().Find("li").Each(func(_ int, li *goquery.Selection) {
			if li.HasClass("line") {
				afterLine = true
				return
			}
			strong := li.Find("strong")
			if strong.Length() == 0 {
				return
			}
			if afterLine {
				cost = text(strong)
			} else {
				usage = text(strong)
			}
		})

		out = append(out, billing.EnergyCategory{
			Label:      label,
			Kind:       billing.ClassifyEnergy(label),
			Usage:      usage,
			UsageValue: normalize.ParseQuantity(usage),
			Cost:       normalize.ParseAmount(cost),
			Comparison: text(box.Find("div.txtBox").First().Find("strong")),
		})
	})
	return out, nil
}

// EnergyDetails reads the per-utility bill boxes of the energy detail page,
// including the charge breakdown table.
func EnergyDetails(html string) ([]billing.EnergyDetail, error) {
	doc, err := parse(html)
	if err != nil {
		return nil, err
	}

	out := make([]billing.EnergyDetail, 0)
	doc.Find("div.bill_box").Each(func(_ int, box *goquery.Selection) {
		label := text(box.Find("h3"))
		if label == "" {
			return
		}

		detail := billing.EnergyDetail{
			Label:      label,
			Kind:       billing.ClassifyEnergy(label),
			Total:      normalize.ParseAmount(text(box.Find("span.totalBill strong"))),
			Comparison: text(box.Find("div.energy_data").First().Find("p.txt")),
		}

		box.Find("div.tbl_bill").First().Find("tr").Each(func(_ int, row *goquery.Selection) {
			ths := row.Find("th")
			tds := row.Find("td")
			for i := 0; i < ths.Length() && i < tds.Length(); i++ {
				name := text(ths.Eq(i))
				if name == "" {
					continue
				}
				detail.Breakdown = append(detail.Breakdown, billing.Charge{
					Name:   name,
					Amount: normalize.ParseAmount(tds.Eq(i).Text()),
				})
			}
		})

		out = append(out, detail)
	})
	return out, nil
}
