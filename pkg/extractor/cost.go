package extractor

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jmylchreest/aptledger/pkg/billing"
	"github.com/jmylchreest/aptledger/pkg/normalize"
)

const (
	chargedLabel  = "월분 부과 금액"
	minLineCells  = 4
	minYearDigits = 5

	compareCardSelector = `div.card, div.compare-card, div[class*="compare"], div[class*="comparison"]`
)

var (
	cardAmountPattern  = regexp.MustCompile(`\d[\d,]*`)
	cardLowestPattern  = regexp.MustCompile(`최저[\s\S]{0,50}?(\d[\d,]*)`)
	cardAveragePattern = regexp.MustCompile(`평균[\s\S]{0,50}?(\d[\d,]*)`)

	previousYearPattern = regexp.MustCompile(`전년동월[\s\S]{0,100}?(\d[\d,]*)`)
	sameAreaPattern     = regexp.MustCompile(`우리아파트[\s\S]{0,200}?동일면적[\s\S]{0,500}?최저[\s\S]{0,50}?(\d[\d,]*)[\s\S]{0,100}?평균[\s\S]{0,50}?(\d[\d,]*)`)
	energyAreaPattern   = regexp.MustCompile(`에너지[\s\S]{0,100}?동일면적[\s\S]{0,500}?최저[\s\S]{0,50}?(\d[\d,]*)[\s\S]{0,100}?평균[\s\S]{0,50}?(\d[\d,]*)`)
)

// MaintenanceItems reads the statement rows of the cost page. Each item link
// is walked up to its row; rows with fewer than four cells are skipped.
func MaintenanceItems(html string) ([]billing.LineItem, error) {
	doc, err := parse(html)
	if err != nil {
		return nil, err
	}

	items := make([]billing.LineItem, 0)
	doc.Find("a.black").Each(func(_ int, link *goquery.Selection) {
		row := link.Closest("tr")
		if row.Length() == 0 {
			return
		}
		cells := row.Find("td")
		if cells.Length() < minLineCells {
			return
		}
		items = append(items, billing.LineItem{
			Name:     text(link),
			Current:  normalize.ParseAmount(cells.Eq(1).Text()),
			Previous: normalize.ParseAmount(cells.Eq(2).Text()),
			Delta:    normalize.ParseSignedAmount(cells.Eq(3).Text()),
		})
	})
	return items, nil
}

// MaintenancePayment reads the amount due, billing month, due date and
// status of the cost page, plus the comparison figures around them.
func MaintenancePayment(html string) (billing.Payment, error) {
	doc, err := parse(html)
	if err != nil {
		return billing.Payment{}, err
	}

	var p billing.Payment
	p.Amount = normalize.ParseAmount(text(doc.Find("span.costPay")))

	doc.Find("div.costpayBox dt").EachWithBreak(func(_ int, dt *goquery.Selection) bool {
		label := text(dt)
		if !strings.Contains(label, chargedLabel) {
			return true
		}
		if dd := dt.Next(); goquery.NodeName(dd) == "dd" {
			p.Charged = normalize.ParseAmount(dd.Text())
		}
		p.BillingMonth = normalize.ParseMonth(label)
		return false
	})

	p.DueDateText = text(doc.Find("div.endBox span"))
	p.DueDate = findDate(p.DueDateText)
	p.Status = text(doc.Find("div.dayBox p"))
	p.Comparison = comparison(doc)

	return p, nil
}

// comparison reads the figures from the comparison cards first and fills the
// gaps by scanning the body text.
func comparison(doc *goquery.Document) billing.Comparison {
	var c billing.Comparison

	doc.Find(compareCardSelector).Each(func(_ int, card *goquery.Selection) {
		body := normalize.CleanText(card.Text())

		if strings.Contains(body, "전년") && c.PreviousYear == 0 {
			for _, m := range cardAmountPattern.FindAllString(body, -1) {
				if digits := strings.ReplaceAll(m, ",", ""); len(digits) >= minYearDigits {
					c.PreviousYear = normalize.ParseAmount(digits)
					break
				}
			}
		}

		if strings.Contains(body, "동일면적") && strings.Contains(body, "우리아파트") {
			if v, ok := submatchAmount(cardLowestPattern, body); ok {
				c.SameAreaLowest = v
			}
			if v, ok := submatchAmount(cardAveragePattern, body); ok {
				c.SameAreaAverage = v
			}
		}

		if strings.Contains(body, "에너지") && strings.Contains(body, "동일면적") {
			if v, ok := submatchAmount(cardLowestPattern, body); ok {
				c.EnergySameAreaLowest = v
			}
			if v, ok := submatchAmount(cardAveragePattern, body); ok {
				c.EnergySameAreaAverage = v
			}
		}
	})

	body := normalize.CleanText(doc.Find("body").Text())

	if c.PreviousYear == 0 {
		if v, ok := submatchAmount(previousYearPattern, body); ok {
			c.PreviousYear = v
		}
	}
	if c.SameAreaLowest == 0 && c.SameAreaAverage == 0 {
		if m := sameAreaPattern.FindStringSubmatch(body); m != nil {
			c.SameAreaLowest = normalize.ParseAmount(m[1])
			c.SameAreaAverage = normalize.ParseAmount(m[2])
		}
	}
	if c.EnergySameAreaLowest == 0 && c.EnergySameAreaAverage == 0 {
		if m := energyAreaPattern.FindStringSubmatch(body); m != nil {
			c.EnergySameAreaLowest = normalize.ParseAmount(m[1])
			c.EnergySameAreaAverage = normalize.ParseAmount(m[2])
		}
	}

	return c
}

func submatchAmount(re *regexp.Regexp, s string) (int64, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	return normalize.ParseAmount(m[1]), true
}
