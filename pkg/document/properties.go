package document

import (
	"encoding/json"
	"fmt"

	"github.com/jmylchreest/aptledger/pkg/billing"
)

// Database property names.
const (
	PropName         = "Name"
	PropBillingMonth = "청구월"
	PropUnit         = "동호수"
	PropTotal        = "총 납부액"
	PropHeatingGas   = "🔥 난방/가스"
	PropWater        = "💧 수도요금"
	PropElectricity  = "⚡ 전기요금"
	PropDueDate      = "납부기한"
	PropCollectedAt  = "수집일시"
	PropStatus       = "납부상태"
)

// collectedAtLayout is the local timestamp form stored in 수집일시.
const collectedAtLayout = "2006-01-02T15:04:05"

// PropertyType is a Notion page property type.
type PropertyType string

const (
	PropertyTitle    PropertyType = "title"
	PropertyRichText PropertyType = "rich_text"
	PropertyNumber   PropertyType = "number"
	PropertyDate     PropertyType = "date"
	PropertySelect   PropertyType = "select"
)

// Property is one typed page property value.
type Property struct {
	Type   PropertyType
	Text   string
	Number int64
	Date   string
}

// Title returns a title property.
func Title(s string) Property { return Property{Type: PropertyTitle, Text: s} }

// RichText returns a rich text property.
func RichText(s string) Property { return Property{Type: PropertyRichText, Text: s} }

// Number returns a number property.
func Number(n int64) Property { return Property{Type: PropertyNumber, Number: n} }

// Date returns a date property starting at start.
func Date(start string) Property { return Property{Type: PropertyDate, Date: start} }

// Select returns a select property naming an option.
func Select(name string) Property { return Property{Type: PropertySelect, Text: name} }

// MarshalJSON encodes the property value in Notion's page property shape.
func (p Property) MarshalJSON() ([]byte, error) {
	var v any
	switch p.Type {
	case PropertyTitle, PropertyRichText:
		v = encodeSpans(Plain(p.Text))
	case PropertyNumber:
		v = p.Number
	case PropertyDate:
		v = map[string]any{"start": p.Date}
	case PropertySelect:
		v = map[string]any{"name": p.Text}
	default:
		return nil, fmt.Errorf("unknown property type %q", p.Type)
	}
	return json.Marshal(map[string]any{string(p.Type): v})
}

// PageTitle renders "2025년 11월 관리비" for the record's period.
func PageTitle(rec *billing.Record) string {
	p := rec.Period()
	return fmt.Sprintf("%d년 %d월 관리비", p.Year, p.Month)
}

// Properties maps the record onto the billing database columns. Energy
// columns are set only for kinds with a positive cost; 청구월 and 납부기한
// only when the cost page stated them.
func Properties(rec *billing.Record, opts Options) map[string]Property {
	period := rec.Period()
	props := map[string]Property{
		PropName:        Title(PageTitle(rec)),
		PropTotal:       Number(rec.MaintenancePayment.Amount),
		PropCollectedAt: Date(rec.CollectedAt.Format(collectedAtLayout)),
	}

	if period.MonthKnown {
		props[PropBillingMonth] = Number(int64(period.Month))
	}
	if label := billing.UnitLabel(rec.UnitID); label != "" {
		props[PropUnit] = RichText(label)
	}

	costs := rec.EnergyCosts()
	if heat := costs[billing.KindHeating] + costs[billing.KindGas]; heat > 0 {
		props[PropHeatingGas] = Number(heat)
	}
	if water := costs[billing.KindWater]; water > 0 {
		props[PropWater] = Number(water)
	}
	if elec := costs[billing.KindElectricity]; elec > 0 {
		props[PropElectricity] = Number(elec)
	}

	if due := rec.MaintenancePayment.DueDate; due != "" {
		props[PropDueDate] = Date(due)
	}
	if opts.IncludeStatus {
		props[PropStatus] = Select(string(rec.Status()))
	}
	return props
}
