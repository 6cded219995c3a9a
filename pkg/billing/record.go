// Package billing defines the normalized billing snapshot assembled from the
// APT.i portal pages, plus the helpers that derive unit labels, billing
// periods and settlement status from it.
package billing

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Record is the page-independent billing snapshot produced by one collection
// run. It is built once and not mutated afterwards.
type Record struct {
	CollectedAt time.Time `json:"collected_at" yaml:"collected_at"`

	// UnitID is the zero-padded building and unit number, e.g. "01010305".
	// Empty when the unit page could not be read.
	UnitID string `json:"unit_id" yaml:"unit_id" validate:"omitempty,len=8,number"`

	MaintenanceItems   []LineItem       `json:"maintenance_items" yaml:"maintenance_items" validate:"dive"`
	MaintenancePayment Payment          `json:"maintenance_payment" yaml:"maintenance_payment"`
	EnergyCategories   []EnergyCategory `json:"energy_categories" yaml:"energy_categories" validate:"dive"`
	EnergyDetails      []EnergyDetail   `json:"energy_details" yaml:"energy_details" validate:"dive"`

	// PaymentHistory keeps the order the portal presents, most recent first.
	PaymentHistory []PaymentEntry `json:"payment_history" yaml:"payment_history" validate:"dive"`
}

// LineItem is one row of the maintenance cost statement.
type LineItem struct {
	Name     string `json:"name" yaml:"name"`
	Current  int64  `json:"current" yaml:"current" validate:"min=0"`
	Previous int64  `json:"previous" yaml:"previous" validate:"min=0"`
	Delta    int64  `json:"delta" yaml:"delta"`
}

// Payment summarizes the amount due for the current statement.
type Payment struct {
	Amount  int64 `json:"amount" yaml:"amount" validate:"min=0"`
	Charged int64 `json:"charged" yaml:"charged" validate:"min=0"`

	// BillingMonth is 1-12, or 0 when the page did not state it.
	BillingMonth int `json:"billing_month" yaml:"billing_month" validate:"min=0,max=12"`

	// DueDate is YYYY-MM-DD when DueDateText could be parsed.
	DueDate     string `json:"due_date,omitempty" yaml:"due_date,omitempty"`
	DueDateText string `json:"due_date_text,omitempty" yaml:"due_date_text,omitempty"`
	Status      string `json:"status,omitempty" yaml:"status,omitempty"`

	Comparison Comparison `json:"comparison" yaml:"comparison"`
}

// Comparison holds the reference amounts the cost page shows next to the
// current bill. Zero means the figure was not found.
type Comparison struct {
	PreviousYear          int64 `json:"previous_year,omitempty" yaml:"previous_year,omitempty" validate:"min=0"`
	SameAreaLowest        int64 `json:"same_area_lowest,omitempty" yaml:"same_area_lowest,omitempty" validate:"min=0"`
	SameAreaAverage       int64 `json:"same_area_average,omitempty" yaml:"same_area_average,omitempty" validate:"min=0"`
	EnergySameAreaLowest  int64 `json:"energy_same_area_lowest,omitempty" yaml:"energy_same_area_lowest,omitempty" validate:"min=0"`
	EnergySameAreaAverage int64 `json:"energy_same_area_average,omitempty" yaml:"energy_same_area_average,omitempty" validate:"min=0"`
}

// IsZero reports whether no comparison figure was found.
func (c Comparison) IsZero() bool {
	return c == Comparison{}
}

// EnergyCategory is one utility box on the energy category page.
type EnergyCategory struct {
	Label string     `json:"label" yaml:"label"`
	Kind  EnergyKind `json:"kind" yaml:"kind"`

	// Usage is the figure as displayed, unit suffix included.
	Usage      string          `json:"usage" yaml:"usage"`
	UsageValue decimal.Decimal `json:"usage_value" yaml:"usage_value"`
	Cost       int64           `json:"cost" yaml:"cost" validate:"min=0"`
	Comparison string          `json:"comparison,omitempty" yaml:"comparison,omitempty"`
}

// EnergyDetail is one bill box on the energy detail page.
type EnergyDetail struct {
	Label      string     `json:"label" yaml:"label"`
	Kind       EnergyKind `json:"kind" yaml:"kind"`
	Total      int64      `json:"total" yaml:"total" validate:"min=0"`
	Comparison string     `json:"comparison,omitempty" yaml:"comparison,omitempty"`
	Breakdown  []Charge   `json:"breakdown,omitempty" yaml:"breakdown,omitempty" validate:"dive"`
}

// Charge is a named amount inside an energy bill breakdown.
type Charge struct {
	Name   string `json:"name" yaml:"name"`
	Amount int64  `json:"amount" yaml:"amount" validate:"min=0"`
}

// PaymentEntry is one row of the payment history table.
type PaymentEntry struct {
	// PaidOn and DueDate are YYYY-MM-DD when parseable, otherwise the cell text.
	PaidOn       string `json:"paid_on" yaml:"paid_on"`
	Amount       int64  `json:"amount" yaml:"amount" validate:"min=0"`
	BillingMonth string `json:"billing_month" yaml:"billing_month"`
	DueDate      string `json:"due_date" yaml:"due_date"`
	Bank         string `json:"bank" yaml:"bank"`
	Method       string `json:"method" yaml:"method"`
	Status       string `json:"status" yaml:"status"`
}

// Settled reports whether the portal marks the entry as completed.
func (e PaymentEntry) Settled() bool {
	return strings.Contains(e.Status, "완료")
}

// EnergyKind classifies an energy label into a known utility type.
type EnergyKind string

const (
	KindElectricity EnergyKind = "electricity"
	KindWater       EnergyKind = "water"
	KindHeating     EnergyKind = "heating"
	KindGas         EnergyKind = "gas"
	KindOther       EnergyKind = "other"
)

// ClassifyEnergy maps a portal label such as "전기 사용량" or "난방(열량)" to
// its utility kind. The first matching keyword wins.
func ClassifyEnergy(label string) EnergyKind {
	switch {
	case strings.Contains(label, "전기"):
		return KindElectricity
	case strings.Contains(label, "수도"):
		return KindWater
	case strings.Contains(label, "난방"), strings.Contains(label, "열"):
		return KindHeating
	case strings.Contains(label, "가스"):
		return KindGas
	default:
		return KindOther
	}
}

// EnergyCosts returns the category cost per known kind. If a kind appears
// more than once the last box wins.
func (r *Record) EnergyCosts() map[EnergyKind]int64 {
	costs := make(map[EnergyKind]int64, 4)
	for _, c := range r.EnergyCategories {
		if c.Kind == KindOther || c.Kind == "" {
			continue
		}
		costs[c.Kind] = c.Cost
	}
	return costs
}
