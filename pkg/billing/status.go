package billing

import (
	"strings"

	"github.com/jmylchreest/aptledger/pkg/normalize"
)

// Status is the settlement state shown on the published page.
type Status string

const (
	StatusPaid    Status = "납부완료"
	StatusDue     Status = "납기내"
	StatusOverdue Status = "미납 (연체)"
	StatusUnpaid  Status = "미납"
)

// Period identifies the billing month a record belongs to.
type Period struct {
	Year  int
	Month int

	// MonthKnown is false when the cost page did not state the month and
	// Month was taken from the collection time instead.
	MonthKnown bool
}

// Key renders the portal's "YYYY.MM" form used in the payment history.
func (p Period) Key() string {
	return normalize.FormatBillingMonth(p.Year, p.Month)
}

// Period derives the billing period. The month comes from the cost page,
// otherwise from CollectedAt. A stated month is placed relative to the most
// recent payment history entry: the same year unless the month falls before
// that entry's month, which means the bill rolled into the next year. Without
// usable history the month is placed at or before CollectedAt.
func (r *Record) Period() Period {
	p := Period{
		Year:  r.CollectedAt.Year(),
		Month: int(r.CollectedAt.Month()),
	}
	m := r.MaintenancePayment.BillingMonth
	if m < 1 || m > 12 {
		return p
	}
	p.Month = m
	p.MonthKnown = true

	if len(r.PaymentHistory) > 0 {
		if hy, hm, ok := normalize.ParseBillingMonth(r.PaymentHistory[0].BillingMonth); ok {
			p.Year = hy
			if m < hm {
				p.Year++
			}
			return p
		}
	}
	if m > int(r.CollectedAt.Month()) {
		p.Year--
	}
	return p
}

// IsSettled reports whether the payment history holds a completed payment
// for the given billing month.
func (r *Record) IsSettled(year, month int) bool {
	key := normalize.FormatBillingMonth(year, month)
	for _, e := range r.PaymentHistory {
		if strings.TrimSpace(e.BillingMonth) == key && e.Settled() {
			return true
		}
	}
	return false
}

// Status derives the settlement state of the record's own period.
func (r *Record) Status() Status {
	p := r.Period()
	if r.IsSettled(p.Year, p.Month) {
		return StatusPaid
	}
	text := r.MaintenancePayment.Status
	switch {
	case strings.Contains(text, "납기후"):
		return StatusOverdue
	case strings.Contains(text, "납기내"):
		return StatusDue
	default:
		return StatusUnpaid
	}
}
