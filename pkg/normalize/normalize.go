// Package normalize turns the loosely formatted text found on portal pages into
// canonical values: integer won amounts, ISO dates, billing months and
// decimal usage quantities.
//
// Every parser here is total. Text that cannot be understood yields the zero
// value (or false) instead of an error, so a single malformed cell never
// aborts the surrounding record.
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

// maxAmountDigits bounds the integer part so IntPart never overflows.
const maxAmountDigits = 15

var (
	// amountPattern is anchored at the first digit of the input. The optional
	// 억 and 만 groups handle compound Korean amounts such as "1억 2,500만원".
	amountPattern = regexp.MustCompile(`^(?:(\d[\d,]*)\s*억\s*)?(?:(\d[\d,]*(?:\.\d+)?)\s*만\s*)?(\d[\d,]*(?:\.\d+)?)?`)

	quantityPattern = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)

	numericDatePattern = regexp.MustCompile(`^(\d{4})\s*([./-])\s*(\d{1,2})\s*([./-])\s*(\d{1,2})\.?(?:$|[T\s])`)
	koreanDatePattern  = regexp.MustCompile(`^(\d{4})\s*년\s*(\d{1,2})\s*월\s*(\d{1,2})\s*일?`)

	billingMonthPattern = regexp.MustCompile(`^(\d{4})\s*(?:[./-]|년)\s*(\d{1,2})`)
	monthPattern        = regexp.MustCompile(`(\d{1,2})\s*월`)

	phonePattern = regexp.MustCompile(`^0\d{9,10}$`)
)

// negativeMarkers are the glyphs the portal uses in front of a decrease.
var negativeMarkers = []string{"-", "−", "▼", "▽", "↓"}

// ParseAmount extracts a non-negative won amount from text such as
// "₩317,860", "317,860원" or "1억 2,000만원". Thousands separators, currency
// glyphs and unit suffixes are ignored; a fractional part is truncated.
// Input without digits yields 0.
func ParseAmount(text string) int64 {
	idx := strings.IndexFunc(text, isASCIIDigit)
	if idx < 0 {
		return 0
	}

	m := amountPattern.FindStringSubmatch(text[idx:])
	if m == nil {
		return 0
	}

	total := decimal.Zero
	if m[1] != "" {
		total = total.Add(parseDecimal(m[1]).Mul(decimal.New(1, 8)))
	}
	if m[2] != "" {
		total = total.Add(parseDecimal(m[2]).Mul(decimal.New(1, 4)))
	}
	if m[3] != "" {
		total = total.Add(parseDecimal(m[3]))
	}

	whole := total.Truncate(0)
	if len(whole.String()) > maxAmountDigits {
		return 0
	}
	return whole.IntPart()
}

// ParseSignedAmount is ParseAmount for change columns: a minus sign or a
// downward marker anywhere before the first digit makes the result negative.
func ParseSignedAmount(text string) int64 {
	v := ParseAmount(text)
	idx := strings.IndexFunc(text, isASCIIDigit)
	if idx <= 0 {
		return v
	}
	prefix := text[:idx]
	for _, marker := range negativeMarkers {
		if strings.Contains(prefix, marker) {
			return -v
		}
	}
	return v
}

// ParseQuantity extracts the first decimal number from a usage string such
// as "1,234.5kWh" or "12.3㎥". Input without digits yields zero.
func ParseQuantity(text string) decimal.Decimal {
	m := quantityPattern.FindString(text)
	if m == "" {
		return decimal.Zero
	}
	return parseDecimal(m)
}

// ParseDate normalizes "2025.12.31", "2025/12/31", "2025-12-31" (optionally
// followed by a time) and "2025년 12월 31일" to "2025-12-31". It reports false
// for anything else, including impossible calendar dates.
func ParseDate(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}

	var year, month, day string
	if m := numericDatePattern.FindStringSubmatch(text); m != nil {
		if m[2] != m[4] {
			return "", false
		}
		year, month, day = m[1], m[3], m[5]
	} else if m := koreanDatePattern.FindStringSubmatch(text); m != nil {
		year, month, day = m[1], m[2], m[3]
	} else {
		return "", false
	}

	y, _ := strconv.Atoi(year)
	mo, _ := strconv.Atoi(month)
	d, _ := strconv.Atoi(day)
	t := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || int(t.Month()) != mo || t.Day() != d {
		return "", false
	}
	return t.Format(time.DateOnly), true
}

// ParseBillingMonth splits "2025.11", "2025-11" or "2025년 11월" into a year
// and a month in [1,12].
func ParseBillingMonth(text string) (year, month int, ok bool) {
	m := billingMonthPattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return 0, 0, false
	}
	year, _ = strconv.Atoi(m[1])
	month, _ = strconv.Atoi(m[2])
	if month < 1 || month > 12 {
		return 0, 0, false
	}
	return year, month, true
}

// ParseMonth finds a "<n>월" month reference, e.g. in "12월분 부과 금액".
// It returns 0 when no month in [1,12] is present.
func ParseMonth(text string) int {
	m := monthPattern.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	month, _ := strconv.Atoi(m[1])
	if month < 1 || month > 12 {
		return 0
	}
	return month
}

// FormatBillingMonth renders the portal's "YYYY.MM" billing month key.
func FormatBillingMonth(year, month int) string {
	return fmt.Sprintf("%04d.%02d", year, month)
}

// IsPhoneNumber reports whether text is a 10-11 digit national mobile number
// starting with 0, hyphens ignored.
func IsPhoneNumber(text string) bool {
	return phonePattern.MatchString(strings.ReplaceAll(text, "-", ""))
}

// CleanText applies NFC normalization, folds non-breaking spaces and
// collapses whitespace runs into single spaces.
func CleanText(s string) string {
	s = norm.NFC.String(s)
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}

// FormatWon renders an amount with thousands separators, e.g. 317860 -> "317,860".
func FormatWon(amount int64) string {
	return humanize.Comma(amount)
}

// ManWon converts an amount to whole units of 10,000 won.
func ManWon(amount int64) int64 {
	return amount / 10000
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isASCIIDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
