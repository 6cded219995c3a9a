package billing

import (
	"fmt"
	"strconv"
)

const unitFieldWidth = 4

// FormatUnitID joins a building and unit number into the fixed-width
// identifier, each part zero-padded to four digits. Inputs are decimal digit
// strings as read from the page; anything that is not a number in
// [0, 9999] yields "".
func FormatUnitID(building, unit string) string {
	if !allDigits(building) || !allDigits(unit) {
		return ""
	}
	b, err := strconv.Atoi(building)
	if err != nil || b > 9999 {
		return ""
	}
	u, err := strconv.Atoi(unit)
	if err != nil || u > 9999 {
		return ""
	}
	return fmt.Sprintf("%0*d%0*d", unitFieldWidth, b, unitFieldWidth, u)
}

// SplitUnitID reverses FormatUnitID, returning the numbers with leading
// zeros stripped.
func SplitUnitID(id string) (building, unit int, ok bool) {
	if len(id) != 2*unitFieldWidth || !allDigits(id) {
		return 0, 0, false
	}
	b, _ := strconv.Atoi(id[:unitFieldWidth])
	u, _ := strconv.Atoi(id[unitFieldWidth:])
	return b, u, true
}

// UnitLabel renders "101동 305호". Identifiers that do not split into two
// non-zero numbers are returned unchanged.
func UnitLabel(id string) string {
	b, u, ok := SplitUnitID(id)
	if !ok || b == 0 || u == 0 {
		return id
	}
	return fmt.Sprintf("%d동 %d호", b, u)
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
