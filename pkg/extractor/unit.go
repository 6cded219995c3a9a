package extractor

import (
	"regexp"

	"github.com/jmylchreest/aptledger/pkg/billing"
)

var unitPattern = regexp.MustCompile(`(\d+)동\s*(\d+)호`)

// UnitID reads the building and unit number from the home page. The unit
// banner is checked first, then the whole body. It returns "" when neither
// holds a "<n>동 <n>호" reference.
func UnitID(html string) (string, error) {
	doc, err := parse(html)
	if err != nil {
		return "", err
	}

	for _, candidate := range []string{
		text(doc.Find("div.Nbox1_txt10")),
		text(doc.Find("body")),
	} {
		if m := unitPattern.FindStringSubmatch(candidate); m != nil {
			if id := billing.FormatUnitID(m[1], m[2]); id != "" {
				return id, nil
			}
		}
	}
	return "", nil
}
