// Package extractor reads the APT.i page templates into billing values.
//
// Each function takes the raw HTML of one page and returns what it could
// find. Missing elements contribute zero values; an error is returned only
// when the document itself cannot be parsed.
package extractor

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jmylchreest/aptledger/pkg/normalize"
)

var embeddedDatePattern = regexp.MustCompile(`\d{4}\s*[./-]\s*\d{1,2}\s*[./-]\s*\d{1,2}|\d{4}\s*년\s*\d{1,2}\s*월\s*\d{1,2}\s*일?`)

func parse(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// text returns the cleaned text of the first element in s.
func text(s *goquery.Selection) string {
	if s.Length() == 0 {
		return ""
	}
	return normalize.CleanText(s.First().Text())
}

// findDate normalizes the first date embedded in s, e.g. "납부마감 2025.12.31".
func findDate(s string) string {
	m := embeddedDatePattern.FindString(s)
	if m == "" {
		return ""
	}
	iso, _ := normalize.ParseDate(m)
	return iso
}

// dateOrText prefers the normalized date and keeps the original text otherwise.
func dateOrText(s string) string {
	if iso := findDate(s); iso != "" {
		return iso
	}
	return s
}
