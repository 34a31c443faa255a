package run

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const resultsPerPage = 10

var (
	showingPattern   = regexp.MustCompile(`(?i)showing\s+\d[\d,]*\s*[-–]\s*\d[\d,]*\s+of\s+(\d[\d,]*)`)
	ofResultsPattern = regexp.MustCompile(`(?i)(\d[\d,]*)\s+(?:results|pros|professionals)\b`)
	digitsPattern    = regexp.MustCompile(`^\d+$`)
)

// summarySelectors scope the result-count lookup before the raw text
// fallback.
var summarySelectors = []string{
	`[data-testid="results-count"]`,
	`[class*="resultsCount"]`,
	`[class*="result-count"]`,
}

// paginationSelectors locate page-number links for the fallback count.
var paginationSelectors = []string{
	`nav[aria-label*="agination"] a`,
	`[class*="pagination"] a`,
	`a[href*="page="]`,
}

// CountPages infers the total page count from listing page markup: a
// "showing X-Y of Z" summary first, the highest numbered pagination link
// second, one page when neither appears.
func CountPages(html string) int {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return 1
	}

	if total := totalFromSummary(doc); total > 0 {
		return int(math.Ceil(float64(total) / resultsPerPage))
	}
	if max := maxPaginationLink(doc); max > 0 {
		return max
	}
	return 1
}

func totalFromSummary(doc *goquery.Document) int {
	for _, sel := range summarySelectors {
		if n := parseTotal(doc.Find(sel).First().Text()); n > 0 {
			return n
		}
	}
	return parseTotal(doc.Text())
}

func parseTotal(text string) int {
	if m := showingPattern.FindStringSubmatch(text); m != nil {
		return parseCount(m[1])
	}
	if m := ofResultsPattern.FindStringSubmatch(text); m != nil {
		return parseCount(m[1])
	}
	return 0
}

func maxPaginationLink(doc *goquery.Document) int {
	max := 0
	for _, sel := range paginationSelectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			label := strings.TrimSpace(s.Text())
			if digitsPattern.MatchString(label) {
				if n, err := strconv.Atoi(label); err == nil && n > max {
					max = n
				}
			}
		})
		if max > 0 {
			return max
		}
	}
	return max
}

func parseCount(s string) int {
	n, err := strconv.Atoi(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return 0
	}
	return n
}
