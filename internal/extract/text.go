package extract

import (
	"regexp"
	"strings"
)

// Raw-text fallbacks retained from the original container-regex extraction
// approach. They run last in each cascade, after every structural strategy
// has come up empty.

var (
	ratingTextPattern  = regexp.MustCompile(`(\d+\.?\d*)\s*[Ss]tar`)
	ratingOfPattern    = regexp.MustCompile(`(\d+\.?\d*)\s*out\s*of\s*\d+`)
	reviewsTextPattern = regexp.MustCompile(`(\d+(?:,\d+)*)\s*[Rr]eview`)
	ariaRatingPattern  = regexp.MustCompile(`Rating:\s*([\d.]+)`)
	namePrefixPattern  = regexp.MustCompile(`^([^(]+)\(`)

	addressPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\d+\s+[A-Za-z0-9\s,]+(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Drive|Dr|Lane|Ln|Court|Ct|Way|Place|Pl)[\s,]+[A-Za-z\s]+,\s*[A-Z]{2}\s+\d{5}`),
		regexp.MustCompile(`[A-Za-z0-9\s,]+(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Drive|Dr|Lane|Ln|Court|Ct|Way|Place|Pl)[\s,]+[A-Za-z\s]+,\s*[A-Z]{2}`),
	}
)

// ratingFromText pulls a star rating out of raw card text.
func ratingFromText(text string) string {
	if m := ratingTextPattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if m := ratingOfPattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// reviewsFromText pulls a review count out of raw card text.
func reviewsFromText(text string) string {
	if m := reviewsTextPattern.FindStringSubmatch(text); m != nil {
		return strings.ReplaceAll(m[1], ",", "")
	}
	return ""
}

// addressFromText pulls a street address out of raw card text.
func addressFromText(text string) string {
	for _, p := range addressPatterns {
		if m := p.FindString(text); m != "" {
			return strings.TrimSpace(m)
		}
	}
	return ""
}

// nameFromLabel extracts the text preceding an opening parenthesis from a
// link's accessible label, e.g. "Acme Plumbing (4.5 stars)".
func nameFromLabel(label string) string {
	if m := namePrefixPattern.FindStringSubmatch(label); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}
