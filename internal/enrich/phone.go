package enrich

import (
	"regexp"
	"strings"
)

// phonePatterns match North American numbers in free text, most specific
// first.
var phonePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\+?1[-.\s]?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`),
	regexp.MustCompile(`\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`),
}

var nonDigits = regexp.MustCompile(`[^\d]`)

// NormalizePhone canonicalizes a raw phone string to "(NNN) NNN-NNNN".
// Exactly 10 digits are accepted, or 11 with a leading 1 (stripped); any
// other digit count yields "". Normalizing an already-canonical number is a
// no-op.
func NormalizePhone(raw string) string {
	digits := nonDigits.ReplaceAllString(raw, "")

	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	if len(digits) != 10 {
		return ""
	}

	return "(" + digits[:3] + ") " + digits[3:6] + "-" + digits[6:]
}

// FindPhone scans free text for the first plausible phone number. Candidates
// whose area code starts with 0 or 1 are rejected; those are usually dates,
// zip+4 codes or tracking ids.
func FindPhone(text string) string {
	for _, pattern := range phonePatterns {
		for _, match := range pattern.FindAllString(text, 10) {
			normalized := NormalizePhone(match)
			if normalized == "" {
				continue
			}
			first := normalized[1]
			if first == '0' || first == '1' {
				continue
			}
			return normalized
		}
	}
	return ""
}

// phoneFromAttrs pulls a phone number out of a reveal control's own label or
// attributes: tel: href first, then accessible label, then data attributes.
func phoneFromAttrs(href, label, dataPhone, text string) string {
	if strings.HasPrefix(href, "tel:") {
		if p := NormalizePhone(strings.TrimPrefix(href, "tel:")); p != "" {
			return p
		}
	}
	for _, candidate := range []string{dataPhone, label, text} {
		if candidate == "" {
			continue
		}
		if p := FindPhone(candidate); p != "" {
			return p
		}
	}
	return ""
}
