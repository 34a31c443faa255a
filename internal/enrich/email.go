package enrich

import (
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

// placeholderDomains are template leftovers, never a real business contact.
var placeholderDomains = []string{
	"example.com",
	"test.com",
	"placeholder",
	"yourdomain",
	"sentry.io",
	"wixpress.com",
}

// FindEmail scans free text for the first plausible contact email address.
func FindEmail(text string) string {
	for _, match := range emailPattern.FindAllString(text, 20) {
		lower := strings.ToLower(match)
		if isPlaceholder(lower) {
			continue
		}
		// Image filenames regularly match the pattern (logo@2x.png)
		if strings.HasSuffix(lower, ".png") || strings.HasSuffix(lower, ".jpg") ||
			strings.HasSuffix(lower, ".gif") || strings.HasSuffix(lower, ".webp") {
			continue
		}
		return match
	}
	return ""
}

func isPlaceholder(email string) bool {
	for _, domain := range placeholderDomains {
		if strings.Contains(email, domain) {
			return true
		}
	}
	return false
}
