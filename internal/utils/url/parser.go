package urlutil

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// ValidateURL performs comprehensive URL validation
func ValidateURL(urlStr string) error {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: must be http or https, got %s", parsed.Scheme)
	}

	if parsed.Host == "" {
		return fmt.Errorf("invalid URL: missing host")
	}

	return nil
}

// ResolveURL resolves a possibly-relative href against a base URL and returns a string
func ResolveURL(base, href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if u.IsAbs() {
		return href
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	return baseURL.ResolveReference(u).String()
}

// socialDomains are never a business's own website.
var socialDomains = []string{
	"facebook.com",
	"twitter.com",
	"linkedin.com",
	"instagram.com",
	"youtube.com",
	"yelp.com",
}

// IsExternalWebsite reports whether candidate is an absolute URL whose
// registrable domain differs from that of the listing site. Social profiles
// do not count as a business website.
func IsExternalWebsite(siteURL, candidate string) bool {
	cu, err := url.Parse(candidate)
	if err != nil || !cu.IsAbs() || cu.Host == "" {
		return false
	}
	su, err := url.Parse(siteURL)
	if err != nil {
		return false
	}

	candDomain := registrableDomain(cu.Host)
	siteDomain := registrableDomain(su.Host)
	if candDomain == "" || candDomain == siteDomain {
		return false
	}
	for _, social := range socialDomains {
		if candDomain == social || strings.HasSuffix(candDomain, "."+social) {
			return false
		}
	}
	return true
}

func registrableDomain(host string) string {
	host = strings.ToLower(host)
	if i := strings.Index(host, ":"); i >= 0 {
		host = host[:i]
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}
