package challenge

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/omipheo/home-advisor-scraping/internal/captcha"
)

// siteKeyPattern matches inline script assignments like sitekey: "0x4AAA...".
var siteKeyPattern = regexp.MustCompile(`(?i)site[_-]?key["']?\s*[:=]\s*["']([0-9A-Za-z_-]{10,})["']`)

// ExtractSiteKey locates the public site key of a solvable CAPTCHA widget.
// Strategies are tried in fixed order, first match wins: a data attribute on
// the widget element, the challenge iframe's URL query, then a page-wide
// regex scan. Returns the challenge kind, the key, and whether one was found.
func ExtractSiteKey(doc *goquery.Document) (kind, key string, ok bool) {
	// 1. Data attribute on the widget element
	for _, sel := range widgetSelectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if v, exists := node.Attr("data-sitekey"); exists && v != "" {
			return kindForNode(node), v, true
		}
	}

	// 2. Challenge iframe URL query parameter
	var frameKind, frameKey string
	doc.Find("iframe[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src, _ := s.Attr("src")
		for _, marker := range challengeFrameSources {
			if !strings.Contains(src, marker) {
				continue
			}
			u, err := url.Parse(src)
			if err != nil {
				continue
			}
			for _, param := range []string{"sitekey", "k", "render"} {
				if v := u.Query().Get(param); v != "" {
					frameKey = v
					frameKind = kindForURL(src)
					return false
				}
			}
		}
		return true
	})
	if frameKey != "" {
		return frameKind, frameKey, true
	}

	// 3. Page-wide regex scan
	html, err := doc.Html()
	if err != nil {
		return "", "", false
	}
	if m := siteKeyPattern.FindStringSubmatch(html); m != nil {
		return kindForURL(html), m[1], true
	}

	return "", "", false
}

func kindForNode(s *goquery.Selection) string {
	if s.HasClass("g-recaptcha") {
		return captcha.KindRecaptchaV2
	}
	return captcha.KindTurnstile
}

func kindForURL(s string) string {
	if strings.Contains(s, "recaptcha") {
		return captcha.KindRecaptchaV2
	}
	return captcha.KindTurnstile
}
