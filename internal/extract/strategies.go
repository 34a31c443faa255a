package extract

import "github.com/PuerkitoBio/goquery"

// Strategy is one named attempt at pulling a value out of a listing card.
// Strategies for a field run in fixed priority order; the first non-empty
// result wins and no strategy is ever retried. Keeping them as data makes
// each fallback chain testable in isolation.
type Strategy struct {
	Name string
	Fn   func(card *goquery.Selection) string
}

// firstMatch runs strategies in order and returns the first non-empty value
// together with the name of the strategy that produced it.
func firstMatch(card *goquery.Selection, strategies []Strategy) (string, string) {
	for _, s := range strategies {
		if v := s.Fn(card); v != "" {
			return v, s.Name
		}
	}
	return "", ""
}

// Selectors names every site-specific CSS hook in one place. The listing
// site's markup drifts; this struct is what gets edited when it does.
type Selectors struct {
	// Card discovery cascade
	CardPrimary   string
	CardAlternate string
	CardClass     string // raw class-name fragment, filtered to card-like elements

	// Name cascade
	NameDesktop string
	NameMobile  string
	NameGeneric string

	// Profile link cascade
	ProfileLink     string
	ProfilePatterns []string // URL path fragments marking a detail page

	// Rating / review widgets
	RatingDesktop string
	RatingMobile  string
	RatingAny     string
	ReviewDesktop string
	ReviewMobile  string
	ReviewAny     string
}

// DefaultSelectors matches the listing site's current markup.
func DefaultSelectors() Selectors {
	return Selectors{
		CardPrimary:   `div[data-testid="pro-card"]`,
		CardAlternate: `article[class*="srp-result"], div[class*="srp-result"]`,
		CardClass:     "resultCard",

		NameDesktop: `h2[class*="pro-name--desktop"]`,
		NameMobile:  `h3[class*="pro-name--mobile"]`,
		NameGeneric: `[class*="pro-name"], h2[class*="name"], h3[class*="name"]`,

		ProfileLink:     `a[data-testid="pro-profile-link"]`,
		ProfilePatterns: []string{"/pro/", "/rated."},

		RatingDesktop: `[class*="rating--desktop"] [class*="value"]`,
		RatingMobile:  `[class*="rating--mobile"] [class*="value"]`,
		RatingAny:     `[class*="rating"] [class*="value"]`,
		ReviewDesktop: `[class*="rating--desktop"] [class*="count"]`,
		ReviewMobile:  `[class*="rating--mobile"] [class*="count"]`,
		ReviewAny:     `[class*="review-count"], [class*="rating"] [class*="count"]`,
	}
}
