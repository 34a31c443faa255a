// Package extract turns a rendered listing page into business records. Every
// field is located through a cascade of named strategies so that one broken
// selector degrades a field, not the run.
package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	urlutil "github.com/omipheo/home-advisor-scraping/internal/utils/url"
	"github.com/omipheo/home-advisor-scraping/pkg/models"
)

// skipKeywords mark promotional cards and links that are not businesses.
var skipKeywords = []string{
	"join as a pro",
	"sign up",
	"become a pro",
	"signup",
	"register",
	"advertisement",
	"sponsored",
	"get started",
	"learn more",
}

// noReviewsMarker short-circuits the review-count cascade.
const noReviewsMarker = "no reviews yet"

// ListingExtractor extracts deduplicated business records from one listing
// page.
type ListingExtractor struct {
	siteURL   string
	selectors Selectors
}

// New creates a ListingExtractor for the given listing site.
func New(siteURL string, selectors Selectors) *ListingExtractor {
	return &ListingExtractor{siteURL: siteURL, selectors: selectors}
}

// Extract parses the page and returns its records in document order. Cards
// without a name are dropped; cards sharing an identity with an earlier card
// on the same page collapse into the first.
func (e *ListingExtractor) Extract(html string) ([]*models.BusinessRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	cards := e.findCards(doc)
	if len(cards) == 0 {
		return nil, nil
	}

	// Built lazily: evaluating embedded state is only worth it when a card
	// actually needs the cross-reference strategy.
	var profileIndex map[string]string
	indexFor := func() map[string]string {
		if profileIndex == nil {
			profileIndex = ProfileIndex(doc, e.selectors.ProfilePatterns)
		}
		return profileIndex
	}

	var records []*models.BusinessRecord
	seen := make(map[string]bool)

	for _, card := range cards {
		if e.isPromo(card) {
			continue
		}

		record := e.extractCard(card, indexFor)
		if record == nil {
			continue
		}

		id := record.Identity()
		if seen[id] {
			log.Debug().Str("name", record.Name).Msg("Duplicate card on page, dropped")
			continue
		}
		seen[id] = true
		records = append(records, record)
	}

	log.Debug().
		Int("cards", len(cards)).
		Int("records", len(records)).
		Msg("Listing page extracted")

	return records, nil
}

// findCards locates card containers: primary structural selector, then the
// alternate query form, then a raw class-name lookup filtered to card-like
// elements.
func (e *ListingExtractor) findCards(doc *goquery.Document) []*goquery.Selection {
	var cards []*goquery.Selection
	collect := func(_ int, s *goquery.Selection) { cards = append(cards, s) }

	doc.Find(e.selectors.CardPrimary).Each(collect)
	if len(cards) > 0 {
		return cards
	}

	doc.Find(e.selectors.CardAlternate).Each(collect)
	if len(cards) > 0 {
		return cards
	}

	doc.Find("div, article").Each(func(_ int, s *goquery.Selection) {
		if class, ok := s.Attr("class"); ok && strings.Contains(class, e.selectors.CardClass) {
			cards = append(cards, s)
		}
	})
	return cards
}

func (e *ListingExtractor) isPromo(card *goquery.Selection) bool {
	text := strings.ToLower(card.Text())
	for _, kw := range skipKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// extractCard runs the per-field cascades for one card. Returns nil when no
// strategy produced a name.
func (e *ListingExtractor) extractCard(card *goquery.Selection, indexFor func() map[string]string) *models.BusinessRecord {
	name, strategy := firstMatch(card, e.nameStrategies())
	if name == "" {
		log.Debug().Msg("Card without a name, dropped")
		return nil
	}

	record := &models.BusinessRecord{Name: name}

	record.ProfileURL, _ = firstMatch(card, e.profileStrategies(name, indexFor))

	cardText := card.Text()
	if strings.Contains(strings.ToLower(cardText), noReviewsMarker) {
		record.ReviewCount = "0"
	} else {
		record.ReviewCount, _ = firstMatch(card, e.reviewStrategies())
	}
	record.Rating, _ = firstMatch(card, e.ratingStrategies())

	record.Address = addressFromText(cardText)
	record.Website = e.externalWebsite(card)

	log.Debug().
		Str("name", name).
		Str("name_strategy", strategy).
		Str("profile_url", record.ProfileURL).
		Msg("Card extracted")

	return record
}

func (e *ListingExtractor) nameStrategies() []Strategy {
	textOf := func(sel string) func(*goquery.Selection) string {
		return func(card *goquery.Selection) string {
			return cleanName(card.Find(sel).First().Text())
		}
	}

	return []Strategy{
		{Name: "desktop-heading", Fn: textOf(e.selectors.NameDesktop)},
		{Name: "mobile-heading", Fn: textOf(e.selectors.NameMobile)},
		{Name: "generic-heading", Fn: textOf(e.selectors.NameGeneric)},
		{Name: "link-label", Fn: func(card *goquery.Selection) string {
			var name string
			card.Find("a[aria-label]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
				label, _ := s.Attr("aria-label")
				if n := nameFromLabel(label); n != "" {
					name = cleanName(n)
					return false
				}
				return true
			})
			return name
		}},
	}
}

func (e *ListingExtractor) profileStrategies(name string, indexFor func() map[string]string) []Strategy {
	return []Strategy{
		{Name: "profile-link-attr", Fn: func(card *goquery.Selection) string {
			href, _ := card.Find(e.selectors.ProfileLink).First().Attr("href")
			return e.absolute(href)
		}},
		{Name: "href-pattern", Fn: func(card *goquery.Selection) string {
			var found string
			card.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
				href, _ := s.Attr("href")
				if !matchesProfile(href, e.selectors.ProfilePatterns) {
					return true
				}
				lower := strings.ToLower(href + " " + s.Text())
				for _, kw := range []string{"signup", "register", "join"} {
					if strings.Contains(lower, kw) {
						return true
					}
				}
				found = e.absolute(href)
				return false
			})
			return found
		}},
		{Name: "embedded-state", Fn: func(card *goquery.Selection) string {
			needle := strings.ToLower(name)
			for entryName, url := range indexFor() {
				if strings.Contains(entryName, needle) || strings.Contains(needle, entryName) {
					return e.absolute(url)
				}
			}
			return ""
		}},
	}
}

func (e *ListingExtractor) ratingStrategies() []Strategy {
	textOf := func(sel string) func(*goquery.Selection) string {
		return func(card *goquery.Selection) string {
			return strings.TrimSpace(card.Find(sel).First().Text())
		}
	}

	return []Strategy{
		{Name: "desktop-widget", Fn: textOf(e.selectors.RatingDesktop)},
		{Name: "mobile-widget", Fn: textOf(e.selectors.RatingMobile)},
		{Name: "any-widget", Fn: textOf(e.selectors.RatingAny)},
		{Name: "aria-label", Fn: func(card *goquery.Selection) string {
			var rating string
			card.Find("[aria-label]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
				label, _ := s.Attr("aria-label")
				if m := ariaRatingPattern.FindStringSubmatch(label); m != nil {
					rating = m[1]
					return false
				}
				return true
			})
			return rating
		}},
		{Name: "raw-text", Fn: func(card *goquery.Selection) string {
			return ratingFromText(card.Text())
		}},
	}
}

func (e *ListingExtractor) reviewStrategies() []Strategy {
	countOf := func(sel string) func(*goquery.Selection) string {
		return func(card *goquery.Selection) string {
			return cleanCount(card.Find(sel).First().Text())
		}
	}

	return []Strategy{
		{Name: "desktop-widget", Fn: countOf(e.selectors.ReviewDesktop)},
		{Name: "mobile-widget", Fn: countOf(e.selectors.ReviewMobile)},
		{Name: "any-widget", Fn: countOf(e.selectors.ReviewAny)},
		{Name: "raw-text", Fn: func(card *goquery.Selection) string {
			return reviewsFromText(card.Text())
		}},
	}
}

// externalWebsite returns the first link in the card pointing off-site.
func (e *ListingExtractor) externalWebsite(card *goquery.Selection) string {
	var website string
	card.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		if urlutil.IsExternalWebsite(e.siteURL, href) {
			website = href
			return false
		}
		return true
	})
	return website
}

func (e *ListingExtractor) absolute(href string) string {
	if href == "" {
		return ""
	}
	return urlutil.ResolveURL(e.siteURL, href)
}

func cleanName(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) < 2 || len(s) > 150 {
		return ""
	}
	lower := strings.ToLower(s)
	for _, kw := range skipKeywords {
		if strings.Contains(lower, kw) {
			return ""
		}
	}
	return s
}

func cleanCount(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "()")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return ""
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return reviewsFromText(s)
		}
	}
	return s
}
