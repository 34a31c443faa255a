// Package enrich fills the gaps in a business record: address and website
// from the site's own detail page, phone and email through a fallback chain
// ending at a web search. Every step's failure is caught and leaves the
// corresponding field empty; enrichment never aborts a record.
package enrich

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"github.com/omipheo/home-advisor-scraping/internal/challenge"
	urlutil "github.com/omipheo/home-advisor-scraping/internal/utils/url"
	"github.com/omipheo/home-advisor-scraping/pkg/models"
)

// Browser is the slice of the browser session enrichment drives.
type Browser interface {
	Navigate(ctx context.Context, url string) error
	HTML(ctx context.Context) (string, error)
	Eval(ctx context.Context, js string, out interface{}) error
	Click(ctx context.Context, selector string) error
}

// Gate resolves anti-bot challenges before a freshly navigated page is read.
type Gate interface {
	Resolve(ctx context.Context, page challenge.Page, pageURL string) error
}

// Fetcher retrieves external website bodies over plain HTTP.
type Fetcher interface {
	Body(ctx context.Context, pageURL string) (string, error)
}

// phoneRevealSelectors are equivalent forms of the detail page's phone
// reveal control, first found wins.
var phoneRevealSelectors = []string{
	`a[href^="tel:"]`,
	`button[data-testid="show-phone"]`,
	`a[data-testid="phone-link"]`,
	`button[class*="phone"]`,
	`a[class*="phone"]`,
}

// addressSelectors locate the detail page's address region.
var addressSelectors = []string{
	`[data-testid="contact-address"]`,
	`address`,
	`[class*="address"]`,
	`[class*="location"]`,
}

const webSearchURL = "https://www.google.com/search?q="

// Enricher fills record fields by visiting detail pages and websites.
type Enricher struct {
	browser  Browser
	gate     Gate
	fetcher  Fetcher
	siteURL  string
	searchFn string // site search URL prefix, name appended urlencoded
}

// New creates an Enricher for the given listing site.
func New(browser Browser, gate Gate, fetcher Fetcher, siteURL string) *Enricher {
	search := siteURL
	if u, err := url.Parse(siteURL); err == nil {
		search = u.Scheme + "://" + u.Host + "/search.html?query="
	}
	return &Enricher{
		browser:  browser,
		gate:     gate,
		fetcher:  fetcher,
		siteURL:  siteURL,
		searchFn: search,
	}
}

// Enrich mutates the record in place. Fields are only added, never
// overwritten once populated from the listing page.
func (e *Enricher) Enrich(ctx context.Context, record *models.BusinessRecord) {
	// 1. No profile URL: try the site's own search; without a match the
	// record goes back unchanged. A profile URL is never fabricated.
	if record.ProfileURL == "" {
		found := e.searchProfile(ctx, record.Name)
		if found == "" {
			log.Debug().Str("name", record.Name).Msg("No profile found via site search, record unchanged")
			return
		}
		record.ProfileURL = found
	}

	// 2. Detail page: address, website, phone reveal
	e.enrichFromProfile(ctx, record)

	// 3. Phone from the business's own website
	if record.Phone == "" && record.Website != "" {
		if body, err := e.fetcher.Body(ctx, record.Website); err == nil {
			record.Phone = FindPhone(visibleText(body))
		} else {
			log.Debug().Err(err).Str("website", record.Website).Msg("Website phone scan failed")
		}
	}

	// 4. Phone from a web search
	if record.Phone == "" {
		record.Phone = e.searchPhone(ctx, record.Name, record.Address)
	}

	// 5. Email from the business's own website
	if record.Email == "" && record.Website != "" {
		if body, err := e.fetcher.Body(ctx, record.Website); err == nil {
			record.Email = FindEmail(visibleText(body))
		} else {
			log.Debug().Err(err).Str("website", record.Website).Msg("Website email scan failed")
		}
	}
}

// searchProfile looks the business up on the listing site and returns the
// first search hit whose surrounding text contains the name.
func (e *Enricher) searchProfile(ctx context.Context, name string) string {
	searchURL := e.searchFn + url.QueryEscape(name)
	doc := e.loadGated(ctx, searchURL)
	if doc == nil {
		return ""
	}

	needle := strings.ToLower(name)
	var found string
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		if !strings.Contains(href, "/pro/") && !strings.Contains(href, "/rated.") {
			return true
		}
		surrounding := strings.ToLower(s.Text() + " " + s.Parent().Text())
		if strings.Contains(surrounding, needle) {
			found = urlutil.ResolveURL(e.siteURL, href)
			return false
		}
		return true
	})
	return found
}

// enrichFromProfile visits the record's detail page and fills address,
// website, phone and, when the listing left them empty, rating and reviews.
func (e *Enricher) enrichFromProfile(ctx context.Context, record *models.BusinessRecord) {
	doc := e.loadGated(ctx, record.ProfileURL)
	if doc == nil {
		return
	}

	if record.Address == "" {
		record.Address = e.profileAddress(doc)
	}
	if record.Website == "" {
		record.Website = e.profileWebsite(doc)
	}
	if record.Phone == "" {
		record.Phone = e.profilePhone(ctx, doc)
	}

	// Listing-page rating/review values take precedence; the profile only
	// fills holes.
	text := doc.Text()
	if record.Rating == "" {
		record.Rating = ratingFromProfile(text)
	}
	if record.ReviewCount == "" {
		record.ReviewCount = reviewsFromProfile(text)
	}
}

func (e *Enricher) profileAddress(doc *goquery.Document) string {
	for _, sel := range addressSelectors {
		text := strings.Join(strings.Fields(doc.Find(sel).First().Text()), " ")
		if len(text) > 10 {
			return text
		}
	}
	return ""
}

func (e *Enricher) profileWebsite(doc *goquery.Document) string {
	var website string
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		if urlutil.IsExternalWebsite(e.siteURL, href) {
			website = href
			return false
		}
		return true
	})
	return website
}

// profilePhone triggers the phone reveal control and reads the number from
// the control itself, falling back to a page-wide scan.
func (e *Enricher) profilePhone(ctx context.Context, doc *goquery.Document) string {
	var revealSel string
	for _, sel := range phoneRevealSelectors {
		if doc.Find(sel).Length() > 0 {
			revealSel = sel
			break
		}
	}

	if revealSel != "" {
		if err := e.browser.Click(ctx, revealSel); err != nil {
			log.Debug().Err(err).Str("selector", revealSel).Msg("Phone reveal click failed")
		}
		// Re-read: the click may have swapped a masked number for the real one
		if html, err := e.browser.HTML(ctx); err == nil {
			if fresh, err := goquery.NewDocumentFromReader(strings.NewReader(html)); err == nil {
				doc = fresh
			}
		}

		control := doc.Find(revealSel).First()
		href, _ := control.Attr("href")
		label, _ := control.Attr("aria-label")
		dataPhone, _ := control.Attr("data-phone")
		if p := phoneFromAttrs(href, label, dataPhone, control.Text()); p != "" {
			return p
		}
	}

	return FindPhone(doc.Text())
}

// searchPhone runs the last-resort web search for the business phone number.
func (e *Enricher) searchPhone(ctx context.Context, name, address string) string {
	query := strings.Join(strings.Fields(name+" "+address+" phone number"), " ")
	doc := e.loadGated(ctx, webSearchURL+url.QueryEscape(query))
	if doc == nil {
		return ""
	}
	phone := FindPhone(doc.Text())
	if phone != "" {
		log.Debug().Str("name", name).Str("phone", phone).Msg("Phone found via web search")
	}
	return phone
}

// loadGated navigates the browser to a URL, resolves any challenge, and
// parses the page. Returns nil on any failure.
func (e *Enricher) loadGated(ctx context.Context, pageURL string) *goquery.Document {
	if err := e.browser.Navigate(ctx, pageURL); err != nil {
		log.Debug().Err(err).Str("url", pageURL).Msg("Enrichment navigation failed")
		return nil
	}
	if err := e.gate.Resolve(ctx, e.browser, pageURL); err != nil {
		log.Debug().Err(err).Str("url", pageURL).Msg("Enrichment page stayed behind challenge")
		return nil
	}
	html, err := e.browser.HTML(ctx)
	if err != nil {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	return doc
}

// visibleText strips script and style content before a regex scan.
func visibleText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	doc.Find("script, style, noscript").Remove()
	return doc.Text()
}
