package enrich

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"

	"github.com/omipheo/home-advisor-scraping/internal/challenge"
	"github.com/omipheo/home-advisor-scraping/pkg/models"
)

const listingSite = "https://listings.test/c.Landscaping.Elizabeth.html"

// fakeBrowser serves canned markup per URL.
type fakeBrowser struct {
	pages   map[string]string
	current string
	visits  []string
	clicks  []string
}

func (b *fakeBrowser) Navigate(ctx context.Context, url string) error {
	b.current = url
	b.visits = append(b.visits, url)
	return nil
}

func (b *fakeBrowser) HTML(ctx context.Context) (string, error) {
	html, ok := b.pages[b.current]
	if !ok {
		return "<html><body></body></html>", nil
	}
	return html, nil
}

func (b *fakeBrowser) Eval(ctx context.Context, js string, out interface{}) error { return nil }

func (b *fakeBrowser) Click(ctx context.Context, selector string) error {
	b.clicks = append(b.clicks, selector)
	return nil
}

type nopGate struct{}

func (nopGate) Resolve(ctx context.Context, page challenge.Page, pageURL string) error { return nil }

// fakeFetcher serves canned website bodies.
type fakeFetcher struct {
	bodies map[string]string
}

func (f *fakeFetcher) Body(ctx context.Context, pageURL string) (string, error) {
	body, ok := f.bodies[pageURL]
	if !ok {
		return "", errors.New("fetch failed")
	}
	return body, nil
}

func TestEnrich_ProfilePageFillsFields(t *testing.T) {
	profileURL := "https://listings.test/pro/acme"
	profile := `<html><body>
		<address>456 Elm Street, Elizabeth, NJ 07201</address>
		<a href="https://www.acmelawns.com">Visit website</a>
		<a href="tel:9085551234" data-testid="phone-link">Call now</a>
	</body></html>`

	browser := &fakeBrowser{pages: map[string]string{profileURL: profile}}
	e := New(browser, nopGate{}, &fakeFetcher{}, listingSite)

	record := &models.BusinessRecord{Name: "Acme Lawns", ProfileURL: profileURL}
	e.Enrich(context.Background(), record)

	if record.Address != "456 Elm Street, Elizabeth, NJ 07201" {
		t.Errorf("Address not filled: %q", record.Address)
	}
	if record.Website != "https://www.acmelawns.com" {
		t.Errorf("Website not filled: %q", record.Website)
	}
	if record.Phone != "(908) 555-1234" {
		t.Errorf("Phone not filled from reveal control: %q", record.Phone)
	}
	if len(browser.clicks) == 0 {
		t.Error("Expected the phone reveal control to be clicked")
	}
}

func TestEnrich_FieldsNeverOverwritten(t *testing.T) {
	profileURL := "https://listings.test/pro/acme"
	profile := `<html><body>
		<address>999 Wrong Street, Elsewhere, NY 10001</address>
		<a href="tel:2015550000">Call</a>
	</body></html>`

	browser := &fakeBrowser{pages: map[string]string{profileURL: profile}}
	e := New(browser, nopGate{}, &fakeFetcher{}, listingSite)

	record := &models.BusinessRecord{
		Name:       "Acme Lawns",
		ProfileURL: profileURL,
		Address:    "123 Listing Street, Elizabeth, NJ",
		Rating:     "4.8",
	}
	e.Enrich(context.Background(), record)

	if record.Address != "123 Listing Street, Elizabeth, NJ" {
		t.Errorf("Listing-page address was overwritten: %q", record.Address)
	}
	if record.Rating != "4.8" {
		t.Errorf("Listing-page rating was overwritten: %q", record.Rating)
	}
	if record.Phone != "(201) 555-0000" {
		t.Errorf("Empty phone should still be filled: %q", record.Phone)
	}
}

func TestEnrich_WebsitePhoneFallback(t *testing.T) {
	profileURL := "https://listings.test/pro/quiet"
	// Profile has a website but no phone anywhere.
	profile := `<html><body>
		<a href="https://www.quietlawns.com">Website</a>
	</body></html>`

	browser := &fakeBrowser{pages: map[string]string{profileURL: profile}}
	fetcher := &fakeFetcher{bodies: map[string]string{
		"https://www.quietlawns.com": `<html><body>Call us: 908-555-9999</body></html>`,
	}}
	e := New(browser, nopGate{}, fetcher, listingSite)

	record := &models.BusinessRecord{Name: "Quiet Lawns", ProfileURL: profileURL}
	e.Enrich(context.Background(), record)

	if record.Phone != "(908) 555-9999" {
		t.Errorf("Expected phone from the business website, got %q", record.Phone)
	}
}

func TestEnrich_WebSearchPhoneFallback(t *testing.T) {
	profileURL := "https://listings.test/pro/offline"
	// Profile has neither phone nor website.
	profile := `<html><body><p>An offline business</p></body></html>`

	searchURL := webSearchURL + url.QueryEscape("Offline Lawns phone number")
	results := `<html><body>Offline Lawns · (908) 555-7777 · Elizabeth NJ</body></html>`

	browser := &fakeBrowser{pages: map[string]string{
		profileURL: profile,
		searchURL:  results,
	}}
	e := New(browser, nopGate{}, &fakeFetcher{}, listingSite)

	record := &models.BusinessRecord{Name: "Offline Lawns", ProfileURL: profileURL}
	e.Enrich(context.Background(), record)

	if record.Phone != "(908) 555-7777" {
		t.Errorf("Expected phone from web search, got %q", record.Phone)
	}
}

func TestEnrich_EmailFromWebsite(t *testing.T) {
	profileURL := "https://listings.test/pro/mailer"
	profile := `<html><body>
		<a href="https://www.greenmail.com">Website</a>
		<a href="tel:9085551111">Call</a>
	</body></html>`

	browser := &fakeBrowser{pages: map[string]string{profileURL: profile}}
	fetcher := &fakeFetcher{bodies: map[string]string{
		"https://www.greenmail.com": `<html><body>Write to contact@greenmail.com</body></html>`,
	}}
	e := New(browser, nopGate{}, fetcher, listingSite)

	record := &models.BusinessRecord{Name: "Green Mail Lawns", ProfileURL: profileURL}
	e.Enrich(context.Background(), record)

	if record.Email != "contact@greenmail.com" {
		t.Errorf("Expected email from website, got %q", record.Email)
	}
}

func TestEnrich_NoProfileAndNoSearchHit(t *testing.T) {
	search := fmt.Sprintf("https://listings.test/search.html?query=%s", url.QueryEscape("Ghost Lawns"))
	browser := &fakeBrowser{pages: map[string]string{
		search: `<html><body><p>No results</p></body></html>`,
	}}
	e := New(browser, nopGate{}, &fakeFetcher{}, listingSite)

	record := &models.BusinessRecord{Name: "Ghost Lawns"}
	e.Enrich(context.Background(), record)

	if record.ProfileURL != "" {
		t.Errorf("Profile URL must not be fabricated, got %q", record.ProfileURL)
	}
	if record.Phone != "" || record.Address != "" {
		t.Errorf("Record should come back unchanged, got phone %q address %q", record.Phone, record.Address)
	}
	// The search page is the only navigation; no detail page was guessed.
	if len(browser.visits) != 1 {
		t.Errorf("Expected a single search navigation, got %v", browser.visits)
	}
}

func TestEnrich_SiteSearchFindsProfile(t *testing.T) {
	search := fmt.Sprintf("https://listings.test/search.html?query=%s", url.QueryEscape("Found Lawns"))
	profileURL := "https://listings.test/pro/found-lawns"

	browser := &fakeBrowser{pages: map[string]string{
		search: `<html><body>
			<div><a href="/pro/found-lawns">Found Lawns</a> in Elizabeth</div>
		</body></html>`,
		profileURL: `<html><body><a href="tel:9085552222">Call</a></body></html>`,
	}}
	e := New(browser, nopGate{}, &fakeFetcher{}, listingSite)

	record := &models.BusinessRecord{Name: "Found Lawns"}
	e.Enrich(context.Background(), record)

	if record.ProfileURL != profileURL {
		t.Errorf("Expected profile found via site search, got %q", record.ProfileURL)
	}
	if record.Phone != "(908) 555-2222" {
		t.Errorf("Expected enrichment to continue after the search, got %q", record.Phone)
	}
}
