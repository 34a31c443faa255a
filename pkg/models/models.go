package models

import "strings"

// BusinessRecord is one discovered business from a listing page.
// Fields other than Name are optional; enrichment only fills gaps and never
// overwrites a value already taken from the listing page.
type BusinessRecord struct {
	Name        string `json:"name"`
	Rating      string `json:"rating,omitempty"`
	ReviewCount string `json:"review_count,omitempty"`
	Address     string `json:"address,omitempty"`
	Website     string `json:"website,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty"`
	ProfileURL  string `json:"profile_url,omitempty"`
}

// Identity returns the dedupe key for the record: the profile URL when
// present, otherwise the normalized business name.
func (r *BusinessRecord) Identity() string {
	if r.ProfileURL != "" {
		return r.ProfileURL
	}
	return strings.ToLower(strings.Join(strings.Fields(r.Name), " "))
}

// Row returns the record as a sheet row in the store's column order.
func (r *BusinessRecord) Row() []string {
	return []string{r.Name, r.Rating, r.ReviewCount, r.Address, r.Website, r.Phone, r.Email}
}

// HeaderRow is the durable store's header, one column per record field.
var HeaderRow = []string{"business name", "star rating", "# of reviews", "address", "website", "Phone Number", "Email"}

// RunSummary describes a completed (or interrupted) scraping run.
type RunSummary struct {
	PagesProcessed int    `json:"pages_processed"`
	PagesDetected  int    `json:"pages_detected"`
	EmptyPages     int    `json:"empty_pages"`
	Records        int    `json:"records"`
	StopReason     string `json:"stop_reason,omitempty"`
	Interrupted    bool   `json:"interrupted,omitempty"`
}
