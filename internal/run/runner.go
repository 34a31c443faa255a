// Package run drives the page loop: load, gate, extract, enrich, batch,
// persist. One browser session, strictly sequential: the session's
// cookie and trust state is a shared mutable resource.
package run

import (
	"context"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"

	"github.com/omipheo/home-advisor-scraping/internal/challenge"
	"github.com/omipheo/home-advisor-scraping/internal/output"
	"github.com/omipheo/home-advisor-scraping/internal/ratelimit"
	"github.com/omipheo/home-advisor-scraping/internal/timeutil"
	"github.com/omipheo/home-advisor-scraping/pkg/models"
)

const (
	emptyPageRetryPause = 5 * time.Second
	pageAttempts        = 2
	finalFlushTimeout   = 30 * time.Second
)

// Stop reasons reported in the run summary.
const (
	StopCompleted  = "completed"
	StopStructural = "all records on a page lacked profile URLs"
	StopInterrupt  = "interrupted by operator"
	StopPageLimit  = "page limit reached"
	StopPersist    = "persistence failure"
)

// Browser is the slice of the browser session the runner drives.
type Browser interface {
	Navigate(ctx context.Context, url string) error
	HTML(ctx context.Context) (string, error)
	Eval(ctx context.Context, js string, out interface{}) error
	ScrollBounce(ctx context.Context) error
}

// Gate clears anti-bot challenges on freshly loaded pages.
type Gate interface {
	Resolve(ctx context.Context, page challenge.Page, pageURL string) error
}

// Extractor turns a rendered listing page into business records.
type Extractor interface {
	Extract(html string) ([]*models.BusinessRecord, error)
}

// Enricher fills record fields missing from the listing page.
type Enricher interface {
	Enrich(ctx context.Context, record *models.BusinessRecord)
}

// Flusher persists completed batches.
type Flusher interface {
	AppendRecords(ctx context.Context, records []*models.BusinessRecord) error
}

// Options configures a Runner.
type Options struct {
	BaseURL    string
	StartPage  int
	PagesLimit int // 0 = no limit beyond detected count
	BatchSize  int
	DebugPath  string // first page markup dump, "" disables
	CSVPath    string // local mirror of every flush, "" disables
	Clock      timeutil.Clock
	Quiet      bool
}

// Runner owns the page loop and the batch buffer.
type Runner struct {
	browser   Browser
	gate      Gate
	extractor Extractor
	enricher  Enricher
	flusher   Flusher
	pacer     *ratelimit.Pacer
	clock     timeutil.Clock
	opts      Options

	batch     []*models.BusinessRecord
	collected []*models.BusinessRecord
	seen      map[string]bool // record identities across the whole run
	flushed   bool            // csv header state
}

// New wires a Runner. BatchSize and StartPage fall back to sane values.
func New(browser Browser, gate Gate, extractor Extractor, enricher Enricher, flusher Flusher, pacer *ratelimit.Pacer, opts Options) *Runner {
	if opts.StartPage < 1 {
		opts.StartPage = 1
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = 10
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.Real{}
	}
	return &Runner{
		browser:   browser,
		gate:      gate,
		extractor: extractor,
		enricher:  enricher,
		flusher:   flusher,
		pacer:     pacer,
		clock:     opts.Clock,
		opts:      opts,
		seen:      make(map[string]bool),
	}
}

// Run executes the full scrape. The summary is always returned, even when
// the error is non-nil: an append failure mid-run still leaves pages
// processed and records collected worth reporting.
func (r *Runner) Run(ctx context.Context) (*models.RunSummary, error) {
	summary := &models.RunSummary{StopReason: StopCompleted}

	firstHTML, totalPages := r.detectTotalPages(ctx)
	summary.PagesDetected = totalPages
	log.Info().Int("pages", totalPages).Int("start_page", r.opts.StartPage).Msg("Page count detected")

	lastPage := totalPages
	if r.opts.PagesLimit > 0 && r.opts.StartPage+r.opts.PagesLimit-1 < lastPage {
		lastPage = r.opts.StartPage + r.opts.PagesLimit - 1
	}

	var bar *progressbar.ProgressBar
	if !r.opts.Quiet && lastPage >= r.opts.StartPage {
		bar = progressbar.NewOptions(lastPage-r.opts.StartPage+1,
			progressbar.OptionSetDescription("pages"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionOnCompletion(func() { os.Stderr.WriteString("\n") }),
		)
	}

pages:
	for page := r.opts.StartPage; page <= lastPage; page++ {
		if ctx.Err() != nil {
			summary.Interrupted = true
			summary.StopReason = StopInterrupt
			break
		}

		var html string
		if page == r.opts.StartPage && firstHTML != "" {
			html = firstHTML
		}
		records := r.loadPage(ctx, page, html)

		if len(records) == 0 {
			summary.EmptyPages++
			log.Warn().Int("page", page).Msg("Page yielded no listings, skipping")
			if bar != nil {
				bar.Add(1)
			}
			r.pacer.BetweenPages(ctx)
			continue
		}

		// Every record missing a profile URL means the layout changed or
		// blocking began. Flush what we have and stop; this page's
		// records are not trusted.
		if allMissingProfile(records) {
			summary.StopReason = StopStructural
			log.Warn().Int("page", page).Int("records", len(records)).
				Msg("No record on page has a profile URL, stopping")
			break
		}

		for i, record := range records {
			if ctx.Err() != nil {
				summary.Interrupted = true
				summary.StopReason = StopInterrupt
				break pages
			}
			// Listing sites repeat businesses across adjacent pages.
			id := record.Identity()
			if r.seen[id] {
				log.Debug().Int("page", page).Str("name", record.Name).Msg("Record already collected, skipping")
				continue
			}
			r.seen[id] = true
			log.Info().
				Int("page", page).
				Str("name", record.Name).
				Int("record", i+1).
				Int("of", len(records)).
				Msg("Enriching record")
			r.enricher.Enrich(ctx, record)
			r.collected = append(r.collected, record)
			r.batch = append(r.batch, record)
			if len(r.batch) >= r.opts.BatchSize {
				if err := r.flush(ctx); err != nil {
					summary.Records = len(r.collected)
					summary.StopReason = StopPersist
					return summary, err
				}
			}
			r.pacer.AfterRecord(ctx)
		}

		summary.PagesProcessed++
		if bar != nil {
			bar.Add(1)
		}
		if page < lastPage {
			r.pacer.BetweenPages(ctx)
		}
	}

	if r.opts.PagesLimit > 0 && summary.StopReason == StopCompleted && lastPage < totalPages {
		summary.StopReason = StopPageLimit
	}

	summary.Records = len(r.collected)

	// The final flush must still land after an interrupt cancels the run
	// context, so it gets its own deadline detached from the cancellation.
	flushCtx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		flushCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), finalFlushTimeout)
		defer cancel()
	}
	if err := r.flush(flushCtx); err != nil {
		if !summary.Interrupted {
			summary.StopReason = StopPersist
		}
		return summary, err
	}
	return summary, nil
}

// Collected returns every record accepted so far, for salvage after a
// persistence failure.
func (r *Runner) Collected() []*models.BusinessRecord {
	return r.collected
}

// loadPage fetches and extracts one listing page, retrying once after a
// pause when extraction comes back empty. cachedHTML short-circuits the
// first navigation when detection already rendered the page.
func (r *Runner) loadPage(ctx context.Context, page int, cachedHTML string) []*models.BusinessRecord {
	for attempt := 1; attempt <= pageAttempts; attempt++ {
		html := cachedHTML
		cachedHTML = ""
		if html == "" {
			var ok bool
			html, ok = r.renderPage(ctx, page)
			if !ok {
				if attempt < pageAttempts {
					r.clock.Sleep(ctx, emptyPageRetryPause)
				}
				continue
			}
		}

		if page == 1 && r.opts.DebugPath != "" && attempt == 1 {
			if err := os.WriteFile(r.opts.DebugPath, []byte(html), 0o644); err != nil {
				log.Debug().Err(err).Msg("Could not write debug page")
			}
		}

		records, err := r.extractor.Extract(html)
		if err != nil {
			log.Warn().Err(err).Int("page", page).Msg("Extraction failed")
		}
		if len(records) > 0 {
			log.Debug().Int("page", page).Int("records", len(records)).Msg("Listings extracted")
			return records
		}
		if attempt < pageAttempts {
			log.Debug().Int("page", page).Msg("Zero listings, retrying after pause")
			r.clock.Sleep(ctx, emptyPageRetryPause)
		}
	}
	return nil
}

// renderPage navigates, clears any challenge, and returns the page markup.
func (r *Runner) renderPage(ctx context.Context, page int) (string, bool) {
	pageURL := r.pageURL(page)
	log.Info().Int("page", page).Str("url", pageURL).Msg("Loading page")

	if err := r.browser.Navigate(ctx, pageURL); err != nil {
		log.Warn().Err(err).Int("page", page).Msg("Navigation failed")
		return "", false
	}
	r.pacer.AfterPageLoad(ctx)
	if err := r.gate.Resolve(ctx, r.browser, pageURL); err != nil {
		log.Warn().Err(err).Int("page", page).Msg("Page stayed behind challenge")
		return "", false
	}
	if err := r.browser.ScrollBounce(ctx); err != nil {
		log.Debug().Err(err).Msg("Scroll failed")
	}
	html, err := r.browser.HTML(ctx)
	if err != nil {
		log.Warn().Err(err).Int("page", page).Msg("Could not read page markup")
		return "", false
	}
	return html, true
}

// pageURL builds the URL for a page number. Page 1 is the base URL
// untouched.
func (r *Runner) pageURL(page int) string {
	if page == 1 {
		return r.opts.BaseURL
	}
	u, err := url.Parse(r.opts.BaseURL)
	if err != nil {
		return r.opts.BaseURL + "?page=" + strconv.Itoa(page)
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String()
}

// detectTotalPages renders page 1 and infers the page count from its
// summary text or pagination links. The rendered markup is returned so a
// run starting at page 1 skips the duplicate load.
func (r *Runner) detectTotalPages(ctx context.Context) (string, int) {
	html, ok := r.renderPage(ctx, 1)
	if !ok {
		return "", 1
	}
	pages := CountPages(html)
	if r.opts.StartPage == 1 {
		return html, pages
	}
	return "", pages
}

// flush persists the pending batch, mirrors it to CSV, and clears it.
// Persistence errors propagate; the CSV mirror failing is only logged.
func (r *Runner) flush(ctx context.Context) error {
	if len(r.batch) == 0 {
		return nil
	}
	batch := r.batch
	r.batch = nil
	if err := r.flusher.AppendRecords(ctx, batch); err != nil {
		// Keep the batch recoverable through Collected
		log.Error().Err(err).Int("records", len(batch)).Msg("Batch append failed after retries")
		return err
	}
	if r.opts.CSVPath != "" {
		var err error
		if r.flushed {
			err = output.AppendCSV(batch, r.opts.CSVPath)
		} else {
			err = output.SaveCSV(batch, r.opts.CSVPath)
		}
		if err != nil {
			log.Warn().Err(err).Str("path", r.opts.CSVPath).Msg("CSV mirror failed")
		}
	}
	r.flushed = true
	log.Info().Int("records", len(batch)).Msg("Batch persisted")
	return nil
}

func allMissingProfile(records []*models.BusinessRecord) bool {
	for _, r := range records {
		if r.ProfileURL != "" {
			return false
		}
	}
	return true
}
