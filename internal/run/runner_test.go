package run

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/omipheo/home-advisor-scraping/internal/challenge"
	"github.com/omipheo/home-advisor-scraping/internal/ratelimit"
	"github.com/omipheo/home-advisor-scraping/internal/timeutil"
	"github.com/omipheo/home-advisor-scraping/pkg/models"
)

const baseURL = "https://listings.test/c.Landscaping.html"

func pageTwoURL(n int) string {
	return fmt.Sprintf("%s?page=%d", baseURL, n)
}

// fakeBrowser serves canned markup per URL and records every navigation.
type fakeBrowser struct {
	pages   map[string]string
	current string
	visits  []string
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
func (b *fakeBrowser) ScrollBounce(ctx context.Context) error                     { return nil }

type nopGate struct{}

func (nopGate) Resolve(ctx context.Context, page challenge.Page, pageURL string) error { return nil }

// fakeExtractor maps page markup to records.
type fakeExtractor struct {
	byHTML map[string][]*models.BusinessRecord
}

func (e *fakeExtractor) Extract(html string) ([]*models.BusinessRecord, error) {
	return cloneRecords(e.byHTML[html]), nil
}

// cloneRecords keeps tests independent of the runner mutating records.
func cloneRecords(records []*models.BusinessRecord) []*models.BusinessRecord {
	out := make([]*models.BusinessRecord, 0, len(records))
	for _, r := range records {
		copied := *r
		out = append(out, &copied)
	}
	return out
}

type nopEnricher struct{}

func (nopEnricher) Enrich(ctx context.Context, record *models.BusinessRecord) {}

// recordingFlusher captures every flush; failAlways simulates a dead store.
// Like the real sheets appender it refuses to write on a cancelled context.
type recordingFlusher struct {
	flushes    [][]*models.BusinessRecord
	failAlways bool
}

func (f *recordingFlusher) AppendRecords(ctx context.Context, records []*models.BusinessRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.failAlways {
		return errors.New("store unavailable")
	}
	f.flushes = append(f.flushes, records)
	return nil
}

func (f *recordingFlusher) total() int {
	n := 0
	for _, batch := range f.flushes {
		n += len(batch)
	}
	return n
}

func someRecords(n int, withProfile bool) []*models.BusinessRecord {
	records := make([]*models.BusinessRecord, 0, n)
	for i := 0; i < n; i++ {
		r := &models.BusinessRecord{Name: fmt.Sprintf("Business %d", i+1)}
		if withProfile {
			r.ProfileURL = fmt.Sprintf("https://listings.test/pro/business-%d", i+1)
		}
		records = append(records, r)
	}
	return records
}

func newTestRunner(browser *fakeBrowser, extractor *fakeExtractor, flusher *recordingFlusher, opts Options) *Runner {
	clock := timeutil.NewFake()
	if opts.Clock == nil {
		opts.Clock = clock
	}
	opts.Quiet = true
	if opts.BaseURL == "" {
		opts.BaseURL = baseURL
	}
	pacer := ratelimit.NewPacer(clock)
	return New(browser, nopGate{}, extractor, nopEnricher{}, flusher, pacer, opts)
}

func TestRunner_StructuralStop(t *testing.T) {
	page1 := "<html><body>Showing 1-10 of 40 PAGE-ONE</body></html>"
	page2 := "<html><body>PAGE-TWO</body></html>"

	browser := &fakeBrowser{pages: map[string]string{
		baseURL:       page1,
		pageTwoURL(2): page2,
	}}
	extractor := &fakeExtractor{byHTML: map[string][]*models.BusinessRecord{
		page1: someRecords(3, true),
		page2: someRecords(4, false), // no profile URLs: the stop signal
	}}
	flusher := &recordingFlusher{}

	runner := newTestRunner(browser, extractor, flusher, Options{})
	summary, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.PagesDetected != 4 {
		t.Errorf("Expected 4 detected pages, got %d", summary.PagesDetected)
	}
	if summary.StopReason != StopStructural {
		t.Errorf("Expected structural stop, got %q", summary.StopReason)
	}
	if summary.Records != 3 {
		t.Errorf("Expected 3 records (page 2's are untrusted), got %d", summary.Records)
	}
	if len(flusher.flushes) != 1 || flusher.total() != 3 {
		t.Errorf("Expected exactly one flush of 3 records, got %d flushes totaling %d",
			len(flusher.flushes), flusher.total())
	}
	// No advance past the structural page.
	for _, v := range browser.visits {
		if v == pageTwoURL(3) {
			t.Errorf("Runner advanced to page 3 after the structural stop")
		}
	}
}

func TestRunner_EndToEnd(t *testing.T) {
	page1 := "<html><body>Showing 1-10 of 30 PAGE-ONE</body></html>"
	page2 := "<html><body>PAGE-TWO-EMPTY</body></html>"
	page3 := "<html><body>PAGE-THREE</body></html>"

	browser := &fakeBrowser{pages: map[string]string{
		baseURL:       page1,
		pageTwoURL(2): page2,
		pageTwoURL(3): page3,
	}}
	extractor := &fakeExtractor{byHTML: map[string][]*models.BusinessRecord{
		page1: someRecords(10, true),
		// page2 absent: zero records on both attempts
		page3: someRecords(5, false),
	}}
	flusher := &recordingFlusher{}

	runner := newTestRunner(browser, extractor, flusher, Options{})
	summary, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.PagesDetected != 3 {
		t.Errorf("Expected 3 detected pages, got %d", summary.PagesDetected)
	}
	if summary.PagesProcessed != 1 {
		t.Errorf("Expected 1 processed page, got %d", summary.PagesProcessed)
	}
	if summary.EmptyPages != 1 {
		t.Errorf("Expected 1 empty page, got %d", summary.EmptyPages)
	}
	if summary.StopReason != StopStructural {
		t.Errorf("Expected structural stop, got %q", summary.StopReason)
	}
	if summary.Records != 10 {
		t.Errorf("Expected 10 collected records, got %d", summary.Records)
	}
	if flusher.total() != 10 {
		t.Errorf("Expected 10 persisted records, got %d", flusher.total())
	}

	// The empty page was attempted twice before being skipped.
	attempts := 0
	for _, v := range browser.visits {
		if v == pageTwoURL(2) {
			attempts++
		}
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts on the empty page, got %d", attempts)
	}
}

func TestRunner_BatchesOfTen(t *testing.T) {
	page1 := "<html><body>Showing 1-10 of 10 PAGE-ONE</body></html>"

	browser := &fakeBrowser{pages: map[string]string{baseURL: page1}}
	extractor := &fakeExtractor{byHTML: map[string][]*models.BusinessRecord{
		page1: someRecords(23, true),
	}}
	flusher := &recordingFlusher{}

	runner := newTestRunner(browser, extractor, flusher, Options{})
	summary, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.Records != 23 {
		t.Errorf("Expected 23 records, got %d", summary.Records)
	}
	if len(flusher.flushes) != 3 {
		t.Fatalf("Expected 3 flushes (10+10+3), got %d", len(flusher.flushes))
	}
	if len(flusher.flushes[0]) != 10 || len(flusher.flushes[1]) != 10 || len(flusher.flushes[2]) != 3 {
		t.Errorf("Expected flushes of 10, 10, 3; got %d, %d, %d",
			len(flusher.flushes[0]), len(flusher.flushes[1]), len(flusher.flushes[2]))
	}
}

func TestRunner_CrossPageDuplicateCollapses(t *testing.T) {
	page1 := "<html><body>Showing 1-10 of 20 PAGE-ONE</body></html>"
	page2 := "<html><body>PAGE-TWO</body></html>"

	acme := func() *models.BusinessRecord {
		return &models.BusinessRecord{Name: "Acme Lawns", ProfileURL: "https://listings.test/pro/acme"}
	}
	browser := &fakeBrowser{pages: map[string]string{
		baseURL:       page1,
		pageTwoURL(2): page2,
	}}
	extractor := &fakeExtractor{byHTML: map[string][]*models.BusinessRecord{
		page1: {acme(), {Name: "Birch Tree Care", ProfileURL: "https://listings.test/pro/birch"}},
		page2: {acme(), {Name: "Cedar Mowing", ProfileURL: "https://listings.test/pro/cedar"}},
	}}
	flusher := &recordingFlusher{}

	runner := newTestRunner(browser, extractor, flusher, Options{})
	summary, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.Records != 3 {
		t.Errorf("Expected 3 records after collapsing the repeat, got %d", summary.Records)
	}
	seen := make(map[string]int)
	for _, batch := range flusher.flushes {
		for _, r := range batch {
			seen[r.Identity()]++
		}
	}
	if seen["https://listings.test/pro/acme"] != 1 {
		t.Errorf("Expected the repeated business persisted once, got %d", seen["https://listings.test/pro/acme"])
	}
	if len(seen) != 3 {
		t.Errorf("Expected 3 distinct identities persisted, got %d", len(seen))
	}
}

func TestRunner_PersistenceFailurePropagates(t *testing.T) {
	page1 := "<html><body>Showing 1-10 of 10 PAGE-ONE</body></html>"

	browser := &fakeBrowser{pages: map[string]string{baseURL: page1}}
	extractor := &fakeExtractor{byHTML: map[string][]*models.BusinessRecord{
		page1: someRecords(10, true),
	}}
	flusher := &recordingFlusher{failAlways: true}

	runner := newTestRunner(browser, extractor, flusher, Options{})
	summary, err := runner.Run(context.Background())
	if err == nil {
		t.Fatal("Expected persistence error to propagate")
	}
	if summary == nil {
		t.Fatal("Expected summary even on failure")
	}
	// The records stay in memory for manual salvage.
	if len(runner.Collected()) != 10 {
		t.Errorf("Expected 10 salvageable records, got %d", len(runner.Collected()))
	}
}

func TestRunner_InterruptFlushesPartialBatch(t *testing.T) {
	page1 := "<html><body>Showing 1-10 of 30 PAGE-ONE</body></html>"

	browser := &fakeBrowser{pages: map[string]string{baseURL: page1}}
	extractor := &fakeExtractor{byHTML: map[string][]*models.BusinessRecord{
		page1: someRecords(10, true),
	}}
	flusher := &recordingFlusher{}

	ctx, cancel := context.WithCancel(context.Background())
	enricher := &cancellingEnricher{cancel: cancel, after: 3}

	clock := timeutil.NewFake()
	pacer := ratelimit.NewPacer(clock)
	runner := New(browser, nopGate{}, extractor, enricher, flusher, pacer, Options{
		BaseURL: baseURL, Clock: clock, Quiet: true,
	})

	summary, err := runner.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !summary.Interrupted {
		t.Error("Expected run to be marked interrupted")
	}
	if summary.StopReason != StopInterrupt {
		t.Errorf("Expected stop reason %q, got %q", StopInterrupt, summary.StopReason)
	}
	if summary.Records != 3 {
		t.Errorf("Expected 3 records before the interrupt, got %d", summary.Records)
	}
	if len(flusher.flushes) != 1 || flusher.total() != 3 {
		t.Errorf("Expected one flush of the 3-record partial batch, got %d flushes totaling %d",
			len(flusher.flushes), flusher.total())
	}
}

// cancellingEnricher cancels the run context after n enrichments.
type cancellingEnricher struct {
	cancel context.CancelFunc
	after  int
	seen   int
}

func (e *cancellingEnricher) Enrich(ctx context.Context, record *models.BusinessRecord) {
	e.seen++
	if e.seen == e.after {
		e.cancel()
	}
}

func TestRunner_DebugArtifact(t *testing.T) {
	page1 := "<html><body>Showing 1-5 of 5 DEBUG-ME</body></html>"

	browser := &fakeBrowser{pages: map[string]string{baseURL: page1}}
	extractor := &fakeExtractor{byHTML: map[string][]*models.BusinessRecord{
		page1: someRecords(5, true),
	}}
	flusher := &recordingFlusher{}

	debugPath := filepath.Join(t.TempDir(), "debug_page1.html")
	runner := newTestRunner(browser, extractor, flusher, Options{DebugPath: debugPath})

	if _, err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	data, err := os.ReadFile(debugPath)
	if err != nil {
		t.Fatalf("Debug artifact not written: %v", err)
	}
	if string(data) != page1 {
		t.Errorf("Debug artifact does not match page markup")
	}
}
