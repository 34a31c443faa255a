// Package sheets appends scraped business records to a Google Sheet.
package sheets

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/omipheo/home-advisor-scraping/internal/retry"
	"github.com/omipheo/home-advisor-scraping/internal/timeutil"
	"github.com/omipheo/home-advisor-scraping/pkg/models"
)

const appendRange = "A1"

// RowAppender is the slice of the Sheets API the writer drives.
type RowAppender interface {
	Append(ctx context.Context, rows [][]interface{}) error
	Clear(ctx context.Context) error
}

// apiAppender talks to the real Sheets API.
type apiAppender struct {
	svc     *sheetsapi.Service
	sheetID string
}

func (a *apiAppender) Append(ctx context.Context, rows [][]interface{}) error {
	vr := &sheetsapi.ValueRange{Values: rows}
	_, err := a.svc.Spreadsheets.Values.
		Append(a.sheetID, appendRange, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

func (a *apiAppender) Clear(ctx context.Context) error {
	_, err := a.svc.Spreadsheets.Values.
		Clear(a.sheetID, appendRange+":Z", &sheetsapi.ClearValuesRequest{}).
		Context(ctx).
		Do()
	return err
}

// Writer appends batches of records, retrying transient API failures.
type Writer struct {
	appender RowAppender
	retryCfg retry.Config
}

// Option customizes a Writer.
type Option func(*Writer)

// WithAppender swaps the API client, used by tests.
func WithAppender(a RowAppender) Option {
	return func(w *Writer) { w.appender = a }
}

// WithClock controls retry backoff timing.
func WithClock(clock timeutil.Clock) Option {
	return func(w *Writer) { w.retryCfg.Clock = clock }
}

// New builds a Writer backed by a service-account credentials file. The
// file must exist up front; a typo'd path should fail before any page is
// scraped, not after.
func New(ctx context.Context, credentialsFile, sheetID string, opts ...Option) (*Writer, error) {
	w := &Writer{retryCfg: retry.DefaultConfig()}
	for _, opt := range opts {
		opt(w)
	}

	if w.appender == nil {
		if _, err := os.Stat(credentialsFile); err != nil {
			return nil, fmt.Errorf("credentials file %q: %w", credentialsFile, err)
		}
		svc, err := sheetsapi.NewService(ctx, option.WithCredentialsFile(credentialsFile))
		if err != nil {
			return nil, fmt.Errorf("creating sheets service: %w", err)
		}
		w.appender = &apiAppender{svc: svc, sheetID: sheetID}
	}
	return w, nil
}

// Reset clears the sheet and writes the header row. Called when a run
// starts from page 1, so a fresh run never mixes with stale rows.
func (w *Writer) Reset(ctx context.Context) error {
	err := retry.WithRetry(ctx, w.retryCfg, func() error {
		return w.appender.Clear(ctx)
	})
	if err != nil {
		return fmt.Errorf("clearing sheet: %w", err)
	}
	return w.appendRows(ctx, [][]interface{}{toCells(models.HeaderRow)})
}

// AppendRecords writes a batch of records as rows. Each call retries up to
// three times with exponential backoff starting at two seconds; after the
// final failure the error is returned and the batch is considered lost.
func (w *Writer) AppendRecords(ctx context.Context, records []*models.BusinessRecord) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([][]interface{}, 0, len(records))
	for _, r := range records {
		rows = append(rows, toCells(r.Row()))
	}
	start := time.Now()
	if err := w.appendRows(ctx, rows); err != nil {
		return err
	}
	log.Debug().
		Int("rows", len(rows)).
		Dur("took", time.Since(start)).
		Msg("Batch appended to sheet")
	return nil
}

func (w *Writer) appendRows(ctx context.Context, rows [][]interface{}) error {
	return retry.WithRetry(ctx, w.retryCfg, func() error {
		return w.appender.Append(ctx, rows)
	})
}

func toCells(row []string) []interface{} {
	cells := make([]interface{}, len(row))
	for i, v := range row {
		cells[i] = v
	}
	return cells
}
