// internal/cli/scrape.go
package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/omipheo/home-advisor-scraping/internal/browser"
	"github.com/omipheo/home-advisor-scraping/internal/challenge"
	"github.com/omipheo/home-advisor-scraping/internal/config"
	"github.com/omipheo/home-advisor-scraping/internal/enrich"
	"github.com/omipheo/home-advisor-scraping/internal/extract"
	"github.com/omipheo/home-advisor-scraping/internal/output"
	"github.com/omipheo/home-advisor-scraping/internal/ratelimit"
	"github.com/omipheo/home-advisor-scraping/internal/run"
	"github.com/omipheo/home-advisor-scraping/internal/sheets"
	"github.com/omipheo/home-advisor-scraping/internal/timeutil"
	"github.com/omipheo/home-advisor-scraping/internal/ui"
	"github.com/omipheo/home-advisor-scraping/pkg/models"
)

// scrapeCmd represents the scrape command
var scrapeCmd = &cobra.Command{
	Use:   "scrape [url]",
	Short: "Scrape a paginated listing and append records to a Google Sheet",
	Long: `Scrape walks every page of a business listing URL, pulls each card's
fields, enriches them with phone, email, address and website through the
business's own pages, and appends the results in batches of 10.

The sheet is cleared and re-headed when starting from page 1; use
--start-page to resume an interrupted run without losing existing rows.`,
	Example: `  # Scrape into a Google Sheet
  hascrape scrape "https://www.homeadvisor.com/c.Landscaping.Elizabeth.NJ.html" --sheet-id=SHEET --credentials=service-account.json

  # Resume from page 42
  hascrape scrape "https://www.homeadvisor.com/c.Landscaping.Elizabeth.NJ.html" --sheet-id=SHEET --credentials=service-account.json --start-page=42

  # Local CSV only, visible browser for manual challenge solving
  hascrape scrape "https://www.homeadvisor.com/c.Landscaping.Elizabeth.NJ.html" --csv=results.csv --headed`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	scrapeCmd.Flags().Int("start-page", config.DefaultStartPage, "Page to start from (resume support)")
	scrapeCmd.Flags().Int("pages", 0, "Maximum number of pages to process (0 = all detected)")
	scrapeCmd.Flags().Bool("headed", false, "Run the browser visibly (allows manual challenge solving)")
	scrapeCmd.Flags().Bool("no-stealth", false, "Disable browser fingerprint masking")
	scrapeCmd.Flags().String("sheet-id", "", "Google Sheet ID to append records to")
	scrapeCmd.Flags().String("credentials", "", "Path to a Google service account credentials JSON file")
	scrapeCmd.Flags().String("csv", "", "Also write records to a local CSV file")
}

// nopFlusher backs CSV-only runs; the runner's own CSV mirror does the
// actual writing.
type nopFlusher struct{}

func (nopFlusher) AppendRecords(context.Context, []*models.BusinessRecord) error { return nil }

func runScrape(cmd *cobra.Command, args []string) error {
	a := GetApp()
	cfg := a.Config
	ctx := cmd.Context()

	listingURL := ""
	if len(args) > 0 {
		listingURL = args[0]
	} else {
		fmt.Fprint(os.Stderr, "Listing URL: ")
		reader := bufio.NewReader(os.Stdin)
		line, _ := reader.ReadString('\n')
		listingURL = strings.TrimSpace(line)
	}
	if !strings.HasPrefix(listingURL, "http://") && !strings.HasPrefix(listingURL, "https://") {
		return fmt.Errorf("invalid URL: must start with http:// or https://")
	}

	if cfg.SheetID == "" && cfg.CSVPath == "" {
		return fmt.Errorf("no destination: pass --sheet-id (with --credentials) or --csv")
	}

	// The sheet writer validates the credentials file up front, before any
	// browser or network activity.
	var flusher run.Flusher = nopFlusher{}
	var writer *sheets.Writer
	if cfg.SheetID != "" {
		if cfg.CredentialsFile == "" {
			return fmt.Errorf("--sheet-id requires --credentials")
		}
		var err error
		writer, err = sheets.New(ctx, cfg.CredentialsFile, cfg.SheetID)
		if err != nil {
			return err
		}
		flusher = writer
	}

	session := browser.NewSession(browser.Options{
		Headless:        cfg.Headless,
		Stealth:         cfg.Stealth,
		ChromePath:      cfg.ChromePath,
		Proxy:           cfg.Proxy,
		UserAgent:       cfg.UserAgent,
		PageLoadTimeout: cfg.PageLoadTimeout,
	})
	if err := session.Open(ctx); err != nil {
		return fmt.Errorf("starting browser: %w", err)
	}
	defer session.Close()

	// A fresh run from page 1 starts from a clean sheet.
	if writer != nil && cfg.StartPage == 1 {
		if err := writer.Reset(ctx); err != nil {
			return err
		}
		log.Info().Msg("Sheet cleared and headers written")
	} else if writer != nil {
		log.Info().Int("start_page", cfg.StartPage).Msg("Resuming, existing rows kept")
	}

	resolver := challenge.NewResolver(challenge.Options{
		Solver:     a.Captcha,
		AutoBypass: session.AutoBypass(),
		Headed:     session.Headed(),
	})
	extractor := extract.New(listingURL, extract.DefaultSelectors())
	pacer := ratelimit.NewPacer(timeutil.Real{})
	enricher := enrich.New(session, resolver, a.Fetcher, listingURL)

	runner := run.New(session, resolver, extractor, enricher, flusher, pacer, run.Options{
		BaseURL:    listingURL,
		StartPage:  cfg.StartPage,
		PagesLimit: cfg.PagesLimit,
		BatchSize:  cfg.BatchSize,
		DebugPath:  config.DebugArtifactPath,
		CSVPath:    cfg.CSVPath,
		Quiet:      cfg.JSONLog || cfg.LogLevel == "error",
	})

	start := time.Now()
	summary, runErr := runner.Run(ctx)
	printSummary(summary, time.Since(start))

	if runErr != nil {
		// Persistence failure: records stay recoverable on disk.
		salvagePath := fmt.Sprintf("salvage_%s.csv", time.Now().Format("20060102_150405"))
		if err := output.SaveCSV(runner.Collected(), salvagePath); err == nil {
			fmt.Fprintln(os.Stderr, ui.Warn("Records salvaged to "+salvagePath))
		}
		return runErr
	}
	return nil
}

func printSummary(s *models.RunSummary, took time.Duration) {
	fmt.Println()
	fmt.Println(ui.Bold("Run summary"))
	fmt.Printf("  Pages detected:  %d\n", s.PagesDetected)
	fmt.Printf("  Pages processed: %d\n", s.PagesProcessed)
	fmt.Printf("  Empty pages:     %d\n", s.EmptyPages)
	fmt.Printf("  Records:         %d\n", s.Records)
	fmt.Printf("  Took:            %s\n", took.Round(time.Second))
	if s.Interrupted || s.StopReason != run.StopCompleted {
		fmt.Println(ui.Warn("  Stopped early: " + s.StopReason))
	} else {
		fmt.Println(ui.Success("  Completed"))
	}
}
