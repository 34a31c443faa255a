// Package browser owns the single automated Chrome session a run drives.
// The session is a shared mutable resource (cookies, anti-bot trust state)
// and must never be used concurrently; everything in this program accesses it
// from one control goroutine.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"
)

// Options configures the browser session.
type Options struct {
	Headless        bool
	Stealth         bool
	ChromePath      string
	Proxy           string
	UserAgent       string // empty = random Chrome UA
	PageLoadTimeout time.Duration
}

// Session is one live Chrome instance with explicit lifecycle: Open at run
// start, Close on every exit path.
type Session struct {
	opts      Options
	userAgent string

	browserCtx context.Context
	cancels    []context.CancelFunc
}

// NewSession creates an unopened session.
func NewSession(opts Options) *Session {
	if opts.PageLoadTimeout <= 0 {
		opts.PageLoadTimeout = 20 * time.Second
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = RandomUserAgent()
	}
	return &Session{opts: opts, userAgent: ua}
}

// UserAgent returns the user agent the session was launched with.
func (s *Session) UserAgent() string { return s.userAgent }

// AutoBypass reports whether the session was configured to defeat challenges
// at the browser layer (stealth patches + automation-hiding flags). Challenge
// polling uses shorter intervals for such sessions.
func (s *Session) AutoBypass() bool { return s.opts.Stealth }

// Headed reports whether a visible browser window is available for manual
// operator intervention.
func (s *Session) Headed() bool { return !s.opts.Headless }

// Open launches Chrome and applies the anti-fingerprinting configuration.
func (s *Session) Open(ctx context.Context) error {
	if s.browserCtx != nil {
		return fmt.Errorf("session already open")
	}

	chromePath := s.opts.ChromePath
	if chromePath == "" {
		chromePath = FindChrome()
	}

	allocOpts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-breakpad", true),
		chromedp.Flag("disable-client-side-phishing-detection", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-hang-monitor", true),
		chromedp.Flag("disable-prompt-on-repost", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("window-size", "1920,1080"),
		chromedp.Flag("start-maximized", true),
		chromedp.UserAgent(s.userAgent),
	}

	if s.opts.Headless {
		// New headless mode is less detectable than the legacy one
		allocOpts = append(allocOpts, chromedp.Flag("headless", "new"))
	}
	if chromePath != "" {
		allocOpts = append([]chromedp.ExecAllocatorOption{chromedp.ExecPath(chromePath)}, allocOpts...)
	}
	if s.opts.Proxy != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(s.opts.Proxy))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	s.cancels = []context.CancelFunc{browserCancel, allocCancel}
	s.browserCtx = browserCtx

	// Start the browser and install the stealth patch so it runs before any
	// document of any future navigation.
	actions := []chromedp.Action{chromedp.ActionFunc(func(ctx context.Context) error {
		if !s.opts.Stealth {
			return nil
		}
		_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
		return err
	})}

	if err := chromedp.Run(browserCtx, actions...); err != nil {
		s.Close()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	log.Info().
		Bool("headless", s.opts.Headless).
		Bool("stealth", s.opts.Stealth).
		Str("user_agent", s.userAgent).
		Msg("Browser session opened")
	return nil
}

// Navigate loads a URL and waits for the document body, bounded by the page
// load timeout. A timeout is not fatal: adversarial pages often keep a
// request pending forever while the DOM is already usable.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if s.browserCtx == nil {
		return fmt.Errorf("session not open")
	}

	runCtx, cancel := context.WithTimeout(s.browserCtx, s.opts.PageLoadTimeout)
	defer cancel()

	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		if runCtx.Err() != nil && ctx.Err() == nil {
			log.Warn().Str("url", url).Msg("Page load timed out, proceeding with partial DOM")
			return nil
		}
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// HTML returns the full rendered markup of the current page.
func (s *Session) HTML(ctx context.Context) (string, error) {
	if s.browserCtx == nil {
		return "", fmt.Errorf("session not open")
	}

	runCtx, cancel := context.WithTimeout(s.browserCtx, s.opts.PageLoadTimeout)
	defer cancel()

	var html string
	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read page html: %w", err)
	}
	return html, nil
}

// Eval evaluates a JavaScript expression on the current page and stores the
// result in out (pass nil to discard).
func (s *Session) Eval(ctx context.Context, js string, out interface{}) error {
	if s.browserCtx == nil {
		return fmt.Errorf("session not open")
	}

	runCtx, cancel := context.WithTimeout(s.browserCtx, s.opts.PageLoadTimeout)
	defer cancel()

	if out == nil {
		var discard interface{}
		out = &discard
	}
	if err := chromedp.Run(runCtx, chromedp.Evaluate(js, out)); err != nil {
		return fmt.Errorf("evaluate script: %w", err)
	}
	return nil
}

// Click clicks the first element matching the CSS selector.
func (s *Session) Click(ctx context.Context, selector string) error {
	if s.browserCtx == nil {
		return fmt.Errorf("session not open")
	}

	runCtx, cancel := context.WithTimeout(s.browserCtx, 5*time.Second)
	defer cancel()

	if err := chromedp.Run(runCtx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return fmt.Errorf("click %q: %w", selector, err)
	}
	return nil
}

// ScrollBounce scrolls halfway down the page and back to the top so lazy
// listing content loads.
func (s *Session) ScrollBounce(ctx context.Context) error {
	if s.browserCtx == nil {
		return fmt.Errorf("session not open")
	}

	runCtx, cancel := context.WithTimeout(s.browserCtx, 10*time.Second)
	defer cancel()

	return chromedp.Run(runCtx,
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight/2);`, nil),
		chromedp.Sleep(2*time.Second),
		chromedp.Evaluate(`window.scrollTo(0, 0);`, nil),
		chromedp.Sleep(1*time.Second),
	)
}

// Close tears the browser down. Safe to call multiple times.
func (s *Session) Close() {
	for _, cancel := range s.cancels {
		cancel()
	}
	s.cancels = nil
	if s.browserCtx != nil {
		s.browserCtx = nil
		log.Info().Msg("Browser session closed")
	}
}
