// Package challenge makes a freshly loaded page safe to scrape, or reports
// that it could not. It detects anti-bot interstitials, optionally solves
// their CAPTCHA through a remote service, and otherwise waits them out.
package challenge

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"github.com/omipheo/home-advisor-scraping/internal/timeutil"
)

// State is the transient per-page-load challenge state.
type State int

const (
	StateClean State = iota
	StateChallengeDetected
	StateAutoSolving
	StateWaiting
	StateResolved
	StateUnresolved
)

func (s State) String() string {
	switch s {
	case StateClean:
		return "clean"
	case StateChallengeDetected:
		return "challenge_detected"
	case StateAutoSolving:
		return "auto_solving"
	case StateWaiting:
		return "waiting"
	case StateResolved:
		return "resolved"
	case StateUnresolved:
		return "unresolved"
	}
	return "unknown"
}

// ErrUnresolved means the page is still behind a challenge; the caller
// decides what to do with the page (typically skip it).
var ErrUnresolved = errors.New("challenge unresolved")

// Page is the slice of the browser session the resolver drives.
type Page interface {
	HTML(ctx context.Context) (string, error)
	Eval(ctx context.Context, js string, out interface{}) error
}

// Solver is the slice of the CAPTCHA client the resolver uses.
type Solver interface {
	Enabled() bool
	Solve(ctx context.Context, kind, siteKey, pageURL string) (string, error)
}

// Options configures a Resolver.
type Options struct {
	Markers Markers
	Solver  Solver // nil disables auto-solving
	Clock   timeutil.Clock
	// AutoBypass shortens polling for sessions whose browser layer already
	// defeats most challenges on its own.
	AutoBypass bool
	// Headed enables the unbounded manual-intervention fallback.
	Headed bool
	// Confirm blocks until the operator confirms manual resolution. Defaults
	// to reading a line from stdin.
	Confirm func()
}

// Resolver drives one page load from Clean/ChallengeDetected to
// Resolved/Unresolved. Internal errors never propagate: they degrade to
// waiting and, at worst, ErrUnresolved.
type Resolver struct {
	markers    Markers
	solver     Solver
	clock      timeutil.Clock
	autoBypass bool
	headed     bool
	confirm    func()
}

// NewResolver creates a Resolver.
func NewResolver(opts Options) *Resolver {
	if opts.Clock == nil {
		opts.Clock = timeutil.Real{}
	}
	if len(opts.Markers.Challenge) == 0 {
		opts.Markers = DefaultMarkers()
	}
	if opts.Confirm == nil {
		opts.Confirm = func() {
			fmt.Fprintln(os.Stderr, "Solve the challenge in the browser window, then press Enter to continue...")
			reader := bufio.NewReader(os.Stdin)
			_, _ = reader.ReadString('\n')
		}
	}
	return &Resolver{
		markers:    opts.Markers,
		solver:     opts.Solver,
		clock:      opts.Clock,
		autoBypass: opts.AutoBypass,
		headed:     opts.Headed,
		confirm:    opts.Confirm,
	}
}

// waiting-state bounds; auto-bypass sessions clear challenges faster or not
// at all, so they poll tighter and give up sooner.
func (r *Resolver) pollInterval() time.Duration {
	if r.autoBypass {
		return 2 * time.Second
	}
	return 5 * time.Second
}

func (r *Resolver) waitCeiling() time.Duration {
	if r.autoBypass {
		return 30 * time.Second
	}
	return 60 * time.Second
}

// Resolve gates the current page. It returns nil once the page is usable and
// ErrUnresolved when the challenge outlasted every strategy.
func (r *Resolver) Resolve(ctx context.Context, page Page, pageURL string) error {
	html, err := page.HTML(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Could not read page for challenge detection")
		return r.waitOut(ctx, page)
	}

	if !r.challengePresent(html) {
		log.Debug().Str("state", StateResolved.String()).Msg("No challenge on page")
		return nil
	}

	log.Warn().Str("url", pageURL).Str("state", StateChallengeDetected.String()).Msg("Anti-bot challenge detected")

	if r.solver != nil && r.solver.Enabled() {
		if r.autoSolve(ctx, page, pageURL, html) {
			return nil
		}
	}

	return r.waitOut(ctx, page)
}

// autoSolve attempts the CAPTCHA-service path. Any failure returns false and
// degrades to waiting.
func (r *Resolver) autoSolve(ctx context.Context, page Page, pageURL, html string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		log.Warn().Err(err).Msg("Could not parse challenge page")
		return false
	}

	kind, siteKey, ok := ExtractSiteKey(doc)
	if !ok {
		log.Debug().Msg("No solvable widget found on challenge page")
		return false
	}

	log.Info().
		Str("state", StateAutoSolving.String()).
		Str("kind", kind).
		Str("site_key", siteKey).
		Msg("Requesting challenge token from solver")

	token, err := r.solver.Solve(ctx, kind, siteKey, pageURL)
	if err != nil {
		log.Warn().Err(err).Msg("Solver did not produce a token")
		return false
	}

	if err := r.injectToken(ctx, page, token); err != nil {
		log.Warn().Err(err).Msg("Token injection failed")
		return false
	}

	// Give the page a moment to submit the token, then verify
	r.clock.Sleep(ctx, 3*time.Second)
	after, err := page.HTML(ctx)
	if err != nil {
		return false
	}
	if !r.challengePresent(after) && r.contentPresent(after) {
		log.Info().Str("state", StateResolved.String()).Msg("Challenge resolved via solver")
		return true
	}
	return false
}

// injectToken writes the token into every known response field and invokes
// any framework callback the page registered.
func (r *Resolver) injectToken(ctx context.Context, page Page, token string) error {
	fields := "["
	for i, f := range r.markers.TokenFields {
		if i > 0 {
			fields += ","
		}
		fields += fmt.Sprintf("%q", f)
	}
	fields += "]"

	js := fmt.Sprintf(`(() => {
		const token = %q;
		for (const name of %s) {
			for (const el of document.querySelectorAll('[name="' + name + '"]')) {
				el.value = token;
			}
		}
		if (typeof window.tsCallback === 'function') { window.tsCallback(token); }
		if (window.turnstile && typeof window.turnstile.execute === 'function') { /* widget self-submits */ }
		if (window.___grecaptcha_cfg) {
			for (const form of document.querySelectorAll('form')) {
				if (form.querySelector('[name="g-recaptcha-response"]')) { form.submit(); break; }
			}
		}
		return true;
	})()`, token, fields)

	return page.Eval(ctx, js, nil)
}

// waitOut polls the page until the challenge clears or the ceiling elapses,
// then falls back to manual intervention when a visible browser is available.
func (r *Resolver) waitOut(ctx context.Context, page Page) error {
	deadline := r.clock.Now().Add(r.waitCeiling())

	log.Info().
		Str("state", StateWaiting.String()).
		Dur("ceiling", r.waitCeiling()).
		Msg("Waiting for challenge to clear")

	for r.clock.Now().Before(deadline) {
		if !r.clock.Sleep(ctx, r.pollInterval()) {
			return ctx.Err()
		}

		html, err := page.HTML(ctx)
		if err != nil {
			continue
		}
		if !r.challengePresent(html) && r.contentPresent(html) {
			log.Info().Str("state", StateResolved.String()).Msg("Challenge cleared")
			return nil
		}
	}

	if r.headed {
		log.Warn().Msg("Challenge persists; waiting for manual resolution in the browser window")
		r.confirm()
		html, err := page.HTML(ctx)
		if err == nil && !r.challengePresent(html) {
			log.Info().Str("state", StateResolved.String()).Msg("Challenge resolved manually")
			return nil
		}
	}

	log.Warn().Str("state", StateUnresolved.String()).Msg("Challenge not resolved")
	return ErrUnresolved
}

func (r *Resolver) challengePresent(html string) bool {
	lower := strings.ToLower(html)
	for _, marker := range r.markers.Challenge {
		if strings.Contains(lower, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}

func (r *Resolver) contentPresent(html string) bool {
	if len(r.markers.Content) == 0 {
		return true
	}
	lower := strings.ToLower(html)
	for _, marker := range r.markers.Content {
		if strings.Contains(lower, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}
