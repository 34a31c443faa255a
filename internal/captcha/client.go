// Package captcha talks to a remote CAPTCHA-solving service speaking the
// 2Captcha wire protocol: submit a challenge, poll for the token, query the
// account balance.
package captcha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/omipheo/home-advisor-scraping/internal/timeutil"
)

// Challenge kinds accepted by the service.
const (
	KindTurnstile   = "turnstile"
	KindRecaptchaV2 = "userrecaptcha"
)

const (
	// DefaultBaseURL is the production endpoint of the solving service.
	DefaultBaseURL = "http://2captcha.com"

	// PollInterval is the fixed wait between result polls.
	PollInterval = 5 * time.Second
	// PollCeiling is the hard limit on total polling time for one challenge.
	PollCeiling = 120 * time.Second

	// notReady is the service's "keep polling" sentinel.
	notReady = "CAPCHA_NOT_READY"
)

var (
	// ErrTimeout means the service did not produce a token within PollCeiling.
	ErrTimeout = errors.New("captcha solving timed out")
	// ErrNotConfigured means no API key is available.
	ErrNotConfigured = errors.New("captcha solver not configured")
)

// apiResponse is the service's uniform JSON envelope.
type apiResponse struct {
	Status  int    `json:"status"`
	Request string `json:"request"`
}

// Client submits challenges to the solving service and polls for tokens.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	clock   timeutil.Clock
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the service endpoint (used by tests).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithClock overrides the clock (used by tests).
func WithClock(clock timeutil.Clock) Option {
	return func(c *Client) { c.clock = clock }
}

// New creates a Client. An empty apiKey yields a disabled client whose
// methods return ErrNotConfigured.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: DefaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		clock:   timeutil.Real{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool { return c.apiKey != "" }

// Submit sends one challenge to the service and returns the challenge id.
// A non-success status from the service is terminal for this attempt; the
// submission is never retried.
func (c *Client) Submit(ctx context.Context, kind, siteKey, pageURL string) (string, error) {
	if !c.Enabled() {
		return "", ErrNotConfigured
	}

	keyParam := "sitekey"
	if kind == KindRecaptchaV2 {
		keyParam = "googlekey"
	}

	form := url.Values{
		"key":     {c.apiKey},
		"method":  {kind},
		keyParam:  {siteKey},
		"pageurl": {pageURL},
		"json":    {"1"},
	}

	resp, err := c.postForm(ctx, c.baseURL+"/in.php", form)
	if err != nil {
		return "", fmt.Errorf("captcha submit: %w", err)
	}
	if resp.Status != 1 {
		return "", fmt.Errorf("captcha submit rejected: %s", resp.Request)
	}

	log.Debug().Str("kind", kind).Str("challenge_id", resp.Request).Msg("Challenge submitted to solver")
	return resp.Request, nil
}

// PollResult is one poll outcome.
type PollResult struct {
	Token   string
	Pending bool
}

// Poll asks the service once for the result of a submitted challenge.
// A "not ready" response is not an error.
func (c *Client) Poll(ctx context.Context, challengeID string) (PollResult, error) {
	if !c.Enabled() {
		return PollResult{}, ErrNotConfigured
	}

	q := url.Values{
		"key":    {c.apiKey},
		"action": {"get"},
		"id":     {challengeID},
		"json":   {"1"},
	}

	resp, err := c.get(ctx, c.baseURL+"/res.php?"+q.Encode())
	if err != nil {
		return PollResult{}, fmt.Errorf("captcha poll: %w", err)
	}

	if resp.Status == 1 && resp.Request != notReady {
		return PollResult{Token: resp.Request}, nil
	}
	if resp.Request == notReady {
		return PollResult{Pending: true}, nil
	}
	return PollResult{}, fmt.Errorf("captcha solving failed: %s", resp.Request)
}

// Solve submits the challenge and polls until a token arrives, the service
// reports failure, or PollCeiling elapses. Only a timeout or an explicit
// solver error ends the wait; "not ready" keeps polling.
func (c *Client) Solve(ctx context.Context, kind, siteKey, pageURL string) (string, error) {
	challengeID, err := c.Submit(ctx, kind, siteKey, pageURL)
	if err != nil {
		return "", err
	}

	start := c.clock.Now()
	for {
		if !c.clock.Sleep(ctx, PollInterval) {
			return "", ctx.Err()
		}
		if c.clock.Now().Sub(start) > PollCeiling {
			log.Warn().Dur("ceiling", PollCeiling).Msg("Captcha solving timed out")
			return "", ErrTimeout
		}

		result, err := c.Poll(ctx, challengeID)
		if err != nil {
			return "", err
		}
		if result.Pending {
			log.Debug().
				Dur("elapsed", c.clock.Now().Sub(start)).
				Msg("Captcha still solving")
			continue
		}

		log.Info().Msg("Captcha solved, token received")
		return result.Token, nil
	}
}

// Balance returns the account balance, or an error when the service or the
// key is unavailable.
func (c *Client) Balance(ctx context.Context) (float64, error) {
	if !c.Enabled() {
		return 0, ErrNotConfigured
	}

	q := url.Values{
		"key":    {c.apiKey},
		"action": {"getbalance"},
		"json":   {"1"},
	}

	resp, err := c.get(ctx, c.baseURL+"/res.php?"+q.Encode())
	if err != nil {
		return 0, fmt.Errorf("captcha balance: %w", err)
	}
	if resp.Status != 1 {
		return 0, fmt.Errorf("captcha balance unavailable: %s", resp.Request)
	}

	amount, err := strconv.ParseFloat(resp.Request, 64)
	if err != nil {
		return 0, fmt.Errorf("captcha balance parse: %w", err)
	}
	return amount, nil
}

func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values) (*apiResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func (c *Client) get(ctx context.Context, endpoint string) (*apiResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*apiResponse, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	var parsed apiResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("malformed solver response: %w", err)
	}
	return &parsed, nil
}
