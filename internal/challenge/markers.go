package challenge

// Marker tables are deliberately plain data: when the target site changes its
// interstitial, these lists get edited, not the resolver's control flow.

// Markers declares the textual signals the resolver inspects.
type Markers struct {
	// Challenge phrases whose presence (case-insensitive) marks the page as
	// an anti-bot interstitial.
	Challenge []string
	// Content phrases that must be present for the page to count as real
	// post-challenge content. Guards against declaring victory on an
	// intermediate redirect page.
	Content []string
	// TokenFields are the response-field names a solved token is injected
	// into, tried in order.
	TokenFields []string
}

// DefaultMarkers covers Cloudflare, Turnstile and reCAPTCHA interstitials in
// front of a listing site.
func DefaultMarkers() Markers {
	return Markers{
		Challenge: []string{
			"checking your browser",
			"verify you are human",
			"just a moment",
			"enable javascript and cookies to continue",
			"challenges.cloudflare.com",
			"cf-turnstile",
			"g-recaptcha",
			"access denied",
			"attention required",
		},
		Content: []string{
			"/pro/",
			"reviews",
		},
		TokenFields: []string{
			"cf-turnstile-response",
			"g-recaptcha-response",
		},
	}
}

// widgetSelectors locate a solvable CAPTCHA widget, most specific first.
var widgetSelectors = []string{
	"div.cf-turnstile[data-sitekey]",
	"div.g-recaptcha[data-sitekey]",
	"[data-sitekey]",
}

// challengeFrameSources identify challenge iframes whose URL carries the site
// key as a query parameter.
var challengeFrameSources = []string{
	"challenges.cloudflare.com",
	"google.com/recaptcha",
	"recaptcha.net",
}
