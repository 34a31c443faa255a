package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dop251/goja"
	"github.com/rs/zerolog/log"
)

// stateGlobals are the globals listing pages assign their bootstrap data to.
var stateGlobals = []string{
	"__SERVER_STATE__",
	"__INITIAL_STATE__",
	"__PRELOADED_STATE__",
}

// nameKeys and urlKeys are the object fields that mark a business entry
// inside the embedded state.
var (
	nameKeys = []string{"name", "businessName", "companyName"}
	urlKeys  = []string{"profileUrl", "profileURL", "url", "seoUrl"}
)

// ProfileIndex evaluates the page's embedded state scripts in a sandboxed JS
// VM and returns a map of lowercased business name to profile URL. Used as
// the last profile-link strategy: cards whose markup carries no usable link
// are cross-referenced against this index by name substring.
func ProfileIndex(doc *goquery.Document, profilePatterns []string) map[string]string {
	index := make(map[string]string)

	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		src := s.Text()
		if src == "" || !looksLikeState(src) {
			return
		}

		state, ok := evalState(src)
		if !ok {
			return
		}
		collectEntries(state, profilePatterns, index)
	})

	return index
}

func looksLikeState(src string) bool {
	for _, g := range stateGlobals {
		if strings.Contains(src, g) {
			return true
		}
	}
	return false
}

// evalState runs one inline script in a VM with a minimal window shim, just
// enough for assignment-style bootstrap scripts to execute, and reads back
// whichever state global got set.
func evalState(src string) (interface{}, bool) {
	vm := goja.New()

	// Mock basic browser environment: enough to capture data assignments
	vm.Set("window", vm.GlobalObject())
	vm.Set("self", vm.GlobalObject())
	vm.Set("document", map[string]interface{}{})

	if _, err := vm.RunString(src); err != nil {
		log.Debug().Err(err).Msg("Embedded state script did not evaluate")
		return nil, false
	}

	for _, g := range stateGlobals {
		v := vm.Get(g)
		if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
			continue
		}
		return v.Export(), true
	}
	return nil, false
}

// collectEntries walks the exported state and records every object that
// carries both a business name and a detail-page URL.
func collectEntries(v interface{}, profilePatterns []string, out map[string]string) {
	switch val := v.(type) {
	case map[string]interface{}:
		name := stringField(val, nameKeys)
		url := stringField(val, urlKeys)
		if name != "" && url != "" && matchesProfile(url, profilePatterns) {
			key := strings.ToLower(strings.TrimSpace(name))
			if _, exists := out[key]; !exists {
				out[key] = url
			}
		}
		for _, child := range val {
			collectEntries(child, profilePatterns, out)
		}
	case []interface{}:
		for _, child := range val {
			collectEntries(child, profilePatterns, out)
		}
	}
}

func stringField(m map[string]interface{}, keys []string) string {
	for _, k := range keys {
		if v, ok := m[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func matchesProfile(url string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(url, p) {
			return true
		}
	}
	return false
}
