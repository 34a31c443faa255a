package enrich

import "regexp"

var (
	profileRatingPattern  = regexp.MustCompile(`(\d\.\d)\s*(?:out of 5|[Ss]tars?)`)
	profileReviewsPattern = regexp.MustCompile(`(\d[\d,]*)\s*(?:[Vv]erified\s+)?[Rr]eviews?`)
)

// ratingFromProfile pulls a star rating out of raw profile page text.
func ratingFromProfile(text string) string {
	if m := profileRatingPattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// reviewsFromProfile pulls a review count out of raw profile page text.
func reviewsFromProfile(text string) string {
	if m := profileReviewsPattern.FindStringSubmatch(text); m != nil {
		return cleanDigits(m[1])
	}
	return ""
}

func cleanDigits(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			out = append(out, s[i])
		}
	}
	return string(out)
}
