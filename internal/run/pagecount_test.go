package run

import "testing"

func TestCountPages(t *testing.T) {
	tests := []struct {
		name string
		html string
		want int
	}{
		{
			name: "showing summary",
			html: `<html><body><div>Showing 1-10 of 1050 results</div></body></html>`,
			want: 105,
		},
		{
			name: "showing summary with commas",
			html: `<html><body>Showing 1-10 of 1,050</body></html>`,
			want: 105,
		},
		{
			name: "partial last page rounds up",
			html: `<html><body>Showing 1-10 of 25</body></html>`,
			want: 3,
		},
		{
			name: "element scoped count",
			html: `<html><body><span data-testid="results-count">Showing 1-10 of 200</span></body></html>`,
			want: 20,
		},
		{
			name: "results phrasing",
			html: `<html><body><p>312 results in Elizabeth, NJ</p></body></html>`,
			want: 32,
		},
		{
			name: "pagination links fallback",
			html: `<html><body><div class="pagination">
				<a href="?page=1">1</a><a href="?page=2">2</a><a href="?page=7">7</a>
				<a href="?page=2">Next</a>
			</div></body></html>`,
			want: 7,
		},
		{
			name: "nothing detected defaults to one",
			html: `<html><body><p>Some listings</p></body></html>`,
			want: 1,
		},
		{
			name: "empty markup",
			html: ``,
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CountPages(tt.html)
			if got != tt.want {
				t.Errorf("CountPages() = %d, want %d", got, tt.want)
			}
		})
	}
}
