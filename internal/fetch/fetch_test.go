package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/omipheo/home-advisor-scraping/internal/cache"
)

func TestFetcher_Body(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if ua := r.Header.Get("User-Agent"); ua != "test-agent" {
			t.Errorf("Expected custom user agent, got %q", ua)
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body>Call 908-555-1234</body></html>"))
	}))
	defer server.Close()

	c := cache.NewMemoryCache(1 << 20)
	defer c.Close()
	f := New(server.Client(), nil, c, "test-agent")

	body, err := f.Body(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Body failed: %v", err)
	}
	if body != "<html><body>Call 908-555-1234</body></html>" {
		t.Errorf("Unexpected body: %q", body)
	}

	// Second fetch is served from cache
	if _, err := f.Body(context.Background(), server.URL); err != nil {
		t.Fatalf("Cached fetch failed: %v", err)
	}
	if hits != 1 {
		t.Errorf("Expected 1 network hit, got %d", hits)
	}
}

func TestFetcher_Body_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer server.Close()

	f := New(server.Client(), nil, nil, "test-agent")

	if _, err := f.Body(context.Background(), server.URL); err == nil {
		t.Fatal("Expected error for a 404 response")
	}
}

func TestFetcher_Body_NonHTMLRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4"))
	}))
	defer server.Close()

	f := New(server.Client(), nil, nil, "test-agent")

	if _, err := f.Body(context.Background(), server.URL); err == nil {
		t.Fatal("Expected error for a non-HTML content type")
	}
}

func TestFetcher_Body_InvalidURL(t *testing.T) {
	f := New(nil, nil, nil, "test-agent")

	if _, err := f.Body(context.Background(), "not-a-url"); err == nil {
		t.Fatal("Expected error for an invalid URL")
	}
}
