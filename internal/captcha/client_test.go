package captcha

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/omipheo/home-advisor-scraping/internal/timeutil"
)

// fakeService stands in for the solving service. pendingPolls controls how
// many "not ready" responses precede the token.
func fakeService(t *testing.T, pendingPolls int, token string) (*httptest.Server, *int) {
	t.Helper()
	polls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/in.php", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST submit, got %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm failed: %v", err)
		}
		if r.PostForm.Get("json") != "1" {
			t.Errorf("Expected json=1 in submit form")
		}
		fmt.Fprint(w, `{"status":1,"request":"12345"}`)
	})
	mux.HandleFunc("/res.php", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("action") {
		case "getbalance":
			fmt.Fprint(w, `{"status":1,"request":"42.50"}`)
		case "get":
			polls++
			if polls <= pendingPolls {
				fmt.Fprint(w, `{"status":0,"request":"CAPCHA_NOT_READY"}`)
				return
			}
			fmt.Fprintf(w, `{"status":1,"request":"%s"}`, token)
		default:
			t.Errorf("Unexpected action %q", r.URL.Query().Get("action"))
		}
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &polls
}

func TestClient_Solve_TokenBeforeCeiling(t *testing.T) {
	// Token arrives on the 20th poll: 100s elapsed, inside the 120s ceiling.
	server, polls := fakeService(t, 19, "solved-token")

	clock := timeutil.NewFake()
	client := New("test-key", WithBaseURL(server.URL), WithClock(clock))

	token, err := client.Solve(context.Background(), KindTurnstile, "site-key", "https://example.com")
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if token != "solved-token" {
		t.Errorf("Expected token 'solved-token', got %q", token)
	}
	if *polls != 20 {
		t.Errorf("Expected 20 polls, got %d", *polls)
	}
}

func TestClient_Solve_CeilingTimeout(t *testing.T) {
	// The service never produces a token; polling must stop past 120s.
	server, polls := fakeService(t, 1000, "never")

	clock := timeutil.NewFake()
	client := New("test-key", WithBaseURL(server.URL), WithClock(clock))

	_, err := client.Solve(context.Background(), KindTurnstile, "site-key", "https://example.com")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Expected ErrTimeout, got %v", err)
	}
	// 24 polls carry the clock to 120s; the next sleep crosses the ceiling
	// before any further poll happens.
	if *polls != 24 {
		t.Errorf("Expected 24 polls before timeout, got %d", *polls)
	}
}

func TestClient_Submit_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":0,"request":"ERROR_WRONG_USER_KEY"}`)
	}))
	defer server.Close()

	client := New("bad-key", WithBaseURL(server.URL), WithClock(timeutil.NewFake()))

	_, err := client.Submit(context.Background(), KindRecaptchaV2, "site-key", "https://example.com")
	if err == nil {
		t.Fatal("Expected submission rejection error")
	}
}

func TestClient_Solve_PollFailureEndsPolling(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/in.php", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":1,"request":"77"}`)
	})
	mux.HandleFunc("/res.php", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":0,"request":"ERROR_CAPTCHA_UNSOLVABLE"}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := New("test-key", WithBaseURL(server.URL), WithClock(timeutil.NewFake()))

	_, err := client.Solve(context.Background(), KindTurnstile, "site-key", "https://example.com")
	if err == nil || errors.Is(err, ErrTimeout) {
		t.Fatalf("Expected explicit solver error, got %v", err)
	}
}

func TestClient_Balance(t *testing.T) {
	server, _ := fakeService(t, 0, "")

	client := New("test-key", WithBaseURL(server.URL))

	amount, err := client.Balance(context.Background())
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if amount != 42.50 {
		t.Errorf("Expected balance 42.50, got %v", amount)
	}
}

func TestClient_Disabled(t *testing.T) {
	client := New("")

	if client.Enabled() {
		t.Error("Expected client without key to be disabled")
	}
	if _, err := client.Balance(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Expected ErrNotConfigured, got %v", err)
	}
	if _, err := client.Submit(context.Background(), KindTurnstile, "k", "u"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Expected ErrNotConfigured, got %v", err)
	}
}
