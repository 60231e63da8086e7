package request

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestJoinURL(t *testing.T) {
	cases := []struct {
		base  string
		paths []string
		want  string
	}{
		{"https://api.example.com", []string{"torrents"}, "https://api.example.com/torrents"},
		{"https://api.example.com/", []string{"torrents", "info"}, "https://api.example.com/torrents/info"},
		{"https://api.example.com", []string{"torrents?page=2&limit=50"}, "https://api.example.com/torrents?page=2&limit=50"},
	}
	for _, tc := range cases {
		got, err := JoinURL(tc.base, tc.paths...)
		if err != nil {
			t.Fatalf("JoinURL(%s, %v): %v", tc.base, tc.paths, err)
		}
		if got != tc.want {
			t.Errorf("JoinURL(%s, %v) = %s, want %s", tc.base, tc.paths, got, tc.want)
		}
	}
}

func TestParseRateLimitInvalid(t *testing.T) {
	for _, input := range []string{"", "banana", "10", "-5/minute", "0/second", "10/fortnight"} {
		if rl := ParseRateLimit(input); rl != nil {
			t.Errorf("ParseRateLimit(%q) = %v, want nil", input, rl)
		}
	}
}

func TestParseRateLimitValid(t *testing.T) {
	for _, input := range []string{"250/minute", "5/second", "100/hour", "1000/day", "10/min", "3/sec"} {
		if rl := ParseRateLimit(input); rl == nil {
			t.Errorf("ParseRateLimit(%q) = nil, want a limiter", input)
		}
	}
}

// A limiter for N per window must not let N+1 acquisitions complete before
// the window has (approximately) elapsed.
func TestRateLimiterSpacing(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}
	const limit = 5
	rl := ParseRateLimit(fmt.Sprintf("%d/second", limit))
	if rl == nil {
		t.Fatal("no limiter")
	}

	start := time.Now()
	for i := 0; i < limit+1; i++ {
		rl.Take()
	}
	elapsed := time.Since(start)

	// Leaky-bucket spacing: limit+1 takes need about a full window.
	if elapsed < 800*time.Millisecond {
		t.Errorf("%d takes finished in %v, want ~1s", limit+1, elapsed)
	}
	if elapsed > 3*time.Second {
		t.Errorf("%d takes needed %v, limiter far too slow", limit+1, elapsed)
	}
}

func TestDoRetriesRetryableStatus(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, "ok")
	}))
	defer server.Close()

	client := New(WithMaxRetries(3), WithRetryableStatus(http.StatusServiceUnavailable))
	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestMakeRequestNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, "missing")
	}))
	defer server.Close()

	client := New(WithMaxRetries(0))
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	if _, err := client.MakeRequest(req); err == nil {
		t.Fatal("expected an error for a 404 response")
	}
}

func TestHeadersApplied(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))
	defer server.Close()

	client := New(WithHeaders(map[string]string{"Authorization": "Bearer abc"}))
	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()
	if gotAuth != "Bearer abc" {
		t.Errorf("Authorization = %q, want Bearer abc", gotAuth)
	}
}
