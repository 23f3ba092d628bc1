package registry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestGetJSONRetriesServerErrors(t *testing.T) {
	var attempts int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&attempts, 1) < 3 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	client := NewClient(
		WithHTTPClient(server.Client()),
		WithMaxRetries(3),
		WithBaseDelay(time.Millisecond),
	)

	var out struct {
		OK bool `json:"ok"`
	}
	if err := client.GetJSON(context.Background(), server.URL, &out); err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if !out.OK {
		t.Error("body not decoded")
	}
	if n := atomic.LoadInt64(&attempts); n != 3 {
		t.Errorf("server saw %d attempts, want 3", n)
	}
}

func TestGetJSONDoesNotRetryNotFound(t *testing.T) {
	var attempts int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&attempts, 1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := NewClient(
		WithHTTPClient(server.Client()),
		WithMaxRetries(3),
		WithBaseDelay(time.Millisecond),
	)

	var out map[string]any
	err := client.GetJSON(context.Background(), server.URL, &out)
	if !IsNotFound(err) {
		t.Fatalf("err = %v, want not found", err)
	}
	if !errors.Is(err, ErrNotFound) {
		t.Error("not found error does not unwrap to the sentinel")
	}
	if n := atomic.LoadInt64(&attempts); n != 1 {
		t.Errorf("server saw %d attempts, want 1 (no retry on 404)", n)
	}
}

func TestNotFoundDoesNotTripBreaker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(http.NotFound))
	defer server.Close()

	client := NewClient(WithHTTPClient(server.Client()), WithMaxRetries(0))

	// Well past the consecutive-failure threshold.
	for i := 0; i < 10; i++ {
		err := client.GetJSON(context.Background(), server.URL, new(map[string]any))
		if !IsNotFound(err) {
			t.Fatalf("request %d: err = %v, want not found (breaker must stay closed)", i, err)
		}
	}
}

func TestGetJSONParseError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := NewClient(WithHTTPClient(server.Client()), WithMaxRetries(0))

	err := client.GetJSON(context.Background(), server.URL, new(map[string]any))
	var regErr *Error
	if !errors.As(err, &regErr) || regErr.Kind != KindParse {
		t.Fatalf("err = %v, want parse error", err)
	}
}

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		status int
		kind   Kind
	}{
		{http.StatusNotFound, KindNotFound},
		{http.StatusTooManyRequests, KindRateLimited},
		{http.StatusUnauthorized, KindUnauthorized},
		{http.StatusForbidden, KindUnauthorized},
		{http.StatusInternalServerError, KindNetwork},
		{http.StatusBadGateway, KindNetwork},
	}
	for _, tt := range tests {
		if got := errorFromStatus(tt.status, "http://example.com"); got.Kind != tt.kind {
			t.Errorf("status %d -> %s, want %s", tt.status, got.Kind, tt.kind)
		}
	}
}

func TestAuthFuncHeader(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(
		WithHTTPClient(server.Client()),
		WithAuthFunc(func(url string) (string, string) {
			return "Authorization", "Bearer token123"
		}),
	)

	if err := client.GetJSON(context.Background(), server.URL, new(map[string]any)); err != nil {
		t.Fatal(err)
	}
	if got != "Bearer token123" {
		t.Errorf("Authorization = %q", got)
	}
}
