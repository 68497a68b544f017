package fetch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/beneyalraj/listing/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testClient returns a client with no pre-request pacing and a tiny retry delay.
func testClient(maxRetries int) *Client {
	return NewClient(&http.Client{Timeout: 5 * time.Second}, maxRetries, 5*time.Millisecond, 0, 0, discardLogger())
}

func TestDo_Success(t *testing.T) {
	var gotUA atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA.Store(r.Header.Get("User-Agent"))
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := testClient(2).Do(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "ok" {
		t.Errorf("unexpected body: %q", body)
	}

	ua, _ := gotUA.Load().(string)
	found := false
	for _, known := range userAgents {
		if ua == known {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("user agent %q not from the fixed pool", ua)
	}
}

func TestDo_RetriesOn429ThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := testClient(3).Do(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestDo_ExhaustsRetriesOnRepeated429(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	maxRetries := 2
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	_, err := testClient(maxRetries).Do(context.Background(), req)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Errorf("expected ErrRetriesExhausted, got %v", err)
	}
	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("expected wrapped HTTP 429, got %v", err)
	}
	// Initial attempt plus exactly maxRetries retries.
	if got := calls.Load(); got != int32(maxRetries+1) {
		t.Errorf("expected %d attempts, got %d", maxRetries+1, got)
	}
}

func TestDo_NoRetryOnOtherStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	_, err := testClient(3).Do(context.Background(), req)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusNotFound {
		t.Errorf("expected HTTP 404 error, got %v", err)
	}
	if errors.Is(err, ErrRetriesExhausted) {
		t.Error("404 must not be classified as retryable-exhausted")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("expected exactly 1 attempt on 404, got %d", got)
	}
}

func TestDo_RotatesIdentityBetweenRetries(t *testing.T) {
	// With an 8-entry pool and 20 attempts, at least two distinct identities
	// should appear (chance of all-same is (1/8)^19).
	seen := make(map[string]bool)
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		seen[r.Header.Get("User-Agent")] = true
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	if _, err := testClient(19).Do(context.Background(), req); err == nil {
		t.Fatal("expected exhaustion error")
	}
	if len(seen) < 2 {
		t.Errorf("expected identity rotation across %d attempts, saw %d distinct", calls.Load(), len(seen))
	}
}

func TestDo_ReplaysPostBodyOnRetry(t *testing.T) {
	var bodies []string
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodPost, srv.URL, strings.NewReader(`{"q":"engineer"}`))
	resp, err := testClient(2).Do(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if len(bodies) != 2 || bodies[0] != bodies[1] || bodies[1] != `{"q":"engineer"}` {
		t.Errorf("expected identical replayed bodies, got %q", bodies)
	}
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(&http.Client{Timeout: 5 * time.Second}, 3, 10*time.Second, 0, 0, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	start := time.Now()
	_, err := c.Do(ctx, req)
	if err == nil {
		t.Fatal("expected error after cancellation")
	}
	if time.Since(start) > 2*time.Second {
		t.Error("cancellation did not interrupt the backoff wait")
	}
}
