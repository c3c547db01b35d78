package fetcher

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"JobScanner/internal/domain"
)

const samplePage = `<html><body><h1 class="title">Hiring</h1></body></html>`

func newTestFetcher(rotate bool) *Fetcher {
	return New(Options{
		MaxRetries:      3,
		Timeout:         time.Second,
		BackoffBase:     time.Millisecond,
		RotateUserAgent: rotate,
	})
}

func TestFetchRetriesUntilSuccess(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(samplePage))
	}))
	defer server.Close()

	doc, err := newTestFetcher(true).Fetch(context.Background(), server.URL, 3)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if got := doc.Find("h1.title").Text(); got != "Hiring" {
		t.Fatalf("unexpected document content: %q", got)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestFetchExhaustsRetries(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	_, err := newTestFetcher(true).Fetch(context.Background(), server.URL, 2)
	if !errors.Is(err, domain.ErrPageUnavailable) {
		t.Fatalf("expected ErrPageUnavailable, got %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected exactly maxRetries attempts, got %d", calls.Load())
	}
}

func TestFetchUsesDefaultRetriesBelowOne(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, _ = newTestFetcher(false).Fetch(context.Background(), server.URL, 0)
	if calls.Load() != 3 {
		t.Fatalf("expected configured default of 3 attempts, got %d", calls.Load())
	}
}

func TestFetchTransportError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := newTestFetcher(true).Fetch(context.Background(), url, 2)
	if !errors.Is(err, domain.ErrPageUnavailable) {
		t.Fatalf("expected ErrPageUnavailable for a closed server, got %v", err)
	}
}

func TestFetchSendsIdentityHeaders(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		agents []string
		accept string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		agents = append(agents, r.Header.Get("User-Agent"))
		accept = r.Header.Get("Accept")
		mu.Unlock()
		_, _ = w.Write([]byte(samplePage))
	}))
	defer server.Close()

	fixed := newTestFetcher(false)
	for range 3 {
		if _, err := fixed.Fetch(context.Background(), server.URL, 1); err != nil {
			t.Fatalf("Fetch error: %v", err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	for _, ua := range agents {
		if ua != userAgents[0] {
			t.Fatalf("fixed identity expected %q, got %q", userAgents[0], ua)
		}
	}
	if accept == "" {
		t.Fatal("accept header missing")
	}
}

func TestRotatingUserAgentComesFromPool(t *testing.T) {
	t.Parallel()

	f := newTestFetcher(true)
	for range 20 {
		if ua := f.userAgent(); !slices.Contains(userAgents, ua) {
			t.Fatalf("rotated identity %q not in pool", ua)
		}
	}
}

func TestFetchDecodesGzip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, _ = zw.Write([]byte(samplePage))
	_ = zw.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write(buf.Bytes())
	}))
	defer server.Close()

	doc, err := newTestFetcher(true).Fetch(context.Background(), server.URL, 1)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if got := doc.Find("h1.title").Text(); got != "Hiring" {
		t.Fatalf("gzip body not decoded: %q", got)
	}
}

func TestFetchHonoursCancellationDuringBackoff(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	f := New(Options{MaxRetries: 5, BackoffBase: time.Hour})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := f.Fetch(ctx, server.URL, 5)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if !errors.Is(err, domain.ErrPageUnavailable) {
		t.Fatalf("cancellation should still read as page unavailable, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("backoff sleep ignored cancellation")
	}
}

func TestBackoffDoubles(t *testing.T) {
	t.Parallel()

	f := New(Options{BackoffBase: 100 * time.Millisecond})
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond, 800 * time.Millisecond}
	for attempt, w := range want {
		if got := f.backoff(attempt); got != w {
			t.Fatalf("backoff(%d) = %v, want %v", attempt, got, w)
		}
	}
	if got := f.backoff(40); got != maxBackoff {
		t.Fatalf("backoff should be capped, got %v", got)
	}
}
