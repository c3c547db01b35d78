package fetcher

import (
	"bufio"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"JobScanner/internal/domain"
	"JobScanner/internal/logging"
	"JobScanner/internal/metrics"
	"JobScanner/internal/ports"
)

const (
	defaultMaxRetries  = 3
	defaultTimeout     = 10 * time.Second
	defaultBackoffBase = time.Second
	maxBackoff         = 5 * time.Minute
)

// userAgents is the identity pool; the first entry is used when rotation is off.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_4_1) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4.1 Safari/605.1.15",
	"Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:124.0) Gecko/20100101 Firefox/124.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36 Edg/124.0.2478.67",
}

// Options configures a Fetcher. Zero values fall back to defaults.
type Options struct {
	MaxRetries      int
	Timeout         time.Duration
	BackoffBase     time.Duration
	RotateUserAgent bool
	Client          *http.Client
	Logger          *slog.Logger
	Metrics         *metrics.Metrics
}

// Fetcher issues GET requests with bounded retry and exponential backoff and
// parses successful responses into goquery documents. It keeps no state
// between calls.
type Fetcher struct {
	client      *http.Client
	maxRetries  int
	backoffBase time.Duration
	rotate      bool
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

var _ ports.PageFetcher = (*Fetcher)(nil)

// New builds a Fetcher; an explicit client keeps its own timeout.
func New(opts Options) *Fetcher {
	if opts.MaxRetries < 1 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = defaultBackoffBase
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	return &Fetcher{
		client:      client,
		maxRetries:  opts.MaxRetries,
		backoffBase: opts.BackoffBase,
		rotate:      opts.RotateUserAgent,
		logger:      logging.OrDiscard(opts.Logger),
		metrics:     opts.Metrics,
	}
}

// Fetch downloads pageURL, trying up to maxRetries times (the configured
// default when maxRetries < 1). Exhaustion yields an error wrapping
// domain.ErrPageUnavailable.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string, maxRetries int) (*goquery.Document, error) {
	if maxRetries < 1 {
		maxRetries = f.maxRetries
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		doc, err := f.fetchOnce(ctx, pageURL)
		f.metrics.FetchAttempt(err == nil)
		if err == nil {
			return doc, nil
		}
		lastErr = err

		f.logger.Warn("fetch attempt failed",
			"url", pageURL,
			"attempt", attempt+1,
			"max_attempts", maxRetries,
			"error", err,
		)
		if attempt == maxRetries-1 {
			break
		}
		if err := sleep(ctx, f.backoff(attempt)); err != nil {
			return nil, fmt.Errorf("fetch %s: %w: %w", pageURL, domain.ErrPageUnavailable, err)
		}
	}

	f.logger.Error("page unavailable", "url", pageURL, "attempts", maxRetries, "error", lastErr)
	return nil, fmt.Errorf("fetch %s after %d attempts: %w: %w", pageURL, maxRetries, domain.ErrPageUnavailable, lastErr)
}

func (f *Fetcher) fetchOnce(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Accept-Encoding", "gzip, deflate")
	req.Header.Set("Connection", "keep-alive")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	body, err := decodeBody(resp)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

func (f *Fetcher) userAgent() string {
	if !f.rotate {
		return userAgents[0]
	}
	return userAgents[rand.IntN(len(userAgents))]
}

// backoff returns base * 2^attempt, capped.
func (f *Fetcher) backoff(attempt int) time.Duration {
	delay := float64(f.backoffBase) * math.Pow(2, float64(attempt))
	if delay > float64(maxBackoff) {
		return maxBackoff
	}
	return time.Duration(delay)
}

// decodeBody undoes the content encodings requested in Accept-Encoding.
func decodeBody(resp *http.Response) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("open gzip body: %w", err)
		}
		return zr, nil
	case "deflate":
		// Servers disagree on zlib-wrapped vs raw deflate; sniff the header.
		br := bufio.NewReader(resp.Body)
		if head, err := br.Peek(2); err == nil && isZlibHeader(head) {
			zr, err := zlib.NewReader(br)
			if err != nil {
				return nil, fmt.Errorf("open deflate body: %w", err)
			}
			return zr, nil
		}
		return flate.NewReader(br), nil
	default:
		return io.NopCloser(resp.Body), nil
	}
}

func isZlibHeader(b []byte) bool {
	return b[0]&0x0f == 8 && (uint16(b[0])<<8|uint16(b[1]))%31 == 0
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
