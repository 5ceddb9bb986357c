package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"time"

	"github.com/BenjaminSRussell/crawlaudit/internal/parser"
)

const defaultMaxBodyBytes = 10 << 20

// HTTPFetcher fetches pages with net/http, honouring robots.txt and retrying
// transient failures with backoff.
type HTTPFetcher struct {
	client       *http.Client
	userAgent    string
	robots       *RobotsChecker
	ignoreRobots bool
	retry        *RetryHandler
	maxBodyBytes int64
}

// HTTPOption configures an HTTPFetcher
type HTTPOption func(*HTTPFetcher)

// WithClient replaces the HTTP client
func WithClient(c *http.Client) HTTPOption {
	return func(f *HTTPFetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithUserAgent sets the User-Agent header
func WithUserAgent(ua string) HTTPOption {
	return func(f *HTTPFetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithIgnoreRobots disables robots.txt checks
func WithIgnoreRobots(ignore bool) HTTPOption {
	return func(f *HTTPFetcher) {
		f.ignoreRobots = ignore
	}
}

// WithRetry sets the retry policy
func WithRetry(cfg RetryConfig) HTTPOption {
	return func(f *HTTPFetcher) {
		f.retry = NewRetryHandler(cfg)
	}
}

// WithMaxBodyBytes caps how much of a response body is read
func WithMaxBodyBytes(n int64) HTTPOption {
	return func(f *HTTPFetcher) {
		if n > 0 {
			f.maxBodyBytes = n
		}
	}
}

// NewHTTPClient returns the client used for crawling
func NewHTTPClient(concurrency int) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        concurrency * 2,
			MaxIdleConnsPerHost: concurrency,
			IdleConnTimeout:     90 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("stopped after %d redirects", len(via))
			}
			return nil
		},
	}
}

// NewHTTPFetcher creates a fetcher
func NewHTTPFetcher(opts ...HTTPOption) *HTTPFetcher {
	f := &HTTPFetcher{
		client:       NewHTTPClient(5),
		userAgent:    DefaultUserAgent,
		retry:        NewRetryHandler(DefaultRetryConfig()),
		maxBodyBytes: defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(f)
	}
	if !f.ignoreRobots {
		f.robots = NewRobotsChecker(f.client, f.userAgent, RobotsAgent)
	}
	return f
}

// Fetch retrieves rawURL. Only 2xx responses succeed; links are extracted
// from HTML bodies.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}

	if f.robots != nil && !f.robots.Allowed(ctx, rawURL) {
		return nil, fmt.Errorf("%s: %w", rawURL, ErrRobotsDisallowed)
	}

	var lastErr error
	var lastStatus, attempts int
	for attempt := 0; attempt <= f.retry.MaxRetries(); attempt++ {
		if err := f.retry.Wait(ctx, u.Host); err != nil {
			return nil, err
		}

		attempts++
		page, status, err := f.fetchOnce(ctx, rawURL)
		if err == nil {
			f.retry.RecordSuccess(u.Host)
			return page, nil
		}

		lastErr, lastStatus = err, status
		if !f.retry.ShouldRetry(status, err) {
			break
		}
		if attempt < f.retry.MaxRetries() {
			f.retry.RecordFailure(u.Host, status)
		}
	}

	return nil, &RetryableError{
		Err:        lastErr,
		StatusCode: lastStatus,
		Attempt:    attempts,
		MaxRetries: f.retry.MaxRetries(),
	}
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, rawURL string) (*Page, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("request creation failed: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		return nil, resp.StatusCode, fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("body read failed: %w", err)
	}

	finalURL := resp.Request.URL.String()
	page := &Page{
		URL:        rawURL,
		FinalURL:   finalURL,
		StatusCode: resp.StatusCode,
		Body:       body,
		Links:      []string{},
	}

	if isHTML(resp.Header.Get("Content-Type")) {
		doc, err := parser.ExtractLinks(bytes.NewReader(body), finalURL)
		if err != nil {
			return nil, resp.StatusCode, fmt.Errorf("parse failed: %w", err)
		}
		page.Title = doc.Title
		page.Links = doc.Links
	}

	return page, resp.StatusCode, nil
}

func isHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}
