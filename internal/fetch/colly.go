package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BenjaminSRussell/crawlaudit/internal/parser"
	"github.com/gocolly/colly/v2"
)

// CollyFetcher fetches pages through a colly collector. Concurrency stays
// with the crawler, so each Fetch runs one synchronous visit on a clone.
type CollyFetcher struct {
	base *colly.Collector
}

// NewCollyFetcher creates a colly-backed fetcher
func NewCollyFetcher(userAgent string, ignoreRobots bool, timeout time.Duration) *CollyFetcher {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	c := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.AllowURLRevisit(),
		colly.MaxDepth(0),
	)
	c.IgnoreRobotsTxt = ignoreRobots
	if timeout > 0 {
		c.SetRequestTimeout(timeout)
	}

	return &CollyFetcher{base: c}
}

type collyResult struct {
	page *Page
	err  error
}

// Fetch visits rawURL once
func (f *CollyFetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := f.base.Clone()
	done := make(chan collyResult, 1)

	var page *Page
	var fetchErr error

	c.OnResponse(func(r *colly.Response) {
		finalURL := r.Request.URL.String()
		page = &Page{
			URL:        rawURL,
			FinalURL:   finalURL,
			StatusCode: r.StatusCode,
			Body:       r.Body,
			Links:      []string{},
		}
		if !isHTML(r.Headers.Get("Content-Type")) {
			return
		}
		doc, err := parser.ExtractLinks(bytes.NewReader(r.Body), finalURL)
		if err != nil {
			fetchErr = fmt.Errorf("parse failed: %w", err)
			return
		}
		page.Title = doc.Title
		page.Links = doc.Links
	})

	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			fetchErr = fmt.Errorf("%w: %d", ErrStatus, r.StatusCode)
			return
		}
		fetchErr = err
	})

	go func() {
		err := c.Visit(rawURL)
		switch {
		case errors.Is(err, colly.ErrRobotsTxtBlocked):
			done <- collyResult{err: fmt.Errorf("%s: %w", rawURL, ErrRobotsDisallowed)}
		case err != nil && fetchErr == nil:
			done <- collyResult{err: err}
		case fetchErr != nil:
			done <- collyResult{err: fetchErr}
		case page == nil:
			done <- collyResult{err: fmt.Errorf("no response for %s", rawURL)}
		default:
			done <- collyResult{page: page}
		}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		return res.page, res.err
	}
}
