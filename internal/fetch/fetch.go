// Package fetch retrieves pages for the crawler and reports their outbound
// links.
package fetch

import (
	"context"
	"errors"
)

// DefaultUserAgent identifies the crawler to servers and robots.txt
const DefaultUserAgent = "crawlaudit/1.0 (+https://github.com/BenjaminSRussell/crawlaudit)"

// RobotsAgent is the product token matched against robots.txt groups
const RobotsAgent = "crawlaudit"

var (
	// ErrRobotsDisallowed is returned when robots.txt forbids the URL
	ErrRobotsDisallowed = errors.New("blocked by robots.txt")

	// ErrStatus is returned for non-2xx responses
	ErrStatus = errors.New("unexpected status")
)

// Page is a successfully fetched document
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Title      string
	Body       []byte
	Links      []string
}

// Fetcher retrieves a URL and returns its outbound links. Any error means
// the URL was not crawled.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

// FetcherFunc adapts a function to the Fetcher interface
type FetcherFunc func(ctx context.Context, url string) (*Page, error)

// Fetch calls f
func (f FetcherFunc) Fetch(ctx context.Context, url string) (*Page, error) {
	return f(ctx, url)
}
