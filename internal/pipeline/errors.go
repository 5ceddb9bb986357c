package pipeline

import "errors"

var (
	// ErrInvalidSeed is returned before any output is touched
	ErrInvalidSeed = errors.New("invalid seed URL")

	// ErrEmptyCrawl means the crawl produced neither crawled nor discovered URLs
	ErrEmptyCrawl = errors.New("seed unreachable or has no extractable links")
)
