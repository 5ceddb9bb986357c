package crawler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/BenjaminSRussell/crawlaudit/internal/fetch"
	"github.com/BenjaminSRussell/crawlaudit/internal/types"
)

// ErrFetchPanic marks a fetch that panicked
var ErrFetchPanic = errors.New("panic during fetch")

var errNilPage = errors.New("fetcher returned no page")

// safeFetch runs one fetch under the per-fetch timeout, turning panics into
// errors and reporting the outcome to the page observer.
func (c *Coordinator) safeFetch(ctx context.Context, item types.URLItem) (page *fetch.Page, err error) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			c.panics.Add(1)
			c.logger.WithField("url", item.URL).Errorf("fetch panicked: %v", r)
			c.logger.WithField("url", item.URL).Debugf("stack trace:\n%s", debug.Stack())
			page, err = nil, fmt.Errorf("%w: %v", ErrFetchPanic, r)
		}
		c.observe(item, page, err, time.Since(start))
	}()

	fctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	page, err = c.fetcher.Fetch(fctx, item.URL)
	if err == nil && page == nil {
		err = errNilPage
	}
	return page, err
}

func (c *Coordinator) observe(item types.URLItem, page *fetch.Page, err error, elapsed time.Duration) {
	if c.observer == nil {
		return
	}

	result := types.PageResult{
		URL:       item.URL,
		Level:     item.Level,
		CrawledAt: time.Now(),
		Duration:  elapsed.Milliseconds(),
	}
	if page != nil {
		result.StatusCode = page.StatusCode
		result.ContentLength = int64(len(page.Body))
		result.Title = page.Title
		result.LinkCount = len(page.Links)
	}
	if err != nil {
		result.Error = err.Error()
	}

	c.observer(result)
}
