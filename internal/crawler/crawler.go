package crawler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BenjaminSRussell/crawlaudit/internal/fetch"
	"github.com/BenjaminSRussell/crawlaudit/internal/types"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const defaultFetchTimeout = 30 * time.Second

// SitemapFunc returns extra URLs to treat as outbound links of the seed
type SitemapFunc func(ctx context.Context, seed string) ([]string, error)

// Coordinator runs level-by-level crawls. It holds configuration only; all
// per-crawl state lives in a traversal, so one Coordinator can run several
// crawls, even at the same time.
type Coordinator struct {
	fetcher      fetch.Fetcher
	depth        int
	concurrency  int
	fetchTimeout time.Duration
	pattern      string
	sameSite     bool
	scopeMode    ScopeMode
	sitemap      SitemapFunc
	observer     func(types.PageResult)
	logger       logrus.FieldLogger

	panics atomic.Int64
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithDepth sets the maximum number of fetch hops. Out-of-range values use
// DefaultDepth.
func WithDepth(d int) Option {
	return func(c *Coordinator) {
		c.depth = NormalizeDepth(d)
	}
}

// WithConcurrency sets how many fetches may be in flight. Out-of-range
// values use DefaultConcurrency.
func WithConcurrency(n int) Option {
	return func(c *Coordinator) {
		c.concurrency = NormalizeConcurrency(n)
	}
}

// WithFetchTimeout bounds each fetch
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

// WithFilter only follows links containing pattern
func WithFilter(pattern string) Option {
	return func(c *Coordinator) {
		c.pattern = pattern
	}
}

// WithSameSite restricts the crawl to the seed's registrable domain
func WithSameSite(enabled bool) Option {
	return func(c *Coordinator) {
		c.sameSite = enabled
	}
}

// WithScopeMode selects where the filter pattern applies
func WithScopeMode(mode ScopeMode) Option {
	return func(c *Coordinator) {
		c.scopeMode = mode
	}
}

// WithSitemapSeeds adds sitemap URLs as outbound links of the seed
func WithSitemapSeeds(fn SitemapFunc) Option {
	return func(c *Coordinator) {
		c.sitemap = fn
	}
}

// WithPageObserver is called after every fetch, from fetch goroutines
func WithPageObserver(fn func(types.PageResult)) Option {
	return func(c *Coordinator) {
		c.observer = fn
	}
}

// WithLogger sets the logger
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a coordinator around fetcher
func New(fetcher fetch.Fetcher, opts ...Option) *Coordinator {
	c := &Coordinator{
		fetcher:      fetcher,
		depth:        DefaultDepth,
		concurrency:  DefaultConcurrency,
		fetchTimeout: defaultFetchTimeout,
		sameSite:     true,
		scopeMode:    ScopeRecursive,
		logger:       logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PanicCount returns how many fetches panicked across all crawls
func (c *Coordinator) PanicCount() int64 { return c.panics.Load() }

// traversal is the state of one crawl
type traversal struct {
	scope    *Scope
	frontier *Frontier
	links    *linkCounter

	mu         sync.Mutex
	crawled    map[string]struct{}
	discovered map[string]struct{}
}

func newTraversal(scope *Scope) *traversal {
	return &traversal{
		scope:      scope,
		frontier:   NewFrontier(),
		links:      newLinkCounter(),
		crawled:    make(map[string]struct{}),
		discovered: make(map[string]struct{}),
	}
}

func (t *traversal) markCrawled(u string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.crawled[u] = struct{}{}
}

func (t *traversal) markDiscovered(u string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.discovered[u] = struct{}{}
}

type link struct {
	url    string
	parent string
}

// Crawl traverses from seed and returns once every fetch has resolved. A
// cancelled context yields ctx.Err() and no result.
func (c *Coordinator) Crawl(ctx context.Context, seed string) (*types.CrawlResult, error) {
	scope, err := NewScope(seed, c.pattern, c.sameSite, c.scopeMode)
	if err != nil {
		return nil, err
	}

	t := newTraversal(scope)
	t.frontier.Add(seed)
	current := []types.URLItem{{URL: seed, Level: 1}}

	c.logger.WithFields(logrus.Fields{
		"seed":        seed,
		"depth":       c.depth,
		"concurrency": c.concurrency,
	}).Info("Starting crawl")

	for level := 1; len(current) > 0; level++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		c.logger.WithFields(logrus.Fields{"level": level, "urls": len(current)}).Info("Crawling level")

		links := c.fetchLevel(ctx, t, current)
		if level == 1 && c.sitemap != nil {
			links = append(links, c.sitemapLinks(ctx, seed)...)
		}

		next := make([]types.URLItem, 0)
		for _, l := range links {
			t.links.Observe(l.url)
			if !t.scope.Allows(l.url, level) || !t.frontier.Add(l.url) {
				continue
			}
			if level >= c.depth {
				t.markDiscovered(l.url)
				continue
			}
			next = append(next, types.URLItem{URL: l.url, Level: level + 1, ParentURL: l.parent})
		}
		current = next
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := types.NewCrawlResult(t.crawled, t.discovered)
	c.logger.WithFields(logrus.Fields{
		"crawled":    len(result.Crawled),
		"discovered": len(result.Discovered),
		"admitted":   t.frontier.Size(),
		"links_seen": t.links.Count(),
		"panics":     c.PanicCount(),
	}).Info("Crawl complete")
	return result, nil
}

// fetchLevel fetches items with at most c.concurrency in flight and returns
// the outbound links of the successful ones, in item order.
func (c *Coordinator) fetchLevel(ctx context.Context, t *traversal, items []types.URLItem) []link {
	perItem := make([][]string, len(items))

	var g errgroup.Group
	g.SetLimit(c.concurrency)

	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			page, err := c.safeFetch(ctx, item)
			if err != nil {
				t.markDiscovered(item.URL)
				c.logger.WithFields(logrus.Fields{
					"url":   item.URL,
					"level": item.Level,
					"phase": "crawl",
				}).WithError(err).Warn("Fetch failed")
				return nil
			}

			t.markCrawled(item.URL)
			perItem[i] = page.Links
			c.logger.WithFields(logrus.Fields{
				"url":   item.URL,
				"links": len(page.Links),
			}).Debug("Fetched")
			return nil
		})
	}
	_ = g.Wait()

	links := make([]link, 0)
	for i, ls := range perItem {
		for _, u := range ls {
			links = append(links, link{url: u, parent: items[i].URL})
		}
	}
	return links
}

func (c *Coordinator) sitemapLinks(ctx context.Context, seed string) []link {
	urls, err := c.sitemap(ctx, seed)
	if err != nil {
		c.logger.WithField("seed", seed).WithError(err).Warn("Sitemap discovery failed")
		return nil
	}
	c.logger.WithField("urls", len(urls)).Info("Sitemap URLs added")

	links := make([]link, 0, len(urls))
	for _, u := range urls {
		links = append(links, link{url: u, parent: seed})
	}
	return links
}

// Outcome is the single value delivered by Start
type Outcome struct {
	Result *types.CrawlResult
	Err    error
}

// Start runs Crawl in the background. The returned channel receives exactly
// one Outcome and is then closed.
func (c *Coordinator) Start(ctx context.Context, seed string) <-chan Outcome {
	ch := make(chan Outcome, 1)
	go func() {
		defer close(ch)
		result, err := c.Crawl(ctx, seed)
		ch <- Outcome{Result: result, Err: err}
	}()
	return ch
}
