package pipeline

import (
	"context"

	"github.com/BenjaminSRussell/crawlaudit/internal/audit"
	"github.com/BenjaminSRussell/crawlaudit/internal/config"
	"github.com/BenjaminSRussell/crawlaudit/internal/crawler"
	"github.com/BenjaminSRussell/crawlaudit/internal/fetch"
	"github.com/BenjaminSRussell/crawlaudit/internal/types"
	"github.com/sirupsen/logrus"
)

// newFetcher builds the fetch engine named by cfg.Engine
func newFetcher(cfg *config.Config) fetch.Fetcher {
	if cfg.Engine == config.EngineColly {
		return fetch.NewCollyFetcher(cfg.UserAgent, cfg.IgnoreRobots, cfg.FetchTimeout)
	}

	retry := fetch.DefaultRetryConfig()
	retry.MaxRetries = cfg.MaxRetries
	return fetch.NewHTTPFetcher(
		fetch.WithClient(fetch.NewHTTPClient(cfg.Concurrency)),
		fetch.WithUserAgent(cfg.UserAgent),
		fetch.WithIgnoreRobots(cfg.IgnoreRobots),
		fetch.WithRetry(retry),
	)
}

// newCoordinator builds the crawler for cfg, reporting fetches to observer
func newCoordinator(cfg *config.Config, observer func(types.PageResult), logger logrus.FieldLogger) *crawler.Coordinator {
	mode, _ := crawler.ParseScopeMode(cfg.FilterScope)

	opts := []crawler.Option{
		crawler.WithDepth(cfg.Depth),
		crawler.WithConcurrency(cfg.Concurrency),
		crawler.WithFetchTimeout(cfg.FetchTimeout),
		crawler.WithFilter(cfg.Filter),
		crawler.WithSameSite(cfg.SameSite),
		crawler.WithScopeMode(mode),
		crawler.WithPageObserver(observer),
		crawler.WithLogger(logger),
	}
	if cfg.Sitemap {
		client := fetch.NewHTTPClient(1)
		opts = append(opts, crawler.WithSitemapSeeds(func(ctx context.Context, seed string) ([]string, error) {
			ctx, cancel := context.WithTimeout(ctx, cfg.FetchTimeout)
			defer cancel()
			return fetch.DiscoverSitemap(ctx, client, seed)
		}))
	}

	return crawler.New(newFetcher(cfg), opts...)
}

// newAuditor builds the audit engine named by cfg.AuditEngine
func newAuditor(cfg *config.Config) audit.Auditor {
	if cfg.AuditEngine == config.AuditEngineStatic {
		return audit.NewStaticAuditor(fetch.NewHTTPClient(1), cfg.UserAgent)
	}

	opts := []audit.ChromeOption{
		audit.WithBrowserUserAgent(cfg.UserAgent),
		audit.WithSettle(cfg.Settle),
	}
	if cfg.ChromePath != "" {
		opts = append(opts, audit.WithExecPath(cfg.ChromePath))
	}
	return audit.NewChromeAuditor(opts...)
}
