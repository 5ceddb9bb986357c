// Package pipeline runs one crawl-then-audit pass: it resets the output
// tree, crawls from the seed, audits the resulting URLs one at a time, and
// writes the index and run artifacts.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/BenjaminSRussell/crawlaudit/internal/audit"
	"github.com/BenjaminSRussell/crawlaudit/internal/config"
	"github.com/BenjaminSRussell/crawlaudit/internal/crawler"
	"github.com/BenjaminSRussell/crawlaudit/internal/index"
	"github.com/BenjaminSRussell/crawlaudit/internal/metrics"
	"github.com/BenjaminSRussell/crawlaudit/internal/storage"
	"github.com/BenjaminSRussell/crawlaudit/internal/types"
	"github.com/sirupsen/logrus"
)

// LastCrawlFile holds the crawl result at the store root
const LastCrawlFile = "lastCrawl.json"

const defaultProgressInterval = 5 * time.Second

// Crawler starts a crawl and delivers its single outcome on the channel
type Crawler interface {
	Start(ctx context.Context, seed string) <-chan crawler.Outcome
}

// Result describes a finished run
type Result struct {
	Seed       string
	Crawl      *types.CrawlResult
	Audits     *audit.Summary
	IndexLinks int
	Metrics    metrics.Metrics
	RunID      int64
}

// Pipeline wires the crawler, the audit queue and the output store
type Pipeline struct {
	cfg      *config.Config
	crawler  Crawler
	auditor  audit.Auditor
	store    *storage.Store
	history  *storage.History
	tracker  *metrics.Tracker
	logger   logrus.FieldLogger
	interval time.Duration

	mu    sync.Mutex
	pages []types.PageResult
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithCrawler replaces the crawler built from the config
func WithCrawler(c Crawler) Option {
	return func(p *Pipeline) {
		p.crawler = c
	}
}

// WithAuditor replaces the auditor built from the config
func WithAuditor(a audit.Auditor) Option {
	return func(p *Pipeline) {
		p.auditor = a
	}
}

// WithHistory records the run in h. The caller owns h.
func WithHistory(h *storage.History) Option {
	return func(p *Pipeline) {
		p.history = h
	}
}

// WithLogger sets the logger
func WithLogger(l logrus.FieldLogger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithProgressInterval sets how often crawl progress is logged
func WithProgressInterval(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.interval = d
		}
	}
}

// New validates cfg and builds a pipeline. Engines not supplied through
// options are built from cfg.
func New(cfg *config.Config, opts ...Option) (*Pipeline, error) {
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	p := &Pipeline{
		cfg:      cfg,
		store:    storage.NewStore(cfg.Output),
		tracker:  metrics.NewTracker(),
		logger:   logrus.StandardLogger(),
		interval: defaultProgressInterval,
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.crawler == nil {
		p.crawler = newCoordinator(cfg, p.ObservePage, p.logger)
	}
	if p.auditor == nil {
		p.auditor = newAuditor(cfg)
	}
	return p, nil
}

// Store returns the output store
func (p *Pipeline) Store() *storage.Store {
	return p.store
}

// ObservePage records one fetch. It is safe for concurrent use.
func (p *Pipeline) ObservePage(r types.PageResult) {
	p.tracker.ObservePage(r)
	p.mu.Lock()
	p.pages = append(p.pages, r)
	p.mu.Unlock()
}

func (p *Pipeline) pageResults() []types.PageResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]types.PageResult(nil), p.pages...)
}

// Run executes the whole pass for rawSeed. An invalid seed fails before the
// output tree is touched. An empty crawl returns ErrEmptyCrawl with the
// crawl result and skips the audit and index phases.
func (p *Pipeline) Run(ctx context.Context, rawSeed string) (*Result, error) {
	seed, err := NormalizeSeed(rawSeed)
	if err != nil {
		return nil, err
	}
	started := time.Now()
	res := &Result{Seed: seed}

	if err := p.store.Reset(); err != nil {
		return nil, err
	}

	p.startHistory(res)

	crawl, err := p.crawl(ctx, seed)
	if err != nil {
		p.finish(res, started, statusFor(err))
		return res, fmt.Errorf("crawl failed: %w", err)
	}
	res.Crawl = crawl

	if err := p.store.Save(LastCrawlFile, crawl); err != nil {
		p.logger.WithFields(logrus.Fields{"key": LastCrawlFile, "phase": "save"}).WithError(err).Error("Failed to save crawl result")
		p.finish(res, started, "failed")
		return res, err
	}
	p.exportPages()

	if crawl.IsEmpty() {
		p.logger.WithField("seed", seed).Warn("Crawl produced no URLs; skipping audit and index")
		p.finish(res, started, "empty")
		return res, ErrEmptyCrawl
	}

	targets := auditTargets(crawl, p.cfg.AuditScope)
	p.logger.WithFields(logrus.Fields{
		"urls":  len(targets),
		"scope": p.cfg.AuditScope,
	}).Info("Starting audits")

	keys := storage.NewKeyRegistry()
	queue := audit.NewQueue(p.auditor, p.store,
		audit.WithAuditTimeout(p.cfg.AuditTimeout),
		audit.WithStopOnError(p.cfg.StopOnError),
		audit.WithKeyRegistry(keys),
		audit.WithOutcomeHook(p.recordAudit),
		audit.WithQueueLogger(p.logger),
	)

	summary, err := queue.Run(ctx, targets)
	res.Audits = summary
	if err != nil {
		p.finish(res, started, statusFor(err))
		return res, fmt.Errorf("audit interrupted: %w", err)
	}

	n, err := index.Build(p.store, index.WithLabels(keys.Labels()), index.WithTitle(seed))
	if err != nil {
		p.logger.WithFields(logrus.Fields{"key": index.File, "phase": "index"}).WithError(err).Error("Failed to build index")
		p.finish(res, started, "failed")
		return res, err
	}
	res.IndexLinks = n

	p.finish(res, started, "completed")
	p.logger.WithFields(logrus.Fields{
		"output":  p.store.Root(),
		"audited": summary.Succeeded,
		"failed":  summary.Failed,
		"skipped": summary.Skipped,
		"links":   n,
	}).Info("Pipeline complete")
	return res, nil
}

// crawl waits for the crawler's single outcome, logging progress meanwhile
func (p *Pipeline) crawl(ctx context.Context, seed string) (*types.CrawlResult, error) {
	p.logger.WithFields(logrus.Fields{
		"seed":        seed,
		"depth":       p.cfg.Depth,
		"concurrency": p.cfg.Concurrency,
		"output":      p.store.Root(),
	}).Info("Crawl started")

	outcomes := p.crawler.Start(ctx, seed)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case out, ok := <-outcomes:
			if !ok {
				return nil, errors.New("crawler closed without a result")
			}
			if out.Err != nil {
				return nil, out.Err
			}
			if out.Result == nil {
				return nil, errors.New("crawler returned no result")
			}
			return out.Result, nil
		case <-ticker.C:
			p.logger.Info(p.tracker.Progress())
		}
	}
}

func (p *Pipeline) recordAudit(o audit.Outcome) {
	d := time.Duration(o.DurationMs) * time.Millisecond
	switch o.Status {
	case audit.StatusOK:
		p.tracker.RecordAudit(metrics.AuditSucceeded, d)
	case audit.StatusFailed:
		p.tracker.RecordAudit(metrics.AuditFailed, d)
	default:
		p.tracker.RecordAudit(metrics.AuditSkipped, d)
	}
}

// auditTargets picks the URLs to audit, in crawl-result order
func auditTargets(r *types.CrawlResult, scope string) []string {
	switch scope {
	case config.AuditScopeCrawled:
		return append([]string(nil), r.Crawled...)
	case config.AuditScopeAll:
		all := make([]string, 0, len(r.Crawled)+len(r.Discovered))
		all = append(all, r.Crawled...)
		all = append(all, r.Discovered...)
		sort.Strings(all)
		return all
	default:
		return append([]string(nil), r.Discovered...)
	}
}

func statusFor(err error) string {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "cancelled"
	}
	return "failed"
}
