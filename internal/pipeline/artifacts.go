package pipeline

import (
	"time"

	"github.com/BenjaminSRussell/crawlaudit/internal/export"
	"github.com/BenjaminSRussell/crawlaudit/internal/metrics"
	"github.com/BenjaminSRussell/crawlaudit/internal/report"
	"github.com/BenjaminSRussell/crawlaudit/internal/storage"
	"github.com/sirupsen/logrus"
)

// exportPages writes the optional per-fetch artifacts. Failures are logged
// and never fail the run.
func (p *Pipeline) exportPages() {
	if !p.cfg.ExportPages && !p.cfg.ExportSitemap {
		return
	}

	pages := p.pageResults()
	exporter := export.NewExporter(p.store)

	if p.cfg.ExportPages {
		if err := exporter.Pages(pages); err != nil {
			p.logger.WithFields(logrus.Fields{"key": export.PagesJSON, "phase": "export"}).WithError(err).Error("Failed to export pages")
		}
	}
	if p.cfg.ExportSitemap {
		n, err := exporter.Sitemap(pages, export.DefaultSitemapOptions())
		if err != nil {
			p.logger.WithFields(logrus.Fields{"key": export.SitemapFile, "phase": "export"}).WithError(err).Error("Failed to export sitemap")
			return
		}
		p.logger.WithField("urls", n).Info("Sitemap written")
	}
}

func (p *Pipeline) startHistory(res *Result) {
	if p.history == nil {
		return
	}
	id, err := p.history.StartRun(res.Seed, p.cfg.Depth, p.cfg.Concurrency)
	if err != nil {
		p.logger.WithField("phase", "history").WithError(err).Warn("Failed to record run start")
		return
	}
	res.RunID = id
}

// finish writes metrics, the summary and the history record for res
func (p *Pipeline) finish(res *Result, started time.Time, status string) {
	if err := p.tracker.Write(p.store, status); err != nil {
		p.logger.WithFields(logrus.Fields{"key": metrics.File, "phase": "save"}).WithError(err).Error("Failed to write metrics")
	}
	res.Metrics = p.tracker.Snapshot()

	if p.cfg.Summary {
		s := &report.RunSummary{
			Seed:        res.Seed,
			Depth:       p.cfg.Depth,
			Concurrency: p.cfg.Concurrency,
			Engine:      p.cfg.AuditEngine,
			StartedAt:   started,
			Duration:    time.Since(started),
			Audits:      res.Audits,
			Metrics:     res.Metrics,
		}
		if res.Crawl != nil {
			s.Crawled = len(res.Crawl.Crawled)
			s.Discovered = len(res.Crawl.Discovered)
		}
		if err := report.Save(p.store, s); err != nil {
			p.logger.WithFields(logrus.Fields{"key": report.File, "phase": "save"}).WithError(err).Error("Failed to write summary")
		}
	}

	p.finishHistory(res, status)
}

func (p *Pipeline) finishHistory(res *Result, status string) {
	if p.history == nil || res.RunID == 0 {
		return
	}
	log := p.logger.WithFields(logrus.Fields{"phase": "history", "run": res.RunID})

	for _, page := range p.pageResults() {
		if err := p.history.SavePage(res.RunID, page); err != nil {
			log.WithField("url", page.URL).WithError(err).Warn("Failed to record page")
		}
	}

	stats := storage.RunStats{Status: status}
	if res.Crawl != nil {
		stats.Crawled = len(res.Crawl.Crawled)
		stats.Discovered = len(res.Crawl.Discovered)
	}
	if res.Audits != nil {
		records := make([]storage.AuditRecord, 0, len(res.Audits.Outcomes))
		for _, o := range res.Audits.Outcomes {
			records = append(records, storage.AuditRecord{
				URL:        o.URL,
				Key:        o.Key,
				Status:     string(o.Status),
				Error:      o.Error,
				DurationMs: o.DurationMs,
			})
		}
		if err := p.history.SaveAudits(res.RunID, records); err != nil {
			log.WithError(err).Warn("Failed to record audits")
		}
		stats.Audited = res.Audits.Succeeded
		stats.Failed = res.Audits.Failed
	}

	if err := p.history.FinishRun(res.RunID, stats); err != nil {
		log.WithError(err).Warn("Failed to record run end")
	}
}
