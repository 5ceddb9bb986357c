// Package metrics tracks crawl and audit counters for progress logs and
// metrics.json.
package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/BenjaminSRussell/crawlaudit/internal/storage"
	"github.com/BenjaminSRussell/crawlaudit/internal/types"
)

// File is written at the store root
const File = "metrics.json"

// Metrics is a point-in-time copy of the counters
type Metrics struct {
	StartTime         time.Time  `json:"startTime"`
	EndTime           *time.Time `json:"endTime,omitempty"`
	PagesFetched      int        `json:"pagesFetched"`
	PagesFailed       int        `json:"pagesFailed"`
	BytesFetched      int64      `json:"bytesFetched"`
	TotalFetchTimeMs  int64      `json:"totalFetchTimeMs"`
	AvgFetchTimeMs    int64      `json:"avgFetchTimeMs"`
	AuditsSucceeded   int        `json:"auditsSucceeded"`
	AuditsFailed      int        `json:"auditsFailed"`
	AuditsSkipped     int        `json:"auditsSkipped"`
	TotalAuditTimeMs  int64      `json:"totalAuditTimeMs"`
	TerminationReason string     `json:"terminationReason,omitempty"`
}

// Tracker holds and manages run metrics
type Tracker struct {
	mu               sync.Mutex
	data             Metrics
	totalFetchTimeMs int64
	fetchCount       int
}

// NewTracker creates a new metrics tracker
func NewTracker() *Tracker {
	return &Tracker{
		data: Metrics{
			StartTime: time.Now(),
		},
	}
}

// ObservePage records one fetch made during the crawl
func (t *Tracker) ObservePage(p types.PageResult) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if p.Error != "" {
		t.data.PagesFailed++
	} else {
		t.data.PagesFetched++
		t.data.BytesFetched += p.ContentLength
	}
	t.totalFetchTimeMs += p.Duration
	t.fetchCount++
}

// AuditResult classifies a finished audit for RecordAudit
type AuditResult int

const (
	AuditSucceeded AuditResult = iota
	AuditFailed
	AuditSkipped
)

// RecordAudit records one audit outcome
func (t *Tracker) RecordAudit(result AuditResult, duration time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch result {
	case AuditSucceeded:
		t.data.AuditsSucceeded++
	case AuditFailed:
		t.data.AuditsFailed++
	case AuditSkipped:
		t.data.AuditsSkipped++
	}
	t.data.TotalAuditTimeMs += duration.Milliseconds()
}

// Snapshot returns a copy of current metrics
func (t *Tracker) Snapshot() Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() Metrics {
	snapshot := t.data
	snapshot.TotalFetchTimeMs = t.totalFetchTimeMs
	if t.fetchCount > 0 {
		snapshot.AvgFetchTimeMs = t.totalFetchTimeMs / int64(t.fetchCount)
	}
	return snapshot
}

// Finish stamps the end time and reason, and returns the final metrics
func (t *Tracker) Finish(reason string) Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()

	end := time.Now()
	t.data.EndTime = &end
	t.data.TerminationReason = reason
	return t.snapshotLocked()
}

// Write finishes the tracker and saves metrics.json into store
func (t *Tracker) Write(store *storage.Store, reason string) error {
	if err := store.Save(File, t.Finish(reason)); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}

// Progress summarizes the counters on one line for periodic logs
func (t *Tracker) Progress() string {
	m := t.Snapshot()
	return fmt.Sprintf("Pages: %d fetched, %d failed, avg %dms | Audits: %d ok, %d failed",
		m.PagesFetched,
		m.PagesFailed,
		m.AvgFetchTimeMs,
		m.AuditsSucceeded,
		m.AuditsFailed,
	)
}
