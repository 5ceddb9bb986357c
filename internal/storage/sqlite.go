package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BenjaminSRussell/crawlaudit/internal/types"
	_ "github.com/mattn/go-sqlite3"
)

// History keeps a queryable record of past runs in SQLite. It lives outside
// the output root so it survives the reset at the start of each run.
type History struct {
	db *sql.DB
}

// AuditRecord is one audit outcome as stored in the history database
type AuditRecord struct {
	URL        string
	Key        string
	Status     string
	Error      string
	DurationMs int64
}

// RunStats summarises a finished run
type RunStats struct {
	Crawled    int
	Discovered int
	Audited    int
	Failed     int
	Status     string
}

// NewHistory opens (or creates) the history database at dbPath
func NewHistory(dbPath string) (*History, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		seed TEXT NOT NULL,
		depth INTEGER NOT NULL,
		concurrency INTEGER NOT NULL,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP,
		crawled INTEGER DEFAULT 0,
		discovered INTEGER DEFAULT 0,
		audited INTEGER DEFAULT 0,
		failed INTEGER DEFAULT 0,
		status TEXT
	);

	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL,
		url TEXT NOT NULL,
		level INTEGER NOT NULL,
		status_code INTEGER,
		content_length INTEGER,
		title TEXT,
		link_count INTEGER,
		duration_ms INTEGER,
		crawled_at TIMESTAMP,
		error TEXT,
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_run ON pages(run_id);
	CREATE INDEX IF NOT EXISTS idx_pages_url ON pages(url);

	CREATE TABLE IF NOT EXISTS audits (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL,
		url TEXT NOT NULL,
		key TEXT,
		status TEXT NOT NULL,
		error TEXT,
		duration_ms INTEGER,
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE INDEX IF NOT EXISTS idx_audits_run ON audits(run_id);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &History{db: db}, nil
}

// StartRun inserts a new run row and returns its id
func (h *History) StartRun(seed string, depth, concurrency int) (int64, error) {
	res, err := h.db.Exec(
		"INSERT INTO runs (seed, depth, concurrency, started_at, status) VALUES (?, ?, ?, ?, ?)",
		seed, depth, concurrency, time.Now().UTC(), "running",
	)
	if err != nil {
		return 0, fmt.Errorf("failed to start run: %w", err)
	}
	return res.LastInsertId()
}

// SavePage records a crawl fetch for runID
func (h *History) SavePage(runID int64, result types.PageResult) error {
	query := `
		INSERT INTO pages
		(run_id, url, level, status_code, content_length, title, link_count, duration_ms, crawled_at, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := h.db.Exec(query,
		runID,
		result.URL,
		result.Level,
		result.StatusCode,
		result.ContentLength,
		result.Title,
		result.LinkCount,
		result.Duration,
		result.CrawledAt,
		result.Error,
	)
	return err
}

// SaveAudits records audit outcomes for runID in one transaction
func (h *History) SaveAudits(runID int64, records []AuditRecord) error {
	tx, err := h.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT INTO audits (run_id, url, key, status, error, duration_ms) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.Exec(runID, r.URL, r.Key, r.Status, r.Error, r.DurationMs); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// FinishRun stores the final counters for runID
func (h *History) FinishRun(runID int64, stats RunStats) error {
	_, err := h.db.Exec(
		`UPDATE runs SET finished_at = ?, crawled = ?, discovered = ?, audited = ?, failed = ?, status = ?
		 WHERE id = ?`,
		time.Now().UTC(), stats.Crawled, stats.Discovered, stats.Audited, stats.Failed, stats.Status, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run %d: %w", runID, err)
	}
	return nil
}

// GetStats returns the stored counters for runID
func (h *History) GetStats(runID int64) (RunStats, error) {
	var stats RunStats
	var status sql.NullString
	err := h.db.QueryRow(
		"SELECT crawled, discovered, audited, failed, status FROM runs WHERE id = ?", runID,
	).Scan(&stats.Crawled, &stats.Discovered, &stats.Audited, &stats.Failed, &status)
	if err != nil {
		return RunStats{}, err
	}
	stats.Status = status.String
	return stats, nil
}

// CountPages returns how many fetches were recorded for runID
func (h *History) CountPages(runID int64) (int, error) {
	var n int
	err := h.db.QueryRow("SELECT COUNT(*) FROM pages WHERE run_id = ?", runID).Scan(&n)
	return n, err
}

// FailedAudits returns the URLs whose audit did not succeed in runID
func (h *History) FailedAudits(runID int64) ([]string, error) {
	rows, err := h.db.Query("SELECT url FROM audits WHERE run_id = ? AND status != 'ok' ORDER BY url", runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	urls := make([]string, 0)
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// RunInfo is one row of the runs table
type RunInfo struct {
	ID          int64
	Seed        string
	Depth       int
	Concurrency int
	StartedAt   time.Time
	FinishedAt  time.Time
	RunStats
}

// ListRuns returns the most recent runs, newest first
func (h *History) ListRuns(limit int) ([]RunInfo, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := h.db.Query(
		`SELECT id, seed, depth, concurrency, started_at, finished_at, crawled, discovered, audited, failed, status
		 FROM runs ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]RunInfo, 0)
	for rows.Next() {
		var (
			r        RunInfo
			finished sql.NullTime
			status   sql.NullString
		)
		err := rows.Scan(&r.ID, &r.Seed, &r.Depth, &r.Concurrency, &r.StartedAt, &finished,
			&r.Crawled, &r.Discovered, &r.Audited, &r.Failed, &status)
		if err != nil {
			return nil, err
		}
		r.FinishedAt = finished.Time
		r.Status = status.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Close closes the database connection
func (h *History) Close() error {
	return h.db.Close()
}
