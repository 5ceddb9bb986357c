package types

import (
	"sort"
	"time"
)

// CrawlResult is the terminal outcome of one crawl. Crawled and Discovered
// are disjoint.
type CrawlResult struct {
	Crawled     []string  `json:"crawled"`
	Discovered  []string  `json:"discovered"`
	TimeCreated time.Time `json:"timeCreated"`
}

// NewCrawlResult builds a result from the two terminal sets, sorted.
func NewCrawlResult(crawled, discovered map[string]struct{}) *CrawlResult {
	return &CrawlResult{
		Crawled:     sortedKeys(crawled),
		Discovered:  sortedKeys(discovered),
		TimeCreated: time.Now().UTC(),
	}
}

// IsEmpty reports whether the crawl produced no URLs at all
func (r *CrawlResult) IsEmpty() bool {
	return r == nil || (len(r.Crawled) == 0 && len(r.Discovered) == 0)
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// URLItem represents a URL waiting in the frontier
type URLItem struct {
	URL       string
	Level     int
	ParentURL string
}

// PageResult records a single fetch made during the crawl
type PageResult struct {
	URL           string    `json:"url"`
	Level         int       `json:"level"`
	StatusCode    int       `json:"status_code"`
	ContentLength int64     `json:"content_length"`
	Title         string    `json:"title"`
	LinkCount     int       `json:"link_count"`
	CrawledAt     time.Time `json:"crawled_at"`
	Duration      int64     `json:"duration_ms"`
	Error         string    `json:"error,omitempty"`
}

// Check is one audit rule evaluated against a page
type Check struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// Timing holds navigation timings reported by the page, in milliseconds
type Timing struct {
	DOMContentLoaded float64 `json:"domContentLoaded"`
	Load             float64 `json:"load"`
	TransferSize     float64 `json:"transferSize"`
}

// PageAudit is the structured audit report for one URL
type PageAudit struct {
	URL        string    `json:"url"`
	FinalURL   string    `json:"finalUrl"`
	Title      string    `json:"title"`
	StatusCode int       `json:"statusCode,omitempty"`
	Engine     string    `json:"engine"`
	AuditedAt  time.Time `json:"auditedAt"`
	Timing     Timing    `json:"timing"`
	Checks     []Check   `json:"checks"`
	Score      int       `json:"score"`
}

// AuditReport pairs the structured report with its rendered HTML form
type AuditReport struct {
	Data *PageAudit
	HTML string
}
