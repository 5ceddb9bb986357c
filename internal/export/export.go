// Package export writes per-fetch crawl records and a sitemap into the
// output store.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/BenjaminSRussell/crawlaudit/internal/storage"
	"github.com/BenjaminSRussell/crawlaudit/internal/types"
)

// Files written at the store root
const (
	PagesJSON   = "pages.json"
	PagesCSV    = "pages.csv"
	SitemapFile = "sitemap.xml"
)

// Exporter writes crawl artifacts into a store
type Exporter struct {
	store *storage.Store
}

// NewExporter creates an exporter writing to store
func NewExporter(store *storage.Store) *Exporter {
	return &Exporter{store: store}
}

// Pages writes every fetch record as pages.json and pages.csv, sorted by URL
func (e *Exporter) Pages(results []types.PageResult) error {
	sorted := sortedResults(results)

	if err := e.store.Save(PagesJSON, sorted); err != nil {
		return err
	}

	data, err := encodeCSV(sorted)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", PagesCSV, err)
	}
	return e.store.Save(PagesCSV, data)
}

func encodeCSV(results []types.PageResult) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"URL", "Level", "StatusCode", "ContentLength", "LinkCount", "DurationMs", "CrawledAt", "Error"}
	if err := writer.Write(headers); err != nil {
		return nil, err
	}

	for _, result := range results {
		record := []string{
			result.URL,
			strconv.Itoa(result.Level),
			strconv.Itoa(result.StatusCode),
			strconv.FormatInt(result.ContentLength, 10),
			strconv.Itoa(result.LinkCount),
			strconv.FormatInt(result.Duration, 10),
			result.CrawledAt.Format(time.RFC3339),
			result.Error,
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}

	writer.Flush()
	return buf.Bytes(), writer.Error()
}

func sortedResults(results []types.PageResult) []types.PageResult {
	sorted := make([]types.PageResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].URL < sorted[j].URL
	})
	return sorted
}
