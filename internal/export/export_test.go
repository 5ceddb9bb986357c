package export

import (
	"encoding/csv"
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/BenjaminSRussell/crawlaudit/internal/storage"
	"github.com/BenjaminSRussell/crawlaudit/internal/types"
)

func testResults() []types.PageResult {
	crawledAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return []types.PageResult{
		{URL: "https://example.com/page2", Level: 2, StatusCode: 200, ContentLength: 2048, LinkCount: 3, CrawledAt: crawledAt},
		{URL: "https://example.com/page1", Level: 1, StatusCode: 200, ContentLength: 1024, LinkCount: 5, CrawledAt: crawledAt},
		{URL: "https://example.com/gone", Level: 2, StatusCode: 404, CrawledAt: crawledAt, Error: "unexpected status: 404"},
		{URL: "https://example.com/down", Level: 2, CrawledAt: crawledAt, Error: "connection refused"},
	}
}

func TestExporterPages(t *testing.T) {
	store := storage.NewStore(t.TempDir())
	exporter := NewExporter(store)

	if err := exporter.Pages(testResults()); err != nil {
		t.Fatalf("Pages failed: %v", err)
	}

	var loaded []types.PageResult
	if err := store.Load(PagesJSON, &loaded); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded) != 4 || loaded[0].URL != "https://example.com/down" {
		t.Errorf("Expected 4 results sorted by URL, got %+v", loaded)
	}

	f, err := os.Open(filepath.Join(store.Root(), PagesCSV))
	if err != nil {
		t.Fatalf("Expected %s: %v", PagesCSV, err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("Failed to read CSV: %v", err)
	}
	if len(records) != 5 {
		t.Fatalf("Expected header plus 4 rows, got %d", len(records))
	}
	if records[0][0] != "URL" || records[1][0] != "https://example.com/down" || records[1][7] != "connection refused" {
		t.Errorf("Unexpected CSV contents: %v", records)
	}
}

func TestExporterSitemap(t *testing.T) {
	store := storage.NewStore(t.TempDir())
	exporter := NewExporter(store)

	n, err := exporter.Sitemap(testResults(), DefaultSitemapOptions())
	if err != nil {
		t.Fatalf("Sitemap failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 URLs, got %d", n)
	}

	data, err := os.ReadFile(filepath.Join(store.Root(), SitemapFile))
	if err != nil {
		t.Fatalf("Expected %s: %v", SitemapFile, err)
	}
	if !strings.HasPrefix(string(data), "<?xml") {
		t.Error("Expected an XML header")
	}

	var set URLSet
	if err := xml.Unmarshal(data, &set); err != nil {
		t.Fatalf("Sitemap is not valid XML: %v", err)
	}
	if len(set.URLs) != 2 || set.URLs[0].Loc != "https://example.com/page1" {
		t.Errorf("Unexpected sitemap URLs: %+v", set.URLs)
	}
	if set.URLs[0].Lastmod != "2026-01-02T03:04:05Z" || set.URLs[0].Priority != "0.8" || set.URLs[0].Changefreq != "weekly" {
		t.Errorf("Unexpected sitemap fields: %+v", set.URLs[0])
	}
}

func TestBuildSitemapEscapesAndDedups(t *testing.T) {
	results := []types.PageResult{
		{URL: "https://example.com/?a=1&b=2", StatusCode: 200},
		{URL: "https://example.com/?a=1&b=2", StatusCode: 200},
	}

	data, n, err := BuildSitemap(results, SitemapOptions{})
	if err != nil {
		t.Fatalf("BuildSitemap failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected duplicates removed, got %d", n)
	}
	if !strings.Contains(string(data), "a=1&amp;b=2") {
		t.Errorf("Expected the ampersand to be escaped: %s", data)
	}
	if strings.Contains(string(data), "<lastmod>") || strings.Contains(string(data), "<priority>") {
		t.Errorf("Expected optional fields omitted: %s", data)
	}
}
