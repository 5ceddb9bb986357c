package export

import (
	"encoding/xml"
	"fmt"
	"time"

	"github.com/BenjaminSRussell/crawlaudit/internal/types"
)

const sitemapNS = "http://www.sitemaps.org/schemas/sitemap/0.9"

// SitemapOptions controls the optional sitemap fields
type SitemapOptions struct {
	IncludeLastmod  bool
	Changefreq      string
	DefaultPriority float64
}

// DefaultSitemapOptions matches what most crawlers emit
func DefaultSitemapOptions() SitemapOptions {
	return SitemapOptions{
		IncludeLastmod:  true,
		Changefreq:      "weekly",
		DefaultPriority: 0.8,
	}
}

// URLSet represents the XML sitemap structure
type URLSet struct {
	XMLName xml.Name `xml:"urlset"`
	XMLNS   string   `xml:"xmlns,attr"`
	URLs    []URL    `xml:"url"`
}

// URL represents a single URL in the sitemap
type URL struct {
	Loc        string `xml:"loc"`
	Lastmod    string `xml:"lastmod,omitempty"`
	Changefreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority,omitempty"`
}

// Sitemap writes sitemap.xml listing every successfully fetched page and
// returns how many URLs it holds.
func (e *Exporter) Sitemap(results []types.PageResult, opts SitemapOptions) (int, error) {
	data, n, err := BuildSitemap(results, opts)
	if err != nil {
		return 0, err
	}
	if err := e.store.Save(SitemapFile, data); err != nil {
		return 0, err
	}
	return n, nil
}

// BuildSitemap encodes the successful fetches in results as a sitemap
func BuildSitemap(results []types.PageResult, opts SitemapOptions) ([]byte, int, error) {
	urlSet := URLSet{
		XMLNS: sitemapNS,
		URLs:  make([]URL, 0),
	}

	seen := make(map[string]bool)
	for _, result := range sortedResults(results) {
		// Only include successfully crawled pages
		if result.Error != "" || result.StatusCode < 200 || result.StatusCode >= 300 || seen[result.URL] {
			continue
		}
		seen[result.URL] = true

		u := URL{
			Loc:        result.URL,
			Changefreq: opts.Changefreq,
		}
		if opts.IncludeLastmod && !result.CrawledAt.IsZero() {
			u.Lastmod = result.CrawledAt.UTC().Format(time.RFC3339)
		}
		if opts.DefaultPriority > 0 {
			u.Priority = fmt.Sprintf("%.1f", opts.DefaultPriority)
		}
		urlSet.URLs = append(urlSet.URLs, u)
	}

	output, err := xml.MarshalIndent(urlSet, "", "  ")
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal XML: %w", err)
	}

	content := append([]byte(xml.Header), output...)
	content = append(content, '\n')
	return content, len(urlSet.URLs), nil
}
