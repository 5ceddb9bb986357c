package fetch

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/BenjaminSRussell/crawlaudit/internal/parser"
)

const maxSitemaps = 20

// DiscoverSitemap collects page URLs listed in the seed origin's sitemaps.
// It looks at the usual sitemap locations plus any Sitemap: directive in
// robots.txt, and follows sitemap indexes.
func DiscoverSitemap(ctx context.Context, client *http.Client, seedURL string) ([]string, error) {
	parsed, err := url.Parse(seedURL)
	if err != nil {
		return nil, fmt.Errorf("invalid seed URL: %w", err)
	}
	origin := parsed.Scheme + "://" + parsed.Host

	candidates := []string{
		origin + "/sitemap.xml",
		origin + "/sitemap_index.xml",
	}
	candidates = append(candidates, robotsSitemaps(ctx, client, origin+"/robots.txt")...)

	visited := make(map[string]bool)
	seen := make(map[string]bool)
	urls := make([]string, 0)

	for len(candidates) > 0 && len(visited) < maxSitemaps {
		sitemapURL := candidates[0]
		candidates = candidates[1:]
		if visited[sitemapURL] {
			continue
		}
		visited[sitemapURL] = true

		locs, err := fetchSitemap(ctx, client, sitemapURL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}

		for _, loc := range locs {
			if strings.HasSuffix(loc, ".xml") {
				candidates = append(candidates, loc)
				continue
			}
			if !seen[loc] {
				seen[loc] = true
				urls = append(urls, loc)
			}
		}
	}

	return urls, nil
}

func robotsSitemaps(ctx context.Context, client *http.Client, robotsURL string) []string {
	body, err := get(ctx, client, robotsURL)
	if err != nil {
		return nil
	}
	defer body.Close()

	sitemaps := make([]string, 0)
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if len(line) > 8 && strings.EqualFold(line[:8], "sitemap:") {
			sitemaps = append(sitemaps, strings.TrimSpace(line[8:]))
		}
	}
	return sitemaps
}

func fetchSitemap(ctx context.Context, client *http.Client, sitemapURL string) ([]string, error) {
	body, err := get(ctx, client, sitemapURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	return parser.ExtractSitemapURLs(io.LimitReader(body, defaultMaxBodyBytes)), nil
}

func get(ctx context.Context, client *http.Client, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", DefaultUserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%s: %w: %d", rawURL, ErrStatus, resp.StatusCode)
	}
	return resp.Body, nil
}
