package parser

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Document is what the crawler needs from a fetched HTML page
type Document struct {
	Title string
	Links []string
}

// ExtractLinks parses an HTML document and returns its title and the
// absolute, de-duplicated targets of its <a href> and alternate/canonical
// <link> elements, in document order. A <base href> changes the resolution
// base.
func ExtractLinks(r io.Reader, baseURL string) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}

	doc := &Document{Links: make([]string, 0)}
	visited := make(map[string]bool)

	add := func(href string) {
		if link := normalizeURL(href, base); link != "" && !visited[link] {
			doc.Links = append(doc.Links, link)
			visited[link] = true
		}
	}

	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "base":
				if href := attr(n, "href"); href != "" {
					if u, err := url.Parse(href); err == nil {
						base = base.ResolveReference(u)
					}
				}
			case "a":
				add(attr(n, "href"))
			case "link":
				rel := strings.ToLower(attr(n, "rel"))
				if rel == "alternate" || rel == "canonical" {
					add(attr(n, "href"))
				}
			case "title":
				if doc.Title == "" && n.FirstChild != nil {
					doc.Title = strings.TrimSpace(n.FirstChild.Data)
				}
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}

	extract(root)
	return doc, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

// normalizeURL resolves href against base and drops the fragment. Nothing
// else is rewritten: two URLs are the same page only if they are byte-equal.
func normalizeURL(href string, base *url.URL) string {
	// Skip empty, in-page, javascript, mailto, tel
	if href == "" || strings.HasPrefix(href, "#") ||
		strings.HasPrefix(href, "javascript:") ||
		strings.HasPrefix(href, "mailto:") ||
		strings.HasPrefix(href, "tel:") ||
		strings.HasPrefix(href, "data:") {
		return ""
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := base.ResolveReference(u)
	resolved.Fragment = ""
	resolved.RawFragment = ""

	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}

	return resolved.String()
}

// ExtractSitemapURLs extracts <loc> values from a sitemap or sitemap index
func ExtractSitemapURLs(r io.Reader) []string {
	doc, err := html.Parse(r)
	if err != nil {
		return nil
	}

	urls := make([]string, 0)

	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "loc" {
			if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				if loc := strings.TrimSpace(n.FirstChild.Data); loc != "" {
					urls = append(urls, loc)
				}
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}

	extract(doc)
	return urls
}
