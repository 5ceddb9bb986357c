package audit

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/BenjaminSRussell/crawlaudit/internal/types"
	"github.com/PuerkitoBio/goquery"
)

const (
	maxTitleLength       = 60
	maxDescriptionLength = 160
)

// Analysis is the DOM-derived part of a page audit
type Analysis struct {
	Title  string
	Checks []types.Check
	Score  int
}

// Analyze runs the page checks over an HTML document
func Analyze(r io.Reader) (*Analysis, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	checks := []types.Check{
		checkTitle(title),
		checkDescription(doc),
		checkHeadings(doc),
		checkImageAlt(doc),
		checkLang(doc),
		checkViewport(doc),
		checkCanonical(doc),
	}

	return &Analysis{
		Title:  title,
		Checks: checks,
		Score:  Score(checks),
	}, nil
}

// Score is the percentage of passed checks, rounded down
func Score(checks []types.Check) int {
	if len(checks) == 0 {
		return 0
	}
	passed := 0
	for _, c := range checks {
		if c.Passed {
			passed++
		}
	}
	return passed * 100 / len(checks)
}

func checkTitle(title string) types.Check {
	c := types.Check{ID: "document-title", Title: "Document has a title"}
	switch n := len([]rune(title)); {
	case n == 0:
		c.Detail = "missing or empty <title>"
	case n > maxTitleLength:
		c.Detail = fmt.Sprintf("title is %d characters, longer than %d", n, maxTitleLength)
	default:
		c.Passed = true
	}
	return c
}

func checkDescription(doc *goquery.Document) types.Check {
	c := types.Check{ID: "meta-description", Title: "Document has a meta description"}
	content, _ := doc.Find(`meta[name="description"]`).First().Attr("content")
	content = strings.TrimSpace(content)
	switch n := len([]rune(content)); {
	case n == 0:
		c.Detail = "missing or empty meta description"
	case n > maxDescriptionLength:
		c.Detail = fmt.Sprintf("description is %d characters, longer than %d", n, maxDescriptionLength)
	default:
		c.Passed = true
	}
	return c
}

func checkHeadings(doc *goquery.Document) types.Check {
	c := types.Check{ID: "single-h1", Title: "Page has exactly one <h1>"}
	n := doc.Find("h1").Length()
	c.Passed = n == 1
	if !c.Passed {
		c.Detail = fmt.Sprintf("found %d <h1> elements", n)
	}
	return c
}

func checkImageAlt(doc *goquery.Document) types.Check {
	c := types.Check{ID: "image-alt", Title: "Images have alt text"}
	missing := doc.Find("img").FilterFunction(func(_ int, s *goquery.Selection) bool {
		_, ok := s.Attr("alt")
		return !ok
	}).Length()
	c.Passed = missing == 0
	if !c.Passed {
		c.Detail = fmt.Sprintf("%d images without an alt attribute", missing)
	}
	return c
}

func checkLang(doc *goquery.Document) types.Check {
	c := types.Check{ID: "html-lang", Title: "<html> has a lang attribute"}
	lang, _ := doc.Find("html").First().Attr("lang")
	c.Passed = strings.TrimSpace(lang) != ""
	if !c.Passed {
		c.Detail = "missing lang attribute"
	}
	return c
}

func checkViewport(doc *goquery.Document) types.Check {
	c := types.Check{ID: "meta-viewport", Title: "Page sets a viewport"}
	c.Passed = doc.Find(`meta[name="viewport"]`).Length() > 0
	if !c.Passed {
		c.Detail = "missing <meta name=\"viewport\">"
	}
	return c
}

func checkCanonical(doc *goquery.Document) types.Check {
	c := types.Check{ID: "canonical", Title: "Page declares a canonical URL"}
	href, _ := doc.Find(`link[rel="canonical"]`).First().Attr("href")
	c.Passed = strings.TrimSpace(href) != ""
	if !c.Passed {
		c.Detail = "missing <link rel=\"canonical\">"
	}
	return c
}

// newPageAudit assembles the structured report for one audited page
func newPageAudit(url, finalURL string, status int, engine string, timing types.Timing, a *Analysis) *types.PageAudit {
	if finalURL == "" {
		finalURL = url
	}
	return &types.PageAudit{
		URL:        url,
		FinalURL:   finalURL,
		Title:      a.Title,
		StatusCode: status,
		Engine:     engine,
		AuditedAt:  time.Now().UTC(),
		Timing:     timing,
		Checks:     a.Checks,
		Score:      a.Score,
	}
}
