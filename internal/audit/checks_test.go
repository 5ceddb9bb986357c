package audit

import (
	"strings"
	"testing"

	"github.com/BenjaminSRussell/crawlaudit/internal/types"
)

const goodPage = `<!DOCTYPE html>
<html lang="en">
<head>
<title>Example Domain</title>
<meta name="description" content="An example page">
<meta name="viewport" content="width=device-width">
<link rel="canonical" href="https://example.com/">
</head>
<body>
<h1>Example</h1>
<img src="a.png" alt="A">
<img src="spacer.png" alt="">
</body>
</html>`

const poorPage = `<html>
<head></head>
<body>
<h1>One</h1><h1>Two</h1>
<img src="a.png">
</body>
</html>`

func checkByID(checks []types.Check, id string) (types.Check, bool) {
	for _, c := range checks {
		if c.ID == id {
			return c, true
		}
	}
	return types.Check{}, false
}

func TestAnalyzeGoodPage(t *testing.T) {
	a, err := Analyze(strings.NewReader(goodPage))
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if a.Title != "Example Domain" {
		t.Errorf("Expected title 'Example Domain', got %q", a.Title)
	}
	for _, c := range a.Checks {
		if !c.Passed {
			t.Errorf("Expected %s to pass, got %q", c.ID, c.Detail)
		}
	}
	if a.Score != 100 {
		t.Errorf("Expected score 100, got %d", a.Score)
	}
}

func TestAnalyzePoorPage(t *testing.T) {
	a, err := Analyze(strings.NewReader(poorPage))
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	tests := []struct {
		id         string
		wantPassed bool
		wantDetail string
	}{
		{"document-title", false, "missing"},
		{"meta-description", false, "missing"},
		{"single-h1", false, "found 2"},
		{"image-alt", false, "1 images"},
		{"html-lang", false, "lang"},
		{"meta-viewport", false, "viewport"},
		{"canonical", false, "canonical"},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			c, ok := checkByID(a.Checks, tt.id)
			if !ok {
				t.Fatalf("Check %s not found", tt.id)
			}
			if c.Passed != tt.wantPassed {
				t.Errorf("Expected passed=%v, got %v", tt.wantPassed, c.Passed)
			}
			if !strings.Contains(c.Detail, tt.wantDetail) {
				t.Errorf("Expected detail containing %q, got %q", tt.wantDetail, c.Detail)
			}
		})
	}
	if a.Score != 0 {
		t.Errorf("Expected score 0, got %d", a.Score)
	}
}

func TestAnalyzeLongTitle(t *testing.T) {
	page := "<html><head><title>" + strings.Repeat("x", 61) + "</title></head></html>"
	a, err := Analyze(strings.NewReader(page))
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	c, _ := checkByID(a.Checks, "document-title")
	if c.Passed {
		t.Error("Expected a 61 character title to fail")
	}
}

func TestScore(t *testing.T) {
	tests := []struct {
		checks []types.Check
		want   int
	}{
		{nil, 0},
		{[]types.Check{{Passed: true}}, 100},
		{[]types.Check{{Passed: true}, {Passed: false}, {Passed: false}}, 33},
		{[]types.Check{{Passed: true}, {Passed: true}, {Passed: false}}, 66},
	}

	for _, tt := range tests {
		if got := Score(tt.checks); got != tt.want {
			t.Errorf("Score(%v) = %d, want %d", tt.checks, got, tt.want)
		}
	}
}

func TestRenderHTMLEscapes(t *testing.T) {
	a, err := Analyze(strings.NewReader(`<html><head><title>&lt;script&gt;alert(1)&lt;/script&gt;</title></head></html>`))
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	pa := newPageAudit("https://example.com/x", "", 200, EngineStatic, types.Timing{}, a)

	out, err := RenderHTML(pa)
	if err != nil {
		t.Fatalf("RenderHTML failed: %v", err)
	}
	if strings.Contains(out, "<script>alert(1)</script>") {
		t.Error("Expected the title to be escaped")
	}
	if !strings.Contains(out, "https://example.com/x") {
		t.Error("Expected the URL in the report")
	}
	if pa.FinalURL != pa.URL {
		t.Errorf("Expected FinalURL to default to URL, got %q", pa.FinalURL)
	}
}
