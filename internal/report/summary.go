// Package report writes the human-readable run summary.
package report

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/BenjaminSRussell/crawlaudit/internal/audit"
	"github.com/BenjaminSRussell/crawlaudit/internal/metrics"
	"github.com/BenjaminSRussell/crawlaudit/internal/storage"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// File is written at the store root
const File = "summary.md"

const maxProblemRows = 50

// RunSummary is everything the summary page shows about one run
type RunSummary struct {
	Seed        string
	Depth       int
	Concurrency int
	Engine      string
	StartedAt   time.Time
	Duration    time.Duration
	Crawled     int
	Discovered  int
	Audits      *audit.Summary
	Metrics     metrics.Metrics
}

// WriteSummary renders s as Markdown into w
func WriteSummary(w io.Writer, s *RunSummary) error {
	md := markdown.NewMarkdown(w)

	writeHeader(md, s)
	writeCrawl(md, s)
	writeAudits(md, s)

	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Generated by crawlaudit on %s*", time.Now().UTC().Format("2006-01-02 15:04:05 MST"))

	return md.Build()
}

// Save writes summary.md into store
func Save(store *storage.Store, s *RunSummary) error {
	var buf bytes.Buffer
	if err := WriteSummary(&buf, s); err != nil {
		return fmt.Errorf("failed to render summary: %w", err)
	}
	return store.Save(File, buf.String())
}

func writeHeader(md *markdown.Markdown, s *RunSummary) {
	md.H1("Crawl audit: " + s.Seed)
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Seed", "`" + s.Seed + "`"},
			{"Depth", strconv.Itoa(s.Depth)},
			{"Concurrency", strconv.Itoa(s.Concurrency)},
			{"Audit engine", s.Engine},
			{"Started", s.StartedAt.UTC().Format("2006-01-02 15:04:05 MST")},
			{"Duration", s.Duration.Round(time.Millisecond).String()},
		},
	})
	md.PlainText("")
}

func writeCrawl(md *markdown.Markdown, s *RunSummary) {
	md.H2("Crawl")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Crawled URLs", strconv.Itoa(s.Crawled)},
			{"Discovered URLs", strconv.Itoa(s.Discovered)},
			{"Fetches succeeded", strconv.Itoa(s.Metrics.PagesFetched)},
			{"Fetches failed", strconv.Itoa(s.Metrics.PagesFailed)},
			{"Average fetch time", strconv.FormatInt(s.Metrics.AvgFetchTimeMs, 10) + " ms"},
		},
	})
	md.PlainText("")
}

func writeAudits(md *markdown.Markdown, s *RunSummary) {
	md.H2("Audits")
	md.PlainText("")

	a := s.Audits
	if a == nil || len(a.Outcomes) == 0 {
		md.Note("No pages were audited.")
		md.PlainText("")
		return
	}

	md.Table(markdown.TableSet{
		Header: []string{"Status", "Count"},
		Rows: [][]string{
			{"Succeeded", strconv.Itoa(a.Succeeded)},
			{"Failed", strconv.Itoa(a.Failed)},
			{"Skipped", strconv.Itoa(a.Skipped)},
			{"**Total**", "**" + strconv.Itoa(len(a.Outcomes)) + "**"},
		},
	})
	md.PlainText("")

	writePieChart(md, a)

	switch {
	case a.Failed > 0:
		md.Warningf("%d audit(s) failed. See auditErrors.json for details.", a.Failed)
	case a.Skipped > 0:
		md.Importantf("%d URL(s) were skipped.", a.Skipped)
	default:
		md.Tip("Every page was audited.")
	}
	md.PlainText("")

	writeProblems(md, a.Problems())
}

func writePieChart(md *markdown.Markdown, a *audit.Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Audit outcomes"),
		piechart.WithShowData(true),
	)
	if a.Succeeded > 0 {
		chart.LabelAndIntValue("Succeeded", uint64(a.Succeeded))
	}
	if a.Failed > 0 {
		chart.LabelAndIntValue("Failed", uint64(a.Failed))
	}
	if a.Skipped > 0 {
		chart.LabelAndIntValue("Skipped", uint64(a.Skipped))
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func writeProblems(md *markdown.Markdown, problems []audit.Outcome) {
	if len(problems) == 0 {
		return
	}

	md.H3("Problems")
	md.PlainText("")

	rows := make([][]string, 0, len(problems))
	for i, p := range problems {
		if i == maxProblemRows {
			break
		}
		rows = append(rows, []string{p.URL, string(p.Status), p.Phase, truncate(p.Error, 80)})
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Status", "Phase", "Error"},
		Rows:   rows,
	})
	md.PlainText("")

	if len(problems) > maxProblemRows {
		md.PlainTextf("%d more not shown.", len(problems)-maxProblemRows)
		md.PlainText("")
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
