package audit

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/BenjaminSRussell/crawlaudit/internal/types"
)

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Audit: {{.URL}}</title>
<style>
body { font-family: sans-serif; margin: 2rem; }
table { border-collapse: collapse; }
td, th { border: 1px solid #ccc; padding: 0.3rem 0.6rem; text-align: left; }
.pass { color: #1a7f37; }
.fail { color: #cf222e; }
</style>
</head>
<body>
<h1>{{.Score}}/100</h1>
<p><a href="{{.FinalURL}}">{{.URL}}</a></p>
<p>Title: {{if .Title}}{{.Title}}{{else}}<em>none</em>{{end}}</p>
<p>Engine: {{.Engine}}{{if .StatusCode}}, status {{.StatusCode}}{{end}}, audited {{.AuditedAt.Format "2006-01-02 15:04:05 MST"}}</p>
{{if or .Timing.Load .Timing.DOMContentLoaded}}<p>DOMContentLoaded {{printf "%.0f" .Timing.DOMContentLoaded}} ms, load {{printf "%.0f" .Timing.Load}} ms, transferred {{printf "%.0f" .Timing.TransferSize}} bytes</p>
{{end}}<table>
<tr><th>Check</th><th>Result</th><th>Detail</th></tr>
{{range .Checks}}<tr><td>{{.Title}}</td>{{if .Passed}}<td class="pass">pass</td>{{else}}<td class="fail">fail</td>{{end}}<td>{{.Detail}}</td></tr>
{{end}}</table>
<p><a href="../index.html">All pages</a></p>
</body>
</html>
`))

// RenderHTML renders the human-readable form of a page audit
func RenderHTML(a *types.PageAudit) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, a); err != nil {
		return "", fmt.Errorf("failed to render report for %s: %w", a.URL, err)
	}
	return buf.String(), nil
}

func buildReport(a *types.PageAudit) (*types.AuditReport, error) {
	html, err := RenderHTML(a)
	if err != nil {
		return nil, err
	}
	return &types.AuditReport{Data: a, HTML: html}, nil
}
