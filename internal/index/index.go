// Package index builds the navigation page listing every audited URL.
package index

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"time"

	"github.com/BenjaminSRussell/crawlaudit/internal/storage"
)

// File is the index written at the store root
const File = "index.html"

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
<h1>{{.Title}}</h1>
<p>{{len .Entries}} pages, generated {{.Generated.Format "2006-01-02 15:04:05 MST"}}</p>
<ul>
{{range .Entries}}<li><a href="{{.Href}}">{{.Key}}</a>{{if .URL}} <small>{{.URL}}</small>{{end}}</li>
{{end}}</ul>
</body>
</html>
`))

type entry struct {
	Key  string
	URL  string
	Href string
}

type page struct {
	Title     string
	Generated time.Time
	Entries   []entry
}

type config struct {
	title  string
	labels map[string]string
}

// Option configures Build
type Option func(*config)

// WithLabels shows the original URL next to each key
func WithLabels(labels map[string]string) Option {
	return func(c *config) {
		c.labels = labels
	}
}

// WithTitle sets the page heading
func WithTitle(title string) Option {
	return func(c *config) {
		if title != "" {
			c.title = title
		}
	}
}

// Build lists the store's subdirectories in sorted order and writes one link
// per directory to index.html. It returns the number of links.
func Build(store *storage.Store, opts ...Option) (int, error) {
	cfg := config{title: "Audit reports"}
	for _, opt := range opts {
		opt(&cfg)
	}

	dirs, err := store.ListDirs()
	if err != nil {
		return 0, fmt.Errorf("failed to list %s: %w", store.Root(), err)
	}

	p := page{
		Title:     cfg.title,
		Generated: time.Now().UTC(),
		Entries:   make([]entry, 0, len(dirs)),
	}
	for _, dir := range dirs {
		p.Entries = append(p.Entries, entry{
			Key:  dir,
			URL:  cfg.labels[dir],
			Href: url.PathEscape(dir) + "/" + File,
		})
	}

	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, p); err != nil {
		return 0, fmt.Errorf("failed to render index: %w", err)
	}
	if err := store.Save(File, buf.String()); err != nil {
		return 0, err
	}
	return len(p.Entries), nil
}
