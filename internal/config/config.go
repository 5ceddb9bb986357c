// Package config holds run settings, their defaults, and the optional YAML
// config file.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BenjaminSRussell/crawlaudit/internal/crawler"
	"github.com/BenjaminSRussell/crawlaudit/internal/fetch"
	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// AppName is used for XDG directory paths
const AppName = "crawlaudit"

// Fetch engines
const (
	EngineHTTP  = "http"
	EngineColly = "colly"
)

// Audit engines
const (
	AuditEngineChrome = "chrome"
	AuditEngineStatic = "static"
)

// Audit scopes select which crawl set is audited
const (
	AuditScopeDiscovered = "discovered"
	AuditScopeCrawled    = "crawled"
	AuditScopeAll        = "all"
)

// Default values
const (
	DefaultOutput       = "./output"
	DefaultFetchTimeout = 30 * time.Second
	DefaultAuditTimeout = 2 * time.Minute
	DefaultSettle       = 2 * time.Second
	DefaultMaxRetries   = 2
)

// Config holds every setting of one run. Depth and concurrency outside their
// ranges are not errors; Normalize replaces them with defaults.
type Config struct {
	Seed        string `yaml:"-"`
	Output      string `yaml:"output"`
	Depth       int    `yaml:"depth"`
	Concurrency int    `yaml:"concurrency"`

	// Crawl
	Engine       string        `yaml:"engine"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	MaxRetries   int           `yaml:"max_retries"`
	IgnoreRobots bool          `yaml:"ignore_robots"`
	UserAgent    string        `yaml:"user_agent"`
	Filter       string        `yaml:"filter"`
	FilterScope  string        `yaml:"filter_scope"`
	SameSite     bool          `yaml:"same_site"`
	Sitemap      bool          `yaml:"sitemap"`

	// Audit
	AuditEngine  string        `yaml:"audit_engine"`
	AuditScope   string        `yaml:"audit_scope"`
	AuditTimeout time.Duration `yaml:"audit_timeout"`
	Settle       time.Duration `yaml:"settle"`
	ChromePath   string        `yaml:"chrome_path"`
	StopOnError  bool          `yaml:"stop_on_error"`

	// Artifacts
	ExportSitemap bool   `yaml:"export_sitemap"`
	ExportPages   bool   `yaml:"export_pages"`
	Summary       bool   `yaml:"summary"`
	History       bool   `yaml:"history"`
	HistoryDB     string `yaml:"history_db"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Default returns a Config populated with default values
func Default() *Config {
	return &Config{
		Output:       DefaultOutput,
		Depth:        crawler.DefaultDepth,
		Concurrency:  crawler.DefaultConcurrency,
		Engine:       EngineHTTP,
		FetchTimeout: DefaultFetchTimeout,
		MaxRetries:   DefaultMaxRetries,
		UserAgent:    fetch.DefaultUserAgent,
		FilterScope:  string(crawler.ScopeRecursive),
		SameSite:     true,
		AuditEngine:  AuditEngineChrome,
		AuditScope:   AuditScopeDiscovered,
		AuditTimeout: DefaultAuditTimeout,
		Settle:       DefaultSettle,
		Summary:      true,
		HistoryDB:    DefaultHistoryPath(),
		LogLevel:     "info",
		LogFormat:    "text",
	}
}

// DataDir is the XDG data directory for crawlaudit
func DataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// DefaultHistoryPath is where the run history database lives by default
func DefaultHistoryPath() string {
	return filepath.Join(DataDir(), "history.db")
}

// Load reads a YAML config file over the defaults. An empty path returns the
// defaults. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return cfg, nil
}

// Normalize lowercases enum values and replaces out-of-range depth and
// concurrency with their defaults.
func (c *Config) Normalize() {
	c.Depth = crawler.NormalizeDepth(c.Depth)
	c.Concurrency = crawler.NormalizeConcurrency(c.Concurrency)
	c.Engine = strings.ToLower(strings.TrimSpace(c.Engine))
	c.AuditEngine = strings.ToLower(strings.TrimSpace(c.AuditEngine))
	c.AuditScope = strings.ToLower(strings.TrimSpace(c.AuditScope))
	c.FilterScope = strings.ToLower(strings.TrimSpace(c.FilterScope))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	if c.HistoryDB == "" {
		c.HistoryDB = DefaultHistoryPath()
	}
}

// Validate returns the first invalid setting it finds
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Output) == "" {
		return ErrEmptyOutput
	}

	switch c.Engine {
	case EngineHTTP, EngineColly:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidEngine, c.Engine)
	}

	switch c.AuditEngine {
	case AuditEngineChrome, AuditEngineStatic:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidAuditEngine, c.AuditEngine)
	}

	switch c.AuditScope {
	case AuditScopeDiscovered, AuditScopeCrawled, AuditScopeAll:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidAuditScope, c.AuditScope)
	}

	if _, err := crawler.ParseScopeMode(c.FilterScope); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidFilterScope, c.FilterScope)
	}

	if c.FetchTimeout <= 0 || c.AuditTimeout <= 0 || c.Settle < 0 {
		return ErrInvalidTimeout
	}

	if c.MaxRetries < 0 {
		return ErrInvalidRetries
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.LogLevel)
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.LogFormat)
	}

	return nil
}
