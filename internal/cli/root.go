package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/BenjaminSRussell/crawlaudit/internal/config"
	"github.com/BenjaminSRussell/crawlaudit/internal/crawler"
	"github.com/BenjaminSRussell/crawlaudit/internal/pipeline"
	"github.com/BenjaminSRussell/crawlaudit/internal/storage"
	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags "-X ...cli.version=..."
var version = "dev"

var (
	configPath   string
	outputDir    string
	logLevel     string
	logFormat    string
	engine       string
	fetchTimeout time.Duration
	maxRetries   int
	ignoreRobots bool
	userAgent    string
	filter       string
	filterScope  string
	sameSite     bool
	useSitemap   bool

	auditEngine  string
	auditScope   string
	auditTimeout time.Duration
	settle       time.Duration
	chromePath   string
	stopOnError  bool

	exportSitemap bool
	exportPages   bool
	writeSummary  bool
	history       bool
	historyDB     string
)

var rootCmd = &cobra.Command{
	Use:   "crawlaudit <seedURL> [depth] [concurrency]",
	Short: "Crawl a site and audit every page it finds",
	Long: `crawlaudit discovers the pages reachable from a seed URL up to a bounded
depth, audits each discovered page one at a time, and writes one report per
page plus a navigable index into the output directory.

Depth ranges from 1 to 10 (default 1) and concurrency from 1 to 5 (default 5).
Values outside those ranges fall back to the defaults.`,
	Version:       version,
	Args:          cobra.MaximumNArgs(3),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runCrawlAudit,
}

// Execute runs the root command
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
	}
	return err
}

func init() {
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(reindexCmd)

	f := rootCmd.Flags()
	f.StringVarP(&configPath, "config", "c", "", "YAML config file")
	f.StringVarP(&outputDir, "output", "o", config.DefaultOutput, "Output directory (cleared at the start of every run)")
	f.StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	f.StringVar(&logFormat, "log-format", "text", "Log format: text or json")

	f.StringVar(&engine, "engine", config.EngineHTTP, "Fetch engine: http or colly")
	f.DurationVar(&fetchTimeout, "fetch-timeout", config.DefaultFetchTimeout, "Timeout for each page fetch")
	f.IntVar(&maxRetries, "max-retries", config.DefaultMaxRetries, "Retries for transient fetch failures")
	f.BoolVar(&ignoreRobots, "ignore-robots", false, "Ignore robots.txt")
	f.StringVar(&userAgent, "user-agent", "", "User-Agent for fetches and audits")
	f.StringVar(&filter, "filter", "", "Only follow links containing this string")
	f.StringVar(&filterScope, "filter-scope", string(crawler.ScopeRecursive), "Where --filter applies: recursive or seed")
	f.BoolVar(&sameSite, "same-site", true, "Stay on the seed's registrable domain")
	f.BoolVar(&useSitemap, "sitemap", false, "Add URLs from the seed's sitemap to the first level")

	f.StringVar(&auditEngine, "audit-engine", config.AuditEngineChrome, "Audit engine: chrome or static")
	f.StringVar(&auditScope, "audit-scope", config.AuditScopeDiscovered, "URLs to audit: discovered, crawled or all")
	f.DurationVar(&auditTimeout, "audit-timeout", config.DefaultAuditTimeout, "Timeout for each page audit")
	f.DurationVar(&settle, "settle", config.DefaultSettle, "Time to let page scripts run before a Chrome audit reads the DOM")
	f.StringVar(&chromePath, "chrome-path", "", "Chrome binary (default: search PATH)")
	f.BoolVar(&stopOnError, "stop-on-error", false, "Stop auditing after the first failure")

	f.BoolVar(&exportSitemap, "export-sitemap", false, "Write sitemap.xml for the crawled pages")
	f.BoolVar(&exportPages, "export-pages", false, "Write pages.json and pages.csv with every fetch")
	f.BoolVar(&writeSummary, "summary", true, "Write summary.md")
	f.BoolVar(&history, "history", false, "Record the run in the history database")
	f.StringVar(&historyDB, "history-db", "", "History database path (default: XDG data dir)")
}

func runCrawlAudit(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: missing seed URL", pipeline.ErrInvalidSeed)
	}

	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	// Fail on a bad seed before anything is opened or cleared
	if _, err := pipeline.NormalizeSeed(cfg.Seed); err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	opts := []pipeline.Option{pipeline.WithLogger(logger)}
	if cfg.History {
		h, err := storage.NewHistory(cfg.HistoryDB)
		if err != nil {
			logger.WithField("path", cfg.HistoryDB).WithError(err).Warn("History disabled")
		} else {
			defer h.Close()
			opts = append(opts, pipeline.WithHistory(h))
		}
	}

	p, err := pipeline.New(cfg, opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := p.Run(ctx, cfg.Seed)
	out := cmd.OutOrStdout()
	switch {
	case errors.Is(err, pipeline.ErrEmptyCrawl):
		fmt.Fprintf(out, "Nothing to audit: %v\n", err)
		return nil
	case err != nil:
		return err
	}

	fmt.Fprintf(out, "Crawl and audit complete!\n")
	fmt.Fprintf(out, "Crawled: %d, Discovered: %d, Audited: %d, Failed: %d, Skipped: %d\n",
		len(res.Crawl.Crawled), len(res.Crawl.Discovered),
		res.Audits.Succeeded, res.Audits.Failed, res.Audits.Skipped)
	fmt.Fprintf(out, "Index: %s/index.html\n", p.Store().Root())
	return nil
}

// buildConfig layers defaults, the config file, changed flags and positional
// arguments, in that order.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	set := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
		}
	}
	set("output", func() { cfg.Output = outputDir })
	set("log-level", func() { cfg.LogLevel = logLevel })
	set("log-format", func() { cfg.LogFormat = logFormat })
	set("engine", func() { cfg.Engine = engine })
	set("fetch-timeout", func() { cfg.FetchTimeout = fetchTimeout })
	set("max-retries", func() { cfg.MaxRetries = maxRetries })
	set("ignore-robots", func() { cfg.IgnoreRobots = ignoreRobots })
	set("user-agent", func() { cfg.UserAgent = userAgent })
	set("filter", func() { cfg.Filter = filter })
	set("filter-scope", func() { cfg.FilterScope = filterScope })
	set("same-site", func() { cfg.SameSite = sameSite })
	set("sitemap", func() { cfg.Sitemap = useSitemap })
	set("audit-engine", func() { cfg.AuditEngine = auditEngine })
	set("audit-scope", func() { cfg.AuditScope = auditScope })
	set("audit-timeout", func() { cfg.AuditTimeout = auditTimeout })
	set("settle", func() { cfg.Settle = settle })
	set("chrome-path", func() { cfg.ChromePath = chromePath })
	set("stop-on-error", func() { cfg.StopOnError = stopOnError })
	set("export-sitemap", func() { cfg.ExportSitemap = exportSitemap })
	set("export-pages", func() { cfg.ExportPages = exportPages })
	set("summary", func() { cfg.Summary = writeSummary })
	set("history", func() { cfg.History = history })
	set("history-db", func() { cfg.HistoryDB = historyDB })

	cfg.Seed = args[0]
	if len(args) > 1 {
		cfg.Depth = positionalInt(args[1], crawler.DefaultDepth)
	}
	if len(args) > 2 {
		cfg.Concurrency = positionalInt(args[2], crawler.DefaultConcurrency)
	}
	cfg.Normalize()

	return cfg, nil
}

// positionalInt parses s, returning def for anything that is not a number
func positionalInt(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
