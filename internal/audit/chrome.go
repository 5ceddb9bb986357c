package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BenjaminSRussell/crawlaudit/internal/fetch"
	"github.com/BenjaminSRussell/crawlaudit/internal/types"
	"github.com/chromedp/chromedp"
)

const defaultSettle = 2 * time.Second

// timingScript reads the navigation entry of the Performance API
const timingScript = `(() => {
	const nav = performance.getEntriesByType("navigation")[0];
	if (!nav) { return {domContentLoaded: 0, load: 0, transferSize: 0}; }
	return {
		domContentLoaded: nav.domContentLoadedEventEnd - nav.startTime,
		load: nav.loadEventEnd - nav.startTime,
		transferSize: nav.transferSize || 0
	};
})()`

// ChromeAuditor audits pages in headless Chrome. Every call launches and
// tears down its own browser, so a crashed page cannot poison the next one.
type ChromeAuditor struct {
	allocOpts []chromedp.ExecAllocatorOption
	settle    time.Duration
}

// ChromeOption configures a ChromeAuditor
type ChromeOption func(*chromeConfig)

type chromeConfig struct {
	execPath  string
	userAgent string
	settle    time.Duration
}

// WithExecPath uses a specific Chrome binary instead of searching PATH
func WithExecPath(path string) ChromeOption {
	return func(c *chromeConfig) {
		c.execPath = path
	}
}

// WithBrowserUserAgent sets the browser's User-Agent header
func WithBrowserUserAgent(ua string) ChromeOption {
	return func(c *chromeConfig) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithSettle sets how long to let scripts run after the body is ready
func WithSettle(d time.Duration) ChromeOption {
	return func(c *chromeConfig) {
		if d >= 0 {
			c.settle = d
		}
	}
}

// NewChromeAuditor creates a Chrome-backed auditor
func NewChromeAuditor(opts ...ChromeOption) *ChromeAuditor {
	cfg := chromeConfig{
		userAgent: fetch.DefaultUserAgent,
		settle:    defaultSettle,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(cfg.userAgent),
	)
	if cfg.execPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(cfg.execPath))
	}

	return &ChromeAuditor{
		allocOpts: allocOpts,
		settle:    cfg.settle,
	}
}

// Audit loads url in a fresh browser and analyzes the rendered DOM
func (a *ChromeAuditor) Audit(ctx context.Context, url string) (*types.AuditReport, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, a.allocOpts...)
	defer allocCancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	resp, err := chromedp.RunResponse(browserCtx, chromedp.Navigate(url))
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", url, err)
	}

	status := 0
	if resp != nil {
		status = int(resp.Status)
	}
	if status >= 400 {
		return nil, fmt.Errorf("%w: %d", fetch.ErrStatus, status)
	}

	var (
		location string
		timing   types.Timing
		html     string
	)
	err = chromedp.Run(browserCtx,
		chromedp.WaitReady("body"),
		chromedp.Sleep(a.settle),
		chromedp.Location(&location),
		chromedp.Evaluate(timingScript, &timing),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", url, err)
	}

	analysis, err := Analyze(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	return buildReport(newPageAudit(url, location, status, EngineChrome, timing, analysis))
}
