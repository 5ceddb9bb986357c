package audit

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/BenjaminSRussell/crawlaudit/internal/fetch"
	"github.com/BenjaminSRussell/crawlaudit/internal/types"
)

const maxStaticBody = 10 << 20

// StaticAuditor audits the server-rendered HTML without running scripts
type StaticAuditor struct {
	client    *http.Client
	userAgent string
}

// NewStaticAuditor creates an auditor that fetches pages with client. A nil
// client gets a 30 second timeout.
func NewStaticAuditor(client *http.Client, userAgent string) *StaticAuditor {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if userAgent == "" {
		userAgent = fetch.DefaultUserAgent
	}
	return &StaticAuditor{client: client, userAgent: userAgent}
}

// Audit fetches url and analyzes the returned document
func (a *StaticAuditor) Audit(ctx context.Context, url string) (*types.AuditReport, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", a.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	start := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %d", fetch.ErrStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxStaticBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	elapsed := float64(time.Since(start).Milliseconds())

	analysis, err := Analyze(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	timing := types.Timing{Load: elapsed, TransferSize: float64(len(body))}
	return buildReport(newPageAudit(url, resp.Request.URL.String(), resp.StatusCode, EngineStatic, timing, analysis))
}
