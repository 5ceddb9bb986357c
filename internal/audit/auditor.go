// Package audit analyzes discovered pages and persists one report per URL.
package audit

import (
	"context"
	"errors"

	"github.com/BenjaminSRussell/crawlaudit/internal/types"
)

// ErrAuditPanic marks an audit that panicked
var ErrAuditPanic = errors.New("panic during audit")

var errNilReport = errors.New("auditor returned no report")

// Engine names recorded in PageAudit.Engine. They match the config values
// that select each auditor.
const (
	EngineChrome = "chrome"
	EngineStatic = "static"
)

// Auditor produces a structured and a rendered report for one URL
type Auditor interface {
	Audit(ctx context.Context, url string) (*types.AuditReport, error)
}

// AuditorFunc adapts a function to the Auditor interface
type AuditorFunc func(ctx context.Context, url string) (*types.AuditReport, error)

// Audit calls f
func (f AuditorFunc) Audit(ctx context.Context, url string) (*types.AuditReport, error) {
	return f(ctx, url)
}
