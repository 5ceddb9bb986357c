package audit

import (
	"context"
	"errors"
	"fmt"
	"path"
	"runtime/debug"
	"time"

	"github.com/BenjaminSRussell/crawlaudit/internal/storage"
	"github.com/BenjaminSRussell/crawlaudit/internal/types"
	"github.com/sirupsen/logrus"
)

const (
	defaultAuditTimeout = 2 * time.Minute

	// DataFile and ReportFile are written into each URL's directory
	DataFile   = "auditData.json"
	ReportFile = "index.html"

	// ErrorsFile lists failed and skipped audits at the store root
	ErrorsFile = "auditErrors.json"
)

// Status of one queued URL
type Status string

const (
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Phases reported with failed and skipped outcomes
const (
	PhasePrepare = "prepare"
	PhaseAudit   = "audit"
	PhaseSave    = "save"
)

// Outcome records what happened to one URL
type Outcome struct {
	URL        string `json:"url"`
	Key        string `json:"key,omitempty"`
	Status     Status `json:"status"`
	Phase      string `json:"phase,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"durationMs"`
}

// Summary is the result of a queue run, in input order
type Summary struct {
	Outcomes  []Outcome `json:"outcomes"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Skipped   int       `json:"skipped"`
}

func (s *Summary) add(o Outcome) {
	s.Outcomes = append(s.Outcomes, o)
	switch o.Status {
	case StatusOK:
		s.Succeeded++
	case StatusFailed:
		s.Failed++
	case StatusSkipped:
		s.Skipped++
	}
}

// Problems returns every outcome that did not succeed
func (s *Summary) Problems() []Outcome {
	problems := make([]Outcome, 0, s.Failed+s.Skipped)
	for _, o := range s.Outcomes {
		if o.Status != StatusOK {
			problems = append(problems, o)
		}
	}
	return problems
}

// Queue audits URLs strictly one at a time and writes each report pair
// before moving on.
type Queue struct {
	auditor     Auditor
	store       *storage.Store
	keys        *storage.KeyRegistry
	timeout     time.Duration
	stopOnError bool
	onOutcome   func(Outcome)
	logger      logrus.FieldLogger
}

// QueueOption configures a Queue
type QueueOption func(*Queue)

// WithAuditTimeout bounds each audit call
func WithAuditTimeout(d time.Duration) QueueOption {
	return func(q *Queue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// WithStopOnError stops the queue after the first failed URL
func WithStopOnError(stop bool) QueueOption {
	return func(q *Queue) {
		q.stopOnError = stop
	}
}

// WithKeyRegistry shares a registry, so the index can label keys with URLs
func WithKeyRegistry(r *storage.KeyRegistry) QueueOption {
	return func(q *Queue) {
		if r != nil {
			q.keys = r
		}
	}
}

// WithOutcomeHook is called after every URL, from the queue goroutine
func WithOutcomeHook(fn func(Outcome)) QueueOption {
	return func(q *Queue) {
		q.onOutcome = fn
	}
}

// WithQueueLogger sets the logger
func WithQueueLogger(l logrus.FieldLogger) QueueOption {
	return func(q *Queue) {
		if l != nil {
			q.logger = l
		}
	}
}

// NewQueue creates a queue that audits with auditor and writes to store
func NewQueue(auditor Auditor, store *storage.Store, opts ...QueueOption) *Queue {
	q := &Queue{
		auditor: auditor,
		store:   store,
		keys:    storage.NewKeyRegistry(),
		timeout: defaultAuditTimeout,
		logger:  logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Run audits urls in order. Per-URL failures are recorded and the loop moves
// on. A cancelled context stops the loop; the partial summary is returned
// with ctx.Err().
func (q *Queue) Run(ctx context.Context, urls []string) (*Summary, error) {
	summary := &Summary{Outcomes: make([]Outcome, 0, len(urls))}
	keys, prepErrs := q.prepare(urls)

	var runErr error
	stopped := false

	for i, u := range urls {
		if runErr == nil {
			runErr = ctx.Err()
		}

		switch {
		case prepErrs[i] != nil:
			q.record(summary, Outcome{URL: u, Status: StatusSkipped, Phase: PhasePrepare, Error: prepErrs[i].Error()})
		case runErr != nil:
			q.record(summary, Outcome{URL: u, Key: keys[i], Status: StatusSkipped, Phase: PhaseAudit, Error: runErr.Error()})
		case stopped:
			q.record(summary, Outcome{URL: u, Key: keys[i], Status: StatusSkipped, Phase: PhaseAudit, Error: "stopped after an earlier failure"})
		default:
			q.logger.WithFields(logrus.Fields{
				"url":      u,
				"key":      keys[i],
				"progress": fmt.Sprintf("%d/%d", i+1, len(urls)),
			}).Info("Auditing")

			o := q.auditOne(ctx, u, keys[i])
			q.record(summary, o)
			if o.Status == StatusFailed && q.stopOnError {
				stopped = true
			}
		}
	}

	if runErr == nil {
		runErr = ctx.Err()
	}
	q.writeProblems(summary)

	q.logger.WithFields(logrus.Fields{
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
		"skipped":   summary.Skipped,
	}).Info("Audit queue finished")

	return summary, runErr
}

// prepare creates a directory for every URL before any audit runs
func (q *Queue) prepare(urls []string) ([]string, []error) {
	keys := make([]string, len(urls))
	errs := make([]error, len(urls))

	for i, u := range urls {
		key, err := q.keys.Register(u)
		if err == nil {
			err = q.store.EnsureDir(key)
		}
		if err != nil {
			errs[i] = err
			q.logger.WithFields(logrus.Fields{
				"url":   u,
				"key":   key,
				"phase": PhasePrepare,
			}).WithError(err).Error("Cannot prepare output directory")
			continue
		}
		keys[i] = key
	}
	return keys, errs
}

func (q *Queue) auditOne(ctx context.Context, u, key string) Outcome {
	start := time.Now()
	o := Outcome{URL: u, Key: key}
	fields := logrus.Fields{"url": u, "key": key}

	report, err := q.safeAudit(ctx, u)
	if err != nil {
		o.Status, o.Phase, o.Error = StatusFailed, PhaseAudit, err.Error()
		fields["phase"] = PhaseAudit
		q.logger.WithFields(fields).WithError(err).Error("Audit failed")
		o.DurationMs = time.Since(start).Milliseconds()
		return o
	}

	if err := q.save(key, report); err != nil {
		o.Status, o.Phase, o.Error = StatusFailed, PhaseSave, err.Error()
		fields["phase"] = PhaseSave
		q.logger.WithFields(fields).WithError(err).Error("Failed to save report")
		o.DurationMs = time.Since(start).Milliseconds()
		return o
	}

	o.Status = StatusOK
	o.DurationMs = time.Since(start).Milliseconds()
	fields["score"] = report.Data.Score
	q.logger.WithFields(fields).Debug("Audit saved")
	return o
}

// safeAudit runs one audit under the timeout and turns panics into errors
func (q *Queue) safeAudit(ctx context.Context, u string) (report *types.AuditReport, err error) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.WithField("url", u).Errorf("audit panicked: %v", r)
			q.logger.WithField("url", u).Debugf("stack trace:\n%s", debug.Stack())
			report, err = nil, fmt.Errorf("%w: %v", ErrAuditPanic, r)
		}
	}()

	actx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	report, err = q.auditor.Audit(actx, u)
	if err != nil {
		if errors.Is(actx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("audit timed out after %s: %w", q.timeout, err)
		}
		return nil, err
	}
	if report == nil || report.Data == nil {
		return nil, errNilReport
	}
	return report, nil
}

// save writes the structured report before the rendered one
func (q *Queue) save(key string, report *types.AuditReport) error {
	if err := q.store.Save(path.Join(key, DataFile), report.Data); err != nil {
		return err
	}
	return q.store.Save(path.Join(key, ReportFile), report.HTML)
}

func (q *Queue) record(s *Summary, o Outcome) {
	s.add(o)
	if q.onOutcome != nil {
		q.onOutcome(o)
	}
}

func (q *Queue) writeProblems(s *Summary) {
	problems := s.Problems()
	if len(problems) == 0 {
		return
	}
	if err := q.store.Save(ErrorsFile, problems); err != nil {
		q.logger.WithField("phase", PhaseSave).WithError(err).Error("Failed to write audit errors")
	}
}
