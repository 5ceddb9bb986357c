package fetch

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

// RetryConfig holds retry configuration
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
}

// DefaultRetryConfig returns default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     2,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		BackoffFactor:  2.0,
	}
}

// RetryHandler decides whether to retry and for how long each host backs off
type RetryHandler struct {
	config RetryConfig

	hostRetries sync.Map // map[string]*hostRetryState
}

type hostRetryState struct {
	mu               sync.Mutex
	consecutiveFails int
	backoffUntil     time.Time
}

// NewRetryHandler creates a new retry handler
func NewRetryHandler(config RetryConfig) *RetryHandler {
	if config.BackoffFactor < 1 {
		config.BackoffFactor = 1
	}
	return &RetryHandler{
		config: config,
	}
}

// MaxRetries returns the number of retries after the first attempt
func (rh *RetryHandler) MaxRetries() int {
	return rh.config.MaxRetries
}

// ShouldRetry determines if a request should be retried
func (rh *RetryHandler) ShouldRetry(statusCode int, err error) bool {
	if err != nil {
		// The caller gave up, retrying won't help
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false
		}
		if errors.Is(err, ErrRobotsDisallowed) {
			return false
		}
		if statusCode == 0 {
			return true
		}
	}

	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}

	return false
}

// Backoff returns the delay before retry number attempt (1-based), with ±20% jitter
func (rh *RetryHandler) Backoff(attempt int) time.Duration {
	backoff := rh.config.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff = time.Duration(float64(backoff) * rh.config.BackoffFactor)
		if backoff > rh.config.MaxBackoff {
			backoff = rh.config.MaxBackoff
			break
		}
	}

	jitter := time.Duration(float64(backoff) * 0.2 * (2*rand.Float64() - 1))
	return backoff + jitter
}

// RecordFailure puts host into backoff
func (rh *RetryHandler) RecordFailure(host string, statusCode int) {
	state := rh.getOrCreateState(host)
	state.mu.Lock()
	defer state.mu.Unlock()

	state.consecutiveFails++
	backoff := rh.Backoff(state.consecutiveFails)
	if statusCode == http.StatusTooManyRequests {
		backoff *= 2
	}
	state.backoffUntil = time.Now().Add(backoff)
}

// RecordSuccess clears host's backoff
func (rh *RetryHandler) RecordSuccess(host string) {
	state := rh.getOrCreateState(host)
	state.mu.Lock()
	defer state.mu.Unlock()

	state.consecutiveFails = 0
	state.backoffUntil = time.Time{}
}

// IsInBackoff checks if a host is currently in backoff
func (rh *RetryHandler) IsInBackoff(host string) (bool, time.Duration) {
	state := rh.getOrCreateState(host)
	state.mu.Lock()
	defer state.mu.Unlock()

	if time.Now().Before(state.backoffUntil) {
		return true, time.Until(state.backoffUntil)
	}
	return false, 0
}

// Wait blocks until host leaves backoff or ctx is done
func (rh *RetryHandler) Wait(ctx context.Context, host string) error {
	in, d := rh.IsInBackoff(host)
	if !in {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (rh *RetryHandler) getOrCreateState(host string) *hostRetryState {
	if val, ok := rh.hostRetries.Load(host); ok {
		return val.(*hostRetryState)
	}

	actual, _ := rh.hostRetries.LoadOrStore(host, &hostRetryState{})
	return actual.(*hostRetryState)
}

// RetryableError wraps the last failure with the number of attempts made
type RetryableError struct {
	Err        error
	StatusCode int
	Attempt    int
	MaxRetries int
}

func (e *RetryableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("request failed (attempt %d/%d): %v", e.Attempt, e.MaxRetries+1, e.Err)
	}
	return fmt.Sprintf("request failed with status %d (attempt %d/%d)", e.StatusCode, e.Attempt, e.MaxRetries+1)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}
