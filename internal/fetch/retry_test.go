package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxRetries != 2 {
		t.Errorf("Expected MaxRetries=2, got %d", config.MaxRetries)
	}
	if config.BackoffFactor != 2.0 {
		t.Errorf("Expected BackoffFactor=2.0, got %v", config.BackoffFactor)
	}
}

func TestRetryHandlerShouldRetry(t *testing.T) {
	rh := NewRetryHandler(DefaultRetryConfig())

	tests := []struct {
		statusCode  int
		err         error
		shouldRetry bool
	}{
		{http.StatusOK, nil, false},
		{http.StatusNotFound, fmt.Errorf("%w: 404", ErrStatus), false},
		{http.StatusTooManyRequests, fmt.Errorf("%w: 429", ErrStatus), true},
		{http.StatusInternalServerError, nil, true},
		{http.StatusBadGateway, nil, true},
		{http.StatusServiceUnavailable, nil, true},
		{http.StatusGatewayTimeout, nil, true},
		{0, errors.New("network error"), true},
		{0, context.Canceled, false},
		{0, fmt.Errorf("wrapped: %w", context.DeadlineExceeded), false},
		{0, ErrRobotsDisallowed, false},
	}

	for _, tt := range tests {
		result := rh.ShouldRetry(tt.statusCode, tt.err)
		if result != tt.shouldRetry {
			t.Errorf("ShouldRetry(%d, %v): expected %v, got %v", tt.statusCode, tt.err, tt.shouldRetry, result)
		}
	}
}

func TestRetryHandlerBackoff(t *testing.T) {
	rh := NewRetryHandler(RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     300 * time.Millisecond,
		BackoffFactor:  2.0,
	})

	tests := []struct {
		attempt int
		base    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 300 * time.Millisecond},
		{10, 300 * time.Millisecond},
	}

	for _, tt := range tests {
		got := rh.Backoff(tt.attempt)
		low := time.Duration(float64(tt.base) * 0.8)
		high := time.Duration(float64(tt.base) * 1.2)
		if got < low || got > high {
			t.Errorf("Backoff(%d) = %v, expected within [%v, %v]", tt.attempt, got, low, high)
		}
	}
}

func TestRetryHandlerRecordFailureAndSuccess(t *testing.T) {
	rh := NewRetryHandler(RetryConfig{
		MaxRetries:     1,
		InitialBackoff: time.Second,
		MaxBackoff:     time.Second,
		BackoffFactor:  2.0,
	})

	rh.RecordFailure("example.com", http.StatusServiceUnavailable)
	if in, d := rh.IsInBackoff("example.com"); !in || d <= 0 {
		t.Errorf("Expected host in backoff, got %v %v", in, d)
	}

	if in, _ := rh.IsInBackoff("other.com"); in {
		t.Error("Expected unrelated host not to be in backoff")
	}

	rh.RecordSuccess("example.com")
	if in, _ := rh.IsInBackoff("example.com"); in {
		t.Error("Expected backoff to be cleared after success")
	}
}

func TestRetryHandlerWaitHonoursContext(t *testing.T) {
	rh := NewRetryHandler(RetryConfig{
		MaxRetries:     1,
		InitialBackoff: time.Minute,
		MaxBackoff:     time.Minute,
		BackoffFactor:  1,
	})
	rh.RecordFailure("example.com", http.StatusServiceUnavailable)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := rh.Wait(ctx, "example.com"); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
