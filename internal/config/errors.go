package config

import "errors"

var (
	// ErrInvalidEngine is returned for an unknown fetch engine
	ErrInvalidEngine = errors.New("engine must be http or colly")

	// ErrInvalidAuditEngine is returned for an unknown audit engine
	ErrInvalidAuditEngine = errors.New("audit engine must be chrome or static")

	// ErrInvalidAuditScope is returned for an unknown audit scope
	ErrInvalidAuditScope = errors.New("audit scope must be discovered, crawled or all")

	// ErrInvalidFilterScope is returned for an unknown filter scope
	ErrInvalidFilterScope = errors.New("filter scope must be recursive or seed")

	// ErrInvalidTimeout is returned for a non-positive timeout
	ErrInvalidTimeout = errors.New("timeouts must be positive")

	// ErrInvalidRetries is returned for a negative retry count
	ErrInvalidRetries = errors.New("max retries must not be negative")

	// ErrInvalidLogLevel is returned for an unknown log level
	ErrInvalidLogLevel = errors.New("log level must be debug, info, warn or error")

	// ErrInvalidLogFormat is returned for an unknown log format
	ErrInvalidLogFormat = errors.New("log format must be text or json")

	// ErrEmptyOutput is returned when no output directory is set
	ErrEmptyOutput = errors.New("output directory must not be empty")
)
