package storage

import "errors"

var (
	// ErrUnsupportedData is returned by Save for values that are neither
	// text nor structured data.
	ErrUnsupportedData = errors.New("unsupported data type")

	// ErrPathEscape is returned when a relative path resolves outside the store root.
	ErrPathEscape = errors.New("path escapes store root")

	// ErrKeyCollision is returned when two distinct URLs sanitize to the same key.
	ErrKeyCollision = errors.New("sanitized key collision")

	// ErrEmptyKey is returned when a URL sanitizes to an empty key.
	ErrEmptyKey = errors.New("empty sanitized key")
)
