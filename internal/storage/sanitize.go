package storage

import (
	"fmt"
	"strings"
	"sync"
)

var keyReplacer = strings.NewReplacer("/", ".", "?", ".", ":", ".")

// Sanitize maps a URL to a directory name. Every '/', '?' and ':' becomes
// '.', and trailing dots are dropped so the result is stable when applied
// twice.
func Sanitize(u string) string {
	return strings.TrimRight(keyReplacer.Replace(u), ".")
}

// KeyRegistry assigns sanitized keys to URLs and refuses to hand the same
// key to two different URLs.
type KeyRegistry struct {
	mu     sync.Mutex
	owners map[string]string // key -> url
}

// NewKeyRegistry creates an empty registry
func NewKeyRegistry() *KeyRegistry {
	return &KeyRegistry{
		owners: make(map[string]string),
	}
}

// Register returns the key for u. Registering the same URL twice is fine.
func (r *KeyRegistry) Register(u string) (string, error) {
	key := Sanitize(u)
	if key == "" {
		return "", fmt.Errorf("%w: %q", ErrEmptyKey, u)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, ok := r.owners[key]; ok && owner != u {
		return "", fmt.Errorf("%w: %q and %q both map to %q", ErrKeyCollision, owner, u, key)
	}
	r.owners[key] = u
	return key, nil
}

// Labels returns a copy of the key -> URL mapping
func (r *KeyRegistry) Labels() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	labels := make(map[string]string, len(r.owners))
	for k, v := range r.owners {
		labels[k] = v
	}
	return labels
}
