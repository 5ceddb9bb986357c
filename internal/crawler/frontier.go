package crawler

import "sync"

// Frontier remembers every URL a traversal has admitted. Membership is exact:
// a URL is admitted at most once and a new URL is never refused.
type Frontier struct {
	mu  sync.Mutex
	set map[string]struct{}
}

// NewFrontier creates an empty frontier
func NewFrontier() *Frontier {
	return &Frontier{
		set: make(map[string]struct{}),
	}
}

// Add admits u and reports whether it had not been seen before
func (f *Frontier) Add(u string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.set[u]; ok {
		return false
	}
	f.set[u] = struct{}{}
	return true
}

// Size returns the number of admitted URLs
func (f *Frontier) Size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.set)
}
