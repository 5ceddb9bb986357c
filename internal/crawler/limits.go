package crawler

// Crawl bounds. Values outside a range fall back to its default.
const (
	MinDepth     = 1
	MaxDepth     = 10
	DefaultDepth = 1

	MinConcurrency     = 1
	MaxConcurrency     = 5
	DefaultConcurrency = 5
)

// NormalizeDepth returns d, or DefaultDepth when d is out of range
func NormalizeDepth(d int) int {
	if d < MinDepth || d > MaxDepth {
		return DefaultDepth
	}
	return d
}

// NormalizeConcurrency returns n, or DefaultConcurrency when n is out of range
func NormalizeConcurrency(n int) int {
	if n < MinConcurrency || n > MaxConcurrency {
		return DefaultConcurrency
	}
	return n
}
