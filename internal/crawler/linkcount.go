package crawler

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

const (
	// Sizing for the outbound links of a single bounded crawl
	bloomEstimatedLinks = 100_000
	bloomFalsePositive  = 0.01
)

// linkCounter estimates how many distinct outbound links a crawl saw,
// including links the scope rejected. Only bloom bits are kept, so the
// estimate can undercount by the false-positive rate.
type linkCounter struct {
	mu     sync.Mutex
	filter *bloom.BloomFilter
	count  int
}

func newLinkCounter() *linkCounter {
	return &linkCounter{
		filter: bloom.NewWithEstimates(bloomEstimatedLinks, bloomFalsePositive),
	}
}

// Observe records u and reports whether it was new to the filter
func (lc *linkCounter) Observe(u string) bool {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	if lc.filter.TestAndAdd([]byte(u)) {
		return false
	}
	lc.count++
	return true
}

// Count returns the estimated number of distinct links observed
func (lc *linkCounter) Count() int {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.count
}
