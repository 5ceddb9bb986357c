package crawler

import (
	"fmt"
	"sync"
	"testing"
)

func TestFrontierAdd(t *testing.T) {
	f := NewFrontier()

	if !f.Add("https://example.com") {
		t.Error("Expected first Add to succeed")
	}
	if f.Add("https://example.com") {
		t.Error("Expected duplicate Add to fail")
	}
	// No canonicalization: a trailing slash is a different URL
	if !f.Add("https://example.com/") {
		t.Error("Expected URL with trailing slash to be new")
	}
	if f.Size() != 2 {
		t.Errorf("Expected size 2, got %d", f.Size())
	}
}

func TestFrontierConcurrentAdd(t *testing.T) {
	f := NewFrontier()

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				if f.Add(fmt.Sprintf("https://example.com/%d", i)) {
					mu.Lock()
					admitted++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	if admitted != 500 {
		t.Errorf("Expected each URL admitted exactly once (500), got %d", admitted)
	}
}

func TestScopeAllows(t *testing.T) {
	tests := []struct {
		name     string
		seed     string
		pattern  string
		sameSite bool
		mode     ScopeMode
		link     string
		level    int
		want     bool
	}{
		{"same host", "https://example.com", "", true, ScopeRecursive, "https://example.com/a", 1, true},
		{"subdomain", "https://example.com", "", true, ScopeRecursive, "https://www.example.com/a", 1, true},
		{"other site", "https://example.com", "", true, ScopeRecursive, "https://example.org/a", 1, false},
		{"co.uk suffix", "https://a.example.co.uk", "", true, ScopeRecursive, "https://b.example.co.uk", 1, true},
		{"co.uk other", "https://a.example.co.uk", "", true, ScopeRecursive, "https://other.co.uk", 1, false},
		{"ip seed", "http://127.0.0.1:8080", "", true, ScopeRecursive, "http://127.0.0.1:8080/x", 1, true},
		{"non http", "https://example.com", "", false, ScopeRecursive, "ftp://example.com/a", 1, false},
		{"pattern match", "https://example.com", "/docs", true, ScopeRecursive, "https://example.com/docs/x", 2, true},
		{"pattern miss", "https://example.com", "/docs", true, ScopeRecursive, "https://example.com/blog", 2, false},
		{"seed scope first level", "https://example.com", "/docs", true, ScopeSeed, "https://example.com/blog", 1, false},
		{"seed scope deeper", "https://example.com", "/docs", true, ScopeSeed, "https://example.com/blog", 2, true},
		{"seed scope still same site", "https://example.com", "/docs", true, ScopeSeed, "https://other.org/docs", 2, false},
		{"seed scope cross site first level", "https://example.com", "/docs", false, ScopeSeed, "https://other.org/x", 1, false},
		{"seed scope cross site deeper", "https://example.com", "/docs", false, ScopeSeed, "https://other.org/x", 2, true},
		{"recursive cross site deeper", "https://example.com", "/docs", false, ScopeRecursive, "https://other.org/x", 2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewScope(tt.seed, tt.pattern, tt.sameSite, tt.mode)
			if err != nil {
				t.Fatalf("NewScope failed: %v", err)
			}
			if got := s.Allows(tt.link, tt.level); got != tt.want {
				t.Errorf("Allows(%q, %d) = %v, want %v", tt.link, tt.level, got, tt.want)
			}
		})
	}
}

func TestParseScopeMode(t *testing.T) {
	if m, err := ParseScopeMode(""); err != nil || m != ScopeRecursive {
		t.Errorf("Expected empty to default to recursive, got %q %v", m, err)
	}
	if m, err := ParseScopeMode("SEED"); err != nil || m != ScopeSeed {
		t.Errorf("Expected seed, got %q %v", m, err)
	}
	if _, err := ParseScopeMode("everywhere"); err == nil {
		t.Error("Expected an error for an unknown mode")
	}
}

func TestLinkCounterObserve(t *testing.T) {
	lc := newLinkCounter()

	if !lc.Observe("https://example.com/a") {
		t.Error("Expected the first observation to be new")
	}
	if lc.Observe("https://example.com/a") {
		t.Error("Expected a repeat to be known")
	}
	lc.Observe("https://example.com/b")

	if lc.Count() != 2 {
		t.Errorf("Expected count 2, got %d", lc.Count())
	}
}
