package crawler

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// ScopeMode selects how far the allow-list pattern reaches
type ScopeMode string

const (
	// ScopeRecursive checks the pattern on every link at every level
	ScopeRecursive ScopeMode = "recursive"
	// ScopeSeed checks the pattern only on links found on the seed page.
	// Deeper links are limited by the same-site rule alone.
	ScopeSeed ScopeMode = "seed"
)

// ParseScopeMode parses a scope mode name
func ParseScopeMode(s string) (ScopeMode, error) {
	switch ScopeMode(strings.ToLower(s)) {
	case "", ScopeRecursive:
		return ScopeRecursive, nil
	case ScopeSeed:
		return ScopeSeed, nil
	}
	return "", fmt.Errorf("unknown filter scope %q (want recursive or seed)", s)
}

// Scope decides which outbound links a crawl may follow
type Scope struct {
	seedSite string
	pattern  string
	sameSite bool
	mode     ScopeMode
}

// NewScope builds the scope for a crawl rooted at seed
func NewScope(seed, pattern string, sameSite bool, mode ScopeMode) (*Scope, error) {
	u, err := url.Parse(seed)
	if err != nil || u.Hostname() == "" {
		return nil, fmt.Errorf("invalid seed URL %q", seed)
	}
	if mode == "" {
		mode = ScopeRecursive
	}
	return &Scope{
		seedSite: registrableDomain(u.Hostname()),
		pattern:  pattern,
		sameSite: sameSite,
		mode:     mode,
	}, nil
}

// Allows reports whether link, found on a page at fromLevel, is in scope.
// The same-site rule always applies at every level.
func (s *Scope) Allows(link string, fromLevel int) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	if s.sameSite && registrableDomain(u.Hostname()) != s.seedSite {
		return false
	}

	if s.pattern == "" {
		return true
	}
	if s.mode == ScopeSeed && fromLevel > 1 {
		return true
	}
	return strings.Contains(link, s.pattern)
}

// registrableDomain returns the eTLD+1 of host, or host itself for IPs,
// single-label names and anything the public suffix list rejects.
func registrableDomain(host string) string {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if net.ParseIP(host) != nil || !strings.Contains(host, ".") {
		return host
	}
	site, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return site
}
