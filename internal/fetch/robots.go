package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
)

// RobotsChecker answers robots.txt questions, caching one file per origin
type RobotsChecker struct {
	client    *http.Client
	userAgent string
	agent     string

	mu    sync.Mutex
	cache map[string]*robotstxt.RobotsData
}

// NewRobotsChecker creates a checker that fetches robots.txt with client
func NewRobotsChecker(client *http.Client, userAgent, agent string) *RobotsChecker {
	return &RobotsChecker{
		client:    client,
		userAgent: userAgent,
		agent:     agent,
		cache:     make(map[string]*robotstxt.RobotsData),
	}
}

// Allowed reports whether the agent may fetch rawURL. Unreachable or
// unparsable robots.txt files allow everything.
func (rc *RobotsChecker) Allowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	robots := rc.load(ctx, u)
	if robots == nil {
		return true
	}
	return robots.TestAgent(u.RequestURI(), rc.agent)
}

func (rc *RobotsChecker) load(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	origin := u.Scheme + "://" + u.Host

	rc.mu.Lock()
	if data, ok := rc.cache[origin]; ok {
		rc.mu.Unlock()
		return data
	}
	rc.mu.Unlock()

	data, err := rc.fetch(ctx, origin+"/robots.txt")
	if err != nil {
		// not cached, a later URL on this origin retries
		return nil
	}

	rc.mu.Lock()
	rc.cache[origin] = data
	rc.mu.Unlock()
	return data
}

func (rc *RobotsChecker) fetch(ctx context.Context, robotsURL string) (*robotstxt.RobotsData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", rc.userAgent)

	resp, err := rc.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch robots.txt: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return nil, fmt.Errorf("failed to read robots.txt: %w", err)
	}

	return robotstxt.FromStatusAndBytes(resp.StatusCode, body)
}
