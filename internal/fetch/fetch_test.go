package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
	"time"
)

func fastRetry() RetryConfig {
	return RetryConfig{
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		BackoffFactor:  2.0,
	}
}

func newSiteServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "User-agent: *\nDisallow: /private\n")
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><head><title>Home</title></head><body>
			<a href="/a">A</a><a href="/b#frag">B</a><a href="mailto:x@y.z">mail</a>
		</body></html>`)
	})
	mux.HandleFunc("/private", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "secret")
	})
	mux.HandleFunc("/file.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		fmt.Fprint(w, "%PDF-1.4")
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPFetcherFetch(t *testing.T) {
	srv := newSiteServer(t)
	f := NewHTTPFetcher(WithClient(srv.Client()), WithRetry(fastRetry()))

	page, err := f.Fetch(context.Background(), srv.URL+"/")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if page.Title != "Home" {
		t.Errorf("Expected title Home, got %q", page.Title)
	}

	want := []string{srv.URL + "/a", srv.URL + "/b"}
	if !reflect.DeepEqual(page.Links, want) {
		t.Errorf("Expected links %v, got %v", want, page.Links)
	}
	if page.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", page.StatusCode)
	}
}

func TestHTTPFetcherNotFound(t *testing.T) {
	srv := newSiteServer(t)
	f := NewHTTPFetcher(WithClient(srv.Client()), WithRetry(fastRetry()))

	_, err := f.Fetch(context.Background(), srv.URL+"/missing")
	if !errors.Is(err, ErrStatus) {
		t.Fatalf("Expected ErrStatus, got %v", err)
	}

	var re *RetryableError
	if !errors.As(err, &re) {
		t.Fatalf("Expected RetryableError, got %T", err)
	}
	if re.Attempt != 1 {
		t.Errorf("Expected a 404 not to be retried, got %d attempts", re.Attempt)
	}
}

func TestHTTPFetcherRobots(t *testing.T) {
	srv := newSiteServer(t)

	f := NewHTTPFetcher(WithClient(srv.Client()), WithRetry(fastRetry()))
	if _, err := f.Fetch(context.Background(), srv.URL+"/private"); !errors.Is(err, ErrRobotsDisallowed) {
		t.Errorf("Expected ErrRobotsDisallowed, got %v", err)
	}

	ignoring := NewHTTPFetcher(WithClient(srv.Client()), WithRetry(fastRetry()), WithIgnoreRobots(true))
	if _, err := ignoring.Fetch(context.Background(), srv.URL+"/private"); err != nil {
		t.Errorf("Expected fetch to succeed when ignoring robots, got %v", err)
	}
}

func TestHTTPFetcherNonHTML(t *testing.T) {
	srv := newSiteServer(t)
	f := NewHTTPFetcher(WithClient(srv.Client()), WithRetry(fastRetry()))

	page, err := f.Fetch(context.Background(), srv.URL+"/file.pdf")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(page.Links) != 0 {
		t.Errorf("Expected no links from a PDF, got %v", page.Links)
	}
}

func TestHTTPFetcherMaxBodyBytes(t *testing.T) {
	srv := newSiteServer(t)
	f := NewHTTPFetcher(WithClient(srv.Client()), WithRetry(fastRetry()), WithMaxBodyBytes(4))

	page, err := f.Fetch(context.Background(), srv.URL+"/file.pdf")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if string(page.Body) != "%PDF" {
		t.Errorf("Expected body truncated to 4 bytes, got %q", page.Body)
	}
}

func TestHTTPFetcherRetriesTransientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, "<html><title>ok</title></html>")
	}))
	defer srv.Close()

	f := NewHTTPFetcher(WithClient(srv.Client()), WithRetry(fastRetry()))

	page, err := f.Fetch(context.Background(), srv.URL+"/page")
	if err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if page.Title != "ok" {
		t.Errorf("Expected title ok, got %q", page.Title)
	}
	if hits.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", hits.Load())
	}
}

func TestHTTPFetcherCancelled(t *testing.T) {
	srv := newSiteServer(t)
	f := NewHTTPFetcher(WithClient(srv.Client()), WithRetry(fastRetry()), WithIgnoreRobots(true))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := f.Fetch(ctx, srv.URL+"/"); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestCollyFetcherFetch(t *testing.T) {
	srv := newSiteServer(t)
	f := NewCollyFetcher("", true, 5*time.Second)

	page, err := f.Fetch(context.Background(), srv.URL+"/")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	want := []string{srv.URL + "/a", srv.URL + "/b"}
	if !reflect.DeepEqual(page.Links, want) {
		t.Errorf("Expected links %v, got %v", want, page.Links)
	}

	if _, err := f.Fetch(context.Background(), srv.URL+"/missing"); !errors.Is(err, ErrStatus) {
		t.Errorf("Expected ErrStatus for 404, got %v", err)
	}

	// Revisiting the same URL must work
	if _, err := f.Fetch(context.Background(), srv.URL+"/"); err != nil {
		t.Errorf("Expected revisit to succeed, got %v", err)
	}
}

func TestDiscoverSitemap(t *testing.T) {
	var srvURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "User-agent: *\nSitemap: %s/extra.xml\n", srvURL)
	})
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<?xml version="1.0"?><sitemapindex><sitemap><loc>%s/pages.xml</loc></sitemap></sitemapindex>`, srvURL)
	})
	mux.HandleFunc("/pages.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<?xml version="1.0"?><urlset><url><loc>%s/one</loc></url><url><loc>%s/two</loc></url></urlset>`, srvURL, srvURL)
	})
	mux.HandleFunc("/extra.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<?xml version="1.0"?><urlset><url><loc>%s/two</loc></url><url><loc>%s/three</loc></url></urlset>`, srvURL, srvURL)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	srvURL = srv.URL

	urls, err := DiscoverSitemap(context.Background(), srv.Client(), srv.URL+"/")
	if err != nil {
		t.Fatalf("DiscoverSitemap failed: %v", err)
	}

	// robots.txt sitemaps are read before nested index entries
	want := []string{srv.URL + "/two", srv.URL + "/three", srv.URL + "/one"}
	if !reflect.DeepEqual(urls, want) {
		t.Errorf("Expected %v, got %v", want, urls)
	}
}
