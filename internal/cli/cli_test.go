package cli

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/BenjaminSRussell/crawlaudit/internal/config"
	"github.com/BenjaminSRussell/crawlaudit/internal/pipeline"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// resetFlags restores every flag to its default so tests do not leak state
// through the package-level command tree.
func resetFlags(t *testing.T) {
	t.Helper()
	for _, cmd := range append([]*cobra.Command{rootCmd}, rootCmd.Commands()...) {
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			if err := f.Value.Set(f.DefValue); err != nil {
				t.Fatalf("Failed to reset --%s: %v", f.Name, err)
			}
			f.Changed = false
		})
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(t)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)

	err := Execute()
	return out.String(), err
}

func testSite(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		switch r.URL.Path {
		case "/":
			fmt.Fprint(w, `<html><head><title>Home</title></head><body><a href="/a">A</a><a href="/b">B</a></body></html>`)
		case "/a", "/b":
			fmt.Fprintf(w, `<html><head><title>%s</title></head><body></body></html>`, r.URL.Path)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestPositionalInt(t *testing.T) {
	tests := []struct {
		in   string
		def  int
		want int
	}{
		{"3", 1, 3},
		{"0", 1, 0},
		{"abc", 1, 1},
		{"", 5, 5},
		{"2.5", 5, 5},
	}

	for _, tt := range tests {
		if got := positionalInt(tt.in, tt.def); got != tt.want {
			t.Errorf("positionalInt(%q, %d) = %d, want %d", tt.in, tt.def, got, tt.want)
		}
	}
}

func TestBuildConfigPrecedence(t *testing.T) {
	resetFlags(t)

	path := filepath.Join(t.TempDir(), "crawlaudit.yaml")
	content := "engine: colly\naudit_engine: static\ndepth: 4\noutput: ./from-file\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if err := rootCmd.ParseFlags([]string{"--config", path, "--output", "./from-flag"}); err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}

	cfg, err := buildConfig(rootCmd, []string{"example.com", "abc", "3"})
	if err != nil {
		t.Fatalf("buildConfig failed: %v", err)
	}

	if cfg.Engine != config.EngineColly || cfg.AuditEngine != config.AuditEngineStatic {
		t.Errorf("Expected values from the file, got %+v", cfg)
	}
	if cfg.Output != "./from-flag" {
		t.Errorf("Expected the flag to override the file, got %s", cfg.Output)
	}
	// A non-numeric positional depth falls back to the default, not the file
	if cfg.Depth != 1 {
		t.Errorf("Expected depth 1, got %d", cfg.Depth)
	}
	if cfg.Concurrency != 3 {
		t.Errorf("Expected concurrency 3, got %d", cfg.Concurrency)
	}
	if cfg.Seed != "example.com" {
		t.Errorf("Expected seed example.com, got %s", cfg.Seed)
	}
}

func TestBuildConfigOutOfRange(t *testing.T) {
	resetFlags(t)

	cfg, err := buildConfig(rootCmd, []string{"example.com", "11", "9"})
	if err != nil {
		t.Fatalf("buildConfig failed: %v", err)
	}
	if cfg.Depth != 1 || cfg.Concurrency != 5 {
		t.Errorf("Expected defaults 1 and 5, got %d and %d", cfg.Depth, cfg.Concurrency)
	}
}

func TestRootMissingSeed(t *testing.T) {
	_, err := execute(t)
	if !errors.Is(err, pipeline.ErrInvalidSeed) {
		t.Errorf("Expected ErrInvalidSeed, got %v", err)
	}
}

func TestRootInvalidSeedLeavesOutput(t *testing.T) {
	output := t.TempDir()
	marker := filepath.Join(output, "keep.txt")
	if err := os.WriteFile(marker, []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	out, err := execute(t, "not a url", "--output", output)
	if !errors.Is(err, pipeline.ErrInvalidSeed) {
		t.Fatalf("Expected ErrInvalidSeed, got %v", err)
	}
	if !strings.Contains(out, "invalid seed URL") {
		t.Errorf("Expected the error to be printed, got %q", out)
	}
	if _, err := os.Stat(marker); err != nil {
		t.Error("Expected the output directory to be untouched")
	}
}

func TestRootInvalidFlag(t *testing.T) {
	_, err := execute(t, "example.com", "--output", t.TempDir(), "--audit-scope", "everything")
	if !errors.Is(err, config.ErrInvalidAuditScope) {
		t.Errorf("Expected ErrInvalidAuditScope, got %v", err)
	}
}

func TestRootRunsPipeline(t *testing.T) {
	server := testSite(t)
	output := filepath.Join(t.TempDir(), "output")
	db := filepath.Join(t.TempDir(), "history.db")

	out, err := execute(t, server.URL, "1", "2",
		"--output", output,
		"--audit-engine", "static",
		"--ignore-robots",
		"--log-level", "error",
		"--history",
		"--history-db", db,
	)
	if err != nil {
		t.Fatalf("Execute failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Crawled: 1, Discovered: 2, Audited: 2, Failed: 0") {
		t.Errorf("Unexpected output: %q", out)
	}
	if _, err := os.Stat(filepath.Join(output, "index.html")); err != nil {
		t.Errorf("Expected index.html: %v", err)
	}

	out, err = execute(t, "history", "--history-db", db)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if !strings.Contains(out, server.URL) || !strings.Contains(out, "completed") {
		t.Errorf("Expected the run in the history listing:\n%s", out)
	}

	out, err = execute(t, "history", "1", "--history-db", db)
	if err != nil {
		t.Fatalf("history 1 failed: %v", err)
	}
	if !strings.Contains(out, "Run 1") {
		t.Errorf("Expected run details:\n%s", out)
	}
}

func TestRootUnreachableSeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	// A failed seed fetch lands in discovered, so it is still audited
	out, err := execute(t, server.URL,
		"--output", filepath.Join(t.TempDir(), "output"),
		"--audit-engine", "static",
		"--ignore-robots",
		"--max-retries", "0",
		"--audit-timeout", time.Second.String(),
		"--log-level", "error",
	)
	if err != nil {
		t.Fatalf("Execute failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Audited: 0, Failed: 1") {
		t.Errorf("Expected the unreachable seed to be audited and fail, got %q", out)
	}
}

func TestReindexCommand(t *testing.T) {
	output := t.TempDir()
	for _, dir := range []string{"https...example.com.a", "https...example.com.b"} {
		if err := os.MkdirAll(filepath.Join(output, dir), 0755); err != nil {
			t.Fatalf("MkdirAll failed: %v", err)
		}
	}
	data := `{"url": "https://example.com/a"}`
	if err := os.WriteFile(filepath.Join(output, "https...example.com.a", "auditData.json"), []byte(data), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(output, "https...example.com.b", "auditData.json"), []byte("{broken"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	out, err := execute(t, "reindex", "--output", output)
	if err != nil {
		t.Fatalf("reindex failed: %v", err)
	}
	if !strings.Contains(out, "Indexed 2 report directories") {
		t.Errorf("Unexpected output: %q", out)
	}
	if !strings.Contains(out, "skipping label for https...example.com.b") {
		t.Errorf("Expected a warning for the unreadable report data: %q", out)
	}

	html, err := os.ReadFile(filepath.Join(output, "index.html"))
	if err != nil {
		t.Fatalf("Expected index.html: %v", err)
	}
	if !strings.Contains(string(html), "https://example.com/a") {
		t.Error("Expected the label recovered from auditData.json")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	logger, err := newLogger("debug", "json", &buf)
	if err != nil {
		t.Fatalf("newLogger failed: %v", err)
	}
	if logger.GetLevel() != logrus.DebugLevel {
		t.Errorf("Expected debug level, got %v", logger.GetLevel())
	}
	logger.WithField("url", "https://example.com").Info("hello")
	if !strings.Contains(buf.String(), `"url":"https://example.com"`) {
		t.Errorf("Expected JSON output, got %q", buf.String())
	}

	if _, err := newLogger("loud", "text", &buf); err == nil {
		t.Error("Expected an error for an unknown level")
	}
	if _, err := newLogger("info", "xml", &buf); err == nil {
		t.Error("Expected an error for an unknown format")
	}
}
