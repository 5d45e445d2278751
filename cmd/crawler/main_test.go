package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alvmarrod/contact-weaver/internal/config"
	"github.com/alvmarrod/contact-weaver/internal/metrics"
	"github.com/alvmarrod/contact-weaver/internal/report"
	"github.com/alvmarrod/contact-weaver/internal/storage"
)

func TestNewRootCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()

	if cmd.Version == "" {
		t.Error("expected non-empty version")
	}

	t.Run("has verbose flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.PersistentFlags().Lookup("verbose")
		if flag == nil {
			t.Fatal("expected verbose flag")
		}
		if flag.Shorthand != "v" || flag.DefValue != "false" {
			t.Errorf("unexpected verbose flag %+v", flag)
		}
	})

	t.Run("config defaults to input.json", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("config")
		if flag == nil || flag.DefValue != defaultConfigPath {
			t.Errorf("unexpected config flag %+v", flag)
		}
	})

	t.Run("has crawl flags", func(t *testing.T) {
		t.Parallel()
		for _, name := range []string{"url", "urls", "max-pages", "concurrency", "renderer", "social", "jsonl", "markdown"} {
			if cmd.Flags().Lookup(name) == nil {
				t.Errorf("expected flag %q", name)
			}
		}
	})
}

func writeInput(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBuildConfig(t *testing.T) {
	t.Parallel()

	t.Run("flags override the input file", func(t *testing.T) {
		t.Parallel()
		path := writeInput(t, `{"url": "http://a.test", "maxPagesPerCrawl": 5, "extractSocial": true}`)

		cmd := NewRootCmd()
		if err := cmd.ParseFlags([]string{"--config", path, "--max-pages", "7", "--concurrency", "3"}); err != nil {
			t.Fatal(err)
		}
		cfg, err := buildConfig(cmd, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.URL != "http://a.test" || cfg.MaxPagesPerCrawl != 7 || cfg.MaxConcurrency != 3 || !cfg.ExtractSocial {
			t.Errorf("unexpected config %+v", cfg)
		}
	})

	t.Run("positional urls replace file targets", func(t *testing.T) {
		t.Parallel()
		path := writeInput(t, `{"url": "http://a.test"}`)

		cmd := NewRootCmd()
		if err := cmd.ParseFlags([]string{"--config", path}); err != nil {
			t.Fatal(err)
		}
		cfg, err := buildConfig(cmd, []string{"http://b.test", "http://c.test"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		targets := cfg.Targets()
		if len(targets) != 2 || targets[0] != "http://b.test" {
			t.Errorf("unexpected targets %v", targets)
		}
	})

	t.Run("missing default file falls back to flags", func(t *testing.T) {
		t.Parallel()
		cmd := NewRootCmd()
		if err := cmd.ParseFlags([]string{"--url", "http://a.test"}); err != nil {
			t.Fatal(err)
		}

		cfg, err := buildConfig(cmd, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.URL != "http://a.test" || cfg.MaxPagesPerCrawl != config.DefaultMaxPagesPerCrawl {
			t.Errorf("unexpected config %+v", cfg)
		}
	})

	t.Run("missing explicit file is an error", func(t *testing.T) {
		t.Parallel()
		cmd := NewRootCmd()
		if err := cmd.ParseFlags([]string{"--config", filepath.Join(t.TempDir(), "nope.json")}); err != nil {
			t.Fatal(err)
		}
		if _, err := buildConfig(cmd, nil); !errors.Is(err, config.ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("conflicting targets fail validation", func(t *testing.T) {
		t.Parallel()
		path := writeInput(t, `{"url": "http://a.test", "urls": ["http://b.test"]}`)
		cmd := NewRootCmd()
		if err := cmd.ParseFlags([]string{"--config", path}); err != nil {
			t.Fatal(err)
		}
		_, err := buildConfig(cmd, nil)
		if !errors.Is(err, config.ErrInputValidation) || !errors.Is(err, config.ErrConflictingTargets) {
			t.Errorf("expected a conflicting targets validation error, got %v", err)
		}
	})

	t.Run("invalid renderer fails validation", func(t *testing.T) {
		t.Parallel()
		path := writeInput(t, `{"url": "http://a.test"}`)

		cmd := NewRootCmd()
		if err := cmd.ParseFlags([]string{"--config", path, "--renderer", "lynx"}); err != nil {
			t.Fatal(err)
		}
		if _, err := buildConfig(cmd, nil); !errors.Is(err, config.ErrInvalidRenderer) {
			t.Errorf("expected ErrInvalidRenderer, got %v", err)
		}
	})
}

func newContactSite(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			fmt.Fprint(w, `<html><body>Sales: sales@site.test <a href="/contact">Contact</a></body></html>`)
		case "/contact":
			fmt.Fprint(w, `<html><body><a href="mailto:help@site.test">Help</a> sales@site.test</body></html>`)
		default:
			http.NotFound(w, r)
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRun(t *testing.T) {
	t.Parallel()

	srv := newContactSite(t)
	dir := t.TempDir()

	cfg := config.Default()
	cfg.URLs = []string{srv.URL, "ftp://invalid.test"}
	cfg.NavigationTimeoutMs = 5000
	cfg.WaitForContentMs = 0
	cfg.TargetConcurrency = 2
	cfg.DBPath = filepath.Join(dir, "contacts.db")
	cfg.JSONLPath = filepath.Join(dir, "dataset.jsonl")
	cfg.MetricsPath = filepath.Join(dir, "metrics.json")
	cfg.MarkdownPath = filepath.Join(dir, "report.md")
	if err := cfg.Finalize(); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	final, err := run(context.Background(), &cfg, metrics.NewTracker(), &out)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if final.TotalURLs != 2 || final.TotalEmails != 2 {
		t.Errorf("unexpected final summary %+v", final)
	}
	if final.Results[0].URL != srv.URL || final.Results[0].Status != storage.StatusSuccess {
		t.Errorf("unexpected first result %+v", final.Results[0])
	}
	if final.Results[1].Status != storage.StatusFailed {
		t.Errorf("expected the ftp target to fail, got %+v", final.Results[1])
	}

	var printed storage.FinalSummary
	if err := json.Unmarshal(out.Bytes(), &printed); err != nil {
		t.Fatalf("expected the final summary on stdout: %v", err)
	}
	if printed.TotalEmails != 2 {
		t.Errorf("unexpected printed summary %+v", printed)
	}

	t.Run("dataset ends with the final record", func(t *testing.T) {
		f, err := os.Open(cfg.JSONLPath)
		if err != nil {
			t.Fatal(err)
		}
		defer f.Close()

		var kinds []string
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			var line struct {
				Kind string `json:"kind"`
			}
			if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
				t.Fatalf("invalid line %q: %v", scanner.Text(), err)
			}
			kinds = append(kinds, line.Kind)
		}
		if len(kinds) != 5 {
			t.Fatalf("expected 2 email, 2 target and 1 final record, got %v", kinds)
		}
		if kinds[len(kinds)-1] != string(storage.KindFinal) {
			t.Errorf("expected the final record last, got %v", kinds)
		}
	})

	t.Run("side files are written", func(t *testing.T) {
		for _, path := range []string{cfg.DBPath, cfg.MetricsPath, cfg.MarkdownPath} {
			if _, err := os.Stat(path); err != nil {
				t.Errorf("expected %s: %v", path, err)
			}
		}
		md, err := os.ReadFile(cfg.MarkdownPath)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(md), "help@site.test") {
			t.Errorf("report is missing emails:\n%s", md)
		}
	})
}

func TestRunCancelledBeforeStart(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := config.Default()
	cfg.URLs = []string{"http://a.test", "http://b.test"}
	cfg.DBPath = ""
	cfg.MetricsPath = filepath.Join(dir, "metrics.json")
	if err := cfg.Finalize(); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	final, err := run(ctx, &cfg, metrics.NewTracker(), &bytes.Buffer{})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if final.TotalURLs != 2 {
		t.Errorf("expected both supplied targets to be counted, got %+v", final)
	}
	for _, r := range final.Results {
		if r.Status != storage.StatusFailed || r.Error != report.NotCrawled {
			t.Errorf("expected %s to be reported as not crawled, got %+v", r.URL, r)
		}
	}

	data, err := os.ReadFile(cfg.MetricsPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"signal"`) {
		t.Errorf("expected signal termination reason, got %s", data)
	}
}
