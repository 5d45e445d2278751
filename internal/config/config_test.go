package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()

	if cfg.MaxConcurrency != 1 {
		t.Errorf("expected MaxConcurrency 1, got %d", cfg.MaxConcurrency)
	}
	if cfg.MaxPagesPerCrawl != DefaultMaxPagesPerCrawl {
		t.Errorf("expected MaxPagesPerCrawl %d, got %d", DefaultMaxPagesPerCrawl, cfg.MaxPagesPerCrawl)
	}
	if !cfg.Headless {
		t.Error("expected Headless to default to true")
	}
	if cfg.HTMLExtraction != HTMLExtractionFallback {
		t.Errorf("expected fallback extraction policy, got %q", cfg.HTMLExtraction)
	}
	if cfg.Renderer != RendererHTTP {
		t.Errorf("expected http renderer, got %q", cfg.Renderer)
	}
	if !strings.HasPrefix(cfg.DBPath, DataDir()) {
		t.Errorf("expected DBPath under %s, got %s", DataDir(), cfg.DBPath)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	validConfig := func() *Config {
		cfg := Default()
		cfg.URL = "http://example-biz.test"
		return &cfg
	}

	t.Run("single url is valid", func(t *testing.T) {
		t.Parallel()
		if err := validConfig().Validate(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("url list is valid", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.URL = ""
		cfg.URLs = []string{"http://a.test", "http://b.test"}
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	cases := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"both url and urls", func(c *Config) { c.URLs = []string{"http://b.test"} }, ErrConflictingTargets},
		{"neither url nor urls", func(c *Config) { c.URL = "" }, ErrNoTarget},
		{"blank url is no target", func(c *Config) { c.URL = "   " }, ErrNoTarget},
		{"blank entry in urls", func(c *Config) { c.URL = ""; c.URLs = []string{"http://a.test", ""} }, ErrEmptyTarget},
		{"zero concurrency", func(c *Config) { c.MaxConcurrency = 0 }, ErrInvalidConcurrency},
		{"negative max pages", func(c *Config) { c.MaxPagesPerCrawl = -1 }, ErrInvalidMaxPages},
		{"short navigation timeout", func(c *Config) { c.NavigationTimeoutMs = 500 }, ErrInvalidTimeout},
		{"wait longer than navigation", func(c *Config) { c.WaitForContentMs = c.NavigationTimeoutMs + 1 }, ErrInvalidWaitTimeout},
		{"negative request delay", func(c *Config) { c.RequestDelayMs = -1 }, ErrInvalidRequestDelay},
		{"unknown extraction policy", func(c *Config) { c.HTMLExtraction = "sometimes" }, ErrInvalidHTMLExtraction},
		{"unknown renderer", func(c *Config) { c.Renderer = "telnet" }, ErrInvalidRenderer},
		{"zero target concurrency", func(c *Config) { c.TargetConcurrency = 0 }, ErrInvalidTargetConcurrency},
		{"kafka topic without broker", func(c *Config) { c.KafkaTopic = "records" }, ErrIncompleteKafka},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tc.mutate(cfg)

			err := cfg.Validate()
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if !errors.Is(err, ErrInputValidation) {
				t.Errorf("expected error to wrap ErrInputValidation, got %v", err)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	write := func(t *testing.T, body string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "input.json")
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatalf("failed to write input: %v", err)
		}
		return path
	}

	t.Run("decodes over defaults", func(t *testing.T) {
		t.Parallel()
		path := write(t, `{"url": "https://site.test", "maxPagesPerCrawl": 3, "headless": false}`)

		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.MaxPagesPerCrawl != 3 {
			t.Errorf("expected 3 pages, got %d", cfg.MaxPagesPerCrawl)
		}
		if cfg.Headless {
			t.Error("expected headless false from input")
		}
		if cfg.NavigationTimeoutMs != DefaultNavigationTimeoutMs {
			t.Errorf("expected default navigation timeout, got %d", cfg.NavigationTimeoutMs)
		}
		if got := cfg.Targets(); len(got) != 1 || got[0] != "https://site.test" {
			t.Errorf("unexpected targets %v", got)
		}
	})

	t.Run("explicit zero falls back to default", func(t *testing.T) {
		t.Parallel()
		path := write(t, `{"urls": ["https://a.test"], "maxConcurrency": 0}`)

		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.MaxConcurrency != DefaultMaxConcurrency {
			t.Errorf("expected default concurrency, got %d", cfg.MaxConcurrency)
		}
	})

	t.Run("both url and urls fails validation", func(t *testing.T) {
		t.Parallel()
		path := write(t, `{"url": "https://a.test", "urls": ["https://b.test"]}`)

		_, err := LoadConfig(path)
		if !errors.Is(err, ErrConflictingTargets) {
			t.Fatalf("expected ErrConflictingTargets, got %v", err)
		}
	})

	t.Run("unknown field is an input error", func(t *testing.T) {
		t.Parallel()
		path := write(t, `{"url": "https://a.test", "maxDepth": 4}`)

		_, err := LoadConfig(path)
		if !errors.Is(err, ErrInputValidation) {
			t.Fatalf("expected ErrInputValidation, got %v", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Fatalf("expected ErrConfigNotFound, got %v", err)
		}
	})
}

func TestLoadDenylists(t *testing.T) {
	t.Parallel()

	t.Run("empty path returns defaults", func(t *testing.T) {
		t.Parallel()
		got, err := LoadDenylists("")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got.Domains) != len(DefaultDenylists().Domains) {
			t.Errorf("expected default domains, got %v", got.Domains)
		}
	})

	t.Run("file extends defaults", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "deny.yaml")
		body := "domains:\n  - tracker.test\nlocalPrefixes:\n  - bounce\n"
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}

		got, err := LoadDenylists(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Domains[len(got.Domains)-1] != "tracker.test" {
			t.Errorf("expected tracker.test appended, got %v", got.Domains)
		}
		if len(got.LocalPrefixes) != len(DefaultDenylists().LocalPrefixes)+1 {
			t.Errorf("expected one extra prefix, got %v", got.LocalPrefixes)
		}
	})

	t.Run("replaceDefaults drops built-ins", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "deny.yaml")
		body := "replaceDefaults: true\ndomains: [only.test]\n"
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}

		got, err := LoadDenylists(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got.Domains) != 1 || got.Domains[0] != "only.test" {
			t.Errorf("expected only.test, got %v", got.Domains)
		}
		if len(got.LocalPrefixes) != 0 {
			t.Errorf("expected no prefixes, got %v", got.LocalPrefixes)
		}
	})
}
