package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// AppName names the XDG data directory.
const AppName = "contact-weaver"

// HTML extraction policies.
const (
	HTMLExtractionFallback = "fallback"
	HTMLExtractionAlways   = "always"
)

// Renderer kinds.
const (
	RendererHTTP    = "http"
	RendererBrowser = "browser"
)

// Defaults for the crawl input surface.
const (
	DefaultMaxConcurrency      = 1
	DefaultMaxPagesPerCrawl    = 50
	DefaultNavigationTimeoutMs = 30000
	DefaultWaitForContentMs    = 5000
	DefaultTargetConcurrency   = 1
	DefaultUserAgent           = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// DefaultSkipExtensions are link extensions never worth rendering for contact data.
var DefaultSkipExtensions = []string{
	".jpg", ".jpeg", ".png", ".gif", ".svg", ".webp", ".ico", ".bmp",
	".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx",
	".zip", ".rar", ".gz", ".tar", ".7z", ".exe", ".dmg",
	".mp3", ".mp4", ".avi", ".mov", ".wav",
	".css", ".js", ".json", ".xml", ".rss",
	".woff", ".woff2", ".ttf", ".eot",
}

// DefaultPriorityPatterns mark paths likely to carry contact details.
var DefaultPriorityPatterns = []string{
	"contact", "about", "team", "staff", "people", "impressum", "imprint", "support",
}

// Config holds the crawl input and runtime options
type Config struct {
	URL                 string   `json:"url"`
	URLs                []string `json:"urls"`
	MaxConcurrency      int      `json:"maxConcurrency"`
	MaxPagesPerCrawl    int      `json:"maxPagesPerCrawl"`
	Headless            bool     `json:"headless"`
	NavigationTimeoutMs int      `json:"navigationTimeoutMs"`
	WaitForContentMs    int      `json:"waitForContentMs"`
	RequestDelayMs      int      `json:"requestDelayMs"`
	HTMLExtraction      string   `json:"htmlExtraction"`
	ExtractSocial       bool     `json:"extractSocial"`
	Renderer            string   `json:"renderer"`
	TargetConcurrency   int      `json:"targetConcurrency"`
	RespectRobotsTxt    bool     `json:"respectRobotsTxt"`
	UserAgent           string   `json:"userAgent"`
	DenylistFile        string   `json:"denylistFile"`
	PriorityPatterns    []string `json:"priorityPatterns"`
	SkipExtensions      []string `json:"skipExtensions"`

	// Output sinks
	DBPath       string `json:"dbPath"`
	JSONLPath    string `json:"jsonlPath"`
	MetricsPath  string `json:"metricsPath"`
	MarkdownPath string `json:"markdownPath"`
	KafkaBroker  string `json:"kafkaBroker"`
	KafkaTopic   string `json:"kafkaTopic"`
	RedisAddr    string `json:"redisAddr"`
	RedisKey     string `json:"redisKey"`
}

// Default returns a Config populated with every default value.
func Default() Config {
	return Config{
		MaxConcurrency:      DefaultMaxConcurrency,
		MaxPagesPerCrawl:    DefaultMaxPagesPerCrawl,
		Headless:            true,
		NavigationTimeoutMs: DefaultNavigationTimeoutMs,
		WaitForContentMs:    DefaultWaitForContentMs,
		HTMLExtraction:      HTMLExtractionFallback,
		Renderer:            RendererHTTP,
		TargetConcurrency:   DefaultTargetConcurrency,
		UserAgent:           DefaultUserAgent,
		PriorityPatterns:    append([]string(nil), DefaultPriorityPatterns...),
		SkipExtensions:      append([]string(nil), DefaultSkipExtensions...),
		DBPath:              filepath.Join(DataDir(), "contacts.db"),
		MetricsPath:         filepath.Join(DataDir(), "metrics.json"),
		RedisKey:            AppName + ":records",
	}
}

// DataDir is the XDG data directory used for default output paths.
func DataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// LoadConfig reads and validates configuration from a JSON file
func LoadConfig(path string) (*Config, error) {
	cfg, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ReadFile decodes a JSON input file over the defaults without validating it.
// A missing file yields ErrConfigNotFound.
func ReadFile(path string) (*Config, error) {
	file, err := os.Open(path) //nolint:gosec // user-supplied input path
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return Decode(file)
}

// Decode reads a JSON input document over the defaults.
func Decode(r io.Reader) (*Config, error) {
	cfg := Default()
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config JSON: %v", ErrInputValidation, err)
	}
	return &cfg, nil
}

// Finalize applies defaults to zeroed fields and validates the result.
func (c *Config) Finalize() error {
	applyDefaults(c)
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// applyDefaults sets default values for fields explicitly zeroed in the input
func applyDefaults(cfg *Config) {
	if cfg.MaxConcurrency == 0 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}
	if cfg.MaxPagesPerCrawl == 0 {
		cfg.MaxPagesPerCrawl = DefaultMaxPagesPerCrawl
	}
	if cfg.NavigationTimeoutMs == 0 {
		cfg.NavigationTimeoutMs = DefaultNavigationTimeoutMs
	}
	if cfg.HTMLExtraction == "" {
		cfg.HTMLExtraction = HTMLExtractionFallback
	}
	if cfg.Renderer == "" {
		cfg.Renderer = RendererHTTP
	}
	if cfg.TargetConcurrency == 0 {
		cfg.TargetConcurrency = DefaultTargetConcurrency
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.KafkaTopic == "" && cfg.KafkaBroker != "" {
		cfg.KafkaTopic = "contact-records"
	}
	cfg.HTMLExtraction = strings.ToLower(cfg.HTMLExtraction)
	cfg.Renderer = strings.ToLower(cfg.Renderer)
}

// Validate checks the input surface and returns the first problem found.
// Every returned error wraps ErrInputValidation.
func (c *Config) Validate() error {
	hasURL := strings.TrimSpace(c.URL) != ""
	hasURLs := len(c.URLs) > 0
	switch {
	case hasURL && hasURLs:
		return ErrConflictingTargets
	case !hasURL && !hasURLs:
		return ErrNoTarget
	}
	for _, u := range c.URLs {
		if strings.TrimSpace(u) == "" {
			return ErrEmptyTarget
		}
	}
	if c.MaxConcurrency < 1 {
		return ErrInvalidConcurrency
	}
	if c.MaxPagesPerCrawl < 1 {
		return ErrInvalidMaxPages
	}
	if c.NavigationTimeoutMs < 1000 {
		return ErrInvalidTimeout
	}
	if c.WaitForContentMs < 0 || c.WaitForContentMs > c.NavigationTimeoutMs {
		return ErrInvalidWaitTimeout
	}
	if c.RequestDelayMs < 0 {
		return ErrInvalidRequestDelay
	}
	if c.HTMLExtraction != HTMLExtractionFallback && c.HTMLExtraction != HTMLExtractionAlways {
		return ErrInvalidHTMLExtraction
	}
	if c.Renderer != RendererHTTP && c.Renderer != RendererBrowser {
		return ErrInvalidRenderer
	}
	if c.TargetConcurrency < 1 {
		return ErrInvalidTargetConcurrency
	}
	if (c.KafkaBroker == "") != (c.KafkaTopic == "") {
		return ErrIncompleteKafka
	}
	return nil
}

// Targets returns the start URLs in input order.
func (c *Config) Targets() []string {
	if strings.TrimSpace(c.URL) != "" {
		return []string{strings.TrimSpace(c.URL)}
	}
	targets := make([]string, 0, len(c.URLs))
	for _, u := range c.URLs {
		targets = append(targets, strings.TrimSpace(u))
	}
	return targets
}

// NavigationTimeout is the per-page navigation budget.
func (c *Config) NavigationTimeout() time.Duration {
	return time.Duration(c.NavigationTimeoutMs) * time.Millisecond
}

// WaitForContent is the wait-for-primary-content budget inside a navigation.
func (c *Config) WaitForContent() time.Duration {
	return time.Duration(c.WaitForContentMs) * time.Millisecond
}

// RequestDelay is the minimum spacing between fetch starts.
func (c *Config) RequestDelay() time.Duration {
	return time.Duration(c.RequestDelayMs) * time.Millisecond
}
