package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/alvmarrod/contact-weaver/internal/config"
	"github.com/alvmarrod/contact-weaver/internal/metrics"
	"github.com/alvmarrod/contact-weaver/internal/version"
)

const defaultConfigPath = "input.json"

// NewRootCmd creates the contact-weaver command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contact-weaver [url...]",
		Short: "Crawl websites for contact email addresses",
		Long: `contact-weaver crawls each target website within its own origin and collects
the email addresses (and optionally Facebook profiles) published on its pages.

Input is read from a JSON file (input.json by default). Flags and positional
URLs override values from the file.

Examples:
  # Crawl the targets listed in input.json
  contact-weaver

  # Crawl two sites, up to 20 pages each, 4 pages at a time
  contact-weaver --max-pages 20 --concurrency 4 https://example.org https://example.net

  # Render pages with headless Chrome and write a Markdown report
  contact-weaver --renderer browser --markdown report.md --url https://example.org`,
		Version:       version.Version,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runCrawlCmd,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	cmd.Flags().StringP("config", "c", defaultConfigPath, "JSON input file")
	cmd.Flags().StringP("url", "u", "", "Single start URL")
	cmd.Flags().StringSlice("urls", nil, "Comma-separated start URLs")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPagesPerCrawl, "Maximum pages fetched per target")
	cmd.Flags().IntP("concurrency", "n", config.DefaultMaxConcurrency, "Pages rendered in parallel per target")
	cmd.Flags().Int("target-concurrency", config.DefaultTargetConcurrency, "Targets crawled in parallel")
	cmd.Flags().Int("navigation-timeout", config.DefaultNavigationTimeoutMs, "Per-page navigation timeout in milliseconds")
	cmd.Flags().Int("wait-for-content", config.DefaultWaitForContentMs, "Wait for page content in milliseconds (browser renderer)")
	cmd.Flags().Int("request-delay", 0, "Minimum delay between page fetches in milliseconds")
	cmd.Flags().String("renderer", config.RendererHTTP, "Page renderer: http or browser")
	cmd.Flags().Bool("headless", true, "Run the browser renderer headless")
	cmd.Flags().String("html-extraction", config.HTMLExtractionFallback, "Raw HTML email scan: fallback or always")
	cmd.Flags().Bool("social", false, "Also collect Facebook profile URLs")
	cmd.Flags().Bool("respect-robots", false, "Honor robots.txt (http renderer)")
	cmd.Flags().String("denylist", "", "YAML denylist file")

	cmd.Flags().String("db", "", "SQLite output database")
	cmd.Flags().String("jsonl", "", "JSON Lines dataset file")
	cmd.Flags().String("metrics", "", "Metrics JSON file")
	cmd.Flags().StringP("markdown", "m", "", "Markdown report file")
	cmd.Flags().String("kafka-broker", "", "Kafka broker address")
	cmd.Flags().String("kafka-topic", "", "Kafka topic")
	cmd.Flags().String("redis-addr", "", "Redis address")
	cmd.Flags().String("redis-key", "", "Redis list key")

	return cmd
}

// Execute runs the root command. Only input and setup errors exit non-zero.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, config.ErrInputValidation) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	setupLogging(verbose)

	logrus.Infof("Contact Weaver v%s starting...", version.Version)
	logrus.Infof("Configuration loaded: targets=%d, max pages=%d, concurrency=%d, renderer=%s",
		len(cfg.Targets()), cfg.MaxPagesPerCrawl, cfg.MaxConcurrency, cfg.Renderer)

	tracker := metrics.NewTracker()
	ctx, stop := handleSignals(cmd.Context(), tracker, cfg.MetricsPath)
	defer stop()

	_, err = run(ctx, cfg, tracker, cmd.OutOrStdout())
	return err
}

func setupLogging(verbose bool) {
	logrus.SetLevel(logrus.InfoLevel)
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}

// buildConfig reads the input file and applies flag overrides. A missing file
// is only an error when --config was given explicitly.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	flags := cmd.Flags()
	path, _ := flags.GetString("config")

	cfg, err := config.ReadFile(path)
	if err != nil {
		if !errors.Is(err, config.ErrConfigNotFound) || flags.Changed("config") {
			return nil, err
		}
		def := config.Default()
		cfg = &def
	}

	if flags.Changed("url") {
		cfg.URL, _ = flags.GetString("url")
		cfg.URLs = nil
	}
	if flags.Changed("urls") {
		cfg.URLs, _ = flags.GetStringSlice("urls")
		cfg.URL = ""
	}
	if len(args) > 0 {
		cfg.URL = ""
		cfg.URLs = args
	}

	overrideInt(cmd, "max-pages", &cfg.MaxPagesPerCrawl)
	overrideInt(cmd, "concurrency", &cfg.MaxConcurrency)
	overrideInt(cmd, "target-concurrency", &cfg.TargetConcurrency)
	overrideInt(cmd, "navigation-timeout", &cfg.NavigationTimeoutMs)
	overrideInt(cmd, "wait-for-content", &cfg.WaitForContentMs)
	overrideInt(cmd, "request-delay", &cfg.RequestDelayMs)
	overrideBool(cmd, "headless", &cfg.Headless)
	overrideBool(cmd, "social", &cfg.ExtractSocial)
	overrideBool(cmd, "respect-robots", &cfg.RespectRobotsTxt)
	overrideString(cmd, "renderer", &cfg.Renderer)
	overrideString(cmd, "html-extraction", &cfg.HTMLExtraction)
	overrideString(cmd, "denylist", &cfg.DenylistFile)
	overrideString(cmd, "db", &cfg.DBPath)
	overrideString(cmd, "jsonl", &cfg.JSONLPath)
	overrideString(cmd, "metrics", &cfg.MetricsPath)
	overrideString(cmd, "markdown", &cfg.MarkdownPath)
	overrideString(cmd, "kafka-broker", &cfg.KafkaBroker)
	overrideString(cmd, "kafka-topic", &cfg.KafkaTopic)
	overrideString(cmd, "redis-addr", &cfg.RedisAddr)
	overrideString(cmd, "redis-key", &cfg.RedisKey)

	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func overrideInt(cmd *cobra.Command, name string, dst *int) {
	if cmd.Flags().Changed(name) {
		*dst, _ = cmd.Flags().GetInt(name)
	}
}

func overrideBool(cmd *cobra.Command, name string, dst *bool) {
	if cmd.Flags().Changed(name) {
		*dst, _ = cmd.Flags().GetBool(name)
	}
}

func overrideString(cmd *cobra.Command, name string, dst *string) {
	if cmd.Flags().Changed(name) {
		*dst, _ = cmd.Flags().GetString(name)
	}
}
