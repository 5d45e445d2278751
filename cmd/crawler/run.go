package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/alvmarrod/contact-weaver/internal/config"
	"github.com/alvmarrod/contact-weaver/internal/crawler"
	"github.com/alvmarrod/contact-weaver/internal/metrics"
	"github.com/alvmarrod/contact-weaver/internal/output"
	"github.com/alvmarrod/contact-weaver/internal/render"
	"github.com/alvmarrod/contact-weaver/internal/report"
	"github.com/alvmarrod/contact-weaver/internal/storage"
)

const progressInterval = 10 * time.Second

// run crawls every target and writes the final summary to out. Errors are
// returned only for setup problems; target failures live in the summary.
func run(ctx context.Context, cfg *config.Config, tracker *metrics.Tracker, out io.Writer) (storage.FinalSummary, error) {
	denylists := config.DefaultDenylists()
	if cfg.DenylistFile != "" {
		var err error
		if denylists, err = config.LoadDenylists(cfg.DenylistFile); err != nil {
			return storage.FinalSummary{}, err
		}
		logrus.Infof("Denylist loaded: %s", cfg.DenylistFile)
	}

	sink, err := openSinks(cfg)
	if err != nil {
		return storage.FinalSummary{}, err
	}
	defer func() {
		if err := sink.Close(); err != nil {
			logrus.Errorf("Failed to close output sinks: %v", err)
		}
	}()

	renderer, err := newRenderer(ctx, cfg)
	if err != nil {
		return storage.FinalSummary{}, err
	}
	if closer, ok := renderer.(io.Closer); ok {
		defer closer.Close()
	}

	c, err := crawler.NewCrawler(cfg, renderer, sink, denylists, tracker)
	if err != nil {
		return storage.FinalSummary{}, fmt.Errorf("%w: %v", config.ErrInputValidation, err)
	}

	targets := cfg.Targets()
	agg := report.NewAggregator(sink, targets)
	stopProgress := startProgressLogger(tracker, progressInterval)

	var g errgroup.Group
	g.SetLimit(cfg.TargetConcurrency)
	for _, target := range targets {
		if ctx.Err() != nil {
			logrus.Warnf("Skipping remaining targets: %v", ctx.Err())
			break
		}
		g.Go(func() error {
			tracker.TargetStarted()
			res := c.Crawl(ctx, target)
			tracker.TargetFinished(res.Summary.Status)
			if err := agg.Add(context.WithoutCancel(ctx), res.Summary); err != nil {
				logrus.WithField("target", target).Errorf("Failed to record target summary: %v", err)
			}
			return nil
		})
	}
	_ = g.Wait()
	stopProgress()

	reason := "completed"
	if ctx.Err() != nil {
		reason = "signal"
	}

	logrus.Info("Step 1/3: Writing final summary...")
	final, err := agg.Finish(context.WithoutCancel(ctx))
	if err != nil {
		logrus.Errorf("Failed to emit final summary: %v", err)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(final); err != nil {
		logrus.Errorf("Failed to print final summary: %v", err)
	}

	logrus.Info("Step 2/3: Writing final metrics...")
	logrus.Info("Final stats: " + tracker.LogProgress())
	if cfg.MetricsPath != "" {
		if err := tracker.WriteToFile(cfg.MetricsPath, reason); err != nil {
			logrus.Errorf("Failed to write metrics: %v", err)
		} else {
			logrus.Infof("Metrics written to %s", cfg.MetricsPath)
		}
	}

	logrus.Info("Step 3/3: Writing report...")
	if cfg.MarkdownPath != "" {
		if err := report.WriteMarkdownFile(cfg.MarkdownPath, final); err != nil {
			logrus.Errorf("Failed to write Markdown report: %v", err)
		} else {
			logrus.Infof("Markdown report written to %s", cfg.MarkdownPath)
		}
	}

	logrus.Infof("Run complete (%s). Goodbye!", reason)
	return final, nil
}

// openSinks opens every configured output. An empty dbPath disables SQLite.
func openSinks(cfg *config.Config) (output.Multi, error) {
	var sinks output.Multi

	if cfg.DBPath != "" {
		store, err := storage.NewStorage(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		sinks = append(sinks, store)
		logrus.Infof("Database initialized: %s (run %d)", cfg.DBPath, store.RunID())
	}

	if cfg.JSONLPath != "" {
		jsonl, err := output.NewJSONLines(cfg.JSONLPath)
		if err != nil {
			_ = sinks.Close()
			return nil, err
		}
		sinks = append(sinks, jsonl)
		logrus.Infof("Dataset file: %s", cfg.JSONLPath)
	}

	if cfg.KafkaBroker != "" {
		sinks = append(sinks, output.NewKafkaSink(cfg.KafkaBroker, cfg.KafkaTopic))
		logrus.Infof("Streaming records to Kafka topic %s at %s", cfg.KafkaTopic, cfg.KafkaBroker)
	}

	if cfg.RedisAddr != "" {
		sinks = append(sinks, output.NewRedisSink(cfg.RedisAddr, cfg.RedisKey))
		logrus.Infof("Streaming records to Redis list %s at %s", cfg.RedisKey, cfg.RedisAddr)
	}

	return sinks, nil
}

func newRenderer(ctx context.Context, cfg *config.Config) (render.Renderer, error) {
	switch cfg.Renderer {
	case config.RendererHTTP:
		return render.NewHTTPRenderer(render.HTTPOptions{
			UserAgent:        cfg.UserAgent,
			Timeout:          cfg.NavigationTimeout(),
			RespectRobotsTxt: cfg.RespectRobotsTxt,
		}), nil
	case config.RendererBrowser:
		// in-flight pages finish after a shutdown signal; Close stops the browser
		return render.NewBrowserRenderer(context.WithoutCancel(ctx), render.BrowserOptions{
			Headless:       cfg.Headless,
			UserAgent:      cfg.UserAgent,
			Timeout:        cfg.NavigationTimeout(),
			WaitForContent: cfg.WaitForContent(),
		}), nil
	default:
		return nil, fmt.Errorf("%w: %s", config.ErrInvalidRenderer, cfg.Renderer)
	}
}

func startProgressLogger(tracker *metrics.Tracker, interval time.Duration) func() {
	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				logrus.Info(tracker.LogProgress())
			case <-stop:
				return
			}
		}
	}()

	return func() {
		close(stop)
		<-done
	}
}

// handleSignals cancels the returned context on the first SIGINT/SIGTERM so
// no new pages start, and exits after an emergency metrics save on the second.
func handleSignals(parent context.Context, tracker *metrics.Tracker, metricsPath string) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		select {
		case sig := <-sigChan:
			logrus.Infof("Received signal: %v", sig)
			logrus.Info("Initiating graceful shutdown, waiting for in-flight pages...")
			cancel()
		case <-done:
			return
		}

		select {
		case sig := <-sigChan:
			logrus.Warnf("Received second signal (%v) - forcing immediate exit!", sig)
			if metricsPath != "" {
				if err := tracker.WriteToFile(metricsPath, "forced_exit"); err != nil {
					logrus.Errorf("Emergency metrics save failed: %v", err)
				}
			}
			os.Exit(1)
		case <-done:
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		close(done)
		cancel()
	}
}
