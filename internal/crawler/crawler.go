package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/alvmarrod/contact-weaver/internal/config"
	"github.com/alvmarrod/contact-weaver/internal/extract"
	"github.com/alvmarrod/contact-weaver/internal/memory"
	"github.com/alvmarrod/contact-weaver/internal/output"
	"github.com/alvmarrod/contact-weaver/internal/render"
	"github.com/alvmarrod/contact-weaver/internal/storage"
)

// ErrInvalidTarget marks a start URL that is not an absolute http(s) URL
var ErrInvalidTarget = errors.New("invalid target URL")

// ErrOffOriginRedirect marks a page whose navigation ended outside the target origin
var ErrOffOriginRedirect = errors.New("redirected off origin")

// MetricsRecorder receives crawl counters as pages complete
type MetricsRecorder interface {
	Record(pagesFetched, pagesFailed, linksQueued, emailsFound int)
	RecordFetchTime(duration time.Duration)
}

// Crawler drives targets through render, extract and enqueue. All per-target
// state lives in a run, so one Crawler may crawl several targets at once.
type Crawler struct {
	cfg        *config.Config
	renderer   render.Renderer
	extractor  *extract.Extractor
	validator  *Validator
	sink       output.Sink
	priorities []*regexp.Regexp
	metrics    MetricsRecorder
}

// Result is everything one target's crawl produced
type Result struct {
	Summary   storage.RunSummary
	Visits    []storage.VisitRecord
	Emails    []storage.EmailRecord
	Discarded int
}

// run is the state owned by one target's crawl
type run struct {
	target   storage.CrawlTarget
	frontier *Frontier
	emails   *memory.EmailSet
	limiter  *rate.Limiter

	// mu serializes the email set, sink appends and frontier updates of concurrent pages
	mu      sync.Mutex
	social  []string
	lastErr error
}

// NewCrawler creates a new crawler. metrics may be nil.
func NewCrawler(cfg *config.Config, renderer render.Renderer, sink output.Sink, denylists config.Denylists, metrics MetricsRecorder) (*Crawler, error) {
	priorities, err := CompilePatterns(cfg.PriorityPatterns)
	if err != nil {
		return nil, err
	}

	return &Crawler{
		cfg:        cfg,
		renderer:   renderer,
		extractor:  extract.New(cfg.HTMLExtraction, cfg.ExtractSocial),
		validator:  NewValidator(denylists),
		sink:       sink,
		priorities: priorities,
		metrics:    metrics,
	}, nil
}

// Crawl runs one target to completion and returns its summary. Page-level
// failures never abort the run; an invalid start URL yields a Failed summary
// without any fetch.
func (c *Crawler) Crawl(ctx context.Context, targetURL string) Result {
	summary := storage.RunSummary{
		URL:       targetURL,
		Emails:    []string{},
		StartedAt: time.Now(),
	}
	log := logrus.WithField("target", targetURL)

	origin, err := Origin(targetURL)
	if err != nil {
		summary.Status = storage.StatusFailed
		summary.Error = fmt.Errorf("%w: %v", ErrInvalidTarget, err).Error()
		summary.FinishedAt = time.Now()
		log.Warnf("Skipping target: %s", summary.Error)
		return Result{Summary: summary}
	}

	r := c.newRun(storage.CrawlTarget{URL: targetURL, Origin: origin})
	seeded := r.frontier.Enqueue(storage.LinkCandidate{
		Href:        targetURL,
		ResolvedURL: targetURL,
		Priority:    HighPriority,
	})
	if !seeded {
		r.lastErr = fmt.Errorf("%w: start URL rejected by link filter", ErrInvalidTarget)
	}

	log.Infof("Crawling %s (max pages=%d, concurrency=%d)", origin, c.cfg.MaxPagesPerCrawl, c.cfg.MaxConcurrency)
	c.loop(ctx, r)

	discarded := r.frontier.Discard()
	fetched, failed := r.frontier.Counts()

	summary.PagesScraped = fetched
	summary.PagesFailed = failed
	summary.Emails = r.emails.Emails()
	summary.SocialProfiles = extract.RankProfiles(r.social)
	summary.FinishedAt = time.Now()

	switch {
	case fetched == 0:
		summary.Status = storage.StatusFailed
		summary.Error = "no pages fetched"
		if r.lastErr != nil {
			summary.Error += ": " + r.lastErr.Error()
		}
	case failed == 0:
		summary.Status = storage.StatusSuccess
	default:
		summary.Status = storage.StatusPartialFailure
		summary.Error = fmt.Sprintf("%d of %d pages failed, last error: %v", failed, fetched+failed, r.lastErr)
	}
	if ctx.Err() != nil && summary.Error == "" {
		summary.Error = fmt.Sprintf("crawl interrupted: %v", ctx.Err())
	}

	log.Infof("Target finished: status=%s, pages=%d fetched/%d failed, emails=%d, discarded=%d",
		summary.Status, fetched, failed, len(summary.Emails), discarded)

	return Result{
		Summary:   summary,
		Visits:    r.frontier.Records(),
		Emails:    r.emails.Records(),
		Discarded: discarded,
	}
}

func (c *Crawler) newRun(target storage.CrawlTarget) *run {
	limit := rate.Inf
	if delay := c.cfg.RequestDelay(); delay > 0 {
		limit = rate.Every(delay)
	}

	return &run{
		target:   target,
		frontier: NewFrontier(target.Origin, c.cfg.MaxPagesPerCrawl, c.cfg.SkipExtensions),
		emails:   memory.NewEmailSet(target.URL),
		limiter:  rate.NewLimiter(limit, 1),
	}
}

// loop keeps up to MaxConcurrency renders in flight until the frontier has
// nothing left to hand out and every render has reported back. inFlight is
// owned by this goroutine alone.
func (c *Crawler) loop(ctx context.Context, r *run) {
	done := make(chan struct{}, c.cfg.MaxConcurrency)
	inFlight := 0

	for {
		for inFlight < c.cfg.MaxConcurrency && ctx.Err() == nil {
			pageURL, ok := r.frontier.Dequeue()
			if !ok {
				break
			}

			if err := r.limiter.Wait(ctx); err != nil {
				c.pageFailed(r, pageURL, &render.Error{URL: pageURL, Err: err})
				break
			}

			inFlight++
			go func() {
				defer func() { done <- struct{}{} }()
				c.visit(ctx, r, pageURL)
			}()
		}

		if inFlight == 0 {
			return
		}
		<-done
		inFlight--
	}
}

// visit renders one page, streams new emails and enqueues its links
func (c *Crawler) visit(ctx context.Context, r *run, pageURL string) {
	log := logrus.WithFields(logrus.Fields{"target": r.target.URL, "page": pageURL})

	defer func() {
		if p := recover(); p != nil {
			c.pageFailed(r, pageURL, fmt.Errorf("page handler panicked: %v", p))
		}
	}()

	renderCtx, cancel := context.WithTimeout(ctx, c.cfg.NavigationTimeout())
	start := time.Now()
	page, err := c.renderer.Render(renderCtx, pageURL)
	cancel()
	if c.metrics != nil {
		c.metrics.RecordFetchTime(time.Since(start))
	}
	if err == nil && page == nil {
		err = &render.Error{URL: pageURL, Err: errors.New("renderer returned no page")}
	}
	if err == nil && page.FinalURL != "" {
		if origin, oerr := Origin(page.FinalURL); oerr != nil || origin != r.target.Origin {
			err = &render.Error{
				URL:        pageURL,
				StatusCode: page.StatusCode,
				Err:        fmt.Errorf("%w: %s", ErrOffOriginRedirect, page.FinalURL),
			}
		}
	}
	if err != nil {
		c.pageFailed(r, pageURL, err)
		return
	}

	found := c.extractor.Extract(extract.Content{
		Text:        page.Text,
		HTML:        page.HTML,
		MailtoHrefs: page.MailtoHrefs,
	})

	r.mu.Lock()
	defer r.mu.Unlock()

	r.frontier.MarkFetched(pageURL)

	newEmails := 0
	for _, candidate := range found.Candidates {
		if !c.validator.Accept(candidate) {
			continue
		}
		rec, added := r.emails.Add(candidate, pageURL)
		if !added {
			continue
		}
		newEmails++
		log.Infof("Found email %s", rec.Email)

		// emails already discovered are still delivered after cancellation
		if err := c.sink.Append(context.WithoutCancel(ctx), storage.Record{Kind: storage.KindEmail, Email: &rec}); err != nil {
			log.Errorf("Failed to append email record: %v", err)
		}
	}
	r.social = append(r.social, found.SocialProfiles...)

	queued := c.enqueueLinks(r, page, pageURL)

	log.Debugf("Fetched page (status=%d, emails=%d, links queued=%d)", page.StatusCode, newEmails, queued)
	if c.metrics != nil {
		c.metrics.Record(1, 0, queued, newEmails)
	}
}

// enqueueLinks resolves anchors against the page's final URL and queues the
// followable ones. Caller holds r.mu.
func (c *Crawler) enqueueLinks(r *run, page *render.Page, pageURL string) int {
	base, err := url.Parse(page.FinalURL)
	if err != nil || page.FinalURL == "" {
		if base, err = url.Parse(pageURL); err != nil {
			return 0
		}
	}

	queued := 0
	for _, href := range page.AnchorHrefs {
		resolved, err := ResolveLink(base, href)
		if err != nil {
			continue
		}
		candidate := storage.LinkCandidate{
			Href:        href,
			ResolvedURL: resolved,
			Priority:    PriorityOf(resolved, c.priorities),
		}
		if r.frontier.Enqueue(candidate) {
			queued++
		}
	}
	return queued
}

func (c *Crawler) pageFailed(r *run, pageURL string, err error) {
	r.mu.Lock()
	r.frontier.MarkFailed(pageURL, err)
	r.lastErr = err
	r.mu.Unlock()

	logrus.WithFields(logrus.Fields{"target": r.target.URL, "page": pageURL}).Warnf("Page failed: %v", err)
	if c.metrics != nil {
		c.metrics.Record(0, 1, 0, 0)
	}
}
