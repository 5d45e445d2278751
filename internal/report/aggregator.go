package report

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/alvmarrod/contact-weaver/internal/output"
	"github.com/alvmarrod/contact-weaver/internal/storage"
)

// NotCrawled is the error of a target the run stopped before starting
const NotCrawled = "not crawled: run stopped before this target started"

// Aggregator collects per-target summaries as targets complete and builds the
// final summary. Summaries are reported in input order regardless of the
// order targets finish in.
type Aggregator struct {
	mu      sync.Mutex
	sink    output.Sink
	start   time.Time
	targets []string
	slots   []*storage.RunSummary
}

// NewAggregator creates an aggregator for the given targets. sink may be nil.
func NewAggregator(sink output.Sink, targets []string) *Aggregator {
	return &Aggregator{
		sink:    sink,
		start:   time.Now(),
		targets: append([]string(nil), targets...),
		slots:   make([]*storage.RunSummary, len(targets)),
	}
}

// Add stores one target's summary and emits its record
func (a *Aggregator) Add(ctx context.Context, summary storage.RunSummary) error {
	a.mu.Lock()
	a.place(summary)
	a.mu.Unlock()

	logrus.WithField("target", summary.URL).Debugf("Target summary recorded (status=%s)", summary.Status)

	if a.sink == nil {
		return nil
	}
	if err := a.sink.Append(ctx, storage.Record{Kind: storage.KindTarget, Target: &summary}); err != nil {
		return fmt.Errorf("failed to emit target summary: %w", err)
	}
	return nil
}

// place puts the summary in the first free slot of a matching target, or
// appends it when the target was not announced. Caller holds a.mu.
func (a *Aggregator) place(summary storage.RunSummary) {
	for i, target := range a.targets {
		if target == summary.URL && a.slots[i] == nil {
			a.slots[i] = &summary
			return
		}
	}
	a.targets = append(a.targets, summary.URL)
	a.slots = append(a.slots, &summary)
}

// Results returns the summaries added so far, in input order
func (a *Aggregator) Results() []storage.RunSummary {
	a.mu.Lock()
	defer a.mu.Unlock()

	results := make([]storage.RunSummary, 0, len(a.slots))
	for _, s := range a.slots {
		if s != nil {
			results = append(results, *s)
		}
	}
	return results
}

// Summary builds the final summary over every announced target. Targets
// without a result are reported as Failed with NotCrawled.
func (a *Aggregator) Summary() storage.FinalSummary {
	a.mu.Lock()
	results := make([]storage.RunSummary, 0, len(a.slots))
	for i, s := range a.slots {
		if s != nil {
			results = append(results, *s)
			continue
		}
		results = append(results, storage.RunSummary{
			URL:    a.targets[i],
			Status: storage.StatusFailed,
			Emails: []string{},
			Error:  NotCrawled,
		})
	}
	a.mu.Unlock()

	seen := make(map[string]bool)
	all := []string{}
	for _, r := range results {
		for _, email := range r.Emails {
			if !seen[email] {
				seen[email] = true
				all = append(all, email)
			}
		}
	}
	sort.Strings(all)

	return storage.FinalSummary{
		TotalURLs:   len(results),
		TotalEmails: len(all),
		AllEmails:   all,
		Results:     results,
		DurationMs:  time.Since(a.start).Milliseconds(),
	}
}

// Finish builds the final summary and emits it as the last record
func (a *Aggregator) Finish(ctx context.Context) (storage.FinalSummary, error) {
	final := a.Summary()

	logrus.Infof("Run finished: %d targets, %d unique emails in %v",
		final.TotalURLs, final.TotalEmails, time.Duration(final.DurationMs)*time.Millisecond)

	if a.sink == nil {
		return final, nil
	}
	if err := a.sink.Append(ctx, storage.Record{Kind: storage.KindFinal, Final: &final}); err != nil {
		return final, fmt.Errorf("failed to emit final summary: %w", err)
	}
	return final, nil
}
