package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/alvmarrod/contact-weaver/internal/storage"
)

// Tracker holds and manages run metrics across every target
type Tracker struct {
	mu               sync.Mutex
	data             storage.Metrics
	totalFetchTimeMs int64
	fetchCount       int
}

// NewTracker creates a new metrics tracker
func NewTracker() *Tracker {
	return &Tracker{
		data: storage.Metrics{
			StartTime: time.Now(),
		},
	}
}

// TargetStarted increments the started targets counter
func (t *Tracker) TargetStarted() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.TargetsStarted++
}

// TargetFinished counts a completed target; Failed runs are also counted as failed
func (t *Tracker) TargetFinished(status storage.RunStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.TargetsCompleted++
	if status == storage.StatusFailed {
		t.data.TargetsFailed++
	}
}

// Record applies one batch of crawler deltas. It matches the crawler's metrics callback.
func (t *Tracker) Record(pagesFetched, pagesFailed, linksQueued, emailsFound int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.PagesFetched += pagesFetched
	t.data.PagesFailed += pagesFailed
	t.data.LinksQueued += linksQueued
	t.data.EmailsFound += emailsFound
}

// RecordFetchTime records a page render duration
func (t *Tracker) RecordFetchTime(duration time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.totalFetchTimeMs += duration.Milliseconds()
	t.fetchCount++
}

// GetSnapshot returns a copy of current metrics
func (t *Tracker) GetSnapshot() storage.Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()

	snapshot := t.data
	snapshot.TotalFetchTimeMs = t.totalFetchTimeMs
	if t.fetchCount > 0 {
		snapshot.AvgFetchTimeMs = t.totalFetchTimeMs / int64(t.fetchCount)
	}

	return snapshot
}

// WriteToFile exports metrics to a JSON file
func (t *Tracker) WriteToFile(path, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.data.EndTime = time.Now()
	t.data.TerminationReason = reason
	t.data.TotalFetchTimeMs = t.totalFetchTimeMs
	if t.fetchCount > 0 {
		t.data.AvgFetchTimeMs = t.totalFetchTimeMs / int64(t.fetchCount)
	}

	jsonData, err := json.MarshalIndent(t.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create metrics directory: %w", err)
		}
	}
	if err := os.WriteFile(path, jsonData, 0o644); err != nil { //nolint:gosec // metrics are not sensitive
		return fmt.Errorf("failed to write metrics file: %w", err)
	}

	return nil
}

// LogProgress formats current metrics for the periodic progress line
func (t *Tracker) LogProgress() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return fmt.Sprintf("Targets: %d/%d done (%d failed) | Pages: %d fetched, %d failed | Links queued: %d | Emails: %d",
		t.data.TargetsCompleted,
		t.data.TargetsStarted,
		t.data.TargetsFailed,
		t.data.PagesFetched,
		t.data.PagesFailed,
		t.data.LinksQueued,
		t.data.EmailsFound,
	)
}
