package storage

import "time"

// VisitStatus is the lifecycle state of a page visit
type VisitStatus string

const (
	VisitPending VisitStatus = "pending"
	VisitFetched VisitStatus = "fetched"
	VisitFailed  VisitStatus = "failed"
)

// RunStatus is the outcome of one target's crawl
type RunStatus string

const (
	StatusSuccess        RunStatus = "Success"
	StatusPartialFailure RunStatus = "PartialFailure"
	StatusFailed         RunStatus = "Failed"
)

// CrawlTarget is one user-supplied start URL and its origin (scheme://host)
type CrawlTarget struct {
	URL    string
	Origin string
}

// VisitRecord tracks a single page through the frontier
type VisitRecord struct {
	URL          string
	PageIndex    int
	Priority     int
	Status       VisitStatus
	DiscoveredAt time.Time
	Error        string
}

// EmailRecord is the first sighting of a unique email within a target
type EmailRecord struct {
	URL         string    `json:"url"`
	Email       string    `json:"email"`
	FoundOn     string    `json:"foundOn"`
	FirstSeenAt time.Time `json:"firstSeenAt"`
}

// LinkCandidate is a discovered link awaiting an enqueue decision
type LinkCandidate struct {
	Href        string
	ResolvedURL string
	Priority    int
}

// RunSummary is the per-target result
type RunSummary struct {
	URL            string    `json:"url"`
	Status         RunStatus `json:"status"`
	Emails         []string  `json:"emails"`
	SocialProfiles []string  `json:"socialProfiles,omitempty"`
	PagesScraped   int       `json:"pagesScraped"`
	PagesFailed    int       `json:"pagesFailed"`
	Error          string    `json:"error,omitempty"`
	StartedAt      time.Time `json:"startedAt"`
	FinishedAt     time.Time `json:"finishedAt"`
}

// FinalSummary aggregates every target of a run
type FinalSummary struct {
	TotalURLs   int          `json:"totalUrls"`
	TotalEmails int          `json:"totalEmails"`
	AllEmails   []string     `json:"allEmails"`
	Results     []RunSummary `json:"results"`
	DurationMs  int64        `json:"durationMs"`
}

// RecordKind tags what a sink record carries
type RecordKind string

const (
	KindEmail  RecordKind = "email"
	KindTarget RecordKind = "target"
	KindFinal  RecordKind = "final"
)

// Record is one append-only entry for an output sink. Exactly one payload is set.
type Record struct {
	Kind   RecordKind    `json:"kind"`
	Email  *EmailRecord  `json:"email,omitempty"`
	Target *RunSummary   `json:"target,omitempty"`
	Final  *FinalSummary `json:"final,omitempty"`
}

// Key returns the partition key for a record (the target URL where one exists).
func (r Record) Key() string {
	switch {
	case r.Email != nil:
		return r.Email.URL
	case r.Target != nil:
		return r.Target.URL
	default:
		return string(r.Kind)
	}
}

// Metrics tracks crawl statistics for export on exit
type Metrics struct {
	StartTime         time.Time `json:"start_time"`
	EndTime           time.Time `json:"end_time"`
	TargetsStarted    int       `json:"targets_started"`
	TargetsCompleted  int       `json:"targets_completed"`
	TargetsFailed     int       `json:"targets_failed"`
	PagesFetched      int       `json:"pages_fetched"`
	PagesFailed       int       `json:"pages_failed"`
	LinksQueued       int       `json:"links_queued"`
	EmailsFound       int       `json:"emails_found"`
	TotalFetchTimeMs  int64     `json:"total_fetch_time_ms"`
	AvgFetchTimeMs    int64     `json:"avg_fetch_time_ms"`
	TerminationReason string    `json:"termination_reason"`
}
