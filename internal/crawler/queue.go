package crawler

import (
	"container/heap"
	"sync"
	"time"

	"github.com/alvmarrod/contact-weaver/internal/storage"
)

// FrontierState is the lifecycle of one target's frontier
type FrontierState string

const (
	StateEmpty     FrontierState = "empty"
	StatePopulated FrontierState = "populated"
	StateDraining  FrontierState = "draining"
	StateExhausted FrontierState = "exhausted"
)

// Frontier is a thread-safe priority queue of same-origin URLs with
// at-most-once semantics. maxPages bounds the number of URLs Dequeue will
// ever hand out; entries queued past that point are kept until Discard.
type Frontier struct {
	mu             sync.Mutex
	origin         string
	maxPages       int
	skipExtensions []string

	items      entryHeap
	records    map[string]*storage.VisitRecord // key: normalized URL
	order      []string
	seq        int
	dispatched int
}

// NewFrontier creates an empty frontier for one origin
func NewFrontier(origin string, maxPages int, skipExtensions []string) *Frontier {
	return &Frontier{
		origin:         origin,
		maxPages:       maxPages,
		skipExtensions: skipExtensions,
		records:        make(map[string]*storage.VisitRecord),
	}
}

// Enqueue adds a candidate if it passes ShouldFollowLink and the ceiling has
// not been reached. Returns true if added, false if rejected or duplicate.
func (f *Frontier) Enqueue(c storage.LinkCandidate) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.dispatched >= f.maxPages {
		return false
	}
	if !ShouldFollowLink(c.ResolvedURL, f.origin, f.seenLocked, f.skipExtensions) {
		return false
	}

	key := NormalizeURL(c.ResolvedURL)
	f.records[key] = &storage.VisitRecord{
		URL:          key,
		Priority:     c.Priority,
		Status:       storage.VisitPending,
		DiscoveredAt: time.Now(),
	}
	f.order = append(f.order, key)

	f.seq++
	heap.Push(&f.items, &entry{url: key, priority: c.Priority, seq: f.seq})

	return true
}

// Dequeue hands out the next URL to fetch. Returns ("", false) when the queue
// is empty or the page ceiling has been reached.
func (f *Frontier) Dequeue() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.dispatched >= f.maxPages || f.items.Len() == 0 {
		return "", false
	}

	e := heap.Pop(&f.items).(*entry)
	f.dispatched++
	f.records[e.url].PageIndex = f.dispatched
	return e.url, true
}

// MarkFetched moves a dispatched URL to its terminal fetched state
func (f *Frontier) MarkFetched(url string) {
	f.mark(url, storage.VisitFetched, nil)
}

// MarkFailed moves a dispatched URL to its terminal failed state
func (f *Frontier) MarkFailed(url string, cause error) {
	f.mark(url, storage.VisitFailed, cause)
}

func (f *Frontier) mark(url string, status storage.VisitStatus, cause error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec, ok := f.records[NormalizeURL(url)]
	if !ok || rec.Status != storage.VisitPending || rec.PageIndex == 0 {
		return
	}
	rec.Status = status
	if cause != nil {
		rec.Error = cause.Error()
	}
}

// Seen reports whether a URL has ever been queued
func (f *Frontier) Seen(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seenLocked(NormalizeURL(url))
}

func (f *Frontier) seenLocked(key string) bool {
	_, ok := f.records[key]
	return ok
}

// Size returns the number of URLs still waiting to be dequeued
func (f *Frontier) Size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items.Len()
}

// Counts returns how many dispatched URLs were fetched and failed
func (f *Frontier) Counts() (fetched, failed int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, rec := range f.records {
		switch rec.Status {
		case storage.VisitFetched:
			fetched++
		case storage.VisitFailed:
			failed++
		}
	}
	return fetched, failed
}

// Discard drops every queued entry that was never dequeued and returns how
// many were dropped. Called once the run loop has exited.
func (f *Frontier) Discard() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	dropped := f.items.Len()
	for _, e := range f.items {
		delete(f.records, e.url)
	}
	f.items = nil

	kept := f.order[:0]
	for _, key := range f.order {
		if _, ok := f.records[key]; ok {
			kept = append(kept, key)
		}
	}
	f.order = kept

	return dropped
}

// Records returns a snapshot of every VisitRecord in discovery order
func (f *Frontier) Records() []storage.VisitRecord {
	f.mu.Lock()
	defer f.mu.Unlock()

	records := make([]storage.VisitRecord, 0, len(f.order))
	for _, key := range f.order {
		records = append(records, *f.records[key])
	}
	return records
}

// State derives the lifecycle state from the queue contents
func (f *Frontier) State() FrontierState {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.records) == 0 {
		return StateEmpty
	}

	inFlight := false
	for _, rec := range f.records {
		if rec.PageIndex > 0 && rec.Status == storage.VisitPending {
			inFlight = true
			break
		}
	}

	canDispatch := f.items.Len() > 0 && f.dispatched < f.maxPages
	switch {
	case !canDispatch && !inFlight:
		return StateExhausted
	case f.dispatched == 0:
		return StatePopulated
	default:
		return StateDraining
	}
}

// entry is one queued URL. Higher priority first, then lower seq (FIFO).
type entry struct {
	url      string
	priority int
	seq      int
}

type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x any) { *h = append(*h, x.(*entry)) }

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}
