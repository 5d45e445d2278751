package memory

import (
	"strings"
	"sync"
	"time"

	"github.com/alvmarrod/contact-weaver/internal/storage"
)

// EmailSet holds the unique emails of one crawl target in discovery order
type EmailSet struct {
	target string
	byAddr map[string]*storage.EmailRecord // lowercased email -> record
	order  []string
	mu     sync.RWMutex
}

// NewEmailSet creates an empty set for the given target URL
func NewEmailSet(target string) *EmailSet {
	return &EmailSet{
		target: target,
		byAddr: make(map[string]*storage.EmailRecord),
	}
}

// Add records the first sighting of an email.
// Returns the new record and true, or the zero record and false for a repeat.
func (s *EmailSet) Add(email, foundOn string) (storage.EmailRecord, bool) {
	key := strings.ToLower(strings.TrimSpace(email))
	if key == "" {
		return storage.EmailRecord{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byAddr[key]; exists {
		return storage.EmailRecord{}, false
	}

	rec := &storage.EmailRecord{
		URL:         s.target,
		Email:       key,
		FoundOn:     foundOn,
		FirstSeenAt: time.Now(),
	}
	s.byAddr[key] = rec
	s.order = append(s.order, key)

	return *rec, true
}

// Get retrieves a record by email (case-insensitive)
func (s *EmailSet) Get(email string) (storage.EmailRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byAddr[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return storage.EmailRecord{}, false
	}
	return *rec, true
}

// Len returns the number of unique emails
func (s *EmailSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Emails returns the unique addresses in discovery order
func (s *EmailSet) Emails() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Records returns copies of every record in discovery order
func (s *EmailSet) Records() []storage.EmailRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]storage.EmailRecord, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, *s.byAddr[key])
	}
	return out
}
