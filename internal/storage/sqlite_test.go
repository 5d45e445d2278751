package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestStorageAppend(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, err := NewStorage(filepath.Join(t.TempDir(), "nested", "contacts.db"))
	if err != nil {
		t.Fatalf("failed to open storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	now := time.Now()
	emails := []EmailRecord{
		{URL: "http://site.test", Email: "first@site.test", FoundOn: "http://site.test/", FirstSeenAt: now},
		{URL: "http://site.test", Email: "second@site.test", FoundOn: "http://site.test/contact", FirstSeenAt: now},
	}
	for i := range emails {
		if err := store.Append(ctx, Record{Kind: KindEmail, Email: &emails[i]}); err != nil {
			t.Fatalf("append email: %v", err)
		}
	}

	summary := RunSummary{
		URL:          "http://site.test",
		Status:       StatusSuccess,
		Emails:       []string{"first@site.test", "second@site.test"},
		PagesScraped: 2,
		StartedAt:    now,
		FinishedAt:   now,
	}
	if err := store.Append(ctx, Record{Kind: KindTarget, Target: &summary}); err != nil {
		t.Fatalf("append target: %v", err)
	}
	final := FinalSummary{TotalURLs: 1, TotalEmails: 2, DurationMs: 10}
	if err := store.Append(ctx, Record{Kind: KindFinal, Final: &final}); err != nil {
		t.Fatalf("append final: %v", err)
	}

	gotEmails, err := store.ListEmails(ctx)
	if err != nil {
		t.Fatalf("list emails: %v", err)
	}
	if len(gotEmails) != 2 || gotEmails[0].Email != "first@site.test" || gotEmails[1].FoundOn != "http://site.test/contact" {
		t.Errorf("unexpected emails: %+v", gotEmails)
	}

	gotTargets, err := store.ListTargets(ctx)
	if err != nil {
		t.Fatalf("list targets: %v", err)
	}
	if len(gotTargets) != 1 {
		t.Fatalf("expected 1 target, got %d", len(gotTargets))
	}
	if gotTargets[0].Status != StatusSuccess || gotTargets[0].PagesScraped != 2 || len(gotTargets[0].Emails) != 2 {
		t.Errorf("unexpected target summary: %+v", gotTargets[0])
	}
}

func TestStorageRunsAreIsolated(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "contacts.db")

	first, err := NewStorage(path)
	if err != nil {
		t.Fatalf("open first run: %v", err)
	}
	rec := EmailRecord{URL: "http://a.test", Email: "a@a.test", FoundOn: "http://a.test/", FirstSeenAt: time.Now()}
	if err := first.Append(ctx, Record{Kind: KindEmail, Email: &rec}); err != nil {
		t.Fatalf("append: %v", err)
	}
	first.Close()

	second, err := NewStorage(path)
	if err != nil {
		t.Fatalf("open second run: %v", err)
	}
	t.Cleanup(func() { second.Close() })

	if second.RunID() == first.RunID() {
		t.Fatalf("expected a new run id, got %d twice", second.RunID())
	}
	got, err := second.ListEmails(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no emails in new run, got %d", len(got))
	}
}

func TestStorageRejectsEmptyRecord(t *testing.T) {
	t.Parallel()

	store, err := NewStorage(filepath.Join(t.TempDir(), "contacts.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.Append(context.Background(), Record{Kind: KindEmail}); err == nil {
		t.Fatal("expected error for record without payload")
	}
}

func TestRecordKey(t *testing.T) {
	t.Parallel()

	email := Record{Kind: KindEmail, Email: &EmailRecord{URL: "http://a.test"}}
	if email.Key() != "http://a.test" {
		t.Errorf("unexpected email key %q", email.Key())
	}
	final := Record{Kind: KindFinal, Final: &FinalSummary{}}
	if final.Key() != "final" {
		t.Errorf("unexpected final key %q", final.Key())
	}
}
