package extract

import (
	"errors"
	"reflect"
	"testing"

	"github.com/alvmarrod/contact-weaver/internal/config"
)

func TestExtractText(t *testing.T) {
	t.Parallel()

	e := New(config.HTMLExtractionFallback, false)
	got := e.Extract(Content{Text: "Contact: Jane@Example-Biz.TEST or sales@example-biz.test."})

	want := []string{"jane@example-biz.test", "sales@example-biz.test"}
	if !reflect.DeepEqual(got.Candidates, want) {
		t.Errorf("expected %v, got %v", want, got.Candidates)
	}
	if got.SocialProfiles != nil {
		t.Errorf("expected no social profiles when disabled, got %v", got.SocialProfiles)
	}
}

func TestExtractMailto(t *testing.T) {
	t.Parallel()

	e := New(config.HTMLExtractionFallback, false)

	tests := []struct {
		name  string
		hrefs []string
		want  []string
	}{
		{"query stripped", []string{"mailto:info@site.test?subject=hi"}, []string{"info@site.test"}},
		{"upper scheme", []string{"MAILTO:Info@Site.test"}, []string{"info@site.test"}},
		{"fragment stripped", []string{"mailto:team@site.test#top"}, []string{"team@site.test"}},
		{"escaped", []string{"mailto:jane%2Bjobs@site.test"}, []string{"jane+jobs@site.test"}},
		{"several recipients", []string{"mailto:a@site.test,b@site.test"}, []string{"a@site.test", "b@site.test"}},
		{"not mailto", []string{"tel:+100", "mail"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := e.Extract(Content{MailtoHrefs: tt.hrefs})
			if !reflect.DeepEqual(got.Candidates, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got.Candidates)
			}
		})
	}
}

func TestExtractHTMLPolicy(t *testing.T) {
	t.Parallel()

	page := Content{
		Text: "Write to visible@site.test",
		HTML: `<p>Write to visible@site.test</p><!-- hidden@site.test -->`,
	}

	t.Run("fallback skips html when text matched", func(t *testing.T) {
		t.Parallel()
		got := New(config.HTMLExtractionFallback, false).Extract(page)
		want := []string{"visible@site.test"}
		if !reflect.DeepEqual(got.Candidates, want) {
			t.Errorf("expected %v, got %v", want, got.Candidates)
		}
	})

	t.Run("fallback uses html when text is empty", func(t *testing.T) {
		t.Parallel()
		got := New(config.HTMLExtractionFallback, false).Extract(Content{
			Text: "No address here",
			HTML: `<span data-email="hidden@site.test"></span>`,
		})
		want := []string{"hidden@site.test"}
		if !reflect.DeepEqual(got.Candidates, want) {
			t.Errorf("expected %v, got %v", want, got.Candidates)
		}
	})

	t.Run("always merges both", func(t *testing.T) {
		t.Parallel()
		got := New(config.HTMLExtractionAlways, false).Extract(page)
		want := []string{"visible@site.test", "hidden@site.test"}
		if !reflect.DeepEqual(got.Candidates, want) {
			t.Errorf("expected %v, got %v", want, got.Candidates)
		}
	})

	t.Run("mailto runs regardless of policy", func(t *testing.T) {
		t.Parallel()
		withMailto := page
		withMailto.MailtoHrefs = []string{"mailto:desk@site.test"}
		got := New(config.HTMLExtractionFallback, false).Extract(withMailto)
		want := []string{"visible@site.test", "desk@site.test"}
		if !reflect.DeepEqual(got.Candidates, want) {
			t.Errorf("expected %v, got %v", want, got.Candidates)
		}
	})

	t.Run("mailto does not suppress the html fallback", func(t *testing.T) {
		t.Parallel()
		got := New(config.HTMLExtractionFallback, false).Extract(Content{
			Text:        "Write to us",
			HTML:        `<a href="mailto:desk@site.test">Write to us</a><span data-email="hidden@site.test"></span>`,
			MailtoHrefs: []string{"mailto:desk@site.test"},
		})
		want := []string{"desk@site.test", "hidden@site.test"}
		if !reflect.DeepEqual(got.Candidates, want) {
			t.Errorf("expected %v, got %v", want, got.Candidates)
		}
	})
}

func TestExtractIsIdempotent(t *testing.T) {
	t.Parallel()

	e := New(config.HTMLExtractionAlways, true)
	page := Content{
		Text:        "Reach Ops@Site.test",
		HTML:        `<a href="https://facebook.com/SiteTest?ref=footer">fb</a> ops@site.test other@site.test`,
		MailtoHrefs: []string{"mailto:ops@site.test"},
	}

	first := e.Extract(page)
	second := e.Extract(page)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("expected identical results, got %+v and %+v", first, second)
	}
	if len(first.Candidates) != 2 {
		t.Errorf("expected 2 unique candidates, got %v", first.Candidates)
	}
}

func TestExtractStrategyFailures(t *testing.T) {
	t.Parallel()

	e := &Extractor{strategies: []strategy{
		{name: "broken", kind: kindEmail, run: func(Content) ([]string, error) {
			return []string{"lost@site.test"}, errors.New("malformed markup")
		}},
		{name: "panicky", kind: kindEmail, run: func(Content) ([]string, error) {
			panic("nil node")
		}},
		{name: "text", kind: kindEmail, run: fromText},
		{name: "mailto", kind: kindEmail, run: fromMailto},
	}}

	got := e.Extract(Content{Text: "kept@site.test", MailtoHrefs: []string{"mailto:also@site.test"}})
	want := []string{"kept@site.test", "also@site.test"}
	if !reflect.DeepEqual(got.Candidates, want) {
		t.Errorf("expected %v, got %v", want, got.Candidates)
	}
}

func TestStrategyErrorWrapsCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	s := strategy{name: "html", run: func(Content) ([]string, error) { return nil, cause }}

	_, err := s.safeRun(Content{})
	var extractErr *Error
	if !errors.As(err, &extractErr) || extractErr.Strategy != "html" {
		t.Fatalf("expected *Error for html, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("expected error to wrap cause, got %v", err)
	}
}
