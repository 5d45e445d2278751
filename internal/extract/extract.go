// Package extract pulls raw email candidates and social profile URLs out of a
// rendered page. Candidates are not validated here.
package extract

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/alvmarrod/contact-weaver/internal/config"
)

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// Content is what a renderer hands over for extraction
type Content struct {
	Text        string
	HTML        string
	MailtoHrefs []string
}

// Result holds lowercased, de-duplicated candidates in first-seen order
type Result struct {
	Candidates     []string
	SocialProfiles []string
}

// Error reports a strategy that failed; its contribution is dropped
type Error struct {
	Strategy string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s extraction failed: %v", e.Strategy, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

type kind int

const (
	kindEmail kind = iota
	kindSocial
)

type strategy struct {
	name string
	kind kind
	// fallback strategies only run when earlier email strategies found nothing
	fallback bool
	run      func(Content) ([]string, error)
}

// Extractor runs an ordered list of strategies. It keeps no state between calls.
type Extractor struct {
	strategies []strategy
}

// New builds an Extractor. htmlPolicy is config.HTMLExtractionFallback or
// config.HTMLExtractionAlways; social enables the profile strategy.
func New(htmlPolicy string, social bool) *Extractor {
	strategies := []strategy{
		{name: "text", kind: kindEmail, run: fromText},
		{name: "html", kind: kindEmail, fallback: htmlPolicy != config.HTMLExtractionAlways, run: fromHTML},
		{name: "mailto", kind: kindEmail, run: fromMailto},
	}
	if social {
		strategies = append(strategies, strategy{name: "social", kind: kindSocial, run: fromSocial})
	}
	return &Extractor{strategies: strategies}
}

// Extract runs every strategy against c and merges their output
func (e *Extractor) Extract(c Content) Result {
	var emails, social []string

	for _, s := range e.strategies {
		if s.fallback && len(emails) > 0 {
			continue
		}

		values, err := s.safeRun(c)
		if err != nil {
			logrus.WithField("strategy", s.name).Warn(err)
			continue
		}

		switch s.kind {
		case kindEmail:
			emails = append(emails, values...)
		case kindSocial:
			social = append(social, values...)
		}
	}

	return Result{
		Candidates:     normalize(emails),
		SocialProfiles: RankProfiles(social),
	}
}

// safeRun converts a returned error or a panic into an *Error
func (s strategy) safeRun(c Content) (values []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			values = nil
			err = &Error{Strategy: s.name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	values, err = s.run(c)
	if err != nil {
		return nil, &Error{Strategy: s.name, Err: err}
	}
	return values, nil
}

func fromText(c Content) ([]string, error) {
	return emailPattern.FindAllString(c.Text, -1), nil
}

func fromHTML(c Content) ([]string, error) {
	return emailPattern.FindAllString(c.HTML, -1), nil
}

// fromMailto strips the scheme, any ?query or #fragment and URL escapes.
// A single href may carry several comma separated recipients.
func fromMailto(c Content) ([]string, error) {
	var out []string
	for _, href := range c.MailtoHrefs {
		href = strings.TrimSpace(href)
		if len(href) < len("mailto:") || !strings.EqualFold(href[:len("mailto:")], "mailto:") {
			continue
		}
		addr := href[len("mailto:"):]
		if i := strings.IndexAny(addr, "?#"); i >= 0 {
			addr = addr[:i]
		}
		if unescaped, err := url.PathUnescape(addr); err == nil {
			addr = unescaped
		}
		for _, part := range strings.Split(addr, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out, nil
}

// normalize lowercases, trims and de-duplicates in first-seen order
func normalize(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
