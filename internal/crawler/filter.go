package crawler

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/alvmarrod/contact-weaver/internal/config"
)

// Priority hints for the frontier
const (
	DefaultPriority = 0
	HighPriority    = 10
)

// ErrLinkResolution marks an href that cannot become a followable URL
var ErrLinkResolution = errors.New("link resolution failed")

var validEmailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// assetSuffixes are file extensions that look like a TLD in versioned asset
// names such as jquery@3.6.0.min.js
var assetSuffixes = map[string]bool{
	"js": true, "mjs": true, "css": true, "map": true, "json": true, "xml": true,
	"woff": true, "woff2": true, "ttf": true, "otf": true, "eot": true,
	"svg": true, "png": true, "jpg": true, "jpeg": true, "gif": true, "webp": true, "ico": true, "bmp": true,
	"pdf": true, "mp4": true, "mp3": true, "webm": true, "zip": true, "gz": true,
}

// Validator decides whether a candidate string is a usable email
type Validator struct {
	domains    []string
	prefixes   []string
	substrings []string
}

// NewValidator builds a Validator from a denylist table. Entries are lowercased.
func NewValidator(d config.Denylists) *Validator {
	return &Validator{
		domains:    lowerAll(d.Domains),
		prefixes:   lowerAll(d.LocalPrefixes),
		substrings: lowerAll(d.Substrings),
	}
}

// IsValidEmail reports whether candidate matches local@domain.tld, does not end
// in an asset extension, has a length strictly between 5 and 100 and contains
// no denylisted substring.
func (v *Validator) IsValidEmail(candidate string) bool {
	if len(candidate) <= 5 || len(candidate) >= 100 {
		return false
	}
	if !validEmailPattern.MatchString(candidate) {
		return false
	}
	lower := strings.ToLower(candidate)
	if assetSuffixes[lower[strings.LastIndex(lower, ".")+1:]] {
		return false
	}
	for _, s := range v.substrings {
		if strings.Contains(lower, s) {
			return false
		}
	}
	return true
}

// IsExcludedEmail reports whether the email's domain (or a parent of it) or
// the start of its local part is denylisted.
func (v *Validator) IsExcludedEmail(candidate string) bool {
	lower := strings.ToLower(strings.TrimSpace(candidate))
	at := strings.LastIndex(lower, "@")
	if at < 0 {
		return true
	}
	local, domain := lower[:at], lower[at+1:]

	for _, d := range v.domains {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	for _, p := range v.prefixes {
		if strings.HasPrefix(local, p) {
			return true
		}
	}
	return false
}

// Accept is IsValidEmail && !IsExcludedEmail
func (v *Validator) Accept(candidate string) bool {
	return v.IsValidEmail(candidate) && !v.IsExcludedEmail(candidate)
}

// Origin returns scheme://host for an absolute http(s) URL, lowercased.
func Origin(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", err
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("missing host in %q", rawURL)
	}
	return scheme + "://" + strings.ToLower(u.Host), nil
}

// NormalizeURL lowercases scheme and host, drops the fragment and maps an
// empty path to "/" so equivalent spellings share one frontier entry.
func NormalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.Fragment = ""
	u.RawFragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}

// ResolveLink turns an href found on base into an absolute URL. Non-navigable
// schemes and malformed values return ErrLinkResolution.
func ResolveLink(base *url.URL, href string) (string, error) {
	href = strings.TrimSpace(href)
	if href == "" || href == "#" {
		return "", fmt.Errorf("%w: empty href", ErrLinkResolution)
	}
	lower := strings.ToLower(href)
	for _, scheme := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, scheme) {
			return "", fmt.Errorf("%w: %s link", ErrLinkResolution, strings.TrimSuffix(scheme, ":"))
		}
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrLinkResolution, err)
	}
	resolved := base.ResolveReference(ref)
	resolved.Fragment = ""
	resolved.RawFragment = ""
	return resolved.String(), nil
}

// ShouldFollowLink reports whether resolvedURL may enter the frontier: it must
// be http(s), share origin with the target, not end in a skipped extension and
// not have been seen before.
func ShouldFollowLink(resolvedURL, origin string, seen func(string) bool, skipExtensions []string) bool {
	linkOrigin, err := Origin(resolvedURL)
	if err != nil || linkOrigin != strings.ToLower(origin) {
		return false
	}

	u, err := url.Parse(resolvedURL)
	if err != nil {
		return false
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if ext != "" {
		for _, skip := range skipExtensions {
			if ext == strings.ToLower(skip) {
				return false
			}
		}
	}

	if seen != nil && seen(NormalizeURL(resolvedURL)) {
		return false
	}
	return true
}

// CompilePatterns builds case-insensitive matchers for priority patterns
func CompilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("invalid priority pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

// PriorityOf returns HighPriority when the URL path matches a contact-like pattern.
func PriorityOf(rawURL string, patterns []*regexp.Regexp) int {
	u, err := url.Parse(rawURL)
	if err != nil {
		return DefaultPriority
	}
	for _, re := range patterns {
		if re.MatchString(u.Path) {
			return HighPriority
		}
	}
	return DefaultPriority
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
