package extract

import (
	"net/url"
	"regexp"
	"strings"
)

var facebookPattern = regexp.MustCompile(`(?i)https?://(?:www\.|m\.|web\.)?facebook\.com/[^\s"'<>\\)]+`)

// Path segments that mark share buttons, embeds and tracking pixels rather than pages
var shareSegments = map[string]bool{
	"sharer":     true,
	"sharer.php": true,
	"share":      true,
	"share.php":  true,
	"plugins":    true,
	"dialog":     true,
	"tr":         true,
}

func fromSocial(c Content) ([]string, error) {
	var out []string
	for _, raw := range facebookPattern.FindAllString(c.HTML, -1) {
		if canonical, ok := CanonicalProfile(raw); ok {
			out = append(out, canonical)
		}
	}
	return out, nil
}

// CanonicalProfile rewrites a Facebook URL to https://www.facebook.com/<path>
// with no query, fragment or trailing slash. HTML-escaped ampersands are
// undone before parsing.
func CanonicalProfile(raw string) (string, bool) {
	raw = strings.ReplaceAll(raw, "&amp;", "&")
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}

	path := strings.TrimRight(u.EscapedPath(), "/")
	if path == "" {
		return "", false
	}

	return "https://www.facebook.com" + path, true
}

// IsShareURL reports whether a canonical profile URL is a share/plugin link
func IsShareURL(profile string) bool {
	u, err := url.Parse(profile)
	if err != nil {
		return false
	}
	first, _, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
	return shareSegments[strings.ToLower(first)]
}

// RankProfiles de-duplicates profile URLs and moves share/plugin links after
// canonical pages, keeping first-seen order within each group.
func RankProfiles(profiles []string) []string {
	seen := make(map[string]bool, len(profiles))
	var pages, shares []string
	for _, p := range profiles {
		if seen[p] {
			continue
		}
		seen[p] = true
		if IsShareURL(p) {
			shares = append(shares, p)
		} else {
			pages = append(pages, p)
		}
	}
	return append(pages, shares...)
}
