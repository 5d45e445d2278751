package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Denylists is the externally supplied table used to reject email candidates.
type Denylists struct {
	// Domains are rejected when an email's domain equals an entry or is a subdomain of it.
	Domains []string `yaml:"domains"`

	// LocalPrefixes are rejected when an email's local part starts with an entry.
	LocalPrefixes []string `yaml:"localPrefixes"`

	// Substrings reject any candidate containing them (asset file names caught by the regex).
	Substrings []string `yaml:"substrings"`

	// ReplaceDefaults discards the built-in table instead of extending it.
	ReplaceDefaults bool `yaml:"replaceDefaults"`
}

// DefaultDenylists returns the built-in table: analytics and tracking vendors,
// placeholder domains, role mailboxes and image/document suffixes. Code and font
// asset extensions are rejected by the validator's final-label check.
func DefaultDenylists() Denylists {
	return Denylists{
		Domains: []string{
			"sentry.io", "sentry-next.wixpress.com", "sentry.wixpress.com", "wixpress.com",
			"google-analytics.com", "googletagmanager.com", "doubleclick.net",
			"hotjar.com", "segment.io", "mixpanel.com",
			"example.com", "example.org", "example.net",
			"domain.com", "yourdomain.com", "email.com", "mysite.com", "company.com",
		},
		LocalPrefixes: []string{
			"noreply", "no-reply", "donotreply", "do-not-reply",
			"admin", "postmaster", "mailer-daemon", "hostmaster", "webmaster", "abuse",
		},
		Substrings: []string{
			".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".bmp", ".ico",
			".pdf", ".mp4",
		},
	}
}

// LoadDenylists reads a YAML denylist table. Entries extend the defaults unless
// replaceDefaults is set. An empty path returns the defaults.
func LoadDenylists(path string) (Denylists, error) {
	defaults := DefaultDenylists()
	if path == "" {
		return defaults, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // user-supplied denylist path
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Denylists{}, fmt.Errorf("%w: denylist %s", ErrConfigNotFound, path)
		}
		return Denylists{}, fmt.Errorf("failed to read denylist: %w", err)
	}

	var file Denylists
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Denylists{}, fmt.Errorf("%w: failed to parse denylist YAML: %v", ErrInputValidation, err)
	}

	if file.ReplaceDefaults {
		file.ReplaceDefaults = false
		return file, nil
	}

	return Denylists{
		Domains:       append(defaults.Domains, file.Domains...),
		LocalPrefixes: append(defaults.LocalPrefixes, file.LocalPrefixes...),
		Substrings:    append(defaults.Substrings, file.Substrings...),
	}, nil
}
