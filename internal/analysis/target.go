package analysis

import (
	"fmt"
	"net/url"
	"strings"
)

// Target is the resource being analyzed. It is derived once per run and is
// read-only input to every check.
type Target struct {
	// URL is the normalized page URL submitted by the client.
	URL string
	// BaseURL is the derived origin (scheme://host) used for robots.txt,
	// sitemap and same-origin link classification.
	BaseURL string
	// Host is the lowercased hostname without port.
	Host string
	// Secure reports whether the scheme is https.
	Secure bool
}

// NewTarget normalizes rawURL and derives the base origin. It lowercases the
// scheme and host, strips default ports and fragments, and rejects URLs
// without an http(s) scheme or a host.
func NewTarget(rawURL string) (Target, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return Target{}, fmt.Errorf("parse target url: %w", err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Scheme != "http" && u.Scheme != "https" {
		return Target{}, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return Target{}, fmt.Errorf("target url %q has no host", rawURL)
	}
	if u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}
	u.Fragment = ""
	if u.Path == "" {
		u.Path = "/"
	}
	return Target{
		URL:     u.String(),
		BaseURL: fmt.Sprintf("%s://%s", u.Scheme, u.Host),
		Host:    u.Hostname(),
		Secure:  u.Scheme == "https",
	}, nil
}

// SameOrigin reports whether link points at the target's host. Relative
// links count as same-origin.
func (t Target) SameOrigin(link string) bool {
	link = strings.TrimSpace(link)
	if link == "" {
		return false
	}
	if strings.HasPrefix(link, "/") && !strings.HasPrefix(link, "//") {
		return true
	}
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	if u.Host == "" && u.Scheme == "" {
		// Bare relative path like "about.html".
		return !strings.Contains(link, ":")
	}
	return strings.EqualFold(u.Hostname(), t.Host)
}
