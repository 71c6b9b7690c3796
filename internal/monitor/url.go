package monitor

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeURL canonicalizes a URL into the deduplication key used for the
// whole run. It lowercases the scheme and host, strips default ports, removes
// the fragment, sorts query parameters, and normalizes the trailing slash so
// that two spellings of the same page collapse to one key.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Scheme == "http" && strings.HasSuffix(u.Host, ":80") {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" && strings.HasSuffix(u.Host, ":443") {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Fragment = ""

	q := u.Query()
	u.RawQuery = q.Encode()
	u.ForceQuery = false

	switch u.Path {
	case "":
		u.Path = "/"
	case "/":
	default:
		u.Path = strings.TrimSuffix(u.Path, "/")
	}

	return u.String(), nil
}

// PagePath extracts the path component used as the baseline key for a page.
// Empty paths map to "/" so the site root always has a stable key.
func PagePath(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}

// SamePageDifferentFragment reports whether link points at the same path and
// query as source, differing only by a non-empty fragment.
func SamePageDifferentFragment(link, source *url.URL) bool {
	if link.Fragment == "" {
		return false
	}
	if link.Host != "" && !strings.EqualFold(link.Host, source.Host) {
		return false
	}
	linkPath := link.Path
	if linkPath == "" {
		linkPath = source.Path
	}
	return normalizePath(linkPath) == normalizePath(source.Path) &&
		link.RawQuery == source.RawQuery
}

func normalizePath(p string) string {
	if p == "" || p == "/" {
		return "/"
	}
	return strings.TrimSuffix(p, "/")
}
