package monitor

import (
	"net/url"
	"path"
	"regexp"
	"strings"
)

// Link is a discovered reference before classification.
type Link struct {
	// URL is the absolute URL of the reference.
	URL string
	// FromAssetTag is set when the reference came from an <img>, <script>,
	// <video>, <source> or stylesheet <link> tag rather than an anchor.
	FromAssetTag bool
}

// assetExtensions are file extensions treated as internal assets.
var assetExtensions = map[string]struct{}{
	".apng": {}, ".avif": {}, ".bmp": {}, ".css": {}, ".eot": {},
	".gif": {}, ".ico": {}, ".jpeg": {}, ".jpg": {}, ".js": {},
	".mjs": {}, ".mp4": {}, ".otf": {}, ".png": {}, ".svg": {},
	".ttf": {}, ".webm": {}, ".webp": {}, ".woff": {}, ".woff2": {},
}

// Classify maps a discovered link to its category. It is deterministic and
// side-effect free. Evaluation order is exclusion-first, then anchor handling,
// then origin, then extension.
func Classify(link Link, sourcePage string, siteOrigin *url.URL, ignorePatterns []*regexp.Regexp) LinkCategory {
	for _, pattern := range ignorePatterns {
		if pattern.MatchString(link.URL) {
			return LinkExcluded
		}
	}

	u, err := url.Parse(link.URL)
	if err != nil {
		return LinkExcluded
	}

	if source, srcErr := url.Parse(sourcePage); srcErr == nil {
		if SamePageDifferentFragment(u, source) {
			return LinkAnchorFragment
		}
	}

	if originKey(u) != originKey(siteOrigin) {
		return LinkExternal
	}

	if link.FromAssetTag {
		return LinkInternalAsset
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if _, ok := assetExtensions[ext]; ok {
		return LinkInternalAsset
	}
	return LinkInternalPage
}

// originKey reduces a URL to its scheme+host identity with default ports
// stripped, so http://Example.com:80 and http://example.com compare equal.
func originKey(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)
	switch {
	case scheme == "http" && strings.HasSuffix(host, ":80"):
		host = strings.TrimSuffix(host, ":80")
	case scheme == "https" && strings.HasSuffix(host, ":443"):
		host = strings.TrimSuffix(host, ":443")
	}
	return scheme + "://" + host
}
