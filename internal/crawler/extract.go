package crawler

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/PrabhuV2003/Website-Monitoring/internal/monitor"
)

// pageData is everything discovery needs from one parsed internal page.
type pageData struct {
	links      []monitor.Link
	anchorIDs  map[string]struct{}
	missingAlt int
}

var skipSchemes = map[string]struct{}{
	"mailto": {}, "javascript": {}, "tel": {}, "data": {}, "about": {},
}

// parsePage extracts outgoing references, anchor IDs, and accessibility
// defects from an HTML body. Relative URLs are resolved against base, which
// must be the final URL of the fetch so redirected pages resolve correctly.
func parsePage(body []byte, base *url.URL) (pageData, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return pageData{}, fmt.Errorf("parse html: %w", err)
	}

	data := pageData{anchorIDs: make(map[string]struct{})}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if link, ok := resolveRef(base, s.AttrOr("href", ""), false); ok {
			data.links = append(data.links, link)
		}
	})

	doc.Find("img[src], script[src], video[src], source[src], audio[src]").Each(func(_ int, s *goquery.Selection) {
		if link, ok := resolveRef(base, s.AttrOr("src", ""), true); ok {
			data.links = append(data.links, link)
		}
	})

	doc.Find("link[href]").Each(func(_ int, s *goquery.Selection) {
		rel := strings.ToLower(s.AttrOr("rel", ""))
		if rel != "stylesheet" && rel != "icon" {
			return
		}
		if link, ok := resolveRef(base, s.AttrOr("href", ""), true); ok {
			data.links = append(data.links, link)
		}
	})

	doc.Find("[id]").Each(func(_ int, s *goquery.Selection) {
		if id := s.AttrOr("id", ""); id != "" {
			data.anchorIDs[id] = struct{}{}
		}
	})
	// Legacy anchors: <a name="...">.
	doc.Find("a[name]").Each(func(_ int, s *goquery.Selection) {
		if name := s.AttrOr("name", ""); name != "" {
			data.anchorIDs[name] = struct{}{}
		}
	})

	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		if alt, exists := s.Attr("alt"); !exists || strings.TrimSpace(alt) == "" {
			data.missingAlt++
		}
	})

	return data, nil
}

func resolveRef(base *url.URL, ref string, fromAssetTag bool) (monitor.Link, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return monitor.Link{}, false
	}
	u, err := url.Parse(ref)
	if err != nil {
		return monitor.Link{}, false
	}
	if _, skip := skipSchemes[strings.ToLower(u.Scheme)]; skip {
		return monitor.Link{}, false
	}
	resolved := base.ResolveReference(u)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return monitor.Link{}, false
	}
	return monitor.Link{URL: resolved.String(), FromAssetTag: fromAssetTag}, true
}
