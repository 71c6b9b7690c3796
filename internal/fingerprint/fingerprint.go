// Package fingerprint computes stable content fingerprints over the visible
// text of a page, so drift can be detected without storing full bodies.
package fingerprint

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/PrabhuV2003/Website-Monitoring/internal/monitor"
)

// Extractor implements monitor.Fingerprinter. Markup, script/style blocks,
// comments, and any configured exclusion selectors are stripped before
// hashing; whitespace is collapsed and case is preserved.
type Extractor struct {
	excludeSelectors []string
	hasher           monitor.Hasher
	clock            monitor.Clock
}

// New builds an Extractor. excludeSelectors are CSS selectors for page regions
// that legitimately change between checks (rotating tickers, timestamps) and
// must not count as drift.
func New(excludeSelectors []string, hasher monitor.Hasher, clock monitor.Clock) *Extractor {
	return &Extractor{
		excludeSelectors: excludeSelectors,
		hasher:           hasher,
		clock:            clock,
	}
}

// Fingerprint extracts the canonical text of body, hashes it, and returns
// both so the hashed text can be archived alongside any drift finding.
func (e *Extractor) Fingerprint(body []byte, path string) (monitor.PageFingerprint, string, error) {
	text, err := e.CanonicalText(body)
	if err != nil {
		return monitor.PageFingerprint{}, "", err
	}
	hash, err := e.hasher.Hash([]byte(text))
	if err != nil {
		return monitor.PageFingerprint{}, "", fmt.Errorf("hash page text: %w", err)
	}
	fp := monitor.PageFingerprint{
		Path:       path,
		Hash:       hash,
		ComputedAt: e.clock.Now(),
	}
	return fp, text, nil
}

// CanonicalText returns the normalized visible text used for hashing.
func (e *Extractor) CanonicalText(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse page body: %w", err)
	}

	// Comment nodes never reach .Text(); script/style contents would.
	doc.Find("script, style, noscript, template").Remove()
	for _, sel := range e.excludeSelectors {
		doc.Find(sel).Remove()
	}

	scope := doc.Find("body")
	var text string
	if scope.Length() > 0 {
		text = scope.Text()
	} else {
		text = doc.Text()
	}
	return strings.Join(strings.Fields(text), " "), nil
}
