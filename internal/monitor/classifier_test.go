package monitor

import (
	"net/url"
	"regexp"
	"testing"
)

func mustOrigin(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse origin %q: %v", raw, err)
	}
	return u
}

func TestClassify(t *testing.T) {
	t.Parallel()

	origin := mustOrigin(t, "https://example.com")
	source := "https://example.com/about"
	ignore := []*regexp.Regexp{
		regexp.MustCompile(`.*twitter\.com.*`),
		regexp.MustCompile(`/wp-admin/`),
	}

	cases := []struct {
		name string
		link Link
		want LinkCategory
	}{
		{"same origin page", Link{URL: "https://example.com/contact"}, LinkInternalPage},
		{"same origin asset by extension", Link{URL: "https://example.com/logo.png"}, LinkInternalAsset},
		{"same origin script extension", Link{URL: "https://example.com/app.js"}, LinkInternalAsset},
		{"asset tag overrides extension", Link{URL: "https://example.com/render", FromAssetTag: true}, LinkInternalAsset},
		{"different origin", Link{URL: "https://other.com/page"}, LinkExternal},
		{"different scheme is external", Link{URL: "http://example.com/contact"}, LinkExternal},
		{"default port collapses to same origin", Link{URL: "https://example.com:443/contact"}, LinkInternalPage},
		{"anchor on same page", Link{URL: "https://example.com/about#team"}, LinkAnchorFragment},
		{"fragment on other page is a page", Link{URL: "https://example.com/contact#form"}, LinkInternalPage},
		{"ignored social domain", Link{URL: "https://twitter.com/example"}, LinkExcluded},
		{"ignored admin path", Link{URL: "https://example.com/wp-admin/options.php"}, LinkExcluded},
		{"exclusion beats asset tag", Link{URL: "https://twitter.com/pic.png", FromAssetTag: true}, LinkExcluded},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.link, source, origin, ignore)
			if got != tc.want {
				t.Fatalf("Classify(%q) = %q, want %q", tc.link.URL, got, tc.want)
			}
		})
	}
}

// TestClassifyDeterministic guards the idempotence contract: the same inputs
// always yield the same category.
func TestClassifyDeterministic(t *testing.T) {
	t.Parallel()

	origin := mustOrigin(t, "https://example.com")
	ignore := []*regexp.Regexp{regexp.MustCompile(`\?replytocom=`)}
	link := Link{URL: "https://example.com/post?replytocom=42"}

	first := Classify(link, "https://example.com/", origin, ignore)
	for i := 0; i < 100; i++ {
		if got := Classify(link, "https://example.com/", origin, ignore); got != first {
			t.Fatalf("classification changed between calls: %q vs %q", first, got)
		}
	}
	if first != LinkExcluded {
		t.Fatalf("expected excluded, got %q", first)
	}
}

func TestClassifyUnparsableURLExcluded(t *testing.T) {
	t.Parallel()

	origin := mustOrigin(t, "https://example.com")
	got := Classify(Link{URL: "https://exa mple.com/%zz"}, "https://example.com/", origin, nil)
	if got != LinkExcluded {
		t.Fatalf("expected unparsable URL to be excluded, got %q", got)
	}
}
