package crawler

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/PrabhuV2003/Website-Monitoring/internal/baseline/memory"
	"github.com/PrabhuV2003/Website-Monitoring/internal/clock/system"
	"github.com/PrabhuV2003/Website-Monitoring/internal/fingerprint"
	"github.com/PrabhuV2003/Website-Monitoring/internal/hash/sha256"
	"github.com/PrabhuV2003/Website-Monitoring/internal/integrity"
	"github.com/PrabhuV2003/Website-Monitoring/internal/monitor"
	snapmemory "github.com/PrabhuV2003/Website-Monitoring/internal/snapshot/memory"
)

type staticIDs struct{}

func (staticIDs) NewID() (string, error) { return "run-0001", nil }

// stubFetcher serves canned results keyed by URL and records every call.
// Unknown URLs come back 404; URLs in block park until the context ends.
type stubFetcher struct {
	mu    sync.Mutex
	calls map[string]int
	pages map[string]monitor.FetchResult
	errs  map[string]error
	block map[string]bool
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{
		calls: make(map[string]int),
		pages: make(map[string]monitor.FetchResult),
		errs:  make(map[string]error),
		block: make(map[string]bool),
	}
}

func (f *stubFetcher) page(url, body string) {
	f.pages[url] = monitor.FetchResult{URL: url, FinalURL: url, StatusCode: 200, Body: []byte(body)}
}

func (f *stubFetcher) Fetch(ctx context.Context, url string) (monitor.FetchResult, error) {
	f.mu.Lock()
	f.calls[url]++
	f.mu.Unlock()
	if f.block[url] {
		<-ctx.Done()
		return monitor.FetchResult{}, &monitor.FetchError{URL: url, Reason: monitor.ReasonTimeout, Err: ctx.Err()}
	}
	if err, ok := f.errs[url]; ok {
		return monitor.FetchResult{}, err
	}
	if res, ok := f.pages[url]; ok {
		return res, nil
	}
	return monitor.FetchResult{URL: url, FinalURL: url, StatusCode: 404}, nil
}

func (f *stubFetcher) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func testConfig() monitor.RunConfig {
	return monitor.RunConfig{
		SiteID:               "example.com",
		Origin:               "https://example.com",
		SeedPages:            []string{"https://example.com/"},
		MaxDepth:             3,
		MaxLinks:             100,
		MaxConcurrentFetches: 4,
		SlowThreshold:        2 * time.Second,
	}
}

func newTestEngine(t *testing.T, cfg monitor.RunConfig, f monitor.Fetcher) *Engine {
	t.Helper()
	e, err := New(cfg, Options{
		Fetcher: f,
		Clock:   system.New(),
		IDs:     staticIDs{},
	})
	require.NoError(t, err)
	return e
}

func TestRunHealthySiteNoFindings(t *testing.T) {
	f := newStubFetcher()
	f.page("https://example.com/", `<html><body>
		<a href="/about">About</a>
		<a href="/contact">Contact</a>
	</body></html>`)
	f.page("https://example.com/about", `<html><body><a href="/">Home</a></body></html>`)
	f.page("https://example.com/contact", `<html><body>ok</body></html>`)

	rep, err := newTestEngine(t, testConfig(), f).Run(context.Background())
	require.NoError(t, err)
	require.Empty(t, rep.Findings)
	require.Equal(t, 3, rep.Summary.PagesVisited)
	require.Equal(t, 3, rep.Summary.LinksDiscovered)
	require.Equal(t, 3, rep.Summary.LinksChecked)
	require.Zero(t, rep.Summary.Incomplete)
	require.Equal(t, float64(100), rep.Summary.UptimePercent)
}

func TestRunDeduplicatesDiscoveredURLs(t *testing.T) {
	f := newStubFetcher()
	// Four spellings of the same page plus the canonical form.
	f.page("https://example.com/", `<html><body>
		<a href="/about">a</a>
		<a href="/about/">b</a>
		<a href="https://EXAMPLE.com/about?">c</a>
		<a href="https://example.com:443/about">d</a>
	</body></html>`)
	f.page("https://example.com/about", `<html><body>ok</body></html>`)

	rep, err := newTestEngine(t, testConfig(), f).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, f.callCount("https://example.com/about"))
	require.Equal(t, 2, rep.Summary.LinksDiscovered)
}

func TestRunBrokenLinkSeverities(t *testing.T) {
	cfg := testConfig()
	cfg.CheckExternal = true
	f := newStubFetcher()
	f.page("https://example.com/", `<html><body>
		<a href="/missing">gone</a>
		<a href="https://other.test/page">external</a>
	</body></html>`)
	// /missing falls through to the stub's 404 default.
	f.errs["https://other.test/page"] = &monitor.FetchError{
		URL:    "https://other.test/page",
		Reason: monitor.ReasonDNS,
	}

	rep, err := newTestEngine(t, cfg, f).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, rep.Findings, 2)

	// Sorted output: the high-severity internal break comes first.
	require.Equal(t, monitor.SeverityHigh, rep.Findings[0].Severity)
	require.Equal(t, "https://example.com/missing", rep.Findings[0].TargetURL)
	require.Equal(t, 404, rep.Findings[0].StatusCode)
	require.Equal(t, "https://example.com/", rep.Findings[0].SourcePage)

	require.Equal(t, monitor.SeverityMedium, rep.Findings[1].Severity)
	require.Equal(t, "dns", rep.Findings[1].Message)
}

func TestRunExternalLinksSkippedWhenDisabled(t *testing.T) {
	f := newStubFetcher()
	f.page("https://example.com/", `<html><body><a href="https://other.test/">x</a></body></html>`)

	rep, err := newTestEngine(t, testConfig(), f).Run(context.Background())
	require.NoError(t, err)
	require.Empty(t, rep.Findings)
	require.Zero(t, f.callCount("https://other.test/"))
}

func TestRunExcludedNeverFetchedNeverReported(t *testing.T) {
	cfg := testConfig()
	cfg.IgnorePatterns = []*regexp.Regexp{regexp.MustCompile(`/admin/`)}
	f := newStubFetcher()
	f.page("https://example.com/", `<html><body><a href="/admin/login">admin</a></body></html>`)

	rep, err := newTestEngine(t, cfg, f).Run(context.Background())
	require.NoError(t, err)
	require.Empty(t, rep.Findings)
	require.Zero(t, f.callCount("https://example.com/admin/login"))
	require.Equal(t, 1, rep.Summary.LinksDiscovered)
}

func TestRunAnchorFragmentsResolvedWithoutRefetch(t *testing.T) {
	f := newStubFetcher()
	f.page("https://example.com/", `<html><body>
		<h2 id="team">Team</h2>
		<a href="#team">jump</a>
		<a href="#nope">dead</a>
	</body></html>`)

	rep, err := newTestEngine(t, testConfig(), f).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, f.callCount("https://example.com/"))
	require.Len(t, rep.Findings, 1)
	require.Equal(t, monitor.SeverityHigh, rep.Findings[0].Severity)
	require.Equal(t, monitor.CategoryBrokenLink, rep.Findings[0].Category)
	require.Contains(t, rep.Findings[0].Message, "#nope")
}

func TestRunSlowResourceFinding(t *testing.T) {
	cfg := testConfig()
	cfg.SlowThreshold = 100 * time.Millisecond
	f := newStubFetcher()
	f.page("https://example.com/", `<html><body><a href="/style.css">css</a></body></html>`)
	f.pages["https://example.com/style.css"] = monitor.FetchResult{
		URL:        "https://example.com/style.css",
		FinalURL:   "https://example.com/style.css",
		StatusCode: 200,
		Elapsed:    450 * time.Millisecond,
	}

	rep, err := newTestEngine(t, cfg, f).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, rep.Findings, 1)
	require.Equal(t, monitor.CategorySlowResource, rep.Findings[0].Category)
	require.Equal(t, monitor.SeverityMedium, rep.Findings[0].Severity)
	require.Equal(t, int64(450), rep.Findings[0].ElapsedMs)
}

func TestRunDepthBudgetStopsDiscovery(t *testing.T) {
	cfg := testConfig()
	cfg.MaxDepth = 1
	f := newStubFetcher()
	f.page("https://example.com/", `<html><body><a href="/l1">1</a></body></html>`)
	f.page("https://example.com/l1", `<html><body><a href="/l2">2</a></body></html>`)
	f.page("https://example.com/l2", `<html><body>deep</body></html>`)

	rep, err := newTestEngine(t, cfg, f).Run(context.Background())
	require.NoError(t, err)
	require.Zero(t, f.callCount("https://example.com/l2"))
	require.Equal(t, 2, rep.Summary.LinksDiscovered)
}

func TestRunLinkBudgetStopsDiscovery(t *testing.T) {
	cfg := testConfig()
	cfg.MaxLinks = 3
	var body string
	for i := 0; i < 10; i++ {
		body += fmt.Sprintf(`<a href="/p%d">p</a>`, i)
	}
	f := newStubFetcher()
	f.page("https://example.com/", "<html><body>"+body+"</body></html>")
	for i := 0; i < 10; i++ {
		f.page(fmt.Sprintf("https://example.com/p%d", i), "<html><body>ok</body></html>")
	}

	rep, err := newTestEngine(t, cfg, f).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, rep.Summary.LinksDiscovered)
	require.Equal(t, 3, rep.Summary.LinksChecked)
	require.Zero(t, rep.Summary.Incomplete)
}

func TestRunDeadlineProducesIncompleteFindings(t *testing.T) {
	cfg := testConfig()
	cfg.RunTimeout = 150 * time.Millisecond
	cfg.MaxConcurrentFetches = 2
	f := newStubFetcher()
	f.page("https://example.com/", `<html><body>
		<a href="/fast">f</a>
		<a href="/stuck-a">s</a>
		<a href="/stuck-b">s</a>
	</body></html>`)
	f.page("https://example.com/fast", "<html><body>ok</body></html>")
	f.block["https://example.com/stuck-a"] = true
	f.block["https://example.com/stuck-b"] = true

	rep, err := newTestEngine(t, cfg, f).Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, rep.Summary.LinksDiscovered, rep.Summary.LinksChecked+rep.Summary.Incomplete)
	require.Equal(t, 2, rep.Summary.Incomplete)
	var incomplete int
	for _, finding := range rep.Findings {
		if finding.Category == monitor.CategoryIncomplete {
			incomplete++
			require.Equal(t, monitor.SeverityInfo, finding.Severity)
		}
	}
	require.Equal(t, 2, incomplete)
}

func TestRunRedirectResolvesAgainstFinalURL(t *testing.T) {
	f := newStubFetcher()
	f.pages["https://example.com/"] = monitor.FetchResult{
		URL:        "https://example.com/",
		FinalURL:   "https://example.com/home/",
		StatusCode: 200,
		Body:       []byte(`<html><body><a href="next">n</a></body></html>`),
	}
	f.page("https://example.com/home/next", "<html><body>ok</body></html>")

	rep, err := newTestEngine(t, testConfig(), f).Run(context.Background())
	require.NoError(t, err)
	require.Empty(t, rep.Findings)
	require.Equal(t, 1, f.callCount("https://example.com/home/next"))
}

func TestRunContentDriftEmitsFinding(t *testing.T) {
	cfg := testConfig()
	cfg.MonitoredPages = map[string]bool{"/": true}
	store := memory.New()
	snapshots := snapmemory.New()
	clk := system.New()
	fp := fingerprint.New(nil, sha256.New(), clk)
	tracker := integrity.New(store, clk, nil)

	run := func(body string) monitor.RunReport {
		f := newStubFetcher()
		f.page("https://example.com/", body)
		e, err := New(cfg, Options{
			Fetcher:       f,
			Fingerprinter: fp,
			Tracker:       tracker,
			Snapshots:     snapshots,
			Clock:         clk,
			IDs:           staticIDs{},
		})
		require.NoError(t, err)
		rep, err := e.Run(context.Background())
		require.NoError(t, err)
		return rep
	}

	// First run baselines silently, the second drifts, the third is stable
	// against the rebaselined content.
	require.Empty(t, run(`<html><body>version one</body></html>`).Findings)

	drifted := run(`<html><body>version two</body></html>`)
	require.Len(t, drifted.Findings, 1)
	require.Equal(t, monitor.CategoryContentDrift, drifted.Findings[0].Category)
	require.Equal(t, "https://example.com/", drifted.Findings[0].SourcePage)
	require.NotEmpty(t, drifted.Findings[0].OldHash)
	require.NotEmpty(t, drifted.Findings[0].NewHash)

	// The archived snapshot holds the canonical text that was hashed, not
	// the raw markup.
	archived, ok := snapshots.Get(fmt.Sprintf("example.com//%s.txt", drifted.Findings[0].NewHash))
	require.True(t, ok, "drift must archive a snapshot")
	require.Equal(t, "version two", string(archived))

	require.Empty(t, run(`<html><body>version two</body></html>`).Findings)
}

func TestRunRepeatDiscoveryMergesSourcePages(t *testing.T) {
	f := newStubFetcher()
	f.page("https://example.com/", `<html><body>
		<a href="/about">a</a>
		<a href="/contact">c</a>
	</body></html>`)
	f.page("https://example.com/about", `<html><body><a href="/contact">c</a></body></html>`)
	// /contact is left out so it 404s and its finding carries a source page.

	rep, err := newTestEngine(t, testConfig(), f).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, f.callCount("https://example.com/contact"))
	require.Len(t, rep.Findings, 1)
	require.NotEmpty(t, rep.Findings[0].SourcePage)
}

func TestNewRejectsBadConfig(t *testing.T) {
	f := newStubFetcher()
	base := Options{Fetcher: f, Clock: system.New(), IDs: staticIDs{}}

	cfg := testConfig()
	cfg.Origin = "://bad"
	_, err := New(cfg, base)
	require.Error(t, err)

	cfg = testConfig()
	cfg.SeedPages = nil
	_, err = New(cfg, base)
	require.Error(t, err)

	cfg = testConfig()
	cfg.SeedPages = []string{"not a url"}
	_, err = New(cfg, base)
	require.Error(t, err)

	_, err = New(testConfig(), Options{Clock: system.New(), IDs: staticIDs{}})
	require.Error(t, err)
}
