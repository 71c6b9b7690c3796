// Package crawler implements the bounded concurrent crawl engine that walks a
// site's link graph and emits findings for everything that is broken, slow,
// drifted, or unreachable.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"go.uber.org/zap"

	"github.com/PrabhuV2003/Website-Monitoring/internal/metrics"
	"github.com/PrabhuV2003/Website-Monitoring/internal/monitor"
	"github.com/PrabhuV2003/Website-Monitoring/internal/report"
)

// Defaults applied when the run config leaves a knob unset.
const (
	defaultConcurrency = 4
	defaultMaxLinks    = 500
)

// tracked pairs a crawl target with its lifecycle state. All mutation happens
// under the engine mutex.
type tracked struct {
	target monitor.CrawlTarget
	state  monitor.TargetState
	// anchors is the anchor-ID set of the source page, carried by
	// anchor-fragment targets so they resolve without network I/O.
	anchors map[string]struct{}
}

// Engine runs one site check. It owns the frontier, the run-scoped visited
// set, and the findings for the duration of a run; nothing survives the run
// except what the baseline store persists.
type Engine struct {
	cfg           monitor.RunConfig
	origin        *url.URL
	fetcher       monitor.Fetcher
	fingerprinter monitor.Fingerprinter
	tracker       monitor.ContentTracker
	snapshots     monitor.SnapshotStore
	clock         monitor.Clock
	ids           monitor.IDGenerator
	logger        *zap.Logger

	mu               sync.Mutex
	targets          map[string]*tracked
	findings         []monitor.Finding
	frontier         chan *tracked
	outstanding      int
	closeOnce        sync.Once
	budgetLogged     bool
	queued           int
	resolved         int
	pagesVisited     int
	fetchesAttempted int
	fetchesSucceeded int
}

// Options carries the engine's collaborators. Tracker, Fingerprinter and
// Snapshots may be nil when no page on the site monitors content changes.
type Options struct {
	Fetcher       monitor.Fetcher
	Fingerprinter monitor.Fingerprinter
	Tracker       monitor.ContentTracker
	Snapshots     monitor.SnapshotStore
	Clock         monitor.Clock
	IDs           monitor.IDGenerator
	Logger        *zap.Logger
}

// New validates the run configuration and builds an Engine. Configuration
// errors (malformed origin or seed URL) are fatal here, before any fetch.
func New(cfg monitor.RunConfig, opts Options) (*Engine, error) {
	if opts.Fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if opts.Clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if opts.IDs == nil {
		return nil, fmt.Errorf("id generator is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	origin, err := url.Parse(cfg.Origin)
	if err != nil || origin.Host == "" {
		return nil, fmt.Errorf("invalid site origin %q", cfg.Origin)
	}
	if len(cfg.SeedPages) == 0 {
		return nil, fmt.Errorf("at least one seed page is required")
	}
	for _, seed := range cfg.SeedPages {
		u, seedErr := url.Parse(seed)
		if seedErr != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return nil, fmt.Errorf("invalid seed URL %q", seed)
		}
	}
	if cfg.MaxConcurrentFetches <= 0 {
		cfg.MaxConcurrentFetches = defaultConcurrency
	}
	if cfg.MaxLinks <= 0 {
		cfg.MaxLinks = defaultMaxLinks
	}
	return &Engine{
		cfg:           cfg,
		origin:        origin,
		fetcher:       opts.Fetcher,
		fingerprinter: opts.Fingerprinter,
		tracker:       opts.Tracker,
		snapshots:     opts.Snapshots,
		clock:         opts.Clock,
		ids:           opts.IDs,
		logger:        opts.Logger,
		targets:       make(map[string]*tracked),
	}, nil
}

// Run walks the site graph until the frontier drains or the run deadline
// expires. It always returns a complete report: targets that never resolved
// are reported as incomplete findings, not dropped.
func (e *Engine) Run(ctx context.Context) (monitor.RunReport, error) {
	runID, err := e.ids.NewID()
	if err != nil {
		return monitor.RunReport{}, fmt.Errorf("generate run id: %w", err)
	}
	started := e.clock.Now()

	if e.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.RunTimeout)
		defer cancel()
	}

	// The budget caps distinct targets, so a frontier sized to the budget
	// plus seeds can never block a producing worker.
	e.frontier = make(chan *tracked, e.cfg.MaxLinks+len(e.cfg.SeedPages)+1)
	for _, seed := range e.cfg.SeedPages {
		key, _ := monitor.NormalizeURL(seed)
		e.mu.Lock()
		e.enqueueLocked(key, monitor.CrawlTarget{
			URL:      key,
			Category: monitor.LinkInternalPage,
			Depth:    0,
		}, nil)
		e.mu.Unlock()
	}

	var wg sync.WaitGroup
	for i := 0; i < e.cfg.MaxConcurrentFetches; i++ {
		wg.Add(1)
		go e.worker(ctx, &wg)
	}
	wg.Wait()

	finished := e.clock.Now()
	e.reportUnresolved()

	e.mu.Lock()
	defer e.mu.Unlock()
	findings := make([]monitor.Finding, len(e.findings))
	copy(findings, e.findings)
	report.SortFindings(findings)

	incomplete := e.queued - e.resolved
	summary := monitor.RunSummary{
		RunID:              runID,
		SiteID:             e.cfg.SiteID,
		Started:            started,
		Finished:           finished,
		PagesVisited:       e.pagesVisited,
		LinksChecked:       e.resolved,
		LinksDiscovered:    e.queued,
		Incomplete:         incomplete,
		FetchesAttempted:   e.fetchesAttempted,
		FetchesSucceeded:   e.fetchesSucceeded,
		UptimePercent:      report.UptimePercent(e.fetchesSucceeded, e.fetchesAttempted),
		FindingsBySeverity: report.CountBySeverity(findings),
	}
	metrics.RecordRun(e.cfg.SiteID, len(findings))
	return monitor.RunReport{Summary: summary, Findings: findings}, nil
}

func (e *Engine) worker(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	metrics.WorkerStarted()
	defer metrics.WorkerStopped()
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-e.frontier:
			if !ok {
				return
			}
			e.process(ctx, t)
			e.finishOne()
		}
	}
}

// finishOne closes the frontier once every queued target has been handled.
func (e *Engine) finishOne() {
	e.mu.Lock()
	e.outstanding--
	done := e.outstanding == 0
	e.mu.Unlock()
	if done {
		e.closeOnce.Do(func() { close(e.frontier) })
	}
}

func (e *Engine) process(ctx context.Context, t *tracked) {
	if t.target.Category == monitor.LinkAnchorFragment {
		e.resolveAnchor(t)
		return
	}
	e.fetchTarget(ctx, t)
}

// resolveAnchor validates the named anchor against the source page's already
// parsed body. No network I/O happens here.
func (e *Engine) resolveAnchor(t *tracked) {
	e.setState(t, monitor.TargetResolved)
	if _, ok := t.anchors[t.target.Fragment]; ok {
		return
	}
	e.addFinding(monitor.Finding{
		Severity:   monitor.SeverityHigh,
		Category:   monitor.CategoryBrokenLink,
		Message:    fmt.Sprintf("anchor #%s not found on page", t.target.Fragment),
		SourcePage: firstSource(t),
		TargetURL:  t.target.URL + "#" + t.target.Fragment,
		Timestamp:  e.clock.Now(),
	})
}

func (e *Engine) fetchTarget(ctx context.Context, t *tracked) {
	e.setState(t, monitor.TargetFetching)
	e.mu.Lock()
	e.fetchesAttempted++
	e.mu.Unlock()

	res, err := e.fetcher.Fetch(ctx, t.target.URL)
	if err != nil {
		if ctx.Err() != nil {
			// Run deadline hit mid-fetch; the target surfaces as
			// incomplete rather than broken.
			return
		}
		e.brokenFinding(t, 0, fetchErrorMessage(err))
		e.setState(t, monitor.TargetResolved)
		return
	}
	metrics.RecordFetch(res.StatusCode, res.Elapsed)

	if res.StatusCode >= 400 {
		e.brokenFinding(t, res.StatusCode, fmt.Sprintf("HTTP %d", res.StatusCode))
		e.setState(t, monitor.TargetResolved)
		return
	}

	e.mu.Lock()
	e.fetchesSucceeded++
	e.mu.Unlock()

	if e.cfg.SlowThreshold > 0 && res.Elapsed > e.cfg.SlowThreshold {
		e.addFinding(monitor.Finding{
			Severity:   monitor.SeverityMedium,
			Category:   monitor.CategorySlowResource,
			Message:    fmt.Sprintf("response took %dms (threshold %dms)", res.Elapsed.Milliseconds(), e.cfg.SlowThreshold.Milliseconds()),
			SourcePage: firstSource(t),
			TargetURL:  t.target.URL,
			FinalURL:   res.FinalURL,
			StatusCode: res.StatusCode,
			ElapsedMs:  res.Elapsed.Milliseconds(),
			Timestamp:  e.clock.Now(),
		})
	}

	if t.target.Category == monitor.LinkInternalPage {
		e.mu.Lock()
		e.pagesVisited++
		e.mu.Unlock()
		e.handlePage(ctx, t, res)
	}
	e.setState(t, monitor.TargetResolved)
}

// handlePage parses an internal page, tracks content drift for monitored
// paths, flags accessibility defects, and feeds discovery.
func (e *Engine) handlePage(ctx context.Context, t *tracked, res monitor.FetchResult) {
	base := e.origin
	if res.FinalURL != "" {
		if u, err := url.Parse(res.FinalURL); err == nil && u.Host != "" {
			base = u
		}
	}

	data, err := parsePage(res.Body, base)
	if err != nil {
		e.logger.Warn("page parse failed", zap.String("url", t.target.URL), zap.Error(err))
		return
	}

	if data.missingAlt > 0 {
		e.addFinding(monitor.Finding{
			Severity:  monitor.SeverityLow,
			Category:  monitor.CategoryMissingAlt,
			Message:   fmt.Sprintf("%d image(s) without alt text", data.missingAlt),
			TargetURL: t.target.URL,
			Timestamp: e.clock.Now(),
		})
	}

	e.trackContent(ctx, t, res)

	if t.target.Depth < e.cfg.MaxDepth {
		e.discover(t, base, data)
	}
}

func (e *Engine) trackContent(ctx context.Context, t *tracked, res monitor.FetchResult) {
	path := monitor.PagePath(t.target.URL)
	if e.tracker == nil || e.fingerprinter == nil || !e.cfg.MonitorsContent(path) {
		return
	}
	fp, text, err := e.fingerprinter.Fingerprint(res.Body, path)
	if err != nil {
		e.logger.Warn("fingerprint failed", zap.String("path", path), zap.Error(err))
		return
	}
	finding, err := e.tracker.Track(ctx, e.cfg.SiteID, fp)
	if err != nil {
		e.logger.Error("drift tracking failed", zap.String("path", path), zap.Error(err))
		return
	}
	if finding == nil {
		return
	}
	f := *finding
	f.SourcePage = t.target.URL
	e.archiveSnapshot(ctx, fp, text)
	e.addFinding(f)
}

// archiveSnapshot stores the canonical text that was hashed, so a reviewer
// sees exactly what the drift comparison saw. Best effort: a snapshot
// failure never fails the run.
func (e *Engine) archiveSnapshot(ctx context.Context, fp monitor.PageFingerprint, text string) {
	if e.snapshots == nil {
		return
	}
	path := fmt.Sprintf("%s%s/%s.txt", e.cfg.SiteID, fp.Path, fp.Hash)
	uri, err := e.snapshots.PutObject(ctx, path, "text/plain; charset=utf-8", []byte(text))
	if err != nil {
		e.logger.Warn("drift snapshot failed", zap.String("path", fp.Path), zap.Error(err))
		return
	}
	e.logger.Info("drift snapshot stored", zap.String("path", fp.Path), zap.String("uri", uri))
}

// discover classifies and enqueues the links found on a page, deduplicating
// by normalized URL and respecting the total-link budget.
func (e *Engine) discover(t *tracked, base *url.URL, data pageData) {
	source := base.String()
	for _, link := range data.links {
		category := monitor.Classify(link, source, e.origin, e.cfg.IgnorePatterns)
		switch category {
		case monitor.LinkExcluded:
			// Never fetched, never reported.
			continue
		case monitor.LinkExternal:
			if !e.cfg.CheckExternal {
				continue
			}
		case monitor.LinkAnchorFragment:
			e.discoverAnchor(t, link, data.anchorIDs)
			continue
		}

		key, err := monitor.NormalizeURL(link.URL)
		if err != nil {
			continue
		}
		e.mu.Lock()
		e.enqueueLocked(key, monitor.CrawlTarget{
			URL:         key,
			Category:    category,
			Depth:       t.target.Depth + 1,
			SourcePages: []string{t.target.URL},
		}, nil)
		e.mu.Unlock()
	}
}

func (e *Engine) discoverAnchor(t *tracked, link monitor.Link, anchors map[string]struct{}) {
	u, err := url.Parse(link.URL)
	if err != nil {
		return
	}
	fragment := u.Fragment
	key, err := monitor.NormalizeURL(link.URL)
	if err != nil {
		return
	}
	e.mu.Lock()
	e.enqueueLocked(key+"#"+fragment, monitor.CrawlTarget{
		URL:         key,
		Category:    monitor.LinkAnchorFragment,
		Depth:       t.target.Depth + 1,
		SourcePages: []string{t.target.URL},
		Fragment:    fragment,
	}, anchors)
	e.mu.Unlock()
}

// enqueueLocked adds a target under the engine mutex. A repeat discovery of
// the same key only records the extra source page; the budget stops new
// discovery but never cancels already-queued work.
func (e *Engine) enqueueLocked(key string, target monitor.CrawlTarget, anchors map[string]struct{}) {
	if existing, ok := e.targets[key]; ok {
		existing.target.SourcePages = append(existing.target.SourcePages, target.SourcePages...)
		return
	}
	if e.queued >= e.cfg.MaxLinks {
		if !e.budgetLogged {
			e.budgetLogged = true
			e.logger.Info("link budget reached, discovery stopped",
				zap.Int("max_links", e.cfg.MaxLinks),
			)
		}
		return
	}
	t := &tracked{target: target, state: monitor.TargetQueued, anchors: anchors}
	e.targets[key] = t
	e.queued++
	e.outstanding++
	e.frontier <- t
}

func (e *Engine) setState(t *tracked, state monitor.TargetState) {
	e.mu.Lock()
	t.state = state
	if state == monitor.TargetResolved {
		e.resolved++
	}
	e.mu.Unlock()
}

// reportUnresolved converts every target that never reached resolved into an
// incomplete finding, so a truncated run is visible instead of silent.
func (e *Engine) reportUnresolved() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, t := range e.targets {
		if t.state == monitor.TargetResolved {
			continue
		}
		f := monitor.Finding{
			Severity:   monitor.SeverityInfo,
			Category:   monitor.CategoryIncomplete,
			Message:    "target not resolved before run deadline",
			SourcePage: firstSource(t),
			TargetURL:  t.target.URL,
			Timestamp:  e.clock.Now(),
		}
		e.findings = append(e.findings, f)
		metrics.RecordFinding(string(f.Severity), string(f.Category))
	}
}

func (e *Engine) brokenFinding(t *tracked, status int, reason string) {
	severity := monitor.SeverityHigh
	if t.target.Category == monitor.LinkExternal {
		// An external site's outage is not this site's fault, but it is
		// still worth flagging.
		severity = monitor.SeverityMedium
	}
	e.addFinding(monitor.Finding{
		Severity:   severity,
		Category:   monitor.CategoryBrokenLink,
		Message:    reason,
		SourcePage: firstSource(t),
		TargetURL:  t.target.URL,
		StatusCode: status,
		Timestamp:  e.clock.Now(),
	})
}

func (e *Engine) addFinding(f monitor.Finding) {
	e.mu.Lock()
	e.findings = append(e.findings, f)
	e.mu.Unlock()
	metrics.RecordFinding(string(f.Severity), string(f.Category))
}

func fetchErrorMessage(err error) string {
	var fe *monitor.FetchError
	if errors.As(err, &fe) {
		return string(fe.Reason)
	}
	return err.Error()
}

func firstSource(t *tracked) string {
	if len(t.target.SourcePages) == 0 {
		return ""
	}
	return t.target.SourcePages[0]
}
