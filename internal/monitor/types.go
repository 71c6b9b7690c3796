// Package monitor defines core types shared across the site monitoring subsystems.
package monitor

import (
	"fmt"
	"regexp"
	"time"
)

// Severity ranks how urgently a finding should be looked at.
type Severity string

// Severity values, highest first.
const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Rank returns a sortable weight, higher meaning more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// Category identifies the kind of anomaly a finding reports.
type Category string

// Finding categories emitted by a check run.
const (
	CategoryBrokenLink   Category = "broken-link"
	CategorySlowResource Category = "slow-resource"
	CategoryMissingAlt   Category = "missing-alt"
	CategorySSL          Category = "ssl"
	CategoryContentDrift Category = "content-drift"
	CategoryIncomplete   Category = "incomplete"
)

// Finding is one reportable observation produced by a run. Findings are
// append-only: once created they are never mutated, and only anomalies are
// reported (a healthy resource produces no finding).
type Finding struct {
	Severity   Severity  `json:"severity"`
	Category   Category  `json:"category"`
	Message    string    `json:"message"`
	SourcePage string    `json:"source_page,omitempty"`
	TargetURL  string    `json:"target_url"`
	FinalURL   string    `json:"final_url,omitempty"`
	StatusCode int       `json:"status_code,omitempty"`
	ElapsedMs  int64     `json:"elapsed_ms,omitempty"`
	Timestamp  time.Time `json:"timestamp"`

	// Drift-specific fields.
	OldHash string `json:"old_hash,omitempty"`
	NewHash string `json:"new_hash,omitempty"`
	// BaselinePending marks a drift finding whose baseline write failed, so
	// the same comparison is retried on the next run.
	BaselinePending bool `json:"baseline_update_pending,omitempty"`
}

// LinkCategory is the classification assigned to a discovered URL.
type LinkCategory string

// Link categories assigned by the classifier.
const (
	LinkInternalPage   LinkCategory = "internal-page"
	LinkInternalAsset  LinkCategory = "internal-asset"
	LinkExternal       LinkCategory = "external"
	LinkAnchorFragment LinkCategory = "anchor-fragment"
	LinkExcluded       LinkCategory = "excluded"
)

// TargetState is the lifecycle state of a crawl target within a run.
type TargetState string

// Crawl target states.
const (
	TargetDiscovered TargetState = "discovered"
	TargetQueued     TargetState = "queued"
	TargetFetching   TargetState = "fetching"
	TargetResolved   TargetState = "resolved"
)

// CrawlTarget is a discovered URL plus its crawl metadata. The URL and
// category are fixed at discovery; additional source pages may be recorded
// when the same normalized URL is found again, but the target is fetched at
// most once per run.
type CrawlTarget struct {
	// URL is the normalized URL used as the deduplication key.
	URL      string
	Category LinkCategory
	Depth    int
	// SourcePages lists every page the URL was discovered on; the first
	// entry is the page whose discovery queued the target.
	SourcePages []string
	// Fragment holds the anchor name for anchor-fragment targets.
	Fragment string
}

// FetchReason codes classify why a fetch failed before producing a status.
type FetchReason string

// Fetch failure reasons.
const (
	ReasonTimeout           FetchReason = "timeout"
	ReasonDNS               FetchReason = "dns"
	ReasonTLS               FetchReason = "tls"
	ReasonConnectionRefused FetchReason = "connection-refused"
	ReasonTooManyRedirects  FetchReason = "too-many-redirects"
)

// FetchError is the typed failure a Fetcher returns when no HTTP status was
// obtained. It never crosses the fetcher boundary as a panic or untyped error.
type FetchError struct {
	URL    string
	Reason FetchReason
	Err    error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch %s: %s", e.URL, e.Reason)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Reason, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Transient reports whether the failure is worth a single local retry.
func (e *FetchError) Transient() bool {
	return e.Reason == ReasonTimeout || e.Reason == ReasonConnectionRefused
}

// FetchResult is the outcome of one Fetcher call that reached the server.
type FetchResult struct {
	URL        string
	FinalURL   string
	StatusCode int
	Elapsed    time.Duration
	Size       int64
	Body       []byte
}

// PageFingerprint is a stable hash over the normalized visible text of a page.
type PageFingerprint struct {
	Path       string    `json:"path"`
	Hash       string    `json:"hash"`
	ComputedAt time.Time `json:"computed_at"`
}

// Baseline is the persisted last-known fingerprint for a (site, page) pair.
// At most one baseline exists per pair; only the integrity tracker updates it.
type Baseline struct {
	Site        string          `json:"site"`
	Path        string          `json:"path"`
	Fingerprint PageFingerprint `json:"fingerprint"`
	LastChecked time.Time       `json:"last_checked"`
	LastChanged time.Time       `json:"last_changed"`
}

// RunConfig carries everything a single check run needs. It is decoupled from
// the configuration loader so the engine is testable without Viper.
type RunConfig struct {
	SiteID    string
	Origin    string
	SeedPages []string

	MaxDepth             int
	MaxLinks             int
	MaxConcurrentFetches int
	SlowThreshold        time.Duration
	RunTimeout           time.Duration
	CheckExternal        bool

	IgnorePatterns []*regexp.Regexp
	// MonitoredPages maps page paths to the monitor_content_changes flag.
	MonitoredPages map[string]bool
}

// MonitorsContent reports whether content drift tracking is enabled for path.
func (c RunConfig) MonitorsContent(path string) bool {
	return c.MonitoredPages[path]
}

// RunSummary is the per-run metadata handed to the reporting collaborator
// together with the findings.
type RunSummary struct {
	RunID    string    `json:"run_id"`
	SiteID   string    `json:"site_id"`
	Started  time.Time `json:"started_at"`
	Finished time.Time `json:"finished_at"`

	PagesVisited    int `json:"pages_visited"`
	LinksChecked    int `json:"links_checked"`
	LinksDiscovered int `json:"links_discovered"`
	Incomplete      int `json:"incomplete"`

	FetchesAttempted int     `json:"fetches_attempted"`
	FetchesSucceeded int     `json:"fetches_succeeded"`
	UptimePercent    float64 `json:"uptime_percent"`

	FindingsBySeverity map[Severity]int `json:"findings_by_severity"`
}

// RunReport is the complete output of one run: summary plus ordered findings.
type RunReport struct {
	Summary  RunSummary `json:"summary"`
	Findings []Finding  `json:"findings"`
}
