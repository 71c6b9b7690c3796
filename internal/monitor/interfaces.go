package monitor

import (
	"context"
	"time"
)

// Fetcher performs one bounded HTTP(S) request (or headless navigation) for a
// URL. A completed request returns a FetchResult even for 4xx/5xx statuses;
// failures that never produced a status return a *FetchError.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (FetchResult, error)
}

// BaselineStore is the keyed persistence contract for page fingerprints. The
// core is indifferent to the backing medium (file, database, in-memory map).
type BaselineStore interface {
	Get(ctx context.Context, site, path string) (Baseline, bool, error)
	Put(ctx context.Context, site, path string, baseline Baseline) error
}

// Fingerprinter extracts canonical text from a page body and hashes it. The
// text that was hashed is returned alongside the fingerprint so callers can
// archive exactly what was compared.
type Fingerprinter interface {
	Fingerprint(body []byte, path string) (PageFingerprint, string, error)
}

// ContentTracker drives the per-page drift state machine. It returns a
// content-drift finding when the fresh fingerprint disagrees with the stored
// baseline, and nil when the page is unseen or stable.
type ContentTracker interface {
	Track(ctx context.Context, site string, fp PageFingerprint) (*Finding, error)
}

// SnapshotStore archives page text captured at drift time and returns a URI.
type SnapshotStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes run-completion events to an external alerting collaborator.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes content digests for fingerprinting.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (injectable for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
