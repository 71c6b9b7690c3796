// Package integrity drives the per-page content drift state machine against
// the baseline store.
package integrity

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"

	"go.uber.org/zap"

	"github.com/PrabhuV2003/Website-Monitoring/internal/monitor"
)

const lockStripes = 64

// Tracker compares fresh fingerprints against stored baselines and decides
// whether a drift finding is due. Writes for a given (site, path) key are
// serialized through striped locks, so concurrent page workers never
// interleave read-modify-write cycles on the same baseline.
//
// Policy: the tracker alerts exactly once per change and then adopts the new
// fingerprint as ground truth, so an already-reviewed edit stays silent on
// later runs. There is no "acknowledge without trusting" state.
type Tracker struct {
	store  monitor.BaselineStore
	clock  monitor.Clock
	logger *zap.Logger
	locks  [lockStripes]sync.Mutex
}

// New constructs a Tracker.
func New(store monitor.BaselineStore, clock monitor.Clock, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		store:  store,
		clock:  clock,
		logger: logger,
	}
}

// Track runs one comparison for (site, fp.Path):
//
//   - no baseline: store fp and stay silent, there is nothing to compare yet
//   - hashes equal: refresh last_checked, no finding
//   - hashes differ: emit a content-drift finding and adopt fp as the new
//     baseline
//
// A failed baseline write after a drift still returns the finding, marked
// baseline-update-pending so the comparison repeats next run instead of the
// new content being silently accepted.
func (t *Tracker) Track(ctx context.Context, site string, fp monitor.PageFingerprint) (*monitor.Finding, error) {
	lock := &t.locks[stripe(site, fp.Path)]
	lock.Lock()
	defer lock.Unlock()

	existing, found, err := t.store.Get(ctx, site, fp.Path)
	if err != nil {
		return nil, fmt.Errorf("load baseline %s%s: %w", site, fp.Path, err)
	}

	now := t.clock.Now()
	if !found {
		baseline := monitor.Baseline{
			Site:        site,
			Path:        fp.Path,
			Fingerprint: fp,
			LastChecked: now,
			LastChanged: now,
		}
		if err := t.store.Put(ctx, site, fp.Path, baseline); err != nil {
			// Nothing to alert on yet; the page stays unseen and is
			// baselined on the next successful run.
			t.logger.Warn("initial baseline write failed",
				zap.String("site", site),
				zap.String("path", fp.Path),
				zap.Error(err),
			)
		}
		return nil, nil
	}

	if existing.Fingerprint.Hash == fp.Hash {
		existing.LastChecked = now
		if err := t.store.Put(ctx, site, fp.Path, existing); err != nil {
			t.logger.Warn("baseline refresh failed",
				zap.String("site", site),
				zap.String("path", fp.Path),
				zap.Error(err),
			)
		}
		return nil, nil
	}

	finding := &monitor.Finding{
		Severity:  monitor.SeverityMedium,
		Category:  monitor.CategoryContentDrift,
		Message:   fmt.Sprintf("content changed on %s", fp.Path),
		TargetURL: fp.Path,
		OldHash:   existing.Fingerprint.Hash,
		NewHash:   fp.Hash,
		Timestamp: now,
	}

	updated := monitor.Baseline{
		Site:        site,
		Path:        fp.Path,
		Fingerprint: fp,
		LastChecked: now,
		LastChanged: now,
	}
	if err := t.store.Put(ctx, site, fp.Path, updated); err != nil {
		// Observability beats consistency here: the drift is still
		// reported, but flagged so the old baseline is compared again.
		t.logger.Error("baseline update after drift failed",
			zap.String("site", site),
			zap.String("path", fp.Path),
			zap.Error(err),
		)
		finding.BaselinePending = true
	}
	return finding, nil
}

func stripe(site, path string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(site))
	h.Write([]byte{0})
	h.Write([]byte(path))
	return h.Sum32() % lockStripes
}
