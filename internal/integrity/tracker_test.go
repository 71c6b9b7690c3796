package integrity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/PrabhuV2003/Website-Monitoring/internal/baseline/memory"
	"github.com/PrabhuV2003/Website-Monitoring/internal/monitor"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// failingStore wraps a real store and fails Put after a threshold of calls.
type failingStore struct {
	inner    monitor.BaselineStore
	mu       sync.Mutex
	puts     int
	failFrom int
}

func (f *failingStore) Get(ctx context.Context, site, path string) (monitor.Baseline, bool, error) {
	return f.inner.Get(ctx, site, path)
}

func (f *failingStore) Put(ctx context.Context, site, path string, b monitor.Baseline) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	if f.puts >= f.failFrom {
		return errors.New("disk full")
	}
	return f.inner.Put(ctx, site, path, b)
}

func fp(path, hash string) monitor.PageFingerprint {
	return monitor.PageFingerprint{Path: path, Hash: hash, ComputedAt: time.Now().UTC()}
}

// TestDriftLifecycle walks the unseen -> baselined -> drifted -> stable cycle
// end to end: first sight is silent, a change alerts once and rebaselines,
// and the run after the change is silent again.
func TestDriftLifecycle(t *testing.T) {
	t.Parallel()

	store := memory.New()
	clock := fixedClock{t: time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)}
	tracker := New(store, clock, nil)
	ctx := context.Background()

	// Run 1: page unseen, baseline written, no finding.
	finding, err := tracker.Track(ctx, "example", fp("/about", "hash-A"))
	require.NoError(t, err)
	require.Nil(t, finding)

	stored, ok, err := store.Get(ctx, "example", "/about")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "hash-A", stored.Fingerprint.Hash)

	// Run 2: content changed, exactly one drift finding, baseline adopted.
	finding, err = tracker.Track(ctx, "example", fp("/about", "hash-B"))
	require.NoError(t, err)
	require.NotNil(t, finding)
	require.Equal(t, monitor.CategoryContentDrift, finding.Category)
	require.Equal(t, monitor.SeverityMedium, finding.Severity)
	require.Equal(t, "hash-A", finding.OldHash)
	require.Equal(t, "hash-B", finding.NewHash)
	require.False(t, finding.BaselinePending)

	stored, _, err = store.Get(ctx, "example", "/about")
	require.NoError(t, err)
	require.Equal(t, "hash-B", stored.Fingerprint.Hash)

	// Run 3: no edit, silent.
	finding, err = tracker.Track(ctx, "example", fp("/about", "hash-B"))
	require.NoError(t, err)
	require.Nil(t, finding)
}

func TestStableRefreshesLastChecked(t *testing.T) {
	t.Parallel()

	store := memory.New()
	ctx := context.Background()

	first := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	tracker := New(store, fixedClock{t: first}, nil)
	_, err := tracker.Track(ctx, "example", fp("/", "same"))
	require.NoError(t, err)

	later := first.Add(6 * time.Hour)
	tracker = New(store, fixedClock{t: later}, nil)
	finding, err := tracker.Track(ctx, "example", fp("/", "same"))
	require.NoError(t, err)
	require.Nil(t, finding)

	stored, _, err := store.Get(ctx, "example", "/")
	require.NoError(t, err)
	require.Equal(t, later, stored.LastChecked)
	require.Equal(t, first, stored.LastChanged, "unchanged content must not move last_changed")
}

// TestDriftWithFailedBaselineWrite checks that a persistence failure does not
// swallow the drift finding, and that the old baseline survives so the same
// comparison repeats next run.
func TestDriftWithFailedBaselineWrite(t *testing.T) {
	t.Parallel()

	inner := memory.New()
	store := &failingStore{inner: inner, failFrom: 2}
	tracker := New(store, fixedClock{t: time.Now().UTC()}, nil)
	ctx := context.Background()

	_, err := tracker.Track(ctx, "example", fp("/about", "hash-A"))
	require.NoError(t, err)

	finding, err := tracker.Track(ctx, "example", fp("/about", "hash-B"))
	require.NoError(t, err)
	require.NotNil(t, finding)
	require.True(t, finding.BaselinePending)

	stored, _, err := inner.Get(ctx, "example", "/about")
	require.NoError(t, err)
	require.Equal(t, "hash-A", stored.Fingerprint.Hash, "old baseline must remain until a write succeeds")
}

func TestInitialBaselineWriteFailureIsSilent(t *testing.T) {
	t.Parallel()

	store := &failingStore{inner: memory.New(), failFrom: 1}
	tracker := New(store, fixedClock{t: time.Now().UTC()}, nil)

	finding, err := tracker.Track(context.Background(), "example", fp("/", "hash-A"))
	require.NoError(t, err)
	require.Nil(t, finding, "an unseen page has nothing to alert on")
}

func TestTrackConcurrentSameKeySerialized(t *testing.T) {
	t.Parallel()

	store := memory.New()
	tracker := New(store, fixedClock{t: time.Now().UTC()}, nil)
	ctx := context.Background()

	_, err := tracker.Track(ctx, "example", fp("/about", "hash-A"))
	require.NoError(t, err)

	// Many concurrent comparisons against the same changed hash: every
	// worker sees a consistent read-compare-write, so no run panics and the
	// final baseline is the new hash.
	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, trackErr := tracker.Track(ctx, "example", fp("/about", "hash-B"))
			errs <- trackErr
		}()
	}
	wg.Wait()
	close(errs)
	for trackErr := range errs {
		require.NoError(t, trackErr)
	}

	stored, _, err := store.Get(ctx, "example", "/about")
	require.NoError(t, err)
	require.Equal(t, "hash-B", stored.Fingerprint.Hash)
}

var _ monitor.ContentTracker = (*Tracker)(nil)
