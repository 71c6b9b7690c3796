// Package file persists baselines as one JSON document per site. It is the
// flat-file backend suited to single-host deployments; heavier setups should
// use the postgres store behind the same interface.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/PrabhuV2003/Website-Monitoring/internal/monitor"
)

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// Store reads and writes per-site baseline files under a base directory.
// All operations serialize through one mutex; per-site runs do not contend
// because the engine runs one site at a time against a given store.
type Store struct {
	mu      sync.Mutex
	baseDir string
}

// New creates the base directory if needed and returns a Store.
func New(baseDir string) (*Store, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("create baseline directory: %w", err)
	}
	return &Store{baseDir: baseDir}, nil
}

// Get returns the stored baseline for (site, path).
func (s *Store) Get(_ context.Context, site, path string) (monitor.Baseline, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(site)
	if err != nil {
		return monitor.Baseline{}, false, err
	}
	b, ok := entries[path]
	return b, ok, nil
}

// Put replaces the baseline for (site, path) and rewrites the site file
// atomically (write to temp file, then rename).
func (s *Store) Put(_ context.Context, site, path string, baseline monitor.Baseline) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(site)
	if err != nil {
		return err
	}
	entries[path] = baseline

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal baselines: %w", err)
	}

	target := s.sitePath(site)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write baseline file: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("replace baseline file: %w", err)
	}
	return nil
}

func (s *Store) load(site string) (map[string]monitor.Baseline, error) {
	data, err := os.ReadFile(s.sitePath(site))
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]monitor.Baseline), nil
		}
		return nil, fmt.Errorf("read baseline file: %w", err)
	}
	entries := make(map[string]monitor.Baseline)
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode baseline file: %w", err)
	}
	return entries, nil
}

func (s *Store) sitePath(site string) string {
	name := unsafeFileChars.ReplaceAllString(site, "_")
	return filepath.Join(s.baseDir, name+".json")
}
