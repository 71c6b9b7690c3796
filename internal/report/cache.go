package report

import (
	"sync"

	"github.com/PrabhuV2003/Website-Monitoring/internal/monitor"
)

// Cache keeps the most recent report per site for the HTTP API.
type Cache struct {
	mu      sync.RWMutex
	reports map[string]monitor.RunReport
}

// NewCache returns an empty Cache.
func NewCache() *Cache {
	return &Cache{reports: make(map[string]monitor.RunReport)}
}

// Set stores the latest report for a site.
func (c *Cache) Set(rep monitor.RunReport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports[rep.Summary.SiteID] = rep
}

// Get returns the latest report for a site.
func (c *Cache) Get(siteID string) (monitor.RunReport, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rep, ok := c.reports[siteID]
	return rep, ok
}

// Summaries returns every cached run summary.
func (c *Cache) Summaries() []monitor.RunSummary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]monitor.RunSummary, 0, len(c.reports))
	for _, rep := range c.reports {
		out = append(out, rep.Summary)
	}
	return out
}
