// Package report contains the pure functions that shape a finished run into
// its outgoing report: finding order, severity rollups, and uptime math.
package report

import (
	"sort"

	"github.com/PrabhuV2003/Website-Monitoring/internal/monitor"
)

// SortFindings orders findings for human consumption: most severe first,
// then by source page, then by target URL. The sort is stable so findings
// from the same page stay grouped.
func SortFindings(findings []monitor.Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() > b.Severity.Rank()
		}
		if a.SourcePage != b.SourcePage {
			return a.SourcePage < b.SourcePage
		}
		return a.TargetURL < b.TargetURL
	})
}

// CountBySeverity rolls findings up into a severity histogram.
func CountBySeverity(findings []monitor.Finding) map[monitor.Severity]int {
	counts := make(map[monitor.Severity]int)
	for _, f := range findings {
		counts[f.Severity]++
	}
	return counts
}

// UptimePercent is the share of attempted fetches that returned a non-error,
// non-4xx/5xx response. A run with no fetches counts as fully up.
func UptimePercent(succeeded, attempted int) float64 {
	if attempted == 0 {
		return 100
	}
	return float64(succeeded) / float64(attempted) * 100
}

// Merge appends extra findings (for example SSL checks that run outside the
// crawl) into a report and recomputes the ordering and severity rollup.
func Merge(rep monitor.RunReport, extra ...monitor.Finding) monitor.RunReport {
	if len(extra) == 0 {
		return rep
	}
	rep.Findings = append(rep.Findings, extra...)
	SortFindings(rep.Findings)
	rep.Summary.FindingsBySeverity = CountBySeverity(rep.Findings)
	return rep
}
