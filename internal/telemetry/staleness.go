package telemetry

import "time"

// DefaultStalenessThreshold allows exactly one missed 5-second tick plus
// margin before telemetry is flagged stale.
const DefaultStalenessThreshold = 12 * time.Second

// StalenessMonitor tracks the wall-clock gap since the last successful poll
// cycle. It is written only by the poll goroutine.
type StalenessMonitor struct {
	threshold   time.Duration
	lastSuccess time.Time
}

// NewStalenessMonitor creates a monitor with the given threshold. A threshold
// of zero or less falls back to DefaultStalenessThreshold.
func NewStalenessMonitor(threshold time.Duration) *StalenessMonitor {
	if threshold <= 0 {
		threshold = DefaultStalenessThreshold
	}
	return &StalenessMonitor{threshold: threshold}
}

// RecordSuccess marks a completed poll cycle.
func (m *StalenessMonitor) RecordSuccess(now time.Time) {
	m.lastSuccess = now
}

// Elapsed returns the time since the last successful cycle. ok is false
// before the first success, when the gap is undefined.
func (m *StalenessMonitor) Elapsed(now time.Time) (elapsed time.Duration, ok bool) {
	if m.lastSuccess.IsZero() {
		return 0, false
	}
	return now.Sub(m.lastSuccess), true
}

// Stale reports whether the gap strictly exceeds the threshold. Telemetry
// that has never succeeded is not stale, it is simply unknown.
func (m *StalenessMonitor) Stale(now time.Time) bool {
	elapsed, ok := m.Elapsed(now)
	if !ok {
		return false
	}
	return elapsed > m.threshold
}

// IssueCount sums the independent problem predicates surfaced to the
// presentation layer: backend API unreachable, metrics backend unreachable,
// telemetry stale, drift at or above critical.
func IssueCount(apiDown, metricsDown, stale, driftCritical bool) int {
	count := 0
	for _, issue := range []bool{apiDown, metricsDown, stale, driftCritical} {
		if issue {
			count++
		}
	}
	return count
}
