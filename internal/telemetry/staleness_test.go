package telemetry

import (
	"testing"
	"time"
)

func TestStalenessMonitor(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)

	t.Run("UndefinedBeforeFirstSuccess", func(t *testing.T) {
		m := NewStalenessMonitor(12 * time.Second)

		if _, ok := m.Elapsed(base); ok {
			t.Error("Elapsed should be undefined before the first successful cycle")
		}
		if m.Stale(base) {
			t.Error("Never-successful telemetry is unknown, not stale")
		}
	})

	t.Run("StrictBoundary", func(t *testing.T) {
		m := NewStalenessMonitor(12 * time.Second)
		m.RecordSuccess(base)

		// Exactly 12s is not stale, strictly more is
		if m.Stale(base.Add(12 * time.Second)) {
			t.Error("Elapsed of exactly 12s must not be stale")
		}
		if !m.Stale(base.Add(12*time.Second + 10*time.Millisecond)) {
			t.Error("Elapsed of 12.01s must be stale")
		}
	})

	t.Run("SuccessResetsGap", func(t *testing.T) {
		m := NewStalenessMonitor(12 * time.Second)
		m.RecordSuccess(base)
		m.RecordSuccess(base.Add(20 * time.Second))

		if m.Stale(base.Add(25 * time.Second)) {
			t.Error("Gap should be measured from the most recent success")
		}

		elapsed, ok := m.Elapsed(base.Add(25 * time.Second))
		if !ok || elapsed != 5*time.Second {
			t.Errorf("Expected elapsed 5s, got %v (ok=%v)", elapsed, ok)
		}
	})
}

func TestIssueCount(t *testing.T) {
	tests := []struct {
		name        string
		apiDown     bool
		metricsDown bool
		stale       bool
		drift       bool
		want        int
	}{
		{"AllHealthy", false, false, false, false, 0},
		{"APIDown", true, false, false, false, 1},
		{"TwoIssues", true, false, true, false, 2},
		{"Everything", true, true, true, true, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IssueCount(tt.apiDown, tt.metricsDown, tt.stale, tt.drift)
			if got != tt.want {
				t.Errorf("IssueCount() = %d, want %d", got, tt.want)
			}
		})
	}
}
