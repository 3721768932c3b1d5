package poller

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/driftwatch/console/internal/incident"
	"github.com/driftwatch/console/internal/promclient"
	"github.com/driftwatch/console/internal/scoring"
)

type fakeMetrics struct {
	healthyFn      func(context.Context) bool
	queryFn        func(ctx context.Context, query string, start, end time.Time, step time.Duration) ([]promclient.Result, error)
	instantFn      func(ctx context.Context, query string) ([]promclient.Result, error)
	queries        atomic.Int64
	instantQueries atomic.Int64
}

func (f *fakeMetrics) Healthy(ctx context.Context) bool {
	if f.healthyFn != nil {
		return f.healthyFn(ctx)
	}
	return true
}

func (f *fakeMetrics) QueryRange(ctx context.Context, query string, start, end time.Time, step time.Duration) ([]promclient.Result, error) {
	f.queries.Add(1)
	if f.queryFn != nil {
		return f.queryFn(ctx, query, start, end, step)
	}
	return nil, nil
}

func (f *fakeMetrics) QueryInstant(ctx context.Context, query string) ([]promclient.Result, error) {
	f.instantQueries.Add(1)
	if f.instantFn != nil {
		return f.instantFn(ctx, query)
	}
	return nil, nil
}

type fakeScoring struct {
	healthyFn func(context.Context) bool
	statsFn   func(context.Context) (*scoring.DashboardStats, error)
	modelFn   func(context.Context) (*scoring.ModelInfo, error)
}

func (f *fakeScoring) Healthy(ctx context.Context) bool {
	if f.healthyFn != nil {
		return f.healthyFn(ctx)
	}
	return true
}

func (f *fakeScoring) DashboardStats(ctx context.Context) (*scoring.DashboardStats, error) {
	if f.statsFn != nil {
		return f.statsFn(ctx)
	}
	return &scoring.DashboardStats{ModelVersion: "m-test"}, nil
}

func (f *fakeScoring) ModelInfo(ctx context.Context) (*scoring.ModelInfo, error) {
	if f.modelFn != nil {
		return f.modelFn(ctx)
	}
	return nil, fmt.Errorf("model info unavailable")
}

func makeResult(pairs ...[2]float64) []promclient.Result {
	values := make([][]interface{}, 0, len(pairs))
	for _, p := range pairs {
		values = append(values, []interface{}{p[0], strconv.FormatFloat(p[1], 'f', -1, 64)})
	}
	return []promclient.Result{{Values: values}}
}

func newTestPoller(t *testing.T, m MetricsSource, s ScoringSource) *Poller {
	t.Helper()
	cfg := DefaultConfig()
	return NewPoller(zaptest.NewLogger(t), m, s, incident.NewLog(time.Now()), cfg)
}

func TestCycleCommitsMergedCharts(t *testing.T) {
	m := &fakeMetrics{
		queryFn: func(ctx context.Context, query string, start, end time.Time, step time.Duration) ([]promclient.Result, error) {
			return makeResult([2]float64{100, 0.25}, [2]float64{105, 0.3}), nil
		},
	}
	s := &fakeScoring{
		statsFn: func(context.Context) (*scoring.DashboardStats, error) {
			return &scoring.DashboardStats{
				TotalRequests: 500,
				DriftScore:    0.3,
				ModelVersion:  "m-001",
			}, nil
		},
	}

	p := newTestPoller(t, m, s)
	p.startCycle(context.Background())

	require.Eventually(t, func() bool {
		return p.View(time.Now()).APIConnected
	}, time.Second, 5*time.Millisecond)

	view := p.View(time.Now())
	assert.True(t, view.MetricsConnected)
	assert.Equal(t, 500.0, view.Stats.TotalRequests)
	assert.False(t, view.Stale)
	assert.Equal(t, 0, view.Issues)

	drift := view.Charts[ChartDriftScore]
	require.Len(t, drift.Records, 2)
	assert.Empty(t, drift.Err)
	assert.Equal(t, 0.25, drift.Records[0].Fields["driftScore"])
}

func TestCancellationSupersedesInFlightCycle(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	var first atomic.Bool
	first.Store(true)

	s := &fakeScoring{
		statsFn: func(ctx context.Context) (*scoring.DashboardStats, error) {
			if first.CompareAndSwap(true, false) {
				// Cycle 1 hangs until after cycle 2 has everything
				close(entered)
				select {
				case <-release:
				case <-ctx.Done():
					return nil, ctx.Err()
				}
				return &scoring.DashboardStats{TotalRequests: 111, ModelVersion: "cycle-1"}, nil
			}
			return &scoring.DashboardStats{TotalRequests: 222, ModelVersion: "cycle-2"}, nil
		},
	}

	p := newTestPoller(t, &fakeMetrics{}, s)
	ctx := context.Background()

	p.startCycle(ctx) // cycle 1, stalls in its stats query
	<-entered
	p.startCycle(ctx) // cycle 2, supersedes and finishes immediately

	require.Eventually(t, func() bool {
		view := p.View(time.Now())
		return view.Stats != nil && view.Stats.TotalRequests == 222
	}, time.Second, 5*time.Millisecond)

	// Let the stale cycle finish; its completion must be a no-op no matter
	// how its queries resolved
	close(release)
	time.Sleep(50 * time.Millisecond)

	view := p.View(time.Now())
	assert.Equal(t, 222.0, view.Stats.TotalRequests, "a superseded cycle must never overwrite a newer one")
	assert.Equal(t, "cycle-2", view.Stats.ModelVersion)
}

func TestSupersededCommitIsNoOp(t *testing.T) {
	p := newTestPoller(t, &fakeMetrics{}, &fakeScoring{})

	p.mu.Lock()
	p.gen = 2
	p.mu.Unlock()

	stale := cycleResult{
		charts:    map[ChartID]ChartState{},
		stats:     &scoring.DashboardStats{TotalRequests: 999},
		metricsUp: true,
	}
	assert.False(t, p.commit(1, stale, time.Now()), "commit with an old generation must be refused")

	view := p.View(time.Now())
	assert.Nil(t, view.Stats)
	assert.False(t, view.APIConnected)
}

func TestHealthProbeShortCircuit(t *testing.T) {
	m := &fakeMetrics{}
	s := &fakeScoring{
		healthyFn: func(context.Context) bool { return false },
	}

	p := newTestPoller(t, m, s)
	p.startCycle(context.Background())

	// The batch must be skipped entirely against a down backend
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(0), m.queries.Load(), "no data queries may be issued when the health probe fails")
	assert.Equal(t, int64(0), m.instantQueries.Load())

	view := p.View(time.Now())
	assert.False(t, view.APIConnected)
	assert.GreaterOrEqual(t, view.Issues, 1)
}

func TestPartialQueryFailureDegradesPerChart(t *testing.T) {
	m := &fakeMetrics{
		queryFn: func(ctx context.Context, query string, start, end time.Time, step time.Duration) ([]promclient.Result, error) {
			if query == `drift_score` {
				return nil, fmt.Errorf("query timed out")
			}
			return makeResult([2]float64{100, 1.5}), nil
		},
	}

	p := newTestPoller(t, m, &fakeScoring{})
	p.startCycle(context.Background())

	require.Eventually(t, func() bool {
		return p.View(time.Now()).APIConnected
	}, time.Second, 5*time.Millisecond)

	view := p.View(time.Now())

	drift := view.Charts[ChartDriftScore]
	assert.NotEmpty(t, drift.Err, "failed chart must carry its error")
	assert.Empty(t, drift.Records, "failed chart degrades to an empty result")

	rate := view.Charts[ChartRequestRate]
	assert.Empty(t, rate.Err)
	require.Len(t, rate.Records, 1, "other charts still commit their data")
}

func TestMetricsBackendDownStillCommitsStats(t *testing.T) {
	m := &fakeMetrics{
		healthyFn: func(context.Context) bool { return false },
	}
	s := &fakeScoring{
		statsFn: func(context.Context) (*scoring.DashboardStats, error) {
			return &scoring.DashboardStats{TotalRequests: 42, ModelVersion: "m-1"}, nil
		},
	}

	p := newTestPoller(t, m, s)
	p.startCycle(context.Background())

	require.Eventually(t, func() bool {
		return p.View(time.Now()).APIConnected
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, int64(0), m.queries.Load())

	view := p.View(time.Now())
	assert.False(t, view.MetricsConnected)
	assert.Equal(t, 42.0, view.Stats.TotalRequests)
	for _, id := range AllChartIDs() {
		assert.Equal(t, "metrics backend unreachable", view.Charts[id].Err)
	}
}

func TestStatsFailureSurfacesDisconnected(t *testing.T) {
	var calls atomic.Int64
	s := &fakeScoring{
		statsFn: func(context.Context) (*scoring.DashboardStats, error) {
			if calls.Add(1) == 1 {
				return &scoring.DashboardStats{TotalRequests: 42, ModelVersion: "m-1"}, nil
			}
			return nil, fmt.Errorf("dashboard stats: connection refused")
		},
	}

	p := newTestPoller(t, &fakeMetrics{}, s)
	p.startCycle(context.Background())

	require.Eventually(t, func() bool {
		return p.View(time.Now()).APIConnected
	}, time.Second, 5*time.Millisecond)

	// Probe still passes, but the core stats call now fails
	p.startCycle(context.Background())

	require.Eventually(t, func() bool {
		return !p.View(time.Now()).APIConnected
	}, time.Second, 5*time.Millisecond)

	view := p.View(time.Now())
	assert.GreaterOrEqual(t, view.Issues, 1, "a failed stats call is a connectivity issue")
	require.NotNil(t, view.Stats, "last good stats stay on display")
	assert.Equal(t, 42.0, view.Stats.TotalRequests)
}

func TestCycleIssuesLiveDriftGauge(t *testing.T) {
	m := &fakeMetrics{
		instantFn: func(ctx context.Context, query string) ([]promclient.Result, error) {
			if query != `drift_score` {
				return nil, fmt.Errorf("unexpected instant query %q", query)
			}
			return []promclient.Result{{Value: []interface{}{float64(100), "0.42"}}}, nil
		},
	}

	p := newTestPoller(t, m, &fakeScoring{})
	p.startCycle(context.Background())

	require.Eventually(t, func() bool {
		return p.View(time.Now()).LiveDriftScore != nil
	}, time.Second, 5*time.Millisecond)

	view := p.View(time.Now())
	assert.Equal(t, 0.42, *view.LiveDriftScore)
	assert.Equal(t, int64(1), m.instantQueries.Load())
}

func TestLiveGaugeKeepsDriftMonitoringDuringOutage(t *testing.T) {
	m := &fakeMetrics{
		instantFn: func(ctx context.Context, query string) ([]promclient.Result, error) {
			return []promclient.Result{{Value: []interface{}{float64(100), "0.9"}}}, nil
		},
	}
	s := &fakeScoring{
		statsFn: func(context.Context) (*scoring.DashboardStats, error) {
			return nil, fmt.Errorf("dashboard stats: connection refused")
		},
	}

	p := newTestPoller(t, m, s)
	p.startCycle(context.Background())

	require.Eventually(t, func() bool {
		return p.View(time.Now()).LiveDriftScore != nil
	}, time.Second, 5*time.Millisecond)

	view := p.View(time.Now())
	assert.False(t, view.APIConnected)
	assert.Equal(t, "critical", string(view.DriftStatus),
		"the metrics backend's gauge still classifies drift while the scoring API is out")
	assert.Equal(t, 2, view.Issues)

	errors := p.Events().Filter(incident.EventError)
	require.Len(t, errors, 1, "critical drift seen through the gauge must still reach the timeline")
}

func TestModelThresholdsOverrideFallbacks(t *testing.T) {
	s := &fakeScoring{
		statsFn: func(context.Context) (*scoring.DashboardStats, error) {
			return &scoring.DashboardStats{DriftScore: 0.35, ModelVersion: "m-1"}, nil
		},
		modelFn: func(context.Context) (*scoring.ModelInfo, error) {
			return &scoring.ModelInfo{
				Active: scoring.ActiveModel{
					Version:            "m-1",
					DriftThresholdSoft: 0.3,
					DriftThresholdHard: 0.6,
				},
			}, nil
		},
	}

	p := newTestPoller(t, &fakeMetrics{}, s)
	p.startCycle(context.Background())

	require.Eventually(t, func() bool {
		return p.View(time.Now()).APIConnected
	}, time.Second, 5*time.Millisecond)

	view := p.View(time.Now())
	assert.Equal(t, 0.3, view.Warning)
	assert.Equal(t, 0.6, view.Critical)
	// 0.35 is warning against the model's thresholds, nominal against the
	// configured fallbacks
	assert.Equal(t, "warning", string(view.DriftStatus))
}

func TestCycleDerivesIncidentEvents(t *testing.T) {
	s := &fakeScoring{
		statsFn: func(context.Context) (*scoring.DashboardStats, error) {
			return &scoring.DashboardStats{
				TotalRequests: 10,
				DriftScore:    0.9,
				ModelVersion:  "m-1",
			}, nil
		},
	}

	p := newTestPoller(t, &fakeMetrics{}, s)
	baseline := p.Events().Len()
	p.startCycle(context.Background())

	require.Eventually(t, func() bool {
		return p.Events().Len() > baseline
	}, time.Second, 5*time.Millisecond)

	errors := p.Events().Filter(incident.EventError)
	require.Len(t, errors, 1, "first observation at critical drift must produce an error event")
	assert.Contains(t, errors[0].Message, "0.900")
}

func TestViewReturnsIndependentCopies(t *testing.T) {
	p := newTestPoller(t, &fakeMetrics{}, &fakeScoring{})

	view := p.View(time.Now())
	view.Charts[ChartDriftScore] = ChartState{Err: "tampered"}

	if p.View(time.Now()).Charts[ChartDriftScore].Err == "tampered" {
		t.Error("Mutating a view must not affect the poller's state")
	}
}
