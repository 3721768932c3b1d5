package poller

import (
	"time"

	"github.com/driftwatch/console/internal/scoring"
	"github.com/driftwatch/console/internal/telemetry"
)

// ChartID identifies one chart on the console
type ChartID string

const (
	ChartDriftScore     ChartID = "drift_score"
	ChartRequestRate    ChartID = "request_rate"
	ChartFeatureDrift   ChartID = "feature_drift"
	ChartLatencyP95     ChartID = "latency_p95"
	ChartShadowActivity ChartID = "shadow_activity"
)

// AllChartIDs returns every chart the poll cycle populates
func AllChartIDs() []ChartID {
	return []ChartID{
		ChartDriftScore,
		ChartRequestRate,
		ChartFeatureDrift,
		ChartLatencyP95,
		ChartShadowActivity,
	}
}

// liveDriftQuery is the instant query for the current drift gauge. It hits
// the metrics backend directly, so it keeps reporting while the scoring API
// is unreachable.
const liveDriftQuery = `drift_score`

// querySeries is one named expression feeding a chart
type querySeries struct {
	key       string
	expr      string
	transform func(float64) float64
}

// chartQuery groups the series merged into a single chart
type chartQuery struct {
	id     ChartID
	series []querySeries
}

// chartQueries returns the expressions issued each cycle. Several charts
// merge more than one independently sampled series.
func chartQueries() []chartQuery {
	return []chartQuery{
		{
			id: ChartDriftScore,
			series: []querySeries{
				{key: "driftScore", expr: `drift_score`},
			},
		},
		{
			id: ChartRequestRate,
			series: []querySeries{
				{key: "requestsPerSecond", expr: `rate(requests_total[1m])`},
			},
		},
		{
			id: ChartFeatureDrift,
			series: []querySeries{
				{key: "softCount", expr: `feature_soft_count`},
				{key: "hardCount", expr: `feature_hard_count`},
			},
		},
		{
			id: ChartLatencyP95,
			series: []querySeries{
				{
					key:       "p95Millis",
					expr:      `histogram_quantile(0.95, rate(request_latency_seconds_bucket[5m]))`,
					transform: func(v float64) float64 { return v * 1000 },
				},
			},
		},
		{
			id: ChartShadowActivity,
			series: []querySeries{
				{key: "shadowRate", expr: `rate(shadow_predictions_total[5m])`},
				{key: "disagreeRate", expr: `rate(shadow_disagree_total[5m])`},
			},
		},
	}
}

// ChartState is one chart's merged records plus its per-chart error, if the
// backing query failed this cycle.
type ChartState struct {
	Records []telemetry.MergedRecord `json:"records"`
	Err     string                   `json:"error,omitempty"`
}

// State is the aggregate read model committed wholesale each poll cycle.
// Records and nested structs are never mutated after commit, so views may
// share them.
type State struct {
	Charts map[ChartID]ChartState  `json:"charts"`
	Stats  *scoring.DashboardStats `json:"stats,omitempty"`
	Model  *scoring.ModelInfo      `json:"model,omitempty"`

	SmoothedRate float64 `json:"smoothedRate"`
	RateKnown    bool    `json:"rateKnown"`

	DriftStatus telemetry.Status `json:"driftStatus"`
	// LiveDriftScore is the metrics backend's current drift gauge, nil when
	// the instant query yielded nothing this cycle
	LiveDriftScore *float64 `json:"liveDriftScore,omitempty"`
	Warning        float64  `json:"warningThreshold"`
	Critical       float64  `json:"criticalThreshold"`

	APIConnected     bool `json:"apiConnected"`
	MetricsConnected bool `json:"metricsConnected"`

	Stale  bool `json:"stale"`
	Issues int  `json:"issues"`

	LastUpdated time.Time `json:"lastUpdated"`
}
