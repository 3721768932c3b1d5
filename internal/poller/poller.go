package poller

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/driftwatch/console/internal/incident"
	"github.com/driftwatch/console/internal/metrics"
	"github.com/driftwatch/console/internal/promclient"
	"github.com/driftwatch/console/internal/scoring"
	"github.com/driftwatch/console/internal/telemetry"
)

// MetricsSource is the metrics backend collaborator, consumed as a black box
type MetricsSource interface {
	QueryRange(ctx context.Context, query string, start, end time.Time, step time.Duration) ([]promclient.Result, error)
	QueryInstant(ctx context.Context, query string) ([]promclient.Result, error)
	Healthy(ctx context.Context) bool
}

// ScoringSource is the scoring service collaborator, consumed as a black box
type ScoringSource interface {
	DashboardStats(ctx context.Context) (*scoring.DashboardStats, error)
	ModelInfo(ctx context.Context) (*scoring.ModelInfo, error)
	Healthy(ctx context.Context) bool
}

// Broadcaster pushes committed state to presentation clients
type Broadcaster interface {
	Broadcast(messageType string, data interface{})
}

// Config holds configuration for the poller
type Config struct {
	// Interval between poll cycles
	Interval time.Duration
	// Window is the time range requested from the metrics backend
	Window time.Duration
	// MaxPoints caps the number of samples retained per chart
	MaxPoints int
	// RateWindowSize is the smoothed-rate window capacity
	RateWindowSize int
	// StalenessThreshold flags telemetry with no recent successful cycle
	StalenessThreshold time.Duration
	// WarningThreshold and CriticalThreshold are drift fallbacks used when
	// the scoring service does not report its own
	WarningThreshold  float64
	CriticalThreshold float64
}

// DefaultConfig returns the default poller configuration
func DefaultConfig() Config {
	return Config{
		Interval:           5 * time.Second,
		Window:             15 * time.Minute,
		MaxPoints:          180,
		RateWindowSize:     telemetry.DefaultRateWindowSize,
		StalenessThreshold: telemetry.DefaultStalenessThreshold,
		WarningThreshold:   0.5,
		CriticalThreshold:  0.7,
	}
}

// Poller schedules telemetry poll cycles, reduces the results into the
// aggregate State and derives incident timeline events. Cycles run on a
// fixed wall-clock grid; starting a cycle supersedes any still in flight,
// and a superseded cycle can never commit. All shared state is guarded by a
// single mutex with commits gated on a generation counter.
type Poller struct {
	logger      *zap.Logger
	metricsSrc  MetricsSource
	scoringSrc  ScoringSource
	broadcaster Broadcaster
	eventLog    *incident.Log
	config      Config

	mu        sync.RWMutex
	gen       uint64
	cancel    context.CancelFunc
	state     State
	snap      incident.Snapshot
	rate      *telemetry.RateEstimator
	staleness *telemetry.StalenessMonitor
	warning   float64
	critical  float64

	stopCh chan struct{}
	done   chan struct{}
}

// NewPoller creates a poller over the given collaborators
func NewPoller(logger *zap.Logger, metricsSrc MetricsSource, scoringSrc ScoringSource, eventLog *incident.Log, config Config) *Poller {
	charts := make(map[ChartID]ChartState, len(AllChartIDs()))
	for _, id := range AllChartIDs() {
		charts[id] = ChartState{Records: []telemetry.MergedRecord{}}
	}

	return &Poller{
		logger:     logger,
		metricsSrc: metricsSrc,
		scoringSrc: scoringSrc,
		eventLog:   eventLog,
		config:     config,
		state: State{
			Charts:      charts,
			DriftStatus: telemetry.StatusNominal,
			Warning:     config.WarningThreshold,
			Critical:    config.CriticalThreshold,
		},
		rate:      telemetry.NewRateEstimator(config.RateWindowSize),
		staleness: telemetry.NewStalenessMonitor(config.StalenessThreshold),
		warning:   config.WarningThreshold,
		critical:  config.CriticalThreshold,
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// SetBroadcaster wires a presentation broadcaster. Must be called before
// Start.
func (p *Poller) SetBroadcaster(b Broadcaster) {
	p.broadcaster = b
}

// SetThresholds replaces the fallback drift thresholds, typically on config
// hot-reload. Invalid pairs are ignored.
func (p *Poller) SetThresholds(warning, critical float64) {
	if warning > critical {
		p.logger.Warn("Ignoring threshold update, warning exceeds critical",
			zap.Float64("warning", warning),
			zap.Float64("critical", critical))
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.warning = warning
	p.critical = critical
}

// Events returns the incident timeline
func (p *Poller) Events() *incident.Log {
	return p.eventLog
}

// Start begins the polling loop
func (p *Poller) Start(ctx context.Context) {
	p.logger.Info("Starting telemetry poller",
		zap.Duration("interval", p.config.Interval),
		zap.Duration("window", p.config.Window),
		zap.Int("maxPoints", p.config.MaxPoints))

	p.rate.Reset()
	go p.run(ctx)
}

// Stop gracefully shuts down the poller
func (p *Poller) Stop() {
	close(p.stopCh)
	<-p.done
}

// run executes the main polling loop
func (p *Poller) run(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	// First cycle fires immediately rather than waiting out a full period
	p.startCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Poller stopped due to context cancellation")
			return
		case <-p.stopCh:
			p.logger.Info("Poller stopped gracefully")
			return
		case <-ticker.C:
			p.startCycle(ctx)
		}
	}
}

// startCycle bumps the generation counter, cancels any in-flight cycle and
// launches a new one. The captured generation is the cycle's commit token.
func (p *Poller) startCycle(ctx context.Context) {
	p.mu.Lock()
	p.gen++
	gen := p.gen
	if p.cancel != nil {
		p.cancel()
	}
	cycleCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.mu.Unlock()

	go p.runCycle(cycleCtx, gen)
}

// cycleResult accumulates the fan-out of one poll cycle
type cycleResult struct {
	charts    map[ChartID]ChartState
	liveDrift *float64
	stats     *scoring.DashboardStats
	statsErr  error
	model     *scoring.ModelInfo
	modelErr  error
	metricsUp bool
}

// runCycle performs one round of queries and commits the outcome, unless a
// newer cycle has started in the meantime.
func (p *Poller) runCycle(ctx context.Context, gen uint64) {
	start := time.Now()

	// Health probe precedes the batch: a down backend short-circuits the
	// cycle instead of wasting a round of queries against it
	if !p.scoringSrc.Healthy(ctx) {
		if ctx.Err() != nil {
			metrics.RecordPollCycle("superseded", time.Since(start))
			return
		}
		if p.commitDisconnected(gen) {
			p.logger.Warn("Scoring service unreachable, cycle short-circuited")
			metrics.RecordPollCycle("disconnected", time.Since(start))
		} else {
			metrics.RecordPollCycle("superseded", time.Since(start))
		}
		return
	}

	res := cycleResult{
		charts:    make(map[ChartID]ChartState, len(AllChartIDs())),
		metricsUp: p.metricsSrc.Healthy(ctx),
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	if res.metricsUp {
		end := time.Now()
		rangeStart := end.Add(-p.config.Window)
		step := p.config.Window / time.Duration(p.config.MaxPoints)
		if step < time.Second {
			step = time.Second
		}

		for _, cq := range chartQueries() {
			cq := cq
			wg.Add(1)
			go func() {
				defer wg.Done()
				chart := p.fetchChart(ctx, cq, rangeStart, end, step)
				mu.Lock()
				res.charts[cq.id] = chart
				mu.Unlock()
			}()
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			results, err := p.metricsSrc.QueryInstant(ctx, liveDriftQuery)
			metrics.RecordCollaboratorRequest("metrics", err)
			if err != nil {
				if ctx.Err() == nil {
					p.logger.Warn("Live drift gauge query failed", zap.Error(err))
				}
				return
			}
			if sample, ok := promclient.FirstSample(results); ok {
				v := sample.Value
				mu.Lock()
				res.liveDrift = &v
				mu.Unlock()
			}
		}()
	} else {
		for _, cq := range chartQueries() {
			res.charts[cq.id] = ChartState{
				Records: []telemetry.MergedRecord{},
				Err:     "metrics backend unreachable",
			}
		}
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		stats, err := p.scoringSrc.DashboardStats(ctx)
		metrics.RecordCollaboratorRequest("scoring", err)
		mu.Lock()
		res.stats, res.statsErr = stats, err
		mu.Unlock()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		model, err := p.scoringSrc.ModelInfo(ctx)
		metrics.RecordCollaboratorRequest("scoring", err)
		mu.Lock()
		res.model, res.modelErr = model, err
		mu.Unlock()
	}()

	wg.Wait()

	// Cancellation is expected, not an error: the superseding cycle owns
	// the state now, so this one's results are silently discarded
	if ctx.Err() != nil {
		metrics.RecordPollCycle("superseded", time.Since(start))
		return
	}

	if p.commit(gen, res, time.Now()) {
		metrics.RecordPollCycle("committed", time.Since(start))
		if p.broadcaster != nil {
			p.broadcaster.Broadcast("state", p.View(time.Now()))
		}
	} else {
		metrics.RecordPollCycle("superseded", time.Since(start))
	}
}

// fetchChart queries and merges the series backing one chart. Each series
// degrades independently to an empty result; the first failure is kept as
// the per-chart error.
func (p *Poller) fetchChart(ctx context.Context, cq chartQuery, start, end time.Time, step time.Duration) ChartState {
	defs := make([]telemetry.SeriesDef, 0, len(cq.series))
	var chartErr string

	for _, qs := range cq.series {
		results, err := p.metricsSrc.QueryRange(ctx, qs.expr, start, end, step)
		metrics.RecordCollaboratorRequest("metrics", err)
		if err != nil {
			if ctx.Err() == nil {
				p.logger.Warn("Chart query failed",
					zap.String("chart", string(cq.id)),
					zap.String("query", qs.expr),
					zap.Error(err))
				if chartErr == "" {
					chartErr = err.Error()
				}
			}
			defs = append(defs, telemetry.SeriesDef{Key: qs.key, Transform: qs.transform})
			continue
		}
		defs = append(defs, telemetry.SeriesDef{
			Key:       qs.key,
			Series:    promclient.CollapseSamples(results),
			Transform: qs.transform,
		})
	}

	return ChartState{Records: telemetry.Merge(defs), Err: chartErr}
}

// commitDisconnected marks the scoring service unreachable without touching
// the last good chart data. Returns false if the cycle was superseded.
func (p *Poller) commitDisconnected(gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if gen != p.gen {
		return false
	}

	st := p.state
	st.APIConnected = false
	p.state = st
	return true
}

// commit publishes a completed cycle's results and derives incident events.
// Returns false, leaving everything untouched, if a newer cycle has started.
func (p *Poller) commit(gen uint64, res cycleResult, now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if gen != p.gen {
		return false
	}

	warning, critical := p.warning, p.critical
	if res.modelErr == nil && res.model != nil && res.model.Active.DriftThresholdHard > 0 {
		if res.model.Active.DriftThresholdSoft <= res.model.Active.DriftThresholdHard {
			warning = res.model.Active.DriftThresholdSoft
			critical = res.model.Active.DriftThresholdHard
		}
	}

	st := State{
		Charts:           res.charts,
		Stats:            res.stats,
		Model:            res.model,
		LiveDriftScore:   res.liveDrift,
		APIConnected:     true,
		MetricsConnected: res.metricsUp,
		DriftStatus:      p.state.DriftStatus,
		Warning:          warning,
		Critical:         critical,
		LastUpdated:      now,
	}

	if res.statsErr == nil && res.stats != nil {
		p.rate.Observe(now, res.stats.TotalRequests)

		p.deriveLocked(incident.Observation{
			DriftScore:      &res.stats.DriftScore,
			TotalRequests:   &res.stats.TotalRequests,
			RetrainTriggers: &res.stats.RetrainTriggers,
			ModelVersion:    res.stats.ModelVersion,
		}, warning, critical, now)

		st.DriftStatus = telemetry.Classify(res.stats.DriftScore, warning, critical)
		p.staleness.RecordSuccess(now)
	} else {
		// A failed core stats call counts as a connectivity failure, same
		// as a failed probe; the last good stats stay on display
		st.APIConnected = false
		st.Stats = p.state.Stats

		// The live gauge comes from the metrics backend, so drift
		// monitoring continues while the scoring API is out
		if res.liveDrift != nil {
			p.deriveLocked(incident.Observation{DriftScore: res.liveDrift}, warning, critical, now)
			st.DriftStatus = telemetry.Classify(*res.liveDrift, warning, critical)
		}
	}

	if res.modelErr != nil || res.model == nil {
		st.Model = p.state.Model
	}

	st.SmoothedRate, st.RateKnown = p.rate.Rate()

	p.state = st
	return true
}

// deriveLocked runs the incident diff and records its events. Caller holds
// p.mu.
func (p *Poller) deriveLocked(observed incident.Observation, warning, critical float64, now time.Time) {
	events, next := incident.Diff(p.snap, observed, warning, critical, now)
	p.snap = next
	if len(events) == 0 {
		return
	}

	p.eventLog.Prepend(events...)
	for _, e := range events {
		metrics.RecordEventEmitted(string(e.Type))
	}
}

// View returns an immutable copy of the current aggregate state with the
// staleness flag and issue count evaluated at now.
func (p *Poller) View(now time.Time) State {
	p.mu.RLock()
	defer p.mu.RUnlock()

	st := p.state

	charts := make(map[ChartID]ChartState, len(st.Charts))
	for id, chart := range st.Charts {
		charts[id] = chart
	}
	st.Charts = charts

	st.Stale = p.staleness.Stale(now)
	st.Issues = telemetry.IssueCount(
		!st.APIConnected,
		!st.MetricsConnected,
		st.Stale,
		st.DriftStatus == telemetry.StatusCritical,
	)

	return st
}
