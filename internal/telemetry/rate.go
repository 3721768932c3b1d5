package telemetry

import "time"

// DefaultRateWindowSize is the number of instantaneous rate observations the
// estimator averages over. Six samples over a 5-second tick period give the
// smoothed figure roughly 30 seconds of memory.
const DefaultRateWindowSize = 6

// RateEstimator converts a monotonic cumulative counter into a smoothed
// throughput figure. It keeps a bounded window of instantaneous rates and
// reports their arithmetic mean.
//
// RateEstimator is not safe for concurrent use; the poll cycle is its only
// caller.
type RateEstimator struct {
	capacity int
	window   []float64

	hasPrev     bool
	prevCounter float64
	prevTime    time.Time
}

// NewRateEstimator creates an estimator with the given window capacity.
// A capacity of zero or less falls back to DefaultRateWindowSize.
func NewRateEstimator(capacity int) *RateEstimator {
	if capacity <= 0 {
		capacity = DefaultRateWindowSize
	}
	return &RateEstimator{
		capacity: capacity,
		window:   make([]float64, 0, capacity),
	}
}

// Observe records a new counter reading. The first observation in a session
// produces no rate; later ones push an instantaneous rate into the window,
// evicting the oldest past capacity. A counter that shrinks (reset, or a
// backend hiccup) clamps to zero instead of producing a negative spike.
func (e *RateEstimator) Observe(t time.Time, counter float64) {
	if e.hasPrev {
		elapsed := t.Sub(e.prevTime).Seconds()
		if elapsed > 0 {
			rate := (counter - e.prevCounter) / elapsed
			if rate < 0 {
				rate = 0
			}
			if len(e.window) == e.capacity {
				e.window = e.window[1:]
			}
			e.window = append(e.window, rate)
		}
	}

	e.hasPrev = true
	e.prevCounter = counter
	e.prevTime = t
}

// Rate returns the mean of the windowed rates. ok is false until at least
// two observations have been made.
func (e *RateEstimator) Rate() (rate float64, ok bool) {
	if len(e.window) == 0 {
		return 0, false
	}

	var sum float64
	for _, r := range e.window {
		sum += r
	}
	return sum / float64(len(e.window)), true
}

// Reset clears all history, starting a new polling session.
func (e *RateEstimator) Reset() {
	e.window = e.window[:0]
	e.hasPrev = false
	e.prevCounter = 0
	e.prevTime = time.Time{}
}
