package telemetry

import "time"

// Sample represents a single time-series data point
type Sample struct {
	Timestamp int64   `json:"t"` // Unix seconds
	Value     float64 `json:"v"`
}

// NewSample creates a new Sample with the given timestamp and value
func NewSample(t time.Time, v float64) Sample {
	return Sample{Timestamp: t.Unix(), Value: v}
}

// Time returns the sample timestamp as a time.Time
func (s Sample) Time() time.Time {
	return time.Unix(s.Timestamp, 0)
}

// Series is an ordered sequence of samples for one named signal. Timestamps
// increase monotonically; gaps are allowed.
type Series []Sample
