package telemetry

import (
	"sort"
	"time"
)

// SeriesDef names one input series for a merge. Transform is applied to each
// value as it is copied into the merged record; nil means identity.
type SeriesDef struct {
	Key       string
	Series    Series
	Transform func(float64) float64
}

// MergedRecord is one row of a merged chart: every field whose source series
// sampled at exactly this timestamp, keyed by series name. Fields are never
// interpolated or carried forward from neighbouring timestamps.
type MergedRecord struct {
	Timestamp   int64              `json:"timestamp"`
	DisplayTime string             `json:"displayTime"`
	Fields      map[string]float64 `json:"fields"`
}

// Merge aligns independently sampled series into ordered composite records.
// The output timestamp set is exactly the union of the input timestamps,
// sorted ascending. An empty input yields an empty, non-nil result.
func Merge(defs []SeriesDef) []MergedRecord {
	byTimestamp := make(map[int64]*MergedRecord)

	for _, def := range defs {
		for _, sample := range def.Series {
			record, exists := byTimestamp[sample.Timestamp]
			if !exists {
				record = &MergedRecord{
					Timestamp:   sample.Timestamp,
					DisplayTime: time.Unix(sample.Timestamp, 0).Format("15:04:05"),
					Fields:      make(map[string]float64),
				}
				byTimestamp[sample.Timestamp] = record
			}

			value := sample.Value
			if def.Transform != nil {
				value = def.Transform(value)
			}
			record.Fields[def.Key] = value
		}
	}

	merged := make([]MergedRecord, 0, len(byTimestamp))
	for _, record := range byTimestamp {
		merged = append(merged, *record)
	}

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})

	return merged
}
