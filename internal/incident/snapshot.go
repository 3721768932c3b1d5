package incident

import (
	"fmt"
	"time"

	"github.com/driftwatch/console/internal/telemetry"
)

// Snapshot holds the last recorded value per tracked field, used purely for
// edge detection. A field advances only when an event is emitted for it, so
// repeated observations of an unchanged value stay silent.
type Snapshot struct {
	DriftScore      *float64
	TotalRequests   *float64
	RetrainTriggers *float64
	ModelVersion    string
}

// Diff compares a new telemetry reading against the previous snapshot and
// returns the events the transition produces, along with the advanced
// snapshot. It is pure: neither input is mutated.
//
// Per-field rules, each evaluated independently:
//   - model identity: info on any change, including the first observation
//   - total requests: info on any numeric inequality
//   - retrain triggers: warn only on a strict increase to a value above zero
//   - drift score: classified against (warning, critical); at most one of
//     error/warn/ok per diff, edge-triggered on value change
func Diff(old Snapshot, observed Observation, warning, critical float64, now time.Time) ([]Event, Snapshot) {
	var events []Event
	next := old

	if observed.ModelVersion != "" && observed.ModelVersion != old.ModelVersion {
		note := ""
		if old.ModelVersion != "" {
			note = fmt.Sprintf("previously %s", old.ModelVersion)
		}
		events = append(events, NewEvent(EventInfo,
			fmt.Sprintf("Active model is now %s", observed.ModelVersion), note, now))
		next.ModelVersion = observed.ModelVersion
	}

	if observed.TotalRequests != nil {
		if old.TotalRequests == nil || *old.TotalRequests != *observed.TotalRequests {
			events = append(events, NewEvent(EventInfo,
				fmt.Sprintf("Requests served: %.0f", *observed.TotalRequests), "", now))
			v := *observed.TotalRequests
			next.TotalRequests = &v
		}
	}

	if observed.RetrainTriggers != nil {
		prev := 0.0
		if old.RetrainTriggers != nil {
			prev = *old.RetrainTriggers
		}
		// A reset to zero, or staying at zero, never fires
		if *observed.RetrainTriggers > prev && *observed.RetrainTriggers > 0 {
			events = append(events, NewEvent(EventWarn,
				fmt.Sprintf("Retrain trigger fired (total %.0f)", *observed.RetrainTriggers),
				"drift pipeline requested a retrain", now))
			v := *observed.RetrainTriggers
			next.RetrainTriggers = &v
		}
	}

	if observed.DriftScore != nil {
		score := *observed.DriftScore
		changed := old.DriftScore == nil || *old.DriftScore != score
		if changed {
			var event *Event
			status := telemetry.Classify(score, warning, critical)
			switch {
			case status == telemetry.StatusCritical:
				e := NewEvent(EventError,
					fmt.Sprintf("Drift score %.3f at or above critical threshold %.3f", score, critical),
					"", now)
				event = &e
			case status == telemetry.StatusWarning:
				e := NewEvent(EventWarn,
					fmt.Sprintf("Drift score %.3f above warning threshold %.3f", score, warning),
					"", now)
				event = &e
			case old.DriftScore == nil || *old.DriftScore >= warning:
				// Recovery: dropped below warning, or first observation
				// landing already below it
				e := NewEvent(EventOK,
					fmt.Sprintf("Drift score %.3f below warning threshold %.3f", score, warning),
					"", now)
				event = &e
			}
			// The recorded score advances together with an emitted event,
			// so an already-quiet value cannot re-fire later
			if event != nil {
				events = append(events, *event)
				v := score
				next.DriftScore = &v
			}
		}
	}

	return events, next
}

// Observation is one cycle's worth of tracked telemetry, with nil marking
// fields whose source was unavailable this cycle. Unavailable fields never
// fire events.
type Observation struct {
	DriftScore      *float64
	TotalRequests   *float64
	RetrainTriggers *float64
	ModelVersion    string
}
