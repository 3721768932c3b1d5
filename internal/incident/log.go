package incident

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Recency bucket boundaries for GroupByRecency
const (
	nowBucketWindow    = 2 * time.Minute
	recentBucketWindow = 15 * time.Minute
)

// Buckets partitions the timeline by age. Each bucket preserves newest-first
// order.
type Buckets struct {
	Now     []Event `json:"now"`     // age <= 2 minutes
	Recent  []Event `json:"recent"`  // 2 to 15 minutes
	Earlier []Event `json:"earlier"` // older than 15 minutes
}

// Log is the append-only incident timeline, newest first. The poll cycle
// derivation is the only writer besides explicit Add and Clear; reads return
// copies so callers can never mutate shared state.
type Log struct {
	mu     sync.RWMutex
	events []Event
}

// NewLog creates a log seeded with the fixed baseline system entries.
func NewLog(now time.Time) *Log {
	return &Log{events: baselineEvents(now)}
}

// Prepend inserts events at the head of the log, preserving their given
// order among themselves.
func (l *Log) Prepend(events ...Event) {
	if len(events) == 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	merged := make([]Event, 0, len(events)+len(l.events))
	merged = append(merged, events...)
	merged = append(merged, l.events...)
	l.events = merged
}

// Add appends a single user-initiated event to the head of the log.
func (l *Log) Add(event Event) {
	l.Prepend(event)
}

// All returns a copy of the full timeline, newest first.
func (l *Log) All() []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// Filter returns the events of the given type, newest first. An empty type
// returns everything.
func (l *Log) Filter(eventType EventType) []Event {
	if eventType == "" {
		return l.All()
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Event
	for _, e := range l.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// GroupByRecency partitions the timeline into age buckets relative to now.
func (l *Log) GroupByRecency(now time.Time) Buckets {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var buckets Buckets
	for _, e := range l.events {
		age := now.Sub(e.Timestamp)
		switch {
		case age <= nowBucketWindow:
			buckets.Now = append(buckets.Now, e)
		case age <= recentBucketWindow:
			buckets.Recent = append(buckets.Recent, e)
		default:
			buckets.Earlier = append(buckets.Earlier, e)
		}
	}
	return buckets
}

// Clear resets the timeline to the baseline system entries. It is a view
// operation only: edge-detection state lives in the poller's Snapshot and
// survives, so telemetry that has not itself changed will not re-fire.
func (l *Log) Clear(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = baselineEvents(now)
}

// Len returns the number of events currently in the log.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.events)
}

// ExportText renders events one per line as "[time] [LEVEL] message — note",
// omitting the note segment when empty.
func ExportText(events []Event) string {
	var b strings.Builder
	for _, e := range events {
		fmt.Fprintf(&b, "[%s] [%s] %s", e.Timestamp.Format("15:04:05"), strings.ToUpper(string(e.Type)), e.Message)
		if e.Note != "" {
			fmt.Fprintf(&b, " — %s", e.Note)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
