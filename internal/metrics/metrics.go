// Package metrics provides process-wide counters for the generator engine:
// events emitted, active streams, cache occupancy and uptime. Counters live
// for the process lifetime and are safe under concurrent access from
// multiple streams; reads are snapshots with per-counter atomicity only.
package metrics

import (
	"sync/atomic"
	"time"
)

// Aggregator holds the engine counters. Construct one per engine (or per
// test) rather than relying on process-wide singletons.
type Aggregator struct {
	start time.Time

	eventsEmitted  atomic.Int64
	streamsStarted atomic.Int64
	activeStreams  atomic.Int64
	recordsSkipped atomic.Int64
	cachedUsers    atomic.Int64
	cachedProducts atomic.Int64
	sessionsOpen   atomic.Int64

	// timeFunc returns the current time. Overridable for tests.
	timeFunc func() time.Time
}

// NewAggregator creates an aggregator with uptime anchored at now.
func NewAggregator() *Aggregator {
	return &Aggregator{
		start:    time.Now(),
		timeFunc: time.Now,
	}
}

// SetTimeFunc overrides the clock, for tests. Not safe to call after the
// aggregator is shared.
func (a *Aggregator) SetTimeFunc(fn func() time.Time) {
	a.timeFunc = fn
	a.start = fn()
}

// EventsEmitted adds n emitted events.
func (a *Aggregator) EventsEmitted(n int64) { a.eventsEmitted.Add(n) }

// StreamStarted increments the active-stream gauge.
func (a *Aggregator) StreamStarted() {
	a.streamsStarted.Add(1)
	a.activeStreams.Add(1)
}

// StreamEnded decrements the active-stream gauge.
func (a *Aggregator) StreamEnded() { a.activeStreams.Add(-1) }

// RecordSkipped counts a record dropped due to a serialization failure.
func (a *Aggregator) RecordSkipped() { a.recordsSkipped.Add(1) }

// SetCachedUsers records the user cache occupancy.
func (a *Aggregator) SetCachedUsers(n int) { a.cachedUsers.Store(int64(n)) }

// SetCachedProducts records the product cache occupancy.
func (a *Aggregator) SetCachedProducts(n int) { a.cachedProducts.Store(int64(n)) }

// SetOpenSessions records the open-session count.
func (a *Aggregator) SetOpenSessions(n int) { a.sessionsOpen.Store(int64(n)) }

// ActiveStreams returns the current active-stream count.
func (a *Aggregator) ActiveStreams() int64 { return a.activeStreams.Load() }

// TotalEvents returns the total emitted event count.
func (a *Aggregator) TotalEvents() int64 { return a.eventsEmitted.Load() }

// Uptime returns the time since the aggregator was created.
func (a *Aggregator) Uptime() time.Duration {
	return a.timeFunc().Sub(a.start)
}

// Snapshot is a point-in-time view of the counters, exposed read-only to
// the external monitoring surface.
type Snapshot struct {
	EventsEmitted  int64   `json:"events_emitted"`
	StreamsStarted int64   `json:"streams_started"`
	ActiveStreams  int64   `json:"active_streams"`
	RecordsSkipped int64   `json:"records_skipped"`
	CachedUsers    int64   `json:"cached_users"`
	CachedProducts int64   `json:"cached_products"`
	OpenSessions   int64   `json:"open_sessions"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
}

// Snapshot returns a point-in-time view of all counters.
func (a *Aggregator) Snapshot() Snapshot {
	return Snapshot{
		EventsEmitted:  a.eventsEmitted.Load(),
		StreamsStarted: a.streamsStarted.Load(),
		ActiveStreams:  a.activeStreams.Load(),
		RecordsSkipped: a.recordsSkipped.Load(),
		CachedUsers:    a.cachedUsers.Load(),
		CachedProducts: a.cachedProducts.Load(),
		OpenSessions:   a.sessionsOpen.Load(),
		UptimeSeconds:  a.Uptime().Seconds(),
	}
}
