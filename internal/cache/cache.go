// Package cache provides bounded in-memory pools of previously generated
// entities. Interactions and sessions are synthesized against pooled users
// and products instead of regenerating full entities on every event.
package cache

import (
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
)

// Errors returned by the cache package.
var (
	// ErrEmptyCache is returned by Sample when the pool has zero entries.
	// Callers recover by synthesizing a one-off entity; it is never
	// surfaced to stream consumers.
	ErrEmptyCache = errors.New("cache: pool is empty")
	// ErrInvalidCapacity is returned when a pool is created with a
	// non-positive capacity.
	ErrInvalidCapacity = errors.New("cache: capacity must be positive")
)

// Pool is a bounded FIFO pool of entities. Once at capacity, inserting a
// new entity evicts the oldest inserted one, so memory stays bounded while
// the pool mix slowly drifts during long-running streams.
//
// Thread safety: safe for concurrent use. Sampling reads run concurrently
// with each other and are only serialized against inserts.
type Pool[T any] struct {
	mu       sync.RWMutex
	entries  []T
	capacity int

	// onSize, when set, is invoked with the pool size after every insert
	// or eviction, under the pool lock so notifications arrive in order.
	// Used to keep metrics occupancy counters current; must be cheap and
	// must not call back into the pool.
	onSize func(n int)

	// Statistics
	totalInserts  atomic.Int64
	totalEvicts   atomic.Int64
	totalSamples  atomic.Int64
	totalMisses   atomic.Int64

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New creates a pool with the given capacity and random source seed.
func New[T any](capacity int, seed int64) (*Pool[T], error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	return &Pool[T]{
		entries:  make([]T, 0, capacity),
		capacity: capacity,
		rng:      rand.New(rand.NewSource(seed)),
	}, nil
}

// OnSizeChange registers a notifier invoked with the pool size after every
// insert or eviction. Must be set before the pool is shared across
// goroutines.
func (p *Pool[T]) OnSizeChange(fn func(n int)) {
	p.onSize = fn
}

// Insert appends an entity, evicting the oldest one if the pool is full.
func (p *Pool[T]) Insert(entity T) {
	p.mu.Lock()
	if len(p.entries) >= p.capacity {
		// FIFO eviction: drop the oldest inserted entry.
		copy(p.entries, p.entries[1:])
		p.entries = p.entries[:len(p.entries)-1]
		p.totalEvicts.Add(1)
	}
	p.entries = append(p.entries, entity)
	if p.onSize != nil {
		p.onSize(len(p.entries))
	}
	p.mu.Unlock()

	p.totalInserts.Add(1)
}

// EnsurePopulated fills the pool up to target by invoking generate.
// Idempotent: a no-op when the pool is already at or above target. The
// target is clamped to the pool capacity.
func (p *Pool[T]) EnsurePopulated(target int, generate func() T) {
	if target > p.capacity {
		target = p.capacity
	}

	for {
		p.mu.RLock()
		n := len(p.entries)
		p.mu.RUnlock()
		if n >= target {
			return
		}
		// Generate outside the lock; entity construction is the
		// expensive part and must not serialize samplers.
		p.Insert(generate())
	}
}

// Sample returns a uniformly random entity from the pool. Returns
// ErrEmptyCache when the pool has zero entries.
func (p *Pool[T]) Sample() (T, error) {
	p.totalSamples.Add(1)

	p.mu.RLock()
	defer p.mu.RUnlock()

	var zero T
	if len(p.entries) == 0 {
		p.totalMisses.Add(1)
		return zero, ErrEmptyCache
	}

	p.rngMu.Lock()
	idx := p.rng.Intn(len(p.entries))
	p.rngMu.Unlock()

	return p.entries[idx], nil
}

// Len returns the current number of pooled entities.
func (p *Pool[T]) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

// Capacity returns the configured capacity bound.
func (p *Pool[T]) Capacity() int {
	return p.capacity
}

// Stats holds pool statistics.
type Stats struct {
	// Size is the current number of pooled entities.
	Size int
	// Capacity is the configured bound.
	Capacity int
	// TotalInserts is the number of entities ever inserted.
	TotalInserts int64
	// TotalEvictions is the number of entities evicted at capacity.
	TotalEvictions int64
	// TotalSamples is the number of Sample calls.
	TotalSamples int64
	// TotalMisses is the number of Sample calls against an empty pool.
	TotalMisses int64
}

// Stats returns a snapshot of pool statistics.
func (p *Pool[T]) Stats() Stats {
	p.mu.RLock()
	size := len(p.entries)
	p.mu.RUnlock()

	return Stats{
		Size:           size,
		Capacity:       p.capacity,
		TotalInserts:   p.totalInserts.Load(),
		TotalEvictions: p.totalEvicts.Load(),
		TotalSamples:   p.totalSamples.Load(),
		TotalMisses:    p.totalMisses.Load(),
	}
}
