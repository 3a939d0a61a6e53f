package generator

import (
	"errors"
	"fmt"
	"math/rand"
)

// ErrInvalidWeights is returned when a weight table has no positive weight.
var ErrInvalidWeights = errors.New("generator: invalid weights")

// weightedEntry is one value with its cumulative weight in the table.
type weightedEntry[T any] struct {
	value            T
	cumulativeWeight float64
}

// WeightedTable performs weighted random selection with a single draw
// against a precomputed cumulative-weight table. Every categorical domain
// (segments, device classes, interaction kinds) is sampled through the same
// mechanism, so adding a value is just adding a weight.
type WeightedTable[T any] struct {
	entries []weightedEntry[T]
	total   float64
}

// NewWeightedTable builds a table from parallel value/weight slices.
// Zero-weight values are skipped; at least one weight must be positive.
func NewWeightedTable[T any](values []T, weights []float64) (*WeightedTable[T], error) {
	if len(values) != len(weights) {
		return nil, fmt.Errorf("%w: %d values, %d weights", ErrInvalidWeights, len(values), len(weights))
	}

	t := &WeightedTable[T]{entries: make([]weightedEntry[T], 0, len(values))}
	for i, v := range values {
		w := weights[i]
		if w < 0 {
			return nil, fmt.Errorf("%w: negative weight at index %d", ErrInvalidWeights, i)
		}
		if w == 0 {
			continue
		}
		t.total += w
		t.entries = append(t.entries, weightedEntry[T]{value: v, cumulativeWeight: t.total})
	}

	if t.total <= 0 {
		return nil, fmt.Errorf("%w: all weights are zero", ErrInvalidWeights)
	}
	return t, nil
}

// Pick draws one value. The rng must be externally synchronized.
func (t *WeightedTable[T]) Pick(rng *rand.Rand) T {
	target := rng.Float64() * t.total

	// Binary search for the first entry whose cumulative weight exceeds
	// the target.
	low, high := 0, len(t.entries)-1
	for low < high {
		mid := (low + high) / 2
		if t.entries[mid].cumulativeWeight <= target {
			low = mid + 1
		} else {
			high = mid
		}
	}
	return t.entries[low].value
}

// Len returns the number of selectable values.
func (t *WeightedTable[T]) Len() int {
	return len(t.entries)
}
