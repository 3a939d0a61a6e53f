package generator

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWeightedTable(t *testing.T) {
	t.Run("mismatched lengths", func(t *testing.T) {
		_, err := NewWeightedTable([]string{"a", "b"}, []float64{1})
		assert.ErrorIs(t, err, ErrInvalidWeights)
	})

	t.Run("negative weight", func(t *testing.T) {
		_, err := NewWeightedTable([]string{"a", "b"}, []float64{1, -1})
		assert.ErrorIs(t, err, ErrInvalidWeights)
	})

	t.Run("all weights zero", func(t *testing.T) {
		_, err := NewWeightedTable([]string{"a", "b"}, []float64{0, 0})
		assert.ErrorIs(t, err, ErrInvalidWeights)
	})

	t.Run("zero-weight values are skipped", func(t *testing.T) {
		table, err := NewWeightedTable([]string{"a", "b", "c"}, []float64{1, 0, 1})
		require.NoError(t, err)
		assert.Equal(t, 2, table.Len())

		rng := rand.New(rand.NewSource(1))
		for i := 0; i < 1000; i++ {
			assert.NotEqual(t, "b", table.Pick(rng))
		}
	})
}

func TestWeightedTable_Pick(t *testing.T) {
	t.Run("single value always wins", func(t *testing.T) {
		table, err := NewWeightedTable([]string{"only"}, []float64{5})
		require.NoError(t, err)

		rng := rand.New(rand.NewSource(1))
		for i := 0; i < 100; i++ {
			assert.Equal(t, "only", table.Pick(rng))
		}
	})

	t.Run("frequencies track weights", func(t *testing.T) {
		table, err := NewWeightedTable([]string{"a", "b", "c"}, []float64{0.7, 0.2, 0.1})
		require.NoError(t, err)

		rng := rand.New(rand.NewSource(42))
		counts := make(map[string]int)
		const n = 100000
		for i := 0; i < n; i++ {
			counts[table.Pick(rng)]++
		}

		assert.InDelta(t, 0.7, float64(counts["a"])/n, 0.02)
		assert.InDelta(t, 0.2, float64(counts["b"])/n, 0.02)
		assert.InDelta(t, 0.1, float64(counts["c"])/n, 0.02)
	})

	t.Run("deterministic under a fixed seed", func(t *testing.T) {
		table, err := NewWeightedTable([]int{1, 2, 3, 4}, []float64{1, 2, 3, 4})
		require.NoError(t, err)

		a := rand.New(rand.NewSource(7))
		b := rand.New(rand.NewSource(7))
		for i := 0; i < 100; i++ {
			assert.Equal(t, table.Pick(a), table.Pick(b))
		}
	})
}
