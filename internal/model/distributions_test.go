package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultDistributions(t *testing.T) {
	d := Default()

	t.Run("validates cleanly", func(t *testing.T) {
		require.NoError(t, d.Validate())
	})

	t.Run("segment weights sum to one", func(t *testing.T) {
		var sum float64
		for _, w := range d.SegmentWeights {
			sum += w
		}
		assert.InDelta(t, 1.0, sum, segmentWeightTolerance)
	})

	t.Run("every segment has a profile", func(t *testing.T) {
		for _, seg := range Segments() {
			profile, ok := d.Profiles[seg]
			require.True(t, ok, "missing profile for %s", seg)

			sum := 0
			for _, w := range profile.KindWeights {
				sum += w
			}
			assert.Equal(t, 100, sum, "interaction weights for %s", seg)
		}
	})

	t.Run("purchase weight rises with segment tier", func(t *testing.T) {
		casual := d.Profiles[SegmentCasual].KindWeights[KindPurchase]
		regular := d.Profiles[SegmentRegular].KindWeights[KindPurchase]
		power := d.Profiles[SegmentPower].KindWeights[KindPurchase]
		premium := d.Profiles[SegmentPremium].KindWeights[KindPurchase]

		assert.Less(t, casual, regular)
		assert.Less(t, regular, power)
		assert.Less(t, power, premium)
	})

	t.Run("every category has a price band", func(t *testing.T) {
		for _, cat := range Categories() {
			band, ok := d.PriceBands[cat]
			require.True(t, ok, "missing price band for %s", cat)
			assert.Greater(t, band.Min, 0.0)
			assert.GreaterOrEqual(t, band.Max, band.Min)
		}
	})
}

func TestDistributionsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *Distributions)
	}{
		{
			name: "segment weights do not sum to one",
			mutate: func(d *Distributions) {
				d.SegmentWeights[SegmentCasual] = 0.5
			},
		},
		{
			name: "negative segment weight",
			mutate: func(d *Distributions) {
				d.SegmentWeights[SegmentCasual] = -0.1
				d.SegmentWeights[SegmentRegular] = 0.85
			},
		},
		{
			name: "missing segment profile",
			mutate: func(d *Distributions) {
				delete(d.Profiles, SegmentPower)
			},
		},
		{
			name: "interaction weights do not sum to 100",
			mutate: func(d *Distributions) {
				p := d.Profiles[SegmentCasual]
				p.KindWeights = map[InteractionKind]int{KindView: 99}
				d.Profiles[SegmentCasual] = p
			},
		},
		{
			name: "inverted spend range",
			mutate: func(d *Distributions) {
				p := d.Profiles[SegmentRegular]
				p.Spend = FloatRange{Min: 100, Max: 10}
				d.Profiles[SegmentRegular] = p
			},
		},
		{
			name: "missing price band",
			mutate: func(d *Distributions) {
				delete(d.PriceBands, CategoryBooks)
			},
		},
		{
			name: "non-positive price band",
			mutate: func(d *Distributions) {
				d.PriceBands[CategoryBooks] = FloatRange{Min: 0, Max: 50}
			},
		},
		{
			name: "all device weights zero",
			mutate: func(d *Distributions) {
				d.DeviceWeights = map[DeviceClass]int{}
			},
		},
		{
			name: "missing duration range",
			mutate: func(d *Distributions) {
				delete(d.Durations, KindWishlist)
			},
		},
		{
			name: "quantity below one",
			mutate: func(d *Distributions) {
				d.Quantity = IntRange{Min: 0, Max: 3}
			},
		},
		{
			name: "rating above five",
			mutate: func(d *Distributions) {
				d.Rating = FloatRange{Min: 3, Max: 6}
			},
		},
		{
			name: "preference count exceeds categories",
			mutate: func(d *Distributions) {
				d.Preferences = IntRange{Min: 1, Max: len(Categories()) + 1}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Default()
			tt.mutate(&d)
			err := d.Validate()
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestTagPool(t *testing.T) {
	t.Run("known category", func(t *testing.T) {
		tags := TagPool(CategoryElectronics)
		assert.NotEmpty(t, tags)
		assert.Contains(t, tags, "wireless")
	})

	t.Run("unknown category gets generic pool", func(t *testing.T) {
		tags := TagPool(Category("furniture"))
		assert.NotEmpty(t, tags)
	})
}

func TestEntityKinds(t *testing.T) {
	kinds := EntityKinds()
	assert.Len(t, kinds, 4)
	for _, k := range kinds {
		assert.True(t, ValidEntityKind(k))
	}
	assert.False(t, ValidEntityKind(EntityKind("orders")))
	assert.False(t, ValidEntityKind(EntityKind("")))
}

func TestRangeContains(t *testing.T) {
	fr := FloatRange{Min: 1.5, Max: 3.5}
	assert.True(t, fr.Contains(1.5))
	assert.True(t, fr.Contains(3.5))
	assert.False(t, fr.Contains(3.6))

	ir := IntRange{Min: 1, Max: 3}
	assert.True(t, ir.Contains(1))
	assert.True(t, ir.Contains(3))
	assert.False(t, ir.Contains(0))
}
