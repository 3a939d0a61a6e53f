package generator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/clickstream/datagen/internal/model"
)

func newTestGenerator(t *testing.T, seed int64) *Generator {
	t.Helper()
	g, err := New(model.Default(), seed)
	require.NoError(t, err)
	return g
}

func TestNew(t *testing.T) {
	t.Run("valid distributions", func(t *testing.T) {
		g, err := New(model.Default(), 1)
		require.NoError(t, err)
		assert.NotNil(t, g)
	})

	t.Run("invalid distributions fail construction", func(t *testing.T) {
		d := model.Default()
		d.SegmentWeights[model.SegmentCasual] = 0.9
		_, err := New(d, 1)
		assert.ErrorIs(t, err, model.ErrConfiguration)
	})
}

func TestGenerator_Determinism(t *testing.T) {
	fixed := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return fixed }

	t.Run("same seed reproduces the same sequence", func(t *testing.T) {
		a := newTestGenerator(t, 42)
		b := newTestGenerator(t, 42)
		a.SetTimeFunc(clock)
		b.SetTimeFunc(clock)

		for i := 0; i < 50; i++ {
			assert.Equal(t, a.User(), b.User())
		}
		for i := 0; i < 50; i++ {
			assert.Equal(t, a.Product(), b.Product())
		}
	})

	t.Run("different seeds diverge", func(t *testing.T) {
		a := newTestGenerator(t, 42)
		b := newTestGenerator(t, 43)
		a.SetTimeFunc(clock)
		b.SetTimeFunc(clock)

		assert.NotEqual(t, a.User().UserID, b.User().UserID)
	})

	t.Run("ids are unique within a sequence", func(t *testing.T) {
		g := newTestGenerator(t, 42)
		seen := make(map[string]bool)
		for i := 0; i < 1000; i++ {
			id := g.User().UserID
			assert.False(t, seen[id], "duplicate id %s", id)
			seen[id] = true
		}
	})
}

func TestGenerator_User(t *testing.T) {
	g := newTestGenerator(t, 42)
	d := g.Distributions()

	t.Run("fields respect segment profile", func(t *testing.T) {
		for i := 0; i < 1000; i++ {
			u := g.User()
			profile, ok := d.Profiles[u.Segment]
			require.True(t, ok, "unknown segment %s", u.Segment)

			assert.True(t, profile.Spend.Contains(u.TotalSpent),
				"spend %v outside %v for %s", u.TotalSpent, profile.Spend, u.Segment)
			assert.True(t, profile.Orders.Contains(u.OrderCount),
				"orders %d outside %v for %s", u.OrderCount, profile.Orders, u.Segment)
			assert.True(t, d.Age.Contains(u.Age))
			assert.NotEmpty(t, u.Email)
			assert.NotEmpty(t, u.Location)

			n := len(u.Preferences)
			assert.True(t, d.Preferences.Contains(n), "preference count %d", n)
			distinct := make(map[model.Category]bool)
			for _, c := range u.Preferences {
				distinct[c] = true
			}
			assert.Len(t, distinct, n, "preferences must be distinct")

			assert.False(t, u.LastActive.Before(u.RegistrationDate))
		}
	})

	t.Run("segment mix tracks weights over 10k users", func(t *testing.T) {
		g := newTestGenerator(t, 7)
		counts := make(map[model.Segment]int)
		const n = 10000
		for i := 0; i < n; i++ {
			counts[g.User().Segment]++
		}

		for seg, want := range d.SegmentWeights {
			got := float64(counts[seg]) / n
			assert.InDelta(t, want, got, 0.02, "segment %s", seg)
		}
	})
}

func TestGenerator_Product(t *testing.T) {
	g := newTestGenerator(t, 42)
	d := g.Distributions()

	for i := 0; i < 1000; i++ {
		p := g.Product()
		band, ok := d.PriceBands[p.Category]
		require.True(t, ok, "unknown category %s", p.Category)

		assert.True(t, band.Contains(p.Price),
			"price %v outside %v for %s", p.Price, band, p.Category)
		assert.True(t, d.Rating.Contains(p.Rating))
		assert.True(t, d.Reviews.Contains(p.ReviewCount))
		assert.GreaterOrEqual(t, p.PopularityScore, 0.0)
		assert.Less(t, p.PopularityScore, 1.0)
		assert.NotEmpty(t, p.Name)
		assert.NotEmpty(t, p.Tags)
		assert.False(t, p.UpdatedAt.Before(p.CreatedAt))
	}
}

func TestGenerator_Interaction(t *testing.T) {
	g := newTestGenerator(t, 42)
	d := g.Distributions()
	user := g.User()
	product := g.Product()

	t.Run("links user, product and session", func(t *testing.T) {
		in := g.Interaction(user, product, "session-1")
		assert.Equal(t, user.UserID, in.UserID)
		assert.Equal(t, product.ProductID, in.ProductID)
		assert.Equal(t, "session-1", in.SessionID)
		assert.Contains(t, in.PageURL, string(product.Category))
	})

	t.Run("purchases carry quantity and revenue", func(t *testing.T) {
		sawPurchase := false
		for i := 0; i < 2000; i++ {
			in := g.Interaction(user, product, "s")
			dur, ok := d.Durations[in.Kind]
			require.True(t, ok, "unknown kind %s", in.Kind)
			assert.True(t, dur.Contains(in.DurationSec))

			if in.Kind == model.KindPurchase {
				sawPurchase = true
				assert.True(t, d.Quantity.Contains(in.Quantity))
				assert.InDelta(t, product.Price*float64(in.Quantity), in.Revenue, 0.01)
			} else {
				assert.Zero(t, in.Revenue)
				assert.Equal(t, 1, in.Quantity)
			}
		}
		assert.True(t, sawPurchase, "expected at least one purchase in 2000 draws")
	})

	t.Run("kind mix follows the segment profile", func(t *testing.T) {
		g := newTestGenerator(t, 11)
		u := model.User{UserID: "u", Segment: model.SegmentPremium, DeviceType: model.DeviceMobile, Browser: "chrome"}
		p := g.Product()

		counts := make(map[model.InteractionKind]int)
		const n = 20000
		for i := 0; i < n; i++ {
			counts[g.Interaction(u, p, "s").Kind]++
		}

		for kind, w := range d.Profiles[model.SegmentPremium].KindWeights {
			got := float64(counts[kind]) / n
			assert.InDelta(t, float64(w)/100, got, 0.02, "kind %s", kind)
		}
	})
}

func TestGenerator_Session(t *testing.T) {
	g := newTestGenerator(t, 42)
	user := g.User()

	s := g.Session(user)
	assert.NotEmpty(t, s.SessionID)
	assert.Equal(t, user.UserID, s.UserID)
	assert.Equal(t, user.DeviceType, s.DeviceType)
	assert.Equal(t, user.Browser, s.Browser)
	assert.Equal(t, s.StartTime, s.LastActivity)
	assert.NotEmpty(t, s.IPAddress)
	assert.Nil(t, s.EndTime)
}
