// Package generator synthesizes users, products, interactions and sessions
// from configured weighted distributions. Sampling is pure and synchronous;
// given a fixed seed the output sequence is fully deterministic, which the
// test fixtures rely on.
package generator

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"

	"github.com/example/clickstream/datagen/internal/model"
)

// Generator samples entities from the configured distributions. It owns a
// single seeded random source; all draws are serialized on it so that a
// fixed seed reproduces the same entity sequence regardless of which
// goroutine asks.
type Generator struct {
	mu    sync.Mutex
	rng   *rand.Rand
	faker *gofakeit.Faker

	dist model.Distributions

	segments *WeightedTable[model.Segment]
	devices  *WeightedTable[model.DeviceClass]
	kinds    map[model.Segment]*WeightedTable[model.InteractionKind]

	// timeFunc returns the current time. Overridable for tests.
	timeFunc func() time.Time
}

// New creates a generator over the given distributions. The distributions
// are validated; a malformed table fails construction with a
// model.ErrConfiguration error.
func New(dist model.Distributions, seed int64) (*Generator, error) {
	if err := dist.Validate(); err != nil {
		return nil, err
	}

	segs := model.Segments()
	segWeights := make([]float64, len(segs))
	for i, s := range segs {
		segWeights[i] = dist.SegmentWeights[s]
	}
	segTable, err := NewWeightedTable(segs, segWeights)
	if err != nil {
		return nil, fmt.Errorf("segment weights: %w", err)
	}

	devs := model.DeviceClasses()
	devWeights := make([]float64, len(devs))
	for i, d := range devs {
		devWeights[i] = float64(dist.DeviceWeights[d])
	}
	devTable, err := NewWeightedTable(devs, devWeights)
	if err != nil {
		return nil, fmt.Errorf("device weights: %w", err)
	}

	kindTables := make(map[model.Segment]*WeightedTable[model.InteractionKind], len(segs))
	for _, s := range segs {
		kinds := model.InteractionKinds()
		weights := make([]float64, len(kinds))
		for i, k := range kinds {
			weights[i] = float64(dist.Profiles[s].KindWeights[k])
		}
		table, err := NewWeightedTable(kinds, weights)
		if err != nil {
			return nil, fmt.Errorf("interaction weights for %s: %w", s, err)
		}
		kindTables[s] = table
	}

	return &Generator{
		rng:      rand.New(rand.NewSource(seed)),
		faker:    gofakeit.New(uint64(seed)),
		dist:     dist,
		segments: segTable,
		devices:  devTable,
		kinds:    kindTables,
		timeFunc: time.Now,
	}, nil
}

// SetTimeFunc overrides the clock, for tests.
func (g *Generator) SetTimeFunc(fn func() time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.timeFunc = fn
}

// Distributions returns the distributions the generator samples from.
func (g *Generator) Distributions() model.Distributions {
	return g.dist
}

// User samples a new user: segment by weighted draw, spend and order count
// uniform within the segment's range, 1-4 distinct preferred categories,
// independent demographics.
func (g *Generator) User() model.User {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.timeFunc()
	segment := g.segments.Pick(g.rng)
	profile := g.dist.Profiles[segment]

	registered := now.Add(-g.randDuration(2 * 365 * 24 * time.Hour))
	lastActive := registered.Add(g.randDuration(now.Sub(registered)))

	return model.User{
		UserID:           g.newID(),
		Email:            g.faker.Email(),
		FirstName:        g.faker.FirstName(),
		LastName:         g.faker.LastName(),
		Age:              g.intIn(g.dist.Age),
		Gender:           model.Genders[g.rng.Intn(len(model.Genders))],
		Location:         g.faker.City() + ", " + g.faker.CountryAbr(),
		Segment:          segment,
		RegistrationDate: registered,
		LastActive:       lastActive,
		TotalSpent:       g.floatIn(profile.Spend),
		OrderCount:       g.intIn(profile.Orders),
		Preferences:      g.pickCategories(g.intIn(g.dist.Preferences)),
		DeviceType:       g.devices.Pick(g.rng),
		Browser:          model.Browsers[g.rng.Intn(len(model.Browsers))],
	}
}

// Product samples a new product: category uniform, price uniform within the
// category's band, rating, reviews and popularity from configured ranges.
func (g *Generator) Product() model.Product {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.timeFunc()
	categories := model.Categories()
	category := categories[g.rng.Intn(len(categories))]
	band := g.dist.PriceBands[category]

	created := now.Add(-g.randDuration(365 * 24 * time.Hour))
	updated := created.Add(g.randDuration(now.Sub(created)))

	return model.Product{
		ProductID:       g.newID(),
		Name:            g.faker.ProductName(),
		Category:        category,
		Price:           round2(g.floatIn(band)),
		Description:     g.faker.Sentence(8),
		Brand:           g.faker.Company(),
		Rating:          g.floatIn(g.dist.Rating),
		ReviewCount:     g.intIn(g.dist.Reviews),
		InStock:         g.rng.Float64() > 0.05,
		PopularityScore: g.rng.Float64(),
		Tags:            g.pickTags(category),
		CreatedAt:       created,
		UpdatedAt:       updated,
	}
}

// Interaction samples an interaction of the given user with the given
// product. The kind is drawn from the weight table keyed by the user's
// segment; purchases carry a quantity and revenue = price x quantity.
func (g *Generator) Interaction(user model.User, product model.Product, sessionID string) model.Interaction {
	g.mu.Lock()
	defer g.mu.Unlock()

	kind := g.kinds[user.Segment].Pick(g.rng)

	quantity := 1
	revenue := 0.0
	if kind == model.KindPurchase {
		quantity = g.intIn(g.dist.Quantity)
		revenue = round2(product.Price * float64(quantity))
	}

	return model.Interaction{
		InteractionID: g.newID(),
		UserID:        user.UserID,
		ProductID:     product.ProductID,
		Kind:          kind,
		Timestamp:     g.timeFunc(),
		SessionID:     sessionID,
		DurationSec:   g.intIn(g.dist.Durations[kind]),
		Quantity:      quantity,
		Revenue:       revenue,
		DeviceInfo:    string(user.DeviceType) + " - " + user.Browser,
		PageURL:       fmt.Sprintf("/products/%s/%s", product.Category, product.ProductID),
		Referrer:      model.Referrers[g.rng.Intn(len(model.Referrers))],
	}
}

// Session creates a fresh open session for the user, inheriting the user's
// device and browser context.
func (g *Generator) Session(user model.User) model.Session {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.timeFunc()
	return model.Session{
		SessionID:    g.newID(),
		UserID:       user.UserID,
		StartTime:    now,
		LastActivity: now,
		DeviceType:   user.DeviceType,
		Browser:      user.Browser,
		IPAddress:    g.faker.IPv4Address(),
		Location:     g.faker.City(),
	}
}

// newID derives a UUID from the seeded random source so that identifiers
// are reproducible under a fixed seed. Must be called with g.mu held.
func (g *Generator) newID() string {
	id, err := uuid.NewRandomFromReader(g.rng)
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// intIn draws a uniform integer from an inclusive range. Must be called
// with g.mu held.
func (g *Generator) intIn(r model.IntRange) int {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + g.rng.Intn(r.Max-r.Min+1)
}

// floatIn draws a uniform float from an inclusive range. Must be called
// with g.mu held.
func (g *Generator) floatIn(r model.FloatRange) float64 {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + g.rng.Float64()*(r.Max-r.Min)
}

// randDuration draws a uniform duration in [0, max). Must be called with
// g.mu held.
func (g *Generator) randDuration(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(g.rng.Int63n(int64(max)))
}

// pickCategories draws n distinct categories uniformly. Must be called with
// g.mu held.
func (g *Generator) pickCategories(n int) []model.Category {
	categories := model.Categories()
	g.rng.Shuffle(len(categories), func(i, j int) {
		categories[i], categories[j] = categories[j], categories[i]
	})
	if n > len(categories) {
		n = len(categories)
	}
	return categories[:n]
}

// pickTags draws 2-4 distinct tags from the category's tag pool. Must be
// called with g.mu held.
func (g *Generator) pickTags(cat model.Category) []string {
	pool := append([]string(nil), model.TagPool(cat)...)
	g.rng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})
	n := 2 + g.rng.Intn(3)
	if n > len(pool) {
		n = len(pool)
	}
	return pool[:n]
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
