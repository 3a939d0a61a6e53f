// Package stream implements the rate-controlled streaming engine: it drives
// the probabilistic generator at a target events/second pace, serializes
// each record as newline-delimited JSON, and hands the lines to the caller
// through a bounded channel that an Emitter copies to the output sink.
package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/clickstream/datagen/internal/cache"
	"github.com/example/clickstream/datagen/internal/generator"
	"github.com/example/clickstream/datagen/internal/metrics"
	"github.com/example/clickstream/datagen/internal/model"
	"github.com/example/clickstream/datagen/internal/session"
)

// Errors returned by the stream package.
var (
	// ErrInvalidRequest is returned when a stream request is outside the
	// configured bounds. No partial stream is started.
	ErrInvalidRequest = errors.New("stream: invalid stream request")
	// ErrStreamNotFound is returned when cancelling an unknown stream.
	ErrStreamNotFound = errors.New("stream: stream not found")
)

// Request bounds. Requests outside these are rejected at stream start.
const (
	RateMin     = 1.0
	RateMax     = 50000.0
	DurationMin = time.Second
	DurationMax = 300 * time.Second
)

// Default warm sizes for lazily populating the reference caches before the
// first interaction or session stream.
const (
	defaultWarmUsers    = 100
	defaultWarmProducts = 200
)

// sweepEvery is how often a running stream loop sweeps expired sessions.
const sweepEvery = 5 * time.Second

// Config describes one stream request.
type Config struct {
	// Kind selects which entity type the stream produces.
	Kind model.EntityKind `json:"entity_kind"`

	// Rate is the target emission rate in events per second.
	Rate float64 `json:"rate"`

	// Duration bounds the stream's lifetime.
	Duration time.Duration `json:"duration"`

	// MaxCount optionally bounds the number of emitted events; zero means
	// bounded by duration only. The first bound to trigger stops the
	// stream.
	MaxCount int64 `json:"max_count,omitempty"`
}

// Validate rejects out-of-bounds requests before any event is emitted.
func (c Config) Validate() error {
	if !model.ValidEntityKind(c.Kind) {
		return fmt.Errorf("%w: unknown entity kind %q", ErrInvalidRequest, c.Kind)
	}
	if c.Rate < RateMin || c.Rate > RateMax {
		return fmt.Errorf("%w: rate %g outside [%g, %g]", ErrInvalidRequest, c.Rate, RateMin, RateMax)
	}
	if c.Duration < DurationMin || c.Duration > DurationMax {
		return fmt.Errorf("%w: duration %s outside [%s, %s]", ErrInvalidRequest, c.Duration, DurationMin, DurationMax)
	}
	if c.MaxCount < 0 {
		return fmt.Errorf("%w: max count must be non-negative", ErrInvalidRequest)
	}
	return nil
}

// Options configures an Engine.
type Options struct {
	// Seed seeds the generator and cache sampling. A fixed seed makes
	// entity output reproducible.
	Seed int64

	// Distributions are the weighted domains to sample from. Zero value
	// means model.Default().
	Distributions *model.Distributions

	// UserCacheSize bounds the user reference cache. Default: 1000.
	UserCacheSize int

	// ProductCacheSize bounds the product reference cache. Default: 2000.
	ProductCacheSize int

	// Session holds session tracker bounds.
	Session session.Config

	// Logger receives engine and stream lifecycle logs. Default: no-op.
	Logger *zap.Logger

	// Sink optionally receives every emitted record, keyed by entity id.
	// Publishing is best-effort and must not block the stream loop.
	Sink Sink
}

// Sink receives emitted records for side delivery, such as a Kafka
// producer.
type Sink interface {
	Publish(ctx context.Context, kind model.EntityKind, key string, value []byte)
}

// Engine owns the generator, the reference caches, the session tracker and
// the metrics aggregator, and manages the set of running streams. It is the
// injected context object shared by every stream; construct a fresh one per
// test.
type Engine struct {
	gen      *generator.Generator
	users    *cache.Pool[model.User]
	products *cache.Pool[model.Product]
	tracker  *session.Tracker
	agg      *metrics.Aggregator
	log      *zap.Logger
	sink     Sink

	mu      sync.Mutex
	streams map[string]*Stream

	warmOnce sync.Once
}

// NewEngine builds an engine from the options. Distribution validation
// failures surface here, before any stream can start.
func NewEngine(opts Options) (*Engine, error) {
	dist := model.Default()
	if opts.Distributions != nil {
		dist = *opts.Distributions
	}

	gen, err := generator.New(dist, opts.Seed)
	if err != nil {
		return nil, err
	}

	userCap := opts.UserCacheSize
	if userCap <= 0 {
		userCap = 1000
	}
	productCap := opts.ProductCacheSize
	if productCap <= 0 {
		productCap = 2000
	}

	users, err := cache.New[model.User](userCap, opts.Seed+1)
	if err != nil {
		return nil, err
	}
	products, err := cache.New[model.Product](productCap, opts.Seed+2)
	if err != nil {
		return nil, err
	}

	tracker, err := session.NewTracker(opts.Session, gen.Session)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	agg := metrics.NewAggregator()
	users.OnSizeChange(agg.SetCachedUsers)
	products.OnSizeChange(agg.SetCachedProducts)

	return &Engine{
		gen:      gen,
		users:    users,
		products: products,
		tracker:  tracker,
		agg:      agg,
		log:      logger,
		sink:     opts.Sink,
		streams:  make(map[string]*Stream),
	}, nil
}

// Metrics returns the engine's metrics aggregator.
func (e *Engine) Metrics() *metrics.Aggregator { return e.agg }

// Tracker returns the engine's session tracker.
func (e *Engine) Tracker() *session.Tracker { return e.tracker }

// Warm populates the reference caches up to the given targets. Idempotent.
func (e *Engine) Warm(userTarget, productTarget int) {
	e.users.EnsurePopulated(userTarget, e.gen.User)
	e.products.EnsurePopulated(productTarget, e.gen.Product)
}

// ensureWarm lazily populates the caches before the first stream that
// synthesizes interactions or sessions.
func (e *Engine) ensureWarm() {
	e.warmOnce.Do(func() {
		e.Warm(defaultWarmUsers, defaultWarmProducts)
	})
}

// StartStream validates the request and starts a new rate-controlled
// stream. The stream runs until its duration elapses, its max count is
// reached, or it is cancelled, whichever comes first.
func (e *Engine) StartStream(cfg Config) (*Stream, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Kind == model.EntityInteractions || cfg.Kind == model.EntitySessions {
		e.ensureWarm()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Stream{
		ID:      uuid.NewString(),
		cfg:     cfg,
		started: time.Now(),
		cancel:  cancel,
		records: make(chan []byte, recordBuffer),
		done:    make(chan struct{}),
	}

	e.mu.Lock()
	e.streams[s.ID] = s
	e.mu.Unlock()

	e.agg.StreamStarted()
	e.log.Info("stream started",
		zap.String("stream_id", s.ID),
		zap.String("kind", string(cfg.Kind)),
		zap.Float64("rate", cfg.Rate),
		zap.Duration("duration", cfg.Duration),
		zap.Int64("max_count", cfg.MaxCount),
	)

	go e.run(ctx, s)
	return s, nil
}

// CancelStream requests cooperative termination of a running stream. The
// stream observes the cancellation within one event interval.
func (e *Engine) CancelStream(id string) error {
	e.mu.Lock()
	s, ok := e.streams[id]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrStreamNotFound, id)
	}
	s.Cancel()
	return nil
}

// Stream returns a running stream by id.
func (e *Engine) Stream(id string) (*Stream, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.streams[id]
	return s, ok
}

// ActiveStreams returns all currently running streams.
func (e *Engine) ActiveStreams() []*Stream {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Stream, 0, len(e.streams))
	for _, s := range e.streams {
		out = append(out, s)
	}
	return out
}

// Close cancels every running stream and waits for them to finish.
func (e *Engine) Close() {
	for _, s := range e.ActiveStreams() {
		s.Cancel()
	}
	for _, s := range e.ActiveStreams() {
		<-s.Done()
	}
}

// SampleEntity generates a single entity of the given kind without
// streaming, for one-shot sample requests.
func (e *Engine) SampleEntity(kind model.EntityKind) (any, error) {
	if !model.ValidEntityKind(kind) {
		return nil, fmt.Errorf("%w: unknown entity kind %q", ErrInvalidRequest, kind)
	}
	if kind == model.EntityInteractions || kind == model.EntitySessions {
		e.ensureWarm()
	}
	record, _ := e.nextRecord(kind)
	return record, nil
}

// removeStream drops a finished stream from the active set.
func (e *Engine) removeStream(id string) {
	e.mu.Lock()
	delete(e.streams, id)
	e.mu.Unlock()
}

// nextRecord produces one record of the given kind and its entity id, used
// as the partition key for side delivery. Users and products are inserted
// into their caches so long-running streams keep replenishing the pools;
// interactions and sessions are synthesized against cached entities,
// falling back to one-off synthesis when a cache is empty so streaming
// never stalls. One-off entities are not inserted, which keeps a cache-miss
// storm from growing the pools past their population path.
func (e *Engine) nextRecord(kind model.EntityKind) (any, string) {
	switch kind {
	case model.EntityUsers:
		user := e.gen.User()
		e.users.Insert(user)
		return user, user.UserID

	case model.EntityProducts:
		product := e.gen.Product()
		e.products.Insert(product)
		return product, product.ProductID

	case model.EntitySessions:
		sess := e.gen.Session(e.sampleUser())
		return sess, sess.SessionID

	default: // model.EntityInteractions
		user := e.sampleUser()
		product := e.sampleProduct()
		in, _, _ := e.tracker.Track(user, func(sessionID string) model.Interaction {
			return e.gen.Interaction(user, product, sessionID)
		})
		return in, in.InteractionID
	}
}

// sampleUser draws a cached user, synthesizing a one-off on an empty cache.
func (e *Engine) sampleUser() model.User {
	user, err := e.users.Sample()
	if err != nil {
		return e.gen.User()
	}
	return user
}

// sampleProduct draws a cached product, synthesizing a one-off on an empty
// cache.
func (e *Engine) sampleProduct() model.Product {
	product, err := e.products.Sample()
	if err != nil {
		return e.gen.Product()
	}
	return product
}
