// Package session tracks per-user sessions across a bounded window.
// A session opens on a user's first interaction, is updated by every
// subsequent interaction while open, and closes on inactivity or when its
// total duration exceeds the configured maximum. The tracker exclusively
// owns session lifecycle.
package session

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/example/clickstream/datagen/internal/model"
)

// ErrInvalidConfig is returned when the tracker configuration is invalid.
var ErrInvalidConfig = errors.New("session: invalid configuration")

// Config holds session lifecycle bounds.
type Config struct {
	// InactivityTimeout closes a session when no interaction arrives for
	// this long. Default: 30m.
	InactivityTimeout time.Duration `yaml:"inactivityTimeout" json:"inactivityTimeout"`

	// MaxDuration closes a session when its total lifetime exceeds this,
	// regardless of activity. Default: 2h.
	MaxDuration time.Duration `yaml:"maxDuration" json:"maxDuration"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.InactivityTimeout < 0 {
		return fmt.Errorf("%w: inactivityTimeout must be non-negative", ErrInvalidConfig)
	}
	if c.MaxDuration < 0 {
		return fmt.Errorf("%w: maxDuration must be non-negative", ErrInvalidConfig)
	}
	return nil
}

// ApplyDefaults applies default values to unset fields.
func (c *Config) ApplyDefaults() {
	if c.InactivityTimeout == 0 {
		c.InactivityTimeout = model.MaxSessionIdle
	}
	if c.MaxDuration == 0 {
		c.MaxDuration = model.MaxSessionDuration
	}
}

// entry holds one user's open session. The entry mutex serializes access
// per user; cross-user entries are fully independent. Once Sweep marks an
// entry closed it is dead: it has already been removed from the map, and
// any caller still holding the pointer must re-fetch instead of reopening a
// session that no sweep would ever see.
type entry struct {
	mu      sync.Mutex
	closed  bool
	session model.Session
}

// Tracker maintains at most one open session per user.
type Tracker struct {
	config Config

	// newSession constructs a fresh open session for a user. Injected so
	// the tracker stays free of generation concerns.
	newSession func(model.User) model.Session

	// mu protects the byUser map, not the sessions themselves.
	mu     sync.RWMutex
	byUser map[string]*entry

	// timeFunc returns the current time. Overridable for tests.
	timeFunc atomic.Pointer[func() time.Time]

	totalOpened atomic.Int64
	totalClosed atomic.Int64
}

// NewTracker creates a tracker with the given lifecycle bounds.
func NewTracker(config Config, newSession func(model.User) model.Session) (*Tracker, error) {
	cfg := config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()

	if newSession == nil {
		return nil, fmt.Errorf("%w: newSession constructor is required", ErrInvalidConfig)
	}

	t := &Tracker{
		config:     cfg,
		newSession: newSession,
		byUser:     make(map[string]*entry),
	}
	now := time.Now
	t.timeFunc.Store(&now)
	return t, nil
}

// SetTimeFunc overrides the clock, for tests.
func (t *Tracker) SetTimeFunc(fn func() time.Time) {
	t.timeFunc.Store(&fn)
}

func (t *Tracker) now() time.Time {
	return (*t.timeFunc.Load())()
}

// Ensure returns the user's open session, rotating an expired one or
// opening a fresh one when necessary. The returned session is a copy.
func (t *Tracker) Ensure(user model.User) model.Session {
	e := t.lockLive(user.UserID)
	defer e.mu.Unlock()

	t.rotateIfExpiredLocked(e, user)
	return e.session
}

// Record applies an interaction to the user's open session: last-activity,
// interaction count, viewed products, and accumulated revenue for
// purchases. A missing or expired session is rotated first. Returns a copy
// of the session after the update and whether a new session was opened by
// this call.
func (t *Tracker) Record(user model.User, in model.Interaction) (model.Session, bool) {
	e := t.lockLive(user.UserID)
	defer e.mu.Unlock()

	opened := t.rotateIfExpiredLocked(e, user)
	return t.applyLocked(e, in), opened
}

// Track synthesizes and records an interaction against the user's open
// session in one step, holding the entry lock across both so the session id
// handed to synth is the session the interaction is counted against, even
// when the session rotates. Returns the interaction, a copy of the session
// after the update, and whether a new session was opened by this call.
func (t *Tracker) Track(user model.User, synth func(sessionID string) model.Interaction) (model.Interaction, model.Session, bool) {
	e := t.lockLive(user.UserID)
	defer e.mu.Unlock()

	opened := t.rotateIfExpiredLocked(e, user)
	in := synth(e.session.SessionID)
	return in, t.applyLocked(e, in), opened
}

// applyLocked updates the entry's open session with one interaction. Must
// be called with e.mu held.
func (t *Tracker) applyLocked(e *entry, in model.Interaction) model.Session {
	s := &e.session
	s.LastActivity = t.now()
	s.InteractionCount++
	if !contains(s.ProductsViewed, in.ProductID) {
		s.ProductsViewed = append(s.ProductsViewed, in.ProductID)
	}
	if in.Kind == model.KindPurchase {
		s.TotalRevenue += in.Revenue
		if !contains(s.ProductsPurchased, in.ProductID) {
			s.ProductsPurchased = append(s.ProductsPurchased, in.ProductID)
		}
	}
	return *s
}

// Sweep closes every open session whose last activity exceeds the
// inactivity timeout or whose lifetime exceeds the maximum duration.
// Invoked periodically by the stream loop rather than per interaction to
// bound sweep cost. Returns the closed sessions with EndTime stamped.
func (t *Tracker) Sweep(now time.Time) []model.Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	var closed []model.Session
	for userID, e := range t.byUser {
		e.mu.Lock()
		if t.expiredLocked(&e.session, now) {
			end := now
			e.session.EndTime = &end
			e.closed = true
			closed = append(closed, e.session)
			delete(t.byUser, userID)
			t.totalClosed.Add(1)
		}
		e.mu.Unlock()
	}
	return closed
}

// Open returns a copy of the user's open session, if any.
func (t *Tracker) Open(userID string) (model.Session, bool) {
	t.mu.RLock()
	e, ok := t.byUser[userID]
	t.mu.RUnlock()
	if !ok {
		return model.Session{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session, true
}

// OpenCount returns the number of currently open sessions.
func (t *Tracker) OpenCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byUser)
}

// Stats holds tracker statistics.
type Stats struct {
	// Open is the number of currently open sessions.
	Open int
	// TotalOpened is the number of sessions ever opened.
	TotalOpened int64
	// TotalClosed is the number of sessions closed by rotation or sweep.
	TotalClosed int64
}

// Stats returns a snapshot of tracker statistics.
func (t *Tracker) Stats() Stats {
	return Stats{
		Open:        t.OpenCount(),
		TotalOpened: t.totalOpened.Load(),
		TotalClosed: t.totalClosed.Load(),
	}
}

// lockLive returns the user's session entry with its lock held, skipping
// entries a concurrent Sweep closed between the map lookup and the lock
// acquisition.
func (t *Tracker) lockLive(userID string) *entry {
	for {
		e := t.entryFor(userID)
		e.mu.Lock()
		if !e.closed {
			return e
		}
		e.mu.Unlock()
	}
}

// entryFor returns the user's session entry, creating an empty one if
// absent. The fresh entry carries a zero session; rotation fills it on
// first use under the entry lock.
func (t *Tracker) entryFor(userID string) *entry {
	t.mu.RLock()
	e, ok := t.byUser[userID]
	t.mu.RUnlock()
	if ok {
		return e
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok = t.byUser[userID]; ok {
		return e
	}
	e = &entry{}
	t.byUser[userID] = e
	return e
}

// rotateIfExpiredLocked opens a fresh session in the entry when it holds
// none or an expired one. Must be called with e.mu held. Reports whether a
// new session was opened.
func (t *Tracker) rotateIfExpiredLocked(e *entry, user model.User) bool {
	now := t.now()
	if e.session.SessionID != "" && !t.expiredLocked(&e.session, now) {
		return false
	}

	if e.session.SessionID != "" {
		t.totalClosed.Add(1)
	}
	e.session = t.newSession(user)
	t.totalOpened.Add(1)
	return true
}

// expiredLocked reports whether the session has exceeded its inactivity
// timeout or maximum duration at the given instant. The caller must hold
// the entry lock.
func (t *Tracker) expiredLocked(s *model.Session, now time.Time) bool {
	if now.Sub(s.LastActivity) > t.config.InactivityTimeout {
		return true
	}
	return now.Sub(s.StartTime) > t.config.MaxDuration
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
