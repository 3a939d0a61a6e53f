package session

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/clickstream/datagen/internal/model"
)

// testClock is a manually advanced clock.
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestTracker(t *testing.T) (*Tracker, *testClock) {
	t.Helper()

	clock := &testClock{now: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)}
	nextID := 0
	tracker, err := NewTracker(Config{}, func(u model.User) model.Session {
		nextID++
		return model.Session{
			SessionID:    fmt.Sprintf("sess-%d", nextID),
			UserID:       u.UserID,
			StartTime:    clock.Now(),
			LastActivity: clock.Now(),
		}
	})
	require.NoError(t, err)
	tracker.SetTimeFunc(clock.Now)
	return tracker, clock
}

func TestNewTracker(t *testing.T) {
	t.Run("defaults applied", func(t *testing.T) {
		tracker, err := NewTracker(Config{}, func(model.User) model.Session { return model.Session{} })
		require.NoError(t, err)
		assert.Equal(t, model.MaxSessionIdle, tracker.config.InactivityTimeout)
		assert.Equal(t, model.MaxSessionDuration, tracker.config.MaxDuration)
	})

	t.Run("negative timeout rejected", func(t *testing.T) {
		_, err := NewTracker(Config{InactivityTimeout: -time.Second}, func(model.User) model.Session { return model.Session{} })
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("nil constructor rejected", func(t *testing.T) {
		_, err := NewTracker(Config{}, nil)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestTracker_Ensure(t *testing.T) {
	tracker, clock := newTestTracker(t)
	user := model.User{UserID: "u1"}

	t.Run("opens on first use", func(t *testing.T) {
		s := tracker.Ensure(user)
		assert.Equal(t, "sess-1", s.SessionID)
		assert.Equal(t, 1, tracker.OpenCount())
	})

	t.Run("reuses the open session", func(t *testing.T) {
		s := tracker.Ensure(user)
		assert.Equal(t, "sess-1", s.SessionID)
		assert.Equal(t, 1, tracker.OpenCount())
	})

	t.Run("rotates after inactivity timeout", func(t *testing.T) {
		clock.Advance(31 * time.Minute)
		s := tracker.Ensure(user)
		assert.Equal(t, "sess-2", s.SessionID)
		assert.Equal(t, 1, tracker.OpenCount())
	})
}

func TestTracker_Record(t *testing.T) {
	t.Run("updates counters and last activity", func(t *testing.T) {
		tracker, clock := newTestTracker(t)
		user := model.User{UserID: "u1"}

		s, opened := tracker.Record(user, model.Interaction{ProductID: "p1", Kind: model.KindView})
		assert.True(t, opened)
		assert.Equal(t, 1, s.InteractionCount)
		assert.Equal(t, []string{"p1"}, s.ProductsViewed)

		clock.Advance(time.Minute)
		s, opened = tracker.Record(user, model.Interaction{ProductID: "p2", Kind: model.KindClick})
		assert.False(t, opened)
		assert.Equal(t, 2, s.InteractionCount)
		assert.Equal(t, []string{"p1", "p2"}, s.ProductsViewed)
		assert.Equal(t, clock.Now(), s.LastActivity)
	})

	t.Run("purchases accumulate revenue", func(t *testing.T) {
		tracker, _ := newTestTracker(t)
		user := model.User{UserID: "u1"}

		tracker.Record(user, model.Interaction{ProductID: "p1", Kind: model.KindPurchase, Revenue: 19.99})
		s, _ := tracker.Record(user, model.Interaction{ProductID: "p2", Kind: model.KindPurchase, Revenue: 5.01})
		assert.InDelta(t, 25.0, s.TotalRevenue, 0.001)
		assert.Equal(t, []string{"p1", "p2"}, s.ProductsPurchased)

		s, _ = tracker.Record(user, model.Interaction{ProductID: "p1", Kind: model.KindPurchase, Revenue: 19.99})
		assert.Equal(t, []string{"p1", "p2"}, s.ProductsPurchased, "repeat purchases do not duplicate the product")
		assert.InDelta(t, 44.99, s.TotalRevenue, 0.001)
	})

	t.Run("views do not touch revenue", func(t *testing.T) {
		tracker, _ := newTestTracker(t)
		s, _ := tracker.Record(model.User{UserID: "u1"}, model.Interaction{ProductID: "p1", Kind: model.KindView})
		assert.Zero(t, s.TotalRevenue)
		assert.Empty(t, s.ProductsPurchased)
	})

	t.Run("one open session per user", func(t *testing.T) {
		tracker, _ := newTestTracker(t)
		for i := 0; i < 10; i++ {
			tracker.Record(model.User{UserID: "u1"}, model.Interaction{ProductID: "p", Kind: model.KindView})
			tracker.Record(model.User{UserID: "u2"}, model.Interaction{ProductID: "p", Kind: model.KindView})
		}
		assert.Equal(t, 2, tracker.OpenCount())
	})
}

func TestTracker_Track(t *testing.T) {
	tracker, clock := newTestTracker(t)
	user := model.User{UserID: "u1"}

	synth := func(sessionID string) model.Interaction {
		return model.Interaction{ProductID: "p1", Kind: model.KindView, SessionID: sessionID}
	}

	in, s, opened := tracker.Track(user, synth)
	assert.True(t, opened)
	assert.Equal(t, s.SessionID, in.SessionID)
	assert.Equal(t, 1, s.InteractionCount)

	clock.Advance(31 * time.Minute)

	in2, s2, opened := tracker.Track(user, synth)
	assert.True(t, opened, "idle session rotates before synthesis")
	assert.Equal(t, s2.SessionID, in2.SessionID, "interaction carries the rotated session id")
	assert.NotEqual(t, s.SessionID, s2.SessionID)
	assert.Equal(t, 1, s2.InteractionCount, "counters reset on rotation")
}

func TestTracker_Expiry(t *testing.T) {
	t.Run("rotates after inactivity", func(t *testing.T) {
		tracker, clock := newTestTracker(t)
		user := model.User{UserID: "u1"}

		first, _ := tracker.Record(user, model.Interaction{ProductID: "p1", Kind: model.KindView})
		clock.Advance(model.MaxSessionIdle + time.Second)

		second, opened := tracker.Record(user, model.Interaction{ProductID: "p2", Kind: model.KindView})
		assert.True(t, opened)
		assert.NotEqual(t, first.SessionID, second.SessionID)
		assert.Equal(t, 1, second.InteractionCount, "counters reset on rotation")
	})

	t.Run("rotates past max duration despite activity", func(t *testing.T) {
		tracker, clock := newTestTracker(t)
		user := model.User{UserID: "u1"}

		first, _ := tracker.Record(user, model.Interaction{ProductID: "p", Kind: model.KindView})
		sessionID := first.SessionID

		// Keep the session active in steps below the idle timeout until the
		// total lifetime exceeds the maximum.
		for i := 0; i < 5; i++ {
			clock.Advance(29 * time.Minute)
			s, _ := tracker.Record(user, model.Interaction{ProductID: "p", Kind: model.KindView})
			if s.SessionID != sessionID {
				assert.Greater(t, clock.Now().Sub(first.StartTime), model.MaxSessionDuration)
				return
			}
		}
		t.Fatal("session never rotated past max duration")
	})
}

func TestTracker_Sweep(t *testing.T) {
	tracker, clock := newTestTracker(t)

	tracker.Record(model.User{UserID: "u1"}, model.Interaction{ProductID: "p", Kind: model.KindView})
	clock.Advance(10 * time.Minute)
	tracker.Record(model.User{UserID: "u2"}, model.Interaction{ProductID: "p", Kind: model.KindView})

	// u1 is now 10m idle, u2 fresh. Advance so only u1 crosses the timeout.
	clock.Advance(21 * time.Minute)

	closed := tracker.Sweep(clock.Now())
	require.Len(t, closed, 1)
	assert.Equal(t, "u1", closed[0].UserID)
	require.NotNil(t, closed[0].EndTime)
	assert.Equal(t, clock.Now(), *closed[0].EndTime)
	assert.Equal(t, 1, tracker.OpenCount())

	_, open := tracker.Open("u1")
	assert.False(t, open)

	stats := tracker.Stats()
	assert.Equal(t, int64(2), stats.TotalOpened)
	assert.Equal(t, int64(1), stats.TotalClosed)
	assert.Equal(t, 1, stats.Open)
}

func TestTracker_SweptEntryNotReused(t *testing.T) {
	tracker, clock := newTestTracker(t)
	user := model.User{UserID: "u1"}

	tracker.Record(user, model.Interaction{ProductID: "p", Kind: model.KindView})

	// Hold the entry pointer across a sweep, the way a racing recorder
	// would between its map lookup and its lock acquisition.
	tracker.mu.RLock()
	stale := tracker.byUser["u1"]
	tracker.mu.RUnlock()

	clock.Advance(model.MaxSessionIdle + time.Second)
	closed := tracker.Sweep(clock.Now())
	require.Len(t, closed, 1)
	assert.True(t, stale.closed, "sweep marks the removed entry dead")

	// The next interaction must open a session in a fresh entry that the
	// map, and every future sweep, can see.
	s, opened := tracker.Record(user, model.Interaction{ProductID: "p", Kind: model.KindView})
	assert.True(t, opened)

	tracker.mu.RLock()
	fresh := tracker.byUser["u1"]
	tracker.mu.RUnlock()
	require.NotNil(t, fresh)
	assert.NotSame(t, stale, fresh)

	open, ok := tracker.Open("u1")
	require.True(t, ok)
	assert.Equal(t, s.SessionID, open.SessionID)
	assert.Equal(t, 1, tracker.OpenCount())
}

func TestTracker_AccountingUnderConcurrentSweeps(t *testing.T) {
	var nextID atomic.Int64
	tracker, err := NewTracker(
		Config{InactivityTimeout: time.Millisecond, MaxDuration: time.Hour},
		func(u model.User) model.Session {
			return model.Session{
				SessionID:    fmt.Sprintf("sess-%d", nextID.Add(1)),
				UserID:       u.UserID,
				StartTime:    time.Now(),
				LastActivity: time.Now(),
			}
		},
	)
	require.NoError(t, err)

	stop := make(chan struct{})
	sweeperDone := make(chan struct{})
	go func() {
		defer close(sweeperDone)
		for {
			select {
			case <-stop:
				return
			default:
				tracker.Sweep(time.Now())
			}
		}
	}()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			user := model.User{UserID: fmt.Sprintf("u%d", w%4)}
			for i := 0; i < 500; i++ {
				tracker.Record(user, model.Interaction{ProductID: "p", Kind: model.KindView})
			}
		}(w)
	}

	wg.Wait()
	close(stop)
	<-sweeperDone

	// Expire everything still open; opened and closed must balance with no
	// session stranded outside the map.
	tracker.Sweep(time.Now().Add(time.Hour))

	stats := tracker.Stats()
	assert.Zero(t, stats.Open)
	assert.Equal(t, stats.TotalOpened, stats.TotalClosed, "every opened session is eventually closed")
}
