package stream

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// recordBuffer bounds the per-stream record channel. A slow consumer blocks
// the producer once the buffer fills; tokens keep accruing while it is
// blocked, so the owed events are emitted back-to-back once the consumer
// resumes.
const recordBuffer = 256

// Stream is one running rate-controlled emission. Records arrive on the
// Records channel as serialized NDJSON lines, each terminated by a newline.
// The channel closes when the stream finishes for any reason.
type Stream struct {
	// ID uniquely identifies the stream for cancellation and inspection.
	ID string

	cfg     Config
	started time.Time
	cancel  context.CancelFunc
	records chan []byte
	done    chan struct{}

	mu      sync.Mutex
	emitted int64
	err     error
}

// Config returns the request this stream was started with.
func (s *Stream) Config() Config { return s.cfg }

// Started returns the stream's start time.
func (s *Stream) Started() time.Time { return s.started }

// Records returns the channel of serialized NDJSON lines. Closed when the
// stream finishes.
func (s *Stream) Records() <-chan []byte { return s.records }

// Done returns a channel closed when the stream has fully stopped.
func (s *Stream) Done() <-chan struct{} { return s.done }

// Cancel requests cooperative termination. Safe to call more than once and
// after the stream has finished.
func (s *Stream) Cancel() { s.cancel() }

// Emitted returns the number of events emitted so far.
func (s *Stream) Emitted() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.emitted
}

// Err returns why the stream stopped: nil for a natural end (duration
// elapsed or max count reached), context.Canceled after Cancel.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Stream) addEmitted() {
	s.mu.Lock()
	s.emitted++
	s.mu.Unlock()
}

// setErr records why the stream stopped. Duration expiry is a natural end,
// not a failure, so the deadline error is not surfaced.
func (s *Stream) setErr(err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// catchUpBurst sizes the token bucket to hold every token the stream could
// be owed over its whole lifetime, so time lost while the consumer stalls
// is repaid in full.
func catchUpBurst(cfg Config) int {
	return int(cfg.Rate*cfg.Duration.Seconds()) + 1
}

// run is the stream loop. The token bucket is drained to a single token at
// start and refills at the target rate, so the emitted count never exceeds
// one plus rate times elapsed; tokens accrued while the producer is blocked
// on a full channel let the loop emit back-to-back afterwards until the
// cumulative count catches up. The loop re-checks cancellation at every
// token wait and every channel send, so a cancel is observed within one
// event interval.
func (e *Engine) run(ctx context.Context, s *Stream) {
	defer func() {
		e.removeStream(s.ID)
		e.agg.StreamEnded()
		e.agg.SetOpenSessions(e.tracker.OpenCount())
		e.log.Info("stream finished",
			zap.String("stream_id", s.ID),
			zap.String("kind", string(s.cfg.Kind)),
			zap.Int64("emitted", s.Emitted()),
			zap.Duration("elapsed", time.Since(s.started)),
		)
		close(s.records)
		close(s.done)
	}()

	ctx, cancelTimeout := context.WithTimeout(ctx, s.cfg.Duration)
	defer cancelTimeout()

	limiter := rate.NewLimiter(rate.Limit(s.cfg.Rate), catchUpBurst(s.cfg))
	limiter.AllowN(time.Now(), limiter.Burst()-1)
	sweep := time.NewTicker(sweepEvery)
	defer sweep.Stop()

	for {
		if s.cfg.MaxCount > 0 && s.Emitted() >= s.cfg.MaxCount {
			return
		}

		if err := limiter.Wait(ctx); err != nil {
			s.setErr(ctx.Err())
			return
		}

		select {
		case now := <-sweep.C:
			e.tracker.Sweep(now)
			e.agg.SetOpenSessions(e.tracker.OpenCount())
		default:
		}

		record, key := e.nextRecord(s.cfg.Kind)
		line, err := json.Marshal(record)
		if err != nil {
			e.agg.RecordSkipped()
			e.log.Warn("record skipped: serialization failed",
				zap.String("stream_id", s.ID),
				zap.String("kind", string(s.cfg.Kind)),
				zap.Error(err),
			)
			continue
		}
		if e.sink != nil {
			e.sink.Publish(ctx, s.cfg.Kind, key, line)
		}
		line = append(line, '\n')

		select {
		case s.records <- line:
			s.addEmitted()
			e.agg.EventsEmitted(1)
		case <-ctx.Done():
			s.setErr(ctx.Err())
			return
		}
	}
}
