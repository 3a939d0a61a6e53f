package stream

import (
	"context"
	"io"
	"net/http"
)

// Emitter copies a stream's serialized records to an output sink, flushing
// after every record so slow-rate streams deliver lines promptly instead of
// sitting in a buffer.
type Emitter struct {
	w     io.Writer
	flush func()
}

// NewEmitter wraps the sink. When the writer supports http.Flusher, each
// record is flushed through to the client as it is written.
func NewEmitter(w io.Writer) *Emitter {
	em := &Emitter{w: w, flush: func() {}}
	if f, ok := w.(http.Flusher); ok {
		em.flush = f.Flush
	}
	return em
}

// Emit copies records from the stream to the sink until the stream finishes
// or the context is cancelled. Returns the number of records written and
// the first write error, if any. A write error stops emission but leaves
// the stream running; callers cancel the stream when the sink is gone.
func (em *Emitter) Emit(ctx context.Context, s *Stream) (int64, error) {
	var written int64
	for {
		select {
		case line, ok := <-s.Records():
			if !ok {
				return written, nil
			}
			if _, err := em.w.Write(line); err != nil {
				return written, err
			}
			em.flush()
			written++
		case <-ctx.Done():
			return written, ctx.Err()
		}
	}
}
