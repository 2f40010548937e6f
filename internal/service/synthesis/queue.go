package synthesis

import (
	"context"
	"errors"
	"sync"

	"ai-voice-speech-service/internal/observability/metrics"
)

// ErrClosed is returned once the queue has been closed and drained.
var ErrClosed = errors.New("synthesis queue closed")

// Queue is an unbounded FIFO between reply producers and the playback
// sink. Enqueue never blocks; Dequeue blocks until a unit arrives, the
// context ends, or the queue is closed and empty. A single FIFO keeps
// units of the same sequence in enqueue order even with concurrent
// producers.
type Queue struct {
	mu     sync.Mutex
	items  []Unit
	closed bool

	// signal wakes one blocked consumer; done wakes all on close.
	signal chan struct{}
	done   chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Enqueue appends a unit. Fails once the queue is closed.
func (q *Queue) Enqueue(unit Unit) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.items = append(q.items, unit)
	q.mu.Unlock()

	metrics.DefaultMetrics.RecordSynthesisEnqueue(unit.Kind.String())
	q.wake()
	return nil
}

// Dequeue removes and returns the oldest unit, blocking while the
// queue is empty. Returns ErrClosed after Close once every unit has
// been consumed.
func (q *Queue) Dequeue(ctx context.Context) (Unit, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			unit := q.items[0]
			q.items = q.items[1:]
			remaining := len(q.items)
			q.mu.Unlock()

			metrics.DefaultMetrics.RecordSynthesisDequeue()
			if remaining > 0 {
				q.wake()
			}
			return unit, nil
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return Unit{}, ErrClosed
		}

		select {
		case <-q.signal:
		case <-q.done:
		case <-ctx.Done():
			return Unit{}, ctx.Err()
		}
	}
}

// Len reports how many units are waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Clear drops every pending unit for the given session, keeping units
// of other sessions. An empty sessionID drops everything. Used when a
// reply is abandoned mid-stream.
func (q *Queue) Clear(sessionID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if sessionID == "" {
		dropped := len(q.items)
		q.items = nil
		return dropped
	}

	kept := q.items[:0]
	dropped := 0
	for _, unit := range q.items {
		if unit.SessionID == sessionID {
			dropped++
			continue
		}
		kept = append(kept, unit)
	}
	q.items = kept
	return dropped
}

// Close stops accepting units. Consumers drain the remaining units,
// then receive ErrClosed.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()
	close(q.done)
}

func (q *Queue) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}
