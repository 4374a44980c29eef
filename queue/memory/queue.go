// Package memory provides an in-process queue.Source with
// redelivery-on-close semantics. Intended for unit testing and development.
package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	hookrelay "github.com/blitzy-public-samples/mca-solution-fku9fu-sub001"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/queue"
)

// Ensure Queue implements queue.Source at compile time.
var _ queue.Source = (*Queue)(nil)

// Queue is an in-memory queue.Source. Safe for concurrent use.
type Queue struct {
	mu       sync.Mutex
	nextID   int
	pending  []*queue.Message            // awaiting fetch
	inflight map[string]*queue.Message   // fetched, not yet acked
	dead     []*DeadLettered
	closed   bool
	notify   chan struct{}
}

// DeadLettered is a message parked on the dead letter path with its reason.
type DeadLettered struct {
	Message *queue.Message
	Reason  error
}

// New returns an empty Queue.
func New() *Queue {
	return &Queue{
		inflight: make(map[string]*queue.Message),
		notify:   make(chan struct{}, 1),
	}
}

// Publish enqueues a raw message body.
func (q *Queue) Publish(body []byte) string {
	q.mu.Lock()
	q.nextID++
	m := &queue.Message{ID: strconv.Itoa(q.nextID), Body: body}
	q.pending = append(q.pending, m)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return m.ID
}

// Fetch returns up to n messages, blocking until at least one is available,
// the context is cancelled, or the queue is closed.
func (q *Queue) Fetch(ctx context.Context, n int) ([]*queue.Message, error) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return nil, hookrelay.ErrQueueClosed
		}
		if len(q.pending) > 0 {
			if n <= 0 || n > len(q.pending) {
				n = len(q.pending)
			}
			batch := q.pending[:n]
			q.pending = q.pending[n:]
			for _, m := range batch {
				m.Deliveries++
				q.inflight[m.ID] = m
			}
			q.mu.Unlock()
			return batch, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.notify:
		}
	}
}

// Ack removes a fetched message permanently.
func (q *Queue) Ack(_ context.Context, m *queue.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.inflight[m.ID]; !ok {
		return fmt.Errorf("queue/memory: ack unknown message %s", m.ID)
	}
	delete(q.inflight, m.ID)
	return nil
}

// DeadLetter parks a fetched message for inspection.
func (q *Queue) DeadLetter(_ context.Context, m *queue.Message, reason error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.inflight[m.ID]; !ok {
		return fmt.Errorf("queue/memory: dead-letter unknown message %s", m.ID)
	}
	delete(q.inflight, m.ID)
	q.dead = append(q.dead, &DeadLettered{Message: m, Reason: reason})
	return nil
}

// Close marks the queue closed and returns in-flight messages to pending,
// mimicking broker redelivery after a consumer crash.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	for _, m := range q.inflight {
		q.pending = append(q.pending, m)
	}
	q.inflight = make(map[string]*queue.Message)

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

// Reopen clears the closed flag so redelivered messages can be fetched
// again. Test helper for crash/restart scenarios.
func (q *Queue) Reopen() {
	q.mu.Lock()
	q.closed = false
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// DeadLettered returns the messages parked on the dead letter path.
func (q *Queue) DeadLettered() []*DeadLettered {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*DeadLettered, len(q.dead))
	copy(out, q.dead)
	return out
}

// Len returns the number of messages awaiting fetch.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// InFlight returns the number of fetched, unacknowledged messages.
func (q *Queue) InFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.inflight)
}
