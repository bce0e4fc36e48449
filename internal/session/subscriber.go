package session

import (
	"context"
	"errors"
	"sync"

	"github.com/boettiger-lab/mcp-map-server/internal/mapstate"
)

// ErrSubscriptionClosed is returned by Next once the subscription has
// been unsubscribed and its queue drained.
var ErrSubscriptionClosed = errors.New("subscription closed")

// Subscriber is an unbounded FIFO queue of committed snapshots for one
// viewer connection. Publishing never blocks: a stalled consumer
// accumulates queued snapshots rather than slowing producers or other
// consumers. This is a control-plane stream with low commit rates, so
// the unbounded queue is an accepted tradeoff.
type Subscriber struct {
	mu     sync.Mutex
	queue  []*mapstate.Document
	closed bool

	// ready carries at most one wakeup signal; Next re-checks the
	// queue after every wakeup, so a single token is enough.
	ready chan struct{}
}

func newSubscriber() *Subscriber {
	return &Subscriber{ready: make(chan struct{}, 1)}
}

// push enqueues one snapshot. Called with the session lock held, which
// serializes pushes and preserves commit order per subscriber.
func (b *Subscriber) push(doc *mapstate.Document) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.queue = append(b.queue, doc)
	b.mu.Unlock()
	b.signal()
}

// Next blocks until a snapshot is available, the context is cancelled,
// or the subscription is closed. Queued snapshots are still delivered
// after close; ErrSubscriptionClosed only surfaces once the queue is
// empty.
func (b *Subscriber) Next(ctx context.Context) (*mapstate.Document, error) {
	for {
		b.mu.Lock()
		if len(b.queue) > 0 {
			doc := b.queue[0]
			b.queue = b.queue[1:]
			b.mu.Unlock()
			return doc, nil
		}
		if b.closed {
			b.mu.Unlock()
			return nil, ErrSubscriptionClosed
		}
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-b.ready:
		}
	}
}

func (b *Subscriber) close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.signal()
}

func (b *Subscriber) signal() {
	select {
	case b.ready <- struct{}{}:
	default:
	}
}
