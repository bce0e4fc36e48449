package session

import (
	"sync"

	"github.com/boettiger-lab/mcp-map-server/internal/mapstate"
)

// Session is one isolated, independently addressable copy of map
// state. A single mutex guards the document and the subscriber list
// together, so a full mutate-commit-publish sequence is atomic with
// respect to every other tool call and subscription change on the
// session.
type Session struct {
	key string

	mu   sync.Mutex
	doc  *mapstate.Document
	subs []*Subscriber
}

func newSession(key string) *Session {
	return &Session{
		key: key,
		doc: mapstate.NewDocument(),
	}
}

// Key returns the session's identifier.
func (s *Session) Key() string {
	return s.key
}

// Snapshot returns a deep copy of the current document.
func (s *Session) Snapshot() *mapstate.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Clone()
}

// Update applies one mutation to the live document. When the mutation
// reports a change, the commit is published to every subscriber as an
// immutable deep-copy snapshot; no-op mutations publish nothing. The
// returned snapshot reflects the document after the mutation either
// way.
func (s *Session) Update(mutate func(*mapstate.Document) bool) (snapshot *mapstate.Document, changed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed = mutate(s.doc)
	snapshot = s.doc.Clone()
	if changed {
		for _, sub := range s.subs {
			sub.push(snapshot)
		}
	}
	return snapshot, changed
}

// Subscribe registers a new viewer subscription on the session. Every
// commit after this point is enqueued on the returned subscriber in
// commit order.
func (s *Session) Subscribe() *Subscriber {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub := newSubscriber()
	s.subs = append(s.subs, sub)
	return sub
}

// Unsubscribe removes a subscription and closes its queue. Safe to
// call once per subscriber; unknown subscribers are ignored.
func (s *Session) Unsubscribe(sub *Subscriber) {
	s.mu.Lock()
	for i, candidate := range s.subs {
		if candidate == sub {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	sub.close()
}

// SubscriberCount reports how many live subscriptions the session has.
func (s *Session) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
