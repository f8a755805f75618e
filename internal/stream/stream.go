// Package stream fan-outs visit lifecycle events to the live security board
// (SSE clients filtered by branch).
package stream

import (
	"context"
	"sync"
	"time"
)

// VisitEvent describes one visit status change for the board.
type VisitEvent struct {
	VisitID     string    `json:"visit_id"`
	BranchID    string    `json:"branch_id"`
	VisitorName string    `json:"visitor_name,omitempty"`
	HostName    string    `json:"host_name,omitempty"`
	FromStatus  string    `json:"from_status,omitempty"`
	ToStatus    string    `json:"to_status"`
	Timestamp   time.Time `json:"timestamp"`
}

type subscriber struct {
	ch       chan VisitEvent
	branchID string // empty subscribes to every branch
}

// Stream fan-outs visit events to all active subscribers.
type Stream struct {
	mu   sync.RWMutex
	subs map[int]subscriber
	next int
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[int]subscriber)}
}

// Subscribe registers a subscriber, optionally scoped to one branch, and
// returns a channel which will receive events. The channel is closed when the
// provided context ends.
func (s *Stream) Subscribe(ctx context.Context, branchID string) <-chan VisitEvent {
	ch := make(chan VisitEvent, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = subscriber{ch: ch, branchID: branchID}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the event to all matching subscribers.
func (s *Stream) Publish(evt VisitEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sub := range s.subs {
		if sub.branchID != "" && sub.branchID != evt.BranchID {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}
