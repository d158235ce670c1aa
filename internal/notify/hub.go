package notify

import (
	"context"
	"sync"
)

const (
	DefaultBacklogSize      = 50
	DefaultSubscriberBuffer = 32
)

// Hub is the in-process broadcaster behind the SSE stream. Slow subscribers lose
// events instead of blocking publishers.
type Hub struct {
	mu      sync.Mutex
	subs    map[uint64]*Subscription
	nextID  uint64
	backlog []Event
	buffer  int
	closed  bool
}

type Subscription struct {
	hub   *Hub
	id    uint64
	group Group
	ch    chan Event
	once  sync.Once
}

func NewHub() *Hub {
	return &Hub{
		subs:   make(map[uint64]*Subscription),
		buffer: DefaultSubscriberBuffer,
	}
}

func (h *Hub) Publish(_ context.Context, ev Event) error {
	if h == nil {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}

	h.backlog = append(h.backlog, ev)
	if len(h.backlog) > DefaultBacklogSize {
		h.backlog = h.backlog[len(h.backlog)-DefaultBacklogSize:]
	}
	for _, s := range h.subs {
		if !ev.For(s.group) {
			continue
		}
		select {
		case s.ch <- ev:
		default:
		}
	}
	return nil
}

// Subscribe registers a listener for group and returns the recent events it would have seen.
func (h *Hub) Subscribe(group Group) (*Subscription, []Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := &Subscription{
		hub:   h,
		id:    h.nextID,
		group: group,
		ch:    make(chan Event, h.buffer),
	}
	h.nextID++
	if h.closed {
		close(sub.ch)
		return sub, nil
	}
	h.subs[sub.id] = sub

	backlog := make([]Event, 0, len(h.backlog))
	for _, ev := range h.backlog {
		if ev.For(group) {
			backlog = append(backlog, ev)
		}
	}
	return sub, backlog
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close ends every subscription; open streams see their channel close and return.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, s := range h.subs {
		close(s.ch)
		delete(h.subs, id)
	}
}

func (s *Subscription) Events() <-chan Event {
	if s == nil {
		return nil
	}
	return s.ch
}

func (s *Subscription) Close() {
	if s == nil || s.hub == nil {
		return
	}
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s.id)
		s.hub.mu.Unlock()
	})
}
