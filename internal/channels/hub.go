package channels

import (
	"context"
	"sync"
)

// Subscriber is one live connection's inbox.
type Subscriber struct {
	ID   string
	Send chan Message

	dropOnce sync.Once
	dropped  chan struct{}
}

func NewSubscriber(id string, buffer int) *Subscriber {
	return &Subscriber{
		ID:      id,
		Send:    make(chan Message, buffer),
		dropped: make(chan struct{}),
	}
}

// Dropped is closed when the hub evicted the subscriber for falling behind.
func (s *Subscriber) Dropped() <-chan struct{} {
	return s.dropped
}

func (s *Subscriber) drop() {
	s.dropOnce.Do(func() { close(s.dropped) })
}

type membership struct {
	group string
	sub   *Subscriber
	done  chan struct{}
}

type delivery struct {
	group string
	msg   Message
	done  chan int
}

type countRequest struct {
	group string
	reply chan int
}

// Hub owns group membership. All state is confined to the Run goroutine.
type Hub struct {
	groups map[string]map[*Subscriber]struct{}

	join    chan membership
	leave   chan membership
	deliver chan delivery
	count   chan countRequest
	stopped chan struct{}

	// OnDrop, if set, is called from the hub loop when a slow subscriber is evicted.
	OnDrop func(group string, sub *Subscriber)
}

func NewHub() *Hub {
	return &Hub{
		groups:  make(map[string]map[*Subscriber]struct{}),
		join:    make(chan membership),
		leave:   make(chan membership),
		deliver: make(chan delivery),
		count:   make(chan countRequest),
		stopped: make(chan struct{}),
	}
}

// Run processes membership changes and deliveries until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)
	for {
		select {
		case <-ctx.Done():
			return

		case m := <-h.join:
			members, ok := h.groups[m.group]
			if !ok {
				members = make(map[*Subscriber]struct{})
				h.groups[m.group] = members
			}
			members[m.sub] = struct{}{}
			close(m.done)

		case m := <-h.leave:
			h.remove(m.group, m.sub)
			close(m.done)

		case d := <-h.deliver:
			delivered := 0
			for sub := range h.groups[d.group] {
				select {
				case sub.Send <- d.msg:
					delivered++
				default:
					h.remove(d.group, sub)
					sub.drop()
					if h.OnDrop != nil {
						h.OnDrop(d.group, sub)
					}
				}
			}
			if d.done != nil {
				d.done <- delivered
			}

		case req := <-h.count:
			req.reply <- len(h.groups[req.group])
		}
	}
}

func (h *Hub) remove(group string, sub *Subscriber) {
	members, ok := h.groups[group]
	if !ok {
		return
	}
	delete(members, sub)
	if len(members) == 0 {
		delete(h.groups, group)
	}
}

// Join adds sub to the group at addr. Joining twice is harmless.
func (h *Hub) Join(ctx context.Context, addr Address, sub *Subscriber) error {
	return h.membership(ctx, h.join, addr, sub)
}

// Leave removes sub from the group at addr. Leaving a group twice is harmless.
func (h *Hub) Leave(ctx context.Context, addr Address, sub *Subscriber) error {
	return h.membership(ctx, h.leave, addr, sub)
}

func (h *Hub) membership(ctx context.Context, ch chan membership, addr Address, sub *Subscriber) error {
	m := membership{group: addr.Group(), sub: sub, done: make(chan struct{})}
	select {
	case ch <- m:
	case <-ctx.Done():
		return ctx.Err()
	case <-h.stopped:
		return ErrHubStopped
	}
	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.stopped:
		return ErrHubStopped
	}
}

// Deliver fans msg out to every current member of group and returns how many
// subscribers accepted it.
func (h *Hub) Deliver(ctx context.Context, group string, msg Message) (int, error) {
	d := delivery{group: group, msg: msg, done: make(chan int, 1)}
	select {
	case h.deliver <- d:
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-h.stopped:
		return 0, ErrHubStopped
	}
	select {
	case n := <-d.done:
		return n, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-h.stopped:
		return 0, ErrHubStopped
	}
}

// Members reports the current size of the group at addr.
func (h *Hub) Members(ctx context.Context, addr Address) (int, error) {
	req := countRequest{group: addr.Group(), reply: make(chan int, 1)}
	select {
	case h.count <- req:
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-h.stopped:
		return 0, ErrHubStopped
	}
	select {
	case n := <-req.reply:
		return n, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-h.stopped:
		return 0, ErrHubStopped
	}
}
