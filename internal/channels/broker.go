package channels

import (
	"context"
	"errors"
)

var (
	ErrHubStopped     = errors.New("channels: hub stopped")
	ErrInvalidAddress = errors.New("channels: invalid address")
)

// Broker publishes a frame to every consumer joined to a group, on every instance
// the broker reaches.
type Broker interface {
	Publish(ctx context.Context, addr Address, msg Message) error
}

// LocalBroker delivers straight into an in-process hub.
type LocalBroker struct {
	hub *Hub
}

func NewLocalBroker(hub *Hub) *LocalBroker {
	return &LocalBroker{hub: hub}
}

func (b *LocalBroker) Publish(ctx context.Context, addr Address, msg Message) error {
	if !addr.Valid() {
		return ErrInvalidAddress
	}
	_, err := b.hub.Deliver(ctx, addr.Group(), msg)
	return err
}
