package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ecosystia_backend/internal/logger"

	"github.com/redis/go-redis/v9"
)

const DefaultRedisPrefix = "ecosystia:"

type envelope struct {
	Group   string  `json:"group"`
	Message Message `json:"message"`
}

// RedisBroker publishes frames on Redis pub/sub so that every instance running
// Relay delivers them to its own hub.
type RedisBroker struct {
	client *redis.Client
	hub    *Hub
	prefix string
}

func NewRedisBroker(client *redis.Client, hub *Hub, prefix string) *RedisBroker {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisBroker{client: client, hub: hub, prefix: prefix}
}

func (b *RedisBroker) Publish(ctx context.Context, addr Address, msg Message) error {
	if !addr.Valid() {
		return ErrInvalidAddress
	}
	data, err := json.Marshal(envelope{Group: addr.Group(), Message: msg})
	if err != nil {
		return fmt.Errorf("channels: encode frame: %w", err)
	}
	return b.client.Publish(ctx, b.prefix+addr.Group(), data).Err()
}

// Relay subscribes to every group channel and feeds received frames into the
// local hub. ready is closed once the subscription is confirmed. Relay returns
// when ctx is done.
func (b *RedisBroker) Relay(ctx context.Context, ready chan<- struct{}) error {
	pubsub := b.client.PSubscribe(ctx, b.prefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("channels: redis subscribe: %w", err)
	}
	if ready != nil {
		close(ready)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			b.relay(ctx, m)
		}
	}
}

func (b *RedisBroker) relay(ctx context.Context, m *redis.Message) {
	var env envelope
	if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
		logger.Warn("redis relay: malformed frame", "channel", m.Channel, "error", err)
		return
	}
	group := strings.TrimPrefix(m.Channel, b.prefix)
	if env.Group != group {
		logger.Warn("redis relay: group mismatch", "channel", m.Channel, "group", env.Group)
		return
	}
	if _, err := ParseGroup(group); err != nil {
		logger.Warn("redis relay: unknown group", "group", group)
		return
	}
	if _, err := b.hub.Deliver(ctx, group, env.Message); err != nil && ctx.Err() == nil {
		logger.Warn("redis relay: deliver failed", "group", group, "error", err)
	}
}
