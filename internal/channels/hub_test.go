package channels

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub
}

func TestHubDeliversToGroupMembersOnly(t *testing.T) {
	hub := startHub(t)
	ctx := context.Background()

	alice := NewSubscriber("alice", 4)
	bob := NewSubscriber("bob", 4)
	require.NoError(t, hub.Join(ctx, PerUser("alice"), alice))
	require.NoError(t, hub.Join(ctx, PerUser("bob"), bob))

	n, err := hub.Deliver(ctx, PerUser("alice").Group(), NewMessage(FramePong))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	select {
	case msg := <-alice.Send:
		assert.Equal(t, FramePong, msg.Type)
	case <-time.After(time.Second):
		t.Fatal("alice did not receive the frame")
	}
	assert.Empty(t, bob.Send)
}

func TestHubJoinLeaveIdempotent(t *testing.T) {
	hub := startHub(t)
	ctx := context.Background()
	sub := NewSubscriber("s", 1)
	addr := PerProject("p1")

	require.NoError(t, hub.Join(ctx, addr, sub))
	require.NoError(t, hub.Join(ctx, addr, sub))
	count, err := hub.Members(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, hub.Leave(ctx, addr, sub))
	require.NoError(t, hub.Leave(ctx, addr, sub))
	count, err = hub.Members(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestHubEvictsSlowSubscriber(t *testing.T) {
	hub := startHub(t)
	ctx := context.Background()
	addr := PerMeeting("m1")

	var evicted string
	hub.OnDrop = func(group string, sub *Subscriber) { evicted = sub.ID }

	slow := NewSubscriber("slow", 1)
	require.NoError(t, hub.Join(ctx, addr, slow))

	_, err := hub.Deliver(ctx, addr.Group(), NewMessage(FrameChatMessage))
	require.NoError(t, err)
	n, err := hub.Deliver(ctx, addr.Group(), NewMessage(FrameChatMessage))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	select {
	case <-slow.Dropped():
	case <-time.After(time.Second):
		t.Fatal("slow subscriber was not dropped")
	}
	assert.Equal(t, "slow", evicted)

	count, err := hub.Members(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestHubStopped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	_, err := hub.Deliver(context.Background(), System().Group(), NewMessage(FramePong))
	assert.ErrorIs(t, err, ErrHubStopped)
}

func TestLocalBrokerRejectsInvalidAddress(t *testing.T) {
	hub := startHub(t)
	err := NewLocalBroker(hub).Publish(context.Background(), Address{}, NewMessage(FramePong))
	assert.ErrorIs(t, err, ErrInvalidAddress)
}
