package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatermillPublisherPublishesEvents(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	bus := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer bus.Close()

	logouts, err := bus.Subscribe(ctx, TopicLogout)
	require.NoError(t, err)
	linked, err := bus.Subscribe(ctx, TopicLinked)
	require.NoError(t, err)
	authenticated, err := bus.Subscribe(ctx, TopicAuthenticated)
	require.NoError(t, err)

	pub := NewWatermillPublisher(bus)

	require.NoError(t, pub.PublishAuthenticated(ctx, "0xabc", "s1", 1))
	select {
	case msg := <-authenticated:
		var ev AuthenticatedEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &ev))
		assert.Equal(t, "0xabc", ev.Address)
		assert.Equal(t, "s1", ev.SessionID)
		assert.Equal(t, int64(1), ev.ChainID)
		msg.Ack()
	case <-ctx.Done():
		t.Fatal("authenticated event not delivered")
	}

	require.NoError(t, pub.PublishLinked(ctx, "0xabc", "s1", "github", "42"))
	select {
	case msg := <-linked:
		var ev LinkedEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &ev))
		assert.Equal(t, "github", ev.Provider)
		assert.Equal(t, "42", ev.ExternalID)
		msg.Ack()
	case <-ctx.Done():
		t.Fatal("linked event not delivered")
	}

	require.NoError(t, pub.PublishLogout(ctx, "0xabc", "s1"))
	select {
	case msg := <-logouts:
		var ev LogoutEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &ev))
		assert.Equal(t, "0xabc", ev.Address)
		assert.Equal(t, "s1", ev.SessionID)
		msg.Ack()
	case <-ctx.Done():
		t.Fatal("logout event not delivered")
	}
}
