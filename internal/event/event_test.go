package event

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBus_PublishSubscribe(t *testing.T) {
	bus := NewMemoryBus()
	var received []Event

	bus.Subscribe(OAuthCallback, func(ctx context.Context, evt Event) error {
		received = append(received, evt)
		return nil
	})

	evt := NewCallbackEvent("session-1", "https://relay.example.com", CallbackPayloadV1{Type: "meta_oauth_callback", Code: "abc"})
	require.NoError(t, bus.Publish(context.Background(), evt))

	require.Len(t, received, 1)
	assert.Equal(t, "session-1", received[0].Topic)
	assert.Equal(t, "https://relay.example.com", received[0].Origin)
	assert.Equal(t, EventSchemaVersion, received[0].Version)
}

func TestMemoryBus_PublishWithoutSubscribers(t *testing.T) {
	bus := NewMemoryBus()
	assert.NoError(t, bus.Publish(context.Background(), NewDialogUpdatedEvent("d-1", nil)))
}

func TestMemoryBus_PublishMultipleHandlers(t *testing.T) {
	bus := NewMemoryBus()
	count := 0

	handler := func(ctx context.Context, evt Event) error {
		count++
		return nil
	}

	bus.Subscribe(DialogUpdated, handler)
	bus.Subscribe(DialogUpdated, handler)

	require.NoError(t, bus.Publish(context.Background(), NewDialogUpdatedEvent("d-1", nil)))
	assert.Equal(t, 2, count)
}

func TestMemoryBus_PublishError(t *testing.T) {
	bus := NewMemoryBus()

	bus.Subscribe(DialogUpdated, func(ctx context.Context, evt Event) error {
		return errors.New("handler error")
	})

	assert.Error(t, bus.Publish(context.Background(), NewDialogUpdatedEvent("d-1", nil)))
}

func TestMemoryBus_Unsubscribe(t *testing.T) {
	bus := NewMemoryBus()
	count := 0

	unsubscribe := bus.Subscribe(OAuthCallback, func(ctx context.Context, evt Event) error {
		count++
		return nil
	})
	assert.Equal(t, 1, bus.SubscriberCount(OAuthCallback))

	unsubscribe()
	unsubscribe()

	require.NoError(t, bus.Publish(context.Background(), NewCallbackEvent("s", "", CallbackPayloadV1{})))
	assert.Equal(t, 0, count)
	assert.Equal(t, 0, bus.SubscriberCount(OAuthCallback))
}

func TestMemoryBus_UnsubscribeDuringPublish(t *testing.T) {
	bus := NewMemoryBus()
	calls := 0

	var unsubscribe func()
	unsubscribe = bus.Subscribe(OAuthCallback, func(ctx context.Context, evt Event) error {
		calls++
		unsubscribe()
		return nil
	})

	evt := NewCallbackEvent("s", "", CallbackPayloadV1{})
	require.NoError(t, bus.Publish(context.Background(), evt))
	require.NoError(t, bus.Publish(context.Background(), evt))
	assert.Equal(t, 1, calls)
}

func TestDecodePayload(t *testing.T) {
	t.Run("typed payload", func(t *testing.T) {
		p, err := DecodePayload[CallbackPayloadV1](CallbackPayloadV1{Type: "x", Code: "c"})
		require.NoError(t, err)
		assert.Equal(t, "c", p.Code)
	})

	t.Run("map payload", func(t *testing.T) {
		p, err := DecodePayload[CallbackPayloadV1](map[string]interface{}{"type": "x", "error": "access_denied"})
		require.NoError(t, err)
		assert.Equal(t, "x", p.Type)
		assert.Equal(t, "access_denied", p.Error)
	})
}
