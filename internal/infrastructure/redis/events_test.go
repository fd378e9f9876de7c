package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auction-engine/internal/domain"
	"auction-engine/pkg/logger"
)

func newTestClient(t *testing.T) *goredis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestEventPublisher_Publish(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	publisher := NewEventPublisher(client)

	pubsub := client.Subscribe(ctx, EventChannel)
	defer pubsub.Close()

	// Force the subscription to be established before publishing.
	_, err := pubsub.Receive(ctx)
	require.NoError(t, err)

	event := &domain.Event{
		Type:      domain.EventBidPlaced,
		AuctionID: "auction_1",
		BidderID:  "alice",
		Amount:    61000,
		Timestamp: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, publisher.Publish(ctx, event))

	select {
	case msg := <-pubsub.Channel():
		var got domain.Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, event.Type, got.Type)
		assert.Equal(t, event.AuctionID, got.AuctionID)
		assert.Equal(t, event.BidderID, got.BidderID)
		assert.Equal(t, event.Amount, got.Amount)
		assert.True(t, event.Timestamp.Equal(got.Timestamp))
	case <-time.After(3 * time.Second):
		t.Fatal("no event received on the auction channel")
	}
}

func TestEventSubscriber_DeliversToHandler(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := newTestClient(t)
	publisher := NewEventPublisher(client)
	subscriber := NewEventSubscriber(client, logger.Nop())

	received := make(chan *domain.Event, 1)
	done := make(chan error, 1)
	go func() {
		done <- subscriber.Subscribe(ctx, func(event *domain.Event) error {
			received <- event
			return nil
		})
	}()

	event := &domain.Event{
		Type:      domain.EventAuctionEnded,
		AuctionID: "auction_1",
		WinnerID:  "alice",
		Amount:    61000,
		Timestamp: time.Now().UTC(),
	}

	// The subscriber connects asynchronously; retry until it sees a message.
	require.Eventually(t, func() bool {
		require.NoError(t, publisher.Publish(ctx, event))
		select {
		case got := <-received:
			assert.Equal(t, domain.EventAuctionEnded, got.Type)
			assert.Equal(t, "alice", got.WinnerID)
			return true
		case <-time.After(100 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("subscriber did not stop on context cancellation")
	}
}
