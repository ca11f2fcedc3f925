package cache

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// Bus is a thin wrapper over the store's native pub/sub. Topic strings are
// plain keys, not patterns.
type Bus struct {
	rdb redis.UniversalClient
}

func NewBus(rdb redis.UniversalClient) *Bus { return &Bus{rdb: rdb} }

// Publish JSON-encodes the payload onto the topic.
func (b *Bus) Publish(ctx context.Context, topic string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, topic, data).Err()
}

// Subscription is a live topic stream. Close releases the underlying
// subscription; Events is closed afterwards.
type Subscription struct {
	pubsub *redis.PubSub
}

// Subscribe opens a subscription on one topic.
func (b *Bus) Subscribe(ctx context.Context, topic string) (*Subscription, error) {
	pubsub := b.rdb.Subscribe(ctx, topic)
	// confirm the subscription before handing the stream out
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}
	return &Subscription{pubsub: pubsub}, nil
}

func (s *Subscription) Events() <-chan *redis.Message { return s.pubsub.Channel() }

func (s *Subscription) Close() error { return s.pubsub.Close() }
