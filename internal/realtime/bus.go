package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/skillswap/chat-server/internal/model"
	redisclient "github.com/skillswap/chat-server/internal/redis"
)

type DeliveryHandler func(delivery *model.Delivery)

// Bus carries deliveries from the process that appended a message to every
// process holding subscribed sessions. Deliveries for one conversation reach
// the handler in publish order.
type Bus interface {
	Publish(ctx context.Context, delivery *model.Delivery) error
	Subscribe(ctx context.Context, handler DeliveryHandler) error
	Close() error
}

// LocalBus hands deliveries straight to the handler in the caller's goroutine.
type LocalBus struct {
	mu      sync.RWMutex
	handler DeliveryHandler
}

func NewLocalBus() *LocalBus {
	return &LocalBus{}
}

func (b *LocalBus) Publish(ctx context.Context, delivery *model.Delivery) error {
	b.mu.RLock()
	handler := b.handler
	b.mu.RUnlock()

	if handler != nil {
		handler(delivery)
	}
	return nil
}

func (b *LocalBus) Subscribe(ctx context.Context, handler DeliveryHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handler = handler
	return nil
}

func (b *LocalBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handler = nil
	return nil
}

// RedisBus fans deliveries out through Redis pub/sub on conversation:<id>
// channels. Each process pattern-subscribes once and delivers to its own
// registry members.
type RedisBus struct {
	client *redis.Client

	mu     sync.Mutex
	pubsub *redis.PubSub
}

func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{client: client}
}

func (b *RedisBus) Publish(ctx context.Context, delivery *model.Delivery) error {
	data, err := json.Marshal(delivery)
	if err != nil {
		return fmt.Errorf("marshal delivery: %w", err)
	}

	channel := redisclient.ConversationChannel(delivery.Message.ConversationID)
	if err := b.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish delivery: %w", err)
	}
	return nil
}

// Subscribe returns once the pattern subscription is confirmed, so nothing
// published afterwards is missed.
func (b *RedisBus) Subscribe(ctx context.Context, handler DeliveryHandler) error {
	pattern := redisclient.ConversationChannel("*")
	pubsub := b.client.PSubscribe(ctx, pattern)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe %s: %w", pattern, err)
	}

	b.mu.Lock()
	b.pubsub = pubsub
	b.mu.Unlock()

	log.Debug().Str("pattern", pattern).Msg("redis pubsub subscribed")

	ch := pubsub.Channel()
	go func() {
		for {
			select {
			case <-ctx.Done():
				_ = pubsub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var delivery model.Delivery
				if err := json.Unmarshal([]byte(msg.Payload), &delivery); err != nil {
					log.Error().Err(err).Str("channel", msg.Channel).Msg("failed to unmarshal delivery")
					continue
				}
				handler(&delivery)
			}
		}
	}()

	return nil
}

func (b *RedisBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pubsub == nil {
		return nil
	}
	err := b.pubsub.Close()
	b.pubsub = nil
	return err
}
