package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/skillswap/chat-server/internal/model"
	redisclient "github.com/skillswap/chat-server/internal/redis"
)

const EventMessageAppended = "message.appended"

// MessageAppendedEvent is published for collaborators (notifications,
// exchange workflow) after every successful append.
type MessageAppendedEvent struct {
	Type           string    `json:"type"`
	ConversationID string    `json:"conversationId"`
	MessageID      string    `json:"messageId"`
	SenderID       string    `json:"senderId"`
	Seq            int64     `json:"seq"`
	CreatedAt      time.Time `json:"createdAt"`
}

type EventPublisher interface {
	PublishMessageAppended(ctx context.Context, msg *model.Message) error
}

type RedisEventPublisher struct {
	client *redis.Client
}

func NewRedisEventPublisher(client *redis.Client) *RedisEventPublisher {
	return &RedisEventPublisher{client: client}
}

func (p *RedisEventPublisher) PublishMessageAppended(ctx context.Context, msg *model.Message) error {
	payload, err := json.Marshal(MessageAppendedEvent{
		Type:           EventMessageAppended,
		ConversationID: msg.ConversationID,
		MessageID:      msg.ID,
		SenderID:       msg.SenderID,
		Seq:            msg.Seq,
		CreatedAt:      msg.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := p.client.Publish(ctx, redisclient.EventsChannel, payload).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

type NopEventPublisher struct{}

func (NopEventPublisher) PublishMessageAppended(context.Context, *model.Message) error {
	return nil
}
