package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/skillswap/chat-server/internal/audit"
	"github.com/skillswap/chat-server/internal/config"
	apperrors "github.com/skillswap/chat-server/internal/errors"
	"github.com/skillswap/chat-server/internal/model"
	"github.com/skillswap/chat-server/internal/repository"
	"github.com/skillswap/chat-server/internal/util"
)

// Publisher fans a delivery out to subscribed sessions. It must not block on
// slow receivers.
type Publisher interface {
	Publish(ctx context.Context, delivery *model.Delivery) error
}

type SendParams struct {
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
	ClientToken    string `json:"clientToken" validate:"max=128"`
}

type MessageLimits struct {
	MaxMessageLength    int
	SendRateLimitPerMin int
}

type MessageService struct {
	guard     *Guard
	msgRepo   repository.MessageRepository
	directory *PrincipalDirectory
	publisher Publisher
	events    EventPublisher
	limiter   Limiter
	limits    MessageLimits
	locks     *keyedMutex
	validate  *validator.Validate
}

func NewMessageService(
	guard *Guard,
	msgRepo repository.MessageRepository,
	directory *PrincipalDirectory,
	publisher Publisher,
	events EventPublisher,
	limiter Limiter,
	limits MessageLimits,
) *MessageService {
	if events == nil {
		events = NopEventPublisher{}
	}
	return &MessageService{
		guard:     guard,
		msgRepo:   msgRepo,
		directory: directory,
		publisher: publisher,
		events:    events,
		limiter:   limiter,
		limits:    limits,
		locks:     newKeyedMutex(),
		validate:  util.NewValidator(),
	}
}

// Send appends a message and publishes it to the conversation's subscribers.
// Append and publish run under one per-conversation lock so every subscriber
// observes the same order the store assigned. Sender enrichment happens
// before the lock is taken.
func (s *MessageService) Send(ctx context.Context, principal *model.Principal, params SendParams) (*model.DeliveredMessage, error) {
	if err := s.checkRate(ctx, principal.ID); err != nil {
		return nil, err
	}

	content, err := s.validateSend(params)
	if err != nil {
		return nil, err
	}

	if _, err := s.guard.Authorize(ctx, principal.ID, params.ConversationID, ActionSend); err != nil {
		return nil, err
	}

	sender := s.directory.Summary(ctx, principal.ID)

	unlock := s.locks.Lock(params.ConversationID)
	msg, err := s.msgRepo.Append(ctx, model.AppendMessageParams{
		ConversationID: params.ConversationID,
		SenderID:       principal.ID,
		Content:        content,
	})
	if err != nil {
		unlock()
		classified := storeError(err)
		if apperrors.GetCode(classified) == apperrors.ErrCodeUnavailable {
			log.Error().
				Err(err).
				Str("conversationId", params.ConversationID).
				Str("principalId", principal.ID).
				Msg("failed to append message")
		}
		return nil, classified
	}

	delivered := &model.DeliveredMessage{
		Message: *msg,
		Sender:  sender,
	}
	if s.publisher != nil {
		// The message is durable at this point; subscribers that miss it
		// catch up through history.
		if err := s.publisher.Publish(ctx, &model.Delivery{Message: *delivered, ClientToken: params.ClientToken}); err != nil {
			log.Error().Err(err).Str("messageId", msg.ID).Msg("failed to publish message")
		}
	}
	unlock()

	if err := s.events.PublishMessageAppended(ctx, msg); err != nil {
		log.Warn().Err(err).Str("messageId", msg.ID).Msg("failed to publish message event")
	}

	log.Debug().
		Str("messageId", msg.ID).
		Str("conversationId", msg.ConversationID).
		Int64("seq", msg.Seq).
		Msg("message appended")

	return delivered, nil
}

// ListMessages returns the conversation history in (createdAt, seq) order.
func (s *MessageService) ListMessages(ctx context.Context, principalID string, params model.ListMessagesParams) ([]model.DeliveredMessage, error) {
	if params.AfterSeq < 0 || params.Limit < 0 {
		return nil, apperrors.ValidationError("afterSeq and limit must not be negative")
	}

	if _, err := s.guard.Authorize(ctx, principalID, params.ConversationID, ActionHistory); err != nil {
		return nil, err
	}

	msgs, err := s.msgRepo.FindByConversationID(ctx, params)
	if err != nil {
		return nil, storeError(fmt.Errorf("list messages: %w", err))
	}

	return s.directory.Enrich(ctx, msgs), nil
}

// MarkRead flags every message from the other participants as read.
func (s *MessageService) MarkRead(ctx context.Context, principalID, conversationID string) (int64, error) {
	if _, err := s.guard.Authorize(ctx, principalID, conversationID, ActionHistory); err != nil {
		return 0, err
	}

	updated, err := s.msgRepo.MarkRead(ctx, conversationID, principalID)
	if err != nil {
		return 0, storeError(fmt.Errorf("mark read: %w", err))
	}

	log.Debug().
		Str("conversationId", conversationID).
		Str("principalId", principalID).
		Int64("updated", updated).
		Msg("messages marked as read")

	return updated, nil
}

func (s *MessageService) validateSend(params SendParams) (string, error) {
	content := strings.TrimSpace(params.Content)
	if err := s.validate.Var(content, fmt.Sprintf("required,max=%d", s.limits.MaxMessageLength)); err != nil {
		return "", apperrors.ValidationError(
			fmt.Sprintf("content must be between 1 and %d characters", s.limits.MaxMessageLength),
		).WithCause(err)
	}

	if err := s.validate.Struct(params); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return "", apperrors.ValidationError(
				fmt.Sprintf("%s is invalid (%s)", verrs[0].Field(), verrs[0].Tag()),
			)
		}
		return "", apperrors.ValidationError("invalid send request")
	}

	return content, nil
}

func (s *MessageService) checkRate(ctx context.Context, principalID string) error {
	if s.limiter == nil || s.limits.SendRateLimitPerMin <= 0 {
		return nil
	}

	allowed, resetAt := s.limiter.CheckLimit(ctx, "send:"+principalID, s.limits.SendRateLimitPerMin, config.SendRateLimitWindow)
	if allowed {
		return nil
	}

	audit.Log(ctx, audit.Event{
		Type:        audit.EventRateLimitExceed,
		PrincipalID: principalID,
		Details:     map[string]interface{}{"scope": "send"},
	})
	return apperrors.RateLimitExceeded().WithDetails(map[string]int64{"resetAt": resetAt.Unix()})
}
