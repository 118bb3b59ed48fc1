package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/skillswap/chat-server/internal/audit"
	apperrors "github.com/skillswap/chat-server/internal/errors"
	"github.com/skillswap/chat-server/internal/model"
	"github.com/skillswap/chat-server/internal/repository"
	"github.com/skillswap/chat-server/internal/util"
)

// Action is what a principal attempts on a conversation.
type Action string

const (
	ActionSubscribe Action = "subscribe"
	ActionSend      Action = "send"
	ActionHistory   Action = "history"
	ActionManage    Action = "manage"
)

// Guard decides whether a principal may act on a conversation. Membership is
// read on every call so changes take effect immediately.
type Guard struct {
	convRepo repository.ConversationRepository
}

func NewGuard(convRepo repository.ConversationRepository) *Guard {
	return &Guard{convRepo: convRepo}
}

// Authorize returns the conversation when principalID may perform action on it.
func (g *Guard) Authorize(ctx context.Context, principalID, conversationID string, action Action) (*model.Conversation, error) {
	if !util.IsValidUUID(conversationID) {
		return nil, apperrors.ValidationError("conversationId must be a UUID")
	}

	conv, err := g.convRepo.FindByID(ctx, conversationID)
	if err != nil {
		return nil, storeError(err)
	}
	if conv == nil {
		return nil, apperrors.NotFound("Conversation")
	}

	if !conv.HasParticipant(principalID) {
		audit.Log(ctx, audit.Event{
			Type:           audit.EventForbidden,
			PrincipalID:    principalID,
			ConversationID: conversationID,
			Details:        map[string]interface{}{"action": string(action)},
		})
		return nil, apperrors.Forbidden("Not a participant of this conversation")
	}

	if action == ActionSend && !conv.IsActive() {
		log.Debug().
			Str("principalId", principalID).
			Str("conversationId", conversationID).
			Msg("send refused on archived conversation")
		return nil, apperrors.Forbidden("Conversation is archived")
	}

	return conv, nil
}

// storeError classifies a repository failure. Anything the store could not
// complete is reported as retryable.
func storeError(err error) error {
	if errors.Is(err, repository.ErrConversationNotFound) {
		return apperrors.NotFound("Conversation")
	}
	if errors.Is(err, repository.ErrConversationArchived) {
		return apperrors.Forbidden("Conversation is archived")
	}
	if _, ok := apperrors.AsAppError(err); ok {
		return err
	}
	return apperrors.Unavailable(err)
}
