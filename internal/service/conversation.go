package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/skillswap/chat-server/internal/audit"
	apperrors "github.com/skillswap/chat-server/internal/errors"
	"github.com/skillswap/chat-server/internal/model"
	"github.com/skillswap/chat-server/internal/repository"
)

type FindOrCreateParams struct {
	PartnerID      string
	SkillOffered   *string
	SkillRequested *string
	InitialMessage string
}

type ConversationService struct {
	repo     repository.ConversationRepository
	guard    *Guard
	messages *MessageService
}

func NewConversationService(repo repository.ConversationRepository, guard *Guard, messages *MessageService) *ConversationService {
	return &ConversationService{repo: repo, guard: guard, messages: messages}
}

// FindOrCreate returns the active conversation between the principal and the
// partner for the given skill pair, creating it when none exists. A non-empty
// InitialMessage is sent through the regular send path.
func (s *ConversationService) FindOrCreate(
	ctx context.Context,
	principal *model.Principal,
	params FindOrCreateParams,
) (conv *model.Conversation, created bool, err error) {
	partnerID := strings.TrimSpace(params.PartnerID)
	if partnerID == "" {
		return nil, false, apperrors.ValidationError("partnerId is required")
	}
	if partnerID == principal.ID {
		return nil, false, apperrors.ValidationError("cannot start a conversation with yourself")
	}
	seed := strings.TrimSpace(params.InitialMessage) != ""
	if seed {
		if _, err := s.messages.validateSend(SendParams{Content: params.InitialMessage}); err != nil {
			return nil, false, err
		}
	}

	conv, err = s.repo.FindActiveBetween(ctx, model.FindConversationParams{
		ParticipantA:   principal.ID,
		ParticipantB:   partnerID,
		SkillOffered:   params.SkillOffered,
		SkillRequested: params.SkillRequested,
	})
	if err != nil {
		return nil, false, storeError(fmt.Errorf("find conversation: %w", err))
	}

	if conv == nil {
		conv, err = s.repo.Create(ctx, model.CreateConversationParams{
			Participants:   []string{principal.ID, partnerID},
			SkillOffered:   params.SkillOffered,
			SkillRequested: params.SkillRequested,
		})
		if err != nil {
			return nil, false, storeError(fmt.Errorf("create conversation: %w", err))
		}
		created = true

		log.Info().
			Str("conversationId", conv.ID).
			Str("principalId", principal.ID).
			Str("partnerId", partnerID).
			Msg("conversation created")
	}

	if seed {
		if _, err := s.messages.Send(ctx, principal, SendParams{
			ConversationID: conv.ID,
			Content:        params.InitialMessage,
		}); err != nil {
			return nil, false, err
		}
		if conv, err = s.repo.FindByID(ctx, conv.ID); err != nil {
			return nil, false, storeError(err)
		}
	}

	return conv, created, nil
}

func (s *ConversationService) ListForPrincipal(ctx context.Context, principalID string) ([]model.Conversation, error) {
	convs, err := s.repo.FindActiveByParticipant(ctx, principalID)
	if err != nil {
		return nil, storeError(fmt.Errorf("list conversations: %w", err))
	}
	if convs == nil {
		convs = []model.Conversation{}
	}
	return convs, nil
}

func (s *ConversationService) Get(ctx context.Context, principalID, conversationID string) (*model.Conversation, error) {
	return s.guard.Authorize(ctx, principalID, conversationID, ActionHistory)
}

// Archive marks the conversation archived. Messages stay readable; sends are refused.
func (s *ConversationService) Archive(ctx context.Context, principalID, conversationID string) (*model.Conversation, error) {
	conv, err := s.guard.Authorize(ctx, principalID, conversationID, ActionManage)
	if err != nil {
		return nil, err
	}
	if !conv.IsActive() {
		return conv, nil
	}

	if err := s.repo.UpdateStatus(ctx, conversationID, model.ConversationStatusArchived); err != nil {
		return nil, storeError(fmt.Errorf("archive conversation: %w", err))
	}
	conv.Status = model.ConversationStatusArchived

	audit.Log(ctx, audit.Event{
		Type:           audit.EventConversationArchive,
		PrincipalID:    principalID,
		ConversationID: conversationID,
	})

	return conv, nil
}
