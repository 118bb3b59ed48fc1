package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/skillswap/chat-server/internal/model"
)

// ConversationRepository is the read model of conversations owned by the
// chat-initiation workflow. The message core only reads membership and status.
type ConversationRepository interface {
	FindByID(ctx context.Context, id string) (*model.Conversation, error)
	FindActiveBetween(ctx context.Context, params model.FindConversationParams) (*model.Conversation, error)
	FindActiveByParticipant(ctx context.Context, principalID string) ([]model.Conversation, error)
	Create(ctx context.Context, params model.CreateConversationParams) (*model.Conversation, error)
	UpdateStatus(ctx context.Context, id string, status model.ConversationStatus) error
}

type conversationRepo struct {
	db *sqlx.DB
}

func NewConversationRepository(db *sqlx.DB) ConversationRepository {
	return &conversationRepo{db: db}
}

func (r *conversationRepo) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.GetContext(ctx, &conv, `
		SELECT * FROM conversations WHERE id = $1
	`, id)
	return HandleNotFound(&conv, err)
}

func (r *conversationRepo) FindActiveBetween(ctx context.Context, params model.FindConversationParams) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.GetContext(ctx, &conv, `
		SELECT * FROM conversations
		WHERE participants @> $1
		AND status = 'active'
		AND skill_offered IS NOT DISTINCT FROM $2
		AND skill_requested IS NOT DISTINCT FROM $3
		ORDER BY created_at ASC
		LIMIT 1
	`, pq.StringArray{params.ParticipantA, params.ParticipantB}, params.SkillOffered, params.SkillRequested)
	return HandleNotFound(&conv, err)
}

func (r *conversationRepo) FindActiveByParticipant(ctx context.Context, principalID string) ([]model.Conversation, error) {
	var convs []model.Conversation
	err := r.db.SelectContext(ctx, &convs, `
		SELECT * FROM conversations
		WHERE $1 = ANY(participants) AND status = 'active'
		ORDER BY last_message_at DESC, id ASC
	`, principalID)
	return convs, err
}

func (r *conversationRepo) Create(ctx context.Context, params model.CreateConversationParams) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.GetContext(ctx, &conv, `
		INSERT INTO conversations (id, participants, skill_offered, skill_requested)
		VALUES ($1, $2, $3, $4)
		RETURNING *
	`, uuid.NewString(), pq.StringArray(params.Participants), params.SkillOffered, params.SkillRequested)
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepo) UpdateStatus(ctx context.Context, id string, status model.ConversationStatus) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE conversations SET status = $2 WHERE id = $1
	`, id, status)
	return err
}
