package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/skillswap/chat-server/internal/database"
	"github.com/skillswap/chat-server/internal/model"
)

// ErrConversationNotFound is returned by Append when the target conversation does not exist.
var ErrConversationNotFound = errors.New("conversation not found")

// ErrConversationArchived is returned by Append when the conversation no longer accepts messages.
var ErrConversationArchived = errors.New("conversation archived")

// MessageRepository is the durable, append-only message log. Append is the
// single serialization point per conversation: id, timestamp and sequence are
// assigned in the same atomic unit that bumps the conversation's last activity.
type MessageRepository interface {
	Append(ctx context.Context, params model.AppendMessageParams) (*model.Message, error)
	FindByConversationID(ctx context.Context, params model.ListMessagesParams) ([]model.Message, error)
	MarkRead(ctx context.Context, conversationID, readerID string) (int64, error)
}

type messageRepo struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewMessageRepository(db *sqlx.DB) MessageRepository {
	return &messageRepo{db: db, now: time.Now}
}

func (r *messageRepo) Append(ctx context.Context, params model.AppendMessageParams) (*model.Message, error) {
	var msg model.Message

	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var conv model.Conversation
		err := tx.GetContext(ctx, &conv, `
			SELECT * FROM conversations WHERE id = $1 FOR UPDATE
		`, params.ConversationID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrConversationNotFound
		}
		if err != nil {
			return err
		}
		if !conv.IsActive() {
			return ErrConversationArchived
		}

		createdAt := nextTimestamp(r.now(), conv.LastMessageAt)
		seq := conv.MessageCount + 1

		err = tx.GetContext(ctx, &msg, `
			INSERT INTO messages (id, conversation_id, sender_id, content, seq, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING *
		`, uuid.NewString(), params.ConversationID, params.SenderID, params.Content, seq, createdAt)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE conversations SET
				message_count = $2,
				last_message_at = $3
			WHERE id = $1
		`, params.ConversationID, seq, createdAt)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &msg, nil
}

func (r *messageRepo) FindByConversationID(ctx context.Context, params model.ListMessagesParams) ([]model.Message, error) {
	msgs := []model.Message{}
	err := r.db.SelectContext(ctx, &msgs, `
		SELECT * FROM messages
		WHERE conversation_id = $1 AND seq > $2
		ORDER BY created_at ASC, seq ASC
		LIMIT NULLIF($3, 0)
	`, params.ConversationID, params.AfterSeq, params.Limit)
	return msgs, err
}

func (r *messageRepo) MarkRead(ctx context.Context, conversationID, readerID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE messages SET read = TRUE
		WHERE conversation_id = $1 AND sender_id <> $2 AND read = FALSE
	`, conversationID, readerID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// nextTimestamp keeps creation timestamps non-decreasing within a conversation
// even if the wall clock steps backwards. Postgres stores microseconds.
func nextTimestamp(now, last time.Time) time.Time {
	ts := now.UTC().Truncate(time.Microsecond)
	if ts.Before(last) {
		return last.UTC()
	}
	return ts
}
