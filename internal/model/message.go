package model

import (
	"time"
)

type Message struct {
	ID             string    `db:"id" json:"id"`
	ConversationID string    `db:"conversation_id" json:"conversationId"`
	SenderID       string    `db:"sender_id" json:"senderId"`
	Content        string    `db:"content" json:"content"`
	Seq            int64     `db:"seq" json:"seq"`
	Read           bool      `db:"read" json:"read"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}

// Before reports whether m sorts before other in the conversation's total
// order: creation timestamp first, insertion sequence as the tie breaker.
func (m *Message) Before(other *Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.Seq < other.Seq
}

type AppendMessageParams struct {
	ConversationID string
	SenderID       string
	Content        string
}

type ListMessagesParams struct {
	ConversationID string
	AfterSeq       int64
	Limit          int
}
