package model

import (
	"time"

	"github.com/lib/pq"
	"github.com/samber/lo"
)

type Conversation struct {
	ID             string             `db:"id" json:"id"`
	Participants   pq.StringArray     `db:"participants" json:"participants"`
	Status         ConversationStatus `db:"status" json:"status"`
	SkillOffered   *string            `db:"skill_offered" json:"skillOffered,omitempty"`
	SkillRequested *string            `db:"skill_requested" json:"skillRequested,omitempty"`
	MessageCount   int64              `db:"message_count" json:"messageCount"`
	LastMessageAt  time.Time          `db:"last_message_at" json:"lastMessageAt"`
	CreatedAt      time.Time          `db:"created_at" json:"createdAt"`
}

func (c *Conversation) HasParticipant(principalID string) bool {
	return lo.Contains(c.Participants, principalID)
}

func (c *Conversation) IsActive() bool {
	return c.Status == ConversationStatusActive
}

type CreateConversationParams struct {
	Participants   []string
	SkillOffered   *string
	SkillRequested *string
}

type FindConversationParams struct {
	ParticipantA   string
	ParticipantB   string
	SkillOffered   *string
	SkillRequested *string
}
