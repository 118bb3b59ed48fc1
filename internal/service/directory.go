package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/skillswap/chat-server/internal/model"
	"github.com/skillswap/chat-server/internal/repository"
)

// PrincipalDirectory decorates messages with sender display data. Lookup
// failures only drop the decoration.
type PrincipalDirectory struct {
	userRepo repository.UserRepository
}

func NewPrincipalDirectory(userRepo repository.UserRepository) *PrincipalDirectory {
	return &PrincipalDirectory{userRepo: userRepo}
}

func (d *PrincipalDirectory) Summary(ctx context.Context, id string) *model.PrincipalSummary {
	summary, err := d.userRepo.FindSummary(ctx, id)
	if err != nil {
		log.Warn().Err(err).Str("principalId", id).Msg("principal lookup failed, delivering without sender details")
		return nil
	}
	return summary
}

// Enrich decorates msgs, looking each distinct sender up once.
func (d *PrincipalDirectory) Enrich(ctx context.Context, msgs []model.Message) []model.DeliveredMessage {
	seen := make(map[string]*model.PrincipalSummary)
	out := make([]model.DeliveredMessage, 0, len(msgs))
	for _, msg := range msgs {
		summary, ok := seen[msg.SenderID]
		if !ok {
			summary = d.Summary(ctx, msg.SenderID)
			seen[msg.SenderID] = summary
		}
		out = append(out, model.DeliveredMessage{Message: msg, Sender: summary})
	}
	return out
}
