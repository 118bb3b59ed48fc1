package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/skillswap/chat-server/internal/model"
)

// MemoryStore keeps conversations, messages and user summaries in process.
// It satisfies the same contracts as the Postgres repositories and is used
// with STORE_DRIVER=memory and in tests.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*model.Conversation
	messages      map[string][]model.Message
	users         map[string]model.PrincipalSummary
	now           func() time.Time
}

var (
	_ ConversationRepository = (*MemoryStore)(nil)
	_ MessageRepository      = (*MemoryStore)(nil)
	_ UserRepository         = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]*model.Conversation),
		messages:      make(map[string][]model.Message),
		users:         make(map[string]model.PrincipalSummary),
		now:           time.Now,
	}
}

// WithClock replaces the time source. Only meant for tests.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

// PutUser registers a user summary for enrichment lookups.
func (s *MemoryStore) PutUser(summary model.PrincipalSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[summary.ID] = summary
}

// SetParticipants replaces a conversation's membership, mirroring what the
// surrounding system may do between a subscribe and a later send.
func (s *MemoryStore) SetParticipants(id string, participants []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conv, ok := s.conversations[id]; ok {
		conv.Participants = append([]string(nil), participants...)
	}
}

func (s *MemoryStore) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, nil
	}
	return cloneConversation(conv), nil
}

func (s *MemoryStore) FindActiveBetween(ctx context.Context, params model.FindConversationParams) (*model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *model.Conversation
	for _, conv := range s.conversations {
		if !conv.IsActive() || !conv.HasParticipant(params.ParticipantA) || !conv.HasParticipant(params.ParticipantB) {
			continue
		}
		if !equalRef(conv.SkillOffered, params.SkillOffered) || !equalRef(conv.SkillRequested, params.SkillRequested) {
			continue
		}
		if found == nil || conv.CreatedAt.Before(found.CreatedAt) {
			found = conv
		}
	}
	if found == nil {
		return nil, nil
	}
	return cloneConversation(found), nil
}

func (s *MemoryStore) FindActiveByParticipant(ctx context.Context, principalID string) ([]model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	convs := lo.FilterMap(lo.Values(s.conversations), func(conv *model.Conversation, _ int) (model.Conversation, bool) {
		if !conv.IsActive() || !conv.HasParticipant(principalID) {
			return model.Conversation{}, false
		}
		return *cloneConversation(conv), true
	})
	sort.Slice(convs, func(i, j int) bool {
		if !convs[i].LastMessageAt.Equal(convs[j].LastMessageAt) {
			return convs[i].LastMessageAt.After(convs[j].LastMessageAt)
		}
		return convs[i].ID < convs[j].ID
	})
	return convs, nil
}

func (s *MemoryStore) Create(ctx context.Context, params model.CreateConversationParams) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC().Truncate(time.Microsecond)
	conv := &model.Conversation{
		ID:             uuid.NewString(),
		Participants:   append([]string(nil), params.Participants...),
		Status:         model.ConversationStatusActive,
		SkillOffered:   params.SkillOffered,
		SkillRequested: params.SkillRequested,
		LastMessageAt:  now,
		CreatedAt:      now,
	}
	s.conversations[conv.ID] = conv
	return cloneConversation(conv), nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, id string, status model.ConversationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conv, ok := s.conversations[id]; ok {
		conv.Status = status
	}
	return nil
}

func (s *MemoryStore) Append(ctx context.Context, params model.AppendMessageParams) (*model.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[params.ConversationID]
	if !ok {
		return nil, ErrConversationNotFound
	}
	if !conv.IsActive() {
		return nil, ErrConversationArchived
	}

	createdAt := nextTimestamp(s.now(), conv.LastMessageAt)
	msg := model.Message{
		ID:             uuid.NewString(),
		ConversationID: params.ConversationID,
		SenderID:       params.SenderID,
		Content:        params.Content,
		Seq:            conv.MessageCount + 1,
		CreatedAt:      createdAt,
	}

	s.messages[conv.ID] = append(s.messages[conv.ID], msg)
	conv.MessageCount = msg.Seq
	conv.LastMessageAt = createdAt

	return &msg, nil
}

func (s *MemoryStore) FindByConversationID(ctx context.Context, params model.ListMessagesParams) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := lo.Filter(s.messages[params.ConversationID], func(m model.Message, _ int) bool {
		return m.Seq > params.AfterSeq
	})
	if params.Limit > 0 && len(msgs) > params.Limit {
		msgs = msgs[:params.Limit]
	}
	return append([]model.Message{}, msgs...), nil
}

func (s *MemoryStore) MarkRead(ctx context.Context, conversationID, readerID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var updated int64
	msgs := s.messages[conversationID]
	for i := range msgs {
		if msgs[i].SenderID != readerID && !msgs[i].Read {
			msgs[i].Read = true
			updated++
		}
	}
	return updated, nil
}

func (s *MemoryStore) FindSummary(ctx context.Context, id string) (*model.PrincipalSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return &summary, nil
}

func cloneConversation(conv *model.Conversation) *model.Conversation {
	c := *conv
	c.Participants = append([]string(nil), conv.Participants...)
	return &c
}

func equalRef(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
