package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/skillswap/chat-server/internal/model"
	"github.com/skillswap/chat-server/internal/repository"
)

type recordingPublisher struct {
	mu         sync.Mutex
	deliveries []model.Delivery
	err        error
}

func (p *recordingPublisher) Publish(ctx context.Context, delivery *model.Delivery) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deliveries = append(p.deliveries, *delivery)
	return p.err
}

func (p *recordingPublisher) all() []model.Delivery {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.Delivery(nil), p.deliveries...)
}

type recordingEvents struct {
	mu     sync.Mutex
	events []string
}

func (e *recordingEvents) PublishMessageAppended(ctx context.Context, msg *model.Message) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, msg.ID)
	return nil
}

// Mock message repository
type mockMessageRepo struct {
	mock.Mock
}

func (m *mockMessageRepo) Append(ctx context.Context, params model.AppendMessageParams) (*model.Message, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *mockMessageRepo) FindByConversationID(ctx context.Context, params model.ListMessagesParams) ([]model.Message, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Message), args.Error(1)
}

func (m *mockMessageRepo) MarkRead(ctx context.Context, conversationID, readerID string) (int64, error) {
	args := m.Called(ctx, conversationID, readerID)
	return args.Get(0).(int64), args.Error(1)
}

// Mock user repository
type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) FindSummary(ctx context.Context, id string) (*model.PrincipalSummary, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PrincipalSummary), args.Error(1)
}

// archivingConversationRepo archives a conversation right after handing it
// out, so the send that looked it up races an archive.
type archivingConversationRepo struct {
	*repository.MemoryStore
}

func (r *archivingConversationRepo) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	conv, err := r.MemoryStore.FindByID(ctx, id)
	if err != nil || conv == nil {
		return conv, err
	}
	if err := r.MemoryStore.UpdateStatus(ctx, id, model.ConversationStatusArchived); err != nil {
		return nil, err
	}
	return conv, nil
}

type slowUserRepo struct {
	repository.UserRepository
	slow  string
	delay time.Duration
}

func (r *slowUserRepo) FindSummary(ctx context.Context, id string) (*model.PrincipalSummary, error) {
	if id == r.slow {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return r.UserRepository.FindSummary(ctx, id)
}

type fixture struct {
	store     *repository.MemoryStore
	guard     *Guard
	publisher *recordingPublisher
	events    *recordingEvents
	messages  *MessageService
	convs     *ConversationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     repository.NewMemoryStore(),
		publisher: &recordingPublisher{},
		events:    &recordingEvents{},
	}
	f.store.PutUser(model.PrincipalSummary{ID: "alice", Name: "Alice", Email: "alice@example.com"})
	f.store.PutUser(model.PrincipalSummary{ID: "bob", Name: "Bob", Email: "bob@example.com"})

	f.guard = NewGuard(f.store)
	f.messages = NewMessageService(
		f.guard,
		f.store,
		NewPrincipalDirectory(f.store),
		f.publisher,
		f.events,
		NewMemoryRateLimiter(),
		MessageLimits{MaxMessageLength: 20, SendRateLimitPerMin: 100},
	)
	f.convs = NewConversationService(f.store, f.guard, f.messages)
	return f
}

func (f *fixture) conversation(t *testing.T, participants ...string) *model.Conversation {
	t.Helper()
	conv, err := f.store.Create(context.Background(), model.CreateConversationParams{Participants: participants})
	require.NoError(t, err)
	return conv
}

var (
	alice   = &model.Principal{ID: "alice", Name: "Alice"}
	bob     = &model.Principal{ID: "bob", Name: "Bob"}
	mallory = &model.Principal{ID: "mallory"}
)
