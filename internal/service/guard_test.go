package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/skillswap/chat-server/internal/errors"
	"github.com/skillswap/chat-server/internal/model"
)

type mockConversationRepo struct {
	mock.Mock
}

func (m *mockConversationRepo) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Conversation), args.Error(1)
}

func (m *mockConversationRepo) FindActiveBetween(ctx context.Context, params model.FindConversationParams) (*model.Conversation, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Conversation), args.Error(1)
}

func (m *mockConversationRepo) FindActiveByParticipant(ctx context.Context, principalID string) ([]model.Conversation, error) {
	args := m.Called(ctx, principalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Conversation), args.Error(1)
}

func (m *mockConversationRepo) Create(ctx context.Context, params model.CreateConversationParams) (*model.Conversation, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Conversation), args.Error(1)
}

func (m *mockConversationRepo) UpdateStatus(ctx context.Context, id string, status model.ConversationStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func TestGuard_Authorize(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	conv := f.conversation(t, "alice", "bob")

	t.Run("participant may act", func(t *testing.T) {
		for _, action := range []Action{ActionSubscribe, ActionSend, ActionHistory, ActionManage} {
			got, err := f.guard.Authorize(ctx, "alice", conv.ID, action)
			require.NoError(t, err)
			assert.Equal(t, conv.ID, got.ID)
		}
	})

	t.Run("non participant is forbidden", func(t *testing.T) {
		_, err := f.guard.Authorize(ctx, "mallory", conv.ID, ActionSubscribe)
		assert.Equal(t, apperrors.ErrCodeForbidden, apperrors.GetCode(err))
	})

	t.Run("missing conversation", func(t *testing.T) {
		_, err := f.guard.Authorize(ctx, "alice", "00000000-0000-4000-8000-000000000000", ActionHistory)
		assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
	})

	t.Run("malformed id", func(t *testing.T) {
		_, err := f.guard.Authorize(ctx, "alice", "not-a-uuid", ActionHistory)
		assert.Equal(t, apperrors.ErrCodeValidation, apperrors.GetCode(err))
	})

	t.Run("archived refuses send only", func(t *testing.T) {
		archived := f.conversation(t, "alice", "bob")
		require.NoError(t, f.store.UpdateStatus(ctx, archived.ID, model.ConversationStatusArchived))

		_, err := f.guard.Authorize(ctx, "alice", archived.ID, ActionSend)
		assert.Equal(t, apperrors.ErrCodeForbidden, apperrors.GetCode(err))

		_, err = f.guard.Authorize(ctx, "alice", archived.ID, ActionSubscribe)
		assert.NoError(t, err)
		_, err = f.guard.Authorize(ctx, "alice", archived.ID, ActionHistory)
		assert.NoError(t, err)
	})

	t.Run("membership is re-read on every call", func(t *testing.T) {
		changing := f.conversation(t, "alice", "bob")
		_, err := f.guard.Authorize(ctx, "bob", changing.ID, ActionSubscribe)
		require.NoError(t, err)

		f.store.SetParticipants(changing.ID, []string{"alice", "carol"})

		_, err = f.guard.Authorize(ctx, "bob", changing.ID, ActionSend)
		assert.Equal(t, apperrors.ErrCodeForbidden, apperrors.GetCode(err))
	})

	t.Run("store failure is unavailable", func(t *testing.T) {
		repo := new(mockConversationRepo)
		id := "11111111-1111-4111-8111-111111111111"
		repo.On("FindByID", ctx, id).Return(nil, errors.New("connection refused"))

		_, err := NewGuard(repo).Authorize(ctx, "alice", id, ActionSend)
		appErr, ok := apperrors.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrCodeUnavailable, appErr.Code)
		assert.True(t, appErr.Retryable())
		repo.AssertExpectations(t)
	})
}
