package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMessage_Before(t *testing.T) {
	now := time.Now()

	t.Run("earlier timestamp sorts first", func(t *testing.T) {
		a := &Message{CreatedAt: now, Seq: 2}
		b := &Message{CreatedAt: now.Add(time.Millisecond), Seq: 1}
		assert.True(t, a.Before(b))
		assert.False(t, b.Before(a))
	})

	t.Run("equal timestamps break ties by seq", func(t *testing.T) {
		a := &Message{CreatedAt: now, Seq: 1}
		b := &Message{CreatedAt: now, Seq: 2}
		assert.True(t, a.Before(b))
		assert.False(t, b.Before(a))
	})
}

func TestConversation_HasParticipant(t *testing.T) {
	conv := &Conversation{Participants: []string{"user-a", "user-b"}, Status: ConversationStatusActive}

	assert.True(t, conv.HasParticipant("user-a"))
	assert.False(t, conv.HasParticipant("user-c"))
	assert.True(t, conv.IsActive())
}

func TestSessionState_String(t *testing.T) {
	assert.Equal(t, "open", SessionOpen.String())
	assert.Equal(t, "closing", SessionClosing.String())
	assert.Equal(t, "unknown", SessionState(42).String())
}

func TestDelivery_TokenFor(t *testing.T) {
	d := &Delivery{
		Message:     DeliveredMessage{Message: Message{SenderID: "alice"}},
		ClientToken: "tok-1",
	}

	assert.Equal(t, "tok-1", d.TokenFor("alice"))
	assert.Empty(t, d.TokenFor("bob"))
}
