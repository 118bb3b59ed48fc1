package redis

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationChannel(t *testing.T) {
	assert.Equal(t, "conversation:abc", ConversationChannel("abc"))
}

func TestNewClient(t *testing.T) {
	t.Run("rejects malformed url", func(t *testing.T) {
		_, err := NewClient("not a url")
		assert.Error(t, err)
	})

	t.Run("connects to test redis", func(t *testing.T) {
		url := os.Getenv("TEST_REDIS_URL")
		if url == "" {
			t.Skip("TEST_REDIS_URL not set")
		}
		client, err := NewClient(url)
		require.NoError(t, err)
		defer client.Close()
	})
}
