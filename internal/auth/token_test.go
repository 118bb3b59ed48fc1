package auth

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/skillswap/chat-server/internal/errors"
	"github.com/skillswap/chat-server/internal/model"
)

const testSecret = "test-secret-that-is-long-enough-for-hs256"

func TestVerifier_Verify(t *testing.T) {
	verifier := NewVerifier(testSecret, "skillswap")
	alice := model.Principal{ID: "alice", Name: "Alice", Email: "alice@example.com"}

	t.Run("valid token", func(t *testing.T) {
		token, err := IssueToken(testSecret, "skillswap", alice, time.Hour)
		require.NoError(t, err)

		principal, err := verifier.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, alice, *principal)
	})

	t.Run("accepts bearer prefix", func(t *testing.T) {
		token, err := IssueToken(testSecret, "skillswap", alice, time.Hour)
		require.NoError(t, err)

		principal, err := verifier.Verify("Bearer " + token)
		require.NoError(t, err)
		assert.Equal(t, "alice", principal.ID)
	})

	t.Run("falls back to subject claim", func(t *testing.T) {
		claims := jwt.RegisteredClaims{
			Subject:   "bob",
			Issuer:    "skillswap",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)

		principal, err := verifier.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, "bob", principal.ID)
	})

	tests := []struct {
		name       string
		credential func(t *testing.T) string
		reason     apperrors.AuthFailureReason
	}{
		{
			name:       "missing",
			credential: func(t *testing.T) string { return "" },
			reason:     apperrors.AuthReasonMissing,
		},
		{
			name:       "bare bearer prefix",
			credential: func(t *testing.T) string { return "Bearer " },
			reason:     apperrors.AuthReasonMissing,
		},
		{
			name:       "malformed",
			credential: func(t *testing.T) string { return "not-a-jwt" },
			reason:     apperrors.AuthReasonMalformed,
		},
		{
			name: "expired",
			credential: func(t *testing.T) string {
				token, err := IssueToken(testSecret, "skillswap", alice, -time.Minute)
				require.NoError(t, err)
				return token
			},
			reason: apperrors.AuthReasonExpired,
		},
		{
			name: "wrong secret",
			credential: func(t *testing.T) string {
				token, err := IssueToken(strings.Repeat("x", 40), "skillswap", alice, time.Hour)
				require.NoError(t, err)
				return token
			},
			reason: apperrors.AuthReasonSignatureInvalid,
		},
		{
			name: "wrong issuer",
			credential: func(t *testing.T) string {
				token, err := IssueToken(testSecret, "someone-else", alice, time.Hour)
				require.NoError(t, err)
				return token
			},
			reason: apperrors.AuthReasonSignatureInvalid,
		},
		{
			name: "no subject",
			credential: func(t *testing.T) string {
				token, err := IssueToken(testSecret, "skillswap", model.Principal{}, time.Hour)
				require.NoError(t, err)
				return token
			},
			reason: apperrors.AuthReasonMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			principal, err := verifier.Verify(tt.credential(t))
			assert.Nil(t, principal)
			require.Error(t, err)
			assert.Equal(t, apperrors.ErrCodeUnauthenticated, apperrors.GetCode(err))
			assert.Equal(t, tt.reason, apperrors.AuthReason(err))
		})
	}
}

func TestVerifier_WithClock(t *testing.T) {
	token, err := IssueToken(testSecret, "", model.Principal{ID: "alice"}, time.Minute)
	require.NoError(t, err)

	verifier := NewVerifier(testSecret, "").WithClock(func() time.Time {
		return time.Now().Add(time.Hour)
	})

	_, err = verifier.Verify(token)
	assert.Equal(t, apperrors.AuthReasonExpired, apperrors.AuthReason(err))
}

func TestExtractToken(t *testing.T) {
	t.Run("authorization header", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/ws", nil)
		req.Header.Set("Authorization", "Bearer abc")
		assert.Equal(t, "abc", ExtractToken(req))
	})

	t.Run("query parameter", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/ws?token=xyz", nil)
		assert.Equal(t, "xyz", ExtractToken(req))
	})

	t.Run("none", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/ws", nil)
		assert.Empty(t, ExtractToken(req))
	})
}
