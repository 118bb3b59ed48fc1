package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/skillswap/chat-server/internal/errors"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		code      apperrors.ErrorCode
		retryable bool
	}{
		{"validation", apperrors.ValidationError("bad"), http.StatusBadRequest, apperrors.ErrCodeValidation, false},
		{"unauthenticated", apperrors.Unauthenticated(apperrors.AuthReasonExpired, nil), http.StatusUnauthorized, apperrors.ErrCodeUnauthenticated, false},
		{"forbidden", apperrors.Forbidden("no"), http.StatusForbidden, apperrors.ErrCodeForbidden, false},
		{"not found", apperrors.NotFound("Conversation"), http.StatusNotFound, apperrors.ErrCodeNotFound, false},
		{"invalid state", apperrors.InvalidState("closing"), http.StatusConflict, apperrors.ErrCodeInvalidState, false},
		{"rate limited", apperrors.RateLimitExceeded(), http.StatusTooManyRequests, apperrors.ErrCodeRateLimitExceeded, false},
		{"unavailable", apperrors.Unavailable(errors.New("db down")), http.StatusServiceUnavailable, apperrors.ErrCodeUnavailable, true},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, apperrors.ErrCodeInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, tt.err)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body.Code)
			assert.Equal(t, tt.retryable, body.Retryable)
		})
	}
}

func TestWriteError_HidesAuthReason(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, apperrors.Unauthenticated(apperrors.AuthReasonSignatureInvalid, errors.New("sig")))

	assert.NotContains(t, rec.Body.String(), "signature_invalid")
	assert.NotContains(t, rec.Body.String(), "details")
}

func TestWriteError_KeepsValidationDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, apperrors.ValidationError("Invalid input").WithDetails(map[string]string{"content": "required"}))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, map[string]any{"content": "required"}, body["details"])
}
