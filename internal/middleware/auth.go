package middleware

import (
	"context"
	"net/http"

	"github.com/skillswap/chat-server/internal/audit"
	"github.com/skillswap/chat-server/internal/auth"
	apperrors "github.com/skillswap/chat-server/internal/errors"
	"github.com/skillswap/chat-server/internal/httputil"
	"github.com/skillswap/chat-server/internal/model"
	"github.com/skillswap/chat-server/internal/util"
)

type contextKey string

const PrincipalContextKey contextKey = "principal"

func GetPrincipal(ctx context.Context) *model.Principal {
	if principal, ok := ctx.Value(PrincipalContextKey).(*model.Principal); ok {
		return principal
	}
	return nil
}

// WithPrincipal stores principal on ctx the way the auth middleware does.
func WithPrincipal(ctx context.Context, principal *model.Principal) context.Context {
	return context.WithValue(ctx, PrincipalContextKey, principal)
}

type AuthMiddleware struct {
	verifier *auth.Verifier
}

func NewAuthMiddleware(verifier *auth.Verifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.ExtractToken(r)
		principal, err := m.verifier.Verify(token)
		if err != nil {
			audit.LogFromRequest(r, audit.Event{
				Type: audit.EventAuthFailure,
				Details: map[string]interface{}{
					"reason": string(apperrors.AuthReason(err)),
					"token":  util.Fingerprint(token),
					"path":   r.URL.Path,
				},
			})
			httputil.WriteError(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}
