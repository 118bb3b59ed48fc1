package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/skillswap/chat-server/internal/audit"
	apperrors "github.com/skillswap/chat-server/internal/errors"
	"github.com/skillswap/chat-server/internal/httputil"
	"github.com/skillswap/chat-server/internal/service"
)

// RateLimitMiddleware limits requests per principal, or per client IP when
// the request is anonymous. The limiter decides whether the window is shared
// across processes.
type RateLimitMiddleware struct {
	limiter service.Limiter
	limit   int
	window  time.Duration
	prefix  string
}

func NewRateLimitMiddleware(limiter service.Limiter, limit int, window time.Duration, prefix string) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter: limiter,
		limit:   limit,
		window:  window,
		prefix:  prefix,
	}
}

func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var key, principalID string
		if principal := GetPrincipal(r.Context()); principal != nil {
			principalID = principal.ID
			key = fmt.Sprintf("%s:principal:%s", m.prefix, principal.ID)
		} else {
			key = fmt.Sprintf("%s:ip:%s", m.prefix, clientHost(r))
		}

		allowed, resetAt := m.limiter.CheckLimit(r.Context(), key, m.limit, m.window)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(m.limit))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if !allowed {
			log.Warn().Str("principalId", principalID).Str("key", key).Msg("rate limit exceeded")
			audit.LogFromRequest(r, audit.Event{
				Type:        audit.EventRateLimitExceed,
				PrincipalID: principalID,
				Details:     map[string]interface{}{"path": r.URL.Path},
			})

			secondsLeft := int(time.Until(resetAt).Seconds()) + 1
			if secondsLeft < 1 {
				secondsLeft = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(secondsLeft))
			httputil.WriteError(w, apperrors.RateLimitExceeded())
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientHost drops the port so every connection from one address shares a window.
func clientHost(r *http.Request) string {
	ip := audit.ClientIP(r)
	if host, _, err := net.SplitHostPort(ip); err == nil {
		return host
	}
	return ip
}
