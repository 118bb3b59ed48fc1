package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/skillswap/chat-server/internal/auth"
	"github.com/skillswap/chat-server/internal/config"
	"github.com/skillswap/chat-server/internal/middleware"
	"github.com/skillswap/chat-server/internal/realtime"
	"github.com/skillswap/chat-server/internal/service"
)

type RouterDeps struct {
	Verifier      *auth.Verifier
	Hub           *realtime.Hub
	Conversations *service.ConversationService
	Messages      *service.MessageService
	Limiter       service.Limiter
	Health        *HealthHandler

	AllowedOrigins     []string
	APIRateLimitPerMin int
	IsProduction       bool
}

func NewRouter(deps RouterDeps) chi.Router {
	authMiddleware := middleware.NewAuthMiddleware(deps.Verifier)
	securityHeaders := middleware.NewSecurityHeadersMiddleware(deps.IsProduction)
	bodyLimit := middleware.NewBodyLimitMiddleware(0)

	apiLimit := deps.APIRateLimitPerMin
	if apiLimit <= 0 {
		apiLimit = config.DefaultRateLimitPerMin
	}
	apiRateLimit := middleware.NewRateLimitMiddleware(deps.Limiter, apiLimit, time.Minute, "api")
	// Upgrade attempts carry no principal yet, so they are keyed by client IP.
	wsRateLimit := middleware.NewRateLimitMiddleware(deps.Limiter, apiLimit, time.Minute, "ws")

	conversationHandler := NewConversationHandler(deps.Conversations, deps.Messages)
	wsHandler := NewWSHandler(deps.Hub, deps.Verifier, deps.AllowedOrigins)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)

	if deps.Health != nil {
		r.Get("/health", deps.Health.ServeHTTP)
	}

	// No request timeout here: the connection outlives the handler.
	r.With(wsRateLimit.Handler).Get("/ws", wsHandler.ServeHTTP)

	r.Route("/v1", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
		r.Use(securityHeaders.Handler)
		r.Use(bodyLimit.Handler)
		r.Use(authMiddleware.Handler)
		r.Use(apiRateLimit.Handler)
		r.Mount("/conversations", conversationHandler.Routes())
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found", "code": "NOT_FOUND"})
	})

	return r
}
