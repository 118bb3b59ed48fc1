package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/skillswap/chat-server/internal/audit"
	"github.com/skillswap/chat-server/internal/auth"
	"github.com/skillswap/chat-server/internal/model"
	"github.com/skillswap/chat-server/internal/service"
	"github.com/skillswap/chat-server/internal/util"
)

type HubConfig struct {
	AuthTimeout     time.Duration
	IdleTimeout     time.Duration
	SendQueueSize   int
	// ReconcileWindow is advertised to clients in the ready frame.
	ReconcileWindow time.Duration
}

// Hub owns every live session on this process and the collaborators they
// need to serve frames.
type Hub struct {
	registry *Registry
	verifier *auth.Verifier
	guard    *service.Guard
	messages *service.MessageService
	validate *validator.Validate
	cfg      HubConfig

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewHub(
	registry *Registry,
	verifier *auth.Verifier,
	guard *service.Guard,
	messages *service.MessageService,
	cfg HubConfig,
) *Hub {
	return &Hub{
		registry: registry,
		verifier: verifier,
		guard:    guard,
		messages: messages,
		validate: util.NewValidator(),
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
}

// Serve runs a session on an upgraded connection and returns immediately.
// principal is nil when the client will authenticate with its first frame.
func (h *Hub) Serve(conn *websocket.Conn, principal *model.Principal, remoteAddr string) *Session {
	s := newSession(h, conn, remoteAddr)

	h.mu.Lock()
	h.sessions[s.id] = s
	h.mu.Unlock()

	s.start(principal)
	return s
}

func (h *Hub) forget(s *Session) {
	h.mu.Lock()
	delete(h.sessions, s.id)
	h.mu.Unlock()
}

func (h *Hub) snapshot() []*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// SweepIdle closes open sessions with no application traffic in either
// direction for longer than the idle timeout.
func (h *Hub) SweepIdle(ctx context.Context, now time.Time) int {
	closed := 0
	for _, s := range h.snapshot() {
		if s.State() != model.SessionOpen {
			continue
		}
		if now.Sub(s.LastActivity()) <= h.cfg.IdleTimeout {
			continue
		}

		audit.Log(ctx, audit.Event{
			Type:        audit.EventIdleClose,
			PrincipalID: s.PrincipalID(),
			SessionID:   s.ID(),
			Details:     map[string]interface{}{"idleSeconds": int64(now.Sub(s.LastActivity()).Seconds())},
		})
		s.Close(CloseIdle)
		closed++
	}
	return closed
}

// Shutdown closes every session and waits for them to finish or ctx to expire.
func (h *Hub) Shutdown(ctx context.Context) {
	sessions := h.snapshot()
	for _, s := range sessions {
		s.Close(CloseShutdown)
	}

	for _, s := range sessions {
		select {
		case <-s.Done():
		case <-ctx.Done():
			log.Warn().Int("remaining", h.SessionCount()).Msg("shutdown deadline reached with sessions still open")
			return
		}
	}

	log.Info().Int("sessions", len(sessions)).Msg("all websocket sessions closed")
}
