package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/skillswap/chat-server/internal/config"
)

// Pinger is any dependency the health check should probe.
type Pinger func(ctx context.Context) error

type HealthHandler struct {
	checks   map[string]Pinger
	sessions func() int
}

func NewHealthHandler(sessions func() int) *HealthHandler {
	return &HealthHandler{checks: make(map[string]Pinger), sessions: sessions}
}

func (h *HealthHandler) AddCheck(name string, ping Pinger) *HealthHandler {
	h.checks[name] = ping
	return h
}

// GET /health
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), config.DBPingTimeout)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.checks))
	for name, ping := range h.checks {
		if err := ping(ctx); err != nil {
			log.Warn().Err(err).Str("check", name).Msg("health check failed")
			checks[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	body := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UnixMilli(),
		"checks":    checks,
	}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	if h.sessions != nil {
		body["sessions"] = h.sessions()
	}

	writeJSON(w, status, body)
}
