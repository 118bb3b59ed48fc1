package handler

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/skillswap/chat-server/internal/audit"
	"github.com/skillswap/chat-server/internal/auth"
	"github.com/skillswap/chat-server/internal/config"
	apperrors "github.com/skillswap/chat-server/internal/errors"
	"github.com/skillswap/chat-server/internal/httputil"
	"github.com/skillswap/chat-server/internal/model"
	"github.com/skillswap/chat-server/internal/realtime"
	"github.com/skillswap/chat-server/internal/util"
)

// WSHandler upgrades GET /ws. A token on the upgrade request is verified
// before upgrading; without one the session waits for an auth frame.
type WSHandler struct {
	hub            *realtime.Hub
	verifier       *auth.Verifier
	allowedOrigins []string
	upgrader       websocket.Upgrader
}

func NewWSHandler(hub *realtime.Hub, verifier *auth.Verifier, allowedOrigins []string) *WSHandler {
	h := &WSHandler{
		hub:            hub,
		verifier:       verifier,
		allowedOrigins: allowedOrigins,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  config.WSReadBufferSize,
		WriteBufferSize: config.WSReadBufferSize,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var principal *model.Principal
	if token := auth.ExtractToken(r); token != "" {
		p, err := h.verifier.Verify(token)
		if err != nil {
			audit.LogFromRequest(r, audit.Event{
				Type: audit.EventAuthFailure,
				Details: map[string]interface{}{
					"reason": string(apperrors.AuthReason(err)),
					"token":  util.Fingerprint(token),
					"stage":  "upgrade",
				},
			})
			httputil.WriteError(w, err)
			return
		}
		principal = p
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		log.Debug().Err(err).Str("ip", audit.ClientIP(r)).Msg("websocket upgrade failed")
		return
	}

	h.hub.Serve(conn, principal, audit.ClientIP(r))
}

// checkOrigin accepts non-browser clients (no Origin header), the configured
// origins, and otherwise only same-origin requests.
func (h *WSHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	allowed := false
	if len(h.allowedOrigins) == 0 {
		u, err := url.Parse(origin)
		allowed = err == nil && strings.EqualFold(u.Host, r.Host)
	} else {
		allowed = lo.ContainsBy(h.allowedOrigins, func(o string) bool {
			o = strings.TrimSpace(o)
			return o == "*" || strings.EqualFold(strings.TrimSuffix(o, "/"), origin)
		})
	}

	if !allowed {
		audit.LogFromRequest(r, audit.Event{
			Type:    audit.EventOriginRejected,
			Details: map[string]interface{}{"origin": origin},
		})
	}
	return allowed
}
