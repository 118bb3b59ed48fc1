package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/skillswap/chat-server/internal/audit"
	"github.com/skillswap/chat-server/internal/config"
	apperrors "github.com/skillswap/chat-server/internal/errors"
	"github.com/skillswap/chat-server/internal/model"
	"github.com/skillswap/chat-server/internal/service"
	"github.com/skillswap/chat-server/internal/util"
)

// Application close codes sent in the websocket close frame.
const (
	CloseCodeUnauthenticated = 4001
	CloseCodeAuthTimeout     = 4002
	CloseCodeIdleTimeout     = 4003
	CloseCodeSlowConsumer    = 4004
)

type CloseReason int

const (
	CloseClientGone CloseReason = iota
	CloseUnauthenticated
	CloseAuthTimeout
	CloseIdle
	CloseSlowConsumer
	CloseShutdown
)

func (r CloseReason) String() string {
	switch r {
	case CloseClientGone:
		return "client gone"
	case CloseUnauthenticated:
		return "unauthenticated"
	case CloseAuthTimeout:
		return "authentication timeout"
	case CloseIdle:
		return "idle timeout"
	case CloseSlowConsumer:
		return "slow consumer"
	case CloseShutdown:
		return "server shutdown"
	default:
		return "unknown"
	}
}

func (r CloseReason) code() int {
	switch r {
	case CloseUnauthenticated:
		return CloseCodeUnauthenticated
	case CloseAuthTimeout:
		return CloseCodeAuthTimeout
	case CloseIdle:
		return CloseCodeIdleTimeout
	case CloseSlowConsumer:
		return CloseCodeSlowConsumer
	case CloseShutdown:
		return websocket.CloseGoingAway
	default:
		return websocket.CloseNormalClosure
	}
}

// Session is one authenticated duplex connection. The read pump handles
// client frames one at a time; the write pump owns the socket's write side
// and drains the outbound queue.
type Session struct {
	id         string
	hub        *Hub
	conn       *websocket.Conn
	remoteAddr string
	logger     zerolog.Logger

	state        atomic.Int32
	principal    atomic.Pointer[model.Principal]
	lastActivity atomic.Int64

	// mu orders lifecycle transitions against registry membership.
	mu          sync.Mutex
	closeReason CloseReason

	// enqueueMu keeps a subscribe acknowledgement ahead of the first delivery.
	enqueueMu sync.Mutex
	send      chan []byte

	ctx        context.Context
	cancel     context.CancelFunc
	closing    chan struct{}
	writerDone chan struct{}
	done       chan struct{}
	authTimer  *time.Timer
}

var _ Subscriber = (*Session)(nil)

func newSession(hub *Hub, conn *websocket.Conn, remoteAddr string) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	s := &Session{
		id:         id,
		hub:        hub,
		conn:       conn,
		remoteAddr: remoteAddr,
		logger:     log.With().Str("sessionId", id).Str("remoteAddr", remoteAddr).Logger(),
		send:       make(chan []byte, hub.cfg.SendQueueSize),
		ctx:        ctx,
		cancel:     cancel,
		closing:    make(chan struct{}),
		writerDone: make(chan struct{}),
		done:       make(chan struct{}),
	}
	s.state.Store(int32(model.SessionConnecting))
	s.touch()
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) PrincipalID() string {
	if p := s.principal.Load(); p != nil {
		return p.ID
	}
	return ""
}

func (s *Session) Principal() *model.Principal {
	return s.principal.Load()
}

func (s *Session) State() model.SessionState {
	return model.SessionState(s.state.Load())
}

// Done is closed once the session reached Closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

func (s *Session) touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

// start moves the session to Authenticating and launches its pumps. A
// principal verified during the upgrade opens the session immediately.
// Otherwise the first frame must be an auth frame within the auth timeout.
func (s *Session) start(principal *model.Principal) {
	s.state.Store(int32(model.SessionAuthenticating))

	if principal != nil {
		s.open(principal)
	} else {
		s.mu.Lock()
		s.authTimer = time.AfterFunc(s.hub.cfg.AuthTimeout, func() {
			if s.State() == model.SessionAuthenticating {
				s.logger.Info().Msg("authentication timed out")
				s.Close(CloseAuthTimeout)
			}
		})
		s.mu.Unlock()
	}

	go s.writePump()
	go s.readPump()
}

func (s *Session) open(principal *model.Principal) {
	s.mu.Lock()
	if s.State() != model.SessionAuthenticating {
		s.mu.Unlock()
		return
	}
	if s.authTimer != nil {
		s.authTimer.Stop()
	}
	s.principal.Store(principal)
	s.hub.registry.Register(s)
	s.state.Store(int32(model.SessionOpen))
	s.mu.Unlock()

	s.logger.Info().Str("principalId", principal.ID).Msg("session opened")
	s.reply(ReadyFrame{
		Type:              FrameReady,
		SessionID:         s.id,
		Principal:         *principal,
		ReconcileWindowMs: s.hub.cfg.ReconcileWindow.Milliseconds(),
	})
}

// Close begins teardown. Registry memberships are gone before Close returns;
// the socket is closed by the write pump. Safe to call more than once.
func (s *Session) Close(reason CloseReason) {
	s.mu.Lock()
	state := s.State()
	if state == model.SessionClosing || state == model.SessionClosed {
		s.mu.Unlock()
		return
	}
	s.state.Store(int32(model.SessionClosing))
	s.closeReason = reason
	if s.authTimer != nil {
		s.authTimer.Stop()
	}
	s.hub.registry.RemoveSession(s.id)
	s.mu.Unlock()

	s.cancel()
	close(s.closing)

	s.logger.Info().
		Str("principalId", s.PrincipalID()).
		Str("reason", reason.String()).
		Msg("session closing")
}

// Enqueue never blocks. A session that cannot keep up is closed and must
// resync through history after reconnecting.
func (s *Session) Enqueue(payload []byte) bool {
	s.enqueueMu.Lock()
	defer s.enqueueMu.Unlock()
	return s.enqueueLocked(payload)
}

func (s *Session) enqueueLocked(payload []byte) bool {
	if s.State() >= model.SessionClosing {
		return false
	}

	select {
	case s.send <- payload:
		s.touch()
		return true
	default:
		audit.Log(s.ctx, audit.Event{
			Type:        audit.EventSlowConsumer,
			PrincipalID: s.PrincipalID(),
			SessionID:   s.id,
			Details:     map[string]interface{}{"queued": len(s.send)},
		})
		go s.Close(CloseSlowConsumer)
		return false
	}
}

func (s *Session) reply(frame any) {
	payload, err := encodeFrame(frame)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to encode frame")
		return
	}
	s.Enqueue(payload)
}

func (s *Session) replyError(requestID string, err error) {
	s.reply(newErrorFrame(requestID, err))
}

func (s *Session) readPump() {
	defer s.finish()

	s.conn.SetReadLimit(config.WSMaxFrameBytes)
	if err := s.conn.SetReadDeadline(time.Now().Add(config.WSPongWait)); err != nil {
		s.logger.Debug().Err(err).Msg("failed to set read deadline")
	}
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(config.WSPongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			s.logReadError(err)
			s.Close(CloseClientGone)
			return
		}
		if err := s.conn.SetReadDeadline(time.Now().Add(config.WSPongWait)); err != nil {
			s.logger.Debug().Err(err).Msg("failed to extend read deadline")
		}

		s.touch()
		s.handleFrame(raw)
	}
}

func (s *Session) logReadError(err error) {
	switch {
	case s.State() >= model.SessionClosing:
		return
	case errors.Is(err, websocket.ErrReadLimit):
		s.logger.Warn().Int("limit", config.WSMaxFrameBytes).Msg("frame exceeded maximum size")
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		s.logger.Debug().Msg("client closed connection")
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		s.logger.Debug().Err(err).Msg("connection closed")
	default:
		s.logger.Info().Err(err).Msg("websocket read error")
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(config.WSPingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
		close(s.writerDone)
	}()

	for {
		select {
		case payload := <-s.send:
			if !s.write(websocket.TextMessage, payload) {
				s.Close(CloseClientGone)
				return
			}
		case <-ticker.C:
			if !s.write(websocket.PingMessage, nil) {
				s.Close(CloseClientGone)
				return
			}
		case <-s.closing:
			s.flushAndSayGoodbye()
			return
		}
	}
}

func (s *Session) write(messageType int, payload []byte) bool {
	if err := s.conn.SetWriteDeadline(time.Now().Add(config.WSWriteWait)); err != nil {
		return false
	}
	if err := s.conn.WriteMessage(messageType, payload); err != nil {
		if s.State() < model.SessionClosing {
			s.logger.Debug().Err(err).Msg("websocket write failed")
		}
		return false
	}
	return true
}

// flushAndSayGoodbye writes frames queued before Close (such as the error
// explaining it) and the close frame. A slow consumer's backlog is discarded.
func (s *Session) flushAndSayGoodbye() {
	s.mu.Lock()
	reason := s.closeReason
	s.mu.Unlock()

	if reason == CloseClientGone {
		return
	}

	if reason != CloseSlowConsumer {
		for n := len(s.send); n > 0; n-- {
			if !s.write(websocket.TextMessage, <-s.send) {
				return
			}
		}
	}

	msg := websocket.FormatCloseMessage(reason.code(), reason.String())
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(config.WSWriteWait))
}

// finish runs once the read side is done: it waits for the write pump and
// marks the session Closed.
func (s *Session) finish() {
	s.Close(CloseClientGone)
	<-s.writerDone

	s.state.Store(int32(model.SessionClosed))
	s.hub.forget(s)
	close(s.done)

	s.logger.Debug().Msg("session closed")
}

func (s *Session) handleFrame(raw []byte) {
	var frame InboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		s.replyError("", apperrors.ValidationError("Malformed frame"))
		return
	}
	if err := s.hub.validate.Struct(frame); err != nil {
		s.replyError(frame.RequestID, apperrors.ValidationError("Invalid frame").WithDetails(util.ValidationDetails(err)))
		return
	}

	if frame.Type == FrameAuth {
		s.handleAuth(frame)
		return
	}

	state := s.State()
	if state != model.SessionOpen {
		s.replyError(frame.RequestID, apperrors.InvalidState(state.String()))
		return
	}

	ctx, cancel := context.WithTimeout(s.ctx, config.WSRequestTimeout)
	defer cancel()

	switch frame.Type {
	case FrameSubscribe:
		s.handleSubscribe(ctx, frame)
	case FrameUnsubscribe:
		s.handleUnsubscribe(frame)
	case FrameSend:
		s.handleSend(ctx, frame)
	}
}

func (s *Session) handleAuth(frame InboundFrame) {
	state := s.State()
	if state != model.SessionAuthenticating {
		s.replyError(frame.RequestID, apperrors.InvalidState(state.String()))
		return
	}

	principal, err := s.hub.verifier.Verify(frame.Token)
	if err != nil {
		audit.Log(s.ctx, audit.Event{
			Type:      audit.EventAuthFailure,
			SessionID: s.id,
			IP:        s.remoteAddr,
			Details: map[string]interface{}{
				"reason": string(apperrors.AuthReason(err)),
				"token":  util.Fingerprint(frame.Token),
			},
		})
		s.replyError(frame.RequestID, err)
		s.Close(CloseUnauthenticated)
		return
	}

	s.open(principal)
}

func (s *Session) handleSubscribe(ctx context.Context, frame InboundFrame) {
	principal := s.Principal()
	if _, err := s.hub.guard.Authorize(ctx, principal.ID, frame.ConversationID, service.ActionSubscribe); err != nil {
		s.replyError(frame.RequestID, err)
		return
	}

	payload, err := encodeFrame(AckFrame{Type: FrameSubscribed, RequestID: frame.RequestID, ConversationID: frame.ConversationID})
	if err != nil {
		s.replyError(frame.RequestID, apperrors.Internal("Failed to encode acknowledgement"))
		return
	}

	s.enqueueMu.Lock()
	defer s.enqueueMu.Unlock()

	if err := s.hub.registry.Subscribe(s.id, frame.ConversationID); err != nil {
		// closed while the guard was consulted; nothing left to reply to
		return
	}
	s.enqueueLocked(payload)

	s.logger.Debug().Str("conversationId", frame.ConversationID).Msg("subscribed")
}

func (s *Session) handleUnsubscribe(frame InboundFrame) {
	s.hub.registry.Unsubscribe(s.id, frame.ConversationID)
	s.reply(AckFrame{Type: FrameUnsubscribed, RequestID: frame.RequestID, ConversationID: frame.ConversationID})
}

func (s *Session) handleSend(ctx context.Context, frame InboundFrame) {
	msg, err := s.hub.messages.Send(ctx, s.Principal(), service.SendParams{
		ConversationID: frame.ConversationID,
		Content:        frame.Content,
		ClientToken:    frame.ClientToken,
	})
	if err != nil {
		s.replyError(frame.RequestID, err)
		return
	}

	// Subscribed senders get their copy through the dispatcher.
	if !s.hub.registry.IsSubscribed(s.id, frame.ConversationID) {
		s.reply(DeliveredFrame{Type: FrameDelivered, Message: *msg, ClientToken: frame.ClientToken})
	}
}
