// Package client is a Go client for the chat WebSocket endpoint. It keeps a
// reconciled timeline per conversation so optimistic sends are replaced by
// their confirmed copies.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/skillswap/chat-server/internal/config"
	apperrors "github.com/skillswap/chat-server/internal/errors"
	"github.com/skillswap/chat-server/internal/model"
	"github.com/skillswap/chat-server/internal/realtime"
	"github.com/skillswap/chat-server/internal/reconcile"
)

var ErrClosed = errors.New("client closed")

type Options struct {
	Token string
	// AuthInFrame sends the token as the first frame instead of the
	// Authorization header on upgrade.
	AuthInFrame     bool
	Header          http.Header
	Dialer          *websocket.Dialer
	// ReconcileWindow overrides the window the server advertises.
	ReconcileWindow time.Duration
	UpdateBuffer    int
}

// Update is emitted for every message that changed the timeline.
type Update struct {
	Message     model.DeliveredMessage
	ClientToken string
	Outcome     reconcile.Outcome
}

type result struct {
	frame realtime.OutboundFrame
	err   error
}

type Client struct {
	conn      *websocket.Conn
	timeline  *reconcile.Timeline
	sessionID string
	principal model.Principal

	writeMu sync.Mutex

	mu      sync.Mutex
	waiters map[string]chan result // requestId -> waiter
	sends   map[string]string      // clientToken -> requestId
	err     error

	updates chan Update
	done    chan struct{}
}

// Dial connects to url and waits for the ready frame.
func Dial(ctx context.Context, url string, opts Options) (*Client, error) {
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	header := opts.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	if opts.Token != "" && !opts.AuthInFrame {
		header.Set("Authorization", "Bearer "+opts.Token)
	}

	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, apperrors.New(apperrors.ErrCodeUnauthenticated, "Authentication required").WithCause(err)
		}
		return nil, err
	}

	bufSize := opts.UpdateBuffer
	if bufSize <= 0 {
		bufSize = 64
	}
	c := &Client{
		conn:     conn,
		waiters:  make(map[string]chan result),
		sends:    make(map[string]string),
		updates:  make(chan Update, bufSize),
		done:     make(chan struct{}),
	}

	if opts.AuthInFrame {
		if err := c.write(realtime.InboundFrame{Type: realtime.FrameAuth, Token: opts.Token}); err != nil {
			conn.Close()
			return nil, err
		}
	}

	serverWindow, err := c.awaitReady(ctx)
	if err != nil {
		conn.Close()
		return nil, err
	}
	window := opts.ReconcileWindow
	if window <= 0 {
		window = serverWindow
	}
	c.timeline = reconcile.NewTimeline(window)

	go c.readLoop()
	return c, nil
}

// awaitReady reads the ready frame and returns the reconciliation window the
// server advertised, zero when it sent none.
func (c *Client) awaitReady(ctx context.Context) (time.Duration, error) {
	deadline := time.Now().Add(config.WSRequestTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return 0, err
	}

	var frame realtime.OutboundFrame
	if err := c.conn.ReadJSON(&frame); err != nil {
		return 0, err
	}
	switch frame.Type {
	case realtime.FrameReady:
		c.sessionID = frame.SessionID
		if frame.Principal != nil {
			c.principal = *frame.Principal
		}
	case realtime.FrameError:
		return 0, frameError(frame)
	default:
		return 0, apperrors.Internal("unexpected frame before ready: " + string(frame.Type))
	}
	return time.Duration(frame.ReconcileWindowMs) * time.Millisecond, c.conn.SetReadDeadline(time.Time{})
}

func (c *Client) SessionID() string { return c.sessionID }

func (c *Client) Principal() model.Principal { return c.principal }

func (c *Client) Timeline() *reconcile.Timeline { return c.timeline }

// Updates delivers timeline changes. Updates are dropped when nobody reads;
// the timeline itself stays complete.
func (c *Client) Updates() <-chan Update { return c.updates }

func (c *Client) Done() <-chan struct{} { return c.done }

// Err returns why the connection ended, nil while it is alive.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Client) Subscribe(ctx context.Context, conversationID string) error {
	_, err := c.request(ctx, realtime.InboundFrame{Type: realtime.FrameSubscribe, ConversationID: conversationID}, "")
	return err
}

func (c *Client) Unsubscribe(ctx context.Context, conversationID string) error {
	_, err := c.request(ctx, realtime.InboundFrame{Type: realtime.FrameUnsubscribe, ConversationID: conversationID}, "")
	return err
}

// Send adds a pending entry, sends it and waits for the confirmed copy.
// A rejected send removes the pending entry. When ctx expires first the
// entry stays pending since the message may still be confirmed later.
func (c *Client) Send(ctx context.Context, conversationID, content string) (*model.DeliveredMessage, error) {
	pending, err := c.timeline.AddPending(conversationID, c.principal.ID, content)
	if err != nil {
		return nil, err
	}

	frame, err := c.request(ctx, realtime.InboundFrame{
		Type:           realtime.FrameSend,
		ConversationID: conversationID,
		Content:        content,
		ClientToken:    pending.Token,
	}, pending.Token)
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) || errors.Is(err, ErrClosed) {
			c.timeline.Fail(pending.Token)
		}
		return nil, err
	}
	return frame.Delivered()
}

func (c *Client) request(ctx context.Context, frame realtime.InboundFrame, clientToken string) (realtime.OutboundFrame, error) {
	frame.RequestID = uuid.NewString()
	ch := make(chan result, 1)

	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return realtime.OutboundFrame{}, ErrClosed
	}
	c.waiters[frame.RequestID] = ch
	if clientToken != "" {
		c.sends[clientToken] = frame.RequestID
	}
	c.mu.Unlock()

	defer c.forget(frame.RequestID, clientToken)

	if err := c.write(frame); err != nil {
		return realtime.OutboundFrame{}, err
	}

	select {
	case res := <-ch:
		return res.frame, res.err
	case <-ctx.Done():
		return realtime.OutboundFrame{}, ctx.Err()
	case <-c.done:
		return realtime.OutboundFrame{}, ErrClosed
	}
}

func (c *Client) forget(requestID, clientToken string) {
	c.mu.Lock()
	delete(c.waiters, requestID)
	if clientToken != "" {
		delete(c.sends, clientToken)
	}
	c.mu.Unlock()
}

func (c *Client) resolve(requestID string, res result) {
	c.mu.Lock()
	ch, ok := c.waiters[requestID]
	c.mu.Unlock()
	if ok {
		select {
		case ch <- res:
		default:
		}
	}
}

func (c *Client) write(frame realtime.InboundFrame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(config.WSWriteWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(frame)
}

func (c *Client) readLoop() {
	for {
		var frame realtime.OutboundFrame
		if err := c.conn.ReadJSON(&frame); err != nil {
			c.fail(err)
			return
		}

		switch frame.Type {
		case realtime.FrameDelivered:
			c.handleDelivered(frame)
		case realtime.FrameSubscribed, realtime.FrameUnsubscribed:
			c.resolve(frame.RequestID, result{frame: frame})
		case realtime.FrameError:
			if frame.RequestID == "" {
				log.Debug().Str("code", string(frame.Code)).Msg("connection level error")
				continue
			}
			c.resolve(frame.RequestID, result{frame: frame, err: frameError(frame)})
		}
	}
}

func (c *Client) handleDelivered(frame realtime.OutboundFrame) {
	msg, err := frame.Delivered()
	if err != nil {
		log.Warn().Err(err).Msg("undecodable delivered frame")
		return
	}

	outcome := c.timeline.Confirm(*msg, frame.ClientToken)

	if frame.ClientToken != "" {
		c.mu.Lock()
		requestID, ok := c.sends[frame.ClientToken]
		c.mu.Unlock()
		if ok {
			c.resolve(requestID, result{frame: frame})
		}
	}

	if outcome == reconcile.Duplicate {
		return
	}
	select {
	case c.updates <- Update{Message: *msg, ClientToken: frame.ClientToken, Outcome: outcome}:
	default:
		log.Debug().Str("messageId", msg.ID).Msg("update buffer full, dropping notification")
	}
}

func (c *Client) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return
	}
	c.err = err
	close(c.done)
}

// CloseCode returns the close code the server sent, or 0.
func (c *Client) CloseCode() int {
	var closeErr *websocket.CloseError
	if errors.As(c.Err(), &closeErr) {
		return closeErr.Code
	}
	return 0
}

// Close says goodbye and tears the connection down.
func (c *Client) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(config.WSWriteWait))
	err := c.conn.Close()
	c.fail(ErrClosed)
	return err
}

func frameError(frame realtime.OutboundFrame) *apperrors.AppError {
	appErr := apperrors.New(frame.Code, frame.ErrorText())
	if len(frame.Details) > 0 {
		var details any
		if err := json.Unmarshal(frame.Details, &details); err == nil {
			appErr.WithDetails(details)
		}
	}
	return appErr
}
