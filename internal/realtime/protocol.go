package realtime

import (
	"encoding/json"

	apperrors "github.com/skillswap/chat-server/internal/errors"
	"github.com/skillswap/chat-server/internal/model"
)

type FrameType string

// Client to server.
const (
	FrameAuth        FrameType = "auth"
	FrameSubscribe   FrameType = "subscribe"
	FrameUnsubscribe FrameType = "unsubscribe"
	FrameSend        FrameType = "send"
)

// Server to client.
const (
	FrameReady        FrameType = "ready"
	FrameSubscribed   FrameType = "subscribed"
	FrameUnsubscribed FrameType = "unsubscribed"
	FrameDelivered    FrameType = "delivered"
	FrameError        FrameType = "error"
)

// InboundFrame is any frame a client may send. Fields not used by Type are ignored.
type InboundFrame struct {
	Type           FrameType `json:"type" validate:"required,oneof=auth subscribe unsubscribe send"`
	RequestID      string    `json:"requestId,omitempty" validate:"max=64"`
	Token          string    `json:"token,omitempty" validate:"required_if=Type auth"`
	ConversationID string    `json:"conversationId,omitempty" validate:"required_unless=Type auth"`
	Content        string    `json:"content,omitempty"`
	ClientToken    string    `json:"clientToken,omitempty"`
}

type ReadyFrame struct {
	Type              FrameType       `json:"type"`
	SessionID         string          `json:"sessionId"`
	Principal         model.Principal `json:"principal"`
	ReconcileWindowMs int64           `json:"reconcileWindowMs,omitempty"`
}

// AckFrame answers subscribe and unsubscribe.
type AckFrame struct {
	Type           FrameType `json:"type"`
	RequestID      string    `json:"requestId,omitempty"`
	ConversationID string    `json:"conversationId"`
}

type DeliveredFrame struct {
	Type        FrameType              `json:"type"`
	Message     model.DeliveredMessage `json:"message"`
	ClientToken string                 `json:"clientToken,omitempty"`
}

type ErrorFrame struct {
	Type      FrameType           `json:"type"`
	RequestID string              `json:"requestId,omitempty"`
	Code      apperrors.ErrorCode `json:"code"`
	Message   string              `json:"message"`
	Details   any                 `json:"details,omitempty"`
	Retryable bool                `json:"retryable,omitempty"`
}

// OutboundFrame is the union clients decode server frames into.
type OutboundFrame struct {
	Type              FrameType           `json:"type"`
	SessionID         string              `json:"sessionId,omitempty"`
	RequestID         string              `json:"requestId,omitempty"`
	ConversationID    string              `json:"conversationId,omitempty"`
	Principal         *model.Principal    `json:"principal,omitempty"`
	ReconcileWindowMs int64               `json:"reconcileWindowMs,omitempty"`
	ClientToken       string              `json:"clientToken,omitempty"`
	Code              apperrors.ErrorCode `json:"code,omitempty"`
	Retryable         bool                `json:"retryable,omitempty"`
	Details           json.RawMessage     `json:"details,omitempty"`
	Message           json.RawMessage     `json:"message,omitempty"`
}

// Delivered decodes the message of a delivered frame.
func (f *OutboundFrame) Delivered() (*model.DeliveredMessage, error) {
	var msg model.DeliveredMessage
	if err := json.Unmarshal(f.Message, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ErrorText decodes the message of an error frame.
func (f *OutboundFrame) ErrorText() string {
	var text string
	if err := json.Unmarshal(f.Message, &text); err != nil {
		return ""
	}
	return text
}

func newDeliveredFrame(delivery *model.Delivery, clientToken string) DeliveredFrame {
	return DeliveredFrame{
		Type:        FrameDelivered,
		Message:     delivery.Message,
		ClientToken: clientToken,
	}
}

// newErrorFrame renders err for the client. Credential failure reasons and
// internal causes are never exposed.
func newErrorFrame(requestID string, err error) ErrorFrame {
	frame := ErrorFrame{Type: FrameError, RequestID: requestID}

	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		frame.Code = apperrors.ErrCodeInternal
		frame.Message = "Internal server error"
		return frame
	}

	frame.Code = appErr.Code
	frame.Message = appErr.Message
	frame.Retryable = appErr.Retryable()
	if appErr.Code != apperrors.ErrCodeUnauthenticated {
		frame.Details = appErr.Details
	}
	return frame
}

func encodeFrame(frame any) ([]byte, error) {
	return json.Marshal(frame)
}
