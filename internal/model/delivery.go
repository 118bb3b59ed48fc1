package model

// DeliveredMessage is a persisted message decorated with its sender's
// summary. Sender is nil when the directory lookup failed.
type DeliveredMessage struct {
	Message
	Sender *PrincipalSummary `json:"sender,omitempty"`
}

// Delivery is what the dispatcher fans out for one appended message.
// ClientToken is only ever shown to sessions owned by the sender.
type Delivery struct {
	Message     DeliveredMessage `json:"message"`
	ClientToken string           `json:"clientToken,omitempty"`
}

// TokenFor returns the pending-send token visible to principalID.
func (d *Delivery) TokenFor(principalID string) string {
	if principalID == d.Message.SenderID {
		return d.ClientToken
	}
	return ""
}
