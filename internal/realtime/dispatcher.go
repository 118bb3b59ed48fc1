package realtime

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/skillswap/chat-server/internal/model"
)

// Dispatcher delivers appended messages to the sessions subscribed to their
// conversation at delivery time. Late joiners get no replay.
type Dispatcher struct {
	registry *Registry
	bus      Bus
}

func NewDispatcher(registry *Registry, bus Bus) *Dispatcher {
	return &Dispatcher{registry: registry, bus: bus}
}

// Start attaches the dispatcher to its bus.
func (d *Dispatcher) Start(ctx context.Context) error {
	return d.bus.Subscribe(ctx, func(delivery *model.Delivery) {
		d.Deliver(delivery)
	})
}

func (d *Dispatcher) Publish(ctx context.Context, delivery *model.Delivery) error {
	return d.bus.Publish(ctx, delivery)
}

func (d *Dispatcher) Close() error {
	return d.bus.Close()
}

// Deliver enqueues the delivery once to every local member and returns how
// many sessions accepted it. Full queues never block the caller.
func (d *Dispatcher) Deliver(delivery *model.Delivery) int {
	members := d.registry.MembersOf(delivery.Message.ConversationID)
	if len(members) == 0 {
		return 0
	}

	plain, err := encodeFrame(newDeliveredFrame(delivery, ""))
	if err != nil {
		log.Error().Err(err).Str("messageId", delivery.Message.ID).Msg("failed to encode delivery")
		return 0
	}
	withToken := plain
	if delivery.ClientToken != "" {
		if withToken, err = encodeFrame(newDeliveredFrame(delivery, delivery.ClientToken)); err != nil {
			withToken = plain
		}
	}

	accepted := 0
	for _, member := range members {
		payload := plain
		if delivery.TokenFor(member.PrincipalID()) != "" {
			payload = withToken
		}
		if member.Enqueue(payload) {
			accepted++
		}
	}

	log.Debug().
		Str("messageId", delivery.Message.ID).
		Str("conversationId", delivery.Message.ConversationID).
		Int("members", len(members)).
		Int("accepted", accepted).
		Msg("message dispatched")

	return accepted
}
