package node

import (
	"context"

	"github.com/google/uuid"

	"github.com/dedis/sbrb/key"
	"github.com/dedis/sbrb/wire"
)

// Run is the single ingress loop: it reads one signed message at a time
// from the transport, verifies it against the sender's roster keycard, and
// spawns one handler goroutine per message — grounded in the teacher's
// core.broadcast.BroadcastDKG shape of look-up/verify/drop-or-spawn, with
// the per-destination fan-out worker pattern reused on the outbound side by
// transport.BestEffort instead of a persistent per-peer sender.
func (n *Node) Run(ctx context.Context) error {
	for {
		from, signed, ack, err := n.transport.Receive(ctx)
		if err != nil {
			return err
		}
		ack.Weak()

		card, ok := n.roster.Get(from)
		if !ok {
			n.log.Debugw("dropping message from unknown sender", "from", from)
			continue
		}
		if err := wire.Verify(card, signed); err != nil {
			n.log.Debugw("dropping message with invalid signature", "from", from, "err", err)
			continue
		}
		ack.Strong()
		if n.metrics != nil {
			n.metrics.Verified.WithLabelValues(signed.Message.Role.String()).Inc()
		}

		go n.handle(ctx, from, signed.Message)
	}
}

// handle routes a verified message to the layer (or layer pair) responsible
// for its role. The switch names all ten wire.Role values; any other value
// reaches the default arm and is logged at Warn and dropped. Each
// invocation gets its own request id so concurrent handlers for the same
// role can be told apart in the logs.
func (n *Node) handle(ctx context.Context, from key.Identity, msg wire.Message) {
	reqID := uuid.NewString()
	l := n.log.With("req", reqID)
	var err error
	switch msg.Role {
	case wire.RoleGossip:
		err = n.Murmur.OnGossip(ctx, msg)
	case wire.RoleEcho:
		err = n.Sieve.OnEcho(ctx, from, msg.Content)
	case wire.RoleReady:
		err = n.Contagion.OnReady(ctx, from, msg.Content)
	case wire.RoleGossipSubscription:
		err = n.Murmur.OnGossipSubscription(ctx, from)
	case wire.RoleEchoSubscription:
		err = n.Sieve.OnEchoSubscription(ctx, from)
	case wire.RoleReadySubscription:
		err = n.Contagion.OnReadySubscription(ctx, from)
	case wire.RoleInitGossip, wire.RoleInitEcho, wire.RoleInitReady, wire.RoleStartBroadcast:
		l.Debugw("dropping control role received over the wire", "role", msg.Role, "from", from)
		return
	default:
		l.Warnw("dropping message with unrecognized role", "role", msg.Role, "from", from)
		return
	}
	if err != nil {
		l.Warnw("handler failed", "role", msg.Role, "from", from, "err", err)
		if n.metrics != nil {
			n.metrics.HandlerErrors.WithLabelValues(msg.Role.String()).Inc()
		}
	}
}
