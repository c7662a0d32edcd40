package node

import (
	"context"
	"math/rand"

	"github.com/dedis/sbrb/wire"
)

// Trigger is a locally-issued bootstrap instruction, fed in through
// Node.Control rather than arriving over the transport — it carries the
// same Role tags as wire messages (6..9) so the dispatcher's role switch and
// the control loop's role switch stay in lockstep.
type Trigger struct {
	Role    wire.Role
	Content string
}

// RunControl drains triggers until ctx is done. rng seeds whichever Init
// call InitGossip/InitEcho/InitReady ends up driving — callers typically
// issue exactly one trigger of each Init kind during bootstrap, in any
// order, followed at most once by StartBroadcast.
func (n *Node) RunControl(ctx context.Context, rng *rand.Rand, thr Thresholds) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case trig := <-n.control:
			if err := n.handleTrigger(ctx, rng, thr, trig); err != nil {
				n.log.Warnw("control trigger failed", "role", trig.Role, "err", err)
			}
		}
	}
}

func (n *Node) handleTrigger(ctx context.Context, rng *rand.Rand, thr Thresholds, trig Trigger) error {
	switch trig.Role {
	case wire.RoleInitGossip:
		if err := n.Murmur.Init(rng, thr.Gossip, n.roster); err != nil {
			return err
		}
		return n.Murmur.Subscribe(ctx)
	case wire.RoleInitEcho:
		if err := n.Sieve.Init(rng, thr.Echo, n.roster); err != nil {
			return err
		}
		return n.Sieve.Subscribe(ctx)
	case wire.RoleInitReady:
		if err := n.Contagion.Init(rng, thr.Ready, thr.Delivery, n.roster); err != nil {
			return err
		}
		return n.Contagion.Subscribe(ctx)
	case wire.RoleStartBroadcast:
		return n.Murmur.Broadcast(ctx, trig.Content)
	default:
		n.log.Warnw("ignoring non-control role on control channel", "role", trig.Role)
		return nil
	}
}
