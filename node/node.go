// Package node wires the three broadcast layers (Murmur, Sieve, Contagion)
// behind a single message-ingress dispatcher and a small control channel for
// locally-issued bootstrap triggers, mirroring the teacher's own pattern of
// a thin per-node coordinator sitting in front of otherwise-independent
// protocol packages.
package node

import (
	"github.com/jonboulle/clockwork"

	"github.com/dedis/sbrb/contagion"
	"github.com/dedis/sbrb/key"
	"github.com/dedis/sbrb/log"
	"github.com/dedis/sbrb/murmur"
	"github.com/dedis/sbrb/sieve"
	"github.com/dedis/sbrb/transport"
)

// Thresholds bundles the three sample sizes and their crossing thresholds,
// taken verbatim from the parsed broadcast.config (G/E/E_thr/R/R_thr/D/D_thr).
type Thresholds struct {
	Gossip            int
	Echo              int
	EchoThreshold     int
	Ready             int
	ReadyThreshold    int
	Delivery          int
	DeliveryThreshold int
}

// Node is a single participant in the broadcast: its own identity and
// keychain, the fixed roster it verifies peers against, the transport it
// moves messages over, and the three composed protocol layers.
type Node struct {
	ID        key.Identity
	keychain  *key.KeyChain
	roster    *key.Roster
	transport transport.Transport
	log       log.Logger
	metrics   *Metrics

	Murmur    *murmur.Layer
	Sieve     *sieve.Layer
	Contagion *contagion.Layer

	control chan Trigger
}

// New builds a Node and wires Murmur's delivery into Sieve and Sieve's into
// Contagion by direct function reference, per the fixed three-layer
// pipeline this protocol always runs.
func New(priv *key.Private, roster *key.Roster, t transport.Transport, l log.Logger, clock clockwork.Clock, audit contagion.AuditWriter, thr Thresholds, metrics *Metrics) *Node {
	kc := key.NewKeyChain(priv)
	id := priv.Public.ID
	l = l.Named(id.String())

	n := &Node{
		ID:        id,
		keychain:  kc,
		roster:    roster,
		transport: t,
		log:       l,
		metrics:   metrics,
		control:   make(chan Trigger, 8),
	}

	n.Contagion = contagion.New(id, kc, t, l, clock, audit, thr.ReadyThreshold, thr.DeliveryThreshold, n.onDelivered)
	n.Sieve = sieve.New(kc, t, l, thr.EchoThreshold, n.Contagion.Deliver)
	n.Murmur = murmur.New(kc, t, l, n.Sieve.Deliver)
	return n
}

func (n *Node) onDelivered(content string) {
	if n.metrics != nil {
		n.metrics.Delivered.Inc()
	}
	n.log.Infow("delivered", "content", content)
}

// Control returns the channel used to feed this node locally-issued
// bootstrap triggers (InitGossip/InitEcho/InitReady/StartBroadcast).
func (n *Node) Control() chan<- Trigger {
	return n.control
}
