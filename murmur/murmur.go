// Package murmur implements Murmur, the probabilistic broadcast layer: it
// diffuses a message through a random gossip fan-out and accepts only the
// first copy of it, handing that first copy up to Sieve.
package murmur

import (
	"context"
	"math/rand"
	"sync"

	"github.com/dedis/sbrb/key"
	"github.com/dedis/sbrb/log"
	"github.com/dedis/sbrb/sample"
	"github.com/dedis/sbrb/transport"
	"github.com/dedis/sbrb/wire"
)

// Layer is one node's Murmur state. gossip_peers doubles as both the
// randomly-drawn sample this node forwards to and the append-only list of
// peers that have asked to be forwarded to — Murmur never counts replies,
// so a single list under a single lock is enough.
type Layer struct {
	keychain  *key.KeyChain
	transport transport.Transport
	log       log.Logger
	onDeliver func(ctx context.Context, msg wire.Message) error

	peersMu sync.Mutex
	peers   []key.Identity

	deliveredMu sync.Mutex
	delivered   *wire.Message // write-once
}

// New builds a Murmur layer. onDeliver is called the first time (and only
// the first time) this node accepts a gossip message — it is Sieve's
// Deliver method, wired in directly by the node package rather than through
// an interface, since the chain is a fixed three-layer pipeline.
func New(kc *key.KeyChain, t transport.Transport, l log.Logger, onDeliver func(context.Context, wire.Message) error) *Layer {
	return &Layer{keychain: kc, transport: t, log: l.Named("murmur"), onDeliver: onDeliver}
}

// Init draws the gossip sample of size g from roster.
func (m *Layer) Init(rng *rand.Rand, g int, roster *key.Roster) error {
	set, err := sample.Draw(rng, g, roster.Identities())
	if err != nil {
		return err
	}
	m.peersMu.Lock()
	m.peers = set.Identities()
	m.peersMu.Unlock()
	return nil
}

// Subscribe asks every member of the gossip sample to forward future gossip
// to this node.
func (m *Layer) Subscribe(ctx context.Context) error {
	m.peersMu.Lock()
	peers := append([]key.Identity(nil), m.peers...)
	m.peersMu.Unlock()

	signed, err := wire.Sign(m.keychain, wire.Message{Role: wire.RoleGossipSubscription})
	if err != nil {
		return err
	}
	return transport.NewBestEffort(m.transport, peers).Complete(ctx, signed)
}

// OnGossipSubscription registers from as a forward target. A node that has
// already delivered its gossip message immediately catches the new
// subscriber up, mirroring the teacher's own replay-on-subscribe handling of
// late joiners.
func (m *Layer) OnGossipSubscription(ctx context.Context, from key.Identity) error {
	m.peersMu.Lock()
	m.peers = append(m.peers, from)
	m.peersMu.Unlock()

	m.deliveredMu.Lock()
	delivered := m.delivered
	m.deliveredMu.Unlock()
	if delivered == nil {
		return nil
	}
	signed, err := wire.Sign(m.keychain, *delivered)
	if err != nil {
		return err
	}
	return m.transport.Unicast(ctx, from, signed)
}

// OnGossip handles an incoming Gossip message. Only the first copy is
// accepted: it is forwarded once to the gossip sample and handed to Sieve.
// Every later copy is silently dropped.
func (m *Layer) OnGossip(ctx context.Context, msg wire.Message) error {
	m.deliveredMu.Lock()
	if m.delivered != nil {
		m.deliveredMu.Unlock()
		return nil
	}
	cp := msg
	m.delivered = &cp
	m.deliveredMu.Unlock()

	m.peersMu.Lock()
	peers := append([]key.Identity(nil), m.peers...)
	m.peersMu.Unlock()

	if len(peers) > 0 {
		signed, err := wire.Sign(m.keychain, msg)
		if err != nil {
			return err
		}
		if err := transport.NewBestEffort(m.transport, peers).Complete(ctx, signed); err != nil {
			m.log.Debugw("gossip fan-out had failures", "err", err)
		}
	}
	if m.onDeliver != nil {
		return m.onDeliver(ctx, msg)
	}
	return nil
}

// Broadcast starts a new Murmur broadcast as this node: it is delivered to
// itself exactly as any first-seen gossip would be, then fanned out.
func (m *Layer) Broadcast(ctx context.Context, content string) error {
	return m.OnGossip(ctx, wire.Message{Role: wire.RoleGossip, Content: content})
}

// Delivered returns the message this node has accepted, or nil.
func (m *Layer) Delivered() *wire.Message {
	m.deliveredMu.Lock()
	defer m.deliveredMu.Unlock()
	return m.delivered
}
