package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/dedis/sbrb/key"
	"github.com/dedis/sbrb/wire"
)

// envelope pairs a signed message with the identity that sent it.
type envelope struct {
	from key.Identity
	msg  wire.SignedMessage
}

// memoryAck is a no-op AckHandle: the in-memory transport has no backlog to
// acknowledge against. It records which ack strengths were called, but
// nothing reads that record back.
type memoryAck struct {
	mu     *sync.Mutex
	strong *bool
	weak   *bool
}

func (a memoryAck) Strong() { a.mu.Lock(); *a.strong = true; a.mu.Unlock() }
func (a memoryAck) Weak()   { a.mu.Lock(); *a.weak = true; a.mu.Unlock() }

// Network is a shared in-memory switchboard connecting any number of
// per-identity Memory transports, used by tests and the single-process demo
// command instead of a real socket transport.
type Network struct {
	mu    sync.Mutex
	boxes map[key.Identity]chan envelope
}

// NewNetwork creates an empty switchboard.
func NewNetwork() *Network {
	return &Network{boxes: make(map[key.Identity]chan envelope)}
}

// Register creates the inbox for id and returns a Transport bound to it.
// buf sizes the inbox so a slow receiver doesn't stall every sender.
func (n *Network) Register(id key.Identity, buf int) *Memory {
	n.mu.Lock()
	defer n.mu.Unlock()
	ch := make(chan envelope, buf)
	n.boxes[id] = ch
	return &Memory{net: n, self: id, inbox: ch}
}

func (n *Network) inboxFor(id key.Identity) (chan envelope, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	ch, ok := n.boxes[id]
	return ch, ok
}

// Memory is a Transport backed by a Network's in-process channels.
type Memory struct {
	net   *Network
	self  key.Identity
	inbox chan envelope
}

// Unicast delivers msg directly into target's inbox, or blocks until there
// is room for it or ctx is done.
func (m *Memory) Unicast(ctx context.Context, target key.Identity, msg wire.SignedMessage) error {
	ch, ok := m.net.inboxFor(target)
	if !ok {
		return fmt.Errorf("transport: no such peer %s", target)
	}
	select {
	case ch <- envelope{from: m.self, msg: msg}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive blocks for the next message addressed to this transport's owner.
func (m *Memory) Receive(ctx context.Context) (key.Identity, wire.SignedMessage, AckHandle, error) {
	select {
	case e := <-m.inbox:
		var mu sync.Mutex
		strong, weak := false, false
		return e.from, e.msg, memoryAck{mu: &mu, strong: &strong, weak: &weak}, nil
	case <-ctx.Done():
		return key.Identity{}, wire.SignedMessage{}, nil, ctx.Err()
	}
}

var _ Transport = (*Memory)(nil)
