// Package transport carries signed wire messages between nodes. It defines
// the narrow interface the rest of the broadcast stack depends on, plus an
// in-memory implementation used by tests and single-process demos.
package transport

import (
	"context"

	"github.com/dedis/sbrb/key"
	"github.com/dedis/sbrb/wire"
)

// AckHandle lets a receiver report how strongly it has committed to having
// processed a delivered message, mirroring the weak/strong send semantics a
// unicast transport typically exposes to its caller.
type AckHandle interface {
	// Strong acknowledges the message only once it has been durably handled
	// (signature verified, handed to the right layer).
	Strong()
	// Weak acknowledges only that the bytes were received, before any
	// verification has happened.
	Weak()
}

// Transport is the point-to-point channel every node speaks over. It knows
// nothing about roles or layers: it moves already-signed messages between
// identities named in the roster.
type Transport interface {
	// Unicast sends msg to target and blocks until it is queued for
	// delivery or ctx is done.
	Unicast(ctx context.Context, target key.Identity, msg wire.SignedMessage) error
	// Receive blocks until the next message addressed to this transport's
	// owner arrives, or ctx is done.
	Receive(ctx context.Context) (key.Identity, wire.SignedMessage, AckHandle, error)
}
