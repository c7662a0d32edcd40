package murmur_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dedis/sbrb/key"
	"github.com/dedis/sbrb/log"
	"github.com/dedis/sbrb/murmur"
	"github.com/dedis/sbrb/transport"
	"github.com/dedis/sbrb/wire"
)

func newKeyChain(t *testing.T, addr string) (*key.Private, *key.KeyChain) {
	t.Helper()
	priv, err := key.NewKeyPair(addr)
	require.NoError(t, err)
	return priv, key.NewKeyChain(priv)
}

// TestOnGossipAcceptsOnceAndForwards exercises the core Murmur invariant: the
// first gossip copy is accepted and forwarded to every current peer, and any
// later copy is a silent no-op.
func TestOnGossipAcceptsOnceAndForwards(t *testing.T) {
	net := transport.NewNetwork()
	_, kcA := newKeyChain(t, "a")
	var idB key.Identity
	idB[0] = 0xB
	ta := net.Register(key.Identity{}, 4)
	tb := net.Register(idB, 4)

	var delivered []wire.Message
	var mu sync.Mutex
	onDeliver := func(_ context.Context, msg wire.Message) error {
		mu.Lock()
		delivered = append(delivered, msg)
		mu.Unlock()
		return nil
	}

	m := murmur.New(kcA, ta, log.DefaultLogger(), onDeliver)
	require.NoError(t, m.OnGossipSubscription(context.Background(), idB))

	msg := wire.Message{Role: wire.RoleGossip, Content: "hello"}
	require.NoError(t, m.OnGossip(context.Background(), msg))
	// A repeat of the same content must not be delivered twice.
	require.NoError(t, m.OnGossip(context.Background(), msg))

	require.Len(t, delivered, 1)
	require.Equal(t, "hello", delivered[0].Content)
	require.NotNil(t, m.Delivered())

	_, got, _, err := tb.Receive(context.Background())
	require.NoError(t, err)
	require.Equal(t, "hello", got.Message.Content)
}

// TestOnGossipSubscriptionCatchesUpLateSubscriber matches the source
// implementation's replay-on-subscribe behavior for a node that has already
// delivered before a new subscriber arrives.
func TestOnGossipSubscriptionCatchesUpLateSubscriber(t *testing.T) {
	net := transport.NewNetwork()
	_, kcA := newKeyChain(t, "a")
	var idB key.Identity
	idB[0] = 0xB
	ta := net.Register(key.Identity{}, 4)
	tb := net.Register(idB, 4)

	m := murmur.New(kcA, ta, log.DefaultLogger(), nil)
	require.NoError(t, m.OnGossip(context.Background(), wire.Message{Role: wire.RoleGossip, Content: "v1"}))
	require.NoError(t, m.OnGossipSubscription(context.Background(), idB))

	_, got, _, err := tb.Receive(context.Background())
	require.NoError(t, err)
	require.Equal(t, "v1", got.Message.Content)
}
