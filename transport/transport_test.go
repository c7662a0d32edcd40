package transport_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/dedis/sbrb/key"
	"github.com/dedis/sbrb/transport"
	"github.com/dedis/sbrb/wire"
)

func identity(b byte) key.Identity {
	var id key.Identity
	id[0] = b
	return id
}

func TestMemoryUnicastReceiveRoundTrip(t *testing.T) {
	net := transport.NewNetwork()
	a, b := identity(0xA), identity(0xB)
	ta := net.Register(a, 4)
	tb := net.Register(b, 4)

	msg := wire.SignedMessage{Message: wire.Message{Role: wire.RoleGossip, Content: "hi"}}
	require.NoError(t, ta.Unicast(context.Background(), b, msg))

	from, got, ack, err := tb.Receive(context.Background())
	require.NoError(t, err)
	require.Equal(t, a, from)
	require.Equal(t, msg, got)
	ack.Strong()
}

func TestMemoryUnicastUnknownPeer(t *testing.T) {
	net := transport.NewNetwork()
	a := identity(0xA)
	ta := net.Register(a, 4)

	err := ta.Unicast(context.Background(), identity(0xFF), wire.SignedMessage{})
	require.Error(t, err)
}

func TestBestEffortFansOutToAllTargets(t *testing.T) {
	net := transport.NewNetwork()
	a, b, c := identity(0xA), identity(0xB), identity(0xC)
	ta := net.Register(a, 4)
	tb := net.Register(b, 4)
	tc := net.Register(c, 4)

	be := transport.NewBestEffort(ta, []key.Identity{b, c})
	msg := wire.SignedMessage{Message: wire.Message{Role: wire.RoleEcho, Content: "x"}}
	require.NoError(t, be.Complete(context.Background(), msg))

	_, gotB, _, err := tb.Receive(context.Background())
	require.NoError(t, err)
	require.Equal(t, msg, gotB)

	_, gotC, _, err := tc.Receive(context.Background())
	require.NoError(t, err)
	require.Equal(t, msg, gotC)
}

func TestBestEffortAggregatesErrors(t *testing.T) {
	net := transport.NewNetwork()
	a, b := identity(0xA), identity(0xB)
	ta := net.Register(a, 4)
	_ = b // intentionally never registered, to force a send failure

	be := transport.NewBestEffort(ta, []key.Identity{b, identity(0xFF)})
	err := be.Complete(context.Background(), wire.SignedMessage{})
	require.Error(t, err)
}

func TestRetrySucceedsEventually(t *testing.T) {
	clock := clockwork.NewFakeClock()
	attempts := 0

	done := make(chan error, 1)
	go func() {
		done <- transport.Retry(context.Background(), clock, 5, time.Second, func() error {
			attempts++
			if attempts < 3 {
				return errors.New("not yet")
			}
			return nil
		})
	}()

	for attempts < 3 {
		clock.BlockUntil(1)
		clock.Advance(time.Second)
	}
	require.NoError(t, <-done)
	require.Equal(t, 3, attempts)
}

func TestRetryGivesUpAfterAttempts(t *testing.T) {
	clock := clockwork.NewFakeClock()
	boom := errors.New("boom")

	done := make(chan error, 1)
	go func() {
		done <- transport.Retry(context.Background(), clock, 2, time.Second, func() error {
			return boom
		})
	}()

	clock.BlockUntil(1)
	clock.Advance(time.Second)
	clock.BlockUntil(1)
	clock.Advance(time.Second)
	err := <-done
	require.Error(t, err)
}
