// Package sieve implements Sieve, the probabilistic consistent broadcast
// layer: it collects echoes of a Murmur-delivered message from a random echo
// sample and pb-delivers it to Contagion once the echo threshold is
// crossed.
package sieve

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

// Layer is one node's Sieve state.
type Layer struct {
	keychain  *key.KeyChain
	transport transport.Transport
	log       log.Logger
	threshold int
	onDeliver func(ctx context.Context, msg wire.Message) error

	echoSet *sample.Set // who we ask for echoes

	subscribersMu sync.Mutex
	subscribers   []key.Identity // who asked us for our echo

	ownEchoMu sync.Mutex
	ownEcho   *string // our own echo content, write-once

	slotsMu sync.Mutex
	slots   map[key.Identity]*string // at most one reported echo per echoSet member

	deliveredMu sync.Mutex
	delivered   *string // write-once pcb-delivery result
}

// New builds a Sieve layer with the given echo threshold.
func New(kc *key.KeyChain, t transport.Transport, l log.Logger, threshold int, onDeliver func(context.Context, wire.Message) error) *Layer {
	return &Layer{
		keychain:  kc,
		transport: t,
		log:       l.Named("sieve"),
		threshold: threshold,
		onDeliver: onDeliver,
		slots:     make(map[key.Identity]*string),
	}
}

// Init draws the echo sample of size e from roster.
func (s *Layer) Init(rng *rand.Rand, e int, roster *key.Roster) error {
	set, err := sample.Draw(rng, e, roster.Identities())
	if err != nil {
		return err
	}
	s.echoSet = set
	return nil
}

// Subscribe asks every member of the echo sample to send their echo of
// whatever they murmur-deliver.
func (s *Layer) Subscribe(ctx context.Context) error {
	signed, err := wire.Sign(s.keychain, wire.Message{Role: wire.RoleEchoSubscription})
	if err != nil {
		return err
	}
	return transport.NewBestEffort(s.transport, s.echoSet.Identities()).Complete(ctx, signed)
}

// OnEchoSubscription registers from as an echo subscriber. If this node has
// already locked in its own echo, from is caught up immediately.
func (s *Layer) OnEchoSubscription(ctx context.Context, from key.Identity) error {
	s.subscribersMu.Lock()
	s.subscribers = append(s.subscribers, from)
	s.subscribersMu.Unlock()

	s.ownEchoMu.Lock()
	own := s.ownEcho
	s.ownEchoMu.Unlock()
	if own == nil {
		return nil
	}
	signed, err := wire.Sign(s.keychain, wire.Message{Role: wire.RoleEcho, Content: *own})
	if err != nil {
		return err
	}
	return s.transport.Unicast(ctx, from, signed)
}

// Deliver is Murmur's onDeliver hook: the first time this node accepts a
// gossip message, it locks in that content as its own echo and sends it to
// every echo subscriber.
func (s *Layer) Deliver(ctx context.Context, msg wire.Message) error {
	s.ownEchoMu.Lock()
	if s.ownEcho != nil {
		s.ownEchoMu.Unlock()
		return nil
	}
	content := msg.Content
	s.ownEcho = &content
	s.ownEchoMu.Unlock()

	s.subscribersMu.Lock()
	subs := append([]key.Identity(nil), s.subscribers...)
	s.subscribersMu.Unlock()
	if len(subs) == 0 {
		return nil
	}
	signed, err := wire.Sign(s.keychain, wire.Message{Role: wire.RoleEcho, Content: content})
	if err != nil {
		return err
	}
	if err := transport.NewBestEffort(s.transport, subs).Complete(ctx, signed); err != nil {
		s.log.Debugw("echo fan-out had failures", "err", err)
	}
	return nil
}

// OnEcho records an echo reported by from, if from is part of this node's
// echo sample and has not already reported one, then checks the echo
// threshold.
func (s *Layer) OnEcho(ctx context.Context, from key.Identity, content string) error {
	if !s.echoSet.Contains(from) {
		s.log.Debugw("dropping echo from non-sampled peer", "from", from)
		return nil
	}
	s.slotsMu.Lock()
	if _, ok := s.slots[from]; !ok {
		cp := content
		s.slots[from] = &cp
	}
	slots := make(map[key.Identity]*string, len(s.slots))
	for k, v := range s.slots {
		slots[k] = v
	}
	s.slotsMu.Unlock()

	return s.checkEchoes(ctx, slots)
}

func (s *Layer) checkEchoes(ctx context.Context, slots map[key.Identity]*string) error {
	s.deliveredMu.Lock()
	if s.delivered != nil {
		s.deliveredMu.Unlock()
		return nil
	}
	s.deliveredMu.Unlock()

	seen := make(map[string]bool, len(slots))
	for _, v := range slots {
		if v == nil || seen[*v] {
			continue
		}
		seen[*v] = true
		if sample.CountOccurrencesSieve(s.echoSet, slots, *v) >= s.threshold {
			s.deliveredMu.Lock()
			if s.delivered != nil {
				s.deliveredMu.Unlock()
				return nil
			}
			content := *v
			s.delivered = &content
			s.deliveredMu.Unlock()

			if s.onDeliver != nil {
				return s.onDeliver(ctx, wire.Message{Role: wire.RoleReady, Content: content})
			}
			return nil
		}
	}
	return nil
}

// Delivered returns the content this node's Sieve layer has pcb-delivered,
// or nil.
func (s *Layer) Delivered() *string {
	s.deliveredMu.Lock()
	defer s.deliveredMu.Unlock()
	return s.delivered
}
