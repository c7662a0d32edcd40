// Package contagion implements Contagion, the probabilistic reliable
// broadcast layer: it collects readies from a random ready sample, re-emits
// its own ready once that threshold is crossed, and pcb-delivers (final
// delivery) once a — possibly distinct — delivery sample crosses its own
// threshold.
package contagion

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/dedis/sbrb/key"
	"github.com/dedis/sbrb/log"
	"github.com/dedis/sbrb/sample"
	"github.com/dedis/sbrb/transport"
	"github.com/dedis/sbrb/wire"
)

// AuditWriter persists the final delivery, matching the on-disk artifact
// named in the external interfaces: one file per node, overwritten once on
// delivery. Abstracted behind an interface so tests can swap in an in-memory
// sink instead of touching the filesystem.
type AuditWriter interface {
	Write(id key.Identity, content string) error
}

// Layer is one node's Contagion state.
type Layer struct {
	id          key.Identity
	keychain    *key.KeyChain
	transport   transport.Transport
	log         log.Logger
	clock       clockwork.Clock
	audit       AuditWriter
	onDelivered func(content string) // metrics hook, not a network call

	readyThreshold    int
	deliveryThreshold int

	readySet    *sample.Set
	deliverySet *sample.Set

	subscribersMu sync.Mutex
	subscribers   []key.Identity

	readySlotsMu sync.Mutex
	readySlots   map[key.Identity][]string

	deliverySlotsMu sync.Mutex
	deliverySlots   map[key.Identity][]string

	emittedMu sync.Mutex
	emitted   map[string]bool

	deliveredMu sync.Mutex
	delivered   *string // write-once
}

// New builds a Contagion layer.
func New(id key.Identity, kc *key.KeyChain, t transport.Transport, l log.Logger, clock clockwork.Clock, audit AuditWriter, readyThr, deliveryThr int, onDelivered func(string)) *Layer {
	return &Layer{
		id:                id,
		keychain:          kc,
		transport:         t,
		log:               l.Named("contagion"),
		clock:             clock,
		audit:             audit,
		onDelivered:       onDelivered,
		readyThreshold:    readyThr,
		deliveryThreshold: deliveryThr,
		readySlots:        make(map[key.Identity][]string),
		deliverySlots:     make(map[key.Identity][]string),
		emitted:           make(map[string]bool),
	}
}

// Init draws the (independent) ready sample of size r and delivery sample
// of size d from roster.
func (c *Layer) Init(rng *rand.Rand, r, d int, roster *key.Roster) error {
	readySet, err := sample.Draw(rng, r, roster.Identities())
	if err != nil {
		return err
	}
	deliverySet, err := sample.Draw(rng, d, roster.Identities())
	if err != nil {
		return err
	}
	c.readySet = readySet
	c.deliverySet = deliverySet
	return nil
}

// Subscribe asks every member of both samples to forward their future
// readies to this node.
func (c *Layer) Subscribe(ctx context.Context) error {
	seen := make(map[key.Identity]bool)
	var targets []key.Identity
	for _, id := range append(c.readySet.Identities(), c.deliverySet.Identities()...) {
		if seen[id] {
			continue
		}
		seen[id] = true
		targets = append(targets, id)
	}
	signed, err := wire.Sign(c.keychain, wire.Message{Role: wire.RoleReadySubscription})
	if err != nil {
		return err
	}
	return transport.NewBestEffort(c.transport, targets).Complete(ctx, signed)
}

// OnReadySubscription registers from as a ready subscriber and replays any
// readies already emitted, so a late subscriber still learns of them.
func (c *Layer) OnReadySubscription(ctx context.Context, from key.Identity) error {
	c.subscribersMu.Lock()
	c.subscribers = append(c.subscribers, from)
	c.subscribersMu.Unlock()

	c.emittedMu.Lock()
	contents := make([]string, 0, len(c.emitted))
	for content := range c.emitted {
		contents = append(contents, content)
	}
	c.emittedMu.Unlock()

	for _, content := range contents {
		signed, err := wire.Sign(c.keychain, wire.Message{Role: wire.RoleReady, Content: content})
		if err != nil {
			return err
		}
		if err := c.transport.Unicast(ctx, from, signed); err != nil {
			return err
		}
	}
	return nil
}

// Deliver is Sieve's onDeliver hook: the content Sieve pcb-delivered becomes
// this node's own ready, sent once to every current subscriber.
func (c *Layer) Deliver(ctx context.Context, msg wire.Message) error {
	return c.emitReady(ctx, msg.Content)
}

// OnReady records a Ready(content) reported by from against whichever of
// the ready/delivery samples from belongs to, then re-checks both
// thresholds.
func (c *Layer) OnReady(ctx context.Context, from key.Identity, content string) error {
	if c.readySet.Contains(from) {
		c.readySlotsMu.Lock()
		c.readySlots[from] = append(c.readySlots[from], content)
		c.readySlotsMu.Unlock()
	}
	if c.deliverySet.Contains(from) {
		c.deliverySlotsMu.Lock()
		c.deliverySlots[from] = append(c.deliverySlots[from], content)
		c.deliverySlotsMu.Unlock()
	}
	if !c.readySet.Contains(from) && !c.deliverySet.Contains(from) {
		c.log.Debugw("dropping ready from non-sampled peer", "from", from)
		return nil
	}

	if err := c.checkReady(ctx); err != nil {
		return err
	}
	return c.checkDelivery(ctx)
}

// checkReady re-emits this node's own ready for every content whose weighted
// occurrence across the ready sample crosses the ready threshold, exactly
// once per content (P7).
func (c *Layer) checkReady(ctx context.Context) error {
	c.readySlotsMu.Lock()
	slots := make(map[key.Identity][]string, len(c.readySlots))
	for k, v := range c.readySlots {
		slots[k] = append([]string(nil), v...)
	}
	c.readySlotsMu.Unlock()

	occ := sample.CountOccurrencesContagion(c.readySet, slots)
	for content, count := range occ {
		if count < c.readyThreshold {
			continue
		}
		if err := c.emitReady(ctx, content); err != nil {
			return err
		}
	}
	return nil
}

// emitReady sends Ready(content) to every current subscriber, but only the
// first time this node emits that particular content.
func (c *Layer) emitReady(ctx context.Context, content string) error {
	c.emittedMu.Lock()
	if c.emitted[content] {
		c.emittedMu.Unlock()
		return nil
	}
	c.emitted[content] = true
	c.emittedMu.Unlock()

	c.subscribersMu.Lock()
	subs := append([]key.Identity(nil), c.subscribers...)
	c.subscribersMu.Unlock()
	if len(subs) == 0 {
		return nil
	}

	signed, err := wire.Sign(c.keychain, wire.Message{Role: wire.RoleReady, Content: content})
	if err != nil {
		return err
	}
	if err := transport.NewBestEffort(c.transport, subs).Complete(ctx, signed); err != nil {
		c.log.Debugw("ready fan-out had failures", "err", err)
	}
	return nil
}

// checkDelivery pcb-delivers (final delivery) the first content whose
// weighted occurrence across the delivery sample crosses the delivery
// threshold. Delivery crosses at most once (P1): the lock that reads
// delivered is the same lock that sets it.
func (c *Layer) checkDelivery(ctx context.Context) error {
	c.deliveredMu.Lock()
	if c.delivered != nil {
		c.deliveredMu.Unlock()
		return nil
	}
	c.deliveredMu.Unlock()

	c.deliverySlotsMu.Lock()
	slots := make(map[key.Identity][]string, len(c.deliverySlots))
	for k, v := range c.deliverySlots {
		slots[k] = append([]string(nil), v...)
	}
	c.deliverySlotsMu.Unlock()

	occ := sample.CountOccurrencesContagion(c.deliverySet, slots)
	for content, count := range occ {
		if count < c.deliveryThreshold {
			continue
		}
		c.deliveredMu.Lock()
		if c.delivered != nil {
			c.deliveredMu.Unlock()
			return nil
		}
		cp := content
		c.delivered = &cp
		c.deliveredMu.Unlock()

		// The delivered guard above already ensures at most one writer per
		// node, so the retry-forever audit write can run unlocked: a stuck
		// audit sink stalls only this content's completion, not every
		// concurrent OnReady handler waiting on deliveredMu.
		err := transport.Retry(ctx, c.clock, 0, time.Second, func() error {
			return c.audit.Write(c.id, cp)
		})
		if err != nil {
			return fmt.Errorf("contagion: audit write: %w", err)
		}
		if c.onDelivered != nil {
			c.onDelivered(cp)
		}
		return nil
	}
	return nil
}

// Delivered returns the final delivered content, or nil.
func (c *Layer) Delivered() *string {
	c.deliveredMu.Lock()
	defer c.deliveredMu.Unlock()
	return c.delivered
}
