package transport

import (
	"context"
	"math/rand"
	"sync"

	multierror "github.com/hashicorp/go-multierror"

	"github.com/dedis/sbrb/key"
	"github.com/dedis/sbrb/wire"
)

// BestEffort fans msg out to every identity in targets over t, in a random
// order, and waits for all sends to finish. It is "best effort" in the sense
// the broadcast layers require: a send failing to one sampled peer must
// never block or fail delivery to the others. Modeled on the sender-per-peer
// dispatcher in the teacher's DKG broadcast, collapsed into a single
// fan-out call since this protocol has no notion of a persistent outbound
// queue per destination.
type BestEffort struct {
	transport Transport
	targets   []key.Identity
}

// NewBestEffort builds a fan-out broadcaster over t to the given targets.
func NewBestEffort(t Transport, targets []key.Identity) *BestEffort {
	cp := make([]key.Identity, len(targets))
	copy(cp, targets)
	return &BestEffort{transport: t, targets: cp}
}

// Complete sends msg to every target concurrently and returns the
// aggregated errors of whichever sends failed. A non-nil error never means
// the whole broadcast failed: callers that only care about making a
// best-effort attempt can log it and move on.
func (b *BestEffort) Complete(ctx context.Context, msg wire.SignedMessage) error {
	order := rand.Perm(len(b.targets))

	var wg sync.WaitGroup
	var mu sync.Mutex
	var result error

	for _, i := range order {
		target := b.targets[i]
		wg.Add(1)
		go func(target key.Identity) {
			defer wg.Done()
			if err := b.transport.Unicast(ctx, target, msg); err != nil {
				mu.Lock()
				result = multierror.Append(result, err)
				mu.Unlock()
			}
		}(target)
	}
	wg.Wait()
	return result
}
