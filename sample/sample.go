// Package sample draws the random peer samples that back every layer of the
// broadcast (Murmur's gossip fan-out, Sieve's echo sample, Contagion's ready
// and delivery samples) and turns the resulting draw multiplicities into the
// weighted occurrence counts the threshold checks compare against.
package sample

import (
	"math/rand"

	"github.com/dedis/sbrb/key"
)

// Set is the result of drawing k identities with replacement from a roster:
// the distinct identities drawn, in first-seen order, plus how many times
// each one was drawn. Sampling with replacement (and weighting by draw
// count) is what gives the threshold checks their probabilistic guarantee —
// a peer drawn twice must count twice toward any threshold it crosses.
type Set struct {
	ids []key.Identity
	dup map[key.Identity]int
}

// Draw picks k identities uniformly at random, with replacement, from
// roster using rng. The caller supplies rng explicitly (rather than a
// package-level source) so tests can inject a deterministic sequence.
func Draw(rng *rand.Rand, k int, roster []key.Identity) (*Set, error) {
	if len(roster) == 0 {
		return nil, key.ErrEmptyRoster
	}
	s := &Set{dup: make(map[key.Identity]int, k)}
	for i := 0; i < k; i++ {
		id := roster[rng.Intn(len(roster))]
		if _, ok := s.dup[id]; !ok {
			s.ids = append(s.ids, id)
		}
		s.dup[id]++
	}
	return s, nil
}

// Identities returns the distinct drawn identities, in first-seen order.
func (s *Set) Identities() []key.Identity {
	out := make([]key.Identity, len(s.ids))
	copy(out, s.ids)
	return out
}

// Duplicate returns how many times id was drawn (1 if id was not drawn by
// this set at all, matching the "or 1 if absent" default used throughout
// the threshold-counting rules).
func (s *Set) Duplicate(id key.Identity) int {
	if n, ok := s.dup[id]; ok {
		return n
	}
	return 1
}

// Contains reports whether id was drawn into this sample.
func (s *Set) Contains(id key.Identity) bool {
	_, ok := s.dup[id]
	return ok
}

// Len returns the number of distinct identities in the sample.
func (s *Set) Len() int {
	return len(s.ids)
}
