package sample_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dedis/sbrb/key"
	"github.com/dedis/sbrb/sample"
)

// cyclicSource is a rand.Source stand-in that walks a fixed sequence of
// roster indices, letting a test pin down exactly which roster members get
// drawn (for a power-of-two-sized roster) without depending on the real
// PRNG's output for a given seed. math/rand derives Int31() as the high 32
// bits of Int63(), so an index i is encoded as int64(i)<<32.
type cyclicSource struct {
	idx  int
	next []int64
}

func (c *cyclicSource) Int63() int64 {
	v := c.next[c.idx%len(c.next)] << 32
	c.idx++
	return v
}

func (c *cyclicSource) Seed(int64) {}

func identity(b byte) key.Identity {
	var id key.Identity
	id[0] = b
	return id
}

// TestDrawS5 matches scenario S5: a seeded draw of k=5 over a two-member
// roster [A,B] giving draws [A,A,B,A,B] should yield sample keys {A,B} and
// duplicate counts {A:3, B:2}.
func TestDrawS5(t *testing.T) {
	a, b := identity(0xA), identity(0xB)
	roster := []key.Identity{a, b}

	// Indices 0,0,1,0,1 over a 2-element roster reproduce draws [A,A,B,A,B].
	rng := rand.New(&cyclicSource{next: []int64{0, 0, 1, 0, 1}})

	set, err := sample.Draw(rng, 5, roster)
	require.NoError(t, err)
	require.ElementsMatch(t, []key.Identity{a, b}, set.Identities())
	require.Equal(t, 3, set.Duplicate(a))
	require.Equal(t, 2, set.Duplicate(b))
}

func TestDrawEmptyRoster(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	_, err := sample.Draw(rng, 3, nil)
	require.ErrorIs(t, err, key.ErrEmptyRoster)
}

func TestDuplicateDefaultsToOne(t *testing.T) {
	a := identity(0xA)
	rng := rand.New(&cyclicSource{next: []int64{0}})
	set, err := sample.Draw(rng, 1, []key.Identity{a})
	require.NoError(t, err)
	require.Equal(t, 1, set.Duplicate(identity(0xFF)))
}

// TestCountOccurrencesContagionS6 matches scenario S6: ready_sample =
// {A:{m1}, B:{m1,m2}}, duplicate_map = {A:2, B:3} should give
// {m1: 5, m2: 3}.
func TestCountOccurrencesContagionS6(t *testing.T) {
	a, b := identity(0xA), identity(0xB)
	rng := rand.New(&cyclicSource{next: []int64{0, 0, 1, 1, 1}})
	set, err := sample.Draw(rng, 5, []key.Identity{a, b})
	require.NoError(t, err)
	require.Equal(t, 2, set.Duplicate(a))
	require.Equal(t, 3, set.Duplicate(b))

	slots := map[key.Identity][]string{
		a: {"m1"},
		b: {"m1", "m2"},
	}
	occ := sample.CountOccurrencesContagion(set, slots)
	require.Equal(t, map[string]int{"m1": 5, "m2": 3}, occ)
}

func TestCountOccurrencesContagionDedupsPerIdentity(t *testing.T) {
	a := identity(0xA)
	rng := rand.New(&cyclicSource{next: []int64{0, 0}})
	set, err := sample.Draw(rng, 2, []key.Identity{a})
	require.NoError(t, err)
	require.Equal(t, 2, set.Duplicate(a))

	slots := map[key.Identity][]string{a: {"m1", "m1", "m1"}}
	occ := sample.CountOccurrencesContagion(set, slots)
	require.Equal(t, map[string]int{"m1": 2}, occ)
}

func TestCountOccurrencesSieve(t *testing.T) {
	a, b := identity(0xA), identity(0xB)
	rng := rand.New(&cyclicSource{next: []int64{0, 1}})
	set, err := sample.Draw(rng, 2, []key.Identity{a, b})
	require.NoError(t, err)

	m1 := "hello"
	slots := map[key.Identity]*string{a: &m1, b: nil}
	require.Equal(t, 1, sample.CountOccurrencesSieve(set, slots, "hello"))
}
