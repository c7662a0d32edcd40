package key

import (
	"encoding/hex"
	"fmt"
	"os"
	"sort"

	"github.com/BurntSushi/toml"
)

// Roster is the set of keycards a node verifies inbound signatures against.
// Roster membership is fixed for the lifetime of a run; it is handed to the
// node once at bootstrap by an external rendezvous service (or, for this
// module's demo and tests, loaded from a TOML file on disk).
type Roster struct {
	cards map[Identity]*Keycard
	order []Identity
}

// NewRoster builds a roster from a list of keycards. Identity order is
// fixed at construction by sorting on the hex-encoded identity, matching the
// deterministic ordering the teacher's key.Group uses for its node list.
func NewRoster(cards []*Keycard) *Roster {
	r := &Roster{cards: make(map[Identity]*Keycard, len(cards))}
	for _, c := range cards {
		r.cards[c.ID] = c
	}
	ids := make([]Identity, 0, len(r.cards))
	for id := range r.cards {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	r.order = ids
	return r
}

// Get returns the keycard for id, if present.
func (r *Roster) Get(id Identity) (*Keycard, bool) {
	c, ok := r.cards[id]
	return c, ok
}

// Contains reports whether id is a roster member.
func (r *Roster) Contains(id Identity) bool {
	_, ok := r.cards[id]
	return ok
}

// Identities returns the roster's identities in a fixed, deterministic order.
func (r *Roster) Identities() []Identity {
	out := make([]Identity, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of distinct members in the roster.
func (r *Roster) Len() int {
	return len(r.order)
}

// rosterTOML is the on-disk representation of a Roster, following the same
// TOML() / FromTOML() shape the teacher's key.Group uses for its group file.
type rosterTOML struct {
	Nodes []nodeTOML
}

type nodeTOML struct {
	Addr string
	Key  string
}

// LoadRoster reads a roster file in the format written by SaveRoster.
func LoadRoster(path string) (*Roster, error) {
	var rt rosterTOML
	if _, err := toml.DecodeFile(path, &rt); err != nil {
		return nil, fmt.Errorf("key: decode roster %q: %w", path, err)
	}
	cards := make([]*Keycard, 0, len(rt.Nodes))
	for _, nt := range rt.Nodes {
		buf, err := hex.DecodeString(nt.Key)
		if err != nil {
			return nil, fmt.Errorf("key: roster entry %q: %w", nt.Addr, err)
		}
		p := G2.Point()
		if err := p.UnmarshalBinary(buf); err != nil {
			return nil, fmt.Errorf("key: roster entry %q: %w", nt.Addr, err)
		}
		card, err := NewKeycard(p, nt.Addr)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	if len(cards) == 0 {
		return nil, ErrEmptyRoster
	}
	return NewRoster(cards), nil
}

// SaveRoster writes the roster to path in the TOML format LoadRoster reads.
func SaveRoster(path string, roster *Roster) error {
	rt := rosterTOML{Nodes: make([]nodeTOML, 0, roster.Len())}
	for _, id := range roster.Identities() {
		card := roster.cards[id]
		buf, err := card.Key.MarshalBinary()
		if err != nil {
			return err
		}
		rt.Nodes = append(rt.Nodes, nodeTOML{Addr: card.Addr, Key: hex.EncodeToString(buf)})
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(rt)
}
