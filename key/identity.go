// Package key holds node identities, the schnorr signing keychain, and the
// roster of keycards a node verifies inbound messages against.
package key

import (
	"crypto/cipher"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/drand/kyber"
	"github.com/drand/kyber/pairing/bn256"
	"github.com/drand/kyber/sign"
	"github.com/drand/kyber/sign/schnorr"
	"github.com/drand/kyber/util/random"
	"golang.org/x/crypto/blake2b"
)

// Pairing is the curve suite identities and signatures live on.
var Pairing = bn256.NewSuite()

// G2 is the group used for the signing keypair.
var G2 = Pairing.G2()

type schnorrSuite struct {
	kyber.Group
}

func (s *schnorrSuite) RandomStream() cipher.Stream {
	return random.New()
}

// Scheme is the authentication scheme used to sign and verify every
// wire-level message exchanged between nodes. It is a plain (non-threshold)
// schnorr scheme, the same primitive the teacher project uses to
// self-authenticate DKG packets.
var Scheme sign.Scheme = schnorr.NewScheme(&schnorrSuite{G2})

// Identity is the 32-byte stable identifier of a node, derived from its
// verification key. It is used as a map key throughout the protocol layers.
type Identity [32]byte

// String returns the hex representation of the identity.
func (id Identity) String() string {
	return hex.EncodeToString(id[:])
}

// IdentityFromKey derives the stable identifier of a verification key.
func IdentityFromKey(pub kyber.Point) (Identity, error) {
	buf, err := pub.MarshalBinary()
	if err != nil {
		return Identity{}, err
	}
	return blake2b.Sum256(buf), nil
}

// Keycard binds an identity to its verification key and network address.
type Keycard struct {
	ID   Identity
	Key  kyber.Point
	Addr string
}

// NewKeycard derives a keycard from a verification key and address.
func NewKeycard(pub kyber.Point, addr string) (*Keycard, error) {
	id, err := IdentityFromKey(pub)
	if err != nil {
		return nil, err
	}
	return &Keycard{ID: id, Key: pub, Addr: addr}, nil
}

// Verify checks that sig is a valid Scheme signature over msg under this
// keycard's verification key.
func (k *Keycard) Verify(msg, sig []byte) error {
	return Scheme.Verify(k.Key, msg, sig)
}

// Private is a freshly generated signing key paired with its public keycard.
type Private struct {
	Scalar kyber.Scalar
	Public *Keycard
}

// NewKeyPair generates a new signing keypair bound to addr.
func NewKeyPair(addr string) (*Private, error) {
	sc := G2.Scalar().Pick(random.New())
	pub := G2.Point().Mul(sc, nil)
	card, err := NewKeycard(pub, addr)
	if err != nil {
		return nil, err
	}
	return &Private{Scalar: sc, Public: card}, nil
}

// SavePrivate writes priv's hex-encoded scalar and address to path, in the
// minimal format LoadPrivate reads back. Per the spec's Non-goals this is
// not protocol state — it is bootstrap material, the private-key analogue
// of SaveRoster/LoadRoster.
func SavePrivate(path string, priv *Private) error {
	buf, err := priv.Scalar.MarshalBinary()
	if err != nil {
		return err
	}
	body := hex.EncodeToString(buf) + "\n" + priv.Public.Addr + "\n"
	return os.WriteFile(path, []byte(body), 0o600)
}

// LoadPrivate reads a private key file written by SavePrivate.
func LoadPrivate(path string) (*Private, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("key: read %q: %w", path, err)
	}
	lines := strings.SplitN(strings.TrimRight(string(raw), "\n"), "\n", 2)
	if len(lines) != 2 {
		return nil, fmt.Errorf("key: malformed private key file %q", path)
	}
	buf, err := hex.DecodeString(lines[0])
	if err != nil {
		return nil, fmt.Errorf("key: %q: %w", path, err)
	}
	sc := G2.Scalar()
	if err := sc.UnmarshalBinary(buf); err != nil {
		return nil, fmt.Errorf("key: %q: %w", path, err)
	}
	pub := G2.Point().Mul(sc, nil)
	card, err := NewKeycard(pub, lines[1])
	if err != nil {
		return nil, err
	}
	return &Private{Scalar: sc, Public: card}, nil
}

// KeyChain is the signing identity of the local node. It is immutable after
// construction and safe to share read-only across handler goroutines.
type KeyChain struct {
	priv *Private
}

// NewKeyChain wraps a generated or loaded private key.
func NewKeyChain(priv *Private) *KeyChain {
	return &KeyChain{priv: priv}
}

// Identity returns this node's own keycard.
func (kc *KeyChain) Identity() *Keycard {
	return kc.priv.Public
}

// Sign produces a Scheme signature over msg.
func (kc *KeyChain) Sign(msg []byte) ([]byte, error) {
	return Scheme.Sign(kc.priv.Scalar, msg)
}

// ErrEmptyRoster is returned when a roster has no members to draw from.
var ErrEmptyRoster = errors.New("key: roster has no members")
