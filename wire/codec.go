package wire

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// Encode serializes a SignedMessage into a self-describing binary form
// suitable for a point-to-point transport. The protocol only ever exchanges
// this one closed set of Go types between nodes running the same build, so
// encoding/gob needs no code generation step and no external schema.
func Encode(sm SignedMessage) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(sm); err != nil {
		return nil, fmt.Errorf("wire: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode reverses Encode.
func Decode(b []byte) (SignedMessage, error) {
	var sm SignedMessage
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&sm); err != nil {
		return SignedMessage{}, fmt.Errorf("wire: decode: %w", err)
	}
	return sm, nil
}
