package key_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dedis/sbrb/key"
)

func newTestKeyPair(t *testing.T, addr string) *key.Private {
	t.Helper()
	priv, err := key.NewKeyPair(addr)
	require.NoError(t, err)
	return priv
}

func TestRosterRoundTrip(t *testing.T) {
	a := newTestKeyPair(t, "127.0.0.1:9001")
	b := newTestKeyPair(t, "127.0.0.1:9002")
	roster := key.NewRoster([]*key.Keycard{a.Public, b.Public})
	require.Equal(t, 2, roster.Len())

	dir := t.TempDir()
	path := filepath.Join(dir, "roster.toml")
	require.NoError(t, key.SaveRoster(path, roster))

	loaded, err := key.LoadRoster(path)
	require.NoError(t, err)
	require.Equal(t, roster.Len(), loaded.Len())

	for _, id := range roster.Identities() {
		card, ok := loaded.Get(id)
		require.True(t, ok)
		require.True(t, roster.Contains(card.ID))
	}
}

func TestLoadRosterEmptyFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.toml")
	require.NoError(t, os.WriteFile(path, []byte("Nodes = []\n"), 0o600))

	_, err := key.LoadRoster(path)
	require.ErrorIs(t, err, key.ErrEmptyRoster)
}
