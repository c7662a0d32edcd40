package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dedis/sbrb/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "broadcast.config")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestParseFile(t *testing.T) {
	path := writeConfig(t, "addr=127.0.0.1\nport=9001\nN=4\nG=2\nE=3\nE_thr=2\nR=3\nR_thr=2\nD=3\nD_thr=2\n")
	c, err := config.ParseFile(path, nil)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1", c.Addr)
	require.Equal(t, 9001, c.Port)
	require.Equal(t, 4, c.N)
	require.Equal(t, 2, c.Gossip)
	require.Equal(t, 3, c.Echo)
	require.Equal(t, 2, c.EchoThreshold)
	require.Equal(t, 3, c.Ready)
	require.Equal(t, 2, c.ReadyThreshold)
	require.Equal(t, 3, c.Delivery)
	require.Equal(t, 2, c.DeliveryThreshold)
}

func TestParseFileWarnsUnknownKey(t *testing.T) {
	path := writeConfig(t, "addr=127.0.0.1\nport=9001\nbogus=1\n")
	var warnings []string
	_, err := config.ParseFile(path, func(s string) { warnings = append(warnings, s) })
	require.NoError(t, err)
	require.Len(t, warnings, 1)
}

func TestParseFileRejectsMalformedLine(t *testing.T) {
	path := writeConfig(t, "not-a-kv-line\n")
	_, err := config.ParseFile(path, nil)
	require.Error(t, err)
}

func TestParseArgs(t *testing.T) {
	c, err := config.ParseArgs("127.0.0.1", []int{9001, 4, 2, 3, 2, 3, 2, 3, 2})
	require.NoError(t, err)
	require.Equal(t, 9001, c.Port)
	require.Equal(t, 4, c.N)
	require.Equal(t, 2, c.Gossip)
	require.Equal(t, 2, c.DeliveryThreshold)
}

func TestParseArgsWrongCount(t *testing.T) {
	_, err := config.ParseArgs("127.0.0.1", []int{1, 2, 3})
	require.Error(t, err)
}
