package replica

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shinyes/deltasync/pkg/lattice"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, 50*time.Millisecond, cfg.ShipInterval)
	require.Equal(t, 10*time.Second, cfg.GCInterval)
	require.Equal(t, uint64(1000), cfg.ShipBacklogMax)
}

func TestLoadConfig_FillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: r1\nshipInterval: 25ms\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "r1", cfg.Name)
	require.Equal(t, 25*time.Millisecond, cfg.ShipInterval)

	// Unset fields take defaults.
	require.Equal(t, 10*time.Second, cfg.GCInterval)
	require.Equal(t, 1024, cfg.InboxSize)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadConfig_BadYaml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("shipInterval: [broken"), 0o600))
	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestWithConfig_KeepsEarlierName(t *testing.T) {
	r, err := New(lattice.ORSetLattice{}, WithName("kept"), WithConfig(Config{ShipInterval: time.Second}))
	require.NoError(t, err)
	require.Equal(t, "kept", r.Name())
	require.Equal(t, time.Second, r.cfg.ShipInterval)
}
