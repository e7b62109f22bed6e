package config

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileWritesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint16(10001), cfg.LAS.Port)
	assert.Equal(t, uint16(10002), cfg.LIS.Port)

	_, err = os.Stat(path)
	assert.NoError(t, err, "default config should be persisted")
}

func TestLoadMergesPartialFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"las": {"port": 20001}}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint16(20001), cfg.LAS.Port)
	assert.Equal(t, "0.0.0.0", cfg.LAS.Host, "omitted fields keep defaults")
	assert.Equal(t, uint16(10002), cfg.LIS.Port)
}

func TestParseRejectsInconsistentInterfacePositions(t *testing.T) {
	raw, err := json.Marshal(map[string]any{
		"core": map[string]any{
			"interface_positions":  3,
			"remote_control_status": []int{4, 5},
		},
	})
	require.NoError(t, err)

	_, err = Parse(raw)
	assert.Error(t, err)
}

func TestDuplicateTestNameRejected(t *testing.T) {
	cfg := Default()
	cfg.TestInventory.Tests = append(cfg.TestInventory.Tests, TestItemConfig{Name: "TEST001", Count: 1, Status: 1})
	assert.Error(t, Validate(cfg))
}

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	cfg, err := Load(path)
	require.NoError(t, err)
	_ = cfg

	reloaded := make(chan *Config, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = Watch(ctx, path, func(c *Config) {
		select {
		case reloaded <- c:
		default:
		}
	}, func(error) {})
	require.NoError(t, err)

	newCfg := Default()
	newCfg.Path = path
	newCfg.LAS.Port = 30001
	require.NoError(t, Save(newCfg))

	select {
	case c := <-reloaded:
		assert.Equal(t, uint16(30001), c.LAS.Port)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}
