package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1369, cfg.Port)
	assert.False(t, cfg.EnablePersistence)
	assert.Greater(t, cfg.ThreadpoolSize, 0)
	assert.Equal(t, uint64(1000), cfg.MaximumClients)
}

func TestLoadAppliesProjectFile(t *testing.T) {
	dir := t.TempDir()
	yaml := "host: 10.0.0.1\nport: 5555\nmaximum_clients: 5\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ahnlich-db.yaml"), []byte(yaml), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", cfg.Host)
	assert.Equal(t, 5555, cfg.Port)
	assert.Equal(t, uint64(5), cfg.MaximumClients)
}

func TestLoadPrefersYmlFallback(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ahnlich-db.yml"), []byte("port: 7777\n"), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 7777, cfg.Port)
}

func TestEnvOverridesBeatFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ahnlich-db.yaml"), []byte("port: 5555\n"), 0644))

	t.Setenv("AHNLICH_DB_PORT", "6000")
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 6000, cfg.Port)
}

func TestEnvOverridesEnablePersistence(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AHNLICH_DB_ENABLE_PERSISTENCE", "true")
	t.Setenv("AHNLICH_DB_PERSIST_LOCATION", filepath.Join(dir, "state.ahnlich"))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.True(t, cfg.EnablePersistence)
	assert.Equal(t, filepath.Join(dir, "state.ahnlich"), cfg.PersistLocation)
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := NewConfig()
	cfg.Port = 70000
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsZeroMaximumClients(t *testing.T) {
	cfg := NewConfig()
	cfg.MaximumClients = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsZeroAllocatorSize(t *testing.T) {
	cfg := NewConfig()
	cfg.AllocatorSize = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateRequiresPersistLocationWhenEnabled(t *testing.T) {
	cfg := NewConfig()
	cfg.EnablePersistence = true
	cfg.PersistLocation = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownLogLevel(t *testing.T) {
	cfg := NewConfig()
	cfg.LogLevel = "verbose"
	assert.Error(t, cfg.Validate())
}

func TestMergeWithDoesNotFlipPersistenceWithoutRelatedFields(t *testing.T) {
	cfg := NewConfig()
	cfg.EnablePersistence = true
	cfg.PersistLocation = "/var/lib/ahnlich/state"

	other := &Config{Host: "1.2.3.4"}
	cfg.mergeWith(other)

	assert.True(t, cfg.EnablePersistence)
	assert.Equal(t, "/var/lib/ahnlich/state", cfg.PersistLocation)
	assert.Equal(t, "1.2.3.4", cfg.Host)
}
