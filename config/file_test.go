package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFile_NoFile(t *testing.T) {
	// Create a temporary directory that definitely doesn't have a config file
	tmpDir := t.TempDir()

	// Temporarily change HOME to point to tmpDir
	oldHome := os.Getenv("HOME")
	os.Setenv("HOME", tmpDir)
	defer os.Setenv("HOME", oldHome)

	cfg, err := LoadConfigFile()
	require.NoError(t, err)
	assert.Nil(t, cfg, "Should return nil when config file doesn't exist")
}

func TestLoadConfigFile_ValidConfig(t *testing.T) {
	// Create a temporary directory
	tmpDir := t.TempDir()

	// Create .unagi directory
	unagiDir := filepath.Join(tmpDir, ".unagi")
	require.NoError(t, os.MkdirAll(unagiDir, 0o700))

	// Write a valid config file
	configPath := filepath.Join(unagiDir, "config.yaml")
	configContent := `data_dir: "/var/lib/unagi"
http:
  timeout: "20s"
  user_agent: "unagi/1.0"
rate_limit:
  per_second: 2
  burst: 4
defaults:
  provider_type: "manga"
  test_title: "Berserk"
storage:
  providers:
    dsn: "/var/lib/unagi/providers.db"
  history:
    dsn: "/var/lib/unagi/history.db"
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0o600))

	// Temporarily change HOME to point to tmpDir
	oldHome := os.Getenv("HOME")
	os.Setenv("HOME", tmpDir)
	defer os.Setenv("HOME", oldHome)

	cfg, err := LoadConfigFile()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "/var/lib/unagi", cfg.DataDir)
	assert.Equal(t, "20s", cfg.HTTP.Timeout)
	assert.Equal(t, "unagi/1.0", cfg.HTTP.UserAgent)
	assert.Equal(t, 2.0, cfg.RateLimit.PerSecond)
	assert.Equal(t, 4, cfg.RateLimit.Burst)
	assert.Equal(t, "manga", cfg.Defaults.ProviderType)
	assert.Equal(t, "Berserk", cfg.Defaults.TestTitle)
	assert.Equal(t, "/var/lib/unagi/providers.db", cfg.Storage.Providers.DSN)
	assert.Equal(t, "/var/lib/unagi/history.db", cfg.Storage.History.DSN)
}

func TestLoadConfigFile_InvalidYAML(t *testing.T) {
	// Create a temporary directory
	tmpDir := t.TempDir()

	// Create .unagi directory
	unagiDir := filepath.Join(tmpDir, ".unagi")
	require.NoError(t, os.MkdirAll(unagiDir, 0o700))

	// Write an invalid config file
	configPath := filepath.Join(unagiDir, "config.yaml")
	invalidContent := `storage:
  providers:
    dsn: "/var/lib/unagi/providers.db"
  history:
    - this is invalid yaml because history should be an object not a list
`
	require.NoError(t, os.WriteFile(configPath, []byte(invalidContent), 0o600))

	// Temporarily change HOME to point to tmpDir
	oldHome := os.Getenv("HOME")
	os.Setenv("HOME", tmpDir)
	defer os.Setenv("HOME", oldHome)

	cfg, err := LoadConfigFile()
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoadConfigFile_PartialConfig(t *testing.T) {
	// Create a temporary directory
	tmpDir := t.TempDir()

	// Create .unagi directory
	unagiDir := filepath.Join(tmpDir, ".unagi")
	require.NoError(t, os.MkdirAll(unagiDir, 0o700))

	// Write a partial config file (only HTTP tuning, no storage)
	configPath := filepath.Join(unagiDir, "config.yaml")
	configContent := `http:
  timeout: "45s"
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0o600))

	// Temporarily change HOME to point to tmpDir
	oldHome := os.Getenv("HOME")
	os.Setenv("HOME", tmpDir)
	defer os.Setenv("HOME", oldHome)

	cfg, err := LoadConfigFile()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "45s", cfg.HTTP.Timeout)
	assert.Equal(t, "", cfg.DataDir, "Unspecified data dir should be empty string")
	assert.Equal(t, "", cfg.Storage.Providers.DSN, "Unspecified providers DSN should be empty string")
}

func TestWriteDefaultConfigFile(t *testing.T) {
	tmpDir := t.TempDir()

	oldHome := os.Getenv("HOME")
	os.Setenv("HOME", tmpDir)
	defer os.Setenv("HOME", oldHome)

	// First write creates the file
	created, err := WriteDefaultConfigFile(false)
	require.NoError(t, err)
	assert.True(t, created)

	configPath, err := ConfigFilePath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmpDir, ".unagi", "config.yaml"), configPath)

	// The written defaults must parse
	cfg, err := LoadConfigFile()
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "15s", cfg.HTTP.Timeout)
	assert.Equal(t, "anime", cfg.Defaults.ProviderType)

	// Second write without force is a no-op
	created, err = WriteDefaultConfigFile(false)
	require.NoError(t, err)
	assert.False(t, created)

	// Force overwrites an edited file
	require.NoError(t, os.WriteFile(configPath, []byte("data_dir: /custom"), 0o600))
	created, err = WriteDefaultConfigFile(true)
	require.NoError(t, err)
	assert.True(t, created)

	cfg, err = LoadConfigFile()
	require.NoError(t, err)
	assert.Equal(t, "", cfg.DataDir)
}

func TestDBPathResolution(t *testing.T) {
	explicit := &FileConfig{}
	explicit.DataDir = "/data/unagi"

	providersPath, err := ProvidersDBPath(explicit)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/data/unagi", "providers.db"), providersPath)

	historyPath, err := HistoryDBPath(explicit)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/data/unagi", "history.db"), historyPath)

	// An explicit DSN wins over the data dir
	explicit.Storage.Providers.DSN = "/elsewhere/p.db"
	providersPath, err = ProvidersDBPath(explicit)
	require.NoError(t, err)
	assert.Equal(t, "/elsewhere/p.db", providersPath)

	// With no config at all, paths land under the home directory
	tmpDir := t.TempDir()
	oldHome := os.Getenv("HOME")
	os.Setenv("HOME", tmpDir)
	defer os.Setenv("HOME", oldHome)

	providersPath, err = ProvidersDBPath(nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmpDir, ".unagi", "providers.db"), providersPath)
}
