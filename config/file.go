package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// HTTPConfig tunes outbound request behaviour.
type HTTPConfig struct {
	Timeout   string `yaml:"timeout"`
	UserAgent string `yaml:"user_agent"`
}

// RateLimitConfig throttles crawling and validation traffic.
type RateLimitConfig struct {
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

// StorageConfig points the stores at their database files.
type StorageConfig struct {
	Providers struct {
		DSN string `yaml:"dsn"`
	} `yaml:"providers"`
	History struct {
		DSN string `yaml:"dsn"`
	} `yaml:"history"`
}

// DefaultsConfig holds per-user defaults for autoconfig runs.
type DefaultsConfig struct {
	ProviderType string `yaml:"provider_type"`
	TestTitle    string `yaml:"test_title"`
}

// FileConfig represents the structure of ~/.unagi/config.yaml.
type FileConfig struct {
	DataDir   string          `yaml:"data_dir"`
	HTTP      HTTPConfig      `yaml:"http"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Defaults  DefaultsConfig  `yaml:"defaults"`
	Storage   StorageConfig   `yaml:"storage"`
}

// ConfigFilePath returns the path of the user config file,
// ~/.unagi/config.yaml.
func ConfigFilePath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".unagi", "config.yaml"), nil
}

// LoadConfigFile loads configuration from ~/.unagi/config.yaml. Returns nil
// if the file doesn't exist (not an error). Returns error if the file exists
// but cannot be parsed.
func LoadConfigFile() (*FileConfig, error) {
	configPath, err := ConfigFilePath()
	if err != nil {
		return nil, err
	}

	// Check if file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, nil // File doesn't exist -- not an error
	}

	// Read file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

// defaultConfigContent is written by WriteDefaultConfigFile. Every value
// matches the built-in default, so a fresh file changes nothing until edited.
const defaultConfigContent = `# unagi configuration file
#
# data_dir is where unagi keeps its databases. Defaults to ~/.unagi.
# data_dir: "/home/you/.unagi"

http:
  timeout: "15s"
  # user_agent: "unagi/1.0 (media catalog aggregator)"

rate_limit:
  per_second: 2
  burst: 4

defaults:
  provider_type: "anime"
  # test_title: "One Piece"

# Override individual database locations. When unset they live under
# data_dir as providers.db and history.db.
# storage:
#   providers:
#     dsn: "/home/you/.unagi/providers.db"
#   history:
#     dsn: "/home/you/.unagi/history.db"
`

// WriteDefaultConfigFile creates ~/.unagi/config.yaml pre-filled with the
// built-in defaults. Returns true if the file was written, false if it
// already existed and force was not set.
func WriteDefaultConfigFile(force bool) (bool, error) {
	configPath, err := ConfigFilePath()
	if err != nil {
		return false, err
	}

	if _, err := os.Stat(configPath); err == nil && !force {
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o700); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(defaultConfigContent), 0o600); err != nil {
		return false, fmt.Errorf("failed to write config file: %w", err)
	}

	return true, nil
}

// DefaultDataDir returns the directory unagi keeps its databases in,
// honouring data_dir from the config file when cfg is non-nil.
func DefaultDataDir(cfg *FileConfig) (string, error) {
	if cfg != nil && cfg.DataDir != "" {
		return cfg.DataDir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".unagi"), nil
}

// ProvidersDBPath resolves the provider store path: explicit DSN from the
// config file, else providers.db under the data directory.
func ProvidersDBPath(cfg *FileConfig) (string, error) {
	if cfg != nil && cfg.Storage.Providers.DSN != "" {
		return cfg.Storage.Providers.DSN, nil
	}
	dataDir, err := DefaultDataDir(cfg)
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "providers.db"), nil
}

// HistoryDBPath resolves the history store path the same way.
func HistoryDBPath(cfg *FileConfig) (string, error) {
	if cfg != nil && cfg.Storage.History.DSN != "" {
		return cfg.Storage.History.DSN, nil
	}
	dataDir, err := DefaultDataDir(cfg)
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "history.db"), nil
}
