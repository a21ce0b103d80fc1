package providers

import (
	"encoding/json"
	"fmt"
	"os"
)

// WriteConfigFile exports a config as indented JSON, suitable for sharing
// or hand-editing.
func WriteConfigFile(path string, cfg *DynamicProviderConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal provider config: %w", err)
	}

	// Write to file (0600: owner-only read/write)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write provider config: %w", err)
	}

	return nil
}

// ReadConfigFile loads and validates a config from a JSON file.
func ReadConfigFile(path string) (*DynamicProviderConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read provider config: %w", err)
	}

	var cfg DynamicProviderConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal provider config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid provider config: %w", err)
	}

	return &cfg, nil
}
