package config

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SettingsStore manages user settings using SQLite.
type SettingsStore struct {
	db *sql.DB
}

// Settings represents runtime-adjustable user settings. TestTitle, when
// set, is searched before the built-in fallback titles during validation.
type Settings struct {
	DefaultProviderType string `json:"default_provider_type"`
	RequestTimeout      string `json:"request_timeout"`
	TestTitle           string `json:"test_title,omitempty"`
}

// Setting keys as stored.
const (
	keyDefaultProviderType = "default_provider_type"
	keyRequestTimeout      = "request_timeout"
	keyTestTitle           = "test_title"
)

// NewSettingsStore creates a new settings store with the given database path.
func NewSettingsStore(dbPath string) (*SettingsStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SettingsStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the settings table if it doesn't exist.
func (s *SettingsStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SettingsStore) Close() error {
	return s.db.Close()
}

// GetSettings retrieves user settings, filling unset keys with defaults.
func (s *SettingsStore) GetSettings() (*Settings, error) {
	rows, err := s.db.Query("SELECT key, value FROM settings")
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	stored := map[string]string{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		stored[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	settings := &Settings{
		DefaultProviderType: "anime",
		RequestTimeout:      "15s",
	}
	if v, ok := stored[keyDefaultProviderType]; ok {
		settings.DefaultProviderType = v
	}
	if v, ok := stored[keyRequestTimeout]; ok {
		settings.RequestTimeout = v
	}
	if v, ok := stored[keyTestTitle]; ok {
		settings.TestTitle = v
	}

	return settings, nil
}

// UpdateSettings replaces user settings.
func (s *SettingsStore) UpdateSettings(settings *Settings) error {
	query := "INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)"
	pairs := map[string]string{
		keyDefaultProviderType: settings.DefaultProviderType,
		keyRequestTimeout:      settings.RequestTimeout,
		keyTestTitle:           settings.TestTitle,
	}
	for key, value := range pairs {
		if _, err := s.db.Exec(query, key, value); err != nil {
			return fmt.Errorf("failed to update setting %s: %w", key, err)
		}
	}
	return nil
}
