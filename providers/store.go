package providers

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store manages provider configurations using SQLite.
type Store struct {
	db *sql.DB
}

// Update represents fields that can be updated on a stored config.
type Update struct {
	Name            *string
	Host            *HostConfig
	Queries         map[string]QueryTemplate
	Version         *string
	Confidence      *float64
	LastValidatedAt *time.Time
}

// Filter represents filtering options for listing configs.
type Filter struct {
	Type      *ProviderType
	Builtin   *bool
	Validated *bool // true: only configs with a last_validated_at; false: only never-validated
	Limit     int
	Offset    int
}

// NewStore creates a new provider store with the given database path.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the providers table if it doesn't exist.
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS providers (
		slug TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		host TEXT NOT NULL,
		queries TEXT NOT NULL,
		version TEXT NOT NULL,
		builtin INTEGER DEFAULT 0,
		confidence REAL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		last_validated_at TEXT
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create persists a new provider config. The config's CreatedAt/UpdatedAt
// are set here.
func (s *Store) Create(cfg *DynamicProviderConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	now := time.Now()
	cfg.CreatedAt = now
	cfg.UpdatedAt = now

	hostJSON, err := json.Marshal(cfg.Host)
	if err != nil {
		return fmt.Errorf("failed to marshal host: %w", err)
	}
	queriesJSON, err := json.Marshal(cfg.Queries)
	if err != nil {
		return fmt.Errorf("failed to marshal queries: %w", err)
	}

	query := `
		INSERT INTO providers (
			slug, name, type, host, queries, version, builtin,
			confidence, created_at, updated_at, last_validated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.Exec(query,
		cfg.Slug,
		cfg.Name,
		string(cfg.Type),
		string(hostJSON),
		string(queriesJSON),
		cfg.Version,
		boolToInt(cfg.Builtin),
		cfg.Confidence,
		formatTime(&cfg.CreatedAt),
		formatTime(&cfg.UpdatedAt),
		formatTime(cfg.LastValidatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") ||
			strings.Contains(err.Error(), "unique constraint") {
			return ErrDuplicateSlug
		}
		return fmt.Errorf("failed to insert provider: %w", err)
	}

	return nil
}

// Get retrieves a provider config by slug.
func (s *Store) Get(slug string) (*DynamicProviderConfig, error) {
	query := `
		SELECT slug, name, type, host, queries, version, builtin,
		       confidence, created_at, updated_at, last_validated_at
		FROM providers
		WHERE slug = ?
	`

	var slugCol, name, typeCol, hostJSON, queriesJSON, version, createdAtStr, updatedAtStr string
	var builtin int
	var confidence float64
	var lastValidatedAtStr sql.NullString

	err := s.db.QueryRow(query, slug).Scan(
		&slugCol, &name, &typeCol, &hostJSON, &queriesJSON, &version,
		&builtin, &confidence, &createdAtStr, &updatedAtStr, &lastValidatedAtStr,
	)

	if err == sql.ErrNoRows {
		return nil, ErrProviderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query provider: %w", err)
	}

	return scanProvider(
		slugCol, name, typeCol, hostJSON, queriesJSON, version,
		builtin, confidence, createdAtStr, updatedAtStr, lastValidatedAtStr,
	)
}

// List lists provider configs with optional filtering.
func (s *Store) List(filter Filter) ([]DynamicProviderConfig, error) {
	query := `
		SELECT slug, name, type, host, queries, version, builtin,
		       confidence, created_at, updated_at, last_validated_at
		FROM providers
	`

	var whereClauses []string
	var args []any

	if filter.Type != nil {
		whereClauses = append(whereClauses, "type = ?")
		args = append(args, string(*filter.Type))
	}

	if filter.Builtin != nil {
		whereClauses = append(whereClauses, "builtin = ?")
		args = append(args, boolToInt(*filter.Builtin))
	}

	if filter.Validated != nil {
		if *filter.Validated {
			whereClauses = append(whereClauses, "last_validated_at IS NOT NULL")
		} else {
			whereClauses = append(whereClauses, "last_validated_at IS NULL")
		}
	}

	if len(whereClauses) > 0 {
		query += " WHERE " + strings.Join(whereClauses, " AND ")
	}

	query += " ORDER BY slug ASC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query providers: %w", err)
	}
	defer rows.Close()

	var configs []DynamicProviderConfig
	for rows.Next() {
		var slugCol, name, typeCol, hostJSON, queriesJSON, version, createdAtStr, updatedAtStr string
		var builtin int
		var confidence float64
		var lastValidatedAtStr sql.NullString

		err := rows.Scan(
			&slugCol, &name, &typeCol, &hostJSON, &queriesJSON, &version,
			&builtin, &confidence, &createdAtStr, &updatedAtStr, &lastValidatedAtStr,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan provider: %w", err)
		}

		cfg, err := scanProvider(
			slugCol, name, typeCol, hostJSON, queriesJSON, version,
			builtin, confidence, createdAtStr, updatedAtStr, lastValidatedAtStr,
		)
		if err != nil {
			return nil, err
		}

		configs = append(configs, *cfg)
	}

	return configs, nil
}

// UpdateProvider updates a stored config with the provided fields.
func (s *Store) UpdateProvider(slug string, update Update) error {
	setClauses := []string{"updated_at = ?"}
	now := time.Now()
	args := []any{formatTime(&now)}

	if update.Name != nil {
		setClauses = append(setClauses, "name = ?")
		args = append(args, *update.Name)
	}
	if update.Host != nil {
		data, err := json.Marshal(update.Host)
		if err != nil {
			return fmt.Errorf("failed to marshal host: %w", err)
		}
		setClauses = append(setClauses, "host = ?")
		args = append(args, string(data))
	}
	if update.Queries != nil {
		data, err := json.Marshal(update.Queries)
		if err != nil {
			return fmt.Errorf("failed to marshal queries: %w", err)
		}
		setClauses = append(setClauses, "queries = ?")
		args = append(args, string(data))
	}
	if update.Version != nil {
		setClauses = append(setClauses, "version = ?")
		args = append(args, *update.Version)
	}
	if update.Confidence != nil {
		setClauses = append(setClauses, "confidence = ?")
		args = append(args, *update.Confidence)
	}
	if update.LastValidatedAt != nil {
		setClauses = append(setClauses, "last_validated_at = ?")
		args = append(args, formatTime(update.LastValidatedAt))
	}

	args = append(args, slug)

	query := fmt.Sprintf("UPDATE providers SET %s WHERE slug = ?",
		strings.Join(setClauses, ", "))

	result, err := s.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update provider: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrProviderNotFound
	}

	return nil
}

// TouchValidated records a successful validation at time t.
func (s *Store) TouchValidated(slug string, t time.Time) error {
	return s.UpdateProvider(slug, Update{LastValidatedAt: &t})
}

// Delete deletes a provider config.
func (s *Store) Delete(slug string) error {
	result, err := s.db.Exec("DELETE FROM providers WHERE slug = ?", slug)
	if err != nil {
		return fmt.Errorf("failed to delete provider: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrProviderNotFound
	}

	return nil
}

// scanProvider is a shared helper that parses SQL row data into a config
// struct. This eliminates duplication between Get and List.
func scanProvider(
	slug, name, typeCol, hostJSON, queriesJSON, version string,
	builtin int,
	confidence float64,
	createdAtStr, updatedAtStr string,
	lastValidatedAtStr sql.NullString,
) (*DynamicProviderConfig, error) {
	cfg := &DynamicProviderConfig{
		Slug:       slug,
		Name:       name,
		Type:       ProviderType(typeCol),
		Version:    version,
		Builtin:    builtin != 0,
		Confidence: confidence,
		CreatedAt:  parseTime(createdAtStr),
		UpdatedAt:  parseTime(updatedAtStr),
	}

	if err := json.Unmarshal([]byte(hostJSON), &cfg.Host); err != nil {
		return nil, fmt.Errorf("failed to unmarshal host: %w", err)
	}
	if err := json.Unmarshal([]byte(queriesJSON), &cfg.Queries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal queries: %w", err)
	}

	if lastValidatedAtStr.Valid {
		t := parseTime(lastValidatedAtStr.String)
		cfg.LastValidatedAt = &t
	}

	return cfg, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Helper functions for time formatting
func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	// Strip monotonic clock for consistent storage and comparisons
	return t.Truncate(0).Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	// Try RFC3339Nano first, fall back to RFC3339 for compatibility
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, s)
	}
	// Strip monotonic clock for consistent comparisons
	return t.Truncate(0)
}
