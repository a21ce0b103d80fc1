// Package history tracks what the user has watched and read, plus the
// named lists (watching, completed, planned) they sort media into.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/mvachon/unagi/providers"
)

// Custom errors for history operations
var (
	ErrNotFound    = errors.New("history entry not found")
	ErrUnknownList = errors.New("unknown list name")
)

// Named lists media can be sorted into. A title lives in at most one list.
const (
	ListWatching  = "watching"
	ListCompleted = "completed"
	ListPlanned   = "planned"
)

var knownLists = map[string]bool{
	ListWatching:  true,
	ListCompleted: true,
	ListPlanned:   true,
}

// Entry records progress on one title from one provider. Number is the
// last episode or chapter consumed; Position is seconds into an episode
// or the page index within a chapter.
type Entry struct {
	ID           uuid.UUID              `json:"id"`
	ProviderSlug string                 `json:"provider_slug"`
	MediaID      string                 `json:"media_id"`
	Title        string                 `json:"title"`
	Type         providers.ProviderType `json:"type"`
	Number       float64                `json:"number"`
	Position     int                    `json:"position"`
	WatchedAt    time.Time              `json:"watched_at"`
}

// ListItem is one title's membership in a named list.
type ListItem struct {
	ID           uuid.UUID              `json:"id"`
	List         string                 `json:"list"`
	ProviderSlug string                 `json:"provider_slug"`
	MediaID      string                 `json:"media_id"`
	Title        string                 `json:"title"`
	Type         providers.ProviderType `json:"type"`
	AddedAt      time.Time              `json:"added_at"`
}

// Store persists history and lists using SQLite.
type Store struct {
	db *sql.DB
}

// NewStore creates a history store with the given database path.
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

// initSchema creates the database tables if they don't exist.
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS history (
		id TEXT PRIMARY KEY,
		provider_slug TEXT NOT NULL,
		media_id TEXT NOT NULL,
		title TEXT NOT NULL,
		type TEXT NOT NULL,
		number REAL DEFAULT 0,
		position INTEGER DEFAULT 0,
		watched_at TEXT NOT NULL,
		UNIQUE(provider_slug, media_id)
	);

	CREATE TABLE IF NOT EXISTS lists (
		id TEXT PRIMARY KEY,
		list TEXT NOT NULL,
		provider_slug TEXT NOT NULL,
		media_id TEXT NOT NULL,
		title TEXT NOT NULL,
		type TEXT NOT NULL,
		added_at TEXT NOT NULL,
		UNIQUE(provider_slug, media_id)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record upserts progress for one title. Re-recording the same title from
// the same provider keeps its entry id and refreshes progress.
func (s *Store) Record(entry Entry) (*Entry, error) {
	if entry.ProviderSlug == "" || entry.MediaID == "" || entry.Title == "" {
		return nil, errors.New("provider_slug, media_id, and title are required")
	}
	if entry.Type != providers.TypeAnime && entry.Type != providers.TypeManga {
		return nil, providers.ErrInvalidProviderType
	}
	if entry.WatchedAt.IsZero() {
		entry.WatchedAt = time.Now()
	}

	// Keep the existing id on re-watch so external references stay stable
	var existingID string
	err := s.db.QueryRow(
		"SELECT id FROM history WHERE provider_slug = ? AND media_id = ?",
		entry.ProviderSlug, entry.MediaID,
	).Scan(&existingID)
	switch {
	case err == sql.ErrNoRows:
		entry.ID = uuid.New()
	case err != nil:
		return nil, fmt.Errorf("failed to query history: %w", err)
	default:
		entry.ID, _ = uuid.Parse(existingID)
	}

	query := `
		INSERT OR REPLACE INTO history (
			id, provider_slug, media_id, title, type, number, position, watched_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.Exec(query,
		entry.ID.String(),
		entry.ProviderSlug,
		entry.MediaID,
		entry.Title,
		string(entry.Type),
		entry.Number,
		entry.Position,
		formatTime(entry.WatchedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert history entry: %w", err)
	}

	return &entry, nil
}

// Resume retrieves the progress entry for one title, or nil if the title
// has never been watched.
func (s *Store) Resume(providerSlug, mediaID string) (*Entry, error) {
	query := `
		SELECT id, provider_slug, media_id, title, type, number, position, watched_at
		FROM history
		WHERE provider_slug = ? AND media_id = ?
	`

	entry, err := scanEntry(s.db.QueryRow(query, providerSlug, mediaID))
	if err == sql.ErrNoRows {
		return nil, nil // Never watched (not an error)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	return entry, nil
}

// Recent lists history entries, most recent first. A non-positive limit
// falls back to 50.
func (s *Store) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, provider_slug, media_id, title, type, number, position, watched_at
		FROM history
		ORDER BY watched_at DESC
		LIMIT ?
	`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entries = append(entries, *entry)
	}

	return entries, rows.Err()
}

// Remove deletes one history entry by id.
func (s *Store) Remove(id uuid.UUID) error {
	result, err := s.db.Exec("DELETE FROM history WHERE id = ?", id.String())
	if err != nil {
		return fmt.Errorf("failed to delete history entry: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Clear deletes all history entries.
func (s *Store) Clear() error {
	if _, err := s.db.Exec("DELETE FROM history"); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

// SetList places a title in a named list, moving it if it was already in
// another one.
func (s *Store) SetList(list string, item ListItem) (*ListItem, error) {
	if !knownLists[list] {
		return nil, fmt.Errorf("%w: %q", ErrUnknownList, list)
	}
	if item.ProviderSlug == "" || item.MediaID == "" || item.Title == "" {
		return nil, errors.New("provider_slug, media_id, and title are required")
	}
	if item.Type != providers.TypeAnime && item.Type != providers.TypeManga {
		return nil, providers.ErrInvalidProviderType
	}

	item.List = list
	item.AddedAt = time.Now()

	var existingID string
	err := s.db.QueryRow(
		"SELECT id FROM lists WHERE provider_slug = ? AND media_id = ?",
		item.ProviderSlug, item.MediaID,
	).Scan(&existingID)
	switch {
	case err == sql.ErrNoRows:
		item.ID = uuid.New()
	case err != nil:
		return nil, fmt.Errorf("failed to query lists: %w", err)
	default:
		item.ID, _ = uuid.Parse(existingID)
	}

	query := `
		INSERT OR REPLACE INTO lists (
			id, list, provider_slug, media_id, title, type, added_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.Exec(query,
		item.ID.String(),
		item.List,
		item.ProviderSlug,
		item.MediaID,
		item.Title,
		string(item.Type),
		formatTime(item.AddedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert list item: %w", err)
	}

	return &item, nil
}

// Entries lists the members of one named list, most recently added first.
func (s *Store) Entries(list string) ([]ListItem, error) {
	if !knownLists[list] {
		return nil, fmt.Errorf("%w: %q", ErrUnknownList, list)
	}

	query := `
		SELECT id, list, provider_slug, media_id, title, type, added_at
		FROM lists
		WHERE list = ?
		ORDER BY added_at DESC
	`

	rows, err := s.db.Query(query, list)
	if err != nil {
		return nil, fmt.Errorf("failed to query lists: %w", err)
	}
	defer rows.Close()

	var items []ListItem
	for rows.Next() {
		var item ListItem
		var idStr, typeStr, addedAtStr string
		if err := rows.Scan(&idStr, &item.List, &item.ProviderSlug, &item.MediaID,
			&item.Title, &typeStr, &addedAtStr); err != nil {
			return nil, fmt.Errorf("failed to scan list item: %w", err)
		}
		item.ID, _ = uuid.Parse(idStr)
		item.Type = providers.ProviderType(typeStr)
		item.AddedAt = parseTime(addedAtStr)
		items = append(items, item)
	}

	return items, rows.Err()
}

// ListFor reports which list a title is in, or nil if it is unlisted.
func (s *Store) ListFor(providerSlug, mediaID string) (*ListItem, error) {
	query := `
		SELECT id, list, provider_slug, media_id, title, type, added_at
		FROM lists
		WHERE provider_slug = ? AND media_id = ?
	`

	var item ListItem
	var idStr, typeStr, addedAtStr string
	err := s.db.QueryRow(query, providerSlug, mediaID).Scan(
		&idStr, &item.List, &item.ProviderSlug, &item.MediaID,
		&item.Title, &typeStr, &addedAtStr,
	)
	if err == sql.ErrNoRows {
		return nil, nil // Not listed (not an error)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query lists: %w", err)
	}

	item.ID, _ = uuid.Parse(idStr)
	item.Type = providers.ProviderType(typeStr)
	item.AddedAt = parseTime(addedAtStr)
	return &item, nil
}

// RemoveFromList takes a title out of whatever list it is in.
func (s *Store) RemoveFromList(providerSlug, mediaID string) error {
	result, err := s.db.Exec(
		"DELETE FROM lists WHERE provider_slug = ? AND media_id = ?",
		providerSlug, mediaID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete list item: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// rowScanner covers both sql.Row and sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var entry Entry
	var idStr, typeStr, watchedAtStr string
	if err := row.Scan(&idStr, &entry.ProviderSlug, &entry.MediaID, &entry.Title,
		&typeStr, &entry.Number, &entry.Position, &watchedAtStr); err != nil {
		return nil, err
	}
	entry.ID, _ = uuid.Parse(idStr)
	entry.Type = providers.ProviderType(typeStr)
	entry.WatchedAt = parseTime(watchedAtStr)
	return &entry, nil
}

// Helper functions for time formatting
func formatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}
