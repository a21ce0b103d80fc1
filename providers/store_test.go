package providers

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper: create a test provider store
func createTestStore(t *testing.T) *Store {
	tempDir := t.TempDir()
	dbPath := filepath.Join(tempDir, "test.db")
	store, err := NewStore(dbPath)
	require.NoError(t, err, "should create provider store")
	t.Cleanup(func() { store.Close() })
	return store
}

// Test helper: create a sample anime provider config
func createTestConfig(slug string) *DynamicProviderConfig {
	return &DynamicProviderConfig{
		Slug: slug,
		Name: "Test Provider",
		Type: TypeAnime,
		Host: HostConfig{
			BaseURL:   "https://example.com",
			APIURL:    "https://api.example.com/graphql",
			UserAgent: "Mozilla/5.0",
		},
		Queries: map[string]QueryTemplate{
			QuerySearch: {
				Query:      `query ($search: String) { shows(search: $search) { _id name } }`,
				Variables:  map[string]string{"search": TokenTitle},
				ResultPath: "data.shows",
				Fields:     map[string]string{"id": "_id", "title": "name"},
			},
		},
		Version: "0.1.0",
	}
}

// TestNewStore_CreatesDatabase verifies database creation
func TestNewStore_CreatesDatabase(t *testing.T) {
	tempDir := t.TempDir()
	dbPath := filepath.Join(tempDir, "test.db")

	store, err := NewStore(dbPath)
	require.NoError(t, err, "should create store")
	require.NotNil(t, store, "store should not be nil")
	defer store.Close()

	// Verify we can perform basic operations
	configs, err := store.List(Filter{})
	require.NoError(t, err, "should be able to query database")
	assert.Empty(t, configs, "new database should have no providers")
}

// TestStoreCreate_Basic verifies persisting a config
func TestStoreCreate_Basic(t *testing.T) {
	store := createTestStore(t)

	cfg := createTestConfig("example")
	err := store.Create(cfg)

	require.NoError(t, err)
	assert.False(t, cfg.CreatedAt.IsZero(), "should set created_at")
	assert.Equal(t, cfg.CreatedAt, cfg.UpdatedAt, "created and updated should be equal initially")

	retrieved, err := store.Get("example")
	require.NoError(t, err)
	assert.Equal(t, "example", retrieved.Slug)
	assert.Equal(t, TypeAnime, retrieved.Type)
	assert.Equal(t, "https://api.example.com/graphql", retrieved.Host.APIURL)
	assert.Equal(t, "0.1.0", retrieved.Version)
	assert.Nil(t, retrieved.LastValidatedAt, "fresh config should not be validated")
}

// TestStoreCreate_RoundTripsQueries verifies query templates survive storage
func TestStoreCreate_RoundTripsQueries(t *testing.T) {
	store := createTestStore(t)

	cfg := createTestConfig("example")
	cfg.Queries[QueryEpisodes] = QueryTemplate{
		Query:      `query ($id: String!) { show(_id: $id) { episodes { id number } } }`,
		Variables:  map[string]string{"id": TokenMediaID},
		ResultPath: "data.show.episodes",
		Fields:     map[string]string{"id": "id", "number": "number"},
	}
	require.NoError(t, store.Create(cfg))

	retrieved, err := store.Get("example")
	require.NoError(t, err)

	tpl, ok := retrieved.Query(QueryEpisodes)
	require.True(t, ok, "episodes template should survive the round trip")
	assert.Equal(t, "data.show.episodes", tpl.ResultPath)
	assert.Equal(t, TokenMediaID, tpl.Variables["id"])
}

// TestStoreCreate_InvalidConfig verifies validation runs before insert
func TestStoreCreate_InvalidConfig(t *testing.T) {
	store := createTestStore(t)

	cfg := createTestConfig("example")
	cfg.Version = "not-semver"

	err := store.Create(cfg)
	require.Error(t, err, "should reject invalid version")

	configs, err := store.List(Filter{})
	require.NoError(t, err)
	assert.Empty(t, configs, "nothing should be persisted")
}

// TestStoreCreate_DuplicateSlug verifies unique slug constraint
func TestStoreCreate_DuplicateSlug(t *testing.T) {
	store := createTestStore(t)

	require.NoError(t, store.Create(createTestConfig("example")))

	err := store.Create(createTestConfig("example"))
	assert.ErrorIs(t, err, ErrDuplicateSlug, "should return duplicate slug error")
}

// TestStoreGet_NotFound verifies the not-found sentinel
func TestStoreGet_NotFound(t *testing.T) {
	store := createTestStore(t)

	_, err := store.Get("missing")
	assert.ErrorIs(t, err, ErrProviderNotFound)
}

// TestStoreList_FilterByType verifies type filtering
func TestStoreList_FilterByType(t *testing.T) {
	store := createTestStore(t)

	anime := createTestConfig("anime-site")
	require.NoError(t, store.Create(anime))

	manga := createTestConfig("manga-site")
	manga.Type = TypeManga
	require.NoError(t, store.Create(manga))

	mangaType := TypeManga
	configs, err := store.List(Filter{Type: &mangaType})
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, "manga-site", configs[0].Slug)
}

// TestStoreList_FilterByValidated verifies validated filtering
func TestStoreList_FilterByValidated(t *testing.T) {
	store := createTestStore(t)

	require.NoError(t, store.Create(createTestConfig("fresh")))
	require.NoError(t, store.Create(createTestConfig("proven")))
	require.NoError(t, store.TouchValidated("proven", time.Now()))

	validated := true
	configs, err := store.List(Filter{Validated: &validated})
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, "proven", configs[0].Slug)

	validated = false
	configs, err = store.List(Filter{Validated: &validated})
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, "fresh", configs[0].Slug)
}

// TestUpdateProvider_Fields verifies the dynamic update builder
func TestUpdateProvider_Fields(t *testing.T) {
	store := createTestStore(t)
	require.NoError(t, store.Create(createTestConfig("example")))

	newName := "Renamed Provider"
	newVersion := "0.2.0"
	confidence := 0.85
	err := store.UpdateProvider("example", Update{
		Name:       &newName,
		Version:    &newVersion,
		Confidence: &confidence,
	})
	require.NoError(t, err)

	cfg, err := store.Get("example")
	require.NoError(t, err)
	assert.Equal(t, "Renamed Provider", cfg.Name)
	assert.Equal(t, "0.2.0", cfg.Version)
	assert.InDelta(t, 0.85, cfg.Confidence, 0.0001)
	assert.True(t, cfg.UpdatedAt.After(cfg.CreatedAt) || cfg.UpdatedAt.Equal(cfg.CreatedAt))
}

// TestUpdateProvider_NotFound verifies updating a missing slug
func TestUpdateProvider_NotFound(t *testing.T) {
	store := createTestStore(t)

	name := "Nope"
	err := store.UpdateProvider("missing", Update{Name: &name})
	assert.ErrorIs(t, err, ErrProviderNotFound)
}

// TestTouchValidated_SetsTimestamp verifies the re-validation timestamp
func TestTouchValidated_SetsTimestamp(t *testing.T) {
	store := createTestStore(t)
	require.NoError(t, store.Create(createTestConfig("example")))

	validatedAt := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	require.NoError(t, store.TouchValidated("example", validatedAt))

	cfg, err := store.Get("example")
	require.NoError(t, err)
	require.NotNil(t, cfg.LastValidatedAt)
	assert.True(t, cfg.LastValidatedAt.Equal(validatedAt), "timestamp should round-trip")
}

// TestStoreDelete_RemovesConfig verifies deletion
func TestStoreDelete_RemovesConfig(t *testing.T) {
	store := createTestStore(t)
	require.NoError(t, store.Create(createTestConfig("example")))

	require.NoError(t, store.Delete("example"))

	_, err := store.Get("example")
	assert.ErrorIs(t, err, ErrProviderNotFound)

	err = store.Delete("example")
	assert.ErrorIs(t, err, ErrProviderNotFound, "second delete should report not found")
}

// TestStore_PersistsAcrossConnections verifies data survives reopening
func TestStore_PersistsAcrossConnections(t *testing.T) {
	tempDir := t.TempDir()
	dbPath := filepath.Join(tempDir, "test.db")

	store1, err := NewStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, store1.Create(createTestConfig("example")))
	store1.Close()

	store2, err := NewStore(dbPath)
	require.NoError(t, err)
	defer store2.Close()

	configs, err := store2.List(Filter{})
	require.NoError(t, err)
	assert.Len(t, configs, 1, "data should persist across connections")
}
