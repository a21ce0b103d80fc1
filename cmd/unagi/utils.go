package main

import (
	"fmt"
	"os"

	"github.com/mvachon/unagi/config"
	"github.com/mvachon/unagi/providers"
)

// storagePaths carries the resolved database locations plus the file config
// they were derived from, so subcommands can read per-user defaults too.
type storagePaths struct {
	providersDB string
	historyDB   string
	fileConfig  *config.FileConfig
}

// loadStoragePaths resolves storage locations with precedence:
// 1. Environment variables (highest priority)
// 2. Configuration file (~/.unagi/config.yaml)
// 3. Default values (lowest priority)
func loadStoragePaths() storagePaths {
	cfg, err := config.LoadConfigFile()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config file: %v\n", err)
		fmt.Fprintf(os.Stderr, "Continuing with defaults and environment variables...\n\n")
	}

	providersDB, err := config.ProvidersDBPath(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve provider database path: %v\n", err)
		os.Exit(1)
	}
	historyDB, err := config.HistoryDBPath(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve history database path: %v\n", err)
		os.Exit(1)
	}

	// Apply environment variables (highest priority)
	if val := os.Getenv("UNAGI_PROVIDERS_DSN"); val != "" {
		providersDB = val
	}
	if val := os.Getenv("UNAGI_HISTORY_DSN"); val != "" {
		historyDB = val
	}

	return storagePaths{
		providersDB: providersDB,
		historyDB:   historyDB,
		fileConfig:  cfg,
	}
}

// openProviderStore opens the provider store or exits with an error.
func openProviderStore(paths storagePaths) *providers.Store {
	store, err := providers.NewStore(paths.providersDB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open provider store: %v\n", err)
		os.Exit(1)
	}
	return store
}

// defaultProviderType returns the configured provider type, falling back to
// anime.
func defaultProviderType(paths storagePaths) providers.ProviderType {
	if paths.fileConfig != nil && paths.fileConfig.Defaults.ProviderType != "" {
		return providers.ProviderType(paths.fileConfig.Defaults.ProviderType)
	}
	return providers.TypeAnime
}

// defaultTestTitle returns the configured validation test title, empty when
// unset.
func defaultTestTitle(paths storagePaths) string {
	if paths.fileConfig != nil {
		return paths.fileConfig.Defaults.TestTitle
	}
	return ""
}
