package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mvachon/unagi/config"
)

func printConfigUsage() {
	fmt.Println("unagi config -- Get or set user settings")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  unagi config <action> [arguments]")
	fmt.Println()
	fmt.Println("Actions:")
	fmt.Println("  get        Show current settings")
	fmt.Println("  set        Change settings")
	fmt.Println("  path       Show the config file location")
	fmt.Println("  help       Show this help message")
}

func handleConfigCommand(action string, paths storagePaths, args []string) {
	switch action {
	case "get":
		handleConfigGet(paths, args)
	case "set":
		handleConfigSet(paths, args)
	case "path":
		handleConfigPath(args)
	case "help", "--help", "-h":
		printConfigUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown config command: %s\n\n", action)
		printConfigUsage()
		os.Exit(1)
	}
}

func openSettingsStore(paths storagePaths) *config.SettingsStore {
	// Settings share the provider database
	store, err := config.NewSettingsStore(paths.providersDB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open settings store: %v\n", err)
		os.Exit(1)
	}
	return store
}

func handleConfigGet(paths storagePaths, args []string) {
	store := openSettingsStore(paths)
	defer store.Close()

	settings, err := store.GetSettings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to read settings: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("default_provider_type:  %s\n", settings.DefaultProviderType)
	fmt.Printf("request_timeout:        %s\n", settings.RequestTimeout)
	if settings.TestTitle != "" {
		fmt.Printf("test_title:             %s\n", settings.TestTitle)
	} else {
		fmt.Println("test_title:             (unset)")
	}
}

func handleConfigSet(paths storagePaths, args []string) {
	// Parse flags for set command
	fs := flag.NewFlagSet("config set", flag.ExitOnError)
	providerType := fs.String("provider-type", "", "Default provider type (anime or manga)")
	timeout := fs.String("timeout", "", "Default request timeout (e.g., 15s)")
	testTitle := fs.String("test-title", "", "Default validation test title")
	fs.Parse(args)

	if *providerType == "" && *timeout == "" && *testTitle == "" {
		fmt.Fprintf(os.Stderr, "Error: at least one flag is required (--provider-type, --timeout, or --test-title)\n")
		os.Exit(1)
	}

	if *providerType != "" && *providerType != "anime" && *providerType != "manga" {
		fmt.Fprintf(os.Stderr, "Error: --provider-type must be 'anime' or 'manga'\n")
		os.Exit(1)
	}
	if *timeout != "" {
		if _, err := time.ParseDuration(*timeout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: --timeout must be a valid duration (e.g., 15s)\n")
			os.Exit(1)
		}
	}

	store := openSettingsStore(paths)
	defer store.Close()

	settings, err := store.GetSettings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to read settings: %v\n", err)
		os.Exit(1)
	}

	if *providerType != "" {
		settings.DefaultProviderType = *providerType
	}
	if *timeout != "" {
		settings.RequestTimeout = *timeout
	}
	if *testTitle != "" {
		settings.TestTitle = *testTitle
	}

	if err := store.UpdateSettings(settings); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to update settings: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("✓ Settings updated")
}

func handleConfigPath(args []string) {
	path, err := config.ConfigFilePath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(path)
}
