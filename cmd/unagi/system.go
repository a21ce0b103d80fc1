package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mvachon/unagi/config"
	"github.com/mvachon/unagi/history"
	"github.com/mvachon/unagi/providers"
)

func handleInit(paths storagePaths, args []string) {
	// Parse flags for init command
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	force := fs.Bool("force", false, "Force reinitialization even if storage already exists")
	fs.Parse(args)

	fmt.Println("Initializing unagi storage...")
	fmt.Println()

	initSucceeded := true
	createdSomething := false

	// Create default config file as the first step
	created, err := config.WriteDefaultConfigFile(*force)
	if err != nil {
		fmt.Fprintf(os.Stderr, "  ✗ Failed to create config file: %v\n", err)
		initSucceeded = false
	} else if created {
		configPath, _ := config.ConfigFilePath()
		fmt.Printf("  ✓ Config file: %s\n", configPath)
		createdSomething = true
	} else {
		configPath, _ := config.ConfigFilePath()
		fmt.Printf("  Config file: %s (already exists)\n", configPath)
	}

	// Check and create provider database
	providersExists := false
	if _, err := os.Stat(paths.providersDB); err == nil {
		providersExists = true
	}

	if providersExists && !*force {
		fmt.Printf("  Provider database: %s (already exists)\n", paths.providersDB)
	} else {
		if err := os.MkdirAll(filepath.Dir(paths.providersDB), 0o700); err != nil {
			fmt.Fprintf(os.Stderr, "  ✗ Failed to create data directory: %v\n", err)
			initSucceeded = false
		}

		// Initialize provider database
		if initSucceeded {
			providerStore, err := providers.NewStore(paths.providersDB)
			if err != nil {
				fmt.Fprintf(os.Stderr, "  ✗ Failed to initialize provider database: %v\n", err)
				initSucceeded = false
			} else {
				providerStore.Close()
				fmt.Printf("  ✓ Provider database: %s\n", paths.providersDB)
				createdSomething = true
			}
		}

		// Initialize settings table in the provider database
		if initSucceeded {
			settingsStore, err := config.NewSettingsStore(paths.providersDB)
			if err != nil {
				fmt.Fprintf(os.Stderr, "  ✗ Failed to initialize settings table: %v\n", err)
				initSucceeded = false
			} else {
				settingsStore.Close()
			}
		}
	}

	// Check and create history database
	historyExists := false
	if _, err := os.Stat(paths.historyDB); err == nil {
		historyExists = true
	}

	if historyExists && !*force {
		fmt.Printf("  History database: %s (already exists)\n", paths.historyDB)
	} else {
		if err := os.MkdirAll(filepath.Dir(paths.historyDB), 0o700); err != nil {
			fmt.Fprintf(os.Stderr, "  ✗ Failed to create data directory: %v\n", err)
			initSucceeded = false
		} else {
			historyStore, err := history.NewStore(paths.historyDB)
			if err != nil {
				fmt.Fprintf(os.Stderr, "  ✗ Failed to initialize history database: %v\n", err)
				initSucceeded = false
			} else {
				historyStore.Close()
				fmt.Printf("  ✓ History database: %s\n", paths.historyDB)
				createdSomething = true
			}
		}
	}

	fmt.Println()

	if !initSucceeded {
		fmt.Println("✗ Initialization failed")
		os.Exit(1)
	}

	if !createdSomething && !*force {
		fmt.Println("✓ Storage already initialized")
		fmt.Println()
		fmt.Println("Use 'unagi doctor' to check storage health")
	} else {
		fmt.Println("✓ Storage initialized successfully")
		fmt.Println()
		fmt.Println("You can now:")
		fmt.Println("  - Generate a provider with 'unagi autoconf <url>'")
		fmt.Println("  - Add a hand-written provider with 'unagi providers add'")
	}
}

func handleDoctor(paths storagePaths, args []string) {
	// Parse flags for doctor command
	fs := flag.NewFlagSet("doctor", flag.ExitOnError)
	verbose := fs.Bool("verbose", false, "Show detailed diagnostic information")
	fs.Parse(args)

	fmt.Println("Checking unagi storage health...")
	fmt.Println()

	hasErrors := false
	hasWarnings := false

	// Check provider database
	fmt.Println("Provider Database:")
	fmt.Printf("  Path: %s\n", paths.providersDB)

	if _, err := os.Stat(paths.providersDB); os.IsNotExist(err) {
		fmt.Println("  ✗ Database file does not exist")
		fmt.Println("    Run 'unagi init' to create it")
		hasErrors = true
	} else if err != nil {
		fmt.Printf("  ✗ Cannot access database file: %v\n", err)
		hasErrors = true
	} else {
		providerStore, err := providers.NewStore(paths.providersDB)
		if err != nil {
			fmt.Printf("  ✗ Failed to open database: %v\n", err)
			hasErrors = true
		} else {
			defer providerStore.Close()
			fmt.Println("  ✓ Database is accessible")

			// Check permissions
			if stat, err := os.Stat(paths.providersDB); err == nil {
				perm := stat.Mode().Perm()
				if *verbose {
					fmt.Printf("  Permissions: %o\n", perm)
				}
				// Database files should be 0600 (owner read/write only)
				if perm&0o077 != 0 {
					fmt.Println("  ⚠ Warning: Database file has overly permissive permissions")
					fmt.Printf("    Current: %o, expected: 600\n", perm)
					fmt.Println("    Consider: chmod 600 " + paths.providersDB)
					hasWarnings = true
				}
			}

			// Count providers, flag stale validations
			configs, err := providerStore.List(providers.Filter{})
			if err != nil {
				fmt.Printf("  ⚠ Warning: Could not list providers: %v\n", err)
				hasWarnings = true
			} else {
				if *verbose || len(configs) > 0 {
					fmt.Printf("  Providers configured: %d\n", len(configs))
				}

				neverValidated := 0
				for _, cfg := range configs {
					if cfg.LastValidatedAt == nil && !cfg.Builtin {
						neverValidated++
					}
				}
				if neverValidated > 0 {
					fmt.Printf("  ⚠ Warning: %d generated provider(s) never validated\n", neverValidated)
					fmt.Println("    Run 'unagi validate <slug>' to check them")
					hasWarnings = true
				}
			}
		}
	}

	fmt.Println()

	// Check history database
	fmt.Println("History Database:")
	fmt.Printf("  Path: %s\n", paths.historyDB)

	if _, err := os.Stat(paths.historyDB); os.IsNotExist(err) {
		fmt.Println("  ✗ Database file does not exist")
		fmt.Println("    Run 'unagi init' to create it")
		hasErrors = true
	} else if err != nil {
		fmt.Printf("  ✗ Cannot access database file: %v\n", err)
		hasErrors = true
	} else {
		historyStore, err := history.NewStore(paths.historyDB)
		if err != nil {
			fmt.Printf("  ✗ Failed to open database: %v\n", err)
			hasErrors = true
		} else {
			defer historyStore.Close()
			fmt.Println("  ✓ Database is accessible")

			// Check permissions
			if stat, err := os.Stat(paths.historyDB); err == nil {
				perm := stat.Mode().Perm()
				if *verbose {
					fmt.Printf("  Permissions: %o\n", perm)
				}
				if perm&0o077 != 0 {
					fmt.Println("  ⚠ Warning: Database file has overly permissive permissions")
					fmt.Printf("    Current: %o, expected: 600\n", perm)
					fmt.Println("    Consider: chmod 600 " + paths.historyDB)
					hasWarnings = true
				}
			}

			// Prove the history table is readable
			entries, err := historyStore.Recent(0)
			if err != nil {
				fmt.Printf("  ⚠ Warning: Could not list history: %v\n", err)
				hasWarnings = true
			} else if *verbose || len(entries) > 0 {
				fmt.Printf("  Recent history entries: %d\n", len(entries))
			}
		}
	}

	fmt.Println()

	// Print summary
	if hasErrors {
		fmt.Println("✗ Storage has errors")
		fmt.Println("  Run 'unagi init' to initialize storage")
		os.Exit(1)
	} else if hasWarnings {
		fmt.Println("✓ Storage is functional but has warnings")
		if !*verbose {
			fmt.Println("  Run 'unagi doctor -verbose' for more details")
		}
	} else {
		fmt.Println("✓ All checks passed")
	}
}
