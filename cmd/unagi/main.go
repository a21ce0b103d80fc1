package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// Resolve storage paths before dispatching so every subcommand sees the
	// same configuration precedence
	paths := loadStoragePaths()

	// Get subcommand
	subcommand := os.Args[1]

	switch subcommand {
	case "providers":
		if len(os.Args) < 3 {
			printProvidersUsage()
			os.Exit(1)
		}
		action := os.Args[2]
		handleProvidersCommand(action, paths, os.Args[3:])
	case "autoconf":
		handleAutoconf(paths, os.Args[2:])
	case "validate":
		handleValidate(paths, os.Args[2:])
	case "search":
		handleSearch(paths, os.Args[2:])
	case "history":
		if len(os.Args) < 3 {
			printHistoryUsage()
			os.Exit(1)
		}
		action := os.Args[2]
		handleHistoryCommand(action, paths, os.Args[3:])
	case "config":
		if len(os.Args) < 3 {
			printConfigUsage()
			os.Exit(1)
		}
		action := os.Args[2]
		handleConfigCommand(action, paths, os.Args[3:])
	case "init":
		handleInit(paths, os.Args[2:])
	case "doctor":
		handleDoctor(paths, os.Args[2:])
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command: %s\n\n", subcommand)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("unagi - Media catalog aggregator")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  unagi <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  providers  Manage provider configurations")
	fmt.Println("  autoconf   Generate a provider config for a site")
	fmt.Println("  validate   Run validation checks against a stored provider")
	fmt.Println("  search     Search a provider for a title")
	fmt.Println("  history    Manage watch/read history and tracking lists")
	fmt.Println("  config     Get or set user settings")
	fmt.Println("  init       Initialize storage and default config file")
	fmt.Println("  doctor     Check storage health")
	fmt.Println("  help       Show this help message")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  UNAGI_PROVIDERS_DSN  Path to provider database (default: ~/.unagi/providers.db)")
	fmt.Println("  UNAGI_HISTORY_DSN    Path to history database (default: ~/.unagi/history.db)")
}
