package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/mvachon/unagi/providers"
)

func printProvidersUsage() {
	fmt.Println("unagi providers -- Manage provider configurations")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  unagi providers <action> [arguments]")
	fmt.Println()
	fmt.Println("Actions:")
	fmt.Println("  list       List stored providers")
	fmt.Println("  show       Show detailed provider information")
	fmt.Println("  add        Add a provider from a JSON config file")
	fmt.Println("  remove     Remove a provider")
	fmt.Println("  export     Export a provider to a JSON config file")
	fmt.Println("  import     Import a JSON config file, updating an existing provider")
	fmt.Println("  help       Show this help message")
}

func handleProvidersCommand(action string, paths storagePaths, args []string) {
	if action == "help" || action == "--help" || action == "-h" {
		printProvidersUsage()
		return
	}

	store := openProviderStore(paths)
	defer store.Close()

	switch action {
	case "list":
		handleProvidersList(store, args)
	case "show":
		handleProvidersShow(store, args)
	case "add":
		handleProvidersAdd(store, args)
	case "remove":
		handleProvidersRemove(store, args)
	case "export":
		handleProvidersExport(store, args)
	case "import":
		handleProvidersImport(store, args)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown providers command: %s\n\n", action)
		printProvidersUsage()
		os.Exit(1)
	}
}

func handleProvidersList(store *providers.Store, args []string) {
	// Parse flags for list command
	fs := flag.NewFlagSet("providers list", flag.ExitOnError)
	typeFilter := fs.String("type", "", "Filter by provider type (anime or manga)")
	validatedOnly := fs.Bool("validated", false, "Only show providers that passed validation")
	format := fs.String("format", "table", "Output format (table or json)")
	fs.Parse(args)

	filter := providers.Filter{}
	if *typeFilter != "" {
		pt := providers.ProviderType(*typeFilter)
		if pt != providers.TypeAnime && pt != providers.TypeManga {
			fmt.Fprintf(os.Stderr, "Error: --type must be 'anime' or 'manga'\n")
			os.Exit(1)
		}
		filter.Type = &pt
	}
	if *validatedOnly {
		validated := true
		filter.Validated = &validated
	}

	configs, err := store.List(filter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to list providers: %v\n", err)
		os.Exit(1)
	}

	if *format == "json" {
		printProvidersJSON(configs)
		return
	}

	if len(configs) == 0 {
		fmt.Println("No providers configured.")
		return
	}

	printProvidersTable(configs)
}

func handleProvidersShow(store *providers.Store, args []string) {
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Error: provider slug is required\n")
		fmt.Fprintf(os.Stderr, "Usage: unagi providers show <slug>\n")
		os.Exit(1)
	}

	slug := args[0]

	cfg, err := store.Get(slug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to get provider: %v\n", err)
		os.Exit(1)
	}

	printProviderDetail(cfg)
}

func handleProvidersAdd(store *providers.Store, args []string) {
	// Parse flags for add command
	fs := flag.NewFlagSet("providers add", flag.ExitOnError)
	configFile := fs.String("file", "", "Provider config file (JSON)")
	fs.Parse(args)

	// A bare path argument works too: unagi providers add site.json
	if *configFile == "" && fs.NArg() > 0 {
		*configFile = fs.Arg(0)
	}
	if *configFile == "" {
		fmt.Fprintf(os.Stderr, "Error: --file is required\n")
		fs.Usage()
		os.Exit(1)
	}

	cfg, err := providers.ReadConfigFile(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to read provider config: %v\n", err)
		os.Exit(1)
	}

	if err := store.Create(cfg); err != nil {
		if errors.Is(err, providers.ErrDuplicateSlug) {
			fmt.Fprintf(os.Stderr, "Error: provider %q already exists (use 'unagi providers import' to update it)\n", cfg.Slug)
		} else {
			fmt.Fprintf(os.Stderr, "Error: failed to create provider: %v\n", err)
		}
		os.Exit(1)
	}

	fmt.Printf("✓ Created provider: %s\n", cfg.Slug)
	fmt.Printf("  Name: %s\n", cfg.Name)
	fmt.Printf("  Type: %s\n", cfg.Type)
	fmt.Printf("  API:  %s\n", cfg.Host.APIURL)
}

func handleProvidersRemove(store *providers.Store, args []string) {
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Error: provider slug is required\n")
		fmt.Fprintf(os.Stderr, "Usage: unagi providers remove <slug>\n")
		os.Exit(1)
	}

	slug := args[0]

	if err := store.Delete(slug); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to remove provider: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ Removed provider: %s\n", slug)
}

func handleProvidersExport(store *providers.Store, args []string) {
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Error: provider slug is required\n")
		fmt.Fprintf(os.Stderr, "Usage: unagi providers export <slug> [flags]\n")
		os.Exit(1)
	}

	slug := args[0]

	// Parse flags for export command
	fs := flag.NewFlagSet("providers export", flag.ExitOnError)
	outPath := fs.String("out", "", "Output file path (default: <slug>.json)")
	fs.Parse(args[1:])

	if *outPath == "" {
		*outPath = slug + ".json"
	}

	cfg, err := store.Get(slug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to get provider: %v\n", err)
		os.Exit(1)
	}

	if err := providers.WriteConfigFile(*outPath, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to export provider: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ Exported provider %s to %s\n", slug, *outPath)
}

func handleProvidersImport(store *providers.Store, args []string) {
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Error: config file path is required\n")
		fmt.Fprintf(os.Stderr, "Usage: unagi providers import <file>\n")
		os.Exit(1)
	}

	cfg, err := providers.ReadConfigFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to read provider config: %v\n", err)
		os.Exit(1)
	}

	err = store.Create(cfg)
	if errors.Is(err, providers.ErrDuplicateSlug) {
		// Update the existing record instead
		update := providers.Update{
			Name:       &cfg.Name,
			Host:       &cfg.Host,
			Queries:    cfg.Queries,
			Version:    &cfg.Version,
			Confidence: &cfg.Confidence,
		}
		if cfg.LastValidatedAt != nil {
			update.LastValidatedAt = cfg.LastValidatedAt
		}
		if err := store.UpdateProvider(cfg.Slug, update); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to update provider: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("✓ Updated provider: %s\n", cfg.Slug)
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to import provider: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ Imported provider: %s\n", cfg.Slug)
}
