package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mvachon/unagi/autoconfig"
	"github.com/mvachon/unagi/providers"
)

func handleAutoconf(paths storagePaths, args []string) {
	// Parse flags for autoconf command
	fs := flag.NewFlagSet("autoconf", flag.ExitOnError)
	providerType := fs.String("type", string(defaultProviderType(paths)), "Provider type (anime or manga)")
	testTitle := fs.String("title", defaultTestTitle(paths), "Title searched first during validation")
	timeout := fs.Duration("timeout", 90*time.Second, "Overall time budget for the run")
	noSave := fs.Bool("no-save", false, "Skip persisting the generated config")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Error: site URL is required\n")
		fmt.Fprintf(os.Stderr, "Usage: unagi autoconf <url> [flags]\n")
		os.Exit(1)
	}
	baseURL := fs.Arg(0)

	opts := []autoconfig.PipelineOption{
		autoconfig.WithTestTitle(*testTitle),
	}

	// The store is only opened when the result should be persisted
	if !*noSave {
		store := openProviderStore(paths)
		defer store.Close()
		opts = append(opts, autoconfig.WithStore(store))
	}

	pipeline := autoconfig.NewPipeline(opts...)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	fmt.Printf("Analyzing %s...\n\n", baseURL)

	result, err := pipeline.Run(ctx, baseURL, providers.ProviderType(*providerType))
	if result != nil {
		printPhases(result)
		fmt.Println()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: autoconfig failed: %v\n", err)
		os.Exit(1)
	}

	if !result.Success {
		fmt.Println("✗ Could not generate a working provider config")
		if result.Validation != nil {
			fmt.Println()
			printValidationReport(result.Validation)
		}
		os.Exit(1)
	}

	fmt.Printf("✓ Generated provider: %s\n", result.Config.Slug)
	fmt.Printf("  Name:       %s\n", result.Config.Name)
	fmt.Printf("  API:        %s\n", result.Config.Host.APIURL)
	fmt.Printf("  Confidence: %.2f\n", result.Config.Confidence)
	if result.Validation != nil && result.Validation.Warning != "" {
		fmt.Printf("  Warning:    %s\n", result.Validation.Warning)
	}
	if *noSave {
		// Leave the config where the user can pick it up later
		outPath := result.Config.Slug + ".json"
		if err := providers.WriteConfigFile(outPath, result.Config); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to write config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println()
		fmt.Printf("Config written to %s (not stored). Import it with: unagi providers import %s\n", outPath, outPath)
	} else {
		fmt.Println()
		fmt.Printf("Try it: unagi search %s \"One Piece\"\n", result.Config.Slug)
	}
}
