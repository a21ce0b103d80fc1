package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mvachon/unagi/validation"
)

func handleValidate(paths storagePaths, args []string) {
	// Parse flags for validate command
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	testTitle := fs.String("title", defaultTestTitle(paths), "Title searched first")
	timeout := fs.Duration("timeout", 60*time.Second, "Overall time budget for validation")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Error: provider slug is required\n")
		fmt.Fprintf(os.Stderr, "Usage: unagi validate <slug> [flags]\n")
		os.Exit(1)
	}
	slug := fs.Arg(0)

	store := openProviderStore(paths)
	defer store.Close()

	cfg, err := store.Get(slug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to get provider: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	validator := validation.New()
	result := validator.Validate(ctx, cfg, *testTitle)

	printValidationReport(result)

	// Record the outcome so listings show fresh validation state
	if result.IsValid {
		if err := store.TouchValidated(slug, result.ValidatedAt); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to record validation time: %v\n", err)
		}
	}

	if !result.IsValid {
		os.Exit(1)
	}
}
