package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mvachon/unagi/catalog"
	"github.com/mvachon/unagi/providers"
)

func handleSearch(paths storagePaths, args []string) {
	// Parse flags for search command
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	format := fs.String("format", "table", "Output format (table or json)")
	timeout := fs.Duration("timeout", 30*time.Second, "Time budget for the search")
	episodes := fs.Bool("episodes", false, "Also list episodes/chapters of the first hit")
	fs.Parse(args)

	if fs.NArg() < 2 {
		fmt.Fprintf(os.Stderr, "Error: provider slug and title are required\n")
		fmt.Fprintf(os.Stderr, "Usage: unagi search <slug> <title> [flags]\n")
		os.Exit(1)
	}
	slug := fs.Arg(0)
	title := fs.Arg(1)

	store := openProviderStore(paths)
	defer store.Close()

	cfg, err := store.Get(slug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to get provider: %v\n", err)
		os.Exit(1)
	}

	engine := catalog.NewEngine(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	results, err := engine.Search(ctx, title)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: search failed: %v\n", err)
		os.Exit(1)
	}

	if *format == "json" {
		printSearchJSON(results)
	} else {
		printSearchTable(results, slug)
	}

	if len(results) == 0 || !*episodes {
		return
	}

	// Follow up with the listing for the first hit
	fmt.Println()
	switch cfg.Type {
	case providers.TypeManga:
		chapters, err := engine.Chapters(ctx, results[0].ID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to list chapters: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Chapters of %s:\n", results[0].Title)
		for _, ch := range chapters {
			printListingLine(ch.Number, ch.Title, ch.ID)
		}
	default:
		eps, err := engine.Episodes(ctx, results[0].ID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to list episodes: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Episodes of %s:\n", results[0].Title)
		for _, ep := range eps {
			printListingLine(ep.Number, ep.Title, ep.ID)
		}
	}
}

func printSearchTable(results []catalog.SearchResult, slug string) {
	if len(results) == 0 {
		fmt.Println("No results.")
		return
	}

	fmt.Printf("Found %d result(s) on %s\n\n", len(results), slug)
	fmt.Printf("%-28s %s\n", "ID", "TITLE")
	fmt.Println("--------------------------------------------------------------------------------")
	for _, r := range results {
		fmt.Printf("%-28s %s\n", r.ID, r.Title)
	}
}

func printSearchJSON(results []catalog.SearchResult) {
	output := map[string]any{
		"results": results,
		"total":   len(results),
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to marshal JSON: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(string(data))
}

func printListingLine(number, title, id string) {
	label := number
	if title != "" {
		if label != "" {
			label += " - "
		}
		label += title
	}
	if label == "" {
		label = id
	}
	fmt.Printf("  %-40s %s\n", truncate(label, 40), id)
}
