package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/mvachon/unagi/history"
	"github.com/mvachon/unagi/providers"
)

func printHistoryUsage() {
	fmt.Println("unagi history -- Manage watch/read history and tracking lists")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  unagi history <action> [arguments]")
	fmt.Println()
	fmt.Println("Actions:")
	fmt.Println("  recent     Show recently watched/read entries")
	fmt.Println("  resume     Show where you left off for a title")
	fmt.Println("  record     Record a watched episode or read chapter")
	fmt.Println("  remove     Remove a history entry")
	fmt.Println("  clear      Delete all history")
	fmt.Println("  lists      Show tracking lists (watching, completed, planned)")
	fmt.Println("  track      Put a title on a tracking list")
	fmt.Println("  untrack    Take a title off its tracking list")
	fmt.Println("  help       Show this help message")
}

func handleHistoryCommand(action string, paths storagePaths, args []string) {
	if action == "help" || action == "--help" || action == "-h" {
		printHistoryUsage()
		return
	}

	store, err := history.NewStore(paths.historyDB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open history store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	switch action {
	case "recent":
		handleHistoryRecent(store, args)
	case "resume":
		handleHistoryResume(store, args)
	case "record":
		handleHistoryRecord(store, args)
	case "remove":
		handleHistoryRemove(store, args)
	case "clear":
		handleHistoryClear(store, args)
	case "lists":
		handleHistoryLists(store, args)
	case "track":
		handleHistoryTrack(store, args)
	case "untrack":
		handleHistoryUntrack(store, args)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown history command: %s\n\n", action)
		printHistoryUsage()
		os.Exit(1)
	}
}

func handleHistoryRecent(store *history.Store, args []string) {
	// Parse flags for recent command
	fs := flag.NewFlagSet("history recent", flag.ExitOnError)
	limit := fs.Int("limit", 20, "Maximum number of entries to show")
	fs.Parse(args)

	entries, err := store.Recent(*limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to list history: %v\n", err)
		os.Exit(1)
	}

	if len(entries) == 0 {
		fmt.Println("No history yet.")
		return
	}

	fmt.Printf("%-36s %-6s %-30s %-8s %s\n", "ID", "TYPE", "TITLE", "NUMBER", "WATCHED")
	fmt.Println("----------------------------------------------------------------------------------------------------")
	for _, entry := range entries {
		title := entry.Title
		if len(title) > 30 {
			title = title[:27] + "..."
		}

		fmt.Printf("%-36s %-6s %-30s %-8s %s\n",
			entry.ID.String(),
			entry.Type,
			title,
			formatNumber(entry.Number),
			entry.WatchedAt.Format("2006-01-02 15:04"),
		)
	}
}

func handleHistoryResume(store *history.Store, args []string) {
	if len(args) < 2 {
		fmt.Fprintf(os.Stderr, "Error: provider slug and media ID are required\n")
		fmt.Fprintf(os.Stderr, "Usage: unagi history resume <provider-slug> <media-id>\n")
		os.Exit(1)
	}

	entry, err := store.Resume(args[0], args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to look up history: %v\n", err)
		os.Exit(1)
	}

	if entry == nil {
		fmt.Println("Never watched.")
		return
	}

	fmt.Printf("%s\n", entry.Title)
	fmt.Printf("  Last %s: %s\n", unitFor(entry.Type), formatNumber(entry.Number))
	if entry.Position > 0 {
		fmt.Printf("  Position:     %ds\n", entry.Position)
	}
	fmt.Printf("  Watched:      %s\n", entry.WatchedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("  Provider:     %s\n", entry.ProviderSlug)
}

func handleHistoryRecord(store *history.Store, args []string) {
	// Parse flags for record command
	fs := flag.NewFlagSet("history record", flag.ExitOnError)
	provider := fs.String("provider", "", "Provider slug")
	mediaID := fs.String("media", "", "Media ID on the provider")
	title := fs.String("title", "", "Media title")
	mediaType := fs.String("type", "anime", "Media type (anime or manga)")
	number := fs.Float64("number", 0, "Episode or chapter number")
	position := fs.Int("position", 0, "Playback position in seconds")
	fs.Parse(args)

	// Validate required flags
	if *provider == "" {
		fmt.Fprintf(os.Stderr, "Error: --provider is required\n")
		fs.Usage()
		os.Exit(1)
	}
	if *mediaID == "" {
		fmt.Fprintf(os.Stderr, "Error: --media is required\n")
		fs.Usage()
		os.Exit(1)
	}
	if *title == "" {
		fmt.Fprintf(os.Stderr, "Error: --title is required\n")
		fs.Usage()
		os.Exit(1)
	}

	entry, err := store.Record(history.Entry{
		ProviderSlug: *provider,
		MediaID:      *mediaID,
		Title:        *title,
		Type:         providers.ProviderType(*mediaType),
		Number:       *number,
		Position:     *position,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to record history: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ Recorded %s %s of %s\n", unitFor(entry.Type), formatNumber(entry.Number), entry.Title)
}

func handleHistoryRemove(store *history.Store, args []string) {
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Error: entry ID is required\n")
		fmt.Fprintf(os.Stderr, "Usage: unagi history remove <entry-id>\n")
		os.Exit(1)
	}

	id, err := uuid.Parse(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid entry ID: %v\n", err)
		os.Exit(1)
	}

	if err := store.Remove(id); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to remove entry: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ Removed entry: %s\n", args[0])
}

func handleHistoryClear(store *history.Store, args []string) {
	// Parse flags for clear command
	fs := flag.NewFlagSet("history clear", flag.ExitOnError)
	force := fs.Bool("force", false, "Clear without confirmation")
	fs.Parse(args)

	if !*force {
		fmt.Print("Delete ALL history? Type 'yes' to confirm: ")
		var answer string
		fmt.Scanln(&answer)
		if answer != "yes" {
			fmt.Println("Aborted.")
			return
		}
	}

	if err := store.Clear(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to clear history: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("✓ History cleared")
}

func handleHistoryLists(store *history.Store, args []string) {
	// With a list name, show its entries; without, summarize all lists
	if len(args) > 0 && args[0] != "" {
		listName := args[0]
		items, err := store.Entries(listName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to read list: %v\n", err)
			os.Exit(1)
		}

		if len(items) == 0 {
			fmt.Printf("List %q is empty.\n", listName)
			return
		}

		fmt.Printf("%-6s %-40s %-20s %s\n", "TYPE", "TITLE", "PROVIDER", "ADDED")
		fmt.Println("----------------------------------------------------------------------------------------------------")
		for _, item := range items {
			title := item.Title
			if len(title) > 40 {
				title = title[:37] + "..."
			}
			fmt.Printf("%-6s %-40s %-20s %s\n",
				item.Type,
				title,
				item.ProviderSlug,
				item.AddedAt.Format("2006-01-02"),
			)
		}
		return
	}

	for _, listName := range []string{history.ListWatching, history.ListCompleted, history.ListPlanned} {
		items, err := store.Entries(listName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to read list: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%-12s %d title(s)\n", listName, len(items))
	}
	fmt.Println()
	fmt.Println("Use 'unagi history lists <name>' to show a list's titles")
}

func handleHistoryTrack(store *history.Store, args []string) {
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Error: list name is required\n")
		fmt.Fprintf(os.Stderr, "Usage: unagi history track <watching|completed|planned> [flags]\n")
		os.Exit(1)
	}

	listName := args[0]

	// Parse flags for track command
	fs := flag.NewFlagSet("history track", flag.ExitOnError)
	provider := fs.String("provider", "", "Provider slug")
	mediaID := fs.String("media", "", "Media ID on the provider")
	title := fs.String("title", "", "Media title")
	mediaType := fs.String("type", "anime", "Media type (anime or manga)")
	fs.Parse(args[1:])

	// Validate required flags
	if *provider == "" {
		fmt.Fprintf(os.Stderr, "Error: --provider is required\n")
		fs.Usage()
		os.Exit(1)
	}
	if *mediaID == "" {
		fmt.Fprintf(os.Stderr, "Error: --media is required\n")
		fs.Usage()
		os.Exit(1)
	}
	if *title == "" {
		fmt.Fprintf(os.Stderr, "Error: --title is required\n")
		fs.Usage()
		os.Exit(1)
	}

	item, err := store.SetList(listName, history.ListItem{
		ProviderSlug: *provider,
		MediaID:      *mediaID,
		Title:        *title,
		Type:         providers.ProviderType(*mediaType),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to update list: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ %s is now on %q\n", item.Title, item.List)
}

func handleHistoryUntrack(store *history.Store, args []string) {
	if len(args) < 2 {
		fmt.Fprintf(os.Stderr, "Error: provider slug and media ID are required\n")
		fmt.Fprintf(os.Stderr, "Usage: unagi history untrack <provider-slug> <media-id>\n")
		os.Exit(1)
	}

	if err := store.RemoveFromList(args[0], args[1]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to remove from list: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("✓ Removed from tracking lists")
}

// formatNumber renders episode/chapter numbers without trailing zeroes.
func formatNumber(n float64) string {
	if n == 0 {
		return "-"
	}
	if n == float64(int64(n)) {
		return fmt.Sprintf("%d", int64(n))
	}
	return fmt.Sprintf("%.1f", n)
}

// unitFor names the consumable unit of a media type.
func unitFor(t providers.ProviderType) string {
	if t == providers.TypeManga {
		return "chapter"
	}
	return "episode"
}
