package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/mvachon/unagi/autoconfig"
	"github.com/mvachon/unagi/providers"
	"github.com/mvachon/unagi/validation"
)

// printProvidersTable prints providers in human-readable table format
func printProvidersTable(configs []providers.DynamicProviderConfig) {
	// Print table header
	fmt.Printf("%-24s %-6s %-30s %-10s %s\n", "SLUG", "TYPE", "NAME", "CONFIDENCE", "VALIDATED")
	fmt.Println("----------------------------------------------------------------------------------------------------")

	// Print each provider
	for _, cfg := range configs {
		name := cfg.Name
		if len(name) > 30 {
			name = name[:27] + "..."
		}

		validated := "never"
		if cfg.LastValidatedAt != nil {
			validated = cfg.LastValidatedAt.Format("2006-01-02 15:04")
		}

		fmt.Printf("%-24s %-6s %-30s %-10.2f %s\n",
			cfg.Slug,
			cfg.Type,
			name,
			cfg.Confidence,
			validated,
		)
	}
}

// printProvidersJSON prints providers in JSON format
func printProvidersJSON(configs []providers.DynamicProviderConfig) {
	output := map[string]any{
		"providers": configs,
		"total":     len(configs),
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to marshal JSON: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(string(data))
}

// printProviderDetail prints one provider with all of its metadata
func printProviderDetail(cfg *providers.DynamicProviderConfig) {
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println(cfg.Name)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	// Basic info
	fmt.Printf("Slug:        %s\n", cfg.Slug)
	fmt.Printf("Type:        %s\n", cfg.Type)
	fmt.Printf("Version:     %s\n", cfg.Version)
	if cfg.Builtin {
		fmt.Println("Origin:      Built-in")
	} else {
		fmt.Printf("Origin:      Generated (confidence %.2f)\n", cfg.Confidence)
	}
	fmt.Println()

	// Host wiring
	fmt.Println("Host:")
	fmt.Printf("  Base URL:    %s\n", cfg.Host.BaseURL)
	fmt.Printf("  API URL:     %s\n", cfg.Host.APIURL)
	if cfg.Host.Referer != "" {
		fmt.Printf("  Referer:     %s\n", cfg.Host.Referer)
	}
	if cfg.Host.UserAgent != "" {
		fmt.Printf("  User-Agent:  %s\n", cfg.Host.UserAgent)
	}
	for name, value := range cfg.Host.Headers {
		fmt.Printf("  Header:      %s: %s\n", name, value)
	}
	fmt.Println()

	// Queries, stable order
	keys := make([]string, 0, len(cfg.Queries))
	for key := range cfg.Queries {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	fmt.Println("Queries:")
	for _, key := range keys {
		tmpl := cfg.Queries[key]
		fmt.Printf("  %-10s result path %s\n", key, tmpl.ResultPath)
	}
	fmt.Println()

	// Status
	if cfg.LastValidatedAt != nil {
		fmt.Printf("Validated:   %s\n", cfg.LastValidatedAt.Format("2006-01-02 15:04:05"))
	} else {
		fmt.Println("Validated:   Never")
	}

	// Dates
	fmt.Printf("Created:     %s\n", cfg.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Updated:     %s\n", cfg.UpdatedAt.Format("2006-01-02 15:04:05"))
}

// printValidationReport prints a per-check breakdown followed by the verdict
func printValidationReport(result *validation.ValidationResult) {
	fmt.Printf("Validating provider: %s\n", result.Slug)
	fmt.Println()

	for _, check := range result.Checks {
		marker := "✓"
		if !check.Passed {
			marker = "✗"
		}
		if check.Cancelled {
			marker = "⊘"
		}

		fmt.Printf("  %s %-14s (%dms)", marker, check.Name, check.DurationMs)
		if check.Sample != "" {
			fmt.Printf("  sample: %s", truncate(check.Sample, 50))
		}
		fmt.Println()

		if check.ErrorMessage != "" {
			fmt.Printf("      %s\n", check.ErrorMessage)
		}
	}
	fmt.Println()

	switch {
	case result.Cancelled:
		fmt.Println("⊘ Validation cancelled")
	case result.IsValid && result.Warning != "":
		fmt.Println("✓ Provider is usable with caveats")
		fmt.Printf("  %s\n", result.Warning)
	case result.IsValid:
		fmt.Println("✓ Provider is fully functional")
	default:
		fmt.Println("✗ Provider is not usable")
		fmt.Printf("  %s\n", result.ErrorSummary)
	}

	if result.SuggestedFix != nil {
		fmt.Println()
		fmt.Println("A config adjustment may help:")
		fmt.Printf("  Set host referer to %s and validate again\n", result.SuggestedFix.Host.Referer)
	}

	fmt.Printf("\nTotal: %dms\n", result.DurationMs)
}

// printPhases prints the per-phase progress of an autoconfig run
func printPhases(result *autoconfig.AutoconfigResult) {
	for _, phase := range result.Phases {
		marker := "✓"
		if !phase.Success {
			marker = "✗"
		}

		fmt.Printf("  %s %-12s (%dms)", marker, phase.Name, phase.DurationMs)
		if phase.Message != "" {
			fmt.Printf("  %s", phase.Message)
		}
		fmt.Println()

		for _, step := range phase.Steps {
			fmt.Printf("      %s\n", step)
		}
	}
}

// truncate shortens a string for single-line display
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return strings.TrimSpace(s[:max-3]) + "..."
}
