package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mvachon/unagi/autoconfig"
	"github.com/mvachon/unagi/config"
	"github.com/mvachon/unagi/providers"
)

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvDuration parses a duration from environment variable or returns default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func main() {
	// Parse command line flags with environment variable defaults
	providerType := flag.String("type", getEnv("UNAGI_PROVIDER_TYPE", "anime"), "Provider type: anime or manga (UNAGI_PROVIDER_TYPE)")
	testTitle := flag.String("title", getEnv("UNAGI_TEST_TITLE", ""), "Title searched first during validation (UNAGI_TEST_TITLE)")
	timeout := flag.Duration("timeout", getEnvDuration("UNAGI_TIMEOUT", 90*time.Second), "Overall time budget for the run (UNAGI_TIMEOUT)")
	save := flag.Bool("save", true, "Persist the generated config to the provider database")
	jsonOut := flag.Bool("json", false, "Print the full run result as JSON")

	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: unagi-autoconf [flags] <site-url>\n\n")
		flag.PrintDefaults()
		os.Exit(2)
	}
	baseURL := flag.Arg(0)

	opts := []autoconfig.PipelineOption{
		autoconfig.WithTestTitle(*testTitle),
	}

	if *save {
		fileCfg, err := config.LoadConfigFile()
		if err != nil {
			log.Fatalf("Failed to load config file: %v", err)
		}

		dbPath := os.Getenv("UNAGI_PROVIDERS_DSN")
		if dbPath == "" {
			dbPath, err = config.ProvidersDBPath(fileCfg)
			if err != nil {
				log.Fatalf("Failed to resolve provider database path: %v", err)
			}
		}

		log.Printf("Opening provider store: %s", dbPath)
		store, err := providers.NewStore(dbPath)
		if err != nil {
			log.Fatalf("Failed to open provider store: %v", err)
		}
		defer store.Close()

		opts = append(opts, autoconfig.WithStore(store))
	}

	pipeline := autoconfig.NewPipeline(opts...)

	// Setup signal handling so Ctrl-C aborts the run cleanly
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigChan
		log.Printf("Received signal: %v, aborting", sig)
		cancel()
	}()

	result, err := pipeline.Run(ctx, baseURL, providers.ProviderType(*providerType))

	if *jsonOut && result != nil {
		data, marshalErr := json.MarshalIndent(result, "", "  ")
		if marshalErr != nil {
			log.Fatalf("Failed to marshal result: %v", marshalErr)
		}
		fmt.Println(string(data))
	}

	if err != nil {
		log.Fatalf("Autoconfig failed: %v", err)
	}

	if !*jsonOut {
		for _, phase := range result.Phases {
			marker := "ok"
			if !phase.Success {
				marker = "FAILED"
			}
			log.Printf("phase %s: %s (%dms) %s", phase.Name, marker, phase.DurationMs, phase.Message)
		}
	}

	if !result.Success {
		log.Fatalf("Could not generate a working provider config for %s", baseURL)
	}

	log.Printf("Generated provider %s (confidence %.2f)", result.Config.Slug, result.Config.Confidence)
	if !*save && !*jsonOut {
		// Without a store the config only exists in this process, so print it
		data, marshalErr := json.MarshalIndent(result.Config, "", "  ")
		if marshalErr != nil {
			log.Fatalf("Failed to marshal config: %v", marshalErr)
		}
		fmt.Println(string(data))
	}
}
