package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"

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

func main() {
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

	// Create provider store
	providerStore, err := providers.NewStore(dbPath)
	if err != nil {
		log.Fatalf("Failed to create provider store: %v", err)
	}
	defer providerStore.Close()

	// Create settings store (shares the provider database)
	settingsStore, err := config.NewSettingsStore(dbPath)
	if err != nil {
		log.Fatalf("Failed to create settings store: %v", err)
	}
	defer settingsStore.Close()

	// Create router with CORS middleware
	router := gin.Default()

	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(200)
			return
		}

		c.Next()
	})

	// Mount provider API routes
	providerServer := providers.NewAPIServer(providerStore)
	providerGroup := router.Group("/api/v1")
	providerGroup.GET("/providers", providerServer.HandleListProviders)
	providerGroup.GET("/providers/:slug", providerServer.HandleGetProvider)
	providerGroup.POST("/providers", providerServer.HandleCreateProvider)
	providerGroup.PUT("/providers/:slug", providerServer.HandleUpdateProvider)
	providerGroup.DELETE("/providers/:slug", providerServer.HandleDeleteProvider)

	// Mount autoconfig and validation routes
	autoconfigServer := autoconfig.NewAPIServer(providerStore)
	autoconfigServer.RegisterRoutes(router)

	// Mount settings routes
	settingsServer := config.NewSettingsAPIServer(settingsStore)
	settingsServer.RegisterRoutes(router)

	// Start server
	addr := getEnv("UNAGI_API_ADDR", "localhost:8080")
	log.Printf("Starting unagi API server on http://%s/api/v1", addr)

	if err := router.Run(addr); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
