package config

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// SettingsAPIServer represents the HTTP API server for settings
// management.
type SettingsAPIServer struct {
	store *SettingsStore
}

// NewSettingsAPIServer creates a new settings API server.
func NewSettingsAPIServer(store *SettingsStore) *SettingsAPIServer {
	return &SettingsAPIServer{
		store: store,
	}
}

// SetupRouter configures the Gin router with settings API routes.
func (s *SettingsAPIServer) SetupRouter() *gin.Engine {
	router := gin.Default()

	// Add CORS middleware
	router.Use(func(ctx *gin.Context) {
		ctx.Header("Access-Control-Allow-Origin", "*")
		ctx.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		ctx.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if ctx.Request.Method == "OPTIONS" {
			ctx.AbortWithStatus(http.StatusOK)
			return
		}

		ctx.Next()
	})

	s.RegisterRoutes(router)
	return router
}

// RegisterRoutes mounts the settings endpoints on an existing router, so
// a combined API server can host them next to other route groups.
func (s *SettingsAPIServer) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1/meta")
	api.GET("/settings", s.HandleGetSettings)
	api.PUT("/settings", s.HandleUpdateSettings)
}

// errorResponse creates a standardized error response.
func errorResponse(code, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}

// HandleGetSettings handles GET /api/v1/meta/settings.
func (s *SettingsAPIServer) HandleGetSettings(ctx *gin.Context) {
	settings, err := s.store.GetSettings()
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, errorResponse("internal_error", "Failed to retrieve settings"))
		return
	}

	ctx.JSON(http.StatusOK, settings)
}

// HandleUpdateSettings handles PUT /api/v1/meta/settings.
func (s *SettingsAPIServer) HandleUpdateSettings(ctx *gin.Context) {
	var updates Settings
	if err := ctx.ShouldBindJSON(&updates); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("bad_request", err.Error()))
		return
	}

	// If no fields provided (empty body), return current settings
	if updates.DefaultProviderType == "" && updates.RequestTimeout == "" && updates.TestTitle == "" {
		settings, err := s.store.GetSettings()
		if err != nil {
			ctx.JSON(http.StatusInternalServerError, errorResponse("internal_error", "Failed to retrieve settings"))
			return
		}
		ctx.JSON(http.StatusOK, settings)
		return
	}

	// Fill omitted fields from the current settings before validating
	current, err := s.store.GetSettings()
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, errorResponse("internal_error", "Failed to retrieve settings"))
		return
	}
	if updates.DefaultProviderType == "" {
		updates.DefaultProviderType = current.DefaultProviderType
	}
	if updates.RequestTimeout == "" {
		updates.RequestTimeout = current.RequestTimeout
	}

	if err := validateProviderType(updates.DefaultProviderType); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("validation_error", err.Error()))
		return
	}
	if err := validateTimeout(updates.RequestTimeout); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("validation_error", err.Error()))
		return
	}

	if err := s.store.UpdateSettings(&updates); err != nil {
		ctx.JSON(http.StatusInternalServerError, errorResponse("internal_error", "Failed to update settings"))
		return
	}

	ctx.JSON(http.StatusOK, updates)
}

// validateProviderType checks that a provider type is one unagi serves.
func validateProviderType(providerType string) error {
	if providerType != "anime" && providerType != "manga" {
		return errors.New("invalid default_provider_type: must be anime or manga")
	}
	return nil
}

// validateTimeout validates that a request timeout is a valid duration.
func validateTimeout(timeout string) error {
	if _, err := time.ParseDuration(timeout); err != nil {
		return errors.New("invalid request_timeout: must be a valid duration (e.g., 15s, 1m)")
	}
	return nil
}
