package providers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIServer represents the HTTP API server for provider management.
type APIServer struct {
	store *Store
}

// NewAPIServer creates a new provider API server.
func NewAPIServer(store *Store) *APIServer {
	return &APIServer{
		store: store,
	}
}

// SetupRouter configures the Gin router with all provider API routes.
func (s *APIServer) SetupRouter() *gin.Engine {
	router := gin.Default()

	// Add CORS middleware
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	})

	api := router.Group("/api/v1")
	api.GET("/providers", s.HandleListProviders)
	api.GET("/providers/:slug", s.HandleGetProvider)
	api.POST("/providers", s.HandleCreateProvider)
	api.PUT("/providers/:slug", s.HandleUpdateProvider)
	api.DELETE("/providers/:slug", s.HandleDeleteProvider)

	return router
}

// ListProvidersResponse represents the response for GET /api/v1/providers.
type ListProvidersResponse struct {
	Providers []DynamicProviderConfig `json:"providers"`
	Total     int                     `json:"total"`
}

// UpdateProviderRequest represents the request for PUT
// /api/v1/providers/{slug}.
type UpdateProviderRequest struct {
	Name       *string                  `json:"name,omitempty"`
	Host       *HostConfig              `json:"host,omitempty"`
	Queries    map[string]QueryTemplate `json:"queries,omitempty"`
	Version    *string                  `json:"version,omitempty"`
	Confidence *float64                 `json:"confidence,omitempty"`
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

// handleError maps domain errors to HTTP responses.
func (s *APIServer) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrProviderNotFound):
		c.JSON(http.StatusNotFound, errorResponse("not_found", err.Error()))
	case errors.Is(err, ErrDuplicateSlug):
		c.JSON(http.StatusConflict, errorResponse("conflict", err.Error()))
	case errors.Is(err, ErrInvalidProviderType):
		c.JSON(http.StatusBadRequest, errorResponse("validation_error", err.Error()))
	default:
		c.JSON(http.StatusInternalServerError, errorResponse("internal_error", "Failed to process request"))
	}
}

// HandleListProviders handles GET /api/v1/providers.
func (s *APIServer) HandleListProviders(c *gin.Context) {
	// Build filter from query parameters
	filter := Filter{}

	if typeParam := c.Query("type"); typeParam != "" {
		t := ProviderType(typeParam)
		if t != TypeAnime && t != TypeManga {
			c.JSON(http.StatusBadRequest, errorResponse("validation_error", ErrInvalidProviderType.Error()))
			return
		}
		filter.Type = &t
	}

	if builtinParam := c.Query("builtin"); builtinParam != "" {
		builtin := builtinParam == "true"
		filter.Builtin = &builtin
	}

	if validatedParam := c.Query("validated"); validatedParam != "" {
		validated := validatedParam == "true"
		filter.Validated = &validated
	}

	configs, err := s.store.List(filter)
	if err != nil {
		s.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, ListProvidersResponse{
		Providers: configs,
		Total:     len(configs),
	})
}

// HandleGetProvider handles GET /api/v1/providers/{slug}.
func (s *APIServer) HandleGetProvider(c *gin.Context) {
	cfg, err := s.store.Get(c.Param("slug"))
	if err != nil {
		s.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, cfg)
}

// HandleCreateProvider handles POST /api/v1/providers.
func (s *APIServer) HandleCreateProvider(c *gin.Context) {
	var cfg DynamicProviderConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("bad_request", err.Error()))
		return
	}

	// Validate before hitting the store so the caller gets a precise message
	if err := cfg.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("validation_error", err.Error()))
		return
	}

	if err := s.store.Create(&cfg); err != nil {
		s.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, cfg)
}

// HandleUpdateProvider handles PUT /api/v1/providers/{slug}.
func (s *APIServer) HandleUpdateProvider(c *gin.Context) {
	slug := c.Param("slug")

	var req UpdateProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("bad_request", err.Error()))
		return
	}

	update := Update{
		Name:       req.Name,
		Host:       req.Host,
		Queries:    req.Queries,
		Version:    req.Version,
		Confidence: req.Confidence,
	}

	if err := s.store.UpdateProvider(slug, update); err != nil {
		s.handleError(c, err)
		return
	}

	// Return updated config
	cfg, err := s.store.Get(slug)
	if err != nil {
		s.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, cfg)
}

// HandleDeleteProvider handles DELETE /api/v1/providers/{slug}.
func (s *APIServer) HandleDeleteProvider(c *gin.Context) {
	if err := s.store.Delete(c.Param("slug")); err != nil {
		s.handleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
