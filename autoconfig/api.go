package autoconfig

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mvachon/unagi/providers"
	"github.com/mvachon/unagi/validation"
)

// maxRunDuration caps one API-triggered autoconfig run.
const maxRunDuration = 2 * time.Minute

// APIServer exposes autoconfig runs and provider validation over HTTP.
type APIServer struct {
	store     *providers.Store
	pipeline  *Pipeline
	validator *validation.Validator
}

// NewAPIServer creates an autoconfig API server backed by store. Generated
// configs that validate are persisted there.
func NewAPIServer(store *providers.Store) *APIServer {
	return &APIServer{
		store:     store,
		pipeline:  NewPipeline(WithStore(store)),
		validator: validation.New(),
	}
}

// RegisterRoutes mounts the autoconfig routes on an existing router.
func (s *APIServer) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	api.POST("/autoconfig", s.HandleAutoconfigure)
	api.POST("/providers/:slug/validate", s.HandleValidateProvider)
}

// AutoconfigRequest represents the request for POST /api/v1/autoconfig.
type AutoconfigRequest struct {
	BaseURL      string `json:"base_url"`
	ProviderType string `json:"provider_type,omitempty"`
	TestTitle    string `json:"test_title,omitempty"`
}

// ValidateRequest represents the request for POST
// /api/v1/providers/{slug}/validate.
type ValidateRequest struct {
	TestTitle string `json:"test_title,omitempty"`
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

// HandleAutoconfigure handles POST /api/v1/autoconfig. The run executes
// synchronously; a site that cannot be automated still yields 200 with
// success=false and the phase log explaining where it stopped.
func (s *APIServer) HandleAutoconfigure(c *gin.Context) {
	var req AutoconfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("bad_request", err.Error()))
		return
	}

	if req.BaseURL == "" {
		c.JSON(http.StatusBadRequest, errorResponse("validation_error", "base_url is required"))
		return
	}

	providerType := providers.ProviderType(req.ProviderType)
	if req.ProviderType == "" {
		providerType = providers.TypeAnime
	}

	// Respect client disconnects but cap the total run time
	ctx, cancel := context.WithTimeout(c.Request.Context(), maxRunDuration)
	defer cancel()

	pipeline := s.pipeline
	if req.TestTitle != "" {
		pipeline = NewPipeline(WithStore(s.store), WithTestTitle(req.TestTitle))
	}

	result, err := pipeline.Run(ctx, req.BaseURL, providerType)
	if err != nil {
		switch {
		case errors.Is(err, providers.ErrInvalidProviderType):
			c.JSON(http.StatusBadRequest, errorResponse("validation_error", err.Error()))
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
			c.JSON(http.StatusGatewayTimeout, errorResponse("timeout", "autoconfig run did not finish in time"))
		default:
			c.JSON(http.StatusBadGateway, errorResponse("site_unreachable", err.Error()))
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

// HandleValidateProvider handles POST /api/v1/providers/{slug}/validate.
func (s *APIServer) HandleValidateProvider(c *gin.Context) {
	cfg, err := s.store.Get(c.Param("slug"))
	if err != nil {
		if errors.Is(err, providers.ErrProviderNotFound) {
			c.JSON(http.StatusNotFound, errorResponse("not_found", err.Error()))
		} else {
			c.JSON(http.StatusInternalServerError, errorResponse("internal_error", "Failed to process request"))
		}
		return
	}

	// The body is optional; an empty one validates with the default titles
	var req ValidateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("bad_request", err.Error()))
			return
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), maxRunDuration)
	defer cancel()

	result := s.validator.Validate(ctx, cfg, req.TestTitle)

	if result.IsValid {
		if err := s.store.TouchValidated(cfg.Slug, result.ValidatedAt); err != nil {
			c.JSON(http.StatusInternalServerError, errorResponse("internal_error", "Failed to record validation"))
			return
		}
	}

	c.JSON(http.StatusOK, result)
}
