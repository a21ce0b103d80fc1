package providers

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Custom errors for provider operations
var (
	ErrProviderNotFound    = errors.New("provider not found")
	ErrDuplicateSlug       = errors.New("provider with this slug already exists")
	ErrInvalidProviderType = errors.New("provider type must be anime or manga")
)

// ProviderType identifies the kind of media a provider serves.
type ProviderType string

const (
	TypeAnime ProviderType = "anime"
	TypeManga ProviderType = "manga"
)

// Keys for the query templates a config may carry. Search is mandatory;
// the listing and resolution keys depend on the provider type.
const (
	QuerySearch   = "search"
	QueryDetail   = "detail"
	QueryEpisodes = "episodes"
	QueryChapters = "chapters"
	QueryStreams  = "streams"
	QueryPages    = "pages"
)

// Runtime tokens substituted into template variables when a query executes.
const (
	TokenTitle   = "{title}"
	TokenMediaID = "{media_id}"
	TokenItemID  = "{item_id}"
)

// HostConfig describes how to reach a provider's site and API.
type HostConfig struct {
	BaseURL   string            `json:"base_url"`
	APIURL    string            `json:"api_url"`
	Referer   string            `json:"referer,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
}

// QueryTemplate is one executable GraphQL operation: the document text, a
// binding from each GraphQL variable to a runtime token, the dot path to the
// result list in the response, and the per-item field mapping.
type QueryTemplate struct {
	Query      string            `json:"query"`
	Variables  map[string]string `json:"variables,omitempty"`
	ResultPath string            `json:"result_path"`
	Fields     map[string]string `json:"fields,omitempty"`
}

// DynamicProviderConfig is the synthesized, persistable description of how
// to scrape one site. Builtin distinguishes hand-written configs shipped
// with the tool from auto-generated ones.
type DynamicProviderConfig struct {
	Slug            string                   `json:"slug"`
	Name            string                   `json:"name"`
	Type            ProviderType             `json:"type"`
	Host            HostConfig               `json:"host"`
	Queries         map[string]QueryTemplate `json:"queries"`
	Version         string                   `json:"version"`
	Builtin         bool                     `json:"builtin"`
	Confidence      float64                  `json:"confidence,omitempty"`
	CreatedAt       time.Time                `json:"created_at"`
	UpdatedAt       time.Time                `json:"updated_at"`
	LastValidatedAt *time.Time               `json:"last_validated_at,omitempty"`
}

var (
	slugPattern    = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	versionPattern = regexp.MustCompile(`^\d+\.\d+\.\d+$`)
)

// Validate checks that the config is complete enough to persist and run.
func (c *DynamicProviderConfig) Validate() error {
	if c.Slug == "" {
		return errors.New("slug is required")
	}
	if !slugPattern.MatchString(c.Slug) {
		return fmt.Errorf("invalid slug %q: must be lowercase letters, digits, and hyphens", c.Slug)
	}
	if c.Name == "" {
		return errors.New("name is required")
	}
	if c.Type != TypeAnime && c.Type != TypeManga {
		return ErrInvalidProviderType
	}
	if c.Host.BaseURL == "" {
		return errors.New("host base_url is required")
	}
	if c.Host.APIURL == "" {
		return errors.New("host api_url is required")
	}
	if c.Version == "" {
		return errors.New("version is required")
	}
	if !versionPattern.MatchString(c.Version) {
		return fmt.Errorf("invalid version %q: must be semantic (e.g. 0.1.0)", c.Version)
	}
	if _, ok := c.Queries[QuerySearch]; !ok {
		return errors.New("a search query template is required")
	}
	return nil
}

// Query returns the template stored under key, if any.
func (c *DynamicProviderConfig) Query(key string) (QueryTemplate, bool) {
	tpl, ok := c.Queries[key]
	return tpl, ok
}

// ListingQueryKey returns the template key for the content-listing stage of
// this provider type: episodes for anime, chapters for manga.
func (c *DynamicProviderConfig) ListingQueryKey() string {
	if c.Type == TypeManga {
		return QueryChapters
	}
	return QueryEpisodes
}

// ResolutionQueryKey returns the template key for the media-resolution
// stage: streams for anime, pages for manga.
func (c *DynamicProviderConfig) ResolutionQueryKey() string {
	if c.Type == TypeManga {
		return QueryPages
	}
	return QueryStreams
}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a config slug from a site name or host.
func Slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.TrimPrefix(s, "www.")
	s = nonSlugChars.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
