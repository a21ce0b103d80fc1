package introspect

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/mvachon/unagi/profile"
	"github.com/mvachon/unagi/providers"
)

// ErrNoSearchQuery indicates the schema exposed nothing classifiable as a
// search query, so no usable config can be assembled.
var ErrNoSearchQuery = errors.New("schema has no usable search query")

// purposeTemplateKeys maps inferred purposes to the template slots a
// provider config stores them under.
var purposeTemplateKeys = map[QueryPurpose]string{
	PurposeSearch:      providers.QuerySearch,
	PurposeGetByID:     providers.QueryDetail,
	PurposeGetEpisodes: providers.QueryEpisodes,
	PurposeGetChapters: providers.QueryChapters,
}

// BuildConfig assembles a candidate provider config from an introspected
// schema. The candidate is unvalidated: its confidence reflects how well
// the schema matched the expected shapes, not whether the queries work.
// A schema without a search query cannot produce a config.
func BuildConfig(schema *SchemaInfo, prof *profile.SiteProfile, providerType providers.ProviderType) (*providers.DynamicProviderConfig, error) {
	if schema == nil {
		return nil, fmt.Errorf("failed to build config: schema is nil")
	}

	generated := GenerateQueries(schema, providerType)

	// Highest-confidence candidate per slot wins; the slice is already
	// ordered by descending confidence.
	queries := map[string]providers.QueryTemplate{}
	searchConfidence := 0.0
	for _, gq := range generated {
		key, ok := purposeTemplateKeys[gq.Purpose]
		if !ok {
			continue
		}
		if _, taken := queries[key]; taken {
			continue
		}
		queries[key] = providers.QueryTemplate{
			Query:      gq.Document,
			Variables:  gq.Variables,
			ResultPath: gq.ResultPath,
			Fields:     gq.Fields,
		}
		if gq.Purpose == PurposeSearch {
			searchConfidence = gq.Confidence
		}
	}

	if _, ok := queries[providers.QuerySearch]; !ok {
		return nil, ErrNoSearchQuery
	}

	name, baseURL := siteIdentity(schema, prof)

	host := providers.HostConfig{
		BaseURL: baseURL,
		APIURL:  schema.Endpoint,
	}
	if prof != nil {
		for header, value := range prof.RequiredHeaders {
			switch header {
			case "Referer":
				host.Referer = value
			case "User-Agent":
				host.UserAgent = value
			default:
				if host.Headers == nil {
					host.Headers = map[string]string{}
				}
				host.Headers[header] = value
			}
		}
	}

	// Titles in other scripts can slugify to nothing; the host always works
	slug := providers.Slugify(name)
	if slug == "" {
		if parsed, err := url.Parse(host.BaseURL); err == nil {
			slug = providers.Slugify(parsed.Hostname())
		}
	}

	cfg := &providers.DynamicProviderConfig{
		Slug:       slug,
		Name:       name,
		Type:       providerType,
		Host:       host,
		Queries:    queries,
		Version:    "0.1.0",
		Builtin:    false,
		Confidence: searchConfidence,
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to build config: %w", err)
	}
	return cfg, nil
}

// siteIdentity picks a human name and base URL for the candidate, falling
// back from the profile to the endpoint itself.
func siteIdentity(schema *SchemaInfo, prof *profile.SiteProfile) (name string, baseURL string) {
	if prof != nil {
		baseURL = prof.BaseURL
		if title := strings.TrimSpace(prof.Title); title != "" {
			return title, baseURL
		}
	}

	parsed, err := url.Parse(schema.Endpoint)
	if err != nil || parsed.Host == "" {
		if baseURL == "" {
			baseURL = schema.Endpoint
		}
		return "unknown-site", baseURL
	}
	if baseURL == "" {
		baseURL = parsed.Scheme + "://" + parsed.Host
	}
	return strings.TrimPrefix(parsed.Hostname(), "www."), baseURL
}
