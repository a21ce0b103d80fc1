package autoconfig

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mvachon/unagi/introspect"
	"github.com/mvachon/unagi/profile"
	"github.com/mvachon/unagi/providers"
	"github.com/mvachon/unagi/validation"
)

// Phase names, in pipeline order.
const (
	PhaseProfile    = "profile"
	PhaseAnalyze    = "analyze"
	PhaseIntrospect = "introspect"
	PhaseGenerate   = "generate"
	PhaseValidate   = "validate"
	PhasePersist    = "persist"
)

// AnalysisPhase records one pipeline step for observability.
type AnalysisPhase struct {
	Name       string   `json:"name"`
	Success    bool     `json:"success"`
	Message    string   `json:"message,omitempty"`
	DurationMs int64    `json:"duration_ms"`
	Steps      []string `json:"steps,omitempty"`
}

// AutoconfigResult ties together everything one run produced. Partial
// results are kept even when a later phase fails, so a caller can see how
// far the run got and why it stopped.
type AutoconfigResult struct {
	ID           string                           `json:"id"`
	BaseURL      string                           `json:"base_url"`
	ProviderType providers.ProviderType           `json:"provider_type"`
	Profile      *profile.SiteProfile             `json:"profile,omitempty"`
	Analysis     *AnalysisResult                  `json:"analysis,omitempty"`
	Schema       *introspect.SchemaInfo           `json:"schema,omitempty"`
	Config       *providers.DynamicProviderConfig `json:"config,omitempty"`
	Validation   *validation.ValidationResult     `json:"validation,omitempty"`
	Phases       []AnalysisPhase                  `json:"phases"`
	Success      bool                             `json:"success"`
	StartedAt    time.Time                        `json:"started_at"`
	CompletedAt  time.Time                        `json:"completed_at"`
}

func (r *AutoconfigResult) addPhase(name string, started time.Time, success bool, message string, steps ...string) {
	r.Phases = append(r.Phases, AnalysisPhase{
		Name:       name,
		Success:    success,
		Message:    message,
		DurationMs: time.Since(started).Milliseconds(),
		Steps:      steps,
	})
}

// Pipeline runs the full autoconfig flow for one site. Safe for concurrent
// use: each Run works on its own result and the components share only
// thread-safe clients.
type Pipeline struct {
	profiler     *profile.Profiler
	introspector *introspect.Introspector
	validator    *validation.Validator
	store        *providers.Store
	testTitle    string
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithProfiler replaces the default site profiler.
func WithProfiler(p *profile.Profiler) PipelineOption {
	return func(pl *Pipeline) {
		if p != nil {
			pl.profiler = p
		}
	}
}

// WithIntrospector replaces the default introspector.
func WithIntrospector(i *introspect.Introspector) PipelineOption {
	return func(pl *Pipeline) {
		if i != nil {
			pl.introspector = i
		}
	}
}

// WithValidator replaces the default validator.
func WithValidator(v *validation.Validator) PipelineOption {
	return func(pl *Pipeline) {
		if v != nil {
			pl.validator = v
		}
	}
}

// WithStore enables persisting validated configs.
func WithStore(s *providers.Store) PipelineOption {
	return func(pl *Pipeline) {
		pl.store = s
	}
}

// WithTestTitle sets a site-specific title searched before the defaults
// during validation.
func WithTestTitle(title string) PipelineOption {
	return func(pl *Pipeline) {
		pl.testTitle = title
	}
}

// NewPipeline creates a pipeline with default components.
func NewPipeline(opts ...PipelineOption) *Pipeline {
	pl := &Pipeline{
		profiler:     profile.NewProfiler(),
		introspector: introspect.New(),
		validator:    validation.New(),
	}
	for _, opt := range opts {
		opt(pl)
	}
	return pl
}

// Run analyzes baseURL end-to-end. A site that turns out not to be
// automatable yields a result with Success=false and the phase that
// stopped it, not an error; errors are reserved for bad input and
// cancellation.
func (p *Pipeline) Run(ctx context.Context, baseURL string, providerType providers.ProviderType) (*AutoconfigResult, error) {
	if providerType != providers.TypeAnime && providerType != providers.TypeManga {
		return nil, providers.ErrInvalidProviderType
	}

	result := &AutoconfigResult{
		ID:           uuid.New().String(),
		BaseURL:      baseURL,
		ProviderType: providerType,
		StartedAt:    time.Now(),
	}
	defer func() {
		result.CompletedAt = time.Now()
	}()

	log.Printf("INFO: autoconfig run %s started for %s", result.ID, baseURL)

	// Phase 1: crawl the site.
	started := time.Now()
	prof, err := p.profiler.Profile(ctx, baseURL)
	if err != nil {
		result.addPhase(PhaseProfile, started, false, err.Error())
		log.Printf("ERROR: profiling %s failed: %v", baseURL, err)
		return result, fmt.Errorf("failed to profile site: %w", err)
	}
	result.Profile = prof
	result.addPhase(PhaseProfile, started, true,
		fmt.Sprintf("site type %s, %d endpoints detected", prof.SiteType, len(prof.DetectedAPIEndpoints)),
		prof.Errors...)

	// Phase 2: fingerprint and score patterns. Never fails.
	started = time.Now()
	result.Analysis = Analyze(prof)
	var patternSteps []string
	for _, match := range result.Analysis.Patterns {
		patternSteps = append(patternSteps, fmt.Sprintf("%s %.2f %s", match.Type, match.Confidence, match.Evidence))
	}
	result.addPhase(PhaseAnalyze, started, true,
		fmt.Sprintf("fingerprint %.8s, confidence %.2f", result.Analysis.Fingerprint.Hash, result.Analysis.Confidence),
		patternSteps...)

	// Phase 3: introspect the GraphQL schema.
	started = time.Now()
	if !prof.HasGraphQL {
		result.addPhase(PhaseIntrospect, started, false, "site does not expose GraphQL")
		log.Printf("WARN: %s has no GraphQL endpoint, stopping", baseURL)
		return result, nil
	}

	schema, steps, err := p.introspectFirst(ctx, prof)
	if err != nil {
		result.addPhase(PhaseIntrospect, started, false, err.Error(), steps...)
		return result, err
	}
	if schema == nil {
		result.addPhase(PhaseIntrospect, started, false, "introspection unsupported or disabled", steps...)
		log.Printf("WARN: no introspectable endpoint found for %s", baseURL)
		return result, nil
	}
	result.Schema = schema
	result.addPhase(PhaseIntrospect, started, true,
		fmt.Sprintf("%d queries, %d types at %s", len(schema.Queries), len(schema.Types), schema.Endpoint),
		steps...)

	// Phase 4: synthesize a candidate config.
	started = time.Now()
	cfg, err := introspect.BuildConfig(schema, prof, providerType)
	if err != nil {
		result.addPhase(PhaseGenerate, started, false, err.Error())
		log.Printf("WARN: could not generate a config for %s: %v", baseURL, err)
		return result, nil
	}
	result.Config = cfg
	result.addPhase(PhaseGenerate, started, true,
		fmt.Sprintf("config %q with %d queries, confidence %.2f", cfg.Slug, len(cfg.Queries), cfg.Confidence))

	// Phase 5: prove the config against the live site.
	started = time.Now()
	verdict := p.validator.Validate(ctx, cfg, p.testTitle)
	result.Validation = verdict
	var checkSteps []string
	for _, check := range verdict.Checks {
		state := "passed"
		if !check.Passed {
			state = "failed: " + check.ErrorMessage
		}
		checkSteps = append(checkSteps, fmt.Sprintf("%s %s", check.Name, state))
	}
	if verdict.Cancelled {
		result.addPhase(PhaseValidate, started, false, "validation cancelled", checkSteps...)
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		return result, nil
	}
	if !verdict.IsValid {
		result.addPhase(PhaseValidate, started, false, verdict.ErrorSummary, checkSteps...)
		log.Printf("WARN: generated config for %s failed validation: %s", baseURL, verdict.ErrorSummary)
		return result, nil
	}
	message := "all checks passed"
	if verdict.Warning != "" {
		message = verdict.Warning
	}
	result.addPhase(PhaseValidate, started, true, message, checkSteps...)

	// Phase 6: persist, when a store is wired in.
	if p.store != nil {
		started = time.Now()
		if err := p.persist(cfg, verdict.ValidatedAt); err != nil {
			result.addPhase(PhasePersist, started, false, err.Error())
			log.Printf("ERROR: failed to persist config %q: %v", cfg.Slug, err)
			return result, nil
		}
		result.addPhase(PhasePersist, started, true, fmt.Sprintf("saved provider %q", cfg.Slug))
	}

	result.Success = true
	log.Printf("INFO: autoconfig run %s succeeded, provider %q ready", result.ID, cfg.Slug)
	return result, nil
}

// persist upserts the validated config and stamps its validation time.
func (p *Pipeline) persist(cfg *providers.DynamicProviderConfig, validatedAt time.Time) error {
	err := p.store.Create(cfg)
	if errors.Is(err, providers.ErrDuplicateSlug) {
		// Re-running against a known site refreshes the stored config
		err = p.store.UpdateProvider(cfg.Slug, providers.Update{
			Name:       &cfg.Name,
			Host:       &cfg.Host,
			Queries:    cfg.Queries,
			Confidence: &cfg.Confidence,
		})
	}
	if err != nil {
		return err
	}
	if err := p.store.TouchValidated(cfg.Slug, validatedAt); err != nil {
		return err
	}
	cfg.LastValidatedAt = &validatedAt
	return nil
}

// introspectFirst tries each candidate endpoint in order and returns the
// first schema found. Per-endpoint outcomes come back as step lines.
func (p *Pipeline) introspectFirst(ctx context.Context, prof *profile.SiteProfile) (*introspect.SchemaInfo, []string, error) {
	var steps []string
	for _, endpoint := range candidateEndpoints(prof) {
		schema, err := p.introspector.Introspect(ctx, endpoint, prof)
		if err != nil {
			steps = append(steps, fmt.Sprintf("%s: %v", endpoint, err))
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, steps, err
			}
			continue
		}
		if schema == nil {
			steps = append(steps, fmt.Sprintf("%s: introspection refused", endpoint))
			continue
		}
		steps = append(steps, fmt.Sprintf("%s: schema found", endpoint))
		return schema, steps, nil
	}
	return nil, steps, nil
}

// candidateEndpoints resolves the GraphQL-looking detected endpoints to
// absolute URLs, with the well-known paths appended as fallbacks.
func candidateEndpoints(prof *profile.SiteProfile) []string {
	base, err := url.Parse(prof.BaseURL)
	if err != nil {
		return nil
	}

	seen := map[string]bool{}
	var candidates []string
	add := func(endpoint string) {
		ref, err := url.Parse(endpoint)
		if err != nil {
			return
		}
		resolved := base.ResolveReference(ref).String()
		if !seen[resolved] {
			seen[resolved] = true
			candidates = append(candidates, resolved)
		}
	}

	for _, endpoint := range prof.DetectedAPIEndpoints {
		if strings.Contains(strings.ToLower(endpoint), "graphql") {
			add(endpoint)
		}
	}
	add("/graphql")
	add("/api/graphql")
	return candidates
}
