// Package validation proves candidate provider configs against the live
// site. A config that introspection swears by is still only a guess until
// a real search returns real content.
package validation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/mvachon/unagi/catalog"
	"github.com/mvachon/unagi/providers"
)

// Check names, in pipeline order.
const (
	CheckConnectivity = "Connectivity"
	CheckSearch       = "Search"
	CheckListing      = "Listing"
	CheckResolution   = "Resolution"
)

// DefaultTestTitles are tried in order until one returns results. They are
// well-known enough that any working catalog should match at least one.
var DefaultTestTitles = []string{"One Piece", "Naruto", "Attack on Titan"}

// ValidationCheck records one stage's outcome. Sample carries the value the
// next stage was (or would have been) fed, such as the content id a search
// hit produced.
type ValidationCheck struct {
	Name         string `json:"name"`
	Passed       bool   `json:"passed"`
	Critical     bool   `json:"critical"`
	Cancelled    bool   `json:"cancelled,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	Sample       string `json:"sample,omitempty"`
	DurationMs   int64  `json:"duration_ms"`
}

// ValidationResult is the graded outcome of one validation run. Checks hold
// every stage that was attempted, in order; stages after a failed critical
// check are not attempted and not listed.
type ValidationResult struct {
	Slug         string                           `json:"slug"`
	IsValid      bool                             `json:"is_valid"`
	Checks       []ValidationCheck                `json:"checks"`
	Warning      string                           `json:"warning,omitempty"`
	ErrorSummary string                           `json:"error_summary,omitempty"`
	Cancelled    bool                             `json:"cancelled,omitempty"`
	SuggestedFix *providers.DynamicProviderConfig `json:"suggested_fix,omitempty"`
	DurationMs   int64                            `json:"duration_ms"`
	ValidatedAt  time.Time                        `json:"validated_at"`
}

// FailedChecks lists the names of all checks that did not pass.
func (r *ValidationResult) FailedChecks() []string {
	var failed []string
	for _, c := range r.Checks {
		if !c.Passed {
			failed = append(failed, c.Name)
		}
	}
	return failed
}

// Validator runs the four-stage pipeline. Safe for concurrent use; parallel
// validations of different configs share only the HTTP client.
type Validator struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	testTitles []string
}

// Option configures a Validator.
type Option func(*Validator)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(v *Validator) {
		if client != nil {
			v.httpClient = client
		}
	}
}

// WithTestTitles replaces the default search fallback titles.
func WithTestTitles(titles []string) Option {
	return func(v *Validator) {
		if len(titles) > 0 {
			v.testTitles = titles
		}
	}
}

// WithRateLimit throttles outbound requests to perSecond with the given
// burst. Zero or negative values disable throttling.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(v *Validator) {
		if perSecond > 0 && burst > 0 {
			v.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// New creates a validator.
func New(opts ...Option) *Validator {
	v := &Validator{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		testTitles: DefaultTestTitles,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate exercises cfg end-to-end. testTitle, when non-empty, is searched
// before the default fallback titles. The pipeline stops at the first
// failed critical check and at cancellation; soft failures in the listing
// and resolution stages downgrade the result without invalidating it.
func (v *Validator) Validate(ctx context.Context, cfg *providers.DynamicProviderConfig, testTitle string) *ValidationResult {
	started := time.Now()
	result := &ValidationResult{
		Slug:        cfg.Slug,
		ValidatedAt: started,
	}
	defer func() {
		result.DurationMs = time.Since(started).Milliseconds()
	}()

	engine := catalog.NewEngine(cfg, catalog.WithHTTPClient(v.httpClient))

	// Stage 1: the base host must answer at all.
	connectivity := v.checkConnectivity(ctx, cfg)
	result.Checks = append(result.Checks, connectivity)
	if !connectivity.Passed {
		return v.grade(result, cfg)
	}

	// Stage 2: a search must return at least one hit.
	search := v.checkSearch(ctx, engine, testTitle)
	result.Checks = append(result.Checks, search)
	if !search.Passed {
		return v.grade(result, cfg)
	}

	// Stage 3: the hit must list episodes or chapters. Stage 4 needs its
	// sample, so a listing failure ends the run softly.
	listing := v.checkListing(ctx, engine, cfg, search.Sample)
	result.Checks = append(result.Checks, listing)
	if !listing.Passed {
		return v.grade(result, cfg)
	}

	// Stage 4: a listed item must resolve to streams or pages.
	resolution := v.checkResolution(ctx, engine, cfg, listing.Sample)
	result.Checks = append(result.Checks, resolution)

	return v.grade(result, cfg)
}

// grade derives the overall verdict from the collected checks.
func (v *Validator) grade(result *ValidationResult, cfg *providers.DynamicProviderConfig) *ValidationResult {
	criticalFailed := false
	softFailed := false
	for _, c := range result.Checks {
		if c.Cancelled {
			result.Cancelled = true
		}
		if c.Passed {
			continue
		}
		if c.Critical {
			criticalFailed = true
		} else {
			softFailed = true
		}
	}

	if result.Cancelled {
		result.IsValid = false
		result.ErrorSummary = "validation cancelled before completion"
		return result
	}

	if criticalFailed {
		result.IsValid = false
		result.ErrorSummary = fmt.Sprintf("failed checks: %s", strings.Join(result.FailedChecks(), ", "))
		result.SuggestedFix = suggestFix(cfg, result)
		return result
	}

	result.IsValid = true
	if softFailed {
		result.Warning = fmt.Sprintf("provider may still work, non-critical checks failed: %s",
			strings.Join(result.FailedChecks(), ", "))
	}
	return result
}

func (v *Validator) wait(ctx context.Context) error {
	if v.limiter == nil {
		return nil
	}
	return v.limiter.Wait(ctx)
}

func (v *Validator) checkConnectivity(ctx context.Context, cfg *providers.DynamicProviderConfig) ValidationCheck {
	check := ValidationCheck{Name: CheckConnectivity, Critical: true}
	started := time.Now()
	defer func() {
		check.DurationMs = time.Since(started).Milliseconds()
	}()

	if err := v.wait(ctx); err != nil {
		return failCheck(check, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, cfg.Host.BaseURL, nil)
	if err != nil {
		return failCheck(check, fmt.Errorf("failed to create request: %w", err))
	}
	if cfg.Host.UserAgent != "" {
		req.Header.Set("User-Agent", cfg.Host.UserAgent)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return failCheck(check, fmt.Errorf("failed to reach %s: %w", cfg.Host.BaseURL, err))
	}
	resp.Body.Close()

	// 405 means the server dislikes HEAD, not that it is down
	if (resp.StatusCode >= 200 && resp.StatusCode <= 299) || resp.StatusCode == http.StatusMethodNotAllowed {
		check.Passed = true
		check.Sample = resp.Status
		return check
	}
	check.ErrorMessage = fmt.Sprintf("unexpected status %s from %s", resp.Status, cfg.Host.BaseURL)
	return check
}

func (v *Validator) checkSearch(ctx context.Context, engine *catalog.Engine, testTitle string) ValidationCheck {
	check := ValidationCheck{Name: CheckSearch, Critical: true}
	started := time.Now()
	defer func() {
		check.DurationMs = time.Since(started).Milliseconds()
	}()

	titles := v.testTitles
	if testTitle != "" {
		titles = append([]string{testTitle}, titles...)
	}

	// First title that yields results wins; later titles are not tried.
	var lastErr error
	for _, title := range titles {
		if err := v.wait(ctx); err != nil {
			return failCheck(check, err)
		}
		results, err := engine.Search(ctx, title)
		if err != nil {
			if isCancellation(err) {
				return failCheck(check, err)
			}
			lastErr = err
			continue
		}
		if len(results) == 0 {
			lastErr = fmt.Errorf("no results for %q", title)
			continue
		}
		check.Passed = true
		check.Sample = results[0].ID
		return check
	}

	if lastErr == nil {
		lastErr = errors.New("no test titles configured")
	}
	check.ErrorMessage = fmt.Sprintf("all %d test searches failed: %v", len(titles), lastErr)
	return check
}

func (v *Validator) checkListing(ctx context.Context, engine *catalog.Engine, cfg *providers.DynamicProviderConfig, mediaID string) ValidationCheck {
	check := ValidationCheck{Name: CheckListing}
	started := time.Now()
	defer func() {
		check.DurationMs = time.Since(started).Milliseconds()
	}()

	if err := v.wait(ctx); err != nil {
		return failCheck(check, err)
	}

	if cfg.Type == providers.TypeManga {
		chapters, err := engine.Chapters(ctx, mediaID)
		if err != nil {
			return failCheck(check, err)
		}
		if len(chapters) == 0 {
			check.ErrorMessage = fmt.Sprintf("no chapters listed for %q", mediaID)
			return check
		}
		check.Passed = true
		check.Sample = chapters[0].ID
		return check
	}

	episodes, err := engine.Episodes(ctx, mediaID)
	if err != nil {
		return failCheck(check, err)
	}
	if len(episodes) == 0 {
		check.ErrorMessage = fmt.Sprintf("no episodes listed for %q", mediaID)
		return check
	}
	check.Passed = true
	check.Sample = episodes[0].ID
	return check
}

func (v *Validator) checkResolution(ctx context.Context, engine *catalog.Engine, cfg *providers.DynamicProviderConfig, itemID string) ValidationCheck {
	check := ValidationCheck{Name: CheckResolution}
	started := time.Now()
	defer func() {
		check.DurationMs = time.Since(started).Milliseconds()
	}()

	if err := v.wait(ctx); err != nil {
		return failCheck(check, err)
	}

	if cfg.Type == providers.TypeManga {
		pages, err := engine.Pages(ctx, itemID)
		if err != nil {
			return failCheck(check, err)
		}
		if len(pages) == 0 {
			check.ErrorMessage = fmt.Sprintf("no pages resolved for %q", itemID)
			return check
		}
		check.Passed = true
		check.Sample = pages[0].URL
		return check
	}

	links, err := engine.Streams(ctx, itemID)
	if err != nil {
		return failCheck(check, err)
	}
	if len(links) == 0 {
		check.ErrorMessage = fmt.Sprintf("no streams resolved for %q", itemID)
		return check
	}
	check.Passed = true
	check.Sample = links[0].URL
	return check
}

// failCheck finalises a check that died on an error, distinguishing
// cancellation from genuine rejection.
func failCheck(check ValidationCheck, err error) ValidationCheck {
	check.Passed = false
	check.ErrorMessage = err.Error()
	if isCancellation(err) {
		check.Cancelled = true
	}
	return check
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// suggestFix proposes a config tweak for failure shapes with a known cure.
// Currently: search failing against a host with no Referer set often means
// the site gates its API on one.
func suggestFix(cfg *providers.DynamicProviderConfig, result *ValidationResult) *providers.DynamicProviderConfig {
	searchFailed := false
	for _, c := range result.Checks {
		if c.Name == CheckSearch && !c.Passed && !c.Cancelled {
			searchFailed = true
		}
	}
	if !searchFailed || cfg.Host.Referer != "" || cfg.Host.BaseURL == "" {
		return nil
	}

	fixed := *cfg
	fixed.Host.Referer = cfg.Host.BaseURL
	return &fixed
}
