// Package autoconfig turns a crawled site profile into a working provider
// config: fingerprint and pattern analysis, schema introspection, query
// synthesis, and live validation, chained into one pipeline.
package autoconfig

import (
	"strings"
	"time"

	"github.com/mvachon/unagi/profile"
)

// PatternType classifies a piece of structural evidence.
type PatternType string

const (
	PatternContentType     PatternType = "ContentType"
	PatternSearchEndpoint  PatternType = "SearchEndpoint"
	PatternEpisodeEndpoint PatternType = "EpisodeEndpoint"
	PatternEncoding        PatternType = "Encoding"
)

// PatternMatch is one scored piece of evidence. Matches accumulate; they
// are independent observations, not alternatives.
type PatternMatch struct {
	Type       PatternType `json:"type"`
	Confidence float64     `json:"confidence"`
	Evidence   string      `json:"evidence"`
}

// AnalysisResult is the pattern engine's read-only output.
type AnalysisResult struct {
	Fingerprint     SiteFingerprint `json:"fingerprint"`
	Patterns        []PatternMatch  `json:"patterns,omitempty"`
	Recommendations []string        `json:"recommendations,omitempty"`
	Confidence      float64         `json:"confidence"`
	AnalyzedAt      time.Time       `json:"analyzed_at"`
}

// unmatchedConfidence scores endpoints no rule recognises. Kept below 0.5
// so consumers can tell weak evidence from no evidence.
const unmatchedConfidence = 0.3

// endpointRules map path substrings to the evidence they imply. All
// matching entries apply; an endpoint can contribute several patterns.
var endpointRules = []struct {
	substring   string
	patternType PatternType
	confidence  float64
}{
	{"graphql", PatternContentType, 0.85},
	{"graphql", PatternEncoding, 0.8},
	{"search", PatternSearchEndpoint, 0.85},
	{"episode", PatternEpisodeEndpoint, 0.75},
	{"chapter", PatternEpisodeEndpoint, 0.7},
	{"api", PatternContentType, 0.55},
}

// GetPatternConfidence scores how strongly candidate evidences patternType.
// Pure function of its inputs. Unrecognised candidates score below 0.5.
func GetPatternConfidence(patternType PatternType, candidate string) float64 {
	best := 0.0
	for _, rule := range endpointRules {
		if rule.patternType != patternType {
			continue
		}
		if containsFold(candidate, rule.substring) && rule.confidence > best {
			best = rule.confidence
		}
	}
	if best == 0 {
		return unmatchedConfidence
	}
	return best
}

// Analyze fingerprints a profile and scores its structural patterns. It
// never fails: an empty or nil profile yields an empty, low-confidence
// result rather than an error.
func Analyze(prof *profile.SiteProfile) *AnalysisResult {
	result := &AnalysisResult{
		Fingerprint: Fingerprint(prof),
		AnalyzedAt:  time.Now(),
	}
	if prof == nil {
		result.Confidence = 0.1
		return result
	}

	for _, endpoint := range dedupeSorted(prof.DetectedAPIEndpoints) {
		matched := false
		for _, rule := range endpointRules {
			if containsFold(endpoint, rule.substring) {
				matched = true
				result.Patterns = append(result.Patterns, PatternMatch{
					Type:       rule.patternType,
					Confidence: rule.confidence,
					Evidence:   endpoint,
				})
			}
		}
		if !matched {
			// Weak evidence still beats silently dropping the endpoint
			result.Patterns = append(result.Patterns, PatternMatch{
				Type:       PatternContentType,
				Confidence: unmatchedConfidence,
				Evidence:   endpoint,
			})
		}
	}

	result.Confidence = overallConfidence(result.Patterns)
	result.Recommendations = recommend(prof, result)
	return result
}

// overallConfidence aggregates pattern evidence. The search endpoint is
// the make-or-break signal: without one the site may be browsable but is
// not automatable, so no amount of other evidence raises the score far.
func overallConfidence(patterns []PatternMatch) float64 {
	bestOf := func(pt PatternType) float64 {
		best := 0.0
		for _, p := range patterns {
			if p.Type == pt && p.Confidence > best {
				best = p.Confidence
			}
		}
		return best
	}

	search := bestOf(PatternSearchEndpoint)
	content := bestOf(PatternContentType)

	switch {
	case search >= 0.5:
		overall := search
		if content >= 0.8 {
			overall += 0.1
		}
		if overall > 1 {
			overall = 1
		}
		return overall
	case content >= 0.8:
		return 0.5
	case len(patterns) > 0:
		return 0.35
	default:
		return 0.1
	}
}

// recommend emits free-text advisories keyed off the fingerprint.
func recommend(prof *profile.SiteProfile, result *AnalysisResult) []string {
	var recs []string

	if prof.HasCloudflare {
		recs = append(recs, "site is behind Cloudflare: send a browser User-Agent and a Referer header, and back off on 403/429 responses")
	}
	if prof.RequiresJavaScript && prof.SiteType == profile.SiteSPA {
		recs = append(recs, "content renders client-side: scrape the API endpoints directly instead of the HTML, or use browser automation")
	}
	for _, p := range result.Patterns {
		if p.Type == PatternEncoding && p.Confidence >= 0.5 {
			recs = append(recs, "responses may carry encoded media URLs: inspect the encoding scheme before trusting extracted links")
			break
		}
	}
	if len(prof.DetectedAPIEndpoints) == 0 {
		recs = append(recs, "no API endpoints detected: crawl more pages or supply an endpoint manually")
	}

	return recs
}

// containsFold is a case-insensitive substring test. Rule substrings are
// lowercase.
func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), needle)
}
