// Package profile crawls a site's entry page and records the structural
// signals later analysis runs on: API endpoints, framework hints, CDN
// hosts, feeds, and anti-bot markers.
package profile

import (
	"fmt"
	"time"
)

// SiteType classifies how a site renders its content.
type SiteType string

const (
	SiteStatic SiteType = "static"
	SiteSPA    SiteType = "spa"
)

// SiteProfile is an immutable snapshot of one crawl of a site.
type SiteProfile struct {
	BaseURL              string            `json:"base_url"`
	SiteType             SiteType          `json:"site_type"`
	RequiresJavaScript   bool              `json:"requires_javascript"`
	JSFramework          string            `json:"js_framework,omitempty"`
	HasCloudflare        bool              `json:"has_cloudflare"`
	HasGraphQL           bool              `json:"has_graphql"`
	DetectedAPIEndpoints []string          `json:"detected_api_endpoints,omitempty"`
	DetectedCDNHosts     []string          `json:"detected_cdn_hosts,omitempty"`
	RequiredHeaders      map[string]string `json:"required_headers,omitempty"`
	Title                string            `json:"title,omitempty"`
	Description          string            `json:"description,omitempty"`
	RobotsTxt            string            `json:"robots_txt,omitempty"`
	FeedURLs             []string          `json:"feed_urls,omitempty"`
	Errors               []string          `json:"errors,omitempty"`
	FetchedAt            time.Time         `json:"fetched_at"`
}

// addError records a non-fatal crawl failure. The crawl keeps going;
// downstream analysis treats missing signals as absence of evidence.
func (p *SiteProfile) addError(stage string, err error) {
	p.Errors = append(p.Errors, fmt.Sprintf("%s: %v", stage, err))
}

// HasEndpoint reports whether the crawl already recorded an endpoint path.
func (p *SiteProfile) HasEndpoint(path string) bool {
	for _, e := range p.DetectedAPIEndpoints {
		if e == path {
			return true
		}
	}
	return false
}
