package autoconfig

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/mvachon/unagi/profile"
)

// SiteFingerprint identifies a site's structural signature. Two sites with
// the same technology tags and endpoint set hash identically, which is what
// deduplicates re-runs against the same backend.
type SiteFingerprint struct {
	Tags      []string `json:"tags"`
	Endpoints []string `json:"endpoints,omitempty"`
	Hash      string   `json:"hash"`
}

// Fingerprint derives the technology tag set and identity hash from a
// crawl profile. Tags and endpoints are deduplicated and sorted before
// hashing so crawl order and timing never change the hash.
func Fingerprint(prof *profile.SiteProfile) SiteFingerprint {
	if prof == nil {
		return SiteFingerprint{Hash: hashFingerprint(nil, nil)}
	}

	var tags []string
	if prof.HasGraphQL {
		tags = append(tags, "GraphQL")
	}
	if prof.HasCloudflare {
		tags = append(tags, "Cloudflare")
	}
	if prof.JSFramework != "" {
		tags = append(tags, prof.JSFramework)
		if prof.RequiresJavaScript {
			tags = append(tags, "SPA")
		}
	}
	if prof.SiteType == profile.SiteSPA {
		tags = append(tags, "SPA")
	}
	if len(prof.DetectedCDNHosts) > 0 {
		tags = append(tags, "CDN")
	}
	if len(prof.FeedURLs) > 0 {
		tags = append(tags, "RSS")
	}

	tags = dedupeSorted(tags)
	endpoints := dedupeSorted(prof.DetectedAPIEndpoints)

	return SiteFingerprint{
		Tags:      tags,
		Endpoints: endpoints,
		Hash:      hashFingerprint(tags, endpoints),
	}
}

// HasTag reports whether the fingerprint carries tag.
func (f SiteFingerprint) HasTag(tag string) bool {
	for _, t := range f.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

func dedupeSorted(values []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func hashFingerprint(tags, endpoints []string) string {
	sum := sha256.Sum256([]byte(strings.Join(tags, ",") + "|" + strings.Join(endpoints, ",")))
	return hex.EncodeToString(sum[:])
}
