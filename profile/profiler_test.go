package profile

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const staticPage = `<!DOCTYPE html>
<html>
<head>
<title>  Anime   Heaven  </title>
<meta name="description" content="Watch anime online">
<link rel="alternate" type="application/rss+xml" href="/feed.xml">
</head>
<body>
<h1>Anime Heaven</h1>
<p>A long static page with plenty of server-rendered content so the crawler
does not mistake it for an application shell. Episode lists, ongoing shows,
finished shows, and more text to stay over the threshold.</p>
</body>
</html>`

const spaPage = `<!DOCTYPE html>
<html>
<head><title>SPA Site</title></head>
<body>
<div id="root"></div>
<script src="/static/js/react-app.bundle.js"></script>
<script>var api = "/api/v2/search"; fetch("/graphql");</script>
</body>
</html>`

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
<title>Anime Heaven Releases</title>
<link>https://example.com</link>
<description>Latest episodes</description>
</channel></rss>`

// Test helper: profiler with no real DNS lookups
func newTestProfiler(opts ...Option) *Profiler {
	p := NewProfiler(opts...)
	p.resolvConf = "/nonexistent/resolv.conf"
	return p
}

// TestProfile_StaticSite verifies basic page metadata extraction
func TestProfile_StaticSite(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			w.Write([]byte(staticPage))
		case "/robots.txt":
			w.Write([]byte("User-agent: *\nDisallow: /admin\n"))
		case "/feed.xml":
			w.Write([]byte(feedXML))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	profiler := newTestProfiler()
	profile, err := profiler.Profile(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Equal(t, "Anime Heaven", profile.Title, "title whitespace should collapse")
	assert.Equal(t, "Watch anime online", profile.Description)
	assert.Equal(t, SiteStatic, profile.SiteType)
	assert.False(t, profile.RequiresJavaScript)
	assert.False(t, profile.HasGraphQL)
	assert.Contains(t, profile.RobotsTxt, "Disallow: /admin")
	require.Len(t, profile.FeedURLs, 1, "advertised feed should verify")
	assert.Contains(t, profile.FeedURLs[0], "/feed.xml")
}

// TestProfile_SPAWithGraphQL verifies framework, endpoint, and GraphQL
// detection on an application-shell page
func TestProfile_SPAWithGraphQL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			w.Write([]byte(spaPage))
		case "/graphql":
			if r.Method == http.MethodPost {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`{"data":{"__typename":"Query"}}`))
				return
			}
			http.NotFound(w, r)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	profiler := newTestProfiler()
	profile, err := profiler.Profile(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Equal(t, SiteSPA, profile.SiteType)
	assert.True(t, profile.RequiresJavaScript, "empty app root should require JS")
	assert.Equal(t, "React", profile.JSFramework)
	assert.True(t, profile.HasGraphQL)
	assert.True(t, profile.HasEndpoint("/graphql"))
	assert.True(t, profile.HasEndpoint("/api/v2/search"), "inline script endpoints should be collected")
}

// TestProfile_CloudflareDetection verifies anti-bot header inspection
func TestProfile_CloudflareDetection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "cloudflare")
		w.Header().Set("CF-Ray", "8d3c2a1b4e5f6789-NRT")
		w.Write([]byte(staticPage))
	}))
	defer server.Close()

	profiler := newTestProfiler()
	profile, err := profiler.Profile(context.Background(), server.URL)

	require.NoError(t, err)
	assert.True(t, profile.HasCloudflare)
	assert.Equal(t, profile.BaseURL, profile.RequiredHeaders["Referer"],
		"cloudflare sites should require a referer")
}

// TestProfile_FetchFailureCollected verifies errors accumulate without
// aborting the crawl
func TestProfile_FetchFailureCollected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer server.Close()

	profiler := newTestProfiler()
	profile, err := profiler.Profile(context.Background(), server.URL)

	require.NoError(t, err, "a failing site is a profile with errors, not an error")
	require.NotEmpty(t, profile.Errors)
	assert.Contains(t, profile.Errors[0], "fetch")
	assert.Equal(t, SiteStatic, profile.SiteType)
}

// TestProfile_InvalidURL verifies unusable input is the only error path
func TestProfile_InvalidURL(t *testing.T) {
	profiler := newTestProfiler()

	_, err := profiler.Profile(context.Background(), "")
	assert.Error(t, err)

	_, err = profiler.Profile(context.Background(), "ftp://example.com")
	assert.Error(t, err)
}

// TestNormalizeURL_Cases verifies scheme defaulting and trimming
func TestNormalizeURL_Cases(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"example.com", "https://example.com"},
		{"http://example.com/", "http://example.com"},
		{"https://example.com/watch#top", "https://example.com/watch"},
	}

	for _, tt := range tests {
		got, err := normalizeURL(tt.in)
		require.NoError(t, err, "normalize %q", tt.in)
		assert.Equal(t, tt.want, got)
	}
}
