package profile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/miekg/dns"
	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"
)

// Cap reads of remote bodies; a site's entry page should never need more.
const maxBodyReadBytes = 2 * 1024 * 1024

const defaultUserAgent = "unagi/1.0 (media catalog aggregator)"

// GraphQL endpoint candidates probed even when the page mentions none.
var wellKnownGraphQLPaths = []string{"/graphql", "/api/graphql"}

// Profiler crawls one site and produces a SiteProfile. Safe for concurrent
// use; the rate limiter spans all requests the profiler issues.
type Profiler struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
	resolvConf string
}

// Option configures a Profiler.
type Option func(*Profiler)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Profiler) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// WithRateLimit sets the request rate for all crawl traffic.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(p *Profiler) {
		p.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithUserAgent overrides the crawl User-Agent.
func WithUserAgent(ua string) Option {
	return func(p *Profiler) {
		if ua != "" {
			p.userAgent = ua
		}
	}
}

// NewProfiler creates a profiler with a 10 second request timeout and a
// modest default rate limit.
func NewProfiler(opts ...Option) *Profiler {
	p := &Profiler{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(2), 4),
		userAgent:  defaultUserAgent,
		resolvConf: "/etc/resolv.conf",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Profile crawls baseURL and returns a snapshot of everything it could
// observe. Individual probe failures are collected into the profile's
// Errors; only an unusable URL returns an error.
func (p *Profiler) Profile(ctx context.Context, baseURL string) (*SiteProfile, error) {
	normalized, err := normalizeURL(baseURL)
	if err != nil {
		return nil, err
	}

	profile := &SiteProfile{
		BaseURL:         normalized,
		SiteType:        SiteStatic,
		RequiredHeaders: map[string]string{"User-Agent": p.userAgent},
		FetchedAt:       time.Now(),
	}

	base, _ := url.Parse(normalized)

	doc, resp, err := p.fetchPage(ctx, normalized)
	if err != nil {
		profile.addError("fetch", err)
	} else {
		p.inspectHeaders(profile, resp)
		p.inspectDocument(profile, doc, base)
	}

	p.probeGraphQL(ctx, profile, base)
	p.fetchRobots(ctx, profile, base)
	p.probeFeeds(ctx, profile)
	p.detectCDN(ctx, profile, base.Hostname())

	if profile.RequiresJavaScript {
		profile.SiteType = SiteSPA
	}
	if profile.HasCloudflare {
		// Cloudflare-fronted sites usually refuse referer-less requests
		profile.RequiredHeaders["Referer"] = normalized
	}

	return profile, nil
}

// fetchPage retrieves and parses one HTML page, decoding legacy charsets.
func (p *Profiler) fetchPage(ctx context.Context, pageURL string) (*goquery.Document, *http.Response, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyReadBytes))
	if err != nil {
		return nil, resp, fmt.Errorf("failed to read body: %w", err)
	}

	reader, err := charset.NewReader(bytes.NewReader(raw), resp.Header.Get("Content-Type"))
	if err != nil {
		// Undecodable charset: fall back to the raw bytes
		reader = bytes.NewReader(raw)
	}

	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, resp, fmt.Errorf("failed to parse HTML: %w", err)
	}

	return doc, resp, nil
}

// inspectHeaders reads anti-bot and CDN signals from response headers.
func (p *Profiler) inspectHeaders(profile *SiteProfile, resp *http.Response) {
	server := strings.ToLower(resp.Header.Get("Server"))
	if strings.Contains(server, "cloudflare") || resp.Header.Get("CF-Ray") != "" {
		profile.HasCloudflare = true
	}
	for _, cookie := range resp.Cookies() {
		if strings.HasPrefix(cookie.Name, "__cf") || cookie.Name == "cf_clearance" {
			profile.HasCloudflare = true
		}
	}

	for _, hint := range []string{resp.Header.Get("Via"), resp.Header.Get("X-Cache"), server} {
		if hint == "" {
			continue
		}
		lower := strings.ToLower(hint)
		for name, marker := range cdnHeaderMarkers {
			if strings.Contains(lower, marker) {
				profile.DetectedCDNHosts = appendUnique(profile.DetectedCDNHosts, name)
			}
		}
	}
}

// Framework markers checked against script srcs and root element ids.
var frameworkMarkers = []struct {
	marker    string
	framework string
}{
	{"/_next/", "Next.js"},
	{"__next", "Next.js"},
	{"/_nuxt/", "Nuxt"},
	{"__nuxt", "Nuxt"},
	{"react", "React"},
	{"vue", "Vue"},
	{"angular", "Angular"},
	{"svelte", "Svelte"},
}

var cdnHeaderMarkers = map[string]string{
	"cloudfront": "cloudfront",
	"fastly":     "fastly",
	"akamai":     "akamai",
	"varnish":    "varnish",
	"bunnycdn":   "bunnycdn",
}

var endpointPattern = regexp.MustCompile(`["'](/(?:api|graphql)[a-zA-Z0-9_/.-]*)["']`)

// inspectDocument pulls title, description, framework, endpoint, and feed
// signals out of the parsed page.
func (p *Profiler) inspectDocument(profile *SiteProfile, doc *goquery.Document, base *url.URL) {
	profile.Title = strings.Join(strings.Fields(doc.Find("title").First().Text()), " ")
	if desc, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok {
		profile.Description = strings.TrimSpace(desc)
	}

	// Framework detection from script srcs, generator meta, and root ids
	var scriptSrcs []string
	doc.Find("script").Each(func(i int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok {
			scriptSrcs = append(scriptSrcs, strings.ToLower(src))
		}
		// Inline script text often embeds the site's own API routes
		for _, match := range endpointPattern.FindAllStringSubmatch(s.Text(), -1) {
			profile.DetectedAPIEndpoints = appendUnique(profile.DetectedAPIEndpoints, match[1])
		}
	})

	if generator, ok := doc.Find(`meta[name="generator"]`).First().Attr("content"); ok && profile.JSFramework == "" {
		profile.JSFramework = strings.TrimSpace(generator)
	}

	rootIDs := []string{}
	doc.Find("div[id]").Each(func(i int, s *goquery.Selection) {
		if id, ok := s.Attr("id"); ok {
			rootIDs = append(rootIDs, strings.ToLower(id))
		}
	})

	haystack := strings.Join(append(scriptSrcs, rootIDs...), " ")
	for _, fm := range frameworkMarkers {
		if strings.Contains(haystack, fm.marker) {
			if profile.JSFramework == "" || fm.framework == "Next.js" || fm.framework == "Nuxt" {
				profile.JSFramework = fm.framework
			}
			break
		}
	}

	// A framework shell with a near-empty body needs a JS runtime to render
	bodyText := strings.TrimSpace(doc.Find("body").Text())
	hasAppRoot := doc.Find("div#root, div#app, div#__next, div#__nuxt").Length() > 0
	if hasAppRoot && len(bodyText) < 200 {
		profile.RequiresJavaScript = true
	}
	if profile.JSFramework != "" && len(bodyText) < 200 {
		profile.RequiresJavaScript = true
	}

	// Feed links advertised in the head
	doc.Find(`link[rel="alternate"]`).Each(func(i int, s *goquery.Selection) {
		linkType, _ := s.Attr("type")
		if linkType != "application/rss+xml" && linkType != "application/atom+xml" {
			return
		}
		if href, ok := s.Attr("href"); ok {
			if abs := resolveURL(base, href); abs != "" {
				profile.FeedURLs = appendUnique(profile.FeedURLs, abs)
			}
		}
	})

	// Asset hosts on other domains that look like CDNs
	doc.Find("script[src], img[src], link[href]").Each(func(i int, s *goquery.Selection) {
		ref, ok := s.Attr("src")
		if !ok {
			ref, _ = s.Attr("href")
		}
		u, err := url.Parse(ref)
		if err != nil || u.Hostname() == "" || u.Hostname() == base.Hostname() {
			return
		}
		host := strings.ToLower(u.Hostname())
		if strings.HasPrefix(host, "cdn.") || strings.Contains(host, "cloudfront") ||
			strings.Contains(host, "fastly") || strings.Contains(host, "akamai") ||
			strings.Contains(host, "b-cdn") {
			profile.DetectedCDNHosts = appendUnique(profile.DetectedCDNHosts, host)
		}
	})
}

// probeGraphQL sends a minimal query to candidate endpoints. Any JSON
// response with a data or errors key marks the site as GraphQL-capable.
func (p *Profiler) probeGraphQL(ctx context.Context, profile *SiteProfile, base *url.URL) {
	candidates := append([]string{}, profile.DetectedAPIEndpoints...)
	for _, path := range wellKnownGraphQLPaths {
		if !profile.HasEndpoint(path) {
			candidates = append(candidates, path)
		}
	}

	for _, path := range candidates {
		if !strings.Contains(strings.ToLower(path), "graphql") {
			continue
		}

		ok, err := p.probeOneGraphQL(ctx, base.ResolveReference(&url.URL{Path: path}).String())
		if err != nil {
			if ctx.Err() != nil {
				profile.addError("graphql probe", ctx.Err())
				return
			}
			continue
		}
		if ok {
			profile.HasGraphQL = true
			profile.DetectedAPIEndpoints = appendUnique(profile.DetectedAPIEndpoints, path)
		}
	}
}

func (p *Profiler) probeOneGraphQL(ctx context.Context, endpoint string) (bool, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return false, err
	}

	body := bytes.NewReader([]byte(`{"query":"{__typename}"}`))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, nil
	}

	var payload map[string]any
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyReadBytes)).Decode(&payload); err != nil {
		return false, nil
	}

	_, hasData := payload["data"]
	_, hasErrors := payload["errors"]
	return hasData || hasErrors, nil
}

// fetchRobots grabs robots.txt when present.
func (p *Profiler) fetchRobots(ctx context.Context, profile *SiteProfile, base *url.URL) {
	if err := p.limiter.Wait(ctx); err != nil {
		profile.addError("robots", err)
		return
	}

	robotsURL := base.ResolveReference(&url.URL{Path: "/robots.txt"}).String()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		profile.addError("robots", err)
		return
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		profile.addError("robots", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		profile.addError("robots", err)
		return
	}
	profile.RobotsTxt = strings.TrimSpace(string(raw))
}

// probeFeeds confirms advertised feeds actually parse. A working feed is a
// usable non-HTML data source for sites that otherwise need a JS runtime.
func (p *Profiler) probeFeeds(ctx context.Context, profile *SiteProfile) {
	if len(profile.FeedURLs) == 0 {
		return
	}

	parser := gofeed.NewParser()
	parser.UserAgent = p.userAgent

	verified := make([]string, 0, len(profile.FeedURLs))
	for _, feedURL := range profile.FeedURLs {
		if err := p.limiter.Wait(ctx); err != nil {
			profile.addError("feed probe", err)
			break
		}
		if _, err := parser.ParseURLWithContext(feedURL, ctx); err != nil {
			profile.addError("feed probe", fmt.Errorf("%s: %w", feedURL, err))
			continue
		}
		verified = append(verified, feedURL)
	}
	profile.FeedURLs = verified
}

// CNAME targets that identify managed CDNs.
var cdnCNAMESuffixes = []string{
	".cloudfront.net",
	".fastly.net",
	".fastlylb.net",
	".akamaiedge.net",
	".akamaized.net",
	".edgekey.net",
	".cdn.cloudflare.net",
	".b-cdn.net",
	".cachefly.net",
}

// detectCDN follows the host's CNAME chain through the system resolvers.
func (p *Profiler) detectCDN(ctx context.Context, profile *SiteProfile, host string) {
	if host == "" || net.ParseIP(host) != nil {
		return
	}

	cfg, err := dns.ClientConfigFromFile(p.resolvConf)
	if err != nil || len(cfg.Servers) == 0 {
		return
	}

	client := &dns.Client{Timeout: 5 * time.Second}
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), dns.TypeCNAME)

	for _, server := range cfg.Servers {
		resp, _, err := client.ExchangeContext(ctx, msg, net.JoinHostPort(server, cfg.Port))
		if err != nil {
			continue
		}
		for _, answer := range resp.Answer {
			cname, ok := answer.(*dns.CNAME)
			if !ok {
				continue
			}
			target := strings.ToLower(strings.TrimSuffix(cname.Target, "."))
			for _, suffix := range cdnCNAMESuffixes {
				if strings.HasSuffix(target, suffix) {
					profile.DetectedCDNHosts = appendUnique(profile.DetectedCDNHosts, target)
				}
			}
		}
		return
	}
}

// normalizeURL fills in a missing scheme and validates the host.
func normalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty URL")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("URL must use http or https scheme")
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("URL has no host")
	}

	u.Fragment = ""
	return strings.TrimRight(u.String(), "/"), nil
}

func resolveURL(base *url.URL, ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return base.ResolveReference(u).String()
}

func appendUnique(list []string, value string) []string {
	for _, existing := range list {
		if existing == value {
			return list
		}
	}
	return append(list, value)
}
