package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mvachon/unagi/providers"
)

// Engine executes a provider config's GraphQL query templates and maps the
// responses to domain entities. It is safe for concurrent use.
type Engine struct {
	cfg        *providers.DynamicProviderConfig
	httpClient *http.Client
}

var _ DynamicCatalog = (*Engine)(nil)

// Option configures an Engine.
type Option func(*Engine)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(e *Engine) {
		if client != nil {
			e.httpClient = client
		}
	}
}

// NewEngine creates an execution engine for one provider config.
func NewEngine(cfg *providers.DynamicProviderConfig, opts ...Option) *Engine {
	engine := &Engine{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

// Search runs the config's search template for a title.
func (e *Engine) Search(ctx context.Context, title string) ([]SearchResult, error) {
	items, err := e.execute(ctx, providers.QuerySearch, map[string]string{
		providers.TokenTitle: title,
	})
	if err != nil {
		return nil, err
	}

	var results []SearchResult
	for _, item := range items {
		id, ok := item["id"]
		if !ok || id == "" {
			return nil, fmt.Errorf("%w: id", ErrMissingField)
		}
		results = append(results, SearchResult{
			ID:    id,
			Title: item["title"],
		})
	}
	return results, nil
}

// Episodes lists an anime's episodes. Only valid for anime providers.
func (e *Engine) Episodes(ctx context.Context, mediaID string) ([]Episode, error) {
	if e.cfg.Type != providers.TypeAnime {
		return nil, fmt.Errorf("%w: episodes", ErrUnsupportedOperation)
	}

	items, err := e.execute(ctx, providers.QueryEpisodes, map[string]string{
		providers.TokenMediaID: mediaID,
	})
	if err != nil {
		return nil, err
	}

	var episodes []Episode
	for _, item := range items {
		id, ok := item["id"]
		if !ok || id == "" {
			return nil, fmt.Errorf("%w: id", ErrMissingField)
		}
		episodes = append(episodes, Episode{
			ID:     id,
			Number: item["number"],
			Title:  item["title"],
		})
	}
	return episodes, nil
}

// Chapters lists a manga's chapters. Only valid for manga providers.
func (e *Engine) Chapters(ctx context.Context, mediaID string) ([]Chapter, error) {
	if e.cfg.Type != providers.TypeManga {
		return nil, fmt.Errorf("%w: chapters", ErrUnsupportedOperation)
	}

	items, err := e.execute(ctx, providers.QueryChapters, map[string]string{
		providers.TokenMediaID: mediaID,
	})
	if err != nil {
		return nil, err
	}

	var chapters []Chapter
	for _, item := range items {
		id, ok := item["id"]
		if !ok || id == "" {
			return nil, fmt.Errorf("%w: id", ErrMissingField)
		}
		chapters = append(chapters, Chapter{
			ID:     id,
			Number: item["number"],
			Title:  item["title"],
		})
	}
	return chapters, nil
}

// Streams resolves playable links for an episode. Only valid for anime
// providers.
func (e *Engine) Streams(ctx context.Context, episodeID string) ([]StreamLink, error) {
	if e.cfg.Type != providers.TypeAnime {
		return nil, fmt.Errorf("%w: streams", ErrUnsupportedOperation)
	}

	items, err := e.execute(ctx, providers.QueryStreams, map[string]string{
		providers.TokenItemID: episodeID,
	})
	if err != nil {
		return nil, err
	}

	var links []StreamLink
	for _, item := range items {
		u, ok := item["url"]
		if !ok || u == "" {
			return nil, fmt.Errorf("%w: url", ErrMissingField)
		}
		link := StreamLink{
			URL:     u,
			Quality: item["quality"],
			Referer: item["referer"],
		}
		if link.Referer == "" {
			link.Referer = e.cfg.Host.Referer
		}
		links = append(links, link)
	}
	return links, nil
}

// Pages resolves page images for a chapter. Only valid for manga providers.
func (e *Engine) Pages(ctx context.Context, chapterID string) ([]PageImage, error) {
	if e.cfg.Type != providers.TypeManga {
		return nil, fmt.Errorf("%w: pages", ErrUnsupportedOperation)
	}

	items, err := e.execute(ctx, providers.QueryPages, map[string]string{
		providers.TokenItemID: chapterID,
	})
	if err != nil {
		return nil, err
	}

	var pages []PageImage
	for _, item := range items {
		u, ok := item["url"]
		if !ok || u == "" {
			return nil, fmt.Errorf("%w: url", ErrMissingField)
		}
		pages = append(pages, PageImage{
			URL:    u,
			Number: item["number"],
		})
	}
	return pages, nil
}

// AnimeDetail resolves a single show via the detail template, when the
// config carries one.
func (e *Engine) AnimeDetail(ctx context.Context, mediaID string) (*Anime, error) {
	if e.cfg.Type != providers.TypeAnime {
		return nil, fmt.Errorf("%w: anime detail", ErrUnsupportedOperation)
	}

	item, err := e.executeOne(ctx, providers.QueryDetail, mediaID)
	if err != nil {
		return nil, err
	}

	anime := &Anime{ID: item["id"], Title: item["title"]}
	if n, err := strconv.Atoi(item["episode_count"]); err == nil {
		anime.EpisodeCount = n
	}
	return anime, nil
}

// MangaDetail resolves a single series via the detail template, when the
// config carries one.
func (e *Engine) MangaDetail(ctx context.Context, mediaID string) (*Manga, error) {
	if e.cfg.Type != providers.TypeManga {
		return nil, fmt.Errorf("%w: manga detail", ErrUnsupportedOperation)
	}

	item, err := e.executeOne(ctx, providers.QueryDetail, mediaID)
	if err != nil {
		return nil, err
	}

	manga := &Manga{ID: item["id"], Title: item["title"]}
	if n, err := strconv.Atoi(item["chapter_count"]); err == nil {
		manga.ChapterCount = n
	}
	return manga, nil
}

// executeOne runs a template expected to yield a single item.
func (e *Engine) executeOne(ctx context.Context, key, mediaID string) (map[string]string, error) {
	items, err := e.execute(ctx, key, map[string]string{
		providers.TokenMediaID: mediaID,
	})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("empty %s response", key)
	}
	return items[0], nil
}

// execute runs the template stored under key with the given token values,
// walks the configured result path, and maps each item's fields.
func (e *Engine) execute(ctx context.Context, key string, tokens map[string]string) ([]map[string]string, error) {
	tpl, ok := e.cfg.Query(key)
	if !ok {
		return nil, fmt.Errorf("%w: no %s template", ErrUnsupportedOperation, key)
	}

	// Bind template variables to runtime values
	vars := make(map[string]any, len(tpl.Variables))
	for name, token := range tpl.Variables {
		value, ok := tokens[token]
		if !ok {
			return nil, fmt.Errorf("no runtime value for variable %q (token %q)", name, token)
		}
		vars[name] = value
	}

	root, err := e.post(ctx, tpl.Query, vars)
	if err != nil {
		return nil, err
	}

	node, err := walkPath(root, tpl.ResultPath)
	if err != nil {
		return nil, fmt.Errorf("failed to walk result path %q: %w", tpl.ResultPath, err)
	}

	// A path may land on a single object (detail queries); treat it as a
	// one-item list
	var rawItems []any
	switch v := node.(type) {
	case []any:
		rawItems = v
	case map[string]any:
		rawItems = []any{v}
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("result path %q does not point at a list or object", tpl.ResultPath)
	}

	items := make([]map[string]string, 0, len(rawItems))
	for _, raw := range rawItems {
		obj, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("result path %q contains a non-object item", tpl.ResultPath)
		}

		item := make(map[string]string, len(tpl.Fields))
		for field, path := range tpl.Fields {
			value, err := walkPath(obj, path)
			if err != nil {
				continue // optional fields may be absent per item
			}
			if s, ok := stringifyScalar(value); ok {
				item[field] = s
			}
		}
		items = append(items, item)
	}

	return items, nil
}

// post sends one GraphQL request and decodes the JSON response.
func (e *Engine) post(ctx context.Context, query string, vars map[string]any) (map[string]any, error) {
	payload, err := json.Marshal(map[string]any{
		"query":     query,
		"variables": vars,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.Host.APIURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if e.cfg.Host.UserAgent != "" {
		req.Header.Set("User-Agent", e.cfg.Host.UserAgent)
	}
	if e.cfg.Host.Referer != "" {
		req.Header.Set("Referer", e.cfg.Host.Referer)
	}
	for name, value := range e.cfg.Host.Headers {
		req.Header.Set(name, value)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("query returned status %d", resp.StatusCode)
	}

	var root map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&root); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	// GraphQL-level errors arrive with a 200; surface the first message
	if errs, ok := root["errors"].([]any); ok && len(errs) > 0 {
		if obj, ok := errs[0].(map[string]any); ok {
			if msg, ok := obj["message"].(string); ok {
				return nil, fmt.Errorf("query error: %s", msg)
			}
		}
		return nil, fmt.Errorf("query returned %d errors", len(errs))
	}

	return root, nil
}

// walkPath follows a dot-separated path through nested JSON objects.
func walkPath(root map[string]any, path string) (any, error) {
	if path == "" {
		return nil, fmt.Errorf("empty path")
	}

	var node any = root
	for _, segment := range strings.Split(path, ".") {
		obj, ok := node.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("segment %q is not an object", segment)
		}
		node, ok = obj[segment]
		if !ok {
			return nil, fmt.Errorf("segment %q not found", segment)
		}
	}
	return node, nil
}

// stringifyScalar renders a JSON scalar as a string. Objects and arrays are
// not mappable item fields.
func stringifyScalar(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}
