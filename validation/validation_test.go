package validation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvachon/unagi/providers"
)

// siteState scripts one fake provider site: what HEAD answers, and what
// each GraphQL operation returns per input value.
type siteState struct {
	headStatus   int
	searchHits   map[string][]map[string]any
	listings     map[string][]map[string]any
	resolutions  map[string][]map[string]any
	searchCalls  []string
	listingCalls int
	onSearch     func()
}

func newFakeSite(t *testing.T) (*httptest.Server, *siteState) {
	t.Helper()
	state := &siteState{
		headStatus:  http.StatusOK,
		searchHits:  map[string][]map[string]any{},
		listings:    map[string][]map[string]any{},
		resolutions: map[string][]map[string]any{},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(state.headStatus)
			return
		}

		var body struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		respond := func(field string, items []map[string]any) {
			if items == nil {
				items = []map[string]any{}
			}
			json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]any{field: items},
			})
		}

		switch {
		case strings.Contains(body.Query, "shows("):
			title, _ := body.Variables["search"].(string)
			state.searchCalls = append(state.searchCalls, title)
			if state.onSearch != nil {
				state.onSearch()
			}
			respond("shows", state.searchHits[title])
		case strings.Contains(body.Query, "episodeInfos("):
			state.listingCalls++
			id, _ := body.Variables["showId"].(string)
			respond("episodeInfos", state.listings[id])
		case strings.Contains(body.Query, "sources("):
			id, _ := body.Variables["episodeId"].(string)
			respond("sources", state.resolutions[id])
		case strings.Contains(body.Query, "chapters("):
			state.listingCalls++
			id, _ := body.Variables["mangaId"].(string)
			respond("chapters", state.listings[id])
		case strings.Contains(body.Query, "pages("):
			id, _ := body.Variables["chapterId"].(string)
			respond("pages", state.resolutions[id])
		default:
			t.Errorf("unexpected query: %s", body.Query)
		}
	}))
	t.Cleanup(server.Close)
	return server, state
}

func animeConfig(serverURL string) *providers.DynamicProviderConfig {
	return &providers.DynamicProviderConfig{
		Slug: "fake-anime",
		Name: "Fake Anime",
		Type: providers.TypeAnime,
		Host: providers.HostConfig{BaseURL: serverURL, APIURL: serverURL + "/api"},
		Queries: map[string]providers.QueryTemplate{
			providers.QuerySearch: {
				Query:      "query ($search: String) { shows(search: $search) { _id name } }",
				Variables:  map[string]string{"search": providers.TokenTitle},
				ResultPath: "data.shows",
				Fields:     map[string]string{"id": "_id", "title": "name"},
			},
			providers.QueryEpisodes: {
				Query:      "query ($showId: String!) { episodeInfos(showId: $showId) { id episodeNumber } }",
				Variables:  map[string]string{"showId": providers.TokenMediaID},
				ResultPath: "data.episodeInfos",
				Fields:     map[string]string{"id": "id", "number": "episodeNumber"},
			},
			providers.QueryStreams: {
				Query:      "query ($episodeId: String!) { sources(episodeId: $episodeId) { sourceUrl quality } }",
				Variables:  map[string]string{"episodeId": providers.TokenItemID},
				ResultPath: "data.sources",
				Fields:     map[string]string{"url": "sourceUrl", "quality": "quality"},
			},
		},
		Version: "1.0.0",
	}
}

func mangaConfig(serverURL string) *providers.DynamicProviderConfig {
	return &providers.DynamicProviderConfig{
		Slug: "fake-manga",
		Name: "Fake Manga",
		Type: providers.TypeManga,
		Host: providers.HostConfig{BaseURL: serverURL, APIURL: serverURL + "/api"},
		Queries: map[string]providers.QueryTemplate{
			providers.QuerySearch: {
				Query:      "query ($search: String) { shows(search: $search) { _id name } }",
				Variables:  map[string]string{"search": providers.TokenTitle},
				ResultPath: "data.shows",
				Fields:     map[string]string{"id": "_id", "title": "name"},
			},
			providers.QueryChapters: {
				Query:      "query ($mangaId: String!) { chapters(mangaId: $mangaId) { id number } }",
				Variables:  map[string]string{"mangaId": providers.TokenMediaID},
				ResultPath: "data.chapters",
				Fields:     map[string]string{"id": "id", "number": "number"},
			},
			providers.QueryPages: {
				Query:      "query ($chapterId: String!) { pages(chapterId: $chapterId) { url number } }",
				Variables:  map[string]string{"chapterId": providers.TokenItemID},
				ResultPath: "data.pages",
				Fields:     map[string]string{"url": "url", "number": "number"},
			},
		},
		Version: "1.0.0",
	}
}

func TestValidate_AllStagesPass(t *testing.T) {
	server, state := newFakeSite(t)
	state.searchHits["One Piece"] = []map[string]any{{"_id": "op-1", "name": "One Piece"}}
	state.listings["op-1"] = []map[string]any{{"id": "ep-1", "episodeNumber": 1}}
	state.resolutions["ep-1"] = []map[string]any{{"sourceUrl": "https://cdn.example.com/ep1.m3u8", "quality": "1080p"}}

	result := New().Validate(context.Background(), animeConfig(server.URL), "")

	assert.True(t, result.IsValid)
	assert.False(t, result.Cancelled)
	assert.Empty(t, result.Warning)
	assert.Empty(t, result.ErrorSummary)
	require.Len(t, result.Checks, 4)

	names := []string{CheckConnectivity, CheckSearch, CheckListing, CheckResolution}
	criticals := []bool{true, true, false, false}
	for i, check := range result.Checks {
		assert.Equal(t, names[i], check.Name)
		assert.Equal(t, criticals[i], check.Critical)
		assert.True(t, check.Passed)
	}

	// Each stage feeds the next its sample
	assert.Equal(t, "op-1", result.Checks[1].Sample)
	assert.Equal(t, "ep-1", result.Checks[2].Sample)
	assert.Equal(t, "https://cdn.example.com/ep1.m3u8", result.Checks[3].Sample)
}

func TestValidate_MangaPipeline(t *testing.T) {
	server, state := newFakeSite(t)
	state.searchHits["One Piece"] = []map[string]any{{"_id": "m-1", "name": "One Piece"}}
	state.listings["m-1"] = []map[string]any{{"id": "ch-1", "number": 1}}
	state.resolutions["ch-1"] = []map[string]any{{"url": "https://cdn.example.com/p1.png", "number": 1}}

	result := New().Validate(context.Background(), mangaConfig(server.URL), "")

	assert.True(t, result.IsValid)
	require.Len(t, result.Checks, 4)
	for _, check := range result.Checks {
		assert.True(t, check.Passed, "check %s", check.Name)
	}
	assert.Equal(t, "ch-1", result.Checks[2].Sample)
}

func TestValidate_SearchFallbackOrder(t *testing.T) {
	// Only the second default title matches; first success wins in order
	server, state := newFakeSite(t)
	state.searchHits["Naruto"] = []map[string]any{{"_id": "nrt-1", "name": "Naruto"}}
	state.listings["nrt-1"] = []map[string]any{{"id": "ep-1", "episodeNumber": 1}}
	state.resolutions["ep-1"] = []map[string]any{{"sourceUrl": "https://cdn.example.com/n1.m3u8"}}

	result := New().Validate(context.Background(), animeConfig(server.URL), "")

	assert.True(t, result.IsValid)
	assert.Equal(t, []string{"One Piece", "Naruto"}, state.searchCalls)
	assert.Equal(t, "nrt-1", result.Checks[1].Sample)
}

func TestValidate_CustomTitleTriedFirst(t *testing.T) {
	server, state := newFakeSite(t)
	state.searchHits["Bleach"] = []map[string]any{{"_id": "blc-1", "name": "Bleach"}}
	state.listings["blc-1"] = []map[string]any{{"id": "ep-1", "episodeNumber": 1}}
	state.resolutions["ep-1"] = []map[string]any{{"sourceUrl": "https://cdn.example.com/b1.m3u8"}}

	result := New().Validate(context.Background(), animeConfig(server.URL), "Bleach")

	assert.True(t, result.IsValid)
	require.NotEmpty(t, state.searchCalls)
	assert.Equal(t, "Bleach", state.searchCalls[0])
}

func TestValidate_ConnectivityFailureIsFatal(t *testing.T) {
	server, state := newFakeSite(t)
	state.headStatus = http.StatusServiceUnavailable

	result := New().Validate(context.Background(), animeConfig(server.URL), "")

	assert.False(t, result.IsValid)
	require.Len(t, result.Checks, 1)
	assert.Equal(t, CheckConnectivity, result.Checks[0].Name)
	assert.False(t, result.Checks[0].Passed)
	assert.Contains(t, result.ErrorSummary, CheckConnectivity)
	assert.Empty(t, state.searchCalls)
}

func TestValidate_HeadMethodNotAllowedPasses(t *testing.T) {
	// Some servers reject HEAD outright while serving content fine
	server, state := newFakeSite(t)
	state.headStatus = http.StatusMethodNotAllowed
	state.searchHits["One Piece"] = []map[string]any{{"_id": "op-1", "name": "One Piece"}}
	state.listings["op-1"] = []map[string]any{{"id": "ep-1", "episodeNumber": 1}}
	state.resolutions["ep-1"] = []map[string]any{{"sourceUrl": "https://cdn.example.com/ep1.m3u8"}}

	result := New().Validate(context.Background(), animeConfig(server.URL), "")

	assert.True(t, result.IsValid)
	assert.True(t, result.Checks[0].Passed)
}

func TestValidate_SearchFailureNamesCheck(t *testing.T) {
	// No title matches: the run fails naming Search, later stages untouched
	server, state := newFakeSite(t)

	result := New().Validate(context.Background(), animeConfig(server.URL), "")

	assert.False(t, result.IsValid)
	require.Len(t, result.Checks, 2)
	assert.Contains(t, result.FailedChecks(), CheckSearch)
	assert.Contains(t, result.ErrorSummary, CheckSearch)
	assert.Equal(t, 3, len(state.searchCalls))
	assert.Zero(t, state.listingCalls)
}

func TestValidate_ListingFailureDowngrades(t *testing.T) {
	// Search works but the sample lists nothing: valid with caveats
	server, state := newFakeSite(t)
	state.searchHits["One Piece"] = []map[string]any{{"_id": "op-1", "name": "One Piece"}}

	result := New().Validate(context.Background(), animeConfig(server.URL), "")

	assert.True(t, result.IsValid)
	require.Len(t, result.Checks, 3)
	assert.Contains(t, result.Warning, CheckListing)
	assert.Empty(t, result.ErrorSummary)
}

func TestValidate_ResolutionFailureDowngrades(t *testing.T) {
	server, state := newFakeSite(t)
	state.searchHits["One Piece"] = []map[string]any{{"_id": "op-1", "name": "One Piece"}}
	state.listings["op-1"] = []map[string]any{{"id": "ep-1", "episodeNumber": 1}}

	result := New().Validate(context.Background(), animeConfig(server.URL), "")

	assert.True(t, result.IsValid)
	require.Len(t, result.Checks, 4)
	assert.True(t, result.Checks[2].Passed)
	assert.False(t, result.Checks[3].Passed)
	assert.Contains(t, result.Warning, CheckResolution)
}

func TestValidate_MissingListingTemplateDowngrades(t *testing.T) {
	// A config with only a search template is usable, just unproven deeper
	server, state := newFakeSite(t)
	state.searchHits["One Piece"] = []map[string]any{{"_id": "op-1", "name": "One Piece"}}

	cfg := animeConfig(server.URL)
	delete(cfg.Queries, providers.QueryEpisodes)
	delete(cfg.Queries, providers.QueryStreams)

	result := New().Validate(context.Background(), cfg, "")

	assert.True(t, result.IsValid)
	require.Len(t, result.Checks, 3)
	assert.False(t, result.Checks[2].Passed)
	assert.NotEmpty(t, result.Checks[2].ErrorMessage)
}

func TestValidate_CancellationIsDistinct(t *testing.T) {
	server, state := newFakeSite(t)
	state.searchHits["One Piece"] = []map[string]any{{"_id": "op-1", "name": "One Piece"}}

	ctx, cancel := context.WithCancel(context.Background())
	state.onSearch = func() {
		cancel()
		time.Sleep(50 * time.Millisecond)
	}

	result := New().Validate(ctx, animeConfig(server.URL), "")

	assert.False(t, result.IsValid)
	assert.True(t, result.Cancelled)
	require.Len(t, result.Checks, 2)
	assert.True(t, result.Checks[0].Passed)
	assert.True(t, result.Checks[1].Cancelled)
	assert.Contains(t, result.ErrorSummary, "cancelled")
	assert.Nil(t, result.SuggestedFix)
}

func TestValidate_SuggestsRefererOnSearchFailure(t *testing.T) {
	server, _ := newFakeSite(t)

	cfg := animeConfig(server.URL)
	cfg.Host.Referer = ""

	result := New().Validate(context.Background(), cfg, "")

	assert.False(t, result.IsValid)
	require.NotNil(t, result.SuggestedFix)
	assert.Equal(t, cfg.Host.BaseURL, result.SuggestedFix.Host.Referer)
	assert.Empty(t, cfg.Host.Referer)
}

func TestValidate_RecordsDurations(t *testing.T) {
	server, state := newFakeSite(t)
	state.searchHits["One Piece"] = []map[string]any{{"_id": "op-1", "name": "One Piece"}}
	state.listings["op-1"] = []map[string]any{{"id": "ep-1", "episodeNumber": 1}}
	state.resolutions["ep-1"] = []map[string]any{{"sourceUrl": "https://cdn.example.com/ep1.m3u8"}}

	result := New().Validate(context.Background(), animeConfig(server.URL), "")

	assert.False(t, result.ValidatedAt.IsZero())
	assert.GreaterOrEqual(t, result.DurationMs, int64(0))
	for _, check := range result.Checks {
		assert.GreaterOrEqual(t, check.DurationMs, int64(0))
	}
}
