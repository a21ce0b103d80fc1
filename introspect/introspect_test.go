package introspect

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvachon/unagi/profile"
	"github.com/mvachon/unagi/providers"
)

// Wire fixture helpers for introspection responses.

func scalarRef(name string) map[string]any {
	return map[string]any{"kind": "SCALAR", "name": name, "ofType": nil}
}

func objectRef(name string) map[string]any {
	return map[string]any{"kind": "OBJECT", "name": name, "ofType": nil}
}

func nonNullOf(inner map[string]any) map[string]any {
	return map[string]any{"kind": "NON_NULL", "name": nil, "ofType": inner}
}

func listOf(inner map[string]any) map[string]any {
	return map[string]any{"kind": "LIST", "name": nil, "ofType": inner}
}

func field(name string, typeRef map[string]any, args ...map[string]any) map[string]any {
	if args == nil {
		args = []map[string]any{}
	}
	return map[string]any{"name": name, "args": args, "type": typeRef}
}

func arg(name string, typeRef map[string]any) map[string]any {
	return map[string]any{"name": name, "type": typeRef}
}

// animeWireSchema mimics an AllAnime-style catalog API.
func animeWireSchema() map[string]any {
	return map[string]any{
		"queryType":    map[string]any{"name": "Query"},
		"mutationType": nil,
		"types": []map[string]any{
			{
				"kind": "OBJECT",
				"name": "Query",
				"fields": []map[string]any{
					field("shows", listOf(objectRef("Show")), arg("search", scalarRef("String"))),
					field("show", objectRef("Show"), arg("_id", nonNullOf(scalarRef("String")))),
					field("episodeInfos", listOf(objectRef("Episode")), arg("showId", nonNullOf(scalarRef("String")))),
				},
			},
			{
				"kind": "OBJECT",
				"name": "Show",
				"fields": []map[string]any{
					field("_id", scalarRef("String")),
					field("name", scalarRef("String")),
					field("description", scalarRef("String")),
				},
			},
			{
				"kind": "OBJECT",
				"name": "Episode",
				"fields": []map[string]any{
					field("id", scalarRef("String")),
					field("episodeNumber", scalarRef("Float")),
					field("title", scalarRef("String")),
				},
			},
			{"kind": "SCALAR", "name": "String", "fields": nil},
			{"kind": "SCALAR", "name": "Float", "fields": nil},
			{"kind": "OBJECT", "name": "__Schema", "fields": []map[string]any{
				field("types", listOf(objectRef("__Type"))),
			}},
		},
	}
}

func introspectionServer(t *testing.T, schema map[string]any) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"__schema": schema},
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestIntrospect_BuildsSchemaInfo(t *testing.T) {
	// A cooperative endpoint yields a fully classified schema model
	server := introspectionServer(t, animeWireSchema())

	schema, err := New().Introspect(context.Background(), server.URL, nil)
	require.NoError(t, err)
	require.NotNil(t, schema)

	assert.True(t, schema.SupportsIntrospection)
	assert.Equal(t, server.URL, schema.Endpoint)
	require.Len(t, schema.Queries, 3)
	assert.Empty(t, schema.Mutations)

	byName := map[string]GraphQLQuery{}
	for _, q := range schema.Queries {
		byName[q.Name] = q
	}

	shows := byName["shows"]
	assert.Equal(t, "Show", shows.ReturnType)
	assert.True(t, shows.ReturnsList)
	assert.Equal(t, PurposeSearch, shows.InferredPurpose)

	show := byName["show"]
	assert.False(t, show.ReturnsList)
	assert.Equal(t, PurposeGetByID, show.InferredPurpose)
	require.Len(t, show.Args, 1)
	assert.True(t, show.Args[0].Required)
	assert.Equal(t, "String", show.Args[0].TypeName)

	episodes := byName["episodeInfos"]
	assert.Equal(t, PurposeGetEpisodes, episodes.InferredPurpose)
	assert.Equal(t, "Episode", episodes.ReturnType)

	// Meta types never surface in the model
	for _, typ := range schema.Types {
		assert.NotEqual(t, "__Schema", typ.Name)
	}
	showType, ok := schema.TypeByName("Show")
	require.True(t, ok)
	assert.Equal(t, KindObject, showType.Kind)
	require.Len(t, showType.Fields, 3)
	assert.Equal(t, "String", showType.Fields[0].TypeName)
}

func TestIntrospect_UnsupportedEndpoint(t *testing.T) {
	// Refusal to introspect is reported as absence, not as an error
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"not found", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "not found", http.StatusNotFound)
		}},
		{"html response", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html><body>landing page</body></html>"))
		}},
		{"json without schema", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"data":{}}`))
		}},
		{"introspection disabled", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"errors":[{"message":"introspection is disabled"}]}`))
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(tc.handler)
			defer server.Close()

			schema, err := New().Introspect(context.Background(), server.URL, nil)
			assert.NoError(t, err)
			assert.Nil(t, schema)
		})
	}
}

func TestIntrospect_SendsProfileHeaders(t *testing.T) {
	// Required headers discovered during profiling ride along
	var gotReferer, gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReferer = r.Header.Get("Referer")
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{}}`))
	}))
	defer server.Close()

	prof := &profile.SiteProfile{
		BaseURL:         "https://example.com",
		RequiredHeaders: map[string]string{"Referer": "https://example.com"},
	}
	_, err := New(WithUserAgent("unagi-test/1.0")).Introspect(context.Background(), server.URL, prof)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", gotReferer)
	assert.Equal(t, "unagi-test/1.0", gotUA)
}

func TestIntrospect_ContextCancelled(t *testing.T) {
	server := introspectionServer(t, animeWireSchema())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Introspect(ctx, server.URL, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestInferPurpose_Rules(t *testing.T) {
	requiredID := []QueryArg{{Name: "_id", TypeName: "String", Required: true}}

	cases := []struct {
		name     string
		query    GraphQLQuery
		expected QueryPurpose
	}{
		{"search keyword", GraphQLQuery{Name: "searchShows", ReturnsList: true}, PurposeSearch},
		{"episode keyword", GraphQLQuery{Name: "episodesByShow", ReturnsList: true}, PurposeGetEpisodes},
		{"chapter keyword", GraphQLQuery{Name: "chapterList", ReturnsList: true}, PurposeGetChapters},
		{"detail shape", GraphQLQuery{Name: "show", Args: requiredID}, PurposeGetByID},
		{"list defeats detail shape", GraphQLQuery{Name: "shows", ReturnsList: true, Args: requiredID}, PurposeUnknown},
		{"no signal", GraphQLQuery{Name: "recommendations"}, PurposeUnknown},
		{"two required args", GraphQLQuery{Name: "media", Args: []QueryArg{
			{Name: "id", Required: true}, {Name: "page", Required: true},
		}}, PurposeUnknown},
		{"optional id only", GraphQLQuery{Name: "media", Args: []QueryArg{{Name: "id"}}}, PurposeUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, inferPurpose(tc.query))
		})
	}
}

// classify fills InferredPurpose the way the wire decoder does, so schema
// literals behave like introspected ones.
func classify(queries []GraphQLQuery) []GraphQLQuery {
	for i := range queries {
		queries[i].InferredPurpose = inferPurpose(queries[i])
	}
	return queries
}

func animeSchemaInfo(endpoint string) *SchemaInfo {
	return &SchemaInfo{
		Endpoint:              endpoint,
		SupportsIntrospection: true,
		Types: []GraphQLType{
			{Name: "Show", Kind: KindObject, Fields: []TypeField{
				{Name: "_id", TypeName: "String"},
				{Name: "name", TypeName: "String"},
				{Name: "description", TypeName: "String"},
			}},
			{Name: "Episode", Kind: KindObject, Fields: []TypeField{
				{Name: "id", TypeName: "String"},
				{Name: "episodeNumber", TypeName: "Float"},
				{Name: "title", TypeName: "String"},
			}},
		},
		Queries: classify([]GraphQLQuery{
			{Name: "shows", ReturnType: "Show", ReturnsList: true, Args: []QueryArg{
				{Name: "search", TypeName: "String"},
			}},
			{Name: "show", ReturnType: "Show", Args: []QueryArg{
				{Name: "_id", TypeName: "String", Required: true},
			}},
			{Name: "episodeInfos", ReturnType: "Episode", ReturnsList: true, Args: []QueryArg{
				{Name: "showId", TypeName: "String", Required: true},
			}},
		}),
	}
}

func TestGenerateQueries_AnimeSchema(t *testing.T) {
	schema := animeSchemaInfo("https://api.example.com/graphql")

	generated := GenerateQueries(schema, providers.TypeAnime)
	require.Len(t, generated, 3)

	// Ordered by confidence: search, then episodes, then detail
	assert.Equal(t, "shows", generated[0].QueryName)
	assert.Equal(t, PurposeSearch, generated[0].Purpose)
	assert.Greater(t, generated[0].Confidence, 0.8)
	assert.Contains(t, generated[0].Document, "$search: String")
	assert.Contains(t, generated[0].Document, "shows(search: $search)")
	assert.Contains(t, generated[0].Document, "_id name")
	assert.Equal(t, "data.shows", generated[0].ResultPath)
	assert.Equal(t, map[string]string{"search": providers.TokenTitle}, generated[0].Variables)
	assert.Equal(t, "_id", generated[0].Fields["id"])
	assert.Equal(t, "name", generated[0].Fields["title"])

	assert.Equal(t, PurposeGetEpisodes, generated[1].Purpose)
	assert.Contains(t, generated[1].Document, "$showId: String!")
	assert.Equal(t, map[string]string{"showId": providers.TokenMediaID}, generated[1].Variables)
	assert.Equal(t, "episodeNumber", generated[1].Fields["number"])

	assert.Equal(t, PurposeGetByID, generated[2].Purpose)
	assert.Equal(t, "data.show", generated[2].ResultPath)
}

func TestGenerateQueries_EpisodeFieldYieldsEpisodesPurpose(t *testing.T) {
	// Any query whose name mentions episodes becomes an episode candidate
	schema := animeSchemaInfo("https://api.example.com/graphql")

	generated := GenerateQueries(schema, providers.TypeAnime)
	found := false
	for _, gq := range generated {
		if gq.Purpose == PurposeGetEpisodes {
			found = true
		}
	}
	assert.True(t, found)
}

func TestGenerateQueries_MangaSkipsEpisodes(t *testing.T) {
	schema := animeSchemaInfo("https://api.example.com/graphql")

	generated := GenerateQueries(schema, providers.TypeManga)
	for _, gq := range generated {
		assert.NotEqual(t, PurposeGetEpisodes, gq.Purpose)
	}
}

func TestGenerateQueries_OpaqueReturnType(t *testing.T) {
	// An unknown return type still yields a syntactically valid document
	schema := &SchemaInfo{
		Queries: classify([]GraphQLQuery{
			{Name: "searchMedia", ReturnType: "Media", ReturnsList: true, Args: []QueryArg{
				{Name: "query", TypeName: "String"},
			}},
		}),
	}

	generated := GenerateQueries(schema, providers.TypeAnime)
	require.Len(t, generated, 1)
	assert.Contains(t, generated[0].Document, "{ __typename }")
	assert.Empty(t, generated[0].Fields)
}

func TestGenerateQueries_SearchWithoutTermArg(t *testing.T) {
	// A "search" query with no bindable term argument is unusable
	schema := &SchemaInfo{
		Queries: classify([]GraphQLQuery{
			{Name: "searchAll", ReturnType: "Show", ReturnsList: true},
		}),
	}

	generated := GenerateQueries(schema, providers.TypeAnime)
	assert.Empty(t, generated)
}

func TestBuildConfig_FromSchema(t *testing.T) {
	schema := animeSchemaInfo("https://api.example.com/graphql")
	prof := &profile.SiteProfile{
		BaseURL:         "https://example.com",
		Title:           "AllAnime Clone",
		RequiredHeaders: map[string]string{"Referer": "https://example.com"},
	}

	cfg, err := BuildConfig(schema, prof, providers.TypeAnime)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "allanime-clone", cfg.Slug)
	assert.Equal(t, "AllAnime Clone", cfg.Name)
	assert.Equal(t, providers.TypeAnime, cfg.Type)
	assert.Equal(t, "https://example.com", cfg.Host.BaseURL)
	assert.Equal(t, "https://api.example.com/graphql", cfg.Host.APIURL)
	assert.Equal(t, "https://example.com", cfg.Host.Referer)
	assert.False(t, cfg.Builtin)
	assert.Greater(t, cfg.Confidence, 0.8)

	search, ok := cfg.Query(providers.QuerySearch)
	require.True(t, ok)
	assert.Equal(t, "data.shows", search.ResultPath)

	_, ok = cfg.Query(providers.QueryDetail)
	assert.True(t, ok)
	_, ok = cfg.Query(providers.QueryEpisodes)
	assert.True(t, ok)
}

func TestBuildConfig_NoSearchQuery(t *testing.T) {
	schema := &SchemaInfo{
		Endpoint: "https://api.example.com/graphql",
		Queries: classify([]GraphQLQuery{
			{Name: "show", ReturnType: "Show", Args: []QueryArg{
				{Name: "_id", TypeName: "String", Required: true},
			}},
		}),
	}

	_, err := BuildConfig(schema, nil, providers.TypeAnime)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoSearchQuery))
}

func TestBuildConfig_IdentityFromEndpoint(t *testing.T) {
	// No profile: name and base URL come from the endpoint itself
	schema := animeSchemaInfo("https://api.example.com/graphql")

	cfg, err := BuildConfig(schema, nil, providers.TypeAnime)
	require.NoError(t, err)
	assert.Equal(t, "api.example.com", cfg.Name)
	assert.Equal(t, "api-example-com", cfg.Slug)
	assert.Equal(t, "https://api.example.com", cfg.Host.BaseURL)
}
