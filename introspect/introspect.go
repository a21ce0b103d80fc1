// Package introspect discovers a GraphQL API's shape through standard
// introspection, classifies the discovered queries, and synthesizes
// candidate queries and provider configs from them.
package introspect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mvachon/unagi/profile"
)

// Cap reads of remote bodies; schema payloads beyond this are abuse.
const maxBodyReadBytes = 4 * 1024 * 1024

// TypeKind is a GraphQL type kind as reported by introspection.
type TypeKind string

const (
	KindObject      TypeKind = "OBJECT"
	KindScalar      TypeKind = "SCALAR"
	KindInputObject TypeKind = "INPUT_OBJECT"
	KindNonNull     TypeKind = "NON_NULL"
	KindList        TypeKind = "LIST"
	KindEnum        TypeKind = "ENUM"
)

// QueryPurpose classifies what role a discovered query likely plays.
type QueryPurpose string

const (
	PurposeSearch      QueryPurpose = "search"
	PurposeGetByID     QueryPurpose = "get_by_id"
	PurposeGetEpisodes QueryPurpose = "get_episodes"
	PurposeGetChapters QueryPurpose = "get_chapters"
	PurposeUnknown     QueryPurpose = "unknown"
)

// TypeField is one field of an object type, with wrapper kinds unwrapped.
type TypeField struct {
	Name     string `json:"name"`
	TypeName string `json:"type_name"`
}

// GraphQLType is one named type from the schema.
type GraphQLType struct {
	Name   string      `json:"name"`
	Kind   TypeKind    `json:"kind"`
	Fields []TypeField `json:"fields,omitempty"`
}

// QueryArg is one declared argument of a query.
type QueryArg struct {
	Name     string `json:"name"`
	TypeName string `json:"type_name"`
	Required bool   `json:"required"`
}

// GraphQLQuery is one field of the schema's query (or mutation) type.
type GraphQLQuery struct {
	Name            string       `json:"name"`
	ReturnType      string       `json:"return_type"`
	ReturnsList     bool         `json:"returns_list"`
	Args            []QueryArg   `json:"args,omitempty"`
	InferredPurpose QueryPurpose `json:"inferred_purpose"`
}

// SchemaInfo is the typed model of an introspected endpoint.
type SchemaInfo struct {
	Endpoint              string         `json:"endpoint"`
	Types                 []GraphQLType  `json:"types,omitempty"`
	Queries               []GraphQLQuery `json:"queries,omitempty"`
	Mutations             []GraphQLQuery `json:"mutations,omitempty"`
	SupportsIntrospection bool           `json:"supports_introspection"`
}

// TypeByName looks up a named type in the schema.
func (s *SchemaInfo) TypeByName(name string) (*GraphQLType, bool) {
	for i := range s.Types {
		if s.Types[i].Name == name {
			return &s.Types[i], true
		}
	}
	return nil, false
}

// The canonical introspection document, trimmed to the pieces the schema
// model needs. Type references unwrap three levels of NON_NULL/LIST.
const introspectionQuery = `query IntrospectionQuery {
  __schema {
    queryType { name }
    mutationType { name }
    types {
      kind
      name
      fields {
        name
        args { name type { kind name ofType { kind name ofType { kind name ofType { kind name } } } } }
        type { kind name ofType { kind name ofType { kind name ofType { kind name } } } }
      }
    }
  }
}`

// Introspector issues introspection requests. Safe for concurrent use.
type Introspector struct {
	httpClient *http.Client
	userAgent  string
}

// Option configures an Introspector.
type Option func(*Introspector)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(i *Introspector) {
		if client != nil {
			i.httpClient = client
		}
	}
}

// WithUserAgent overrides the User-Agent sent with introspection requests.
func WithUserAgent(ua string) Option {
	return func(i *Introspector) {
		if ua != "" {
			i.userAgent = ua
		}
	}
}

// New creates an introspector.
func New(opts ...Option) *Introspector {
	intro := &Introspector{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		userAgent:  "unagi/1.0 (media catalog aggregator)",
	}
	for _, opt := range opts {
		opt(intro)
	}
	return intro
}

// Introspect posts the canonical introspection query to endpoint. A site
// that refuses introspection (non-2xx, non-JSON, or a response without the
// schema shape) yields (nil, nil): unsupported is an expected outcome, not
// an error. Transport failures and cancellation return an error.
func (i *Introspector) Introspect(ctx context.Context, endpoint string, prof *profile.SiteProfile) (*SchemaInfo, error) {
	payload, err := json.Marshal(map[string]any{
		"query":     introspectionQuery,
		"variables": map[string]any{},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal introspection query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", i.userAgent)
	if prof != nil {
		for name, value := range prof.RequiredHeaders {
			req.Header.Set(name, value)
		}
	}

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach endpoint: %w", err)
	}
	defer resp.Body.Close()

	// Introspection disabled or endpoint not GraphQL: legitimate outcomes
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil
	}

	var decoded introspectionResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyReadBytes)).Decode(&decoded); err != nil {
		return nil, nil
	}
	if decoded.Data.Schema == nil {
		return nil, nil
	}

	return buildSchemaInfo(endpoint, decoded.Data.Schema), nil
}

// Wire shapes for the introspection response.
type introspectionResponse struct {
	Data struct {
		Schema *rawSchema `json:"__schema"`
	} `json:"data"`
}

type rawSchema struct {
	QueryType    *rawNamed     `json:"queryType"`
	MutationType *rawNamed     `json:"mutationType"`
	Types        []rawFullType `json:"types"`
}

type rawNamed struct {
	Name string `json:"name"`
}

type rawFullType struct {
	Kind   string     `json:"kind"`
	Name   string     `json:"name"`
	Fields []rawField `json:"fields"`
}

type rawField struct {
	Name string     `json:"name"`
	Args []rawArg   `json:"args"`
	Type rawTypeRef `json:"type"`
}

type rawArg struct {
	Name string     `json:"name"`
	Type rawTypeRef `json:"type"`
}

type rawTypeRef struct {
	Kind   string      `json:"kind"`
	Name   string      `json:"name"`
	OfType *rawTypeRef `json:"ofType"`
}

// unwrap follows NON_NULL/LIST wrappers to the underlying named type.
func unwrap(ref rawTypeRef) (name string, isList bool, isRequired bool) {
	isRequired = ref.Kind == string(KindNonNull)

	current := &ref
	for current != nil {
		switch current.Kind {
		case string(KindList):
			isList = true
		case string(KindNonNull):
			// wrapper only
		default:
			return current.Name, isList, isRequired
		}
		current = current.OfType
	}
	return "", isList, isRequired
}

// buildSchemaInfo flattens the wire schema into the typed model.
func buildSchemaInfo(endpoint string, raw *rawSchema) *SchemaInfo {
	info := &SchemaInfo{
		Endpoint:              endpoint,
		SupportsIntrospection: true,
	}

	queryTypeName := ""
	if raw.QueryType != nil {
		queryTypeName = raw.QueryType.Name
	}
	mutationTypeName := ""
	if raw.MutationType != nil {
		mutationTypeName = raw.MutationType.Name
	}

	for _, t := range raw.Types {
		// Skip introspection meta types
		if strings.HasPrefix(t.Name, "__") {
			continue
		}

		gt := GraphQLType{Name: t.Name, Kind: TypeKind(t.Kind)}
		for _, f := range t.Fields {
			typeName, _, _ := unwrap(f.Type)
			gt.Fields = append(gt.Fields, TypeField{Name: f.Name, TypeName: typeName})
		}
		info.Types = append(info.Types, gt)

		switch t.Name {
		case queryTypeName:
			info.Queries = append(info.Queries, buildQueries(t.Fields)...)
		case mutationTypeName:
			if mutationTypeName != "" {
				info.Mutations = append(info.Mutations, buildQueries(t.Fields)...)
			}
		}
	}

	return info
}

// buildQueries converts a root type's fields into classified query entries.
func buildQueries(fields []rawField) []GraphQLQuery {
	var queries []GraphQLQuery
	for _, f := range fields {
		returnType, returnsList, _ := unwrap(f.Type)

		q := GraphQLQuery{
			Name:        f.Name,
			ReturnType:  returnType,
			ReturnsList: returnsList,
		}
		for _, a := range f.Args {
			typeName, _, required := unwrap(a.Type)
			q.Args = append(q.Args, QueryArg{
				Name:     a.Name,
				TypeName: typeName,
				Required: required,
			})
		}
		q.InferredPurpose = inferPurpose(q)
		queries = append(queries, q)
	}
	return queries
}
