package introspect

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mvachon/unagi/providers"
)

// Purpose classification is intentionally conservative: a wrong Unknown
// costs a candidate query, a wrong Search costs a broken config.

// Keyword rules are checked in order against the lowercased query name.
var purposeKeywords = []struct {
	keyword string
	purpose QueryPurpose
}{
	{"search", PurposeSearch},
	{"episode", PurposeGetEpisodes},
	{"chapter", PurposeGetChapters},
}

// Argument names treated as identifiers for the shape rule.
var idArgNames = []string{"id", "_id", "uid", "slug", "showid", "mangaid", "mediaid"}

// Argument names treated as search terms.
var searchArgNames = []string{"search", "query", "keyword", "term", "q", "title", "name"}

// inferPurpose classifies one discovered query.
func inferPurpose(q GraphQLQuery) QueryPurpose {
	lowered := strings.ToLower(q.Name)
	for _, rule := range purposeKeywords {
		if strings.Contains(lowered, rule.keyword) {
			return rule.purpose
		}
	}

	// Shape rule: a list-returning query with a search-term argument is a
	// search even when the field itself is named "shows" or "mangas".
	if q.ReturnsList && firstSearchArg(q) != "" {
		return PurposeSearch
	}

	// Shape rule: a single-object query taking exactly one required
	// identifier argument is a detail lookup.
	if !q.ReturnsList && singleRequiredIDArg(q) != "" {
		return PurposeGetByID
	}

	return PurposeUnknown
}

// singleRequiredIDArg returns the identifier argument name when the query
// has exactly one required argument and it looks like an ID, else "".
func singleRequiredIDArg(q GraphQLQuery) string {
	required := ""
	count := 0
	for _, a := range q.Args {
		if a.Required {
			count++
			required = a.Name
		}
	}
	if count != 1 {
		return ""
	}
	if isIDArgName(required) {
		return required
	}
	return ""
}

func isIDArgName(name string) bool {
	lowered := strings.ToLower(name)
	for _, candidate := range idArgNames {
		if lowered == candidate {
			return true
		}
	}
	return strings.HasSuffix(lowered, "id")
}

func isSearchArgName(name string) bool {
	lowered := strings.ToLower(name)
	for _, candidate := range searchArgNames {
		if lowered == candidate {
			return true
		}
	}
	return false
}

// firstIDArg returns the first identifier-looking argument, else "".
func firstIDArg(q GraphQLQuery) string {
	for _, a := range q.Args {
		if isIDArgName(a.Name) {
			return a.Name
		}
	}
	return ""
}

// firstSearchArg returns the first search-term argument, preferring string
// typed ones, else "".
func firstSearchArg(q GraphQLQuery) string {
	for _, a := range q.Args {
		if isSearchArgName(a.Name) && a.TypeName == "String" {
			return a.Name
		}
	}
	for _, a := range q.Args {
		if isSearchArgName(a.Name) {
			return a.Name
		}
	}
	return ""
}

// Result field names recognised per logical role, in preference order.
var (
	idFieldNames     = []string{"_id", "id", "uid", "slug"}
	titleFieldNames  = []string{"name", "title", "englishName", "english_name", "englishTitle"}
	numberFieldNames = []string{"number", "episodeNumber", "chapterNumber", "episode", "chapter", "num"}
)

// GeneratedQuery is a synthesized, executable candidate query.
type GeneratedQuery struct {
	QueryName  string            `json:"query_name"`
	Purpose    QueryPurpose      `json:"purpose"`
	Confidence float64           `json:"confidence"`
	Document   string            `json:"document"`
	Variables  map[string]string `json:"variables,omitempty"`
	ResultPath string            `json:"result_path"`
	Fields     map[string]string `json:"fields,omitempty"`
}

// GenerateQueries synthesizes executable documents for every discovered
// query whose purpose is useful to providerType. Output is ordered by
// descending confidence, ties broken by query name for determinism.
func GenerateQueries(schema *SchemaInfo, providerType providers.ProviderType) []GeneratedQuery {
	if schema == nil {
		return nil
	}

	var generated []GeneratedQuery
	for _, q := range schema.Queries {
		if !purposeRelevant(q.InferredPurpose, providerType) {
			continue
		}
		if gq, ok := synthesize(schema, q); ok {
			generated = append(generated, gq)
		}
	}

	sort.SliceStable(generated, func(i, j int) bool {
		if generated[i].Confidence != generated[j].Confidence {
			return generated[i].Confidence > generated[j].Confidence
		}
		return generated[i].QueryName < generated[j].QueryName
	})
	return generated
}

// purposeRelevant reports whether a purpose is worth synthesizing for the
// given provider type.
func purposeRelevant(purpose QueryPurpose, providerType providers.ProviderType) bool {
	switch purpose {
	case PurposeSearch, PurposeGetByID:
		return true
	case PurposeGetEpisodes:
		return providerType == providers.TypeAnime
	case PurposeGetChapters:
		return providerType == providers.TypeManga
	default:
		return false
	}
}

// synthesize builds one executable document for a classified query.
func synthesize(schema *SchemaInfo, q GraphQLQuery) (GeneratedQuery, bool) {
	confidence := baseConfidence(q)
	variables := map[string]string{}

	// Bind the argument the purpose revolves around to a runtime token.
	var bound []QueryArg
	switch q.InferredPurpose {
	case PurposeSearch:
		argName := firstSearchArg(q)
		if argName == "" {
			return GeneratedQuery{}, false
		}
		variables[argName] = providers.TokenTitle
		bound = append(bound, argByName(q, argName))
		if q.Args[0].Name == argName && strings.ToLower(q.Name) == "search" {
			confidence += 0.05
		}
	case PurposeGetByID:
		argName := singleRequiredIDArg(q)
		if argName == "" {
			argName = firstIDArg(q)
		}
		if argName == "" {
			return GeneratedQuery{}, false
		}
		variables[argName] = providers.TokenMediaID
		bound = append(bound, argByName(q, argName))
	case PurposeGetEpisodes, PurposeGetChapters:
		argName := firstIDArg(q)
		if argName == "" {
			// Listing hangs off a parent ID; without one the document
			// cannot be parameterised.
			return GeneratedQuery{}, false
		}
		variables[argName] = providers.TokenMediaID
		bound = append(bound, argByName(q, argName))
	default:
		return GeneratedQuery{}, false
	}

	// Unfillable required arguments make the document advisory at best.
	for _, a := range q.Args {
		if a.Required {
			if _, ok := variables[a.Name]; !ok {
				confidence *= 0.6
			}
		}
	}

	selection, fields := buildSelection(schema, q)

	var varDefs, argBindings []string
	for _, a := range bound {
		typeText := a.TypeName
		if a.Required {
			typeText += "!"
		}
		varDefs = append(varDefs, fmt.Sprintf("$%s: %s", a.Name, typeText))
		argBindings = append(argBindings, fmt.Sprintf("%s: $%s", a.Name, a.Name))
	}

	document := fmt.Sprintf("query (%s) { %s(%s) { %s } }",
		strings.Join(varDefs, ", "), q.Name, strings.Join(argBindings, ", "), selection)

	return GeneratedQuery{
		QueryName:  q.Name,
		Purpose:    q.InferredPurpose,
		Confidence: clampConfidence(confidence),
		Document:   document,
		Variables:  variables,
		ResultPath: "data." + q.Name,
		Fields:     fields,
	}, true
}

// baseConfidence scores how well a query's shape matches its inferred
// purpose before synthesis adjustments.
func baseConfidence(q GraphQLQuery) float64 {
	switch q.InferredPurpose {
	case PurposeSearch:
		if q.ReturnsList {
			return 0.9
		}
		return 0.7
	case PurposeGetEpisodes, PurposeGetChapters:
		if q.ReturnsList {
			return 0.85
		}
		return 0.65
	case PurposeGetByID:
		// Shape-only evidence, no keyword backing
		return 0.7
	default:
		return 0.0
	}
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

func argByName(q GraphQLQuery, name string) QueryArg {
	for _, a := range q.Args {
		if a.Name == name {
			return a
		}
	}
	return QueryArg{Name: name, TypeName: "String"}
}

// buildSelection picks result fields for the query's return type and maps
// them to the logical roles downstream consumers read.
func buildSelection(schema *SchemaInfo, q GraphQLQuery) (string, map[string]string) {
	fields := map[string]string{}
	var selected []string

	returnType, ok := schema.TypeByName(q.ReturnType)
	if !ok || len(returnType.Fields) == 0 {
		// Opaque return type: keep the document valid
		return "__typename", nil
	}

	if name := pickField(returnType, idFieldNames); name != "" {
		fields["id"] = name
		selected = append(selected, name)
	}
	if name := pickField(returnType, titleFieldNames); name != "" {
		fields["title"] = name
		selected = append(selected, name)
	}
	if q.InferredPurpose == PurposeGetEpisodes || q.InferredPurpose == PurposeGetChapters {
		if name := pickField(returnType, numberFieldNames); name != "" {
			fields["number"] = name
			selected = append(selected, name)
		}
	}

	if len(selected) == 0 {
		// Nothing recognisable; take a few scalar fields so the document
		// still executes and a human can inspect the result.
		for _, f := range returnType.Fields {
			if isScalarTypeName(f.TypeName) {
				selected = append(selected, f.Name)
			}
			if len(selected) == 3 {
				break
			}
		}
		if len(selected) == 0 {
			return "__typename", nil
		}
		return strings.Join(selected, " "), nil
	}

	return strings.Join(selected, " "), fields
}

// pickField returns the first field of t whose name matches candidates,
// compared case-insensitively in candidate preference order.
func pickField(t *GraphQLType, candidates []string) string {
	for _, want := range candidates {
		for _, f := range t.Fields {
			if strings.EqualFold(f.Name, want) {
				return f.Name
			}
		}
	}
	return ""
}

func isScalarTypeName(name string) bool {
	switch name {
	case "String", "Int", "Float", "Boolean", "ID":
		return true
	}
	return false
}
