// Package catalog defines the domain entities a provider config resolves
// and the engine that executes a config's query templates against a live
// site.
package catalog

import (
	"context"
	"errors"
)

// Custom errors for catalog operations
var (
	ErrUnsupportedOperation = errors.New("operation not supported by this provider")
	ErrMissingField         = errors.New("response item is missing a required field")
)

// SearchResult is one hit from a provider's search query.
type SearchResult struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Anime is a show resolved from an anime provider's catalog.
type Anime struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	EpisodeCount int    `json:"episode_count,omitempty"`
}

// Manga is a series resolved from a manga provider's catalog.
type Manga struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	ChapterCount int    `json:"chapter_count,omitempty"`
}

// Episode is one watchable unit of an anime.
type Episode struct {
	ID     string `json:"id"`
	Number string `json:"number,omitempty"`
	Title  string `json:"title,omitempty"`
}

// Chapter is one readable unit of a manga.
type Chapter struct {
	ID     string `json:"id"`
	Number string `json:"number,omitempty"`
	Title  string `json:"title,omitempty"`
}

// StreamLink is a playable video source for an episode.
type StreamLink struct {
	URL     string `json:"url"`
	Quality string `json:"quality,omitempty"`
	Referer string `json:"referer,omitempty"`
}

// PageImage is one page of a manga chapter.
type PageImage struct {
	URL    string `json:"url"`
	Number string `json:"number,omitempty"`
}

// DynamicCatalog is the execution contract a validated provider config
// fulfils. Anime providers implement Episodes and Streams; manga providers
// implement Chapters and Pages; the other pair returns
// ErrUnsupportedOperation.
type DynamicCatalog interface {
	Search(ctx context.Context, title string) ([]SearchResult, error)
	Episodes(ctx context.Context, mediaID string) ([]Episode, error)
	Chapters(ctx context.Context, mediaID string) ([]Chapter, error)
	Streams(ctx context.Context, episodeID string) ([]StreamLink, error)
	Pages(ctx context.Context, chapterID string) ([]PageImage, error)
}
