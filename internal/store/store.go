// Package store provides the dual-collection vector index: a course catalog
// for fuzzy name resolution and a content collection for chunk retrieval.
package store

import (
	"context"
	"errors"
	"fmt"

	"courserag/internal/models"
)

// ErrCourseNotFound indicates that fuzzy course name resolution produced no
// candidate. Callers surface it as a formatted "no results" message, never as
// a crash.
var ErrCourseNotFound = errors.New("course not found")

// SearchError wraps embedding-backend and storage I/O failures into a single
// kind. A search either returns a complete result set or this error; callers
// never see partial results.
type SearchError struct {
	cause error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("search failed: %v", e.cause)
}

func (e *SearchError) Unwrap() error {
	return e.cause
}

func searchFailed(err error) error {
	return &SearchError{cause: err}
}

// Embedder turns text into vectors. Satisfied by llm.Embedder.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Store is the uniform contract over both collections.
//
// The catalog is keyed by course title; upserting an entry replaces any
// previous one. Content chunks are replaced wholesale per course, never
// partially updated. ReplaceCourse performs clear + catalog upsert + content
// upsert so that concurrent searches observe either the fully-old or the
// fully-new chunk set.
type Store interface {
	UpsertCatalog(ctx context.Context, entry models.CatalogEntry) error
	UpsertContent(ctx context.Context, chunks []models.Chunk) error
	ReplaceCourse(ctx context.Context, entry models.CatalogEntry, chunks []models.Chunk) error
	ClearCourse(ctx context.Context, title string) error

	// ResolveCourseName returns the catalog title nearest to name, with no
	// similarity floor: a low-confidence match is accepted silently. Returns
	// ErrCourseNotFound only when the catalog has no candidate at all.
	ResolveCourseName(ctx context.Context, name string) (string, error)

	GetCatalogEntry(ctx context.Context, title string) (*models.CatalogEntry, error)
	ListCourseTitles(ctx context.Context) ([]string, error)

	// Search embeds filter.Query and returns up to the configured maximum of
	// results ordered by descending similarity, ties broken by ascending
	// chunk index. A set CourseName is resolved first; failed resolution
	// returns ErrCourseNotFound. An empty result set is a normal outcome.
	Search(ctx context.Context, filter models.SearchFilter) ([]models.ScoredChunk, error)
}
