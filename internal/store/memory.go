package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"courserag/internal/config"
	"courserag/internal/models"
)

// Memory is a brute-force cosine similarity index. It backs tests and
// zero-infrastructure runs; the Postgres store is the durable counterpart.
// Safe for concurrent use.
type Memory struct {
	mu         sync.RWMutex
	embedder   Embedder
	maxResults int

	catalog map[string]catalogRow
	chunks  map[string][]chunkRow // keyed by course title, swapped wholesale
}

type catalogRow struct {
	entry models.CatalogEntry
	vec   []float32
}

type chunkRow struct {
	chunk models.Chunk
	vec   []float32
}

var _ Store = (*Memory)(nil)

// NewMemory creates an in-memory store. maxResults must be positive: a zero
// limit would silently return no results and mask failures.
func NewMemory(embedder Embedder, maxResults int) (*Memory, error) {
	if maxResults <= 0 {
		return nil, fmt.Errorf("%w: max results must be positive, got %d", config.ErrInvalidConfig, maxResults)
	}
	return &Memory{
		embedder:   embedder,
		maxResults: maxResults,
		catalog:    make(map[string]catalogRow),
		chunks:     make(map[string][]chunkRow),
	}, nil
}

func (m *Memory) UpsertCatalog(ctx context.Context, entry models.CatalogEntry) error {
	vec, err := m.embedder.Embed(ctx, entry.Title)
	if err != nil {
		return fmt.Errorf("embed catalog entry: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.catalog[entry.Title] = catalogRow{entry: entry, vec: vec}
	return nil
}

func (m *Memory) UpsertContent(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content()
	}
	vecs, err := m.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range chunks {
		m.chunks[c.CourseTitle] = append(m.chunks[c.CourseTitle], chunkRow{chunk: c, vec: vecs[i]})
	}
	return nil
}

// ReplaceCourse swaps the per-course rows under one lock acquisition, so a
// concurrent search sees the old set or the new set, never a mix.
func (m *Memory) ReplaceCourse(ctx context.Context, entry models.CatalogEntry, chunks []models.Chunk) error {
	titleVec, err := m.embedder.Embed(ctx, entry.Title)
	if err != nil {
		return fmt.Errorf("embed catalog entry: %w", err)
	}

	rows := make([]chunkRow, len(chunks))
	if len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Content()
		}
		vecs, err := m.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed chunks: %w", err)
		}
		for i, c := range chunks {
			rows[i] = chunkRow{chunk: c, vec: vecs[i]}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.catalog[entry.Title] = catalogRow{entry: entry, vec: titleVec}
	m.chunks[entry.Title] = rows
	return nil
}

func (m *Memory) ClearCourse(ctx context.Context, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.catalog, title)
	delete(m.chunks, title)
	return nil
}

func (m *Memory) ResolveCourseName(ctx context.Context, name string) (string, error) {
	vec, err := m.embedder.Embed(ctx, name)
	if err != nil {
		return "", searchFailed(err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	best := ""
	bestScore := math.Inf(-1)
	for title, row := range m.catalog {
		score := cosine(vec, row.vec)
		// Deterministic tiebreak on title so equal scores cannot flap.
		if score > bestScore || (score == bestScore && title < best) {
			best = title
			bestScore = score
		}
	}
	if best == "" {
		return "", fmt.Errorf("%w: no match for %q", ErrCourseNotFound, name)
	}
	return best, nil
}

func (m *Memory) GetCatalogEntry(ctx context.Context, title string) (*models.CatalogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.catalog[title]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrCourseNotFound, title)
	}
	entry := row.entry
	return &entry, nil
}

func (m *Memory) ListCourseTitles(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	titles := make([]string, 0, len(m.catalog))
	for title := range m.catalog {
		titles = append(titles, title)
	}
	sort.Strings(titles)
	return titles, nil
}

func (m *Memory) Search(ctx context.Context, filter models.SearchFilter) ([]models.ScoredChunk, error) {
	courseTitle := ""
	if filter.CourseName != "" {
		title, err := m.ResolveCourseName(ctx, filter.CourseName)
		if err != nil {
			return nil, err
		}
		courseTitle = title
	}

	vec, err := m.embedder.Embed(ctx, filter.Query)
	if err != nil {
		return nil, searchFailed(err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []models.ScoredChunk
	for title, rows := range m.chunks {
		if courseTitle != "" && title != courseTitle {
			continue
		}
		for _, row := range rows {
			if filter.LessonNumber != nil {
				if row.chunk.LessonNumber == nil || *row.chunk.LessonNumber != *filter.LessonNumber {
					continue
				}
			}
			results = append(results, models.ScoredChunk{Chunk: row.chunk, Score: cosine(vec, row.vec)})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Chunk.Index != results[j].Chunk.Index {
			return results[i].Chunk.Index < results[j].Chunk.Index
		}
		return results[i].Chunk.CourseTitle < results[j].Chunk.CourseTitle
	})

	if len(results) > m.maxResults {
		results = results[:m.maxResults]
	}
	return results, nil
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
