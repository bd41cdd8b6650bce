package store

import (
	"context"
	"errors"
	"testing"

	"courserag/internal/config"
	"courserag/internal/models"
)

// fakeEmbedder returns fixed vectors per text so similarity ordering is
// fully controlled by the test.
type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 0}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func intPtr(n int) *int { return &n }

func chunk(course string, lesson, index int, text string) models.Chunk {
	return models.Chunk{CourseTitle: course, LessonNumber: intPtr(lesson), Index: index, Text: text}
}

func TestNewMemoryRejectsBadLimit(t *testing.T) {
	for _, limit := range []int{0, -1} {
		_, err := NewMemory(&fakeEmbedder{}, limit)
		if !errors.Is(err, config.ErrInvalidConfig) {
			t.Errorf("NewMemory(limit=%d) error = %v, want ErrInvalidConfig", limit, err)
		}
	}
}

func TestResolveCourseNameExactTitle(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"Introduction to MCP": {1, 0, 0},
		"Advanced Retrieval":  {0, 1, 0},
	}}
	m, _ := NewMemory(emb, 5)
	ctx := context.Background()

	for _, title := range []string{"Introduction to MCP", "Advanced Retrieval"} {
		if err := m.UpsertCatalog(ctx, models.CatalogEntry{Title: title}); err != nil {
			t.Fatalf("UpsertCatalog() error = %v", err)
		}
	}

	// An exact existing title always resolves to itself.
	got, err := m.ResolveCourseName(ctx, "Introduction to MCP")
	if err != nil {
		t.Fatalf("ResolveCourseName() error = %v", err)
	}
	if got != "Introduction to MCP" {
		t.Errorf("resolved = %q, want exact title", got)
	}
}

func TestResolveCourseNameFuzzy(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"Introduction to MCP": {1, 0, 0},
		"Advanced Retrieval":  {0, 1, 0},
		"MCP":                 {0.8, 0.2, 0},
	}}
	m, _ := NewMemory(emb, 5)
	ctx := context.Background()

	m.UpsertCatalog(ctx, models.CatalogEntry{Title: "Introduction to MCP"})
	m.UpsertCatalog(ctx, models.CatalogEntry{Title: "Advanced Retrieval"})

	got, err := m.ResolveCourseName(ctx, "MCP")
	if err != nil {
		t.Fatalf("ResolveCourseName() error = %v", err)
	}
	if got != "Introduction to MCP" {
		t.Errorf("resolved = %q, want nearest title", got)
	}
}

func TestResolveCourseNameEmptyCatalog(t *testing.T) {
	m, _ := NewMemory(&fakeEmbedder{}, 5)
	_, err := m.ResolveCourseName(context.Background(), "anything")
	if !errors.Is(err, ErrCourseNotFound) {
		t.Errorf("ResolveCourseName() error = %v, want ErrCourseNotFound", err)
	}
}

func TestSearchOrderingAndLimit(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"query":  {1, 0, 0},
		"best":   {1, 0, 0},
		"middle": {1, 1, 0},
		"worst":  {0, 1, 0},
	}}
	m, _ := NewMemory(emb, 2)
	ctx := context.Background()

	err := m.UpsertContent(ctx, []models.Chunk{
		chunk("C", 1, 0, "worst"),
		chunk("C", 1, 1, "best"),
		chunk("C", 1, 2, "middle"),
	})
	if err != nil {
		t.Fatalf("UpsertContent() error = %v", err)
	}

	results, err := m.Search(ctx, models.SearchFilter{Query: "query"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want the configured maximum of 2", len(results))
	}
	if results[0].Chunk.Text != "best" || results[1].Chunk.Text != "middle" {
		t.Errorf("order = [%q, %q], want descending similarity", results[0].Chunk.Text, results[1].Chunk.Text)
	}
	if results[0].Score <= results[1].Score {
		t.Errorf("scores = %v, %v, want descending", results[0].Score, results[1].Score)
	}
}

func TestSearchTiebreakByChunkIndex(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"query": {1, 0, 0},
		"same":  {1, 0, 0},
	}}
	m, _ := NewMemory(emb, 5)
	ctx := context.Background()

	m.UpsertContent(ctx, []models.Chunk{
		chunk("C", 1, 7, "same"),
		chunk("C", 1, 2, "same"),
	})

	results, err := m.Search(ctx, models.SearchFilter{Query: "query"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 2 || results[0].Chunk.Index != 2 || results[1].Chunk.Index != 7 {
		t.Errorf("tie order = %v, want ascending chunk index", results)
	}
}

func TestSearchFilters(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"Introduction to MCP": {1, 0, 0},
		"Advanced Retrieval":  {0, 1, 0},
		"MCP":                 {0.9, 0.1, 0},
		"query":               {1, 0, 0},
		"mcp lesson one":      {1, 0, 0},
		"mcp lesson two":      {1, 0, 0},
		"retrieval text":      {1, 0, 0},
	}}
	m, _ := NewMemory(emb, 5)
	ctx := context.Background()

	m.UpsertCatalog(ctx, models.CatalogEntry{Title: "Introduction to MCP"})
	m.UpsertCatalog(ctx, models.CatalogEntry{Title: "Advanced Retrieval"})
	m.UpsertContent(ctx, []models.Chunk{
		chunk("Introduction to MCP", 1, 0, "mcp lesson one"),
		chunk("Introduction to MCP", 2, 1, "mcp lesson two"),
		chunk("Advanced Retrieval", 1, 0, "retrieval text"),
	})

	t.Run("course filter via fuzzy name", func(t *testing.T) {
		results, err := m.Search(ctx, models.SearchFilter{Query: "query", CourseName: "MCP"})
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if len(results) != 2 {
			t.Fatalf("got %d results, want 2", len(results))
		}
		for _, r := range results {
			if r.Chunk.CourseTitle != "Introduction to MCP" {
				t.Errorf("result from course %q", r.Chunk.CourseTitle)
			}
		}
	})

	t.Run("lesson filter", func(t *testing.T) {
		results, err := m.Search(ctx, models.SearchFilter{Query: "query", LessonNumber: intPtr(2)})
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if len(results) != 1 || results[0].Chunk.Text != "mcp lesson two" {
			t.Errorf("results = %v, want only lesson 2", results)
		}
	})

	t.Run("combined filters with no match", func(t *testing.T) {
		results, err := m.Search(ctx, models.SearchFilter{Query: "query", CourseName: "Advanced Retrieval", LessonNumber: intPtr(9)})
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if len(results) != 0 {
			t.Errorf("results = %v, want empty set", results)
		}
	})
}

func TestSearchUnresolvableCourse(t *testing.T) {
	m, _ := NewMemory(&fakeEmbedder{}, 5)
	_, err := m.Search(context.Background(), models.SearchFilter{Query: "q", CourseName: "ghost"})
	if !errors.Is(err, ErrCourseNotFound) {
		t.Errorf("Search() error = %v, want ErrCourseNotFound", err)
	}
}

func TestSearchEmbedderFailure(t *testing.T) {
	cause := errors.New("embedding backend down")
	m, _ := NewMemory(&fakeEmbedder{err: cause}, 5)

	_, err := m.Search(context.Background(), models.SearchFilter{Query: "q"})
	var se *SearchError
	if !errors.As(err, &se) {
		t.Fatalf("Search() error = %v, want SearchError", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("SearchError does not wrap the cause: %v", err)
	}
}

func TestReplaceCourse(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"C":     {1, 0, 0},
		"query": {1, 0, 0},
		"old":   {1, 0, 0},
		"new":   {1, 0, 0},
	}}
	m, _ := NewMemory(emb, 5)
	ctx := context.Background()

	entry := models.CatalogEntry{Title: "C", Lessons: []models.Lesson{{Number: 1, Title: "Old"}}}
	if err := m.ReplaceCourse(ctx, entry, []models.Chunk{
		chunk("C", 1, 0, "old"),
		chunk("C", 1, 1, "old"),
	}); err != nil {
		t.Fatalf("ReplaceCourse() error = %v", err)
	}

	entry.Lessons = []models.Lesson{{Number: 1, Title: "New"}}
	if err := m.ReplaceCourse(ctx, entry, []models.Chunk{chunk("C", 1, 0, "new")}); err != nil {
		t.Fatalf("ReplaceCourse() error = %v", err)
	}

	results, err := m.Search(ctx, models.SearchFilter{Query: "query"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].Chunk.Text != "new" {
		t.Errorf("results = %v, want only the replacement chunk", results)
	}

	got, err := m.GetCatalogEntry(ctx, "C")
	if err != nil {
		t.Fatalf("GetCatalogEntry() error = %v", err)
	}
	if len(got.Lessons) != 1 || got.Lessons[0].Title != "New" {
		t.Errorf("catalog entry = %+v, want replaced lessons", got)
	}
}

func TestClearCourseAndListTitles(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{}}
	m, _ := NewMemory(emb, 5)
	ctx := context.Background()

	m.UpsertCatalog(ctx, models.CatalogEntry{Title: "B Course"})
	m.UpsertCatalog(ctx, models.CatalogEntry{Title: "A Course"})

	titles, err := m.ListCourseTitles(ctx)
	if err != nil {
		t.Fatalf("ListCourseTitles() error = %v", err)
	}
	if len(titles) != 2 || titles[0] != "A Course" || titles[1] != "B Course" {
		t.Errorf("titles = %v, want sorted", titles)
	}

	if err := m.ClearCourse(ctx, "A Course"); err != nil {
		t.Fatalf("ClearCourse() error = %v", err)
	}
	titles, _ = m.ListCourseTitles(ctx)
	if len(titles) != 1 || titles[0] != "B Course" {
		t.Errorf("titles after clear = %v", titles)
	}

	if _, err := m.GetCatalogEntry(ctx, "A Course"); !errors.Is(err, ErrCourseNotFound) {
		t.Errorf("GetCatalogEntry() error = %v, want ErrCourseNotFound", err)
	}
}
