package tools

import (
	"context"
	"errors"
	"strings"
	"testing"

	"courserag/internal/models"
	"courserag/internal/store"
)

// fakeStore scripts the store responses the tools consume.
type fakeStore struct {
	searchResults []models.ScoredChunk
	searchErr     error

	resolved   string
	resolveErr error

	entry    *models.CatalogEntry
	entryErr error

	titles []string
}

func (f *fakeStore) UpsertCatalog(context.Context, models.CatalogEntry) error { return nil }
func (f *fakeStore) UpsertContent(context.Context, []models.Chunk) error      { return nil }
func (f *fakeStore) ReplaceCourse(context.Context, models.CatalogEntry, []models.Chunk) error {
	return nil
}
func (f *fakeStore) ClearCourse(context.Context, string) error { return nil }

func (f *fakeStore) ResolveCourseName(context.Context, string) (string, error) {
	return f.resolved, f.resolveErr
}

func (f *fakeStore) GetCatalogEntry(context.Context, string) (*models.CatalogEntry, error) {
	return f.entry, f.entryErr
}

func (f *fakeStore) ListCourseTitles(context.Context) ([]string, error) {
	return f.titles, nil
}

func (f *fakeStore) Search(context.Context, models.SearchFilter) ([]models.ScoredChunk, error) {
	return f.searchResults, f.searchErr
}

func scored(course string, lesson *int, index int, text, prefix string) models.ScoredChunk {
	return models.ScoredChunk{
		Chunk: models.Chunk{CourseTitle: course, LessonNumber: lesson, Index: index, Text: text, Prefix: prefix},
		Score: 0.9,
	}
}

func intPtr(n int) *int { return &n }

func TestSearchToolRequiresQuery(t *testing.T) {
	tool := NewSearchTool(&fakeStore{})
	res := tool.Execute(context.Background(), map[string]any{})
	if !res.IsError || !strings.Contains(res.Text, "query is required") {
		t.Errorf("result = %+v, want query-required error", res)
	}
}

func TestSearchToolCourseNotFound(t *testing.T) {
	tool := NewSearchTool(&fakeStore{searchErr: store.ErrCourseNotFound})
	res := tool.Execute(context.Background(), map[string]any{"query": "q", "course_name": "Ghost"})
	if res.IsError {
		t.Error("missing course is a normal outcome, not an error result")
	}
	if res.Text != "No course found matching 'Ghost'" {
		t.Errorf("text = %q", res.Text)
	}
}

func TestSearchToolBackendError(t *testing.T) {
	tool := NewSearchTool(&fakeStore{searchErr: errors.New("backend down")})
	res := tool.Execute(context.Background(), map[string]any{"query": "q"})
	if !res.IsError || !strings.HasPrefix(res.Text, "Search error:") {
		t.Errorf("result = %+v, want rendered search error", res)
	}
	if len(res.Sources) != 0 {
		t.Errorf("sources = %v, want none on failure", res.Sources)
	}
}

func TestSearchToolEmptyResults(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{
			name: "no filters",
			args: map[string]any{"query": "q"},
			want: "No relevant content found.",
		},
		{
			name: "course filter",
			args: map[string]any{"query": "q", "course_name": "MCP"},
			want: "No relevant content found in course 'MCP'.",
		},
		{
			name: "course and lesson filter",
			args: map[string]any{"query": "q", "course_name": "MCP", "lesson_number": float64(5)},
			want: "No relevant content found in course 'MCP' in lesson 5.",
		},
	}

	tool := NewSearchTool(&fakeStore{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := tool.Execute(context.Background(), tt.args)
			if res.IsError {
				t.Error("empty results are not an error")
			}
			if res.Text != tt.want {
				t.Errorf("text = %q, want %q", res.Text, tt.want)
			}
		})
	}
}

func TestSearchToolFormatsResults(t *testing.T) {
	fs := &fakeStore{
		searchResults: []models.ScoredChunk{
			scored("MCP Course", intPtr(1), 0, "first hit text", ""),
			scored("MCP Course", intPtr(2), 4, "second hit text", "Course MCP Course Lesson 2: "),
		},
		entry: &models.CatalogEntry{
			Title: "MCP Course",
			Lessons: []models.Lesson{
				{Number: 1, Title: "Intro", Link: "https://example.com/l1"},
				{Number: 2, Title: "Deep", Link: "https://example.com/l2"},
			},
		},
	}
	tool := NewSearchTool(fs)

	res := tool.Execute(context.Background(), map[string]any{"query": "q"})
	if res.IsError {
		t.Fatalf("result = %+v", res)
	}

	blocks := strings.Split(res.Text, "\n\n")
	if len(blocks) != 2 {
		t.Fatalf("got %d blocks, want 2:\n%s", len(blocks), res.Text)
	}
	if blocks[0] != "[MCP Course - Lesson 1]\nfirst hit text" {
		t.Errorf("block[0] = %q", blocks[0])
	}
	// The context prefix is part of what the model sees.
	if blocks[1] != "[MCP Course - Lesson 2]\nCourse MCP Course Lesson 2: second hit text" {
		t.Errorf("block[1] = %q", blocks[1])
	}

	if len(res.Sources) != 2 {
		t.Fatalf("got %d sources, want 2", len(res.Sources))
	}
	if res.Sources[0].Text != "MCP Course - Lesson 1" || res.Sources[0].Link != "https://example.com/l1" {
		t.Errorf("source[0] = %+v", res.Sources[0])
	}
	if res.Sources[1].Link != "https://example.com/l2" {
		t.Errorf("source[1] = %+v", res.Sources[1])
	}
}

func TestSearchToolSourceWithoutLessonNumber(t *testing.T) {
	fs := &fakeStore{
		searchResults: []models.ScoredChunk{scored("Course X", nil, 0, "text", "")},
	}
	tool := NewSearchTool(fs)

	res := tool.Execute(context.Background(), map[string]any{"query": "q"})
	if res.Text != "[Course X]\ntext" {
		t.Errorf("text = %q", res.Text)
	}
	if len(res.Sources) != 1 || res.Sources[0].Text != "Course X" || res.Sources[0].Link != "" {
		t.Errorf("sources = %+v", res.Sources)
	}
}

func TestSearchToolDegradesWhenCatalogFails(t *testing.T) {
	fs := &fakeStore{
		searchResults: []models.ScoredChunk{scored("Course X", intPtr(1), 0, "text", "")},
		entryErr:      errors.New("catalog unavailable"),
	}
	tool := NewSearchTool(fs)

	res := tool.Execute(context.Background(), map[string]any{"query": "q"})
	if res.IsError {
		t.Fatalf("catalog failure must not fail the search: %+v", res)
	}
	if len(res.Sources) != 1 || res.Sources[0].Link != "" {
		t.Errorf("sources = %+v, want link-less source", res.Sources)
	}
}

func TestRegistry(t *testing.T) {
	fs := &fakeStore{}
	r := NewRegistry(NewSearchTool(fs), NewOutlineTool(fs))

	specs := r.Specs()
	if len(specs) != 2 {
		t.Fatalf("got %d specs, want 2", len(specs))
	}
	if specs[0].Name != "search_course_content" || specs[1].Name != "get_course_outline" {
		t.Errorf("spec order = [%q, %q], want registration order", specs[0].Name, specs[1].Name)
	}

	res := r.Execute(context.Background(), "bogus_tool", nil)
	if !res.IsError || res.Text != "Tool 'bogus_tool' not found" {
		t.Errorf("unknown tool result = %+v", res)
	}
}
