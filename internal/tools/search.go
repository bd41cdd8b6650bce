package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"courserag/internal/llm"
	"courserag/internal/models"
	"courserag/internal/store"
)

// SearchTool searches course content with fuzzy course name matching and
// lesson filtering.
type SearchTool struct {
	store store.Store
}

var _ Tool = (*SearchTool)(nil)

// NewSearchTool creates the content search tool.
func NewSearchTool(s store.Store) *SearchTool {
	return &SearchTool{store: s}
}

func (t *SearchTool) Describe() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        "search_course_content",
		Description: "Search course materials with smart course name matching and lesson filtering. Use only for questions about specific course content or structure.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "What to search for in the course content",
				},
				"course_name": map[string]any{
					"type":        "string",
					"description": "Course title (partial matches work, e.g. 'MCP', 'Introduction')",
				},
				"lesson_number": map[string]any{
					"type":        "integer",
					"description": "Specific lesson number to search within (e.g. 1, 2, 3)",
				},
			},
			"required": []string{"query"},
		},
	}
}

// Execute performs the search and formats the hits for the model. Store
// errors are rendered as text: absence of results and transient backend
// failures are both conversation material, never exceptions.
func (t *SearchTool) Execute(ctx context.Context, args map[string]any) Result {
	query := stringArg(args, "query")
	if query == "" {
		return Result{Text: "Search error: query is required", IsError: true}
	}
	courseName := stringArg(args, "course_name")
	lessonNumber := intArg(args, "lesson_number")

	filter := models.SearchFilter{
		Query:        query,
		CourseName:   courseName,
		LessonNumber: lessonNumber,
	}

	results, err := t.store.Search(ctx, filter)
	if errors.Is(err, store.ErrCourseNotFound) {
		return Result{Text: fmt.Sprintf("No course found matching '%s'", courseName)}
	}
	if err != nil {
		slog.Error("content search failed", "query", query, "error", err)
		return Result{Text: fmt.Sprintf("Search error: %v", err), IsError: true}
	}

	if len(results) == 0 {
		var filterInfo strings.Builder
		if courseName != "" {
			fmt.Fprintf(&filterInfo, " in course '%s'", courseName)
		}
		if lessonNumber != nil {
			fmt.Fprintf(&filterInfo, " in lesson %d", *lessonNumber)
		}
		return Result{Text: fmt.Sprintf("No relevant content found%s.", filterInfo.String())}
	}

	return t.format(ctx, results)
}

// format renders the hits in store order with a course/lesson header each,
// and collects one source per hit for citation in the final answer.
func (t *SearchTool) format(ctx context.Context, results []models.ScoredChunk) Result {
	var blocks []string
	var sources []models.Source
	links := map[string]*models.CatalogEntry{}

	for _, r := range results {
		header := "[" + r.Chunk.CourseTitle
		sourceText := r.Chunk.CourseTitle
		if r.Chunk.LessonNumber != nil {
			header += fmt.Sprintf(" - Lesson %d", *r.Chunk.LessonNumber)
			sourceText += fmt.Sprintf(" - Lesson %d", *r.Chunk.LessonNumber)
		}
		header += "]"

		blocks = append(blocks, header+"\n"+r.Chunk.Content())
		sources = append(sources, models.Source{
			Text: sourceText,
			Link: t.lessonLink(ctx, links, r.Chunk.CourseTitle, r.Chunk.LessonNumber),
		})
	}

	return Result{Text: strings.Join(blocks, "\n\n"), Sources: sources}
}

// lessonLink looks up the lesson link from the catalog, caching entries per
// execution. A failed lookup degrades to a link-less source.
func (t *SearchTool) lessonLink(ctx context.Context, cache map[string]*models.CatalogEntry, courseTitle string, lessonNumber *int) string {
	if lessonNumber == nil {
		return ""
	}
	entry, ok := cache[courseTitle]
	if !ok {
		var err error
		entry, err = t.store.GetCatalogEntry(ctx, courseTitle)
		if err != nil {
			slog.Warn("could not fetch lesson link", "course", courseTitle, "error", err)
			entry = nil
		}
		cache[courseTitle] = entry
	}
	if entry == nil {
		return ""
	}
	for _, lesson := range entry.Lessons {
		if lesson.Number == *lessonNumber {
			return lesson.Link
		}
	}
	return ""
}
