package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"courserag/internal/llm"
	"courserag/internal/store"
)

// OutlineTool retrieves a complete course outline: title, link, and the full
// lesson list.
type OutlineTool struct {
	store store.Store
}

var _ Tool = (*OutlineTool)(nil)

// NewOutlineTool creates the course outline tool.
func NewOutlineTool(s store.Store) *OutlineTool {
	return &OutlineTool{store: s}
}

func (t *OutlineTool) Describe() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        "get_course_outline",
		Description: "Get the complete course outline including course title, course link, and all lessons with their numbers and titles. Use this when users ask about course structure, lesson list, or what lessons are available in a course.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"course_name": map[string]any{
					"type":        "string",
					"description": "Course title or partial course name to get the outline for",
				},
			},
			"required": []string{"course_name"},
		},
	}
}

func (t *OutlineTool) Execute(ctx context.Context, args map[string]any) Result {
	courseName := stringArg(args, "course_name")
	if courseName == "" {
		return Result{Text: "Outline error: course_name is required", IsError: true}
	}

	title, err := t.store.ResolveCourseName(ctx, courseName)
	if errors.Is(err, store.ErrCourseNotFound) {
		return Result{Text: fmt.Sprintf("No course found matching '%s'", courseName)}
	}
	if err != nil {
		slog.Error("course resolution failed", "course_name", courseName, "error", err)
		return Result{Text: fmt.Sprintf("Error retrieving course outline: %v", err), IsError: true}
	}

	entry, err := t.store.GetCatalogEntry(ctx, title)
	if err != nil {
		slog.Error("catalog lookup failed", "course", title, "error", err)
		return Result{Text: fmt.Sprintf("Course metadata not found for '%s'", title)}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Course:** %s\n", entry.Title)
	link := entry.Link
	if link == "" {
		link = "No link available"
	}
	fmt.Fprintf(&b, "**Course Link:** %s\n\n", link)
	b.WriteString("**Course Outline:**\n")
	for _, lesson := range entry.Lessons {
		lessonTitle := lesson.Title
		if lessonTitle == "" {
			lessonTitle = "Untitled"
		}
		fmt.Fprintf(&b, "- Lesson %d: %s\n", lesson.Number, lessonTitle)
	}

	return Result{Text: b.String()}
}
