package tools

import (
	"context"
	"errors"
	"strings"
	"testing"

	"courserag/internal/models"
	"courserag/internal/store"
)

func TestOutlineToolRequiresCourseName(t *testing.T) {
	tool := NewOutlineTool(&fakeStore{})
	res := tool.Execute(context.Background(), map[string]any{})
	if !res.IsError || !strings.Contains(res.Text, "course_name is required") {
		t.Errorf("result = %+v", res)
	}
}

func TestOutlineToolCourseNotFound(t *testing.T) {
	tool := NewOutlineTool(&fakeStore{resolveErr: store.ErrCourseNotFound})
	res := tool.Execute(context.Background(), map[string]any{"course_name": "Ghost"})
	if res.IsError {
		t.Error("missing course is a normal outcome, not an error result")
	}
	if res.Text != "No course found matching 'Ghost'" {
		t.Errorf("text = %q", res.Text)
	}
}

func TestOutlineToolFormatsOutline(t *testing.T) {
	fs := &fakeStore{
		resolved: "MCP Course",
		entry: &models.CatalogEntry{
			Title: "MCP Course",
			Link:  "https://example.com/mcp",
			Lessons: []models.Lesson{
				{Number: 0, Title: "Introduction"},
				{Number: 1, Title: "Servers"},
				{Number: 2},
			},
		},
	}
	tool := NewOutlineTool(fs)

	res := tool.Execute(context.Background(), map[string]any{"course_name": "MCP"})
	if res.IsError {
		t.Fatalf("result = %+v", res)
	}

	for _, want := range []string{
		"**Course:** MCP Course",
		"**Course Link:** https://example.com/mcp",
		"**Course Outline:**",
		"- Lesson 0: Introduction",
		"- Lesson 1: Servers",
		"- Lesson 2: Untitled",
	} {
		if !strings.Contains(res.Text, want) {
			t.Errorf("outline missing %q:\n%s", want, res.Text)
		}
	}
}

func TestOutlineToolMissingLink(t *testing.T) {
	fs := &fakeStore{
		resolved: "C",
		entry:    &models.CatalogEntry{Title: "C", Lessons: []models.Lesson{{Number: 1, Title: "Only"}}},
	}
	tool := NewOutlineTool(fs)

	res := tool.Execute(context.Background(), map[string]any{"course_name": "C"})
	if !strings.Contains(res.Text, "**Course Link:** No link available") {
		t.Errorf("text = %q", res.Text)
	}
}

func TestOutlineToolCatalogFailure(t *testing.T) {
	fs := &fakeStore{resolved: "C", entryErr: errors.New("catalog unavailable")}
	tool := NewOutlineTool(fs)

	res := tool.Execute(context.Background(), map[string]any{"course_name": "C"})
	if res.IsError {
		t.Error("a missing catalog entry is reported as text, not an error result")
	}
	if !strings.Contains(res.Text, "Course metadata not found for 'C'") {
		t.Errorf("text = %q", res.Text)
	}
}
