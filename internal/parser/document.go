// Package parser turns raw course transcripts into courses and retrievable chunks.
package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"courserag/internal/models"
)

// ErrMalformedDocument indicates an ingestion input that cannot be parsed.
// Batch ingestion skips such files and continues.
var ErrMalformedDocument = errors.New("malformed document")

// Document is a parsed transcript: course metadata plus the raw text of each
// lesson, in order.
type Document struct {
	Title      string
	Instructor string
	Link       string
	Lessons    []LessonText
}

// LessonText pairs a lesson's metadata with its raw transcript text.
type LessonText struct {
	Number int
	Title  string
	Link   string
	Text   string
}

// Course returns the metadata-only view of the document.
func (d *Document) Course() models.Course {
	lessons := make([]models.Lesson, len(d.Lessons))
	for i, l := range d.Lessons {
		lessons[i] = models.Lesson{Number: l.Number, Title: l.Title, Link: l.Link}
	}
	return models.Course{
		Title:      d.Title,
		Instructor: d.Instructor,
		Link:       d.Link,
		Lessons:    lessons,
	}
}

// lessonMarker matches a lesson heading on its own line, e.g. "Lesson 1: Intro".
// The colon is optional so headings like "Lesson 0 Basics" are also recognized.
var lessonMarker = regexp.MustCompile(`^(?i)Lesson\s+(\d+)[:.]?\s*(.*)$`)

// headerPrefixes recognized in the metadata header before the first lesson.
const (
	titlePrefix      = "Course Title:"
	titlePrefixShort = "Course:"
	linkPrefix       = "Course Link:"
	instructorPrefix = "Course Instructor:"
	lessonLinkPrefix = "Lesson Link:"
)

// ParseDocument parses a raw transcript. The document must begin with a
// metadata header (course title line, optional link and instructor lines)
// followed by lesson-marker-delimited sections. A document without any lesson
// markers is treated as a single lesson 0.
func ParseDocument(raw string) (*Document, error) {
	lines := strings.Split(raw, "\n")

	doc := &Document{}
	i := 0

	// Header: consume metadata lines until the first non-header line.
	for ; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, titlePrefix):
			doc.Title = strings.TrimSpace(strings.TrimPrefix(line, titlePrefix))
			continue
		case strings.HasPrefix(line, titlePrefixShort):
			doc.Title = strings.TrimSpace(strings.TrimPrefix(line, titlePrefixShort))
			continue
		case strings.HasPrefix(line, linkPrefix):
			doc.Link = strings.TrimSpace(strings.TrimPrefix(line, linkPrefix))
			continue
		case strings.HasPrefix(line, instructorPrefix):
			doc.Instructor = strings.TrimSpace(strings.TrimPrefix(line, instructorPrefix))
			continue
		}
		break
	}

	if doc.Title == "" {
		return nil, fmt.Errorf("%w: missing course title line", ErrMalformedDocument)
	}

	doc.Lessons = parseLessons(lines[i:])
	return doc, nil
}

// parseLessons splits the body into lesson sections. Text before the first
// marker (or the whole body when no marker exists) becomes lesson 0.
func parseLessons(lines []string) []LessonText {
	var lessons []LessonText
	var current *LessonText
	var body []string

	flush := func() {
		if current == nil {
			return
		}
		current.Text = strings.TrimSpace(strings.Join(body, "\n"))
		if current.Text != "" || current.Title != "" {
			lessons = append(lessons, *current)
		}
		current = nil
		body = nil
	}

	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])

		if m := lessonMarker.FindStringSubmatch(line); m != nil {
			flush()
			number, _ := strconv.Atoi(m[1])
			current = &LessonText{Number: number, Title: strings.TrimSpace(m[2])}

			// Optional lesson link on the following line.
			if i+1 < len(lines) {
				next := strings.TrimSpace(lines[i+1])
				if strings.HasPrefix(next, lessonLinkPrefix) {
					current.Link = strings.TrimSpace(strings.TrimPrefix(next, lessonLinkPrefix))
					i++
				}
			}
			continue
		}

		if current == nil {
			if line == "" {
				continue
			}
			// No marker seen yet: open the implicit introduction lesson.
			current = &LessonText{Number: 0, Title: "Introduction"}
		}
		body = append(body, lines[i])
	}
	flush()

	return lessons
}
