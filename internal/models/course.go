// Package models defines the core data types shared across the application.
package models

// Lesson is one numbered section of a course transcript. Ordering within a
// course is significant; lesson 0 is often an untitled introduction.
type Lesson struct {
	Number int    `json:"lesson_number"`
	Title  string `json:"lesson_title"`
	Link   string `json:"lesson_link,omitempty"`
}

// Course holds the metadata parsed from one transcript document. Courses are
// identified by title and immutable after ingestion.
type Course struct {
	Title      string   `json:"title"`
	Instructor string   `json:"instructor,omitempty"`
	Link       string   `json:"link,omitempty"`
	Lessons    []Lesson `json:"lessons"`
}

// CatalogEntry is the per-course record stored in the catalog collection,
// embedded on the course title for fuzzy name resolution.
type CatalogEntry struct {
	Title      string   `json:"title"`
	Instructor string   `json:"instructor,omitempty"`
	Link       string   `json:"link,omitempty"`
	Lessons    []Lesson `json:"lessons"`
}

// Catalog converts a parsed course into its catalog entry.
func (c Course) Catalog() CatalogEntry {
	return CatalogEntry{
		Title:      c.Title,
		Instructor: c.Instructor,
		Link:       c.Link,
		Lessons:    c.Lessons,
	}
}

// Chunk is the unit of embedding and retrieval. Index is 0-based and unique
// within the course (monotonically increasing across lessons, not reset per
// lesson). Prefix is the synthetic context header injected on every chunk
// after a lesson's first; it is part of what gets embedded and displayed but
// not of the reconstructable lesson text.
type Chunk struct {
	CourseTitle  string `json:"course_title"`
	LessonNumber *int   `json:"lesson_number,omitempty"`
	Index        int    `json:"chunk_index"`
	Text         string `json:"text"`
	Prefix       string `json:"context_prefix,omitempty"`
}

// Content returns the text that gets embedded and shown to the model.
func (c Chunk) Content() string {
	return c.Prefix + c.Text
}

// SearchFilter narrows a content search. CourseName is fuzzy and resolved
// against catalog titles before filtering.
type SearchFilter struct {
	Query        string
	CourseName   string
	LessonNumber *int
}

// ScoredChunk is one content search hit.
type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

// Source is a citation attached to a generated answer.
type Source struct {
	Text string `json:"text"`
	Link string `json:"link,omitempty"`
}
