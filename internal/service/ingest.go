// Package service wires parsing, chunking, and the vector store into the
// ingestion workflows used by the CLI and the server startup load.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"courserag/internal/models"
	"courserag/internal/parser"
	"courserag/internal/store"
)

// Ingestor loads course transcripts into the vector store.
type Ingestor struct {
	store    store.Store
	chunkCfg parser.ChunkConfig
}

// Stats summarizes one batch ingestion run.
type Stats struct {
	Courses int // courses ingested
	Chunks  int // content chunks written
	Skipped int // files skipped (malformed, already present, or failed)
}

// NewIngestor creates an ingestor. The chunk configuration is validated here
// so a bad one fails before any file is touched.
func NewIngestor(s store.Store, cfg parser.ChunkConfig) (*Ingestor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Ingestor{store: s, chunkCfg: cfg}, nil
}

// IngestFile parses one transcript and replaces the course in the store.
// Returns the course metadata and the number of chunks written.
func (in *Ingestor) IngestFile(ctx context.Context, path string) (*models.Course, int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", path, err)
	}

	doc, err := parser.ParseDocument(string(raw))
	if err != nil {
		return nil, 0, fmt.Errorf("parse %s: %w", path, err)
	}

	chunks, err := parser.ChunkDocument(doc, in.chunkCfg)
	if err != nil {
		return nil, 0, err
	}

	course := doc.Course()
	if err := in.store.ReplaceCourse(ctx, course.Catalog(), chunks); err != nil {
		return nil, 0, fmt.Errorf("store course %q: %w", course.Title, err)
	}

	slog.Info("course ingested", "course", course.Title, "lessons", len(course.Lessons), "chunks", len(chunks))
	return &course, len(chunks), nil
}

// IngestDirectory ingests every transcript file in dir. Courses already in
// the store are skipped unless replace is set. A malformed or failing file is
// logged and skipped; the batch always continues.
func (in *Ingestor) IngestDirectory(ctx context.Context, dir string, replace bool) (Stats, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Stats{}, fmt.Errorf("read docs directory %s: %w", dir, err)
	}

	existing := map[string]bool{}
	if !replace {
		titles, err := in.store.ListCourseTitles(ctx)
		if err != nil {
			return Stats{}, fmt.Errorf("list existing courses: %w", err)
		}
		for _, t := range titles {
			existing[t] = true
		}
	}

	var stats Stats
	for _, entry := range entries {
		if entry.IsDir() || !isTranscript(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		raw, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("skipping unreadable file", "file", path, "error", err)
			stats.Skipped++
			continue
		}

		doc, err := parser.ParseDocument(string(raw))
		if errors.Is(err, parser.ErrMalformedDocument) {
			slog.Warn("skipping malformed document", "file", path, "error", err)
			stats.Skipped++
			continue
		}
		if err != nil {
			slog.Warn("skipping file", "file", path, "error", err)
			stats.Skipped++
			continue
		}

		if existing[doc.Title] {
			slog.Debug("course already present, skipping", "course", doc.Title, "file", path)
			stats.Skipped++
			continue
		}

		chunks, err := parser.ChunkDocument(doc, in.chunkCfg)
		if err != nil {
			return stats, err
		}

		course := doc.Course()
		if err := in.store.ReplaceCourse(ctx, course.Catalog(), chunks); err != nil {
			slog.Error("failed to store course", "course", course.Title, "file", path, "error", err)
			stats.Skipped++
			continue
		}

		slog.Info("course ingested", "course", course.Title, "lessons", len(course.Lessons), "chunks", len(chunks))
		stats.Courses++
		stats.Chunks += len(chunks)
	}

	return stats, nil
}

func isTranscript(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".md":
		return true
	}
	return false
}
