package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvector "github.com/pgvector/pgvector-go/pgx"

	"courserag/internal/config"
	"courserag/internal/models"
)

// Postgres is the durable store: pgvector-backed ANN over the chunk
// collection plus a catalog table embedded on course titles.
type Postgres struct {
	pool       *pgxpool.Pool
	embedder   Embedder
	dimension  int
	maxResults int
}

var _ Store = (*Postgres)(nil)

// NewPostgres connects, registers the vector codec, and initializes the
// schema. maxResults must be positive; a zero limit is a configuration error,
// not an empty search.
func NewPostgres(ctx context.Context, connStr string, embedder Embedder, dimension, maxResults int) (*Postgres, error) {
	if maxResults <= 0 {
		return nil, fmt.Errorf("%w: max results must be positive, got %d", config.ErrInvalidConfig, maxResults)
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: embedding dimension must be positive, got %d", config.ErrInvalidConfig, dimension)
	}

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	p := &Postgres{
		pool:       pool,
		embedder:   embedder,
		dimension:  dimension,
		maxResults: maxResults,
	}
	if err := p.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return p, nil
}

func (p *Postgres) initSchema(ctx context.Context) error {
	// The extension must exist before the vector columns do.
	if _, err := p.pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return err
	}

	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS course_catalog (
		title      TEXT PRIMARY KEY,
		instructor TEXT,
		link       TEXT,
		lessons    JSONB NOT NULL DEFAULT '[]',
		embedding  vector(%d) NOT NULL
	);

	CREATE TABLE IF NOT EXISTS course_chunks (
		id            UUID PRIMARY KEY,
		course_title  TEXT NOT NULL,
		lesson_number INT,
		chunk_index   INT NOT NULL,
		prefix        TEXT NOT NULL DEFAULT '',
		content       TEXT NOT NULL,
		embedding     vector(%d) NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_course_chunks_embedding
		ON course_chunks USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);
	CREATE INDEX IF NOT EXISTS idx_course_chunks_course
		ON course_chunks (course_title, lesson_number);
	`, p.dimension, p.dimension)

	_, err := p.pool.Exec(ctx, schema)
	return err
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) UpsertCatalog(ctx context.Context, entry models.CatalogEntry) error {
	vec, err := p.embedder.Embed(ctx, entry.Title)
	if err != nil {
		return fmt.Errorf("embed catalog entry: %w", err)
	}
	lessons, err := json.Marshal(entry.Lessons)
	if err != nil {
		return fmt.Errorf("encode lessons: %w", err)
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO course_catalog (title, instructor, link, lessons, embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (title) DO UPDATE SET
			instructor = EXCLUDED.instructor,
			link       = EXCLUDED.link,
			lessons    = EXCLUDED.lessons,
			embedding  = EXCLUDED.embedding`,
		entry.Title, entry.Instructor, entry.Link, lessons, pgvector.NewVector(vec))
	if err != nil {
		return fmt.Errorf("upsert catalog entry: %w", err)
	}
	return nil
}

func (p *Postgres) UpsertContent(ctx context.Context, chunks []models.Chunk) error {
	rows, err := p.embedChunks(ctx, chunks)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	queueChunkInserts(batch, rows)
	if err := p.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert chunks: %w", err)
	}
	return nil
}

// ReplaceCourse wipes and rewrites a course inside one transaction, so
// concurrent searches read either the old or the new chunk set.
func (p *Postgres) ReplaceCourse(ctx context.Context, entry models.CatalogEntry, chunks []models.Chunk) error {
	titleVec, err := p.embedder.Embed(ctx, entry.Title)
	if err != nil {
		return fmt.Errorf("embed catalog entry: %w", err)
	}
	lessons, err := json.Marshal(entry.Lessons)
	if err != nil {
		return fmt.Errorf("encode lessons: %w", err)
	}
	rows, err := p.embedChunks(ctx, chunks)
	if err != nil {
		return err
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM course_chunks WHERE course_title = $1`, entry.Title); err != nil {
		return fmt.Errorf("delete old chunks: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO course_catalog (title, instructor, link, lessons, embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (title) DO UPDATE SET
			instructor = EXCLUDED.instructor,
			link       = EXCLUDED.link,
			lessons    = EXCLUDED.lessons,
			embedding  = EXCLUDED.embedding`,
		entry.Title, entry.Instructor, entry.Link, lessons, pgvector.NewVector(titleVec)); err != nil {
		return fmt.Errorf("upsert catalog entry: %w", err)
	}

	if len(rows) > 0 {
		batch := &pgx.Batch{}
		queueChunkInserts(batch, rows)
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert chunks: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	slog.Debug("course replaced", "course", entry.Title, "chunks", len(rows))
	return nil
}

func (p *Postgres) ClearCourse(ctx context.Context, title string) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM course_chunks WHERE course_title = $1`, title); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM course_catalog WHERE title = $1`, title); err != nil {
		return fmt.Errorf("delete catalog entry: %w", err)
	}
	return tx.Commit(ctx)
}

func (p *Postgres) ResolveCourseName(ctx context.Context, name string) (string, error) {
	vec, err := p.embedder.Embed(ctx, name)
	if err != nil {
		return "", searchFailed(err)
	}

	var title string
	err = p.pool.QueryRow(ctx, `
		SELECT title FROM course_catalog
		ORDER BY embedding <=> $1
		LIMIT 1`, pgvector.NewVector(vec)).Scan(&title)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%w: no match for %q", ErrCourseNotFound, name)
	}
	if err != nil {
		return "", searchFailed(err)
	}
	return title, nil
}

func (p *Postgres) GetCatalogEntry(ctx context.Context, title string) (*models.CatalogEntry, error) {
	var entry models.CatalogEntry
	var lessons []byte
	err := p.pool.QueryRow(ctx, `
		SELECT title, COALESCE(instructor, ''), COALESCE(link, ''), lessons
		FROM course_catalog WHERE title = $1`, title).
		Scan(&entry.Title, &entry.Instructor, &entry.Link, &lessons)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrCourseNotFound, title)
	}
	if err != nil {
		return nil, fmt.Errorf("get catalog entry: %w", err)
	}
	if err := json.Unmarshal(lessons, &entry.Lessons); err != nil {
		return nil, fmt.Errorf("decode lessons: %w", err)
	}
	return &entry, nil
}

func (p *Postgres) ListCourseTitles(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx, `SELECT title FROM course_catalog ORDER BY title`)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, fmt.Errorf("scan course title: %w", err)
		}
		titles = append(titles, title)
	}
	return titles, rows.Err()
}

func (p *Postgres) Search(ctx context.Context, filter models.SearchFilter) ([]models.ScoredChunk, error) {
	var courseTitle *string
	if filter.CourseName != "" {
		title, err := p.ResolveCourseName(ctx, filter.CourseName)
		if err != nil {
			return nil, err
		}
		courseTitle = &title
	}

	vec, err := p.embedder.Embed(ctx, filter.Query)
	if err != nil {
		return nil, searchFailed(err)
	}

	rows, err := p.pool.Query(ctx, `
		SELECT course_title, lesson_number, chunk_index, prefix, content,
		       1 - (embedding <=> $1) AS score
		FROM course_chunks
		WHERE ($2::text IS NULL OR course_title = $2)
		  AND ($3::int IS NULL OR lesson_number = $3)
		ORDER BY embedding <=> $1, chunk_index
		LIMIT $4`,
		pgvector.NewVector(vec), courseTitle, filter.LessonNumber, p.maxResults)
	if err != nil {
		return nil, searchFailed(err)
	}
	defer rows.Close()

	var results []models.ScoredChunk
	for rows.Next() {
		var r models.ScoredChunk
		if err := rows.Scan(&r.Chunk.CourseTitle, &r.Chunk.LessonNumber, &r.Chunk.Index,
			&r.Chunk.Prefix, &r.Chunk.Text, &r.Score); err != nil {
			return nil, searchFailed(err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, searchFailed(err)
	}
	return results, nil
}

func (p *Postgres) embedChunks(ctx context.Context, chunks []models.Chunk) ([]chunkRow, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content()
	}
	vecs, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	rows := make([]chunkRow, len(chunks))
	for i, c := range chunks {
		rows[i] = chunkRow{chunk: c, vec: vecs[i]}
	}
	return rows, nil
}

func queueChunkInserts(batch *pgx.Batch, rows []chunkRow) {
	for _, row := range rows {
		batch.Queue(`
			INSERT INTO course_chunks (id, course_title, lesson_number, chunk_index, prefix, content, embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			uuid.New(), row.chunk.CourseTitle, row.chunk.LessonNumber, row.chunk.Index,
			row.chunk.Prefix, row.chunk.Text, pgvector.NewVector(row.vec))
	}
}
