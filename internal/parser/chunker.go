package parser

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"courserag/internal/models"
)

// ErrInvalidChunkConfig indicates chunking parameters that can never produce
// valid output. Callers should fail fast rather than ingest with them.
var ErrInvalidChunkConfig = errors.New("invalid chunk configuration")

// ChunkConfig defines chunking parameters.
type ChunkConfig struct {
	// Size: maximum chunk length in characters
	Size int
	// Overlap: character budget re-included from the previous chunk
	Overlap int
}

// DefaultChunkConfig returns sensible defaults.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{Size: 800, Overlap: 100}
}

// Validate checks the invariant Overlap < Size.
func (c ChunkConfig) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("%w: size must be positive, got %d", ErrInvalidChunkConfig, c.Size)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("%w: overlap must not be negative, got %d", ErrInvalidChunkConfig, c.Overlap)
	}
	if c.Overlap >= c.Size {
		return fmt.Errorf("%w: overlap %d must be smaller than size %d", ErrInvalidChunkConfig, c.Overlap, c.Size)
	}
	return nil
}

// ChunkDocument splits every lesson of a parsed document into chunks. The
// chunk index increases monotonically across the whole course. Every chunk
// after a lesson's first carries a synthetic context prefix so it stays
// self-describing when retrieved on its own. Pure function of its inputs.
func ChunkDocument(doc *Document, cfg ChunkConfig) ([]models.Chunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var chunks []models.Chunk
	index := 0

	for _, lesson := range doc.Lessons {
		texts := chunkText(lesson.Text, cfg)
		for pos, text := range texts {
			number := lesson.Number
			chunk := models.Chunk{
				CourseTitle:  doc.Title,
				LessonNumber: &number,
				Index:        index,
				Text:         text,
			}
			if pos > 0 {
				chunk.Prefix = fmt.Sprintf("Course %s Lesson %d: ", doc.Title, lesson.Number)
			}
			chunks = append(chunks, chunk)
			index++
		}
	}

	return chunks, nil
}

// chunkText splits one lesson's text into chunk-sized pieces: sentences are
// greedily packed until the next one would exceed cfg.Size, and each new chunk
// re-includes the trailing sentences of the previous one that fit within
// cfg.Overlap.
func chunkText(text string, cfg ChunkConfig) []string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}
	sentences = splitOversized(sentences, cfg.Size)

	var chunks []string
	i := 0
	for i < len(sentences) {
		start := i
		var b strings.Builder
		for i < len(sentences) {
			add := len(sentences[i])
			if b.Len() > 0 {
				add++ // joining space
			}
			if b.Len() > 0 && b.Len()+add > cfg.Size {
				break
			}
			if b.Len() > 0 {
				b.WriteString(" ")
			}
			b.WriteString(sentences[i])
			i++
		}
		chunks = append(chunks, b.String())

		if i >= len(sentences) {
			break
		}

		// Back off to the trailing sentences that fit the overlap budget.
		// At least one newly consumed sentence stays consumed so the loop
		// always makes progress.
		overlap := 0
		length := 0
		for overlap < i-start-1 {
			next := len(sentences[i-overlap-1])
			if length > 0 {
				next++
			}
			if length+next > cfg.Overlap {
				break
			}
			length += next
			overlap++
		}
		i -= overlap
	}

	return chunks
}

// splitOversized word-splits any sentence longer than size so no single
// sentence can force an oversized chunk. Cuts land on rune boundaries; a
// forced cut inside a multi-byte rune would corrupt the text.
func splitOversized(sentences []string, size int) []string {
	var out []string
	for _, s := range sentences {
		if len(s) <= size {
			out = append(out, s)
			continue
		}
		for len(s) > size {
			cut := strings.LastIndex(s[:size+1], " ")
			if cut <= 0 {
				cut = size
				for cut > 0 && !utf8.RuneStart(s[cut]) {
					cut--
				}
				if cut == 0 {
					// size is smaller than the first rune; emit it whole.
					_, cut = utf8.DecodeRuneInString(s)
				}
			}
			out = append(out, strings.TrimSpace(s[:cut]))
			s = strings.TrimSpace(s[cut:])
		}
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// splitSentences splits text at terminal punctuation followed by whitespace
// and a capital letter. Locale-agnostic heuristic with a guard against
// initials and short abbreviations.
func splitSentences(text string) []string {
	runes := []rune(strings.Join(strings.Fields(text), " "))

	var sentences []string
	var current strings.Builder

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		current.WriteRune(r)

		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if r == '.' && isAbbreviation(runes, i) {
			continue
		}

		// A boundary needs whitespace after the punctuation...
		j := i + 1
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		if j == i+1 && j < len(runes) {
			continue // glued to the next rune, e.g. "3.14"
		}
		// ...and a capital letter opening the next sentence.
		if j < len(runes) && !unicode.IsUpper(runes[j]) {
			continue
		}

		if s := strings.TrimSpace(current.String()); s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
		i = j - 1
	}

	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}

// isAbbreviation reports whether the period at runes[i] ends an initial or a
// one-letter abbreviation like "J." rather than a sentence.
func isAbbreviation(runes []rune, i int) bool {
	if i < 1 || !unicode.IsUpper(runes[i-1]) {
		return false
	}
	return i < 2 || !unicode.IsLetter(runes[i-2])
}
