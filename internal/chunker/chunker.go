// Package chunker splits raw knowledge files into bounded, tagged text units.
//
// A Chunk is the unit of retrieval for the whole pipeline: the vector index
// stores one embedding per chunk, the lexical retriever builds its vocabulary
// over chunk texts, and the context assembler ranks and formats chunks.
//
// Chunking is a pure function over the input text; persisting chunks and
// their embeddings is a separate indexing step (see internal/rag).
package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// MinChunkLen is the minimum chunk length in characters.
	// Shorter paragraphs are merged forward into the next chunk.
	MinChunkLen = 50

	// MaxChunkLen is the target maximum chunk length in characters.
	// Longer accumulations are closed off at the nearest paragraph boundary.
	MaxChunkLen = 800

	// idPrefixLen is how much of the chunk text participates in ID hashing.
	idPrefixLen = 64
)

// Chunk is an immutable unit of retrievable text.
type Chunk struct {
	ID         string    // stable content hash over (source file, text prefix)
	Text       string    // bounded-length text
	Category   string    // one of the Category* constants
	Priority   float64   // clinical priority in [0,1]
	SourceFile string    // provenance (file name, optionally "#key.path" for records)
	CreatedAt  time.Time // set at indexing time
}

var paragraphSep = regexp.MustCompile(`\n[ \t]*\n+`)

// NewID computes the deterministic chunk ID from provenance and text prefix.
// Re-chunking identical content always yields the same ID, which makes
// indexing idempotent (upserts, never duplicates).
func NewID(sourceFile, text string) string {
	prefix := text
	if len(prefix) > idPrefixLen {
		prefix = prefix[:idPrefixLen]
	}
	sum := sha256.Sum256([]byte(sourceFile + "\x00" + prefix))
	return "chunk_" + hex.EncodeToString(sum[:16])
}

// ChunkDocument splits free text into chunks on paragraph boundaries.
//
// Paragraphs shorter than MinChunkLen are merged forward into the next chunk.
// Accumulations exceeding MaxChunkLen are closed at the paragraph boundary; a
// single oversized paragraph is split at sentence boundaries instead, so text
// is never cut mid-sentence when a boundary is available.
func ChunkDocument(rawText, sourceFile string) []Chunk {
	now := time.Now()
	text := strings.ReplaceAll(rawText, "\r\n", "\n")

	var chunks []Chunk
	emit := func(body string) {
		body = strings.TrimSpace(body)
		if body == "" {
			return
		}
		category, priority := classify(body)
		chunks = append(chunks, Chunk{
			ID:         NewID(sourceFile, body),
			Text:       body,
			Category:   category,
			Priority:   priority,
			SourceFile: sourceFile,
			CreatedAt:  now,
		})
	}

	var buf strings.Builder
	for _, para := range paragraphSep.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		// An oversized paragraph can't wait for a boundary: flush what we
		// have and split the paragraph itself at sentence boundaries.
		if len(para) > MaxChunkLen {
			if buf.Len() > 0 {
				emit(buf.String())
				buf.Reset()
			}
			for _, piece := range splitSentences(para, MaxChunkLen) {
				emit(piece)
			}
			continue
		}

		if buf.Len() > 0 && buf.Len()+len(para)+2 > MaxChunkLen && buf.Len() >= MinChunkLen {
			emit(buf.String())
			buf.Reset()
		}
		if buf.Len() > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString(para)
	}

	rest := strings.TrimSpace(buf.String())
	if rest != "" {
		if len(rest) < MinChunkLen && len(chunks) > 0 {
			// Trailing fragment with no next chunk to merge into: fold it
			// back into the previous chunk rather than losing it.
			last := &chunks[len(chunks)-1]
			last.Text = last.Text + "\n\n" + rest
			last.ID = NewID(sourceFile, last.Text)
			last.Category, last.Priority = classify(last.Text)
		} else {
			emit(rest)
		}
	}

	return chunks
}

var sentenceEnd = regexp.MustCompile(`([.!?])\s+`)

// splitSentences splits an oversized paragraph into pieces of at most maxLen,
// breaking at sentence boundaries when possible and hard-splitting only when
// a single sentence itself exceeds maxLen.
func splitSentences(para string, maxLen int) []string {
	marked := sentenceEnd.ReplaceAllString(para, "$1\x00")
	sentences := strings.Split(marked, "\x00")

	var pieces []string
	var buf strings.Builder
	flush := func() {
		if s := strings.TrimSpace(buf.String()); s != "" {
			pieces = append(pieces, s)
		}
		buf.Reset()
	}

	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if len(s) > maxLen {
			flush()
			for len(s) > maxLen {
				cut := runeCut(s, maxLen)
				pieces = append(pieces, s[:cut])
				s = s[cut:]
			}
			if s != "" {
				buf.WriteString(s)
			}
			continue
		}
		if buf.Len() > 0 && buf.Len()+len(s)+1 > maxLen {
			flush()
		}
		if buf.Len() > 0 {
			buf.WriteString(" ")
		}
		buf.WriteString(s)
	}
	flush()

	return pieces
}

// runeCut returns the largest byte offset at most max that does not split a
// UTF-8 sequence.
func runeCut(s string, max int) int {
	if len(s) <= max {
		return len(s)
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return max
}

// ChunkRecords walks a structured (key-value) record and emits one chunk per
// leaf string value longer than MinChunkLen. The key path is carried in the
// chunk's SourceFile as "file#a.b.c" for provenance.
func ChunkRecords(records map[string]any, sourceFile string) []Chunk {
	now := time.Now()
	var chunks []Chunk

	var walk func(prefix string, value any)
	walk = func(prefix string, value any) {
		switch v := value.(type) {
		case string:
			text := strings.TrimSpace(v)
			if len(text) < MinChunkLen {
				return
			}
			category, priority := classify(text)
			chunks = append(chunks, Chunk{
				ID:         NewID(sourceFile, text),
				Text:       text,
				Category:   category,
				Priority:   priority,
				SourceFile: sourceFile + "#" + prefix,
				CreatedAt:  now,
			})
		case map[string]any:
			// Deterministic walk order keeps re-indexing stable.
			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				walk(joinPath(prefix, k), v[k])
			}
		case []any:
			for i, item := range v {
				walk(joinPath(prefix, fmt.Sprintf("%d", i)), item)
			}
		}
	}

	walk("", records)
	return chunks
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
