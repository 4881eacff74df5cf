package rag

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/roteiro-ai/roteiro/internal/chunker"
)

// LoadKnowledgeDir walks dir and chunks every knowledge file it contains.
// Markdown and plain-text files are chunked as free text; JSON files are
// flattened into key-path records. Files are processed in sorted path order
// so chunk output is deterministic. Unsupported extensions are skipped.
func LoadKnowledgeDir(dir string) ([]chunker.Chunk, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".md", ".txt", ".json":
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking knowledge dir %q: %w", dir, err)
	}
	sort.Strings(paths)

	var chunks []chunker.Chunk
	for _, path := range paths {
		fileChunks, err := loadFile(path, dir)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, fileChunks...)
	}
	return chunks, nil
}

func loadFile(path, root string) ([]chunker.Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", path, err)
	}

	// Source names are root-relative so chunk IDs survive a move of the
	// knowledge directory.
	source, err := filepath.Rel(root, path)
	if err != nil {
		source = filepath.Base(path)
	}
	source = filepath.ToSlash(source)

	if strings.EqualFold(filepath.Ext(path), ".json") {
		var records map[string]any
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("parsing %q: %w", path, err)
		}
		return chunker.ChunkRecords(records, source), nil
	}
	return chunker.ChunkDocument(string(data), source), nil
}
