package document

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/aktagon/blog-writer/internal/index"
)

// Writer stores rendered posts in an output directory and upserts them into the
// index kept in that same directory.
type Writer struct {
	outputDir string
	renderer  *Renderer
	store     *index.Store
}

// NewWriter creates a Writer for outputDir using renderer and store.
func NewWriter(outputDir string, renderer *Renderer, store *index.Store) *Writer {
	return &Writer{
		outputDir: outputDir,
		renderer:  renderer,
		store:     store,
	}
}

// Write renders post to <outputDir>/<post.Filename> and then rewrites the index
// with post first. It returns the document path. The document is not removed if
// the index update fails.
func (w *Writer) Write(post *Post) (string, error) {
	if post.Filename == "" {
		return "", fmt.Errorf("post %q has no filename", post.Slug)
	}

	content, err := w.renderer.Render(post)
	if err != nil {
		return "", fmt.Errorf("rendering post: %w", err)
	}

	if err := os.MkdirAll(w.outputDir, 0755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}

	path := filepath.Join(w.outputDir, post.Filename)
	if err := os.WriteFile(path, content, 0644); err != nil {
		return "", fmt.Errorf("writing post: %w", err)
	}

	if _, err := w.store.Upsert(post.Record); err != nil {
		return path, fmt.Errorf("updating index: %w", err)
	}
	return path, nil
}
