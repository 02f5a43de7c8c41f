package main

import (
	"errors"
	"fmt"

	"github.com/aktagon/blog-writer/internal/catalog"
	"github.com/aktagon/blog-writer/internal/document"
)

var (
	// ErrMissingAPIKey is returned before any work starts when no credential is configured.
	ErrMissingAPIKey = errors.New("API key required")
	// ErrMalformedPayload wraps model answers that are empty or do not parse.
	ErrMalformedPayload = errors.New("malformed model response")
)

// HTTPError represents a non-success HTTP response from a remote service
type HTTPError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d for %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("HTTP %d for %s: %s", e.StatusCode, e.URL, e.Body)
}

// GeneratedPost is the JSON object the model is asked to produce
type GeneratedPost struct {
	Title       string   `json:"title"`
	Slug        string   `json:"slug"`
	Description string   `json:"description"`
	Excerpt     string   `json:"excerpt"`
	Tags        []string `json:"tags"`
	Keywords    []string `json:"keywords"`
	Content     string   `json:"content"`
}

// RunOptions are the per-invocation inputs, resolved once from flags and environment
type RunOptions struct {
	APIKey    string
	Topic     string
	Keywords  []string
	Style     string
	SourceURL string
	// Featured overrides the topic's featured flag when set.
	Featured *bool
	DryRun   bool
}

// RunResult describes what a run selected and wrote
type RunResult struct {
	Topic  catalog.Topic
	Image  string
	Post   *document.Post
	Path   string
	DryRun bool
}
