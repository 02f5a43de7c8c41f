package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aktagon/blog-writer/internal/document"
	"github.com/aktagon/blog-writer/internal/index"
	"github.com/aktagon/blog-writer/internal/logger"
)

type fakeGenerator struct {
	post       *GeneratedPost
	err        error
	calls      int
	lastPrompt *Prompt
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt *Prompt) (*GeneratedPost, error) {
	g.calls++
	g.lastPrompt = prompt
	if g.err != nil {
		return nil, g.err
	}
	copied := *g.post
	return &copied, nil
}

var testDate = time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)

func newTestProcessor(t *testing.T, gen Generator, extraSettings string) (*PostProcessor, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "posts")

	settings, err := parseSettings([]byte(fmt.Sprintf("output_directory: %q\n%s", dir, extraSettings)))
	if err != nil {
		t.Fatalf("parseSettings() error = %v", err)
	}
	p, err := NewPostProcessor(&Config{Settings: settings}, gen, logger.NewNop())
	if err != nil {
		t.Fatalf("NewPostProcessor() error = %v", err)
	}
	p.now = func() time.Time { return testDate }
	p.newID = func() string { return "test-id" }
	return p, dir
}

func samplePayload() *GeneratedPost {
	return &GeneratedPost{
		Title:       "Defend Your Thesis With Confidence",
		Slug:        "defend-your-thesis-with-confidence",
		Description: "How to get ready for the big day.",
		Excerpt:     "Your defense is close. Here is how to prepare.",
		Tags:        []string{"thesis", "defense"},
		Keywords:    []string{"thesis defense"},
		Content:     strings.Repeat("word ", 450),
	}
}

func TestRunWritesPostAndIndex(t *testing.T) {
	gen := &fakeGenerator{post: samplePayload()}
	p, dir := newTestProcessor(t, gen, "")

	result, err := p.Run(context.Background(), RunOptions{Topic: "Thesis Defense", Keywords: []string{"viva"}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if gen.calls != 1 {
		t.Errorf("generator called %d times, want 1", gen.calls)
	}
	if result.Topic.Text != "How to Prepare for Your Thesis Defense" {
		t.Errorf("Topic = %q", result.Topic.Text)
	}
	if !strings.Contains(gen.lastPrompt.User, "Writing style: informative") {
		t.Errorf("prompt should default to informative style:\n%s", gen.lastPrompt.User)
	}
	if !strings.Contains(gen.lastPrompt.User, "Target keywords: viva") {
		t.Errorf("prompt should carry keywords:\n%s", gen.lastPrompt.User)
	}

	wantFile := "2026-10-17-defend-your-thesis-with-confidence.md"
	if result.Path != filepath.Join(dir, wantFile) {
		t.Errorf("Path = %q, want %q", result.Path, filepath.Join(dir, wantFile))
	}

	rec := result.Post.Record
	if rec.Category != "Guides" || !rec.Featured {
		t.Errorf("category/featured = %q/%v, want Guides/true", rec.Category, rec.Featured)
	}
	if rec.ReadTime != "3 min read" {
		t.Errorf("ReadTime = %q, want %q", rec.ReadTime, "3 min read")
	}
	if rec.Author != "Editorial Team" || rec.Date != "2026-10-17" || rec.ID != "test-id" {
		t.Errorf("record = %+v", rec)
	}
	if rec.Image == "" {
		t.Error("record has no image")
	}

	data, err := os.ReadFile(result.Path)
	if err != nil {
		t.Fatalf("reading post: %v", err)
	}
	parsed, err := document.Parse(data)
	if err != nil {
		t.Fatalf("document.Parse() error = %v", err)
	}
	if parsed.Slug != rec.Slug || parsed.Title != rec.Title {
		t.Errorf("front matter = %+v", parsed.Record)
	}

	history := index.NewStore(filepath.Join(dir, "index.json")).Load()
	if history.Status != index.StatusLoaded || len(history.Records) != 1 {
		t.Fatalf("index = %+v", history)
	}
	if history.Records[0].Filename != wantFile {
		t.Errorf("index filename = %q, want %q", history.Records[0].Filename, wantFile)
	}
}

func TestRunUpsertsSameSlug(t *testing.T) {
	gen := &fakeGenerator{post: samplePayload()}
	p, dir := newTestProcessor(t, gen, "")

	other := samplePayload()
	other.Slug = "another-post"
	other.Title = "Another Post"
	gen.post = other
	if _, err := p.Run(context.Background(), RunOptions{}); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}

	gen.post = samplePayload()
	if _, err := p.Run(context.Background(), RunOptions{}); err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	gen.post = samplePayload()
	gen.post.Description = "Updated description"
	if _, err := p.Run(context.Background(), RunOptions{}); err != nil {
		t.Fatalf("third Run() error = %v", err)
	}

	records := index.NewStore(filepath.Join(dir, "index.json")).Load().Records
	if len(records) != 2 {
		t.Fatalf("index has %d records, want 2", len(records))
	}
	if records[0].Slug != "defend-your-thesis-with-confidence" || records[0].Description != "Updated description" {
		t.Errorf("records[0] = %+v", records[0])
	}
	if records[1].Slug != "another-post" {
		t.Errorf("records[1].Slug = %q", records[1].Slug)
	}
}

func TestRunUpstreamFailureWritesNothing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"overloaded"}`, http.StatusServiceUnavailable)
	}))
	defer server.Close()

	gen := NewChatCompletionGenerator("key", AgentSettings{Model: "m", BaseURL: server.URL, Timeout: 5 * time.Second})
	p, dir := newTestProcessor(t, gen, "")

	_, err := p.Run(context.Background(), RunOptions{})

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("Run() error = %v, want HTTP 503", err)
	}
	if _, statErr := os.Stat(dir); !errors.Is(statErr, os.ErrNotExist) {
		t.Errorf("output directory should not exist after failed run, stat error = %v", statErr)
	}
}

func TestRunMalformedPayloadWritesNothing(t *testing.T) {
	gen := &fakeGenerator{err: fmt.Errorf("%w: no content in response", ErrMalformedPayload)}
	p, dir := newTestProcessor(t, gen, "")

	_, err := p.Run(context.Background(), RunOptions{})
	if !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("Run() error = %v, want ErrMalformedPayload", err)
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Errorf("output directory has %d entries, want 0", len(entries))
	}
}

func TestRunDryRun(t *testing.T) {
	gen := &fakeGenerator{post: samplePayload()}
	p, dir := newTestProcessor(t, gen, "")

	result, err := p.Run(context.Background(), RunOptions{DryRun: true, Style: "playful"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !result.DryRun || result.Post != nil || result.Image == "" || result.Topic.Text == "" {
		t.Errorf("result = %+v", result)
	}
	if gen.calls != 0 {
		t.Errorf("generator called %d times in dry run", gen.calls)
	}
	if _, err := os.Stat(dir); !errors.Is(err, os.ErrNotExist) {
		t.Error("dry run should not create the output directory")
	}
}

func TestRunFeaturedOverride(t *testing.T) {
	gen := &fakeGenerator{post: samplePayload()}
	p, _ := newTestProcessor(t, gen, "")

	notFeatured := false
	result, err := p.Run(context.Background(), RunOptions{Topic: "Thesis Defense", Featured: &notFeatured})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Post.Featured {
		t.Error("featured override was ignored")
	}
}

func TestRunWithDegradedIndex(t *testing.T) {
	gen := &fakeGenerator{post: samplePayload()}
	p, dir := newTestProcessor(t, gen, "")

	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	indexPath := filepath.Join(dir, "index.json")
	if err := os.WriteFile(indexPath, []byte("[{broken"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := p.Run(context.Background(), RunOptions{}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	data, err := os.ReadFile(indexPath)
	if err != nil {
		t.Fatal(err)
	}
	var records []index.Record
	if err := json.Unmarshal(data, &records); err != nil {
		t.Fatalf("index should be rewritten as valid JSON: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("index has %d records, want 1", len(records))
	}
}

func TestRunAvoidsRecentImagesAndTopics(t *testing.T) {
	gen := &fakeGenerator{post: samplePayload()}
	p, dir := newTestProcessor(t, gen, "")

	writing := []string{
		"https://images.unsplash.com/photo-1455390582262-044cdead277a?w=1200&q=80",
		"https://images.unsplash.com/photo-1486312338219-ce68d2c6f44d?w=1200&q=80",
		"https://images.unsplash.com/photo-1517842645767-c639042777db?w=1200&q=80",
		"https://images.unsplash.com/photo-1471107340929-a87cd0f5b5f3?w=1200&q=80",
		"https://images.unsplash.com/photo-1499750310107-5fef28a66643?w=1200&q=80",
	}
	var history []index.Record
	for i, img := range writing {
		history = append(history, index.Record{Slug: fmt.Sprintf("old-%d", i), Title: "Unrelated", Image: img})
	}
	if err := index.NewStore(filepath.Join(dir, "index.json")).Save(history); err != nil {
		t.Fatal(err)
	}

	result, err := p.Run(context.Background(), RunOptions{Topic: "Completely New Subject"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Topic.Category != "Writing Tips" {
		t.Fatalf("ad-hoc topic category = %q, want Writing Tips", result.Topic.Category)
	}
	want := "https://images.unsplash.com/photo-1456324504439-367cee3b3c32?w=1200&q=80"
	if result.Image != want {
		t.Errorf("Image = %q, want the only unused one %q", result.Image, want)
	}
}

func TestRunSourceMaterial(t *testing.T) {
	source := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<p>Committees ask about <em>limitations</em>.</p>"))
	}))
	defer source.Close()

	gen := &fakeGenerator{post: samplePayload()}
	p, _ := newTestProcessor(t, gen, "")

	if _, err := p.Run(context.Background(), RunOptions{SourceURL: source.URL}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(gen.lastPrompt.User, "Committees ask about _limitations_.") {
		t.Errorf("prompt should include converted source material:\n%s", gen.lastPrompt.User)
	}
}

func TestRunSourceMaterialFailure(t *testing.T) {
	source := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer source.Close()

	gen := &fakeGenerator{post: samplePayload()}
	p, _ := newTestProcessor(t, gen, "")

	_, err := p.Run(context.Background(), RunOptions{SourceURL: source.URL})
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("Run() error = %v, want *HTTPError", err)
	}
	if gen.calls != 0 {
		t.Error("generator should not be called when the source cannot be fetched")
	}
}

func TestRunSlugFallsBackToTitle(t *testing.T) {
	payload := samplePayload()
	payload.Slug = ""
	payload.Title = "Viva Voce: What to Expect?"
	gen := &fakeGenerator{post: payload}
	p, _ := newTestProcessor(t, gen, "")

	result, err := p.Run(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Post.Slug != "viva-voce-what-to-expect" {
		t.Errorf("Slug = %q", result.Post.Slug)
	}
	if result.Post.Filename != "2026-10-17-viva-voce-what-to-expect.md" {
		t.Errorf("Filename = %q", result.Post.Filename)
	}
}
