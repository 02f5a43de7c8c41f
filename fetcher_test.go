package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// Mock handler for testing
type mockHandler struct {
	canHandleResult bool
	handleResult    *ContentResult
	handleError     error
}

func (m *mockHandler) CanHandle(url string, resp *http.Response) bool {
	return m.canHandleResult
}

func (m *mockHandler) Handle(url string, resp *http.Response) (*ContentResult, error) {
	return m.handleResult, m.handleError
}

func TestNewContentFetcher(t *testing.T) {
	fetcher := NewContentFetcher(10 * time.Second)

	if fetcher.client == nil {
		t.Error("NewContentFetcher() did not initialize HTTP client")
	}
	if fetcher.client.Timeout != 10*time.Second {
		t.Errorf("client timeout = %v, want 10s", fetcher.client.Timeout)
	}

	expectedHandlerCount := 2 // plain text, HTML
	if len(fetcher.handlers) != expectedHandlerCount {
		t.Errorf("NewContentFetcher() registered %d handlers, want %d",
			len(fetcher.handlers), expectedHandlerCount)
	}
}

func TestAddHandler(t *testing.T) {
	fetcher := &ContentFetcher{}

	mockH := &mockHandler{canHandleResult: true}
	fetcher.AddHandler(mockH)

	if len(fetcher.handlers) != 1 {
		t.Fatalf("AddHandler() handlers count = %d, want 1", len(fetcher.handlers))
	}
	if fetcher.handlers[0] != mockH {
		t.Error("AddHandler() did not add handler to the end of the chain")
	}
}

func TestFetchContentHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	fetcher := &ContentFetcher{
		client: server.Client(),
	}

	result, err := fetcher.FetchContent(context.Background(), server.URL)

	if result != nil {
		t.Error("FetchContent() should return nil result on HTTP error")
	}

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("FetchContent() should return HTTPError, got %T", err)
	}
	if httpErr.StatusCode != http.StatusNotFound {
		t.Errorf("HTTPError.StatusCode = %d, want %d", httpErr.StatusCode, http.StatusNotFound)
	}
	if httpErr.URL != server.URL {
		t.Errorf("HTTPError.URL = %q, want %q", httpErr.URL, server.URL)
	}
}

func TestFetchContentHandlerChain(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<h1>Test HTML</h1>"))
	}))
	defer server.Close()

	handler1 := &mockHandler{canHandleResult: false}
	handler2 := &mockHandler{canHandleResult: true, handleResult: &ContentResult{Text: "handler2 result"}}
	handler3 := &mockHandler{canHandleResult: true, handleResult: &ContentResult{Text: "handler3 result"}}

	fetcher := &ContentFetcher{
		client:   server.Client(),
		handlers: []ContentHandler{handler1, handler2, handler3},
	}

	result, err := fetcher.FetchContent(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("FetchContent() error = %v", err)
	}
	if result.Text != "handler2 result" {
		t.Errorf("FetchContent() result.Text = %q, want %q", result.Text, "handler2 result")
	}
}

func TestFetchContentNoMatchingHandler(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("some content"))
	}))
	defer server.Close()

	fetcher := &ContentFetcher{
		client:   server.Client(),
		handlers: []ContentHandler{&mockHandler{}, &mockHandler{}},
	}

	result, err := fetcher.FetchContent(context.Background(), server.URL)

	if result != nil {
		t.Error("FetchContent() should return nil when no handler matches")
	}
	expectedMsg := "no handler found for " + server.URL
	if err == nil || err.Error() != expectedMsg {
		t.Errorf("FetchContent() error = %v, want %q", err, expectedMsg)
	}
}

func TestFetchContentDefaultHandlers(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		contentType string
		body        string
		want        []string
		notWant     []string
	}{
		{
			name:        "html converted to markdown",
			path:        "/article",
			contentType: "text/html; charset=utf-8",
			body:        "<html><body><h2>Citations</h2><p>Use <strong>one</strong> style.</p></body></html>",
			want:        []string{"## Citations", "**one**"},
			notWant:     []string{"<p>"},
		},
		{
			name:        "plain text kept",
			path:        "/notes",
			contentType: "text/plain",
			body:        "  <b>not html</b> just text  ",
			want:        []string{"<b>not html</b> just text"},
		},
		{
			name:        "markdown by extension",
			path:        "/README.md",
			contentType: "application/octet-stream",
			body:        "# Title",
			want:        []string{"# Title"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			result, err := NewContentFetcher(5*time.Second).FetchContent(context.Background(), server.URL+tt.path)
			if err != nil {
				t.Fatalf("FetchContent() error = %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(result.Text, w) {
					t.Errorf("result %q missing %q", result.Text, w)
				}
			}
			for _, nw := range tt.notWant {
				if strings.Contains(result.Text, nw) {
					t.Errorf("result %q should not contain %q", result.Text, nw)
				}
			}
		})
	}
}

func TestLimitContentTokens(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		maxTokens int
		expected  string
	}{
		{"short content unchanged", "hello", 10, "hello"},
		{"exact limit unchanged", "abcdefgh", 2, "abcdefgh"},
		{"truncated", "abcdefghij", 2, "abcdefgh..."},
		{"no limit", "abcdefghij", 0, "abcdefghij"},
		{"rune boundary", "aaaé", 1, "aaa..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := limitContentTokens(tt.content, tt.maxTokens); got != tt.expected {
				t.Errorf("limitContentTokens() = %q, want %q", got, tt.expected)
			}
		})
	}
}
