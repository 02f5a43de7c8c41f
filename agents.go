package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"text/template"

	"github.com/aktagon/llmkit/anthropic"
	"github.com/aktagon/llmkit/anthropic/types"
)

const maxErrorBodyLength = 512

var codeFence = regexp.MustCompile("(?s)^```(?:json)?\\s*\\n?(.*?)\\n?```$")

// Prompt is the instruction pair sent to the model
type Prompt struct {
	System string
	User   string
	Schema string
}

// PromptData fills the user prompt template
type PromptData struct {
	Topic          string
	Category       string
	Style          string
	Keywords       []string
	SourceMaterial string
}

// Generator asks a language model for one post
type Generator interface {
	Generate(ctx context.Context, prompt *Prompt) (*GeneratedPost, error)
}

// NewGenerator returns the generator for the configured provider
func NewGenerator(settings AgentSettings, apiKey string) (Generator, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	switch settings.Provider {
	case providerAnthropic:
		return &AnthropicGenerator{apiKey: apiKey, settings: settings}, nil
	case providerOpenAI:
		return NewChatCompletionGenerator(apiKey, settings), nil
	default:
		return nil, fmt.Errorf("unknown writer provider %q", settings.Provider)
	}
}

// BuildPrompt renders the user prompt template with data
func BuildPrompt(system, userTemplate, schema string, data PromptData) (*Prompt, error) {
	if !strings.Contains(userTemplate, "{{.Topic}}") {
		return nil, fmt.Errorf("user prompt template must contain {{.Topic}} variable")
	}

	tmpl, err := template.New("user-prompt").
		Funcs(template.FuncMap{"join": strings.Join}).
		Parse(userTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing user prompt template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("executing user prompt template: %w", err)
	}

	return &Prompt{
		System: strings.TrimSpace(system),
		User:   strings.TrimSpace(buf.String()),
		Schema: schema,
	}, nil
}

// AnthropicGenerator writes posts through the Anthropic messages API with structured output
type AnthropicGenerator struct {
	apiKey   string
	settings AgentSettings
}

// Generate sends one request; the response must follow prompt.Schema
func (g *AnthropicGenerator) Generate(ctx context.Context, prompt *Prompt) (*GeneratedPost, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	settings := types.RequestSettings{
		Model:       g.settings.Model,
		MaxTokens:   g.settings.MaxTokens,
		Temperature: g.settings.Temperature,
	}
	response, err := anthropic.PromptWithSettings(prompt.System, prompt.User, prompt.Schema, g.apiKey, settings)
	if err != nil {
		return nil, fmt.Errorf("writer agent failed: %w", err)
	}

	if len(response.Content) == 0 {
		return nil, fmt.Errorf("%w: no content in response", ErrMalformedPayload)
	}
	return parseGeneratedPost(response.Content[0].Text)
}

// ChatCompletionGenerator writes posts through an OpenAI-compatible chat completions endpoint
type ChatCompletionGenerator struct {
	apiKey     string
	settings   AgentSettings
	httpClient *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// NewChatCompletionGenerator creates a generator for settings.BaseURL
func NewChatCompletionGenerator(apiKey string, settings AgentSettings) *ChatCompletionGenerator {
	return &ChatCompletionGenerator{
		apiKey:     apiKey,
		settings:   settings,
		httpClient: &http.Client{Timeout: settings.Timeout},
	}
}

// Generate sends one request asking for a JSON object response
func (g *ChatCompletionGenerator) Generate(ctx context.Context, prompt *Prompt) (*GeneratedPost, error) {
	body, err := json.Marshal(chatRequest{
		Model: g.settings.Model,
		Messages: []chatMessage{
			{Role: "system", Content: prompt.System},
			{Role: "user", Content: prompt.User},
		},
		Temperature:    g.settings.Temperature,
		MaxTokens:      g.settings.MaxTokens,
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := strings.TrimRight(g.settings.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLength))
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: url, Body: strings.TrimSpace(string(snippet))}
	}

	var completion chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return nil, fmt.Errorf("%w: decoding completion: %v", ErrMalformedPayload, err)
	}
	if len(completion.Choices) == 0 || strings.TrimSpace(completion.Choices[0].Message.Content) == "" {
		return nil, fmt.Errorf("%w: no content in response", ErrMalformedPayload)
	}
	return parseGeneratedPost(completion.Choices[0].Message.Content)
}

// parseGeneratedPost decodes the model's JSON answer, tolerating a surrounding code fence
func parseGeneratedPost(text string) (*GeneratedPost, error) {
	text = strings.TrimSpace(text)
	if m := codeFence.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}

	var post GeneratedPost
	if err := json.Unmarshal([]byte(text), &post); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if strings.TrimSpace(post.Title) == "" {
		return nil, fmt.Errorf("%w: missing title", ErrMalformedPayload)
	}
	if strings.TrimSpace(post.Content) == "" {
		return nil, fmt.Errorf("%w: missing content", ErrMalformedPayload)
	}
	return &post, nil
}
