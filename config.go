package main

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/aktagon/blog-writer/internal/catalog"
	"github.com/aktagon/blog-writer/internal/logger"
)

const (
	defaultConfigDir = ".blog-writer"

	providerAnthropic = "anthropic"
	providerOpenAI    = "openai"

	minContentMaxTokens = 500
)

// Embedded configuration files
//
//go:embed config/settings.yaml
var defaultSettings string

//go:embed config/system-prompt.md
var defaultSystemPrompt string

//go:embed config/user-prompt.md
var defaultUserPrompt string

//go:embed config/post-schema.json
var defaultPostSchema string

// ConfigOverrides allows overriding embedded defaults with file paths
type ConfigOverrides struct {
	SettingsPath     *string
	SystemPromptPath *string
	UserPromptPath   *string
	TemplatePath     *string
	TopicsPath       *string
	ImagesPath       *string
}

// AgentSettings configures the model that writes posts.
type AgentSettings struct {
	Provider         string        `yaml:"provider"`
	Model            string        `yaml:"model"`
	MaxTokens        int           `yaml:"max_tokens"`
	Temperature      float64       `yaml:"temperature"`
	BaseURL          string        `yaml:"base_url"`
	Timeout          time.Duration `yaml:"timeout"`
	ContentMaxTokens int           `yaml:"content_max_tokens"`
}

// Settings represents the YAML configuration structure
type Settings struct {
	OutputDirectory string `yaml:"output_directory"`
	IndexFile       string `yaml:"index_file"`
	Author          string `yaml:"author"`
	DefaultCategory string `yaml:"default_category"`
	WordsPerMinute  int    `yaml:"words_per_minute"`
	History         struct {
		ImageWindow int `yaml:"image_window"`
		TitleWindow int `yaml:"title_window"`
	} `yaml:"history"`
	Selection struct {
		OverlapThreshold float64 `yaml:"overlap_threshold"`
		MinAvailable     int     `yaml:"min_available"`
		MinWordLength    int     `yaml:"min_word_length"`
	} `yaml:"selection"`
	Agents struct {
		Writer AgentSettings `yaml:"writer"`
	} `yaml:"agents"`
	Log logger.Config `yaml:"log"`
}

// Config holds configuration and overrides
type Config struct {
	Settings  *Settings
	Overrides *ConfigOverrides
}

// NewConfig loads settings and wraps them with overrides. An explicit settings
// path must exist; otherwise the default settings file is created on first use.
func NewConfig(overrides *ConfigOverrides) (*Config, error) {
	var (
		settings *Settings
		err      error
	)
	if overrides != nil && overrides.SettingsPath != nil {
		settings, err = loadSettingsRequired(*overrides.SettingsPath)
	} else {
		if err := ensureConfigExists(); err != nil {
			return nil, fmt.Errorf("ensuring config files exist: %w", err)
		}
		settings, err = loadSettings(getConfigPath("settings.yaml"))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	return &Config{
		Settings:  settings,
		Overrides: overrides,
	}, nil
}

// GetSystemPrompt returns the system prompt (from override file or embedded)
func (c *Config) GetSystemPrompt() (string, error) {
	return c.readOverride(c.overridePath(func(o *ConfigOverrides) *string { return o.SystemPromptPath }), defaultSystemPrompt)
}

// GetUserPrompt returns the user prompt template (from override file or embedded)
func (c *Config) GetUserPrompt() (string, error) {
	return c.readOverride(c.overridePath(func(o *ConfigOverrides) *string { return o.UserPromptPath }), defaultUserPrompt)
}

// GetPostSchema returns the JSON schema the model's answer must follow
func (c *Config) GetPostSchema() string {
	return strings.TrimSpace(defaultPostSchema)
}

// GetTemplate returns the post template, or "" for the renderer's built-in one
func (c *Config) GetTemplate() (string, error) {
	return c.readOverride(c.overridePath(func(o *ConfigOverrides) *string { return o.TemplatePath }), "")
}

// LoadCatalog loads the topic pool and image catalog
func (c *Config) LoadCatalog() (*catalog.Catalog, error) {
	topics := c.overridePath(func(o *ConfigOverrides) *string { return o.TopicsPath })
	images := c.overridePath(func(o *ConfigOverrides) *string { return o.ImagesPath })
	return catalog.Load(topics, images, c.Settings.DefaultCategory)
}

// SelectorOptions returns the topic selection policy from settings
func (c *Config) SelectorOptions() catalog.SelectorOptions {
	return catalog.SelectorOptions{
		OverlapThreshold: c.Settings.Selection.OverlapThreshold,
		MinAvailable:     c.Settings.Selection.MinAvailable,
		MinWordLength:    c.Settings.Selection.MinWordLength,
	}
}

// IndexPath returns the location of the post index
func (c *Config) IndexPath() string {
	return filepath.Join(c.Settings.OutputDirectory, c.Settings.IndexFile)
}

func (c *Config) overridePath(pick func(*ConfigOverrides) *string) string {
	if c.Overrides == nil {
		return ""
	}
	if p := pick(c.Overrides); p != nil {
		return *p
	}
	return ""
}

// readOverride reads path when set. An override that cannot be read is an error
// rather than a silent fallback to the embedded default.
func (c *Config) readOverride(path, fallback string) (string, error) {
	if path == "" {
		return fallback, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading override %s: %w", path, err)
	}
	return string(data), nil
}

// loadSettings loads settings from a YAML file, using the embedded defaults when
// the file does not exist
func loadSettings(settingsPath string) (*Settings, error) {
	data, err := os.ReadFile(settingsPath)
	if errors.Is(err, fs.ErrNotExist) {
		data = []byte(defaultSettings)
	} else if err != nil {
		return nil, fmt.Errorf("failed to read settings file %s: %w", settingsPath, err)
	}
	return parseSettings(data)
}

// loadSettingsRequired loads settings from a YAML file that must exist
func loadSettingsRequired(settingsPath string) (*Settings, error) {
	data, err := os.ReadFile(settingsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file %s: %w", settingsPath, err)
	}
	return parseSettings(data)
}

func parseSettings(data []byte) (*Settings, error) {
	var settings Settings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings YAML: %w", err)
	}
	settings.applyDefaults()
	if err := settings.validate(); err != nil {
		return nil, err
	}
	return &settings, nil
}

// applyDefaults fills every setting left empty in the YAML file.
func (s *Settings) applyDefaults() {
	if s.OutputDirectory == "" {
		s.OutputDirectory = "posts"
	}
	if s.IndexFile == "" {
		s.IndexFile = "index.json"
	}
	if s.Author == "" {
		s.Author = "Editorial Team"
	}
	if s.DefaultCategory == "" {
		s.DefaultCategory = catalog.DefaultCategory
	}
	if s.WordsPerMinute <= 0 {
		s.WordsPerMinute = 200
	}
	if s.History.ImageWindow == 0 {
		s.History.ImageWindow = 15
	}

	def := catalog.DefaultSelectorOptions()
	if s.Selection.OverlapThreshold <= 0 {
		s.Selection.OverlapThreshold = def.OverlapThreshold
	}
	if s.Selection.MinAvailable <= 0 {
		s.Selection.MinAvailable = def.MinAvailable
	}
	if s.Selection.MinWordLength <= 0 {
		s.Selection.MinWordLength = def.MinWordLength
	}

	w := &s.Agents.Writer
	if w.Provider == "" {
		w.Provider = providerAnthropic
	}
	w.Provider = strings.ToLower(w.Provider)
	if w.Model == "" {
		switch w.Provider {
		case providerOpenAI:
			w.Model = "gpt-4o-mini"
		default:
			w.Model = "claude-sonnet-4-20250514"
		}
	}
	if w.MaxTokens <= 0 {
		w.MaxTokens = 4000
	}
	if w.Provider == providerOpenAI && w.BaseURL == "" {
		w.BaseURL = "https://api.openai.com/v1"
	}
	if w.Timeout <= 0 {
		w.Timeout = 2 * time.Minute
	}
	if w.ContentMaxTokens < minContentMaxTokens {
		w.ContentMaxTokens = 2000
	}
	s.Log.SetDefaults()
}

func (s *Settings) validate() error {
	switch s.Agents.Writer.Provider {
	case providerAnthropic, providerOpenAI:
	default:
		return fmt.Errorf("unknown writer provider %q (want %q or %q)", s.Agents.Writer.Provider, providerAnthropic, providerOpenAI)
	}
	if s.Selection.OverlapThreshold > 1 {
		return fmt.Errorf("selection.overlap_threshold must be at most 1, got %v", s.Selection.OverlapThreshold)
	}
	return nil
}

// APIKeyEnv names the environment variable holding the credential for the provider
func (s *Settings) APIKeyEnv() string {
	if s.Agents.Writer.Provider == providerOpenAI {
		return "OPENAI_API_KEY"
	}
	return "ANTHROPIC_API_KEY"
}

// getConfigPath returns the path to a config file in the .blog-writer directory
func getConfigPath(filename string) string {
	return filepath.Join(defaultConfigDir, filename)
}

// ensureConfigExists creates the config directory and writes settings.yaml if needed
func ensureConfigExists() error {
	if err := os.MkdirAll(defaultConfigDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	settingsFile := getConfigPath("settings.yaml")
	if _, err := os.Stat(settingsFile); errors.Is(err, fs.ErrNotExist) {
		if err := os.WriteFile(settingsFile, []byte(defaultSettings), 0644); err != nil {
			return fmt.Errorf("writing settings.yaml: %w", err)
		}
	}
	return nil
}

// loadEnvFiles loads .env.local and then .env; values already in the environment
// win, and missing files are ignored.
func loadEnvFiles() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}
	for _, name := range []string{".env.local", ".env"} {
		if err := godotenv.Load(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", name, err)
		}
	}
	return nil
}
