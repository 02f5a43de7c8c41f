package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aktagon/blog-writer/internal/logger"
)

// cliFlags collects every flag value; it is turned into a Config and RunOptions once per invocation.
type cliFlags struct {
	apiKey   string
	topic    string
	keywords string
	style    string
	source   string
	featured bool
	dryRun   bool
	debug    bool

	settingsPath     string
	systemPromptPath string
	userPromptPath   string
	templatePath     string
	topicsPath       string
	imagesPath       string
}

func newRootCmd() *cobra.Command {
	f := &cliFlags{}

	rootCmd := &cobra.Command{
		Use:   "blog-writer",
		Short: "Generate a blog post with AI and add it to the post index",
		Long: `Picks a topic that has not been covered recently, asks a language model to
write a post about it, saves the post as markdown with front matter and adds it
to the JSON post index.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, f)
		},
	}

	rootCmd.Flags().StringVar(&f.apiKey, "api-key", "", "API key for the writer provider")
	rootCmd.Flags().StringVar(&f.topic, "topic", "", "Topic override (env BLOG_TOPIC)")
	rootCmd.Flags().StringVar(&f.keywords, "keywords", "", "Comma-separated target keywords (env BLOG_KEYWORDS)")
	rootCmd.Flags().StringVar(&f.style, "style", "", "Writing style (env BLOG_STYLE, default \"informative\")")
	rootCmd.Flags().StringVar(&f.source, "source", "", "URL of source material to build on (env BLOG_SOURCE_URL)")
	rootCmd.Flags().BoolVar(&f.featured, "featured", false, "Override the topic's featured flag")
	rootCmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "Select topic and image and build the prompt without calling the API")
	rootCmd.Flags().StringVar(&f.systemPromptPath, "system-prompt", "", "Path to custom system prompt file")
	rootCmd.Flags().StringVar(&f.userPromptPath, "user-prompt", "", "Path to custom user prompt template")
	rootCmd.Flags().StringVar(&f.templatePath, "template", "", "Path to custom post template file")

	rootCmd.PersistentFlags().StringVar(&f.settingsPath, "settings", "", "Path to settings YAML (default .blog-writer/settings.yaml)")
	rootCmd.PersistentFlags().StringVar(&f.topicsPath, "topics", "", "Path to custom topic pool YAML")
	rootCmd.PersistentFlags().StringVar(&f.imagesPath, "images", "", "Path to custom image catalog YAML")
	rootCmd.PersistentFlags().BoolVar(&f.debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(newTopicsCmd(f), newIndexCmd(f))
	return rootCmd
}

func runGenerate(cmd *cobra.Command, f *cliFlags) error {
	config, log, err := setup(f)
	if err != nil {
		return err
	}
	defer log.Sync()

	opts, err := f.runOptions(cmd, config.Settings)
	if err != nil {
		return err
	}

	generator, err := NewGenerator(config.Settings.Agents.Writer, opts.APIKey)
	if err != nil {
		return err
	}

	processor, err := NewPostProcessor(config, generator, log)
	if err != nil {
		return fmt.Errorf("failed to create processor: %w", err)
	}

	if _, err := processor.Run(cmd.Context(), opts); err != nil {
		log.Error("Generation failed", logger.Error(err))
		return err
	}
	return nil
}

// setup loads .env files, settings and the logger shared by every command.
func setup(f *cliFlags) (*Config, logger.Logger, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, nil, err
	}

	config, err := NewConfig(f.overrides())
	if err != nil {
		return nil, nil, err
	}

	logCfg := config.Settings.Log
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		logCfg.Level = level
	}
	if f.debug {
		logCfg.Level = "debug"
	}
	log, err := logger.New(logCfg)
	if err != nil {
		return nil, nil, err
	}
	return config, log, nil
}

func (f *cliFlags) overrides() *ConfigOverrides {
	o := &ConfigOverrides{}
	set := func(v string) *string {
		if v == "" {
			return nil
		}
		return &v
	}
	o.SettingsPath = set(f.settingsPath)
	o.SystemPromptPath = set(f.systemPromptPath)
	o.UserPromptPath = set(f.userPromptPath)
	o.TemplatePath = set(f.templatePath)
	o.TopicsPath = set(f.topicsPath)
	o.ImagesPath = set(f.imagesPath)
	return o
}

// runOptions resolves flags over environment variables. A missing API key is an error.
func (f *cliFlags) runOptions(cmd *cobra.Command, settings *Settings) (RunOptions, error) {
	apiKey := firstNonEmpty(f.apiKey, os.Getenv(settings.APIKeyEnv()))
	if apiKey == "" {
		return RunOptions{}, fmt.Errorf("%w: use --api-key flag or %s environment variable", ErrMissingAPIKey, settings.APIKeyEnv())
	}

	opts := RunOptions{
		APIKey:    apiKey,
		Topic:     firstNonEmpty(f.topic, os.Getenv("BLOG_TOPIC")),
		Keywords:  splitKeywords(firstNonEmpty(f.keywords, os.Getenv("BLOG_KEYWORDS"))),
		Style:     firstNonEmpty(f.style, os.Getenv("BLOG_STYLE"), defaultStyle),
		SourceURL: firstNonEmpty(f.source, os.Getenv("BLOG_SOURCE_URL")),
		DryRun:    f.dryRun,
	}
	if cmd.Flags().Changed("featured") {
		featured := f.featured
		opts.Featured = &featured
	}
	return opts, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// splitKeywords parses a comma-separated list, dropping blanks.
func splitKeywords(s string) []string {
	var keywords []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keywords = append(keywords, k)
		}
	}
	return keywords
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
