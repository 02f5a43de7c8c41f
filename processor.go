package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aktagon/blog-writer/internal/catalog"
	"github.com/aktagon/blog-writer/internal/document"
	"github.com/aktagon/blog-writer/internal/index"
	"github.com/aktagon/blog-writer/internal/logger"
)

const defaultStyle = "informative"

// PostProcessor runs the generation pipeline: history, topic, image, model, file and index
type PostProcessor struct {
	config    *Config
	selector  *catalog.Selector
	store     *index.Store
	writer    *document.Writer
	generator Generator
	fetcher   *ContentFetcher
	log       logger.Logger
	now       func() time.Time
	newID     func() string
}

// NewPostProcessor wires the pipeline from config. generator may be nil for dry runs.
func NewPostProcessor(config *Config, generator Generator, log logger.Logger) (*PostProcessor, error) {
	cat, err := config.LoadCatalog()
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}

	templateText, err := config.GetTemplate()
	if err != nil {
		return nil, fmt.Errorf("loading template: %w", err)
	}
	renderer, err := document.NewRenderer(templateText)
	if err != nil {
		return nil, err
	}

	store := index.NewStore(config.IndexPath())
	settings := config.Settings

	return &PostProcessor{
		config:    config,
		selector:  catalog.NewSelector(cat, config.SelectorOptions(), nil),
		store:     store,
		writer:    document.NewWriter(settings.OutputDirectory, renderer, store),
		generator: generator,
		fetcher:   NewContentFetcher(settings.Agents.Writer.Timeout),
		log:       log,
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
	}, nil
}

// Run generates and stores one post
func (p *PostProcessor) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	settings := p.config.Settings

	history := p.store.Load()
	switch history.Status {
	case index.StatusDegraded:
		p.log.Warn("Index unreadable, continuing without history",
			logger.String("path", p.store.Path()), logger.Error(history.Err))
	case index.StatusMissing:
		p.log.Debug("No index yet", logger.String("path", p.store.Path()))
	default:
		p.log.Debug("Loaded index", logger.Int("records", len(history.Records)))
	}

	titles := history.RecentTitles(settings.History.TitleWindow)
	images := history.RecentImages(settings.History.ImageWindow)

	topic := p.selector.SelectTopic(opts.Topic, titles)
	if opts.Featured != nil {
		topic.Featured = *opts.Featured
	}
	image := p.selector.SelectImage(topic.Category, images)
	p.log.Info("→ Selected topic",
		logger.String("topic", topic.Text),
		logger.String("category", topic.Category),
		logger.Bool("featured", topic.Featured))

	var source string
	if opts.SourceURL != "" {
		p.log.Info("→ Fetching source material", logger.String("url", opts.SourceURL))
		content, err := p.fetcher.FetchContent(ctx, opts.SourceURL)
		if err != nil {
			return nil, fmt.Errorf("fetching source: %w", err)
		}
		source = limitContentTokens(content.Text, settings.Agents.Writer.ContentMaxTokens)
	}

	prompt, err := p.buildPrompt(topic, opts, source)
	if err != nil {
		return nil, err
	}

	result := &RunResult{Topic: topic, Image: image, DryRun: opts.DryRun}
	if opts.DryRun {
		p.log.Info("Dry run, skipping generation", logger.String("image", image))
		p.log.Debug("Prompt", logger.String("system", prompt.System), logger.String("user", prompt.User))
		return result, nil
	}
	if p.generator == nil {
		return nil, errors.New("no generator configured")
	}

	p.log.Info("→ Writing...", logger.String("model", settings.Agents.Writer.Model))
	generated, err := p.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generating post: %w", err)
	}
	p.log.Info("✓ Writing completed", logger.String("title", generated.Title))

	post, err := p.buildPost(generated, topic, image, opts)
	if err != nil {
		return nil, err
	}

	path, err := p.writer.Write(post)
	if err != nil {
		return nil, fmt.Errorf("saving post: %w", err)
	}
	p.log.Info("✓ Generated", logger.String("file", path), logger.String("slug", post.Slug))

	result.Post = post
	result.Path = path
	return result, nil
}

func (p *PostProcessor) buildPrompt(topic catalog.Topic, opts RunOptions, source string) (*Prompt, error) {
	system, err := p.config.GetSystemPrompt()
	if err != nil {
		return nil, fmt.Errorf("loading system prompt: %w", err)
	}
	userTemplate, err := p.config.GetUserPrompt()
	if err != nil {
		return nil, fmt.Errorf("loading user prompt: %w", err)
	}

	style := opts.Style
	if style == "" {
		style = defaultStyle
	}
	return BuildPrompt(system, userTemplate, p.config.GetPostSchema(), PromptData{
		Topic:          topic.Text,
		Category:       topic.Category,
		Style:          style,
		Keywords:       opts.Keywords,
		SourceMaterial: source,
	})
}

func (p *PostProcessor) buildPost(generated *GeneratedPost, topic catalog.Topic, image string, opts RunOptions) (*document.Post, error) {
	settings := p.config.Settings

	body, err := document.NormalizeBody(generated.Content)
	if err != nil {
		return nil, err
	}

	keywords := generated.Keywords
	if len(keywords) == 0 {
		keywords = opts.Keywords
	}

	date := p.now()
	slug := document.SlugFor(generated.Slug, generated.Title)

	return &document.Post{
		Record: index.Record{
			ID:          p.newID(),
			Title:       strings.TrimSpace(generated.Title),
			Slug:        slug,
			Description: strings.TrimSpace(generated.Description),
			Excerpt:     strings.TrimSpace(generated.Excerpt),
			Author:      settings.Author,
			Category:    topic.Category,
			Tags:        generated.Tags,
			Keywords:    keywords,
			Image:       image,
			ReadTime:    document.ReadTime(body, settings.WordsPerMinute),
			Featured:    topic.Featured,
			Date:        date.Format(document.DateLayout),
			Filename:    document.Filename(date, slug),
		},
		Body: body,
	}, nil
}
