// Package document turns generated posts into markdown files with YAML front
// matter and keeps the post index in step with them.
package document

import (
	"bytes"
	_ "embed"
	"fmt"
	"math"
	"regexp"
	"strings"
	"text/template"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"gopkg.in/yaml.v3"

	"github.com/aktagon/blog-writer/internal/index"
)

const (
	// MaxSlugLength bounds slugs so filenames stay short.
	MaxSlugLength = 60
	// DateLayout is the date format used in filenames and front matter.
	DateLayout = "2006-01-02"
	// Extension of generated documents.
	Extension = ".md"

	fallbackSlug = "post"
)

//go:embed templates/post.md
var defaultTemplate string

var (
	nonSlugChars  = regexp.MustCompile(`[^a-z0-9\s-]`)
	whitespaceRun = regexp.MustCompile(`\s+`)
	htmlTag       = regexp.MustCompile(`(?i)</?(p|h[1-6]|ul|ol|li|strong|em|b|i|a|div|br|blockquote|code|pre)\b[^>]*>`)
	frontMatter   = regexp.MustCompile(`(?s)\A---\r?\n(.*?)\r?\n---\r?\n?(.*)\z`)
)

// Post is a rendered post: its index metadata plus the markdown body.
type Post struct {
	index.Record
	Body string
}

// Slugify lower-cases text, drops everything except ASCII letters, digits,
// whitespace and hyphens, turns whitespace runs into single hyphens and truncates
// to MaxSlugLength. Already-slugified input comes back unchanged.
func Slugify(text string) string {
	slug := strings.ToLower(text)
	slug = nonSlugChars.ReplaceAllString(slug, "")
	slug = strings.TrimSpace(slug)
	slug = whitespaceRun.ReplaceAllString(slug, "-")
	if len(slug) > MaxSlugLength {
		slug = slug[:MaxSlugLength]
	}
	return slug
}

// SlugFor picks the post slug: the generated slug if it survives Slugify,
// otherwise one derived from the title.
func SlugFor(generated, title string) string {
	if slug := Slugify(generated); slug != "" {
		return slug
	}
	if slug := Slugify(title); slug != "" {
		return slug
	}
	return fallbackSlug
}

// Filename returns "<date>-<slug>.md".
func Filename(date time.Time, slug string) string {
	return fmt.Sprintf("%s-%s%s", date.Format(DateLayout), slug, Extension)
}

// ReadTime estimates reading time at wordsPerMinute, rounded up, at least one minute.
func ReadTime(body string, wordsPerMinute int) string {
	if wordsPerMinute <= 0 {
		wordsPerMinute = 200
	}
	words := len(strings.Fields(body))
	minutes := int(math.Ceil(float64(words) / float64(wordsPerMinute)))
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Sprintf("%d min read", minutes)
}

// NormalizeBody converts HTML bodies to markdown and trims surrounding space.
// Markdown input is returned as is.
func NormalizeBody(body string) (string, error) {
	body = strings.TrimSpace(body)
	if !htmlTag.MatchString(body) {
		return body, nil
	}
	converter := md.NewConverter("", true, nil)
	markdown, err := converter.ConvertString(body)
	if err != nil {
		return "", fmt.Errorf("converting HTML body to markdown: %w", err)
	}
	return strings.TrimSpace(markdown), nil
}

// Renderer executes the post template.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses templateText, or the embedded template when it is empty.
// The template receives FrontMatter (YAML, newline-terminated), Body and Record.
func NewRenderer(templateText string) (*Renderer, error) {
	if templateText == "" {
		templateText = defaultTemplate
	}
	tmpl, err := template.New("post").Parse(templateText)
	if err != nil {
		return nil, fmt.Errorf("parsing template: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Render produces the full document text for post.
func (r *Renderer) Render(post *Post) ([]byte, error) {
	fm, err := yaml.Marshal(post.Record)
	if err != nil {
		return nil, fmt.Errorf("marshaling front matter: %w", err)
	}

	data := struct {
		FrontMatter string
		Body        string
		Record      index.Record
	}{
		FrontMatter: string(fm),
		Body:        post.Body,
		Record:      post.Record,
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("executing template: %w", err)
	}
	return buf.Bytes(), nil
}

// Parse splits a rendered document back into its front matter record and body.
func Parse(content []byte) (*Post, error) {
	m := frontMatter.FindSubmatch(content)
	if m == nil {
		return nil, fmt.Errorf("no front matter found")
	}
	var rec index.Record
	if err := yaml.Unmarshal(m[1], &rec); err != nil {
		return nil, fmt.Errorf("parsing front matter: %w", err)
	}
	return &Post{Record: rec, Body: strings.TrimSpace(string(m[2]))}, nil
}
