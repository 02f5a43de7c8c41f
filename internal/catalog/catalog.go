// Package catalog holds the static topic pool and curated image lists, and the
// selection policy that picks one of each for a run.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// DefaultCategory is used for ad-hoc topics and for image lookups of unknown categories.
const DefaultCategory = "Writing Tips"

//go:embed data/topics.yaml
var defaultTopics []byte

//go:embed data/images.yaml
var defaultImages []byte

// Topic is one candidate subject from the pool.
type Topic struct {
	Text     string `yaml:"text" json:"text"`
	Category string `yaml:"category" json:"category"`
	Featured bool   `yaml:"featured" json:"featured"`
}

// Catalog is the topic pool plus the image URLs curated for each category.
type Catalog struct {
	Topics          []Topic
	Images          map[string][]string
	DefaultCategory string
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Load("", "", DefaultCategory)
}

// Load reads the topic pool and image catalog. Empty paths fall back to the embedded
// defaults; an explicit path that cannot be read is an error.
func Load(topicsPath, imagesPath, defaultCategory string) (*Catalog, error) {
	topicsData, err := readOrDefault(topicsPath, defaultTopics)
	if err != nil {
		return nil, fmt.Errorf("reading topics: %w", err)
	}
	imagesData, err := readOrDefault(imagesPath, defaultImages)
	if err != nil {
		return nil, fmt.Errorf("reading images: %w", err)
	}

	var topics []Topic
	if err := yaml.Unmarshal(topicsData, &topics); err != nil {
		return nil, fmt.Errorf("parsing topics YAML: %w", err)
	}
	var images map[string][]string
	if err := yaml.Unmarshal(imagesData, &images); err != nil {
		return nil, fmt.Errorf("parsing images YAML: %w", err)
	}

	if defaultCategory == "" {
		defaultCategory = DefaultCategory
	}
	c := &Catalog{
		Topics:          topics,
		Images:          images,
		DefaultCategory: defaultCategory,
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) validate() error {
	if len(c.Topics) == 0 {
		return fmt.Errorf("topic pool is empty")
	}
	for i, t := range c.Topics {
		if t.Text == "" {
			return fmt.Errorf("topic %d has no text", i)
		}
		if t.Category == "" {
			return fmt.Errorf("topic %q has no category", t.Text)
		}
	}
	if len(c.Images[c.DefaultCategory]) == 0 {
		return fmt.Errorf("default category %q has no images", c.DefaultCategory)
	}
	return nil
}

// Categories returns the image catalog's category names, sorted.
func (c *Catalog) Categories() []string {
	names := make([]string, 0, len(c.Images))
	for name := range c.Images {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ImagesFor returns the curated list for category, or the default category's list
// when category is unknown.
func (c *Catalog) ImagesFor(category string) []string {
	if images, ok := c.Images[category]; ok && len(images) > 0 {
		return images
	}
	return c.Images[c.DefaultCategory]
}

func readOrDefault(path string, fallback []byte) ([]byte, error) {
	if path == "" {
		return fallback, nil
	}
	return os.ReadFile(path)
}
