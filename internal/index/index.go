// Package index persists the catalog of generated posts as a JSON array, newest
// first, and derives the de-duplication history from it.
package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Record is the metadata of one generated post.
type Record struct {
	ID          string   `json:"id,omitempty" yaml:"id,omitempty"`
	Title       string   `json:"title" yaml:"title"`
	Slug        string   `json:"slug" yaml:"slug"`
	Description string   `json:"description" yaml:"description"`
	Excerpt     string   `json:"excerpt" yaml:"excerpt"`
	Author      string   `json:"author" yaml:"author"`
	Category    string   `json:"category" yaml:"category"`
	Tags        []string `json:"tags" yaml:"tags"`
	Keywords    []string `json:"keywords" yaml:"keywords"`
	Image       string   `json:"image" yaml:"image"`
	ReadTime    string   `json:"readTime" yaml:"readTime"`
	Featured    bool     `json:"featured" yaml:"featured"`
	Date        string   `json:"date" yaml:"date"`
	Filename    string   `json:"filename" yaml:"filename"`
}

// Status describes how a Load went.
type Status int

const (
	// StatusLoaded means the index was read and parsed.
	StatusLoaded Status = iota
	// StatusMissing means there is no index yet; history is empty.
	StatusMissing
	// StatusDegraded means the index exists but could not be read or parsed;
	// history is treated as empty and Err holds the cause.
	StatusDegraded
)

func (s Status) String() string {
	switch s {
	case StatusLoaded:
		return "loaded"
	case StatusMissing:
		return "missing"
	case StatusDegraded:
		return "degraded"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// LoadResult is the best-effort outcome of reading the index. It never carries a
// failure the caller must act on: a missing or corrupt index means no history.
type LoadResult struct {
	Records []Record
	Status  Status
	Err     error
}

// RecentImages returns the image URLs of the newest window records. A window of
// zero or less covers the whole index.
func (r LoadResult) RecentImages(window int) []string {
	records := head(r.Records, window)
	images := make([]string, 0, len(records))
	for _, rec := range records {
		if rec.Image != "" {
			images = append(images, rec.Image)
		}
	}
	return images
}

// RecentTitles returns the lower-cased titles of the newest window records. A
// window of zero or less covers the whole index.
func (r LoadResult) RecentTitles(window int) []string {
	records := head(r.Records, window)
	titles := make([]string, 0, len(records))
	for _, rec := range records {
		if rec.Title != "" {
			titles = append(titles, strings.ToLower(rec.Title))
		}
	}
	return titles
}

func head(records []Record, n int) []Record {
	if n <= 0 || n >= len(records) {
		return records
	}
	return records[:n]
}

// Store reads and rewrites the index file.
type Store struct {
	path string
}

// NewStore creates a store for the index at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the index file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the index. It does not return an error; see LoadResult.
func (s *Store) Load() LoadResult {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return LoadResult{Records: []Record{}, Status: StatusMissing}
		}
		return LoadResult{Records: []Record{}, Status: StatusDegraded, Err: fmt.Errorf("reading index: %w", err)}
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return LoadResult{Records: []Record{}, Status: StatusDegraded, Err: fmt.Errorf("parsing index: %w", err)}
	}
	if records == nil {
		records = []Record{}
	}
	return LoadResult{Records: records, Status: StatusLoaded}
}

// Save rewrites the whole index file.
func (s *Store) Save(records []Record) error {
	if records == nil {
		records = []Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling index: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}
	if err := os.WriteFile(s.path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing index: %w", err)
	}
	return nil
}

// Upsert loads the index, drops any record sharing rec's slug, puts rec first and
// rewrites the file. It returns the index as written.
func (s *Store) Upsert(rec Record) ([]Record, error) {
	current := s.Load()
	records := Upsert(current.Records, rec)
	if err := s.Save(records); err != nil {
		return nil, err
	}
	return records, nil
}

// Upsert returns a new slice with rec at position 0 followed by every record of
// records whose slug differs from rec's.
func Upsert(records []Record, rec Record) []Record {
	out := make([]Record, 0, len(records)+1)
	out = append(out, rec)
	for _, r := range records {
		if r.Slug != rec.Slug {
			out = append(out, r)
		}
	}
	return out
}

// Dedupe keeps the first record for each slug and reports how many were removed.
func Dedupe(records []Record) ([]Record, int) {
	seen := make(map[string]struct{}, len(records))
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if _, ok := seen[r.Slug]; ok {
			continue
		}
		seen[r.Slug] = struct{}{}
		out = append(out, r)
	}
	return out, len(records) - len(out)
}
