package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/aktagon/blog-writer/internal/document"
	"github.com/aktagon/blog-writer/internal/index"
	"github.com/aktagon/blog-writer/internal/logger"
)

const indexFile = "index.json"

func main() {
	log, err := logger.New(logger.Config{})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	if len(os.Args) < 3 {
		log.Error("Usage: migrate <add-ids|remove-duplicates|rebuild-index> <posts-directory>")
		os.Exit(2)
	}

	command := os.Args[1]
	postsDir := os.Args[2]
	m := &migrator{dir: postsDir, in: bufio.NewReader(os.Stdin), out: os.Stdout, log: log}

	switch command {
	case "add-ids":
		err = m.addIDs()
	case "remove-duplicates":
		err = m.removeDuplicates()
	case "rebuild-index":
		err = m.rebuildIndex()
	default:
		err = fmt.Errorf("unknown command %q", command)
	}
	if err != nil {
		log.Error("Migration failed", logger.String("command", command), logger.Error(err))
		os.Exit(1)
	}
}

type migrator struct {
	dir string
	in  *bufio.Reader
	out io.Writer
	log logger.Logger
}

func (m *migrator) store() *index.Store {
	return index.NewStore(filepath.Join(m.dir, indexFile))
}

func (m *migrator) loadIndex() ([]index.Record, error) {
	result := m.store().Load()
	if result.Status == index.StatusDegraded {
		return nil, result.Err
	}
	return result.Records, nil
}

// addIDs gives every index record without an id a fresh one.
func (m *migrator) addIDs() error {
	records, err := m.loadIndex()
	if err != nil {
		return err
	}

	added := 0
	for i := range records {
		if records[i].ID != "" {
			continue
		}
		records[i].ID = uuid.NewString()
		added++
		m.log.Debug("Assigned id", logger.String("slug", records[i].Slug), logger.String("id", records[i].ID))
	}
	if added == 0 {
		fmt.Fprintln(m.out, "All records already have ids")
		return nil
	}
	if err := m.store().Save(records); err != nil {
		return err
	}
	fmt.Fprintf(m.out, "Added ids to %d records\n", added)
	return nil
}

// removeDuplicates drops repeated slugs from the index and offers to delete
// post files that share a slug, keeping the newest.
func (m *migrator) removeDuplicates() error {
	records, err := m.loadIndex()
	if err != nil {
		return err
	}
	deduped, removed := index.Dedupe(records)
	if removed > 0 {
		if err := m.store().Save(deduped); err != nil {
			return err
		}
	}
	fmt.Fprintf(m.out, "Removed %d duplicate index records\n", removed)

	slugToFiles := make(map[string][]string)
	err = m.walkPosts(func(path string, post *document.Post) {
		slug := post.Slug
		if slug == "" {
			slug = slugFromFilename(filepath.Base(path))
		}
		slugToFiles[slug] = append(slugToFiles[slug], path)
	})
	if err != nil {
		return err
	}

	slugs := make([]string, 0, len(slugToFiles))
	for slug := range slugToFiles {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)

	totalRemoved := 0
	for _, slug := range slugs {
		files := slugToFiles[slug]
		if len(files) <= 1 {
			continue
		}
		// Date-prefixed names sort chronologically; keep the newest.
		sort.Sort(sort.Reverse(sort.StringSlice(files)))

		fmt.Fprintf(m.out, "\nFound %d posts with slug %s:\n", len(files), slug)
		for i, file := range files {
			fileName := filepath.Base(file)
			if i == 0 {
				fmt.Fprintf(m.out, "  KEEP: %s\n", fileName)
				continue
			}

			if m.confirmDelete(file) {
				if err := os.Remove(file); err != nil {
					m.log.Error("Removing file failed", logger.String("file", file), logger.Error(err))
				} else {
					totalRemoved++
					fmt.Fprintf(m.out, "  REMOVED: %s\n", fileName)
				}
			} else {
				fmt.Fprintf(m.out, "  SKIP: %s\n", fileName)
			}
		}
	}

	fmt.Fprintf(m.out, "\nRemoved %d duplicate files\n", totalRemoved)
	return nil
}

// rebuildIndex regenerates the index from the front matter of every post file,
// newest first.
func (m *migrator) rebuildIndex() error {
	var records []index.Record
	err := m.walkPosts(func(path string, post *document.Post) {
		rec := post.Record
		rec.Filename = filepath.Base(path)
		if rec.Slug == "" {
			rec.Slug = slugFromFilename(rec.Filename)
		}
		records = append(records, rec)
	})
	if err != nil {
		return err
	}

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Date != records[j].Date {
			return records[i].Date > records[j].Date
		}
		return records[i].Filename > records[j].Filename
	})
	records, _ = index.Dedupe(records)

	if err := m.store().Save(records); err != nil {
		return err
	}
	fmt.Fprintf(m.out, "Indexed %d posts\n", len(records))
	return nil
}

// walkPosts calls fn for every parseable post file under the directory. Files
// without front matter are logged and skipped.
func (m *migrator) walkPosts(fn func(path string, post *document.Post)) error {
	if _, err := os.Stat(m.dir); err != nil {
		return fmt.Errorf("posts directory: %w", err)
	}
	return filepath.WalkDir(m.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // Continue on errors
		}
		if d.IsDir() || !strings.HasSuffix(path, document.Extension) {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			m.log.Warn("Skipping unreadable file", logger.String("file", path), logger.Error(err))
			return nil
		}
		post, err := document.Parse(content)
		if err != nil {
			m.log.Warn("Skipping file", logger.String("file", path), logger.Error(err))
			return nil
		}
		fn(path, post)
		return nil
	})
}

// slugFromFilename strips the date prefix and extension from a post filename.
func slugFromFilename(name string) string {
	name = strings.TrimSuffix(name, document.Extension)
	if len(name) > len(document.DateLayout)+1 && name[len(document.DateLayout)] == '-' {
		return name[len(document.DateLayout)+1:]
	}
	return name
}

func (m *migrator) confirmDelete(path string) bool {
	for {
		fmt.Fprintf(m.out, "  DELETE %s? [y/N]: ", filepath.Base(path))
		input, err := m.in.ReadString('\n')
		if err != nil && input == "" {
			if err != io.EOF {
				m.log.Error("Reading input failed", logger.Error(err))
			}
			return false
		}
		response := strings.ToLower(strings.TrimSpace(input))
		switch response {
		case "y", "yes":
			return true
		case "", "n", "no":
			return false
		default:
			fmt.Fprintln(m.out, "  Please enter y or n.")
		}
	}
}
