package catalog

import (
	"math/rand/v2"
	"strings"
	"unicode"
	"unicode/utf8"
)

// SelectorOptions tunes how aggressively recently covered topics are skipped.
type SelectorOptions struct {
	// OverlapThreshold is the share of a topic's significant words that may also
	// appear in a single recent title before the topic counts as recently covered.
	OverlapThreshold float64
	// MinAvailable is the smallest set of fresh topics worth drawing from; below
	// it the whole pool is used and repetition is accepted.
	MinAvailable int
	// MinWordLength is the shortest word (in runes) treated as significant.
	MinWordLength int
}

// DefaultSelectorOptions returns the standard policy: words longer than four
// characters, 40% overlap, at least six fresh topics.
func DefaultSelectorOptions() SelectorOptions {
	return SelectorOptions{
		OverlapThreshold: 0.4,
		MinAvailable:     6,
		MinWordLength:    5,
	}
}

// Selector picks a topic and an image for a run.
type Selector struct {
	catalog *Catalog
	opts    SelectorOptions
	rng     *rand.Rand
}

// NewSelector creates a Selector. A nil rng uses a randomly seeded source.
func NewSelector(c *Catalog, opts SelectorOptions, rng *rand.Rand) *Selector {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Selector{catalog: c, opts: opts, rng: rng}
}

// SelectTopic returns the topic for this run. A non-empty override is matched
// against the pool (case-insensitive substring in either direction) and becomes an
// ad-hoc topic in the default category when nothing matches. Without an override
// a topic is drawn from those not recently covered.
func (s *Selector) SelectTopic(override string, recentTitles []string) Topic {
	if override = strings.TrimSpace(override); override != "" {
		return s.matchOverride(override)
	}

	eligible := s.Available(recentTitles)
	if len(eligible) < s.opts.MinAvailable {
		eligible = s.catalog.Topics
	}
	return eligible[s.rng.IntN(len(eligible))]
}

func (s *Selector) matchOverride(override string) Topic {
	needle := strings.ToLower(override)
	for _, t := range s.catalog.Topics {
		text := strings.ToLower(t.Text)
		if strings.Contains(text, needle) || strings.Contains(needle, text) {
			return t
		}
	}
	return Topic{
		Text:     override,
		Category: s.catalog.DefaultCategory,
		Featured: false,
	}
}

// Available returns the pool topics that do not overlap any recent title.
func (s *Selector) Available(recentTitles []string) []Topic {
	if len(recentTitles) == 0 {
		return s.catalog.Topics
	}

	recent := make([]map[string]struct{}, 0, len(recentTitles))
	for _, title := range recentTitles {
		words := s.significantWords(title)
		set := make(map[string]struct{}, len(words))
		for _, w := range words {
			set[w] = struct{}{}
		}
		recent = append(recent, set)
	}

	available := make([]Topic, 0, len(s.catalog.Topics))
	for _, t := range s.catalog.Topics {
		if !s.coveredBy(t, recent) {
			available = append(available, t)
		}
	}
	return available
}

// IsRecent reports whether topic overlaps any of the given titles.
func (s *Selector) IsRecent(topic Topic, recentTitles []string) bool {
	for _, title := range recentTitles {
		if s.Overlap(topic.Text, title) > s.opts.OverlapThreshold {
			return true
		}
	}
	return false
}

// Overlap is the fraction of candidate's significant words that also occur in
// title. A candidate with no significant words has zero overlap.
func (s *Selector) Overlap(candidate, title string) float64 {
	words := s.significantWords(candidate)
	if len(words) == 0 {
		return 0
	}
	set := make(map[string]struct{})
	for _, w := range s.significantWords(title) {
		set[w] = struct{}{}
	}
	return overlapRatio(words, set)
}

func (s *Selector) coveredBy(t Topic, recent []map[string]struct{}) bool {
	words := s.significantWords(t.Text)
	if len(words) == 0 {
		return false
	}
	for _, set := range recent {
		if overlapRatio(words, set) > s.opts.OverlapThreshold {
			return true
		}
	}
	return false
}

func overlapRatio(words []string, set map[string]struct{}) float64 {
	matches := 0
	for _, w := range words {
		if _, ok := set[w]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(words))
}

func (s *Selector) significantWords(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	words := make([]string, 0, len(fields))
	for _, f := range fields {
		w := strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if utf8.RuneCountInString(w) >= s.opts.MinWordLength {
			words = append(words, w)
		}
	}
	return words
}

// SelectImage returns an image for category, preferring URLs not in recentImages.
// Unknown categories use the default category's list; when every candidate was
// used recently the exclusion is dropped.
func (s *Selector) SelectImage(category string, recentImages []string) string {
	candidates := s.catalog.ImagesFor(category)
	if len(candidates) == 0 {
		return ""
	}

	used := make(map[string]struct{}, len(recentImages))
	for _, u := range recentImages {
		used[u] = struct{}{}
	}
	fresh := make([]string, 0, len(candidates))
	for _, u := range candidates {
		if _, ok := used[u]; !ok {
			fresh = append(fresh, u)
		}
	}
	if len(fresh) == 0 {
		fresh = candidates
	}
	return fresh[s.rng.IntN(len(fresh))]
}
