// Package search provides the FAQ index behind the support auto-responder.
// The index is built once from question/answer entries (usually parsed from a
// Markdown FAQ, see ParseMarkdown) and is read-only afterwards, so it is safe
// for concurrent use.
//
// Matching is token based: text is case-folded with golang.org/x/text/cases,
// split into letter/number words, stripped of stop words, and compared with
// Jaccard similarity. The question counts more than the answer:
//
//	score = 0.7·J(query, question) + 0.3·J(query, question ∪ answer)
package search

import (
	"bytes"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// Entry is one FAQ item.
type Entry struct {
	Question string
	Answer   string
}

// Result is a ranked entry with its similarity score in [0, 1].
type Result struct {
	Entry Entry
	Score float64
}

// Index is the read-only FAQ lookup.
type Index interface {
	TopK(query string, k int) []Result
	Len() int
}

// Option configures index construction.
type Option func(*config)

type config struct {
	stopwords  map[string]struct{}
	maxEntries int
}

// DefaultStopwords are dropped from queries and entries unless overridden.
var DefaultStopwords = []string{
	"a", "an", "and", "are", "can", "do", "does", "for", "how", "i", "in", "is",
	"it", "me", "my", "of", "on", "or", "the", "to", "what", "when", "where", "with", "you", "your",
}

func defaultConfig() config {
	c := config{}
	WithStopwords(DefaultStopwords)(&c)
	return c
}

// WithStopwords replaces the stop-word list. An empty list disables removal.
func WithStopwords(words []string) Option {
	return func(c *config) {
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			w = fold(strings.TrimSpace(w))
			if w != "" {
				m[w] = struct{}{}
			}
		}
		if len(m) == 0 {
			m = nil
		}
		c.stopwords = m
	}
}

// WithMaxEntries caps the number of indexed entries.
func WithMaxEntries(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

type doc struct {
	entry    Entry
	question map[string]struct{}
	all      map[string]struct{}
}

type index struct {
	cfg  config
	docs []doc
}

// NewIndexFromMarkdown parses the FAQ at path and indexes it.
func NewIndexFromMarkdown(path string, opts ...Option) (Index, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return &index{cfg: defaultConfig()}, err
	}
	return NewIndexFromReader(bytes.NewReader(b), opts...)
}

// NewIndexFromReader parses a Markdown FAQ from r and indexes it.
func NewIndexFromReader(r io.Reader, opts ...Option) (Index, error) {
	entries, err := ParseMarkdown(r)
	if err != nil {
		return &index{cfg: defaultConfig()}, err
	}
	return NewIndex(entries, opts...), nil
}

// NewIndex indexes entries directly. Entries without a question or an
// answer are skipped.
func NewIndex(entries []Entry, opts ...Option) Index {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	docs := make([]doc, 0, len(entries))
	for _, e := range entries {
		e.Question = strings.TrimSpace(e.Question)
		e.Answer = strings.TrimSpace(e.Answer)
		if e.Question == "" || e.Answer == "" {
			continue
		}
		q := tokenize(e.Question, cfg.stopwords)
		if len(q) == 0 {
			continue
		}
		all := tokenize(e.Question+" "+e.Answer, cfg.stopwords)
		docs = append(docs, doc{entry: e, question: q, all: all})
		if cfg.maxEntries > 0 && len(docs) >= cfg.maxEntries {
			break
		}
	}
	return &index{cfg: cfg, docs: docs}
}

func (i *index) Len() int { return len(i.docs) }

// TopK returns up to k entries with a positive score, best first. Ties keep
// the shorter answer first, then the FAQ order.
func (i *index) TopK(query string, k int) []Result {
	if len(i.docs) == 0 || strings.TrimSpace(query) == "" {
		return nil
	}
	if k <= 0 {
		k = 3
	}
	q := tokenize(query, i.cfg.stopwords)
	if len(q) == 0 {
		return nil
	}

	out := make([]Result, 0, min(k*4, len(i.docs)))
	for _, d := range i.docs {
		score := 0.7*jaccard(q, d.question) + 0.3*jaccard(q, d.all)
		if score <= 0 {
			continue
		}
		out = append(out, Result{Entry: d.entry, Score: score})
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Score != out[b].Score {
			return out[a].Score > out[b].Score
		}
		return len(out[a].Entry.Answer) < len(out[b].Entry.Answer)
	})
	if k < len(out) {
		out = out[:k]
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

var wordRE = regexp.MustCompile(`[\p{L}\p{N}]+`)

// fold applies Unicode case folding ("Straße" and "STRASSE" compare equal).
func fold(s string) string { return cases.Fold().String(s) }

func tokenize(s string, stop map[string]struct{}) map[string]struct{} {
	words := wordRE.FindAllString(fold(s), -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if _, skip := stop[w]; skip {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	over := 0
	for k := range small {
		if _, ok := large[k]; ok {
			over++
		}
	}
	if over == 0 {
		return 0
	}
	return float64(over) / float64(len(a)+len(b)-over)
}
