// Package search ranks catalog entries against a live query.
package search

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/starford/keycat/internal/models"
)

// Field selects which part of an entry is matched.
type Field int

// Searchable fields.
const (
	FieldKey Field = iota
	FieldDescription
)

// String returns the config/CLI name of the field.
func (f Field) String() string {
	switch f {
	case FieldKey:
		return "key"
	case FieldDescription:
		return "description"
	default:
		return fmt.Sprintf("field(%d)", int(f))
	}
}

// ParseField parses a field name ("key", "description" or "desc").
func ParseField(s string) (Field, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "key":
		return FieldKey, nil
	case "description", "desc":
		return FieldDescription, nil
	default:
		return FieldKey, fmt.Errorf("search: unknown field %q", s)
	}
}

// Match is one scored candidate. Index points into the ranked slice.
type Match struct {
	Index int
	Score int
}

// Scorer returns the targets that match query, in any order. Targets that do
// not match must be left out.
type Scorer func(query string, targets []string) []Match

// Ranker orders entries with a pluggable Scorer.
type Ranker struct {
	Scorer Scorer
}

var defaultRanker = Ranker{Scorer: FuzzyScorer}

// Rank filters and orders entries with the default fuzzy scorer.
func Rank(entries []models.Entry, query string, field Field) []models.Entry {
	return defaultRanker.Rank(entries, query, field)
}

// Rank returns entries in catalog order for an empty query. Otherwise it drops
// entries that do not match and sorts the rest best first. The input slice is
// never reordered.
//
// Matches are grouped into tiers before the scorer's opinion counts: targets
// starting with the query, then targets containing it, then the remaining
// fuzzy matches. Within the prefix tier shorter targets come first, so typing
// more of an entry's prefix never drops it below an entry it already beat.
// Other tiers sort by score. Catalog order breaks every tie.
func (r Ranker) Rank(entries []models.Entry, query string, field Field) []models.Entry {
	if query == "" {
		return entries
	}
	targets := make([]string, len(entries))
	for i, e := range entries {
		targets[i] = fieldValue(e, field)
	}

	lowered := strings.ToLower(query)
	hits := make([]ranked, 0, len(entries))
	for _, m := range r.Scorer(query, targets) {
		hits = append(hits, rankOf(m, targets[m.Index], lowered))
	}
	slices.SortStableFunc(hits, func(a, b ranked) int {
		if a.tier != b.tier {
			return cmp.Compare(b.tier, a.tier)
		}
		if a.tier == tierPrefix {
			return cmp.Or(cmp.Compare(a.length, b.length), cmp.Compare(a.Index, b.Index))
		}
		return cmp.Or(cmp.Compare(b.Score, a.Score), cmp.Compare(a.Index, b.Index))
	})

	out := make([]models.Entry, 0, len(hits))
	for _, m := range hits {
		out = append(out, entries[m.Index])
	}
	return out
}

// Match tiers, best last.
const (
	tierFuzzy = iota
	tierSubstring
	tierPrefix
)

type ranked struct {
	Match
	tier   int
	length int
}

func rankOf(m Match, target, loweredQuery string) ranked {
	t := strings.ToLower(target)
	tier := tierFuzzy
	switch {
	case strings.HasPrefix(t, loweredQuery):
		tier = tierPrefix
	case strings.Contains(t, loweredQuery):
		tier = tierSubstring
	}
	return ranked{Match: m, tier: tier, length: len(target)}
}

// FuzzyScorer matches query as an in-order subsequence of each target using
// sahilm/fuzzy. Higher scores are better.
func FuzzyScorer(query string, targets []string) []Match {
	found := fuzzy.FindFrom(query, source(targets))
	out := make([]Match, len(found))
	for i, m := range found {
		out[i] = Match{Index: m.Index, Score: m.Score}
	}
	return out
}

type source []string

func (s source) String(i int) string { return s[i] }
func (s source) Len() int            { return len(s) }

func fieldValue(e models.Entry, field Field) string {
	if field == FieldDescription {
		return e.DescriptionRaw()
	}
	return e.Key
}
