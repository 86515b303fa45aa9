package search

import (
	"testing"

	"github.com/starford/keycat/internal/models"
)

func entries(keys ...string) []models.Entry {
	out := make([]models.Entry, len(keys))
	for i, k := range keys {
		out[i] = models.NewEntry(k, "")
	}
	return out
}

func keys(es []models.Entry) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.Key
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestRank_FuzzyKey(t *testing.T) {
	es := entries("apple", "appetizer", "banana")
	got := keys(Rank(es, "app", FieldKey))
	if len(got) != 2 || !contains(got, "apple") || !contains(got, "appetizer") {
		t.Errorf("Rank = %v, want apple and appetizer only", got)
	}
}

func TestRank_EmptyQueryKeepsOrder(t *testing.T) {
	es := entries("apple", "appetizer", "banana")
	got := keys(Rank(es, "", FieldKey))
	if len(got) != 3 || got[0] != "apple" || got[1] != "appetizer" || got[2] != "banana" {
		t.Errorf("Rank = %v", got)
	}
}

func TestRank_DoesNotReorderInput(t *testing.T) {
	es := entries("zzz-app", "app")
	_ = Rank(es, "app", FieldKey)
	if es[0].Key != "zzz-app" || es[1].Key != "app" {
		t.Errorf("input reordered: %v", keys(es))
	}
}

func TestRank_TiesKeepCatalogOrder(t *testing.T) {
	es := entries("copy", "other", "copy", "copy")
	ranked := Rank(es, "copy", FieldKey)
	if len(ranked) != 3 {
		t.Fatalf("len = %d, want 3", len(ranked))
	}
	if ranked[0].ID != es[0].ID || ranked[1].ID != es[2].ID || ranked[2].ID != es[3].ID {
		t.Error("equal scores must keep catalog order")
	}
}

func TestRank_DescriptionField(t *testing.T) {
	es := []models.Entry{
		models.NewEntry("k1", "opens the file picker"),
		models.NewEntry("k2", "closes everything"),
	}
	got := keys(Rank(es, "picker", FieldDescription))
	if len(got) != 1 || got[0] != "k1" {
		t.Errorf("Rank = %v, want [k1]", got)
	}
	if got := Rank(es, "picker", FieldKey); len(got) != 0 {
		t.Errorf("key field should not match descriptions: %v", keys(got))
	}
}

func TestRank_ExtendingQueryOnlyNarrows(t *testing.T) {
	es := entries("save", "save as", "search", "settings", "paste")
	short := keys(Rank(es, "s", FieldKey))
	long := keys(Rank(es, "sa", FieldKey))
	for _, k := range long {
		if !contains(short, k) {
			t.Errorf("%q matched the longer query but not the prefix", k)
		}
	}
}

func TestRank_PrefixMatchesFirst(t *testing.T) {
	es := entries("close tab", "ctrl+c", "ctrl+v")
	for _, q := range []string{"c", "ct", "ctr", "ctrl+"} {
		got := keys(Rank(es, q, FieldKey))
		if len(got) < 2 || got[0] != "ctrl+c" || got[1] != "ctrl+v" {
			t.Errorf("Rank(%q) = %v, want ctrl+c and ctrl+v first", q, got)
		}
	}
	got := keys(Rank(es, "tab", FieldKey))
	if len(got) == 0 || got[0] != "close tab" {
		t.Errorf("Rank(tab) = %v, want close tab first", got)
	}
}

func position(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

func TestRank_ExtendingPrefixNeverDemotes(t *testing.T) {
	words := []string{
		"close tab", "ctrl+c", "ctrl+v", "copy", "cut", "apple", "appetizer",
		"app switcher", "paste", "paste special", "save", "save as", "search", "settings",
	}
	es := entries(words...)
	for _, w := range words {
		for n := 1; n < len(w); n++ {
			q, longer := w[:n], w[:n+1]
			before := keys(Rank(es, q, FieldKey))
			after := keys(Rank(es, longer, FieldKey))
			for _, x := range after {
				if len(x) < len(longer) || x[:len(longer)] != longer {
					continue
				}
				for _, y := range after {
					if position(before, x) < position(before, y) && position(after, x) > position(after, y) {
						t.Errorf("%q: %q fell below %q going from %q to %q", w, x, y, q, longer)
					}
				}
			}
		}
	}
}

func TestRanker_CustomScorer(t *testing.T) {
	exact := func(query string, targets []string) []Match {
		var out []Match
		for i, s := range targets {
			if s == query {
				out = append(out, Match{Index: i, Score: 1})
			} else if len(s) > 0 && s[0] == query[0] {
				out = append(out, Match{Index: i, Score: 0})
			}
		}
		return out
	}
	r := Ranker{Scorer: exact}
	got := keys(r.Rank(entries("ab", "a", "b"), "a", FieldKey))
	if len(got) != 2 || got[0] != "a" || got[1] != "ab" {
		t.Errorf("Rank = %v, want [a ab]", got)
	}
}

func TestParseField(t *testing.T) {
	for in, want := range map[string]Field{"key": FieldKey, "": FieldKey, "Description": FieldDescription, "desc": FieldDescription} {
		got, err := ParseField(in)
		if err != nil || got != want {
			t.Errorf("ParseField(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseField("title"); err == nil {
		t.Error("expected error for unknown field")
	}
}
