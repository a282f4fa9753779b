package search

import (
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/egoavara/plugforge/internal/plugin"
)

// Result is a reference with its fuzzy score
type Result struct {
	Reference plugin.Reference
	Matched   bool // false when the fuzzy matcher did not match the query
	Score     int  // Higher is better, only meaningful when Matched
}

// searchable wraps references for fuzzy searching
type searchable []plugin.Reference

// String returns the searchable string for a reference
func (s searchable) String(i int) string {
	ref := s[i]
	parts := []string{ref.Name}

	if ref.Description != "" {
		parts = append(parts, ref.Description)
	}

	parts = append(parts, ref.Tags...)

	return strings.ToLower(strings.Join(parts, " "))
}

// Len returns the number of references
func (s searchable) Len() int {
	return len(s)
}

// Rank orders refs for display. References the fuzzy matcher scores come
// first, best score first; the rest keep their index order after them.
func Rank(refs []plugin.Reference, query string) []Result {
	results := make([]Result, 0, len(refs))
	query = strings.ToLower(strings.TrimSpace(query))

	if query == "" {
		for _, ref := range refs {
			results = append(results, Result{Reference: ref, Matched: true})
		}
		return results
	}

	matches := fuzzy.FindFrom(query, searchable(refs))
	scored := make(map[int]bool, len(matches))
	for _, match := range matches {
		scored[match.Index] = true
		results = append(results, Result{
			Reference: refs[match.Index],
			Matched:   true,
			Score:     match.Score,
		})
	}

	// Sort by score (descending), index order on ties
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	for i, ref := range refs {
		if !scored[i] {
			results = append(results, Result{Reference: ref})
		}
	}

	return results
}
