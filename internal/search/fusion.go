package search

import (
	"sort"
)

// ExpansionBoost is the fixed similarity increment applied to a fused hit
// retained from an expansion term rather than the literal query.
const ExpansionBoost = 0.1

// Fuse merges the per-term hit lists into one deduplicated, boosted,
// ranked list. It is pure: deterministic for a given input map regardless
// of how the per-term searches completed, and it performs no I/O.
//
// Hits are grouped by result identity; each group keeps the hit with the
// highest similarity, ties keeping the first encountered in term order
// (terms are processed in sorted order to make "first" well defined). A
// group whose retained hit came from a term other than originalQuery gets a
// single boost of ExpansionBoost, clamped to 1.0. The result is sorted by
// similarity descending with a stable tie-break and truncated to limit; a
// zero or negative limit deliberately returns everything.
func Fuse(hitsByTerm map[string][]Hit, originalQuery string, limit int) []Hit {
	terms := make([]string, 0, len(hitsByTerm))
	for term := range hitsByTerm {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	var flattened []Hit
	for _, term := range terms {
		for _, hit := range hitsByTerm[term] {
			if hit.SourceQuery == "" {
				hit.SourceQuery = term
			}
			flattened = append(flattened, hit)
		}
	}

	// Group by result identity, keeping the highest-similarity hit.
	retainedByID := make(map[string]int)
	var fused []Hit
	for _, hit := range flattened {
		i, exists := retainedByID[hit.ID]
		if !exists {
			retainedByID[hit.ID] = len(fused)
			fused = append(fused, hit)
			continue
		}
		if hit.Similarity > fused[i].Similarity {
			fused[i] = hit
		}
	}

	// Boost groups retained from an expansion term rather than the
	// literal query.
	for i := range fused {
		if fused[i].SourceQuery != originalQuery {
			fused[i].Similarity = clamp(fused[i].Similarity + ExpansionBoost)
			fused[i].Boosted = true
		} else {
			fused[i].Boosted = false
		}
	}

	sort.SliceStable(fused, func(i, j int) bool {
		return fused[i].Similarity > fused[j].Similarity
	})

	if limit > 0 && len(fused) > limit {
		return fused[:limit]
	}
	// Zero limit means no truncation.
	return fused
}

func clamp(similarity float64) float64 {
	if similarity > 1.0 {
		return 1.0
	}
	return similarity
}
