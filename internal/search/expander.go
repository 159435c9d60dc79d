package search

import (
	"strings"

	"github.com/averros/semquery/internal/ontology"
)

// ConceptLookup resolves a keyword to a concept. Satisfied by
// *ontology.Store.
type ConceptLookup interface {
	Find(keyword string) (ontology.Concept, bool)
}

// Expander derives the set of equivalent search terms for a query from the
// concept graph.
type Expander struct {
	store ConceptLookup
}

// NewExpander creates an expander over the given concept lookup.
func NewExpander(store ConceptLookup) *Expander {
	return &Expander{store: store}
}

// Expand returns the expansion set for a query. A direct concept match
// yields the concept's label, synonyms and related references. When no
// single concept matches, every whitespace-delimited word is expanded and
// the matches unioned. When nothing matches at all, the set degenerates to
// the original query so the fan-out never runs empty. The set is
// de-duplicated; order follows the concept graph and is stable for a given
// graph state.
func (e *Expander) Expand(query string) []string {
	if concept, ok := e.store.Find(query); ok {
		return conceptTerms(&concept, nil, make(map[string]struct{}))
	}

	var terms []string
	seen := make(map[string]struct{})
	for _, word := range strings.Fields(query) {
		concept, ok := e.store.Find(word)
		if !ok {
			continue
		}
		terms = conceptTerms(&concept, terms, seen)
	}

	if len(terms) == 0 {
		return []string{query}
	}
	return terms
}

// conceptTerms appends the concept's label, synonyms and related references
// to terms, skipping blanks and duplicates.
func conceptTerms(c *ontology.Concept, terms []string, seen map[string]struct{}) []string {
	add := func(term string) {
		term = strings.TrimSpace(term)
		if term == "" {
			return
		}
		if _, dup := seen[term]; dup {
			return
		}
		seen[term] = struct{}{}
		terms = append(terms, term)
	}

	add(c.Label)
	for _, syn := range c.Synonyms {
		add(syn)
	}
	for _, rel := range c.Related {
		add(rel)
	}
	return terms
}
