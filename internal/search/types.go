// Package search implements ontology-driven query expansion, parallel
// fan-out to a semantic search backend, and deterministic result fusion.
package search

import (
	"context"

	"github.com/averros/semquery/internal/errors"
)

// ErrEmptyQuery is returned when a caller submits blank search text.
var ErrEmptyQuery = errors.NewStd("search query must not be empty")

// Hit is one result returned by a semantic search backend. Payload fields
// are opaque to the engine and carried through fusion unchanged.
type Hit struct {
	ID          string         `json:"id"`
	Text        string         `json:"text,omitempty"`
	Similarity  float64        `json:"similarity"`
	SourceQuery string         `json:"sourceQuery"`
	Boosted     bool           `json:"boosted"`
	Payload     map[string]any `json:"payload,omitempty"`
}

// Searcher is the external semantic search capability consumed by the
// engine. The engine does not interpret model beyond passing it through; a
// zero limit and threshold defer to backend-side configuration.
type Searcher interface {
	SemanticSearch(ctx context.Context, term, model string, limit int, threshold float64) ([]Hit, error)
}
