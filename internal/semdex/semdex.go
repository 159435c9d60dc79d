// Package semdex implements the semantic search capability over an
// in-memory vector index of verse embeddings. Query embedding goes through
// an OpenAI-compatible endpoint via langchaingo.
package semdex

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/averros/semquery/internal/conf"
	"github.com/averros/semquery/internal/errors"
	"github.com/averros/semquery/internal/logging"
	"github.com/averros/semquery/internal/search"
)

// Document is one indexed verse: a stable reference, its text, and its
// embedding vector.
type Document struct {
	Ref    string    `json:"ref"`
	Text   string    `json:"text"`
	Vector []float32 `json:"vector,omitempty"`
}

// Embedder is the subset of langchaingo's embedder the index needs.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// Index holds per-model document vectors and answers semantic searches.
type Index struct {
	mu       sync.RWMutex
	models   map[string][]Document
	embedder Embedder
	log      *slog.Logger
}

// New creates an index over the given embedder.
func New(embedder Embedder) *Index {
	log := logging.ForService("semdex")
	if log == nil {
		log = slog.Default().With("service", "semdex")
	}
	return &Index{
		models:   make(map[string][]Document),
		embedder: embedder,
		log:      log,
	}
}

// NewFromConfig creates an index backed by an OpenAI-compatible embeddings
// endpoint. Local services that skip authentication get a placeholder token.
func NewFromConfig(cfg *conf.EmbeddingConfig) (*Index, error) {
	client, err := openai.New(
		openai.WithBaseURL(cfg.Host),
		openai.WithToken("none"),
		openai.WithEmbeddingModel(cfg.Model),
	)
	if err != nil {
		return nil, embeddingError(fmt.Errorf("creating embedding client: %w", err), cfg.Host)
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, embeddingError(fmt.Errorf("creating embedder: %w", err), cfg.Host)
	}

	return New(embedder), nil
}

// AddModel registers pre-embedded documents under a model name, replacing
// any existing set for that model.
func (ix *Index) AddModel(model string, docs []Document) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.models[model] = docs
}

// Models returns the registered model names.
func (ix *Index) Models() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	names := make([]string, 0, len(ix.models))
	for name := range ix.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IndexDocuments embeds the documents' text in one batch and registers them
// under the model name.
func (ix *Index) IndexDocuments(ctx context.Context, model string, docs []Document) error {
	texts := make([]string, len(docs))
	for i := range docs {
		texts[i] = docs[i].Text
	}

	vectors, err := ix.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return embeddingError(fmt.Errorf("embedding %d documents: %w", len(docs), err), model)
	}
	if len(vectors) != len(docs) {
		return embeddingError(fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), len(docs)), model)
	}

	indexed := make([]Document, len(docs))
	for i := range docs {
		indexed[i] = docs[i]
		indexed[i].Vector = vectors[i]
	}
	ix.AddModel(model, indexed)
	ix.log.Info("documents indexed", "model", model, "documents", len(indexed))
	return nil
}

// SemanticSearch implements search.Searcher: it embeds the term and ranks
// the model's documents by cosine similarity. A zero limit returns every
// hit above the threshold.
func (ix *Index) SemanticSearch(ctx context.Context, term, model string, limit int, threshold float64) ([]search.Hit, error) {
	ix.mu.RLock()
	docs, ok := ix.models[model]
	ix.mu.RUnlock()
	if !ok {
		return nil, errors.Newf("unknown embedding model %q", model).
			Component("semdex").
			Category(errors.CategorySearch).
			Context("model", model).
			Build()
	}

	queryVector, err := ix.embedder.EmbedQuery(ctx, strings.TrimSpace(term))
	if err != nil {
		return nil, embeddingError(fmt.Errorf("embedding query %q: %w", term, err), model)
	}

	hits := make([]search.Hit, 0, len(docs))
	for i := range docs {
		similarity := cosineSimilarity(queryVector, docs[i].Vector)
		if similarity < threshold {
			continue
		}
		hits = append(hits, search.Hit{
			ID:          docs[i].Ref,
			Text:        docs[i].Text,
			Similarity:  similarity,
			SourceQuery: term,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Similarity > hits[j].Similarity
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// cosineSimilarity computes the cosine of the angle between two vectors,
// clamped to [0, 1]. Mismatched or zero-length vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	similarity := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if similarity < 0 {
		return 0
	}
	if similarity > 1 {
		return 1
	}
	return similarity
}

func embeddingError(err error, context string) error {
	return errors.New(err).
		Component("semdex").
		Category(errors.CategoryEmbedding).
		Context("endpoint_or_model", context).
		Build()
}
