package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/averros/semquery/internal/conf"
	"github.com/averros/semquery/internal/errors"
	"github.com/averros/semquery/internal/logging"
	"github.com/averros/semquery/internal/observability"
)

// Request is one search invocation. Zero Limit and Threshold defer to the
// configured defaults; a negative Limit requests the full fused result set
// with no truncation. Trace enables the execution trace in the response.
type Request struct {
	Query     string  `json:"query"`
	Model     string  `json:"model"`
	Limit     int     `json:"limit"`
	Threshold float64 `json:"threshold"`
	Trace     bool    `json:"trace"`
}

// Response is the fused, ranked outcome of one search request.
type Response struct {
	Query           string   `json:"query"`
	Model           string   `json:"model"`
	ExpandedQueries []string `json:"expandedQueries"`
	Results         []Hit    `json:"results"`
	Total           int      `json:"total"`
	Trace           *Trace   `json:"trace,omitempty"`
}

// Engine runs the full pipeline: expansion, parallel fan-out to the
// semantic search backend, and fusion.
type Engine struct {
	expander *Expander
	searcher Searcher
	metrics  *observability.SearchMetrics
	log      *slog.Logger

	defaultModel   string
	defaultLimit   int
	threshold      float64
	maxConcurrency int
}

// NewEngine wires the pipeline. metrics may be nil.
func NewEngine(store ConceptLookup, searcher Searcher, cfg *conf.SearchConfig, metrics *observability.SearchMetrics) *Engine {
	log := logging.ForService("search")
	if log == nil {
		log = slog.Default().With("service", "search")
	}
	return &Engine{
		expander:       NewExpander(store),
		searcher:       searcher,
		metrics:        metrics,
		log:            log,
		defaultModel:   cfg.DefaultModel,
		defaultLimit:   cfg.DefaultLimit,
		threshold:      cfg.Threshold,
		maxConcurrency: cfg.MaxConcurrency,
	}
}

// Search expands the query, searches every expansion term and fuses the
// results. A failing term is absorbed (its contribution is simply absent);
// only when every term fails does the search itself fail. When tracing is
// requested the response carries the trace even on failure.
func (e *Engine) Search(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	query := strings.TrimSpace(req.Query)
	if query == "" {
		e.metrics.RecordSearch("invalid", time.Since(start).Seconds())
		return nil, errors.New(ErrEmptyQuery).
			Component("search").
			Category(errors.CategoryValidation).
			Build()
	}

	model := req.Model
	if model == "" {
		model = e.defaultModel
	}
	limit := req.Limit
	switch {
	case limit == 0:
		limit = e.defaultLimit
	case limit < 0:
		// Explicit unlimited: fusion and the backend treat zero as no cap.
		limit = 0
	}
	threshold := req.Threshold
	if threshold == 0 {
		threshold = e.threshold
	}

	var recorder *TraceRecorder
	if req.Trace {
		recorder = NewTraceRecorder()
	}

	terms := e.expander.Expand(query)
	e.metrics.RecordExpansion(len(terms))
	recorder.Step("expansion", map[string]any{"query": query, "terms": terms})
	recorder.Logf("expanded %q into %d terms", query, len(terms))

	hitsByTerm, failedTerms := e.fanOut(ctx, terms, model, limit, threshold, recorder)

	if len(failedTerms) == len(terms) {
		err := errors.Newf("all %d expansion term searches failed: %v", len(terms), errors.Join(failedTerms...)).
			Component("search").
			Category(errors.CategorySearch).
			Context("query", query).
			Build()
		recorder.Fail(err)
		e.metrics.RecordSearch("error", time.Since(start).Seconds())

		resp := &Response{
			Query:           query,
			Model:           model,
			ExpandedQueries: terms,
			Trace:           recorder.Snapshot(),
		}
		return resp, err
	}

	initial := 0
	for _, hits := range hitsByTerm {
		initial += len(hits)
	}

	fused := Fuse(hitsByTerm, query, limit)
	boosted := 0
	for i := range fused {
		if fused[i].Boosted {
			boosted++
		}
	}
	e.metrics.RecordBoostedHits(boosted)
	recorder.Step("fusion", map[string]any{"initial": initial, "final": len(fused), "boosted": boosted})

	recorder.SetStats(TraceStats{
		TotalQueries:        len(terms),
		TotalInitialResults: initial,
		BoostedResults:      boosted,
		FinalResults:        len(fused),
		AverageSimilarity:   averageSimilarity(fused),
	})

	e.metrics.RecordSearch("ok", time.Since(start).Seconds())
	e.log.Debug("search completed",
		"query", query,
		"model", model,
		"terms", len(terms),
		"initial_results", initial,
		"final_results", len(fused),
		"duration_ms", time.Since(start).Milliseconds())

	return &Response{
		Query:           query,
		Model:           model,
		ExpandedQueries: terms,
		Results:         fused,
		Total:           len(fused),
		Trace:           recorder.Snapshot(),
	}, nil
}

// fanOut searches every expansion term, concurrently up to the configured
// limit. Term order in the result map carries no meaning; fusion is
// deterministic regardless of completion order.
func (e *Engine) fanOut(ctx context.Context, terms []string, model string, limit int, threshold float64, recorder *TraceRecorder) (map[string][]Hit, []error) {
	var mu sync.Mutex
	hitsByTerm := make(map[string][]Hit, len(terms))
	var failures []error

	g, gctx := errgroup.WithContext(ctx)
	if e.maxConcurrency > 0 {
		g.SetLimit(e.maxConcurrency)
	}

	for _, term := range terms {
		g.Go(func() error {
			termStart := time.Now()
			hits, err := e.searcher.SemanticSearch(gctx, term, model, limit, threshold)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				e.metrics.RecordTermError()
				e.log.Warn("expansion term search failed", "term", term, "error", err)
				recorder.Logf("term %q failed after %dms: %v", term, time.Since(termStart).Milliseconds(), err)
				failures = append(failures, fmt.Errorf("term %q: %w", term, err))
				// A single failing term never aborts the others.
				return nil
			}
			for i := range hits {
				hits[i].SourceQuery = term
			}
			hitsByTerm[term] = hits
			recorder.Logf("term %q returned %d hits in %dms", term, len(hits), time.Since(termStart).Milliseconds())
			return nil
		})
	}
	// Workers only return nil; Wait is for completion.
	_ = g.Wait()

	recorder.Step("fanout", map[string]any{
		"terms":    len(terms),
		"failed":   len(failures),
		"hit_sets": len(hitsByTerm),
	})
	return hitsByTerm, failures
}

func averageSimilarity(hits []Hit) float64 {
	if len(hits) == 0 {
		return 0
	}
	var sum float64
	for i := range hits {
		sum += hits[i].Similarity
	}
	return sum / float64(len(hits))
}
