package search

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/averros/semquery/internal/conf"
	"github.com/averros/semquery/internal/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// searcherFunc adapts a function to the Searcher interface.
type searcherFunc func(ctx context.Context, term, model string, limit int, threshold float64) ([]Hit, error)

func (f searcherFunc) SemanticSearch(ctx context.Context, term, model string, limit int, threshold float64) ([]Hit, error) {
	return f(ctx, term, model, limit, threshold)
}

func testSearchConfig() *conf.SearchConfig {
	return &conf.SearchConfig{
		DefaultModel:   "word2vec",
		DefaultLimit:   10,
		Threshold:      0.5,
		MaxConcurrency: 4,
	}
}

func newTestEngine(searcher Searcher) *Engine {
	return NewEngine(patienceGraph(), searcher, testSearchConfig(), nil)
}

func TestSearchExpandsFansOutAndFuses(t *testing.T) {
	byTerm := map[string][]Hit{
		"Sabar": {{ID: "2:153", Text: "patience and prayer", Similarity: 0.80}},
		"tabah": {{ID: "2:153", Similarity: 0.75}, {ID: "3:200", Similarity: 0.70}},
		"ridha": {{ID: "13:28", Similarity: 0.65}},
	}
	var mu sync.Mutex
	searched := make(map[string]int)

	engine := newTestEngine(searcherFunc(func(ctx context.Context, term, model string, limit int, threshold float64) ([]Hit, error) {
		mu.Lock()
		searched[term]++
		mu.Unlock()
		assert.Equal(t, "word2vec", model)
		assert.Equal(t, 10, limit)
		assert.InDelta(t, 0.5, threshold, 1e-9)
		return byTerm[term], nil
	}))

	resp, err := engine.Search(context.Background(), Request{Query: "sabar"})
	require.NoError(t, err)

	assert.Equal(t, []string{"Sabar", "tabah", "ridha"}, resp.ExpandedQueries)
	assert.Equal(t, map[string]int{"Sabar": 1, "tabah": 1, "ridha": 1}, searched)

	require.Equal(t, 3, resp.Total)
	// "sabar" never matches any hit's source term here, so all survive
	// fusion boosted.
	for _, hit := range resp.Results {
		assert.True(t, hit.Boosted, "hit %s", hit.ID)
	}
	assert.Equal(t, "2:153", resp.Results[0].ID)
	assert.InDelta(t, 0.90, resp.Results[0].Similarity, 1e-9)
}

func TestSearchEmptyQueryFails(t *testing.T) {
	engine := newTestEngine(searcherFunc(func(ctx context.Context, term, model string, limit int, threshold float64) ([]Hit, error) {
		t.Fatal("searcher must not be called for an empty query")
		return nil, nil
	}))

	_, err := engine.Search(context.Background(), Request{Query: "   "})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyQuery))
}

func TestSearchRequestOverridesDefaults(t *testing.T) {
	engine := newTestEngine(searcherFunc(func(ctx context.Context, term, model string, limit int, threshold float64) ([]Hit, error) {
		assert.Equal(t, "openai", model)
		assert.Equal(t, 3, limit)
		assert.InDelta(t, 0.8, threshold, 1e-9)
		return nil, nil
	}))

	resp, err := engine.Search(context.Background(), Request{
		Query:     "sabar",
		Model:     "openai",
		Limit:     3,
		Threshold: 0.8,
	})
	require.NoError(t, err)
	assert.Equal(t, "openai", resp.Model)
}

func TestSearchNegativeLimitReturnsAllResults(t *testing.T) {
	cfg := testSearchConfig()
	cfg.DefaultLimit = 1

	hits := []Hit{
		{ID: "a", Similarity: 0.9},
		{ID: "b", Similarity: 0.8},
		{ID: "c", Similarity: 0.7},
	}
	engine := NewEngine(patienceGraph(), searcherFunc(func(ctx context.Context, term, model string, limit int, threshold float64) ([]Hit, error) {
		if term != "Sabar" {
			return nil, nil
		}
		return hits, nil
	}), cfg, nil)

	// The zero value defers to the configured default.
	resp, err := engine.Search(context.Background(), Request{Query: "sabar"})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Total)

	// A negative limit is the explicit unlimited request.
	resp, err = engine.Search(context.Background(), Request{Query: "sabar", Limit: -1})
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Total)
}

func TestSearchSingleTermFailureIsAbsorbed(t *testing.T) {
	engine := newTestEngine(searcherFunc(func(ctx context.Context, term, model string, limit int, threshold float64) ([]Hit, error) {
		if term == "tabah" {
			return nil, errors.NewStd("backend exploded")
		}
		return []Hit{{ID: "v:" + term, Similarity: 0.7}}, nil
	}))

	resp, err := engine.Search(context.Background(), Request{Query: "sabar"})
	require.NoError(t, err)

	// Two of three terms contributed; the failing one is simply absent.
	assert.Equal(t, 2, resp.Total)
	for _, hit := range resp.Results {
		assert.NotEqual(t, "v:tabah", hit.ID)
	}
}

func TestSearchAllTermsFailingFails(t *testing.T) {
	engine := newTestEngine(searcherFunc(func(ctx context.Context, term, model string, limit int, threshold float64) ([]Hit, error) {
		return nil, errors.NewStd("backend down")
	}))

	resp, err := engine.Search(context.Background(), Request{Query: "sabar"})
	require.Error(t, err)

	var enhanced *errors.EnhancedError
	require.True(t, errors.As(err, &enhanced))
	assert.Equal(t, errors.CategorySearch, enhanced.Category)

	// The response still identifies what was attempted.
	require.NotNil(t, resp)
	assert.Equal(t, []string{"Sabar", "tabah", "ridha"}, resp.ExpandedQueries)
	assert.Empty(t, resp.Results)
}

func TestSearchFailureCarriesPartialTrace(t *testing.T) {
	engine := newTestEngine(searcherFunc(func(ctx context.Context, term, model string, limit int, threshold float64) ([]Hit, error) {
		return nil, errors.NewStd("backend down")
	}))

	resp, err := engine.Search(context.Background(), Request{Query: "sabar", Trace: true})
	require.Error(t, err)
	require.NotNil(t, resp)
	require.NotNil(t, resp.Trace)

	assert.NotEmpty(t, resp.Trace.Error)
	assert.NotEmpty(t, resp.Trace.Logs)

	names := make([]string, 0, len(resp.Trace.Steps))
	for _, step := range resp.Trace.Steps {
		names = append(names, step.Name)
	}
	assert.Contains(t, names, "expansion")
	assert.Contains(t, names, "fanout")
}

func TestSearchTraceStats(t *testing.T) {
	engine := newTestEngine(searcherFunc(func(ctx context.Context, term, model string, limit int, threshold float64) ([]Hit, error) {
		if term == "Sabar" {
			return []Hit{{ID: "2:153", Similarity: 0.8}}, nil
		}
		return []Hit{{ID: "2:153", Similarity: 0.6}}, nil
	}))

	resp, err := engine.Search(context.Background(), Request{Query: "sabar", Trace: true})
	require.NoError(t, err)
	require.NotNil(t, resp.Trace)

	stats := resp.Trace.Stats
	assert.Equal(t, 3, stats.TotalQueries)
	assert.Equal(t, 3, stats.TotalInitialResults)
	assert.Equal(t, 1, stats.FinalResults)
	assert.NotEmpty(t, resp.Trace.ID)
	assert.Empty(t, resp.Trace.Error)
}

func TestSearchWithoutTraceOmitsTrace(t *testing.T) {
	engine := newTestEngine(searcherFunc(func(ctx context.Context, term, model string, limit int, threshold float64) ([]Hit, error) {
		return nil, nil
	}))

	resp, err := engine.Search(context.Background(), Request{Query: "sabar"})
	require.NoError(t, err)
	assert.Nil(t, resp.Trace)
}

func TestSearchUnknownQuerySearchesItself(t *testing.T) {
	var mu sync.Mutex
	var terms []string
	engine := newTestEngine(searcherFunc(func(ctx context.Context, term, model string, limit int, threshold float64) ([]Hit, error) {
		mu.Lock()
		terms = append(terms, term)
		mu.Unlock()
		return []Hit{{ID: "9:1", Similarity: 0.6}}, nil
	}))

	resp, err := engine.Search(context.Background(), Request{Query: "xyz123"})
	require.NoError(t, err)
	assert.Equal(t, []string{"xyz123"}, terms)
	assert.Equal(t, []string{"xyz123"}, resp.ExpandedQueries)

	// The degenerate set contains only the literal query: no boost.
	require.Equal(t, 1, resp.Total)
	assert.False(t, resp.Results[0].Boosted)
}

func TestSearchConcurrencyLimitIsRespected(t *testing.T) {
	cfg := testSearchConfig()
	cfg.MaxConcurrency = 1

	var mu sync.Mutex
	inFlight, maxInFlight := 0, 0

	engine := NewEngine(patienceGraph(), searcherFunc(func(ctx context.Context, term, model string, limit int, threshold float64) ([]Hit, error) {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()

		mu.Lock()
		inFlight--
		mu.Unlock()
		return nil, nil
	}), cfg, nil)

	_, err := engine.Search(context.Background(), Request{Query: "sabar"})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, maxInFlight)
}
