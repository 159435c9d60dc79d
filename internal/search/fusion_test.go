package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuseKeepsHighestSimilarityPerResult(t *testing.T) {
	hits := map[string][]Hit{
		"sabar": {{ID: "2:153", Text: "...", Similarity: 0.80}},
		"tabah": {{ID: "2:153", Text: "...", Similarity: 0.75}},
	}

	fused := Fuse(hits, "sabar", 10)
	require.Len(t, fused, 1)

	// The retained hit came from the literal query: no boost.
	assert.Equal(t, "2:153", fused[0].ID)
	assert.InDelta(t, 0.80, fused[0].Similarity, 1e-9)
	assert.False(t, fused[0].Boosted)
	assert.Equal(t, "sabar", fused[0].SourceQuery)
}

func TestFuseBoostsHitsFromExpansionTerms(t *testing.T) {
	hits := map[string][]Hit{
		"tabah": {{ID: "2:153", Similarity: 0.75}},
	}

	fused := Fuse(hits, "sabar", 10)
	require.Len(t, fused, 1)
	assert.InDelta(t, 0.85, fused[0].Similarity, 1e-9)
	assert.True(t, fused[0].Boosted)
}

func TestFuseRetainedExpansionHitWinsThenBoosts(t *testing.T) {
	// The expansion term's hit is stronger; it is retained and then boosted.
	hits := map[string][]Hit{
		"sabar": {{ID: "2:153", Similarity: 0.70}},
		"tabah": {{ID: "2:153", Similarity: 0.80}},
	}

	fused := Fuse(hits, "sabar", 10)
	require.Len(t, fused, 1)
	assert.InDelta(t, 0.90, fused[0].Similarity, 1e-9)
	assert.True(t, fused[0].Boosted)
	assert.Equal(t, "tabah", fused[0].SourceQuery)
}

func TestFuseBoostClampsAtOne(t *testing.T) {
	hits := map[string][]Hit{
		"tabah": {{ID: "2:153", Similarity: 0.95}},
	}

	fused := Fuse(hits, "sabar", 10)
	require.Len(t, fused, 1)
	assert.Equal(t, 1.0, fused[0].Similarity)
	assert.True(t, fused[0].Boosted)
}

func TestFuseBoostAppliesOncePerGroup(t *testing.T) {
	// Several expansion terms hitting the same verse still add one boost.
	hits := map[string][]Hit{
		"tabah": {{ID: "2:153", Similarity: 0.60}},
		"ridha": {{ID: "2:153", Similarity: 0.62}},
		"teguh": {{ID: "2:153", Similarity: 0.58}},
	}

	fused := Fuse(hits, "sabar", 10)
	require.Len(t, fused, 1)
	assert.InDelta(t, 0.72, fused[0].Similarity, 1e-9)
}

func TestFuseSortsBySimilarityDescending(t *testing.T) {
	hits := map[string][]Hit{
		"sabar": {
			{ID: "2:153", Similarity: 0.70},
			{ID: "3:200", Similarity: 0.90},
			{ID: "8:46", Similarity: 0.80},
		},
	}

	fused := Fuse(hits, "sabar", 10)
	require.Len(t, fused, 3)
	assert.Equal(t, "3:200", fused[0].ID)
	assert.Equal(t, "8:46", fused[1].ID)
	assert.Equal(t, "2:153", fused[2].ID)
}

func TestFuseRankingReflectsPostBoostSimilarity(t *testing.T) {
	// A boosted expansion hit overtakes a stronger un-boosted literal hit.
	hits := map[string][]Hit{
		"sabar": {{ID: "3:200", Similarity: 0.78}},
		"tabah": {{ID: "2:153", Similarity: 0.75}},
	}

	fused := Fuse(hits, "sabar", 10)
	require.Len(t, fused, 2)
	assert.Equal(t, "2:153", fused[0].ID)
	assert.InDelta(t, 0.85, fused[0].Similarity, 1e-9)
	assert.Equal(t, "3:200", fused[1].ID)
}

func TestFuseLimitTruncatesAndZeroMeansAll(t *testing.T) {
	hits := map[string][]Hit{
		"sabar": {
			{ID: "a", Similarity: 0.9},
			{ID: "b", Similarity: 0.8},
			{ID: "c", Similarity: 0.7},
			{ID: "d", Similarity: 0.6},
		},
	}

	assert.Len(t, Fuse(hits, "sabar", 2), 2)
	assert.Len(t, Fuse(hits, "sabar", 0), 4)
	assert.Len(t, Fuse(hits, "sabar", -1), 4)
	assert.Len(t, Fuse(hits, "sabar", 100), 4)
}

func TestFuseTieBreakIsDeterministic(t *testing.T) {
	// Equal similarity from two terms: the first term in sorted order wins
	// the group, making the output independent of map iteration order.
	hits := map[string][]Hit{
		"alpha": {{ID: "2:153", Similarity: 0.80}},
		"beta":  {{ID: "2:153", Similarity: 0.80}},
	}

	for range 20 {
		fused := Fuse(hits, "alpha", 10)
		require.Len(t, fused, 1)
		assert.Equal(t, "alpha", fused[0].SourceQuery)
		assert.False(t, fused[0].Boosted)
	}
}

func TestFuseEmptyInputYieldsEmptyOutput(t *testing.T) {
	assert.Empty(t, Fuse(nil, "sabar", 10))
	assert.Empty(t, Fuse(map[string][]Hit{"sabar": nil}, "sabar", 10))
}

func TestFusePreservesHitPayload(t *testing.T) {
	hits := map[string][]Hit{
		"tabah": {{
			ID:         "2:153",
			Text:       "Seek help through patience and prayer.",
			Similarity: 0.75,
			Payload:    map[string]any{"surah": "Al-Baqarah"},
		}},
	}

	fused := Fuse(hits, "sabar", 10)
	require.Len(t, fused, 1)
	assert.Equal(t, "Seek help through patience and prayer.", fused[0].Text)
	assert.Equal(t, "Al-Baqarah", fused[0].Payload["surah"])
}
