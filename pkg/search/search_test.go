package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theredstring/redstring-sub011/pkg/graphmodel"
)

func sampleStore() graphmodel.ProjectedStore {
	return graphmodel.ProjectedStore{
		Graphs: []graphmodel.Graph{
			{ID: "g1", Name: "Baking"},
		},
		NodePrototypes: []graphmodel.NodePrototype{
			{ID: "p1", Name: "Breaking Bad"},
		},
	}
}

func TestScoreExactMatch(t *testing.T) {
	assert.Equal(t, 100, Score("flour", "flour", false, false, nil))
}

func TestScorePrefixMatch(t *testing.T) {
	assert.Equal(t, 95, Score("break", "breaking bad", false, false, nil))
}

func TestScoreContainsMatch(t *testing.T) {
	s := Score("bad", "breaking bad", false, false, nil)
	assert.GreaterOrEqual(t, s, 80)
}

func TestScoreSubsequenceMatch(t *testing.T) {
	assert.Equal(t, 70, Score("bkn", "baking", false, false, nil))
}

func TestScoreNoMatchWithoutFuzzyIsZero(t *testing.T) {
	assert.Equal(t, 0, Score("xyz", "baking", false, false, nil))
}

func TestScoreFuzzyEnabledNonZeroForCloseMatch(t *testing.T) {
	s := Score("bakign", "baking", false, true, nil)
	assert.Greater(t, s, 0)
}

func TestQueryAllScopeSortsDescending(t *testing.T) {
	store := sampleStore()
	results, err := Query(store, "break", Options{Scope: ScopeAll})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "prototype", results[0].Kind)
	assert.Equal(t, 95, results[0].Score)
}

func TestQueryEmptyStoreReturnsEmptyNotError(t *testing.T) {
	results, err := Query(graphmodel.ProjectedStore{}, "anything", Options{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestQueryRegexModeScoresConstant90(t *testing.T) {
	store := sampleStore()
	results, err := Query(store, "^Break", Options{Scope: ScopePrototypes, Regex: true})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 90, results[0].Score)
}

func TestQueryInvalidRegexReturnsError(t *testing.T) {
	_, err := Query(sampleStore(), "(unterminated", Options{Regex: true})
	assert.Error(t, err)
}

func TestQueryRespectsLimit(t *testing.T) {
	store := graphmodel.ProjectedStore{}
	for i := 0; i < 5; i++ {
		store.Graphs = append(store.Graphs, graphmodel.Graph{ID: "g", Name: "match"})
	}
	results, err := Query(store, "match", Options{Scope: ScopeGraphs, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}
