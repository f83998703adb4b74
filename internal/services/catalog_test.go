package services

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLevenshtein(t *testing.T) {
	require.Equal(t, 0, levenshtein("punch in", "punch in"))
	require.Equal(t, 3, levenshtein("kitten", "sitting"))
	require.Equal(t, 5, levenshtein("", "hello"))
	require.Equal(t, 1, levenshtein("punch in", "punch on"))
}

func TestSimilarity(t *testing.T) {
	require.Equal(t, 1.0, similarity("same", "same"))
	require.InDelta(t, 0.875, similarity("punch in", "punch on"), 0.001)
}

func TestCatalogMatchExact(t *testing.T) {
	c := DefaultSynonymCatalog()
	family, score, ok := c.Match("punch in")
	require.True(t, ok)
	require.Equal(t, IntentTimeclock, family)
	require.Equal(t, 1.0, score)
}

func TestCatalogMatchNearMiss(t *testing.T) {
	c := DefaultSynonymCatalog()
	// One character off an entry still clears the floor.
	family, score, ok := c.Match("punch inn")
	require.True(t, ok)
	require.Equal(t, IntentTimeclock, family)
	require.Greater(t, score, similarityFloor)
}

func TestCatalogBelowFloorDeclines(t *testing.T) {
	c := DefaultSynonymCatalog()
	_, _, ok := c.Match("tell me a joke about roofing")
	require.False(t, ok)
}

func TestCatalogEmptyText(t *testing.T) {
	c := DefaultSynonymCatalog()
	_, _, ok := c.Match("   ")
	require.False(t, ok)
}
