package fuzzy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilarity(t *testing.T) {
	t.Run("identical strings score one", func(t *testing.T) {
		assert.Equal(t, 1.0, Similarity("perplexity", "perplexity"))
	})

	t.Run("disjoint strings score zero", func(t *testing.T) {
		assert.Equal(t, 0.0, Similarity("abc", "xyz"))
	})

	t.Run("symmetric", func(t *testing.T) {
		assert.InDelta(t, Similarity("martha", "marhta"), Similarity("marhta", "martha"), 1e-9)
	})

	t.Run("near duplicates score high", func(t *testing.T) {
		assert.Greater(t, Similarity("acme labs", "acme lab"), 0.92)
	})

	t.Run("prefix boost favors shared starts", func(t *testing.T) {
		withPrefix := Similarity("notion", "notionhq")
		assert.Greater(t, withPrefix, 0.9)
	})
}

func TestBestMatch(t *testing.T) {
	candidates := []string{"acme labs", "perplexity", "linear"}

	t.Run("finds candidate above threshold", func(t *testing.T) {
		assert.Equal(t, 0, BestMatch(candidates, "acme lab", 0.92))
	})

	t.Run("returns -1 below threshold", func(t *testing.T) {
		assert.Equal(t, -1, BestMatch(candidates, "completely different", 0.92))
	})

	t.Run("empty candidate pool", func(t *testing.T) {
		assert.Equal(t, -1, BestMatch(nil, "anything", 0.92))
	})
}
