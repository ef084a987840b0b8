package rag

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashEmbedderIsDeterministic(t *testing.T) {
	e := NewHashEmbedder(128)

	a, err := e.GenerateEmbedding(context.Background(), "fractions are parts of a whole")
	require.NoError(t, err)
	b, err := e.GenerateEmbedding(context.Background(), "fractions are parts of a whole")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 128)
}

func TestHashEmbedderNormalizes(t *testing.T) {
	e := NewHashEmbedder(64)

	vec, err := e.GenerateEmbedding(context.Background(), "the quick brown fox jumps over the lazy dog")
	require.NoError(t, err)

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}

func TestHashEmbedderIgnoresCase(t *testing.T) {
	e := NewHashEmbedder(64)

	a, err := e.GenerateEmbedding(context.Background(), "Pythagorean Theorem")
	require.NoError(t, err)
	b, err := e.GenerateEmbedding(context.Background(), "pythagorean theorem")
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestHashEmbedderEmptyInput(t *testing.T) {
	e := NewHashEmbedder(64)

	vec, err := e.GenerateEmbedding(context.Background(), "")
	require.NoError(t, err)
	for _, v := range vec {
		assert.Zero(t, v)
	}
}

func TestHashEmbedderDefaultsDimension(t *testing.T) {
	assert.Equal(t, 256, NewHashEmbedder(0).Dimension())
	assert.Equal(t, 512, NewHashEmbedder(512).Dimension())
}

func TestHashEmbedderBatch(t *testing.T) {
	e := NewHashEmbedder(64)

	out, err := e.GenerateEmbeddings(context.Background(), []string{"one", "two", "three"})
	require.NoError(t, err)
	require.Len(t, out, 3)

	single, err := e.GenerateEmbedding(context.Background(), "two")
	require.NoError(t, err)
	assert.Equal(t, single, out[1])
}

func TestOpenAIEmbedderDimensionByModel(t *testing.T) {
	assert.Equal(t, 1536, NewOpenAIEmbedder("sk-test", "text-embedding-3-small").Dimension())
	assert.Equal(t, 3072, NewOpenAIEmbedder("sk-test", "text-embedding-3-large").Dimension())
}
