package biometric

import (
	"testing"

	"facegate.humanid.io/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func embedding(values ...float32) entities.Embedding {
	return entities.Embedding{Scheme: entities.SchemeSFace, Vector: values}
}

func TestMatchIdenticalVectors(t *testing.T) {
	reference := embedding(0.6, 0.8, 0)

	result, err := Match([]entities.Embedding{reference}, reference, 0.40)
	require.NoError(t, err)
	assert.True(t, result.IsMatch)
	assert.Zero(t, result.Distance)
	assert.Equal(t, 1.0, result.Confidence)
}

func TestMatchToleranceBoundary(t *testing.T) {
	reference := embedding(1, 0, 0)

	tests := []struct {
		name      string
		candidate entities.Embedding
		tolerance float64
		isMatch   bool
	}{
		{"well inside", embedding(0.95, 0.05, 0), 0.40, true},
		{"well outside", embedding(0, 1, 0), 0.40, false},
		{"distance equal to tolerance is not a match", embedding(0.6, 0, 0), 0.40, false},
		{"stricter tolerance flips the decision", embedding(0.95, 0.05, 0), 0.01, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Match([]entities.Embedding{tt.candidate}, reference, tt.tolerance)
			require.NoError(t, err)
			assert.Equal(t, tt.isMatch, result.IsMatch)
		})
	}
}

func TestMatchAveragesCandidates(t *testing.T) {
	reference := embedding(0.5, 0.5)
	candidates := []entities.Embedding{
		embedding(1, 0),
		embedding(0, 1),
	}

	result, err := Match(candidates, reference, 0.40)
	require.NoError(t, err)
	assert.True(t, result.IsMatch, "the candidate mean equals the reference")
	assert.Zero(t, result.Distance)
}

func TestMatchDeterministic(t *testing.T) {
	reference := embedding(0.3, 0.4, 0.5)
	candidates := []entities.Embedding{
		embedding(0.31, 0.39, 0.52),
		embedding(0.29, 0.41, 0.48),
	}

	first, err := Match(candidates, reference, 0.40)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Match(candidates, reference, 0.40)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestMatchRefusesSchemeMismatch(t *testing.T) {
	reference := embedding(1, 0)
	candidates := []entities.Embedding{
		{Scheme: entities.SchemeSFacePCA, Vector: []float32{1, 0}},
	}

	_, err := Match(candidates, reference, 0.40)
	assert.ErrorIs(t, err, ErrSchemeMismatch)
}

func TestMatchRefusesDimensionMismatch(t *testing.T) {
	reference := embedding(1, 0)
	candidates := []entities.Embedding{embedding(1, 0, 0)}

	_, err := Match(candidates, reference, 0.40)
	assert.ErrorIs(t, err, ErrSchemeMismatch)
}

func TestMatchNoCandidates(t *testing.T) {
	_, err := Match(nil, embedding(1, 0), 0.40)
	assert.ErrorIs(t, err, ErrInsufficientSamples)
}

func TestMeanEmbedding(t *testing.T) {
	mean := MeanEmbedding([]entities.Embedding{
		embedding(1, 2, 3),
		embedding(3, 4, 5),
	})
	assert.Equal(t, entities.SchemeSFace, mean.Scheme)
	assert.Equal(t, []float32{2, 3, 4}, mean.Vector)
}
