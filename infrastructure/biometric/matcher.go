package biometric

import (
	"fmt"
	"math"

	"facegate.humanid.io/entities"
)

// MatchResult is the outcome of comparing one verification capture against
// a stored reference.
type MatchResult struct {
	IsMatch  bool    `json:"is_match"`
	Distance float64 `json:"distance"`
	// Confidence is 1 - distance, reported purely for diagnostics; the
	// decision is the tolerance comparison on Distance alone.
	Confidence float64 `json:"confidence"`
}

// Match averages the candidate embeddings into one mean vector and compares
// its Euclidean distance against the reference: a match iff
// distance < tolerance (smaller tolerance is stricter).
//
// Every candidate must carry the reference's scheme and dimensionality;
// anything else is refused with ErrSchemeMismatch before any arithmetic, so
// a mixed-encoder capture can never blow up inside the distance loop.
// Deterministic: identical inputs always produce identical results.
func Match(candidates []entities.Embedding, reference entities.Embedding, tolerance float64) (*MatchResult, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidate embeddings", ErrInsufficientSamples)
	}
	dims := len(reference.Vector)
	if dims == 0 {
		return nil, fmt.Errorf("reference embedding is empty")
	}
	for _, c := range candidates {
		if c.Scheme != reference.Scheme {
			return nil, fmt.Errorf("%w: candidate %q vs reference %q", ErrSchemeMismatch, c.Scheme, reference.Scheme)
		}
		if len(c.Vector) != dims {
			return nil, fmt.Errorf("%w: candidate has %d dims, reference has %d", ErrSchemeMismatch, len(c.Vector), dims)
		}
	}

	mean := MeanEmbedding(candidates)
	distance := euclideanDistance(mean.Vector, reference.Vector)

	return &MatchResult{
		IsMatch:    distance < tolerance,
		Distance:   distance,
		Confidence: 1 - distance,
	}, nil
}

// MeanEmbedding averages embeddings component-wise. Callers guarantee a
// non-empty, scheme-consistent slice.
func MeanEmbedding(embeddings []entities.Embedding) entities.Embedding {
	dims := len(embeddings[0].Vector)
	sums := make([]float64, dims)
	for _, e := range embeddings {
		for i, v := range e.Vector {
			sums[i] += float64(v)
		}
	}
	mean := make([]float32, dims)
	for i, s := range sums {
		mean[i] = float32(s / float64(len(embeddings)))
	}
	return entities.Embedding{Scheme: embeddings[0].Scheme, Vector: mean}
}

func euclideanDistance(a, b []float32) float64 {
	sum := 0.0
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
