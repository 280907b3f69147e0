package biometric

import (
	"fmt"

	"facegate.humanid.io/entities"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// FitProjection fits a PCA over the collected enrollment embeddings,
// keeping the smallest number of components whose cumulative variance
// reaches keepVariance (e.g. 0.95). The returned projection must be
// persisted with the identity record and re-applied to candidate
// embeddings at verification time; projected vectors carry outputScheme.
//
// All inputs must share one scheme and one dimensionality. Fails when the
// samples carry no variance at all (a fit with zero useful components).
func FitProjection(embeddings []entities.Embedding, keepVariance float64, outputScheme entities.EmbeddingScheme) (*entities.Projection, error) {
	if len(embeddings) < 2 {
		return nil, fmt.Errorf("projection fit needs at least 2 samples, got %d", len(embeddings))
	}
	scheme := embeddings[0].Scheme
	dims := len(embeddings[0].Vector)
	for _, e := range embeddings {
		if e.Scheme != scheme || len(e.Vector) != dims {
			return nil, ErrSchemeMismatch
		}
	}

	data := mat.NewDense(len(embeddings), dims, nil)
	for i, e := range embeddings {
		for j, v := range e.Vector {
			data.Set(i, j, float64(v))
		}
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(data, nil); !ok {
		return nil, fmt.Errorf("principal component analysis failed")
	}

	vars := pc.VarsTo(nil)
	totalVar := 0.0
	for _, v := range vars {
		totalVar += v
	}
	if totalVar == 0 {
		return nil, fmt.Errorf("projection fit failed: samples carry no variance")
	}

	keep := 0
	cumulative := 0.0
	for _, v := range vars {
		keep++
		cumulative += v
		if cumulative/totalVar >= keepVariance {
			break
		}
	}

	var vectors mat.Dense
	pc.VectorsTo(&vectors)

	mean := make([]float32, dims)
	for j := 0; j < dims; j++ {
		col := 0.0
		for i := 0; i < len(embeddings); i++ {
			col += data.At(i, j)
		}
		mean[j] = float32(col / float64(len(embeddings)))
	}

	components := make([][]float32, keep)
	for k := 0; k < keep; k++ {
		components[k] = make([]float32, dims)
		for j := 0; j < dims; j++ {
			components[k][j] = float32(vectors.At(j, k))
		}
	}

	return &entities.Projection{
		Mean:         mean,
		Components:   components,
		InputScheme:  scheme,
		OutputScheme: outputScheme,
	}, nil
}

// ApplyProjection centers an embedding on the fitted mean, projects it onto
// the kept components and L2-normalizes the result. Refuses embeddings
// whose scheme or dimensionality does not match the fit.
func ApplyProjection(p *entities.Projection, e entities.Embedding) (entities.Embedding, error) {
	if e.Scheme != p.InputScheme || len(e.Vector) != p.InputDims() {
		return entities.Embedding{}, ErrSchemeMismatch
	}

	centered := make([]float64, len(e.Vector))
	for i, v := range e.Vector {
		centered[i] = float64(v) - float64(p.Mean[i])
	}

	projected := make([]float32, len(p.Components))
	for k, component := range p.Components {
		dot := 0.0
		for i, c := range component {
			dot += float64(c) * centered[i]
		}
		projected[k] = float32(dot)
	}

	return entities.Embedding{
		Scheme: p.OutputScheme,
		Vector: normalizeVector(projected),
	}, nil
}

// ProjectAll applies a projection to every candidate, failing on the first
// mismatch.
func ProjectAll(p *entities.Projection, candidates []entities.Embedding) ([]entities.Embedding, error) {
	projected := make([]entities.Embedding, 0, len(candidates))
	for _, c := range candidates {
		pe, err := ApplyProjection(p, c)
		if err != nil {
			return nil, err
		}
		projected = append(projected, pe)
	}
	return projected, nil
}
