package entities

import "time"

// EmbeddingScheme identifies the encoder (and any fitted transform) that
// produced an embedding. Embeddings carrying different schemes are never
// numerically comparable.
type EmbeddingScheme string

const (
	// SchemeSFace is the raw 128-dim L2-normalized SFace output.
	SchemeSFace EmbeddingScheme = "sface-112"
	// SchemeSFacePCA is an SFace embedding passed through a fitted PCA
	// projection and re-normalized.
	SchemeSFacePCA EmbeddingScheme = "sface-112-pca"
)

type Embedding struct {
	Scheme EmbeddingScheme `json:"scheme"`
	Vector []float32       `json:"vector"`
}

// Projection is a fitted linear dimensionality reduction captured at
// enrollment. It must be re-applied identically at verification time.
type Projection struct {
	// Mean is subtracted from a raw vector before projecting.
	Mean []float32 `json:"mean"`
	// Components holds one principal component per row.
	Components [][]float32 `json:"components"`
	// InputScheme is the scheme of vectors the projection accepts.
	InputScheme EmbeddingScheme `json:"inputScheme"`
	// OutputScheme is the scheme of projected vectors.
	OutputScheme EmbeddingScheme `json:"outputScheme"`
}

func (p *Projection) InputDims() int {
	return len(p.Mean)
}

func (p *Projection) OutputDims() int {
	return len(p.Components)
}

// This represents one enrolled identity. Exactly one record exists per
// username; re-enrollment requires an explicit delete first.
type IdentityRecord struct {
	Username    string      `json:"username"`
	Embedding   Embedding   `json:"embedding"`
	Projection  *Projection `json:"projection,omitempty"`
	Variance    []float32   `json:"variance,omitempty"`
	SampleCount int         `json:"sampleCount"`
	EnrolledAt  time.Time   `json:"enrolledAt"`
}
