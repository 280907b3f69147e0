package biometric

import (
	"fmt"
	"image"
	"math"
	"os"
	"sync"

	"facegate.humanid.io/entities"
	"facegate.humanid.io/infrastructure/logger"
	"gocv.io/x/gocv"
)

// Encoder maps an aligned face patch to a fixed-length embedding. Encode
// returns (nil, nil) when the model cannot produce an encoding for the
// patch (too small, empty after alignment); absence is not an error.
type Encoder interface {
	Encode(face gocv.Mat) (*entities.Embedding, error)
	Scheme() entities.EmbeddingScheme
	Close() error
}

const sfaceEmbeddingDims = 128

// minimum patch edge the model produces stable encodings for
const minEncodablePatch = 32

// SFaceEncoder extracts 128-dim L2-normalized embeddings with the SFace
// ONNX model.
type SFaceEncoder struct {
	net       gocv.Net
	inputSize image.Point
	loaded    bool
	mutex     sync.Mutex
}

// SFaceConfig holds configuration for the SFace model
type SFaceConfig struct {
	ModelPath string
	InputSize image.Point
	Backend   gocv.NetBackendType
	Target    gocv.NetTargetType
}

func DefaultSFaceConfig() SFaceConfig {
	modelPath := os.Getenv("FACEGATE_SFACE_MODEL")
	if modelPath == "" {
		modelPath = "./models/face_recognition_sface_2021dec.onnx"
	}
	return SFaceConfig{
		ModelPath: modelPath,
		InputSize: image.Pt(112, 112),
		Backend:   gocv.NetBackendDefault,
		Target:    gocv.NetTargetCPU,
	}
}

func NewSFaceEncoder(config SFaceConfig) (*SFaceEncoder, error) {
	if _, err := os.Stat(config.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", config.ModelPath)
	}

	net := gocv.ReadNet(config.ModelPath, "")
	if net.Empty() {
		return nil, fmt.Errorf("failed to load SFace model from %s", config.ModelPath)
	}
	net.SetPreferableBackend(config.Backend)
	net.SetPreferableTarget(config.Target)

	logger.Info("SFace model loaded successfully", logger.LoggerOptions{
		Key: "model_info",
		Data: map[string]interface{}{
			"model_path": config.ModelPath,
			"input_size": fmt.Sprintf("%dx%d", config.InputSize.X, config.InputSize.Y),
		},
	})

	return &SFaceEncoder{
		net:       net,
		inputSize: config.InputSize,
		loaded:    true,
	}, nil
}

func (se *SFaceEncoder) Scheme() entities.EmbeddingScheme {
	return entities.SchemeSFace
}

// Encode runs a forward pass over the face patch and returns the
// L2-normalized embedding.
func (se *SFaceEncoder) Encode(face gocv.Mat) (*entities.Embedding, error) {
	se.mutex.Lock()
	defer se.mutex.Unlock()

	if !se.loaded {
		return nil, fmt.Errorf("SFace model not loaded")
	}
	if face.Empty() || face.Cols() < minEncodablePatch || face.Rows() < minEncodablePatch {
		return nil, nil
	}

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(face, &resized, se.inputSize, 0, 0, gocv.InterpolationLinear)

	// SFace expects [1, 3, 112, 112] with mean subtraction and RB swap
	blob := gocv.BlobFromImage(
		resized,
		1.0/127.5,
		se.inputSize,
		gocv.NewScalar(127.5, 127.5, 127.5, 0),
		true,
		false,
	)
	defer blob.Close()

	se.net.SetInput(blob, "")
	output := se.net.Forward("")
	defer output.Close()

	vector := make([]float32, sfaceEmbeddingDims)
	for i := 0; i < sfaceEmbeddingDims; i++ {
		vector[i] = output.GetFloatAt(0, i)
	}

	return &entities.Embedding{
		Scheme: entities.SchemeSFace,
		Vector: normalizeVector(vector),
	}, nil
}

func (se *SFaceEncoder) Close() error {
	se.mutex.Lock()
	defer se.mutex.Unlock()
	if se.loaded {
		if err := se.net.Close(); err != nil {
			return fmt.Errorf("failed to close SFace network: %v", err)
		}
		se.loaded = false
	}
	return nil
}

// normalizeVector scales a vector to unit L2 norm. Zero vectors are
// returned unchanged.
func normalizeVector(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
