package biometric

import (
	"fmt"
	"image"
	"os"
	"sync"

	"facegate.humanid.io/infrastructure/biometric/types"
	"facegate.humanid.io/infrastructure/logger"
	"gocv.io/x/gocv"
)

// Detector locates faces in a single frame. Implementations are swappable;
// the pipeline only depends on bounding boxes, confidences and the two eye
// landmarks being present.
type Detector interface {
	Detect(frame gocv.Mat) ([]types.Detection, error)
	Close() error
}

// YuNetDetector wraps the YuNet face detection model. Each detection row
// carries the bounding box, five landmarks and a confidence score.
type YuNetDetector struct {
	detector            gocv.FaceDetectorYN
	confidenceThreshold float32
	loaded              bool
	mutex               sync.Mutex
}

// YuNetConfig holds configuration for the YuNet detector
type YuNetConfig struct {
	ModelPath           string
	InputSize           image.Point
	ConfidenceThreshold float32
	NMSThreshold        float32
	TopK                int
}

func DefaultYuNetConfig() YuNetConfig {
	modelPath := os.Getenv("FACEGATE_YUNET_MODEL")
	if modelPath == "" {
		modelPath = "./models/face_detection_yunet_2023mar.onnx"
	}
	return YuNetConfig{
		ModelPath:           modelPath,
		InputSize:           image.Pt(320, 320),
		ConfidenceThreshold: 0.6,
		NMSThreshold:        0.3,
		TopK:                5000,
	}
}

func NewYuNetDetector(config YuNetConfig) (*YuNetDetector, error) {
	if _, err := os.Stat(config.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", config.ModelPath)
	}

	detector := gocv.NewFaceDetectorYN(
		config.ModelPath,
		"",
		image.Pt(config.InputSize.X, config.InputSize.Y),
	)
	detector.SetScoreThreshold(config.ConfidenceThreshold)
	detector.SetNMSThreshold(config.NMSThreshold)
	detector.SetTopK(config.TopK)

	logger.Info("YuNet model loaded successfully", logger.LoggerOptions{
		Key: "model_info",
		Data: map[string]interface{}{
			"model_path":           config.ModelPath,
			"input_size":           fmt.Sprintf("%dx%d", config.InputSize.X, config.InputSize.Y),
			"confidence_threshold": config.ConfidenceThreshold,
		},
	})

	return &YuNetDetector{
		detector:            detector,
		confidenceThreshold: config.ConfidenceThreshold,
		loaded:              true,
	}, nil
}

// Detect runs YuNet on one frame and returns all detections above the score
// threshold, ordered as the model emitted them.
func (yd *YuNetDetector) Detect(frame gocv.Mat) ([]types.Detection, error) {
	if !yd.loaded {
		return nil, fmt.Errorf("YuNet model not loaded")
	}

	yd.mutex.Lock()
	defer yd.mutex.Unlock()

	yd.detector.SetInputSize(image.Pt(frame.Cols(), frame.Rows()))

	facesMat := gocv.NewMat()
	defer facesMat.Close()
	yd.detector.Detect(frame, &facesMat)

	return yd.parseDetections(facesMat, frame), nil
}

// parseDetections parses the raw YuNet output.
// Each row: [x, y, w, h, x_re, y_re, x_le, y_le, x_nt, y_nt, x_rcm, y_rcm, x_lcm, y_lcm, score]
// where re=right_eye, le=left_eye, nt=nose_tip, rcm/lcm=mouth corners.
func (yd *YuNetDetector) parseDetections(facesMat gocv.Mat, frame gocv.Mat) []types.Detection {
	var detections []types.Detection
	if facesMat.Empty() || facesMat.Rows() == 0 {
		return detections
	}

	for i := 0; i < facesMat.Rows(); i++ {
		x := int(facesMat.GetFloatAt(i, 0))
		y := int(facesMat.GetFloatAt(i, 1))
		w := int(facesMat.GetFloatAt(i, 2))
		h := int(facesMat.GetFloatAt(i, 3))
		confidence := facesMat.GetFloatAt(i, 14)

		if x < 0 || y < 0 || w <= 0 || h <= 0 || x+w > frame.Cols() || y+h > frame.Rows() {
			continue
		}

		detections = append(detections, types.Detection{
			Box:        image.Rect(x, y, x+w, y+h),
			Confidence: confidence,
			Landmarks: types.Landmarks{
				RightEye:   image.Pt(int(facesMat.GetFloatAt(i, 4)), int(facesMat.GetFloatAt(i, 5))),
				LeftEye:    image.Pt(int(facesMat.GetFloatAt(i, 6)), int(facesMat.GetFloatAt(i, 7))),
				Nose:       image.Pt(int(facesMat.GetFloatAt(i, 8)), int(facesMat.GetFloatAt(i, 9))),
				RightMouth: image.Pt(int(facesMat.GetFloatAt(i, 10)), int(facesMat.GetFloatAt(i, 11))),
				LeftMouth:  image.Pt(int(facesMat.GetFloatAt(i, 12)), int(facesMat.GetFloatAt(i, 13))),
			},
		})
	}

	return detections
}

func (yd *YuNetDetector) Close() error {
	if yd.loaded {
		yd.detector.Close()
		yd.loaded = false
	}
	return nil
}
