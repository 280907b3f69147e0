package types

import (
	"image"
	"os"
	"strconv"
	"time"
)

// Landmarks are the keypoints reported per detection. YuNet provides all
// five; the pipeline only depends on the eye centers and the nose tip.
type Landmarks struct {
	RightEye   image.Point `json:"right_eye"`
	LeftEye    image.Point `json:"left_eye"`
	Nose       image.Point `json:"nose"`
	RightMouth image.Point `json:"right_mouth"`
	LeftMouth  image.Point `json:"left_mouth"`
}

// Detection is one face located in a single frame. Transient; consumed by
// the preprocessor and anti-spoof gate, never persisted.
type Detection struct {
	Box        image.Rectangle `json:"box"`
	Confidence float32         `json:"confidence"`
	Landmarks  Landmarks       `json:"landmarks"`
}

// SecurityConfig centralizes the pipeline's tuning knobs. Defaults mirror
// the values the system was validated with; individual values can be
// overridden through FACEGATE_* env variables.
type SecurityConfig struct {
	MaxLoginAttempts   int
	LockoutTime        time.Duration
	MinFaceConfidence  float32
	MatchTolerance     float64
	LivenessCheck      bool
	MinFaceSize        int
	EnrollSamples      int
	EnrollTimeout      time.Duration
	VerifyTimeout      time.Duration
	FrameStride        int
	VerifySampleTarget int

	// advanced enrollment path
	FitProjection      bool
	KeepVariance       float64
	QualityThreshold   float64
	MaxRegistrationYaw float64
	MinPoseSeparation  float64

	CanonicalFaceSize int
}

func DefaultSecurityConfig() SecurityConfig {
	cfg := SecurityConfig{
		MaxLoginAttempts:   3,
		LockoutTime:        30 * time.Second,
		MinFaceConfidence:  0.95,
		MatchTolerance:     0.40,
		LivenessCheck:      false,
		MinFaceSize:        100,
		EnrollSamples:      10,
		EnrollTimeout:      60 * time.Second,
		VerifyTimeout:      10 * time.Second,
		FrameStride:        15,
		VerifySampleTarget: 10,
		FitProjection:      false,
		KeepVariance:       0.95,
		QualityThreshold:   45.0,
		MaxRegistrationYaw: 25.0,
		MinPoseSeparation:  5.0,
		CanonicalFaceSize:  150,
	}

	if v, err := strconv.Atoi(os.Getenv("FACEGATE_MAX_LOGIN_ATTEMPTS")); err == nil && v > 0 {
		cfg.MaxLoginAttempts = v
	}
	if v, err := strconv.Atoi(os.Getenv("FACEGATE_LOCKOUT_SECONDS")); err == nil && v > 0 {
		cfg.LockoutTime = time.Duration(v) * time.Second
	}
	if v, err := strconv.ParseFloat(os.Getenv("FACEGATE_MATCH_TOLERANCE"), 64); err == nil && v > 0 {
		cfg.MatchTolerance = v
	}
	if v, err := strconv.ParseFloat(os.Getenv("FACEGATE_MIN_FACE_CONFIDENCE"), 32); err == nil && v > 0 {
		cfg.MinFaceConfidence = float32(v)
	}
	if v, err := strconv.Atoi(os.Getenv("FACEGATE_ENROLL_SAMPLES")); err == nil && v > 0 {
		cfg.EnrollSamples = v
	}
	if os.Getenv("FACEGATE_LIVENESS_CHECK") == "true" {
		cfg.LivenessCheck = true
	}
	if os.Getenv("FACEGATE_FIT_PROJECTION") == "true" {
		cfg.FitProjection = true
	}
	return cfg
}
