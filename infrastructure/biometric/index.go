// Package biometric implements the face enrollment and verification
// pipeline: frame acquisition, detection, preprocessing, the anti-spoof
// gate, embedding extraction and matching. The HTTP layer and the CLI only
// ever talk to FaceGateService.
package biometric

import "errors"

var (
	// ErrSourceUnavailable means the camera could not be opened or the
	// video file could not be decoded. Fatal for the call, never retried
	// automatically.
	ErrSourceUnavailable = errors.New("capture source unavailable")

	// ErrSourceExhausted is returned by a frame source once no more frames
	// can be read.
	ErrSourceExhausted = errors.New("capture source exhausted")

	// ErrNoFaceDetected means no frame in the whole capture produced a
	// usable detection.
	ErrNoFaceDetected = errors.New("no face detected")

	// ErrInsufficientSamples means the capture ended (or timed out) before
	// enough usable encodings were collected.
	ErrInsufficientSamples = errors.New("insufficient usable samples")

	// ErrNotRegistered means the claimed identity has no enrollment record.
	ErrNotRegistered = errors.New("username not registered")

	// ErrSchemeMismatch means embeddings with different encoding schemes
	// (or dimensions) were about to be compared. This is an internal
	// invariant violation and is refused before any arithmetic happens.
	ErrSchemeMismatch = errors.New("embedding scheme mismatch")
)
