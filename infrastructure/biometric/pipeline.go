package biometric

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"facegate.humanid.io/entities"
	"facegate.humanid.io/infrastructure/biometric/types"
	"facegate.humanid.io/infrastructure/enrollment"
	"facegate.humanid.io/infrastructure/logger"
	"facegate.humanid.io/infrastructure/ratelimit"
	"github.com/google/uuid"
	"gocv.io/x/gocv"
)

// FaceGateService is the face enrollment and verification pipeline. One
// instance is constructed at process start and shared; each Enroll/Verify
// call runs a single sequential pass over the frames of its source.
// Concurrent calls for distinct usernames are independent; attempt state
// for one username is serialized inside the LoginAttemptStore.
type FaceGateService struct {
	detector Detector
	encoder  Encoder
	store    *enrollment.Store
	attempts *ratelimit.LoginAttemptStore
	config   types.SecurityConfig

	// OnSample, when set, is invoked after every accepted sample
	// (collected, target). Used by the CLI progress bar.
	OnSample func(collected, target int)
}

func NewFaceGateService(detector Detector, encoder Encoder, store *enrollment.Store, attempts *ratelimit.LoginAttemptStore, config types.SecurityConfig) *FaceGateService {
	return &FaceGateService{
		detector: detector,
		encoder:  encoder,
		store:    store,
		attempts: attempts,
		config:   config,
	}
}

// EnrollResult reports sample-count diagnostics for a completed enrollment.
type EnrollResult struct {
	Username    string        `json:"username"`
	SessionID   string        `json:"session_id"`
	SampleCount int           `json:"sample_count"`
	Elapsed     time.Duration `json:"elapsed"`
}

// VerifyResult is the outcome of one verification call.
type VerifyResult struct {
	Username    string  `json:"username"`
	SessionID   string  `json:"session_id"`
	IsMatch     bool    `json:"is_match"`
	Distance    float64 `json:"distance"`
	Confidence  float64 `json:"confidence"`
	SampleCount int     `json:"sample_count"`
}

// captureSession is the transient bookkeeping for one registration or
// verification call. Discarded once the call produces a result or fails.
type captureSession struct {
	id         string
	embeddings []entities.Embedding
	poses      []float64
	framesRead int
	facesSeen  int
	started    time.Time
	spoof      *AntiSpoofGate
}

func (s *FaceGateService) newSession() *captureSession {
	session := &captureSession{
		id:      uuid.NewString(),
		started: time.Now(),
	}
	if s.config.LivenessCheck {
		session.spoof = NewAntiSpoofGate()
	}
	return session
}

type collectOptions struct {
	target int
	stride int
	// exactlyOneFace: registration refuses frames with zero or multiple
	// faces so a bystander can never be enrolled. Verification instead
	// takes the highest-confidence face and skips faceless frames.
	exactlyOneFace bool
	qualityGate    bool
	canonicalSize  int
}

// Enroll captures frames from source until the sample target is reached or
// the enrollment ceiling expires, then persists the averaged reference
// embedding. The source is not closed; the caller releases it on every
// exit path.
func (s *FaceGateService) Enroll(ctx context.Context, username string, source FrameSource) (*EnrollResult, error) {
	if _, err := s.store.Lookup(username); err == nil {
		return nil, enrollment.ErrAlreadyRegistered
	} else if !errors.Is(err, enrollment.ErrNotFound) {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.EnrollTimeout)
	defer cancel()

	target := s.config.EnrollSamples
	if s.config.FitProjection {
		// the projection fit wants a wider sample spread; augmentation
		// fills it at augmentationsPerSample embeddings per accepted pose
		target *= 2
	}

	session := s.newSession()
	opts := collectOptions{
		target:         target,
		stride:         s.enrollStride(source),
		exactlyOneFace: true,
		qualityGate:    s.config.FitProjection,
		canonicalSize:  s.config.CanonicalFaceSize,
	}
	if err := s.collect(ctx, source, session, opts); err != nil {
		return nil, err
	}

	if session.facesSeen == 0 {
		return nil, fmt.Errorf("%w: %d frames scanned", ErrNoFaceDetected, session.framesRead)
	}
	if len(session.embeddings) < s.config.EnrollSamples {
		return nil, fmt.Errorf("%w: collected %d of %d", ErrInsufficientSamples, len(session.embeddings), s.config.EnrollSamples)
	}

	record := entities.IdentityRecord{
		Username:    username,
		SampleCount: len(session.embeddings),
		EnrolledAt:  time.Now(),
	}
	if s.config.FitProjection {
		projection, err := FitProjection(session.embeddings, s.config.KeepVariance, entities.SchemeSFacePCA)
		if err != nil {
			return nil, err
		}
		projected, err := ProjectAll(projection, session.embeddings)
		if err != nil {
			return nil, err
		}
		record.Embedding = MeanEmbedding(projected)
		record.Projection = projection
		record.Variance = varianceVector(projected)
	} else {
		record.Embedding = MeanEmbedding(session.embeddings)
	}

	if err := s.store.Enroll(record); err != nil {
		return nil, err
	}

	logger.Info("identity enrolled", logger.LoggerOptions{
		Key: "enrollment",
		Data: map[string]interface{}{
			"username":   username,
			"session_id": session.id,
			"samples":    record.SampleCount,
			"scheme":     record.Embedding.Scheme,
		},
	})

	return &EnrollResult{
		Username:    username,
		SessionID:   session.id,
		SampleCount: record.SampleCount,
		Elapsed:     time.Since(session.started),
	}, nil
}

// Verify captures frames from source and compares the mean candidate
// embedding against username's stored reference. The lockout check runs
// before the source is touched, so a locked account consumes no camera or
// decode work. The attempt counter moves exactly once per call: reset on
// match, incremented on mismatch or on a capture that produced no usable
// samples.
func (s *FaceGateService) Verify(ctx context.Context, username string, source FrameSource) (*VerifyResult, error) {
	if err := s.attempts.Check(username); err != nil {
		return nil, err
	}

	record, err := s.store.Lookup(username)
	if errors.Is(err, enrollment.ErrNotFound) {
		return nil, ErrNotRegistered
	}
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.VerifyTimeout)
	defer cancel()

	session := s.newSession()
	opts := collectOptions{
		target:         s.config.VerifySampleTarget,
		stride:         s.verifyStride(source),
		exactlyOneFace: false,
		canonicalSize:  s.config.CanonicalFaceSize,
	}
	if err := s.collect(ctx, source, session, opts); err != nil {
		return nil, err
	}

	if len(session.embeddings) == 0 {
		s.attempts.RecordFailure(username)
		return nil, fmt.Errorf("%w: %d frames scanned, %d faces seen", ErrInsufficientSamples, session.framesRead, session.facesSeen)
	}

	candidates := session.embeddings
	if record.Projection != nil {
		candidates, err = ProjectAll(record.Projection, candidates)
		if err != nil {
			return nil, err
		}
	}

	result, err := Match(candidates, record.Embedding, s.config.MatchTolerance)
	if err != nil {
		return nil, err
	}

	if result.IsMatch {
		s.attempts.RecordSuccess(username)
	} else {
		s.attempts.RecordFailure(username)
	}

	logger.Info("verification completed", logger.LoggerOptions{
		Key: "verification",
		Data: map[string]interface{}{
			"username":   username,
			"session_id": session.id,
			"is_match":   result.IsMatch,
			"distance":   result.Distance,
			"samples":    len(session.embeddings),
		},
	})

	return &VerifyResult{
		Username:    username,
		SessionID:   session.id,
		IsMatch:     result.IsMatch,
		Distance:    result.Distance,
		Confidence:  result.Confidence,
		SampleCount: len(session.embeddings),
	}, nil
}

// Delete removes username's enrollment record.
func (s *FaceGateService) Delete(username string) error {
	return s.store.Delete(username)
}

// List returns all enrolled usernames, for administrative display.
func (s *FaceGateService) List() ([]string, error) {
	return s.store.List()
}

func (s *FaceGateService) Close() {
	if s.detector != nil {
		s.detector.Close()
	}
	if s.encoder != nil {
		s.encoder.Close()
	}
}

// enrollStride samples every Nth frame of a file so consecutive
// near-identical frames do not dominate the reference; cameras are read
// frame by frame since capture latency already spaces them out.
func (s *FaceGateService) enrollStride(source FrameSource) int {
	if meta, ok := source.(VideoMeta); ok && meta.FrameCount() > 0 {
		return s.config.FrameStride
	}
	return 1
}

// verifyStride spreads roughly 30 probe frames across the whole file.
func (s *FaceGateService) verifyStride(source FrameSource) int {
	if meta, ok := source.(VideoMeta); ok && meta.FrameCount() > 0 {
		stride := meta.FrameCount() / 30
		if stride < 1 {
			stride = 1
		}
		return stride
	}
	return 1
}

// collect drives the frame loop until the sample target is met, the source
// runs out, the deadline passes (the caller judges what was gathered), or
// the caller cancels (propagated so no partial state is written).
func (s *FaceGateService) collect(ctx context.Context, source FrameSource, session *captureSession, opts collectOptions) error {
	frameIndex := 0
	for len(session.embeddings) < opts.target {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return ctx.Err()
			}
			return nil
		default:
		}

		frame, err := source.Read()
		if err != nil {
			if errors.Is(err, ErrSourceExhausted) {
				return nil
			}
			return err
		}

		frameIndex++
		if opts.stride > 1 && frameIndex%opts.stride != 0 {
			frame.Close()
			continue
		}

		session.framesRead++
		s.processFrame(frame, session, opts)
		frame.Close()
	}
	return nil
}

// processFrame runs one frame through enhance → detect → gates → align →
// crop → encode. Per-frame failures are swallowed; they only reduce the
// sample count for the call.
func (s *FaceGateService) processFrame(frame gocv.Mat, session *captureSession, opts collectOptions) {
	enhanced := Enhance(frame)
	defer enhanced.Close()

	detections, err := s.detector.Detect(enhanced)
	if err != nil {
		logger.Warning("face detection failed on frame", logger.LoggerOptions{
			Key:  "error",
			Data: err,
		})
		return
	}
	if len(detections) == 0 {
		return
	}

	var det types.Detection
	if opts.exactlyOneFace {
		if len(detections) != 1 {
			return
		}
		det = detections[0]
	} else {
		det = detections[0]
		for _, d := range detections[1:] {
			if d.Confidence > det.Confidence {
				det = d
			}
		}
	}
	session.facesSeen++

	if det.Confidence < s.config.MinFaceConfidence {
		return
	}
	if det.Box.Dx() < s.config.MinFaceSize || det.Box.Dy() < s.config.MinFaceSize {
		return
	}

	var yaw float64
	if opts.qualityGate {
		yaw = EstimateYaw(det.Landmarks)
		if math.Abs(yaw) > s.config.MaxRegistrationYaw {
			return
		}
		if s.tooSimilarPose(session.poses, yaw) {
			return
		}
	}

	if session.spoof != nil {
		session.spoof.Observe(enhanced, det)
		if !session.spoof.Pass() {
			return
		}
	}

	aligned := Align(enhanced, det.Landmarks)
	defer aligned.Close()

	face := CropFace(aligned, det.Box, opts.canonicalSize)
	defer face.Close()
	if face.Empty() {
		return
	}

	if opts.qualityGate && FaceQuality(face) < s.config.QualityThreshold {
		return
	}

	s.captureSample(session, face, yaw, opts)
	if opts.qualityGate {
		// each accepted pose contributes its mirror and gamma variants,
		// so the doubled target stays reachable under pose separation
		for _, variant := range augmentFace(face) {
			if len(session.embeddings) < opts.target {
				s.captureSample(session, variant, yaw, opts)
			}
			variant.Close()
		}
	}
}

// captureSample encodes one patch and folds it into the session. Encoding
// failures only reduce the sample count.
func (s *FaceGateService) captureSample(session *captureSession, patch gocv.Mat, yaw float64, opts collectOptions) {
	embedding, err := s.encoder.Encode(patch)
	if err != nil {
		logger.Warning("face encoding failed on frame", logger.LoggerOptions{
			Key:  "error",
			Data: err,
		})
		return
	}
	if embedding == nil {
		return
	}

	session.embeddings = append(session.embeddings, *embedding)
	if opts.qualityGate {
		session.poses = append(session.poses, yaw)
	}
	if s.OnSample != nil {
		s.OnSample(len(session.embeddings), opts.target)
	}
}

// tooSimilarPose enforces pose diversity between accepted enrollment
// samples.
func (s *FaceGateService) tooSimilarPose(poses []float64, yaw float64) bool {
	for _, p := range poses {
		if math.Abs(p-yaw) < s.config.MinPoseSeparation {
			return true
		}
	}
	return false
}

// varianceVector is the per-dimension variance across embeddings, stored
// with the record for diagnostics.
func varianceVector(embeddings []entities.Embedding) []float32 {
	if len(embeddings) == 0 {
		return nil
	}
	mean := MeanEmbedding(embeddings)
	dims := len(mean.Vector)
	out := make([]float32, dims)
	for i := 0; i < dims; i++ {
		sum := 0.0
		for _, e := range embeddings {
			d := float64(e.Vector[i]) - float64(mean.Vector[i])
			sum += d * d
		}
		out[i] = float32(sum / float64(len(embeddings)))
	}
	return out
}
