package biometric

import (
	"context"
	"errors"
	"image"
	"path/filepath"
	"testing"
	"time"

	"facegate.humanid.io/entities"
	"facegate.humanid.io/infrastructure/biometric/types"
	"facegate.humanid.io/infrastructure/enrollment"
	"facegate.humanid.io/infrastructure/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

type stubDetector struct{}

func (stubDetector) Detect(frame gocv.Mat) ([]types.Detection, error) { return nil, nil }
func (stubDetector) Close() error                                     { return nil }

type stubEncoder struct{}

func (stubEncoder) Encode(face gocv.Mat) (*entities.Embedding, error) { return nil, nil }
func (stubEncoder) Scheme() entities.EmbeddingScheme                  { return entities.SchemeSFace }
func (stubEncoder) Close() error                                      { return nil }

// exhaustedSource yields no frames and counts how often it was asked.
type exhaustedSource struct {
	reads int
}

func (s *exhaustedSource) Read() (gocv.Mat, error) {
	s.reads++
	return gocv.Mat{}, ErrSourceExhausted
}

func (s *exhaustedSource) Close() error { return nil }

// exhaustedFileSource additionally reports video metadata.
type exhaustedFileSource struct {
	exhaustedSource
	frameCount int
}

func (s *exhaustedFileSource) FrameCount() int { return s.frameCount }
func (s *exhaustedFileSource) FPS() float64    { return 30 }

func newTestService(t *testing.T) *FaceGateService {
	t.Helper()
	config := types.SecurityConfig{
		MaxLoginAttempts:   3,
		LockoutTime:        30 * time.Second,
		MinFaceConfidence:  0.95,
		MatchTolerance:     0.40,
		MinFaceSize:        100,
		EnrollSamples:      10,
		EnrollTimeout:      time.Minute,
		VerifyTimeout:      10 * time.Second,
		FrameStride:        15,
		VerifySampleTarget: 10,
		KeepVariance:       0.95,
		CanonicalFaceSize:  150,
	}
	return NewFaceGateService(
		stubDetector{},
		stubEncoder{},
		enrollment.NewStore(filepath.Join(t.TempDir(), "enrollments.json")),
		ratelimit.NewLoginAttemptStore(config.MaxLoginAttempts, config.LockoutTime),
		config,
	)
}

func seedIdentity(t *testing.T, s *FaceGateService, username string) {
	t.Helper()
	require.NoError(t, s.store.Enroll(entities.IdentityRecord{
		Username:    username,
		Embedding:   embedding(1, 0, 0),
		SampleCount: 10,
		EnrolledAt:  time.Now(),
	}))
}

func TestVerifyUnregistered(t *testing.T) {
	s := newTestService(t)

	_, err := s.Verify(context.Background(), "ghost", &exhaustedSource{})
	assert.ErrorIs(t, err, ErrNotRegistered)
	assert.Zero(t, s.attempts.Failures("ghost"), "an unknown username must not consume the attempt budget")
}

func TestVerifyNoUsableSamplesCountsOneFailure(t *testing.T) {
	s := newTestService(t)
	seedIdentity(t, s, "ada")

	_, err := s.Verify(context.Background(), "ada", &exhaustedSource{})
	assert.ErrorIs(t, err, ErrInsufficientSamples)
	assert.Equal(t, 1, s.attempts.Failures("ada"), "one call moves the counter exactly once")
}

func TestVerifyLockoutBlocksBeforeCapture(t *testing.T) {
	s := newTestService(t)
	seedIdentity(t, s, "ada")

	for i := 0; i < s.config.MaxLoginAttempts; i++ {
		_, err := s.Verify(context.Background(), "ada", &exhaustedSource{})
		require.ErrorIs(t, err, ErrInsufficientSamples)
	}

	source := &exhaustedSource{}
	_, err := s.Verify(context.Background(), "ada", source)

	var locked *ratelimit.AccountLockedError
	require.True(t, errors.As(err, &locked))
	assert.Positive(t, locked.RetryAfter)
	assert.Zero(t, source.reads, "a locked account must not touch the capture source")
}

func TestVerifyCancelledContext(t *testing.T) {
	s := newTestService(t)
	seedIdentity(t, s, "ada")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Verify(ctx, "ada", &exhaustedSource{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, s.attempts.Failures("ada"), "a cancelled capture is not a failed attempt")
}

func TestEnrollDuplicate(t *testing.T) {
	s := newTestService(t)
	seedIdentity(t, s, "ada")

	_, err := s.Enroll(context.Background(), "ada", &exhaustedSource{})
	assert.ErrorIs(t, err, enrollment.ErrAlreadyRegistered)
}

func TestEnrollNoFaces(t *testing.T) {
	s := newTestService(t)

	_, err := s.Enroll(context.Background(), "ada", &exhaustedSource{})
	assert.ErrorIs(t, err, ErrNoFaceDetected)

	_, lookupErr := s.store.Lookup("ada")
	assert.ErrorIs(t, lookupErr, enrollment.ErrNotFound, "a failed enrollment must not persist anything")
}

func TestDeleteUnlocksReEnrollment(t *testing.T) {
	s := newTestService(t)
	seedIdentity(t, s, "ada")

	require.NoError(t, s.Delete("ada"))
	usernames, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, usernames)
	assert.ErrorIs(t, s.Delete("ada"), enrollment.ErrNotFound)
}

// frameSource emits a fixed number of blank camera-sized frames.
type frameSource struct {
	frames int
	reads  int
}

func (s *frameSource) Read() (gocv.Mat, error) {
	if s.reads >= s.frames {
		return gocv.Mat{}, ErrSourceExhausted
	}
	s.reads++
	return gocv.NewMatWithSize(160, 160, gocv.MatTypeCV8UC3), nil
}

func (s *frameSource) Close() error { return nil }

// fixedDetector reports one confident frontal face on every frame.
type fixedDetector struct{}

func (fixedDetector) Detect(frame gocv.Mat) ([]types.Detection, error) {
	return []types.Detection{{
		Box:        image.Rect(20, 20, 140, 140),
		Confidence: 0.99,
		Landmarks: types.Landmarks{
			RightEye:   image.Pt(50, 60),
			LeftEye:    image.Pt(110, 60),
			Nose:       image.Pt(80, 90),
			RightMouth: image.Pt(60, 120),
			LeftMouth:  image.Pt(100, 120),
		},
	}}, nil
}

func (fixedDetector) Close() error { return nil }

// fixedEncoder returns the same embedding for every patch.
type fixedEncoder struct {
	vector []float32
}

func (e fixedEncoder) Encode(face gocv.Mat) (*entities.Embedding, error) {
	vector := make([]float32, len(e.vector))
	copy(vector, e.vector)
	return &entities.Embedding{Scheme: entities.SchemeSFace, Vector: vector}, nil
}

func (fixedEncoder) Scheme() entities.EmbeddingScheme { return entities.SchemeSFace }
func (fixedEncoder) Close() error                     { return nil }

// driftEncoder varies one dimension per call so a projection fit sees
// variance.
type driftEncoder struct {
	calls int
}

func (e *driftEncoder) Encode(face gocv.Mat) (*entities.Embedding, error) {
	e.calls++
	return &entities.Embedding{
		Scheme: entities.SchemeSFace,
		Vector: []float32{1, 0.01 * float32(e.calls), 0},
	}, nil
}

func (*driftEncoder) Scheme() entities.EmbeddingScheme { return entities.SchemeSFace }
func (*driftEncoder) Close() error                     { return nil }

func newCaptureTestService(t *testing.T, encoder Encoder, fitProjection bool) *FaceGateService {
	t.Helper()
	config := types.SecurityConfig{
		MaxLoginAttempts:   3,
		LockoutTime:        30 * time.Second,
		MinFaceConfidence:  0.95,
		MatchTolerance:     0.40,
		MinFaceSize:        100,
		EnrollSamples:      3,
		EnrollTimeout:      time.Minute,
		VerifyTimeout:      10 * time.Second,
		FrameStride:        15,
		VerifySampleTarget: 3,
		FitProjection:      fitProjection,
		KeepVariance:       0.95,
		QualityThreshold:   0,
		MaxRegistrationYaw: 25.0,
		MinPoseSeparation:  0,
		CanonicalFaceSize:  150,
	}
	return NewFaceGateService(
		fixedDetector{},
		encoder,
		enrollment.NewStore(filepath.Join(t.TempDir(), "enrollments.json")),
		ratelimit.NewLoginAttemptStore(config.MaxLoginAttempts, config.LockoutTime),
		config,
	)
}

func TestEnrollVerifyRoundTrip(t *testing.T) {
	s := newCaptureTestService(t, fixedEncoder{vector: []float32{0.6, 0.8, 0}}, false)

	enrolled, err := s.Enroll(context.Background(), "ada", &frameSource{frames: 6})
	require.NoError(t, err)
	assert.Equal(t, 3, enrolled.SampleCount)

	record, err := s.store.Lookup("ada")
	require.NoError(t, err)
	assert.Equal(t, entities.SchemeSFace, record.Embedding.Scheme)
	assert.Equal(t, []float32{0.6, 0.8, 0}, record.Embedding.Vector)
	assert.Nil(t, record.Projection)

	// a capture of the same face clears an earlier failure
	s.attempts.RecordFailure("ada")
	result, err := s.Verify(context.Background(), "ada", &frameSource{frames: 6})
	require.NoError(t, err)
	assert.True(t, result.IsMatch)
	assert.InDelta(t, 0, result.Distance, 1e-6)
	assert.Equal(t, 3, result.SampleCount)
	assert.Zero(t, s.attempts.Failures("ada"), "a successful match resets the counter")
}

func TestEnrollAdvancedPathFitsProjection(t *testing.T) {
	s := newCaptureTestService(t, &driftEncoder{}, true)

	enrolled, err := s.Enroll(context.Background(), "ada", &frameSource{frames: 10})
	require.NoError(t, err)
	assert.Equal(t, 6, enrolled.SampleCount, "augmentation fills the doubled target from two accepted frames")

	record, err := s.store.Lookup("ada")
	require.NoError(t, err)
	require.NotNil(t, record.Projection)
	assert.Equal(t, entities.SchemeSFace, record.Projection.InputScheme)
	assert.Equal(t, entities.SchemeSFacePCA, record.Embedding.Scheme)
	assert.Len(t, record.Variance, record.Projection.OutputDims())
}

func TestVerifyAgainstProjectedRecord(t *testing.T) {
	s := newCaptureTestService(t, fixedEncoder{vector: []float32{3, 0, 0}}, false)

	// record enrolled through a fitted projection
	samples := dominantAxisSamples()
	projection, err := FitProjection(samples, 0.95, entities.SchemeSFacePCA)
	require.NoError(t, err)
	projected, err := ProjectAll(projection, samples)
	require.NoError(t, err)
	require.NoError(t, s.store.Enroll(entities.IdentityRecord{
		Username:    "ada",
		Embedding:   MeanEmbedding(projected),
		Projection:  projection,
		SampleCount: len(samples),
		EnrolledAt:  time.Now(),
	}))

	// raw SFace probes pass through the stored projection before matching
	result, err := s.Verify(context.Background(), "ada", &frameSource{frames: 6})
	require.NoError(t, err)
	assert.True(t, result.IsMatch)
	assert.Zero(t, s.attempts.Failures("ada"))
}

func TestAdvancedSampleTargetReachable(t *testing.T) {
	config := types.DefaultSecurityConfig()

	target := config.EnrollSamples * 2
	maxDistinctPoses := int(2*config.MaxRegistrationYaw/config.MinPoseSeparation) + 1
	posesNeeded := (target + augmentationsPerSample - 1) / augmentationsPerSample

	assert.LessOrEqual(t, posesNeeded, maxDistinctPoses,
		"the doubled sample target must be reachable within the pose separation budget")
}

func TestStrides(t *testing.T) {
	s := newTestService(t)

	assert.Equal(t, 1, s.enrollStride(&exhaustedSource{}), "cameras are read frame by frame")
	assert.Equal(t, 15, s.enrollStride(&exhaustedFileSource{frameCount: 450}))

	assert.Equal(t, 1, s.verifyStride(&exhaustedSource{}))
	assert.Equal(t, 10, s.verifyStride(&exhaustedFileSource{frameCount: 300}))
	assert.Equal(t, 1, s.verifyStride(&exhaustedFileSource{frameCount: 10}), "short clips use every frame")
}
