package biometric

import (
	"fmt"

	"gocv.io/x/gocv"
)

// FrameSource produces a sequence of raw frames in BGR channel order
// (OpenCV native). Camera sources are open ended; video sources are finite
// and additionally implement VideoMeta. The source holds an exclusive OS
// handle for its lifetime, so callers must Close it on every exit path.
type FrameSource interface {
	// Read returns the next frame. The caller owns the returned Mat and
	// must Close it. Returns ErrSourceExhausted when no more frames can be
	// read.
	Read() (gocv.Mat, error)
	Close() error
}

// VideoMeta exposes file-level properties so the pipeline can choose a
// sampling stride.
type VideoMeta interface {
	FrameCount() int
	FPS() float64
}

type captureSource struct {
	capture *gocv.VideoCapture
	file    bool
}

// NewCameraSource opens the local capture device (0 for the default
// webcam). Fails with ErrSourceUnavailable when the device cannot be
// acquired.
func NewCameraSource(device int) (FrameSource, error) {
	capture, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("%w: camera %d: %v", ErrSourceUnavailable, device, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("%w: camera %d", ErrSourceUnavailable, device)
	}
	return &captureSource{capture: capture}, nil
}

// NewVideoSource opens a video file for decoding. Fails with
// ErrSourceUnavailable when the file cannot be opened or decoded.
func NewVideoSource(path string) (FrameSource, error) {
	capture, err := gocv.OpenVideoCapture(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, path, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("%w: %s", ErrSourceUnavailable, path)
	}
	return &captureSource{capture: capture, file: true}, nil
}

func (s *captureSource) Read() (gocv.Mat, error) {
	frame := gocv.NewMat()
	if ok := s.capture.Read(&frame); !ok {
		frame.Close()
		return gocv.Mat{}, ErrSourceExhausted
	}
	if frame.Empty() {
		frame.Close()
		return gocv.Mat{}, ErrSourceExhausted
	}
	return frame, nil
}

func (s *captureSource) FrameCount() int {
	if !s.file {
		return 0
	}
	return int(s.capture.Get(gocv.VideoCaptureFrameCount))
}

func (s *captureSource) FPS() float64 {
	return s.capture.Get(gocv.VideoCaptureFPS)
}

func (s *captureSource) Close() error {
	return s.capture.Close()
}
