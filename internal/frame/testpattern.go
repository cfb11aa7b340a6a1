package frame

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TestPatternSource is a synthetic frame source for development and tests on
// machines without camera hardware. It renders a gradient test pattern and
// records video as an empty placeholder file.
type TestPatternSource struct {
	CameraID int
	Width    int
	Height   int

	mu        sync.Mutex
	recording *testPatternHandle
}

// NewTestPatternSource returns a synthetic source producing 640x480 frames.
func NewTestPatternSource(cameraID int) *TestPatternSource {
	return &TestPatternSource{CameraID: cameraID, Width: 640, Height: 480}
}

// CaptureStill renders a gradient pattern frame.
func (s *TestPatternSource) CaptureStill(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeviceTimeout, err)
	}

	img := image.NewRGBA(image.Rect(0, 0, s.Width, s.Height))
	for y := 0; y < s.Height; y++ {
		for x := 0; x < s.Width; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(255 * x / s.Width),
				G: uint8(255 * y / s.Height),
				B: uint8(128 + 127*math.Sin(float64(x+y)/50)),
				A: 255,
			})
		}
	}

	return &Frame{
		ID:        uuid.New().String(),
		CameraID:  s.CameraID,
		Timestamp: time.Now(),
		Width:     s.Width,
		Height:    s.Height,
		Image:     img,
	}, nil
}

type testPatternHandle struct {
	path string
	file *os.File
}

func (h *testPatternHandle) Path() string { return h.path }

// StartVideo creates the output file as a placeholder recording. Only one
// recording at a time, mirroring a real exclusive device.
func (s *TestPatternSource) StartVideo(ctx context.Context, path string, durationHint time.Duration) (VideoHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeviceTimeout, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recording != nil {
		return nil, fmt.Errorf("%w: recording already active", ErrResourceConflict)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating video directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating video file: %w", err)
	}

	s.recording = &testPatternHandle{path: path, file: file}
	return s.recording, nil
}

// StopVideo closes the placeholder recording file.
func (s *TestPatternSource) StopVideo(h VideoHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	handle, ok := h.(*testPatternHandle)
	if !ok || handle != s.recording {
		return fmt.Errorf("stop video: unknown handle")
	}
	s.recording = nil
	return handle.file.Close()
}

// HealthCheck always succeeds for the synthetic source.
func (s *TestPatternSource) HealthCheck(ctx context.Context) bool {
	return ctx.Err() == nil
}
