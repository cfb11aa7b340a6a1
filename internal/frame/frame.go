// Package frame defines the captured frame type and the camera device contract.
package frame

import (
	"context"
	"errors"
	"image"
	"time"
)

// Device error conditions. Sources wrap their driver errors with these so the
// orchestrator can tell transient faults from fatal ones.
var (
	ErrDeviceTimeout    = errors.New("frame source: capture timed out")
	ErrDeviceBusy       = errors.New("frame source: device busy")
	ErrDeviceNotFound   = errors.New("frame source: device not found")
	ErrResourceConflict = errors.New("frame source: still and video capture conflict")
)

// Frame is an immutable captured image. The capturing orchestrator cycle owns
// it until it is handed to the detector or the catalog store, after which it
// must not be mutated.
type Frame struct {
	ID        string
	CameraID  int
	Timestamp time.Time
	Width     int
	Height    int
	Image     image.Image
}

// VideoHandle identifies an in-progress video recording on a Source.
type VideoHandle interface {
	// Path returns the output file path of the recording.
	Path() string
}

// Source wraps one physical camera. A Source is exclusively owned by one
// camera's orchestrator, no other component calls it directly.
type Source interface {
	// CaptureStill captures a single frame. Errors wrap ErrDeviceTimeout,
	// ErrDeviceBusy or ErrDeviceNotFound.
	CaptureStill(ctx context.Context) (*Frame, error)

	// StartVideo switches the device into streaming mode writing to path.
	// durationHint is advisory, the recording controller decides when to stop.
	// Returns an error wrapping ErrResourceConflict if the device cannot
	// record while still capture is configured.
	StartVideo(ctx context.Context, path string, durationHint time.Duration) (VideoHandle, error)

	// StopVideo finalizes the recording behind the handle.
	StopVideo(h VideoHandle) error

	// HealthCheck probes the device, used to leave the error state.
	HealthCheck(ctx context.Context) bool
}
