// Package detector defines the detection backend contract and helpers for
// sharing one backend across cameras.
package detector

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/pirdfy/pirdfy-go/internal/frame"
)

// Detection is the result of scoring one frame: a species label (or
// "unknown"), a confidence in [0,1] and a bounding box in frame pixel
// coordinates.
type Detection struct {
	Species    string
	Confidence float64
	Box        image.Rectangle
}

// SpeciesUnknown is used when the backend detects a bird but cannot name it.
const SpeciesUnknown = "unknown"

// Adapter wraps a detection backend. Implementations are stateless per call,
// must not mutate the frame, and must not panic on malformed input; they
// return an empty slice instead. Latency is bounded by the caller, not the
// adapter.
type Adapter interface {
	// Detect scores a frame. threshold is advisory: backends may pre-filter
	// below it, the orchestrator enforces it either way.
	Detect(ctx context.Context, f *frame.Frame, threshold float64) ([]Detection, error)
}

// ConcurrencySafe is optionally implemented by adapters whose backend
// tolerates concurrent Detect calls from multiple cameras.
type ConcurrencySafe interface {
	ConcurrencySafe() bool
}

// DetectWithTimeout runs a.Detect with a hard deadline so a stalled inference
// never blocks the capture cadence. The detect call runs in its own goroutine
// and is allowed to complete or time out, it is not killed mid-flight.
func DetectWithTimeout(ctx context.Context, a Adapter, f *frame.Frame, threshold float64, timeout time.Duration) ([]Detection, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		detections []Detection
		err        error
	}
	done := make(chan result, 1)

	go func() {
		dets, err := a.Detect(ctx, f, threshold)
		done <- result{detections: dets, err: err}
	}()

	select {
	case r := <-done:
		return r.detections, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("detect on camera %d: %w", f.CameraID, ctx.Err())
	}
}
