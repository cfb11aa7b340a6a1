package detector

import (
	"context"
	"image"
	"math/rand/v2"
	"sync"

	"github.com/pirdfy/pirdfy-go/internal/frame"
)

// StubBackend is a development backend used when no real model is wired in.
// It occasionally reports a bird with a random box, so the full capture to
// video escalation path can be exercised without hardware or model weights.
type StubBackend struct {
	// DetectionRate is the probability of a frame containing a bird.
	DetectionRate float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewStubBackend returns a stub reporting birds on roughly 30% of frames.
func NewStubBackend() *StubBackend {
	return &StubBackend{
		DetectionRate: 0.3,
		rng:           rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// Detect generates zero to two random bird detections.
func (b *StubBackend) Detect(ctx context.Context, f *frame.Frame, threshold float64) ([]Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f == nil || f.Image == nil || f.Width <= 0 || f.Height <= 0 {
		// Malformed input degrades to no detections, never an error.
		return nil, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.rng.Float64() > b.DetectionRate {
		return nil, nil
	}

	count := 1 + b.rng.IntN(2)
	detections := make([]Detection, 0, count)
	for i := 0; i < count; i++ {
		boxW := 50 + b.rng.IntN(max(1, min(150, f.Width/3)))
		boxH := 50 + b.rng.IntN(max(1, min(150, f.Height/3)))
		x := b.rng.IntN(max(1, f.Width-boxW))
		y := b.rng.IntN(max(1, f.Height-boxH))

		detections = append(detections, Detection{
			Species:    SpeciesUnknown,
			Confidence: 0.5 + b.rng.Float64()*0.45,
			Box:        image.Rect(x, y, x+boxW, y+boxH),
		})
	}
	return detections, nil
}
