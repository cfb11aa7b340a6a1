package detector

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pirdfy/pirdfy-go/internal/frame"
)

// fakeAdapter counts concurrent Detect calls and fails the test if two ever
// overlap while serialized.
type fakeAdapter struct {
	active   atomic.Int32
	maxSeen  atomic.Int32
	delay    time.Duration
	result   []Detection
	err      error
	safeFlag bool
}

func (a *fakeAdapter) Detect(ctx context.Context, f *frame.Frame, threshold float64) ([]Detection, error) {
	cur := a.active.Add(1)
	defer a.active.Add(-1)
	for {
		prev := a.maxSeen.Load()
		if cur <= prev || a.maxSeen.CompareAndSwap(prev, cur) {
			break
		}
	}
	if a.delay > 0 {
		select {
		case <-time.After(a.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return a.result, a.err
}

func (a *fakeAdapter) ConcurrencySafe() bool { return a.safeFlag }

func captureFrame(cameraID int) *frame.Frame {
	return &frame.Frame{
		ID:       "f",
		CameraID: cameraID,
		Width:    640,
		Height:   480,
		Image:    image.NewRGBA(image.Rect(0, 0, 640, 480)),
	}
}

func TestSerializePreventsOverlap(t *testing.T) {
	inner := &fakeAdapter{delay: 5 * time.Millisecond}
	shared := Serialize(inner)

	var wg sync.WaitGroup
	for cam := 0; cam < 8; cam++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			_, err := shared.Detect(context.Background(), captureFrame(id), 0.5)
			assert.NoError(t, err)
		}(cam)
	}
	wg.Wait()

	assert.Equal(t, int32(1), inner.maxSeen.Load(), "serialized adapter must never run overlapping detect calls")
}

func TestSerializeSkipsSafeBackends(t *testing.T) {
	safe := &fakeAdapter{safeFlag: true}
	assert.Same(t, Adapter(safe), Serialize(safe))

	unsafe := &fakeAdapter{}
	wrapped := Serialize(unsafe)
	assert.NotSame(t, Adapter(unsafe), wrapped)

	// Wrapping twice is a no-op.
	assert.Same(t, wrapped, Serialize(wrapped))
}

func TestSerializedDetectHonorsCancellation(t *testing.T) {
	inner := &fakeAdapter{delay: 200 * time.Millisecond}
	shared := Serialize(inner)

	// First caller occupies the lock.
	go func() {
		_, _ = shared.Detect(context.Background(), captureFrame(0), 0.5)
	}()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := shared.Detect(ctx, captureFrame(1), 0.5)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDetectWithTimeout(t *testing.T) {
	slow := &fakeAdapter{delay: 500 * time.Millisecond}
	_, err := DetectWithTimeout(context.Background(), slow, captureFrame(0), 0.5, 20*time.Millisecond)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	fast := &fakeAdapter{result: []Detection{{Species: SpeciesUnknown, Confidence: 0.9}}}
	dets, err := DetectWithTimeout(context.Background(), fast, captureFrame(0), 0.5, time.Second)
	require.NoError(t, err)
	assert.Len(t, dets, 1)
}

func TestStubBackendMalformedInput(t *testing.T) {
	stub := NewStubBackend()

	dets, err := stub.Detect(context.Background(), &frame.Frame{}, 0.5)
	assert.NoError(t, err)
	assert.Empty(t, dets)

	dets, err = stub.Detect(context.Background(), nil, 0.5)
	assert.NoError(t, err)
	assert.Empty(t, dets)
}

func TestStubBackendTinyFrame(t *testing.T) {
	stub := NewStubBackend()
	stub.DetectionRate = 1.0
	f := &frame.Frame{
		CameraID: 0,
		Width:    2,
		Height:   2,
		Image:    image.NewRGBA(image.Rect(0, 0, 2, 2)),
	}

	// A frame narrower than the minimum box must still produce detections
	// without panicking.
	for i := 0; i < 20; i++ {
		dets, err := stub.Detect(context.Background(), f, 0.5)
		require.NoError(t, err)
		require.NotEmpty(t, dets)
	}
}

func TestStubBackendBoxesInsideFrame(t *testing.T) {
	stub := NewStubBackend()
	stub.DetectionRate = 1.0
	f := captureFrame(0)

	for i := 0; i < 50; i++ {
		dets, err := stub.Detect(context.Background(), f, 0.5)
		require.NoError(t, err)
		require.NotEmpty(t, dets)
		for _, d := range dets {
			assert.True(t, d.Box.In(f.Image.Bounds()), "box %v outside frame", d.Box)
			assert.GreaterOrEqual(t, d.Confidence, 0.5)
			assert.LessOrEqual(t, d.Confidence, 1.0)
		}
	}
}
