package detector

import (
	"context"
	"sync"

	"github.com/pirdfy/pirdfy-go/internal/frame"
)

// Serialized wraps a shared adapter with a mutual exclusion queue so cameras
// never issue overlapping Detect calls to a backend that cannot handle them.
// The lock is keyed by the adapter instance, not by camera.
type Serialized struct {
	mu    sync.Mutex
	inner Adapter
}

// Serialize wraps an adapter. If the adapter reports itself concurrency safe
// it is returned unchanged.
func Serialize(a Adapter) Adapter {
	if cs, ok := a.(ConcurrencySafe); ok && cs.ConcurrencySafe() {
		return a
	}
	if _, ok := a.(*Serialized); ok {
		return a
	}
	return &Serialized{inner: a}
}

// Detect acquires the adapter lock, respecting context cancellation while
// waiting so a camera shutting down does not hang behind a slow inference.
func (s *Serialized) Detect(ctx context.Context, f *frame.Frame, threshold float64) ([]Detection, error) {
	acquired := make(chan struct{})
	go func() {
		s.mu.Lock()
		close(acquired)
	}()

	select {
	case <-acquired:
		defer s.mu.Unlock()
		return s.inner.Detect(ctx, f, threshold)
	case <-ctx.Done():
		// The goroutine still holds or will hold the lock, release it once
		// acquired so later callers are not blocked forever.
		go func() {
			<-acquired
			s.mu.Unlock()
		}()
		return nil, ctx.Err()
	}
}

// ConcurrencySafe reports true: the wrapper makes any backend safe to share.
func (s *Serialized) ConcurrencySafe() bool { return true }

// compile-time interface checks
var (
	_ Adapter         = (*Serialized)(nil)
	_ ConcurrencySafe = (*Serialized)(nil)
)
