package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorBuilder(t *testing.T) {
	base := stderrors.New("capture failed")
	err := New(base).
		Component("capture").
		Category(CategoryCapture).
		CameraContext(1).
		Context("attempt", 3).
		Build()

	assert.Equal(t, "capture failed", err.Error())
	assert.Equal(t, "frame-capture", err.GetCategory())
	assert.Equal(t, "capture", err.Component)
	assert.False(t, err.Timestamp.IsZero())

	ctx := err.GetContext()
	require.NotNil(t, ctx)
	assert.Equal(t, 1, ctx["camera_id"])
	assert.Equal(t, 3, ctx["attempt"])
}

func TestEnhancedErrorUnwrap(t *testing.T) {
	sentinel := stderrors.New("device busy")
	wrapped := fmt.Errorf("tick 42: %w", sentinel)
	err := New(wrapped).Category(CategoryDeviceBusy).Build()

	assert.True(t, Is(err, sentinel))
	var ee *EnhancedError
	assert.True(t, As(err, &ee))
	assert.Equal(t, CategoryDeviceBusy, ee.Category)
}

func TestCategoryMatching(t *testing.T) {
	a := New(stderrors.New("a")).Category(CategoryDatabase).Build()
	b := New(stderrors.New("b")).Category(CategoryDatabase).Build()
	c := New(stderrors.New("c")).Category(CategoryTimeout).Build()

	assert.True(t, stderrors.Is(a, b), "same category should match")
	assert.False(t, stderrors.Is(a, c), "different category should not match")
	assert.True(t, HasCategory(a, CategoryDatabase))
	assert.False(t, HasCategory(a, CategoryTimeout))
	assert.False(t, HasCategory(stderrors.New("plain"), CategoryDatabase))
}

func TestLogAttrs(t *testing.T) {
	err := Newf("store insert failed after retry").
		Component("datastore").
		Category(CategoryDatabase).
		Priority(PriorityHigh).
		CameraContext(0).
		Build()

	attrs := err.LogAttrs()
	// pairs: error, component, category, priority, camera_id
	assert.Len(t, attrs, 10)
	assert.Contains(t, attrs, "priority")
	assert.Contains(t, attrs, "camera_id")
}
