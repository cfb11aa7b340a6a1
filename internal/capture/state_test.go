package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pirdfy/pirdfy-go/internal/errors"
)

func TestModeString(t *testing.T) {
	assert.Equal(t, "photo", ModePhoto.String())
	assert.Equal(t, "video", ModeVideo.String())
	assert.Equal(t, "cooldown", ModeCooldown.String())
	assert.Equal(t, "error", ModeError.String())
	assert.Equal(t, "unknown", Mode(42).String())
}

func TestTransitionCycle(t *testing.T) {
	s := &State{}
	require.Equal(t, ModePhoto, s.Mode)

	require.NoError(t, s.Transition(ModeVideo))
	require.NoError(t, s.Transition(ModeCooldown))
	require.NoError(t, s.Transition(ModePhoto))
}

func TestTransitionToSelfIsNoop(t *testing.T) {
	s := &State{Mode: ModeVideo}
	assert.NoError(t, s.Transition(ModeVideo))
	assert.Equal(t, ModeVideo, s.Mode)
}

func TestTransitionErrorReachableFromAnywhere(t *testing.T) {
	for _, from := range []Mode{ModePhoto, ModeVideo, ModeCooldown} {
		s := &State{Mode: from}
		assert.NoError(t, s.Transition(ModeError), "from %s", from)
		assert.Equal(t, ModeError, s.Mode)
	}
}

func TestTransitionErrorRecoversToPhotoOnly(t *testing.T) {
	s := &State{Mode: ModeError}
	assert.Error(t, s.Transition(ModeVideo))
	assert.Error(t, s.Transition(ModeCooldown))
	assert.Equal(t, ModeError, s.Mode)

	assert.NoError(t, s.Transition(ModePhoto))
	assert.Equal(t, ModePhoto, s.Mode)
}

func TestTransitionRejectsSkippingCooldown(t *testing.T) {
	s := &State{Mode: ModeVideo}
	err := s.Transition(ModePhoto)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryState))
	assert.Equal(t, ModeVideo, s.Mode)
}

func TestTransitionRejectsPhotoToCooldown(t *testing.T) {
	s := &State{Mode: ModePhoto}
	assert.Error(t, s.Transition(ModeCooldown))
	assert.Equal(t, ModePhoto, s.Mode)
}
