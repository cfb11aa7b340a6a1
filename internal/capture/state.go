// Package capture drives the per camera photo/video/cooldown/error cycle.
package capture

import (
	"time"

	"github.com/pirdfy/pirdfy-go/internal/errors"
)

// Mode is the operating mode of one camera.
type Mode int

const (
	ModePhoto Mode = iota
	ModeVideo
	ModeCooldown
	ModeError
)

func (m Mode) String() string {
	switch m {
	case ModePhoto:
		return "photo"
	case ModeVideo:
		return "video"
	case ModeCooldown:
		return "cooldown"
	case ModeError:
		return "error"
	default:
		return "unknown"
	}
}

// State is the mutable condition of one camera. It is owned by that camera's
// orchestrator goroutine.
type State struct {
	Mode          Mode
	Failures      int       // consecutive capture failures
	LastCapture   time.Time // last successful still capture
	CooldownUntil time.Time // earliest re-entry into video mode
}

// validTransitions lists the allowed mode changes. Error is reachable from
// anywhere, recovery from error always lands back in photo mode.
var validTransitions = map[Mode][]Mode{
	ModePhoto:    {ModeVideo, ModeError},
	ModeVideo:    {ModeCooldown, ModeError},
	ModeCooldown: {ModePhoto, ModeError},
	ModeError:    {ModePhoto},
}

// Transition moves the state to a new mode, rejecting moves the cycle does
// not allow. A transition to the current mode is a no-op.
func (s *State) Transition(to Mode) error {
	if to == s.Mode {
		return nil
	}
	for _, allowed := range validTransitions[s.Mode] {
		if to == allowed {
			s.Mode = to
			return nil
		}
	}
	return errors.Newf("invalid mode transition %s -> %s", s.Mode, to).
		Component("capture").
		Category(errors.CategoryState).
		Build()
}
