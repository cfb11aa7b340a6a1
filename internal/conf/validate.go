package conf

import (
	"fmt"
)

// Photo persistence policies.
const (
	PhotoPolicyAlways     = "always"
	PhotoPolicyDetections = "detections"
)

// ValidateSettings checks the loaded settings for values the capture engine
// cannot work with. It returns the first problem found.
func ValidateSettings(s *Settings) error {
	if s.Capture.Interval <= 0 {
		return fmt.Errorf("capture.interval must be positive, got %d", s.Capture.Interval)
	}
	if s.Capture.FailureThreshold <= 0 {
		return fmt.Errorf("capture.failurethreshold must be positive, got %d", s.Capture.FailureThreshold)
	}
	switch s.Capture.PhotoPolicy {
	case PhotoPolicyAlways, PhotoPolicyDetections:
	default:
		return fmt.Errorf("capture.photopolicy must be %q or %q, got %q",
			PhotoPolicyAlways, PhotoPolicyDetections, s.Capture.PhotoPolicy)
	}

	if s.Detection.Threshold < 0 || s.Detection.Threshold > 1 {
		return fmt.Errorf("detection.threshold must be in [0,1], got %f", s.Detection.Threshold)
	}
	if s.Detection.CropPad < 0 {
		return fmt.Errorf("detection.croppad must not be negative, got %d", s.Detection.CropPad)
	}

	if s.Video.Enabled {
		if s.Video.Duration <= 0 {
			return fmt.Errorf("video.duration must be positive, got %d", s.Video.Duration)
		}
		if s.Video.Cooldown < 0 {
			return fmt.Errorf("video.cooldown must not be negative, got %d", s.Video.Cooldown)
		}
	}

	if !s.Output.SQLite.Enabled && !s.Output.MySQL.Enabled {
		return fmt.Errorf("no catalog output enabled, enable output.sqlite or output.mysql")
	}

	seen := make(map[int]bool)
	for i := range s.Capture.Cameras {
		cam := &s.Capture.Cameras[i]
		if cam.ID < 0 {
			return fmt.Errorf("camera id must not be negative, got %d", cam.ID)
		}
		if seen[cam.ID] {
			return fmt.Errorf("duplicate camera id %d", cam.ID)
		}
		seen[cam.ID] = true
		if cam.Name == "" {
			cam.Name = fmt.Sprintf("Camera %d", cam.ID)
		}
	}
	if len(s.EnabledCameras()) == 0 {
		return fmt.Errorf("no enabled cameras configured")
	}

	return nil
}
