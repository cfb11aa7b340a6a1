// model.go defines the catalog data model persisted by the capture engine.
package datastore

import "time"

// PhotoRecord is the persisted record of one captured frame. One per capture
// cycle, subject to the configured photo persistence policy.
type PhotoRecord struct {
	ID             uint      `gorm:"primaryKey"`
	CameraID       int       `gorm:"index:idx_photos_camera_time"`
	CapturedAt     time.Time `gorm:"index:idx_photos_camera_time"`
	Path           string
	Width          int
	Height         int
	HasDetections  bool `gorm:"index"`
	DetectionCount int

	Detections []DetectionEvent `gorm:"foreignKey:PhotoID;constraint:OnDelete:CASCADE"`
}

// DetectionEvent is one qualifying detection from a frame, immutable once
// created. The crop path points at the padded bounding box cutout.
type DetectionEvent struct {
	ID         uint      `gorm:"primaryKey"`
	PhotoID    uint      `gorm:"index"`
	CameraID   int       `gorm:"index:idx_detections_camera_time"`
	DetectedAt time.Time `gorm:"index:idx_detections_camera_time"`
	Species    string    `gorm:"index"`
	Confidence float64
	BoxX       int
	BoxY       int
	BoxWidth   int
	BoxHeight  int
	CropPath   string
}

// VideoSession is a recording segment. EndedAt is null while the session is
// active; a session with a null EndedAt after restart is orphaned and gets
// closed during startup recovery.
type VideoSession struct {
	ID             string     `gorm:"primaryKey"` // uuid
	CameraID       int        `gorm:"index:idx_videos_camera_time"`
	StartedAt      time.Time  `gorm:"index:idx_videos_camera_time"`
	PlannedEnd     time.Time
	EndedAt        *time.Time `gorm:"index"`
	TriggerEventID uint
	Path           string
}

// Open reports whether the session has not been closed yet.
func (v *VideoSession) Open() bool {
	return v.EndedAt == nil
}

// CameraStatus is the per camera mode and failure surface the dashboard reads
// to explain degraded states. One row per camera, upserted on transitions.
type CameraStatus struct {
	CameraID            int `gorm:"primaryKey"`
	Name                string
	Mode                string
	ConsecutiveFailures int
	LastCaptureAt       time.Time
	UpdatedAt           time.Time
}

// SystemStat is a periodic sample of host resources, including the battery
// level driving low power mode.
type SystemStat struct {
	ID             uint      `gorm:"primaryKey"`
	SampledAt      time.Time `gorm:"index"`
	CPUPercent     float64
	MemoryPercent  float64
	DiskPercent    float64
	BatteryPercent float64
	LowPower       bool
}
