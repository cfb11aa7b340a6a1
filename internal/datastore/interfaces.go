// interfaces.go: the catalog store contract and its shared GORM implementation.
package datastore

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/pirdfy/pirdfy-go/internal/conf"
)

// Interface abstracts the underlying catalog database. Each write is a single
// independent record insert; the store tolerates concurrent writers from
// different cameras.
type Interface interface {
	Open() error
	Close() error

	InsertPhoto(p *PhotoRecord) error
	InsertDetectionEvent(d *DetectionEvent) error
	InsertVideoSession(v *VideoSession) error
	UpdateVideoSessionEnd(id string, endedAt time.Time) error
	FindOpenVideoSessions() ([]VideoSession, error)
	UpsertCameraStatus(s *CameraStatus) error
	InsertSystemStat(s *SystemStat) error

	// read queries consumed by the presentation layer
	RecentPhotos(limit int, withDetectionsOnly bool) ([]PhotoRecord, error)
	RecentDetections(limit int) ([]DetectionEvent, error)
	RecentVideoSessions(limit int) ([]VideoSession, error)
	HourlyDetectionCounts(day time.Time, cameraID int) ([24]int, error)
	GetCameraStatus(cameraID int) (CameraStatus, error)

	// CleanupOldRecords drops expired rows and returns the media file paths
	// the removed records pointed at, so the caller can unlink them.
	CleanupOldRecords(photoMaxAge, videoMaxAge time.Duration) (int64, []string, error)
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB
}

// New creates a store for whichever catalog output is enabled in settings.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{Settings: settings}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{Settings: settings}
	default:
		return nil
	}
}

// InsertPhoto stores one photo record.
func (ds *DataStore) InsertPhoto(p *PhotoRecord) error {
	if err := ds.DB.Create(p).Error; err != nil {
		return fmt.Errorf("saving photo record: %w", err)
	}
	return nil
}

// InsertDetectionEvent stores one detection event.
func (ds *DataStore) InsertDetectionEvent(d *DetectionEvent) error {
	if err := ds.DB.Create(d).Error; err != nil {
		return fmt.Errorf("saving detection event: %w", err)
	}
	return nil
}

// InsertVideoSession stores a newly started video session.
func (ds *DataStore) InsertVideoSession(v *VideoSession) error {
	if err := ds.DB.Create(v).Error; err != nil {
		return fmt.Errorf("saving video session: %w", err)
	}
	return nil
}

// UpdateVideoSessionEnd closes a session by setting its actual end timestamp.
func (ds *DataStore) UpdateVideoSessionEnd(id string, endedAt time.Time) error {
	result := ds.DB.Model(&VideoSession{}).Where("id = ?", id).Update("ended_at", endedAt)
	if result.Error != nil {
		return fmt.Errorf("closing video session %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("closing video session %s: not found", id)
	}
	return nil
}

// FindOpenVideoSessions returns sessions without an end timestamp, used by
// startup recovery to reconcile orphans.
func (ds *DataStore) FindOpenVideoSessions() ([]VideoSession, error) {
	var sessions []VideoSession
	if err := ds.DB.Where("ended_at IS NULL").Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("finding open video sessions: %w", err)
	}
	return sessions, nil
}

// UpsertCameraStatus creates or replaces the status row for a camera.
func (ds *DataStore) UpsertCameraStatus(s *CameraStatus) error {
	err := ds.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "camera_id"}},
		UpdateAll: true,
	}).Create(s).Error
	if err != nil {
		return fmt.Errorf("upserting camera status: %w", err)
	}
	return nil
}

// InsertSystemStat stores one system resource sample.
func (ds *DataStore) InsertSystemStat(s *SystemStat) error {
	if err := ds.DB.Create(s).Error; err != nil {
		return fmt.Errorf("saving system stat: %w", err)
	}
	return nil
}

// RecentPhotos returns the newest photo records, optionally only those with
// detections.
func (ds *DataStore) RecentPhotos(limit int, withDetectionsOnly bool) ([]PhotoRecord, error) {
	var photos []PhotoRecord
	query := ds.DB.Order("captured_at DESC").Limit(limit)
	if withDetectionsOnly {
		query = query.Where("has_detections = ?", true)
	}
	if err := query.Find(&photos).Error; err != nil {
		return nil, fmt.Errorf("getting recent photos: %w", err)
	}
	return photos, nil
}

// RecentDetections returns the newest detection events.
func (ds *DataStore) RecentDetections(limit int) ([]DetectionEvent, error) {
	var detections []DetectionEvent
	if err := ds.DB.Order("detected_at DESC").Limit(limit).Find(&detections).Error; err != nil {
		return nil, fmt.Errorf("getting recent detections: %w", err)
	}
	return detections, nil
}

// RecentVideoSessions returns the newest video sessions.
func (ds *DataStore) RecentVideoSessions(limit int) ([]VideoSession, error) {
	var sessions []VideoSession
	if err := ds.DB.Order("started_at DESC").Limit(limit).Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("getting recent video sessions: %w", err)
	}
	return sessions, nil
}

// HourlyDetectionCounts returns detection counts per hour for one camera and
// day, feeding the dashboard activity heatmap.
func (ds *DataStore) HourlyDetectionCounts(day time.Time, cameraID int) ([24]int, error) {
	var counts [24]int

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	// Bucketing happens in Go so the query stays portable across SQLite and
	// MySQL.
	var stamps []time.Time
	err := ds.DB.Model(&DetectionEvent{}).
		Where("camera_id = ? AND detected_at >= ? AND detected_at < ?", cameraID, dayStart, dayEnd).
		Pluck("detected_at", &stamps).Error
	if err != nil {
		return counts, fmt.Errorf("getting hourly detection counts: %w", err)
	}

	for _, ts := range stamps {
		counts[ts.In(day.Location()).Hour()]++
	}
	return counts, nil
}

// GetCameraStatus returns the status row for a camera.
func (ds *DataStore) GetCameraStatus(cameraID int) (CameraStatus, error) {
	var status CameraStatus
	if err := ds.DB.First(&status, "camera_id = ?", cameraID).Error; err != nil {
		return CameraStatus{}, fmt.Errorf("getting camera status %d: %w", cameraID, err)
	}
	return status, nil
}

// CleanupOldRecords deletes photo records (with their detection events, via
// cascade) and closed video sessions older than the given ages. Returns the
// number of rows removed and the media files those rows pointed at.
func (ds *DataStore) CleanupOldRecords(photoMaxAge, videoMaxAge time.Duration) (int64, []string, error) {
	now := time.Now()
	var removed int64
	var files []string

	photoCutoff := now.Add(-photoMaxAge)
	var expired []PhotoRecord
	if err := ds.DB.Where("captured_at < ?", photoCutoff).Find(&expired).Error; err != nil {
		return removed, files, fmt.Errorf("listing expired photos: %w", err)
	}
	if len(expired) > 0 {
		ids := make([]uint, 0, len(expired))
		for _, p := range expired {
			ids = append(ids, p.ID)
			if p.Path != "" {
				files = append(files, p.Path)
			}
		}
		var cropPaths []string
		if err := ds.DB.Model(&DetectionEvent{}).Where("photo_id IN ?", ids).
			Pluck("crop_path", &cropPaths).Error; err != nil {
			return removed, files, fmt.Errorf("listing expired crops: %w", err)
		}
		for _, cp := range cropPaths {
			if cp != "" {
				files = append(files, cp)
			}
		}
	}
	res := ds.DB.Where("captured_at < ?", photoCutoff).Delete(&PhotoRecord{})
	if res.Error != nil {
		return removed, files, fmt.Errorf("cleaning up photos: %w", res.Error)
	}
	removed += res.RowsAffected

	videoCutoff := now.Add(-videoMaxAge)
	var videoPaths []string
	if err := ds.DB.Model(&VideoSession{}).
		Where("ended_at IS NOT NULL AND started_at < ?", videoCutoff).
		Pluck("path", &videoPaths).Error; err != nil {
		return removed, files, fmt.Errorf("listing expired video sessions: %w", err)
	}
	for _, vp := range videoPaths {
		if vp != "" {
			files = append(files, vp)
		}
	}
	res = ds.DB.Where("ended_at IS NOT NULL AND started_at < ?", videoCutoff).Delete(&VideoSession{})
	if res.Error != nil {
		return removed, files, fmt.Errorf("cleaning up video sessions: %w", res.Error)
	}
	removed += res.RowsAffected

	return removed, files, nil
}

// performAutoMigration migrates the catalog schema on open.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(
		&PhotoRecord{},
		&DetectionEvent{},
		&VideoSession{},
		&CameraStatus{},
		&SystemStat{},
	); err != nil {
		return fmt.Errorf("failed to auto-migrate %s database: %w", dbType, err)
	}

	if debug {
		log.Printf("%s database connection initialized: %s", dbType, connectionInfo)
	}
	return nil
}

// createGormLogger configures the GORM logger used by both store backends.
func createGormLogger() logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: 200 * time.Millisecond,
			LogLevel:      logger.Warn,
			Colorful:      false,
		},
	)
}
