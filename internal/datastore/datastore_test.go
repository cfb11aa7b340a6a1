package datastore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pirdfy/pirdfy-go/internal/conf"
)

func openTestStore(t *testing.T) Interface {
	t.Helper()
	settings := &conf.Settings{}
	settings.Storage.DataPath = t.TempDir()
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = "test.db"

	store := New(settings)
	require.NotNil(t, store)
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestInsertAndQueryRoundTrip(t *testing.T) {
	store := openTestStore(t)
	now := time.Now()

	photo := &PhotoRecord{
		CameraID:       0,
		CapturedAt:     now,
		Path:           "photos/cam0.jpg",
		Width:          640,
		Height:         480,
		HasDetections:  true,
		DetectionCount: 1,
	}
	require.NoError(t, store.InsertPhoto(photo))
	require.NotZero(t, photo.ID)

	event := &DetectionEvent{
		PhotoID:    photo.ID,
		CameraID:   0,
		DetectedAt: now,
		Species:    "unknown",
		Confidence: 0.83,
		BoxX:       10, BoxY: 20, BoxWidth: 100, BoxHeight: 80,
		CropPath: "birds/crop0.jpg",
	}
	require.NoError(t, store.InsertDetectionEvent(event))

	photos, err := store.RecentPhotos(10, false)
	require.NoError(t, err)
	require.Len(t, photos, 1)
	assert.Equal(t, "photos/cam0.jpg", photos[0].Path)

	detections, err := store.RecentDetections(10)
	require.NoError(t, err)
	require.Len(t, detections, 1)
	assert.InDelta(t, 0.83, detections[0].Confidence, 1e-9)
}

func TestRecentPhotosWithDetectionsOnly(t *testing.T) {
	store := openTestStore(t)
	now := time.Now()

	require.NoError(t, store.InsertPhoto(&PhotoRecord{CameraID: 0, CapturedAt: now, HasDetections: false}))
	require.NoError(t, store.InsertPhoto(&PhotoRecord{CameraID: 0, CapturedAt: now, HasDetections: true}))

	all, err := store.RecentPhotos(10, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	withBirds, err := store.RecentPhotos(10, true)
	require.NoError(t, err)
	assert.Len(t, withBirds, 1)
}

func TestVideoSessionLifecycle(t *testing.T) {
	store := openTestStore(t)
	now := time.Now()

	session := &VideoSession{
		ID:         "session-1",
		CameraID:   1,
		StartedAt:  now,
		PlannedEnd: now.Add(20 * time.Second),
		Path:       "videos/v1.h264",
	}
	require.NoError(t, store.InsertVideoSession(session))

	open, err := store.FindOpenVideoSessions()
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.True(t, open[0].Open())

	end := now.Add(25 * time.Second)
	require.NoError(t, store.UpdateVideoSessionEnd("session-1", end))

	open, err = store.FindOpenVideoSessions()
	require.NoError(t, err)
	assert.Empty(t, open)

	sessions, err := store.RecentVideoSessions(10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.NotNil(t, sessions[0].EndedAt)
	assert.WithinDuration(t, end, *sessions[0].EndedAt, time.Second)
}

func TestUpdateVideoSessionEndMissing(t *testing.T) {
	store := openTestStore(t)
	assert.Error(t, store.UpdateVideoSessionEnd("no-such-session", time.Now()))
}

func TestUpsertCameraStatus(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.UpsertCameraStatus(&CameraStatus{
		CameraID: 0, Name: "Primary", Mode: "PHOTO", UpdatedAt: time.Now(),
	}))
	require.NoError(t, store.UpsertCameraStatus(&CameraStatus{
		CameraID: 0, Name: "Primary", Mode: "ERROR", ConsecutiveFailures: 7, UpdatedAt: time.Now(),
	}))

	status, err := store.GetCameraStatus(0)
	require.NoError(t, err)
	assert.Equal(t, "ERROR", status.Mode)
	assert.Equal(t, 7, status.ConsecutiveFailures)
}

func TestHourlyDetectionCounts(t *testing.T) {
	store := openTestStore(t)
	day := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	for _, hour := range []int{6, 6, 14} {
		require.NoError(t, store.InsertDetectionEvent(&DetectionEvent{
			CameraID:   0,
			DetectedAt: day.Add(time.Duration(hour) * time.Hour),
			Species:    "unknown",
			Confidence: 0.9,
		}))
	}
	// Different camera, must not be counted.
	require.NoError(t, store.InsertDetectionEvent(&DetectionEvent{
		CameraID: 1, DetectedAt: day.Add(6 * time.Hour), Species: "unknown", Confidence: 0.9,
	}))

	counts, err := store.HourlyDetectionCounts(day, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[6])
	assert.Equal(t, 1, counts[14])
	assert.Equal(t, 0, counts[7])
}

func TestCleanupOldRecords(t *testing.T) {
	store := openTestStore(t)
	now := time.Now()
	old := now.Add(-60 * 24 * time.Hour)

	oldPhoto := &PhotoRecord{CameraID: 0, CapturedAt: old, Path: "photos/old.jpg"}
	require.NoError(t, store.InsertPhoto(oldPhoto))
	require.NoError(t, store.InsertPhoto(&PhotoRecord{CameraID: 0, CapturedAt: now, Path: "photos/new.jpg"}))

	ended := old.Add(20 * time.Second)
	require.NoError(t, store.InsertVideoSession(&VideoSession{
		ID: "old", CameraID: 0, StartedAt: old, PlannedEnd: ended, EndedAt: &ended,
		Path: "videos/old.h264",
	}))
	// An open session is never cleaned up, regardless of age.
	require.NoError(t, store.InsertVideoSession(&VideoSession{
		ID: "old-open", CameraID: 0, StartedAt: old, PlannedEnd: ended,
	}))

	removed, files, err := store.CleanupOldRecords(30*24*time.Hour, 7*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)
	assert.ElementsMatch(t, []string{"photos/old.jpg", "videos/old.h264"}, files)

	photos, err := store.RecentPhotos(10, false)
	require.NoError(t, err)
	assert.Len(t, photos, 1)

	open, err := store.FindOpenVideoSessions()
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestCleanupCascadesDetectionEvents(t *testing.T) {
	store := openTestStore(t)
	now := time.Now()
	old := now.Add(-60 * 24 * time.Hour)

	photo := &PhotoRecord{CameraID: 0, CapturedAt: old, Path: "photos/old.jpg", HasDetections: true}
	require.NoError(t, store.InsertPhoto(photo))
	require.NoError(t, store.InsertDetectionEvent(&DetectionEvent{
		PhotoID: photo.ID, CameraID: 0, DetectedAt: old,
		Species: "unknown", Confidence: 0.8, CropPath: "birds/old_crop.jpg",
	}))

	removed, files, err := store.CleanupOldRecords(30*24*time.Hour, 7*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	assert.ElementsMatch(t, []string{"photos/old.jpg", "birds/old_crop.jpg"}, files)

	// The event row cascades with its photo instead of lingering orphaned.
	events, err := store.RecentDetections(10)
	require.NoError(t, err)
	assert.Empty(t, events)
}
