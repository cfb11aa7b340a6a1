package datastore

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Interface implementation for tests and
// development runs without a database. Writes can be made to fail for
// fault-injection via FailNextWrites.
type MemoryStore struct {
	mu       sync.Mutex
	photos   []PhotoRecord
	events   []DetectionEvent
	sessions []VideoSession
	statuses map[int]CameraStatus
	stats    []SystemStat

	nextPhotoID uint
	nextEventID uint
	failWrites  int
	writeErr    error
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{statuses: make(map[int]CameraStatus)}
}

// FailNextWrites makes the next n write calls return err.
func (m *MemoryStore) FailNextWrites(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWrites = n
	m.writeErr = err
}

func (m *MemoryStore) checkWrite() error {
	if m.failWrites > 0 {
		m.failWrites--
		return m.writeErr
	}
	return nil
}

func (m *MemoryStore) Open() error  { return nil }
func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) InsertPhoto(p *PhotoRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkWrite(); err != nil {
		return err
	}
	m.nextPhotoID++
	p.ID = m.nextPhotoID
	m.photos = append(m.photos, *p)
	return nil
}

func (m *MemoryStore) InsertDetectionEvent(d *DetectionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkWrite(); err != nil {
		return err
	}
	m.nextEventID++
	d.ID = m.nextEventID
	m.events = append(m.events, *d)
	return nil
}

func (m *MemoryStore) InsertVideoSession(v *VideoSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkWrite(); err != nil {
		return err
	}
	m.sessions = append(m.sessions, *v)
	return nil
}

func (m *MemoryStore) UpdateVideoSessionEnd(id string, endedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkWrite(); err != nil {
		return err
	}
	for i := range m.sessions {
		if m.sessions[i].ID == id {
			end := endedAt
			m.sessions[i].EndedAt = &end
			return nil
		}
	}
	return fmt.Errorf("closing video session %s: not found", id)
}

func (m *MemoryStore) FindOpenVideoSessions() ([]VideoSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var open []VideoSession
	for _, s := range m.sessions {
		if s.EndedAt == nil {
			open = append(open, s)
		}
	}
	return open, nil
}

func (m *MemoryStore) UpsertCameraStatus(s *CameraStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkWrite(); err != nil {
		return err
	}
	m.statuses[s.CameraID] = *s
	return nil
}

func (m *MemoryStore) InsertSystemStat(s *SystemStat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkWrite(); err != nil {
		return err
	}
	m.stats = append(m.stats, *s)
	return nil
}

func (m *MemoryStore) RecentPhotos(limit int, withDetectionsOnly bool) ([]PhotoRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var photos []PhotoRecord
	for _, p := range m.photos {
		if !withDetectionsOnly || p.HasDetections {
			photos = append(photos, p)
		}
	}
	sort.Slice(photos, func(i, j int) bool { return photos[i].CapturedAt.After(photos[j].CapturedAt) })
	if len(photos) > limit {
		photos = photos[:limit]
	}
	return photos, nil
}

func (m *MemoryStore) RecentDetections(limit int) ([]DetectionEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	events := append([]DetectionEvent(nil), m.events...)
	sort.Slice(events, func(i, j int) bool { return events[i].DetectedAt.After(events[j].DetectedAt) })
	if len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

func (m *MemoryStore) RecentVideoSessions(limit int) ([]VideoSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sessions := append([]VideoSession(nil), m.sessions...)
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].StartedAt.After(sessions[j].StartedAt) })
	if len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions, nil
}

func (m *MemoryStore) HourlyDetectionCounts(day time.Time, cameraID int) ([24]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var counts [24]int
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.Add(24 * time.Hour)
	for _, e := range m.events {
		if e.CameraID == cameraID && !e.DetectedAt.Before(dayStart) && e.DetectedAt.Before(dayEnd) {
			counts[e.DetectedAt.In(day.Location()).Hour()]++
		}
	}
	return counts, nil
}

func (m *MemoryStore) GetCameraStatus(cameraID int) (CameraStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	status, ok := m.statuses[cameraID]
	if !ok {
		return CameraStatus{}, fmt.Errorf("getting camera status %d: not found", cameraID)
	}
	return status, nil
}

func (m *MemoryStore) CleanupOldRecords(photoMaxAge, videoMaxAge time.Duration) (int64, []string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	var removed int64
	var files []string

	droppedPhotos := make(map[uint]bool)
	kept := m.photos[:0]
	for _, p := range m.photos {
		if p.CapturedAt.After(now.Add(-photoMaxAge)) {
			kept = append(kept, p)
		} else {
			droppedPhotos[p.ID] = true
			if p.Path != "" {
				files = append(files, p.Path)
			}
			removed++
		}
	}
	m.photos = kept

	// detection events cascade with their photo
	keptEvents := m.events[:0]
	for _, e := range m.events {
		if droppedPhotos[e.PhotoID] {
			if e.CropPath != "" {
				files = append(files, e.CropPath)
			}
			continue
		}
		keptEvents = append(keptEvents, e)
	}
	m.events = keptEvents

	keptSessions := m.sessions[:0]
	for _, s := range m.sessions {
		if s.EndedAt == nil || s.StartedAt.After(now.Add(-videoMaxAge)) {
			keptSessions = append(keptSessions, s)
		} else {
			if s.Path != "" {
				files = append(files, s.Path)
			}
			removed++
		}
	}
	m.sessions = keptSessions

	return removed, files, nil
}

// Photos returns a copy of the stored photo records, oldest first.
func (m *MemoryStore) Photos() []PhotoRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PhotoRecord(nil), m.photos...)
}

// Detections returns a copy of the stored detection events, oldest first.
func (m *MemoryStore) Detections() []DetectionEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]DetectionEvent(nil), m.events...)
}

// Sessions returns a copy of the stored video sessions, oldest first.
func (m *MemoryStore) Sessions() []VideoSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]VideoSession(nil), m.sessions...)
}

// Stats returns a copy of the stored system stats, oldest first.
func (m *MemoryStore) Stats() []SystemStat {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SystemStat(nil), m.stats...)
}

var _ Interface = (*MemoryStore)(nil)
