// Package recording manages the escalation from still capture to video mode.
package recording

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/pirdfy/pirdfy-go/internal/datastore"
	"github.com/pirdfy/pirdfy-go/internal/frame"
)

// Controller owns the at-most-one active VideoSession of a single camera.
// It is driven exclusively by that camera's orchestrator goroutine, so its
// state needs no locking.
type Controller struct {
	cameraID int
	source   frame.Source
	store    datastore.Interface
	duration time.Duration
	cooldown time.Duration
	videoDir string
	log      *slog.Logger

	session *activeSession
}

type activeSession struct {
	id        string
	handle    frame.VideoHandle
	startedAt time.Time
	end       time.Time
	persisted bool
}

// NewController creates a recording controller for one camera.
func NewController(cameraID int, source frame.Source, store datastore.Interface,
	duration, cooldown time.Duration, videoDir string, log *slog.Logger) *Controller {
	return &Controller{
		cameraID: cameraID,
		source:   source,
		store:    store,
		duration: duration,
		cooldown: cooldown,
		videoDir: videoDir,
		log:      log,
	}
}

// Active reports whether a video session is currently open.
func (c *Controller) Active() bool {
	return c.session != nil
}

// SessionEnd returns the current session deadline, zero when inactive.
func (c *Controller) SessionEnd() time.Time {
	if c.session == nil {
		return time.Time{}
	}
	return c.session.end
}

// StartOrExtend starts a recording for a qualifying detection, or pushes the
// deadline of an already running one to now+duration. Continuous bird
// presence keeps a single file alive instead of starting new ones. Returns
// started=true only when a new session began.
func (c *Controller) StartOrExtend(ctx context.Context, now time.Time, triggerEventID uint) (started bool, err error) {
	if c.session != nil {
		if newEnd := now.Add(c.duration); newEnd.After(c.session.end) {
			c.session.end = newEnd
			c.log.Debug("extended video session",
				"camera_id", c.cameraID, "session_id", c.session.id, "end", newEnd)
		}
		return false, nil
	}

	path := c.outputPath(now)
	handle, err := c.source.StartVideo(ctx, path, c.duration)
	if err != nil {
		return false, fmt.Errorf("starting video on camera %d: %w", c.cameraID, err)
	}

	sess := &activeSession{
		id:        uuid.New().String(),
		handle:    handle,
		startedAt: now,
		end:       now.Add(c.duration),
	}

	record := &datastore.VideoSession{
		ID:             sess.id,
		CameraID:       c.cameraID,
		StartedAt:      sess.startedAt,
		PlannedEnd:     sess.end,
		TriggerEventID: triggerEventID,
		Path:           path,
	}
	// One immediate retry, then the recording proceeds without a catalog row
	// rather than blocking the capture cadence.
	insertErr := c.store.InsertVideoSession(record)
	if insertErr != nil {
		insertErr = c.store.InsertVideoSession(record)
		if insertErr != nil {
			c.log.Warn("video session not persisted, recording continues",
				"camera_id", c.cameraID, "session_id", sess.id, "error", insertErr)
		}
	}
	sess.persisted = insertErr == nil

	c.session = sess
	c.log.Info("video session started",
		"camera_id", c.cameraID, "session_id", sess.id, "path", path, "planned_end", sess.end)
	return true, nil
}

// Tick closes the active session once its deadline has passed. On close it
// returns closed=true and the cooldown expiry during which the orchestrator
// must not re-enter video mode, preventing on/off thrashing when a bird
// lingers at the frame boundary.
func (c *Controller) Tick(now time.Time) (closed bool, cooldownUntil time.Time) {
	if c.session == nil || now.Before(c.session.end) {
		return false, time.Time{}
	}
	c.close(now)
	return true, now.Add(c.cooldown)
}

// CloseNow finalizes an open session immediately, used during shutdown so a
// session is never left open across process restarts.
func (c *Controller) CloseNow(now time.Time) {
	if c.session == nil {
		return
	}
	c.close(now)
}

func (c *Controller) close(now time.Time) {
	sess := c.session
	c.session = nil

	if err := c.source.StopVideo(sess.handle); err != nil {
		c.log.Warn("failed to stop video recording",
			"camera_id", c.cameraID, "session_id", sess.id, "error", err)
	}

	if !sess.persisted {
		c.log.Warn("closing unpersisted video session",
			"camera_id", c.cameraID, "session_id", sess.id)
		return
	}
	if err := c.store.UpdateVideoSessionEnd(sess.id, now); err != nil {
		if err = c.store.UpdateVideoSessionEnd(sess.id, now); err != nil {
			c.log.Warn("video session end not persisted",
				"camera_id", c.cameraID, "session_id", sess.id, "error", err)
			return
		}
	}
	c.log.Info("video session closed",
		"camera_id", c.cameraID, "session_id", sess.id,
		"duration", now.Sub(sess.startedAt).Round(time.Millisecond))
}

func (c *Controller) outputPath(now time.Time) string {
	return filepath.Join(c.videoDir,
		now.Format("2006"), now.Format("01"),
		fmt.Sprintf("cam%d_%s.h264", c.cameraID, now.Format("20060102T150405Z")))
}

// RecoverOrphans closes any session record left without an end timestamp by
// an unclean shutdown, deriving the end from the planned end. Called once at
// startup before any orchestrator runs.
func RecoverOrphans(store datastore.Interface, log *slog.Logger) (int, error) {
	orphans, err := store.FindOpenVideoSessions()
	if err != nil {
		return 0, fmt.Errorf("finding orphaned video sessions: %w", err)
	}

	recovered := 0
	for i := range orphans {
		o := &orphans[i]
		if err := store.UpdateVideoSessionEnd(o.ID, o.PlannedEnd); err != nil {
			log.Warn("failed to close orphaned video session",
				"session_id", o.ID, "camera_id", o.CameraID, "error", err)
			continue
		}
		log.Info("closed orphaned video session",
			"session_id", o.ID, "camera_id", o.CameraID, "derived_end", o.PlannedEnd)
		recovered++
	}
	return recovered, nil
}
