package capture

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/pirdfy/pirdfy-go/internal/conf"
	"github.com/pirdfy/pirdfy-go/internal/datastore"
	"github.com/pirdfy/pirdfy-go/internal/detector"
	"github.com/pirdfy/pirdfy-go/internal/errors"
	"github.com/pirdfy/pirdfy-go/internal/frame"
	"github.com/pirdfy/pirdfy-go/internal/mqtt"
	"github.com/pirdfy/pirdfy-go/internal/notify"
	"github.com/pirdfy/pirdfy-go/internal/recording"
	"github.com/pirdfy/pirdfy-go/internal/telemetry"
)

// alerter is the operator alert surface, satisfied by notify.Notifier.
type alerter interface {
	Alert(key, title, message string)
}

// Orchestrator runs the capture cycle of a single camera. All state is owned
// by the goroutine calling Run, the only cross camera coupling is the shared
// detector adapter and the catalog store.
type Orchestrator struct {
	settings  *conf.Settings
	camera    conf.CameraConfig
	source    frame.Source
	adapter   detector.Adapter
	store     datastore.Interface
	recorder  *recording.Controller
	metrics   *telemetry.Metrics
	notifier  alerter
	publisher mqtt.Client
	lowPower  func() bool
	log       *slog.Logger

	photosDir string
	cropsDir  string

	// clock is replaceable in tests
	clock func() time.Time

	state        State
	lastStatusAt time.Time
}

// statusHeartbeat bounds how stale the catalog status row may get while
// the camera runs without mode or failure changes.
const statusHeartbeat = time.Minute

// NewOrchestrator assembles the capture cycle for one camera. The metrics,
// notifier, publisher and lowPower arguments may be nil.
func NewOrchestrator(settings *conf.Settings, camera conf.CameraConfig,
	source frame.Source, adapter detector.Adapter, store datastore.Interface,
	recorder *recording.Controller, metrics *telemetry.Metrics,
	notifier *notify.Notifier, publisher mqtt.Client, lowPower func() bool,
	photosDir, cropsDir string, logger *slog.Logger) *Orchestrator {
	o := &Orchestrator{
		settings:  settings,
		camera:    camera,
		source:    source,
		adapter:   adapter,
		store:     store,
		recorder:  recorder,
		metrics:   metrics,
		publisher: publisher,
		lowPower:  lowPower,
		photosDir: photosDir,
		cropsDir:  cropsDir,
		log:       logger.With("camera_id", camera.ID),
		clock:     time.Now,
	}
	if notifier != nil {
		o.notifier = notifier
	}
	return o
}

// Mode returns the current camera mode.
func (o *Orchestrator) Mode() Mode {
	return o.state.Mode
}

// Run executes the capture loop until the context is cancelled. Any open
// video session is finalized before returning.
func (o *Orchestrator) Run(ctx context.Context) {
	o.log.Info("camera capture loop starting",
		"name", o.camera.Name, "interval", o.settings.CaptureInterval(&o.camera))

	for {
		o.Tick(ctx)

		select {
		case <-ctx.Done():
			o.recorder.CloseNow(o.clock())
			o.publishStatus(o.clock())
			o.log.Info("camera capture loop stopped")
			return
		case <-time.After(o.effectiveInterval()):
		}
	}
}

// effectiveInterval is the configured capture interval, stretched by the
// low power multiplier when the battery is below threshold.
func (o *Orchestrator) effectiveInterval() time.Duration {
	interval := o.settings.CaptureInterval(&o.camera)
	if o.lowPower != nil && o.lowPower() && o.settings.Monitoring.IntervalMultiplier > 1 {
		interval *= time.Duration(o.settings.Monitoring.IntervalMultiplier)
	}
	return interval
}

// Tick runs one capture cycle: close an elapsed recording, honor cooldown,
// probe an errored device, capture, detect, persist and escalate.
func (o *Orchestrator) Tick(ctx context.Context) {
	now := o.clock()
	prevMode, prevFailures := o.state.Mode, o.state.Failures

	// An elapsed recording closes first so this tick already runs in the
	// mode the close produced.
	if closed, cooldownUntil := o.recorder.Tick(now); closed {
		o.state.CooldownUntil = cooldownUntil
		if err := o.state.Transition(ModeCooldown); err != nil {
			o.log.Error("mode transition failed", "error", err)
		}
	}

	switch o.state.Mode {
	case ModeCooldown:
		if now.Before(o.state.CooldownUntil) {
			o.statusIfChanged(now, prevMode, prevFailures)
			return
		}
		if err := o.state.Transition(ModePhoto); err != nil {
			o.log.Error("mode transition failed", "error", err)
			return
		}
	case ModeError:
		if !o.probeRecovery(ctx) {
			o.statusIfChanged(now, prevMode, prevFailures)
			return
		}
	}

	f, err := o.captureStill(ctx)
	if err != nil {
		o.handleCaptureError(now, err)
		o.statusIfChanged(now, prevMode, prevFailures)
		return
	}
	o.state.Failures = 0
	o.state.LastCapture = now
	if o.metrics != nil {
		o.metrics.IncrementCaptureCounter(o.camera.ID, true)
	}

	detections := o.detect(ctx, f)
	qualifying := o.qualifying(detections)

	photoPath, photoID := o.persistPhoto(f, now, len(qualifying))
	events := o.persistDetections(f, now, qualifying, photoID, photoPath)
	o.alertDetection(events)

	if len(qualifying) > 0 {
		o.escalate(ctx, now, events)
	}

	o.statusIfChanged(now, prevMode, prevFailures)
}

// probeRecovery checks whether an errored device answers again. Recovery
// resets the failure count and re-enters photo mode, a failed probe keeps
// counting so the status surface shows how long the camera has been down.
func (o *Orchestrator) probeRecovery(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, o.deviceTimeout())
	defer cancel()

	if !o.source.HealthCheck(probeCtx) {
		o.state.Failures++
		if o.metrics != nil {
			o.metrics.SetCameraFailures(o.camera.ID, o.state.Failures)
		}
		return false
	}
	if err := o.state.Transition(ModePhoto); err != nil {
		o.log.Error("mode transition failed", "error", err)
		return false
	}
	o.state.Failures = 0
	o.log.Info("camera recovered, resuming capture")
	return true
}

func (o *Orchestrator) captureStill(ctx context.Context) (*frame.Frame, error) {
	captureCtx, cancel := context.WithTimeout(ctx, o.deviceTimeout())
	defer cancel()
	return o.source.CaptureStill(captureCtx)
}

// handleCaptureError counts a failed capture and trips the camera into error
// mode once the consecutive failure threshold is reached. A busy device
// during an active recording is expected contention and stays uncounted.
func (o *Orchestrator) handleCaptureError(now time.Time, err error) {
	if o.state.Mode == ModeVideo && errors.Is(err, frame.ErrDeviceBusy) {
		o.log.Debug("still capture skipped, device recording")
		return
	}

	o.state.Failures++
	if o.metrics != nil {
		o.metrics.IncrementCaptureCounter(o.camera.ID, false)
	}
	o.log.Warn("still capture failed",
		"failures", o.state.Failures,
		"threshold", o.settings.Capture.FailureThreshold,
		"error", err)

	if o.state.Failures < o.settings.Capture.FailureThreshold {
		return
	}

	o.recorder.CloseNow(now)
	if err := o.state.Transition(ModeError); err != nil {
		o.log.Error("mode transition failed", "error", err)
		return
	}
	enhanced := errors.New(err).
		Component("capture").
		Category(errors.CategoryCapture).
		Priority(errors.PriorityHigh).
		CameraContext(o.camera.ID).
		Context("failures", o.state.Failures).
		Build()
	o.log.Error("camera entered error mode", enhanced.LogAttrs()...)

	if o.notifier != nil {
		o.notifier.Alert(
			fmt.Sprintf("camera-%d-error", o.camera.ID),
			fmt.Sprintf("%s: camera %q in error mode", o.settings.Main.Name, o.camera.Name),
			fmt.Sprintf("%d consecutive capture failures, last error: %v",
				o.state.Failures, err))
	}
}

// detect runs inference on a frame. Detector failures degrade to an empty
// result so the capture cadence is never blocked by a broken backend.
func (o *Orchestrator) detect(ctx context.Context, f *frame.Frame) []detector.Detection {
	timeout := time.Duration(o.settings.Detection.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	detections, err := detector.DetectWithTimeout(ctx, o.adapter, f, o.settings.Detection.Threshold, timeout)
	if err != nil {
		o.log.Warn("detection failed, continuing without detections", "error", err)
		return nil
	}
	return detections
}

func (o *Orchestrator) qualifying(detections []detector.Detection) []detector.Detection {
	var out []detector.Detection
	for _, d := range detections {
		if d.Confidence >= o.settings.Detection.Threshold {
			out = append(out, d)
		}
	}
	return out
}

// persistPhoto saves the frame as JPEG when the photo policy asks for it and
// writes the catalog record. Returns the photo path and record id, both zero
// valued when the policy skipped the photo or persistence failed.
func (o *Orchestrator) persistPhoto(f *frame.Frame, now time.Time, qualifyingCount int) (string, uint) {
	if o.settings.Capture.PhotoPolicy == conf.PhotoPolicyDetections && qualifyingCount == 0 {
		return "", 0
	}

	path := o.mediaPath(o.photosDir, now, "jpg", -1)
	if err := frame.SaveJPEG(path, f.Image); err != nil {
		o.log.Warn("photo not saved", "path", path, "error", err)
		return "", 0
	}

	record := &datastore.PhotoRecord{
		CameraID:       o.camera.ID,
		CapturedAt:     now,
		Path:           path,
		Width:          f.Width,
		Height:         f.Height,
		HasDetections:  qualifyingCount > 0,
		DetectionCount: qualifyingCount,
	}
	if !o.insertWithRetry("photo record", func() error { return o.store.InsertPhoto(record) }) {
		return path, 0
	}
	return path, record.ID
}

// persistDetections crops, saves and records one event per qualifying
// detection. Returns the persisted events, each retaining the id the store
// assigned.
func (o *Orchestrator) persistDetections(f *frame.Frame, now time.Time,
	qualifying []detector.Detection, photoID uint, photoPath string) []datastore.DetectionEvent {
	events := make([]datastore.DetectionEvent, 0, len(qualifying))
	for i, d := range qualifying {
		cropPath := o.mediaPath(o.cropsDir, now, "jpg", i)
		crop := frame.CropPadded(f, d.Box, o.settings.Detection.CropPad)
		if err := frame.SaveJPEG(cropPath, crop); err != nil {
			o.log.Warn("detection crop not saved", "path", cropPath, "error", err)
			cropPath = ""
		}

		event := datastore.DetectionEvent{
			PhotoID:    photoID,
			CameraID:   o.camera.ID,
			DetectedAt: now,
			Species:    d.Species,
			Confidence: d.Confidence,
			BoxX:       d.Box.Min.X,
			BoxY:       d.Box.Min.Y,
			BoxWidth:   d.Box.Dx(),
			BoxHeight:  d.Box.Dy(),
			CropPath:   cropPath,
		}
		if !o.insertWithRetry("detection event", func() error { return o.store.InsertDetectionEvent(&event) }) {
			continue
		}
		events = append(events, event)

		if o.metrics != nil {
			o.metrics.IncrementDetectionCounter(o.camera.ID, d.Species)
		}
		o.log.Info("detection recorded",
			"species", d.Species, "confidence", d.Confidence, "crop", cropPath)

		if o.publisher != nil && o.publisher.IsConnected() {
			msg := &mqtt.DetectionMessage{
				Node:       o.settings.Main.Name,
				CameraID:   o.camera.ID,
				Species:    d.Species,
				Confidence: d.Confidence,
				DetectedAt: now,
				PhotoPath:  photoPath,
			}
			if err := o.publisher.PublishDetection(context.Background(), msg); err != nil {
				o.log.Warn("detection not published", "error", err)
			}
		}
	}
	return events
}

// alertDetection pushes one operator notification per frame with persisted
// detections, naming the highest-confidence species. The notifier's dedup
// window acts as the alert cooldown.
func (o *Orchestrator) alertDetection(events []datastore.DetectionEvent) {
	if o.notifier == nil || !o.settings.Notification.OnDetection || len(events) == 0 {
		return
	}
	best := events[0]
	for _, e := range events[1:] {
		if e.Confidence > best.Confidence {
			best = e
		}
	}
	o.notifier.Alert(
		fmt.Sprintf("camera-%d-detection", o.camera.ID),
		fmt.Sprintf("%s: bird at camera %q", o.settings.Main.Name, o.camera.Name),
		fmt.Sprintf("%s detected with confidence %.2f", best.Species, best.Confidence))
}

// escalate starts or extends the video recording for a frame with
// qualifying detections. At most one session starts per tick no matter how
// many detections the frame carried.
func (o *Orchestrator) escalate(ctx context.Context, now time.Time, events []datastore.DetectionEvent) {
	if !o.settings.Video.Enabled {
		return
	}
	if o.lowPower != nil && o.lowPower() && o.settings.Monitoring.DisableVideo {
		return
	}
	if o.state.Mode != ModePhoto && o.state.Mode != ModeVideo {
		return
	}
	if o.state.Mode == ModePhoto && now.Before(o.state.CooldownUntil) {
		return
	}

	var triggerID uint
	if len(events) > 0 {
		triggerID = events[0].ID
	}

	started, err := o.recorder.StartOrExtend(ctx, now, triggerID)
	if err != nil {
		if errors.Is(err, frame.ErrResourceConflict) {
			o.log.Warn("video start refused, device conflict", "error", err)
		} else {
			o.log.Warn("video start failed", "error", err)
		}
		return
	}
	if !started {
		return
	}

	if err := o.state.Transition(ModeVideo); err != nil {
		o.log.Error("mode transition failed", "error", err)
		return
	}
	if o.metrics != nil {
		o.metrics.IncrementVideoSessionCounter(o.camera.ID)
	}
}

// insertWithRetry tries a store write twice, dropping the record with a
// warning when both attempts fail. A slow catalog must not stall capture.
func (o *Orchestrator) insertWithRetry(what string, insert func() error) bool {
	if err := insert(); err != nil {
		if err = insert(); err != nil {
			o.log.Warn("catalog write dropped", "record", what, "error", err)
			return false
		}
	}
	return true
}

// statusIfChanged upserts the camera status row when mode or failure count
// moved during the tick, and mirrors both into the gauges. A heartbeat upsert
// keeps LastCaptureAt fresh during steady healthy operation.
func (o *Orchestrator) statusIfChanged(now time.Time, prevMode Mode, prevFailures int) {
	if o.state.Mode == prevMode && o.state.Failures == prevFailures &&
		now.Sub(o.lastStatusAt) < statusHeartbeat {
		return
	}
	o.publishStatus(now)
}

func (o *Orchestrator) publishStatus(now time.Time) {
	if o.metrics != nil {
		o.metrics.SetCameraMode(o.camera.ID, int(o.state.Mode))
		o.metrics.SetCameraFailures(o.camera.ID, o.state.Failures)
	}
	status := &datastore.CameraStatus{
		CameraID:            o.camera.ID,
		Name:                o.camera.Name,
		Mode:                o.state.Mode.String(),
		ConsecutiveFailures: o.state.Failures,
		LastCaptureAt:       o.state.LastCapture,
		UpdatedAt:           now,
	}
	if err := o.store.UpsertCameraStatus(status); err != nil {
		o.log.Warn("camera status not persisted", "error", err)
	}
	o.lastStatusAt = now
}

func (o *Orchestrator) deviceTimeout() time.Duration {
	timeout := time.Duration(o.settings.Capture.DeviceTimeout) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return timeout
}

func (o *Orchestrator) mediaPath(dir string, now time.Time, ext string, index int) string {
	name := fmt.Sprintf("cam%d_%s", o.camera.ID, now.Format("20060102T150405Z"))
	if index >= 0 {
		name = fmt.Sprintf("%s_%d", name, index)
	}
	return filepath.Join(dir, now.Format("2006"), now.Format("01"), name+"."+ext)
}
