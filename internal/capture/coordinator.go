package capture

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/pirdfy/pirdfy-go/internal/conf"
	"github.com/pirdfy/pirdfy-go/internal/errors"
	"github.com/pirdfy/pirdfy-go/internal/datastore"
	"github.com/pirdfy/pirdfy-go/internal/detector"
	"github.com/pirdfy/pirdfy-go/internal/frame"
	"github.com/pirdfy/pirdfy-go/internal/monitor"
	"github.com/pirdfy/pirdfy-go/internal/mqtt"
	"github.com/pirdfy/pirdfy-go/internal/notify"
	"github.com/pirdfy/pirdfy-go/internal/recording"
	"github.com/pirdfy/pirdfy-go/internal/telemetry"
)

// SourceFactory opens the frame source for one configured camera.
type SourceFactory func(cam conf.CameraConfig) (frame.Source, error)

// Coordinator owns the shared pieces of the pipeline and runs one
// orchestrator goroutine per enabled camera. A camera that fails to open is
// skipped with an alert, it never takes the others down.
type Coordinator struct {
	settings   *conf.Settings
	store      datastore.Interface
	adapter    detector.Adapter
	newSource  SourceFactory
	metrics    *telemetry.Metrics
	notifier   *notify.Notifier
	publisher  mqtt.Client
	sysMonitor *monitor.SystemMonitor
	log        *slog.Logger
}

// NewCoordinator creates the multi camera coordinator. The metrics,
// notifier, publisher and sysMonitor arguments may be nil.
func NewCoordinator(settings *conf.Settings, store datastore.Interface,
	adapter detector.Adapter, newSource SourceFactory,
	metrics *telemetry.Metrics, notifier *notify.Notifier,
	publisher mqtt.Client, sysMonitor *monitor.SystemMonitor,
	logger *slog.Logger) *Coordinator {
	return &Coordinator{
		settings:   settings,
		store:      store,
		adapter:    adapter,
		newSource:  newSource,
		metrics:    metrics,
		notifier:   notifier,
		publisher:  publisher,
		sysMonitor: sysMonitor,
		log:        logger,
	}
}

// Run starts all camera loops and blocks until the context is cancelled and
// every loop has drained. Returns an error when not a single camera started.
func (c *Coordinator) Run(ctx context.Context) error {
	if recovered, err := recording.RecoverOrphans(c.store, c.log); err != nil {
		c.log.Warn("orphaned session recovery failed", "error", err)
	} else if recovered > 0 {
		c.log.Info("recovered orphaned video sessions", "count", recovered)
	}

	adapter := c.sharedAdapter()
	lowPower := c.lowPowerFunc()

	photosDir := c.settings.GetBasePath("photos")
	cropsDir := c.settings.GetBasePath("birds")
	videosDir := c.settings.GetBasePath("videos")

	duration := time.Duration(c.settings.Video.Duration) * time.Second
	cooldown := time.Duration(c.settings.Video.Cooldown) * time.Second

	var wg sync.WaitGroup
	started := 0
	for _, cam := range c.settings.EnabledCameras() {
		source, err := c.newSource(cam)
		if err != nil {
			c.log.Error("camera failed to open, skipping",
				"camera_id", cam.ID, "name", cam.Name, "error", err)
			if c.notifier != nil {
				c.notifier.Alert(
					fmt.Sprintf("camera-%d-open", cam.ID),
					fmt.Sprintf("%s: camera %q unavailable", c.settings.Main.Name, cam.Name),
					fmt.Sprintf("failed to open: %v", err))
			}
			continue
		}

		recorder := recording.NewController(cam.ID, source, c.store,
			duration, cooldown, videosDir, c.log)
		orch := NewOrchestrator(c.settings, cam, source, adapter, c.store,
			recorder, c.metrics, c.notifier, c.publisher, lowPower,
			photosDir, cropsDir, c.log)

		wg.Add(1)
		go func() {
			defer wg.Done()
			orch.Run(ctx)
		}()
		started++
	}

	if started == 0 {
		return fmt.Errorf("no cameras could be started")
	}
	c.log.Info("capture pipeline running", "cameras", started)

	if c.settings.Storage.Retention.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.retentionLoop(ctx)
		}()
	}

	wg.Wait()
	return nil
}

// sharedAdapter wraps the detection backend for cross camera sharing.
// Backends that declare themselves concurrency safe, or that the operator
// marked concurrent, run unserialized.
func (c *Coordinator) sharedAdapter() detector.Adapter {
	if c.settings.Detection.Concurrent {
		return c.adapter
	}
	return detector.Serialize(c.adapter)
}

func (c *Coordinator) lowPowerFunc() func() bool {
	if c.sysMonitor == nil {
		return nil
	}
	return c.sysMonitor.LowPower
}

// retentionLoop periodically drops catalog records and media files past
// their retention age.
func (c *Coordinator) retentionLoop(ctx context.Context) {
	interval := time.Duration(c.settings.Storage.Retention.IntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.runRetentionCleanup()
		}
	}
}

// runRetentionCleanup drops expired catalog rows and unlinks the media files
// they pointed at. A file already gone is not an error, the catalog row is
// the source of truth.
func (c *Coordinator) runRetentionCleanup() {
	photoMaxAge := time.Duration(c.settings.Storage.Retention.PhotoMaxAgeDays) * 24 * time.Hour
	videoMaxAge := time.Duration(c.settings.Storage.Retention.VideoMaxAgeDays) * 24 * time.Hour

	removed, files, err := c.store.CleanupOldRecords(photoMaxAge, videoMaxAge)
	if err != nil {
		c.log.Warn("retention cleanup failed", "error", err)
		return
	}
	for _, path := range files {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			c.log.Warn("media file not removed", "path", path, "error", err)
		}
	}
	if removed > 0 {
		c.log.Info("retention cleanup removed records",
			"count", removed, "files", len(files))
	}
}
