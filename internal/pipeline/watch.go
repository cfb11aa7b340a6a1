// Package pipeline assembles the full capture service and runs it until a
// termination signal arrives.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/pirdfy/pirdfy-go/internal/capture"
	"github.com/pirdfy/pirdfy-go/internal/conf"
	"github.com/pirdfy/pirdfy-go/internal/datastore"
	"github.com/pirdfy/pirdfy-go/internal/detector"
	"github.com/pirdfy/pirdfy-go/internal/frame"
	"github.com/pirdfy/pirdfy-go/internal/logging"
	"github.com/pirdfy/pirdfy-go/internal/monitor"
	"github.com/pirdfy/pirdfy-go/internal/mqtt"
	"github.com/pirdfy/pirdfy-go/internal/notify"
	"github.com/pirdfy/pirdfy-go/internal/telemetry"
)

// Watch runs the capture pipeline with all configured services and blocks
// until SIGINT or SIGTERM.
func Watch(settings *conf.Settings) error {
	logger, cleanup, err := setupLogging(settings)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	dataStore := datastore.New(settings)
	if dataStore == nil {
		return fmt.Errorf("no catalog output enabled, enable output.sqlite or output.mysql")
	}
	if err := dataStore.Open(); err != nil {
		return fmt.Errorf("opening catalog: %w", err)
	}
	defer closeDataStore(dataStore, logger)

	var wg sync.WaitGroup
	quitChan := make(chan struct{})

	metrics := setupTelemetry(settings, &wg, quitChan, logger)

	notifier, err := notify.New(settings, logger)
	if err != nil {
		return fmt.Errorf("initializing notifications: %w", err)
	}

	publisher := setupMQTT(settings, logger)
	if publisher != nil {
		defer publisher.Disconnect()
	}

	sysMonitor := monitor.NewSystemMonitor(settings, dataStore, metrics, logger)
	sysMonitor.Start()
	defer sysMonitor.Stop()

	adapter, err := buildAdapter(settings)
	if err != nil {
		return err
	}

	logger.Info("starting capture pipeline",
		"node", settings.Main.Name,
		"cameras", len(settings.EnabledCameras()),
		"threshold", settings.Detection.Threshold,
		"photo_policy", settings.Capture.PhotoPolicy,
		"video", settings.Video.Enabled)

	coordinator := capture.NewCoordinator(settings, dataStore, adapter,
		sourceFactory(settings), metrics, notifier, publisher, sysMonitor, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := coordinator.Run(ctx)

	close(quitChan)
	wg.Wait()
	return runErr
}

func setupLogging(settings *conf.Settings) (*slog.Logger, func() error, error) {
	level := slog.LevelInfo
	if settings.Debug {
		level = slog.LevelDebug
	}
	logging.Init(level)

	if !settings.Main.Log.Enabled {
		return logging.ForService("pipeline"), nil, nil
	}

	rotation := logging.FileRotation{
		MaxSizeMB:  settings.Main.Log.MaxSizeMB,
		MaxBackups: settings.Main.Log.MaxBackups,
		MaxAgeDays: settings.Main.Log.MaxAgeDays,
	}
	logger, cleanup, err := logging.NewFileLogger(settings.Main.Log.Path, "pipeline", level, rotation)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing log file: %w", err)
	}
	return logger, cleanup, nil
}

func setupTelemetry(settings *conf.Settings, wg *sync.WaitGroup,
	quitChan chan struct{}, logger *slog.Logger) *telemetry.Metrics {
	if !settings.Telemetry.Enabled {
		return nil
	}

	metrics, err := telemetry.NewMetrics()
	if err != nil {
		logger.Warn("metrics registration failed, telemetry disabled", "error", err)
		return nil
	}

	endpoint, err := telemetry.NewEndpoint(settings)
	if err != nil {
		logger.Warn("telemetry endpoint unavailable", "error", err)
		return metrics
	}
	endpoint.Start(wg, quitChan)
	return metrics
}

// setupMQTT connects the detection publisher. A broker that is down at
// startup only disables publishing, the capture pipeline still runs.
func setupMQTT(settings *conf.Settings, logger *slog.Logger) mqtt.Client {
	if !settings.MQTT.Enabled {
		return nil
	}

	client := mqtt.NewClient(settings, logger)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		logger.Warn("mqtt broker unreachable, detection publishing disabled",
			"broker", settings.MQTT.Broker, "error", err)
		return nil
	}
	return client
}

// buildAdapter selects the detection backend.
func buildAdapter(settings *conf.Settings) (detector.Adapter, error) {
	switch settings.Detection.Backend {
	case "", "stub":
		return detector.NewStubBackend(), nil
	default:
		return nil, fmt.Errorf("unknown detection backend %q", settings.Detection.Backend)
	}
}

// sourceFactory opens the frame source for a camera. The built-in test
// pattern source stands in for camera hardware.
func sourceFactory(settings *conf.Settings) capture.SourceFactory {
	return func(cam conf.CameraConfig) (frame.Source, error) {
		return frame.NewTestPatternSource(cam.ID), nil
	}
}

func closeDataStore(store datastore.Interface, logger *slog.Logger) {
	if err := store.Close(); err != nil {
		logger.Warn("failed to close catalog", "error", err)
	}
}
