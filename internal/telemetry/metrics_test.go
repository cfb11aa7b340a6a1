package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCaptureCounterPartitionsByResult(t *testing.T) {
	m := newMetrics()

	m.IncrementCaptureCounter(1, true)
	m.IncrementCaptureCounter(1, true)
	m.IncrementCaptureCounter(1, false)
	m.IncrementCaptureCounter(2, true)

	assert.InDelta(t, 2.0, testutil.ToFloat64(m.CaptureCounter.WithLabelValues("1", "ok")), 0.001)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.CaptureCounter.WithLabelValues("1", "error")), 0.001)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.CaptureCounter.WithLabelValues("2", "ok")), 0.001)
}

func TestDetectionCounterPartitionsBySpecies(t *testing.T) {
	m := newMetrics()

	m.IncrementDetectionCounter(1, "bird")
	m.IncrementDetectionCounter(1, "bird")
	m.IncrementDetectionCounter(1, "squirrel")

	assert.InDelta(t, 2.0, testutil.ToFloat64(m.DetectionCounter.WithLabelValues("1", "bird")), 0.001)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.DetectionCounter.WithLabelValues("1", "squirrel")), 0.001)
}

func TestGauges(t *testing.T) {
	m := newMetrics()

	m.SetCameraMode(1, 3)
	m.SetCameraFailures(1, 5)
	m.SetBatteryPercent(42.5)

	assert.InDelta(t, 3.0, testutil.ToFloat64(m.CameraModeGauge.WithLabelValues("1")), 0.001)
	assert.InDelta(t, 5.0, testutil.ToFloat64(m.CameraFailureGauge.WithLabelValues("1")), 0.001)
	assert.InDelta(t, 42.5, testutil.ToFloat64(m.BatteryGauge), 0.001)
}
