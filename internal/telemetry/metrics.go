// metrics.go: Prometheus metrics setup and manipulation for telemetry
package telemetry

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors exported by the capture pipeline.
type Metrics struct {
	CaptureCounter      *prometheus.CounterVec
	DetectionCounter    *prometheus.CounterVec
	VideoSessionCounter *prometheus.CounterVec
	CameraModeGauge     *prometheus.GaugeVec
	CameraFailureGauge  *prometheus.GaugeVec
	BatteryGauge        prometheus.Gauge
}

const metricsPath = "/metrics"

// newMetrics builds the collectors without registering them.
func newMetrics() *Metrics {
	return &Metrics{
		CaptureCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pirdfy_captures_total",
			Help: "Count of still capture attempts partitioned by camera and result.",
		}, []string{"camera", "result"}),
		DetectionCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pirdfy_detections_total",
			Help: "Count of qualifying detections partitioned by camera and species.",
		}, []string{"camera", "species"}),
		VideoSessionCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pirdfy_video_sessions_total",
			Help: "Count of video recording sessions partitioned by camera.",
		}, []string{"camera"}),
		CameraModeGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pirdfy_camera_mode",
			Help: "Current camera mode: 0=photo, 1=video, 2=cooldown, 3=error.",
		}, []string{"camera"}),
		CameraFailureGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pirdfy_camera_consecutive_failures",
			Help: "Consecutive capture failures per camera.",
		}, []string{"camera"}),
		BatteryGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pirdfy_battery_percent",
			Help: "Battery charge percentage, -1 when no battery is present.",
		}),
	}
}

// NewMetrics initializes and registers all Prometheus metrics used in the telemetry system.
func NewMetrics() (*Metrics, error) {
	metrics := newMetrics()

	collectors := []prometheus.Collector{
		metrics.CaptureCounter,
		metrics.DetectionCounter,
		metrics.VideoSessionCounter,
		metrics.CameraModeGauge,
		metrics.CameraFailureGauge,
		metrics.BatteryGauge,
	}
	for _, c := range collectors {
		if err := prometheus.Register(c); err != nil {
			return nil, err
		}
	}

	return metrics, nil
}

// RegisterMetricsHandlers adds metrics routes to the provided mux
func RegisterMetricsHandlers(mux *http.ServeMux) {
	mux.Handle(metricsPath, promhttp.Handler())
}

// IncrementCaptureCounter records one capture attempt for a camera.
func (m *Metrics) IncrementCaptureCounter(cameraID int, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	m.CaptureCounter.WithLabelValues(strconv.Itoa(cameraID), result).Inc()
}

// IncrementDetectionCounter increments the detection counter for a given species
func (m *Metrics) IncrementDetectionCounter(cameraID int, species string) {
	m.DetectionCounter.WithLabelValues(strconv.Itoa(cameraID), species).Inc()
}

// IncrementVideoSessionCounter records one started video session.
func (m *Metrics) IncrementVideoSessionCounter(cameraID int) {
	m.VideoSessionCounter.WithLabelValues(strconv.Itoa(cameraID)).Inc()
}

// SetCameraMode publishes the current mode of a camera.
func (m *Metrics) SetCameraMode(cameraID, mode int) {
	m.CameraModeGauge.WithLabelValues(strconv.Itoa(cameraID)).Set(float64(mode))
}

// SetCameraFailures publishes the consecutive failure count of a camera.
func (m *Metrics) SetCameraFailures(cameraID, failures int) {
	m.CameraFailureGauge.WithLabelValues(strconv.Itoa(cameraID)).Set(float64(failures))
}

// SetBatteryPercent publishes the sampled battery charge.
func (m *Metrics) SetBatteryPercent(percent float64) {
	m.BatteryGauge.Set(percent)
}
