package notify

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pirdfy/pirdfy-go/internal/conf"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewDisabled(t *testing.T) {
	settings := &conf.Settings{}
	n, err := New(settings, testLogger())
	require.NoError(t, err)

	// Alerting through a disabled notifier is a silent no-op.
	n.Alert("camera-1-error", "Camera error", "capture failing")
}

func TestNewEnabledWithoutURLs(t *testing.T) {
	settings := &conf.Settings{}
	settings.Notification.Enabled = true

	_, err := New(settings, testLogger())
	assert.Error(t, err)
}

func TestNewRejectsInvalidURL(t *testing.T) {
	settings := &conf.Settings{}
	settings.Notification.Enabled = true
	settings.Notification.URLs = []string{"not-a-service-url"}

	_, err := New(settings, testLogger())
	assert.Error(t, err)
}

func TestAlertDedupWindow(t *testing.T) {
	settings := &conf.Settings{}
	settings.Notification.Enabled = true
	settings.Notification.URLs = []string{"logger://"}
	settings.Notification.DedupWindowMinute = 10

	n, err := New(settings, testLogger())
	require.NoError(t, err)

	n.Alert("camera-1-error", "Camera error", "first")
	_, suppressed := n.dedup.Get("camera-1-error")
	assert.True(t, suppressed)

	// Same key inside the window stays suppressed, a different key passes.
	n.Alert("camera-1-error", "Camera error", "second")
	n.Alert("camera-2-error", "Camera error", "other camera")
	_, found := n.dedup.Get("camera-2-error")
	assert.True(t, found)
}

func TestFailedDeliveryDoesNotConsumeDedupWindow(t *testing.T) {
	settings := &conf.Settings{}
	settings.Notification.Enabled = true
	// Port 9 is closed, the webhook send fails immediately.
	settings.Notification.URLs = []string{"generic://127.0.0.1:9/alert?disabletls=yes"}
	settings.Notification.DedupWindowMinute = 10

	n, err := New(settings, testLogger())
	require.NoError(t, err)

	n.Alert("camera-1-error", "Camera error", "undeliverable")

	// The key stays clear so the alert can be retried on the next occurrence.
	_, found := n.dedup.Get("camera-1-error")
	assert.False(t, found)
}

func TestAlertAfterWindowExpiry(t *testing.T) {
	settings := &conf.Settings{}
	settings.Notification.Enabled = true
	settings.Notification.URLs = []string{"logger://"}

	n, err := New(settings, testLogger())
	require.NoError(t, err)

	n.dedup.Set("camera-1-error", struct{}{}, 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	_, found := n.dedup.Get("camera-1-error")
	assert.False(t, found)
	n.Alert("camera-1-error", "Camera error", "after expiry")
	_, found = n.dedup.Get("camera-1-error")
	assert.True(t, found)
}
