// Package notify pushes camera fault alerts to external services.
package notify

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"slices"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
	cache "github.com/patrickmn/go-cache"

	"github.com/pirdfy/pirdfy-go/internal/conf"
)

// Notifier sends alerts via shoutrrr, one sender for multiple URLs.
// Repeated alerts with the same key inside the dedup window are dropped so a
// flapping camera does not flood the operator.
type Notifier struct {
	enabled bool
	urls    []string
	sender  *router.ServiceRouter
	dedup   *cache.Cache
	log     *slog.Logger
}

// New creates a notifier from settings. A disabled notifier is returned when
// notifications are off, its Alert method is a no-op.
func New(settings *conf.Settings, logger *slog.Logger) (*Notifier, error) {
	n := &Notifier{
		enabled: settings.Notification.Enabled,
		urls:    slices.Clone(settings.Notification.URLs),
		log:     logger,
	}
	if !n.enabled {
		return n, nil
	}
	if len(n.urls) == 0 {
		return nil, fmt.Errorf("notification enabled but no URLs configured")
	}

	sender, err := shoutrrr.CreateSender(n.urls...)
	if err != nil {
		return nil, fmt.Errorf("creating notification sender: %w", err)
	}
	sender.SetLogger(log.New(io.Discard, "", 0))
	n.sender = sender

	window := time.Duration(settings.Notification.DedupWindowMinute) * time.Minute
	if window <= 0 {
		window = 15 * time.Minute
	}
	n.dedup = cache.New(window, 2*window)

	return n, nil
}

// Alert sends one notification. The key identifies the alert source, e.g.
// "camera-1-error", and suppresses duplicates within the dedup window.
func (n *Notifier) Alert(key, title, message string) {
	if !n.enabled {
		return
	}
	if _, found := n.dedup.Get(key); found {
		n.log.Debug("alert suppressed by dedup window", "key", key)
		return
	}

	params := stypes.Params{}
	params.SetTitle(title)
	errs := n.sender.Send(message, &params)
	delivered := len(errs) == 0
	for _, err := range errs {
		if err != nil {
			n.log.Warn("alert delivery failed", "key", key, "error", err)
		} else {
			delivered = true
		}
	}
	// Only a delivered alert consumes the dedup window, a failed send may be
	// retried on the next occurrence.
	if !delivered {
		return
	}
	n.dedup.Set(key, struct{}{}, cache.DefaultExpiration)
	n.log.Info("alert sent", "key", key, "title", title)
}
