// Package notifier surfaces terminal release states as desktop notifications
package notifier

import (
	"fmt"
	"time"

	"github.com/gen2brain/beeep"
	"github.com/releasekit/releasekit/pkg/logger"
)

// ReleaseNotifier sends desktop notifications for release lifecycle events.
// Notification failures are logged at debug level and never affect the
// release outcome.
type ReleaseNotifier struct {
	enabled bool
	logger  logger.Logger
}

// New creates a release notifier. A disabled notifier swallows every event.
func New(enabled bool, log logger.Logger) *ReleaseNotifier {
	return &ReleaseNotifier{enabled: enabled, logger: log}
}

// NotifyReleaseStart notifies that a release run has begun
func (n *ReleaseNotifier) NotifyReleaseStart(pkg string, version string) {
	if !n.enabled {
		return
	}

	n.send("🚀 Release Started", fmt.Sprintf("%s v%s", pkg, version), false)
}

// NotifyReleaseSuccess notifies that a release completed
func (n *ReleaseNotifier) NotifyReleaseSuccess(pkg string, version string, duration time.Duration) {
	if !n.enabled {
		return
	}

	message := fmt.Sprintf("%s v%s released in %s", pkg, version, formatDuration(duration))
	n.send("✅ Release Succeeded", message, false)
}

// NotifyReleaseFailure notifies that a release failed
func (n *ReleaseNotifier) NotifyReleaseFailure(pkg string, version string, err error) {
	if !n.enabled {
		return
	}

	n.send("❌ Release Failed", fmt.Sprintf("%s v%s: %v", pkg, version, err), true)
}

// NotifyRollback notifies how many published effects were undone
func (n *ReleaseNotifier) NotifyRollback(pkg string, version string, undone int) {
	if !n.enabled {
		return
	}

	message := fmt.Sprintf("%s v%s: %d action(s) rolled back", pkg, version, undone)
	n.send("↩️ Release Rolled Back", message, false)
}

func (n *ReleaseNotifier) send(title, message string, beep bool) {
	if err := beeep.Notify(title, message, ""); err != nil {
		if n.logger != nil {
			n.logger.Debug("Failed to send notification", logger.WithField("error", err))
		}
		return
	}

	if beep {
		if err := beeep.Beep(beeep.DefaultFreq, beeep.DefaultDuration); err != nil && n.logger != nil {
			n.logger.Debug("Failed to play sound", logger.WithField("error", err))
		}
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}
