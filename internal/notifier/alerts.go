package notifier

import (
	"fmt"
	"time"

	"talon/internal/logger"
)

// Severity levels map to a leading icon so a phone notification is
// readable before it is opened.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Alerter formats and fans out severity-tagged alerts. Delivery is
// best-effort: a dead channel is logged, never propagated into the trade
// path.
type Alerter struct {
	channels []TextNotifier
	nowFn    func() time.Time
}

func NewAlerter(channels ...TextNotifier) *Alerter {
	return &Alerter{channels: channels, nowFn: time.Now}
}

// Send logs the alert and hands it to every channel. The log write is
// synchronous; channel delivery runs on its own goroutine so a slow or
// retrying channel never stalls the tick that raised the alert.
func (a *Alerter) Send(title, message, severity string) {
	switch severity {
	case SeverityCritical:
		logger.Errorf("alert: %s: %s", title, message)
	case SeverityWarning:
		logger.Warnf("alert: %s: %s", title, message)
	default:
		logger.Infof("alert: %s: %s", title, message)
	}

	text := fmt.Sprintf("%s *%s*\n\n%s\n\n%s",
		severityIcon(severity), title, message,
		a.nowFn().UTC().Format("2006-01-02 15:04:05 MST"))
	for _, ch := range a.channels {
		go func(ch TextNotifier) {
			if err := ch.SendText(text); err != nil {
				logger.Warnf("alert delivery failed (%s): %v", title, err)
			}
		}(ch)
	}
}

func severityIcon(severity string) string {
	switch severity {
	case SeverityCritical:
		return "🔴"
	case SeverityWarning:
		return "⚠️"
	default:
		return "ℹ️"
	}
}
