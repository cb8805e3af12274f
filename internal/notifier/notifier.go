// Package notifier pushes human-facing alerts out of the engine. The
// interface is intentionally small so components can depend on it without
// importing a concrete transport.
package notifier

// TextNotifier delivers a plain text message to a human channel.
type TextNotifier interface {
	SendText(text string) error
}

// Noop discards everything. Used when no channel is configured.
type Noop struct{}

func (Noop) SendText(string) error { return nil }
