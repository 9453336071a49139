package delivery

import (
	"github.com/gen2brain/beeep"
)

// Notifier raises desktop notifications. A disabled notifier does nothing.
type Notifier struct {
	title   string
	enabled bool
	notify  func(title, message string) error
}

func NewNotifier(title string, enabled bool) *Notifier {
	if title == "" {
		title = "hotmic"
	}
	return &Notifier{title: title, enabled: enabled, notify: func(title, message string) error {
		return beeep.Notify(title, message, "")
	}}
}

func (n *Notifier) Enabled() bool {
	return n != nil && n.enabled
}

func (n *Notifier) Notify(message string) error {
	if !n.Enabled() || message == "" {
		return nil
	}
	return n.notify(n.title, message)
}
