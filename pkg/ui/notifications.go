package ui

import (
	"fmt"
	"os/exec"
	"runtime"
)

// NotificationSender interface for platform-specific notification implementations
type NotificationSender interface {
	Send(title, message string) error
}

// LinuxNotificationSender sends notifications on Linux using notify-send
type LinuxNotificationSender struct{}

func (l *LinuxNotificationSender) Send(title, message string) error {
	return exec.Command("notify-send", title, message).Run()
}

// MacOSNotificationSender sends notifications on macOS using osascript
type MacOSNotificationSender struct{}

func (m *MacOSNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`display notification %q with title %q`, message, title)
	return exec.Command("osascript", "-e", script).Run()
}

// Notifier sends desktop notifications when a batch finishes. Delivery
// failures are ignored.
type Notifier struct {
	sender NotificationSender
}

// NewNotifier picks the sender for the current platform. Unsupported
// platforms get a notifier that does nothing.
func NewNotifier() *Notifier {
	switch runtime.GOOS {
	case "linux":
		return &Notifier{sender: &LinuxNotificationSender{}}
	case "darwin":
		return &Notifier{sender: &MacOSNotificationSender{}}
	default:
		return &Notifier{}
	}
}

// NewNotifierWithSender creates a notifier over an explicit sender
func NewNotifierWithSender(s NotificationSender) *Notifier {
	return &Notifier{sender: s}
}

// BatchFinished announces the outcome of a batch
func (n *Notifier) BatchFinished(completed, failed int) {
	if n == nil || n.sender == nil {
		return
	}
	title := "igfetch: batch complete"
	if failed > 0 {
		title = "igfetch: batch finished with errors"
	}
	_ = n.sender.Send(title, fmt.Sprintf("%d downloaded, %d failed", completed, failed))
}
