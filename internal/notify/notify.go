package notify

import (
	"fmt"
	"log"
	"os/exec"
)

const AppName = "Copresenter"

type Notifier interface {
	SessionStarted(style string)
	Interrupted()
	Notify(title, message string)
	Error(msg string)
}

// New returns the notifier for kind ("desktop", "log" or "none").
func New(kind string) Notifier {
	switch kind {
	case "desktop":
		return Desktop{}
	case "log":
		return Log{}
	default:
		return Nop{}
	}
}

type Desktop struct{}

func (d Desktop) SessionStarted(style string) {
	d.Notify(AppName, fmt.Sprintf("Taking over (%s)", style))
}

func (d Desktop) Interrupted() {
	d.Notify(AppName, "Handing back to the speaker")
}

func (Desktop) Notify(title, message string) {
	cmd := exec.Command("notify-send", "-a", AppName, title, message)
	if err := cmd.Run(); err != nil {
		log.Printf("Failed to send notification: %v", err)
	}
}

func (Desktop) Error(msg string) {
	cmd := exec.Command("notify-send", "-a", AppName, "-u", "critical", AppName+" Error", msg)
	if err := cmd.Run(); err != nil {
		log.Printf("Failed to send error notification: %v", err)
	}
}

// Log writes notifications to the standard logger.
type Log struct{}

func (l Log) SessionStarted(style string) {
	l.Notify(AppName, fmt.Sprintf("Taking over (%s)", style))
}

func (l Log) Interrupted() {
	l.Notify(AppName, "Handing back to the speaker")
}

func (Log) Notify(title, message string) {
	log.Printf("Notification: %s: %s", title, message)
}

func (Log) Error(msg string) {
	log.Printf("Notification: %s Error: %s", AppName, msg)
}

// Nop is a Notifier that does absolutely nothing.
// Useful in unit tests or headless builds.
type Nop struct{}

func (Nop) SessionStarted(string) {}
func (Nop) Interrupted()          {}
func (Nop) Notify(string, string) {}
func (Nop) Error(string)          {}
