// Package notify delivers the one message produced by each submission to
// whoever shows it to the user.
package notify

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/dharsanguruparan/VaultForm/internal/upload"
)

// Level is the severity shown with a notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is a message for the user.
type Notification struct {
	Message string `json:"message"`
	Level   Level  `json:"level"`
}

// FromOutcome converts a submission outcome.
func FromOutcome(o upload.Outcome) Notification {
	if o.Success {
		return Notification{Message: o.Message, Level: LevelSuccess}
	}
	return Notification{Message: o.Message, Level: LevelError}
}

// Notifier receives notifications.
type Notifier interface {
	Notify(Notification)
}

// Func adapts a function to Notifier.
type Func func(Notification)

func (f Func) Notify(n Notification) { f(n) }

// Multi fans a notification out to several notifiers in order.
type Multi []Notifier

func (m Multi) Notify(n Notification) {
	for _, notifier := range m {
		if notifier != nil {
			notifier.Notify(n)
		}
	}
}

var (
	styleSuccess = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "2", Dark: "2"}).Bold(true)
	styleError   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "1", Dark: "1"}).Bold(true)
)

const (
	iconSuccess = "✔"
	iconError   = "✘"
)

// Console prints notifications to a terminal.
type Console struct {
	w io.Writer
}

// NewConsole returns a Console writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) Notify(n Notification) {
	style, icon := styleSuccess, iconSuccess
	if n.Level != LevelSuccess {
		style, icon = styleError, iconError
	}
	fmt.Fprintln(c.w, style.Render(icon+" "+n.Message))
}

// Log records notifications as structured log events.
type Log struct {
	logger zerolog.Logger
}

// NewLog returns a Log notifier.
func NewLog(logger zerolog.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Notify(n Notification) {
	ev := l.logger.Info()
	if n.Level != LevelSuccess {
		ev = l.logger.Error()
	}
	ev.Str("level_hint", string(n.Level)).Msg(n.Message)
}
