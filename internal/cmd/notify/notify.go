// Package notify prints short status lines for CLI commands, such as the
// outcome of a clean or the reason a command stopped.
package notify

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/agentstation/kbmirror/internal/cmd/emoji"
)

// Level represents the severity of a notification.
type Level int

const (
	// LevelError indicates a failure or error condition.
	LevelError Level = iota
	// LevelWarning indicates a partial result or important notice.
	LevelWarning
	// LevelInfo indicates general informational messages.
	LevelInfo
	// LevelSuccess indicates successful completion of an operation.
	LevelSuccess
)

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelError:
		return "error"
	case LevelWarning:
		return "warning"
	case LevelInfo:
		return "info"
	case LevelSuccess:
		return "success"
	default:
		return fmt.Sprintf("unknown(%d)", l)
	}
}

// Icon returns the symbol printed before a message of this level.
func (l Level) Icon() string {
	switch l {
	case LevelError:
		return emoji.Error
	case LevelWarning:
		return emoji.Warning
	case LevelSuccess:
		return emoji.Success
	default:
		return emoji.Info
	}
}

// color returns the ANSI color code of the level.
func (l Level) color() string {
	switch l {
	case LevelError:
		return "\033[31m" // Red
	case LevelWarning:
		return "\033[33m" // Yellow
	case LevelSuccess:
		return "\033[32m" // Green
	default:
		return "\033[36m" // Cyan
	}
}

const reset = "\033[0m"

// Config controls notification behavior.
type Config struct {
	Writer  io.Writer // default: stderr
	NoColor bool
	Quiet   bool // suppresses info and success lines
}

// Notifier writes notifications.
type Notifier struct {
	w        io.Writer
	useColor bool
	quiet    bool
}

// New creates a Notifier. Color is used only when the writer is a terminal.
func New(cfg Config) *Notifier {
	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}
	return &Notifier{
		w:        w,
		useColor: !cfg.NoColor && isTerminal(w),
		quiet:    cfg.Quiet,
	}
}

// Notify writes one line at level. Details are indented below it.
func (n *Notifier) Notify(level Level, message string, details ...string) {
	if n.quiet && (level == LevelInfo || level == LevelSuccess) {
		return
	}

	line := level.Icon() + " " + message
	if n.useColor {
		line = level.color() + line + reset
	}
	// Notifications are best effort.
	_, _ = fmt.Fprintln(n.w, line)
	for _, d := range details {
		_, _ = fmt.Fprintf(n.w, "   %s\n", d)
	}
}

// Success writes a success line.
func (n *Notifier) Success(format string, args ...any) {
	n.Notify(LevelSuccess, fmt.Sprintf(format, args...))
}

// Info writes an informational line.
func (n *Notifier) Info(format string, args ...any) {
	n.Notify(LevelInfo, fmt.Sprintf(format, args...))
}

// Warning writes a warning line.
func (n *Notifier) Warning(format string, args ...any) {
	n.Notify(LevelWarning, fmt.Sprintf(format, args...))
}

// Error writes an error line.
func (n *Notifier) Error(err error) {
	n.Notify(LevelError, err.Error())
}

// isTerminal checks if the writer is a terminal (for color support).
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
