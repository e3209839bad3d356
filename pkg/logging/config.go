package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/kbmirror/pkg/constants"
)

// Config describes a logger.
type Config struct {
	// Level is trace, debug, info, warn, error or off.
	Level string

	// Format is json, console or auto. Auto means console on a terminal
	// and JSON everywhere else.
	Format string

	// Output is stderr, stdout, discard or a file path. Files are opened
	// in append mode and always get JSON.
	Output string

	// TimeFormat is kitchen, rfc3339, rfc3339nano, unix or a Go layout.
	// Only the console format uses it.
	TimeFormat string

	NoColor   bool
	AddCaller bool

	// Fields are added to every entry, e.g. {"component": "watch"}.
	Fields map[string]any
}

// DefaultConfig returns info-level auto-format logging to stderr.
func DefaultConfig() *Config {
	return &Config{
		Level:      "info",
		Format:     "auto",
		Output:     "stderr",
		TimeFormat: "kitchen",
		NoColor:    os.Getenv("NO_COLOR") != "",
		Fields:     make(map[string]any),
	}
}

// NewLoggerFromConfig builds a logger from cfg and sets the zerolog global
// level to match. A nil cfg means DefaultConfig.
func NewLoggerFromConfig(cfg *Config) zerolog.Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	ctx := zerolog.New(writer(cfg)).Level(level).With().Timestamp()
	if cfg.AddCaller || level <= zerolog.DebugLevel {
		ctx = ctx.Caller()
	}
	if len(cfg.Fields) > 0 {
		ctx = ctx.Fields(cfg.Fields)
	}
	return ctx.Logger()
}

// Configure replaces the default logger with one built from cfg.
func Configure(cfg *Config) {
	SetDefault(NewLoggerFromConfig(cfg))
}

func writer(cfg *Config) io.Writer {
	out, terminal := openOutput(cfg.Output)

	switch strings.ToLower(cfg.Format) {
	case "console", "pretty":
	case "", "auto":
		if !terminal {
			return out
		}
	default:
		return out
	}
	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: timeFormat(cfg.TimeFormat),
		NoColor:    cfg.NoColor,
	}
}

// openOutput resolves an output name. terminal reports whether the result
// is a stderr attached to a terminal. An unusable file path falls back to
// stderr.
func openOutput(name string) (out io.Writer, terminal bool) {
	switch strings.ToLower(name) {
	case "", "stderr":
		return os.Stderr, stderrIsTerminal()
	case "stdout":
		return os.Stdout, false
	case "discard", "none":
		return io.Discard, false
	}

	if err := os.MkdirAll(filepath.Dir(name), constants.DirPermissions); err == nil {
		f, err := os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, constants.FilePermissions)
		if err == nil {
			return f, false
		}
	}
	return os.Stderr, stderrIsTerminal()
}

var levelAliases = map[string]zerolog.Level{
	"":        zerolog.InfoLevel,
	"warning": zerolog.WarnLevel,
	"none":    zerolog.Disabled,
	"off":     zerolog.Disabled,
}

func parseLevel(level string) zerolog.Level {
	level = strings.ToLower(level)
	if l, ok := levelAliases[level]; ok {
		return l
	}
	l, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return l
}

var timeFormats = map[string]string{
	"":            time.Kitchen,
	"kitchen":     time.Kitchen,
	"rfc3339":     time.RFC3339,
	"rfc3339nano": time.RFC3339Nano,
	"unix":        "",
	"epoch":       "",
}

func timeFormat(format string) string {
	if f, ok := timeFormats[strings.ToLower(format)]; ok {
		return f
	}
	if strings.Contains(format, "2006") || strings.Contains(format, "15:04") {
		return format
	}
	return time.Kitchen
}
