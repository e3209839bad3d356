// Package logging provides structured logging for kbmirror using zerolog.
// Output is human-readable when stderr is a terminal and JSON otherwise, so
// long-running sync and watch processes can be shipped to a log collector
// without extra configuration.
//
// Example usage:
//
//	log := logging.Default()
//	log.Info().Str("kb_id", kbID).Int("listed", 237).Msg("Listing complete")
//
//	ctx = logging.WithKnowledgeBase(ctx, kbID)
//	logging.Ctx(ctx).Debug().Str("doc_id", id).Msg("Hashing document")
package logging

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var defaultLogger = NewLoggerFromConfig(EnvConfig())

// EnvConfig returns DefaultConfig with LOG_LEVEL, LOG_FORMAT and LOG_OUTPUT
// applied. DEBUG set to anything selects debug when LOG_LEVEL is empty.
func EnvConfig() *Config {
	cfg := DefaultConfig()
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Level = level
	} else if os.Getenv("DEBUG") != "" {
		cfg.Level = "debug"
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		cfg.Format = format
	}
	if output := os.Getenv("LOG_OUTPUT"); output != "" {
		cfg.Output = output
	}
	return cfg
}

// Default returns the process-wide logger.
func Default() *zerolog.Logger {
	return &defaultLogger
}

// SetDefault replaces the process-wide logger, including zerolog's log.Logger.
func SetDefault(logger zerolog.Logger) {
	defaultLogger = logger
	log.Logger = logger
}

// Debug starts a debug event on the default logger.
func Debug() *zerolog.Event {
	return defaultLogger.Debug()
}

// Info starts an info event on the default logger.
func Info() *zerolog.Event {
	return defaultLogger.Info()
}

// Warn starts a warning event on the default logger.
func Warn() *zerolog.Event {
	return defaultLogger.Warn()
}

// Error starts an error event on the default logger.
func Error() *zerolog.Event {
	return defaultLogger.Error()
}

func stderrIsTerminal() bool {
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
