// Package application defines what commands need from the CLI application.
//
// Commands accept this interface rather than the concrete app type so they
// can be tested with Mock:
//
//	mock := &application.Mock{
//	    ClientFunc: func() (kbmirror.Client, error) { return km, nil },
//	    KnowledgeBaseFunc: func() (string, error) { return "kb", nil },
//	}
//	cmd := sync.NewCommand(mock)
package application

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/kbmirror"
	"github.com/agentstation/kbmirror/internal/server"
)

// Application provides the application interface that commands need.
// All methods must be safe for concurrent access.
type Application interface {
	// Client returns the kbmirror client, creating it on first use.
	Client() (kbmirror.Client, error)

	// KnowledgeBase returns the configured knowledge base id, or a
	// validation error when none is set.
	KnowledgeBase() (string, error)

	// SyncInterval is the watch-mode sync period.
	SyncInterval() time.Duration

	// ServerConfig returns the HTTP API configuration for watch --listen.
	ServerConfig() server.Config

	// Logger returns the configured logger instance.
	Logger() *zerolog.Logger

	// OutputFormat returns the configured output format (json, yaml, table, wide).
	OutputFormat() string

	// NoColor reports whether colored output is disabled.
	NoColor() bool

	// Quiet reports whether non-essential output is suppressed.
	Quiet() bool

	Version() string
	Commit() string
	Date() string
	BuiltBy() string
}
