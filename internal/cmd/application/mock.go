package application

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/kbmirror"
	"github.com/agentstation/kbmirror/internal/server"
	"github.com/agentstation/kbmirror/pkg/constants"
	"github.com/agentstation/kbmirror/pkg/errors"
)

var _ Application = (*Mock)(nil)

// Mock provides a mock implementation of Application for testing.
// If a function field is nil, the method returns a default value.
type Mock struct {
	ClientFunc        func() (kbmirror.Client, error)
	KnowledgeBaseFunc func() (string, error)
	SyncIntervalFunc  func() time.Duration
	ServerConfigFunc  func() server.Config
	LoggerFunc        func() *zerolog.Logger
	OutputFormatFunc  func() string
	NoColorFunc       func() bool
	QuietFunc         func() bool
	VersionFunc       func() string
	CommitFunc        func() string
	DateFunc          func() string
	BuiltByFunc       func() string
}

// Client returns a client using the mock function or an error.
func (m *Mock) Client() (kbmirror.Client, error) {
	if m.ClientFunc != nil {
		return m.ClientFunc()
	}
	return nil, errors.NewConfigError("mock", "no client configured", nil)
}

// KnowledgeBase returns the knowledge base using the mock function or "kb".
func (m *Mock) KnowledgeBase() (string, error) {
	if m.KnowledgeBaseFunc != nil {
		return m.KnowledgeBaseFunc()
	}
	return "kb", nil
}

// SyncInterval returns the interval using the mock function or the default.
func (m *Mock) SyncInterval() time.Duration {
	if m.SyncIntervalFunc != nil {
		return m.SyncIntervalFunc()
	}
	return constants.DefaultSyncInterval
}

// ServerConfig returns the server config using the mock function or the default.
func (m *Mock) ServerConfig() server.Config {
	if m.ServerConfigFunc != nil {
		return m.ServerConfigFunc()
	}
	return server.DefaultConfig()
}

// Logger returns a logger using the mock function or a no-op logger.
func (m *Mock) Logger() *zerolog.Logger {
	if m.LoggerFunc != nil {
		return m.LoggerFunc()
	}
	logger := zerolog.Nop()
	return &logger
}

// OutputFormat returns output format using the mock function or "table".
func (m *Mock) OutputFormat() string {
	if m.OutputFormatFunc != nil {
		return m.OutputFormatFunc()
	}
	return "table"
}

// NoColor returns the mock value or true.
func (m *Mock) NoColor() bool {
	if m.NoColorFunc != nil {
		return m.NoColorFunc()
	}
	return true
}

// Quiet returns the mock value or false.
func (m *Mock) Quiet() bool {
	if m.QuietFunc != nil {
		return m.QuietFunc()
	}
	return false
}

// Version returns version using the mock function or "dev".
func (m *Mock) Version() string {
	if m.VersionFunc != nil {
		return m.VersionFunc()
	}
	return "dev"
}

// Commit returns commit using the mock function or "unknown".
func (m *Mock) Commit() string {
	if m.CommitFunc != nil {
		return m.CommitFunc()
	}
	return "unknown"
}

// Date returns date using the mock function or "unknown".
func (m *Mock) Date() string {
	if m.DateFunc != nil {
		return m.DateFunc()
	}
	return "unknown"
}

// BuiltBy returns builder using the mock function or "unknown".
func (m *Mock) BuiltBy() string {
	if m.BuiltByFunc != nil {
		return m.BuiltByFunc()
	}
	return "unknown"
}
