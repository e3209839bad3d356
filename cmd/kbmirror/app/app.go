// Package app wires configuration, logging and the kbmirror client into the
// kbmirror CLI and owns its lifecycle.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/kbmirror"
	"github.com/agentstation/kbmirror/internal/cmd/application"
	"github.com/agentstation/kbmirror/internal/server"
	"github.com/agentstation/kbmirror/pkg/errors"
	"github.com/agentstation/kbmirror/pkg/logging"
	"github.com/agentstation/kbmirror/pkg/ragflow"
)

var _ application.Application = (*App)(nil)

// App represents the kbmirror application with all its dependencies.
type App struct {
	// Version information
	version string
	commit  string
	date    string
	builtBy string

	config *Config
	logger *zerolog.Logger
	flags  globalFlags

	// fixedLogger is set by WithLogger; flags then leave the logger alone.
	fixedLogger bool

	// client is created lazily; remote commands need a base URL and token,
	// version and help do not.
	mu     sync.RWMutex
	client kbmirror.Client
}

// New creates a new App with configuration loaded from the default sources.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
	}

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	if app.config == nil {
		config, err := LoadConfig("")
		if err != nil {
			return nil, errors.WrapResource("load", "config", "", err)
		}
		app.config = config
	}

	if app.logger == nil {
		app.configureLogger()
	}

	return app, nil
}

func (a *App) configureLogger() {
	logger := NewLogger(a.config)
	a.logger = &logger
	logging.SetDefault(logger)
}

// Version returns the version information.
func (a *App) Version() string {
	return a.version
}

// Commit returns the git commit hash.
func (a *App) Commit() string {
	return a.commit
}

// Date returns the build date.
func (a *App) Date() string {
	return a.date
}

// BuiltBy returns the build system identifier.
func (a *App) BuiltBy() string {
	return a.builtBy
}

// Config returns the application configuration.
func (a *App) Config() *Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// OutputFormat returns the configured output format.
func (a *App) OutputFormat() string {
	return a.config.Format
}

// NoColor reports whether colored output is disabled.
func (a *App) NoColor() bool {
	return a.config.NoColor
}

// Quiet reports whether informational output is suppressed.
func (a *App) Quiet() bool {
	return a.config.Quiet
}

// SyncInterval returns the watch-mode sync period.
func (a *App) SyncInterval() time.Duration {
	return a.config.SyncInterval
}

// KnowledgeBase returns the knowledge base selected by --kb or RAGFLOW_KB_ID.
func (a *App) KnowledgeBase() (string, error) {
	if a.config.KnowledgeBase == "" {
		return "", errors.NewValidationError("kb_id", "", "no knowledge base configured (use --kb or RAGFLOW_KB_ID)")
	}
	return a.config.KnowledgeBase, nil
}

// ServerConfig returns the HTTP API configuration used by watch --listen.
func (a *App) ServerConfig() server.Config {
	cfg := server.DefaultConfig()
	if a.config.APIKey != "" {
		cfg.AuthEnabled = true
		cfg.APIKey = a.config.APIKey
	}
	return cfg
}

// Client returns the kbmirror client, creating it on first use.
// It is safe for concurrent use and creates at most one client.
func (a *App) Client() (kbmirror.Client, error) {
	a.mu.RLock()
	if a.client != nil {
		c := a.client
		a.mu.RUnlock()
		return c, nil
	}
	a.mu.RUnlock()

	a.mu.Lock()
	defer a.mu.Unlock()

	// Double-check after acquiring write lock
	if a.client != nil {
		return a.client, nil
	}

	remote, err := ragflow.New(a.remoteConfig())
	if err != nil {
		return nil, errors.NewConfigError("ragflow", "invalid remote configuration (check RAGFLOW_BASE_URL and RAGFLOW_AUTH_TOKEN)", err)
	}

	c, err := kbmirror.New(remote, a.clientOptions()...)
	if err != nil {
		return nil, errors.WrapResource("create", "client", "", err)
	}

	a.client = c
	return c, nil
}

// Shutdown stops background work started by commands.
func (a *App) Shutdown(_ context.Context) error {
	a.mu.RLock()
	c := a.client
	a.mu.RUnlock()

	if c != nil {
		if err := c.AutoSyncOff(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to stop auto-sync during shutdown")
			return err
		}
	}
	return nil
}

func (a *App) remoteConfig() ragflow.Config {
	cfg := ragflow.DefaultConfig(a.config.BaseURL, a.config.Token)
	if a.config.AuthScheme != "" {
		cfg.AuthScheme = a.config.AuthScheme
	}
	if a.config.RequestTimeout > 0 {
		cfg.Timeout = a.config.RequestTimeout
	}
	if a.config.TransferTimeout > 0 {
		cfg.TransferTimeout = a.config.TransferTimeout
	}
	cfg.RateLimit = a.config.RateLimit
	cfg.MaxRetries = a.config.MaxRetries
	cfg.UserAgent = "kbmirror/" + a.version
	return cfg
}

func (a *App) clientOptions() []kbmirror.Option {
	var opts []kbmirror.Option
	if a.config.MirrorDSN != "" {
		opts = append(opts, kbmirror.WithMirrorDSN(a.config.MirrorDSN))
	}
	if a.config.PageSize > 0 {
		opts = append(opts, kbmirror.WithPageSize(a.config.PageSize))
	}
	if a.config.TempDir != "" {
		opts = append(opts, kbmirror.WithTempDir(a.config.TempDir))
	}
	if a.config.SyncInterval > 0 {
		opts = append(opts, kbmirror.WithSyncInterval(a.config.SyncInterval))
	}
	return opts
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration instead of loading one.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		if config == nil {
			return errors.NewValidationError("config", nil, "config is required")
		}
		a.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		a.fixedLogger = logger != nil
		return nil
	}
}

// WithClient sets a prebuilt client (useful for testing).
func WithClient(c kbmirror.Client) Option {
	return func(a *App) error {
		a.client = c
		return nil
	}
}
