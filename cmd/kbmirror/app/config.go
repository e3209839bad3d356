package app

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/agentstation/kbmirror/internal/transport"
	"github.com/agentstation/kbmirror/pkg/constants"
	"github.com/agentstation/kbmirror/pkg/errors"
)

// Config holds the application configuration loaded from config files,
// environment variables and .env files. Flags are applied on top by the
// root command.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool
	Format  string

	// Config file
	ConfigFile string

	// Remote
	BaseURL         string
	Token           string
	AuthScheme      string
	KnowledgeBase   string
	RequestTimeout  time.Duration
	TransferTimeout time.Duration
	RateLimit       float64
	MaxRetries      int

	// Mirror
	MirrorDSN    string
	PageSize     int
	TempDir      string
	SyncInterval time.Duration

	// APIKey protects the watch-mode HTTP API when set.
	APIKey string

	// LogLevel is the explicit --log-level flag. EnvLogLevel comes from
	// LOG_LEVEL or the config file and ranks below -v and -q.
	LogLevel    string
	EnvLogLevel string
	LogFormat   string
	LogOutput   string
}

// configKeys maps config file keys to their environment variables.
var configKeys = map[string]string{
	"base_url":         "RAGFLOW_BASE_URL",
	"token":            "RAGFLOW_AUTH_TOKEN",
	"auth_scheme":      "RAGFLOW_AUTH_SCHEME",
	"kb_id":            "RAGFLOW_KB_ID",
	"mirror_dsn":       "KBMIRROR_MIRROR_DSN",
	"request_timeout":  "KBMIRROR_REQUEST_TIMEOUT",
	"transfer_timeout": "KBMIRROR_TRANSFER_TIMEOUT",
	"rate_limit":       "KBMIRROR_RATE_LIMIT",
	"max_retries":      "KBMIRROR_MAX_RETRIES",
	"page_size":        "KBMIRROR_PAGE_SIZE",
	"temp_dir":         "KBMIRROR_TEMP_DIR",
	"sync_interval":    "KBMIRROR_SYNC_INTERVAL",
	"api_key":          "KBMIRROR_API_KEY",
	"format":           "KBMIRROR_FORMAT",
	"no_color":         "NO_COLOR",
	"log_level":        "LOG_LEVEL",
	"log_format":       "LOG_FORMAT",
	"log_output":       "LOG_OUTPUT",
}

// LoadConfig loads configuration from all sources in order of precedence:
// 1. Command-line flags (handled by cobra)
// 2. Environment variables
// 3. .env files
// 4. Config file (configFile, or ~/.kbmirror.yaml)
// 5. Defaults
func LoadConfig(configFile string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	for key, env := range configKeys {
		if err := v.BindEnv(key, env); err != nil {
			return nil, errors.NewConfigError("env", "failed to bind "+env, err)
		}
	}
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.NewConfigError("config", "failed to read "+configFile, err)
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".kbmirror")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errors.NewConfigError("config", "failed to read config file", err)
			}
		}
	}

	config := &Config{
		NoColor:    v.GetBool("no_color"),
		Format:     v.GetString("format"),
		ConfigFile: v.ConfigFileUsed(),

		BaseURL:         v.GetString("base_url"),
		Token:           v.GetString("token"),
		AuthScheme:      v.GetString("auth_scheme"),
		KnowledgeBase:   v.GetString("kb_id"),
		RequestTimeout:  v.GetDuration("request_timeout"),
		TransferTimeout: v.GetDuration("transfer_timeout"),
		RateLimit:       v.GetFloat64("rate_limit"),
		MaxRetries:      v.GetInt("max_retries"),

		MirrorDSN:    v.GetString("mirror_dsn"),
		PageSize:     v.GetInt("page_size"),
		TempDir:      v.GetString("temp_dir"),
		SyncInterval: v.GetDuration("sync_interval"),

		APIKey: v.GetString("api_key"),

		EnvLogLevel: v.GetString("log_level"),
		LogFormat:   v.GetString("log_format"),
		LogOutput:   v.GetString("log_output"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("auth_scheme", transport.SchemeRaw)
	v.SetDefault("request_timeout", constants.DefaultHTTPTimeout)
	v.SetDefault("transfer_timeout", constants.TransferTimeout)
	v.SetDefault("rate_limit", 0)
	v.SetDefault("max_retries", constants.MaxRetries)
	v.SetDefault("page_size", constants.DefaultPageSize)
	v.SetDefault("sync_interval", constants.DefaultSyncInterval)
	v.SetDefault("log_format", "auto")
	v.SetDefault("log_output", "stderr")
}

// Validate checks the values that would otherwise fail late, deep inside
// a command.
func (c *Config) Validate() error {
	switch strings.ToLower(c.AuthScheme) {
	case "", transport.SchemeRaw, transport.SchemeBearer, transport.SchemeNone:
	default:
		return errors.NewValidationError("auth_scheme", c.AuthScheme, "must be raw, bearer or none")
	}
	if c.PageSize < 1 || c.PageSize > constants.MaxPageSize {
		return errors.NewValidationError("page_size", c.PageSize, "out of range")
	}
	if c.MaxRetries < 0 {
		return errors.NewValidationError("max_retries", c.MaxRetries, "must not be negative")
	}
	if c.RateLimit < 0 {
		return errors.NewValidationError("rate_limit", c.RateLimit, "must not be negative")
	}
	if c.SyncInterval < 0 {
		return errors.NewValidationError("sync_interval", c.SyncInterval, "must not be negative")
	}
	return nil
}

// UpdateFromFlags applies parsed global flags. Empty strings leave the
// loaded value alone.
func (c *Config) UpdateFromFlags(f *globalFlags) {
	c.Verbose = f.verbose
	c.Quiet = f.quiet
	c.NoColor = c.NoColor || f.noColor
	if f.format != "" {
		c.Format = f.format
	}
	if f.logLevel != "" {
		c.LogLevel = f.logLevel
	}
	if f.kb != "" {
		c.KnowledgeBase = f.kb
	}
	if f.mirror != "" {
		c.MirrorDSN = f.mirror
	}
}

// loadEnvFiles loads environment variables from .env files.
// .env.local overrides .env; the process environment overrides both.
func loadEnvFiles() {
	local, err := godotenv.Read(".env.local")
	if err == nil {
		setMissing(local)
	}
	base, err := godotenv.Read(".env")
	if err == nil {
		setMissing(base)
	}
}

func setMissing(values map[string]string) {
	for key, value := range values {
		if _, ok := os.LookupEnv(key); !ok {
			_ = os.Setenv(key, value)
		}
	}
}
