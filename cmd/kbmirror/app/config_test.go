package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/agentstation/kbmirror/pkg/errors"
)

// clearEnv unsets every variable LoadConfig reads. Viper ignores empty
// environment values.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, env := range configKeys {
		t.Setenv(env, "")
	}
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
}

// TestLoadConfig_Defaults verifies the defaults without any source.
func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	config, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if config.AuthScheme != "raw" {
		t.Errorf("AuthScheme = %q, want raw", config.AuthScheme)
	}
	if config.RequestTimeout != 30*time.Second {
		t.Errorf("RequestTimeout = %v, want 30s", config.RequestTimeout)
	}
	if config.TransferTimeout != 10*time.Minute {
		t.Errorf("TransferTimeout = %v, want 10m", config.TransferTimeout)
	}
	if config.PageSize != 100 {
		t.Errorf("PageSize = %d, want 100", config.PageSize)
	}
	if config.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", config.MaxRetries)
	}
	if config.SyncInterval != 15*time.Minute {
		t.Errorf("SyncInterval = %v, want 15m", config.SyncInterval)
	}
	if config.LogFormat != "auto" || config.LogOutput != "stderr" {
		t.Errorf("log format/output = %q/%q, want auto/stderr", config.LogFormat, config.LogOutput)
	}
	if config.BaseURL != "" || config.KnowledgeBase != "" {
		t.Errorf("remote settings should be empty, got %q/%q", config.BaseURL, config.KnowledgeBase)
	}
}

// TestLoadConfig_Environment verifies environment variable loading.
func TestLoadConfig_Environment(t *testing.T) {
	clearEnv(t)
	t.Setenv("RAGFLOW_BASE_URL", "https://rag.example.com")
	t.Setenv("RAGFLOW_AUTH_TOKEN", "secret")
	t.Setenv("RAGFLOW_KB_ID", "kb-1")
	t.Setenv("RAGFLOW_AUTH_SCHEME", "bearer")
	t.Setenv("KBMIRROR_MIRROR_DSN", "redis://localhost:6379/0")
	t.Setenv("KBMIRROR_REQUEST_TIMEOUT", "45s")
	t.Setenv("KBMIRROR_RATE_LIMIT", "2.5")
	t.Setenv("KBMIRROR_PAGE_SIZE", "50")
	t.Setenv("KBMIRROR_SYNC_INTERVAL", "1h")
	t.Setenv("LOG_LEVEL", "debug")

	config, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if config.BaseURL != "https://rag.example.com" {
		t.Errorf("BaseURL = %q", config.BaseURL)
	}
	if config.Token != "secret" {
		t.Errorf("Token = %q", config.Token)
	}
	if config.KnowledgeBase != "kb-1" {
		t.Errorf("KnowledgeBase = %q", config.KnowledgeBase)
	}
	if config.AuthScheme != "bearer" {
		t.Errorf("AuthScheme = %q", config.AuthScheme)
	}
	if config.MirrorDSN != "redis://localhost:6379/0" {
		t.Errorf("MirrorDSN = %q", config.MirrorDSN)
	}
	if config.RequestTimeout != 45*time.Second {
		t.Errorf("RequestTimeout = %v, want 45s", config.RequestTimeout)
	}
	if config.RateLimit != 2.5 {
		t.Errorf("RateLimit = %v, want 2.5", config.RateLimit)
	}
	if config.PageSize != 50 {
		t.Errorf("PageSize = %d, want 50", config.PageSize)
	}
	if config.SyncInterval != time.Hour {
		t.Errorf("SyncInterval = %v, want 1h", config.SyncInterval)
	}
	if config.EnvLogLevel != "debug" || config.LogLevel != "" {
		t.Errorf("LOG_LEVEL should only set EnvLogLevel, got %q/%q", config.EnvLogLevel, config.LogLevel)
	}
}

// TestLoadConfig_File verifies config file loading and env precedence.
func TestLoadConfig_File(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "kbmirror.yaml")
	content := `base_url: https://file.example.com
token: file-token
kb_id: kb-file
page_size: 20
sync_interval: 5m
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("KBMIRROR_PAGE_SIZE", "40")

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if config.ConfigFile != path {
		t.Errorf("ConfigFile = %q, want %q", config.ConfigFile, path)
	}
	if config.BaseURL != "https://file.example.com" || config.KnowledgeBase != "kb-file" {
		t.Errorf("file values not loaded: %q %q", config.BaseURL, config.KnowledgeBase)
	}
	if config.SyncInterval != 5*time.Minute {
		t.Errorf("SyncInterval = %v, want 5m", config.SyncInterval)
	}
	if config.PageSize != 40 {
		t.Errorf("PageSize = %d, want 40 (environment beats file)", config.PageSize)
	}
}

// TestLoadConfig_HomeFile verifies ~/.kbmirror.yaml is found.
func TestLoadConfig_HomeFile(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)
	if err := os.WriteFile(filepath.Join(home, ".kbmirror.yaml"), []byte("kb_id: kb-home\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	config, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}
	if config.KnowledgeBase != "kb-home" {
		t.Errorf("KnowledgeBase = %q, want kb-home", config.KnowledgeBase)
	}
}

// TestLoadConfig_EnvFiles verifies .env loading and that .env.local wins.
func TestLoadConfig_EnvFiles(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)
	os.Unsetenv("RAGFLOW_KB_ID")
	os.Unsetenv("RAGFLOW_BASE_URL")
	t.Cleanup(func() {
		os.Unsetenv("RAGFLOW_KB_ID")
		os.Unsetenv("RAGFLOW_BASE_URL")
	})

	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("RAGFLOW_KB_ID=kb-env\nRAGFLOW_BASE_URL=https://env.example.com\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env.local"), []byte("RAGFLOW_KB_ID=kb-local\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	config, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}
	if config.KnowledgeBase != "kb-local" {
		t.Errorf("KnowledgeBase = %q, want kb-local", config.KnowledgeBase)
	}
	if config.BaseURL != "https://env.example.com" {
		t.Errorf("BaseURL = %q, want https://env.example.com", config.BaseURL)
	}
}

// TestLoadConfig_Errors verifies unreadable and invalid configuration.
func TestLoadConfig_Errors(t *testing.T) {
	clearEnv(t)

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	var cfgErr *errors.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Errorf("missing explicit file: got %v, want ConfigError", err)
	}

	t.Setenv("KBMIRROR_PAGE_SIZE", "0")
	_, err = LoadConfig("")
	if !errors.IsValidationError(err) {
		t.Errorf("page size 0: got %v, want validation error", err)
	}
}

// TestConfig_Validate verifies value checks.
func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{AuthScheme: "raw", PageSize: 100, MaxRetries: 3}
	}

	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{name: "valid", modify: func(*Config) {}},
		{name: "bearer", modify: func(c *Config) { c.AuthScheme = "Bearer" }},
		{name: "unknown scheme", modify: func(c *Config) { c.AuthScheme = "basic" }, field: "auth_scheme"},
		{name: "page size too large", modify: func(c *Config) { c.PageSize = 5000 }, field: "page_size"},
		{name: "negative retries", modify: func(c *Config) { c.MaxRetries = -1 }, field: "max_retries"},
		{name: "negative rate", modify: func(c *Config) { c.RateLimit = -1 }, field: "rate_limit"},
		{name: "negative interval", modify: func(c *Config) { c.SyncInterval = -time.Second }, field: "sync_interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.modify(c)
			err := c.Validate()
			if tt.field == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			var vErr *errors.ValidationError
			if !errors.As(err, &vErr) || vErr.Field != tt.field {
				t.Errorf("Validate() = %v, want validation error on %s", err, tt.field)
			}
		})
	}
}

// TestConfig_UpdateFromFlags verifies that flags override loaded values.
func TestConfig_UpdateFromFlags(t *testing.T) {
	config := &Config{Format: "json", KnowledgeBase: "kb-env", MirrorDSN: "a.db", NoColor: true}

	config.UpdateFromFlags(&globalFlags{verbose: true, kb: "kb-flag"})
	if !config.Verbose {
		t.Error("Verbose not applied")
	}
	if config.KnowledgeBase != "kb-flag" {
		t.Errorf("KnowledgeBase = %q, want kb-flag", config.KnowledgeBase)
	}
	if config.Format != "json" || config.MirrorDSN != "a.db" {
		t.Errorf("empty flags must keep loaded values, got %q/%q", config.Format, config.MirrorDSN)
	}
	if !config.NoColor {
		t.Error("NO_COLOR from the environment must survive an unset flag")
	}

	config.UpdateFromFlags(&globalFlags{format: "yaml", mirror: "redis://x", logLevel: "error"})
	if config.Format != "yaml" || config.MirrorDSN != "redis://x" || config.LogLevel != "error" {
		t.Errorf("flags not applied: %+v", config)
	}
	if config.Verbose {
		t.Error("Verbose should follow the flag")
	}
}
