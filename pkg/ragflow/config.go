package ragflow

import (
	"net/url"
	"strings"
	"time"

	"github.com/agentstation/kbmirror/internal/transport"
	"github.com/agentstation/kbmirror/pkg/constants"
	"github.com/agentstation/kbmirror/pkg/errors"
)

// DefaultUserAgent is sent when Config.UserAgent is empty.
const DefaultUserAgent = "kbmirror/1.0"

// Config is the immutable connection configuration of a Client. It is
// copied into the client on construction; changing it afterwards has no
// effect on an existing client.
type Config struct {
	// BaseURL is the RAGFlow web address, e.g. https://ragflow.example.com.
	BaseURL string `json:"base_url" yaml:"base_url"`

	// Token is the value of the Authorization header.
	Token string `json:"-" yaml:"-"`

	// AuthScheme is "raw" (token sent verbatim), "bearer" or "none".
	AuthScheme string `json:"auth_scheme" yaml:"auth_scheme"`

	// Timeout bounds listing, delete and run calls.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// TransferTimeout bounds a whole download or upload, body included.
	TransferTimeout time.Duration `json:"transfer_timeout" yaml:"transfer_timeout"`

	// RateLimit caps requests per second. Zero means unlimited.
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit"`

	// MaxRetries applies to listing and download only. Zero disables retries.
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// DefaultConfig returns a Config with the default timeouts and retry count.
func DefaultConfig(baseURL, token string) Config {
	return Config{
		BaseURL:         baseURL,
		Token:           token,
		AuthScheme:      transport.SchemeRaw,
		Timeout:         constants.DefaultHTTPTimeout,
		TransferTimeout: constants.TransferTimeout,
		MaxRetries:      constants.MaxRetries,
		UserAgent:       DefaultUserAgent,
	}
}

// Validate reports the first problem with c.
func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return errors.NewValidationError("base_url", c.BaseURL, "is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.NewValidationError("base_url", c.BaseURL, "must be an absolute http(s) URL")
	}
	if strings.TrimSpace(c.Token) == "" && !strings.EqualFold(c.AuthScheme, transport.SchemeNone) {
		return errors.NewValidationError("token", "", "is required")
	}
	if c.MaxRetries < 0 {
		return errors.NewValidationError("max_retries", c.MaxRetries, "must not be negative")
	}
	if c.RateLimit < 0 {
		return errors.NewValidationError("rate_limit", c.RateLimit, "must not be negative")
	}
	return nil
}

func (c Config) withDefaults() Config {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.Timeout <= 0 {
		c.Timeout = constants.DefaultHTTPTimeout
	}
	if c.TransferTimeout <= 0 {
		c.TransferTimeout = constants.TransferTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	return c
}
