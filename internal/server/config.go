package server

import (
	"net"
	"strconv"
	"time"
)

// Config holds server configuration.
type Config struct {
	// Server settings
	Host string
	Port int

	// API settings
	PathPrefix string

	// Authentication settings
	AuthEnabled bool
	AuthHeader  string
	APIKey      string

	// Performance settings
	RateLimit float64 // Requests per second per client (0 to disable)
	Burst     int
	CacheTTL  time.Duration // Lifetime of cached reports and plans; 0, the default, syncs on every read

	// HTTP timeouts
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Features
	MetricsEnabled bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Host:        "localhost",
		Port:        8080,
		PathPrefix:  "/api/v1",
		AuthEnabled: false,
		AuthHeader:  "X-API-Key",
		RateLimit:   10,
		Burst:       20,
		ReadTimeout: 10 * time.Second,
		// A sync of a large knowledge base can take minutes.
		WriteTimeout:   10 * time.Minute,
		IdleTimeout:    120 * time.Second,
		MetricsEnabled: true,
	}
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
