package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/agentstation/kbmirror/internal/server/response"
	"github.com/agentstation/kbmirror/pkg/logging"
)

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	APIKey     string
	HeaderName string
}

// Auth middleware validates API keys. Routes that must stay public are
// mounted outside of it.
func Auth(config AuthConfig) func(http.Handler) http.Handler {
	if config.HeaderName == "" {
		config.HeaderName = "X-API-Key"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := extractAPIKey(r, config.HeaderName)

			if apiKey == "" || subtle.ConstantTimeCompare([]byte(apiKey), []byte(config.APIKey)) != 1 {
				logging.Ctx(r.Context()).Warn().
					Str("path", r.URL.Path).
					Str("remote_addr", r.RemoteAddr).
					Bool("key_provided", apiKey != "").
					Msg("Authentication failed")

				response.Unauthorized(w, "Invalid or missing API key",
					"Provide a valid API key in the "+config.HeaderName+" header")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractAPIKey extracts the API key from the request.
func extractAPIKey(r *http.Request, header string) string {
	// Try custom header first (X-API-Key)
	if apiKey := r.Header.Get(header); apiKey != "" {
		return apiKey
	}

	// Support both "Bearer <key>" and raw key
	auth := r.Header.Get("Authorization")
	return strings.TrimPrefix(auth, "Bearer ")
}
