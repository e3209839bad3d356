package transport

import (
	"net/http"
	"strings"

	"github.com/agentstation/kbmirror/pkg/errors"
)

// Authenticator applies authentication to HTTP requests.
type Authenticator interface {
	Apply(req *http.Request, token string)
}

// Authentication schemes accepted by ForScheme.
const (
	SchemeRaw    = "raw"
	SchemeBearer = "bearer"
	SchemeNone   = "none"
)

// ForScheme returns the authenticator for a configured scheme name.
// An empty scheme is SchemeRaw.
func ForScheme(scheme string) (Authenticator, error) {
	switch strings.ToLower(strings.TrimSpace(scheme)) {
	case "", SchemeRaw:
		return &HeaderAuth{Header: "Authorization"}, nil
	case SchemeBearer:
		return &BearerAuth{}, nil
	case SchemeNone:
		return &NoAuth{}, nil
	default:
		return nil, errors.NewValidationError("auth_scheme", scheme, "must be raw, bearer or none")
	}
}

// NoAuth implements no authentication.
type NoAuth struct{}

// Apply implements the Authenticator interface for NoAuth.
func (a *NoAuth) Apply(_ *http.Request, _ string) {}

// BearerAuth implements Bearer token authentication.
type BearerAuth struct{}

// Apply implements the Authenticator interface for BearerAuth.
func (a *BearerAuth) Apply(req *http.Request, token string) {
	if token == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+token)
}

// HeaderAuth sends the token verbatim in a header. RAGFlow's web API
// expects the raw token in Authorization, without a scheme prefix.
type HeaderAuth struct {
	Header string
}

// Apply implements the Authenticator interface for HeaderAuth.
func (a *HeaderAuth) Apply(req *http.Request, token string) {
	if token == "" {
		return
	}
	header := a.Header
	if header == "" {
		header = "Authorization"
	}
	req.Header.Set(header, token)
}
