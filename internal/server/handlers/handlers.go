// Package handlers provides HTTP request handlers for the kbmirror API.
package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/agentstation/kbmirror"
	"github.com/agentstation/kbmirror/internal/server/cache"
	"github.com/agentstation/kbmirror/internal/server/response"
	"github.com/agentstation/kbmirror/pkg/logging"
)

// Handlers provides access to all HTTP handlers.
type Handlers struct {
	km        kbmirror.Client
	cache     *cache.Cache // nil when caching is disabled
	startTime time.Time
}

// New creates a new Handlers instance.
func New(km kbmirror.Client, c *cache.Cache, startTime time.Time) *Handlers {
	return &Handlers{
		km:        km,
		cache:     c,
		startTime: startTime,
	}
}

// cached returns the cached result of kind for kbID, computing and storing
// it with compute on a miss.
func cached[T any](h *Handlers, kbID, kind string, compute func() (T, error)) (T, error) {
	if h.cache != nil {
		if v, ok := h.cache.Get(kbID, kind); ok {
			if result, ok := v.(T); ok {
				return result, nil
			}
		}
	}

	result, err := compute()
	if err != nil {
		return result, err
	}
	if h.cache != nil {
		h.cache.Set(kbID, kind, result)
	}
	return result, nil
}

// fail logs err against the request and writes the mapped error response.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	logging.Ctx(r.Context()).Warn().Err(err).Msg("Request failed")
	response.ErrorFromType(w, err)
}

// kbRequest returns the knowledge base id of the route and a request
// context tagged with it.
func kbRequest(r *http.Request) (string, *http.Request) {
	kbID := chi.URLParam(r, "kbID")
	return kbID, r.WithContext(logging.WithKnowledgeBase(r.Context(), kbID))
}
