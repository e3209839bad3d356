package handlers

import (
	"net/http"

	"github.com/agentstation/kbmirror"
	"github.com/agentstation/kbmirror/internal/server/cache"
	"github.com/agentstation/kbmirror/internal/server/response"
	"github.com/agentstation/kbmirror/pkg/logging"
)

// HandleDocuments handles GET /kbs/{kbID}/documents.
// It reads the mirror only and never contacts the remote service.
func (h *Handlers) HandleDocuments(w http.ResponseWriter, r *http.Request) {
	kbID, r := kbRequest(r)

	records, err := h.km.Documents(r.Context(), kbID)
	if err != nil {
		fail(w, r, err)
		return
	}

	response.OK(w, map[string]any{
		"kb_id":     kbID,
		"count":     len(records),
		"documents": records,
	})
}

// HandleDuplicates handles GET /kbs/{kbID}/duplicates.
// The mirror is synced first unless a recent report is cached. With ?format=markdown the report is
// returned as a Markdown document instead of JSON.
func (h *Handlers) HandleDuplicates(w http.ResponseWriter, r *http.Request) {
	kbID, r := kbRequest(r)

	report, err := cached(h, kbID, cache.KindReport, func() (*kbmirror.DuplicateReport, error) {
		return h.km.Report(r.Context(), kbID)
	})
	if err != nil {
		fail(w, r, err)
		return
	}

	if r.URL.Query().Get("format") == "markdown" {
		md, err := report.Markdown()
		if err != nil {
			fail(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(md))
		return
	}

	response.OK(w, report)
}

// HandlePlan handles GET /kbs/{kbID}/plan.
func (h *Handlers) HandlePlan(w http.ResponseWriter, r *http.Request) {
	kbID, r := kbRequest(r)

	plans, err := cached(h, kbID, cache.KindPlan, func() ([]kbmirror.DeletionPlan, error) {
		return h.km.PlanDeletions(r.Context(), kbID)
	})
	if err != nil {
		fail(w, r, err)
		return
	}

	response.OK(w, map[string]any{
		"kb_id": kbID,
		"plans": plans,
	})
}

// HandleSync handles POST /kbs/{kbID}/sync.
func (h *Handlers) HandleSync(w http.ResponseWriter, r *http.Request) {
	kbID, r := kbRequest(r)

	result, err := h.km.Sync(r.Context(), kbID)
	if err != nil {
		fail(w, r, err)
		return
	}
	if h.cache != nil {
		h.cache.Invalidate(kbID)
	}

	logging.Ctx(r.Context()).Info().
		Int("added", result.Added).
		Int("refreshed", result.Refreshed).
		Int("failed", len(result.Failed)).
		Msg("Sync requested over HTTP")
	response.OK(w, result)
}
