package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/agentstation/kbmirror/pkg/errors"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(syncDocuments.WithLabelValues(OutcomeAdded))
	SyncDocument(OutcomeAdded)
	assert.Equal(t, before+1, testutil.ToFloat64(syncDocuments.WithLabelValues(OutcomeAdded)))

	failed := testutil.ToFloat64(remoteRequests.WithLabelValues("list", OutcomeFailed))
	RemoteRequest("list", time.Millisecond, errors.New("boom"))
	assert.Equal(t, failed+1, testutil.ToFloat64(remoteRequests.WithLabelValues("list", OutcomeFailed)))

	limited := testutil.ToFloat64(remoteRequests.WithLabelValues("download", OutcomeRateLimited))
	RemoteRequest("download", time.Millisecond, pkgerrors.NewAPIError("download", http.StatusTooManyRequests, "slow down"))
	assert.Equal(t, limited+1, testutil.ToFloat64(remoteRequests.WithLabelValues("download", OutcomeRateLimited)))

	resets := testutil.ToFloat64(cacheResets)
	CacheReset()
	assert.Equal(t, resets+1, testutil.ToFloat64(cacheResets))
}

func TestHandlerExposesMetrics(t *testing.T) {
	Upload(OutcomeSkipped)
	ObserveSync(time.Second)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "kbmirror_uploads_total")
	assert.Contains(t, body, "kbmirror_sync_duration_seconds")
}
