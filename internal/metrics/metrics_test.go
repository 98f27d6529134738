package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	h := PrometheusMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		SetRoute(r.Context(), "/api/properties/{ref}")
		w.WriteHeader(http.StatusNotFound)
	}))

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/api/properties/{ref}", "404"))
	for _, path := range []string{"/api/properties/a-villa", "/api/properties/42"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/api/properties/{ref}", "404"))

	assert.Equal(t, 2.0, after-before)
}

func TestBusinessCounters(t *testing.T) {
	before := testutil.ToFloat64(moderationActionsTotal.WithLabelValues("approved"))
	RecordModeration("approved")
	assert.Equal(t, 1.0, testutil.ToFloat64(moderationActionsTotal.WithLabelValues("approved"))-before)

	before = testutil.ToFloat64(trashPurgedTotal)
	RecordTrashPurged(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(trashPurgedTotal)-before)
}
