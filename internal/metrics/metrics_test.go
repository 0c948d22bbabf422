package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryPathTotal(t *testing.T) {
	before := testutil.ToFloat64(QueryPathTotal.WithLabelValues("metrics", "fast"))
	QueryPathTotal.WithLabelValues("metrics", "fast").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(QueryPathTotal.WithLabelValues("metrics", "fast")))
}

func TestObserveETL(t *testing.T) {
	ObserveETL("blocks", time.Now().Add(-time.Second))
	assert.GreaterOrEqual(t, testutil.CollectAndCount(ETLDuration), 1)
}

func TestHandler(t *testing.T) {
	ETLRows.WithLabelValues("blocks").Add(3)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "skysched_etl_rows_total")
}

func TestRouter(t *testing.T) {
	healthy := true
	r := NewRouter(func(context.Context) bool { return healthy })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	healthy = false
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
