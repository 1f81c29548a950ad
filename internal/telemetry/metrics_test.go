package telemetry

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getCounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	m := &dto.Metric{}
	if err := cv.WithLabelValues(labels...).Write(m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

func TestRecordHTTPRequest(t *testing.T) {
	before := getCounterValue(HTTPRequestsTotal, "GET", "/api/news", "200")
	RecordHTTPRequest("GET", "/api/news", http.StatusOK, 15*time.Millisecond)
	assert.Equal(t, before+1, getCounterValue(HTTPRequestsTotal, "GET", "/api/news", "200"))

	before = getCounterValue(HTTPRequestsTotal, "GET", "unmatched", "404")
	RecordHTTPRequest("GET", "", http.StatusNotFound, time.Millisecond)
	assert.Equal(t, before+1, getCounterValue(HTTPRequestsTotal, "GET", "unmatched", "404"))
}

func TestRecordCounters(t *testing.T) {
	before := getCounterValue(SessionResolutionsTotal, "database", OutcomeRejected)
	RecordSessionResolution("database", OutcomeRejected)
	assert.Equal(t, before+1, getCounterValue(SessionResolutionsTotal, "database", OutcomeRejected))

	before = getCounterValue(MarketCacheTotal, "hit")
	RecordMarketCache(true)
	assert.Equal(t, before+1, getCounterValue(MarketCacheTotal, "hit"))

	before = getCounterValue(PaymentStatusUpdatesTotal, "completed", "false")
	RecordPaymentStatusUpdate("completed", false)
	assert.Equal(t, before+1, getCounterValue(PaymentStatusUpdatesTotal, "completed", "false"))

	before = getCounterValue(RateLimitDecisionsTotal, "api", RateLimitLimited)
	RecordRateLimit("api", RateLimitLimited)
	assert.Equal(t, before+1, getCounterValue(RateLimitDecisionsTotal, "api", RateLimitLimited))
}

func TestHandler_ExposesMetrics(t *testing.T) {
	RecordMarketCache(false)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "zignal_market_cache_total")
	assert.Contains(t, string(body), "go_goroutines")
}
