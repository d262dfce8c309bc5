package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestHTTPMetricsWithMeter(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	router := gin.New()
	router.Use(HTTPMetricsWithMeter(provider.Meter("test"), nil))
	router.GET("/orders/:orderNo", func(c *gin.Context) { c.String(http.StatusOK, "hello") })

	serve(router, httptest.NewRequest(http.MethodGet, "/orders/A1", nil))
	serve(router, httptest.NewRequest(http.MethodGet, "/orders/B2", nil))
	serve(router, httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	metrics := collect(t, reader)
	require.Contains(t, metrics, "http_server_request_total")
	require.Contains(t, metrics, "http_server_request_duration_seconds")
	require.Contains(t, metrics, "http_server_response_size_bytes")
	require.Contains(t, metrics, "http_server_active_requests")

	sum, ok := metrics["http_server_request_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	counts := make(map[string]int64)
	for _, dp := range sum.DataPoints {
		route, _ := dp.Attributes.Value("http.route")
		counts[route.AsString()] += dp.Value
	}
	assert.Equal(t, int64(2), counts["/orders/:orderNo"])
	assert.Equal(t, int64(1), counts["unknown"])

	active, ok := metrics["http_server_active_requests"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	for _, dp := range active.DataPoints {
		assert.Zero(t, dp.Value)
	}
}

func TestHTTPMetrics_NilProviderPassesThrough(t *testing.T) {
	router := gin.New()
	router.Use(HTTPMetrics(HTTPMetricsConfig{}))
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := serve(router, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRoutePattern(t *testing.T) {
	var got string
	router := gin.New()
	router.GET("/payments/:paymentId/capture", func(c *gin.Context) { got = routePattern(c) })

	serve(router, httptest.NewRequest(http.MethodGet, "/payments/9/capture", nil))

	assert.Equal(t, "/payments/:paymentId/capture", got)
}
