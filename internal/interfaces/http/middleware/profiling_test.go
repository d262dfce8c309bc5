package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestControllerFromRoute(t *testing.T) {
	tests := []struct {
		route string
		want  string
	}{
		{"/api/v1/orders", "orders"},
		{"/api/v1/orders/:orderNo/refund", "orders"},
		{"/api/v1/admin/orders/:orderNo/close", "orders"},
		{"/api/v2/admin/discount-policies", "discount-policies"},
		{"/webhooks/paypal", "webhooks"},
		{"/health", "health"},
		{"/api/v1/:id", "root"},
		{"/", "root"},
		{"/files/*path", "files"},
	}
	for _, tt := range tests {
		t.Run(tt.route, func(t *testing.T) {
			assert.Equal(t, tt.want, controllerFromRoute(tt.route))
		})
	}
}

func TestIsVersionSegment(t *testing.T) {
	assert.True(t, isVersionSegment("v1"))
	assert.True(t, isVersionSegment("V12"))
	assert.False(t, isVersionSegment("v"))
	assert.False(t, isVersionSegment("view"))
	assert.False(t, isVersionSegment("1"))
}

func TestProfiling(t *testing.T) {
	for _, enabled := range []bool{true, false} {
		router := gin.New()
		router.Use(Profiling(enabled))
		router.GET("/api/v1/orders/:orderNo", func(c *gin.Context) { c.Status(http.StatusOK) })

		w := serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/orders/X", nil))
		assert.Equal(t, http.StatusOK, w.Code)

		w = serve(router, httptest.NewRequest(http.MethodGet, "/unmatched", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	}
}
