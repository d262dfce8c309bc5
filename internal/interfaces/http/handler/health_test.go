package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthHandler(t *testing.T) {
	up := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name   string
		checks []HealthCheck
		status int
		want   map[string]string
	}{
		{
			name:   "all up",
			checks: []HealthCheck{{Name: "database", Probe: up}, {Name: "redis", Probe: up}},
			status: http.StatusOK,
			want:   map[string]string{"database": HealthStatusUp, "redis": HealthStatusUp},
		},
		{
			name:   "redis in fallback mode",
			checks: []HealthCheck{{Name: "database", Probe: up}, {Name: "redis"}},
			status: http.StatusOK,
			want:   map[string]string{"database": HealthStatusUp, "redis": HealthStatusDisabled},
		},
		{
			name:   "database down",
			checks: []HealthCheck{{Name: "database", Probe: down}, {Name: "redis", Probe: up}},
			status: http.StatusServiceUnavailable,
			want:   map[string]string{"database": HealthStatusDown, "redis": HealthStatusUp},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter()
			r.GET("/health", NewHealthHandler("test", tt.checks...).Health)

			w := doJSON(r, http.MethodGet, "/health", nil)

			assert.Equal(t, tt.status, w.Code)
			var env struct {
				Data HealthResponse `json:"data"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
			assert.Equal(t, "test", env.Data.Version)
			for name, status := range tt.want {
				assert.Equal(t, status, env.Data.Dependencies[name].Status, name)
			}
			if tt.status != http.StatusOK {
				assert.Equal(t, HealthStatusDown, env.Data.Status)
				assert.NotEmpty(t, env.Data.Dependencies["database"].Error)
			}
		})
	}
}
