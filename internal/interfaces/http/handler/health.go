package handler

import (
	"context"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/intlshop/backend/internal/interfaces/http/dto"
)

// HealthCheck probes one dependency. A nil Probe reports the dependency as
// disabled, e.g. Redis in in-memory fallback mode.
type HealthCheck struct {
	Name  string
	Probe func(ctx context.Context) error
}

// Health statuses
const (
	HealthStatusUp       = "up"
	HealthStatusDown     = "down"
	HealthStatusDisabled = "disabled"
)

// DependencyStatus is the result of one probe
type DependencyStatus struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// HealthResponse is the /health body
type HealthResponse struct {
	Status       string                      `json:"status"`
	Version      string                      `json:"version"`
	GoVersion    string                      `json:"go_version"`
	Uptime       string                      `json:"uptime"`
	Dependencies map[string]DependencyStatus `json:"dependencies"`
}

// HealthHandler reports process and dependency health
type HealthHandler struct {
	BaseHandler
	version   string
	checks    []HealthCheck
	timeout   time.Duration
	startTime time.Time
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(version string, checks ...HealthCheck) *HealthHandler {
	return &HealthHandler{
		version:   version,
		checks:    checks,
		timeout:   2 * time.Second,
		startTime: time.Now(),
	}
}

// Health probes every dependency concurrently. Any failure answers 503.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	var mu sync.Mutex
	deps := make(map[string]DependencyStatus, len(h.checks))
	healthy := true

	g, gctx := errgroup.WithContext(ctx)
	for _, check := range h.checks {
		if check.Probe == nil {
			deps[check.Name] = DependencyStatus{Status: HealthStatusDisabled}
			continue
		}
		g.Go(func() error {
			start := time.Now()
			err := check.Probe(gctx)
			st := DependencyStatus{Status: HealthStatusUp, LatencyMS: time.Since(start).Milliseconds()}
			if err != nil {
				st.Status = HealthStatusDown
				st.Error = err.Error()
			}

			mu.Lock()
			defer mu.Unlock()
			deps[check.Name] = st
			if err != nil {
				healthy = false
			}
			return nil
		})
	}
	_ = g.Wait()

	resp := HealthResponse{
		Status:       HealthStatusUp,
		Version:      h.version,
		GoVersion:    runtime.Version(),
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		Dependencies: deps,
	}
	if !healthy {
		resp.Status = HealthStatusDown
		c.JSON(http.StatusServiceUnavailable, dto.Response{Success: false, Data: resp})
		return
	}
	h.Success(c, resp)
}
