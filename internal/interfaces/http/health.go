package http

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"sort"
	"time"
)

// Checker is a dependency the health endpoint checks, e.g. the database manager
type Checker interface {
	Ping(ctx context.Context) error
}

// HealthHandler provides system health status endpoint
type HealthHandler struct {
	checks    map[string]Checker
	startTime time.Time
	version   string
	timeout   time.Duration
	now       func() time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(checks map[string]Checker, version string) *HealthHandler {
	return &HealthHandler{
		checks:    checks,
		startTime: time.Now(),
		version:   version,
		timeout:   2 * time.Second,
		now:       time.Now,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string                 `json:"status"` // "healthy" or "unhealthy"
	Timestamp time.Time              `json:"timestamp"`
	Uptime    string                 `json:"uptime"`
	Version   string                 `json:"version"`
	System    SystemInfo             `json:"system"`
	Checks    map[string]CheckResult `json:"checks"`
}

// SystemInfo provides system-level information
type SystemInfo struct {
	GoVersion     string `json:"go_version"`
	NumGoroutines int    `json:"num_goroutines"`
	MemAlloc      uint64 `json:"mem_alloc_bytes"`
	NumGC         uint32 `json:"num_gc"`
}

// CheckResult represents individual health check results
type CheckResult struct {
	Status   string        `json:"status"` // "pass" or "fail"
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration"`
}

// ServeHTTP implements the health check endpoint
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	response := h.gather(r.Context())

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	if response.Status == "healthy" {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(response)
}

func (h *HealthHandler) gather(ctx context.Context) HealthResponse {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: h.now().UTC(),
		Uptime:    h.now().Sub(h.startTime).Truncate(time.Second).String(),
		Version:   h.version,
		System: SystemInfo{
			GoVersion:     runtime.Version(),
			NumGoroutines: runtime.NumGoroutine(),
			MemAlloc:      mem.Alloc,
			NumGC:         mem.NumGC,
		},
		Checks: make(map[string]CheckResult, len(h.checks)),
	}

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
		start := time.Now()
		err := h.checks[name].Ping(checkCtx)
		cancel()

		result := CheckResult{Status: "pass", Duration: time.Since(start)}
		if err != nil {
			result.Status = "fail"
			result.Message = err.Error()
			response.Status = "unhealthy"
		}
		response.Checks[name] = result
	}

	return response
}
