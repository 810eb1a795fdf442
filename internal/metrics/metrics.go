package metrics

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics holds all the metrics for the front controller
type Metrics struct {
	// Request metrics
	TotalRequests      uint64 `json:"total_requests"`
	SuccessfulRequests uint64 `json:"successful_requests"`
	FailedRequests     uint64 `json:"failed_requests"`
	NotFoundRequests   uint64 `json:"not_found_requests"`

	// Response time metrics
	TotalResponseTime   uint64  `json:"total_response_time_ms"`
	AverageResponseTime float64 `json:"average_response_time_ms"`

	// Template metrics
	TemplateRenders  uint64 `json:"template_renders"`
	TemplateFailures uint64 `json:"template_failures"`

	// Per-route metrics, keyed by "METHOD pattern"
	RouteMetrics map[string]*RouteMetrics `json:"route_metrics"`

	// System metrics
	StartTime time.Time `json:"start_time"`
	Uptime    string    `json:"uptime"`
}

// RouteMetrics holds metrics for a single route
type RouteMetrics struct {
	Route               string         `json:"route"`
	TotalRequests       uint64         `json:"total_requests"`
	StatusCodes         map[int]uint64 `json:"status_codes"`
	TotalResponseTime   uint64         `json:"total_response_time_ms"`
	AverageResponseTime float64        `json:"average_response_time_ms"`
	LastRequest         time.Time      `json:"last_request"`
}

// MetricsCollector manages metrics collection
type MetricsCollector struct {
	totalRequests      uint64
	successfulRequests uint64
	failedRequests     uint64
	notFoundRequests   uint64
	totalResponseTime  uint64
	templateRenders    uint64
	templateFailures   uint64

	mutex     sync.RWMutex
	routes    map[string]*RouteMetrics
	startTime time.Time
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		routes:    make(map[string]*RouteMetrics),
		startTime: time.Now(),
	}
}

// RecordRequest records a new request
func (mc *MetricsCollector) RecordRequest() {
	atomic.AddUint64(&mc.totalRequests, 1)
}

// RecordResponse records a response by status code and duration.
// Server errors count as failures; 404s are tracked separately.
func (mc *MetricsCollector) RecordResponse(status int, responseTime time.Duration) {
	switch {
	case status >= http.StatusInternalServerError:
		atomic.AddUint64(&mc.failedRequests, 1)
	case status == http.StatusNotFound:
		atomic.AddUint64(&mc.notFoundRequests, 1)
	case status < http.StatusBadRequest:
		atomic.AddUint64(&mc.successfulRequests, 1)
	}
	atomic.AddUint64(&mc.totalResponseTime, uint64(responseTime.Milliseconds()))
}

// RecordRoute records a completed request against a route label
func (mc *MetricsCollector) RecordRoute(route string, status int, responseTime time.Duration) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	rm, exists := mc.routes[route]
	if !exists {
		rm = &RouteMetrics{
			Route:       route,
			StatusCodes: make(map[int]uint64),
		}
		mc.routes[route] = rm
	}

	rm.TotalRequests++
	rm.StatusCodes[status]++
	rm.TotalResponseTime += uint64(responseTime.Milliseconds())
	rm.AverageResponseTime = float64(rm.TotalResponseTime) / float64(rm.TotalRequests)
	rm.LastRequest = time.Now()
}

// RecordTemplateRender records a template render attempt
func (mc *MetricsCollector) RecordTemplateRender(ok bool) {
	atomic.AddUint64(&mc.templateRenders, 1)
	if !ok {
		atomic.AddUint64(&mc.templateFailures, 1)
	}
}

// GetMetrics returns a copy of current metrics
func (mc *MetricsCollector) GetMetrics() *Metrics {
	total := atomic.LoadUint64(&mc.totalRequests)
	totalTime := atomic.LoadUint64(&mc.totalResponseTime)

	snapshot := &Metrics{
		TotalRequests:      total,
		SuccessfulRequests: atomic.LoadUint64(&mc.successfulRequests),
		FailedRequests:     atomic.LoadUint64(&mc.failedRequests),
		NotFoundRequests:   atomic.LoadUint64(&mc.notFoundRequests),
		TotalResponseTime:  totalTime,
		TemplateRenders:    atomic.LoadUint64(&mc.templateRenders),
		TemplateFailures:   atomic.LoadUint64(&mc.templateFailures),
		RouteMetrics:       make(map[string]*RouteMetrics),
		StartTime:          mc.startTime,
		Uptime:             time.Since(mc.startTime).String(),
	}
	if total > 0 {
		snapshot.AverageResponseTime = float64(totalTime) / float64(total)
	}

	mc.mutex.RLock()
	defer mc.mutex.RUnlock()
	for name, rm := range mc.routes {
		codes := make(map[int]uint64, len(rm.StatusCodes))
		for code, n := range rm.StatusCodes {
			codes[code] = n
		}
		snapshot.RouteMetrics[name] = &RouteMetrics{
			Route:               rm.Route,
			TotalRequests:       rm.TotalRequests,
			StatusCodes:         codes,
			TotalResponseTime:   rm.TotalResponseTime,
			AverageResponseTime: rm.AverageResponseTime,
			LastRequest:         rm.LastRequest,
		}
	}

	return snapshot
}

// MetricsHandler returns an HTTP handler for the metrics endpoint
func (mc *MetricsCollector) MetricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, mc.GetMetrics())
	}
}

// HealthHandler returns an HTTP handler for the health endpoint
func (mc *MetricsCollector) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m := mc.GetMetrics()
		writeJSON(w, map[string]interface{}{
			"status":            "healthy",
			"uptime":            m.Uptime,
			"total_requests":    m.TotalRequests,
			"template_failures": m.TemplateFailures,
		})
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(append(body, '\n'))
}
