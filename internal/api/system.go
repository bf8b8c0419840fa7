package api

import (
	"net/http"
	"runtime"
	"time"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Service     string `json:"service"`
	Status      string `json:"status"`
	Environment string `json:"environment"`
	Version     string `json:"version"`
	Timestamp   string `json:"timestamp"`
}

// SystemMetrics represents the complete metrics response.
type SystemMetrics struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeMetrics `json:"runtime"`
	Relay         RelayMetrics   `json:"relay"`
	WebSocket     WSMetrics      `json:"websocket"`
	MQTT          MQTTMetrics    `json:"mqtt"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// RelayMetrics contains order relay counters since startup.
type RelayMetrics struct {
	TriggerBackend   string `json:"trigger_backend"`
	OrdersAccepted   uint64 `json:"orders_accepted"`
	OrdersRejected   uint64 `json:"orders_rejected"`
	TriggerFailures  uint64 `json:"trigger_failures"`
	TrackedClientIPs int    `json:"tracked_client_ips"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
}

// handleHealth returns the service health status.
// Open endpoint: uptime monitors poll it without credentials.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Service:     s.svcCfg.Name,
		Status:      "healthy",
		Environment: s.svcCfg.Environment,
		Version:     s.version,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleMetrics returns runtime and relay statistics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		Relay: RelayMetrics{
			TriggerBackend:  s.trigger.Name(),
			OrdersAccepted:  s.ordersAccepted.Load(),
			OrdersRejected:  s.ordersRejected.Load(),
			TriggerFailures: s.triggerFailures.Load(),
		},
	}

	if s.limiter != nil {
		metrics.Relay.TrackedClientIPs = s.limiter.ClientCount()
	}
	if s.hub != nil {
		metrics.WebSocket = WSMetrics{ConnectedClients: s.hub.ClientCount()}
	}
	if s.mqtt != nil {
		metrics.MQTT = MQTTMetrics{Connected: s.mqtt.IsConnected()}
	}

	writeJSON(w, http.StatusOK, metrics)
}
