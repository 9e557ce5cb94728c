package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/gray-logic-gateway/internal/notify"
)

const bytesPerMiB = 1 << 20

// SystemMetrics is the body of GET /metrics. Sections whose source was
// not wired into the server are omitted.
type SystemMetrics struct {
	Timestamp     string            `json:"timestamp"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Runtime       RuntimeMetrics    `json:"runtime"`
	WebSocket     WSMetrics         `json:"websocket"`
	Things        *int              `json:"things,omitempty"`
	Bus           *notify.Stats     `json:"bus,omitempty"`
	Database      *DatabaseMetrics  `json:"database,omitempty"`
	Telemetry     *TelemetryMetrics `json:"telemetry,omitempty"`
}

type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	HeapAllocMiB  float64 `json:"heap_alloc_mib"`
	TotalAllocMiB float64 `json:"total_alloc_mib"`
	GCCycles      uint32  `json:"gc_cycles"`
	LastGCPauseNS uint64  `json:"last_gc_pause_ns"`
}

type WSMetrics struct {
	Sessions       int `json:"sessions"`
	PendingTickets int `json:"pending_tickets"`
}

// DatabaseMetrics mirrors the sql.DBStats fields worth watching on a
// single-file SQLite database.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
	WaitMS          int64 `json:"wait_ms"`
}

type TelemetryMetrics struct {
	WriteErrors uint64 `json:"write_errors"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	m := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime:       runtimeMetrics(),
		WebSocket:     WSMetrics{Sessions: s.hub.ClientCount(), PendingTickets: s.tickets.len()},
	}

	if s.things != nil {
		n := s.things()
		m.Things = &n
	}
	if s.busStats != nil {
		st := s.busStats()
		m.Bus = &st
	}
	if s.db != nil {
		st := s.db.Stats()
		m.Database = &DatabaseMetrics{
			OpenConnections: st.OpenConnections,
			InUse:           st.InUse,
			Idle:            st.Idle,
			WaitCount:       st.WaitCount,
			WaitMS:          st.WaitDuration.Milliseconds(),
		}
	}
	if s.telemetryErrors != nil {
		m.Telemetry = &TelemetryMetrics{WriteErrors: s.telemetryErrors()}
	}

	writeJSON(w, http.StatusOK, m)
}

func runtimeMetrics() RuntimeMetrics {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return RuntimeMetrics{
		Goroutines:    runtime.NumGoroutine(),
		HeapAllocMiB:  float64(ms.HeapAlloc) / bytesPerMiB,
		TotalAllocMiB: float64(ms.TotalAlloc) / bytesPerMiB,
		GCCycles:      ms.NumGC,
		LastGCPauseNS: ms.PauseNs[(ms.NumGC+255)%256],
	}
}
