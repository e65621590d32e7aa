package domain

import (
	"math"
	"time"
)

// HealthStatus is the coarse state of a monitored service.
type HealthStatus string

const (
	HealthHealthy HealthStatus = "healthy"
	HealthWarning HealthStatus = "warning"
	HealthError   HealthStatus = "error"
)

func (s HealthStatus) rank() int {
	switch s {
	case HealthHealthy:
		return 0
	case HealthWarning:
		return 1
	default:
		return 2
	}
}

// APIMetrics describes the public API tier.
type APIMetrics struct {
	Status         HealthStatus `json:"status"`
	ResponseTimeMs int          `json:"response_time_ms"`
	Uptime         string       `json:"uptime"`
	Requests       int64        `json:"requests"`
	Errors         int64        `json:"errors"`
}

// DatabaseMetrics describes the primary database.
type DatabaseMetrics struct {
	Status         HealthStatus `json:"status"`
	Connections    int          `json:"connections"`
	MaxConnections int          `json:"max_connections"`
	QueryTimeMs    float64      `json:"query_time_ms"`
	StoragePct     int          `json:"storage_pct"`
}

// UsagePct is the share of the connection pool in use, rounded.
func (d DatabaseMetrics) UsagePct() int {
	return percent(d.Connections, d.MaxConnections)
}

// WebSocketMetrics describes the realtime gateway.
type WebSocketMetrics struct {
	Status           HealthStatus `json:"status"`
	Connections      int          `json:"connections"`
	MaxConnections   int          `json:"max_connections"`
	MessagesSent     int64        `json:"messages_sent"`
	MessagesReceived int64        `json:"messages_received"`
}

// CapacityPct is the share of gateway capacity in use, rounded.
func (w WebSocketMetrics) CapacityPct() int {
	return percent(w.Connections, w.MaxConnections)
}

// ServerMetrics holds host resource utilisation in percent.
type ServerMetrics struct {
	CPU     int `json:"cpu"`
	Memory  int `json:"memory"`
	Disk    int `json:"disk"`
	Network int `json:"network"`
}

// MetricsSnapshot is one complete reading of the platform's health. Snapshots
// are replaced wholesale, never edited in place.
type MetricsSnapshot struct {
	API       APIMetrics       `json:"api"`
	Database  DatabaseMetrics  `json:"database"`
	WebSocket WebSocketMetrics `json:"websocket"`
	Server    ServerMetrics    `json:"server"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Overall is the worst status across the monitored services.
func (m MetricsSnapshot) Overall() HealthStatus {
	worst := m.API.Status
	for _, s := range []HealthStatus{m.Database.Status, m.WebSocket.Status} {
		if s.rank() > worst.rank() {
			worst = s
		}
	}
	return worst
}

// EventType classifies a system event.
type EventType string

const (
	EventSuccess EventType = "success"
	EventWarning EventType = "warning"
	EventError   EventType = "error"
	EventInfo    EventType = "info"
)

// SystemEvent is an entry in the recent-events feed of the health panel.
type SystemEvent struct {
	ID      string    `json:"id"`
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
	Type    EventType `json:"type"`
}

// HealthView is the health panel's read model.
type HealthView struct {
	Snapshot    MetricsSnapshot `json:"snapshot"`
	Overall     HealthStatus    `json:"overall"`
	LastUpdated time.Time       `json:"last_updated"`
	Refreshing  bool            `json:"refreshing"`
	Events      []SystemEvent   `json:"events"`
}

func percent(n, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(n) / float64(total) * 100))
}
