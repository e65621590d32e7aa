package simulation

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/samirrijal/safemap/internal/core/domain"
)

// IntRange is the half-open interval [Min, Max).
type IntRange struct {
	Min, Max int
}

// Contains reports whether v lies in the range.
func (r IntRange) Contains(v int) bool { return v >= r.Min && v < r.Max }

func (r IntRange) draw(rng *rand.Rand) int { return r.Min + rng.IntN(r.Max-r.Min) }

// FloatRange is the half-open interval [Min, Max).
type FloatRange struct {
	Min, Max float64
}

// Contains reports whether v lies in the range.
func (r FloatRange) Contains(v float64) bool { return v >= r.Min && v < r.Max }

func (r FloatRange) draw(rng *rand.Rand) float64 {
	v := r.Min + rng.Float64()*(r.Max-r.Min)
	if v >= r.Max {
		v = math.Nextafter(r.Max, r.Min)
	}
	return v
}

// Ranges bounds every simulated field. Delta ranges are added to the
// previous value; the rest replace it.
type Ranges struct {
	ResponseTimeMs    IntRange
	RequestsDelta     IntRange
	DBConnections     IntRange
	QueryTimeMs       FloatRange
	WSConnections     IntRange
	MessagesSentDelta IntRange
	CPU               IntRange
	Memory            IntRange
	Disk              IntRange
	Network           IntRange
}

// DefaultRanges are the bounds the dashboard simulation has always used.
var DefaultRanges = Ranges{
	ResponseTimeMs:    IntRange{200, 300},
	RequestsDelta:     IntRange{1, 11},
	DBConnections:     IntRange{35, 55},
	QueryTimeMs:       FloatRange{1.0, 1.5},
	WSConnections:     IntRange{850, 900},
	MessagesSentDelta: IntRange{10, 60},
	CPU:               IntRange{35, 55},
	Memory:            IntRange{60, 75},
	Disk:              IntRange{50, 60},
	Network:           IntRange{15, 45},
}

// InitialSnapshot is the reading shown before the first refresh.
func InitialSnapshot() *domain.MetricsSnapshot {
	return &domain.MetricsSnapshot{
		API: domain.APIMetrics{
			Status:         domain.HealthHealthy,
			ResponseTimeMs: 245,
			Uptime:         "99.8%",
			Requests:       15420,
			Errors:         12,
		},
		Database: domain.DatabaseMetrics{
			Status:         domain.HealthHealthy,
			Connections:    45,
			MaxConnections: 100,
			QueryTimeMs:    1.2,
			StoragePct:     78,
		},
		WebSocket: domain.WebSocketMetrics{
			Status:           domain.HealthHealthy,
			Connections:      892,
			MaxConnections:   5000,
			MessagesSent:     45231,
			MessagesReceived: 38942,
		},
		Server: domain.ServerMetrics{
			CPU:     42,
			Memory:  68,
			Disk:    55,
			Network: 23,
		},
		UpdatedAt: time.Now(),
	}
}

// MetricsSimulator generates plausible metrics snapshots for the health panel
// when no real telemetry feed is wired.
type MetricsSimulator struct {
	mu     sync.Mutex
	rng    *rand.Rand
	ranges Ranges
}

// NewMetricsSimulator creates a simulator drawing from src. A nil src seeds
// from the runtime's random source.
func NewMetricsSimulator(src rand.Source) *MetricsSimulator {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &MetricsSimulator{rng: rand.New(src), ranges: DefaultRanges}
}

// Ranges returns the bounds this simulator draws from.
func (s *MetricsSimulator) Ranges() Ranges { return s.ranges }

// Next derives a new snapshot from prev. Fields without a range carry over
// unchanged.
func (s *MetricsSimulator) Next(_ context.Context, prev *domain.MetricsSnapshot) (*domain.MetricsSnapshot, error) {
	if prev == nil {
		prev = InitialSnapshot()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.ranges
	next := *prev
	next.API.ResponseTimeMs = r.ResponseTimeMs.draw(s.rng)
	next.API.Requests = prev.API.Requests + int64(r.RequestsDelta.draw(s.rng))
	next.Database.Connections = r.DBConnections.draw(s.rng)
	next.Database.QueryTimeMs = r.QueryTimeMs.draw(s.rng)
	next.WebSocket.Connections = r.WSConnections.draw(s.rng)
	next.WebSocket.MessagesSent = prev.WebSocket.MessagesSent + int64(r.MessagesSentDelta.draw(s.rng))
	next.Server = domain.ServerMetrics{
		CPU:     r.CPU.draw(s.rng),
		Memory:  r.Memory.draw(s.rng),
		Disk:    r.Disk.draw(s.rng),
		Network: r.Network.draw(s.rng),
	}
	next.UpdatedAt = time.Now()
	return &next, nil
}
