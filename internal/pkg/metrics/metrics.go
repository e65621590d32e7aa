package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "safemap",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "safemap",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	// Map metrics
	MapGestures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "safemap",
		Subsystem: "map",
		Name:      "gestures_total",
		Help:      "Viewport gestures applied, by gesture",
	}, []string{"gesture"})

	MapSessionsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "safemap",
		Subsystem: "map",
		Name:      "sessions_open",
		Help:      "Map sessions currently open",
	})

	MapMarkersVisible = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "safemap",
		Subsystem: "map",
		Name:      "markers_visible",
		Help:      "Markers drawn per rendered view",
		Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
	})

	MapMarkersCulled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "safemap",
		Subsystem: "map",
		Name:      "markers_culled_total",
		Help:      "Entities dropped because they projected outside the viewport",
	})

	// Health panel metrics
	HealthRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "safemap",
		Subsystem: "health",
		Name:      "refresh_total",
		Help:      "Metrics snapshot refreshes, by trigger and result",
	}, []string{"trigger", "result"})

	HealthRefreshInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "safemap",
		Subsystem: "health",
		Name:      "refresh_in_flight",
		Help:      "1 while a manual refresh is pending",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "safemap",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "safemap",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "safemap",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "safemap",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "safemap",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}

// PoolStat is the subset of pgxpool.Stat the pool gauges read.
type PoolStat interface {
	AcquiredConns() int32
	IdleConns() int32
	TotalConns() int32
}

// UpdateDBPoolMetrics copies pool statistics into the pool gauges.
func UpdateDBPoolMetrics(s PoolStat) {
	DBPoolConnsAcquired.Set(float64(s.AcquiredConns()))
	DBPoolConnsIdle.Set(float64(s.IdleConns()))
	DBPoolConnsOpen.Set(float64(s.TotalConns()))
}
