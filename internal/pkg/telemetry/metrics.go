package telemetry

// Span names and attribute keys shared across instrumentation.
const (
	// Map surface
	SpanMapOpen      = "MapService.Open"
	SpanGestureApply = "map.gesture.apply"

	// Health panel freshness
	SpanRefresh         = "TelemetryRefresher.Refresh"
	SpanHealthView      = "HealthService.View"
	MetricSnapshotAge   = "health.snapshot_age_seconds"
	MetricRefreshFailed = "health.refresh_failed"
)
