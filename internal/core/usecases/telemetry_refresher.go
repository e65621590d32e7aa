package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/safemap/internal/core/domain"
	"github.com/samirrijal/safemap/internal/core/ports"
	"github.com/samirrijal/safemap/internal/pkg/metrics"
	"github.com/samirrijal/safemap/internal/pkg/telemetry"
)

// ErrRefreshInFlight is returned when a manual refresh is requested while
// another one is still pending.
var ErrRefreshInFlight = errors.New("refresh already in flight")

// Refresh triggers, used as metric labels.
const (
	TriggerInterval = "interval"
	TriggerManual   = "manual"
)

// SnapshotListener is called after every snapshot replacement, in
// replacement order. Listeners must not call back into the refresher.
type SnapshotListener func(ctx context.Context, snap *domain.MetricsSnapshot)

// RefreshResult is the outcome of a manual refresh. Snapshot is the reading
// that refresh produced and is nil when Err is set.
type RefreshResult struct {
	Snapshot *domain.MetricsSnapshot
	Err      error
}

// RefresherConfig tunes the refresh loop.
type RefresherConfig struct {
	// Interval between background refreshes. Defaults to 5s.
	Interval time.Duration
	// RefreshLatency is the pending window of a manual refresh. Zero settles
	// immediately; config supplies 1s.
	RefreshLatency time.Duration
}

// TelemetryRefresher keeps the health panel's metrics snapshot current. The
// snapshot is only ever replaced as a whole, so readers always see a complete
// reading.
type TelemetryRefresher struct {
	provider ports.MetricsProvider
	events   ports.SystemEventRepository
	logger   *slog.Logger
	interval time.Duration
	latency  time.Duration

	current    atomic.Pointer[domain.MetricsSnapshot]
	refreshing atomic.Bool
	replaceMu  sync.Mutex

	listenersMu sync.RWMutex
	listeners   []SnapshotListener

	lifeMu   sync.Mutex
	life     context.Context
	stop     context.CancelFunc
	loopDone chan struct{}
	inflight sync.WaitGroup

	now func() time.Time
}

// NewTelemetryRefresher creates a refresher publishing initial until the first
// refresh. events may be nil.
func NewTelemetryRefresher(
	provider ports.MetricsProvider,
	initial *domain.MetricsSnapshot,
	events ports.SystemEventRepository,
	cfg RefresherConfig,
	logger *slog.Logger,
) *TelemetryRefresher {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.RefreshLatency < 0 {
		cfg.RefreshLatency = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	if initial == nil {
		initial = &domain.MetricsSnapshot{}
	}

	r := &TelemetryRefresher{
		provider: provider,
		events:   events,
		logger:   logger,
		interval: cfg.Interval,
		latency:  cfg.RefreshLatency,
		now:      time.Now,
	}
	snap := *initial
	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = r.now()
	}
	r.current.Store(&snap)
	return r
}

// OnSnapshot registers a listener for snapshot replacements.
func (r *TelemetryRefresher) OnSnapshot(fn SnapshotListener) {
	r.listenersMu.Lock()
	r.listeners = append(r.listeners, fn)
	r.listenersMu.Unlock()
}

// Snapshot returns the current snapshot. Callers must not modify it.
func (r *TelemetryRefresher) Snapshot() *domain.MetricsSnapshot {
	return r.current.Load()
}

// LastUpdated is the time the current snapshot was published.
func (r *TelemetryRefresher) LastUpdated() time.Time {
	return r.current.Load().UpdatedAt
}

// Refreshing reports whether a manual refresh is pending.
func (r *TelemetryRefresher) Refreshing() bool {
	return r.refreshing.Load()
}

// Start launches the background refresh loop. Calling Start on a running
// refresher does nothing.
func (r *TelemetryRefresher) Start(ctx context.Context) {
	r.lifeMu.Lock()
	defer r.lifeMu.Unlock()
	if r.stop != nil {
		return
	}

	r.life, r.stop = context.WithCancel(ctx)
	r.loopDone = make(chan struct{})
	go r.loop(r.life, r.loopDone)

	r.logger.Info("telemetry refresher started", "interval", r.interval)
}

// Stop cancels the background loop and any pending manual refresh, and waits
// for them to exit. It is safe to call more than once.
func (r *TelemetryRefresher) Stop() {
	r.lifeMu.Lock()
	if r.stop == nil {
		r.lifeMu.Unlock()
		return
	}
	r.stop()
	<-r.loopDone
	r.life, r.stop, r.loopDone = nil, nil, nil
	r.lifeMu.Unlock()

	r.inflight.Wait()
	r.logger.Info("telemetry refresher stopped")
}

func (r *TelemetryRefresher) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Advance(ctx); err != nil && ctx.Err() == nil {
				r.logger.Warn("metrics refresh failed", "trigger", TriggerInterval, "error", err)
			}
		}
	}
}

// Advance replaces the snapshot once, without the manual pending window.
func (r *TelemetryRefresher) Advance(ctx context.Context) error {
	_, err := r.replace(ctx, TriggerInterval)
	return err
}

// RefreshAsync starts a manual refresh and returns a channel that receives
// its result. If a refresh is already pending it returns ErrRefreshInFlight
// and starts nothing.
func (r *TelemetryRefresher) RefreshAsync(ctx context.Context) (<-chan RefreshResult, error) {
	if !r.refreshing.CompareAndSwap(false, true) {
		return nil, ErrRefreshInFlight
	}
	metrics.HealthRefreshInFlight.Set(1)

	ctx, cancel := context.WithCancel(ctx)
	r.lifeMu.Lock()
	life := r.life
	r.lifeMu.Unlock()
	unlink := func() bool { return false }
	if life != nil {
		unlink = context.AfterFunc(life, cancel)
	}

	result := make(chan RefreshResult, 1)
	r.inflight.Add(1)
	go func() {
		var res RefreshResult
		defer func() {
			if p := recover(); p != nil {
				res = RefreshResult{Err: fmt.Errorf("refresh panicked: %v", p)}
			}
			unlink()
			cancel()
			r.refreshing.Store(false)
			metrics.HealthRefreshInFlight.Set(0)
			r.inflight.Done()
			result <- res
			close(result)
		}()
		res.Snapshot, res.Err = r.manualRefresh(ctx)
	}()
	return result, nil
}

// Refresh runs a manual refresh, waits for it to finish and returns the
// snapshot it produced. A background refresh landing afterwards does not
// change the returned value.
func (r *TelemetryRefresher) Refresh(ctx context.Context) (*domain.MetricsSnapshot, error) {
	result, err := r.RefreshAsync(ctx)
	if err != nil {
		return nil, err
	}
	res := <-result
	return res.Snapshot, res.Err
}

func (r *TelemetryRefresher) manualRefresh(ctx context.Context) (*domain.MetricsSnapshot, error) {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanRefresh)
	defer span.End()

	err := r.wait(ctx)
	var snap *domain.MetricsSnapshot
	if err == nil {
		snap, err = r.replace(ctx, TriggerManual)
	} else {
		metrics.HealthRefreshes.WithLabelValues(TriggerManual, "error").Inc()
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Warn("manual metrics refresh failed", telemetry.MetricRefreshFailed, true, "error", err)
		r.record(ctx, domain.EventError, "Manual metrics refresh failed: "+err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.String("health.overall", string(snap.Overall())))
	r.record(ctx, domain.EventSuccess, "Metrics refreshed manually")
	return snap, nil
}

// wait holds the refresh pending for the configured latency.
func (r *TelemetryRefresher) wait(ctx context.Context) error {
	if r.latency == 0 {
		return ctx.Err()
	}
	t := time.NewTimer(r.latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// replace asks the provider for the next reading and publishes it. On error
// the previous snapshot stays in place. replaceMu is held until the listeners
// return, so they observe replacements in the order they were stored.
func (r *TelemetryRefresher) replace(ctx context.Context, trigger string) (*domain.MetricsSnapshot, error) {
	r.replaceMu.Lock()
	defer r.replaceMu.Unlock()

	prev := r.current.Load()
	next, err := r.provider.Next(ctx, prev)
	if err == nil && next == nil {
		err = errors.New("provider returned no snapshot")
	}
	if err != nil {
		metrics.HealthRefreshes.WithLabelValues(trigger, "error").Inc()
		return nil, fmt.Errorf("next snapshot: %w", err)
	}

	snap := *next
	snap.UpdatedAt = r.now()
	r.current.Store(&snap)

	metrics.HealthRefreshes.WithLabelValues(trigger, "ok").Inc()

	if before, after := prev.Overall(), snap.Overall(); before != after {
		typ := domain.EventWarning
		if after == domain.HealthHealthy {
			typ = domain.EventInfo
		}
		r.record(ctx, typ, fmt.Sprintf("System status changed from %s to %s", before, after))
	}

	r.listenersMu.RLock()
	listeners := r.listeners
	r.listenersMu.RUnlock()
	for _, fn := range listeners {
		fn(ctx, &snap)
	}
	return &snap, nil
}

// record appends to the event feed. Failures are logged and otherwise ignored.
func (r *TelemetryRefresher) record(ctx context.Context, typ domain.EventType, msg string) {
	if r.events == nil {
		return
	}
	ev := &domain.SystemEvent{
		ID:      uuid.NewString(),
		Time:    r.now(),
		Message: msg,
		Type:    typ,
	}
	if err := r.events.Insert(context.WithoutCancel(ctx), ev); err != nil {
		r.logger.Warn("record system event", "error", err)
	}
}
