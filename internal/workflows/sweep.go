package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/safemap/internal/core/domain"
)

// SweepInput is the input for the health sweep workflow.
type SweepInput struct {
	Reason string
}

// SweepResult summarises one sweep.
type SweepResult struct {
	Overall   domain.HealthStatus
	UpdatedAt time.Time
	Published bool
}

// HealthSweepWorkflow takes a fresh reading and publishes it on the health
// feed. If publishing fails the failure is recorded in the event feed.
func HealthSweepWorkflow(ctx workflow.Context, input SweepInput) (*SweepResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting health sweep", "reason", input.Reason)

	// A refresh is non-reentrant, so it gets exactly one attempt per sweep.
	collectCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	publishCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 15 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 3},
	})

	var snap domain.MetricsSnapshot
	if err := workflow.ExecuteActivity(collectCtx, "CollectReading").Get(ctx, &snap); err != nil {
		return nil, err
	}
	result := &SweepResult{Overall: snap.Overall(), UpdatedAt: snap.UpdatedAt}

	if err := workflow.ExecuteActivity(publishCtx, "PublishReading", &snap).Get(ctx, nil); err != nil {
		logger.Warn("publish failed, recording failure", "error", err)
		_ = workflow.ExecuteActivity(publishCtx, "RecordSweepFailure", err.Error()).Get(ctx, nil)
		return result, err
	}
	result.Published = true

	logger.Info("Health sweep completed", "overall", result.Overall)
	return result, nil
}
