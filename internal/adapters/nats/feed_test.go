package natsadapter_test

import (
	"context"
	"errors"
	"testing"

	natsadapter "github.com/samirrijal/safemap/internal/adapters/nats"
	"github.com/samirrijal/safemap/internal/core/domain"
)

type mockSubscriber struct {
	handler func(ctx context.Context, snap *domain.MetricsSnapshot) error
}

func (m *mockSubscriber) SubscribeSnapshots(ctx context.Context, handler func(ctx context.Context, snap *domain.MetricsSnapshot) error) error {
	m.handler = handler
	return nil
}

func TestMetricsFeed(t *testing.T) {
	sub := &mockSubscriber{}
	feed, err := natsadapter.NewMetricsFeed(context.Background(), sub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := feed.Next(context.Background(), &domain.MetricsSnapshot{}); !errors.Is(err, natsadapter.ErrNoReading) {
		t.Fatalf("expected ErrNoReading, got %v", err)
	}

	reading := &domain.MetricsSnapshot{Server: domain.ServerMetrics{CPU: 47}}
	if err := sub.handler(context.Background(), reading); err != nil {
		t.Fatalf("handler: %v", err)
	}
	reading.Server.CPU = 99

	got, err := feed.Next(context.Background(), &domain.MetricsSnapshot{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Server.CPU != 47 {
		t.Errorf("expected cpu 47, got %d", got.Server.CPU)
	}
	got.Server.CPU = 1
	again, _ := feed.Next(context.Background(), nil)
	if again.Server.CPU != 47 {
		t.Error("feed handed out a shared snapshot")
	}
}

func TestSelectionSubject(t *testing.T) {
	if s := natsadapter.SelectionSubject("abc"); s != "safemap.map.abc.selection" {
		t.Errorf("unexpected subject %s", s)
	}
}
