package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/safemap/internal/core/domain"
)

// Subscriber implements ports.EventSubscriber using NATS JetStream.
type Subscriber struct {
	conn    *nats.Conn
	js      nats.JetStreamContext
	durable string
	subs    []*nats.Subscription
}

// NewSubscriber creates a subscriber. durable names the consumer; instances
// sharing a name share the feed.
func NewSubscriber(url, durable string) (*Subscriber, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{conn: conn, js: js, durable: durable}, nil
}

// SubscribeSnapshots delivers readings published on the health feed.
func (s *Subscriber) SubscribeSnapshots(ctx context.Context, handler func(ctx context.Context, snap *domain.MetricsSnapshot) error) error {
	sub, err := s.js.Subscribe(SubjectHealthFeed, func(msg *nats.Msg) {
		var snap domain.MetricsSnapshot
		if err := json.Unmarshal(msg.Data, &snap); err != nil {
			// Malformed readings will never decode; drop them.
			_ = msg.Term()
			return
		}
		if err := handler(ctx, &snap); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable(s.durable),
		nats.ManualAck(),
		nats.MaxDeliver(3),
		nats.DeliverNew(),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
