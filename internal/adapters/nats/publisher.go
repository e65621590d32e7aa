package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/safemap/internal/core/domain"
)

// Subjects used on the bus. The WebSocket relay forwards everything under
// SubjectMapAll and SubjectHealthAll.
const (
	SubjectMapAll         = "safemap.map.>"
	SubjectHealthAll      = "safemap.health.>"
	SubjectHealthSnapshot = "safemap.health.snapshot"
	SubjectHealthFeed     = "safemap.health.feed"
)

// SelectionSubject is the subject selection changes of a session go to.
func SelectionSubject(sessionID string) string {
	return "safemap.map." + sessionID + ".selection"
}

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	// Ensure streams exist
	streams := []nats.StreamConfig{
		{
			Name:      "MAP_SELECTIONS",
			Subjects:  []string{SubjectMapAll},
			Retention: nats.InterestPolicy,
			MaxAge:    1 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:              "HEALTH",
			Subjects:          []string{SubjectHealthAll},
			Retention:         nats.LimitsPolicy,
			MaxAge:            24 * time.Hour,
			MaxMsgsPerSubject: 1000,
			Storage:           nats.FileStorage,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist, try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// PublishSelectionChanged announces a new selection on a map session.
func (p *Publisher) PublishSelectionChanged(ctx context.Context, change domain.SelectionChange) error {
	data, err := json.Marshal(change)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SelectionSubject(change.SessionID), data, nats.Context(ctx))
	return err
}

// PublishSnapshot announces a snapshot the API has just made current.
func (p *Publisher) PublishSnapshot(ctx context.Context, snap *domain.MetricsSnapshot) error {
	return p.publishSnapshot(ctx, SubjectHealthSnapshot, snap)
}

// PublishFeed sends a reading to the API instances consuming the health feed.
func (p *Publisher) PublishFeed(ctx context.Context, snap *domain.MetricsSnapshot) error {
	return p.publishSnapshot(ctx, SubjectHealthFeed, snap)
}

func (p *Publisher) publishSnapshot(ctx context.Context, subject string, snap *domain.MetricsSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(subject, data, nats.Context(ctx))
	return err
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
