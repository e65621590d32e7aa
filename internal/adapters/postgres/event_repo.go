package postgres

import (
	"context"

	"github.com/samirrijal/safemap/internal/core/domain"
)

// EventRepo implements ports.SystemEventRepository.
type EventRepo struct {
	db *DB
}

func NewEventRepo(db *DB) *EventRepo {
	return &EventRepo{db: db}
}

func (r *EventRepo) Insert(ctx context.Context, ev *domain.SystemEvent) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO system_events (id, time, message, type)
		VALUES ($1, $2, $3, $4)
	`, ev.ID, ev.Time, ev.Message, string(ev.Type))
	return err
}

// Recent returns the newest events first.
func (r *EventRepo) Recent(ctx context.Context, limit int) ([]domain.SystemEvent, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, time, message, type
		FROM system_events
		ORDER BY time DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []domain.SystemEvent{}
	for rows.Next() {
		var ev domain.SystemEvent
		var typ string
		if err := rows.Scan(&ev.ID, &ev.Time, &ev.Message, &typ); err != nil {
			return nil, err
		}
		ev.Type = domain.EventType(typ)
		events = append(events, ev)
	}
	return events, rows.Err()
}
