package http

import (
	"context"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/safemap/internal/core/usecases"
)

// Pinger is a backing service that can report whether it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Maps     *usecases.MapService
	Health   *usecases.HealthService
	Entities *usecases.EntityService // nil without a database
	NATS     *nats.Conn
	DB       Pinger
	Cache    Pinger
}
