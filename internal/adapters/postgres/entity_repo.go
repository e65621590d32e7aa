package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/safemap/internal/core/domain"
)

// EntityRepo implements ports.EntityRepository with pgx.
type EntityRepo struct {
	db *DB
}

// NewEntityRepo creates a new EntityRepo.
func NewEntityRepo(db *DB) *EntityRepo {
	return &EntityRepo{db: db}
}

const upsertEntitySQL = `
	INSERT INTO geo_entities (entity_id, kind, title, description, status, location, updated_at)
	VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), ST_SetSRID(ST_MakePoint($6, $7), 4326)::geography, now())
	ON CONFLICT (entity_id) DO UPDATE
	SET kind = EXCLUDED.kind, title = EXCLUDED.title,
	    description = EXCLUDED.description, status = EXCLUDED.status,
	    location = EXCLUDED.location, updated_at = now()
`

const selectEntitySQL = `
	SELECT entity_id, kind, title, COALESCE(description, ''), COALESCE(status, ''),
	       ST_Y(location::geometry) as lat,
	       ST_X(location::geometry) as lng
	FROM geo_entities
`

// Upsert inserts or updates a single entity.
func (r *EntityRepo) Upsert(ctx context.Context, e *domain.GeoEntity) error {
	_, err := r.db.Pool.Exec(ctx, upsertEntitySQL,
		e.ID, string(e.Kind), e.Title, e.Description, string(e.Status), e.Location.Lng, e.Location.Lat)
	return err
}

// UpsertBatch inserts many entities using pgx.Batch.
func (r *EntityRepo) UpsertBatch(ctx context.Context, entities []domain.GeoEntity) error {
	batch := &pgx.Batch{}
	for _, e := range entities {
		batch.Queue(upsertEntitySQL,
			e.ID, string(e.Kind), e.Title, e.Description, string(e.Status), e.Location.Lng, e.Location.Lat)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range entities {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

// Entities returns every stored entity in insertion order.
func (r *EntityRepo) Entities(ctx context.Context) ([]domain.GeoEntity, error) {
	rows, err := r.db.Pool.Query(ctx, selectEntitySQL+` ORDER BY created_at, entity_id`)
	if err != nil {
		return nil, err
	}
	return scanEntities(rows)
}

// InBounds returns the entities inside a bounding box using the GiST index.
func (r *EntityRepo) InBounds(ctx context.Context, b domain.Bounds) ([]domain.GeoEntity, error) {
	rows, err := r.db.Pool.Query(ctx, selectEntitySQL+`
		WHERE location && ST_MakeEnvelope($1, $2, $3, $4, 4326)::geography
		ORDER BY created_at, entity_id
	`, b.MinLng, b.MinLat, b.MaxLng, b.MaxLat)
	if err != nil {
		return nil, err
	}
	return scanEntities(rows)
}

func scanEntities(rows pgx.Rows) ([]domain.GeoEntity, error) {
	defer rows.Close()

	entities := []domain.GeoEntity{}
	for rows.Next() {
		var e domain.GeoEntity
		var kind, status string
		if err := rows.Scan(&e.ID, &kind, &e.Title, &e.Description, &status, &e.Location.Lat, &e.Location.Lng); err != nil {
			return nil, err
		}
		e.Kind = domain.EntityKind(kind)
		e.Status = domain.EntityStatus(status)
		entities = append(entities, e)
	}
	return entities, rows.Err()
}
