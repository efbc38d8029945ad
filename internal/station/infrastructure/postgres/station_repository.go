package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	station "github.com/johnkamauwamunga/energy-erp-sub003/internal/station/domain"
)

const defaultStationsTable = "stations"

// StationRepository is a Postgres implementation for stations.
type StationRepository struct {
	db    *sql.DB
	table string
}

// StationOption configures the repository.
type StationOption func(*StationRepository)

// WithStationTable overrides the default table name.
func WithStationTable(table string) StationOption {
	return func(repo *StationRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// NewStationRepository constructs a repository.
func NewStationRepository(db *sql.DB, opts ...StationOption) *StationRepository {
	repo := &StationRepository{db: db, table: defaultStationsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// Get loads a station by id.
func (r *StationRepository) Get(ctx context.Context, id string) (*station.Station, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("station repo: nil db")
	}
	if id == "" {
		return nil, errors.New("station repo: empty id")
	}

	query := fmt.Sprintf(`
SELECT id, tenant_id, name, timezone, region, created_at, updated_at
FROM %s
WHERE id = $1
LIMIT 1`, r.table)

	var result station.Station
	if err := r.db.QueryRowContext(ctx, query, id).Scan(
		&result.ID,
		&result.TenantID,
		&result.Name,
		&result.Timezone,
		&result.Region,
		&result.CreatedAt,
		&result.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	result.CreatedAt = result.CreatedAt.UTC()
	result.UpdatedAt = result.UpdatedAt.UTC()
	return &result, nil
}
