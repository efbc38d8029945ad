package auth

import (
	"context"
	"database/sql"
	"errors"

	stationrepo "github.com/johnkamauwamunga/energy-erp-sub003/internal/station/infrastructure/postgres"
)

var (
	// ErrTenantMismatch indicates resource belongs to a different tenant.
	ErrTenantMismatch = errors.New("tenant mismatch")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("resource not found")
)

// StationTenantChecker validates station tenant ownership.
type StationTenantChecker interface {
	EnsureStationTenant(ctx context.Context, tenantID, stationID string) error
}

// StationChecker checks station ownership using station reference data.
type StationChecker struct {
	repo *stationrepo.StationRepository
}

// NewStationChecker constructs a StationChecker.
func NewStationChecker(db *sql.DB) *StationChecker {
	if db == nil {
		return nil
	}
	return &StationChecker{repo: stationrepo.NewStationRepository(db)}
}

// EnsureStationTenant verifies station belongs to tenant.
func (c *StationChecker) EnsureStationTenant(ctx context.Context, tenantID, stationID string) error {
	if c == nil || c.repo == nil {
		return nil
	}
	if tenantID == "" || stationID == "" {
		return nil
	}
	found, err := c.repo.Get(ctx, stationID)
	if err != nil {
		return err
	}
	if found == nil {
		return ErrNotFound
	}
	if found.TenantID != tenantID {
		return ErrTenantMismatch
	}
	return nil
}
