package debtors

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Repository is a Postgres implementation of Directory and Ledger.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs a repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// GetDebtors lists registered debtors.
func (r *Repository) GetDebtors(ctx context.Context) ([]Debtor, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("debtors repo: nil db")
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT id, name, COALESCE(contact, ''), created_at
FROM debtors
ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Debtor
	for rows.Next() {
		var debtor Debtor
		if err := rows.Scan(&debtor.ID, &debtor.Name, &debtor.Contact, &debtor.CreatedAt); err != nil {
			return nil, err
		}
		debtor.CreatedAt = debtor.CreatedAt.UTC()
		result = append(result, debtor)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// RecordFuelDebt inserts one ledger record.
func (r *Repository) RecordFuelDebt(ctx context.Context, record FuelDebtRecord) error {
	if r == nil || r.db == nil {
		return errors.New("debtors repo: nil db")
	}
	if err := record.Validate(); err != nil {
		return err
	}
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO fuel_debts (
	id, debtor_id, debtor_name, contact, vehicle_plate, vehicle_model,
	amount, description, shift_id, station_id, recorded_by_id, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		record.ID,
		record.DebtorID,
		record.DebtorName,
		record.Contact,
		record.VehiclePlate,
		record.VehicleModel,
		record.Amount,
		record.Description,
		record.ShiftID,
		record.StationID,
		record.RecordedByID,
		createdAt,
	)
	return err
}
