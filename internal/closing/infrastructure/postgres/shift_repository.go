package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	closing "github.com/johnkamauwamunga/energy-erp-sub003/internal/closing/domain"
)

// ShiftRepository persists shifts and applies accepted closing payloads.
type ShiftRepository struct {
	db *sql.DB
}

// NewShiftRepository constructs a repository.
func NewShiftRepository(db *sql.DB) *ShiftRepository {
	return &ShiftRepository{db: db}
}

// GetShift loads one shift by id, or nil when absent.
func (r *ShiftRepository) GetShift(ctx context.Context, shiftID string) (*closing.Shift, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("shift repo: nil db")
	}
	if shiftID == "" {
		return nil, closing.ErrEmptyShiftID
	}

	row := r.db.QueryRowContext(ctx, `
SELECT id, station_id, supervisor_id, COALESCE(recorded_by_id, ''), opened_at, COALESCE(closed_at, 'epoch'::timestamptz), status
FROM shifts
WHERE id = $1
LIMIT 1`, shiftID)
	return scanShift(row)
}

// GetCurrentOpenShift returns the station's open shift, or nil when none.
func (r *ShiftRepository) GetCurrentOpenShift(ctx context.Context, stationID string) (*closing.Shift, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("shift repo: nil db")
	}
	if stationID == "" {
		return nil, errors.New("shift repo: empty station id")
	}

	row := r.db.QueryRowContext(ctx, `
SELECT id, station_id, supervisor_id, COALESCE(recorded_by_id, ''), opened_at, COALESCE(closed_at, 'epoch'::timestamptz), status
FROM shifts
WHERE station_id = $1 AND status = 'OPEN'
ORDER BY opened_at DESC
LIMIT 1`, stationID)
	return scanShift(row)
}

func scanShift(row *sql.Row) (*closing.Shift, error) {
	var shift closing.Shift
	if err := row.Scan(
		&shift.ID,
		&shift.StationID,
		&shift.SupervisorID,
		&shift.RecordedByID,
		&shift.OpenedAt,
		&shift.ClosedAt,
		&shift.Status,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	shift.OpenedAt = shift.OpenedAt.UTC()
	shift.ClosedAt = shift.ClosedAt.UTC()
	return &shift, nil
}

// CloseShift applies a closing payload in one transaction: the shift row moves
// to CLOSED and the payload's readings and collections insert as END records.
// The guard on status makes a duplicate submit fail instead of double-closing.
func (r *ShiftRepository) CloseShift(ctx context.Context, payload closing.ClosingPayload) (closing.Shift, error) {
	if r == nil || r.db == nil {
		return closing.Shift{}, errors.New("shift repo: nil db")
	}
	if payload.ShiftID == "" {
		return closing.Shift{}, closing.ErrEmptyShiftID
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return closing.Shift{}, err
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
UPDATE shifts
SET status = 'CLOSED', closed_at = $2, recorded_by_id = $3
WHERE id = $1 AND status = 'OPEN'`,
		payload.ShiftID, payload.EndTime, payload.RecordedByID)
	if err != nil {
		return closing.Shift{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return closing.Shift{}, err
	}
	if affected == 0 {
		return closing.Shift{}, closing.ErrShiftNotOpen
	}

	for _, reading := range payload.PumpReadings {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO pump_readings (pump_id, shift_id, reading_type, electric_meter, manual_meter, cash_meter, liters_dispensed, sales_value, unit_price, recorded_by_id, recorded_at)
VALUES ($1, $2, 'END', $3, $4, $5, $6, $7, $8, $9, $10)`,
			reading.PumpID, payload.ShiftID,
			reading.ElectricMeter, reading.ManualMeter, reading.CashMeter,
			reading.LitersDispensed, reading.SalesValue, reading.UnitPrice,
			payload.RecordedByID, payload.EndTime,
		); err != nil {
			return closing.Shift{}, fmt.Errorf("shift repo: insert pump reading %s: %w", reading.PumpID, err)
		}
	}

	for _, reading := range payload.TankReadings {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO tank_readings (tank_id, shift_id, reading_type, dip_value, volume, temperature, water_level, density, recorded_by_id, recorded_at)
VALUES ($1, $2, 'END', $3, $4, $5, $6, $7, $8, $9)`,
			reading.TankID, payload.ShiftID,
			reading.DipValue, reading.Volume, reading.Temperature, reading.WaterLevel, reading.Density,
			payload.RecordedByID, payload.EndTime,
		); err != nil {
			return closing.Shift{}, fmt.Errorf("shift repo: insert tank reading %s: %w", reading.TankID, err)
		}
	}

	for _, collection := range payload.Collections {
		for _, method := range closing.PaymentMethods {
			amount, ok := collection.Amounts[method]
			if !ok || amount == 0 {
				continue
			}
			if _, err := tx.ExecContext(ctx, `
INSERT INTO shift_collections (shift_id, island_id, payment_method, amount, recorded_by_id, recorded_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
				payload.ShiftID, collection.IslandID, string(method), amount,
				payload.RecordedByID, payload.EndTime,
			); err != nil {
				return closing.Shift{}, fmt.Errorf("shift repo: insert collection %s/%s: %w", collection.IslandID, method, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return closing.Shift{}, err
	}

	closed, err := r.GetShift(ctx, payload.ShiftID)
	if err != nil {
		return closing.Shift{}, err
	}
	if closed == nil {
		return closing.Shift{}, errors.New("shift repo: shift vanished after close")
	}
	return *closed, nil
}
