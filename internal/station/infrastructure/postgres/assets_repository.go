package postgres

import (
	"context"
	"database/sql"
	"errors"

	station "github.com/johnkamauwamunga/energy-erp-sub003/internal/station/domain"
)

// AssetsRepository resolves island/pump/tank topology with the last recorded
// end readings as opening baselines.
type AssetsRepository struct {
	db *sql.DB
}

// NewAssetsRepository constructs a repository.
func NewAssetsRepository(db *sql.DB) *AssetsRepository {
	return &AssetsRepository{db: db}
}

// GetStationPumpsWithLastEndReadings lists pumps with their opening baselines.
func (r *AssetsRepository) GetStationPumpsWithLastEndReadings(ctx context.Context, stationID string) ([]station.Pump, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("assets repo: nil db")
	}
	if stationID == "" {
		return nil, errors.New("assets repo: empty station id")
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT
	p.id,
	p.island_id,
	p.station_id,
	p.name,
	p.product_id,
	p.tank_id,
	COALESCE(last.electric_meter, 0),
	COALESCE(last.manual_meter, 0),
	COALESCE(last.cash_meter, 0)
FROM pumps p
LEFT JOIN LATERAL (
	SELECT electric_meter, manual_meter, cash_meter
	FROM pump_readings
	WHERE pump_id = p.id AND reading_type = 'END'
	ORDER BY recorded_at DESC
	LIMIT 1
) last ON TRUE
WHERE p.station_id = $1
ORDER BY p.island_id ASC, p.name ASC`, stationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pumps []station.Pump
	for rows.Next() {
		var pump station.Pump
		if err := rows.Scan(
			&pump.ID,
			&pump.IslandID,
			&pump.StationID,
			&pump.Name,
			&pump.ProductID,
			&pump.TankID,
			&pump.OpeningElectric,
			&pump.OpeningManual,
			&pump.OpeningCash,
		); err != nil {
			return nil, err
		}
		pumps = append(pumps, pump)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return pumps, nil
}

// GetStationTanksWithLastEndReadings lists tanks with their opening baselines.
func (r *AssetsRepository) GetStationTanksWithLastEndReadings(ctx context.Context, stationID string) ([]station.Tank, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("assets repo: nil db")
	}
	if stationID == "" {
		return nil, errors.New("assets repo: empty station id")
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT
	t.id,
	t.station_id,
	t.name,
	t.product_id,
	t.capacity_liters,
	COALESCE(last.dip_value, 0),
	COALESCE(last.volume, 0)
FROM tanks t
LEFT JOIN LATERAL (
	SELECT dip_value, volume
	FROM tank_readings
	WHERE tank_id = t.id AND reading_type = 'END'
	ORDER BY recorded_at DESC
	LIMIT 1
) last ON TRUE
WHERE t.station_id = $1
ORDER BY t.name ASC`, stationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tanks []station.Tank
	for rows.Next() {
		var tank station.Tank
		if err := rows.Scan(
			&tank.ID,
			&tank.StationID,
			&tank.Name,
			&tank.ProductID,
			&tank.CapacityLiters,
			&tank.OpeningDip,
			&tank.OpeningVolume,
		); err != nil {
			return nil, err
		}
		tanks = append(tanks, tank)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tanks, nil
}

// GetShiftAssetsStructure assembles the island→pump→tank topology for a shift.
func (r *AssetsRepository) GetShiftAssetsStructure(ctx context.Context, shiftID string) (station.AssetsStructure, error) {
	if r == nil || r.db == nil {
		return station.AssetsStructure{}, errors.New("assets repo: nil db")
	}
	if shiftID == "" {
		return station.AssetsStructure{}, errors.New("assets repo: empty shift id")
	}

	var stationID string
	if err := r.db.QueryRowContext(ctx, `
SELECT station_id FROM shifts WHERE id = $1 LIMIT 1`, shiftID).Scan(&stationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return station.AssetsStructure{}, errors.New("assets repo: shift not found")
		}
		return station.AssetsStructure{}, err
	}

	islands, err := r.loadIslands(ctx, stationID)
	if err != nil {
		return station.AssetsStructure{}, err
	}
	pumps, err := r.GetStationPumpsWithLastEndReadings(ctx, stationID)
	if err != nil {
		return station.AssetsStructure{}, err
	}
	tanks, err := r.GetStationTanksWithLastEndReadings(ctx, stationID)
	if err != nil {
		return station.AssetsStructure{}, err
	}
	attendants, err := r.loadAttendants(ctx, shiftID)
	if err != nil {
		return station.AssetsStructure{}, err
	}

	byIsland := make(map[string][]station.Pump, len(islands))
	for _, pump := range pumps {
		byIsland[pump.IslandID] = append(byIsland[pump.IslandID], pump)
	}
	for i := range islands {
		islands[i].Pumps = byIsland[islands[i].ID]
	}

	structure := station.AssetsStructure{
		ShiftID:    shiftID,
		Islands:    islands,
		Tanks:      tanks,
		Attendants: attendants,
	}
	structure.Summarize()
	return structure, nil
}

func (r *AssetsRepository) loadIslands(ctx context.Context, stationID string) ([]station.Island, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, name
FROM islands
WHERE station_id = $1
ORDER BY name ASC`, stationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var islands []station.Island
	for rows.Next() {
		var island station.Island
		if err := rows.Scan(&island.ID, &island.Name); err != nil {
			return nil, err
		}
		islands = append(islands, island)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return islands, nil
}

func (r *AssetsRepository) loadAttendants(ctx context.Context, shiftID string) ([]station.Attendant, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT a.id, a.name, sa.island_id
FROM shift_attendants sa
JOIN attendants a ON a.id = sa.attendant_id
WHERE sa.shift_id = $1
ORDER BY a.name ASC`, shiftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attendants []station.Attendant
	for rows.Next() {
		var attendant station.Attendant
		if err := rows.Scan(&attendant.ID, &attendant.Name, &attendant.IslandID); err != nil {
			return nil, err
		}
		attendants = append(attendants, attendant)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return attendants, nil
}
