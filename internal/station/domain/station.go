package station

import (
	"context"
	"errors"
	"time"
)

// Station represents a fuel station site.
type Station struct {
	ID        string
	TenantID  string
	Name      string
	Timezone  string
	Region    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks station invariants.
func (s Station) Validate() error {
	if s.ID == "" {
		return errors.New("station: empty id")
	}
	if s.TenantID == "" {
		return errors.New("station: empty tenant id")
	}
	if s.Name == "" {
		return errors.New("station: empty name")
	}
	return nil
}

// Pump is one dispenser nozzle with the last recorded end readings, which act
// as the opening baseline for the next closing.
type Pump struct {
	ID        string
	IslandID  string
	StationID string
	Name      string
	ProductID string
	TankID    string

	OpeningElectric float64
	OpeningManual   float64
	OpeningCash     float64
}

// Tank is one storage tank with the last recorded dip, the opening baseline
// for the next closing.
type Tank struct {
	ID        string
	StationID string
	Name      string
	ProductID string

	CapacityLiters float64
	OpeningDip     float64
	OpeningVolume  float64
}

// Island groups the pumps served by one attendant position.
type Island struct {
	ID    string
	Name  string
	Pumps []Pump
}

// Attendant is a staff member assigned to an island for the shift.
type Attendant struct {
	ID       string
	Name     string
	IslandID string
}

// AssetsSummary carries per-category counts for display.
type AssetsSummary struct {
	IslandCount    int `json:"islandCount"`
	PumpCount      int `json:"pumpCount"`
	TankCount      int `json:"tankCount"`
	AttendantCount int `json:"attendantCount"`
}

// AssetsStructure is the island→pump→tank topology resolved for one shift.
type AssetsStructure struct {
	ShiftID    string
	Islands    []Island
	Tanks      []Tank
	Attendants []Attendant
	Summary    AssetsSummary
}

// Summarize recomputes the summary counts from the structure.
func (a *AssetsStructure) Summarize() {
	pumpCount := 0
	for _, island := range a.Islands {
		pumpCount += len(island.Pumps)
	}
	a.Summary = AssetsSummary{
		IslandCount:    len(a.Islands),
		PumpCount:      pumpCount,
		TankCount:      len(a.Tanks),
		AttendantCount: len(a.Attendants),
	}
}

// PumpByID finds a pump anywhere in the island topology.
func (a AssetsStructure) PumpByID(pumpID string) (Pump, bool) {
	for _, island := range a.Islands {
		for _, pump := range island.Pumps {
			if pump.ID == pumpID {
				return pump, true
			}
		}
	}
	return Pump{}, false
}

// TankByID finds a tank in the structure.
func (a AssetsStructure) TankByID(tankID string) (Tank, bool) {
	for _, tank := range a.Tanks {
		if tank.ID == tankID {
			return tank, true
		}
	}
	return Tank{}, false
}

// IslandByID finds an island in the structure.
func (a AssetsStructure) IslandByID(islandID string) (Island, bool) {
	for _, island := range a.Islands {
		if island.ID == islandID {
			return island, true
		}
	}
	return Island{}, false
}

// Repository manages station persistence.
type Repository interface {
	Get(ctx context.Context, id string) (*Station, error)
}

// AssetsReader resolves shift topology and opening baselines.
type AssetsReader interface {
	GetShiftAssetsStructure(ctx context.Context, shiftID string) (AssetsStructure, error)
	GetStationPumpsWithLastEndReadings(ctx context.Context, stationID string) ([]Pump, error)
	GetStationTanksWithLastEndReadings(ctx context.Context, stationID string) ([]Tank, error)
}
