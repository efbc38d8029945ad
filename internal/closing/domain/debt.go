package closing

import (
	"regexp"
	"strings"
	"time"
)

// vehiclePlatePattern is deliberately permissive: uppercase alphanumerics with
// optional spaces or dashes, 3 to 12 characters after normalization.
var vehiclePlatePattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9 -]{2,11}$`)

// NormalizeVehiclePlate uppercases a plate and collapses repeated whitespace.
func NormalizeVehiclePlate(plate string) string {
	plate = strings.ToUpper(strings.TrimSpace(plate))
	return strings.Join(strings.Fields(plate), " ")
}

// ValidVehiclePlate reports whether a normalized plate matches the accepted
// pattern.
func ValidVehiclePlate(plate string) bool {
	return vehiclePlatePattern.MatchString(plate)
}

// DebtAllocation assigns part of the collected debt to a named debtor. On
// submission each allocation persists as an independent debtor ledger record,
// not as part of the shift.
type DebtAllocation struct {
	ID           string    `json:"id"`
	DebtorID     string    `json:"debtorId"`
	DebtorName   string    `json:"debtorName"`
	Contact      string    `json:"contact,omitempty"`
	VehiclePlate string    `json:"vehiclePlate"`
	VehicleModel string    `json:"vehicleModel,omitempty"`
	Amount       float64   `json:"amount"`
	Description  string    `json:"description,omitempty"`
	ShiftID      string    `json:"shiftId"`
	StationID    string    `json:"stationId"`
	RecordedByID string    `json:"recordedById"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Normalize uppercases the vehicle plate in place.
func (a *DebtAllocation) Normalize() {
	a.VehiclePlate = NormalizeVehiclePlate(a.VehiclePlate)
	a.VehicleModel = strings.TrimSpace(a.VehicleModel)
}

// Validate checks the allocation before it enters the in-memory list.
func (a DebtAllocation) Validate() error {
	if a.DebtorID == "" && a.DebtorName == "" {
		return ErrEmptyDebtor
	}
	if a.Amount <= 0 {
		return ErrNonPositiveAmount
	}
	if !ValidVehiclePlate(a.VehiclePlate) {
		return ErrInvalidVehiclePlate
	}
	return nil
}

// SumAllocations totals the allocated amounts.
func SumAllocations(allocations []DebtAllocation) float64 {
	var total float64
	for _, allocation := range allocations {
		total += allocation.Amount
	}
	return Round2(total)
}

// RemainingDebt is the collected debt not yet assigned to a debtor.
func RemainingDebt(totalCollectedDebt float64, allocations []DebtAllocation) float64 {
	return Round2(Round2(totalCollectedDebt) - SumAllocations(allocations))
}

// FullyAllocated reports whether the allocations net the collected debt to
// exactly zero. Unlike the collections variance there is no tolerance band
// here; the two gates are intentionally different.
func FullyAllocated(totalCollectedDebt float64, allocations []DebtAllocation) bool {
	return RemainingDebt(totalCollectedDebt, allocations) == 0
}
