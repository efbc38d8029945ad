package application

import (
	"context"

	closing "github.com/johnkamauwamunga/energy-erp-sub003/internal/closing/domain"
	"github.com/johnkamauwamunga/energy-erp-sub003/internal/debtors"
)

// BatchOutcome labels the result of a debt allocation batch.
type BatchOutcome string

const (
	BatchAllSucceeded  BatchOutcome = "all"
	BatchPartial       BatchOutcome = "partial"
	BatchNoneSucceeded BatchOutcome = "none"
)

// AllocationFailure pairs a rejected allocation with its error.
type AllocationFailure struct {
	Allocation closing.DebtAllocation
	Err        error
}

// BatchResult folds per-record outcomes of a debt allocation batch. The batch
// is sequential and not atomic: records persisted before a failure stay
// persisted.
type BatchResult struct {
	Successes []closing.DebtAllocation
	Failures  []AllocationFailure
}

// Outcome classifies the fold.
func (r BatchResult) Outcome() BatchOutcome {
	switch {
	case len(r.Failures) == 0:
		return BatchAllSucceeded
	case len(r.Successes) == 0:
		return BatchNoneSucceeded
	default:
		return BatchPartial
	}
}

// submitAllocations writes each allocation to the ledger in entry order,
// continuing past failures. Each ledger record reuses the allocation id so a
// retry after partial success does not duplicate persisted records.
func submitAllocations(ctx context.Context, ledger debtors.Ledger, allocations []closing.DebtAllocation) BatchResult {
	var result BatchResult
	for _, allocation := range allocations {
		record := debtors.FuelDebtRecord{
			ID:           allocation.ID,
			DebtorID:     allocation.DebtorID,
			DebtorName:   allocation.DebtorName,
			Contact:      allocation.Contact,
			VehiclePlate: allocation.VehiclePlate,
			VehicleModel: allocation.VehicleModel,
			Amount:       allocation.Amount,
			Description:  allocation.Description,
			ShiftID:      allocation.ShiftID,
			StationID:    allocation.StationID,
			RecordedByID: allocation.RecordedByID,
			CreatedAt:    allocation.CreatedAt,
		}
		if err := ledger.RecordFuelDebt(ctx, record); err != nil {
			result.Failures = append(result.Failures, AllocationFailure{Allocation: allocation, Err: err})
			continue
		}
		result.Successes = append(result.Successes, allocation)
	}
	return result
}
