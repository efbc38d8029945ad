package debtors

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrEmptyRecordID is returned when a ledger record has no id.
	ErrEmptyRecordID = errors.New("debtors: empty record id")
	// ErrEmptyDebtor is returned when a record names no debtor.
	ErrEmptyDebtor = errors.New("debtors: empty debtor")
	// ErrNonPositiveAmount is returned for a non-positive debt amount.
	ErrNonPositiveAmount = errors.New("debtors: non-positive amount")
)

// Debtor is a registered credit customer.
type Debtor struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Contact   string `json:"contact,omitempty"`
	CreatedAt time.Time
}

// FuelDebtRecord is one entry in the debtor ledger. Records are independent of
// the shift they originated from and remain correctable afterwards.
type FuelDebtRecord struct {
	ID           string
	DebtorID     string
	DebtorName   string
	Contact      string
	VehiclePlate string
	VehicleModel string
	Amount       float64
	Description  string
	ShiftID      string
	StationID    string
	RecordedByID string
	CreatedAt    time.Time
}

// Validate checks record invariants before persistence.
func (r FuelDebtRecord) Validate() error {
	if r.ID == "" {
		return ErrEmptyRecordID
	}
	if r.DebtorID == "" && r.DebtorName == "" {
		return ErrEmptyDebtor
	}
	if r.Amount <= 0 {
		return ErrNonPositiveAmount
	}
	return nil
}

// Directory lists registered debtors.
type Directory interface {
	GetDebtors(ctx context.Context) ([]Debtor, error)
}

// Ledger persists fuel debt records, one call per record.
type Ledger interface {
	RecordFuelDebt(ctx context.Context, record FuelDebtRecord) error
}
