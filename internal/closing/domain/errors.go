package closing

import "errors"

var (
	// ErrShiftNotOpen is returned when closing is attempted on a shift that is not open.
	ErrShiftNotOpen = errors.New("closing: shift not open")
	// ErrEmptyShiftID is returned when a shift id is empty.
	ErrEmptyShiftID = errors.New("closing: empty shift id")
	// ErrUnknownField is returned for an unrecognized reading field name.
	ErrUnknownField = errors.New("closing: unknown reading field")
	// ErrUnknownMethod is returned for an unrecognized payment method.
	ErrUnknownMethod = errors.New("closing: unknown payment method")
	// ErrUnknownPump is returned when a pump id is not part of the shift assets.
	ErrUnknownPump = errors.New("closing: unknown pump")
	// ErrUnknownTank is returned when a tank id is not part of the shift assets.
	ErrUnknownTank = errors.New("closing: unknown tank")
	// ErrUnknownIsland is returned when an island id is not part of the shift assets.
	ErrUnknownIsland = errors.New("closing: unknown island")
	// ErrInvalidVehiclePlate is returned when a vehicle plate fails validation.
	ErrInvalidVehiclePlate = errors.New("closing: invalid vehicle plate")
	// ErrEmptyDebtor is returned when an allocation names no debtor.
	ErrEmptyDebtor = errors.New("closing: empty debtor")
	// ErrNonPositiveAmount is returned when an allocation amount is not positive.
	ErrNonPositiveAmount = errors.New("closing: non-positive allocation amount")
	// ErrAllocationNotFound is returned when removing an unknown allocation.
	ErrAllocationNotFound = errors.New("closing: allocation not found")
	// ErrDebtNotFullyAllocated is returned when the allocation sum does not net the
	// collected debt to exactly zero.
	ErrDebtNotFullyAllocated = errors.New("closing: debt not fully allocated")
)
