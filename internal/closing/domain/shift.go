package closing

import "time"

// ShiftStatus is the lifecycle state of a shift.
type ShiftStatus string

const (
	ShiftStatusPending ShiftStatus = "PENDING"
	ShiftStatusOpen    ShiftStatus = "OPEN"
	ShiftStatusClosed  ShiftStatus = "CLOSED"
)

// Shift represents one supervised work period at a station. It is created by the
// opening workflow and mutated only by acceptance of a closing payload; once
// CLOSED it is immutable.
type Shift struct {
	ID           string
	StationID    string
	SupervisorID string
	RecordedByID string
	OpenedAt     time.Time
	ClosedAt     time.Time
	Status       ShiftStatus
}

// CanClose reports whether the shift may accept a closing payload.
func (s Shift) CanClose() error {
	if s.ID == "" {
		return ErrEmptyShiftID
	}
	if s.Status != ShiftStatusOpen {
		return ErrShiftNotOpen
	}
	return nil
}
