package memory

import (
	"context"
	"sync"

	closing "github.com/johnkamauwamunga/energy-erp-sub003/internal/closing/domain"
)

// ShiftStore is an in-memory shift reader and closer for tests and
// single-process development.
type ShiftStore struct {
	mu       sync.RWMutex
	shifts   map[string]closing.Shift
	payloads []closing.ClosingPayload
}

// NewShiftStore constructs a store seeded with shifts.
func NewShiftStore(seed ...closing.Shift) *ShiftStore {
	store := &ShiftStore{shifts: make(map[string]closing.Shift, len(seed))}
	for _, shift := range seed {
		store.shifts[shift.ID] = shift
	}
	return store
}

// GetCurrentOpenShift returns the station's open shift, or nil when none.
func (s *ShiftStore) GetCurrentOpenShift(ctx context.Context, stationID string) (*closing.Shift, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, shift := range s.shifts {
		if shift.StationID == stationID && shift.Status == closing.ShiftStatusOpen {
			found := shift
			return &found, nil
		}
	}
	return nil, nil
}

// CloseShift moves the shift to CLOSED and records the payload.
func (s *ShiftStore) CloseShift(ctx context.Context, payload closing.ClosingPayload) (closing.Shift, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	shift, ok := s.shifts[payload.ShiftID]
	if !ok {
		return closing.Shift{}, closing.ErrEmptyShiftID
	}
	if shift.Status != closing.ShiftStatusOpen {
		return closing.Shift{}, closing.ErrShiftNotOpen
	}

	shift.Status = closing.ShiftStatusClosed
	shift.ClosedAt = payload.EndTime
	shift.RecordedByID = payload.RecordedByID
	s.shifts[payload.ShiftID] = shift
	s.payloads = append(s.payloads, payload)
	return shift, nil
}

// Payloads returns accepted payloads in submission order.
func (s *ShiftStore) Payloads() []closing.ClosingPayload {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]closing.ClosingPayload, len(s.payloads))
	copy(result, s.payloads)
	return result
}
