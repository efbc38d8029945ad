package debtors

import (
	"context"
	"sync"
)

// MemoryLedger is an in-memory Directory and Ledger for tests. FailFor marks
// record ids whose persistence should fail, to exercise partial-batch
// handling.
type MemoryLedger struct {
	mu      sync.Mutex
	debtors []Debtor
	records []FuelDebtRecord

	FailFor map[string]error
}

// NewMemoryLedger constructs a ledger seeded with debtors.
func NewMemoryLedger(seed ...Debtor) *MemoryLedger {
	return &MemoryLedger{debtors: seed, FailFor: make(map[string]error)}
}

// GetDebtors lists the seeded debtors.
func (l *MemoryLedger) GetDebtors(ctx context.Context) ([]Debtor, error) {
	_ = ctx
	l.mu.Lock()
	defer l.mu.Unlock()
	result := make([]Debtor, len(l.debtors))
	copy(result, l.debtors)
	return result, nil
}

// RecordFuelDebt stores one record, or fails if the id is marked.
func (l *MemoryLedger) RecordFuelDebt(ctx context.Context, record FuelDebtRecord) error {
	_ = ctx
	if err := record.Validate(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err, ok := l.FailFor[record.ID]; ok {
		return err
	}
	l.records = append(l.records, record)
	return nil
}

// Records returns the persisted records in insertion order.
func (l *MemoryLedger) Records() []FuelDebtRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	result := make([]FuelDebtRecord, len(l.records))
	copy(result, l.records)
	return result
}
