package application

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	closing "github.com/johnkamauwamunga/energy-erp-sub003/internal/closing/domain"
	"github.com/johnkamauwamunga/energy-erp-sub003/internal/pricing"
	station "github.com/johnkamauwamunga/energy-erp-sub003/internal/station/domain"
)

var (
	// ErrSessionClosed is returned when mutating a torn-down session.
	ErrSessionClosed = errors.New("closing session: session closed")
	// ErrAtLastStep is returned when advancing past the final step.
	ErrAtLastStep = errors.New("closing session: already at last step")
	// ErrAtFirstStep is returned when retreating before the first step.
	ErrAtFirstStep = errors.New("closing session: already at first step")
	// ErrAllocationPersisted is returned when removing an allocation that
	// already reached the ledger.
	ErrAllocationPersisted = errors.New("closing session: allocation already persisted")
)

// UnitPriceResolver resolves the canonical unit price for a product.
type UnitPriceResolver interface {
	ResolveUnitPrice(productID string) pricing.Resolved
}

// Session holds the accumulated state of one shift-closing run. It is the
// single source of truth: engines never mutate shared records outside its
// update methods, and every derived figure is recomputed from this state on
// read. All state exists only for the duration of the session; it becomes
// permanent only on successful submission.
type Session struct {
	mu sync.Mutex

	id         string
	shift      closing.Shift
	recorderID string
	assets     station.AssetsStructure
	prices     UnitPriceResolver

	pumpReadings map[string]*closing.PumpClosingReading
	tankReadings map[string]*closing.TankClosingReading
	collections  map[string]*closing.IslandActualCollection
	allocations  []closing.DebtAllocation
	persisted    map[string]bool

	debtComplete  bool
	varianceAcked bool

	steps     []Step
	stepIndex int

	startedAt    time.Time
	lastActivity time.Time
	// epoch guards late async results: it increments on teardown so a
	// response that raced the teardown is discarded instead of mutating
	// stale state.
	epoch  uint64
	closed bool
}

// NewSession starts a closing session for an open shift.
func NewSession(shift closing.Shift, recorderID string, assets station.AssetsStructure, prices UnitPriceResolver, now time.Time) (*Session, error) {
	if err := shift.CanClose(); err != nil {
		return nil, err
	}
	if recorderID == "" {
		return nil, errors.New("closing session: empty recorder id")
	}
	if prices == nil {
		return nil, errors.New("closing session: nil price resolver")
	}

	session := &Session{
		id:           uuid.NewString(),
		shift:        shift,
		recorderID:   recorderID,
		assets:       assets,
		prices:       prices,
		pumpReadings: make(map[string]*closing.PumpClosingReading),
		tankReadings: make(map[string]*closing.TankClosingReading),
		collections:  make(map[string]*closing.IslandActualCollection),
		persisted:    make(map[string]bool),
		startedAt:    now,
		lastActivity: now,
	}
	session.steps = BuildSteps(0, false)
	return session, nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Shift returns the shift under closure.
func (s *Session) Shift() closing.Shift {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shift
}

// Assets returns the shift topology.
func (s *Session) Assets() station.AssetsStructure {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assets
}

// Epoch returns the current teardown epoch. Callers performing asynchronous
// work capture it before the call and pass it to IfActive afterwards.
func (s *Session) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// IfActive runs fn under the session lock iff the session is still active and
// the epoch has not moved since the caller captured it. It reports whether fn
// ran; a false return means the result arrived after teardown and was
// discarded.
func (s *Session) IfActive(epoch uint64, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.epoch != epoch {
		return false
	}
	if fn != nil {
		fn()
	}
	return true
}

// Teardown discards the session. Any in-flight async result observes the
// epoch bump and is dropped.
func (s *Session) Teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.epoch++
}

// Closed reports whether the session was torn down.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// LastActivity reports the time of the last mutation, for TTL sweeps.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

func (s *Session) touch(now time.Time) {
	if !now.IsZero() {
		s.lastActivity = now
	}
}

// UpdatePumpReading parses and stores one pump meter field. Malformed input
// coerces to zero. Meter edits recompute liters dispensed and sales value
// from the opening baseline and the resolver's unit price; operator-entered
// prices are never used.
func (s *Session) UpdatePumpReading(pumpID, field, rawValue string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}

	pump, ok := s.assets.PumpByID(pumpID)
	if !ok {
		return closing.ErrUnknownPump
	}

	reading, ok := s.pumpReadings[pumpID]
	if !ok {
		reading = &closing.PumpClosingReading{PumpID: pumpID}
		s.pumpReadings[pumpID] = reading
	}

	recompute, err := reading.ApplyField(field, closing.ParseMeterValue(rawValue))
	if err != nil {
		return err
	}
	if recompute {
		resolved := s.prices.ResolveUnitPrice(pump.ProductID)
		reading.Recompute(pump.OpeningElectric, resolved.UnitPrice, resolved.PriceStatus)
	}
	s.touch(now)
	return nil
}

// UpdateTankReading parses and stores one tank field, keeping dip and volume
// in lockstep.
func (s *Session) UpdateTankReading(tankID, field, rawValue string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}

	if _, ok := s.assets.TankByID(tankID); !ok {
		return closing.ErrUnknownTank
	}

	reading, ok := s.tankReadings[tankID]
	if !ok {
		reading = &closing.TankClosingReading{TankID: tankID}
		s.tankReadings[tankID] = reading
	}
	if err := reading.ApplyField(field, closing.ParseMeterValue(rawValue)); err != nil {
		return err
	}
	s.touch(now)
	return nil
}

// UpdateCollection stores an actual collected amount for an island under a
// payment method and rebuilds the step list, since the collected debt total
// shapes the wizard sequence.
func (s *Session) UpdateCollection(islandID string, method closing.PaymentMethod, rawValue string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}

	if _, ok := s.assets.IslandByID(islandID); !ok {
		return closing.ErrUnknownIsland
	}

	collection, ok := s.collections[islandID]
	if !ok {
		collection = closing.NewIslandActualCollection(islandID)
		s.collections[islandID] = collection
	}
	if err := collection.Set(method, closing.ParseMeterValue(rawValue)); err != nil {
		return err
	}
	s.rebuildSteps()
	s.touch(now)
	return nil
}

// rebuildSteps regenerates the step list while preserving the operator's
// position by step tag. Caller holds the lock.
func (s *Session) rebuildSteps() {
	current := s.steps[s.stepIndex]
	s.steps = BuildSteps(s.totalCollectedDebtLocked(), s.debtComplete)
	if index := indexOfStep(s.steps, current); index >= 0 {
		s.stepIndex = index
		return
	}
	if s.stepIndex >= len(s.steps) {
		s.stepIndex = len(s.steps) - 1
	}
}

// Steps returns the current ordered step list.
func (s *Session) Steps() []Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	steps := make([]Step, len(s.steps))
	copy(steps, s.steps)
	return steps
}

// CurrentStep returns the step the operator is on.
func (s *Session) CurrentStep() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.steps[s.stepIndex]
}

// CanAdvance reports whether a forward transition exists.
func (s *Session) CanAdvance() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stepIndex < len(s.steps)-1
}

// Advance moves one step forward.
func (s *Session) Advance(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.stepIndex >= len(s.steps)-1 {
		return ErrAtLastStep
	}
	s.stepIndex++
	s.touch(now)
	return nil
}

// Retreat moves one step back.
func (s *Session) Retreat(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.stepIndex == 0 {
		return ErrAtFirstStep
	}
	s.stepIndex--
	s.touch(now)
	return nil
}

// AcknowledgeVariance records that the operator has reviewed the variance.
func (s *Session) AcknowledgeVariance(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.varianceAcked = true
	s.touch(now)
	return nil
}

// VarianceAcknowledged reports the variance acknowledgement gate.
func (s *Session) VarianceAcknowledged() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.varianceAcked
}

// ExpectedCollections derives the expected collection per island from the
// current pump readings and the resolver's prices. It is recomputed on every
// read; nothing downstream may approximate or hand-enter these figures.
func (s *Session) ExpectedCollections() []closing.IslandExpectedCollection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expectedCollectionsLocked()
}

func (s *Session) expectedCollectionsLocked() []closing.IslandExpectedCollection {
	result := make([]closing.IslandExpectedCollection, 0, len(s.assets.Islands))
	for _, island := range s.assets.Islands {
		var pumps []closing.PumpExpectedCollection
		for _, pump := range island.Pumps {
			reading, ok := s.pumpReadings[pump.ID]
			if !ok || !reading.HasValue() {
				continue
			}
			resolved := s.prices.ResolveUnitPrice(pump.ProductID)
			pumps = append(pumps, closing.ExpectedForPump(
				pump.ID,
				pump.OpeningElectric, reading.ElectricMeter,
				pump.OpeningManual, reading.ManualMeter,
				resolved.UnitPrice, resolved.PriceStatus,
			))
		}
		result = append(result, closing.NewIslandExpectedCollection(island.ID, pumps))
	}
	return result
}

// VarianceByIsland reconciles expected versus collected per island.
func (s *Session) VarianceByIsland() []closing.VarianceResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []closing.VarianceResult
	for _, expected := range s.expectedCollectionsLocked() {
		collected := s.collections[expected.IslandID].TotalCollected()
		result = append(result, closing.Reconcile(expected.IslandID, expected.TotalExpected, collected))
	}
	return result
}

// GrandVariance reconciles the aggregate across all islands; the gating logic
// for the next step depends on this figure.
func (s *Session) GrandVariance() closing.VarianceResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expected, collected float64
	for _, island := range s.expectedCollectionsLocked() {
		expected += island.TotalExpected
	}
	for _, collection := range s.collections {
		collected += collection.TotalCollected()
	}
	return closing.Reconcile("", expected, collected)
}

// TotalCollectedDebt sums the debt method across islands.
func (s *Session) TotalCollectedDebt() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalCollectedDebtLocked()
}

func (s *Session) totalCollectedDebtLocked() float64 {
	var total float64
	for _, collection := range s.collections {
		total += collection.DebtAmount()
	}
	return closing.Round2(total)
}

// RemainingDebt is the collected debt not yet assigned to a debtor.
func (s *Session) RemainingDebt() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return closing.RemainingDebt(s.totalCollectedDebtLocked(), s.allocations)
}

// DebtFullyAllocated reports the exact-zero allocation gate.
func (s *Session) DebtFullyAllocated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return closing.FullyAllocated(s.totalCollectedDebtLocked(), s.allocations)
}

// OpenAllocation drafts an allocation pre-filled with the remaining debt.
func (s *Session) OpenAllocation(debtorID, debtorName, contact string) closing.DebtAllocation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return closing.DebtAllocation{
		DebtorID:     debtorID,
		DebtorName:   debtorName,
		Contact:      contact,
		Amount:       closing.RemainingDebt(s.totalCollectedDebtLocked(), s.allocations),
		ShiftID:      s.shift.ID,
		StationID:    s.shift.StationID,
		RecordedByID: s.recorderID,
	}
}

// AddAllocation normalizes, validates and accepts an allocation into the
// in-memory list. Allocations can later be removed but not edited.
func (s *Session) AddAllocation(allocation closing.DebtAllocation, now time.Time) (closing.DebtAllocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return closing.DebtAllocation{}, ErrSessionClosed
	}

	allocation.Normalize()
	if err := allocation.Validate(); err != nil {
		return closing.DebtAllocation{}, err
	}
	if allocation.ID == "" {
		allocation.ID = uuid.NewString()
	}
	allocation.ShiftID = s.shift.ID
	allocation.StationID = s.shift.StationID
	allocation.RecordedByID = s.recorderID
	allocation.CreatedAt = now.UTC()

	s.allocations = append(s.allocations, allocation)
	s.touch(now)
	return allocation, nil
}

// RemoveAllocation drops an allocation prior to submission. Allocations that
// already reached the ledger cannot be removed here; corrections happen in the
// debtor ledger afterwards.
func (s *Session) RemoveAllocation(allocationID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.persisted[allocationID] {
		return ErrAllocationPersisted
	}

	for i, allocation := range s.allocations {
		if allocation.ID == allocationID {
			s.allocations = append(s.allocations[:i], s.allocations[i+1:]...)
			s.touch(now)
			return nil
		}
	}
	return closing.ErrAllocationNotFound
}

// Allocations returns the accepted allocations in entry order.
func (s *Session) Allocations() []closing.DebtAllocation {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]closing.DebtAllocation, len(s.allocations))
	copy(result, s.allocations)
	return result
}

// PendingAllocations returns the allocations not yet written to the ledger.
func (s *Session) PendingAllocations() []closing.DebtAllocation {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pending []closing.DebtAllocation
	for _, allocation := range s.allocations {
		if !s.persisted[allocation.ID] {
			pending = append(pending, allocation)
		}
	}
	return pending
}

// MarkPersisted records ledger acceptance of the given allocations. Once every
// accepted allocation is persisted the debt step completes; a retry after a
// partial batch resubmits only the remainder.
func (s *Session) MarkPersisted(allocationIDs []string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range allocationIDs {
		s.persisted[id] = true
	}
	allDone := len(s.allocations) > 0
	for _, allocation := range s.allocations {
		if !s.persisted[allocation.ID] {
			allDone = false
			break
		}
	}
	if allDone {
		s.debtComplete = true
		s.rebuildSteps()
	}
	s.touch(now)
}

// JumpTo positions the wizard on a step tag if it exists in the current
// sequence, for resuming an interrupted session.
func (s *Session) JumpTo(step Step) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	index := indexOfStep(s.steps, step)
	if index < 0 {
		return false
	}
	s.stepIndex = index
	return true
}

// MarkDebtComplete records that allocations were persisted. The debt step is
// removed from the sequence and never re-inserts for this session, even if
// collected debt figures change afterwards.
func (s *Session) MarkDebtComplete(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debtComplete = true
	s.rebuildSteps()
	s.touch(now)
}

// DebtComplete reports whether allocations were persisted.
func (s *Session) DebtComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.debtComplete
}

// PayloadPreview rebuilds the closing payload from accumulated state. It is
// built fresh on every call and never mutated in place.
func (s *Session) PayloadPreview(now time.Time) closing.ClosingPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return closing.BuildPayload(
		s.shift.ID,
		s.recorderID,
		now.UTC(),
		s.pumpReadings,
		s.tankReadings,
		s.collections,
		now,
	)
}

// ValidationErrors validates the current payload preview.
func (s *Session) ValidationErrors(now time.Time) closing.ValidationResult {
	return closing.ValidatePayload(s.PayloadPreview(now))
}

// CanCloseShift wires the three terminal gates: the operator is on the last
// step with a passing validator, the variance has been acknowledged, and the
// collected debt is either absent or fully allocated.
func (s *Session) CanCloseShift(now time.Time) bool {
	s.mu.Lock()
	atLast := s.stepIndex == len(s.steps)-1
	debtOK := s.totalCollectedDebtLocked() == 0 || s.debtComplete
	acked := s.varianceAcked
	s.mu.Unlock()

	if !atLast || !debtOK || !acked {
		return false
	}
	return s.ValidationErrors(now).IsValid
}
