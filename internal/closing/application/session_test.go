package application

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	closing "github.com/johnkamauwamunga/energy-erp-sub003/internal/closing/domain"
	"github.com/johnkamauwamunga/energy-erp-sub003/internal/pricing"
	station "github.com/johnkamauwamunga/energy-erp-sub003/internal/station/domain"
)

type stubResolver struct {
	prices map[string]pricing.Resolved
}

func (r stubResolver) ResolveUnitPrice(productID string) pricing.Resolved {
	if resolved, ok := r.prices[productID]; ok {
		return resolved
	}
	return pricing.Resolved{UnitPrice: pricing.SentinelUnitPrice, PriceStatus: pricing.PriceStatusUnknown}
}

func testAssets() station.AssetsStructure {
	assets := station.AssetsStructure{
		ShiftID: "shift-1",
		Islands: []station.Island{
			{
				ID:   "island-1",
				Name: "Island A",
				Pumps: []station.Pump{
					{ID: "pump-1", IslandID: "island-1", ProductID: "diesel", OpeningElectric: 1000, OpeningManual: 990},
					{ID: "pump-2", IslandID: "island-1", ProductID: "petrol", OpeningElectric: 500, OpeningManual: 500},
				},
			},
			{
				ID:   "island-2",
				Name: "Island B",
				Pumps: []station.Pump{
					{ID: "pump-3", IslandID: "island-2", ProductID: "diesel", OpeningElectric: 2000, OpeningManual: 2000},
				},
			},
		},
		Tanks: []station.Tank{
			{ID: "tank-1", ProductID: "diesel", CapacityLiters: 200000, OpeningDip: 12},
		},
	}
	assets.Summarize()
	return assets
}

func testResolver() stubResolver {
	return stubResolver{prices: map[string]pricing.Resolved{
		"diesel": {UnitPrice: 150, PriceStatus: pricing.PriceStatusOK, FuelCode: "AGO"},
		"petrol": {UnitPrice: 180, PriceStatus: pricing.PriceStatusOK, FuelCode: "PMS"},
	}}
}

func newTestSession(t *testing.T) *Session {
	t.Helper()
	shift := closing.Shift{ID: "shift-1", StationID: "station-1", Status: closing.ShiftStatusOpen}
	session, err := NewSession(shift, "user-1", testAssets(), testResolver(), time.Unix(1700000000, 0).UTC())
	require.NoError(t, err)
	return session
}

func TestNewSessionRequiresOpenShift(t *testing.T) {
	shift := closing.Shift{ID: "shift-1", Status: closing.ShiftStatusClosed}
	_, err := NewSession(shift, "user-1", testAssets(), testResolver(), time.Now())
	require.ErrorIs(t, err, closing.ErrShiftNotOpen)
}

func TestStepSequenceWithoutDebt(t *testing.T) {
	session := newTestSession(t)
	require.Equal(t, []Step{
		StepPreClosingValidation,
		StepPumpReadings,
		StepTankReadings,
		StepCollections,
		StepSummary,
	}, session.Steps())
	require.Equal(t, StepPreClosingValidation, session.CurrentStep())
}

func TestDebtStepAppearsAndDisappearsWithCollectedDebt(t *testing.T) {
	session := newTestSession(t)
	now := time.Now()

	require.NoError(t, session.UpdateCollection("island-1", closing.MethodDebt, "2000", now))
	require.Contains(t, session.Steps(), StepDebtAllocation)

	require.NoError(t, session.UpdateCollection("island-1", closing.MethodDebt, "0", now))
	require.NotContains(t, session.Steps(), StepDebtAllocation)
}

func TestDebtStepNeverReinsertsAfterCompletion(t *testing.T) {
	session := newTestSession(t)
	now := time.Now()

	require.NoError(t, session.UpdateCollection("island-1", closing.MethodDebt, "2000", now))
	session.MarkDebtComplete(now)
	require.NotContains(t, session.Steps(), StepDebtAllocation)

	// Raising the collected debt after completion must not resurface the step.
	require.NoError(t, session.UpdateCollection("island-2", closing.MethodDebt, "500", now))
	require.NotContains(t, session.Steps(), StepDebtAllocation)
}

func TestStepRebuildPreservesPosition(t *testing.T) {
	session := newTestSession(t)
	now := time.Now()

	require.NoError(t, session.Advance(now))
	require.NoError(t, session.Advance(now))
	require.NoError(t, session.Advance(now))
	require.Equal(t, StepCollections, session.CurrentStep())

	require.NoError(t, session.UpdateCollection("island-1", closing.MethodDebt, "100", now))
	require.Equal(t, StepCollections, session.CurrentStep())
}

func TestAdvanceRetreatBounds(t *testing.T) {
	session := newTestSession(t)
	now := time.Now()

	require.ErrorIs(t, session.Retreat(now), ErrAtFirstStep)
	for session.CanAdvance() {
		require.NoError(t, session.Advance(now))
	}
	require.Equal(t, StepSummary, session.CurrentStep())
	require.ErrorIs(t, session.Advance(now), ErrAtLastStep)
}

func TestPumpReadingDerivesLitersAndSales(t *testing.T) {
	session := newTestSession(t)
	now := time.Now()

	require.NoError(t, session.UpdatePumpReading("pump-1", closing.FieldElectricMeter, "1050", now))
	require.NoError(t, session.UpdatePumpReading("pump-1", closing.FieldManualMeter, "1040", now))

	payload := session.PayloadPreview(now)
	require.Len(t, payload.PumpReadings, 1)
	reading := payload.PumpReadings[0]
	require.Equal(t, 50.0, reading.LitersDispensed)
	require.Equal(t, 7500.0, reading.SalesValue)
	require.Equal(t, 150.0, reading.UnitPrice)
	require.Equal(t, pricing.PriceStatusOK, reading.PriceStatus)
}

func TestPumpReadingMalformedInputCoercesToZero(t *testing.T) {
	session := newTestSession(t)
	now := time.Now()

	require.NoError(t, session.UpdatePumpReading("pump-1", closing.FieldElectricMeter, "abc", now))
	payload := session.PayloadPreview(now)
	require.Empty(t, payload.PumpReadings)
}

func TestPumpReadingUnknownPump(t *testing.T) {
	session := newTestSession(t)
	err := session.UpdatePumpReading("pump-9", closing.FieldElectricMeter, "10", time.Now())
	require.ErrorIs(t, err, closing.ErrUnknownPump)
}

func TestTankDipVolumeSync(t *testing.T) {
	session := newTestSession(t)
	now := time.Now()

	require.NoError(t, session.UpdateTankReading("tank-1", closing.FieldDipValue, "10", now))
	payload := session.PayloadPreview(now)
	require.Len(t, payload.TankReadings, 1)
	require.Equal(t, 100000.0, payload.TankReadings[0].Volume)

	require.NoError(t, session.UpdateTankReading("tank-1", closing.FieldVolume, "50000", now))
	payload = session.PayloadPreview(now)
	require.Equal(t, 5.0, payload.TankReadings[0].DipValue)
}

func TestExpectedCollectionsAndVariance(t *testing.T) {
	session := newTestSession(t)
	now := time.Now()

	require.NoError(t, session.UpdatePumpReading("pump-1", closing.FieldElectricMeter, "1050", now))
	require.NoError(t, session.UpdatePumpReading("pump-1", closing.FieldManualMeter, "1040", now))

	expected := session.ExpectedCollections()
	require.Len(t, expected, 2)
	require.Equal(t, 7500.0, expected[0].TotalExpected)
	require.Equal(t, 0.0, expected[1].TotalExpected)

	require.NoError(t, session.UpdateCollection("island-1", closing.MethodCash, "7503", now))
	variance := session.VarianceByIsland()
	require.Equal(t, closing.VarianceExact, variance[0].Class)
	require.Equal(t, 3.0, variance[0].Variance)

	require.NoError(t, session.UpdateCollection("island-1", closing.MethodCash, "7520", now))
	variance = session.VarianceByIsland()
	require.Equal(t, closing.VarianceOver, variance[0].Class)

	grand := session.GrandVariance()
	require.Equal(t, 7500.0, grand.TotalExpected)
	require.Equal(t, 7520.0, grand.TotalCollected)
}

func TestAllocationLifecycle(t *testing.T) {
	session := newTestSession(t)
	now := time.Now()

	require.NoError(t, session.UpdateCollection("island-1", closing.MethodDebt, "2000", now))
	require.Equal(t, 2000.0, session.TotalCollectedDebt())

	draft := session.OpenAllocation("debtor-1", "Acme Transport", "0700000000")
	require.Equal(t, 2000.0, draft.Amount)

	draft.VehiclePlate = "kbz 123a"
	draft.Amount = 1200
	accepted, err := session.AddAllocation(draft, now)
	require.NoError(t, err)
	require.NotEmpty(t, accepted.ID)
	require.Equal(t, "KBZ 123A", accepted.VehiclePlate)
	require.Equal(t, 800.0, session.RemainingDebt())
	require.False(t, session.DebtFullyAllocated())

	second := session.OpenAllocation("debtor-2", "Beta Logistics", "")
	require.Equal(t, 800.0, second.Amount)
	second.VehiclePlate = "KCA 77B"
	_, err = session.AddAllocation(second, now)
	require.NoError(t, err)
	require.True(t, session.DebtFullyAllocated())

	require.NoError(t, session.RemoveAllocation(accepted.ID, now))
	require.Equal(t, 1200.0, session.RemainingDebt())
	require.ErrorIs(t, session.RemoveAllocation("missing", now), closing.ErrAllocationNotFound)
}

func TestAllocationValidation(t *testing.T) {
	session := newTestSession(t)
	now := time.Now()

	_, err := session.AddAllocation(closing.DebtAllocation{Amount: 100, VehiclePlate: "KBZ 123A"}, now)
	require.ErrorIs(t, err, closing.ErrEmptyDebtor)

	_, err = session.AddAllocation(closing.DebtAllocation{DebtorName: "Acme", Amount: 0, VehiclePlate: "KBZ 123A"}, now)
	require.ErrorIs(t, err, closing.ErrNonPositiveAmount)

	_, err = session.AddAllocation(closing.DebtAllocation{DebtorName: "Acme", Amount: 100, VehiclePlate: "!!"}, now)
	require.ErrorIs(t, err, closing.ErrInvalidVehiclePlate)
}

func TestMarkPersistedCompletesDebtOnlyWhenAllPersisted(t *testing.T) {
	session := newTestSession(t)
	now := time.Now()

	require.NoError(t, session.UpdateCollection("island-1", closing.MethodDebt, "2000", now))
	first, err := session.AddAllocation(closing.DebtAllocation{DebtorName: "Acme", Amount: 1200, VehiclePlate: "KBZ 123A"}, now)
	require.NoError(t, err)
	second, err := session.AddAllocation(closing.DebtAllocation{DebtorName: "Beta", Amount: 800, VehiclePlate: "KCA 77B"}, now)
	require.NoError(t, err)

	session.MarkPersisted([]string{first.ID}, now)
	require.False(t, session.DebtComplete())
	require.ErrorIs(t, session.RemoveAllocation(first.ID, now), ErrAllocationPersisted)

	pending := session.PendingAllocations()
	require.Len(t, pending, 1)
	require.Equal(t, second.ID, pending[0].ID)

	session.MarkPersisted([]string{second.ID}, now)
	require.True(t, session.DebtComplete())
	require.NotContains(t, session.Steps(), StepDebtAllocation)
}

func TestCanCloseShiftGates(t *testing.T) {
	session := newTestSession(t)
	now := time.Now()

	require.NoError(t, session.UpdatePumpReading("pump-1", closing.FieldElectricMeter, "1050", now))
	require.False(t, session.CanCloseShift(now), "not at final step")

	for session.CanAdvance() {
		require.NoError(t, session.Advance(now))
	}
	require.False(t, session.CanCloseShift(now), "variance not acknowledged")

	require.NoError(t, session.AcknowledgeVariance(now))
	require.True(t, session.CanCloseShift(now))
}

func TestCanCloseShiftBlockedByUnallocatedDebt(t *testing.T) {
	session := newTestSession(t)
	now := time.Now()

	require.NoError(t, session.UpdatePumpReading("pump-1", closing.FieldElectricMeter, "1050", now))
	require.NoError(t, session.UpdateCollection("island-1", closing.MethodDebt, "2000", now))
	require.NoError(t, session.AcknowledgeVariance(now))
	for session.CanAdvance() {
		require.NoError(t, session.Advance(now))
	}
	require.False(t, session.CanCloseShift(now))

	session.MarkDebtComplete(now)
	require.True(t, session.CanCloseShift(now))
}

func TestTeardownGuardsLateResults(t *testing.T) {
	session := newTestSession(t)

	epoch := session.Epoch()
	session.Teardown()

	ran := session.IfActive(epoch, func() {})
	require.False(t, ran)
	require.True(t, session.Closed())
	require.ErrorIs(t, session.UpdatePumpReading("pump-1", closing.FieldElectricMeter, "1", time.Now()), ErrSessionClosed)
}

func TestPayloadFiltersZeroReadings(t *testing.T) {
	session := newTestSession(t)
	now := time.Now()

	require.NoError(t, session.UpdatePumpReading("pump-1", closing.FieldElectricMeter, "1050", now))
	require.NoError(t, session.UpdatePumpReading("pump-2", closing.FieldElectricMeter, "0", now))
	require.NoError(t, session.UpdateTankReading("tank-1", closing.FieldTemperature, "25", now))

	payload := session.PayloadPreview(now)
	require.Len(t, payload.PumpReadings, 1)
	require.Equal(t, "pump-1", payload.PumpReadings[0].PumpID)
	require.Empty(t, payload.TankReadings, "temperature alone is not a meaningful entry")
	require.Equal(t, 1, payload.Meta.PumpReadingCount)
}
