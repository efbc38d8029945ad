package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	closing "github.com/johnkamauwamunga/energy-erp-sub003/internal/closing/domain"
	"github.com/johnkamauwamunga/energy-erp-sub003/internal/debtors"
	"github.com/johnkamauwamunga/energy-erp-sub003/internal/prefs"
	"github.com/johnkamauwamunga/energy-erp-sub003/internal/pricing"
	station "github.com/johnkamauwamunga/energy-erp-sub003/internal/station/domain"
)

type stubShifts struct {
	shift *closing.Shift
	err   error
}

func (s stubShifts) GetCurrentOpenShift(ctx context.Context, stationID string) (*closing.Shift, error) {
	_ = ctx
	_ = stationID
	return s.shift, s.err
}

type stubCloser struct {
	err      error
	payloads []closing.ClosingPayload
}

func (c *stubCloser) CloseShift(ctx context.Context, payload closing.ClosingPayload) (closing.Shift, error) {
	_ = ctx
	if c.err != nil {
		return closing.Shift{}, c.err
	}
	c.payloads = append(c.payloads, payload)
	return closing.Shift{
		ID:        payload.ShiftID,
		StationID: "station-1",
		Status:    closing.ShiftStatusClosed,
		ClosedAt:  payload.EndTime,
	}, nil
}

type stubAssets struct {
	assets station.AssetsStructure
}

func (a stubAssets) GetShiftAssetsStructure(ctx context.Context, shiftID string) (station.AssetsStructure, error) {
	_ = ctx
	_ = shiftID
	return a.assets, nil
}

func (a stubAssets) GetStationPumpsWithLastEndReadings(ctx context.Context, stationID string) ([]station.Pump, error) {
	_ = ctx
	_ = stationID
	return nil, nil
}

func (a stubAssets) GetStationTanksWithLastEndReadings(ctx context.Context, stationID string) ([]station.Tank, error) {
	_ = ctx
	_ = stationID
	return a.assets.Tanks, nil
}

type capturePublisher struct {
	events []ShiftClosed
}

func (p *capturePublisher) PublishShiftClosed(ctx context.Context, event ShiftClosed) error {
	_ = ctx
	p.events = append(p.events, event)
	return nil
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func testPrices(t *testing.T) *pricing.Resolver {
	t.Helper()
	resolver, err := pricing.NewResolver(pricing.NewFixedSource(
		pricing.Product{ID: "diesel", FuelCode: "AGO", UnitPrice: 150},
		pricing.Product{ID: "petrol", FuelCode: "PMS", UnitPrice: 180},
	), pricing.Filter{})
	require.NoError(t, err)
	return resolver
}

type serviceFixture struct {
	service   *Service
	ledger    *debtors.MemoryLedger
	publisher *capturePublisher
	prefs     *prefs.MemoryStore
	closer    *stubCloser
	clock     *fakeClock
}

func newServiceFixture(t *testing.T, opts ...ServiceOption) *serviceFixture {
	t.Helper()
	fixture := &serviceFixture{
		ledger:    debtors.NewMemoryLedger(debtors.Debtor{ID: "debtor-1", Name: "Acme Transport"}),
		publisher: &capturePublisher{},
		prefs:     prefs.NewMemoryStore(),
		closer:    &stubCloser{},
		clock:     &fakeClock{now: time.Unix(1700000000, 0).UTC()},
	}
	shift := &closing.Shift{ID: "shift-1", StationID: "station-1", Status: closing.ShiftStatusOpen}

	base := []ServiceOption{
		WithClock(fixture.clock),
		WithPublisher(fixture.publisher),
		WithPrefsStore(fixture.prefs),
	}
	service, err := NewService(
		stubShifts{shift: shift},
		fixture.closer,
		stubAssets{assets: testAssets()},
		fixture.ledger,
		fixture.ledger,
		testPrices(t),
		append(base, opts...)...,
	)
	require.NoError(t, err)
	fixture.service = service
	return fixture
}

func TestStartSessionResumesExisting(t *testing.T) {
	fixture := newServiceFixture(t)
	ctx := context.Background()

	first, err := fixture.service.StartSession(ctx, "station-1", "user-1")
	require.NoError(t, err)
	second, err := fixture.service.StartSession(ctx, "station-1", "user-1")
	require.NoError(t, err)
	require.Same(t, first, second)
}

func TestStartSessionNoOpenShift(t *testing.T) {
	service, err := NewService(
		stubShifts{}, &stubCloser{}, stubAssets{assets: testAssets()},
		debtors.NewMemoryLedger(), debtors.NewMemoryLedger(), testPrices(t),
	)
	require.NoError(t, err)

	_, err = service.StartSession(context.Background(), "station-1", "user-1")
	require.ErrorIs(t, err, ErrNoOpenShift)
}

func TestStartSessionRestoresSavedStep(t *testing.T) {
	fixture := newServiceFixture(t)
	ctx := context.Background()
	require.NoError(t, fixture.prefs.Save(ctx, "closing:shift-1", "step", string(StepCollections)))

	session, err := fixture.service.StartSession(ctx, "station-1", "user-1")
	require.NoError(t, err)
	require.Equal(t, StepCollections, session.CurrentStep())
}

func TestAdvanceSavesStep(t *testing.T) {
	fixture := newServiceFixture(t)
	ctx := context.Background()

	_, err := fixture.service.StartSession(ctx, "station-1", "user-1")
	require.NoError(t, err)

	step, err := fixture.service.Advance(ctx, "shift-1")
	require.NoError(t, err)
	require.Equal(t, StepPumpReadings, step)

	saved, ok, err := fixture.prefs.Load(ctx, "closing:shift-1", "step")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, string(StepPumpReadings), saved)
}

func TestSubmitAllocationsRequiresFullAllocation(t *testing.T) {
	fixture := newServiceFixture(t)
	ctx := context.Background()

	session, err := fixture.service.StartSession(ctx, "station-1", "user-1")
	require.NoError(t, err)
	now := fixture.clock.Now()
	require.NoError(t, session.UpdateCollection("island-1", closing.MethodDebt, "2000", now))

	_, err = fixture.service.SubmitAllocations(ctx, "shift-1")
	require.ErrorIs(t, err, closing.ErrDebtNotFullyAllocated)
}

func TestSubmitAllocationsPartialThenRetry(t *testing.T) {
	fixture := newServiceFixture(t)
	ctx := context.Background()

	session, err := fixture.service.StartSession(ctx, "station-1", "user-1")
	require.NoError(t, err)
	now := fixture.clock.Now()
	require.NoError(t, session.UpdateCollection("island-1", closing.MethodDebt, "2000", now))

	first, err := session.AddAllocation(closing.DebtAllocation{DebtorName: "Acme", Amount: 1200, VehiclePlate: "KBZ 123A"}, now)
	require.NoError(t, err)
	second, err := session.AddAllocation(closing.DebtAllocation{DebtorName: "Beta", Amount: 800, VehiclePlate: "KCA 77B"}, now)
	require.NoError(t, err)

	fixture.ledger.FailFor[second.ID] = errors.New("ledger unavailable")

	result, err := fixture.service.SubmitAllocations(ctx, "shift-1")
	require.NoError(t, err)
	require.Equal(t, BatchPartial, result.Outcome())
	require.Len(t, result.Successes, 1)
	require.Len(t, result.Failures, 1)
	require.False(t, session.DebtComplete())
	require.Len(t, fixture.ledger.Records(), 1)

	// Records persisted before the failure are not resubmitted on retry.
	delete(fixture.ledger.FailFor, second.ID)
	result, err = fixture.service.SubmitAllocations(ctx, "shift-1")
	require.NoError(t, err)
	require.Equal(t, BatchAllSucceeded, result.Outcome())
	require.True(t, session.DebtComplete())

	records := fixture.ledger.Records()
	require.Len(t, records, 2)
	require.Equal(t, first.ID, records[0].ID)
	require.Equal(t, second.ID, records[1].ID)
}

func TestSubmitClosingGateError(t *testing.T) {
	fixture := newServiceFixture(t)
	ctx := context.Background()

	_, err := fixture.service.StartSession(ctx, "station-1", "user-1")
	require.NoError(t, err)

	_, err = fixture.service.SubmitClosing(ctx, "shift-1")
	require.ErrorIs(t, err, ErrCannotClose)
}

func TestSubmitClosingHappyPath(t *testing.T) {
	fixture := newServiceFixture(t)
	ctx := context.Background()

	session, err := fixture.service.StartSession(ctx, "station-1", "user-1")
	require.NoError(t, err)
	now := fixture.clock.Now()

	require.NoError(t, fixture.service.UpdatePumpReading("shift-1", "pump-1", closing.FieldElectricMeter, "1050"))
	require.NoError(t, fixture.service.UpdatePumpReading("shift-1", "pump-1", closing.FieldManualMeter, "1040"))
	require.NoError(t, fixture.service.UpdateTankReading("shift-1", "tank-1", closing.FieldDipValue, "10"))
	require.NoError(t, fixture.service.UpdateCollection("shift-1", "island-1", closing.MethodCash, "7503"))
	require.NoError(t, session.AcknowledgeVariance(now))
	for session.CanAdvance() {
		require.NoError(t, session.Advance(now))
	}

	closed, err := fixture.service.SubmitClosing(ctx, "shift-1")
	require.NoError(t, err)
	require.Equal(t, closing.ShiftStatusClosed, closed.Status)

	require.Len(t, fixture.closer.payloads, 1)
	payload := fixture.closer.payloads[0]
	require.Len(t, payload.PumpReadings, 1)
	require.Equal(t, 7500.0, payload.PumpReadings[0].SalesValue)
	require.Len(t, payload.TankReadings, 1)
	require.Len(t, payload.Collections, 1)

	require.Len(t, fixture.publisher.events, 1)
	event := fixture.publisher.events[0]
	require.Equal(t, closing.VarianceExact, event.GrandVariance.Class)

	_, err = fixture.service.Session("shift-1")
	require.ErrorIs(t, err, ErrSessionNotFound)

	_, ok, err := fixture.prefs.Load(ctx, "closing:shift-1", "step")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSweepIdleSessions(t *testing.T) {
	fixture := newServiceFixture(t, WithSessionTTL(time.Hour))
	ctx := context.Background()

	_, err := fixture.service.StartSession(ctx, "station-1", "user-1")
	require.NoError(t, err)

	fixture.clock.now = fixture.clock.now.Add(30 * time.Minute)
	require.Equal(t, 0, fixture.service.SweepIdleSessions(ctx))

	fixture.clock.now = fixture.clock.now.Add(2 * time.Hour)
	require.Equal(t, 1, fixture.service.SweepIdleSessions(ctx))

	_, err = fixture.service.Session("shift-1")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestBatchOutcome(t *testing.T) {
	require.Equal(t, BatchAllSucceeded, BatchResult{Successes: []closing.DebtAllocation{{}}}.Outcome())
	require.Equal(t, BatchNoneSucceeded, BatchResult{Failures: []AllocationFailure{{}}}.Outcome())
	require.Equal(t, BatchPartial, BatchResult{
		Successes: []closing.DebtAllocation{{}},
		Failures:  []AllocationFailure{{}},
	}.Outcome())
}
