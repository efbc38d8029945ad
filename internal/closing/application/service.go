package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	closing "github.com/johnkamauwamunga/energy-erp-sub003/internal/closing/domain"
	"github.com/johnkamauwamunga/energy-erp-sub003/internal/debtors"
	"github.com/johnkamauwamunga/energy-erp-sub003/internal/observability/metrics"
	"github.com/johnkamauwamunga/energy-erp-sub003/internal/prefs"
	station "github.com/johnkamauwamunga/energy-erp-sub003/internal/station/domain"
)

var (
	// ErrNoOpenShift is returned when a station has no shift to close.
	ErrNoOpenShift = errors.New("closing service: no open shift")
	// ErrSessionNotFound is returned for an unknown session shift id.
	ErrSessionNotFound = errors.New("closing service: session not found")
	// ErrCannotClose is returned when a terminal gate is still open.
	ErrCannotClose = errors.New("closing service: close gates not satisfied")
)

const (
	defaultSessionTTL = 4 * time.Hour

	prefsScopePrefix = "closing:"
	prefsKeyStep     = "step"
)

// ShiftReader resolves the shift a closing session operates on.
type ShiftReader interface {
	GetCurrentOpenShift(ctx context.Context, stationID string) (*closing.Shift, error)
}

// ShiftCloser atomically applies an accepted closing payload.
type ShiftCloser interface {
	CloseShift(ctx context.Context, payload closing.ClosingPayload) (closing.Shift, error)
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// PriceSource feeds sessions with canonical unit prices.
type PriceSource interface {
	UnitPriceResolver
	Refresh(ctx context.Context, force bool) error
}

// Service orchestrates shift-closing sessions. One session exists per shift;
// starting a closing for a shift that already has one resumes it.
type Service struct {
	shifts    ShiftReader
	closer    ShiftCloser
	assets    station.AssetsReader
	directory debtors.Directory
	ledger    debtors.Ledger
	prices    PriceSource

	publisher ClosingPublisher
	prefs     prefs.Store
	clock     Clock
	logger    *log.Logger

	sessionTTL time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session
}

// ServiceOption configures the service.
type ServiceOption func(*Service)

// WithPublisher attaches a shift closed publisher.
func WithPublisher(publisher ClosingPublisher) ServiceOption {
	return func(s *Service) { s.publisher = publisher }
}

// WithPrefsStore attaches a store for resuming interrupted sessions.
func WithPrefsStore(store prefs.Store) ServiceOption {
	return func(s *Service) { s.prefs = store }
}

// WithClock overrides the clock.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger overrides the logger.
func WithLogger(logger *log.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSessionTTL overrides the idle session lifetime.
func WithSessionTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

// NewService constructs the closing service.
func NewService(
	shifts ShiftReader,
	closer ShiftCloser,
	assets station.AssetsReader,
	directory debtors.Directory,
	ledger debtors.Ledger,
	prices PriceSource,
	opts ...ServiceOption,
) (*Service, error) {
	if shifts == nil {
		return nil, errors.New("closing service: nil shift reader")
	}
	if closer == nil {
		return nil, errors.New("closing service: nil shift closer")
	}
	if assets == nil {
		return nil, errors.New("closing service: nil assets reader")
	}
	if directory == nil {
		return nil, errors.New("closing service: nil debtor directory")
	}
	if ledger == nil {
		return nil, errors.New("closing service: nil debt ledger")
	}
	if prices == nil {
		return nil, errors.New("closing service: nil price source")
	}

	service := &Service{
		shifts:     shifts,
		closer:     closer,
		assets:     assets,
		directory:  directory,
		ledger:     ledger,
		prices:     prices,
		clock:      SystemClock{},
		logger:     log.Default(),
		sessionTTL: defaultSessionTTL,
		sessions:   make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// StartSession begins, or resumes, the closing workflow for a station's open
// shift. Pre-closing validation happens here: the shift must exist and be
// OPEN, the topology must resolve, and prices refresh before any reading is
// captured.
func (s *Service) StartSession(ctx context.Context, stationID, recorderID string) (*Session, error) {
	shift, err := s.shifts.GetCurrentOpenShift(ctx, stationID)
	if err != nil {
		return nil, fmt.Errorf("closing service: resolve open shift: %w", err)
	}
	if shift == nil {
		return nil, ErrNoOpenShift
	}

	s.mu.RLock()
	existing := s.sessions[shift.ID]
	s.mu.RUnlock()
	if existing != nil && !existing.Closed() {
		return existing, nil
	}

	if err := s.prices.Refresh(ctx, false); err != nil {
		metrics.IncPriceRefresh(metrics.ResultError)
		return nil, fmt.Errorf("closing service: refresh prices: %w", err)
	}
	metrics.IncPriceRefresh(metrics.ResultSuccess)

	assets, err := s.assets.GetShiftAssetsStructure(ctx, shift.ID)
	if err != nil {
		return nil, fmt.Errorf("closing service: resolve shift assets: %w", err)
	}

	session, err := NewSession(*shift, recorderID, assets, s.prices, s.clock.Now())
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.sessions[shift.ID] = session
	active := len(s.sessions)
	s.mu.Unlock()

	s.restoreStep(ctx, session)

	metrics.IncSessionStarted()
	metrics.SetActiveSessions(active)
	s.logger.Printf("closing session %s started for shift %s station %s", session.ID(), shift.ID, stationID)
	return session, nil
}

// restoreStep repositions a fresh session on the step saved by an interrupted
// run. A stale tag that no longer exists in the sequence is ignored.
func (s *Service) restoreStep(ctx context.Context, session *Session) {
	if s.prefs == nil {
		return
	}
	value, ok, err := s.prefs.Load(ctx, prefsScopePrefix+session.Shift().ID, prefsKeyStep)
	if err != nil {
		s.logger.Printf("closing session %s: load saved step: %v", session.ID(), err)
		return
	}
	if ok {
		session.JumpTo(Step(value))
	}
}

func (s *Service) saveStep(ctx context.Context, session *Session) {
	if s.prefs == nil {
		return
	}
	shiftID := session.Shift().ID
	if err := s.prefs.Save(ctx, prefsScopePrefix+shiftID, prefsKeyStep, string(session.CurrentStep())); err != nil {
		s.logger.Printf("closing session %s: save step: %v", session.ID(), err)
	}
}

// Session returns the active session for a shift.
func (s *Service) Session(shiftID string) (*Session, error) {
	s.mu.RLock()
	session := s.sessions[shiftID]
	s.mu.RUnlock()
	if session == nil || session.Closed() {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Advance moves a session one step forward and saves the position.
func (s *Service) Advance(ctx context.Context, shiftID string) (Step, error) {
	session, err := s.Session(shiftID)
	if err != nil {
		return "", err
	}
	if err := session.Advance(s.clock.Now()); err != nil {
		return "", err
	}
	s.saveStep(ctx, session)
	return session.CurrentStep(), nil
}

// Retreat moves a session one step back and saves the position.
func (s *Service) Retreat(ctx context.Context, shiftID string) (Step, error) {
	session, err := s.Session(shiftID)
	if err != nil {
		return "", err
	}
	if err := session.Retreat(s.clock.Now()); err != nil {
		return "", err
	}
	s.saveStep(ctx, session)
	return session.CurrentStep(), nil
}

// UpdatePumpReading records one pump field on a session.
func (s *Service) UpdatePumpReading(shiftID, pumpID, field, value string) error {
	session, err := s.Session(shiftID)
	if err != nil {
		return err
	}
	if err := session.UpdatePumpReading(pumpID, field, value, s.clock.Now()); err != nil {
		return err
	}
	metrics.IncReadingUpdate("pump")
	return nil
}

// UpdateTankReading records one tank field on a session.
func (s *Service) UpdateTankReading(shiftID, tankID, field, value string) error {
	session, err := s.Session(shiftID)
	if err != nil {
		return err
	}
	if err := session.UpdateTankReading(tankID, field, value, s.clock.Now()); err != nil {
		return err
	}
	metrics.IncReadingUpdate("tank")
	return nil
}

// UpdateCollection records one collected amount on a session.
func (s *Service) UpdateCollection(shiftID, islandID string, method closing.PaymentMethod, value string) error {
	session, err := s.Session(shiftID)
	if err != nil {
		return err
	}
	if err := session.UpdateCollection(islandID, method, value, s.clock.Now()); err != nil {
		return err
	}
	metrics.IncReadingUpdate("collection")
	return nil
}

// Debtors lists registered debtors for allocation entry.
func (s *Service) Debtors(ctx context.Context) ([]debtors.Debtor, error) {
	return s.directory.GetDebtors(ctx)
}

// SubmitAllocations persists a session's pending debt allocations. The batch
// is sequential and not atomic: earlier successes survive a later failure,
// and a retry resubmits only what failed. The remaining debt must be exactly
// zero before the batch is accepted.
func (s *Service) SubmitAllocations(ctx context.Context, shiftID string) (BatchResult, error) {
	session, err := s.Session(shiftID)
	if err != nil {
		return BatchResult{}, err
	}
	if !session.DebtFullyAllocated() {
		return BatchResult{}, closing.ErrDebtNotFullyAllocated
	}

	pending := session.PendingAllocations()
	if len(pending) == 0 {
		session.MarkPersisted(nil, s.clock.Now())
		return BatchResult{}, nil
	}

	epoch := session.Epoch()
	result := submitAllocations(ctx, s.ledger, pending)

	ids := make([]string, 0, len(result.Successes))
	for _, allocation := range result.Successes {
		ids = append(ids, allocation.ID)
	}
	if !session.IfActive(epoch, nil) {
		s.logger.Printf("closing session %s: allocation batch finished after teardown, discarded", session.ID())
		return result, ErrSessionClosed
	}
	session.MarkPersisted(ids, s.clock.Now())

	metrics.IncDebtBatch(string(result.Outcome()))
	metrics.AddDebtRecords(metrics.ResultSuccess, len(result.Successes))
	metrics.AddDebtRecords(metrics.ResultError, len(result.Failures))
	for _, failure := range result.Failures {
		s.logger.Printf("closing session %s: allocation %s for %s rejected: %v",
			session.ID(), failure.Allocation.ID, failure.Allocation.DebtorName, failure.Err)
	}
	return result, nil
}

// SubmitClosing builds the final payload, closes the shift and tears the
// session down. All three gates must hold; the error identifies the first
// violated one via errors wrapped under ErrCannotClose.
func (s *Service) SubmitClosing(ctx context.Context, shiftID string) (closing.Shift, error) {
	session, err := s.Session(shiftID)
	if err != nil {
		return closing.Shift{}, err
	}

	now := s.clock.Now()
	if !session.CanCloseShift(now) {
		return closing.Shift{}, s.closeGateError(session, now)
	}

	payload := session.PayloadPreview(now)
	started := time.Now()
	closed, err := s.closer.CloseShift(ctx, payload)
	if err != nil {
		metrics.ObserveClosingSubmit(metrics.ResultError, time.Since(started))
		return closing.Shift{}, fmt.Errorf("closing service: close shift: %w", err)
	}
	metrics.ObserveClosingSubmit(metrics.ResultSuccess, time.Since(started))

	event := ShiftClosed{
		ShiftID:       closed.ID,
		StationID:     closed.StationID,
		RecordedByID:  payload.RecordedByID,
		ClosedAt:      closed.ClosedAt,
		GrandVariance: session.GrandVariance(),
		Islands:       session.VarianceByIsland(),
		Payload:       payload,
	}

	s.teardown(ctx, session)

	if s.publisher != nil {
		if err := s.publisher.PublishShiftClosed(ctx, event); err != nil {
			s.logger.Printf("shift %s closed but publish failed: %v", closed.ID, err)
		}
	}
	s.logger.Printf("shift %s closed, variance %s %.2f", closed.ID, event.GrandVariance.Class, event.GrandVariance.Variance)
	return closed, nil
}

func (s *Service) closeGateError(session *Session, now time.Time) error {
	if validation := session.ValidationErrors(now); !validation.IsValid {
		first := validation.Errors[0]
		return fmt.Errorf("%w: %s: %s", ErrCannotClose, first.Field, first.Message)
	}
	if session.TotalCollectedDebt() > 0 && !session.DebtComplete() {
		return fmt.Errorf("%w: %v", ErrCannotClose, closing.ErrDebtNotFullyAllocated)
	}
	if !session.VarianceAcknowledged() {
		return fmt.Errorf("%w: variance not acknowledged", ErrCannotClose)
	}
	return fmt.Errorf("%w: not at final step", ErrCannotClose)
}

// CancelSession abandons a session. Persisted debt records survive; everything
// else is discarded.
func (s *Service) CancelSession(ctx context.Context, shiftID string) error {
	session, err := s.Session(shiftID)
	if err != nil {
		return err
	}
	s.teardown(ctx, session)
	s.logger.Printf("closing session %s cancelled for shift %s", session.ID(), shiftID)
	return nil
}

func (s *Service) teardown(ctx context.Context, session *Session) {
	shiftID := session.Shift().ID
	session.Teardown()

	s.mu.Lock()
	delete(s.sessions, shiftID)
	active := len(s.sessions)
	s.mu.Unlock()
	metrics.SetActiveSessions(active)

	if s.prefs != nil {
		if err := s.prefs.DeleteScope(ctx, prefsScopePrefix+shiftID); err != nil {
			s.logger.Printf("closing session %s: clear saved state: %v", session.ID(), err)
		}
	}
}

// SweepIdleSessions discards sessions whose last activity predates the TTL.
// It returns the number discarded.
func (s *Service) SweepIdleSessions(ctx context.Context) int {
	cutoff := s.clock.Now().Add(-s.sessionTTL)

	s.mu.RLock()
	var idle []*Session
	for _, session := range s.sessions {
		if session.LastActivity().Before(cutoff) {
			idle = append(idle, session)
		}
	}
	s.mu.RUnlock()

	for _, session := range idle {
		s.logger.Printf("closing session %s expired for shift %s", session.ID(), session.Shift().ID)
		s.teardown(ctx, session)
	}
	metrics.AddExpiredSessions(len(idle))
	return len(idle)
}

// RunSessionSweeper sweeps idle sessions on an interval until ctx ends.
func (s *Service) RunSessionSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepIdleSessions(ctx)
		}
	}
}
