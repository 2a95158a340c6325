package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/hanifmaliki/subledger/internal/domain"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// LedgerService owns the subscription ledger state machine. All mutating
// operations run to completion under one mutex, so there is never an
// interleaving of two invocations against the same instance: validation,
// payment and state commit form a single unit, and any failure before the
// commit leaves no visible change and emits no event.
//
// Global parameters are held in memory as the authoritative copy and
// written through to the params repository on every change. Account expiry
// records and the event log live in their repositories.
type LedgerService struct {
	mu     sync.Mutex
	params domain.Params

	paramsRepo  domain.ParamsRepository
	accountRepo domain.AccountRepository
	eventRepo   domain.EventRepository
	transferer  domain.AssetTransferer

	// now is read exactly once per operation; injectable for tests
	now func() time.Time

	tracer          trace.Tracer
	purchaseCounter metric.Int64Counter
	paymentFailures metric.Int64Counter
}

// NewLedgerService loads the persisted parameter singleton and builds the
// service around it. Call BootstrapParams first on a fresh deployment.
func NewLedgerService(
	ctx context.Context,
	paramsRepo domain.ParamsRepository,
	accountRepo domain.AccountRepository,
	eventRepo domain.EventRepository,
	transferer domain.AssetTransferer,
) (*LedgerService, error) {
	params, err := paramsRepo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger params: %w", err)
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("persisted ledger params are invalid: %w", err)
	}

	meter := otel.Meter("subledger/ledger")
	purchases, err := meter.Int64Counter("ledger_purchases_total")
	if err != nil {
		return nil, fmt.Errorf("failed to create purchase counter: %w", err)
	}
	failures, err := meter.Int64Counter("ledger_payment_failures_total")
	if err != nil {
		return nil, fmt.Errorf("failed to create failure counter: %w", err)
	}

	return &LedgerService{
		params:          *params,
		paramsRepo:      paramsRepo,
		accountRepo:     accountRepo,
		eventRepo:       eventRepo,
		transferer:      transferer,
		now:             time.Now,
		tracer:          otel.Tracer("subledger/ledger"),
		purchaseCounter: purchases,
		paymentFailures: failures,
	}, nil
}

// BootstrapParams seeds the parameter singleton on first deployment and
// returns the stored copy afterwards. Seeding fails hard on invalid
// initial values, mirroring constructor-time validation.
func BootstrapParams(ctx context.Context, repo domain.ParamsRepository, initial domain.Params) (*domain.Params, error) {
	existing, err := repo.Load(ctx)
	if err == nil {
		return existing, nil
	}
	if err != domain.ErrNotFound {
		return nil, fmt.Errorf("failed to load ledger params: %w", err)
	}

	if err := initial.Validate(); err != nil {
		return nil, err
	}
	if err := repo.Save(ctx, &initial); err != nil {
		return nil, fmt.Errorf("failed to seed ledger params: %w", err)
	}
	log.Printf("[Ledger] Seeded params: price=%d, period=%ds, treasury=%s",
		initial.UnitPrice, initial.PeriodSeconds, initial.Treasury)
	return &initial, nil
}

// WithClock overrides the time source, test use only.
func (s *LedgerService) WithClock(now func() time.Time) *LedgerService {
	s.now = now
	return s
}

// Subscribe purchases periods for the caller's own account.
func (s *LedgerService) Subscribe(ctx context.Context, caller string, periods uint64) (*domain.Event, error) {
	return s.purchase(ctx, caller, caller, periods)
}

// Gift purchases periods paid by the caller for a different beneficiary.
func (s *LedgerService) Gift(ctx context.Context, payer, beneficiary string, periods uint64) (*domain.Event, error) {
	return s.purchase(ctx, payer, beneficiary, periods)
}

func (s *LedgerService) purchase(ctx context.Context, payer, beneficiary string, periods uint64) (*domain.Event, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.purchase",
		trace.WithAttributes(
			attribute.String("ledger.payer", payer),
			attribute.String("ledger.beneficiary", beneficiary),
			attribute.Int64("ledger.periods", int64(periods)),
		))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.params.Paused {
		return nil, domain.ErrPaused
	}
	if err := domain.ValidatePeriods(periods); err != nil {
		return nil, err
	}
	if !domain.IsValidIdentity(payer) || !domain.IsValidIdentity(beneficiary) {
		return nil, domain.ErrInvalidRecipient
	}

	cost, ok := domain.Cost(s.params.UnitPrice, periods)
	if !ok {
		return nil, domain.ErrPriceOverflow
	}

	at := s.now().UTC()
	now := uint64(at.Unix())

	current, err := s.accountRepo.GetExpiry(ctx, beneficiary)
	if err != nil {
		return nil, fmt.Errorf("failed to read account: %w", err)
	}
	newExpiry := domain.NextExpiry(now, current, s.params.PeriodSeconds, periods)

	// Payment first: the expiry commit only happens once the treasury has
	// actually been credited.
	if cost > 0 {
		if err := s.transferer.Transfer(ctx, payer, s.params.Treasury, cost); err != nil {
			log.Printf("[Ledger] Payment failed: payer=%s, amount=%d: %v", payer, cost, err)
			s.paymentFailures.Add(ctx, 1)
			return nil, fmt.Errorf("%w: %v", domain.ErrPaymentFailed, err)
		}
	}

	if err := s.accountRepo.SetExpiry(ctx, beneficiary, newExpiry); err != nil {
		return nil, fmt.Errorf("failed to commit expiry: %w", err)
	}

	event := &domain.Event{
		ID:          ulid.Make().String(),
		Kind:        domain.EventSubscribed,
		At:          at,
		Payer:       payer,
		Beneficiary: beneficiary,
		Periods:     periods,
		NewExpiry:   newExpiry,
		Amount:      cost,
	}
	s.appendEvent(ctx, event)

	s.purchaseCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("ledger.gift", payer != beneficiary),
	))
	log.Printf("[Ledger] Subscribed: payer=%s, beneficiary=%s, periods=%d, newExpiry=%d, amount=%d",
		payer, beneficiary, periods, newExpiry, cost)
	return event, nil
}

// Cancel is the administrator's hard revoke: the expiry is reset to zero
// regardless of its current value and the account must purchase again from
// scratch. Canceling an already-inactive account is allowed.
func (s *LedgerService) Cancel(ctx context.Context, caller, identity string) (*domain.Event, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.cancel",
		trace.WithAttributes(attribute.String("ledger.identity", identity)))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireAdmin(caller); err != nil {
		return nil, err
	}
	if !domain.IsValidIdentity(identity) {
		return nil, domain.ErrInvalidRecipient
	}

	oldExpiry, err := s.accountRepo.GetExpiry(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("failed to read account: %w", err)
	}
	if err := s.accountRepo.SetExpiry(ctx, identity, 0); err != nil {
		return nil, fmt.Errorf("failed to reset expiry: %w", err)
	}

	event := &domain.Event{
		ID:        ulid.Make().String(),
		Kind:      domain.EventCanceled,
		At:        s.now().UTC(),
		Identity:  identity,
		OldExpiry: oldExpiry,
	}
	s.appendEvent(ctx, event)

	log.Printf("[Ledger] Canceled: identity=%s, oldExpiry=%d", identity, oldExpiry)
	return event, nil
}

// SetPrice updates the per-period price. Zero is a legal free
// configuration; prices that could overflow a max-size purchase are not.
func (s *LedgerService) SetPrice(ctx context.Context, caller string, newPrice uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireAdmin(caller); err != nil {
		return err
	}
	if newPrice > domain.MaxUnitPrice {
		return domain.ErrPriceOverflow
	}

	oldPrice := s.params.UnitPrice
	update := s.params
	update.UnitPrice = newPrice
	if err := s.saveParams(ctx, update); err != nil {
		return err
	}

	s.appendEvent(ctx, &domain.Event{
		ID:       ulid.Make().String(),
		Kind:     domain.EventPriceUpdated,
		At:       s.now().UTC(),
		OldPrice: oldPrice,
		NewPrice: newPrice,
	})
	log.Printf("[Ledger] Price updated: %d -> %d", oldPrice, newPrice)
	return nil
}

// SetPeriod updates the period length. The zero-period invariant holds at
// every point in the ledger's life, not just at creation.
func (s *LedgerService) SetPeriod(ctx context.Context, caller string, newPeriodSeconds uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireAdmin(caller); err != nil {
		return err
	}
	if newPeriodSeconds == 0 {
		return domain.ErrInvalidPeriod
	}

	oldPeriod := s.params.PeriodSeconds
	update := s.params
	update.PeriodSeconds = newPeriodSeconds
	if err := s.saveParams(ctx, update); err != nil {
		return err
	}

	s.appendEvent(ctx, &domain.Event{
		ID:        ulid.Make().String(),
		Kind:      domain.EventPeriodUpdated,
		At:        s.now().UTC(),
		OldPeriod: oldPeriod,
		NewPeriod: newPeriodSeconds,
	})
	log.Printf("[Ledger] Period updated: %ds -> %ds", oldPeriod, newPeriodSeconds)
	return nil
}

// SetTreasury redirects future payments to a new destination.
func (s *LedgerService) SetTreasury(ctx context.Context, caller, newTreasury string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireAdmin(caller); err != nil {
		return err
	}
	if !domain.IsValidIdentity(newTreasury) {
		return domain.ErrInvalidRecipient
	}

	oldTreasury := s.params.Treasury
	update := s.params
	update.Treasury = newTreasury
	if err := s.saveParams(ctx, update); err != nil {
		return err
	}

	s.appendEvent(ctx, &domain.Event{
		ID:          ulid.Make().String(),
		Kind:        domain.EventTreasuryUpdated,
		At:          s.now().UTC(),
		OldTreasury: oldTreasury,
		NewTreasury: newTreasury,
	})
	log.Printf("[Ledger] Treasury updated: %s -> %s", oldTreasury, newTreasury)
	return nil
}

// Pause rejects new purchases until Unpause. Reads, cancellation and
// administrative mutation stay available while paused. Pausing an
// already-paused ledger fails loudly instead of silently succeeding.
func (s *LedgerService) Pause(ctx context.Context, caller string) error {
	return s.setPaused(ctx, caller, true)
}

// Unpause re-enables purchases.
func (s *LedgerService) Unpause(ctx context.Context, caller string) error {
	return s.setPaused(ctx, caller, false)
}

func (s *LedgerService) setPaused(ctx context.Context, caller string, paused bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireAdmin(caller); err != nil {
		return err
	}
	if s.params.Paused == paused {
		return domain.ErrInvalidStateToggle
	}

	update := s.params
	update.Paused = paused
	if err := s.saveParams(ctx, update); err != nil {
		return err
	}
	log.Printf("[Ledger] Paused=%v", paused)
	return nil
}

// TransferAdmin hands the administrator identity to a new holder in a
// single step. The previous administrator loses all privileges
// immediately.
func (s *LedgerService) TransferAdmin(ctx context.Context, caller, newAdmin string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireAdmin(caller); err != nil {
		return err
	}
	if !domain.IsValidIdentity(newAdmin) {
		return domain.ErrInvalidRecipient
	}

	oldAdmin := s.params.Administrator
	update := s.params
	update.Administrator = newAdmin
	if err := s.saveParams(ctx, update); err != nil {
		return err
	}

	s.appendEvent(ctx, &domain.Event{
		ID:       ulid.Make().String(),
		Kind:     domain.EventAdminTransferred,
		At:       s.now().UTC(),
		OldAdmin: oldAdmin,
		NewAdmin: newAdmin,
	})
	log.Printf("[Ledger] Administrator transferred: %s -> %s", oldAdmin, newAdmin)
	return nil
}

// IsActive reports whether the identity's expiry lies strictly in the future.
func (s *LedgerService) IsActive(ctx context.Context, identity string) (bool, error) {
	expiry, err := s.accountRepo.GetExpiry(ctx, identity)
	if err != nil {
		return false, fmt.Errorf("failed to read account: %w", err)
	}
	return expiry > uint64(s.now().UTC().Unix()), nil
}

// TimeLeft returns remaining access in seconds, never negative.
func (s *LedgerService) TimeLeft(ctx context.Context, identity string) (uint64, error) {
	expiry, err := s.accountRepo.GetExpiry(ctx, identity)
	if err != nil {
		return 0, fmt.Errorf("failed to read account: %w", err)
	}
	now := uint64(s.now().UTC().Unix())
	if expiry <= now {
		return 0, nil
	}
	return expiry - now, nil
}

// ExpiresAt returns the raw stored expiry, 0 if never purchased.
func (s *LedgerService) ExpiresAt(ctx context.Context, identity string) (uint64, error) {
	return s.accountRepo.GetExpiry(ctx, identity)
}

// Params returns a snapshot of the current global parameters.
func (s *LedgerService) Params() domain.Params {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

func (s *LedgerService) requireAdmin(caller string) error {
	if !domain.IsValidIdentity(s.params.Administrator) || caller != s.params.Administrator {
		return domain.ErrUnauthorized
	}
	return nil
}

// saveParams writes through to the repository before replacing the
// in-memory copy, so a storage failure leaves the old parameters visible.
func (s *LedgerService) saveParams(ctx context.Context, update domain.Params) error {
	update.UpdatedAt = s.now().UTC()
	if err := s.paramsRepo.Save(ctx, &update); err != nil {
		return fmt.Errorf("failed to persist params: %w", err)
	}
	s.params = update
	return nil
}

// appendEvent records the event log entry. The state commit has already
// happened at this point; a log write failure must not roll the operation
// back, so it is reported but not returned.
func (s *LedgerService) appendEvent(ctx context.Context, event *domain.Event) {
	if err := s.eventRepo.Append(ctx, event); err != nil {
		log.Printf("[Ledger] Failed to append %s event: %v", event.Kind, err)
	}
}
