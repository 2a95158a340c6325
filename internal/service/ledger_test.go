package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hanifmaliki/subledger/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

const (
	testPrice  = uint64(1000)
	testPeriod = uint64(2_592_000) // 30 days
)

// In-memory repositories backing the service in tests. They mirror the
// mongo implementations' contracts: GetExpiry returns 0 for unknown
// identities, Save replaces the singleton.

type fakeParamsRepo struct {
	mu     sync.Mutex
	params *domain.Params
}

func (r *fakeParamsRepo) Load(ctx context.Context) (*domain.Params, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.params == nil {
		return nil, domain.ErrNotFound
	}
	p := *r.params
	return &p, nil
}

func (r *fakeParamsRepo) Save(ctx context.Context, params *domain.Params) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := *params
	r.params = &p
	return nil
}

type fakeAccountRepo struct {
	mu       sync.Mutex
	expiries map[string]uint64
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{expiries: make(map[string]uint64)}
}

func (r *fakeAccountRepo) GetExpiry(ctx context.Context, identity string) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.expiries[identity], nil
}

func (r *fakeAccountRepo) SetExpiry(ctx context.Context, identity string, expiresAt uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expiries[identity] = expiresAt
	return nil
}

type fakeEventRepo struct {
	mu     sync.Mutex
	events []*domain.Event
}

func (r *fakeEventRepo) Append(ctx context.Context, event *domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *fakeEventRepo) List(ctx context.Context, limit int64) ([]*domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Event, 0, len(r.events))
	for i := len(r.events) - 1; i >= 0 && int64(len(out)) < limit; i-- {
		out = append(out, r.events[i])
	}
	return out, nil
}

func (r *fakeEventRepo) ListByIdentity(ctx context.Context, identity string, limit int64) ([]*domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Event
	for i := len(r.events) - 1; i >= 0 && int64(len(out)) < limit; i-- {
		e := r.events[i]
		if e.Payer == identity || e.Beneficiary == identity || e.Identity == identity {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeEventRepo) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

// fakeClock is a settable time source read by the service.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func (c *fakeClock) Unix() uint64 { return uint64(c.Now().Unix()) }

type testLedger struct {
	svc        *LedgerService
	clock      *fakeClock
	transferer *MockTransferer
	events     *fakeEventRepo
	accounts   *fakeAccountRepo
}

func newTestLedger(t *testing.T) *testLedger {
	t.Helper()
	ctx := context.Background()

	paramsRepo := &fakeParamsRepo{}
	_, err := BootstrapParams(ctx, paramsRepo, domain.Params{
		Token:         "tok_usdx",
		Treasury:      "acct_treasury",
		Administrator: "acct_admin",
		UnitPrice:     testPrice,
		PeriodSeconds: testPeriod,
	})
	require.NoError(t, err)

	accounts := newFakeAccountRepo()
	events := &fakeEventRepo{}
	transferer := NewMockTransferer()
	transferer.Mint("acct_alice", 1_000_000)
	transferer.Mint("acct_bob", 1_000_000)

	svc, err := NewLedgerService(ctx, paramsRepo, accounts, events, transferer)
	require.NoError(t, err)

	clock := &fakeClock{t: time.Unix(1_700_000_000, 0).UTC()}
	svc.WithClock(clock.Now)

	return &testLedger{
		svc:        svc,
		clock:      clock,
		transferer: transferer,
		events:     events,
		accounts:   accounts,
	}
}

func TestBootstrapParamsRejectsZeroPeriod(t *testing.T) {
	_, err := BootstrapParams(context.Background(), &fakeParamsRepo{}, domain.Params{
		Token:         "tok_usdx",
		Treasury:      "acct_treasury",
		Administrator: "acct_admin",
		UnitPrice:     testPrice,
		PeriodSeconds: 0,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidPeriod)
}

func TestBootstrapParamsKeepsExistingSingleton(t *testing.T) {
	ctx := context.Background()
	repo := &fakeParamsRepo{}

	first, err := BootstrapParams(ctx, repo, domain.Params{
		Token: "tok_usdx", Treasury: "acct_treasury", Administrator: "acct_admin",
		UnitPrice: testPrice, PeriodSeconds: testPeriod,
	})
	require.NoError(t, err)

	// A restart with different initial values must not overwrite state.
	second, err := BootstrapParams(ctx, repo, domain.Params{
		Token: "tok_other", Treasury: "acct_other", Administrator: "acct_other",
		UnitPrice: 1, PeriodSeconds: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, first.Treasury, second.Treasury)
	assert.Equal(t, first.UnitPrice, second.UnitPrice)
}

func TestSubscribeChargesAndSetsExpiry(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	event, err := l.svc.Subscribe(ctx, "acct_alice", 2)
	require.NoError(t, err)

	assert.Equal(t, l.clock.Unix()+2*testPeriod, event.NewExpiry)
	assert.Equal(t, 2*testPrice, event.Amount)
	assert.Equal(t, "acct_alice", event.Payer)
	assert.Equal(t, "acct_alice", event.Beneficiary)

	assert.Equal(t, uint64(1_000_000)-2*testPrice, l.transferer.Balance("acct_alice"))
	assert.Equal(t, 2*testPrice, l.transferer.Balance("acct_treasury"))

	expiry, err := l.svc.ExpiresAt(ctx, "acct_alice")
	require.NoError(t, err)
	assert.Equal(t, event.NewExpiry, expiry)
}

func TestSubscribeStacksWhileActive(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	first, err := l.svc.Subscribe(ctx, "acct_alice", 2)
	require.NoError(t, err)

	// Still active later: the new period stacks on the stored expiry, not
	// on the purchase time.
	l.clock.Advance(24 * time.Hour)
	second, err := l.svc.Subscribe(ctx, "acct_alice", 1)
	require.NoError(t, err)
	assert.Equal(t, first.NewExpiry+testPeriod, second.NewExpiry)
}

func TestSubscribeRestartsAfterExpiry(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	_, err := l.svc.Subscribe(ctx, "acct_alice", 1)
	require.NoError(t, err)

	l.clock.Advance(time.Duration(testPeriod+100) * time.Second)
	event, err := l.svc.Subscribe(ctx, "acct_alice", 1)
	require.NoError(t, err)
	assert.Equal(t, l.clock.Unix()+testPeriod, event.NewExpiry)
}

func TestSubscribePeriodBounds(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	l.transferer.Mint("acct_alice", 400_000)

	_, err := l.svc.Subscribe(ctx, "acct_alice", 0)
	assert.ErrorIs(t, err, domain.ErrZeroPeriods)

	_, err = l.svc.Subscribe(ctx, "acct_alice", 366)
	assert.ErrorIs(t, err, domain.ErrTooManyPeriods)

	_, err = l.svc.Subscribe(ctx, "acct_alice", 365)
	assert.NoError(t, err)

	// Failed attempts must not have emitted events or touched state.
	assert.Equal(t, []string{domain.EventSubscribed}, l.events.kinds())
}

func TestSubscribePaymentFailureLeavesNoTrace(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	_, err := l.svc.Subscribe(ctx, "acct_broke", 1)
	assert.ErrorIs(t, err, domain.ErrPaymentFailed)

	expiry, err := l.svc.ExpiresAt(ctx, "acct_broke")
	require.NoError(t, err)
	assert.Zero(t, expiry)
	assert.Empty(t, l.events.kinds())
}

func TestSubscribeFreeConfiguration(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.svc.SetPrice(ctx, "acct_admin", 0))

	// Zero price charges nothing, even for an unfunded identity.
	event, err := l.svc.Subscribe(ctx, "acct_broke", 3)
	require.NoError(t, err)
	assert.Zero(t, event.Amount)
	assert.Equal(t, l.clock.Unix()+3*testPeriod, event.NewExpiry)
}

func TestGiftExtendsBeneficiary(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	event, err := l.svc.Gift(ctx, "acct_alice", "acct_bob", 1)
	require.NoError(t, err)
	assert.Equal(t, "acct_alice", event.Payer)
	assert.Equal(t, "acct_bob", event.Beneficiary)

	// Payer's tokens move, beneficiary's expiry moves.
	assert.Equal(t, uint64(1_000_000)-testPrice, l.transferer.Balance("acct_alice"))
	aliceExpiry, _ := l.svc.ExpiresAt(ctx, "acct_alice")
	bobExpiry, _ := l.svc.ExpiresAt(ctx, "acct_bob")
	assert.Zero(t, aliceExpiry)
	assert.Equal(t, l.clock.Unix()+testPeriod, bobExpiry)
}

func TestGiftRejectsNullBeneficiary(t *testing.T) {
	l := newTestLedger(t)

	_, err := l.svc.Gift(context.Background(), "acct_alice", "", 1)
	assert.ErrorIs(t, err, domain.ErrInvalidRecipient)
}

func TestPriceChangeIsNotRetroactive(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	before, err := l.svc.Subscribe(ctx, "acct_alice", 1)
	require.NoError(t, err)
	assert.Equal(t, testPrice, before.Amount)

	require.NoError(t, l.svc.SetPrice(ctx, "acct_admin", testPrice*5))

	after, err := l.svc.Subscribe(ctx, "acct_alice", 1)
	require.NoError(t, err)
	assert.Equal(t, testPrice*5, after.Amount)

	// The earlier purchase keeps its stored expiry untouched.
	expiry, _ := l.svc.ExpiresAt(ctx, "acct_alice")
	assert.Equal(t, before.NewExpiry+testPeriod, expiry)
}

func TestPeriodChangeAffectsOnlyFuturePurchases(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	first, err := l.svc.Subscribe(ctx, "acct_alice", 1)
	require.NoError(t, err)

	newPeriod := uint64(3600)
	require.NoError(t, l.svc.SetPeriod(ctx, "acct_admin", newPeriod))

	second, err := l.svc.Subscribe(ctx, "acct_alice", 1)
	require.NoError(t, err)
	assert.Equal(t, first.NewExpiry+newPeriod, second.NewExpiry)
}

func TestCancelResetsExpiryAndIsIdempotent(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	sub, err := l.svc.Subscribe(ctx, "acct_alice", 2)
	require.NoError(t, err)

	event, err := l.svc.Cancel(ctx, "acct_admin", "acct_alice")
	require.NoError(t, err)
	assert.Equal(t, sub.NewExpiry, event.OldExpiry)

	active, _ := l.svc.IsActive(ctx, "acct_alice")
	assert.False(t, active)
	expiry, _ := l.svc.ExpiresAt(ctx, "acct_alice")
	assert.Zero(t, expiry)

	// Second cancel is a permitted no-op on an inactive account.
	again, err := l.svc.Cancel(ctx, "acct_admin", "acct_alice")
	require.NoError(t, err)
	assert.Zero(t, again.OldExpiry)
}

func TestCancelRequiresAdmin(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	_, err := l.svc.Subscribe(ctx, "acct_alice", 1)
	require.NoError(t, err)

	_, err = l.svc.Cancel(ctx, "acct_alice", "acct_alice")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	active, _ := l.svc.IsActive(ctx, "acct_alice")
	assert.True(t, active)
}

func TestPauseRejectsPurchasesOnly(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	_, err := l.svc.Subscribe(ctx, "acct_alice", 1)
	require.NoError(t, err)

	require.NoError(t, l.svc.Pause(ctx, "acct_admin"))

	_, err = l.svc.Subscribe(ctx, "acct_alice", 1)
	assert.ErrorIs(t, err, domain.ErrPaused)
	_, err = l.svc.Gift(ctx, "acct_alice", "acct_bob", 1)
	assert.ErrorIs(t, err, domain.ErrPaused)

	// Reads, cancellation and parameter mutation stay available.
	active, err := l.svc.IsActive(ctx, "acct_alice")
	require.NoError(t, err)
	assert.True(t, active)
	require.NoError(t, l.svc.SetPrice(ctx, "acct_admin", 2*testPrice))
	_, err = l.svc.Cancel(ctx, "acct_admin", "acct_alice")
	require.NoError(t, err)

	require.NoError(t, l.svc.Unpause(ctx, "acct_admin"))
	_, err = l.svc.Subscribe(ctx, "acct_alice", 1)
	assert.NoError(t, err)
}

func TestDoubleToggleFailsLoudly(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	assert.ErrorIs(t, l.svc.Unpause(ctx, "acct_admin"), domain.ErrInvalidStateToggle)
	require.NoError(t, l.svc.Pause(ctx, "acct_admin"))
	assert.ErrorIs(t, l.svc.Pause(ctx, "acct_admin"), domain.ErrInvalidStateToggle)
}

func TestSetPeriodRejectsZero(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	err := l.svc.SetPeriod(ctx, "acct_admin", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidPeriod)
	assert.Equal(t, testPeriod, l.svc.Params().PeriodSeconds)
}

func TestSetTreasuryRejectsNullDestination(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	err := l.svc.SetTreasury(ctx, "acct_admin", "")
	assert.ErrorIs(t, err, domain.ErrInvalidRecipient)

	require.NoError(t, l.svc.SetTreasury(ctx, "acct_admin", "acct_vault"))
	_, err = l.svc.Subscribe(ctx, "acct_alice", 1)
	require.NoError(t, err)
	assert.Equal(t, testPrice, l.transferer.Balance("acct_vault"))
}

func TestNonAdminCannotMutateParams(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	before := l.svc.Params()

	assert.ErrorIs(t, l.svc.SetPrice(ctx, "acct_alice", 1), domain.ErrUnauthorized)
	assert.ErrorIs(t, l.svc.SetPeriod(ctx, "acct_alice", 1), domain.ErrUnauthorized)
	assert.ErrorIs(t, l.svc.SetTreasury(ctx, "acct_alice", "acct_alice"), domain.ErrUnauthorized)
	assert.ErrorIs(t, l.svc.Pause(ctx, "acct_alice"), domain.ErrUnauthorized)
	assert.ErrorIs(t, l.svc.TransferAdmin(ctx, "acct_alice", "acct_alice"), domain.ErrUnauthorized)

	after := l.svc.Params()
	assert.Equal(t, before.UnitPrice, after.UnitPrice)
	assert.Equal(t, before.PeriodSeconds, after.PeriodSeconds)
	assert.Equal(t, before.Treasury, after.Treasury)
	assert.Equal(t, before.Administrator, after.Administrator)
	assert.Equal(t, before.Paused, after.Paused)
	assert.Empty(t, l.events.kinds())
}

func TestTransferAdminHandsOffImmediately(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.svc.TransferAdmin(ctx, "acct_admin", "acct_bob"))

	assert.ErrorIs(t, l.svc.SetPrice(ctx, "acct_admin", 1), domain.ErrUnauthorized)
	assert.NoError(t, l.svc.SetPrice(ctx, "acct_bob", 1))
}

func TestStatusReadsAtExpiryBoundary(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	event, err := l.svc.Subscribe(ctx, "acct_alice", 1)
	require.NoError(t, err)

	// One second past expiry: inactive, zero time left.
	l.clock.Advance(time.Duration(testPeriod+1) * time.Second)

	active, err := l.svc.IsActive(ctx, "acct_alice")
	require.NoError(t, err)
	assert.False(t, active)

	left, err := l.svc.TimeLeft(ctx, "acct_alice")
	require.NoError(t, err)
	assert.Zero(t, left)

	expiry, err := l.svc.ExpiresAt(ctx, "acct_alice")
	require.NoError(t, err)
	assert.Equal(t, event.NewExpiry, expiry)
}

func TestTimeLeftMatchesExpiry(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	_, err := l.svc.Subscribe(ctx, "acct_alice", 2)
	require.NoError(t, err)

	for _, advance := range []time.Duration{0, time.Hour, 40 * 24 * time.Hour, 70 * 24 * time.Hour} {
		l.clock.Advance(advance)
		expiry, err := l.svc.ExpiresAt(ctx, "acct_alice")
		require.NoError(t, err)
		left, err := l.svc.TimeLeft(ctx, "acct_alice")
		require.NoError(t, err)

		now := l.clock.Unix()
		want := uint64(0)
		if expiry > now {
			want = expiry - now
		}
		assert.Equal(t, want, left)
	}
}

func TestConcurrentSubscribesSerialize(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	const workers = 20
	var g errgroup.Group
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			_, err := l.svc.Subscribe(ctx, "acct_alice", 1)
			return err
		})
	}
	require.NoError(t, g.Wait())

	// Every purchase extended from the previous expiry, no lost updates.
	expiry, err := l.svc.ExpiresAt(ctx, "acct_alice")
	require.NoError(t, err)
	assert.Equal(t, l.clock.Unix()+workers*testPeriod, expiry)
	assert.Equal(t, uint64(1_000_000)-workers*testPrice, l.transferer.Balance("acct_alice"))
}
