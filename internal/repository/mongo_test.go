package repository

import (
	"context"
	"log"
	"testing"
	"time"

	"github.com/hanifmaliki/subledger/internal/domain"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// setupMongo spins up a fresh MongoDB container for repository tests.
func setupMongo(t *testing.T) *mongo.Database {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}
	ctx := context.Background()

	container, err := mongodb.Run(ctx, "mongo:latest")
	if err != nil {
		t.Fatalf("failed to start container: %s", err)
	}

	endpoint, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get connection string: %s", err)
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(endpoint))
	if err != nil {
		t.Fatalf("failed to connect to mongo: %v", err)
	}

	t.Cleanup(func() {
		if err := client.Disconnect(ctx); err != nil {
			log.Printf("failed to disconnect mongo: %v", err)
		}
		if err := container.Terminate(ctx); err != nil {
			log.Printf("failed to terminate container: %v", err)
		}
	})

	return client.Database("test_db")
}

func TestMongoParamsRepository(t *testing.T) {
	db := setupMongo(t)
	repo := NewMongoParamsRepository(db)
	ctx := context.Background()

	_, err := repo.Load(ctx)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	params := &domain.Params{
		Token:         "tok_usdx",
		Treasury:      "acct_treasury",
		Administrator: "acct_admin",
		UnitPrice:     1000,
		PeriodSeconds: 2_592_000,
	}
	require.NoError(t, repo.Save(ctx, params))

	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, params.Treasury, loaded.Treasury)
	assert.Equal(t, params.UnitPrice, loaded.UnitPrice)
	assert.False(t, loaded.Paused)

	// Save replaces the singleton, it never grows a second document.
	params.Paused = true
	params.UnitPrice = 2000
	require.NoError(t, repo.Save(ctx, params))

	loaded, err = repo.Load(ctx)
	require.NoError(t, err)
	assert.True(t, loaded.Paused)
	assert.Equal(t, uint64(2000), loaded.UnitPrice)
}

func TestMongoAccountRepository(t *testing.T) {
	db := setupMongo(t)
	repo := NewMongoAccountRepository(db)
	ctx := context.Background()

	// Unknown identity reads as zero, not as an error.
	expiry, err := repo.GetExpiry(ctx, "acct_unknown")
	require.NoError(t, err)
	assert.Zero(t, expiry)

	require.NoError(t, repo.SetExpiry(ctx, "acct_alice", 1_700_000_000))
	expiry, err = repo.GetExpiry(ctx, "acct_alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(1_700_000_000), expiry)

	// Upsert path: a second write overwrites in place.
	require.NoError(t, repo.SetExpiry(ctx, "acct_alice", 0))
	expiry, err = repo.GetExpiry(ctx, "acct_alice")
	require.NoError(t, err)
	assert.Zero(t, expiry)
}

func TestMongoEventRepository(t *testing.T) {
	db := setupMongo(t)
	repo := NewMongoEventRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	events := []*domain.Event{
		{ID: ulid.Make().String(), Kind: domain.EventSubscribed, At: base,
			Payer: "acct_alice", Beneficiary: "acct_alice", Periods: 2, NewExpiry: 100, Amount: 2000},
		{ID: ulid.Make().String(), Kind: domain.EventSubscribed, At: base.Add(time.Minute),
			Payer: "acct_alice", Beneficiary: "acct_bob", Periods: 1, NewExpiry: 200, Amount: 1000},
		{ID: ulid.Make().String(), Kind: domain.EventCanceled, At: base.Add(2 * time.Minute),
			Identity: "acct_bob", OldExpiry: 200},
		{ID: ulid.Make().String(), Kind: domain.EventPriceUpdated, At: base.Add(3 * time.Minute),
			OldPrice: 1000, NewPrice: 1500},
	}
	for _, e := range events {
		require.NoError(t, repo.Append(ctx, e))
	}

	// Newest first, capped by limit.
	all, err := repo.List(ctx, 3)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, domain.EventPriceUpdated, all[0].Kind)
	assert.Equal(t, domain.EventCanceled, all[1].Kind)

	// Identity filter matches payer, beneficiary and cancellation subject.
	bob, err := repo.ListByIdentity(ctx, "acct_bob", 10)
	require.NoError(t, err)
	require.Len(t, bob, 2)
	assert.Equal(t, domain.EventCanceled, bob[0].Kind)
	assert.Equal(t, domain.EventSubscribed, bob[1].Kind)

	alice, err := repo.ListByIdentity(ctx, "acct_alice", 10)
	require.NoError(t, err)
	assert.Len(t, alice, 2)
}
