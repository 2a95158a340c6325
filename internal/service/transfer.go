package service

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/hanifmaliki/subledger/internal/domain"
	"github.com/hanifmaliki/subledger/internal/infrastructure/tokengate"
	"github.com/oklog/ulid/v2"
)

// MockTransferer is an in-memory implementation of domain.AssetTransferer
// for development and tests. It keeps real balances so insufficient funds
// surface as transfer failures, the same way the gateway reports them.
type MockTransferer struct {
	mu       sync.Mutex
	balances map[string]uint64
}

// TokenGateAdapter adapts the tokengate.Client to domain.AssetTransferer
type TokenGateAdapter struct {
	client *tokengate.Client
}

// NewAssetTransferer returns the appropriate transferer based on environment config.
// If TOKENGATE_API_KEY is empty, returns a mock transferer for development.
func NewAssetTransferer(token string) domain.AssetTransferer {
	apiKey := os.Getenv("TOKENGATE_API_KEY")
	baseURL := os.Getenv("TOKENGATE_BASE_URL")

	if apiKey == "" {
		log.Println("[Transfer] Using mock token transferer (no gateway credentials configured)")
		return NewMockTransferer()
	}

	if baseURL == "" {
		baseURL = "https://sandbox.tokengate.io" // Default to sandbox
	}

	log.Printf("[Transfer] Using real token gateway client (base: %s, token: %s)", baseURL, token)
	client := tokengate.NewClient(tokengate.Config{
		Token:   token,
		APIKey:  apiKey,
		BaseURL: baseURL,
	})

	return &TokenGateAdapter{client: client}
}

// NewMockTransferer creates an empty mock; fund accounts with Mint first.
func NewMockTransferer() *MockTransferer {
	return &MockTransferer{balances: make(map[string]uint64)}
}

// Mint credits an account, test/dev only.
func (m *MockTransferer) Mint(identity string, amount uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[identity] += amount
}

// Balance returns an account's current balance.
func (m *MockTransferer) Balance(identity string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[identity]
}

// Transfer moves amount between in-memory balances, failing on
// insufficient funds like the real gateway would.
func (m *MockTransferer) Transfer(ctx context.Context, from, to string, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.balances[from] < amount {
		return fmt.Errorf("insufficient balance: %s has %d, needs %d", from, m.balances[from], amount)
	}
	m.balances[from] -= amount
	m.balances[to] += amount
	return nil
}

// Transfer executes a transfer via the token gateway API.
func (a *TokenGateAdapter) Transfer(ctx context.Context, from, to string, amount uint64) error {
	// Reference ID ties the gateway transaction back to our event log
	referenceID := ulid.Make().String()

	if err := a.client.Transfer(ctx, referenceID, from, to, amount); err != nil {
		log.Printf("[Transfer] Gateway error: %v", err)
		return fmt.Errorf("token gateway error: %w", err)
	}
	return nil
}
