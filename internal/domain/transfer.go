package domain

import "context"

// AssetTransferer moves payment in the external fungible-token store.
// The ledger owns no balance or allowance logic; any error from Transfer
// fails the whole operation with no state change.
type AssetTransferer interface {
	Transfer(ctx context.Context, from, to string, amount uint64) error
}
