// Package ledger is the narrow contract the reconciliation core uses to
// read and mutate user balances. Balances live in the user profile store
// and are always in fiat minor units.
package ledger

import "context"

type Ledger interface {
	Balance(ctx context.Context, userID string) (int64, error)
	// Credit atomically adds amountMinor to the user's balance and returns
	// the new balance.
	Credit(ctx context.Context, userID string, amountMinor int64) (int64, error)
}
