package ledger

import (
	"context"

	"github.com/IlyasAtabaev731/market/internal/domain/models"
	"github.com/shopspring/decimal"
)

// Store is the durable side of the ledger. Balances change only through Tx.
type Store interface {
	// GetBalance returns zero when the user has no account yet.
	GetBalance(ctx context.Context, userID string) (decimal.Decimal, error)
	// ListTransactions returns the user's transfers and deposits, newest first.
	ListTransactions(ctx context.Context, userID string) ([]models.Transaction, error)
	ListAllTransactions(ctx context.Context) ([]models.Transaction, error)
	// UserIDByUsername resolves active users only; storage.ErrUserNotFound otherwise.
	UserIDByUsername(ctx context.Context, username string) (string, error)
	// WithinTx runs fn as one all-or-nothing unit. Any error from fn discards every change.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

type Tx interface {
	EnsureAccount(ctx context.Context, userID string) error
	// LockBalances locks the given accounts until the unit finishes and returns their balances.
	LockBalances(ctx context.Context, userIDs ...string) (map[string]decimal.Decimal, error)
	AddToBalance(ctx context.Context, userID string, delta decimal.Decimal) error
	RecordTransaction(ctx context.Context, t *models.Transaction) error
}
