// Package ledger moves value between accounts. Every mutation runs as a single
// unit of work on the Store, so a failed operation leaves no partial state.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/IlyasAtabaev731/market/internal/domain/models"
	"github.com/IlyasAtabaev731/market/internal/metrics"
	"github.com/IlyasAtabaev731/market/internal/storage"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const defaultTxTimeout = 5 * time.Second

type Engine struct {
	store     Store
	log       *slog.Logger
	txTimeout time.Duration

	mu   sync.Mutex
	last time.Time
}

func NewEngine(store Store, log *slog.Logger, txTimeout time.Duration) *Engine {
	if txTimeout <= 0 {
		txTimeout = defaultTxTimeout
	}

	return &Engine{
		store:     store,
		log:       log,
		txTimeout: txTimeout,
	}
}

// Transfer debits senderID and credits the active user named receiverUsername.
func (e *Engine) Transfer(ctx context.Context, senderID, receiverUsername string, amount decimal.Decimal) (string, error) {
	start := time.Now()
	id, err := e.transfer(ctx, senderID, receiverUsername, amount)
	metrics.RecordLedger("transfer", Reason(err), time.Since(start))

	if err != nil {
		e.logFailure("transfer failed", err,
			slog.String("sender_id", senderID),
			slog.String("receiver", receiverUsername),
			amountAttr(amount),
		)
		return "", err
	}

	e.log.Info("transfer committed",
		slog.String("transaction_id", id),
		slog.String("sender_id", senderID),
		slog.String("receiver", receiverUsername),
		amountAttr(amount),
	)

	return id, nil
}

func (e *Engine) transfer(ctx context.Context, senderID, receiverUsername string, amount decimal.Decimal) (string, error) {
	const op = "ledger.Transfer"

	if err := validateAmount(amount); err != nil {
		return "", err
	}

	receiverID, err := e.store.UserIDByUsername(ctx, receiverUsername)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return "", ErrUnknownReceiver
		}
		return "", storageFailure(op, err)
	}
	if receiverID == senderID {
		return "", ErrSelfTransfer
	}

	ctx, cancel := context.WithTimeout(ctx, e.txTimeout)
	defer cancel()

	var txn models.Transaction
	err = e.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.EnsureAccount(ctx, senderID); err != nil {
			return err
		}
		if err := tx.EnsureAccount(ctx, receiverID); err != nil {
			return err
		}

		balances, err := tx.LockBalances(ctx, senderID, receiverID)
		if err != nil {
			return err
		}
		if balances[senderID].LessThan(amount) {
			return ErrInsufficientFunds
		}

		if err := tx.AddToBalance(ctx, senderID, amount.Neg()); err != nil {
			return err
		}
		if err := credit(ctx, tx, receiverID, balances[receiverID], amount); err != nil {
			return err
		}

		txn = models.Transaction{
			ID:         uuid.NewString(),
			Kind:       models.KindTransfer,
			SenderID:   senderID,
			ReceiverID: receiverID,
			Amount:     amount,
			Timestamp:  e.now(),
		}
		return tx.RecordTransaction(ctx, &txn)
	})
	if err != nil {
		return "", unitError(op, err)
	}

	return txn.ID, nil
}

// Deposit credits userID, opening the account first when needed.
func (e *Engine) Deposit(ctx context.Context, userID string, amount decimal.Decimal) (string, error) {
	start := time.Now()
	id, err := e.deposit(ctx, userID, amount)
	metrics.RecordLedger("deposit", Reason(err), time.Since(start))

	if err != nil {
		e.logFailure("deposit failed", err,
			slog.String("user_id", userID),
			amountAttr(amount),
		)
		return "", err
	}

	e.log.Info("deposit committed",
		slog.String("transaction_id", id),
		slog.String("user_id", userID),
		amountAttr(amount),
	)

	return id, nil
}

func (e *Engine) deposit(ctx context.Context, userID string, amount decimal.Decimal) (string, error) {
	const op = "ledger.Deposit"

	if err := validateAmount(amount); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, e.txTimeout)
	defer cancel()

	var txn models.Transaction
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.EnsureAccount(ctx, userID); err != nil {
			return err
		}
		balances, err := tx.LockBalances(ctx, userID)
		if err != nil {
			return err
		}
		if err := credit(ctx, tx, userID, balances[userID], amount); err != nil {
			return err
		}

		txn = models.Transaction{
			ID:         uuid.NewString(),
			Kind:       models.KindDeposit,
			ReceiverID: userID,
			Amount:     amount,
			Timestamp:  e.now(),
		}
		return tx.RecordTransaction(ctx, &txn)
	})
	if err != nil {
		return "", unitError(op, err)
	}

	return txn.ID, nil
}

// OpenAccount makes sure userID has an account and returns its balance.
func (e *Engine) OpenAccount(ctx context.Context, userID string) (decimal.Decimal, error) {
	const op = "ledger.OpenAccount"

	ctx, cancel := context.WithTimeout(ctx, e.txTimeout)
	defer cancel()

	var balance decimal.Decimal
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.EnsureAccount(ctx, userID); err != nil {
			return err
		}
		balances, err := tx.LockBalances(ctx, userID)
		if err != nil {
			return err
		}
		balance = balances[userID]
		return nil
	})
	if err != nil {
		return decimal.Zero, storageFailure(op, err)
	}

	return balance, nil
}

func (e *Engine) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	const op = "ledger.Balance"

	balance, err := e.store.GetBalance(ctx, userID)
	if err != nil {
		return decimal.Zero, storageFailure(op, err)
	}

	return balance, nil
}

func (e *Engine) History(ctx context.Context, userID string) ([]models.Transaction, error) {
	const op = "ledger.History"

	txns, err := e.store.ListTransactions(ctx, userID)
	if err != nil {
		return nil, storageFailure(op, err)
	}

	return txns, nil
}

func (e *Engine) AllTransactions(ctx context.Context) ([]models.Transaction, error) {
	const op = "ledger.AllTransactions"

	txns, err := e.store.ListAllTransactions(ctx)
	if err != nil {
		return nil, storageFailure(op, err)
	}

	return txns, nil
}

// now hands out strictly increasing microsecond timestamps.
func (e *Engine) now() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()

	t := time.Now().UTC().Truncate(time.Microsecond)
	if !t.After(e.last) {
		t = e.last.Add(time.Microsecond)
	}
	e.last = t

	return t
}

func (e *Engine) logFailure(msg string, err error, attrs ...any) {
	attrs = append(attrs, slog.String("reason", Reason(err)), slog.Any("error", err))
	if errors.Is(err, ErrStorageFailure) {
		e.log.Error(msg, attrs...)
		return
	}
	e.log.Warn(msg, attrs...)
}

// amountAttr never prints an out of range amount in full, its decimal form can be huge.
func amountAttr(amount decimal.Decimal) slog.Attr {
	if !models.FitsMoney(amount) {
		return slog.String("amount", "out of range")
	}
	return slog.String("amount", amount.String())
}

// validateAmount runs before anything that could rescale amount.
func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() || !models.FitsMoney(amount) {
		return ErrInvalidAmount
	}
	return nil
}

// credit adds amount to userID, refusing balances a money column cannot hold.
func credit(ctx context.Context, tx Tx, userID string, balance, amount decimal.Decimal) error {
	if !models.FitsMoney(balance.Add(amount)) {
		return ErrInvalidAmount
	}
	return tx.AddToBalance(ctx, userID, amount)
}
