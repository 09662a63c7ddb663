package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/IlyasAtabaev731/market/internal/domain/models"
	"github.com/IlyasAtabaev731/market/internal/ledger"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

func (s *Storage) GetBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	const op = "storage.postgres.GetBalance"

	var balance decimal.Decimal
	err := s.db.QueryRowContext(ctx, "SELECT balance FROM accounts WHERE user_id = $1", userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}

	return balance, nil
}

const transactionSelect = `
	SELECT t.id, t.kind, t.sender_id, t.receiver_id, COALESCE(us.username, ''), ur.username, t.amount, t.created_at
	FROM transactions t
	LEFT JOIN users us ON us.id = t.sender_id
	JOIN users ur ON ur.id = t.receiver_id`

func (s *Storage) ListTransactions(ctx context.Context, userID string) ([]models.Transaction, error) {
	const op = "storage.postgres.ListTransactions"

	txns, err := s.queryTransactions(ctx,
		transactionSelect+" WHERE t.sender_id = $1 OR t.receiver_id = $1 ORDER BY t.created_at DESC",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return txns, nil
}

func (s *Storage) ListAllTransactions(ctx context.Context) ([]models.Transaction, error) {
	const op = "storage.postgres.ListAllTransactions"

	txns, err := s.queryTransactions(ctx, transactionSelect+" ORDER BY t.created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return txns, nil
}

func (s *Storage) queryTransactions(ctx context.Context, query string, args ...any) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []models.Transaction
	for rows.Next() {
		var (
			t        models.Transaction
			kind     string
			senderID sql.NullString
		)
		if err := rows.Scan(&t.ID, &kind, &senderID, &t.ReceiverID, &t.SenderName, &t.ReceiverName, &t.Amount, &t.Timestamp); err != nil {
			return nil, err
		}
		t.Kind = models.TransactionKind(kind)
		t.SenderID = senderID.String
		txns = append(txns, t)
	}

	return txns, rows.Err()
}

// WithinTx runs fn inside one database transaction. Rows locked by LockBalances stay
// locked until commit or rollback.
func (s *Storage) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) (err error) {
	const op = "storage.postgres.WithinTx"

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, err)
	}
	defer func() {
		if r := recover(); r != nil {
			_ = sqlTx.Rollback()
			panic(r)
		}
	}()

	if err := fn(ctx, &pgTx{tx: sqlTx}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%s: rollback: %w", op, errors.Join(err, rbErr))
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}

	return nil
}

type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) EnsureAccount(ctx context.Context, userID string) error {
	const op = "storage.postgres.EnsureAccount"

	_, err := t.tx.ExecContext(ctx,
		"INSERT INTO accounts (user_id, balance) VALUES ($1, 0) ON CONFLICT (user_id) DO NOTHING",
		userID,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// LockBalances takes row locks in user_id order so two transfers between the same
// pair of accounts never wait on each other in opposite directions.
func (t *pgTx) LockBalances(ctx context.Context, userIDs ...string) (map[string]decimal.Decimal, error) {
	const op = "storage.postgres.LockBalances"

	rows, err := t.tx.QueryContext(ctx,
		"SELECT user_id, balance FROM accounts WHERE user_id = ANY($1::uuid[]) ORDER BY user_id FOR UPDATE",
		pq.Array(userIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	balances := make(map[string]decimal.Decimal, len(userIDs))
	for rows.Next() {
		var (
			id      string
			balance decimal.Decimal
		)
		if err := rows.Scan(&id, &balance); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		balances[id] = balance
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for _, id := range userIDs {
		if _, ok := balances[id]; !ok {
			return nil, fmt.Errorf("%s: account %s not found", op, id)
		}
	}

	return balances, nil
}

func (t *pgTx) AddToBalance(ctx context.Context, userID string, delta decimal.Decimal) error {
	const op = "storage.postgres.AddToBalance"

	res, err := t.tx.ExecContext(ctx, "UPDATE accounts SET balance = balance + $1 WHERE user_id = $2", delta, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: account %s not found", op, userID)
	}

	return nil
}

func (t *pgTx) RecordTransaction(ctx context.Context, txn *models.Transaction) error {
	const op = "storage.postgres.RecordTransaction"

	var senderID any
	if txn.SenderID != "" {
		senderID = txn.SenderID
	}

	_, err := t.tx.ExecContext(ctx,
		"INSERT INTO transactions (id, kind, sender_id, receiver_id, amount, created_at) VALUES ($1, $2, $3, $4, $5, $6)",
		txn.ID, string(txn.Kind), senderID, txn.ReceiverID, txn.Amount, txn.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
