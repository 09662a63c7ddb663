package postgres

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/IlyasAtabaev731/market/internal/domain/models"
	"github.com/IlyasAtabaev731/market/internal/ledger"
	"github.com/IlyasAtabaev731/market/internal/storage"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*Storage, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewWithDB(db), mock
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const (
	aliceID = "11111111-1111-1111-1111-111111111111"
	bobID   = "22222222-2222-2222-2222-222222222222"
)

func TestSaveUser_UniqueViolation(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs(aliceID, "alice", "hash", "user", true).
		WillReturnError(&pq.Error{Code: uniqueViolation})

	err := s.SaveUser(context.Background(), &models.User{
		ID:           aliceID,
		Username:     "alice",
		PasswordHash: "hash",
		Role:         models.RoleUser,
		IsActive:     true,
	})
	require.ErrorIs(t, err, storage.ErrUserExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUser_NotFound(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE username = $1")).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password_hash", "bio", "role", "is_active", "created_at"}))

	_, err := s.GetUser(context.Background(), "ghost")
	require.ErrorIs(t, err, storage.ErrUserNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserIDByUsername_OnlyActive(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM users WHERE username = $1 AND is_active")).
		WithArgs("bob").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(bobID))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM users WHERE username = $1 AND is_active")).
		WithArgs("carol").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	id, err := s.UserIDByUsername(context.Background(), "bob")
	require.NoError(t, err)
	require.Equal(t, bobID, id)

	_, err = s.UserIDByUsername(context.Background(), "carol")
	require.ErrorIs(t, err, storage.ErrUserNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetActive_NotFound(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET is_active = $1 WHERE id = $2")).
		WithArgs(false, aliceID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.SetActive(context.Background(), aliceID, false)
	require.ErrorIs(t, err, storage.ErrUserNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBalance_NoAccountIsZero(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT balance FROM accounts WHERE user_id = $1")).
		WithArgs(aliceID).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}))

	balance, err := s.GetBalance(context.Background(), aliceID)
	require.NoError(t, err)
	require.True(t, balance.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransfer_CommitsInOneTransaction(t *testing.T) {
	s, mock := newMock(t)
	engine := ledger.NewEngine(s, discardLogger(), time.Second)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM users WHERE username = $1 AND is_active")).
		WithArgs("bob").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(bobID))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO accounts")).WithArgs(aliceID).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO accounts")).WithArgs(bobID).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY user_id FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "balance"}).
			AddRow(aliceID, "100.00").
			AddRow(bobID, "0.00"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE accounts SET balance = balance + $1")).
		WithArgs(decimal.RequireFromString("-40"), aliceID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE accounts SET balance = balance + $1")).
		WithArgs(decimal.RequireFromString("40"), bobID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO transactions")).
		WithArgs(sqlmock.AnyArg(), "transfer", aliceID, bobID, decimal.RequireFromString("40"), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	id, err := engine.Transfer(context.Background(), aliceID, "bob", decimal.RequireFromString("40"))
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransfer_InsufficientFundsRollsBack(t *testing.T) {
	s, mock := newMock(t)
	engine := ledger.NewEngine(s, discardLogger(), time.Second)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM users WHERE username = $1 AND is_active")).
		WithArgs("bob").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(bobID))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO accounts")).WithArgs(aliceID).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO accounts")).WithArgs(bobID).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY user_id FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "balance"}).
			AddRow(aliceID, "60.00").
			AddRow(bobID, "0.00"))
	mock.ExpectRollback()

	_, err := engine.Transfer(context.Background(), aliceID, "bob", decimal.RequireFromString("150"))
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransfer_StatementFailureIsStorageFailure(t *testing.T) {
	s, mock := newMock(t)
	engine := ledger.NewEngine(s, discardLogger(), time.Second)
	cause := errors.New("connection reset by peer")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM users WHERE username = $1 AND is_active")).
		WithArgs("bob").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(bobID))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO accounts")).WithArgs(aliceID).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO accounts")).WithArgs(bobID).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY user_id FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "balance"}).
			AddRow(aliceID, "100.00").
			AddRow(bobID, "0.00"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE accounts SET balance = balance + $1")).
		WithArgs(decimal.RequireFromString("-40"), aliceID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE accounts SET balance = balance + $1")).
		WithArgs(decimal.RequireFromString("40"), bobID).
		WillReturnError(cause)
	mock.ExpectRollback()

	_, err := engine.Transfer(context.Background(), aliceID, "bob", decimal.RequireFromString("40"))
	require.ErrorIs(t, err, ledger.ErrStorageFailure)
	require.ErrorIs(t, err, cause)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeposit_RecordsNullSender(t *testing.T) {
	s, mock := newMock(t)
	engine := ledger.NewEngine(s, discardLogger(), time.Second)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO accounts")).WithArgs(aliceID).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY user_id FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "balance"}).AddRow(aliceID, "0.00"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE accounts SET balance = balance + $1")).
		WithArgs(decimal.RequireFromString("12.5"), aliceID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO transactions")).
		WithArgs(sqlmock.AnyArg(), "deposit", nil, aliceID, decimal.RequireFromString("12.5"), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := engine.Deposit(context.Background(), aliceID, decimal.RequireFromString("12.5"))
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLockBalances_MissingAccount(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY user_id FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "balance"}).AddRow(aliceID, "1.00"))
	mock.ExpectRollback()

	err := s.WithinTx(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
		_, err := tx.LockBalances(ctx, aliceID, bobID)
		return err
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestViewProduct_NotFound(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE products SET views = views + 1")).
		WithArgs(aliceID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "description", "price", "category", "views", "seller_id", "created_at"}))

	_, err := s.ViewProduct(context.Background(), aliceID)
	require.ErrorIs(t, err, storage.ErrProductNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
