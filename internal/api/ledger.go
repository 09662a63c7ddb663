package api

import (
	"errors"
	"net/http"

	"github.com/IlyasAtabaev731/market/internal/domain/models"
	"github.com/IlyasAtabaev731/market/internal/ledger"
	"github.com/shopspring/decimal"
)

type TransferRequest struct {
	ToUser string          `json:"to_user" validate:"required"`
	Amount decimal.Decimal `json:"amount"`
}

type DepositRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type TransactionResponse struct {
	TransactionID string `json:"transaction_id"`
}

type BalanceResponse struct {
	Balance decimal.Decimal `json:"balance"`
}

// ledgerError gives every ledger failure kind its own status and message.
func ledgerError(err error) (int, string) {
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount):
		return http.StatusBadRequest, "amount must be greater than zero with at most two decimal places"
	case errors.Is(err, ledger.ErrSelfTransfer):
		return http.StatusBadRequest, "you cannot send money to yourself"
	case errors.Is(err, ledger.ErrUnknownReceiver):
		return http.StatusNotFound, "receiver not found"
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return http.StatusPaymentRequired, "insufficient funds"
	default:
		return http.StatusInternalServerError, "ledger is temporarily unavailable, no money was moved"
	}
}

func writeLedgerError(w http.ResponseWriter, err error) {
	status, msg := ledgerError(err)
	writeError(w, status, msg)
}

func (s *APIServer) balanceHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		balance, err := s.ledger.OpenAccount(r.Context(), currentUser(r.Context()).ID)
		if err != nil {
			writeLedgerError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, BalanceResponse{Balance: balance})
	}
}

func (s *APIServer) transferHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TransferRequest
		if !s.decode(w, r, &req) {
			return
		}

		id, err := s.ledger.Transfer(r.Context(), currentUser(r.Context()).ID, req.ToUser, req.Amount)
		if err != nil {
			writeLedgerError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, TransactionResponse{TransactionID: id})
	}
}

func (s *APIServer) depositHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		var req DepositRequest
		if !s.decode(w, r, &req) {
			return
		}

		id, err := s.ledger.Deposit(r.Context(), currentUser(r.Context()).ID, req.Amount)
		if err != nil {
			writeLedgerError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, TransactionResponse{TransactionID: id})
	}
}

type HistoryResponse struct {
	Transactions []models.Transaction `json:"transactions"`
}

func (s *APIServer) transactionsHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		txns, err := s.ledger.History(r.Context(), currentUser(r.Context()).ID)
		if err != nil {
			writeLedgerError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, HistoryResponse{Transactions: nonNil(txns)})
	}
}

type DashboardResponse struct {
	User         *models.User         `json:"user"`
	Balance      decimal.Decimal      `json:"balance"`
	Transactions []models.Transaction `json:"transactions"`
	OtherUsers   []string             `json:"other_users"`
	Products     []models.Product     `json:"products"`
}

func (s *APIServer) dashboardHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		user := currentUser(r.Context())

		balance, err := s.ledger.OpenAccount(r.Context(), user.ID)
		if err != nil {
			writeLedgerError(w, err)
			return
		}

		txns, err := s.ledger.History(r.Context(), user.ID)
		if err != nil {
			writeLedgerError(w, err)
			return
		}

		others, err := s.otherUsernames(r)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list users")
			return
		}

		products, err := s.storage.SearchProducts(r.Context(), models.ProductFilter{Sort: models.SortRecent})
		if err != nil {
			s.logger.Error("Failed to list products", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to list products")
			return
		}

		writeJSON(w, http.StatusOK, DashboardResponse{
			User:         user,
			Balance:      balance,
			Transactions: nonNil(txns),
			OtherUsers:   others,
			Products:     nonNil(products),
		})
	}
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
