package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/IlyasAtabaev731/market/internal/domain/models"
	"github.com/IlyasAtabaev731/market/internal/storage"
	"github.com/google/uuid"
)

type ReportRequest struct {
	TargetID string `json:"target_id" validate:"required,max=64"`
	Reason   string `json:"reason" validate:"required,max=1000"`
}

func (s *APIServer) reportHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ReportRequest
		if !s.decode(w, r, &req) {
			return
		}

		report := &models.Report{
			ID:         uuid.NewString(),
			ReporterID: currentUser(r.Context()).ID,
			TargetID:   req.TargetID,
			Reason:     req.Reason,
		}
		if err := s.storage.SaveReport(r.Context(), report); err != nil {
			s.logger.Error("Failed to save report", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to save report")
			return
		}

		writeJSON(w, http.StatusCreated, report)
	}
}

type AdminResponse struct {
	Users        []models.User        `json:"users"`
	Products     []models.Product     `json:"products"`
	Transactions []models.Transaction `json:"transactions"`
	Reports      []models.Report      `json:"reports"`
}

func (s *APIServer) adminHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		users, err := s.storage.ListUsers(ctx)
		if err != nil {
			s.logger.Error("Failed to list users", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to load admin panel")
			return
		}
		products, err := s.storage.SearchProducts(ctx, models.ProductFilter{Sort: models.SortRecent})
		if err != nil {
			s.logger.Error("Failed to list products", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to load admin panel")
			return
		}
		txns, err := s.ledger.AllTransactions(ctx)
		if err != nil {
			writeLedgerError(w, err)
			return
		}
		reports, err := s.storage.ListReports(ctx)
		if err != nil {
			s.logger.Error("Failed to list reports", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to load admin panel")
			return
		}

		writeJSON(w, http.StatusOK, AdminResponse{
			Users:        nonNil(users),
			Products:     nonNil(products),
			Transactions: nonNil(txns),
			Reports:      nonNil(reports),
		})
	}
}

func (s *APIServer) deleteProductHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}

		if err := s.storage.DeleteProduct(r.Context(), id); err != nil {
			if errors.Is(err, storage.ErrProductNotFound) {
				writeError(w, http.StatusNotFound, "product not found")
				return
			}
			s.logger.Error("Failed to delete product", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to delete product")
			return
		}

		s.logger.Info("Product deleted", slog.String("product_id", id), slog.String("admin", currentUser(r.Context()).Username))
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *APIServer) deactivateUserHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		admin := currentUser(r.Context())

		if id == admin.ID {
			writeError(w, http.StatusBadRequest, "you cannot deactivate yourself")
			return
		}

		if err := s.storage.SetActive(r.Context(), id, false); err != nil {
			if errors.Is(err, storage.ErrUserNotFound) {
				writeError(w, http.StatusNotFound, "user not found")
				return
			}
			s.logger.Error("Failed to deactivate user", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to deactivate user")
			return
		}

		s.logger.Info("User deactivated", slog.String("user_id", id), slog.String("admin", admin.Username))
		w.WriteHeader(http.StatusNoContent)
	}
}
