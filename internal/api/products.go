package api

import (
	"errors"
	"net/http"

	"github.com/IlyasAtabaev731/market/internal/domain/models"
	"github.com/IlyasAtabaev731/market/internal/storage"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ProductRequest struct {
	Title       string          `json:"title" validate:"required,max=200"`
	Description string          `json:"description" validate:"required,max=5000"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category" validate:"max=50"`
}

type ProductsResponse struct {
	Products []models.Product `json:"products"`
}

func (s *APIServer) newProductHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ProductRequest
		if !s.decode(w, r, &req) {
			return
		}
		if req.Price.IsNegative() || !models.FitsMoney(req.Price) {
			writeError(w, http.StatusBadRequest, "price must be a non-negative amount with at most two decimal places")
			return
		}

		product := &models.Product{
			ID:          uuid.NewString(),
			Title:       req.Title,
			Description: req.Description,
			Price:       req.Price,
			Category:    req.Category,
			SellerID:    currentUser(r.Context()).ID,
		}
		if err := s.storage.SaveProduct(r.Context(), product); err != nil {
			s.logger.Error("Failed to save product", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to save product")
			return
		}

		writeJSON(w, http.StatusCreated, product)
	}
}

type ProductView struct {
	Product *models.Product `json:"product"`
	Seller  string          `json:"seller"`
}

func (s *APIServer) viewProductHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}

		product, err := s.storage.ViewProduct(r.Context(), id)
		if err != nil {
			if errors.Is(err, storage.ErrProductNotFound) {
				writeError(w, http.StatusNotFound, "product not found")
				return
			}
			s.logger.Error("Failed to get product", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to get product")
			return
		}

		view := ProductView{Product: product}
		if seller, err := s.storage.GetUserByID(r.Context(), product.SellerID); err == nil {
			view.Seller = seller.Username
		}

		writeJSON(w, http.StatusOK, view)
	}
}

func (s *APIServer) searchHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := models.ProductFilter{
			Keyword:  q.Get("q"),
			Category: q.Get("category"),
			Sort:     models.ProductSort(q.Get("sort")),
		}
		switch filter.Sort {
		case models.SortPrice, models.SortPopular:
		default:
			filter.Sort = models.SortRecent
		}

		products, err := s.storage.SearchProducts(r.Context(), filter)
		if err != nil {
			s.logger.Error("Failed to search products", "error", err)
			writeError(w, http.StatusInternalServerError, "search failed")
			return
		}

		writeJSON(w, http.StatusOK, ProductsResponse{Products: nonNil(products)})
	}
}
