package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/IlyasAtabaev731/market/internal/domain/models"
	"github.com/IlyasAtabaev731/market/internal/storage"
)

func (s *Storage) SaveProduct(ctx context.Context, p *models.Product) error {
	const op = "storage.postgres.SaveProduct"

	err := s.db.QueryRowContext(ctx,
		`INSERT INTO products (id, title, description, price, category, seller_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		p.ID, p.Title, p.Description, p.Price, p.Category, p.SellerID,
	).Scan(&p.CreatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

const productColumns = "id, title, description, price, category, views, seller_id, created_at"

func (s *Storage) ViewProduct(ctx context.Context, id string) (*models.Product, error) {
	const op = "storage.postgres.ViewProduct"

	var p models.Product
	err := s.db.QueryRowContext(ctx,
		"UPDATE products SET views = views + 1 WHERE id = $1 RETURNING "+productColumns,
		id,
	).Scan(&p.ID, &p.Title, &p.Description, &p.Price, &p.Category, &p.Views, &p.SellerID, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrProductNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &p, nil
}

func (s *Storage) SearchProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, error) {
	const op = "storage.postgres.SearchProducts"

	query := "SELECT " + productColumns + " FROM products WHERE title ILIKE $1"
	args := []any{"%" + filter.Keyword + "%"}

	if filter.Category != "" {
		args = append(args, filter.Category)
		query += " AND category = $" + strconv.Itoa(len(args))
	}

	switch filter.Sort {
	case models.SortPrice:
		query += " ORDER BY price ASC"
	case models.SortPopular:
		query += " ORDER BY views DESC"
	default:
		query += " ORDER BY created_at DESC"
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.Title, &p.Description, &p.Price, &p.Category, &p.Views, &p.SellerID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return products, nil
}

func (s *Storage) DeleteProduct(ctx context.Context, id string) error {
	const op = "storage.postgres.DeleteProduct"

	return s.execOne(ctx, op, storage.ErrProductNotFound, "DELETE FROM products WHERE id = $1", id)
}

func (s *Storage) SaveReport(ctx context.Context, r *models.Report) error {
	const op = "storage.postgres.SaveReport"

	err := s.db.QueryRowContext(ctx,
		"INSERT INTO reports (id, reporter_id, target_id, reason) VALUES ($1, $2, $3, $4) RETURNING created_at",
		r.ID, r.ReporterID, r.TargetID, r.Reason,
	).Scan(&r.CreatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) ListReports(ctx context.Context) ([]models.Report, error) {
	const op = "storage.postgres.ListReports"

	rows, err := s.db.QueryContext(ctx, "SELECT id, reporter_id, target_id, reason, created_at FROM reports ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var reports []models.Report
	for rows.Next() {
		var r models.Report
		if err := rows.Scan(&r.ID, &r.ReporterID, &r.TargetID, &r.Reason, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return reports, nil
}
