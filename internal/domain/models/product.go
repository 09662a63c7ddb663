package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Views       int             `json:"views"`
	SellerID    string          `json:"seller_id"`
	CreatedAt   time.Time       `json:"created_at"`
}

type ProductSort string

const (
	SortRecent  ProductSort = "recent"
	SortPrice   ProductSort = "price"
	SortPopular ProductSort = "popular"
)

type ProductFilter struct {
	Keyword  string
	Category string
	Sort     ProductSort
}
