package domain

import "github.com/shopspring/decimal"

func init() {
	// Prices leave the API as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

type Category struct {
	ID          string  `db:"id" json:"id"`
	Name        string  `db:"name" json:"name"`
	Slug        string  `db:"slug" json:"slug"`
	Description string  `db:"description" json:"description"`
	ParentID    *string `db:"parent_id" json:"parentId"`
	CreatedAt   string  `db:"created_at" json:"createdAt"`
	UpdatedAt   string  `db:"updated_at" json:"updatedAt"`
}

const (
	ConditionNew         = "new"
	ConditionUsed        = "used"
	ConditionRefurbished = "refurbished"
)

// Inventory holds stock counters. Available is always Total - Reserved.
type Inventory struct {
	TotalQuantity     int `db:"total_quantity" json:"totalQuantity"`
	ReservedQuantity  int `db:"reserved_quantity" json:"reservedQuantity"`
	AvailableQuantity int `db:"available_quantity" json:"availableQuantity"`
	LowStockThreshold int `db:"low_stock_threshold" json:"lowStockThreshold"`
}

type Ratings struct {
	Average float64 `db:"rating_avg" json:"average"`
	Count   int     `db:"rating_count" json:"count"`
}

type Product struct {
	ID            string              `db:"id" json:"id"`
	CategoryID    string              `db:"category_id" json:"categoryId"`
	Name          string              `db:"name" json:"name"`
	Slug          string              `db:"slug" json:"slug"`
	Description   string              `db:"description" json:"description"`
	Brand         string              `db:"brand" json:"brand"`
	Price         decimal.Decimal     `db:"price" json:"price"`
	OriginalPrice decimal.NullDecimal `db:"original_price" json:"originalPrice"`
	Images        StringList          `db:"images_json" json:"images"`
	ProductType   string              `db:"product_type" json:"productType"`
	Condition     string              `db:"condition" json:"condition"`
	Active        bool                `db:"active" json:"active"`
	Inventory     `json:"inventory"`
	Ratings       `json:"ratings"`
	Discount      int              `db:"-" json:"discountPercent"`
	Variants      []ProductVariant `db:"-" json:"variants,omitempty"`
	CreatedAt     string           `db:"created_at" json:"createdAt"`
	UpdatedAt     string           `db:"updated_at" json:"updatedAt"`
}

// DiscountPercent is the whole-percent markdown from OriginalPrice, or 0.
func (p *Product) DiscountPercent() int {
	if !p.OriginalPrice.Valid || !p.OriginalPrice.Decimal.IsPositive() {
		return 0
	}
	if p.Price.GreaterThanOrEqual(p.OriginalPrice.Decimal) {
		return 0
	}
	off := p.OriginalPrice.Decimal.Sub(p.Price).Div(p.OriginalPrice.Decimal).Mul(decimal.NewFromInt(100))
	return int(off.Round(0).IntPart())
}

type ProductVariant struct {
	ID               string              `db:"id" json:"id"`
	ProductID        string              `db:"product_id" json:"productId"`
	SKU              string              `db:"sku" json:"sku"`
	Name             string              `db:"name" json:"name"`
	Attributes       Attributes          `db:"attributes_json" json:"attributes"`
	Price            decimal.NullDecimal `db:"price" json:"price"`
	TotalQuantity    int                 `db:"total_quantity" json:"totalQuantity"`
	ReservedQuantity int                 `db:"reserved_quantity" json:"reservedQuantity"`
	Available        int                 `db:"available_quantity" json:"availableQuantity"`
	CreatedAt        string              `db:"created_at" json:"createdAt"`
}

const (
	StockIn  = "IN_STOCK"
	StockLow = "LOW_STOCK"
	StockOut = "OUT_OF_STOCK"
)

type Availability struct {
	ProductID string `json:"productId"`
	Status    string `json:"status"` // IN_STOCK | LOW_STOCK | OUT_OF_STOCK
	Inventory
}

// Pagination is the page block attached to list envelopes.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

func NewPagination(page, limit, total int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, Total: total, TotalPages: pages}
}
