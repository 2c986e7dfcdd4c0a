package domain

import "github.com/shopspring/decimal"

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

type WishlistItem struct {
	ProductID         string          `db:"product_id" json:"productId"`
	Name              string          `db:"name" json:"name"`
	Slug              string          `db:"slug" json:"slug"`
	Price             decimal.Decimal `db:"price" json:"price"`
	Active            bool            `db:"active" json:"active"`
	AvailableQuantity int             `db:"available_quantity" json:"availableQuantity"`
	Note              string          `db:"note" json:"note"`
	Priority          string          `db:"priority" json:"priority"`
	CreatedAt         string          `db:"created_at" json:"createdAt"`
}
