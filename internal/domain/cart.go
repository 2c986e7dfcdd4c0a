package domain

import "github.com/shopspring/decimal"

const (
	MinCartQuantity = 1
	MaxCartQuantity = 99
)

type CartItem struct {
	ID        string `db:"id" json:"id"`
	UserID    string `db:"user_id" json:"userId"`
	ProductID string `db:"product_id" json:"productId"`
	Quantity  int    `db:"quantity" json:"quantity"`
	CreatedAt string `db:"created_at" json:"createdAt"`
	UpdatedAt string `db:"updated_at" json:"updatedAt"`
}

// CartLine is a cart item joined with its product for display.
type CartLine struct {
	ID                string          `db:"id" json:"id"`
	ProductID         string          `db:"product_id" json:"productId"`
	Name              string          `db:"name" json:"name"`
	Slug              string          `db:"slug" json:"slug"`
	Images            StringList      `db:"images_json" json:"images"`
	Price             decimal.Decimal `db:"price" json:"price"`
	Quantity          int             `db:"quantity" json:"quantity"`
	Active            bool            `db:"active" json:"active"`
	AvailableQuantity int             `db:"available_quantity" json:"availableQuantity"`
}

func (l CartLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type CartView struct {
	Items     []CartLineView  `json:"items"`
	ItemCount int             `json:"itemCount"`
	Total     decimal.Decimal `json:"total"`
}

type CartLineView struct {
	CartLine
	Subtotal decimal.Decimal `json:"subtotal"`
}
