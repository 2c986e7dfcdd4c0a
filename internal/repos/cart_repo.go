package repos

import (
	"context"

	"github.com/jmoiron/sqlx"

	"storefront/internal/domain"
)

// CartRepo stores cart lines. A user's cart is the set of their lines.
type CartRepo struct{ db sqlx.ExtContext }

func NewCartRepo(db sqlx.ExtContext) *CartRepo { return &CartRepo{db: db} }

func (r *CartRepo) WithTx(tx *sqlx.Tx) *CartRepo { return &CartRepo{db: tx} }

const cartItemColumns = `id, user_id, product_id, quantity, created_at, updated_at`

// Lines returns the user's cart joined with current product data.
func (r *CartRepo) Lines(ctx context.Context, userID string) ([]domain.CartLine, error) {
	out := []domain.CartLine{}
	err := sel(ctx, r.db, &out, `
	  SELECT ci.id, ci.product_id, p.name, p.slug, p.images_json, p.price, ci.quantity, p.active,
	         (p.total_quantity - p.reserved_quantity) AS available_quantity
	  FROM cart_items ci JOIN products p ON p.id = ci.product_id
	  WHERE ci.user_id = ?
	  ORDER BY ci.created_at
	`, userID)
	return out, err
}

// Find returns the line for (user, product), or sql.ErrNoRows.
func (r *CartRepo) Find(ctx context.Context, userID, productID string) (domain.CartItem, error) {
	var it domain.CartItem
	err := get(ctx, r.db, &it, `SELECT `+cartItemColumns+` FROM cart_items WHERE user_id = ? AND product_id = ?`,
		userID, productID)
	return it, err
}

// Get returns the line with itemID only if it belongs to userID.
func (r *CartRepo) Get(ctx context.Context, userID, itemID string) (domain.CartItem, error) {
	var it domain.CartItem
	err := get(ctx, r.db, &it, `SELECT `+cartItemColumns+` FROM cart_items WHERE id = ? AND user_id = ?`,
		itemID, userID)
	return it, err
}

func (r *CartRepo) Insert(ctx context.Context, it *domain.CartItem) error {
	it.CreatedAt = now()
	it.UpdatedAt = it.CreatedAt
	_, err := exec(ctx, r.db, `
		INSERT INTO cart_items(id, user_id, product_id, quantity, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?, ?)
	`, it.ID, it.UserID, it.ProductID, it.Quantity, it.CreatedAt, it.UpdatedAt)
	return err
}

func (r *CartRepo) SetQuantity(ctx context.Context, itemID string, qty int) error {
	return affected(exec(ctx, r.db, `UPDATE cart_items SET quantity = ?, updated_at = ? WHERE id = ?`,
		qty, now(), itemID))
}

func (r *CartRepo) Delete(ctx context.Context, userID, itemID string) error {
	return affected(exec(ctx, r.db, `DELETE FROM cart_items WHERE id = ? AND user_id = ?`, itemID, userID))
}

func (r *CartRepo) Clear(ctx context.Context, userID string) (int64, error) {
	res, err := exec(ctx, r.db, `DELETE FROM cart_items WHERE user_id = ?`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
