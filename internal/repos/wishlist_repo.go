package repos

import (
	"context"

	"github.com/jmoiron/sqlx"

	"storefront/internal/domain"
)

type WishlistRepo struct{ db sqlx.ExtContext }

func NewWishlistRepo(db sqlx.ExtContext) *WishlistRepo { return &WishlistRepo{db: db} }

func (r *WishlistRepo) WithTx(tx *sqlx.Tx) *WishlistRepo { return &WishlistRepo{db: tx} }

// Add inserts the item unless the user already has it. ErrNoRowsAffected
// means it was already present.
func (r *WishlistRepo) Add(ctx context.Context, userID, productID, note, priority string) error {
	return affected(exec(ctx, r.db, `
	  INSERT INTO wishlist_items(user_id, product_id, note, priority, created_at)
	  VALUES(?, ?, ?, ?, ?)
	  ON CONFLICT(user_id, product_id) DO NOTHING
	`, userID, productID, note, priority, now()))
}

func (r *WishlistRepo) Update(ctx context.Context, userID, productID, note, priority string) error {
	return affected(exec(ctx, r.db, `
	  UPDATE wishlist_items SET note = ?, priority = ? WHERE user_id = ? AND product_id = ?
	`, note, priority, userID, productID))
}

func (r *WishlistRepo) Remove(ctx context.Context, userID, productID string) error {
	return affected(exec(ctx, r.db, `DELETE FROM wishlist_items WHERE user_id = ? AND product_id = ?`, userID, productID))
}

func (r *WishlistRepo) Get(ctx context.Context, userID, productID string) (domain.WishlistItem, error) {
	var it domain.WishlistItem
	err := get(ctx, r.db, &it, wishlistSelect+` WHERE wi.user_id = ? AND wi.product_id = ?`, userID, productID)
	return it, err
}

func (r *WishlistRepo) List(ctx context.Context, userID string) ([]domain.WishlistItem, error) {
	out := []domain.WishlistItem{}
	err := sel(ctx, r.db, &out, wishlistSelect+`
	  WHERE wi.user_id = ?
	  ORDER BY CASE wi.priority WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END, wi.created_at DESC
	`, userID)
	return out, err
}

const wishlistSelect = `
	  SELECT p.id AS product_id, p.name, p.slug, p.price, p.active,
	         (p.total_quantity - p.reserved_quantity) AS available_quantity,
	         wi.note, wi.priority, wi.created_at
	  FROM wishlist_items wi
	  JOIN products p ON p.id = wi.product_id`
