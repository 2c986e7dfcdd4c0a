package repos

import (
	"context"

	"github.com/jmoiron/sqlx"

	"storefront/internal/domain"
)

// InventoryRepo owns the stock counters on products. Every mutation is a
// single conditional UPDATE; ErrNoRowsAffected means the condition failed
// (or the product does not exist).
type InventoryRepo struct{ db sqlx.ExtContext }

func NewInventoryRepo(db sqlx.ExtContext) *InventoryRepo { return &InventoryRepo{db: db} }

func (r *InventoryRepo) WithTx(tx *sqlx.Tx) *InventoryRepo { return &InventoryRepo{db: tx} }

// Get returns the inventory block for a product, or sql.ErrNoRows.
func (r *InventoryRepo) Get(ctx context.Context, productID string) (domain.Inventory, error) {
	var inv domain.Inventory
	err := get(ctx, r.db, &inv, `
		SELECT total_quantity, reserved_quantity,
		       (total_quantity - reserved_quantity) AS available_quantity, low_stock_threshold
		FROM products WHERE id = ?
	`, productID)
	return inv, err
}

// Available returns total - reserved for a product.
func (r *InventoryRepo) Available(ctx context.Context, productID string) (int, error) {
	var qty int
	err := get(ctx, r.db, &qty, `SELECT total_quantity - reserved_quantity FROM products WHERE id = ?`, productID)
	return qty, err
}

func (r *InventoryRepo) Add(ctx context.Context, productID string, by int) error {
	return affected(exec(ctx, r.db, `
		UPDATE products SET total_quantity = total_quantity + ?, updated_at = ?
		WHERE id = ?
	`, by, now(), productID))
}

// Remove never takes total below what is reserved.
func (r *InventoryRepo) Remove(ctx context.Context, productID string, by int) error {
	return affected(exec(ctx, r.db, `
		UPDATE products SET total_quantity = total_quantity - ?, updated_at = ?
		WHERE id = ? AND total_quantity - ? >= reserved_quantity
	`, by, now(), productID, by))
}

func (r *InventoryRepo) Reserve(ctx context.Context, productID string, by int) error {
	return affected(exec(ctx, r.db, `
		UPDATE products SET reserved_quantity = reserved_quantity + ?, updated_at = ?
		WHERE id = ? AND total_quantity - reserved_quantity >= ?
	`, by, now(), productID, by))
}

func (r *InventoryRepo) Release(ctx context.Context, productID string, by int) error {
	return affected(exec(ctx, r.db, `
		UPDATE products SET reserved_quantity = reserved_quantity - ?, updated_at = ?
		WHERE id = ? AND reserved_quantity >= ?
	`, by, now(), productID, by))
}

// Row used by the admin inventory listing.
type InventoryRow struct {
	ProductID string `db:"product_id" json:"productId"`
	Name      string `db:"name" json:"name"`
	domain.Inventory
}

// Low lists active products at or below their low-stock threshold.
func (r *InventoryRepo) Low(ctx context.Context) ([]InventoryRow, error) {
	rows := []InventoryRow{}
	err := sel(ctx, r.db, &rows, `
		SELECT id AS product_id, name, total_quantity, reserved_quantity,
		       (total_quantity - reserved_quantity) AS available_quantity, low_stock_threshold
		FROM products
		WHERE active = ? AND (total_quantity - reserved_quantity) <= low_stock_threshold
		ORDER BY (total_quantity - reserved_quantity), name
	`, true)
	return rows, err
}
