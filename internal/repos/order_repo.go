package repos

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"

	"storefront/internal/domain"
)

type OrderRepo struct{ db sqlx.ExtContext }

func NewOrderRepo(db sqlx.ExtContext) *OrderRepo { return &OrderRepo{db: db} }

func (r *OrderRepo) WithTx(tx *sqlx.Tx) *OrderRepo { return &OrderRepo{db: tx} }

const orderColumns = `id, user_id, status, total, payment_method, shipping_address, notes, created_at, updated_at`

type OrderFilter struct {
	UserID        string
	Status        string
	Limit, Offset int
}

// Create inserts the header and every line. Call it inside a transaction.
func (r *OrderRepo) Create(ctx context.Context, o *domain.Order) error {
	o.CreatedAt = now()
	o.UpdatedAt = o.CreatedAt
	if _, err := exec(ctx, r.db, `
	  INSERT INTO orders(id, user_id, status, total, payment_method, shipping_address, notes, created_at, updated_at)
	  VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, o.ID, o.UserID, o.Status, o.Total, o.PaymentMethod, o.ShippingAddress, o.Notes, o.CreatedAt, o.UpdatedAt); err != nil {
		return err
	}
	for i := range o.Items {
		it := &o.Items[i]
		it.OrderID = o.ID
		if _, err := exec(ctx, r.db, `
		  INSERT INTO order_items(id, order_id, product_id, product_name, quantity, price)
		  VALUES(?, ?, ?, ?, ?, ?)
		`, it.ID, it.OrderID, it.ProductID, it.ProductName, it.Quantity, it.Price); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the order with its items, or sql.ErrNoRows.
func (r *OrderRepo) Get(ctx context.Context, id string) (domain.Order, error) {
	var o domain.Order
	if err := get(ctx, r.db, &o, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id); err != nil {
		return domain.Order{}, err
	}
	items, err := r.Items(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	o.Items = items
	return o, nil
}

func (r *OrderRepo) Items(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	items := []domain.OrderItem{}
	err := sel(ctx, r.db, &items, `
		SELECT id, order_id, product_id, product_name, quantity, price
		FROM order_items WHERE order_id = ?
		ORDER BY product_name, id
	`, orderID)
	return items, err
}

// List returns headers only, newest first, plus the total match count.
func (r *OrderRepo) List(ctx context.Context, f OrderFilter) ([]domain.Order, int, error) {
	where := []string{"1=1"}
	args := []any{}
	if f.UserID != "" {
		where = append(where, `user_id = ?`)
		args = append(args, f.UserID)
	}
	if f.Status != "" {
		where = append(where, `status = ?`)
		args = append(args, f.Status)
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := get(ctx, r.db, &total, `SELECT COUNT(*) FROM orders WHERE `+cond, args...); err != nil {
		return nil, 0, err
	}
	out := []domain.Order{}
	err := sel(ctx, r.db, &out, `
		SELECT `+orderColumns+` FROM orders
		WHERE `+cond+`
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?`, append(args, f.Limit, f.Offset)...)
	return out, total, err
}

// UpdateDetails writes the customer-editable fields.
func (r *OrderRepo) UpdateDetails(ctx context.Context, o *domain.Order) error {
	o.UpdatedAt = now()
	return affected(exec(ctx, r.db, `
		UPDATE orders SET shipping_address = ?, notes = ?, payment_method = ?, updated_at = ?
		WHERE id = ?
	`, o.ShippingAddress, o.Notes, o.PaymentMethod, o.UpdatedAt, o.ID))
}

// UpdateStatus moves an order from one status to another. It affects no
// rows when the order is no longer in the from status.
func (r *OrderRepo) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus) error {
	return affected(exec(ctx, r.db, `UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to, now(), id, from))
}

func (r *OrderRepo) Delete(ctx context.Context, id string) error {
	return affected(exec(ctx, r.db, `DELETE FROM orders WHERE id = ?`, id))
}
