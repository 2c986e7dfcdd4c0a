package repos

import (
	"context"

	"github.com/jmoiron/sqlx"

	"storefront/internal/domain"
)

type ReviewRepo struct{ db sqlx.ExtContext }

func NewReviewRepo(db sqlx.ExtContext) *ReviewRepo { return &ReviewRepo{db: db} }

func (r *ReviewRepo) WithTx(tx *sqlx.Tx) *ReviewRepo { return &ReviewRepo{db: tx} }

const reviewSelect = `
	SELECT rv.id, rv.product_id, rv.user_id, u.name AS user_name, rv.rating, rv.title, rv.comment,
	       rv.created_at, rv.updated_at
	FROM reviews rv JOIN users u ON u.id = rv.user_id`

func (r *ReviewRepo) ListByProduct(ctx context.Context, productID string, limit, offset int) ([]domain.Review, int, error) {
	var total int
	if err := get(ctx, r.db, &total, `SELECT COUNT(*) FROM reviews WHERE product_id = ?`, productID); err != nil {
		return nil, 0, err
	}
	out := []domain.Review{}
	err := sel(ctx, r.db, &out, reviewSelect+`
	WHERE rv.product_id = ?
	ORDER BY rv.created_at DESC, rv.id
	LIMIT ? OFFSET ?`, productID, limit, offset)
	return out, total, err
}

func (r *ReviewRepo) Get(ctx context.Context, id string) (domain.Review, error) {
	var rv domain.Review
	err := get(ctx, r.db, &rv, reviewSelect+` WHERE rv.id = ?`, id)
	return rv, err
}

// Create fails with a unique violation when the user already reviewed the product.
func (r *ReviewRepo) Create(ctx context.Context, rv *domain.Review) error {
	rv.CreatedAt = now()
	rv.UpdatedAt = rv.CreatedAt
	_, err := exec(ctx, r.db, `
		INSERT INTO reviews(id, product_id, user_id, rating, title, comment, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)
	`, rv.ID, rv.ProductID, rv.UserID, rv.Rating, rv.Title, rv.Comment, rv.CreatedAt, rv.UpdatedAt)
	return err
}

func (r *ReviewRepo) Update(ctx context.Context, rv *domain.Review) error {
	rv.UpdatedAt = now()
	return affected(exec(ctx, r.db, `
		UPDATE reviews SET rating = ?, title = ?, comment = ?, updated_at = ? WHERE id = ?
	`, rv.Rating, rv.Title, rv.Comment, rv.UpdatedAt, rv.ID))
}

func (r *ReviewRepo) Delete(ctx context.Context, id string) error {
	return affected(exec(ctx, r.db, `DELETE FROM reviews WHERE id = ?`, id))
}
