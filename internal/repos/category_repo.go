package repos

import (
	"context"

	"github.com/jmoiron/sqlx"

	"storefront/internal/domain"
)

type CategoryRepo struct{ db sqlx.ExtContext }

func NewCategoryRepo(db sqlx.ExtContext) *CategoryRepo { return &CategoryRepo{db: db} }

func (r *CategoryRepo) WithTx(tx *sqlx.Tx) *CategoryRepo { return &CategoryRepo{db: tx} }

const categoryColumns = `id, name, slug, description, parent_id, created_at, updated_at`

func (r *CategoryRepo) List(ctx context.Context) ([]domain.Category, error) {
	out := []domain.Category{}
	err := sel(ctx, r.db, &out, `SELECT `+categoryColumns+` FROM categories ORDER BY name`)
	return out, err
}

func (r *CategoryRepo) Get(ctx context.Context, id string) (domain.Category, error) {
	var c domain.Category
	err := get(ctx, r.db, &c, `SELECT `+categoryColumns+` FROM categories WHERE id = ? OR slug = ?`, id, id)
	return c, err
}

func (r *CategoryRepo) Create(ctx context.Context, c *domain.Category) error {
	c.CreatedAt = now()
	c.UpdatedAt = c.CreatedAt
	_, err := exec(ctx, r.db, `
		INSERT INTO categories(id, name, slug, description, parent_id, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.Name, c.Slug, c.Description, c.ParentID, c.CreatedAt, c.UpdatedAt)
	return err
}

func (r *CategoryRepo) Update(ctx context.Context, c *domain.Category) error {
	c.UpdatedAt = now()
	return affected(exec(ctx, r.db, `
		UPDATE categories SET name = ?, slug = ?, description = ?, parent_id = ?, updated_at = ?
		WHERE id = ?
	`, c.Name, c.Slug, c.Description, c.ParentID, c.UpdatedAt, c.ID))
}

func (r *CategoryRepo) Delete(ctx context.Context, id string) error {
	return affected(exec(ctx, r.db, `DELETE FROM categories WHERE id = ?`, id))
}

// Dependents counts products and child categories pointing at id.
func (r *CategoryRepo) Dependents(ctx context.Context, id string) (products, children int, err error) {
	if err = get(ctx, r.db, &products, `SELECT COUNT(*) FROM products WHERE category_id = ?`, id); err != nil {
		return 0, 0, err
	}
	err = get(ctx, r.db, &children, `SELECT COUNT(*) FROM categories WHERE parent_id = ?`, id)
	return products, children, err
}

// Ancestors walks parent links upward from id, stopping at depth limit.
func (r *CategoryRepo) Ancestors(ctx context.Context, id string, limit int) ([]string, error) {
	var out []string
	cur := id
	for i := 0; i < limit && cur != ""; i++ {
		var parent *string
		if err := get(ctx, r.db, &parent, `SELECT parent_id FROM categories WHERE id = ?`, cur); err != nil {
			return out, err
		}
		if parent == nil {
			break
		}
		out = append(out, *parent)
		cur = *parent
	}
	return out, nil
}
