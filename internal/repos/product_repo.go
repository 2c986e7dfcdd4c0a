package repos

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

type ProductRepo struct{ db sqlx.ExtContext }

func NewProductRepo(db sqlx.ExtContext) *ProductRepo { return &ProductRepo{db: db} }

func (r *ProductRepo) WithTx(tx *sqlx.Tx) *ProductRepo { return &ProductRepo{db: tx} }

const productColumns = `
    p.id, p.category_id, p.name, p.slug, p.description, p.brand, p.price, p.original_price,
    p.images_json, p.product_type, p.condition, p.active,
    p.total_quantity, p.reserved_quantity, (p.total_quantity - p.reserved_quantity) AS available_quantity,
    p.low_stock_threshold, p.rating_avg, p.rating_count, p.created_at, p.updated_at`

type ProductFilter struct {
	Q               string
	CategoryID      string
	Brand           string
	Condition       string
	MinPrice        *decimal.Decimal
	MaxPrice        *decimal.Decimal
	IncludeInactive bool
	Sort            string // newest | price_asc | price_desc | rating
	Limit, Offset   int
}

func (f ProductFilter) orderBy() string {
	switch f.Sort {
	case "price_asc":
		return `p.price ASC, p.created_at DESC`
	case "price_desc":
		return `p.price DESC, p.created_at DESC`
	case "rating":
		return `p.rating_avg DESC, p.rating_count DESC`
	case "name":
		return `LOWER(p.name) ASC`
	default:
		return `p.created_at DESC`
	}
}

// List returns one page of products matching f and the total match count.
func (r *ProductRepo) List(ctx context.Context, f ProductFilter) ([]domain.Product, int, error) {
	where := []string{"1=1"}
	args := []any{}
	if !f.IncludeInactive {
		where = append(where, `p.active = ?`)
		args = append(args, true)
	}
	if q := strings.ToLower(strings.TrimSpace(f.Q)); q != "" {
		where = append(where, `(LOWER(p.name) LIKE ? OR LOWER(p.description) LIKE ? OR LOWER(p.brand) LIKE ?)`)
		like := "%" + q + "%"
		args = append(args, like, like, like)
	}
	if f.CategoryID != "" {
		where = append(where, `p.category_id = ?`)
		args = append(args, f.CategoryID)
	}
	if f.Brand != "" {
		where = append(where, `LOWER(p.brand) = ?`)
		args = append(args, strings.ToLower(f.Brand))
	}
	if f.Condition != "" {
		where = append(where, `p.condition = ?`)
		args = append(args, f.Condition)
	}
	if f.MinPrice != nil {
		where = append(where, `p.price >= ?`)
		args = append(args, *f.MinPrice)
	}
	if f.MaxPrice != nil {
		where = append(where, `p.price <= ?`)
		args = append(args, *f.MaxPrice)
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := get(ctx, r.db, &total, `SELECT COUNT(*) FROM products p WHERE `+cond, args...); err != nil {
		return nil, 0, err
	}

	out := []domain.Product{}
	err := sel(ctx, r.db, &out, `
	  SELECT `+productColumns+`
	  FROM products p
	  WHERE `+cond+`
	  ORDER BY `+f.orderBy()+`
	  LIMIT ? OFFSET ?`, append(args, f.Limit, f.Offset)...)
	return out, total, err
}

// Get looks a product up by id or slug.
func (r *ProductRepo) Get(ctx context.Context, idOrSlug string) (domain.Product, error) {
	var p domain.Product
	err := get(ctx, r.db, &p, `SELECT `+productColumns+` FROM products p WHERE p.id = ? OR p.slug = ?`, idOrSlug, idOrSlug)
	return p, err
}

func (r *ProductRepo) SlugTaken(ctx context.Context, slug, exceptID string) (bool, error) {
	var n int
	err := get(ctx, r.db, &n, `SELECT COUNT(*) FROM products WHERE slug = ? AND id <> ?`, slug, exceptID)
	return n > 0, err
}

func (r *ProductRepo) Create(ctx context.Context, p *domain.Product) error {
	p.CreatedAt = now()
	p.UpdatedAt = p.CreatedAt
	if p.Images == nil {
		p.Images = domain.StringList{}
	}
	_, err := exec(ctx, r.db, `
		INSERT INTO products(
		  id, category_id, name, slug, description, brand, price, original_price, images_json,
		  product_type, condition, active, total_quantity, reserved_quantity, low_stock_threshold,
		  rating_avg, rating_count, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, 0, 0, ?, ?)
	`, p.ID, p.CategoryID, p.Name, p.Slug, p.Description, p.Brand, p.Price, p.OriginalPrice, p.Images,
		p.ProductType, p.Condition, p.Active, p.TotalQuantity, p.LowStockThreshold, p.CreatedAt, p.UpdatedAt)
	if err == nil {
		p.AvailableQuantity = p.TotalQuantity
	}
	return err
}

// Update writes catalog fields only. Inventory counters and rating
// aggregates have their own writers.
func (r *ProductRepo) Update(ctx context.Context, p *domain.Product) error {
	p.UpdatedAt = now()
	return affected(exec(ctx, r.db, `
		UPDATE products SET
		  category_id = ?, name = ?, slug = ?, description = ?, brand = ?, price = ?, original_price = ?,
		  images_json = ?, product_type = ?, condition = ?, active = ?, low_stock_threshold = ?, updated_at = ?
		WHERE id = ?
	`, p.CategoryID, p.Name, p.Slug, p.Description, p.Brand, p.Price, p.OriginalPrice,
		p.Images, p.ProductType, p.Condition, p.Active, p.LowStockThreshold, p.UpdatedAt, p.ID))
}

func (r *ProductRepo) Delete(ctx context.Context, id string) error {
	return affected(exec(ctx, r.db, `DELETE FROM products WHERE id = ?`, id))
}

// RefreshRating recomputes the denormalized rating aggregate from reviews.
func (r *ProductRepo) RefreshRating(ctx context.Context, productID string) error {
	return affected(exec(ctx, r.db, `
		UPDATE products SET
		  rating_avg   = COALESCE((SELECT AVG(rating) FROM reviews WHERE product_id = ?), 0),
		  rating_count = (SELECT COUNT(*) FROM reviews WHERE product_id = ?),
		  updated_at   = ?
		WHERE id = ?
	`, productID, productID, now(), productID))
}

// ---------- Variants ----------

const variantColumns = `
    id, product_id, sku, name, attributes_json, price, total_quantity, reserved_quantity,
    (total_quantity - reserved_quantity) AS available_quantity, created_at`

func (r *ProductRepo) Variants(ctx context.Context, productID string) ([]domain.ProductVariant, error) {
	out := []domain.ProductVariant{}
	err := sel(ctx, r.db, &out, `SELECT `+variantColumns+` FROM product_variants WHERE product_id = ? ORDER BY name`, productID)
	return out, err
}

func (r *ProductRepo) CreateVariant(ctx context.Context, v *domain.ProductVariant) error {
	v.CreatedAt = now()
	if v.Attributes == nil {
		v.Attributes = domain.Attributes{}
	}
	_, err := exec(ctx, r.db, `
		INSERT INTO product_variants(id, product_id, sku, name, attributes_json, price, total_quantity, reserved_quantity, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, 0, ?)
	`, v.ID, v.ProductID, v.SKU, v.Name, v.Attributes, v.Price, v.TotalQuantity, v.CreatedAt)
	if err == nil {
		v.Available = v.TotalQuantity
	}
	return err
}

func (r *ProductRepo) DeleteVariant(ctx context.Context, productID, variantID string) error {
	return affected(exec(ctx, r.db, `DELETE FROM product_variants WHERE id = ? AND product_id = ?`, variantID, productID))
}
