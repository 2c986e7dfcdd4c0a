package services

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"storefront/internal/apperr"
	"storefront/internal/cache"
	"storefront/internal/domain"
	"storefront/internal/repos"
	"storefront/internal/validate"
)

type CatalogService struct {
	Cats  *repos.CategoryRepo
	Prods *repos.ProductRepo
	Cache cache.ProductCache
}

func NewCatalogService(cats *repos.CategoryRepo, prods *repos.ProductRepo, c cache.ProductCache) *CatalogService {
	if c == nil {
		c = cache.Noop{}
	}
	return &CatalogService{Cats: cats, Prods: prods, Cache: c}
}

// ---------- Categories ----------

type CategoryInput struct {
	Name        string  `json:"name" validate:"required,min=2,max=100"`
	Slug        string  `json:"slug" validate:"omitempty,slug,max=120"`
	Description string  `json:"description" validate:"max=1000"`
	ParentID    *string `json:"parentId" validate:"omitempty,id"`
}

// CategoryPatch lists the fields an update may touch. An empty ParentID
// detaches the category from its parent.
type CategoryPatch struct {
	Name        *string `json:"name" validate:"omitempty,min=2,max=100"`
	Slug        *string `json:"slug" validate:"omitempty,slug,max=120"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	ParentID    *string `json:"parentId"`
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.Cats.List(ctx)
}

func (s *CatalogService) GetCategory(ctx context.Context, idOrSlug string) (domain.Category, error) {
	c, err := s.Cats.Get(ctx, idOrSlug)
	return c, missing(err, "category")
}

func (s *CatalogService) CreateCategory(ctx context.Context, in CategoryInput) (domain.Category, error) {
	if err := validate.Struct(in); err != nil {
		return domain.Category{}, err
	}
	c := domain.Category{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(in.Name),
		Slug:        in.Slug,
		Description: strings.TrimSpace(in.Description),
	}
	if c.Slug == "" {
		c.Slug = domain.Slugify(c.Name)
	}
	if c.Slug == "" {
		return domain.Category{}, apperr.Validation("validation failed", map[string]string{"slug": "cannot be derived from name"})
	}
	if in.ParentID != nil && *in.ParentID != "" {
		if _, err := s.Cats.Get(ctx, *in.ParentID); err != nil {
			if repos.IsNotFound(err) {
				return domain.Category{}, apperr.Validation("validation failed", map[string]string{"parentId": "does not exist"})
			}
			return domain.Category{}, err
		}
		c.ParentID = in.ParentID
	}
	if err := s.Cats.Create(ctx, &c); err != nil {
		if repos.IsUniqueViolation(err) {
			return domain.Category{}, apperr.Conflict("category name or slug already exists")
		}
		return domain.Category{}, err
	}
	return c, nil
}

func (s *CatalogService) UpdateCategory(ctx context.Context, id string, p CategoryPatch) (domain.Category, error) {
	if err := validate.Struct(p); err != nil {
		return domain.Category{}, err
	}
	c, err := s.Cats.Get(ctx, id)
	if err != nil {
		return domain.Category{}, missing(err, "category")
	}
	if p.Name != nil {
		c.Name = strings.TrimSpace(*p.Name)
	}
	if p.Slug != nil {
		c.Slug = *p.Slug
	}
	if p.Description != nil {
		c.Description = strings.TrimSpace(*p.Description)
	}
	if p.ParentID != nil {
		if *p.ParentID == "" {
			c.ParentID = nil
		} else if err := s.checkParent(ctx, c.ID, *p.ParentID); err != nil {
			return domain.Category{}, err
		} else {
			parent := *p.ParentID
			c.ParentID = &parent
		}
	}
	if err := s.Cats.Update(ctx, &c); err != nil {
		if repos.IsUniqueViolation(err) {
			return domain.Category{}, apperr.Conflict("category name or slug already exists")
		}
		return domain.Category{}, missing(err, "category")
	}
	return c, nil
}

// checkParent rejects unknown parents, self-parenting and cycles.
func (s *CatalogService) checkParent(ctx context.Context, id, parentID string) error {
	if parentID == id {
		return apperr.Validation("validation failed", map[string]string{"parentId": "a category cannot be its own parent"})
	}
	parent, err := s.Cats.Get(ctx, parentID)
	if err != nil {
		if repos.IsNotFound(err) {
			return apperr.Validation("validation failed", map[string]string{"parentId": "does not exist"})
		}
		return err
	}
	ancestors, err := s.Cats.Ancestors(ctx, parent.ID, 32)
	if err != nil {
		return err
	}
	for _, a := range ancestors {
		if a == id {
			return apperr.Validation("validation failed", map[string]string{"parentId": "would create a cycle"})
		}
	}
	return nil
}

func (s *CatalogService) DeleteCategory(ctx context.Context, id string) error {
	c, err := s.Cats.Get(ctx, id)
	if err != nil {
		return missing(err, "category")
	}
	products, children, err := s.Cats.Dependents(ctx, c.ID)
	if err != nil {
		return err
	}
	if products > 0 || children > 0 {
		return apperr.Conflict("category is in use by %d products and %d subcategories", products, children)
	}
	if err := s.Cats.Delete(ctx, c.ID); err != nil {
		if repos.IsForeignKeyViolation(err) {
			return apperr.Conflict("category is in use")
		}
		return missing(err, "category")
	}
	return nil
}

// ---------- Products ----------

type ProductQuery struct {
	Q               string
	Category        string // id or slug
	Brand           string
	Condition       string
	MinPrice        string
	MaxPrice        string
	Sort            string
	Page, Limit     int
	IncludeInactive bool
}

type ProductInput struct {
	CategoryID        string            `json:"categoryId" validate:"required,id"`
	Name              string            `json:"name" validate:"required,min=2,max=200"`
	Slug              string            `json:"slug" validate:"omitempty,slug,max=220"`
	Description       string            `json:"description" validate:"max=5000"`
	Brand             string            `json:"brand" validate:"max=100"`
	Price             *decimal.Decimal  `json:"price" validate:"required"`
	OriginalPrice     *decimal.Decimal  `json:"originalPrice"`
	Images            []string          `json:"images" validate:"max=10,dive,max=500"`
	ProductType       string            `json:"productType" validate:"max=50"`
	Condition         string            `json:"condition" validate:"omitempty,condition"`
	Active            *bool             `json:"active"`
	Stock             int               `json:"stock" validate:"gte=0,lte=1000000"`
	LowStockThreshold *int              `json:"lowStockThreshold" validate:"omitempty,gte=0,lte=1000000"`
}

// ProductPatch is the allow-list for product updates. Inventory counters
// and rating aggregates are not writable here.
type ProductPatch struct {
	CategoryID        *string          `json:"categoryId" validate:"omitempty,id"`
	Name              *string          `json:"name" validate:"omitempty,min=2,max=200"`
	Slug              *string          `json:"slug" validate:"omitempty,slug,max=220"`
	Description       *string          `json:"description" validate:"omitempty,max=5000"`
	Brand             *string          `json:"brand" validate:"omitempty,max=100"`
	Price             *decimal.Decimal `json:"price"`
	OriginalPrice     *decimal.Decimal `json:"originalPrice"`
	ClearOriginal     bool             `json:"clearOriginalPrice"`
	Images            *[]string        `json:"images" validate:"omitempty,max=10,dive,max=500"`
	ProductType       *string          `json:"productType" validate:"omitempty,max=50"`
	Condition         *string          `json:"condition" validate:"omitempty,condition"`
	Active            *bool            `json:"active"`
	LowStockThreshold *int             `json:"lowStockThreshold" validate:"omitempty,gte=0,lte=1000000"`
}

type VariantInput struct {
	SKU        string            `json:"sku" validate:"required,max=64"`
	Name       string            `json:"name" validate:"required,max=100"`
	Attributes map[string]string `json:"attributes" validate:"max=20"`
	Price      *decimal.Decimal  `json:"price"`
	Stock      int               `json:"stock" validate:"gte=0,lte=1000000"`
}

func (s *CatalogService) ListProducts(ctx context.Context, q ProductQuery) ([]domain.Product, domain.Pagination, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 20
	}
	f := repos.ProductFilter{
		Q:               q.Q,
		Brand:           strings.TrimSpace(q.Brand),
		Sort:            q.Sort,
		IncludeInactive: q.IncludeInactive,
		Limit:           q.Limit,
		Offset:          offset(q.Page, q.Limit),
	}
	fields := map[string]string{}
	if q.Condition != "" {
		if !isCondition(q.Condition) {
			fields["condition"] = "must be new, used or refurbished"
		}
		f.Condition = q.Condition
	}
	for name, raw := range map[string]string{"minPrice": q.MinPrice, "maxPrice": q.MaxPrice} {
		if raw == "" {
			continue
		}
		d, err := decimal.NewFromString(raw)
		if err != nil || d.IsNegative() {
			fields[name] = "must be a non-negative number"
			continue
		}
		if name == "minPrice" {
			f.MinPrice = &d
		} else {
			f.MaxPrice = &d
		}
	}
	if len(fields) > 0 {
		return nil, domain.Pagination{}, apperr.Validation("invalid query", fields)
	}
	if q.Category != "" {
		c, err := s.Cats.Get(ctx, q.Category)
		if err != nil {
			return nil, domain.Pagination{}, missing(err, "category")
		}
		f.CategoryID = c.ID
	}

	items, total, err := s.Prods.List(ctx, f)
	if err != nil {
		return nil, domain.Pagination{}, err
	}
	for i := range items {
		items[i].Discount = items[i].DiscountPercent()
	}
	return items, domain.NewPagination(q.Page, q.Limit, total), nil
}

// GetProduct reads through the cache. Inactive products are hidden unless
// includeInactive is set.
func (s *CatalogService) GetProduct(ctx context.Context, idOrSlug string, includeInactive bool) (domain.Product, error) {
	p, ok := s.Cache.GetProduct(ctx, idOrSlug)
	if !ok {
		fresh, err := s.loadProduct(ctx, idOrSlug)
		if err != nil {
			return domain.Product{}, err
		}
		s.Cache.SetProduct(ctx, &fresh)
		p = &fresh
	}
	if !p.Active && !includeInactive {
		return domain.Product{}, apperr.NotFound("product")
	}
	return *p, nil
}

func (s *CatalogService) loadProduct(ctx context.Context, idOrSlug string) (domain.Product, error) {
	p, err := s.Prods.Get(ctx, idOrSlug)
	if err != nil {
		return domain.Product{}, missing(err, "product")
	}
	if p.Variants, err = s.Prods.Variants(ctx, p.ID); err != nil {
		return domain.Product{}, err
	}
	p.Discount = p.DiscountPercent()
	return p, nil
}

func (s *CatalogService) CreateProduct(ctx context.Context, in ProductInput) (domain.Product, error) {
	if err := validate.Struct(in); err != nil {
		return domain.Product{}, err
	}
	if err := checkPrices(in.Price, in.OriginalPrice); err != nil {
		return domain.Product{}, err
	}
	if err := s.checkCategory(ctx, in.CategoryID); err != nil {
		return domain.Product{}, err
	}

	p := domain.Product{
		ID:          uuid.NewString(),
		CategoryID:  in.CategoryID,
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Brand:       strings.TrimSpace(in.Brand),
		Price:       *in.Price,
		Images:      in.Images,
		ProductType: in.ProductType,
		Condition:   in.Condition,
		Active:      true,
	}
	if in.OriginalPrice != nil {
		p.OriginalPrice = decimal.NewNullDecimal(*in.OriginalPrice)
	}
	if p.Condition == "" {
		p.Condition = domain.ConditionNew
	}
	if in.Active != nil {
		p.Active = *in.Active
	}
	p.TotalQuantity = in.Stock
	p.LowStockThreshold = 5
	if in.LowStockThreshold != nil {
		p.LowStockThreshold = *in.LowStockThreshold
	}

	slug, err := s.productSlug(ctx, in.Slug, p.Name, "")
	if err != nil {
		return domain.Product{}, err
	}
	p.Slug = slug

	if err := s.Prods.Create(ctx, &p); err != nil {
		if repos.IsUniqueViolation(err) {
			return domain.Product{}, apperr.Conflict("product slug already exists")
		}
		return domain.Product{}, err
	}
	p.Discount = p.DiscountPercent()
	p.Variants = []domain.ProductVariant{}
	return p, nil
}

// productSlug returns the requested slug if free, or derives one from name
// and appends -2, -3... until it is unique.
func (s *CatalogService) productSlug(ctx context.Context, requested, name, exceptID string) (string, error) {
	if requested != "" {
		taken, err := s.Prods.SlugTaken(ctx, requested, exceptID)
		if err != nil {
			return "", err
		}
		if taken {
			return "", apperr.Conflict("product slug %q already exists", requested)
		}
		return requested, nil
	}
	base := domain.Slugify(name)
	if base == "" {
		return "", apperr.Validation("validation failed", map[string]string{"slug": "cannot be derived from name"})
	}
	slug := base
	for i := 2; ; i++ {
		taken, err := s.Prods.SlugTaken(ctx, slug, exceptID)
		if err != nil {
			return "", err
		}
		if !taken {
			return slug, nil
		}
		slug = base + "-" + strconv.Itoa(i)
	}
}

func (s *CatalogService) UpdateProduct(ctx context.Context, id string, in ProductPatch) (domain.Product, error) {
	if err := validate.Struct(in); err != nil {
		return domain.Product{}, err
	}
	p, err := s.Prods.Get(ctx, id)
	if err != nil {
		return domain.Product{}, missing(err, "product")
	}
	before := p

	if in.CategoryID != nil && *in.CategoryID != p.CategoryID {
		if err := s.checkCategory(ctx, *in.CategoryID); err != nil {
			return domain.Product{}, err
		}
		p.CategoryID = *in.CategoryID
	}
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Slug != nil && *in.Slug != p.Slug {
		if p.Slug, err = s.productSlug(ctx, *in.Slug, p.Name, p.ID); err != nil {
			return domain.Product{}, err
		}
	}
	if in.Description != nil {
		p.Description = strings.TrimSpace(*in.Description)
	}
	if in.Brand != nil {
		p.Brand = strings.TrimSpace(*in.Brand)
	}
	if in.Price != nil {
		p.Price = *in.Price
	}
	if in.ClearOriginal {
		p.OriginalPrice = decimal.NullDecimal{}
	} else if in.OriginalPrice != nil {
		p.OriginalPrice = decimal.NewNullDecimal(*in.OriginalPrice)
	}
	var orig *decimal.Decimal
	if p.OriginalPrice.Valid {
		orig = &p.OriginalPrice.Decimal
	}
	if err := checkPrices(&p.Price, orig); err != nil {
		return domain.Product{}, err
	}
	if in.Images != nil {
		p.Images = *in.Images
	}
	if in.ProductType != nil {
		p.ProductType = *in.ProductType
	}
	if in.Condition != nil {
		p.Condition = *in.Condition
	}
	if in.Active != nil {
		p.Active = *in.Active
	}
	if in.LowStockThreshold != nil {
		p.LowStockThreshold = *in.LowStockThreshold
	}

	if err := s.Prods.Update(ctx, &p); err != nil {
		if repos.IsUniqueViolation(err) {
			return domain.Product{}, apperr.Conflict("product slug already exists")
		}
		return domain.Product{}, missing(err, "product")
	}
	s.Cache.InvalidateProduct(ctx, &before)
	s.Cache.InvalidateProduct(ctx, &p)
	return s.loadProduct(ctx, p.ID)
}

func (s *CatalogService) DeleteProduct(ctx context.Context, id string) error {
	p, err := s.Prods.Get(ctx, id)
	if err != nil {
		return missing(err, "product")
	}
	if err := s.Prods.Delete(ctx, p.ID); err != nil {
		return missing(err, "product")
	}
	s.Cache.InvalidateProduct(ctx, &p)
	return nil
}

func (s *CatalogService) CreateVariant(ctx context.Context, productID string, in VariantInput) (domain.ProductVariant, error) {
	if err := validate.Struct(in); err != nil {
		return domain.ProductVariant{}, err
	}
	if in.Price != nil && in.Price.IsNegative() {
		return domain.ProductVariant{}, apperr.Validation("validation failed", map[string]string{"price": "must not be negative"})
	}
	p, err := s.Prods.Get(ctx, productID)
	if err != nil {
		return domain.ProductVariant{}, missing(err, "product")
	}
	v := domain.ProductVariant{
		ID:            uuid.NewString(),
		ProductID:     p.ID,
		SKU:           strings.TrimSpace(in.SKU),
		Name:          strings.TrimSpace(in.Name),
		Attributes:    in.Attributes,
		TotalQuantity: in.Stock,
	}
	if in.Price != nil {
		v.Price = decimal.NewNullDecimal(*in.Price)
	}
	if err := s.Prods.CreateVariant(ctx, &v); err != nil {
		if repos.IsUniqueViolation(err) {
			return domain.ProductVariant{}, apperr.Conflict("sku %q already exists", v.SKU)
		}
		return domain.ProductVariant{}, err
	}
	s.Cache.InvalidateProduct(ctx, &p)
	return v, nil
}

func (s *CatalogService) DeleteVariant(ctx context.Context, productID, variantID string) error {
	p, err := s.Prods.Get(ctx, productID)
	if err != nil {
		return missing(err, "product")
	}
	if err := s.Prods.DeleteVariant(ctx, p.ID, variantID); err != nil {
		return missing(err, "variant")
	}
	s.Cache.InvalidateProduct(ctx, &p)
	return nil
}

func (s *CatalogService) checkCategory(ctx context.Context, id string) error {
	if _, err := s.Cats.Get(ctx, id); err != nil {
		if repos.IsNotFound(err) {
			return apperr.Validation("validation failed", map[string]string{"categoryId": "does not exist"})
		}
		return err
	}
	return nil
}

func checkPrices(price, original *decimal.Decimal) error {
	fields := map[string]string{}
	if price != nil && price.IsNegative() {
		fields["price"] = "must not be negative"
	}
	if original != nil && original.IsNegative() {
		fields["originalPrice"] = "must not be negative"
	}
	if len(fields) > 0 {
		return apperr.Validation("validation failed", fields)
	}
	return nil
}

func isCondition(s string) bool {
	switch s {
	case domain.ConditionNew, domain.ConditionUsed, domain.ConditionRefurbished:
		return true
	}
	return false
}
