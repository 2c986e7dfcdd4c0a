package handlers

import (
	"github.com/gofiber/fiber/v2"

	"storefront/internal/domain"
	applog "storefront/internal/log"
	"storefront/internal/services"
)

type ProductHandler struct {
	Catalog *services.CatalogService
}

// List serves the catalog and its search. Only admins may ask for inactive
// products.
func (h *ProductHandler) List(c *fiber.Ctx) error {
	page, limit := pageQuery(c)
	q := services.ProductQuery{
		Q:         c.Query("q"),
		Category:  c.Query("category"),
		Brand:     c.Query("brand"),
		Condition: c.Query("condition"),
		MinPrice:  c.Query("minPrice"),
		MaxPrice:  c.Query("maxPrice"),
		Sort:      c.Query("sort"),
		Page:      page,
		Limit:     limit,
	}
	if currentUser(c).HasRole(domain.RoleAdmin) {
		q.IncludeInactive = c.QueryBool("includeInactive")
	}
	items, pg, err := h.Catalog.ListProducts(c.UserContext(), q)
	if err != nil {
		return err
	}
	return paged(c, items, pg)
}

func (h *ProductHandler) Get(c *fiber.Ctx) error {
	id, err := param(c, "id")
	if err != nil {
		return err
	}
	p, err := h.Catalog.GetProduct(c.UserContext(), id, currentUser(c).HasRole(domain.RoleAdmin))
	if err != nil {
		return err
	}
	return ok(c, p)
}

func (h *ProductHandler) Create(c *fiber.Ctx) error {
	var in services.ProductInput
	if err := bind(c, &in); err != nil {
		return err
	}
	p, err := h.Catalog.CreateProduct(c.UserContext(), in)
	if err != nil {
		return err
	}
	applog.Audit(c, "product.create", map[string]any{"product_id": p.ID, "slug": p.Slug})
	return created(c, p)
}

func (h *ProductHandler) Update(c *fiber.Ctx) error {
	id, err := param(c, "id")
	if err != nil {
		return err
	}
	var in services.ProductPatch
	if err := bind(c, &in); err != nil {
		return err
	}
	p, err := h.Catalog.UpdateProduct(c.UserContext(), id, in)
	if err != nil {
		return err
	}
	applog.Audit(c, "product.update", map[string]any{"product_id": p.ID})
	return ok(c, p)
}

func (h *ProductHandler) Delete(c *fiber.Ctx) error {
	id, err := param(c, "id")
	if err != nil {
		return err
	}
	if err := h.Catalog.DeleteProduct(c.UserContext(), id); err != nil {
		return err
	}
	applog.Audit(c, "product.delete", map[string]any{"product_id": id})
	return done(c, "product deleted")
}

func (h *ProductHandler) CreateVariant(c *fiber.Ctx) error {
	id, err := param(c, "id")
	if err != nil {
		return err
	}
	var in services.VariantInput
	if err := bind(c, &in); err != nil {
		return err
	}
	v, err := h.Catalog.CreateVariant(c.UserContext(), id, in)
	if err != nil {
		return err
	}
	applog.Audit(c, "product.variant.create", map[string]any{"product_id": id, "sku": v.SKU})
	return created(c, v)
}

func (h *ProductHandler) DeleteVariant(c *fiber.Ctx) error {
	id, err := param(c, "id")
	if err != nil {
		return err
	}
	vid, err := param(c, "variantId")
	if err != nil {
		return err
	}
	if err := h.Catalog.DeleteVariant(c.UserContext(), id, vid); err != nil {
		return err
	}
	applog.Audit(c, "product.variant.delete", map[string]any{"product_id": id, "variant_id": vid})
	return done(c, "variant deleted")
}
