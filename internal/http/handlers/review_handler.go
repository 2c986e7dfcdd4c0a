package handlers

import (
	"github.com/gofiber/fiber/v2"

	applog "storefront/internal/log"
	"storefront/internal/services"
)

type ReviewHandler struct {
	Reviews *services.ReviewService
}

func (h *ReviewHandler) ListByProduct(c *fiber.Ctx) error {
	id, err := param(c, "productId")
	if err != nil {
		return err
	}
	page, limit := pageQuery(c)
	items, pg, err := h.Reviews.ListByProduct(c.UserContext(), id, page, limit)
	if err != nil {
		return err
	}
	return paged(c, items, pg)
}

func (h *ReviewHandler) Create(c *fiber.Ctx) error {
	var in services.ReviewInput
	if err := bind(c, &in); err != nil {
		return err
	}
	rv, err := h.Reviews.Create(c.UserContext(), currentUser(c).ID, in)
	if err != nil {
		return err
	}
	applog.Audit(c, "review.create", map[string]any{"review_id": rv.ID, "product_id": rv.ProductID})
	return created(c, rv)
}

func (h *ReviewHandler) Delete(c *fiber.Ctx) error {
	id, err := param(c, "id")
	if err != nil {
		return err
	}
	if err := h.Reviews.Delete(c.UserContext(), currentUser(c), id); err != nil {
		return err
	}
	applog.Audit(c, "review.delete", map[string]any{"review_id": id})
	return done(c, "review deleted")
}
