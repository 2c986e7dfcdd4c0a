package handlers

import (
	"github.com/gofiber/fiber/v2"

	applog "storefront/internal/log"
	"storefront/internal/services"
)

type WishlistHandler struct {
	Wish *services.WishlistService
}

func (h *WishlistHandler) List(c *fiber.Ctx) error {
	items, err := h.Wish.List(c.UserContext(), currentUser(c).ID)
	if err != nil {
		return err
	}
	return ok(c, items)
}

func (h *WishlistHandler) Add(c *fiber.Ctx) error {
	var in services.WishlistInput
	if err := bind(c, &in); err != nil {
		return err
	}
	it, err := h.Wish.Add(c.UserContext(), currentUser(c).ID, in)
	if err != nil {
		return err
	}
	applog.Audit(c, "wishlist.save", map[string]any{"product_id": it.ProductID})
	return created(c, it)
}

func (h *WishlistHandler) Update(c *fiber.Ctx) error {
	pid, err := param(c, "productId")
	if err != nil {
		return err
	}
	var in services.WishlistPatch
	if err := bind(c, &in); err != nil {
		return err
	}
	it, err := h.Wish.Update(c.UserContext(), currentUser(c).ID, pid, in)
	if err != nil {
		return err
	}
	return ok(c, it)
}

func (h *WishlistHandler) Remove(c *fiber.Ctx) error {
	pid, err := param(c, "productId")
	if err != nil {
		return err
	}
	if err := h.Wish.Remove(c.UserContext(), currentUser(c).ID, pid); err != nil {
		return err
	}
	applog.Audit(c, "wishlist.unsave", map[string]any{"product_id": pid})
	return done(c, "removed from wishlist")
}
