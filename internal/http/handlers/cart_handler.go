package handlers

import (
	"github.com/gofiber/fiber/v2"

	applog "storefront/internal/log"
	"storefront/internal/services"
)

type CartHandler struct {
	Cart *services.CartService
}

func (h *CartHandler) View(c *fiber.Ctx) error {
	cv, err := h.Cart.View(c.UserContext(), currentUser(c).ID)
	if err != nil {
		return err
	}
	return ok(c, cv)
}

func (h *CartHandler) Add(c *fiber.Ctx) error {
	var in services.AddItemInput
	if err := bind(c, &in); err != nil {
		return err
	}
	u := currentUser(c)
	if _, err := h.Cart.Add(c.UserContext(), u.ID, in.ProductID, in.Quantity); err != nil {
		return err
	}
	applog.Audit(c, "cart.add", map[string]any{"product_id": in.ProductID, "qty": in.Quantity})
	return h.view(c, fiber.StatusCreated)
}

func (h *CartHandler) Update(c *fiber.Ctx) error {
	itemID, err := param(c, "itemId")
	if err != nil {
		return err
	}
	var in services.UpdateItemInput
	if err := bind(c, &in); err != nil {
		return err
	}
	if _, err := h.Cart.UpdateItem(c.UserContext(), currentUser(c).ID, itemID, in.Quantity); err != nil {
		return err
	}
	return h.view(c, fiber.StatusOK)
}

func (h *CartHandler) Remove(c *fiber.Ctx) error {
	itemID, err := param(c, "itemId")
	if err != nil {
		return err
	}
	if err := h.Cart.RemoveItem(c.UserContext(), currentUser(c).ID, itemID); err != nil {
		return err
	}
	return h.view(c, fiber.StatusOK)
}

func (h *CartHandler) Clear(c *fiber.Ctx) error {
	if err := h.Cart.Clear(c.UserContext(), currentUser(c).ID); err != nil {
		return err
	}
	return done(c, "cart cleared")
}

// view answers a cart mutation with the whole cart.
func (h *CartHandler) view(c *fiber.Ctx, status int) error {
	cv, err := h.Cart.View(c.UserContext(), currentUser(c).ID)
	if err != nil {
		return err
	}
	return render(c, status, cv)
}
