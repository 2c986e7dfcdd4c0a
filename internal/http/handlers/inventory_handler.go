package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"storefront/internal/domain"
	applog "storefront/internal/log"
	"storefront/internal/services"
)

type InventoryHandler struct {
	Inv *services.InventoryService
}

type adjustRequest struct {
	Quantity int `json:"quantity"`
}

func (h *InventoryHandler) Availability(c *fiber.Ctx) error {
	id, err := param(c, "id")
	if err != nil {
		return err
	}
	avail, err := h.Inv.Availability(c.UserContext(), id)
	if err != nil {
		return err
	}
	return ok(c, avail)
}

// Adjust runs one of add, remove, reserve or release.
func (h *InventoryHandler) Adjust(c *fiber.Ctx) error {
	id, err := param(c, "id")
	if err != nil {
		return err
	}
	var op func(context.Context, string, int) (domain.Availability, error)
	switch c.Params("op") {
	case "add":
		op = h.Inv.Add
	case "remove":
		op = h.Inv.Remove
	case "reserve":
		op = h.Inv.Reserve
	case "release":
		op = h.Inv.Release
	default:
		return fiber.ErrNotFound
	}
	var in adjustRequest
	if err := bind(c, &in); err != nil {
		return err
	}
	avail, err := op(c.UserContext(), id, in.Quantity)
	if err != nil {
		return err
	}
	applog.Audit(c, "inventory."+c.Params("op"), map[string]any{
		"product_id": id, "qty": in.Quantity, "available": avail.AvailableQuantity,
	})
	return ok(c, avail)
}

func (h *InventoryHandler) LowStock(c *fiber.Ctx) error {
	rows, err := h.Inv.LowStock(c.UserContext())
	if err != nil {
		return err
	}
	return ok(c, rows)
}
