package handlers

import (
	"github.com/gofiber/fiber/v2"

	"storefront/internal/domain"
	applog "storefront/internal/log"
	"storefront/internal/services"
)

type OrderHandler struct {
	Orders *services.OrderService
}

type statusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

func (h *OrderHandler) List(c *fiber.Ctx) error {
	page, limit := pageQuery(c)
	orders, pg, err := h.Orders.List(c.UserContext(), currentUser(c), services.OrderQuery{
		UserID: c.Query("userId"),
		Status: c.Query("status"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		return err
	}
	return paged(c, orders, pg)
}

// Create places an order from the submitted items. Prices are stored as
// sent; the audit line records both sides for review.
func (h *OrderHandler) Create(c *fiber.Ctx) error {
	var in services.CreateOrderInput
	if err := bind(c, &in); err != nil {
		return err
	}
	o, err := h.Orders.Create(c.UserContext(), currentUser(c).ID, in)
	if err != nil {
		applog.Security(c, "order.create.fail", map[string]any{"error": err.Error()})
		return err
	}
	applog.Audit(c, "order.create", map[string]any{"order_id": o.ID, "total": o.Total.String(), "items": len(o.Items)})
	return created(c, o)
}

func (h *OrderHandler) Checkout(c *fiber.Ctx) error {
	var in services.CheckoutInput
	if err := bind(c, &in); err != nil {
		return err
	}
	o, err := h.Orders.Checkout(c.UserContext(), currentUser(c).ID, in)
	if err != nil {
		applog.Security(c, "order.checkout.fail", map[string]any{"error": err.Error()})
		return err
	}
	applog.Audit(c, "order.checkout", map[string]any{"order_id": o.ID, "total": o.Total.String(), "items": len(o.Items)})
	return created(c, o)
}

func (h *OrderHandler) Get(c *fiber.Ctx) error {
	id, err := param(c, "id")
	if err != nil {
		return err
	}
	o, err := h.Orders.Get(c.UserContext(), currentUser(c), id)
	if err != nil {
		return err
	}
	return ok(c, o)
}

func (h *OrderHandler) Cancel(c *fiber.Ctx) error {
	id, err := param(c, "id")
	if err != nil {
		return err
	}
	o, err := h.Orders.Cancel(c.UserContext(), currentUser(c), id)
	if err != nil {
		return err
	}
	applog.Audit(c, "order.cancel", map[string]any{"order_id": o.ID})
	return ok(c, o)
}

func (h *OrderHandler) Update(c *fiber.Ctx) error {
	id, err := param(c, "id")
	if err != nil {
		return err
	}
	var in services.OrderPatch
	if err := bind(c, &in); err != nil {
		return err
	}
	o, err := h.Orders.Update(c.UserContext(), id, in)
	if err != nil {
		return err
	}
	applog.Audit(c, "admin.orders.update", map[string]any{"order_id": o.ID})
	return ok(c, o)
}

func (h *OrderHandler) UpdateStatus(c *fiber.Ctx) error {
	id, err := param(c, "id")
	if err != nil {
		return err
	}
	var in statusRequest
	if err := bind(c, &in); err != nil {
		return err
	}
	o, err := h.Orders.UpdateStatus(c.UserContext(), id, in.Status)
	if err != nil {
		return err
	}
	applog.Audit(c, "admin.orders.status", map[string]any{"order_id": o.ID, "status": o.Status})
	return ok(c, o)
}

func (h *OrderHandler) Delete(c *fiber.Ctx) error {
	id, err := param(c, "id")
	if err != nil {
		return err
	}
	if err := h.Orders.Delete(c.UserContext(), id); err != nil {
		return err
	}
	applog.Audit(c, "admin.orders.delete", map[string]any{"order_id": id})
	return done(c, "order deleted")
}
