package handlers

import (
	"github.com/gofiber/fiber/v2"

	applog "storefront/internal/log"
	"storefront/internal/services"
)

// AdminHandler serves account management under /api/users.
type AdminHandler struct {
	Users *services.UserService
}

func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	page, limit := pageQuery(c)
	users, pg, err := h.Users.List(c.UserContext(), services.UserQuery{
		Q: c.Query("q"), Role: c.Query("role"), Page: page, Limit: limit,
	})
	if err != nil {
		return err
	}
	return paged(c, users, pg)
}

func (h *AdminHandler) GetUser(c *fiber.Ctx) error {
	id, err := param(c, "id")
	if err != nil {
		return err
	}
	u, err := h.Users.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return ok(c, u)
}

func (h *AdminHandler) CreateUser(c *fiber.Ctx) error {
	var in services.CreateUserInput
	if err := bind(c, &in); err != nil {
		return err
	}
	u, err := h.Users.Create(c.UserContext(), in)
	if err != nil {
		return err
	}
	applog.Audit(c, "admin.users.create", map[string]any{"target_id": u.ID, "role": u.Role})
	return created(c, u)
}

func (h *AdminHandler) UpdateUser(c *fiber.Ctx) error {
	id, err := param(c, "id")
	if err != nil {
		return err
	}
	var in services.UserPatch
	if err := bind(c, &in); err != nil {
		return err
	}
	u, err := h.Users.Update(c.UserContext(), id, in)
	if err != nil {
		return err
	}
	applog.Audit(c, "admin.users.update", map[string]any{"target_id": u.ID, "role": u.Role})
	return ok(c, u)
}

func (h *AdminHandler) DeleteUser(c *fiber.Ctx) error {
	id, err := param(c, "id")
	if err != nil {
		return err
	}
	if err := h.Users.Delete(c.UserContext(), currentUser(c), id); err != nil {
		applog.Error(c, "admin.users.delete.fail", err, map[string]any{"target_id": id})
		return err
	}
	applog.Audit(c, "admin.users.delete", map[string]any{"target_id": id})
	return done(c, "user deleted")
}

func (h *AdminHandler) Roles(c *fiber.Ctx) error {
	roles, err := h.Users.Roles(c.UserContext())
	if err != nil {
		return err
	}
	return ok(c, roles)
}
