package handlers

import (
	"github.com/gofiber/fiber/v2"

	applog "storefront/internal/log"
	"storefront/internal/services"
)

// ProfileHandler lets signed-in users manage their own account.
type ProfileHandler struct {
	Users *services.UserService
}

func (h *ProfileHandler) Get(c *fiber.Ctx) error {
	u, err := h.Users.Get(c.UserContext(), currentUser(c).ID)
	if err != nil {
		return err
	}
	return ok(c, u)
}

func (h *ProfileHandler) Update(c *fiber.Ctx) error {
	var in services.ProfilePatch
	if err := bind(c, &in); err != nil {
		return err
	}
	u, err := h.Users.UpdateProfile(c.UserContext(), currentUser(c).ID, in)
	if err != nil {
		return err
	}
	applog.Audit(c, "profile.update", nil)
	return ok(c, u)
}

func (h *ProfileHandler) ChangePassword(c *fiber.Ctx) error {
	var in services.ChangePasswordInput
	if err := bind(c, &in); err != nil {
		return err
	}
	if err := h.Users.ChangePassword(c.UserContext(), currentUser(c).ID, in); err != nil {
		applog.Security(c, "profile.password.fail", nil)
		return err
	}
	applog.Audit(c, "profile.password", nil)
	return done(c, "password changed, other sessions were signed out")
}
