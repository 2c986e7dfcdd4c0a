package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"storefront/internal/apperr"
	"storefront/internal/domain"
	applog "storefront/internal/log"
	"storefront/internal/services"
)

const (
	accessCookie  = "access_token"
	refreshCookie = "refresh_token"
)

// Authenticate attaches the caller when the request carries a valid access
// token, from the Authorization header or the access cookie. Requests
// without one continue anonymously; the Require* guards decide.
func Authenticate(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tok := accessToken(c)
		if tok == "" {
			return c.Next()
		}
		u, err := auth.CurrentUser(c.UserContext(), tok)
		if err != nil {
			if !apperr.Is(err, apperr.KindUnauthorized) {
				return err
			}
			c.Locals("auth_error", err)
			return c.Next()
		}
		c.Locals("user", u)
		c.Locals("user_id", u.ID)
		return c.Next()
	}
}

func accessToken(c *fiber.Ctx) string {
	if h := c.Get(fiber.HeaderAuthorization); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return c.Cookies(accessCookie)
}

func currentUser(c *fiber.Ctx) *domain.User {
	u, _ := c.Locals("user").(*domain.User)
	return u
}

// RequireUser rejects anonymous requests with 401.
func RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if currentUser(c) == nil {
			return denyAnonymous(c)
		}
		return c.Next()
	}
}

// RequireRole lets the request through when the caller holds one of roles.
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		u := currentUser(c)
		if u == nil {
			return denyAnonymous(c)
		}
		for _, r := range roles {
			if u.HasRole(r) {
				return c.Next()
			}
		}
		applog.Security(c, "access.denied.role", map[string]any{"role": u.Role, "required": roles})
		return apperr.Forbidden("you do not have permission to do this")
	}
}

func RequireAdmin() fiber.Handler { return RequireRole(domain.RoleAdmin) }

func denyAnonymous(c *fiber.Ctx) error {
	if err, ok := c.Locals("auth_error").(error); ok {
		applog.Security(c, "access.denied.token", map[string]any{"reason": err.Error()})
		return err
	}
	applog.Security(c, "access.denied.anonymous", nil)
	return apperr.Unauthorized("authentication required")
}
