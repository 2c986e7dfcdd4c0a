package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"storefront/internal/apperr"
	"storefront/internal/domain"
	"storefront/internal/log"
	"storefront/internal/services"
)

type AuthHandler struct {
	Auth *services.AuthService
	// Secure marks the token cookies Secure; set behind HTTPS.
	Secure bool
}

type authResponse struct {
	User   *domain.User       `json:"user"`
	Tokens services.TokenPair `json:"tokens"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *AuthHandler) setCookies(c *fiber.Ctx, pair services.TokenPair) {
	c.Cookie(&fiber.Cookie{
		Name:     accessCookie,
		Value:    pair.AccessToken,
		Path:     "/",
		Expires:  pair.AccessExpiresAt,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Secure:   h.Secure,
	})
	c.Cookie(&fiber.Cookie{
		Name:     refreshCookie,
		Value:    pair.RefreshToken,
		Path:     "/api/auth",
		Expires:  pair.RefreshExpiresAt,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Secure:   h.Secure,
	})
}

func (h *AuthHandler) clearCookies(c *fiber.Ctx) {
	past := time.Now().Add(-time.Hour)
	for name, path := range map[string]string{accessCookie: "/", refreshCookie: "/api/auth"} {
		c.Cookie(&fiber.Cookie{
			Name:     name,
			Value:    "",
			Path:     path,
			Expires:  past,
			HTTPOnly: true,
			SameSite: fiber.CookieSameSiteLaxMode,
			Secure:   h.Secure,
		})
	}
}

// refreshToken takes the token from the body first, then the cookie.
func (h *AuthHandler) refreshToken(c *fiber.Ctx) string {
	var in refreshRequest
	if len(c.Body()) > 0 {
		_ = c.BodyParser(&in)
	}
	if in.RefreshToken != "" {
		return in.RefreshToken
	}
	return c.Cookies(refreshCookie)
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var in services.RegisterInput
	if err := bind(c, &in); err != nil {
		return err
	}
	u, pair, err := h.Auth.Register(c.UserContext(), in)
	if err != nil {
		return err
	}
	h.setCookies(c, pair)
	c.Locals("user_id", u.ID)
	log.Audit(c, "auth.register", map[string]any{"email": u.Email})
	return created(c, authResponse{User: u, Tokens: pair})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var in services.LoginInput
	if err := bind(c, &in); err != nil {
		return err
	}
	u, pair, err := h.Auth.Login(c.UserContext(), in)
	if err != nil {
		if apperr.Is(err, apperr.KindUnauthorized) || apperr.Is(err, apperr.KindValidation) {
			log.Security(c, "auth.login.fail", map[string]any{"email": in.Email})
		}
		return err
	}
	h.setCookies(c, pair)
	c.Locals("user_id", u.ID)
	log.Audit(c, "auth.login.success", map[string]any{"email": u.Email})
	return ok(c, authResponse{User: u, Tokens: pair})
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	u, pair, err := h.Auth.Refresh(c.UserContext(), h.refreshToken(c))
	if err != nil {
		log.Security(c, "auth.refresh.fail", map[string]any{"reason": err.Error()})
		h.clearCookies(c)
		return err
	}
	h.setCookies(c, pair)
	c.Locals("user_id", u.ID)
	log.Audit(c, "auth.refresh", nil)
	return ok(c, authResponse{User: u, Tokens: pair})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if err := h.Auth.Logout(c.UserContext(), h.refreshToken(c)); err != nil {
		return err
	}
	h.clearCookies(c)
	log.Audit(c, "auth.logout", nil)
	return done(c, "logged out")
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	u, err := h.Auth.Me(c.UserContext(), currentUser(c).ID)
	if err != nil {
		return err
	}
	return ok(c, u)
}

const resetSent = "If that email is registered, instructions are on their way."

func (h *AuthHandler) ForgotPassword(c *fiber.Ctx) error {
	var in services.ForgotPasswordInput
	if err := bind(c, &in); err != nil {
		return err
	}
	if err := h.Auth.ForgotPassword(c.UserContext(), in); err != nil {
		return err
	}
	log.Audit(c, "auth.password.forgot", nil)
	return done(c, resetSent)
}

func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var in services.ResetPasswordInput
	if err := bind(c, &in); err != nil {
		return err
	}
	if err := h.Auth.ResetPassword(c.UserContext(), in); err != nil {
		log.Security(c, "auth.password.reset.fail", nil)
		return err
	}
	log.Audit(c, "auth.password.reset", nil)
	return done(c, "password updated, please sign in again")
}

func (h *AuthHandler) RequestOTP(c *fiber.Ctx) error {
	var in services.ForgotPasswordInput
	if err := bind(c, &in); err != nil {
		return err
	}
	if err := h.Auth.RequestOTP(c.UserContext(), in); err != nil {
		return err
	}
	log.Audit(c, "auth.password.otp", nil)
	return done(c, resetSent)
}

func (h *AuthHandler) VerifyOTP(c *fiber.Ctx) error {
	var in services.VerifyOTPInput
	if err := bind(c, &in); err != nil {
		return err
	}
	if err := h.Auth.VerifyOTP(c.UserContext(), in); err != nil {
		log.Security(c, "auth.password.otp.fail", map[string]any{"email": in.Email})
		return err
	}
	log.Audit(c, "auth.password.reset", map[string]any{"via": "otp"})
	return done(c, "password updated, please sign in again")
}
