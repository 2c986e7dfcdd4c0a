package handlers

import (
	"github.com/gofiber/fiber/v2"

	"storefront/internal/domain"
	applog "storefront/internal/log"
	"storefront/internal/validate"
)

// envelope is the body of every API response.
type envelope struct {
	Success    bool               `json:"success"`
	Data       any                `json:"data,omitempty"`
	Message    string             `json:"message,omitempty"`
	Errors     map[string]string  `json:"errors,omitempty"`
	Pagination *domain.Pagination `json:"pagination,omitempty"`
}

func render(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(envelope{Success: true, Data: data})
}

func ok(c *fiber.Ctx, data any) error { return render(c, fiber.StatusOK, data) }

func created(c *fiber.Ctx, data any) error { return render(c, fiber.StatusCreated, data) }

func paged(c *fiber.Ctx, data any, pg domain.Pagination) error {
	return c.JSON(envelope{Success: true, Data: data, Pagination: &pg})
}

func done(c *fiber.Ctx, message string) error {
	return c.JSON(envelope{Success: true, Message: message})
}

// bind decodes the JSON body into dst. Field rules are checked later by the
// service.
func bind(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		applog.Security(c, "validation.fail", map[string]any{"reason": "bad_body"})
		return fiber.NewError(fiber.StatusBadRequest, "request body must be valid JSON")
	}
	return nil
}

// pageQuery reads page and limit, defaulting to 20 per page and capping at 100.
func pageQuery(c *fiber.Ctx) (page, limit int) {
	return validate.Page(c.Query("page"), c.Query("limit"), 20, 100)
}

func param(c *fiber.Ctx, name string) (string, error) {
	id, ok := validate.ID(c.Params(name))
	if !ok {
		applog.Security(c, "validation.fail", map[string]any{"field": name})
		return "", fiber.NewError(fiber.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}
