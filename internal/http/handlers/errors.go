package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"storefront/internal/apperr"
	applog "storefront/internal/log"
)

const genericError = "Something went wrong. Please try again."

func statusFor(k apperr.Kind) int {
	switch k {
	case apperr.KindNotFound:
		return fiber.StatusNotFound
	case apperr.KindValidation:
		return fiber.StatusUnprocessableEntity
	case apperr.KindBusinessLogic:
		return fiber.StatusBadRequest
	case apperr.KindInsufficientStock, apperr.KindConflict:
		return fiber.StatusConflict
	case apperr.KindUnauthorized:
		return fiber.StatusUnauthorized
	case apperr.KindForbidden:
		return fiber.StatusForbidden
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandler turns handler errors into the JSON envelope. Server errors
// are logged; their text only reaches the client outside production.
func ErrorHandler(production bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		body := envelope{Message: genericError}

		var ae *apperr.Error
		var fe *fiber.Error
		switch {
		case errors.As(err, &ae) && ae.Kind != apperr.KindInternal:
			status = statusFor(ae.Kind)
			body.Message = ae.Message
			body.Errors = ae.Fields
		case errors.As(err, &fe):
			status = fe.Code
			body.Message = fe.Message
		}

		// Set first so the log lines carry the final status.
		c.Status(status)
		switch {
		case status >= fiber.StatusInternalServerError:
			applog.Error(c, "server.error", err, nil)
			body.Message = genericError
			if !production {
				body.Message = err.Error()
			}
		case status == fiber.StatusUnprocessableEntity:
			applog.Security(c, "validation.fail", map[string]any{"fields": body.Errors})
		}
		return c.JSON(body)
	}
}
