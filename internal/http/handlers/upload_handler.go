package handlers

import (
	"github.com/gofiber/fiber/v2"

	"storefront/internal/apperr"
	applog "storefront/internal/log"
	"storefront/internal/services"
)

type UploadHandler struct {
	Uploads *services.UploadService
}

// Upload stores the multipart field "file".
func (h *UploadHandler) Upload(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return apperr.Validation("validation failed", map[string]string{"file": "is required"})
	}
	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()

	up, err := h.Uploads.Store(c.UserContext(), f)
	if err != nil {
		if apperr.Is(err, apperr.KindValidation) {
			applog.Security(c, "upload.rejected", map[string]any{"name": fh.Filename, "size": fh.Size})
		}
		return err
	}
	applog.Audit(c, "upload.store", map[string]any{"url": up.URL, "mime": up.MIME, "size": up.Size})
	return created(c, up)
}
