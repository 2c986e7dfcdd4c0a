package services

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"storefront/internal/apperr"
)

// allowedImages maps sniffed MIME types to the extension files are stored with.
var allowedImages = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

type UploadService struct {
	MediaDir string
	MaxBytes int64
}

func NewUploadService(mediaDir string, maxBytes int64) *UploadService {
	return &UploadService{MediaDir: mediaDir, MaxBytes: maxBytes}
}

type Upload struct {
	URL  string `json:"url"`
	MIME string `json:"mimeType"`
	Size int    `json:"size"`
}

// Store sniffs the content type from the bytes themselves, ignoring the
// client's filename and header, and writes the file under uploads/.
func (s *UploadService) Store(_ context.Context, r io.Reader) (Upload, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.MaxBytes+1))
	if err != nil {
		return Upload{}, err
	}
	if len(data) == 0 {
		return Upload{}, apperr.Validation("validation failed", map[string]string{"file": "is empty"})
	}
	if int64(len(data)) > s.MaxBytes {
		return Upload{}, apperr.Validation("validation failed", map[string]string{"file": "is too large"})
	}
	mt := mimetype.Detect(data)
	ext, ok := allowedImages[mt.String()]
	if !ok {
		return Upload{}, apperr.Validation("validation failed", map[string]string{"file": "must be a jpeg, png, gif or webp image"})
	}

	dir := filepath.Join(s.MediaDir, "uploads")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Upload{}, err
	}
	name := uuid.NewString() + ext
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return Upload{}, err
	}
	return Upload{URL: path.Join("/media", "uploads", name), MIME: mt.String(), Size: len(data)}, nil
}
