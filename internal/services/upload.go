package services

import (
	"context"
	"errors"
	"io"
	"log"

	"bigpartner/internal/storage"
	apperrors "bigpartner/pkg/errors"
)

// UploadResult is returned for a stored image
type UploadResult struct {
	URL string `json:"url"`
}

// UploadService stores listing images ahead of the property form submit
type UploadService struct {
	store *storage.ImageStore
}

// NewUploadService creates a new upload service
func NewUploadService(store *storage.ImageStore) *UploadService {
	return &UploadService{store: store}
}

// MaxBytes returns the configured upload limit
func (s *UploadService) MaxBytes() int64 {
	return s.store.MaxBytes()
}

// Image stores one uploaded image and returns its public URL
func (s *UploadService) Image(ctx context.Context, filename string, r io.Reader) (*UploadResult, error) {
	user, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	log.Printf("[UPLOAD] Image request: file=%s, user=%d", filename, user.ID)

	url, err := s.store.Save(r)
	switch {
	case errors.Is(err, storage.ErrTooLarge):
		return nil, apperrors.Validation("upload rejected", map[string]string{"file": err.Error()})
	case errors.Is(err, storage.ErrTooManyPixels):
		return nil, apperrors.Validation("upload rejected", map[string]string{"file": err.Error()})
	case errors.Is(err, storage.ErrNotImage):
		return nil, apperrors.Validation("upload rejected", map[string]string{"file": "must be a JPEG, PNG, GIF, BMP or TIFF image"})
	case err != nil:
		log.Printf("[UPLOAD] Image failed: %v", err)
		return nil, apperrors.Internal("failed to store image", err)
	}

	log.Printf("[UPLOAD] Image successful: %s", url)
	return &UploadResult{URL: url}, nil
}
