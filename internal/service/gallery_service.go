package service

import (
	"context"
	"fmt"
	"path"
	"strings"

	"sparkclean/internal/domain"
	"sparkclean/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MaxGalleryImageSize caps uploaded gallery images.
const MaxGalleryImageSize = 5 << 20

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

type GalleryService struct {
	repo    domain.CatalogRepository
	storage domain.BlobStorage
	broadcaster
}

func NewGalleryService(repo domain.CatalogRepository, storage domain.BlobStorage, changes domain.ChangePublisher, logger *zerolog.Logger) *GalleryService {
	return &GalleryService{repo: repo, storage: storage, broadcaster: broadcaster{changes: changes, logger: logger}}
}

func (s *GalleryService) ListImages(ctx context.Context) ([]models.GalleryImage, error) {
	return s.repo.ListGalleryImages(ctx)
}

// UploadImage stores the image bytes and records them in the gallery.
func (s *GalleryService) UploadImage(ctx context.Context, actor Actor, title, contentType string, data []byte) (*models.GalleryImage, error) {
	if err := actor.requireAdmin(); err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, invalid("required", "title")
	}
	ext, ok := imageExtensions[contentType]
	if !ok {
		return nil, invalid("must be a jpeg, png, webp or gif image", "content_type")
	}
	if len(data) == 0 || len(data) > MaxGalleryImageSize {
		return nil, invalid(fmt.Sprintf("must be between 1 byte and %d bytes", MaxGalleryImageSize), "image")
	}

	key := path.Join("gallery", uuid.NewString()+ext)
	if err := s.storage.Upload(ctx, key, data, contentType); err != nil {
		return nil, err
	}
	img := &models.GalleryImage{Title: title, StoragePath: key, ContentType: contentType}
	if err := s.repo.CreateGalleryImage(ctx, img); err != nil {
		if delErr := s.storage.Delete(ctx, key); delErr != nil {
			s.logger.Warn().Err(delErr).Str("key", key).Msg("orphaned gallery object")
		}
		return nil, err
	}
	s.change(models.TableGalleryImages, models.ChangeInsert, *img)
	return img, nil
}

// OpenImage returns the gallery record and its bytes.
func (s *GalleryService) OpenImage(ctx context.Context, id int64) (*models.GalleryImage, []byte, error) {
	img, err := s.repo.GetGalleryImage(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.storage.Download(ctx, img.StoragePath)
	if err != nil {
		return nil, nil, err
	}
	return img, data, nil
}

func (s *GalleryService) DeleteImage(ctx context.Context, actor Actor, id int64) error {
	if err := actor.requireAdmin(); err != nil {
		return err
	}
	img, err := s.repo.GetGalleryImage(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteGalleryImage(ctx, id); err != nil {
		return err
	}
	if err := s.storage.Delete(ctx, img.StoragePath); err != nil {
		s.logger.Warn().Err(err).Str("key", img.StoragePath).Msg("failed to delete gallery object")
	}
	s.change(models.TableGalleryImages, models.ChangeDelete, *img)
	return nil
}
