package services

import (
	"context"
	"log"
	"net/url"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bigpartner/internal/config"
	"bigpartner/internal/domain"
	"bigpartner/internal/listing"
	"bigpartner/internal/metrics"
	apperrors "bigpartner/pkg/errors"
)

// FavoriteService manages the caller's saved properties
type FavoriteService struct {
	db     *gorm.DB
	limits config.ListingConfig
}

// NewFavoriteService creates a new favorite service
func NewFavoriteService(db *gorm.DB, limits config.ListingConfig) *FavoriteService {
	return &FavoriteService{db: db, limits: limits}
}

// Add saves a property the caller can see. Adding an existing favorite
// returns the stored row instead of failing.
func (s *FavoriteService) Add(ctx context.Context, propertyID uint) (*domain.Favorite, error) {
	user, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	log.Printf("[FAVORITE] Add request: user=%d, property=%d", user.ID, propertyID)

	// same visibility as the detail page: hidden listings are not found
	var p domain.Property
	if err := s.db.WithContext(ctx).Select("id", "deleted", "approval_status", "created_by").
		First(&p, propertyID).Error; err != nil {
		log.Printf("[FAVORITE] Add failed: property=%d: %v", propertyID, err)
		return nil, notFoundOr(err, "property")
	}
	if p.Deleted || (!p.IsPubliclyVisible() && !canManage(user, &p)) {
		log.Printf("[FAVORITE] Add failed: property=%d not visible to user=%d", propertyID, user.ID)
		return nil, apperrors.NotFound("property not found")
	}

	fav := domain.Favorite{UserID: user.ID, PropertyID: propertyID}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "property_id"}},
			DoNothing: true,
		}).
		Create(&fav)
	if res.Error != nil {
		log.Printf("[FAVORITE] Add failed: database error: %v", res.Error)
		return nil, apperrors.Internal("failed to add favorite", res.Error)
	}

	if res.RowsAffected == 0 {
		// already favorited; return the existing row
		fav = domain.Favorite{}
		if err := s.db.WithContext(ctx).
			Where("user_id = ? AND property_id = ?", user.ID, propertyID).
			First(&fav).Error; err != nil {
			return nil, notFoundOr(err, "favorite")
		}
		log.Printf("[FAVORITE] Add no-op: user=%d already saved property=%d", user.ID, propertyID)
		return &fav, nil
	}

	log.Printf("[FAVORITE] Add successful: id=%d", fav.ID)
	metrics.RecordFavorite("add")
	return &fav, nil
}

// Remove deletes the caller's favorite; removing a missing one is a no-op
func (s *FavoriteService) Remove(ctx context.Context, propertyID uint) error {
	user, err := requireUser(ctx)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).
		Where("user_id = ? AND property_id = ?", user.ID, propertyID).
		Delete(&domain.Favorite{})
	if res.Error != nil {
		log.Printf("[FAVORITE] Remove failed: database error: %v", res.Error)
		return apperrors.Internal("failed to remove favorite", res.Error)
	}
	log.Printf("[FAVORITE] Remove: user=%d, property=%d, removed=%d", user.ID, propertyID, res.RowsAffected)
	if res.RowsAffected > 0 {
		metrics.RecordFavorite("remove")
	}
	return nil
}

// IsFavorite reports whether the caller saved the property
func (s *FavoriteService) IsFavorite(ctx context.Context, propertyID uint) (bool, error) {
	user, err := requireUser(ctx)
	if err != nil {
		return false, err
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&domain.Favorite{}).
		Where("user_id = ? AND property_id = ?", user.ID, propertyID).
		Count(&count).Error; err != nil {
		return false, apperrors.Internal("failed to check favorite", err)
	}
	return count > 0, nil
}

// List returns the caller's favorites with their properties, newest first.
// Favorites of deleted properties are omitted.
func (s *FavoriteService) List(ctx context.Context, q url.Values) (listing.Page[domain.Favorite], error) {
	user, err := requireUser(ctx)
	if err != nil {
		return listing.Page[domain.Favorite]{}, err
	}
	limit, offset, err := pageParams(q, s.limits)
	if err != nil {
		return listing.Page[domain.Favorite]{}, err
	}

	query := s.db.WithContext(ctx).Model(&domain.Favorite{}).
		Joins("JOIN properties ON properties.id = favorites.property_id").
		Where("favorites.user_id = ? AND properties.deleted = ?", user.ID, false).
		Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return listing.Page[domain.Favorite]{}, apperrors.Internal("failed to count favorites", err)
	}

	var items []domain.Favorite
	if err := query.Preload("Property").
		Order("favorites.created_at DESC").Order("favorites.id DESC").
		Limit(limit).Offset(offset).
		Find(&items).Error; err != nil {
		log.Printf("[FAVORITE] List failed: database error: %v", err)
		return listing.Page[domain.Favorite]{}, apperrors.Internal("failed to list favorites", err)
	}
	return listing.NewPage(items, total, limit, offset), nil
}
