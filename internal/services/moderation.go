package services

import (
	"context"
	"log"
	"net/url"
	"strings"
	"time"

	"gorm.io/gorm"

	"bigpartner/internal/config"
	"bigpartner/internal/domain"
	"bigpartner/internal/listing"
	"bigpartner/internal/metrics"
	apperrors "bigpartner/pkg/errors"
)

// ModerationService implements the admin approval workflow for properties
type ModerationService struct {
	db       *gorm.DB
	notifier *Notifier
	limits   config.ListingConfig
	now      func() time.Time
}

// NewModerationService creates a new moderation service
func NewModerationService(db *gorm.DB, notifier *Notifier, limits config.ListingConfig) *ModerationService {
	return &ModerationService{
		db:       db,
		notifier: notifier,
		limits:   limits,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

var moderationColumns = []string{
	"approval_status", "rejection_reason", "moderated_by", "moderated_at", "published_at",
}

// Approve publishes a property. Approving twice leaves the state unchanged
// apart from the moderation stamp.
func (s *ModerationService) Approve(ctx context.Context, id uint) (*domain.Property, error) {
	admin, err := requireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	log.Printf("[MODERATION] Approve request: property=%d by admin=%d", id, admin.ID)

	var p domain.Property
	if err := s.db.WithContext(ctx).First(&p, id).Error; err != nil {
		log.Printf("[MODERATION] Approve failed: %v", err)
		return nil, notFoundOr(err, "property")
	}

	wasApproved := p.ApprovalStatus == domain.ApprovalApproved
	p.Approve(admin.ID, s.now())
	if err := s.db.WithContext(ctx).Model(&p).Select(moderationColumns).Updates(&p).Error; err != nil {
		log.Printf("[MODERATION] Approve failed: database error: %v", err)
		return nil, apperrors.Internal("failed to approve property", err)
	}

	log.Printf("[MODERATION] Approve successful: property=%d, slug=%s, already_approved=%v", p.ID, p.Slug, wasApproved)
	metrics.RecordModeration(domain.ApprovalApproved)
	if !wasApproved {
		s.notifier.PropertyApproved(&p)
	}
	return &p, nil
}

// Reject refuses a property with a reason. A blank reason is rejected
// before anything is read or written.
func (s *ModerationService) Reject(ctx context.Context, id uint, reason string) (*domain.Property, error) {
	admin, err := requireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	log.Printf("[MODERATION] Reject request: property=%d by admin=%d", id, admin.ID)
	if reason == "" {
		log.Printf("[MODERATION] Reject failed: empty reason for property=%d", id)
		return nil, apperrors.Validation("validation failed", map[string]string{"reason": "is required"})
	}

	var p domain.Property
	if err := s.db.WithContext(ctx).First(&p, id).Error; err != nil {
		log.Printf("[MODERATION] Reject failed: %v", err)
		return nil, notFoundOr(err, "property")
	}

	if err := p.Reject(admin.ID, reason, s.now()); err != nil {
		return nil, apperrors.Validation("validation failed", map[string]string{"reason": err.Error()})
	}
	if err := s.db.WithContext(ctx).Model(&p).Select(moderationColumns).Updates(&p).Error; err != nil {
		log.Printf("[MODERATION] Reject failed: database error: %v", err)
		return nil, apperrors.Internal("failed to reject property", err)
	}

	log.Printf("[MODERATION] Reject successful: property=%d, reason=%q", p.ID, reason)
	metrics.RecordModeration(domain.ApprovalRejected)
	s.notifier.PropertyRejected(&p)
	return &p, nil
}

// SetFeatured toggles the featured flag
func (s *ModerationService) SetFeatured(ctx context.Context, id uint, value bool) (*domain.Property, error) {
	return s.setFlag(ctx, id, "is_featured", value)
}

// SetVerified toggles the verified badge
func (s *ModerationService) SetVerified(ctx context.Context, id uint, value bool) (*domain.Property, error) {
	return s.setFlag(ctx, id, "is_verified", value)
}

func (s *ModerationService) setFlag(ctx context.Context, id uint, column string, value bool) (*domain.Property, error) {
	admin, err := requireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	log.Printf("[MODERATION] Set %s=%v on property=%d by admin=%d", column, value, id, admin.ID)

	var p domain.Property
	if err := s.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, notFoundOr(err, "property")
	}
	if err := s.db.WithContext(ctx).Model(&p).Update(column, value).Error; err != nil {
		log.Printf("[MODERATION] Set %s failed: database error: %v", column, err)
		return nil, apperrors.Internal("failed to update property", err)
	}
	switch column {
	case "is_featured":
		p.IsFeatured = value
	case "is_verified":
		p.IsVerified = value
	}
	return &p, nil
}

// Pending lists properties awaiting review, oldest first
func (s *ModerationService) Pending(ctx context.Context, q url.Values) (listing.Page[domain.Property], error) {
	admin, err := requireAdmin(ctx)
	if err != nil {
		return listing.Page[domain.Property]{}, err
	}
	c, err := listing.Parse(q, s.limits)
	if err != nil {
		return listing.Page[domain.Property]{}, err
	}
	c.ApprovalStatus = domain.ApprovalPending
	if q.Get("sort") == "" {
		c.Sort = listing.SortOldest
	}

	page, err := listing.Find(ctx, s.db, c, listing.Viewer{UserID: admin.ID, Admin: true})
	if err != nil {
		log.Printf("[MODERATION] Pending queue failed: database error: %v", err)
		return listing.Page[domain.Property]{}, apperrors.Internal("failed to list pending properties", err)
	}
	return page, nil
}
