package services

import (
	"context"
	"errors"
	"log"
	"net/url"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"bigpartner/internal/config"
	"bigpartner/internal/domain"
	"bigpartner/internal/listing"
	"bigpartner/internal/metrics"
	apperrors "bigpartner/pkg/errors"
)

// InquiryInput is the public contact form
type InquiryInput struct {
	Name         string  `json:"name" validate:"required,min=2,max=150"`
	Email        string  `json:"email" validate:"required,email,max=150"`
	Phone        *string `json:"phone" validate:"omitempty,min=7,max=20"`
	InquiryType  string  `json:"inquiryType" validate:"omitempty,oneof=general property investment partnership support"`
	PropertyID   *uint   `json:"propertyId"`
	PropertyName *string `json:"propertyName" validate:"omitempty,max=255"`
	UserType     *string `json:"userType" validate:"omitempty,max=30"`
	Subject      *string `json:"subject" validate:"omitempty,max=255"`
	Message      string  `json:"message" validate:"required,max=5000"`
	Priority     string  `json:"priority" validate:"omitempty,oneof=low medium high"`
}

// InquiryUpdate changes triage fields; absent fields are left alone
type InquiryUpdate struct {
	Status     *string `json:"status" validate:"omitempty,oneof=pending in_progress resolved closed"`
	Priority   *string `json:"priority" validate:"omitempty,oneof=low medium high"`
	AssignedTo *string `json:"assignedTo" validate:"omitempty,max=150"`
}

// InquiryResponse attaches a staff response and resolves the inquiry
type InquiryResponse struct {
	Message     string  `json:"message" validate:"required,max=5000"`
	RespondedBy *string `json:"respondedBy" validate:"omitempty,max=150"`
}

// InquiryService implements the inquiry workflow
type InquiryService struct {
	db       *gorm.DB
	notifier *Notifier
	limits   config.ListingConfig
	now      func() time.Time
}

// NewInquiryService creates a new inquiry service
func NewInquiryService(db *gorm.DB, notifier *Notifier, limits config.ListingConfig) *InquiryService {
	return &InquiryService{
		db:       db,
		notifier: notifier,
		limits:   limits,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a visitor inquiry. When it references an existing property,
// the insert and the property's inquiry counter move together in one
// transaction. Unknown property ids are kept as a soft reference.
func (s *InquiryService) Create(ctx context.Context, in *InquiryInput) (*domain.Inquiry, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Message = strings.TrimSpace(in.Message)
	in.Phone = trimPtr(in.Phone)
	in.PropertyName = trimPtr(in.PropertyName)
	in.UserType = trimPtr(in.UserType)
	in.Subject = trimPtr(in.Subject)
	log.Printf("[INQUIRY] Create request: name=%s, email=%s", in.Name, in.Email)

	if err := validate.Struct(in); err != nil {
		log.Printf("[INQUIRY] Create failed: validation error: %v", err)
		return nil, validationError(err)
	}

	inq := domain.Inquiry{
		Name:         in.Name,
		Email:        in.Email,
		Phone:        in.Phone,
		InquiryType:  in.InquiryType,
		PropertyID:   in.PropertyID,
		PropertyName: in.PropertyName,
		UserType:     in.UserType,
		Subject:      in.Subject,
		Message:      in.Message,
		Priority:     in.Priority,
		// new inquiries always start pending
		Status: domain.InquiryPending,
	}
	if inq.InquiryType == "" && inq.PropertyID != nil {
		inq.InquiryType = domain.InquiryProperty
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if inq.PropertyID != nil {
			var p domain.Property
			err := tx.Select("id", "title").First(&p, *inq.PropertyID).Error
			switch {
			case err == nil:
				if inq.PropertyName == nil {
					inq.PropertyName = &p.Title
				}
				if err := tx.Model(&domain.Property{}).Where("id = ?", p.ID).
					UpdateColumn("inquiry_count", gorm.Expr("inquiry_count + ?", 1)).Error; err != nil {
					return err
				}
			case errors.Is(err, gorm.ErrRecordNotFound):
				log.Printf("[INQUIRY] Property id=%d not found, keeping soft reference", *inq.PropertyID)
			default:
				return err
			}
		}
		return tx.Create(&inq).Error
	})
	if err != nil {
		log.Printf("[INQUIRY] Create failed: database error: %v", err)
		return nil, apperrors.Internal("failed to save inquiry", err)
	}

	log.Printf("[INQUIRY] Create successful: id=%d, type=%s, property=%v", inq.ID, inq.InquiryType, inq.PropertyID)
	metrics.RecordInquiry(inq.InquiryType)
	s.notifier.InquiryReceived(&inq)
	return &inq, nil
}

// List returns inquiries for staff, newest first
func (s *InquiryService) List(ctx context.Context, q url.Values) (listing.Page[domain.Inquiry], error) {
	if _, err := requireStaff(ctx); err != nil {
		return listing.Page[domain.Inquiry]{}, err
	}

	fields := map[string]string{}
	query := s.db.WithContext(ctx).Model(&domain.Inquiry{})
	if v := q.Get("status"); v != "" {
		if !domain.ValidInquiryStatus(v) {
			fields["status"] = "must be one of pending, in_progress, resolved, closed"
		}
		query = query.Where("status = ?", v)
	}
	if v := q.Get("priority"); v != "" {
		if !domain.ValidPriority(v) {
			fields["priority"] = "must be one of low, medium, high"
		}
		query = query.Where("priority = ?", v)
	}
	if v := q.Get("type"); v != "" {
		query = query.Where("inquiry_type = ?", v)
	}
	if v := q.Get("propertyId"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			fields["propertyId"] = "must be a positive integer"
		}
		query = query.Where("property_id = ?", id)
	}
	if v := strings.TrimSpace(q.Get("search")); v != "" {
		like := listing.ContainsPattern(v)
		query = query.Where(`(LOWER(name) LIKE ? ESCAPE '\' OR LOWER(email) LIKE ? ESCAPE '\' OR LOWER(message) LIKE ? ESCAPE '\')`, like, like, like)
	}
	limit, offset, err := pageParams(q, s.limits)
	if err != nil {
		return listing.Page[domain.Inquiry]{}, err
	}
	if len(fields) > 0 {
		return listing.Page[domain.Inquiry]{}, apperrors.Validation("invalid inquiry query", fields)
	}

	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return listing.Page[domain.Inquiry]{}, apperrors.Internal("failed to count inquiries", err)
	}
	var items []domain.Inquiry
	if err := query.Order("created_at DESC").Order("id DESC").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		log.Printf("[INQUIRY] List failed: database error: %v", err)
		return listing.Page[domain.Inquiry]{}, apperrors.Internal("failed to fetch inquiries", err)
	}

	log.Printf("[INQUIRY] List successful: returned %d of %d inquiries", len(items), total)
	return listing.NewPage(items, total, limit, offset), nil
}

// Get returns one inquiry to staff
func (s *InquiryService) Get(ctx context.Context, id uint) (*domain.Inquiry, error) {
	if _, err := requireStaff(ctx); err != nil {
		return nil, err
	}
	var inq domain.Inquiry
	if err := s.db.WithContext(ctx).First(&inq, id).Error; err != nil {
		return nil, notFoundOr(err, "inquiry")
	}
	return &inq, nil
}

// Update sets status, priority or assignee. Any status may be set without
// a response.
func (s *InquiryService) Update(ctx context.Context, id uint, in *InquiryUpdate) (*domain.Inquiry, error) {
	staff, err := requireStaff(ctx)
	if err != nil {
		return nil, err
	}
	log.Printf("[INQUIRY] Update request: id=%d by user=%d", id, staff.ID)

	if err := validate.Struct(in); err != nil {
		return nil, validationError(err)
	}

	inq, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.Status != nil {
		updates["status"] = *in.Status
		inq.Status = *in.Status
	}
	if in.Priority != nil {
		updates["priority"] = *in.Priority
		inq.Priority = *in.Priority
	}
	if in.AssignedTo != nil {
		inq.AssignedTo = trimPtr(in.AssignedTo)
		updates["assigned_to"] = inq.AssignedTo
	}
	if len(updates) == 0 {
		return inq, nil
	}

	if err := s.db.WithContext(ctx).Model(inq).Updates(updates).Error; err != nil {
		log.Printf("[INQUIRY] Update failed: database error: %v", err)
		return nil, apperrors.Internal("failed to update inquiry", err)
	}

	log.Printf("[INQUIRY] Update successful: id=%d, status=%s, priority=%s", inq.ID, inq.Status, inq.Priority)
	return inq, nil
}

// Respond resolves the inquiry and records the response in one UPDATE
func (s *InquiryService) Respond(ctx context.Context, id uint, in *InquiryResponse) (*domain.Inquiry, error) {
	staff, err := requireStaff(ctx)
	if err != nil {
		return nil, err
	}
	in.Message = strings.TrimSpace(in.Message)
	in.RespondedBy = trimPtr(in.RespondedBy)
	log.Printf("[INQUIRY] Respond request: id=%d by user=%d", id, staff.ID)

	if err := validate.Struct(in); err != nil {
		return nil, validationError(err)
	}

	inq, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	by := staff.DisplayName()
	if in.RespondedBy != nil {
		by = *in.RespondedBy
	}
	inq.Respond(in.Message, by, s.now())

	if err := s.db.WithContext(ctx).Model(inq).Updates(map[string]interface{}{
		"status":           inq.Status,
		"response_message": inq.ResponseMessage,
		"responded_by":     inq.RespondedBy,
		"responded_at":     inq.RespondedAt,
	}).Error; err != nil {
		log.Printf("[INQUIRY] Respond failed: database error: %v", err)
		return nil, apperrors.Internal("failed to save response", err)
	}

	log.Printf("[INQUIRY] Respond successful: id=%d resolved by %s", inq.ID, by)
	s.notifier.InquiryResponded(inq)
	return inq, nil
}

// pageParams reads limit and offset (or page) for simple list endpoints
func pageParams(q url.Values, limits config.ListingConfig) (int, int, error) {
	c, err := listing.Parse(url.Values{
		"limit":  q["limit"],
		"offset": q["offset"],
		"page":   q["page"],
	}, limits)
	if err != nil {
		return 0, 0, err
	}
	return c.Limit, c.Offset, nil
}
