package services

import (
	"context"
	"errors"
	"log"
	"net/url"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"bigpartner/internal/config"
	"bigpartner/internal/database"
	"bigpartner/internal/domain"
	"bigpartner/internal/listing"
	"bigpartner/internal/metrics"
	"bigpartner/internal/util"
	apperrors "bigpartner/pkg/errors"
)

// PropertyInput is the flat add/edit form. Update is a full replace: every
// editable field is overwritten with what is submitted.
type PropertyInput struct {
	Title        string `json:"title" validate:"required,max=255"`
	Slug         string `json:"slug" validate:"max=200"`
	Description  string `json:"description" validate:"max=20000"`
	PropertyType string `json:"propertyType" validate:"max=40"`
	Status       string `json:"status" validate:"omitempty,oneof=available sold reserved under_construction"`
	ListingType  string `json:"listingType" validate:"omitempty,oneof=sale rent"`

	AddressLine1 string  `json:"addressLine1" validate:"max=255"`
	AddressLine2 string  `json:"addressLine2" validate:"max=255"`
	City         string  `json:"city" validate:"required,max=100"`
	State        string  `json:"state" validate:"max=100"`
	Pincode      string  `json:"pincode" validate:"omitempty,max=12"`
	Locality     string  `json:"locality" validate:"max=150"`
	Landmark     string  `json:"landmark" validate:"max=150"`
	Latitude     *Number `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude    *Number `json:"longitude" validate:"omitempty,gte=-180,lte=180"`

	Price      *Number `json:"price" validate:"required,gte=0"`
	Currency   string  `json:"currency" validate:"omitempty,len=3"`
	Negotiable bool    `json:"negotiable"`
	// PricePerSqft is accepted for compatibility and always recomputed.
	PricePerSqft *Number `json:"pricePerSqft"`

	Bedrooms         *Number `json:"bedrooms" validate:"omitempty,gte=0"`
	Bathrooms        *Number `json:"bathrooms" validate:"omitempty,gte=0"`
	Balconies        *Number `json:"balconies" validate:"omitempty,gte=0"`
	Area             *Number `json:"area" validate:"required,gt=0"`
	AreaUnit         string  `json:"areaUnit" validate:"max=20"`
	CarpetArea       *Number `json:"carpetArea" validate:"omitempty,gte=0"`
	BuiltUpArea      *Number `json:"builtUpArea" validate:"omitempty,gte=0"`
	PlotArea         *Number `json:"plotArea" validate:"omitempty,gte=0"`
	TotalFloors      *Number `json:"totalFloors" validate:"omitempty,gte=0"`
	FloorNumber      *Number `json:"floorNumber"`
	Facing           string  `json:"facing" validate:"max=30"`
	FurnishingStatus string  `json:"furnishingStatus" validate:"max=30"`
	AgeOfProperty    string  `json:"ageOfProperty" validate:"max=30"`
	PossessionDate   *Date   `json:"possessionDate"`

	Amenities        TextList `json:"amenities" validate:"max=100,dive,max=100"`
	Highlights       TextList `json:"highlights" validate:"max=50,dive,max=500"`
	NearbyFacilities TextList `json:"nearbyFacilities" validate:"max=50,dive,max=255"`
	Documents        TextList `json:"documents" validate:"max=50,dive,max=500"`

	// Images is the full list on create. On update the list is rebuilt from
	// ExistingImages (kept stored URLs), NewImages (uploaded during the edit)
	// and RemoveImages (indexes into ExistingImages ++ NewImages).
	Images         TextList  `json:"images" validate:"max=50"`
	ExistingImages *TextList `json:"existingImages"`
	NewImages      TextList  `json:"newImages" validate:"max=50"`
	RemoveImages   []int     `json:"removeImages"`

	FeaturedImage  string `json:"featuredImage" validate:"max=500"`
	VideoURL       string `json:"videoUrl" validate:"omitempty,url,max=500"`
	VirtualTourURL string `json:"virtualTourUrl" validate:"omitempty,url,max=500"`

	ReraApproved      bool   `json:"reraApproved"`
	ReraNumber        string `json:"reraNumber" validate:"max=100"`
	ApprovalAuthority string `json:"approvalAuthority" validate:"max=100"`
	OwnershipType     string `json:"ownershipType" validate:"max=50"`

	PartnerID  *uint  `json:"partnerId"`
	OwnerName  string `json:"ownerName" validate:"max=150"`
	OwnerPhone string `json:"ownerPhone" validate:"max=20"`
	OwnerEmail string `json:"ownerEmail" validate:"omitempty,email,max=150"`
}

func (in *PropertyInput) normalize() {
	for _, s := range []*string{
		&in.Title, &in.Slug, &in.Description, &in.PropertyType, &in.Status, &in.ListingType,
		&in.AddressLine1, &in.AddressLine2, &in.City, &in.State, &in.Pincode, &in.Locality,
		&in.Landmark, &in.Currency, &in.AreaUnit, &in.Facing, &in.FurnishingStatus,
		&in.AgeOfProperty, &in.FeaturedImage, &in.VideoURL, &in.VirtualTourURL, &in.ReraNumber,
		&in.ApprovalAuthority, &in.OwnershipType, &in.OwnerName, &in.OwnerPhone, &in.OwnerEmail,
	} {
		*s = strings.TrimSpace(*s)
	}
	in.OwnerEmail = strings.ToLower(in.OwnerEmail)
	in.Currency = strings.ToUpper(in.Currency)
}

// editableFields are the columns an edit may write. Counters, moderation
// and trash state are owned by other flows and never written back here.
var editableFields = []string{
	"Title", "Slug", "Description", "PropertyType", "Status", "ListingType",
	"AddressLine1", "AddressLine2", "City", "State", "Pincode", "Locality", "Landmark",
	"Latitude", "Longitude",
	"Price", "Currency", "PricePerSqft", "Negotiable",
	"Bedrooms", "Bathrooms", "Balconies", "Area", "AreaUnit", "CarpetArea", "BuiltUpArea",
	"PlotArea", "TotalFloors", "FloorNumber", "Facing", "FurnishingStatus", "AgeOfProperty",
	"PossessionDate",
	"Amenities", "Highlights", "NearbyFacilities", "Documents",
	"Images", "FeaturedImage", "VideoURL", "VirtualTourURL",
	"ReraApproved", "ReraNumber", "ApprovalAuthority", "OwnershipType",
	"PartnerID", "OwnerName", "OwnerPhone", "OwnerEmail",
}

// ImageRemover deletes stored image files that no property references
type ImageRemover interface {
	RemoveAll(urls ...string) int
}

// TrashItem is a deleted property with its retention countdown
type TrashItem struct {
	domain.Property
	ExpiresAt     *time.Time `json:"expiresAt"`
	DaysRemaining int        `json:"daysRemaining"`
}

// PropertyService implements property browsing and mutation
type PropertyService struct {
	db       *gorm.DB
	notifier *Notifier
	images   ImageRemover
	limits   config.ListingConfig
	trash    config.TrashConfig
	now      func() time.Time
}

// NewPropertyService creates a new property service. images may be nil, in
// which case files of dropped images are left on disk.
func NewPropertyService(db *gorm.DB, notifier *Notifier, images ImageRemover, limits config.ListingConfig, trash config.TrashConfig) *PropertyService {
	return &PropertyService{
		db:       db,
		notifier: notifier,
		images:   images,
		limits:   limits,
		trash:    trash,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// List runs the listing query for the caller
func (s *PropertyService) List(ctx context.Context, q url.Values) (listing.Page[domain.Property], error) {
	c, err := listing.Parse(q, s.limits)
	if err != nil {
		return listing.Page[domain.Property]{}, err
	}
	page, err := listing.Find(ctx, s.db, c, viewerOf(ctx))
	if err != nil {
		log.Printf("[PROPERTY] List failed: database error: %v", err)
		return listing.Page[domain.Property]{}, apperrors.Internal("failed to list properties", err)
	}
	return page, nil
}

// Categories returns the browse category table
func (s *PropertyService) Categories() []listing.Category {
	return listing.Categories()
}

// GetBySlug returns a publicly visible property, or any property to its
// creator or an admin. Hidden properties are reported as not found.
func (s *PropertyService) GetBySlug(ctx context.Context, slug string) (*domain.Property, error) {
	var p domain.Property
	if err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&p).Error; err != nil {
		return nil, notFoundOr(err, "property")
	}
	if !p.IsPubliclyVisible() {
		user, ok := UserFrom(ctx)
		if !ok || !canManage(user, &p) {
			return nil, apperrors.NotFound("property not found")
		}
	}
	return &p, nil
}

// Get returns a property by id to its creator or an admin
func (s *PropertyService) Get(ctx context.Context, id uint) (*domain.Property, error) {
	user, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	return s.loadManaged(ctx, s.db, id, user)
}

func (s *PropertyService) loadManaged(ctx context.Context, tx *gorm.DB, id uint, user *domain.User) (*domain.Property, error) {
	var p domain.Property
	if err := tx.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, notFoundOr(err, "property")
	}
	if !canManage(user, &p) {
		return nil, apperrors.Forbidden("only the creator or an admin may modify this property")
	}
	return &p, nil
}

// Create validates and stores a new property in the pending state
func (s *PropertyService) Create(ctx context.Context, in *PropertyInput) (*domain.Property, error) {
	user, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	in.normalize()
	log.Printf("[PROPERTY] Create request: title=%q, city=%s, user=%d", in.Title, in.City, user.ID)

	if err := validate.Struct(in); err != nil {
		log.Printf("[PROPERTY] Create failed: validation error: %v", err)
		return nil, validationError(err)
	}
	if err := s.checkPartner(ctx, in.PartnerID); err != nil {
		return nil, err
	}

	p := domain.Property{}
	s.apply(&p, in)
	p.Images = normalizeList(in.Images)
	if p.FeaturedImage == "" && len(p.Images) > 0 {
		p.FeaturedImage = p.Images[0]
	}
	p.ApprovalStatus = domain.ApprovalPending
	p.CreatedBy = &user.ID
	if p.OwnerName == "" {
		p.OwnerName = user.DisplayName()
	}
	if p.OwnerEmail == "" {
		p.OwnerEmail = user.Email
	}

	base := in.Slug
	if base == "" {
		base = in.Title + " " + in.City
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		slug, err := util.UniqueSlug(tx, "properties", "slug", base)
		if err != nil {
			return err
		}
		p.Slug = slug
		return tx.Create(&p).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			log.Printf("[PROPERTY] Create failed: slug collision for %q", p.Slug)
			return nil, apperrors.Conflict("a property with this slug already exists, please retry")
		}
		log.Printf("[PROPERTY] Create failed: database error: %v", err)
		return nil, apperrors.Internal("failed to create property", err)
	}

	log.Printf("[PROPERTY] Create successful: id=%d, slug=%s", p.ID, p.Slug)
	metrics.RecordPropertyCreated()
	return &p, nil
}

// Update replaces the editable fields of a property
func (s *PropertyService) Update(ctx context.Context, id uint, in *PropertyInput) (*domain.Property, error) {
	user, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	in.normalize()
	log.Printf("[PROPERTY] Update request: id=%d, user=%d", id, user.ID)

	if err := validate.Struct(in); err != nil {
		log.Printf("[PROPERTY] Update failed: validation error: %v", err)
		return nil, validationError(err)
	}
	if err := s.checkPartner(ctx, in.PartnerID); err != nil {
		return nil, err
	}

	var p *domain.Property
	var dropped []string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		p, err = s.loadManaged(ctx, tx, id, user)
		if err != nil {
			return err
		}
		before := p.ImageURLs()

		images, err := mergeImages(p.Images, in)
		if err != nil {
			return err
		}

		s.apply(p, in)
		p.Images = images
		if p.FeaturedImage == "" && len(p.Images) > 0 {
			p.FeaturedImage = p.Images[0]
		}

		// Published slugs are permanent links
		if !p.IsPublished() && in.Slug != "" && util.Slugify(in.Slug, 0) != p.Slug {
			slug, err := util.UniqueSlug(tx, "properties", "slug", in.Slug)
			if err != nil {
				return err
			}
			p.Slug = slug
		}

		if err := tx.Model(p).Select(editableFields).Updates(p).Error; err != nil {
			return err
		}

		// An edited rejection goes back to the review queue
		if err := tx.Model(&domain.Property{}).
			Where("id = ? AND approval_status = ?", p.ID, domain.ApprovalRejected).
			Updates(map[string]interface{}{
				"approval_status":  domain.ApprovalPending,
				"rejection_reason": nil,
			}).Error; err != nil {
			return err
		}

		var stored domain.Property
		if err := tx.First(&stored, p.ID).Error; err != nil {
			return err
		}
		p = &stored
		dropped = domain.DroppedImages(before, p.ImageURLs())
		return nil
	})
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			log.Printf("[PROPERTY] Update failed: %v", err)
			return nil, err
		}
		if isUniqueViolation(err) {
			return nil, apperrors.Conflict("slug already in use")
		}
		log.Printf("[PROPERTY] Update failed: database error: %v", err)
		return nil, apperrors.Internal("failed to update property", err)
	}

	s.removeImages(p.ID, dropped)
	log.Printf("[PROPERTY] Update successful: id=%d, slug=%s, approval=%s", p.ID, p.Slug, p.ApprovalStatus)
	return p, nil
}

// removeImages deletes files no longer referenced by property id. It runs
// after the owning transaction has committed.
func (s *PropertyService) removeImages(id uint, urls []string) {
	if s.images == nil || len(urls) == 0 {
		return
	}
	n := s.images.RemoveAll(urls...)
	log.Printf("[PROPERTY] Removed %d/%d image files of id=%d", n, len(urls), id)
}

// mergeImages rebuilds the image list of an edit from the stored list
func mergeImages(stored []string, in *PropertyInput) ([]string, error) {
	if in.ExistingImages == nil && len(in.NewImages) == 0 && len(in.RemoveImages) == 0 {
		if in.Images != nil {
			// plain full replace
			return normalizeList(in.Images), nil
		}
		return stored, nil
	}

	set := domain.NewImageSet(stored)
	if in.ExistingImages != nil {
		if err := set.Retain(*in.ExistingImages); err != nil {
			return nil, apperrors.Validation("validation failed", map[string]string{"existingImages": err.Error()})
		}
	}
	set.Add(in.NewImages...)

	// highest index first so the remaining indexes stay valid
	idx := append([]int(nil), in.RemoveImages...)
	sort.Sort(sort.Reverse(sort.IntSlice(idx)))
	for i, n := range idx {
		if i > 0 && idx[i-1] == n {
			continue
		}
		if err := set.Remove(n); err != nil {
			return nil, apperrors.Validation("validation failed", map[string]string{"removeImages": err.Error()})
		}
	}
	return set.Final(), nil
}

// apply copies every editable field of in onto p
func (s *PropertyService) apply(p *domain.Property, in *PropertyInput) {
	p.Title = in.Title
	p.Description = in.Description
	p.PropertyType = in.PropertyType
	if p.PropertyType == "" {
		p.PropertyType = "residential"
	}
	p.Status = in.Status
	if p.Status == "" {
		p.Status = domain.PropertyStatusAvailable
	}
	p.ListingType = in.ListingType
	if p.ListingType == "" {
		p.ListingType = "sale"
	}

	p.AddressLine1 = in.AddressLine1
	p.AddressLine2 = in.AddressLine2
	p.City = in.City
	p.State = in.State
	p.Pincode = in.Pincode
	p.Locality = in.Locality
	p.Landmark = in.Landmark
	p.Latitude = in.Latitude.Float()
	p.Longitude = in.Longitude.Float()

	p.Price = *in.Price.Float()
	p.Currency = in.Currency
	if p.Currency == "" {
		p.Currency = "INR"
	}
	p.Negotiable = in.Negotiable

	p.Bedrooms = in.Bedrooms.Int()
	p.Bathrooms = in.Bathrooms.Int()
	p.Balconies = in.Balconies.Int()
	p.Area = *in.Area.Float()
	p.AreaUnit = in.AreaUnit
	if p.AreaUnit == "" {
		p.AreaUnit = "sqft"
	}
	p.CarpetArea = in.CarpetArea.Float()
	p.BuiltUpArea = in.BuiltUpArea.Float()
	p.PlotArea = in.PlotArea.Float()
	p.TotalFloors = in.TotalFloors.Int()
	p.FloorNumber = in.FloorNumber.Int()
	p.Facing = in.Facing
	p.FurnishingStatus = in.FurnishingStatus
	p.AgeOfProperty = in.AgeOfProperty
	p.PossessionDate = in.PossessionDate.Ptr()

	p.Amenities = normalizeList(in.Amenities)
	p.Highlights = normalizeList(in.Highlights)
	p.NearbyFacilities = normalizeList(in.NearbyFacilities)
	p.Documents = normalizeList(in.Documents)
	p.FeaturedImage = in.FeaturedImage
	p.VideoURL = in.VideoURL
	p.VirtualTourURL = in.VirtualTourURL

	p.ReraApproved = in.ReraApproved
	p.ReraNumber = in.ReraNumber
	p.ApprovalAuthority = in.ApprovalAuthority
	p.OwnershipType = in.OwnershipType

	p.PartnerID = in.PartnerID
	p.OwnerName = in.OwnerName
	p.OwnerPhone = in.OwnerPhone
	p.OwnerEmail = in.OwnerEmail

	p.RecomputePricePerSqft()
}

func (s *PropertyService) checkPartner(ctx context.Context, id *uint) error {
	if id == nil {
		return nil
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&domain.Partner{}).Where("id = ?", *id).Count(&count).Error; err != nil {
		return apperrors.Internal("failed to check partner", err)
	}
	if count == 0 {
		return apperrors.Validation("validation failed", map[string]string{"partnerId": "unknown partner"})
	}
	return nil
}

// RecordView increments the view counter of a visible property. Failures
// are logged and swallowed; the caller never waits on the outcome.
func (s *PropertyService) RecordView(ctx context.Context, id uint) {
	res := s.db.WithContext(ctx).Model(&domain.Property{}).
		Where("id = ? AND deleted = ? AND approval_status = ?", id, false, domain.ApprovalApproved).
		UpdateColumn("view_count", gorm.Expr("view_count + ?", 1))
	if res.Error != nil {
		log.Printf("[PROPERTY] Warning: view increment failed for id=%d: %v", id, res.Error)
		return
	}
	if res.RowsAffected > 0 {
		metrics.RecordPropertyView()
	}
}

// Delete soft-deletes a property, or purges it and its favorites when
// permanent is set. Soft delete is idempotent.
func (s *PropertyService) Delete(ctx context.Context, id uint, permanent bool) error {
	user, err := requireUser(ctx)
	if err != nil {
		return err
	}
	log.Printf("[PROPERTY] Delete request: id=%d, permanent=%v, user=%d", id, permanent, user.ID)

	p, err := s.loadManaged(ctx, s.db, id, user)
	if err != nil {
		log.Printf("[PROPERTY] Delete failed: %v", err)
		return err
	}

	if permanent {
		purged, err := database.PurgeProperties(s.db.WithContext(ctx), []uint{p.ID})
		if err != nil {
			log.Printf("[PROPERTY] Purge failed: database error: %v", err)
			return apperrors.Internal("failed to purge property", err)
		}
		for _, gone := range purged {
			s.removeImages(gone.ID, gone.ImageURLs())
		}
		log.Printf("[PROPERTY] Purge successful: id=%d, slug=%s", p.ID, p.Slug)
		metrics.RecordDeletion("purge")
		return nil
	}

	if p.Deleted {
		log.Printf("[PROPERTY] Delete no-op: id=%d already in trash", p.ID)
		return nil
	}
	p.SoftDelete(s.now())
	if err := s.db.WithContext(ctx).Model(p).Updates(map[string]interface{}{
		"deleted":    true,
		"deleted_at": p.DeletedAt,
	}).Error; err != nil {
		log.Printf("[PROPERTY] Delete failed: database error: %v", err)
		return apperrors.Internal("failed to delete property", err)
	}

	log.Printf("[PROPERTY] Delete successful: id=%d moved to trash", p.ID)
	metrics.RecordDeletion("soft")
	return nil
}

// Restore clears the soft-delete fields of a property
func (s *PropertyService) Restore(ctx context.Context, id uint) (*domain.Property, error) {
	user, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	log.Printf("[PROPERTY] Restore request: id=%d, user=%d", id, user.ID)

	p, err := s.loadManaged(ctx, s.db, id, user)
	if err != nil {
		log.Printf("[PROPERTY] Restore failed: %v", err)
		return nil, err
	}
	if !p.Deleted {
		return p, nil
	}

	p.Restore()
	if err := s.db.WithContext(ctx).Model(p).Updates(map[string]interface{}{
		"deleted":    false,
		"deleted_at": nil,
	}).Error; err != nil {
		log.Printf("[PROPERTY] Restore failed: database error: %v", err)
		return nil, apperrors.Internal("failed to restore property", err)
	}

	log.Printf("[PROPERTY] Restore successful: id=%d", p.ID)
	metrics.RecordDeletion("restore")
	return p, nil
}

// Trash lists deleted properties: all of them for admins, the caller's own
// otherwise.
func (s *PropertyService) Trash(ctx context.Context, q url.Values) (listing.Page[TrashItem], error) {
	user, err := requireUser(ctx)
	if err != nil {
		return listing.Page[TrashItem]{}, err
	}
	c, err := listing.Parse(q, s.limits)
	if err != nil {
		return listing.Page[TrashItem]{}, err
	}
	c.OnlyDeleted = true
	c.ApprovalStatus = listing.ApprovalAll
	c.Mine = !user.IsAdmin()

	page, err := listing.Find(ctx, s.db, c, viewerOf(ctx))
	if err != nil {
		log.Printf("[PROPERTY] Trash failed: database error: %v", err)
		return listing.Page[TrashItem]{}, apperrors.Internal("failed to list trash", err)
	}

	retention := s.trash.Retention()
	now := s.now()
	items := make([]TrashItem, len(page.Items))
	for i := range page.Items {
		p := page.Items[i]
		items[i] = TrashItem{
			Property:      p,
			ExpiresAt:     p.TrashExpiresAt(retention),
			DaysRemaining: p.DaysRemaining(retention, now),
		}
	}
	return listing.NewPage(items, page.Total, page.Limit, page.Offset), nil
}
