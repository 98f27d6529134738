package domain

import (
	"errors"
	"math"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Property statuses
const (
	PropertyStatusAvailable         = "available"
	PropertyStatusSold              = "sold"
	PropertyStatusReserved          = "reserved"
	PropertyStatusUnderConstruction = "under_construction"
)

// Approval statuses
const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

// ErrRejectionReasonRequired is returned when a property is rejected without a reason
var ErrRejectionReasonRequired = errors.New("rejection reason is required")

// Property is a real-estate listing
type Property struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Slug        string `gorm:"size:200;uniqueIndex;not null" json:"slug"`
	Title       string `gorm:"size:255;not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`

	PropertyType string `gorm:"size:40;index;not null" json:"propertyType"`
	Status       string `gorm:"size:40;default:'available';index" json:"status"`
	ListingType  string `gorm:"size:20;default:'sale'" json:"listingType"`

	AddressLine1 string   `gorm:"size:255" json:"addressLine1"`
	AddressLine2 string   `gorm:"size:255" json:"addressLine2"`
	City         string   `gorm:"size:100;index;not null" json:"city"`
	State        string   `gorm:"size:100;index" json:"state"`
	Pincode      string   `gorm:"size:12" json:"pincode"`
	Locality     string   `gorm:"size:150" json:"locality"`
	Landmark     string   `gorm:"size:150" json:"landmark"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`

	Price        float64  `gorm:"type:numeric(14,2);not null;index" json:"price"`
	Currency     string   `gorm:"size:3;default:'INR'" json:"currency"`
	PricePerSqft *float64 `gorm:"type:numeric(14,2)" json:"pricePerSqft"`
	Negotiable   bool     `gorm:"default:false" json:"negotiable"`

	Bedrooms         *int       `json:"bedrooms"`
	Bathrooms        *int       `json:"bathrooms"`
	Balconies        *int       `json:"balconies"`
	Area             float64    `gorm:"type:numeric(14,2);not null;index" json:"area"`
	AreaUnit         string     `gorm:"size:20;default:'sqft'" json:"areaUnit"`
	CarpetArea       *float64   `gorm:"type:numeric(14,2)" json:"carpetArea"`
	BuiltUpArea      *float64   `gorm:"type:numeric(14,2)" json:"builtUpArea"`
	PlotArea         *float64   `gorm:"type:numeric(14,2)" json:"plotArea"`
	TotalFloors      *int       `json:"totalFloors"`
	FloorNumber      *int       `json:"floorNumber"`
	Facing           string     `gorm:"size:30" json:"facing"`
	FurnishingStatus string     `gorm:"size:30" json:"furnishingStatus"`
	AgeOfProperty    string     `gorm:"size:30" json:"ageOfProperty"`
	PossessionDate   *time.Time `json:"possessionDate"`

	Amenities        datatypes.JSONSlice[string] `json:"amenities"`
	Highlights       datatypes.JSONSlice[string] `json:"highlights"`
	NearbyFacilities datatypes.JSONSlice[string] `json:"nearbyFacilities"`
	Documents        datatypes.JSONSlice[string] `json:"documents"`
	Images           datatypes.JSONSlice[string] `json:"images"`
	FeaturedImage    string                      `gorm:"size:500" json:"featuredImage"`
	VideoURL         string                      `gorm:"size:500" json:"videoUrl"`
	VirtualTourURL   string                      `gorm:"size:500" json:"virtualTourUrl"`

	ReraApproved      bool   `gorm:"default:false" json:"reraApproved"`
	ReraNumber        string `gorm:"size:100" json:"reraNumber"`
	ApprovalAuthority string `gorm:"size:100" json:"approvalAuthority"`
	OwnershipType     string `gorm:"size:50" json:"ownershipType"`

	PartnerID  *uint    `gorm:"index" json:"partnerId"`
	Partner    *Partner `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"-"`
	CreatedBy  *uint    `gorm:"index" json:"createdBy"`
	Creator    *User    `gorm:"foreignKey:CreatedBy;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"-"`
	OwnerName  string   `gorm:"size:150" json:"ownerName"`
	OwnerPhone string   `gorm:"size:20" json:"ownerPhone"`
	OwnerEmail string   `gorm:"size:150" json:"ownerEmail"`

	IsVerified      bool       `gorm:"default:false" json:"isVerified"`
	IsFeatured      bool       `gorm:"default:false;index" json:"isFeatured"`
	ApprovalStatus  string     `gorm:"size:20;default:'pending';index" json:"approvalStatus"`
	RejectionReason *string    `gorm:"type:text" json:"rejectionReason"`
	ModeratedBy     *uint      `json:"moderatedBy"`
	ModeratedAt     *time.Time `json:"moderatedAt"`

	Deleted   bool       `gorm:"default:false;index" json:"deleted"`
	DeletedAt *time.Time `json:"deletedAt"`

	ViewCount    int64 `gorm:"default:0" json:"viewCount"`
	InquiryCount int64 `gorm:"default:0" json:"inquiryCount"`

	PublishedAt *time.Time `json:"publishedAt"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// TableName specifies the table name for Property
func (Property) TableName() string {
	return "properties"
}

// BeforeCreate hook
func (p *Property) BeforeCreate(tx *gorm.DB) error {
	if p.Status == "" {
		p.Status = PropertyStatusAvailable
	}
	if p.ApprovalStatus == "" {
		p.ApprovalStatus = ApprovalPending
	}
	if p.Currency == "" {
		p.Currency = "INR"
	}
	if p.AreaUnit == "" {
		p.AreaUnit = "sqft"
	}
	if p.ListingType == "" {
		p.ListingType = "sale"
	}
	return nil
}

// ImageURLs returns the gallery plus the featured image, without duplicates
func (p *Property) ImageURLs() []string {
	out := make([]string, 0, len(p.Images)+1)
	seen := make(map[string]bool, len(p.Images)+1)
	for _, u := range append([]string{p.FeaturedImage}, p.Images...) {
		if u != "" && !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}
	return out
}

// IsPublished reports whether the property has ever been approved
func (p *Property) IsPublished() bool {
	return p.PublishedAt != nil
}

// IsPubliclyVisible reports whether anonymous visitors may see the property
func (p *Property) IsPubliclyVisible() bool {
	return !p.Deleted && p.ApprovalStatus == ApprovalApproved
}

// IsOwnedBy reports whether userID created the property
func (p *Property) IsOwnedBy(userID uint) bool {
	return p.CreatedBy != nil && *p.CreatedBy == userID
}

// Approve moves the property to approved. PublishedAt is set only once.
func (p *Property) Approve(by uint, now time.Time) {
	p.ApprovalStatus = ApprovalApproved
	p.RejectionReason = nil
	p.ModeratedBy = &by
	p.ModeratedAt = &now
	if p.PublishedAt == nil {
		p.PublishedAt = &now
	}
}

// Reject moves the property to rejected with a non-empty reason
func (p *Property) Reject(by uint, reason string, now time.Time) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrRejectionReasonRequired
	}
	p.ApprovalStatus = ApprovalRejected
	p.RejectionReason = &reason
	p.ModeratedBy = &by
	p.ModeratedAt = &now
	return nil
}

// SoftDelete hides the property. Deleting twice keeps the first timestamp.
func (p *Property) SoftDelete(now time.Time) {
	if p.Deleted && p.DeletedAt != nil {
		return
	}
	p.Deleted = true
	p.DeletedAt = &now
}

// Restore clears both soft-delete fields
func (p *Property) Restore() {
	p.Deleted = false
	p.DeletedAt = nil
}

// TrashExpiresAt returns when the retention window for a deleted property ends
func (p *Property) TrashExpiresAt(retention time.Duration) *time.Time {
	if p.DeletedAt == nil {
		return nil
	}
	t := p.DeletedAt.Add(retention)
	return &t
}

// DaysRemaining returns the whole days left in the retention window, never negative
func (p *Property) DaysRemaining(retention time.Duration, now time.Time) int {
	expires := p.TrashExpiresAt(retention)
	if expires == nil {
		return 0
	}
	left := expires.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Hours() / 24))
}

// RecomputePricePerSqft derives PricePerSqft from Price and Area
func (p *Property) RecomputePricePerSqft() {
	if p.Area <= 0 {
		p.PricePerSqft = nil
		return
	}
	v := math.Round(p.Price/p.Area*100) / 100
	p.PricePerSqft = &v
}
