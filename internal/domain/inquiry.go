package domain

import (
	"time"

	"gorm.io/gorm"
)

// Inquiry statuses, in workflow order
const (
	InquiryPending    = "pending"
	InquiryInProgress = "in_progress"
	InquiryResolved   = "resolved"
	InquiryClosed     = "closed"
)

// Inquiry priorities
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Inquiry types
const (
	InquiryGeneral     = "general"
	InquiryProperty    = "property"
	InquiryInvestment  = "investment"
	InquiryPartnership = "partnership"
	InquirySupport     = "support"
)

// Inquiry represents a visitor message, optionally about a property
type Inquiry struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	Name        string  `gorm:"size:150;not null" json:"name"`
	Email       string  `gorm:"size:150;not null;index" json:"email"`
	Phone       *string `gorm:"size:20" json:"phone"`
	InquiryType string  `gorm:"size:20;default:'general';index" json:"inquiryType"`
	// PropertyID is a soft reference; the property may not exist.
	PropertyID   *uint   `gorm:"index" json:"propertyId"`
	PropertyName *string `gorm:"size:255" json:"propertyName"`
	UserType     *string `gorm:"size:30" json:"userType"`
	Subject      *string `gorm:"size:255" json:"subject"`
	Message      string  `gorm:"type:text;not null" json:"message"`

	Status     string  `gorm:"size:20;default:'pending';index" json:"status"`
	Priority   string  `gorm:"size:10;default:'medium';index" json:"priority"`
	AssignedTo *string `gorm:"size:150" json:"assignedTo"`

	ResponseMessage *string    `gorm:"type:text" json:"responseMessage"`
	RespondedBy     *string    `gorm:"size:150" json:"respondedBy"`
	RespondedAt     *time.Time `json:"respondedAt"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name for Inquiry
func (Inquiry) TableName() string {
	return "inquiries"
}

// BeforeCreate hook
func (i *Inquiry) BeforeCreate(tx *gorm.DB) error {
	if i.Status == "" {
		i.Status = InquiryPending
	}
	if i.Priority == "" {
		i.Priority = PriorityMedium
	}
	if i.InquiryType == "" {
		i.InquiryType = InquiryGeneral
	}
	return nil
}

// Respond attaches a response and resolves the inquiry in one step
func (i *Inquiry) Respond(message, by string, now time.Time) {
	i.Status = InquiryResolved
	i.ResponseMessage = &message
	i.RespondedBy = &by
	i.RespondedAt = &now
}

// ValidInquiryStatus reports whether s is a known inquiry status
func ValidInquiryStatus(s string) bool {
	switch s {
	case InquiryPending, InquiryInProgress, InquiryResolved, InquiryClosed:
		return true
	}
	return false
}

// ValidPriority reports whether p is a known priority
func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}
