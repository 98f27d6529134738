package domain

import (
	"errors"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Verification statuses shared by investors and partners
const (
	VerificationPending  = "pending"
	VerificationVerified = "verified"
	VerificationRejected = "rejected"
)

// Actor holds the contact, credential and KYC-review fields shared by
// investors and partners.
type Actor struct {
	FullName string `gorm:"size:150;not null" json:"fullName"`
	Email    string `gorm:"size:150;uniqueIndex;not null" json:"email"`
	Phone    string `gorm:"size:20;not null" json:"phone"`
	City     string `gorm:"size:100" json:"city"`
	State    string `gorm:"size:100" json:"state"`

	PasswordHash           *string    `json:"-"`
	EmailVerified          bool       `gorm:"default:false" json:"emailVerified"`
	EmailVerificationToken *string    `gorm:"size:64;index" json:"-"`
	ResetToken             *string    `gorm:"size:64" json:"-"`
	ResetTokenExpiry       *time.Time `json:"-"`

	VerificationStatus string     `gorm:"size:20;default:'pending';index" json:"verificationStatus"`
	IsVerified         bool       `gorm:"default:false" json:"isVerified"`
	RejectionReason    *string    `gorm:"type:text" json:"rejectionReason"`
	VerifiedBy         *uint      `json:"verifiedBy"`
	VerifiedAt         *time.Time `json:"verifiedAt"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Verify marks the actor as verified and clears any earlier rejection
func (a *Actor) Verify(by uint, now time.Time) {
	a.VerificationStatus = VerificationVerified
	a.IsVerified = true
	a.RejectionReason = nil
	a.VerifiedBy = &by
	a.VerifiedAt = &now
}

// Reject marks the actor as rejected; reason must not be blank
func (a *Actor) Reject(by uint, reason string, now time.Time) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return errors.New("rejection reason is required")
	}
	a.VerificationStatus = VerificationRejected
	a.IsVerified = false
	a.RejectionReason = &reason
	a.VerifiedBy = &by
	a.VerifiedAt = &now
	return nil
}

// Investor is a registrant looking to buy or invest
type Investor struct {
	ID uint `gorm:"primaryKey" json:"id"`
	Actor

	InvestorType       string                      `gorm:"size:30;default:'individual'" json:"investorType"`
	BudgetMin          *float64                    `gorm:"type:numeric(14,2)" json:"budgetMin"`
	BudgetMax          *float64                    `gorm:"type:numeric(14,2)" json:"budgetMax"`
	PropertyTypes      datatypes.JSONSlice[string] `json:"propertyTypes"`
	PreferredLocations datatypes.JSONSlice[string] `json:"preferredLocations"`
	InvestmentHorizon  string                      `gorm:"size:30" json:"investmentHorizon"`
	PanNumber          *string                     `gorm:"size:10" json:"panNumber"`
	AadharNumber       *string                     `gorm:"size:12" json:"-"`
	Occupation         string                      `gorm:"size:100" json:"occupation"`
	AnnualIncome       string                      `gorm:"size:50" json:"annualIncome"`
}

// TableName specifies the table name for Investor
func (Investor) TableName() string {
	return "investors"
}

// Partner is a channel partner (agent, broker or developer) that lists properties
type Partner struct {
	ID uint `gorm:"primaryKey" json:"id"`
	Actor

	CompanyName               string                      `gorm:"size:200;not null" json:"companyName"`
	CompanyRegistrationNumber *string                     `gorm:"size:50" json:"companyRegistrationNumber"`
	GstNumber                 *string                     `gorm:"size:15" json:"gstNumber"`
	ReraNumber                *string                     `gorm:"size:50" json:"reraNumber"`
	YearsOfExperience         *int                        `json:"yearsOfExperience"`
	Specializations           datatypes.JSONSlice[string] `json:"specializations"`
	OperatingCities           datatypes.JSONSlice[string] `json:"operatingCities"`
	Website                   string                      `gorm:"size:255" json:"website"`
	SubscriptionPlan          string                      `gorm:"size:20;default:'basic'" json:"subscriptionPlan"`
}

// TableName specifies the table name for Partner
func (Partner) TableName() string {
	return "partners"
}
