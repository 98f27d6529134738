package domain

import (
	"time"

	"gorm.io/gorm"
)

// User roles
const (
	RoleUser  = "user"
	RoleStaff = "staff"
	RoleAdmin = "admin"
)

// User represents an account that can sign in
type User struct {
	ID                     uint       `gorm:"primaryKey" json:"id"`
	Username               string     `gorm:"size:100;uniqueIndex;not null" json:"username"`
	Email                  string     `gorm:"size:150;uniqueIndex;not null" json:"email"`
	HashedPassword         string     `gorm:"not null" json:"-"`
	FullName               *string    `json:"fullName"`
	Phone                  *string    `gorm:"size:20" json:"phone"`
	Role                   string     `gorm:"size:20;default:'user';index" json:"role"`
	IsActive               bool       `gorm:"default:true" json:"isActive"`
	EmailVerified          bool       `gorm:"default:false" json:"emailVerified"`
	EmailVerificationToken *string    `gorm:"size:64;index" json:"-"`
	ResetToken             *string    `gorm:"size:64;index" json:"-"`
	ResetTokenExpiry       *time.Time `json:"-"`
	CreatedAt              time.Time  `json:"createdAt"`
	UpdatedAt              time.Time  `json:"updatedAt"`
	LastLogin              *time.Time `json:"lastLogin"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "users"
}

// BeforeCreate hook
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.Role == "" {
		u.Role = RoleUser
	}
	return nil
}

// IsAdmin reports whether the user holds the admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsStaff reports whether the user may triage inquiries. Admins are staff.
func (u *User) IsStaff() bool {
	return u.Role == RoleStaff || u.Role == RoleAdmin
}

// DisplayName returns the full name, falling back to the username
func (u *User) DisplayName() string {
	if u.FullName != nil && *u.FullName != "" {
		return *u.FullName
	}
	return u.Username
}

// ValidRole reports whether role is a known role
func ValidRole(role string) bool {
	switch role {
	case RoleUser, RoleStaff, RoleAdmin:
		return true
	}
	return false
}
