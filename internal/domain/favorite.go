package domain

import "time"

// Favorite joins a user to a property they saved. A pair appears at most once.
type Favorite struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;uniqueIndex:idx_favorites_user_property" json:"userId"`
	User       *User     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	PropertyID uint      `gorm:"not null;uniqueIndex:idx_favorites_user_property;index" json:"propertyId"`
	Property   *Property `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"property,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// TableName specifies the table name for Favorite
func (Favorite) TableName() string {
	return "favorites"
}
