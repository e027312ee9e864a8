package models

import (
	"time"
)

// Sector is an entry of the catalogue citizens pick from. Consultations keep
// the sector name, not a foreign key, so renaming a sector never rewrites history.
type Sector struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Name        string `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Description string `gorm:"type:text" json:"description,omitempty"`
	IsActive    bool   `gorm:"not null;default:true" json:"active"`
}

// TableName specifies the table name
func (Sector) TableName() string {
	return "sectors"
}
