package models

import (
	"time"
)

// Department is one of the 18 departments of Honduras. The ID is the official
// two-digit code and doubles as the first geocode fragment.
type Department struct {
	ID        string    `gorm:"type:varchar(2);primarykey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Name    string `gorm:"size:100;not null" json:"name"`
	Geocode string `gorm:"size:10;not null" json:"geocode"`

	// Relationships
	Municipalities []Municipality `gorm:"foreignKey:DepartmentID" json:"municipalities,omitempty"`
}

// TableName specifies the table name
func (Department) TableName() string {
	return "departments"
}
