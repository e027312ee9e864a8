package models

import (
	"time"
)

// Municipality belongs to exactly one Department
type Municipality struct {
	ID        string    `gorm:"type:varchar(16);primarykey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	DepartmentID string      `gorm:"type:varchar(2);not null;index" json:"departmentId"`
	Department   *Department `gorm:"foreignKey:DepartmentID" json:"department,omitempty"`

	Name    string `gorm:"size:150;not null" json:"name"`
	Geocode string `gorm:"size:10;not null" json:"geocode"` // Fragment appended after the department geocode

	// Relationships
	Localities []Locality `gorm:"foreignKey:MunicipalityID" json:"localities,omitempty"`
}

// TableName specifies the table name
func (Municipality) TableName() string {
	return "municipalities"
}
