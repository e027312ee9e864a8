package models

import (
	"time"
)

// Area is the urban/rural classification of a locality (the form calls it "zona")
type Area string

const (
	AreaUrbano Area = "urbano"
	AreaRural  Area = "rural"
)

// IsValid reports whether the area is one of the known classifications
func (a Area) IsValid() bool {
	switch a {
	case AreaUrbano, AreaRural:
		return true
	}
	return false
}

// Locality is a village, neighbourhood or hamlet inside a municipality
type Locality struct {
	ID        string    `gorm:"type:varchar(24);primarykey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	MunicipalityID string        `gorm:"type:varchar(16);not null;index" json:"municipalityId"`
	Municipality   *Municipality `gorm:"foreignKey:MunicipalityID" json:"municipality,omitempty"`

	Name    string `gorm:"size:200;not null" json:"name"`
	Area    Area   `gorm:"type:varchar(10);not null;index" json:"area"`
	Geocode string `gorm:"size:10;not null" json:"geocode"`
}

// TableName specifies the table name
func (Locality) TableName() string {
	return "localities"
}
