package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PersonType classifies who is submitting a consultation
type PersonType string

const (
	PersonNatural  PersonType = "natural"  // Individual citizen
	PersonJuridica PersonType = "juridica" // Organization
	PersonAnonimo  PersonType = "anonimo"  // Unidentified
)

// IsValid reports whether the person type is one of the known classifications
func (p PersonType) IsValid() bool {
	switch p {
	case PersonNatural, PersonJuridica, PersonAnonimo:
		return true
	}
	return false
}

// ConsultationStatus is the moderation state of a consultation
type ConsultationStatus string

const (
	ConsultationActive   ConsultationStatus = "active"
	ConsultationArchived ConsultationStatus = "archived"
)

// IsValid reports whether the status is one of the known states
func (s ConsultationStatus) IsValid() bool {
	switch s {
	case ConsultationActive, ConsultationArchived:
		return true
	}
	return false
}

type Consultation struct {
	ID        string    `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	PersonType PersonType `gorm:"type:varchar(10);not null;index" json:"personType"`

	// natural
	FirstName string `gorm:"size:100" json:"firstName,omitempty"`
	LastName  string `gorm:"size:100" json:"lastName,omitempty"`
	Identity  string `gorm:"size:20" json:"identity,omitempty"`

	// juridica
	CompanyName         string `gorm:"size:200" json:"companyName,omitempty"`
	RTN                 string `gorm:"column:rtn;size:20" json:"rtn,omitempty"`
	LegalRepresentative string `gorm:"size:200" json:"legalRepresentative,omitempty"`
	CompanyContact      string `gorm:"size:150" json:"companyContact,omitempty"`

	// Contact (any person type)
	Email  string `gorm:"size:150" json:"email,omitempty"`
	Mobile string `gorm:"size:20" json:"mobile,omitempty"`

	// Location
	DepartmentID   string        `gorm:"type:varchar(2);not null;index" json:"departmentId"`
	Department     *Department   `gorm:"foreignKey:DepartmentID" json:"department,omitempty"`
	MunicipalityID string        `gorm:"type:varchar(16);not null;index" json:"municipalityId"`
	Municipality   *Municipality `gorm:"foreignKey:MunicipalityID" json:"municipality,omitempty"`
	LocalityID     *string       `gorm:"type:varchar(24);index" json:"localityId,omitempty"`
	Locality       *Locality     `gorm:"foreignKey:LocalityID" json:"locality,omitempty"`
	Zone           Area          `gorm:"type:varchar(10);not null" json:"zone"`
	CustomLocality string        `gorm:"size:200" json:"customLocality,omitempty"` // Used when the locality is missing from the catalogue
	Latitude       *float64      `json:"latitude,omitempty"`
	Longitude      *float64      `json:"longitude,omitempty"`
	Geocode        string        `gorm:"size:20;not null;index" json:"geocode"` // Always derived server-side

	// Content
	Message         string                      `gorm:"type:text;not null" json:"message"`
	SelectedSectors datatypes.JSONSlice[string] `json:"selectedSectors"`
	Images          datatypes.JSONSlice[string] `json:"images"` // Storage keys

	Status ConsultationStatus `gorm:"type:varchar(10);not null;default:active;index" json:"status"`

	// Audit fields
	IPAddress string `gorm:"size:45" json:"-"`
	UserAgent string `gorm:"type:text" json:"-"`
}

// BeforeCreate hook to generate UUID
func (c *Consultation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name
func (Consultation) TableName() string {
	return "consultations"
}

// DisplayName returns the submitter's name as shown on the dashboard and exports
func (c *Consultation) DisplayName() string {
	switch c.PersonType {
	case PersonNatural:
		return c.FirstName + " " + c.LastName
	case PersonJuridica:
		return c.CompanyName
	case PersonAnonimo:
		return "Anónimo"
	}
	return ""
}

// LocalityName returns the catalogue locality name or the citizen-supplied one
func (c *Consultation) LocalityName() string {
	if c.Locality != nil {
		return c.Locality.Name
	}
	return c.CustomLocality
}
