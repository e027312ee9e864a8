package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"consulta_ciudadana_go/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	// DefaultPageSize is used when the listing request carries no limit
	DefaultPageSize = 50
	// MaxPageSize caps a single page of the dashboard listing
	MaxPageSize = 500
	// MaxExportRows caps how many rows a single export may contain
	MaxExportRows = 10000
	// MaxImagesPerConsultation bounds the attachments of one submission
	MaxImagesPerConsultation = 10
)

var (
	ErrConsultationNotFound = errors.New("consulta no encontrada")
	ErrInvalidStatus        = errors.New("estado inválido")
)

// SubmissionMeta carries request data that is stored with a consultation but
// never supplied in the form body itself.
type SubmissionMeta struct {
	IPAddress string
	UserAgent string
	Images    []string // Storage keys of already uploaded images
}

// CreateConsultation validates the input, checks the location chain, derives
// the geocode and inserts the record. Nothing is written when any check fails.
func CreateConsultation(db *gorm.DB, in *ConsultationInput, meta SubmissionMeta) (*models.Consultation, error) {
	if verr := ValidateConsultationInput(in); verr != nil {
		return nil, verr
	}
	if len(meta.Images) > MaxImagesPerConsultation {
		return nil, &ValidationError{Fields: map[string]string{
			"images": fmt.Sprintf("Se permiten como máximo %d imágenes", MaxImagesPerConsultation),
		}}
	}

	loc, err := resolveConsultationLocation(db, in)
	if err != nil {
		return nil, err
	}

	consultation := &models.Consultation{
		Status:    models.ConsultationActive,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Images:    append([]string{}, meta.Images...),
	}
	applyConsultationInput(consultation, in, loc)

	if err := db.Create(consultation).Error; err != nil {
		return nil, fmt.Errorf("failed to create consultation: %w", err)
	}

	consultation.Department = &loc.Department
	consultation.Municipality = &loc.Municipality
	consultation.Locality = loc.Locality
	return consultation, nil
}

// resolveConsultationLocation runs the referential-integrity guard. A catalogue
// locality fills in the zone when none was sent and rejects a conflicting one.
func resolveConsultationLocation(db *gorm.DB, in *ConsultationInput) (*ResolvedLocation, error) {
	loc, err := ResolveLocation(db, in.DepartmentID, in.MunicipalityID, in.LocalityID)
	if err != nil {
		return nil, err
	}
	if loc.Locality == nil {
		return loc, nil
	}
	if in.Zone == "" {
		in.Zone = string(loc.Locality.Area)
	}
	if loc.Locality.Area != models.Area(in.Zone) {
		return nil, &ValidationError{Fields: map[string]string{
			"localityId": fmt.Sprintf("La localidad seleccionada es %s, no %s", loc.Locality.Area, in.Zone),
		}}
	}
	return loc, nil
}

// applyConsultationInput copies the validated input onto the record, keeping
// only the fields that belong to the submitter's person type.
func applyConsultationInput(c *models.Consultation, in *ConsultationInput, loc *ResolvedLocation) {
	c.PersonType = models.PersonType(in.PersonType)
	c.FirstName, c.LastName, c.Identity = "", "", ""
	c.CompanyName, c.RTN, c.LegalRepresentative, c.CompanyContact = "", "", "", ""

	switch c.PersonType {
	case models.PersonNatural:
		c.FirstName = in.FirstName
		c.LastName = in.LastName
		c.Identity = in.Identity
	case models.PersonJuridica:
		c.CompanyName = in.CompanyName
		c.RTN = in.RTN
		c.LegalRepresentative = in.LegalRepresentative
		c.CompanyContact = in.CompanyContact
	case models.PersonAnonimo:
	}
	c.Email = in.Email
	c.Mobile = in.Mobile

	c.DepartmentID = loc.Department.ID
	c.MunicipalityID = loc.Municipality.ID
	c.Zone = models.Area(in.Zone)
	c.Geocode = loc.Geocode
	if loc.Locality != nil {
		id := loc.Locality.ID
		c.LocalityID = &id
		c.CustomLocality = ""
		c.Latitude = nil
		c.Longitude = nil
	} else {
		c.LocalityID = nil
		c.CustomLocality = in.CustomLocality
		c.Latitude = in.Latitude
		c.Longitude = in.Longitude
	}

	c.Message = in.Message
	c.SelectedSectors = append([]string{}, in.SelectedSectors...)
}

// ConsultationFilter holds the dashboard listing and export filters
type ConsultationFilter struct {
	DateFrom     *time.Time // inclusive, start of day UTC
	DateTo       *time.Time // inclusive, start of day UTC
	DepartmentID string
	Sector       string
	Status       models.ConsultationStatus
	PersonType   models.PersonType
	Query        string
	Sort         string // createdAt, department, personType
	Order        string // asc, desc
	Offset       int
	Limit        int
}

var sortColumns = map[string]string{
	"createdAt":  "consultations.created_at",
	"department": "departments.name",
	"personType": "consultations.person_type",
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Normalize clamps paging and falls back to the default sort
func (f *ConsultationFilter) Normalize() {
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.Limit <= 0 {
		f.Limit = DefaultPageSize
	}
	if f.Limit > MaxPageSize {
		f.Limit = MaxPageSize
	}
	if _, ok := sortColumns[f.Sort]; !ok {
		f.Sort = "createdAt"
	}
	if f.Order != "asc" {
		f.Order = "desc"
	}
}

func (f *ConsultationFilter) apply(query *gorm.DB) *gorm.DB {
	if f.DateFrom != nil {
		query = query.Where("consultations.created_at >= ?", f.DateFrom.UTC())
	}
	if f.DateTo != nil {
		query = query.Where("consultations.created_at < ?", f.DateTo.UTC().AddDate(0, 0, 1))
	}
	if f.DepartmentID != "" {
		query = query.Where("consultations.department_id = ?", f.DepartmentID)
	}
	if f.Status != "" {
		query = query.Where("consultations.status = ?", f.Status)
	}
	if f.PersonType != "" {
		query = query.Where("consultations.person_type = ?", f.PersonType)
	}
	if f.Sector != "" {
		// Whole-element match on the decoded array (json_each on SQLite, JSONB ? on Postgres)
		query = query.Where(datatypes.JSONArrayQuery("consultations.selected_sectors").Contains(f.Sector))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		query = query.Where("LOWER(consultations.message) LIKE ? ESCAPE '\\'",
			"%"+likeEscaper.Replace(strings.ToLower(q))+"%")
	}
	return query
}

// ListConsultations returns one page of consultations and the total matching count
func ListConsultations(db *gorm.DB, filter ConsultationFilter) ([]models.Consultation, int64, error) {
	filter.Normalize()

	query := filter.apply(db.Model(&models.Consultation{}))

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count consultations: %w", err)
	}

	consultations, err := findConsultations(db, filter, filter.Offset, filter.Limit)
	if err != nil {
		return nil, 0, err
	}
	return consultations, total, nil
}

// ExportConsultations returns every consultation matching the filter, ignoring
// paging, up to MaxExportRows.
func ExportConsultations(db *gorm.DB, filter ConsultationFilter) ([]models.Consultation, error) {
	filter.Normalize()
	return findConsultations(db, filter, 0, MaxExportRows)
}

func findConsultations(db *gorm.DB, filter ConsultationFilter, offset, limit int) ([]models.Consultation, error) {
	query := filter.apply(db.Model(&models.Consultation{}))
	if filter.Sort == "department" {
		query = query.Joins("LEFT JOIN departments ON departments.id = consultations.department_id")
	}

	var consultations []models.Consultation
	err := query.
		Select("consultations.*").
		Preload("Department").
		Preload("Municipality").
		Preload("Locality").
		Order(sortColumns[filter.Sort] + " " + strings.ToUpper(filter.Order)).
		Order("consultations.created_at DESC").
		Order("consultations.id ASC").
		Offset(offset).
		Limit(limit).
		Find(&consultations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list consultations: %w", err)
	}
	return consultations, nil
}

// GetConsultation loads a consultation with its location chain
func GetConsultation(db *gorm.DB, id string) (*models.Consultation, error) {
	var consultation models.Consultation
	err := db.Preload("Department").
		Preload("Municipality").
		Preload("Locality").
		First(&consultation, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConsultationNotFound
		}
		return nil, fmt.Errorf("failed to load consultation: %w", err)
	}
	return &consultation, nil
}

// UpdateConsultationStatus switches a consultation between active and archived.
// It returns the updated record and the previous status.
func UpdateConsultationStatus(db *gorm.DB, id string, status models.ConsultationStatus) (*models.Consultation, models.ConsultationStatus, error) {
	if !status.IsValid() {
		return nil, "", ErrInvalidStatus
	}

	consultation, err := GetConsultation(db, id)
	if err != nil {
		return nil, "", err
	}

	previous := consultation.Status
	if previous == status {
		return consultation, previous, nil
	}

	if err := db.Model(consultation).Update("status", status).Error; err != nil {
		return nil, "", fmt.Errorf("failed to update consultation status: %w", err)
	}
	consultation.Status = status
	return consultation, previous, nil
}

// UpdateConsultation applies an admin edit. The input goes through the same
// validation as a public submission and the geocode is recomputed.
// It returns a copy of the record before the edit alongside the updated one.
func UpdateConsultation(db *gorm.DB, id string, in *ConsultationInput) (before, after *models.Consultation, err error) {
	if verr := ValidateConsultationInput(in); verr != nil {
		return nil, nil, verr
	}

	consultation, err := GetConsultation(db, id)
	if err != nil {
		return nil, nil, err
	}

	loc, err := resolveConsultationLocation(db, in)
	if err != nil {
		return nil, nil, err
	}

	snapshot := *consultation
	applyConsultationInput(consultation, in, loc)
	consultation.Department = &loc.Department
	consultation.Municipality = &loc.Municipality
	consultation.Locality = loc.Locality

	if err := db.Omit("Department", "Municipality", "Locality").Save(consultation).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to update consultation: %w", err)
	}
	return &snapshot, consultation, nil
}

// DeleteConsultation removes a consultation and returns it so the caller can
// clean up its stored images.
func DeleteConsultation(db *gorm.DB, id string) (*models.Consultation, error) {
	consultation, err := GetConsultation(db, id)
	if err != nil {
		return nil, err
	}
	if err := db.Delete(&models.Consultation{}, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("failed to delete consultation: %w", err)
	}
	return consultation, nil
}
