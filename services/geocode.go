package services

import (
	"errors"
	"fmt"

	"consulta_ciudadana_go/models"

	"gorm.io/gorm"
)

var (
	ErrDepartmentNotFound   = errors.New("el departamento no existe")
	ErrMunicipalityNotFound = errors.New("el municipio no existe")
	ErrLocalityNotFound     = errors.New("la localidad no existe")
	ErrMunicipalityMismatch = errors.New("el municipio no pertenece al departamento indicado")
	ErrLocalityMismatch     = errors.New("la localidad no pertenece al municipio indicado")
)

// IsLocationError reports whether err is one of the referential-integrity failures
func IsLocationError(err error) bool {
	return errors.Is(err, ErrDepartmentNotFound) ||
		errors.Is(err, ErrMunicipalityNotFound) ||
		errors.Is(err, ErrLocalityNotFound) ||
		errors.Is(err, ErrMunicipalityMismatch) ||
		errors.Is(err, ErrLocalityMismatch)
}

// ResolvedLocation is the verified department/municipality/locality chain
type ResolvedLocation struct {
	Department   models.Department
	Municipality models.Municipality
	Locality     *models.Locality // nil when the citizen supplied a custom locality
	Geocode      string
}

// ResolveLocation loads every level of the hierarchy, verifies each parent link
// against the submitted ids and composes the geocode in department, municipality,
// locality order. An empty localityID resolves department and municipality only.
func ResolveLocation(db *gorm.DB, departmentID, municipalityID, localityID string) (*ResolvedLocation, error) {
	var loc ResolvedLocation

	if err := db.First(&loc.Department, "id = ?", departmentID).Error; err != nil {
		return nil, notFoundOr(err, ErrDepartmentNotFound, "department", departmentID)
	}

	if err := db.First(&loc.Municipality, "id = ?", municipalityID).Error; err != nil {
		return nil, notFoundOr(err, ErrMunicipalityNotFound, "municipality", municipalityID)
	}
	if loc.Municipality.DepartmentID != departmentID {
		return nil, fmt.Errorf("%w (municipio %s, departamento %s)", ErrMunicipalityMismatch, municipalityID, departmentID)
	}

	loc.Geocode = loc.Department.Geocode + loc.Municipality.Geocode

	if localityID == "" {
		return &loc, nil
	}

	var locality models.Locality
	if err := db.First(&locality, "id = ?", localityID).Error; err != nil {
		return nil, notFoundOr(err, ErrLocalityNotFound, "locality", localityID)
	}
	if locality.MunicipalityID != municipalityID {
		return nil, fmt.Errorf("%w (localidad %s, municipio %s)", ErrLocalityMismatch, localityID, municipalityID)
	}

	loc.Locality = &locality
	loc.Geocode += locality.Geocode
	return &loc, nil
}

// ComposeGeocode returns the concatenated geocode of a fully specified location
func ComposeGeocode(db *gorm.DB, departmentID, municipalityID, localityID string) (string, error) {
	if localityID == "" {
		return "", ErrLocalityNotFound
	}
	loc, err := ResolveLocation(db, departmentID, municipalityID, localityID)
	if err != nil {
		return "", err
	}
	return loc.Geocode, nil
}

func notFoundOr(err, notFound error, kind, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", notFound, id)
	}
	return fmt.Errorf("failed to load %s %s: %w", kind, id, err)
}
