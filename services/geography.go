package services

import (
	"fmt"

	"consulta_ciudadana_go/models"

	"gorm.io/gorm"
)

// ListDepartments returns every department ordered by code
func ListDepartments(db *gorm.DB) ([]models.Department, error) {
	departments := []models.Department{}
	if err := db.Order("id ASC").Find(&departments).Error; err != nil {
		return nil, fmt.Errorf("failed to list departments: %w", err)
	}
	return departments, nil
}

// ListMunicipalities returns the municipalities of a department ordered by name
func ListMunicipalities(db *gorm.DB, departmentID string) ([]models.Municipality, error) {
	municipalities := []models.Municipality{}
	if err := db.Where("department_id = ?", departmentID).Order("name ASC").Find(&municipalities).Error; err != nil {
		return nil, fmt.Errorf("failed to list municipalities: %w", err)
	}
	return municipalities, nil
}

// ListLocalities returns the localities of a municipality ordered by name,
// optionally restricted to one area.
func ListLocalities(db *gorm.DB, municipalityID string, area models.Area) ([]models.Locality, error) {
	query := db.Where("municipality_id = ?", municipalityID)
	if area != "" {
		query = query.Where("area = ?", area)
	}

	localities := []models.Locality{}
	if err := query.Order("name ASC").Find(&localities).Error; err != nil {
		return nil, fmt.Errorf("failed to list localities: %w", err)
	}
	return localities, nil
}
