package services

import (
	"fmt"
	"strings"
	"unicode"

	"consulta_ciudadana_go/models"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"
)

// ListSectors returns the active sectors ordered by name
func ListSectors(db *gorm.DB) ([]models.Sector, error) {
	sectors := []models.Sector{}
	if err := db.Where("is_active = ?", true).Order("name ASC").Find(&sectors).Error; err != nil {
		return nil, fmt.Errorf("failed to list sectors: %w", err)
	}
	return sectors, nil
}

// SearchSectors returns active sectors whose name contains q, ignoring case and
// accents, so "educacion" finds "Educación". An empty q returns every sector.
func SearchSectors(db *gorm.DB, q string) ([]models.Sector, error) {
	sectors, err := ListSectors(db)
	if err != nil {
		return nil, err
	}

	needle := FoldForSearch(q)
	if needle == "" {
		return sectors, nil
	}

	matches := []models.Sector{}
	for _, s := range sectors {
		if strings.Contains(FoldForSearch(s.Name), needle) {
			matches = append(matches, s)
		}
	}
	return matches, nil
}

// FoldForSearch strips diacritics and case-folds s
func FoldForSearch(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC, cases.Fold())
	folded, _, err := transform.String(t, strings.TrimSpace(s))
	if err != nil {
		return strings.ToLower(strings.TrimSpace(s))
	}
	return folded
}
