package services

import (
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"consulta_ciudadana_go/models"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	sheetMunicipalities = "municipios"
	sheetLocalities     = "localidades"
)

// Honduran departments with their official codes. The code is also the
// department's geocode fragment.
var hondurasDepartments = []struct {
	Code string
	Name string
}{
	{"01", "Atlántida"},
	{"02", "Colón"},
	{"03", "Comayagua"},
	{"04", "Copán"},
	{"05", "Cortés"},
	{"06", "Choluteca"},
	{"07", "El Paraíso"},
	{"08", "Francisco Morazán"},
	{"09", "Gracias a Dios"},
	{"10", "Intibucá"},
	{"11", "Islas de la Bahía"},
	{"12", "La Paz"},
	{"13", "Lempira"},
	{"14", "Ocotepeque"},
	{"15", "Olancho"},
	{"16", "Santa Bárbara"},
	{"17", "Valle"},
	{"18", "Yoro"},
}

var defaultSectors = []struct {
	Name        string
	Description string
}{
	{"Salud", "Centros de salud, hospitales y atención médica"},
	{"Educación", "Escuelas, colegios y programas educativos"},
	{"Seguridad", "Seguridad ciudadana y prevención de la violencia"},
	{"Infraestructura vial", "Carreteras, calles, puentes y caminos"},
	{"Agua y saneamiento", "Agua potable, alcantarillado y manejo de desechos"},
	{"Energía", "Electrificación y alumbrado público"},
	{"Medio ambiente", "Bosques, cuencas y gestión de riesgos"},
	{"Agricultura", "Producción agrícola, ganadera y pesquera"},
	{"Empleo", "Generación de empleo y emprendimiento"},
	{"Vivienda", "Vivienda social y ordenamiento territorial"},
	{"Transporte", "Transporte público y movilidad"},
	{"Turismo", "Promoción y desarrollo turístico"},
	{"Cultura y deporte", "Espacios culturales, recreativos y deportivos"},
	{"Tecnología", "Conectividad e innovación"},
	{"Transparencia", "Gobernanza, rendición de cuentas y participación"},
}

// SeedReferenceData creates the departments and the sector catalogue if they
// are missing. Existing rows are left untouched.
func SeedReferenceData(db *gorm.DB) error {
	log.Println("Seeding reference data...")

	for _, dept := range hondurasDepartments {
		department := models.Department{ID: dept.Code, Name: dept.Name, Geocode: dept.Code}
		if err := db.Where(models.Department{ID: dept.Code}).FirstOrCreate(&department).Error; err != nil {
			return fmt.Errorf("failed to seed department %s: %w", dept.Name, err)
		}
	}

	for _, s := range defaultSectors {
		sector := models.Sector{Name: s.Name, Description: s.Description, IsActive: true}
		if err := db.Where(models.Sector{Name: s.Name}).FirstOrCreate(&sector).Error; err != nil {
			return fmt.Errorf("failed to seed sector %s: %w", s.Name, err)
		}
	}

	log.Printf("Reference data ready (%d departments, %d sectors)", len(hondurasDepartments), len(defaultSectors))
	return nil
}

// GeographyImportResult summarizes a workbook import
type GeographyImportResult struct {
	Municipalities int      `json:"municipalities"`
	Localities     int      `json:"localities"`
	Errors         []string `json:"errors,omitempty"`
}

// ErrInvalidWorkbook is returned when the upload is not a readable geography workbook
var ErrInvalidWorkbook = errors.New("archivo de geografía inválido")

// ImportGeographyWorkbook upserts municipalities and localities from an .xlsx
// with the sheets "municipios" (id, departamento, nombre, geocodigo) and
// "localidades" (id, municipio, nombre, area, geocodigo). The first row of each
// sheet is a header. Rows whose parent does not exist are skipped and reported.
func ImportGeographyWorkbook(db *gorm.DB, r io.Reader) (*GeographyImportResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWorkbook, err)
	}
	defer f.Close()

	municipalityRows, err := f.GetRows(sheetMunicipalities)
	if err != nil {
		return nil, fmt.Errorf("%w: falta la hoja %q", ErrInvalidWorkbook, sheetMunicipalities)
	}
	localityRows, err := f.GetRows(sheetLocalities)
	if err != nil {
		return nil, fmt.Errorf("%w: falta la hoja %q", ErrInvalidWorkbook, sheetLocalities)
	}

	result := &GeographyImportResult{}

	err = db.Transaction(func(tx *gorm.DB) error {
		departments, err := existingIDs(tx, &models.Department{})
		if err != nil {
			return err
		}

		var municipalities []models.Municipality
		for i, row := range dataRows(municipalityRows) {
			line := i + 2
			cells := padRow(row, 4)
			m := models.Municipality{
				ID:           cells[0],
				DepartmentID: cells[1],
				Name:         cells[2],
				Geocode:      cells[3],
			}
			if m.ID == "" || m.Name == "" || m.Geocode == "" {
				result.Errors = append(result.Errors, fmt.Sprintf("%s fila %d: id, nombre y geocódigo son requeridos", sheetMunicipalities, line))
				continue
			}
			if !departments[m.DepartmentID] {
				result.Errors = append(result.Errors, fmt.Sprintf("%s fila %d: departamento %q no existe", sheetMunicipalities, line, m.DepartmentID))
				continue
			}
			municipalities = append(municipalities, m)
		}
		if len(municipalities) > 0 {
			if err := upsert(tx, &municipalities); err != nil {
				return fmt.Errorf("failed to import municipalities: %w", err)
			}
		}
		result.Municipalities = len(municipalities)

		knownMunicipalities, err := existingIDs(tx, &models.Municipality{})
		if err != nil {
			return err
		}

		var localities []models.Locality
		for i, row := range dataRows(localityRows) {
			line := i + 2
			cells := padRow(row, 5)
			l := models.Locality{
				ID:             cells[0],
				MunicipalityID: cells[1],
				Name:           cells[2],
				Area:           models.Area(strings.ToLower(cells[3])),
				Geocode:        cells[4],
			}
			if l.ID == "" || l.Name == "" || l.Geocode == "" {
				result.Errors = append(result.Errors, fmt.Sprintf("%s fila %d: id, nombre y geocódigo son requeridos", sheetLocalities, line))
				continue
			}
			if !l.Area.IsValid() {
				result.Errors = append(result.Errors, fmt.Sprintf("%s fila %d: área %q inválida", sheetLocalities, line, cells[3]))
				continue
			}
			if !knownMunicipalities[l.MunicipalityID] {
				result.Errors = append(result.Errors, fmt.Sprintf("%s fila %d: municipio %q no existe", sheetLocalities, line, l.MunicipalityID))
				continue
			}
			localities = append(localities, l)
		}
		if len(localities) > 0 {
			if err := upsert(tx, &localities); err != nil {
				return fmt.Errorf("failed to import localities: %w", err)
			}
		}
		result.Localities = len(localities)
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Geography import: %d municipalities, %d localities, %d rejected rows",
		result.Municipalities, result.Localities, len(result.Errors))
	return result, nil
}

func upsert(tx *gorm.DB, rows interface{}) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).CreateInBatches(rows, 200).Error
}

func existingIDs(tx *gorm.DB, model interface{}) (map[string]bool, error) {
	var ids []string
	if err := tx.Model(model).Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to load existing ids: %w", err)
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

// dataRows drops the header row and trailing blank rows
func dataRows(rows [][]string) [][]string {
	if len(rows) <= 1 {
		return nil
	}
	rows = rows[1:]
	for len(rows) > 0 && isBlankRow(rows[len(rows)-1]) {
		rows = rows[:len(rows)-1]
	}
	return rows
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func padRow(row []string, n int) []string {
	cells := make([]string, n)
	for i := 0; i < n && i < len(row); i++ {
		cells[i] = strings.TrimSpace(row[i])
	}
	return cells
}
