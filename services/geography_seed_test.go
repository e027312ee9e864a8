package services

import (
	"bytes"
	"strings"
	"testing"

	"consulta_ciudadana_go/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// buildWorkbook writes the given rows under a header on each named sheet
func buildWorkbook(t *testing.T, sheets map[string][][]interface{}) *bytes.Buffer {
	f := excelize.NewFile()
	defer f.Close()

	headers := map[string][]interface{}{
		sheetMunicipalities: {"id", "departamento", "nombre", "geocodigo"},
		sheetLocalities:     {"id", "municipio", "nombre", "area", "geocodigo"},
	}
	first := true
	for name, rows := range sheets {
		if first {
			require.NoError(t, f.SetSheetName("Sheet1", name))
			first = false
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		if h, ok := headers[name]; ok {
			require.NoError(t, f.SetSheetRow(name, "A1", &h))
		}
		for i, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+2)
			require.NoError(t, err)
			r := row
			require.NoError(t, f.SetSheetRow(name, cell, &r))
		}
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestSeedReferenceData(t *testing.T) {
	db := setupServicesTestDB(t)

	// Seeding again keeps the catalogue unchanged
	require.NoError(t, SeedReferenceData(db))

	var departments, sectors int64
	db.Model(&models.Department{}).Count(&departments)
	db.Model(&models.Sector{}).Count(&sectors)
	assert.Equal(t, int64(18), departments)
	assert.Equal(t, int64(len(defaultSectors)), sectors)

	var fm models.Department
	require.NoError(t, db.First(&fm, "id = ?", "08").Error)
	assert.Equal(t, "Francisco Morazán", fm.Name)
	assert.Equal(t, "08", fm.Geocode)
}

func TestImportGeographyWorkbook(t *testing.T) {
	db := setupServicesTestDB(t)

	wb := buildWorkbook(t, map[string][][]interface{}{
		sheetMunicipalities: {
			{"0802", "08", "Alubarén", "02"},
			{"9901", "99", "Fantasma", "01"},
			{"0803", "08", "", "03"},
		},
		sheetLocalities: {
			{"080201", "0802", "Alubarén centro", "Urbano", "001"},
			{"080202", "0802", "Cerro Grande", "rural", "002"},
			{"080203", "0802", "Ninguna", "costero", "003"},
			{"999901", "9999", "Huérfana", "rural", "001"},
			{"", "", "", "", ""},
		},
	})

	result, err := ImportGeographyWorkbook(db, wb)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Municipalities)
	assert.Equal(t, 2, result.Localities)
	require.Len(t, result.Errors, 4)
	assert.True(t, strings.Contains(strings.Join(result.Errors, "\n"), `departamento "99" no existe`))

	var urban models.Locality
	require.NoError(t, db.First(&urban, "id = ?", "080201").Error)
	assert.Equal(t, models.AreaUrbano, urban.Area)

	loc, err := ResolveLocation(db, "08", "0802", "080202")
	require.NoError(t, err)
	assert.Equal(t, "0802002", loc.Geocode)

	t.Run("Reimport updates rows", func(t *testing.T) {
		wb := buildWorkbook(t, map[string][][]interface{}{
			sheetMunicipalities: {{"0802", "08", "Alubarén (actualizado)", "02"}},
			sheetLocalities:     {},
		})
		result, err := ImportGeographyWorkbook(db, wb)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Municipalities)

		var m models.Municipality
		require.NoError(t, db.First(&m, "id = ?", "0802").Error)
		assert.Equal(t, "Alubarén (actualizado)", m.Name)
	})

	t.Run("Missing sheet", func(t *testing.T) {
		wb := buildWorkbook(t, map[string][][]interface{}{
			sheetMunicipalities: {},
		})
		_, err := ImportGeographyWorkbook(db, wb)
		assert.ErrorIs(t, err, ErrInvalidWorkbook)
	})

	t.Run("Not a workbook", func(t *testing.T) {
		_, err := ImportGeographyWorkbook(db, strings.NewReader("id,nombre\n1,x"))
		assert.ErrorIs(t, err, ErrInvalidWorkbook)
	})
}
