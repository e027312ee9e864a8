package services

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"consulta_ciudadana_go/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestSanitizeExportField(t *testing.T) {
	cases := map[string]string{
		"=1+1":                 "'=1+1",
		"+50499990000":         "'+50499990000",
		"-2":                   "'-2",
		"@SUM(A1)":             "'@SUM(A1)",
		"Salud":                "Salud",
		"":                     "",
		"línea uno\nlínea dos": "línea uno línea dos",
		"a\r\nb":               "a b",
		"correo@example.com":   "correo@example.com",
	}
	for in, want := range cases {
		assert.Equal(t, want, SanitizeExportField(in), in)
	}
}

func TestExportRow(t *testing.T) {
	db := setupServicesTestDB(t)

	t.Run("Natural", func(t *testing.T) {
		in := naturalInput()
		in.Message = "=cmd|' /C calc'!A0"
		c := createConsultation(t, db, in)

		row := ExportRow(c)
		require.Len(t, row, len(exportHeaders))
		assert.Equal(t, c.ID, row[0])
		assert.Equal(t, "Natural", row[2])
		assert.Equal(t, "María López", row[3])
		assert.Equal(t, "0801-1990-12345", row[4])
		assert.Equal(t, "Francisco Morazán", row[8])
		assert.Equal(t, "Distrito Central", row[9])
		assert.Equal(t, "Tegucigalpa", row[10])
		assert.Equal(t, "0801001", row[12])
		assert.Equal(t, "Salud, Educación", row[13])
		assert.True(t, strings.HasPrefix(row[14], "'="))
		assert.Equal(t, "Activa", row[15])
	})

	t.Run("Juridica uses RTN and company contact", func(t *testing.T) {
		c := createConsultation(t, db, juridicaInput())

		row := ExportRow(c)
		assert.Equal(t, "Jurídica", row[2])
		assert.Equal(t, "Cooperativa El Progreso", row[3])
		assert.Equal(t, "08011990123456", row[4])
		assert.Equal(t, "Ana Martínez", row[5])
		assert.Equal(t, "contacto@progreso.hn", row[7])
	})

	t.Run("Anonymous", func(t *testing.T) {
		c := createConsultation(t, db, anonymousInput())

		row := ExportRow(c)
		assert.Equal(t, "Anónimo", row[3])
		assert.Equal(t, "Aldea Nueva", row[10])
		assert.Equal(t, "0801", row[12])
	})
}

func TestBuildConsultationsCSV(t *testing.T) {
	db := setupServicesTestDB(t)
	createConsultation(t, db, naturalInput())
	createConsultation(t, db, anonymousInput())

	consultations, err := ExportConsultations(db, ConsultationFilter{})
	require.NoError(t, err)

	data, err := BuildConsultationsCSV(consultations)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, utf8BOM))

	records, err := csv.NewReader(bytes.NewReader(data[len(utf8BOM):])).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, exportHeaders, records[0])

	empty, err := BuildConsultationsCSV(nil)
	require.NoError(t, err)
	records, err = csv.NewReader(bytes.NewReader(empty[len(utf8BOM):])).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestBuildConsultationsExcel(t *testing.T) {
	db := setupServicesTestDB(t)
	createConsultation(t, db, naturalInput())

	consultations, err := ExportConsultations(db, ConsultationFilter{})
	require.NoError(t, err)

	data, err := BuildConsultationsExcel(consultations)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(exportSheetName)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "ID", rows[0][0])
	assert.Equal(t, "María López", rows[1][3])

	assert.Equal(t, "Mensaje", exportHeaders[messageColumn])
	width, err := f.GetColWidth(exportSheetName, "O")
	require.NoError(t, err)
	assert.Equal(t, 60.0, width)
	width, err = f.GetColWidth(exportSheetName, "A")
	require.NoError(t, err)
	assert.Equal(t, 20.0, width)

	style, err := f.GetCellStyle(exportSheetName, "A1")
	require.NoError(t, err)
	assert.NotZero(t, style)

	panes, err := f.GetPanes(exportSheetName)
	require.NoError(t, err)
	assert.True(t, panes.Freeze)
}

func TestBuildConsultationsReportHTML(t *testing.T) {
	c := models.Consultation{
		ID:         "x",
		PersonType: models.PersonNatural,
		FirstName:  "<script>alert(1)</script>",
		Message:    "Mensaje",
		Status:     models.ConsultationArchived,
	}
	now := time.Date(2026, 5, 1, 12, 30, 0, 0, time.UTC)

	html, err := BuildConsultationsReportHTML([]models.Consultation{c}, now)
	require.NoError(t, err)
	assert.Contains(t, html, "2026-05-01 12:30 UTC")
	assert.Contains(t, html, "1 registros")
	assert.Contains(t, html, "Archivada")
	assert.NotContains(t, html, "<script>alert(1)</script>")
	// The ID column is left out of the printable report
	assert.NotContains(t, html, "<th>ID</th>")
}
