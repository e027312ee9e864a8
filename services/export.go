package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"html/template"
	"strings"
	"time"

	"consulta_ciudadana_go/models"

	"github.com/xuri/excelize/v2"
)

const exportSheetName = "Consultas"

// utf8BOM makes Excel detect UTF-8 when opening the CSV directly
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var exportHeaders = []string{
	"ID",
	"Fecha",
	"Tipo de persona",
	"Nombre / Empresa",
	"Identidad / RTN",
	"Representante legal",
	"Correo electrónico",
	"Teléfono",
	"Departamento",
	"Municipio",
	"Localidad",
	"Zona",
	"Geocódigo",
	"Sectores",
	"Mensaje",
	"Estado",
}

// messageColumn is the zero-based position of "Mensaje" in exportHeaders
var messageColumn = indexOf(exportHeaders, "Mensaje")

func indexOf(values []string, target string) int {
	for i, v := range values {
		if v == target {
			return i
		}
	}
	return -1
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// SanitizeExportField neutralizes spreadsheet formula injection by prefixing
// values that start with = + - @ with a single quote, and flattens line breaks.
func SanitizeExportField(value string) string {
	value = lineBreaks.Replace(value)
	if value == "" {
		return value
	}
	switch value[0] {
	case '=', '+', '-', '@':
		return "'" + value
	}
	return value
}

var personTypeLabels = map[models.PersonType]string{
	models.PersonNatural:  "Natural",
	models.PersonJuridica: "Jurídica",
	models.PersonAnonimo:  "Anónimo",
}

var statusLabels = map[models.ConsultationStatus]string{
	models.ConsultationActive:   "Activa",
	models.ConsultationArchived: "Archivada",
}

// ExportRow flattens a consultation into sanitized cells in exportHeaders order
func ExportRow(c *models.Consultation) []string {
	identifier := c.Identity
	contact := c.Mobile
	if c.PersonType == models.PersonJuridica {
		identifier = c.RTN
		if contact == "" {
			contact = c.CompanyContact
		}
	}

	var department, municipality string
	if c.Department != nil {
		department = c.Department.Name
	}
	if c.Municipality != nil {
		municipality = c.Municipality.Name
	}

	row := []string{
		c.ID,
		c.CreatedAt.UTC().Format("2006-01-02 15:04"),
		personTypeLabels[c.PersonType],
		c.DisplayName(),
		identifier,
		c.LegalRepresentative,
		c.Email,
		contact,
		department,
		municipality,
		c.LocalityName(),
		string(c.Zone),
		c.Geocode,
		strings.Join(c.SelectedSectors, ", "),
		c.Message,
		statusLabels[c.Status],
	}
	for i := range row {
		row[i] = SanitizeExportField(row[i])
	}
	return row
}

// BuildConsultationsCSV renders the consultations as a UTF-8 CSV with BOM
func BuildConsultationsCSV(consultations []models.Consultation) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(utf8BOM)

	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeaders); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}
	for i := range consultations {
		if err := w.Write(ExportRow(&consultations[i])); err != nil {
			return nil, fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// BuildConsultationsExcel renders the consultations as an .xlsx workbook with a
// bold, frozen header row.
func BuildConsultationsExcel(consultations []models.Consultation) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheetName); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]interface{}, len(exportHeaders))
	for i, h := range exportHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(exportSheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	for i := range consultations {
		cells := ExportRow(&consultations[i])
		values := make([]interface{}, len(cells))
		for j, v := range cells {
			values[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("failed to address row %d: %w", i+2, err)
		}
		if err := f.SetSheetRow(exportSheetName, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	lastCol, err := excelize.ColumnNumberToName(len(exportHeaders))
	if err != nil {
		return nil, fmt.Errorf("failed to name last column: %w", err)
	}
	messageCol, err := excelize.ColumnNumberToName(messageColumn + 1)
	if err != nil {
		return nil, fmt.Errorf("failed to name message column: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"1F4E79"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	if err := f.SetCellStyle(exportSheetName, "A1", lastCol+"1", headerStyle); err != nil {
		return nil, fmt.Errorf("failed to style header: %w", err)
	}
	if err := f.SetColWidth(exportSheetName, "A", lastCol, 20); err != nil {
		return nil, fmt.Errorf("failed to size columns: %w", err)
	}
	if err := f.SetColWidth(exportSheetName, messageCol, messageCol, 60); err != nil {
		return nil, fmt.Errorf("failed to size message column: %w", err)
	}

	if err := f.SetPanes(exportSheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("failed to freeze header: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

var consultationsReportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="es">
<head>
<meta charset="UTF-8">
<style>
  body { font-family: Arial, Helvetica, sans-serif; font-size: 8pt; color: #222; }
  h1 { font-size: 14pt; margin: 0 0 4px 0; }
  p.meta { margin: 0 0 10px 0; color: #555; }
  table { width: 100%; border-collapse: collapse; }
  th { background: #1f4e79; color: #fff; text-align: left; padding: 4px; }
  td { border-bottom: 1px solid #ddd; padding: 3px 4px; vertical-align: top; }
  tr { page-break-inside: avoid; }
</style>
</head>
<body>
<h1>Consultas ciudadanas</h1>
<p class="meta">Generado el {{.GeneratedAt}} · {{.Count}} registros</p>
<table>
<thead><tr>{{range .Headers}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody>
{{range .Rows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
{{end}}</tbody>
</table>
</body>
</html>`))

// pdfColumns are the exportHeaders indexes that fit on a landscape page
var pdfColumns = []int{1, 2, 3, 7, 8, 9, 10, 12, 13, 14, 15}

// BuildConsultationsReportHTML renders the printable report fed to the PDF generator
func BuildConsultationsReportHTML(consultations []models.Consultation, now time.Time) (string, error) {
	headers := make([]string, len(pdfColumns))
	for i, col := range pdfColumns {
		headers[i] = exportHeaders[col]
	}

	rows := make([][]string, len(consultations))
	for i := range consultations {
		full := ExportRow(&consultations[i])
		row := make([]string, len(pdfColumns))
		for j, col := range pdfColumns {
			row[j] = full[col]
		}
		rows[i] = row
	}

	var buf bytes.Buffer
	err := consultationsReportTemplate.Execute(&buf, map[string]interface{}{
		"GeneratedAt": now.UTC().Format("2006-01-02 15:04 UTC"),
		"Count":       len(consultations),
		"Headers":     headers,
		"Rows":        rows,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	return buf.String(), nil
}

// BuildConsultationsPDF renders the report through headless Chrome. An empty
// chromePath keeps the CHROME_PATH default.
func BuildConsultationsPDF(ctx context.Context, consultations []models.Consultation, now time.Time, chromePath string) ([]byte, error) {
	html, err := BuildConsultationsReportHTML(consultations, now)
	if err != nil {
		return nil, err
	}
	options := DefaultPDFOptions()
	options.PageOrientation = "landscape"
	if chromePath != "" {
		options.ChromePath = chromePath
	}
	return GeneratePDF(ctx, html, options)
}
