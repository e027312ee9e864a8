package services

import (
	"testing"
	"time"

	"consulta_ciudadana_go/db"
	"consulta_ciudadana_go/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	testDepartmentID   = "08"
	testMunicipalityID = "0801"
	testUrbanLocality  = "080101"
	testRuralLocality  = "080102"
	otherMunicipality  = "0501"
)

// setupServicesTestDB opens an isolated in-memory database with the reference
// catalogue and a small Francisco Morazán fixture.
func setupServicesTestDB(t *testing.T) *gorm.DB {
	// Shared cache so the async audit writer sees the same database
	testDB, err := gorm.Open(sqlite.Open("file:mem_"+uuid.New().String()+"?mode=memory&cache=shared&_busy_timeout=5000"), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := testDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(testDB))
	require.NoError(t, SeedReferenceData(testDB))

	require.NoError(t, testDB.Create(&[]models.Municipality{
		{ID: testMunicipalityID, DepartmentID: testDepartmentID, Name: "Distrito Central", Geocode: "01"},
		{ID: otherMunicipality, DepartmentID: "05", Name: "San Pedro Sula", Geocode: "01"},
	}).Error)
	require.NoError(t, testDB.Create(&[]models.Locality{
		{ID: testUrbanLocality, MunicipalityID: testMunicipalityID, Name: "Tegucigalpa", Area: models.AreaUrbano, Geocode: "001"},
		{ID: testRuralLocality, MunicipalityID: testMunicipalityID, Name: "El Hatillo", Area: models.AreaRural, Geocode: "002"},
	}).Error)

	t.Cleanup(func() {
		FlushAuditLogs()
		sqlDB.Close()
	})
	return testDB
}

func naturalInput() *ConsultationInput {
	return &ConsultationInput{
		PersonType:      "natural",
		FirstName:       "María",
		LastName:        "López",
		Identity:        "0801-1990-12345",
		Email:           "maria@example.com",
		Mobile:          "9999-0000",
		DepartmentID:    testDepartmentID,
		MunicipalityID:  testMunicipalityID,
		Zone:            "urbano",
		LocalityID:      testUrbanLocality,
		Message:         "Necesitamos un centro de salud en la colonia",
		SelectedSectors: []string{"Salud", "Educación"},
	}
}

func anonymousInput() *ConsultationInput {
	lat, lng := 14.0723, -87.1921
	return &ConsultationInput{
		PersonType:      "anonimo",
		Mobile:          "33334444",
		DepartmentID:    testDepartmentID,
		MunicipalityID:  testMunicipalityID,
		Zone:            "rural",
		CustomLocality:  "Aldea Nueva",
		Latitude:        &lat,
		Longitude:       &lng,
		Message:         "El camino está en mal estado",
		SelectedSectors: []string{"Infraestructura vial"},
	}
}

func juridicaInput() *ConsultationInput {
	return &ConsultationInput{
		PersonType:          "juridica",
		CompanyName:         "Cooperativa El Progreso",
		RTN:                 "08011990123456",
		LegalRepresentative: "Ana Martínez",
		CompanyContact:      "contacto@progreso.hn",
		DepartmentID:        testDepartmentID,
		MunicipalityID:      testMunicipalityID,
		Zone:                "rural",
		LocalityID:          testRuralLocality,
		Message:             "Solicitamos apoyo para el sistema de riego",
		SelectedSectors:     []string{"Agricultura"},
	}
}

func createConsultation(t *testing.T, database *gorm.DB, in *ConsultationInput) *models.Consultation {
	c, err := CreateConsultation(database, in, SubmissionMeta{IPAddress: "127.0.0.1"})
	require.NoError(t, err)
	return c
}
