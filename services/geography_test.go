package services

import (
	"encoding/json"
	"testing"

	"consulta_ciudadana_go/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestListDepartmentsEmptyTable(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:"+uuid.New().String()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Department{}))

	departments, err := ListDepartments(db)
	require.NoError(t, err)

	data, err := json.Marshal(departments)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(data))
}

func TestGeographyListings(t *testing.T) {
	db := setupServicesTestDB(t)

	departments, err := ListDepartments(db)
	require.NoError(t, err)
	require.Len(t, departments, 18)
	assert.Equal(t, "01", departments[0].ID)

	municipalities, err := ListMunicipalities(db, testDepartmentID)
	require.NoError(t, err)
	require.Len(t, municipalities, 1)
	assert.Equal(t, testMunicipalityID, municipalities[0].ID)

	empty, err := ListMunicipalities(db, "17")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	localities, err := ListLocalities(db, testMunicipalityID, "")
	require.NoError(t, err)
	require.Len(t, localities, 2)
	assert.Equal(t, "El Hatillo", localities[0].Name)

	rural, err := ListLocalities(db, testMunicipalityID, models.AreaRural)
	require.NoError(t, err)
	require.Len(t, rural, 1)
	assert.Equal(t, testRuralLocality, rural[0].ID)
}

func TestResolveLocation(t *testing.T) {
	db := setupServicesTestDB(t)

	t.Run("Full chain", func(t *testing.T) {
		loc, err := ResolveLocation(db, testDepartmentID, testMunicipalityID, testUrbanLocality)
		require.NoError(t, err)
		assert.Equal(t, "0801001", loc.Geocode)
		require.NotNil(t, loc.Locality)
		assert.Equal(t, "Tegucigalpa", loc.Locality.Name)

		geocode, err := ComposeGeocode(db, testDepartmentID, testMunicipalityID, testRuralLocality)
		require.NoError(t, err)
		assert.Equal(t, "0801002", geocode)
	})

	t.Run("Without locality", func(t *testing.T) {
		loc, err := ResolveLocation(db, testDepartmentID, testMunicipalityID, "")
		require.NoError(t, err)
		assert.Equal(t, "0801", loc.Geocode)
		assert.Nil(t, loc.Locality)

		_, err = ComposeGeocode(db, testDepartmentID, testMunicipalityID, "")
		assert.ErrorIs(t, err, ErrLocalityNotFound)
	})

	cases := []struct {
		name            string
		dept, muni, loc string
		want            error
	}{
		{"Unknown department", "99", testMunicipalityID, "", ErrDepartmentNotFound},
		{"Unknown municipality", testDepartmentID, "0899", "", ErrMunicipalityNotFound},
		{"Municipality of another department", testDepartmentID, otherMunicipality, "", ErrMunicipalityMismatch},
		{"Unknown locality", testDepartmentID, testMunicipalityID, "080199", ErrLocalityNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ResolveLocation(db, tc.dept, tc.muni, tc.loc)
			assert.ErrorIs(t, err, tc.want)
			assert.True(t, IsLocationError(err))
		})
	}

	t.Run("Locality of another municipality", func(t *testing.T) {
		require.NoError(t, db.Create(&models.Locality{ID: "050101", MunicipalityID: otherMunicipality, Name: "Chamelecón", Area: models.AreaUrbano, Geocode: "001"}).Error)
		_, err := ResolveLocation(db, testDepartmentID, testMunicipalityID, "050101")
		assert.ErrorIs(t, err, ErrLocalityMismatch)
	})
}

func TestSectors(t *testing.T) {
	db := setupServicesTestDB(t)

	all, err := ListSectors(db)
	require.NoError(t, err)
	assert.Len(t, all, len(defaultSectors))

	require.NoError(t, db.Model(&models.Sector{}).Where("name = ?", "Turismo").Update("is_active", false).Error)
	all, _ = ListSectors(db)
	for _, s := range all {
		assert.NotEqual(t, "Turismo", s.Name)
	}

	matches, err := SearchSectors(db, "EDUCACION")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "Educación", matches[0].Name)

	matches, _ = SearchSectors(db, "  ")
	assert.Len(t, matches, len(defaultSectors)-1)

	matches, _ = SearchSectors(db, "zzz")
	assert.NotNil(t, matches)
	assert.Empty(t, matches)
}

func TestFoldForSearch(t *testing.T) {
	assert.Equal(t, "educacion", FoldForSearch("Educación"))
	assert.Equal(t, "energia", FoldForSearch(" ENERGÍA "))
	assert.Equal(t, "nandu", FoldForSearch("Ñandú"))
	assert.Equal(t, "", FoldForSearch(""))
}
