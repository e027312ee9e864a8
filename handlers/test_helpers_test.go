package handlers

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"consulta_ciudadana_go/config"
	"consulta_ciudadana_go/db"
	"consulta_ciudadana_go/middleware"
	"consulta_ciudadana_go/models"
	"consulta_ciudadana_go/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
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
	testPassword       = "password123"
)

type testServer struct {
	e      *echo.Echo
	h      *Handler
	db     *gorm.DB
	mailer *recordingMailer
}

// recordingMailer keeps every email instead of sending it
type recordingMailer struct {
	mu   sync.Mutex
	sent []*services.Email
}

func (m *recordingMailer) Send(email *services.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, email)
	return nil
}

func (m *recordingMailer) Sent() []*services.Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*services.Email{}, m.sent...)
}

func setupTestDB(t *testing.T) *gorm.DB {
	// Use unique shared memory name to isolate tests while allowing shared cache for async tasks
	dbName := "mem_" + uuid.New().String()
	testDB, err := gorm.Open(sqlite.Open("file:"+dbName+"?mode=memory&cache=shared&_busy_timeout=5000"), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := testDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(testDB))
	require.NoError(t, services.SeedReferenceData(testDB))

	require.NoError(t, testDB.Create(&[]models.Municipality{
		{ID: testMunicipalityID, DepartmentID: testDepartmentID, Name: "Distrito Central", Geocode: "01"},
		{ID: otherMunicipality, DepartmentID: "05", Name: "San Pedro Sula", Geocode: "01"},
	}).Error)
	require.NoError(t, testDB.Create(&[]models.Locality{
		{ID: testUrbanLocality, MunicipalityID: testMunicipalityID, Name: "Tegucigalpa", Area: models.AreaUrbano, Geocode: "001"},
		{ID: testRuralLocality, MunicipalityID: testMunicipalityID, Name: "El Hatillo", Area: models.AreaRural, Geocode: "002"},
	}).Error)

	t.Cleanup(func() {
		services.FlushAuditLogs()
		sqlDB.Close()
	})
	return testDB
}

func setupTestServer(t *testing.T) *testServer {
	database := setupTestDB(t)
	cfg := &config.Config{
		Environment:   "test",
		JWTSecret:     "test-secret-key-with-at-least-32-characters",
		UploadDir:     t.TempDir(),
		EmailTestMode: true,
	}
	mailer := &recordingMailer{}

	h := New(database, cfg, services.NewLocalStorage(cfg.UploadDir), mailer, nil)

	e := echo.New()
	e.HTTPErrorHandler = HTTPErrorHandler
	ipExtractor, err := middleware.NewIPExtractor(cfg.TrustedProxies)
	require.NoError(t, err)
	e.IPExtractor = ipExtractor
	h.RegisterRoutes(e)

	return &testServer{e: e, h: h, db: database, mailer: mailer}
}

func createTestUser(t *testing.T, database *gorm.DB, username string, role models.Role) *models.User {
	user, err := services.CreateUser(database, services.CreateUserInput{
		Username: username,
		Password: testPassword,
		Role:     string(role),
	})
	require.NoError(t, err)
	return user
}

// authCookie issues a session cookie for user
func (ts *testServer) authCookie(t *testing.T, user *models.User) *http.Cookie {
	token, _, err := services.IssueToken(ts.h.jwtSecret(), user, time.Now())
	require.NoError(t, err)
	return &http.Cookie{Name: "token", Value: token}
}

func (ts *testServer) do(method, path string, body io.Reader, contentType string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	ts.e.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) doWithHeader(method, path, header, value string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set(header, value)
	rec := httptest.NewRecorder()
	ts.e.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) doJSON(method, path string, payload interface{}, cookie *http.Cookie) *httptest.ResponseRecorder {
	var body io.Reader
	if payload != nil {
		data, _ := json.Marshal(payload)
		body = bytes.NewReader(data)
	}
	return ts.do(method, path, body, echo.MIMEApplicationJSON, cookie)
}

func naturalPayload() map[string]interface{} {
	return map[string]interface{}{
		"personType":      "natural",
		"firstName":       "María",
		"lastName":        "López",
		"identity":        "0801-1990-12345",
		"email":           "maria@example.com",
		"mobile":          "9999-0000",
		"departmentId":    testDepartmentID,
		"municipalityId":  testMunicipalityID,
		"zone":            "urbano",
		"localityId":      testUrbanLocality,
		"message":         "Necesitamos un centro de salud en la colonia",
		"selectedSectors": []string{"Salud", "Educación"},
	}
}

func anonymousPayload() map[string]interface{} {
	lat, lng := 14.0723, -87.1921
	return map[string]interface{}{
		"personType":      "anonimo",
		"mobile":          "33334444",
		"departmentId":    testDepartmentID,
		"municipalityId":  testMunicipalityID,
		"zone":            "rural",
		"customLocality":  "Aldea Nueva",
		"latitude":        lat,
		"longitude":       lng,
		"message":         "El camino está en mal estado",
		"selectedSectors": []string{"Infraestructura vial"},
	}
}

func inputFromPayload(t *testing.T, payload map[string]interface{}) *services.ConsultationInput {
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	var in services.ConsultationInput
	require.NoError(t, json.Unmarshal(data, &in))
	return &in
}

func createTestConsultation(t *testing.T, database *gorm.DB, payload map[string]interface{}) *models.Consultation {
	consultation, err := services.CreateConsultation(database, inputFromPayload(t, payload), services.SubmissionMeta{IPAddress: "127.0.0.1"})
	require.NoError(t, err)
	return consultation
}

func pngBytes(t *testing.T, width, height int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// multipartConsultation builds a form with the JSON payload in "data" and the
// given files under "images".
func multipartConsultation(t *testing.T, payload map[string]interface{}, files map[string][]byte) (*bytes.Buffer, string) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	data, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, writer.WriteField("data", string(data)))

	for name, content := range files {
		part, err := writer.CreateFormFile("images", name)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}
