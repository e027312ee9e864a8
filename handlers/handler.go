package handlers

import (
	"consulta_ciudadana_go/config"
	"consulta_ciudadana_go/middleware"
	"consulta_ciudadana_go/models"
	"consulta_ciudadana_go/services"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// Handler carries the dependencies shared by every HTTP handler
type Handler struct {
	DB           *gorm.DB
	Config       *config.Config
	Storage      services.StorageProvider
	Mailer       services.Mailer
	LoginLimiter *middleware.RateLimiter
	Monitor      *services.SecurityMonitor
}

// New creates a Handler. A nil login limiter falls back to an in-memory one.
func New(db *gorm.DB, cfg *config.Config, storage services.StorageProvider, mailer services.Mailer, loginLimiter *middleware.RateLimiter) *Handler {
	if loginLimiter == nil {
		loginLimiter = middleware.NewLoginRateLimiter(nil)
	}
	return &Handler{
		DB:           db,
		Config:       cfg,
		Storage:      storage,
		Mailer:       mailer,
		LoginLimiter: loginLimiter,
		Monitor:      services.NewSecurityMonitor(),
	}
}

func (h *Handler) jwtSecret() []byte {
	return []byte(h.Config.JWTSecret)
}

// RegisterRoutes mounts every API route on e
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	api := e.Group("/api")

	// Public reference data
	api.GET("/departments", h.ListDepartments)
	api.GET("/municipalities/:departmentId", h.ListMunicipalities)
	api.GET("/localities/:municipalityId", h.ListLocalities)
	api.GET("/sectors", h.ListSectors)
	api.GET("/sectors/search", h.SearchSectors)

	// Public form
	api.POST("/consultations", h.CreateConsultation, middleware.PublicFormRateLimiter())

	// Authentication
	api.POST("/login", h.Login, h.LoginLimiter.Middleware())

	authenticated := api.Group("")
	authenticated.Use(middleware.RequireAuth(h.DB, h.jwtSecret()))
	authenticated.Use(middleware.AuditContext())
	{
		authenticated.POST("/logout", h.Logout)
		authenticated.GET("/user", h.CurrentUser)

		// Read-only dashboard: admin, super_admin, planificador
		viewers := authenticated.Group("")
		viewers.Use(middleware.RequirePermission(models.Role.CanViewDashboard))
		{
			viewers.GET("/consultations", h.ListConsultations)
			viewers.GET("/consultations/:id", h.GetConsultation)
			viewers.GET("/consultations/:id/images/:index", h.GetConsultationImage)

			viewers.GET("/dashboard/stats", h.DashboardStats)
			viewers.GET("/dashboard/consultations-by-date", h.ConsultationsByDate)
			viewers.GET("/dashboard/consultations-by-sector", h.ConsultationsBySector)

			viewers.GET("/export/consultations/csv", h.ExportCSV)
			viewers.GET("/export/consultations/excel", h.ExportExcel)
			viewers.GET("/export/consultations/pdf", h.ExportPDF)
		}

		// Moderation: admin, super_admin
		moderators := authenticated.Group("")
		moderators.Use(middleware.RequirePermission(models.Role.CanModerate))
		{
			moderators.PATCH("/consultations/:id/status", h.UpdateConsultationStatus)
			moderators.PUT("/consultations/:id", h.UpdateConsultation)
			moderators.DELETE("/consultations/:id", h.DeleteConsultation)
		}

		// Administration: super_admin
		superAdmins := authenticated.Group("")
		superAdmins.Use(middleware.RequirePermission(models.Role.CanManageUsers))
		{
			superAdmins.GET("/users", h.ListUsers)
			superAdmins.POST("/users", h.CreateUser)
			superAdmins.DELETE("/users/:id", h.DeleteUser)
			superAdmins.GET("/audit-logs", h.ListAuditLogs)
			superAdmins.GET("/audit-logs/:resourceType/:resourceId", h.GetResourceHistory)
			superAdmins.POST("/geography/import", h.ImportGeography)
			superAdmins.GET("/security/alerts", h.ListSecurityAlerts)
		}
	}
}
