package services

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"consulta_ciudadana_go/models"

	"gorm.io/gorm"
)

// pendingAudits tracks in-flight asynchronous audit writes
var pendingAudits sync.WaitGroup

// AuditContext contains contextual information for audit logging
type AuditContext struct {
	UserID    string
	Username  string
	UserRole  models.Role
	IPAddress string
	UserAgent string
}

// LogAuditEvent creates a new audit log entry asynchronously
func LogAuditEvent(
	db *gorm.DB,
	ctx AuditContext,
	action models.AuditAction,
	resourceType string,
	resourceID string,
	description string,
	oldValues interface{},
	newValues interface{},
) {
	pendingAudits.Add(1)

	// Run in goroutine to avoid blocking the request
	go func() {
		defer pendingAudits.Done()

		auditLog := models.AuditLog{
			UserID:       ptrIfNotEmpty(ctx.UserID),
			Username:     ctx.Username,
			UserRole:     ctx.UserRole,
			ResourceType: resourceType,
			ResourceID:   resourceID,
			Action:       action,
			Description:  description,
			OldValues:    marshalAuditValues(oldValues),
			NewValues:    marshalAuditValues(newValues),
			IPAddress:    ctx.IPAddress,
			UserAgent:    ctx.UserAgent,
		}

		if err := db.Create(&auditLog).Error; err != nil {
			log.Printf("[AUDIT] Failed to create audit log: %v", err)
		}
	}()
}

// FlushAuditLogs blocks until every pending audit write has finished
func FlushAuditLogs() {
	pendingAudits.Wait()
}

func marshalAuditValues(values interface{}) string {
	if values == nil {
		return ""
	}
	bytes, err := json.Marshal(values)
	if err != nil {
		return ""
	}
	return string(bytes)
}

// ptrIfNotEmpty returns a pointer to the string if not empty, nil otherwise
func ptrIfNotEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ConsultationAuditValues is the snapshot stored for consultation edits
func ConsultationAuditValues(c *models.Consultation) map[string]interface{} {
	values := map[string]interface{}{
		"personType":      c.PersonType,
		"firstName":       c.FirstName,
		"lastName":        c.LastName,
		"identity":        c.Identity,
		"companyName":     c.CompanyName,
		"rtn":             c.RTN,
		"email":           c.Email,
		"mobile":          c.Mobile,
		"departmentId":    c.DepartmentID,
		"municipalityId":  c.MunicipalityID,
		"zone":            c.Zone,
		"customLocality":  c.CustomLocality,
		"geocode":         c.Geocode,
		"message":         c.Message,
		"selectedSectors": []string(c.SelectedSectors),
		"status":          c.Status,
	}
	if c.LocalityID != nil {
		values["localityId"] = *c.LocalityID
	}
	return values
}

// GetResourceAuditHistory retrieves the audit history for a specific resource
func GetResourceAuditHistory(db *gorm.DB, resourceType, resourceID string) ([]models.AuditLog, error) {
	var logs []models.AuditLog
	err := db.Where("resource_type = ? AND resource_id = ?", resourceType, resourceID).
		Order("created_at DESC").
		Find(&logs).Error
	return logs, err
}

// AuditLogFilters contains filter options for audit log queries
type AuditLogFilters struct {
	UserID       string
	ResourceType string
	Action       string
	DateFrom     time.Time
	DateTo       time.Time
	SearchQuery  string
}

// ListAuditLogs retrieves paginated audit logs, newest first
func ListAuditLogs(db *gorm.DB, filters AuditLogFilters, offset, limit int) ([]models.AuditLog, int64, error) {
	query := db.Model(&models.AuditLog{})

	if filters.UserID != "" {
		query = query.Where("user_id = ?", filters.UserID)
	}
	if filters.ResourceType != "" {
		query = query.Where("resource_type = ?", filters.ResourceType)
	}
	if filters.Action != "" {
		query = query.Where("action = ?", filters.Action)
	}
	if !filters.DateFrom.IsZero() {
		query = query.Where("created_at >= ?", filters.DateFrom)
	}
	if !filters.DateTo.IsZero() {
		query = query.Where("created_at <= ?", filters.DateTo)
	}
	if filters.SearchQuery != "" {
		searchPattern := "%" + filters.SearchQuery + "%"
		query = query.Where(
			"resource_id LIKE ? OR description LIKE ? OR username LIKE ?",
			searchPattern, searchPattern, searchPattern,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 || limit > MaxPageSize {
		limit = DefaultPageSize
	}
	if offset < 0 {
		offset = 0
	}

	var logs []models.AuditLog
	err := query.Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&logs).Error

	return logs, total, err
}
