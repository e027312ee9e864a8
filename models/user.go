package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role governs route-level authorization
type Role string

const (
	RoleCiudadano    Role = "ciudadano"
	RoleAdmin        Role = "admin"
	RoleSuperAdmin   Role = "super_admin"
	RolePlanificador Role = "planificador"
)

// AllRoles lists every role in display order
var AllRoles = []Role{RoleCiudadano, RoleAdmin, RoleSuperAdmin, RolePlanificador}

// ParseRole converts user input into a Role
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	return r, r.IsValid()
}

// IsValid reports whether the role is part of the closed set
func (r Role) IsValid() bool {
	switch r {
	case RoleCiudadano, RoleAdmin, RoleSuperAdmin, RolePlanificador:
		return true
	}
	return false
}

// CanModerate reports whether the role may change, edit or delete consultations
func (r Role) CanModerate() bool {
	switch r {
	case RoleAdmin, RoleSuperAdmin:
		return true
	case RoleCiudadano, RolePlanificador:
		return false
	}
	return false
}

// CanViewDashboard reports whether the role may read consultations, statistics and exports
func (r Role) CanViewDashboard() bool {
	switch r {
	case RoleAdmin, RoleSuperAdmin, RolePlanificador:
		return true
	case RoleCiudadano:
		return false
	}
	return false
}

// CanManageUsers reports whether the role may create and delete accounts
func (r Role) CanManageUsers() bool {
	switch r {
	case RoleSuperAdmin:
		return true
	case RoleCiudadano, RoleAdmin, RolePlanificador:
		return false
	}
	return false
}

type User struct {
	ID        string    `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Username     string     `gorm:"size:100;uniqueIndex;not null" json:"username"`
	PasswordHash string     `gorm:"not null" json:"-"`
	Role         Role       `gorm:"type:varchar(20);not null;default:ciudadano" json:"role"`
	IsActive     bool       `gorm:"not null;default:true" json:"active"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
}

// BeforeCreate hook to generate UUID
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name for User model
func (User) TableName() string {
	return "users"
}
