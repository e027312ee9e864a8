package models

import (
	"time"
)

// RevokedToken records the ID of a signed token invalidated by logout
// until the token would have expired anyway.
type RevokedToken struct {
	JTI       string    `gorm:"column:jti;primarykey;type:varchar(64)" json:"jti"`
	CreatedAt time.Time `json:"createdAt"`
	UserID    string    `gorm:"type:uuid;index" json:"userId"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expiresAt"`
}

// TableName specifies the table name
func (RevokedToken) TableName() string {
	return "revoked_tokens"
}

// IsExpired checks if the underlying token has expired
func (r *RevokedToken) IsExpired() bool {
	return time.Now().After(r.ExpiresAt)
}
