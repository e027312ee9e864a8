package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"consulta_ciudadana_go/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	// BcryptCost is the cost factor for bcrypt hashing
	BcryptCost = 12
	// TokenDuration is how long an issued token stays valid (7 days)
	TokenDuration = 7 * 24 * time.Hour
	// MinPasswordLength is enforced when accounts are created
	MinPasswordLength = 8
)

var (
	// ErrInvalidCredentials is returned for every login failure so callers cannot
	// tell an unknown username from a wrong password.
	ErrInvalidCredentials = errors.New("credenciales inválidas")
	ErrInvalidToken       = errors.New("token inválido o expirado")
	ErrTokenRevoked       = errors.New("token revocado")
)

// dummyHash is compared against when the username does not exist so that both
// branches of a login pay the same bcrypt cost.
var dummyHash string

func init() {
	hash, err := bcrypt.GenerateFromPassword([]byte("dummy_password_for_timing_mitigation"), BcryptCost)
	if err == nil {
		dummyHash = string(hash)
	}
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(bytes), nil
}

// VerifyPassword verifies a password against a bcrypt hash
func VerifyPassword(hashedPassword, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	return err == nil
}

// TokenClaims is the payload of the session token stored in the "token" cookie
type TokenClaims struct {
	Username string      `json:"username"`
	Role     models.Role `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken signs a new HS256 token for the user
func IssueToken(secret []byte, user *models.User, now time.Time) (string, *TokenClaims, error) {
	claims := &TokenClaims{
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenDuration)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, claims, nil
}

// ParseToken validates signature, algorithm and expiry and returns the claims
func ParseToken(secret []byte, tokenStr string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// AuthenticateUser checks a username/password pair. Any failure, including an
// inactive account, yields ErrInvalidCredentials.
func AuthenticateUser(db *gorm.DB, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	var user models.User
	if err := db.Where("username = ?", username).First(&user).Error; err != nil {
		VerifyPassword(dummyHash, password)
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to load user: %w", err)
		}
		return nil, ErrInvalidCredentials
	}

	if !VerifyPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	now := time.Now().UTC()
	if err := db.Model(&user).Update("last_login_at", now).Error; err != nil {
		log.Printf("[WARNING] Failed to update last login for %s: %v", user.ID, err)
	}
	user.LastLoginAt = &now

	return &user, nil
}

// RevokeToken adds a token ID to the denylist until it expires
func RevokeToken(db *gorm.DB, claims *TokenClaims) error {
	if claims == nil || claims.ID == "" {
		return nil
	}
	expiresAt := time.Now().Add(TokenDuration)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	revoked := &models.RevokedToken{
		JTI:       claims.ID,
		UserID:    claims.Subject,
		ExpiresAt: expiresAt,
	}
	if err := db.Where(models.RevokedToken{JTI: claims.ID}).FirstOrCreate(revoked).Error; err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// IsTokenRevoked reports whether the token ID was invalidated by logout
func IsTokenRevoked(db *gorm.DB, jti string) (bool, error) {
	var count int64
	if err := db.Model(&models.RevokedToken{}).Where("jti = ?", jti).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check token revocation: %w", err)
	}
	return count > 0, nil
}

// CleanupRevokedTokens removes denylist entries whose tokens have expired anyway
func CleanupRevokedTokens(db *gorm.DB) error {
	result := db.Where("expires_at < ?", time.Now().UTC()).Delete(&models.RevokedToken{})
	if result.Error != nil {
		return fmt.Errorf("failed to cleanup revoked tokens: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		log.Printf("Cleaned up %d revoked tokens", result.RowsAffected)
	}
	return nil
}

// LogSecurityEvent logs security-related events
func LogSecurityEvent(eventType, userID, details string) {
	log.Printf("[SECURITY] %s | User: %s | Details: %s", eventType, userID, details)
}
