package services

import (
	"errors"
	"fmt"
	"strings"

	"consulta_ciudadana_go/models"

	"gorm.io/gorm"
)

var (
	ErrUserNotFound     = errors.New("usuario no encontrado")
	ErrUsernameTaken    = errors.New("el nombre de usuario ya existe")
	ErrWeakPassword     = fmt.Errorf("la contraseña debe tener al menos %d caracteres", MinPasswordLength)
	ErrInvalidRole      = errors.New("rol inválido")
	ErrCannotDeleteSelf = errors.New("no puede eliminar su propia cuenta")
)

// CreateUserInput is the payload accepted by POST /api/users
type CreateUserInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// CreateUser validates the input, hashes the password and stores the account
func CreateUser(db *gorm.DB, in CreateUserInput) (*models.User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return nil, &ValidationError{Fields: map[string]string{"username": "El nombre de usuario es requerido"}}
	}
	if len(in.Password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}

	role := models.RoleAdmin
	if in.Role != "" {
		parsed, ok := models.ParseRole(in.Role)
		if !ok {
			return nil, ErrInvalidRole
		}
		role = parsed
	}

	var count int64
	if err := db.Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if count > 0 {
		return nil, ErrUsernameTaken
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if err := db.Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// ListUsers returns every account ordered by creation date
func ListUsers(db *gorm.DB) ([]models.User, error) {
	var users []models.User
	if err := db.Order("created_at ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// GetUserByID loads a single account
func GetUserByID(db *gorm.DB, id string) (*models.User, error) {
	var user models.User
	if err := db.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

// DeleteUser removes an account. Users cannot delete themselves.
func DeleteUser(db *gorm.DB, id, currentUserID string) (*models.User, error) {
	if id == currentUserID {
		return nil, ErrCannotDeleteSelf
	}

	user, err := GetUserByID(db, id)
	if err != nil {
		return nil, err
	}

	if err := db.Delete(user).Error; err != nil {
		return nil, fmt.Errorf("failed to delete user: %w", err)
	}
	return user, nil
}
