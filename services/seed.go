package services

import (
	"log"

	"consulta_ciudadana_go/models"

	"gorm.io/gorm"
)

// SeedSuperAdmin creates the first super_admin account on an empty install.
// It does nothing when the credentials are unset or a super_admin already exists.
func SeedSuperAdmin(db *gorm.DB, username, password string) error {
	if username == "" || password == "" {
		return nil
	}

	var count int64
	if err := db.Model(&models.User{}).Where("role = ?", models.RoleSuperAdmin).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		log.Println("[SEED] Super admin already exists, skipping seed")
		return nil
	}

	_, err := CreateUser(db, CreateUserInput{
		Username: username,
		Password: password,
		Role:     string(models.RoleSuperAdmin),
	})
	if err == ErrUsernameTaken {
		log.Printf("[SEED] Username %s already taken, skipping super admin seed", username)
		return nil
	}
	if err != nil {
		return err
	}

	log.Printf("[SEED] Created super admin: %s", username)
	return nil
}
