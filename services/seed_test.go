package services

import (
	"testing"

	"consulta_ciudadana_go/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedSuperAdmin(t *testing.T) {
	t.Run("Creates super admin when credentials are set", func(t *testing.T) {
		db := setupServicesTestDB(t)

		require.NoError(t, SeedSuperAdmin(db, "root", "password123"))

		var user models.User
		require.NoError(t, db.Where("username = ?", "root").First(&user).Error)
		assert.Equal(t, models.RoleSuperAdmin, user.Role)
		assert.True(t, user.IsActive)
		assert.True(t, VerifyPassword(user.PasswordHash, "password123"))
	})

	t.Run("Skips without credentials", func(t *testing.T) {
		db := setupServicesTestDB(t)

		require.NoError(t, SeedSuperAdmin(db, "", ""))

		var count int64
		db.Model(&models.User{}).Count(&count)
		assert.Equal(t, int64(0), count)
	})

	t.Run("Skips if a super admin already exists", func(t *testing.T) {
		db := setupServicesTestDB(t)
		require.NoError(t, SeedSuperAdmin(db, "root", "password123"))

		require.NoError(t, SeedSuperAdmin(db, "otro", "password123"))

		var count int64
		db.Model(&models.User{}).Where("username = ?", "otro").Count(&count)
		assert.Equal(t, int64(0), count)
	})

	t.Run("Skips if the username is taken by another role", func(t *testing.T) {
		db := setupServicesTestDB(t)
		_, err := CreateUser(db, CreateUserInput{Username: "root", Password: "password123", Role: "admin"})
		require.NoError(t, err)

		require.NoError(t, SeedSuperAdmin(db, "root", "password123"))

		var user models.User
		require.NoError(t, db.Where("username = ?", "root").First(&user).Error)
		assert.Equal(t, models.RoleAdmin, user.Role)
	})

	t.Run("Weak password is rejected", func(t *testing.T) {
		db := setupServicesTestDB(t)
		assert.ErrorIs(t, SeedSuperAdmin(db, "root", "corta"), ErrWeakPassword)
	})
}
