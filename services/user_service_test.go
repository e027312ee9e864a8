package services

import (
	"testing"

	"consulta_ciudadana_go/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUser(t *testing.T) {
	db := setupServicesTestDB(t)

	t.Run("Defaults to admin", func(t *testing.T) {
		user, err := CreateUser(db, CreateUserInput{Username: " moderadora ", Password: "password123"})
		require.NoError(t, err)
		assert.Equal(t, "moderadora", user.Username)
		assert.Equal(t, models.RoleAdmin, user.Role)
		assert.True(t, user.IsActive)
		assert.NotEqual(t, "password123", user.PasswordHash)
		assert.True(t, VerifyPassword(user.PasswordHash, "password123"))
	})

	t.Run("Explicit role", func(t *testing.T) {
		user, err := CreateUser(db, CreateUserInput{Username: "planner", Password: "password123", Role: "planificador"})
		require.NoError(t, err)
		assert.Equal(t, models.RolePlanificador, user.Role)
	})

	t.Run("Duplicate username", func(t *testing.T) {
		_, err := CreateUser(db, CreateUserInput{Username: "moderadora", Password: "password123"})
		assert.ErrorIs(t, err, ErrUsernameTaken)
	})

	t.Run("Invalid input", func(t *testing.T) {
		_, err := CreateUser(db, CreateUserInput{Username: "x", Password: "corta"})
		assert.ErrorIs(t, err, ErrWeakPassword)

		_, err = CreateUser(db, CreateUserInput{Username: "x", Password: "password123", Role: "root"})
		assert.ErrorIs(t, err, ErrInvalidRole)

		_, err = CreateUser(db, CreateUserInput{Username: "  ", Password: "password123"})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "username")
	})
}

func TestListAndDeleteUsers(t *testing.T) {
	db := setupServicesTestDB(t)

	first, err := CreateUser(db, CreateUserInput{Username: "primera", Password: "password123", Role: "super_admin"})
	require.NoError(t, err)
	second, err := CreateUser(db, CreateUserInput{Username: "segunda", Password: "password123"})
	require.NoError(t, err)

	users, err := ListUsers(db)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, first.ID, users[0].ID)

	_, err = DeleteUser(db, first.ID, first.ID)
	assert.ErrorIs(t, err, ErrCannotDeleteSelf)

	deleted, err := DeleteUser(db, second.ID, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "segunda", deleted.Username)

	_, err = GetUserByID(db, second.ID)
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = DeleteUser(db, second.ID, first.ID)
	assert.ErrorIs(t, err, ErrUserNotFound)
}
