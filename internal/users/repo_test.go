package users

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/db/models"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/enums"
)

func setupUsersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	ddl := `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  full_name TEXT NOT NULL,
  phone TEXT,
  role TEXT NOT NULL,
  is_active INTEGER NOT NULL DEFAULT 1,
  last_login_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(ddl).Error)
	return db
}

func seedUser(t *testing.T, db *gorm.DB, email, name string, role enums.UserRole) *models.User {
	t.Helper()
	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: "hash",
		FullName:     name,
		Role:         role,
		IsActive:     true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestRepositoryFindByEmailAndID(t *testing.T) {
	db := setupUsersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	seeded := seedUser(t, db, "lab@example.com", "Lab Operator", enums.UserRoleLab)

	byEmail, err := repo.FindByEmail(ctx, "lab@example.com")
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, byEmail.ID)
	assert.Equal(t, enums.UserRoleLab, byEmail.Role)

	byID, err := repo.FindByID(ctx, seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lab Operator", byID.FullName)

	_, err = repo.FindByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryListByRoleSkipsInactive(t *testing.T) {
	db := setupUsersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	active := seedUser(t, db, "a@example.com", "Active Lab", enums.UserRoleLab)
	dormant := seedUser(t, db, "b@example.com", "Dormant Lab", enums.UserRoleLab)
	seedUser(t, db, "c@example.com", "Store Clerk", enums.UserRoleStore)

	require.NoError(t, repo.SetActive(ctx, dormant.ID, false))

	labs, err := repo.ListByRole(ctx, enums.UserRoleLab)
	require.NoError(t, err)
	require.Len(t, labs, 1)
	assert.Equal(t, active.ID, labs[0].ID)
}

func TestRepositoryUpdateLastLogin(t *testing.T) {
	db := setupUsersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	user := seedUser(t, db, "admin@example.com", "Admin", enums.UserRoleAdmin)
	require.Nil(t, user.LastLoginAt)

	at := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.UpdateLastLogin(ctx, user.ID, at))

	reloaded, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.LastLoginAt)
	assert.WithinDuration(t, at, *reloaded.LastLoginAt, time.Second)
}

func TestCreateUserDTOToModelDefaultsActive(t *testing.T) {
	m := CreateUserDTO{
		Email:        "x@example.com",
		PasswordHash: "hash",
		FullName:     "X",
		Role:         enums.UserRoleStore,
	}.ToModel()
	assert.True(t, m.IsActive)

	inactive := false
	m = CreateUserDTO{
		Email:        "y@example.com",
		PasswordHash: "hash",
		FullName:     "Y",
		Role:         enums.UserRoleStore,
		IsActive:     &inactive,
	}.ToModel()
	assert.False(t, m.IsActive)
}
