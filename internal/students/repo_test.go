package students

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/anhpnguyen/edupay-backend/pkg/db/models"
)

func setupStudentsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS students (
  id TEXT PRIMARY KEY,
  code TEXT NOT NULL UNIQUE,
  full_name TEXT NOT NULL,
  class_name TEXT NOT NULL,
  parent_name TEXT,
  parent_email TEXT,
  parent_phone TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

func TestRepositoryFindStudent(t *testing.T) {
	db := setupStudentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	email := "phuhuynh@example.com"
	student := &models.Student{
		ID:          uuid.New(),
		Code:        "HS2026001",
		FullName:    "Nguyen Van An",
		ClassName:   "3A",
		ParentEmail: &email,
	}
	require.NoError(t, db.Create(student).Error)

	byID, err := repo.FindByID(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, "HS2026001", byID.Code)
	require.NotNil(t, byID.ParentEmail)
	assert.Equal(t, email, *byID.ParentEmail)

	byCode, err := repo.FindByCode(ctx, "HS2026001")
	require.NoError(t, err)
	assert.Equal(t, student.ID, byCode.ID)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	_, err = repo.FindByCode(ctx, "HS0000000")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
