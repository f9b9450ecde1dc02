package students

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/anhpnguyen/edupay-backend/pkg/db/models"
)

// Repository exposes read access to students. Enrollment is managed by a
// separate system; nothing here mutates rows.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Student, error)
	FindByCode(ctx context.Context, code string) (*models.Student, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a read-only student repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Student, error) {
	var student models.Student
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&student).Error
	if err != nil {
		return nil, err
	}
	return &student, nil
}

func (r *repository) FindByCode(ctx context.Context, code string) (*models.Student, error) {
	var student models.Student
	err := r.db.WithContext(ctx).
		Where("code = ?", code).
		First(&student).Error
	if err != nil {
		return nil, err
	}
	return &student, nil
}
