package models

import (
	"time"

	"github.com/google/uuid"
)

// Student is the payer reference for orders. Enrollment management lives
// in a separate system; rows here are read-mostly.
type Student struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Code        string    `gorm:"column:code;type:text;not null;uniqueIndex"`
	FullName    string    `gorm:"column:full_name;not null"`
	ClassName   string    `gorm:"column:class_name;not null"`
	ParentName  *string   `gorm:"column:parent_name"`
	ParentEmail *string   `gorm:"column:parent_email"`
	ParentPhone *string   `gorm:"column:parent_phone"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
