package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/anhpnguyen/edupay-backend/pkg/enums"
)

// User is a staff identity referenced by the role middleware. Account
// provisioning is handled elsewhere.
type User struct {
	ID        uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	Email     string         `gorm:"column:email;type:text;not null;uniqueIndex"`
	FullName  string         `gorm:"column:full_name;not null"`
	Role      enums.UserRole `gorm:"column:role;type:text;not null"`
	IsActive  bool           `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
