package models

import (
	"time"

	"github.com/google/uuid"
)

// Printer is a physical print target. A nil AgentID means the printer is on
// the local network and jobs go straight to the spooler; otherwise jobs are
// relayed through the bound agent.
type Printer struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Name      string     `gorm:"column:name;not null;uniqueIndex"`
	Location  string     `gorm:"column:location;not null"`
	Address   string     `gorm:"column:address;not null"`
	Kind      string     `gorm:"column:kind;not null;default:'network'"`
	AgentID   *uuid.UUID `gorm:"column:agent_id;type:uuid;index"`
	IsActive  bool       `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
