package models

import (
	"time"

	"github.com/google/uuid"
)

// PrinterAgent is a remote relay process. LastSeenAt is refreshed whenever the
// dispatcher reaches the agent; liveness checks compare it against a staleness
// window rather than expecting pushed heartbeats.
type PrinterAgent struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	HostID     string    `gorm:"column:host_id;type:text;not null;uniqueIndex"`
	HostName   string    `gorm:"column:host_name;not null"`
	Endpoint   string    `gorm:"column:endpoint;not null"`
	Token      string    `gorm:"column:token;type:text;not null"`
	LastSeenAt time.Time `gorm:"column:last_seen_at;not null"`
	IsActive   bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
