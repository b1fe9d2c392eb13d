package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/velogear/velogear-backend/pkg/enums"
)

// AdminAuditLog records a mutating admin action with before/after snapshots.
// Snapshots drive best-effort restoration of deleted or archived records.
type AdminAuditLog struct {
	ID         uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	Action     enums.AuditAction `gorm:"column:action;not null"`
	EntityType enums.AuditEntity `gorm:"column:entity_type;not null"`
	EntityID   *string           `gorm:"column:entity_id"`
	ActorID    uuid.UUID         `gorm:"column:actor_id;type:uuid;not null"`
	ActorEmail *string           `gorm:"column:actor_email"`
	ActorName  *string           `gorm:"column:actor_name"`
	Metadata   map[string]any    `gorm:"column:metadata;type:jsonb;serializer:json"`
	BeforeData map[string]any    `gorm:"column:before_data;type:jsonb;serializer:json"`
	AfterData  map[string]any    `gorm:"column:after_data;type:jsonb;serializer:json"`
	RestoredAt *time.Time        `gorm:"column:restored_at"`
	RestoredBy *uuid.UUID        `gorm:"column:restored_by;type:uuid"`
	CreatedAt  time.Time         `gorm:"column:created_at;autoCreateTime"`
}

func (l *AdminAuditLog) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
