package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/enums"
)

// Notification stores in-app notification payloads scoped to users.
// IsOpened implies IsRead; the reverse does not hold because bulk mark-read
// never opens.
type Notification struct {
	ID        uuid.UUID              `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID              `gorm:"column:user_id;type:uuid;not null;index"`
	Type      enums.NotificationType `gorm:"column:type;type:notification_type;not null"`
	Title     string                 `gorm:"column:title;type:text;not null"`
	Message   string                 `gorm:"column:message;type:text;not null"`
	Data      json.RawMessage        `gorm:"column:data;type:jsonb"`
	IsRead    bool                   `gorm:"column:is_read;not null;default:false"`
	IsOpened  bool                   `gorm:"column:is_opened;not null;default:false"`
	ReadAt    *time.Time             `gorm:"column:read_at"`
	OpenedAt  *time.Time             `gorm:"column:opened_at"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime"`
}
