package models

import (
	"time"

	"github.com/google/uuid"
)

type Capability string

const (
	CapabilityImport   Capability = "import"
	CapabilityViewData Capability = "view_data"
	CapabilityDelete   Capability = "delete_data"
)

type UserTopicPermission struct {
	UserID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	TopicID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"topic_id"`
	CanImport     bool      `gorm:"not null" json:"can_import"`
	CanViewData   bool      `gorm:"not null" json:"can_view_data"`
	CanDeleteData bool      `gorm:"not null" json:"can_delete_data"`
	CreatedAt     time.Time `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"type:timestamptz;autoUpdateTime" json:"updated_at"`
}

func (UserTopicPermission) TableName() string {
	return "user_topic_permissions"
}

// Allows reports whether the permission row grants capability c.
func (p *UserTopicPermission) Allows(c Capability) bool {
	if p == nil {
		return false
	}
	switch c {
	case CapabilityImport:
		return p.CanImport
	case CapabilityViewData:
		return p.CanViewData
	case CapabilityDelete:
		return p.CanDeleteData
	}
	return false
}

// Any reports whether at least one capability is granted.
func (p *UserTopicPermission) Any() bool {
	return p != nil && (p.CanImport || p.CanViewData || p.CanDeleteData)
}
