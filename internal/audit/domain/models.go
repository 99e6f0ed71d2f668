package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// AuditLog is an append-only record of a mutating action.
type AuditLog struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id"`
	WorkspaceID *snowflake.ID     `gorm:"index:ix_audit_logs_workspace_created,priority:1" json:"workspace_id,omitempty"`
	ActorID     *snowflake.ID     `json:"actor_id,omitempty"`
	Action      string            `gorm:"type:varchar(100);not null" json:"action"`
	Target      *string           `gorm:"type:varchar(255)" json:"target,omitempty"`
	Metadata    datatypes.JSONMap `json:"metadata,omitempty"`
	IPAddress   *string           `gorm:"type:varchar(64)" json:"ip_address,omitempty"`
	UserAgent   *string           `gorm:"type:varchar(512)" json:"user_agent,omitempty"`
	RequestID   *string           `gorm:"type:varchar(64)" json:"request_id,omitempty"`
	CreatedAt   time.Time         `gorm:"not null;index:ix_audit_logs_workspace_created,priority:2" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }

// Entry is what callers hand to the recorder. Request metadata is filled in
// from the context.
type Entry struct {
	WorkspaceID *snowflake.ID
	ActorID     *snowflake.ID
	Action      string
	Target      string
	Metadata    map[string]any
}

type AuditCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type ListFilter struct {
	WorkspaceID snowflake.ID
	Action      string
	Cursor      *AuditCursor
	Limit       int
}
