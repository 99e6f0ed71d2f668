// Package domain contains persistence models for the user service.
package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

// User is an authenticated identity. The default workspace pointer is owned by
// the workspace engine and never set through profile updates.
type User struct {
	ID                 snowflake.ID  `gorm:"primaryKey" json:"id"`
	Email              string        `gorm:"type:text;not null;uniqueIndex:ux_users_email" json:"email"`
	Name               string        `gorm:"type:text;not null;default:''" json:"name"`
	Timezone           string        `gorm:"type:text;not null;default:'UTC'" json:"timezone"`
	DefaultWorkspaceID *snowflake.ID `gorm:"column:default_workspace_id;index" json:"default_workspace_id,omitempty"`
	CreatedAt          time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt          time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }

// NormalizeEmail trims and lower-cases an address for storage and comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// EmailLocalPart returns the part of the address before '@'.
func EmailLocalPart(email string) string {
	email = strings.TrimSpace(email)
	if at := strings.Index(email, "@"); at >= 0 {
		return email[:at]
	}
	return email
}
