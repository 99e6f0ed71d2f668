package repository

import (
	"context"
	"strings"

	"github.com/smallbiznis/teamspace/internal/audit/domain"
	"gorm.io/gorm"
)

type repo struct{}

// New returns the audit log store. It holds no connection; callers pass the
// handle so entries can join an open transaction.
func New() domain.Repository {
	return repo{}
}

func (repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.AuditLog) error {
	if entry == nil {
		return nil
	}
	return db.WithContext(ctx).Create(entry).Error
}

// List returns up to Limit+1 rows newest first so the caller can tell whether
// another page exists.
func (repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.AuditLog, error) {
	where := []string{"workspace_id = ?"}
	args := []any{filter.WorkspaceID}

	if action := strings.TrimSpace(filter.Action); action != "" {
		where = append(where, "action = ?")
		args = append(args, action)
	}
	if c := filter.Cursor; c != nil {
		where = append(where, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, c.CreatedAt, c.CreatedAt, c.ID)
	}

	query := "SELECT * FROM audit_logs WHERE " + strings.Join(where, " AND ") +
		" ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit+1)
	}

	var logs []*domain.AuditLog
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
