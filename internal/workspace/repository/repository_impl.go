package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/teamspace/internal/workspace/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const workspaceColumns = `id, name, slug, plan, billing_status, stripe_customer_id, stripe_subscription_id,
	subscription_status_changed_at, membership_version, created_at, updated_at`

const inviteColumns = `id, workspace_id, email, role, token, status, expires_at, accepted_at,
	creator_id, created_at, updated_at`

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) InsertWorkspace(ctx context.Context, ws domain.Workspace) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO workspaces (id, name, slug, plan, billing_status, membership_version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ws.ID,
		ws.Name,
		ws.Slug,
		ws.Plan,
		ws.BillingStatus,
		ws.MembershipVersion,
		ws.CreatedAt,
		ws.UpdatedAt,
	).Error
}

func (r *repository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM workspaces WHERE slug = ?`,
		slug,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) FindWorkspace(ctx context.Context, id snowflake.ID) (*domain.Workspace, error) {
	var ws domain.Workspace
	err := r.db.WithContext(ctx).Raw(
		`SELECT `+workspaceColumns+` FROM workspaces WHERE id = ?`,
		id,
	).Scan(&ws).Error
	if err != nil {
		return nil, err
	}
	if ws.ID == 0 {
		return nil, nil
	}
	return &ws, nil
}

func (r *repository) UpdateWorkspaceName(ctx context.Context, id snowflake.ID, name string, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE workspaces SET name = ?, updated_at = ? WHERE id = ?`,
		name,
		now,
		id,
	)
	return res.RowsAffected, res.Error
}

func (r *repository) BumpMembershipVersion(ctx context.Context, id snowflake.ID, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE workspaces SET membership_version = membership_version + 1, updated_at = ? WHERE id = ?`,
		now,
		id,
	)
	return res.RowsAffected, res.Error
}

func (r *repository) InsertMember(ctx context.Context, member domain.Member) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO workspace_members (id, user_id, workspace_id, role, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		member.ID,
		member.UserID,
		member.WorkspaceID,
		member.Role,
		member.Status,
		member.CreatedAt,
		member.UpdatedAt,
	).Error
}

func (r *repository) UpsertMember(ctx context.Context, member domain.Member) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "workspace_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"role", "status", "updated_at"}),
		}).
		Create(&member).Error
}

func (r *repository) FindMember(ctx context.Context, workspaceID, userID snowflake.ID) (*domain.Member, error) {
	var member domain.Member
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, user_id, workspace_id, role, status, created_at, updated_at
		 FROM workspace_members WHERE workspace_id = ? AND user_id = ?`,
		workspaceID,
		userID,
	).Scan(&member).Error
	if err != nil {
		return nil, err
	}
	if member.ID == 0 {
		return nil, nil
	}
	return &member, nil
}

func (r *repository) FindActiveMember(ctx context.Context, workspaceID, userID snowflake.ID) (*domain.Member, error) {
	member, err := r.FindMember(ctx, workspaceID, userID)
	if err != nil || member == nil {
		return nil, err
	}
	if member.Status != domain.MemberStatusActive {
		return nil, nil
	}
	return member, nil
}

func (r *repository) EarliestActiveMembership(ctx context.Context, userID snowflake.ID) (*domain.Member, error) {
	var member domain.Member
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, user_id, workspace_id, role, status, created_at, updated_at
		 FROM workspace_members
		 WHERE user_id = ? AND status = ?
		 ORDER BY created_at ASC, id ASC
		 LIMIT 1`,
		userID,
		domain.MemberStatusActive,
	).Scan(&member).Error
	if err != nil {
		return nil, err
	}
	if member.ID == 0 {
		return nil, nil
	}
	return &member, nil
}

func (r *repository) CountActiveOwners(ctx context.Context, workspaceID snowflake.ID, excludeUserID *snowflake.ID) (int64, error) {
	query := `SELECT COUNT(1) FROM workspace_members WHERE workspace_id = ? AND role = ? AND status = ?`
	args := []any{workspaceID, domain.RoleOwner, domain.MemberStatusActive}
	if excludeUserID != nil {
		query += ` AND user_id <> ?`
		args = append(args, *excludeUserID)
	}

	var count int64
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repository) CompareAndSetRole(ctx context.Context, workspaceID, userID snowflake.ID, from, to domain.Role, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE workspace_members SET role = ?, updated_at = ?
		 WHERE workspace_id = ? AND user_id = ? AND role = ?`,
		to,
		now,
		workspaceID,
		userID,
		from,
	)
	return res.RowsAffected, res.Error
}

func (r *repository) DeleteNonOwnerMember(ctx context.Context, workspaceID, userID snowflake.ID) (int64, error) {
	res := r.db.WithContext(ctx).Exec(
		`DELETE FROM workspace_members WHERE workspace_id = ? AND user_id = ? AND role <> ?`,
		workspaceID,
		userID,
		domain.RoleOwner,
	)
	return res.RowsAffected, res.Error
}

func (r *repository) ListMembersWithUsers(ctx context.Context, workspaceID snowflake.ID) ([]domain.MemberView, error) {
	var rows []domain.MemberView
	err := r.db.WithContext(ctx).Raw(
		`SELECT m.user_id, u.email, u.name, m.role, m.status, m.created_at AS joined_at
		 FROM workspace_members m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.workspace_id = ?
		 ORDER BY m.created_at ASC, m.id ASC`,
		workspaceID,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) CountActiveMembers(ctx context.Context, workspaceID snowflake.ID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM workspace_members WHERE workspace_id = ? AND status = ?`,
		workspaceID,
		domain.MemberStatusActive,
	).Scan(&count).Error
	return count, err
}

type workspaceMembershipRow struct {
	domain.Workspace
	Role     domain.Role
	JoinedAt time.Time
}

func (r *repository) ListWorkspacesByUser(ctx context.Context, userID snowflake.ID) ([]domain.WorkspaceListItem, error) {
	var rows []workspaceMembershipRow
	err := r.db.WithContext(ctx).Raw(
		`SELECT w.id, w.name, w.slug, w.plan, w.billing_status, w.stripe_customer_id,
			w.stripe_subscription_id, w.subscription_status_changed_at, w.membership_version,
			w.created_at, w.updated_at, m.role, m.created_at AS joined_at
		 FROM workspace_members m
		 JOIN workspaces w ON w.id = m.workspace_id
		 WHERE m.user_id = ? AND m.status = ?
		 ORDER BY m.created_at ASC, m.id ASC`,
		userID,
		domain.MemberStatusActive,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	items := make([]domain.WorkspaceListItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, domain.WorkspaceListItem{
			Workspace: row.Workspace,
			Role:      row.Role,
			JoinedAt:  row.JoinedAt,
		})
	}
	return items, nil
}

func (r *repository) IsActiveMemberByEmail(ctx context.Context, workspaceID snowflake.ID, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Raw(
		`SELECT COUNT(1)
		 FROM workspace_members m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.workspace_id = ? AND m.status = ? AND u.email = ?`,
		workspaceID,
		domain.MemberStatusActive,
		email,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) InsertInvite(ctx context.Context, invite domain.Invite) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO workspace_invites (`+inviteColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		invite.ID,
		invite.WorkspaceID,
		invite.Email,
		invite.Role,
		invite.Token,
		invite.Status,
		invite.ExpiresAt,
		invite.AcceptedAt,
		invite.CreatorID,
		invite.CreatedAt,
		invite.UpdatedAt,
	).Error
}

func (r *repository) FindInviteByToken(ctx context.Context, token string) (*domain.Invite, error) {
	var invite domain.Invite
	err := r.db.WithContext(ctx).Raw(
		`SELECT `+inviteColumns+` FROM workspace_invites WHERE token = ?`,
		token,
	).Scan(&invite).Error
	if err != nil {
		return nil, err
	}
	if invite.ID == 0 {
		return nil, nil
	}
	return &invite, nil
}

func (r *repository) FindPendingInvite(ctx context.Context, workspaceID snowflake.ID, email string) (*domain.Invite, error) {
	var invite domain.Invite
	err := r.db.WithContext(ctx).Raw(
		`SELECT `+inviteColumns+` FROM workspace_invites
		 WHERE workspace_id = ? AND email = ? AND status = ?
		 ORDER BY created_at DESC
		 LIMIT 1`,
		workspaceID,
		email,
		domain.InviteStatusPending,
	).Scan(&invite).Error
	if err != nil {
		return nil, err
	}
	if invite.ID == 0 {
		return nil, nil
	}
	return &invite, nil
}

func (r *repository) ListPendingInvites(ctx context.Context, workspaceID snowflake.ID) ([]domain.Invite, error) {
	var invites []domain.Invite
	err := r.db.WithContext(ctx).Raw(
		`SELECT `+inviteColumns+` FROM workspace_invites
		 WHERE workspace_id = ? AND status = ?
		 ORDER BY created_at DESC, id DESC`,
		workspaceID,
		domain.InviteStatusPending,
	).Scan(&invites).Error
	if err != nil {
		return nil, err
	}
	return invites, nil
}

func (r *repository) CountPendingInvites(ctx context.Context, workspaceID snowflake.ID, now time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM workspace_invites
		 WHERE workspace_id = ? AND status = ? AND expires_at >= ?`,
		workspaceID,
		domain.InviteStatusPending,
		now,
	).Scan(&count).Error
	return count, err
}

func (r *repository) TransitionInvite(ctx context.Context, inviteID snowflake.ID, workspaceID *snowflake.ID, to domain.InviteStatus, acceptedAt *time.Time, now time.Time) (int64, error) {
	query := `UPDATE workspace_invites SET status = ?, accepted_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`
	args := []any{to, acceptedAt, now, inviteID, domain.InviteStatusPending}
	if workspaceID != nil {
		query += ` AND workspace_id = ?`
		args = append(args, *workspaceID)
	}

	res := r.db.WithContext(ctx).Exec(query, args...)
	return res.RowsAffected, res.Error
}

func (r *repository) SetDefaultWorkspace(ctx context.Context, userID, workspaceID snowflake.ID, now time.Time) error {
	return r.db.WithContext(ctx).Exec(
		`UPDATE users SET default_workspace_id = ?, updated_at = ? WHERE id = ?`,
		workspaceID,
		now,
		userID,
	).Error
}

func (r *repository) ClearDefaultWorkspaceIf(ctx context.Context, userID, workspaceID snowflake.ID, now time.Time) error {
	return r.db.WithContext(ctx).Exec(
		`UPDATE users SET default_workspace_id = NULL, updated_at = ?
		 WHERE id = ? AND default_workspace_id = ?`,
		now,
		userID,
		workspaceID,
	).Error
}

func (r *repository) LockUser(ctx context.Context, userID snowflake.ID, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE users SET updated_at = ? WHERE id = ?`,
		now,
		userID,
	)
	return res.RowsAffected, res.Error
}
