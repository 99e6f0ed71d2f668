package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository

	InsertWorkspace(ctx context.Context, ws Workspace) error
	SlugExists(ctx context.Context, slug string) (bool, error)
	FindWorkspace(ctx context.Context, id snowflake.ID) (*Workspace, error)
	UpdateWorkspaceName(ctx context.Context, id snowflake.ID, name string, now time.Time) (int64, error)
	// BumpMembershipVersion is the first write of every membership mutation
	// and holds the workspace row lock until commit.
	BumpMembershipVersion(ctx context.Context, id snowflake.ID, now time.Time) (int64, error)

	InsertMember(ctx context.Context, member Member) error
	UpsertMember(ctx context.Context, member Member) error
	FindMember(ctx context.Context, workspaceID, userID snowflake.ID) (*Member, error)
	FindActiveMember(ctx context.Context, workspaceID, userID snowflake.ID) (*Member, error)
	EarliestActiveMembership(ctx context.Context, userID snowflake.ID) (*Member, error)
	CountActiveOwners(ctx context.Context, workspaceID snowflake.ID, excludeUserID *snowflake.ID) (int64, error)
	CompareAndSetRole(ctx context.Context, workspaceID, userID snowflake.ID, from, to Role, now time.Time) (int64, error)
	DeleteNonOwnerMember(ctx context.Context, workspaceID, userID snowflake.ID) (int64, error)
	ListMembersWithUsers(ctx context.Context, workspaceID snowflake.ID) ([]MemberView, error)
	CountActiveMembers(ctx context.Context, workspaceID snowflake.ID) (int64, error)
	ListWorkspacesByUser(ctx context.Context, userID snowflake.ID) ([]WorkspaceListItem, error)
	IsActiveMemberByEmail(ctx context.Context, workspaceID snowflake.ID, email string) (bool, error)

	InsertInvite(ctx context.Context, invite Invite) error
	FindInviteByToken(ctx context.Context, token string) (*Invite, error)
	FindPendingInvite(ctx context.Context, workspaceID snowflake.ID, email string) (*Invite, error)
	ListPendingInvites(ctx context.Context, workspaceID snowflake.ID) ([]Invite, error)
	CountPendingInvites(ctx context.Context, workspaceID snowflake.ID, now time.Time) (int64, error)
	// TransitionInvite moves a PENDING invite to a terminal status. When
	// workspaceID is set the invite must also belong to that workspace.
	TransitionInvite(ctx context.Context, inviteID snowflake.ID, workspaceID *snowflake.ID, to InviteStatus, acceptedAt *time.Time, now time.Time) (int64, error)

	SetDefaultWorkspace(ctx context.Context, userID, workspaceID snowflake.ID, now time.Time) error
	ClearDefaultWorkspaceIf(ctx context.Context, userID, workspaceID snowflake.ID, now time.Time) error
	// LockUser serializes default-workspace provisioning for one user.
	LockUser(ctx context.Context, userID snowflake.ID, now time.Time) (int64, error)
}
