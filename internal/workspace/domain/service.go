package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	EnsureDefaultWorkspace(ctx context.Context, userID snowflake.ID) (*Workspace, error)
	CreateWorkspace(ctx context.Context, userID snowflake.ID, name string) (*Workspace, error)
	RenameWorkspace(ctx context.Context, workspaceID, actorID snowflake.ID, name string) (*Workspace, error)
	ListWorkspacesForUser(ctx context.Context, userID snowflake.ID) ([]WorkspaceListItem, error)
	GetWorkspaceSummary(ctx context.Context, workspaceID, userID snowflake.ID) (*Summary, error)
	GetDashboard(ctx context.Context, workspaceID, userID snowflake.ID) (*Dashboard, error)
	SwitchDefaultWorkspace(ctx context.Context, userID, workspaceID snowflake.ID) error

	InviteToWorkspace(ctx context.Context, req InviteRequest) (*InviteResult, error)
	GetInviteByToken(ctx context.Context, token string) (*InvitePreview, error)
	AcceptInvite(ctx context.Context, token string, userID snowflake.ID) (snowflake.ID, error)
	CancelInvite(ctx context.Context, workspaceID, actorID, inviteID snowflake.ID) error

	UpdateMemberRole(ctx context.Context, workspaceID, actorID, memberID snowflake.ID, role string) (*Member, error)
	RemoveMember(ctx context.Context, workspaceID, actorID, memberID snowflake.ID) error

	// Authorize resolves the actor's ACTIVE membership and checks action
	// against the role policy. Non-members get ErrForbidden.
	Authorize(ctx context.Context, workspaceID, userID snowflake.ID, action string) (*Member, error)
}
