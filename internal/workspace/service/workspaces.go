package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/teamspace/internal/audit/domain"
	"github.com/smallbiznis/teamspace/internal/authorization"
	userdomain "github.com/smallbiznis/teamspace/internal/user/domain"
	"github.com/smallbiznis/teamspace/internal/workspace/domain"
	"github.com/smallbiznis/teamspace/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	teamNameSuffix       = "'s Team"
	fallbackDisplayName  = "Workspace"
	dashboardAuditWindow = 10
)

func (s *Service) EnsureDefaultWorkspace(ctx context.Context, userID snowflake.ID) (*domain.Workspace, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if user.DefaultWorkspaceID != nil {
		member, err := s.repo.FindActiveMember(ctx, *user.DefaultWorkspaceID, userID)
		if err != nil {
			return nil, err
		}
		if member != nil {
			return s.getWorkspace(ctx, member.WorkspaceID)
		}
	}

	earliest, err := s.repo.EarliestActiveMembership(ctx, userID)
	if err != nil {
		return nil, err
	}
	if earliest != nil {
		if err := s.repo.SetDefaultWorkspace(ctx, userID, earliest.WorkspaceID, s.clock.Now()); err != nil {
			return nil, err
		}
		return s.getWorkspace(ctx, earliest.WorkspaceID)
	}

	name := teamName(user)
	ws, created, err := s.createWithSlug(ctx, userID, name, func(ctx context.Context, repo domain.Repository) (*domain.Workspace, error) {
		if _, err := repo.LockUser(ctx, userID, s.clock.Now()); err != nil {
			return nil, err
		}
		// A concurrent first request may have provisioned while we waited.
		member, err := repo.EarliestActiveMembership(ctx, userID)
		if err != nil || member == nil {
			return nil, err
		}
		if err := repo.SetDefaultWorkspace(ctx, userID, member.WorkspaceID, s.clock.Now()); err != nil {
			return nil, err
		}
		return repo.FindWorkspace(ctx, member.WorkspaceID)
	})
	if err != nil {
		return nil, err
	}
	if !created {
		return ws, nil
	}

	s.log.Info("default workspace provisioned",
		zap.String("user_id", userID.String()),
		zap.String("workspace_id", ws.ID.String()),
	)
	s.recordAudit(ctx, auditdomain.Entry{
		WorkspaceID: idPtr(ws.ID),
		ActorID:     idPtr(userID),
		Action:      "workspace.created",
		Target:      ws.ID.String(),
		Metadata:    map[string]any{"reason": "auto-provision", "name": ws.Name},
	})
	return ws, nil
}

func (s *Service) CreateWorkspace(ctx context.Context, userID snowflake.ID, name string) (*domain.Workspace, error) {
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadUser(ctx, userID); err != nil {
		return nil, err
	}

	ws, _, err := s.createWithSlug(ctx, userID, name, nil)
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, auditdomain.Entry{
		WorkspaceID: idPtr(ws.ID),
		ActorID:     idPtr(userID),
		Action:      "workspace.created",
		Target:      ws.ID.String(),
		Metadata:    map[string]any{"name": ws.Name},
	})
	return ws, nil
}

// precheckFunc runs first inside the provisioning transaction. A non-nil
// workspace aborts creation and is returned as-is.
type precheckFunc func(ctx context.Context, repo domain.Repository) (*domain.Workspace, error)

// createWithSlug inserts the workspace, the creator's OWNER membership and the
// default pointer in one transaction per slug candidate.
func (s *Service) createWithSlug(ctx context.Context, userID snowflake.ID, name string, precheck precheckFunc) (*domain.Workspace, bool, error) {
	for _, candidate := range slugCandidates(baseSlug(name)) {
		exists, err := s.repo.SlugExists(ctx, candidate)
		if err != nil {
			return nil, false, err
		}
		if exists {
			continue
		}

		var result *domain.Workspace
		created := false
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			if precheck != nil {
				existing, err := precheck(ctx, repo)
				if err != nil {
					return err
				}
				if existing != nil {
					result = existing
					return nil
				}
			}

			now := s.clock.Now()
			ws := domain.Workspace{
				ID:            s.genID.Generate(),
				Name:          name,
				Slug:          candidate,
				Plan:          domain.PlanFree,
				BillingStatus: domain.BillingStatusNone,
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			if err := repo.InsertWorkspace(ctx, ws); err != nil {
				return err
			}
			if err := repo.InsertMember(ctx, domain.Member{
				ID:          s.genID.Generate(),
				UserID:      userID,
				WorkspaceID: ws.ID,
				Role:        domain.RoleOwner,
				Status:      domain.MemberStatusActive,
				CreatedAt:   now,
				UpdatedAt:   now,
			}); err != nil {
				return err
			}
			if err := repo.SetDefaultWorkspace(ctx, userID, ws.ID, now); err != nil {
				return err
			}
			result = &ws
			created = true
			return nil
		})
		if err == nil {
			return result, created, nil
		}
		if !db.IsDuplicateKeyErr(err) {
			return nil, false, err
		}
		// only a slug collision moves on; other unique violations surface
		taken, lookupErr := s.repo.SlugExists(ctx, candidate)
		if lookupErr != nil {
			return nil, false, lookupErr
		}
		if !taken {
			return nil, false, err
		}
		s.log.Debug("slug taken, trying next candidate", zap.String("slug", candidate))
	}
	return nil, false, domain.ErrSlugExhausted
}

func (s *Service) RenameWorkspace(ctx context.Context, workspaceID, actorID snowflake.ID, name string) (*domain.Workspace, error) {
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}
	if _, err := s.Authorize(ctx, workspaceID, actorID, authorization.ActionWorkspaceManage); err != nil {
		return nil, err
	}

	rows, err := s.repo.UpdateWorkspaceName(ctx, workspaceID, name, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, domain.ErrWorkspaceNotFound
	}

	s.recordAudit(ctx, auditdomain.Entry{
		WorkspaceID: idPtr(workspaceID),
		ActorID:     idPtr(actorID),
		Action:      "workspace.renamed",
		Target:      workspaceID.String(),
		Metadata:    map[string]any{"name": name},
	})
	return s.getWorkspace(ctx, workspaceID)
}

func (s *Service) ListWorkspacesForUser(ctx context.Context, userID snowflake.ID) ([]domain.WorkspaceListItem, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListWorkspacesByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return items, nil
	}

	found := false
	if user.DefaultWorkspaceID != nil {
		for i := range items {
			if items[i].ID == *user.DefaultWorkspaceID {
				items[i].IsDefault = true
				found = true
				break
			}
		}
	}
	if !found {
		// Stale or missing pointer; repair it to the earliest membership.
		if err := s.repo.SetDefaultWorkspace(ctx, userID, items[0].ID, s.clock.Now()); err != nil {
			return nil, err
		}
		items[0].IsDefault = true
	}
	return items, nil
}

func (s *Service) GetWorkspaceSummary(ctx context.Context, workspaceID, userID snowflake.ID) (*domain.Summary, error) {
	member, err := s.repo.FindActiveMember(ctx, workspaceID, userID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, domain.ErrWorkspaceNotFound
	}

	ws, err := s.getWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	members, err := s.repo.ListMembersWithUsers(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	invites, err := s.repo.ListPendingInvites(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if members == nil {
		members = []domain.MemberView{}
	}
	if invites == nil {
		invites = []domain.Invite{}
	}

	return &domain.Summary{
		Workspace:      *ws,
		Role:           member.Role,
		Members:        members,
		PendingInvites: invites,
	}, nil
}

func (s *Service) GetDashboard(ctx context.Context, workspaceID, userID snowflake.ID) (*domain.Dashboard, error) {
	member, err := s.repo.FindActiveMember(ctx, workspaceID, userID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, domain.ErrWorkspaceNotFound
	}

	ws, err := s.getWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	memberCount, err := s.repo.CountActiveMembers(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	pending, err := s.repo.CountPendingInvites(ctx, workspaceID, s.clock.Now())
	if err != nil {
		return nil, err
	}

	activity := []domain.DashboardActivity{}
	if s.auditSvc != nil {
		req := auditdomain.ListRequest{WorkspaceID: workspaceID}
		req.PageSize = dashboardAuditWindow
		logs, err := s.auditSvc.List(ctx, req)
		if err != nil {
			return nil, err
		}
		for _, entry := range logs.AuditLogs {
			activity = append(activity, domain.DashboardActivity{
				ID:        entry.ID,
				ActorID:   entry.ActorID,
				Action:    entry.Action,
				Target:    entry.Target,
				Metadata:  entry.Metadata,
				CreatedAt: entry.CreatedAt,
			})
		}
	}

	return &domain.Dashboard{
		Workspace:  *ws,
		Membership: *member,
		Metrics: domain.DashboardMetrics{
			MemberCount:    memberCount,
			PendingInvites: pending,
			Plan:           ws.Plan,
			BillingStatus:  ws.BillingStatus,
		},
		RecentActivity: activity,
	}, nil
}

func (s *Service) SwitchDefaultWorkspace(ctx context.Context, userID, workspaceID snowflake.ID) error {
	member, err := s.repo.FindActiveMember(ctx, workspaceID, userID)
	if err != nil {
		return err
	}
	if member == nil {
		return domain.ErrForbidden
	}
	return s.repo.SetDefaultWorkspace(ctx, userID, workspaceID, s.clock.Now())
}

func (s *Service) getWorkspace(ctx context.Context, id snowflake.ID) (*domain.Workspace, error) {
	ws, err := s.repo.FindWorkspace(ctx, id)
	if err != nil {
		return nil, err
	}
	if ws == nil {
		return nil, domain.ErrWorkspaceNotFound
	}
	return ws, nil
}

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if n := len([]rune(name)); n < minNameLength || n > maxNameLength {
		return "", domain.ErrInvalidName
	}
	return name, nil
}

func teamName(user *userdomain.User) string {
	display := strings.TrimSpace(user.Name)
	if display == "" {
		display = strings.TrimSpace(userdomain.EmailLocalPart(user.Email))
	}
	if display == "" {
		display = fallbackDisplayName
	}
	limit := maxNameLength - len([]rune(teamNameSuffix))
	if runes := []rune(display); len(runes) > limit {
		display = strings.TrimSpace(string(runes[:limit]))
	}
	return display + teamNameSuffix
}
