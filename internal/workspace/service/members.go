package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/teamspace/internal/audit/domain"
	"github.com/smallbiznis/teamspace/internal/authorization"
	"github.com/smallbiznis/teamspace/internal/workspace/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (s *Service) UpdateMemberRole(ctx context.Context, workspaceID, actorID, memberID snowflake.ID, role string) (*domain.Member, error) {
	newRole, err := domain.ParseRole(role)
	if err != nil {
		return nil, err
	}
	actor, err := s.Authorize(ctx, workspaceID, actorID, authorization.ActionMemberManage)
	if err != nil {
		return nil, err
	}

	target, err := s.repo.FindMember(ctx, workspaceID, memberID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, domain.ErrMemberNotFound
	}
	if target.Role == newRole {
		return target, nil
	}
	if newRole == domain.RoleOwner || target.Role == domain.RoleOwner {
		if err := s.checkRole(ctx, actor.Role, authorization.ActionMemberManageOwner); err != nil {
			return nil, err
		}
	}

	observed := target.Role
	var updated domain.Member
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		now := s.clock.Now()

		// Serializes membership mutations per workspace until commit.
		rows, err := repo.BumpMembershipVersion(ctx, workspaceID, now)
		if err != nil {
			return err
		}
		if rows == 0 {
			return domain.ErrWorkspaceNotFound
		}

		// The actor may have been demoted while we waited for the lock.
		currentActor, err := s.authorizeWith(ctx, repo, workspaceID, actorID, authorization.ActionMemberManage)
		if err != nil {
			return err
		}
		if newRole == domain.RoleOwner || observed == domain.RoleOwner {
			if err := s.checkRole(ctx, currentActor.Role, authorization.ActionMemberManageOwner); err != nil {
				return err
			}
		}

		current, err := repo.FindMember(ctx, workspaceID, memberID)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrMemberNotFound
		}

		if observed == domain.RoleOwner && current.Status == domain.MemberStatusActive {
			others, err := repo.CountActiveOwners(ctx, workspaceID, idPtr(memberID))
			if err != nil {
				return err
			}
			if others == 0 {
				return domain.ErrLastOwner
			}
		}

		rows, err = repo.CompareAndSetRole(ctx, workspaceID, memberID, observed, newRole, now)
		if err != nil {
			return err
		}
		if rows == 0 {
			return domain.ErrConcurrentUpdate
		}

		remaining, err := repo.CountActiveOwners(ctx, workspaceID, nil)
		if err != nil {
			return err
		}
		if remaining < 1 {
			return domain.ErrLastOwner
		}

		updated = *current
		updated.Role = newRole
		updated.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("member role changed",
		zap.String("workspace_id", workspaceID.String()),
		zap.String("member_id", memberID.String()),
		zap.String("from", string(observed)),
		zap.String("to", string(newRole)),
	)
	s.recordAudit(ctx, auditdomain.Entry{
		WorkspaceID: idPtr(workspaceID),
		ActorID:     idPtr(actorID),
		Action:      "workspace.member.role_changed",
		Target:      memberID.String(),
		Metadata:    map[string]any{"role": string(newRole), "previousRole": string(observed)},
	})
	return &updated, nil
}

func (s *Service) RemoveMember(ctx context.Context, workspaceID, actorID, memberID snowflake.ID) error {
	if _, err := s.Authorize(ctx, workspaceID, actorID, authorization.ActionMemberManage); err != nil {
		return err
	}

	target, err := s.repo.FindMember(ctx, workspaceID, memberID)
	if err != nil {
		return err
	}
	if target == nil {
		return domain.ErrMemberNotFound
	}
	if target.Role == domain.RoleOwner {
		return domain.ErrOwnerRemoval
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		now := s.clock.Now()

		if _, err := repo.BumpMembershipVersion(ctx, workspaceID, now); err != nil {
			return err
		}
		rows, err := repo.DeleteNonOwnerMember(ctx, workspaceID, memberID)
		if err != nil {
			return err
		}
		if rows == 0 {
			current, err := repo.FindMember(ctx, workspaceID, memberID)
			if err != nil {
				return err
			}
			if current != nil && current.Role == domain.RoleOwner {
				return domain.ErrOwnerRemoval
			}
			return domain.ErrMemberNotFound
		}
		return repo.ClearDefaultWorkspaceIf(ctx, memberID, workspaceID, now)
	})
	if err != nil {
		return err
	}

	s.recordAudit(ctx, auditdomain.Entry{
		WorkspaceID: idPtr(workspaceID),
		ActorID:     idPtr(actorID),
		Action:      "workspace.member.removed",
		Target:      memberID.String(),
		Metadata:    map[string]any{"role": string(target.Role)},
	})
	return nil
}
