package service

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/teamspace/internal/audit/domain"
	"github.com/smallbiznis/teamspace/internal/authorization"
	"github.com/smallbiznis/teamspace/internal/providers/email"
	userdomain "github.com/smallbiznis/teamspace/internal/user/domain"
	"github.com/smallbiznis/teamspace/internal/workspace/domain"
	"github.com/smallbiznis/teamspace/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (s *Service) InviteToWorkspace(ctx context.Context, req domain.InviteRequest) (*domain.InviteResult, error) {
	inviter, err := s.Authorize(ctx, req.WorkspaceID, req.InviterID, authorization.ActionInviteManage)
	if err != nil {
		return nil, err
	}

	address := userdomain.NormalizeEmail(req.Email)
	if err := s.validate.Var(address, "required,email,max=320"); err != nil {
		return nil, domain.ErrInvalidEmail
	}
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		return nil, err
	}
	if role == domain.RoleOwner {
		if err := s.checkRole(ctx, inviter.Role, authorization.ActionMemberManageOwner); err != nil {
			return nil, err
		}
	}

	ws, err := s.getWorkspace(ctx, req.WorkspaceID)
	if err != nil {
		return nil, err
	}

	isMember, err := s.repo.IsActiveMemberByEmail(ctx, ws.ID, address)
	if err != nil {
		return nil, err
	}
	if isMember {
		return nil, domain.ErrAlreadyMember
	}

	now := s.clock.Now()
	pending, err := s.repo.FindPendingInvite(ctx, ws.ID, address)
	if err != nil {
		return nil, err
	}
	if pending != nil {
		if !pending.IsExpired(now) {
			s.metrics.RecordInvite(ctx, "reused")
			return s.inviteResult(*pending, false, true), nil
		}
		if _, err := s.repo.TransitionInvite(ctx, pending.ID, idPtr(ws.ID), domain.InviteStatusExpired, nil, now); err != nil {
			return nil, err
		}
	}

	token, err := newInviteToken()
	if err != nil {
		return nil, fmt.Errorf("generate invite token: %w", err)
	}
	invite := domain.Invite{
		ID:          s.genID.Generate(),
		WorkspaceID: ws.ID,
		Email:       address,
		Role:        role,
		Token:       token,
		Status:      domain.InviteStatusPending,
		ExpiresAt:   now.Add(domain.InviteTTL),
		CreatorID:   req.InviterID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.InsertInvite(ctx, invite); err != nil {
		if !db.IsDuplicateKeyErr(err) {
			return nil, err
		}
		// A concurrent request for the same address won the pending slot.
		winner, findErr := s.repo.FindPendingInvite(ctx, ws.ID, address)
		if findErr != nil {
			return nil, findErr
		}
		if winner == nil {
			return nil, err
		}
		s.metrics.RecordInvite(ctx, "reused")
		return s.inviteResult(*winner, false, true), nil
	}

	s.recordAudit(ctx, auditdomain.Entry{
		WorkspaceID: idPtr(ws.ID),
		ActorID:     idPtr(req.InviterID),
		Action:      "workspace.invite.created",
		Target:      address,
		Metadata: map[string]any{
			"inviteId": invite.ID.String(),
			"role":     string(role),
		},
	})

	result := s.inviteResult(invite, false, false)
	result.Delivered = s.sendInvite(ctx, ws, invite, result.AcceptURL)
	s.metrics.RecordInvite(ctx, "created")
	if result.Delivered {
		s.metrics.RecordInvite(ctx, "delivered")
	} else {
		s.metrics.RecordInvite(ctx, "undelivered")
	}
	return result, nil
}

func (s *Service) sendInvite(ctx context.Context, ws *domain.Workspace, invite domain.Invite, acceptURL string) bool {
	if s.email == nil {
		return false
	}
	roleLabel := strings.ToLower(string(invite.Role))
	text := fmt.Sprintf(
		"You have been invited to join %s as %s.\n\nAccept the invite: %s\n\nThis link expires in 48 hours.",
		ws.Name, roleLabel, acceptURL,
	)
	body := fmt.Sprintf(
		`<p>You have been invited to join <strong>%s</strong> as %s.</p><p><a href="%s">Accept the invite</a></p><p>This link expires in 48 hours.</p>`,
		html.EscapeString(ws.Name), html.EscapeString(roleLabel), html.EscapeString(acceptURL),
	)

	delivered, err := s.email.Send(ctx, email.Message{
		To:      invite.Email,
		Subject: fmt.Sprintf("You're invited to %s", ws.Name),
		Text:    text,
		HTML:    body,
		Tags:    map[string]string{"category": "workspace_invite"},
	})
	if err != nil {
		s.log.Warn("invite email failed",
			zap.String("workspace_id", ws.ID.String()),
			zap.String("invite_id", invite.ID.String()),
			zap.Error(err),
		)
		return false
	}
	return delivered
}

func (s *Service) inviteResult(invite domain.Invite, delivered, reused bool) *domain.InviteResult {
	return &domain.InviteResult{
		Invite:    invite,
		AcceptURL: s.appURL + "/invites/" + invite.Token,
		Delivered: delivered,
		Reused:    reused,
	}
}

func (s *Service) GetInviteByToken(ctx context.Context, token string) (*domain.InvitePreview, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.ErrInviteNotFound
	}
	invite, err := s.repo.FindInviteByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if invite == nil {
		return nil, domain.ErrInviteNotFound
	}
	ws, err := s.getWorkspace(ctx, invite.WorkspaceID)
	if err != nil {
		return nil, err
	}

	preview := &domain.InvitePreview{
		WorkspaceID:   ws.ID,
		WorkspaceName: ws.Name,
		Email:         invite.Email,
		Role:          invite.Role,
		Status:        invite.Status,
		ExpiresAt:     invite.ExpiresAt,
		Expired:       invite.Status == domain.InviteStatusExpired || (invite.Status == domain.InviteStatusPending && invite.IsExpired(s.clock.Now())),
	}
	creator, err := s.userRepo.FindByID(ctx, invite.CreatorID)
	if err != nil {
		return nil, err
	}
	if creator != nil {
		preview.InviterName = creator.Name
		preview.InviterEmail = creator.Email
	}
	return preview, nil
}

func (s *Service) AcceptInvite(ctx context.Context, token string, userID snowflake.ID) (snowflake.ID, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, domain.ErrInviteNotFound
	}
	invite, err := s.repo.FindInviteByToken(ctx, token)
	if err != nil {
		return 0, err
	}
	if invite == nil {
		return 0, domain.ErrInviteNotFound
	}
	if invite.Status != domain.InviteStatusPending {
		return 0, domain.ErrInviteNotPending
	}

	now := s.clock.Now()
	if invite.IsExpired(now) {
		if _, err := s.repo.TransitionInvite(ctx, invite.ID, nil, domain.InviteStatusExpired, nil, now); err != nil {
			return 0, err
		}
		return 0, domain.ErrInviteExpired
	}

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	if !strings.EqualFold(strings.TrimSpace(user.Email), invite.Email) {
		return 0, domain.ErrEmailMismatch
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		rows, err := repo.TransitionInvite(ctx, invite.ID, nil, domain.InviteStatusAccepted, &now, now)
		if err != nil {
			return err
		}
		if rows == 0 {
			return domain.ErrInviteNotPending
		}
		if _, err := repo.BumpMembershipVersion(ctx, invite.WorkspaceID, now); err != nil {
			return err
		}

		existing, err := repo.FindMember(ctx, invite.WorkspaceID, userID)
		if err != nil {
			return err
		}
		// An active membership keeps its role so accepting can never demote an owner.
		if existing != nil && existing.Status == domain.MemberStatusActive {
			return nil
		}
		return repo.UpsertMember(ctx, domain.Member{
			ID:          s.genID.Generate(),
			UserID:      userID,
			WorkspaceID: invite.WorkspaceID,
			Role:        invite.Role,
			Status:      domain.MemberStatusActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	})
	if err != nil {
		return 0, err
	}

	if err := s.repo.SetDefaultWorkspace(ctx, userID, invite.WorkspaceID, s.clock.Now()); err != nil {
		s.log.Warn("failed to set default workspace after invite accept",
			zap.String("workspace_id", invite.WorkspaceID.String()),
			zap.Error(err),
		)
	}

	s.recordAudit(ctx, auditdomain.Entry{
		WorkspaceID: idPtr(invite.WorkspaceID),
		ActorID:     idPtr(userID),
		Action:      "workspace.invite.accepted",
		Target:      invite.Email,
		Metadata:    map[string]any{"inviteId": invite.ID.String()},
	})
	return invite.WorkspaceID, nil
}

func (s *Service) CancelInvite(ctx context.Context, workspaceID, actorID, inviteID snowflake.ID) error {
	if _, err := s.Authorize(ctx, workspaceID, actorID, authorization.ActionInviteManage); err != nil {
		return err
	}

	rows, err := s.repo.TransitionInvite(ctx, inviteID, idPtr(workspaceID), domain.InviteStatusCanceled, nil, s.clock.Now())
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrInviteNotFound
	}

	s.recordAudit(ctx, auditdomain.Entry{
		WorkspaceID: idPtr(workspaceID),
		ActorID:     idPtr(actorID),
		Action:      "workspace.invite.canceled",
		Target:      inviteID.String(),
		Metadata:    map[string]any{"inviteId": inviteID.String()},
	})
	return nil
}
