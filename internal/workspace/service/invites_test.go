package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/smallbiznis/teamspace/internal/providers/email"
	"github.com/smallbiznis/teamspace/internal/workspace/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInviteToWorkspace_ReusesPendingInvite(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.user(t, "owner@example.com", "Owner")
	ws := h.workspace(t, owner, "Acme")

	h.mailer.EXPECT().
		Send(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, msg email.Message) (bool, error) {
			assert.Equal(t, "bob@example.com", msg.To)
			assert.Equal(t, "You're invited to Acme", msg.Subject)
			assert.Contains(t, msg.Text, testAppURL+"/invites/")
			assert.NotEmpty(t, msg.HTML)
			return true, nil
		}).
		Times(1)

	req := domain.InviteRequest{WorkspaceID: ws.ID, InviterID: owner.ID, Email: " Bob@Example.com ", Role: "member"}
	first, err := h.svc.InviteToWorkspace(ctx, req)
	require.NoError(t, err)
	second, err := h.svc.InviteToWorkspace(ctx, req)
	require.NoError(t, err)

	assert.True(t, first.Delivered)
	assert.False(t, first.Reused)
	assert.False(t, second.Delivered)
	assert.True(t, second.Reused)
	assert.Equal(t, first.Invite.Token, second.Invite.Token)
	assert.Equal(t, first.Invite.ID, second.Invite.ID)
	assert.Equal(t, "bob@example.com", first.Invite.Email)
	assert.Len(t, first.Invite.Token, 43)
	assert.Equal(t, testAppURL+"/invites/"+first.Invite.Token, first.AcceptURL)
	assert.Equal(t, h.clock.Now().Add(48*time.Hour), first.Invite.ExpiresAt)
	assert.EqualValues(t, 1, h.countAudit(t, "workspace.invite.created"))
}

func TestInviteToWorkspace_DeliveryFailureStillReturnsURL(t *testing.T) {
	h := newHarness(t)
	owner := h.user(t, "owner@example.com", "Owner")
	ws := h.workspace(t, owner, "Acme")
	h.mailer.EXPECT().Send(gomock.Any(), gomock.Any()).Return(false, errors.New("smtp down")).Times(1)

	result, err := h.svc.InviteToWorkspace(context.Background(), domain.InviteRequest{
		WorkspaceID: ws.ID, InviterID: owner.ID, Email: "bob@example.com", Role: "ADMIN",
	})

	require.NoError(t, err)
	assert.False(t, result.Delivered)
	assert.True(t, strings.HasPrefix(result.AcceptURL, testAppURL+"/invites/"))
}

func TestInviteToWorkspace_ExpiredPendingIsReplaced(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.user(t, "owner@example.com", "Owner")
	ws := h.workspace(t, owner, "Acme")
	h.mailer.EXPECT().Send(gomock.Any(), gomock.Any()).Return(true, nil).Times(2)

	req := domain.InviteRequest{WorkspaceID: ws.ID, InviterID: owner.ID, Email: "bob@example.com", Role: "MEMBER"}
	first, err := h.svc.InviteToWorkspace(ctx, req)
	require.NoError(t, err)

	h.clock.Advance(49 * time.Hour)
	second, err := h.svc.InviteToWorkspace(ctx, req)
	require.NoError(t, err)

	assert.NotEqual(t, first.Invite.Token, second.Invite.Token)
	old, err := h.repo.FindInviteByToken(ctx, first.Invite.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.InviteStatusExpired, old.Status)
}

func TestInviteToWorkspace_Authorization(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.user(t, "owner@example.com", "Owner")
	admin := h.user(t, "admin@example.com", "Admin")
	member := h.user(t, "member@example.com", "Member")
	outsider := h.user(t, "out@example.com", "Out")
	ws := h.workspace(t, owner, "Acme")
	h.addMember(t, ws.ID, admin, domain.RoleAdmin)
	h.addMember(t, ws.ID, member, domain.RoleMember)

	_, err := h.svc.InviteToWorkspace(ctx, domain.InviteRequest{WorkspaceID: ws.ID, InviterID: admin.ID, Email: "x@example.com", Role: "OWNER"})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = h.svc.InviteToWorkspace(ctx, domain.InviteRequest{WorkspaceID: ws.ID, InviterID: member.ID, Email: "x@example.com", Role: "MEMBER"})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = h.svc.InviteToWorkspace(ctx, domain.InviteRequest{WorkspaceID: ws.ID, InviterID: outsider.ID, Email: "x@example.com", Role: "MEMBER"})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = h.svc.InviteToWorkspace(ctx, domain.InviteRequest{WorkspaceID: ws.ID, InviterID: owner.ID, Email: "not-an-email", Role: "MEMBER"})
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)

	_, err = h.svc.InviteToWorkspace(ctx, domain.InviteRequest{WorkspaceID: ws.ID, InviterID: owner.ID, Email: "x@example.com", Role: "SUPERUSER"})
	assert.ErrorIs(t, err, domain.ErrInvalidRole)

	_, err = h.svc.InviteToWorkspace(ctx, domain.InviteRequest{WorkspaceID: ws.ID, InviterID: owner.ID, Email: "MEMBER@example.com", Role: "MEMBER"})
	assert.ErrorIs(t, err, domain.ErrAlreadyMember)
}

func TestAcceptInvite_CaseInsensitiveEmail(t *testing.T) {
	h := newHarness(t)
	h.allowMail()
	ctx := context.Background()
	owner := h.user(t, "owner@example.com", "Owner")
	ws := h.workspace(t, owner, "Acme")

	result, err := h.svc.InviteToWorkspace(ctx, domain.InviteRequest{WorkspaceID: ws.ID, InviterID: owner.ID, Email: "Bob@Example.COM", Role: "ADMIN"})
	require.NoError(t, err)

	bob := h.user(t, "BOB@example.com", "Bob")
	workspaceID, err := h.svc.AcceptInvite(ctx, result.Invite.Token, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, ws.ID, workspaceID)

	member := h.member(t, ws.ID, bob.ID)
	require.NotNil(t, member)
	assert.Equal(t, domain.RoleAdmin, member.Role)
	assert.Equal(t, domain.MemberStatusActive, member.Status)
	assert.Equal(t, ws.ID, *h.reloadUser(t, bob.ID).DefaultWorkspaceID)

	invite, err := h.repo.FindInviteByToken(ctx, result.Invite.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.InviteStatusAccepted, invite.Status)
	require.NotNil(t, invite.AcceptedAt)
	assert.EqualValues(t, 1, h.countAudit(t, "workspace.invite.accepted"))

	_, err = h.svc.AcceptInvite(ctx, result.Invite.Token, bob.ID)
	assert.ErrorIs(t, err, domain.ErrInviteNotPending)
}

func TestAcceptInvite_MembershipFailureLeavesInvitePending(t *testing.T) {
	h := newHarness(t, withFaults(faultRepo{upsertMemberErr: errors.New("disk full")}))
	h.allowMail()
	ctx := context.Background()
	owner := h.user(t, "owner@example.com", "Owner")
	ws := h.workspace(t, owner, "Acme")

	result, err := h.svc.InviteToWorkspace(ctx, domain.InviteRequest{WorkspaceID: ws.ID, InviterID: owner.ID, Email: "bob@example.com", Role: "MEMBER"})
	require.NoError(t, err)

	bob := h.user(t, "bob@example.com", "Bob")
	_, err = h.svc.AcceptInvite(ctx, result.Invite.Token, bob.ID)
	require.Error(t, err)

	invite, err := h.repo.FindInviteByToken(ctx, result.Invite.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.InviteStatusPending, invite.Status)
	assert.Nil(t, invite.AcceptedAt)
	assert.Nil(t, h.member(t, ws.ID, bob.ID))
	assert.Nil(t, h.reloadUser(t, bob.ID).DefaultWorkspaceID)
	assert.Zero(t, h.countAudit(t, "workspace.invite.accepted"))
}

func TestAcceptInvite_EmailMismatch(t *testing.T) {
	h := newHarness(t)
	h.allowMail()
	ctx := context.Background()
	owner := h.user(t, "owner@example.com", "Owner")
	ws := h.workspace(t, owner, "Acme")
	result, err := h.svc.InviteToWorkspace(ctx, domain.InviteRequest{WorkspaceID: ws.ID, InviterID: owner.ID, Email: "bob@example.com", Role: "MEMBER"})
	require.NoError(t, err)

	eve := h.user(t, "eve@example.com", "Eve")
	_, err = h.svc.AcceptInvite(ctx, result.Invite.Token, eve.ID)

	assert.ErrorIs(t, err, domain.ErrEmailMismatch)
	assert.Nil(t, h.member(t, ws.ID, eve.ID))
}

func TestAcceptInvite_ExpiredMarksInvite(t *testing.T) {
	h := newHarness(t)
	h.allowMail()
	ctx := context.Background()
	owner := h.user(t, "owner@example.com", "Owner")
	ws := h.workspace(t, owner, "Acme")
	result, err := h.svc.InviteToWorkspace(ctx, domain.InviteRequest{WorkspaceID: ws.ID, InviterID: owner.ID, Email: "bob@example.com", Role: "MEMBER"})
	require.NoError(t, err)
	bob := h.user(t, "bob@example.com", "Bob")

	h.clock.Advance(domain.InviteTTL + time.Minute)
	_, err = h.svc.AcceptInvite(ctx, result.Invite.Token, bob.ID)
	assert.ErrorIs(t, err, domain.ErrInviteExpired)

	invite, err := h.repo.FindInviteByToken(ctx, result.Invite.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.InviteStatusExpired, invite.Status)

	_, err = h.svc.AcceptInvite(ctx, result.Invite.Token, bob.ID)
	assert.ErrorIs(t, err, domain.ErrInviteNotPending)
}

func TestAcceptInvite_UnknownToken(t *testing.T) {
	h := newHarness(t)
	bob := h.user(t, "bob@example.com", "Bob")

	_, err := h.svc.AcceptInvite(context.Background(), "does-not-exist", bob.ID)

	assert.ErrorIs(t, err, domain.ErrInviteNotFound)
}

func TestCancelInvite_ScopedToWorkspace(t *testing.T) {
	h := newHarness(t)
	h.allowMail()
	ctx := context.Background()
	owner := h.user(t, "owner@example.com", "Owner")
	wsA := h.workspace(t, owner, "Alpha")
	wsB := h.workspace(t, owner, "Beta")

	result, err := h.svc.InviteToWorkspace(ctx, domain.InviteRequest{WorkspaceID: wsB.ID, InviterID: owner.ID, Email: "bob@example.com", Role: "MEMBER"})
	require.NoError(t, err)

	err = h.svc.CancelInvite(ctx, wsA.ID, owner.ID, result.Invite.ID)
	assert.ErrorIs(t, err, domain.ErrInviteNotFound)

	require.NoError(t, h.svc.CancelInvite(ctx, wsB.ID, owner.ID, result.Invite.ID))
	invite, err := h.repo.FindInviteByToken(ctx, result.Invite.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.InviteStatusCanceled, invite.Status)
	assert.EqualValues(t, 1, h.countAudit(t, "workspace.invite.canceled"))

	err = h.svc.CancelInvite(ctx, wsB.ID, owner.ID, result.Invite.ID)
	assert.ErrorIs(t, err, domain.ErrInviteNotFound)
}

func TestGetInviteByToken(t *testing.T) {
	h := newHarness(t)
	h.allowMail()
	ctx := context.Background()
	owner := h.user(t, "owner@example.com", "Olivia Owner")
	ws := h.workspace(t, owner, "Acme")
	result, err := h.svc.InviteToWorkspace(ctx, domain.InviteRequest{WorkspaceID: ws.ID, InviterID: owner.ID, Email: "bob@example.com", Role: "ADMIN"})
	require.NoError(t, err)

	preview, err := h.svc.GetInviteByToken(ctx, result.Invite.Token)
	require.NoError(t, err)
	assert.Equal(t, "Acme", preview.WorkspaceName)
	assert.Equal(t, domain.RoleAdmin, preview.Role)
	assert.Equal(t, "Olivia Owner", preview.InviterName)
	assert.False(t, preview.Expired)

	_, err = h.svc.GetInviteByToken(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrInviteNotFound)
}
