package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/teamspace/internal/workspace/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateMemberRole_SoleOwnerCannotDemote(t *testing.T) {
	h := newHarness(t)
	owner := h.user(t, "owner@example.com", "Owner")
	ws := h.workspace(t, owner, "Acme")

	_, err := h.svc.UpdateMemberRole(context.Background(), ws.ID, owner.ID, owner.ID, "ADMIN")

	assert.ErrorIs(t, err, domain.ErrLastOwner)
	assert.Equal(t, domain.RoleOwner, h.member(t, ws.ID, owner.ID).Role)
	assert.EqualValues(t, 0, h.countAudit(t, "workspace.member.role_changed"))
}

func TestUpdateMemberRole_DemoteOneOfTwoOwners(t *testing.T) {
	h := newHarness(t)
	a := h.user(t, "a@example.com", "A")
	b := h.user(t, "b@example.com", "B")
	ws := h.workspace(t, a, "Acme")
	h.addMember(t, ws.ID, b, domain.RoleOwner)

	updated, err := h.svc.UpdateMemberRole(context.Background(), ws.ID, a.ID, b.ID, "MEMBER")

	require.NoError(t, err)
	assert.Equal(t, domain.RoleMember, updated.Role)
	assert.Equal(t, domain.RoleMember, h.member(t, ws.ID, b.ID).Role)
	assert.EqualValues(t, 1, h.ownerCount(t, ws.ID))
	assert.EqualValues(t, 1, h.countAudit(t, "workspace.member.role_changed"))
}

func TestUpdateMemberRole_ConcurrentSelfDemotions(t *testing.T) {
	h := newHarness(t, withLockstep(2))
	a := h.user(t, "a@example.com", "A")
	b := h.user(t, "b@example.com", "B")
	ws := h.workspace(t, a, "Acme")
	h.addMember(t, ws.ID, b, domain.RoleOwner)

	errs := runConcurrently(
		func() error {
			_, err := h.svc.UpdateMemberRole(withLane(context.Background(), "a"), ws.ID, a.ID, a.ID, "ADMIN")
			return err
		},
		func() error {
			_, err := h.svc.UpdateMemberRole(withLane(context.Background(), "b"), ws.ID, b.ID, b.ID, "ADMIN")
			return err
		},
	)

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrLastOwner)
	}
	assert.Equal(t, 1, successes)
	assert.EqualValues(t, 1, h.ownerCount(t, ws.ID))
}

func TestUpdateMemberRole_ConcurrentCrossDemotions(t *testing.T) {
	h := newHarness(t, withLockstep(2))
	a := h.user(t, "a@example.com", "A")
	b := h.user(t, "b@example.com", "B")
	ws := h.workspace(t, a, "Acme")
	h.addMember(t, ws.ID, b, domain.RoleOwner)

	errs := runConcurrently(
		func() error {
			_, err := h.svc.UpdateMemberRole(withLane(context.Background(), "a"), ws.ID, a.ID, b.ID, "MEMBER")
			return err
		},
		func() error {
			_, err := h.svc.UpdateMemberRole(withLane(context.Background(), "b"), ws.ID, b.ID, a.ID, "MEMBER")
			return err
		},
	)

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		assert.True(t,
			errors.Is(err, domain.ErrLastOwner) || errors.Is(err, domain.ErrForbidden) || errors.Is(err, domain.ErrConcurrentUpdate),
			"unexpected error: %v", err)
	}
	assert.Equal(t, 1, successes)
	assert.EqualValues(t, 1, h.ownerCount(t, ws.ID))
}

func TestUpdateMemberRole_AdminCannotTouchOwners(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.user(t, "owner@example.com", "Owner")
	admin := h.user(t, "admin@example.com", "Admin")
	member := h.user(t, "member@example.com", "Member")
	ws := h.workspace(t, owner, "Acme")
	h.addMember(t, ws.ID, admin, domain.RoleAdmin)
	h.addMember(t, ws.ID, member, domain.RoleMember)

	_, err := h.svc.UpdateMemberRole(ctx, ws.ID, admin.ID, owner.ID, "MEMBER")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = h.svc.UpdateMemberRole(ctx, ws.ID, admin.ID, member.ID, "OWNER")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	updated, err := h.svc.UpdateMemberRole(ctx, ws.ID, admin.ID, member.ID, "ADMIN")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, updated.Role)

	_, err = h.svc.UpdateMemberRole(ctx, ws.ID, member.ID, admin.ID, "MEMBER")
	require.NoError(t, err, "promoted member can now manage admins")
}

func TestUpdateMemberRole_MemberCannotManage(t *testing.T) {
	h := newHarness(t)
	owner := h.user(t, "owner@example.com", "Owner")
	member := h.user(t, "member@example.com", "Member")
	ws := h.workspace(t, owner, "Acme")
	h.addMember(t, ws.ID, member, domain.RoleMember)

	_, err := h.svc.UpdateMemberRole(context.Background(), ws.ID, member.ID, member.ID, "ADMIN")

	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestUpdateMemberRole_SameRoleIsNoop(t *testing.T) {
	h := newHarness(t)
	owner := h.user(t, "owner@example.com", "Owner")
	member := h.user(t, "member@example.com", "Member")
	ws := h.workspace(t, owner, "Acme")
	h.addMember(t, ws.ID, member, domain.RoleMember)
	before := membershipVersion(t, h, ws.ID)

	got, err := h.svc.UpdateMemberRole(context.Background(), ws.ID, owner.ID, member.ID, "member")

	require.NoError(t, err)
	assert.Equal(t, domain.RoleMember, got.Role)
	assert.Equal(t, before, membershipVersion(t, h, ws.ID))
	assert.EqualValues(t, 0, h.countAudit(t, "workspace.member.role_changed"))
}

func TestUpdateMemberRole_MissingTarget(t *testing.T) {
	h := newHarness(t)
	owner := h.user(t, "owner@example.com", "Owner")
	ws := h.workspace(t, owner, "Acme")

	_, err := h.svc.UpdateMemberRole(context.Background(), ws.ID, owner.ID, snowflake.ID(12345), "ADMIN")

	assert.ErrorIs(t, err, domain.ErrMemberNotFound)
}

func TestRemoveMember_OwnerAlwaysRejected(t *testing.T) {
	h := newHarness(t)
	a := h.user(t, "a@example.com", "A")
	b := h.user(t, "b@example.com", "B")
	ws := h.workspace(t, a, "Acme")
	h.addMember(t, ws.ID, b, domain.RoleOwner)

	err := h.svc.RemoveMember(context.Background(), ws.ID, a.ID, b.ID)

	assert.ErrorIs(t, err, domain.ErrOwnerRemoval)
	assert.EqualValues(t, 2, h.ownerCount(t, ws.ID))
}

func TestRemoveMember_ClearsDefaultWorkspace(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.user(t, "owner@example.com", "Owner")
	member := h.user(t, "member@example.com", "Member")
	ws := h.workspace(t, owner, "Acme")
	h.addMember(t, ws.ID, member, domain.RoleMember)
	require.NoError(t, h.svc.SwitchDefaultWorkspace(ctx, member.ID, ws.ID))
	before := membershipVersion(t, h, ws.ID)

	require.NoError(t, h.svc.RemoveMember(ctx, ws.ID, owner.ID, member.ID))

	assert.Nil(t, h.member(t, ws.ID, member.ID))
	assert.Nil(t, h.reloadUser(t, member.ID).DefaultWorkspaceID)
	assert.Equal(t, before+1, membershipVersion(t, h, ws.ID))
	assert.EqualValues(t, 1, h.countAudit(t, "workspace.member.removed"))

	err := h.svc.RemoveMember(ctx, ws.ID, owner.ID, member.ID)
	assert.ErrorIs(t, err, domain.ErrMemberNotFound)
}

func TestRemoveMember_NonMemberActorForbidden(t *testing.T) {
	h := newHarness(t)
	owner := h.user(t, "owner@example.com", "Owner")
	outsider := h.user(t, "out@example.com", "Out")
	ws := h.workspace(t, owner, "Acme")

	err := h.svc.RemoveMember(context.Background(), ws.ID, outsider.ID, owner.ID)

	assert.ErrorIs(t, err, domain.ErrForbidden)
}

// withLockstep holds the given number of concurrent callers together through
// their pre-transaction reads, so each one decides on the same snapshot.
func withLockstep(lanes int) harnessOption {
	return withRepoWrapper(func(r domain.Repository) domain.Repository {
		return newLockstepRepo(r, lanes)
	})
}

func runConcurrently(fns ...func() error) []error {
	errs := make([]error, len(fns))
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i, fn := range fns {
		wg.Add(1)
		go func(i int, fn func() error) {
			defer wg.Done()
			<-start
			errs[i] = fn()
		}(i, fn)
	}
	close(start)
	wg.Wait()
	return errs
}

func membershipVersion(t *testing.T, h *harness, workspaceID snowflake.ID) int64 {
	t.Helper()
	ws, err := h.repo.FindWorkspace(context.Background(), workspaceID)
	require.NoError(t, err)
	return ws.MembershipVersion
}
