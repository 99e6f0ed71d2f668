package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/teamspace/internal/audit/domain"
	"github.com/smallbiznis/teamspace/internal/audit/repository"
	"github.com/smallbiznis/teamspace/internal/auditcontext"
	"github.com/smallbiznis/teamspace/internal/clock"
	"github.com/smallbiznis/teamspace/internal/migration"
	obscontext "github.com/smallbiznis/teamspace/internal/observability/context"
	"github.com/smallbiznis/teamspace/pkg/db"
	"github.com/smallbiznis/teamspace/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestService(t *testing.T) (auditdomain.Service, *clock.FakeClock, *snowflake.Node) {
	t.Helper()

	conn := db.NewTest(t)
	require.NoError(t, migration.AutoMigrate(conn))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fc := clock.NewFakeClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	svc := NewService(Params{
		DB:    conn,
		Log:   zaptest.NewLogger(t),
		GenID: node,
		Repo:  repository.New(),
		Clock: fc,
	})
	return svc, fc, node
}

func TestAuditLog_RequiresAction(t *testing.T) {
	svc, _, _ := newTestService(t)

	err := svc.AuditLog(context.Background(), auditdomain.Entry{Action: "  "})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidAction)
}

func TestAuditLog_EnrichesFromContextAndRedacts(t *testing.T) {
	svc, _, node := newTestService(t)
	workspaceID := node.Generate()
	actorID := node.Generate()

	ctx := context.Background()
	ctx = auditcontext.WithRequestID(ctx, "req-1")
	ctx = auditcontext.WithIPAddress(ctx, "10.0.0.1")
	ctx = auditcontext.WithUserAgent(ctx, "test-agent")
	ctx = obscontext.WithActor(ctx, "user", actorID.String())

	require.NoError(t, svc.AuditLog(ctx, auditdomain.Entry{
		WorkspaceID: &workspaceID,
		Action:      "workspace.invite.created",
		Target:      "bob@example.com",
		Metadata:    map[string]any{"role": "ADMIN", "token": "secret-token-value"},
	}))

	res, err := svc.List(context.Background(), auditdomain.ListRequest{WorkspaceID: workspaceID})
	require.NoError(t, err)
	require.Len(t, res.AuditLogs, 1)

	entry := res.AuditLogs[0]
	require.NotNil(t, entry.ActorID)
	assert.Equal(t, actorID, *entry.ActorID)
	require.NotNil(t, entry.RequestID)
	assert.Equal(t, "req-1", *entry.RequestID)
	require.NotNil(t, entry.IPAddress)
	assert.Equal(t, "10.0.0.1", *entry.IPAddress)
	assert.Equal(t, "ADMIN", entry.Metadata["role"])
	assert.NotEqual(t, "secret-token-value", entry.Metadata["token"])
}

func TestList_NewestFirstWithCursor(t *testing.T) {
	svc, fc, node := newTestService(t)
	workspaceID := node.Generate()
	otherID := node.Generate()

	for i := 0; i < 5; i++ {
		require.NoError(t, svc.AuditLog(context.Background(), auditdomain.Entry{
			WorkspaceID: &workspaceID,
			Action:      "workspace.renamed",
		}))
		fc.Advance(time.Second)
	}
	require.NoError(t, svc.AuditLog(context.Background(), auditdomain.Entry{
		WorkspaceID: &otherID,
		Action:      "workspace.renamed",
	}))

	first, err := svc.List(context.Background(), auditdomain.ListRequest{
		WorkspaceID: workspaceID,
		Pagination:  pagination.Pagination{PageSize: 3},
	})
	require.NoError(t, err)
	require.Len(t, first.AuditLogs, 3)
	assert.True(t, first.AuditLogs[0].CreatedAt.After(first.AuditLogs[2].CreatedAt))
	require.NotEmpty(t, first.NextPageToken)

	second, err := svc.List(context.Background(), auditdomain.ListRequest{
		WorkspaceID: workspaceID,
		Pagination:  pagination.Pagination{PageSize: 3, PageToken: first.NextPageToken},
	})
	require.NoError(t, err)
	require.Len(t, second.AuditLogs, 2)
	assert.True(t, second.AuditLogs[0].CreatedAt.Before(first.AuditLogs[2].CreatedAt))
	assert.Empty(t, second.NextPageToken)
}

func TestList_FilterByAction(t *testing.T) {
	svc, _, node := newTestService(t)
	workspaceID := node.Generate()

	for _, action := range []string{"workspace.renamed", "workspace.member.removed", "workspace.renamed"} {
		require.NoError(t, svc.AuditLog(context.Background(), auditdomain.Entry{
			WorkspaceID: &workspaceID,
			Action:      action,
		}))
	}

	res, err := svc.List(context.Background(), auditdomain.ListRequest{
		WorkspaceID: workspaceID,
		Action:      "workspace.member.removed",
	})
	require.NoError(t, err)
	assert.Len(t, res.AuditLogs, 1)
}

func TestList_Validation(t *testing.T) {
	svc, _, node := newTestService(t)

	_, err := svc.List(context.Background(), auditdomain.ListRequest{})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidWorkspace)

	_, err = svc.List(context.Background(), auditdomain.ListRequest{
		WorkspaceID: node.Generate(),
		Pagination:  pagination.Pagination{PageToken: "%%%"},
	})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidPageToken)
}
