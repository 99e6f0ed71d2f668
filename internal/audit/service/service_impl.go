package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/teamspace/internal/audit/domain"
	"github.com/smallbiznis/teamspace/internal/audit/masking"
	auditcontext "github.com/smallbiznis/teamspace/internal/auditcontext"
	"github.com/smallbiznis/teamspace/internal/clock"
	obscontext "github.com/smallbiznis/teamspace/internal/observability/context"
	"github.com/smallbiznis/teamspace/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  auditdomain.Repository
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  auditdomain.Repository
	clock clock.Clock
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		repo:  p.Repo,
		clock: p.Clock,
	}
}

func (s *Service) AuditLog(ctx context.Context, entry auditdomain.Entry) error {
	action := strings.TrimSpace(entry.Action)
	if action == "" {
		return auditdomain.ErrInvalidAction
	}

	payload := masking.RedactSensitive(entry.Metadata)
	if payload == nil {
		payload = map[string]any{}
	}

	record := auditdomain.AuditLog{
		ID:          s.genID.Generate(),
		WorkspaceID: normalizeID(entry.WorkspaceID),
		ActorID:     s.resolveActor(ctx, entry.ActorID),
		Action:      action,
		Target:      normalizeString(entry.Target),
		Metadata:    datatypes.JSONMap(payload),
		IPAddress:   normalizeString(auditcontext.IPAddressFromContext(ctx)),
		UserAgent:   normalizeString(auditcontext.UserAgentFromContext(ctx)),
		RequestID:   normalizeString(s.resolveRequestID(ctx)),
		CreatedAt:   s.clock.Now(),
	}

	if err := s.repo.Insert(ctx, s.db, &record); err != nil {
		s.log.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, req auditdomain.ListRequest) (auditdomain.ListResponse, error) {
	if req.WorkspaceID == 0 {
		return auditdomain.ListResponse{}, auditdomain.ErrInvalidWorkspace
	}

	var cursor *auditdomain.AuditCursor
	if strings.TrimSpace(req.PageToken) != "" {
		decoded, err := pagination.ParseToken(req.PageToken)
		if err != nil {
			return auditdomain.ListResponse{}, auditdomain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(decoded.ID)
		if err != nil || id == 0 {
			return auditdomain.ListResponse{}, auditdomain.ErrInvalidPageToken
		}
		cursor = &auditdomain.AuditCursor{ID: id, CreatedAt: decoded.CreatedAt.UTC()}
	}

	pageSize := req.Size()
	items, err := s.repo.List(ctx, s.db, auditdomain.ListFilter{
		WorkspaceID: req.WorkspaceID,
		Action:      req.Action,
		Cursor:      cursor,
		Limit:       pageSize,
	})
	if err != nil {
		return auditdomain.ListResponse{}, err
	}

	items, pageInfo, err := pagination.Cut(items, pageSize, func(item *auditdomain.AuditLog) pagination.Cursor {
		return pagination.Cursor{ID: item.ID.String(), CreatedAt: item.CreatedAt.UTC()}
	})
	if err != nil {
		return auditdomain.ListResponse{}, err
	}

	logs := make([]auditdomain.AuditLog, 0, len(items))
	for _, item := range items {
		if item != nil {
			logs = append(logs, *item)
		}
	}

	return auditdomain.ListResponse{PageInfo: pageInfo, AuditLogs: logs}, nil
}

func (s *Service) resolveActor(ctx context.Context, actorID *snowflake.ID) *snowflake.ID {
	if id := normalizeID(actorID); id != nil {
		return id
	}
	actorType, rawID := obscontext.ActorFromContext(ctx)
	if actorType != "user" || rawID == "" {
		return nil
	}
	parsed, err := snowflake.ParseString(rawID)
	if err != nil || parsed == 0 {
		return nil
	}
	return &parsed
}

func (s *Service) resolveRequestID(ctx context.Context) string {
	if requestID := auditcontext.RequestIDFromContext(ctx); requestID != "" {
		return requestID
	}
	return obscontext.RequestIDFromContext(ctx)
}

func normalizeID(id *snowflake.ID) *snowflake.ID {
	if id == nil || *id == 0 {
		return nil
	}
	return id
}

func normalizeString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
