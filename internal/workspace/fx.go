package workspace

import (
	"github.com/smallbiznis/teamspace/internal/workspace/repository"
	"github.com/smallbiznis/teamspace/internal/workspace/service"
	"go.uber.org/fx"
)

var Module = fx.Module("workspace.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
