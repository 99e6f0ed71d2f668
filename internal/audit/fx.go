package audit

import (
	"github.com/smallbiznis/teamspace/internal/audit/repository"
	"github.com/smallbiznis/teamspace/internal/audit/service"
	"go.uber.org/fx"
)

// Module provides the audit recorder used by every mutating workspace,
// membership and billing operation.
var Module = fx.Module("audit",
	fx.Provide(
		repository.New,
		service.NewService,
	),
)
