package billing

import (
	"github.com/smallbiznis/teamspace/internal/billing/provider/stripe"
	"github.com/smallbiznis/teamspace/internal/billing/repository"
	"github.com/smallbiznis/teamspace/internal/billing/service"
	"go.uber.org/fx"
)

var Module = fx.Module("billing.service",
	fx.Provide(stripe.NewFromConfig),
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
