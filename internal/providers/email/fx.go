package email

import (
	"github.com/smallbiznis/teamspace/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.email",
	fx.Provide(NewFromConfig),
)

// NewFromConfig returns the SMTP transport when configured and the logging
// no-op otherwise.
func NewFromConfig(cfg config.Config, log *zap.Logger) Provider {
	if !cfg.Email.Configured() {
		log.Info("smtp not configured, emails will be logged only")
		return NewNoOp(log)
	}
	return NewSMTP(Config{
		Host:     cfg.Email.SMTPHost,
		Port:     cfg.Email.SMTPPort,
		Username: cfg.Email.SMTPUsername,
		Password: cfg.Email.SMTPPassword,
		From:     cfg.Email.From,
	})
}
