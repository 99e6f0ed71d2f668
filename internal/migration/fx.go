package migration

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, log *zap.Logger) error {
		dialect := conn.Dialector.Name()
		if dialect == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			log.Info("applying versioned migrations")
			return RunMigrations(sqlDB)
		}

		log.Info("applying model migrations", zap.String("dialect", dialect))
		return AutoMigrate(conn)
	}),
)
