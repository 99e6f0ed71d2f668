package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	auditdomain "github.com/smallbiznis/teamspace/internal/audit/domain"
	userdomain "github.com/smallbiznis/teamspace/internal/user/domain"
	workspacedomain "github.com/smallbiznis/teamspace/internal/workspace/domain"
	"gorm.io/gorm"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// pendingInviteIndex keeps at most one PENDING invite per address and
// workspace. gorm tags cannot express the predicate.
const pendingInviteIndex = `CREATE UNIQUE INDEX IF NOT EXISTS ux_workspace_invites_pending
	ON workspace_invites (workspace_id, email) WHERE status = 'PENDING'`

const dropPendingInviteIndex = `DROP INDEX IF EXISTS ux_workspace_invites_pending`

// RunMigrations applies the versioned postgres schema.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// AutoMigrate creates the schema from the gorm models. It backs sqlite
// (local runs and tests) and mysql, and runs on every boot.
func AutoMigrate(db *gorm.DB) error {
	// MySQL has no partial indexes; the invite flow's pending lookup covers it there.
	partial := db.Dialector.Name() != "mysql"

	// The sqlite migrator parses the stored table DDL, index statements
	// included, and rejects the WHERE clause of the pending index. Drop it
	// for the duration of the model migration.
	if partial {
		if err := db.Exec(dropPendingInviteIndex).Error; err != nil {
			return fmt.Errorf("drop pending invite index: %w", err)
		}
	}

	if err := db.AutoMigrate(
		&userdomain.User{},
		&workspacedomain.Workspace{},
		&workspacedomain.Member{},
		&workspacedomain.Invite{},
		&auditdomain.AuditLog{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	if !partial {
		return nil
	}
	if err := db.Exec(pendingInviteIndex).Error; err != nil {
		return fmt.Errorf("create pending invite index: %w", err)
	}
	return nil
}
