package db

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/smallbiznis/teamspace/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Driver normalizes DATABASE_TYPE aliases to postgres, mysql or sqlite.
func Driver(kind string) string {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "postgres", "postgresql", "pg", "pgx":
		return "postgres"
	case "mysql", "mariadb":
		return "mysql"
	case "sqlite", "sqlite3", "":
		return "sqlite"
	default:
		return kind
	}
}

// Dialect returns the gorm dialector for cfg. DATABASE_URL, when set, is
// passed to the driver untouched; otherwise a DSN is assembled from the
// discrete DATABASE_* settings.
func Dialect(cfg config.Config) (gorm.Dialector, error) {
	dsn := strings.TrimSpace(cfg.DBURL)

	switch Driver(cfg.DBType) {
	case "postgres":
		if dsn == "" {
			dsn = postgresDSN(cfg)
		}
		return postgres.New(postgres.Config{DSN: dsn}), nil
	case "mysql":
		if dsn == "" {
			dsn = mysqlDSN(cfg)
		}
		return mysql.New(mysql.Config{DSN: dsn, DefaultStringSize: 255}), nil
	case "sqlite":
		if dsn == "" {
			dsn = cfg.DBName + ".db?_busy_timeout=5000&_fk=1"
		}
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database type %q", cfg.DBType)
	}
}

func postgresDSN(cfg config.Config) string {
	q := url.Values{}
	q.Set("sslmode", cfg.DBSSLMode)
	q.Set("TimeZone", "UTC")
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.DBUser, cfg.DBPassword),
		Host:     net.JoinHostPort(cfg.DBHost, cfg.DBPort),
		Path:     "/" + cfg.DBName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

func mysqlDSN(cfg config.Config) string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		cfg.DBUser,
		cfg.DBPassword,
		net.JoinHostPort(cfg.DBHost, cfg.DBPort),
		cfg.DBName,
	)
}
