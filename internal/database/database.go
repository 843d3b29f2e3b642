package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"mex-balancer-bot-go/internal/config"
	"mex-balancer-bot-go/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// IsPostgresURL reports whether url points at a Postgres server.
func IsPostgresURL(url string) bool {
	return strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://")
}

// NewDatabase opens the trade database and migrates the schema.
// A postgres:// URL is served through a pgx pool; anything else, or an unreachable
// Postgres when fallback is enabled, uses the local SQLite file.
func NewDatabase(ctx context.Context, cfg *config.Database, logger *zap.Logger) (*gorm.DB, error) {
	gcfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}

	var dialector gorm.Dialector
	if IsPostgresURL(cfg.URL) {
		sqlDB, err := openPostgres(ctx, cfg)
		switch {
		case err == nil:
			dialector = postgres.New(postgres.Config{Conn: sqlDB})
			logger.Info("Using Postgres database")
		case cfg.FallbackSQLite:
			logger.Warn("Postgres unavailable, falling back to SQLite",
				zap.String("path", cfg.SQLitePath), zap.Error(err))
		default:
			return nil, err
		}
	}
	if dialector == nil {
		dialector = sqlite.Open(sqliteDSN(cfg))
		logger.Info("Using SQLite database", zap.String("path", cfg.SQLitePath))
	}

	db, err := gorm.Open(dialector, gcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := AutoMigrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// openPostgres builds a pgx pool, checks it answers, and exposes it as *sql.DB for gorm.
func openPostgres(ctx context.Context, cfg *config.Database) (*sql.DB, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return stdlib.OpenDBFromPool(pool), nil
}

func sqliteDSN(cfg *config.Database) string {
	if strings.HasPrefix(cfg.URL, "sqlite://") {
		return strings.TrimPrefix(cfg.URL, "sqlite://")
	}
	if cfg.SQLitePath == "" {
		return "mex_balancer.db"
	}
	return cfg.SQLitePath
}

// AutoMigrate creates or updates the tables. Existing rows are never dropped.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.User{}, &models.Trade{}); err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	return nil
}
