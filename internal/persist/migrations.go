package persist

import (
	"context"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

// migrationsDir is the embedded SQL migration set for this repo's schema:
// accounts (credential store, see AccountRepo) and scene_checkpoint (scene
// graph persistence, see CheckpointRepo). See migrations/00001_init.sql.
const migrationsDir = "migrations"

//go:embed migrations/*.sql
var migrationFS embed.FS

// RunMigrations applies all pending accounts/scene_checkpoint migrations.
// goose's own log output is suppressed (goose.NopLogger()); the outer
// zap.Logger, if non-nil, records start/success so migration runs show up in
// the same structured log stream as the rest of server startup.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	log.Info("running database migrations", zap.String("dir", migrationsDir))

	goose.SetLogger(goose.NopLogger())
	goose.SetBaseFS(migrationFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	if err := goose.UpContext(ctx, db, migrationsDir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	log.Info("database migrations up to date")
	return nil
}
