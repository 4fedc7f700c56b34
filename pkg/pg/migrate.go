package pg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

var (
	ErrMigrationsFailed      = errors.New("pg: failed to apply migrations")
	ErrMigrationsDirNotFound = errors.New("pg: migrations directory not found")
)

// Migrate applies goose migrations through the pgx pool. goose speaks
// database/sql, so the pool is bridged via stdlib for the duration of the
// run.
func Migrate(ctx context.Context, pool *pgxpool.Pool, cfg Config, log *slog.Logger) error {
	if cfg.MigrationsPath == "" {
		return errors.Join(ErrMigrationsFailed, errors.New("migrations path not set"))
	}
	if _, err := os.Stat(cfg.MigrationsPath); err != nil {
		if os.IsNotExist(err) {
			return errors.Join(ErrMigrationsDirNotFound, err)
		}
		return errors.Join(ErrMigrationsFailed, err)
	}
	if log == nil {
		log = slog.Default()
	}

	db := stdlib.OpenDBFromPool(pool)
	defer func() {
		if err := db.Close(); err != nil {
			log.ErrorContext(ctx, "failed to close migration connection", slog.Any("error", err))
		}
	}()

	goose.SetLogger(&gooseSlog{ctx: ctx, log: log})
	goose.SetTableName(cfg.MigrationsTable)
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Join(ErrMigrationsFailed, err)
	}
	if err := goose.UpContext(ctx, db, cfg.MigrationsPath); err != nil {
		return errors.Join(ErrMigrationsFailed, err)
	}
	return nil
}

// gooseSlog routes goose's printf logging into slog.
type gooseSlog struct {
	ctx context.Context
	log *slog.Logger
}

func (g *gooseSlog) Fatalf(format string, v ...any) {
	g.log.ErrorContext(g.ctx, fmt.Sprintf(format, v...))
}

func (g *gooseSlog) Printf(format string, v ...any) {
	g.log.InfoContext(g.ctx, fmt.Sprintf(format, v...))
}
