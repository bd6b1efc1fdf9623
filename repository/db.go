package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	auth "github.com/goliatone/go-auth-session"
	goerrors "github.com/goliatone/go-errors"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
	"github.com/uptrace/bun/migrate"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Options selects the database backing the repositories
type Options struct {
	Driver string
	DSN    string
	Debug  bool
}

// Open connects to the database described by opts. SQLite connections are
// limited to a single open connection, which in memory databases require.
func Open(opts Options) (*bun.DB, error) {
	var db *bun.DB

	switch strings.ToLower(opts.Driver) {
	case "", DriverSQLite, "sqlite3":
		dsn := opts.DSN
		if dsn == "" {
			dsn = "file::memory:?cache=shared"
		}
		sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open sqlite")
		}
		sqldb.SetMaxOpenConns(1)
		db = bun.NewDB(sqldb, sqlitedialect.New())

		if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
			db.Close()
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to enable foreign keys")
		}
	case DriverPostgres, "pg", "pgx":
		sqldb, err := sql.Open("pgx", opts.DSN)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open postgres")
		}
		db = bun.NewDB(sqldb, pgdialect.New())
	default:
		return nil, goerrors.New(fmt.Sprintf("unsupported database driver %q", opts.Driver), goerrors.CategoryBadInput).
			WithTextCode(auth.TextCodeInvalidConfig)
	}

	if opts.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	return db, nil
}

// Dialect returns the migrations directory name for db
func Dialect(db *bun.DB) string {
	if _, ok := db.Dialect().(*pgdialect.Dialect); ok {
		return DriverPostgres
	}
	return DriverSQLite
}

// Migrate applies the embedded migrations for the dialect of db and returns
// the names of the migrations that ran
func Migrate(ctx context.Context, db *bun.DB) ([]string, error) {
	fsys, err := auth.GetDialectMigrationsFS(Dialect(db))
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load migrations")
	}

	migrations := migrate.NewMigrations()
	if err := migrations.Discover(fsys); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to discover migrations")
	}

	migrator := migrate.NewMigrator(db, migrations)
	if err := migrator.Init(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to init migrations")
	}

	if err := migrator.Lock(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to lock migrations")
	}
	defer migrator.Unlock(ctx)

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to run migrations")
	}

	applied := make([]string, 0, len(group.Migrations))
	for _, m := range group.Migrations {
		applied = append(applied, m.Name)
	}

	return applied, nil
}

// OpenAndMigrate opens the database and applies migrations
func OpenAndMigrate(ctx context.Context, opts Options) (*bun.DB, error) {
	db, err := Open(opts)
	if err != nil {
		return nil, err
	}

	if _, err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
