// Package bootstrap brings up the shared infrastructure: logging, the
// database pool and its schema.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/airdropbot/core/config"
	coredatabase "github.com/m3rciful/airdropbot/core/database"
	"github.com/m3rciful/airdropbot/core/logger"
)

// Options controls Run. Hooks default to the real implementations.
type Options struct {
	Config *coreconfig.Config
	// Database is nil when the bot runs without Postgres.
	Database *coredatabase.Config

	Migrations    fs.FS
	MigrationsDir string

	LoggerInit func(*coreconfig.Config) error
	Connect    func(context.Context, coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(context.Context, coredatabase.Config, fs.FS, string) error
}

// Result carries what Run initialised. DB is nil without a database.
type Result struct {
	DB *sqlx.DB
}

// Close releases the database pool, if any.
func (r *Result) Close() error {
	if r == nil || r.DB == nil {
		return nil
	}
	return r.DB.Close()
}

// Run initialises the logger, then connects and migrates the database when
// one is configured.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, errors.New("bootstrap: nil config")
	}
	initLogger := opts.LoggerInit
	if initLogger == nil {
		initLogger = logger.InitLogger
	}
	if err := initLogger(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger: %w", err)
	}
	if opts.Database == nil {
		return &Result{}, nil
	}

	connect := opts.Connect
	if connect == nil {
		connect = coredatabase.Connect
	}
	migrate := opts.Migrate
	if migrate == nil {
		migrate = coredatabase.RunMigrations
	}

	if opts.Migrations != nil {
		if err := migrate(ctx, *opts.Database, opts.Migrations, opts.MigrationsDir); err != nil {
			return nil, fmt.Errorf("bootstrap: migrations: %w", err)
		}
	}
	db, err := connect(ctx, *opts.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database: %w", err)
	}
	return &Result{DB: db}, nil
}
