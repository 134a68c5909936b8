package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/m3rciful/airdropbot/core/logger"
)

const migrateComponent = "db.migrate"

// RunMigrations applies every up migration found at dir inside fsys.
func RunMigrations(ctx context.Context, cfg Config, fsys fs.FS, dir string) error {
	if err := WaitForPostgres(ctx, cfg, 30*time.Second); err != nil {
		logger.Error(ctx, migrateComponent, "db.wait", slog.String("status", "fail"), slog.String("err", err.Error()))
		return err
	}

	files := upFiles(fsys, dir)
	preview, truncated := logger.SummarizeStrings(files, 6)
	logger.Debug(ctx, migrateComponent, "migrate.resolve",
		slog.Int("files_total", len(files)),
		slog.String("files_preview", preview),
		slog.Bool("files_truncated", truncated),
	)

	src, err := iofs.New(fsys, dir)
	if err != nil {
		return fmt.Errorf("migrations source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, cfg.URL())
	if err != nil {
		return fmt.Errorf("migrations init: %w", err)
	}
	defer m.Close()

	from, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("migrations version: %w", err)
	}

	start := time.Now()
	upErr := m.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		logger.Error(ctx, migrateComponent, "migrate.apply",
			slog.String("status", "fail"),
			slog.String("err", upErr.Error()),
			slog.Duration("duration", logger.Took(start)),
		)
		return fmt.Errorf("migrations apply: %w", upErr)
	}
	to, _, _ := m.Version()

	logger.Info(ctx, migrateComponent, "migrate.summary",
		slog.String("status", "ok"),
		slog.Uint64("from_ver", uint64(from)),
		slog.Uint64("to_ver", uint64(to)),
		slog.Int("files", len(appliedBetween(files, uint64(from), uint64(to)))),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}

func upFiles(fsys fs.FS, dir string) []string {
	matches, err := fs.Glob(fsys, strings.TrimSuffix(dir, "/")+"/*.up.sql")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[strings.LastIndexByte(m, '/')+1:])
	}
	sort.Strings(names)
	return names
}

func migrationVersion(name string) uint64 {
	prefix, _, _ := strings.Cut(name, "_")
	v, _ := strconv.ParseUint(prefix, 10, 64)
	return v
}

func appliedBetween(files []string, from, to uint64) []string {
	var out []string
	for _, f := range files {
		if v := migrationVersion(f); v > from && v <= to {
			out = append(out, f)
		}
	}
	return out
}
