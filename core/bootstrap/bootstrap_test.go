package bootstrap

import (
	"context"
	"errors"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/airdropbot/core/config"
	coredatabase "github.com/m3rciful/airdropbot/core/database"
)

func noLogger(*coreconfig.Config) error { return nil }

func TestRunWithoutDatabase(t *testing.T) {
	connected := false
	res, err := Run(context.Background(), Options{
		Config:     &coreconfig.Config{},
		LoggerInit: noLogger,
		Connect: func(context.Context, coredatabase.Config) (*sqlx.DB, error) {
			connected = true
			return nil, nil
		},
	})
	require.NoError(t, err)
	assert.Nil(t, res.DB)
	assert.False(t, connected)
	assert.NoError(t, res.Close())
}

func TestRunMigratesBeforeConnect(t *testing.T) {
	var order []string
	_, err := Run(context.Background(), Options{
		Config:        &coreconfig.Config{},
		Database:      &coredatabase.Config{Name: "airdrop"},
		Migrations:    fstest.MapFS{},
		MigrationsDir: "migrations",
		LoggerInit:    noLogger,
		Migrate: func(_ context.Context, cfg coredatabase.Config, _ fs.FS, dir string) error {
			order = append(order, "migrate:"+dir)
			return nil
		},
		Connect: func(context.Context, coredatabase.Config) (*sqlx.DB, error) {
			order = append(order, "connect")
			return nil, nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"migrate:migrations", "connect"}, order)
}

func TestRunFailures(t *testing.T) {
	_, err := Run(context.Background(), Options{})
	assert.Error(t, err)

	boom := errors.New("boom")
	_, err = Run(context.Background(), Options{
		Config:     &coreconfig.Config{},
		LoggerInit: func(*coreconfig.Config) error { return boom },
	})
	assert.ErrorIs(t, err, boom)

	_, err = Run(context.Background(), Options{
		Config:     &coreconfig.Config{},
		Database:   &coredatabase.Config{},
		Migrations: fstest.MapFS{},
		LoggerInit: noLogger,
		Migrate: func(context.Context, coredatabase.Config, fs.FS, string) error {
			return boom
		},
	})
	assert.ErrorIs(t, err, boom)
}
